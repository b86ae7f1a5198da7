// Command server wires configuration, git clients, the GitHub REST
// client, the synchronization engine, and the HTTP front end into a
// running process, with signal-driven graceful shutdown over an
// http.Server built from a gorilla/mux router.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"github.com/servo/upstream-wpt-sync-webhook/internal/config"
	"github.com/servo/upstream-wpt-sync-webhook/internal/engine"
	"github.com/servo/upstream-wpt-sync-webhook/internal/githubapi"
	"github.com/servo/upstream-wpt-sync-webhook/internal/gitshell"
	"github.com/servo/upstream-wpt-sync-webhook/internal/webhookhttp"
)

func main() {
	// Local-dev convenience only; production deployments set real env
	// vars and .env is simply absent.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("server: failed to load config: %v", err)
	}

	downstreamRepo, err := engine.ParseRepoRef(cfg.DownstreamRepo)
	if err != nil {
		log.Fatalf("server: %v", err)
	}
	upstreamRepo, err := engine.ParseRepoRef(cfg.UpstreamRepo)
	if err != nil {
		log.Fatalf("server: %v", err)
	}
	downstreamFork, err := engine.ParseRepoRef(cfg.DownstreamFork)
	if err != nil {
		log.Fatalf("server: %v", err)
	}

	token, err := resolveToken(cfg)
	if err != nil {
		log.Fatalf("server: failed to resolve GitHub token: %v", err)
	}

	ghClient, err := githubapi.NewClient(cfg.GitHubAPIBase, token)
	if err != nil {
		log.Fatalf("server: failed to build GitHub client: %v", err)
	}

	identity := gitshell.Identity{Name: cfg.CommitterName, Email: cfg.CommitterEmail}
	runner := &gitshell.RealCommandRunner{}
	downstreamGit := gitshell.NewClient(runner, cfg.DownstreamClonePath, identity)
	upstreamGit := gitshell.NewClient(runner, cfg.UpstreamClonePath, identity)

	eng := &engine.Engine{
		DownstreamRepo: downstreamRepo,
		UpstreamRepo:   upstreamRepo,
		DownstreamFork: downstreamFork,
		GitHub:         ghClient,
		Extractor: &engine.CommitExtractor{
			Downstream:       downstreamGit,
			UpstreamablePath: cfg.UpstreamablePath,
		},
		Builder: &engine.BranchBuilder{
			Upstream:          upstreamGit,
			UpstreamablePath:  cfg.UpstreamablePath,
			DownstreamFork:    downstreamFork,
			ForkUsername:      cfg.ForkUsername,
			ForkToken:         token,
			SuppressForcePush: cfg.SuppressForcePush,
		},
		ForkUsername:      cfg.ForkUsername,
		ForkToken:         token,
		SuppressForcePush: cfg.SuppressForcePush,
		Observer: func(name string) {
			log.Printf("server: step %s", name)
		},
	}

	shutdownCh := make(chan struct{}, 1)
	handler := webhookhttp.NewHandler(eng, cfg.WebhookSecret, shutdownCh)

	r := mux.NewRouter()
	r.HandleFunc("/hook", handler.HandleHook).Methods(http.MethodPost)
	r.HandleFunc("/ping", handler.HandlePing).Methods(http.MethodGet)
	r.HandleFunc("/shutdown", handler.HandleShutdown).Methods(http.MethodPost)

	srv := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // a sync run can involve many git/HTTP round trips
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("server: listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server: listen failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-shutdownCh:
	}

	log.Println("server: shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("server: forced shutdown: %v", err)
	}
	log.Println("server: exited")
}

// resolveToken picks a static PAT or mints a GitHub App installation
// token via the pluggable AuthProvider.
func resolveToken(cfg *config.Config) (string, error) {
	if cfg.GitHubAppID != "" && cfg.GitHubAppPrivateKey != "" {
		auth := githubapi.NewAppAuth(cfg.GitHubAppID, cfg.GitHubAppPrivateKey, ownerOf(cfg.DownstreamFork))
		return auth.Token()
	}
	return cfg.GitHubToken, nil
}

func ownerOf(repo string) string {
	for i := 0; i < len(repo); i++ {
		if repo[i] == '/' {
			return repo[:i]
		}
	}
	return repo
}
