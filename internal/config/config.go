// Package config loads the immutable process configuration: plain
// os.Getenv reads behind getEnv/getEnvInt/getEnvBool helpers, then
// validateX methods, one invariant group per method.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all configuration for the sync service.
type Config struct {
	// Repo identifiers, each "org/name".
	DownstreamRepo string // e.g. "servo/servo"
	UpstreamRepo   string // e.g. "wpt/wpt"
	DownstreamFork string // e.g. "servo-wpt-sync/wpt"

	// Local clone paths.
	DownstreamClonePath string
	UpstreamClonePath   string

	// Mirrored sub-tree prefix within the downstream repo, e.g.
	// "tests/wpt/web-platform-tests/".
	UpstreamablePath string

	// GitHub API.
	GitHubAPIBase string
	GitHubToken   string

	// GitHub App auth, used instead of GitHubToken when both App ID and
	// private key are set.
	GitHubAppID         string
	GitHubAppPrivateKey string

	// Fork push credentials.
	ForkUsername string

	// Author/committer identity forced onto git invocations on both
	// clones. Commits replayed onto the upstream branch use each
	// downstream commit's own author as author and committer instead.
	CommitterName  string
	CommitterEmail string

	// HTTP server.
	Port int

	// Optional HMAC webhook secret. Empty disables signature checking.
	WebhookSecret string

	// Test-only escape hatch: suppresses BranchBuilder's force-push and
	// RemoveBranchForPR's delete-remote-branch step.
	SuppressForcePush bool
}

// Load reads configuration from the environment and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		DownstreamRepo:      os.Getenv("SERVO_REPO"),
		UpstreamRepo:        os.Getenv("WPT_REPO"),
		DownstreamFork:      os.Getenv("WPT_FORK_REPO"),
		DownstreamClonePath: os.Getenv("SERVO_PATH"),
		UpstreamClonePath:   os.Getenv("WPT_PATH"),
		UpstreamablePath:    getEnv("UPSTREAMABLE_PATH", "tests/wpt/web-platform-tests/"),
		GitHubAPIBase:       getEnv("GITHUB_API_BASE", "https://api.github.com/"),
		GitHubToken:         os.Getenv("GITHUB_TOKEN"),
		GitHubAppID:         os.Getenv("GITHUB_APP_ID"),
		GitHubAppPrivateKey: normalizePrivateKey(os.Getenv("GITHUB_APP_PRIVATE_KEY")),
		ForkUsername:        getEnv("FORK_USERNAME", "servo-wpt-sync-bot"),
		CommitterName:       getEnv("COMMITTER_NAME", "Servo WPT Sync Bot"),
		CommitterEmail:      getEnv("COMMITTER_EMAIL", "wpt-sync@servo.org"),
		Port:                getEnvInt("PORT", 8000),
		WebhookSecret:       os.Getenv("WEBHOOK_SECRET"),
		SuppressForcePush:   getEnvBool("SUPPRESS_FORCE_PUSH"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if err := c.validateRepos(); err != nil {
		return err
	}
	if err := c.validateClonePaths(); err != nil {
		return err
	}
	if err := c.validateGitHubAuth(); err != nil {
		return err
	}
	return c.validateCommitter()
}

// validateRepos enforces the distinctness and cross-org invariants:
// three distinct org/name strings, fork in a different org than the
// upstream target.
func (c *Config) validateRepos() error {
	if c.DownstreamRepo == "" {
		return fmt.Errorf("SERVO_REPO is required")
	}
	if c.UpstreamRepo == "" {
		return fmt.Errorf("WPT_REPO is required")
	}
	if c.DownstreamFork == "" {
		return fmt.Errorf("WPT_FORK_REPO is required")
	}
	if c.DownstreamRepo == c.UpstreamRepo || c.DownstreamRepo == c.DownstreamFork || c.UpstreamRepo == c.DownstreamFork {
		return fmt.Errorf("SERVO_REPO, WPT_REPO, and WPT_FORK_REPO must be distinct")
	}
	for name, repo := range map[string]string{
		"SERVO_REPO":    c.DownstreamRepo,
		"WPT_REPO":      c.UpstreamRepo,
		"WPT_FORK_REPO": c.DownstreamFork,
	} {
		if !strings.Contains(repo, "/") {
			return fmt.Errorf("%s must be in org/name form, got %q", name, repo)
		}
	}
	upstreamOrg := strings.SplitN(c.UpstreamRepo, "/", 2)[0]
	forkOrg := strings.SplitN(c.DownstreamFork, "/", 2)[0]
	if upstreamOrg == forkOrg {
		return fmt.Errorf("WPT_FORK_REPO must reside in a different org than WPT_REPO, got both %q", upstreamOrg)
	}
	return nil
}

func (c *Config) validateClonePaths() error {
	if c.DownstreamClonePath == "" {
		return fmt.Errorf("SERVO_PATH is required")
	}
	if c.UpstreamClonePath == "" {
		return fmt.Errorf("WPT_PATH is required")
	}
	return nil
}

func (c *Config) validateGitHubAuth() error {
	hasToken := c.GitHubToken != ""
	hasApp := c.GitHubAppID != "" && c.GitHubAppPrivateKey != ""
	if !hasToken && !hasApp {
		return fmt.Errorf("either GITHUB_TOKEN or both GITHUB_APP_ID and GITHUB_APP_PRIVATE_KEY are required")
	}
	return nil
}

func (c *Config) validateCommitter() error {
	if c.CommitterName == "" {
		return fmt.Errorf("COMMITTER_NAME must not be empty")
	}
	if c.CommitterEmail == "" {
		return fmt.Errorf("COMMITTER_EMAIL must not be empty")
	}
	return nil
}

// normalizePrivateKey cleans up a PEM key pasted into an env var: strip
// surrounding quotes, normalize line endings, unescape literal "\n"
// sequences.
func normalizePrivateKey(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "\"") && strings.HasSuffix(trimmed, "\"") {
		trimmed = strings.TrimSuffix(strings.TrimPrefix(trimmed, "\""), "\"")
	}
	trimmed = strings.ReplaceAll(trimmed, "\r\n", "\n")
	trimmed = strings.ReplaceAll(trimmed, "\r", "\n")
	if strings.Contains(trimmed, "\\n") {
		trimmed = strings.ReplaceAll(trimmed, "\\r", "")
		trimmed = strings.ReplaceAll(trimmed, "\\n", "\n")
	}
	return trimmed
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string) bool {
	switch os.Getenv(key) {
	case "1", "true", "TRUE", "True", "yes", "Y", "y":
		return true
	default:
		return false
	}
}
