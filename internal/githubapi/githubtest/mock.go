// Package githubtest is an in-memory GitHub REST mock covering the PR
// list/create/edit/merge and label/comment operations the sync engine
// needs, plus a seeding hook for pre-existing upstream PRs.
package githubtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

// PR is one pull request tracked by the mock server.
type PR struct {
	Number int
	Repo   string // "owner/name"
	Title  string
	Body   string
	Head   string // head ref as GitHub would report it, e.g. "org:branch"
	State  string // "open" or "closed"
	Merged bool
	Labels []string
}

// Server is an httptest-backed stand-in for the GitHub REST API.
type Server struct {
	mu      sync.Mutex
	prs     map[string]*PR // key: "owner/name#N"
	nextNum map[string]int // key: "owner/name"
	comments []Comment

	httpServer *httptest.Server
}

// Comment records a posted issue comment for assertions in tests.
type Comment struct {
	Repo   string
	Number int
	Body   string
}

var refPattern = regexp.MustCompile(`^/repos/([^/]+/[^/]+)/pulls$`)
var prNumberPattern = regexp.MustCompile(`^/repos/([^/]+/[^/]+)/pulls/(\d+)$`)
var mergePattern = regexp.MustCompile(`^/repos/([^/]+/[^/]+)/pulls/(\d+)/merge$`)
var labelsPattern = regexp.MustCompile(`^/repos/([^/]+/[^/]+)/issues/(\d+)/labels$`)
var labelPattern = regexp.MustCompile(`^/repos/([^/]+/[^/]+)/issues/(\d+)/labels/([^/]+)$`)
var commentsPattern = regexp.MustCompile(`^/repos/([^/]+/[^/]+)/issues/(\d+)/comments$`)

// NewServer starts a mock GitHub API server. Callers must Close it.
func NewServer() *Server {
	s := &Server{
		prs:     make(map[string]*PR),
		nextNum: make(map[string]int),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.route)
	s.httpServer = httptest.NewServer(mux)
	return s
}

// URL is the base URL to pass to githubapi.NewClient (with a trailing
// slash, matching go-github's BaseURL contract).
func (s *Server) URL() string { return s.httpServer.URL + "/" }

func (s *Server) Close() { s.httpServer.Close() }

// SeedPR installs a pre-existing upstream PR, for tests that exercise
// behavior conditioned on an upstream PR already being open.
func (s *Server) SeedPR(pr PR) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pr.Repo + "#" + strconv.Itoa(pr.Number)
	cp := pr
	s.prs[key] = &cp
	if pr.Number >= s.nextNum[pr.Repo] {
		s.nextNum[pr.Repo] = pr.Number + 1
	}
}

// Comments returns all comments posted so far, for test assertions.
func (s *Server) Comments() []Comment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Comment, len(s.comments))
	copy(out, s.comments)
	return out
}

// PR returns the current state of a seeded or created PR, for test
// assertions.
func (s *Server) PR(repo string, number int) (PR, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pr, ok := s.prs[repo+"#"+strconv.Itoa(number)]
	if !ok {
		return PR{}, false
	}
	return *pr, true
}

func (s *Server) route(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodGet && refPattern.MatchString(r.URL.Path):
		s.listPulls(w, r)
	case r.Method == http.MethodPost && refPattern.MatchString(r.URL.Path):
		s.createPull(w, r)
	case r.Method == http.MethodPatch && prNumberPattern.MatchString(r.URL.Path):
		s.editPull(w, r)
	case r.Method == http.MethodPut && mergePattern.MatchString(r.URL.Path):
		s.mergePull(w, r)
	case r.Method == http.MethodPost && labelsPattern.MatchString(r.URL.Path):
		s.addLabels(w, r)
	case r.Method == http.MethodDelete && labelPattern.MatchString(r.URL.Path):
		s.removeLabel(w, r)
	case r.Method == http.MethodPost && commentsPattern.MatchString(r.URL.Path):
		s.createComment(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) listPulls(w http.ResponseWriter, r *http.Request) {
	m := refPattern.FindStringSubmatch(r.URL.Path)
	repo := m[1]
	head := r.URL.Query().Get("head")
	state := r.URL.Query().Get("state")

	s.mu.Lock()
	defer s.mu.Unlock()

	var matches []map[string]any
	for _, pr := range s.prs {
		if pr.Repo != repo {
			continue
		}
		if state != "" && pr.State != state {
			continue
		}
		if head != "" && pr.Head != head {
			continue
		}
		matches = append(matches, prJSON(pr))
	}
	writeJSON(w, http.StatusOK, matches)
}

func (s *Server) createPull(w http.ResponseWriter, r *http.Request) {
	m := refPattern.FindStringSubmatch(r.URL.Path)
	repo := m[1]

	var body struct {
		Title string `json:"title"`
		Head  string `json:"head"`
		Body  string `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	number := s.nextNum[repo]
	if number == 0 {
		number = 1
	}
	s.nextNum[repo] = number + 1
	pr := &PR{Number: number, Repo: repo, Title: body.Title, Head: body.Head, Body: body.Body, State: "open"}
	s.prs[repo+"#"+strconv.Itoa(number)] = pr
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, prJSON(pr))
}

func (s *Server) editPull(w http.ResponseWriter, r *http.Request) {
	m := prNumberPattern.FindStringSubmatch(r.URL.Path)
	repo := m[1]
	number, _ := strconv.Atoi(m[2])

	var body struct {
		State *string `json:"state"`
		Title *string `json:"title"`
		Body  *string `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	pr, ok := s.prs[repo+"#"+strconv.Itoa(number)]
	if !ok {
		s.mu.Unlock()
		http.NotFound(w, r)
		return
	}
	if body.State != nil {
		pr.State = *body.State
	}
	if body.Title != nil {
		pr.Title = *body.Title
	}
	if body.Body != nil {
		pr.Body = *body.Body
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, prJSON(pr))
}

func (s *Server) mergePull(w http.ResponseWriter, r *http.Request) {
	m := mergePattern.FindStringSubmatch(r.URL.Path)
	repo := m[1]
	number, _ := strconv.Atoi(m[2])

	s.mu.Lock()
	pr, ok := s.prs[repo+"#"+strconv.Itoa(number)]
	if !ok {
		s.mu.Unlock()
		http.NotFound(w, r)
		return
	}
	pr.Merged = true
	pr.State = "closed"
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"merged": true, "message": "merged"})
}

func (s *Server) addLabels(w http.ResponseWriter, r *http.Request) {
	m := labelsPattern.FindStringSubmatch(r.URL.Path)
	repo := m[1]
	number, _ := strconv.Atoi(m[2])

	var labels []string
	if err := json.NewDecoder(r.Body).Decode(&labels); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	pr, ok := s.prs[repo+"#"+strconv.Itoa(number)]
	if ok {
		pr.Labels = append(pr.Labels, labels...)
	}
	s.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	out := make([]map[string]any, 0, len(labels))
	for _, l := range labels {
		out = append(out, map[string]any{"name": l})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) removeLabel(w http.ResponseWriter, r *http.Request) {
	m := labelPattern.FindStringSubmatch(r.URL.Path)
	repo := m[1]
	number, _ := strconv.Atoi(m[2])
	label := m[3]

	s.mu.Lock()
	pr, ok := s.prs[repo+"#"+strconv.Itoa(number)]
	if ok {
		kept := pr.Labels[:0]
		for _, l := range pr.Labels {
			if l != label {
				kept = append(kept, l)
			}
		}
		pr.Labels = kept
	}
	s.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (s *Server) createComment(w http.ResponseWriter, r *http.Request) {
	m := commentsPattern.FindStringSubmatch(r.URL.Path)
	repo := m[1]
	number, _ := strconv.Atoi(m[2])

	var body struct {
		Body string `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.comments = append(s.comments, Comment{Repo: repo, Number: number, Body: body.Body})
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, map[string]any{"id": 1})
}

func prJSON(pr *PR) map[string]any {
	return map[string]any{
		"number": pr.Number,
		"title":  pr.Title,
		"body":   pr.Body,
		"state":  pr.State,
		"merged": pr.Merged,
		"head":   map[string]any{"label": pr.Head, "ref": strings.TrimPrefix(pr.Head, pr.Repo+":")},
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		panic(fmt.Sprintf("githubtest: encode response: %v", err))
	}
}
