package gitshell

import (
	"errors"
	"testing"
)

func TestRunForcesIdentityEnv(t *testing.T) {
	mock := NewMockCommandRunner()
	client := NewClient(mock, "/work/upstream", Identity{Name: "wpt-sync-bot", Email: "bot@example.com"})

	if _, err := client.Run("status"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(mock.Calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(mock.Calls))
	}
	call := mock.Calls[0]
	if call.Dir != "/work/upstream" {
		t.Errorf("dir = %q, want /work/upstream", call.Dir)
	}
	want := map[string]bool{
		"GIT_AUTHOR_NAME=wpt-sync-bot":     true,
		"GIT_AUTHOR_EMAIL=bot@example.com": true,
	}
	for _, e := range call.Env {
		delete(want, e)
	}
	if len(want) != 0 {
		t.Errorf("missing env entries: %v", want)
	}
}

func TestRunReturnsGitFailureOnError(t *testing.T) {
	mock := NewMockCommandRunner()
	mock.RunFunc = func(dir string, extraEnv []string, name string, args ...string) ([]byte, error) {
		return []byte("fatal: not a git repository"), errors.New("exit status 128")
	}
	client := NewClient(mock, "/work/upstream", Identity{Name: "a", Email: "b@c.d"})

	_, err := client.Run("status")
	if err == nil {
		t.Fatal("expected error")
	}
	var failure *GitFailure
	if !errors.As(err, &failure) {
		t.Fatalf("expected *GitFailure, got %T", err)
	}
	if failure.Output == "" {
		t.Error("expected captured output")
	}
}

func TestParseAuthor(t *testing.T) {
	id, err := ParseAuthor("Jane Doe <jane@example.com>")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id.Name != "Jane Doe" || id.Email != "jane@example.com" {
		t.Errorf("got %+v", id)
	}

	if _, err := ParseAuthor("not an author"); err == nil {
		t.Error("expected error for malformed author")
	}
}
