package config

import "testing"

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"SERVO_REPO", "WPT_REPO", "WPT_FORK_REPO", "SERVO_PATH", "WPT_PATH",
		"GITHUB_API_BASE", "GITHUB_TOKEN", "GITHUB_APP_ID", "GITHUB_APP_PRIVATE_KEY",
		"FORK_USERNAME", "COMMITTER_NAME", "COMMITTER_EMAIL", "UPSTREAMABLE_PATH",
		"PORT", "WEBHOOK_SECRET", "SUPPRESS_FORCE_PUSH",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadRequiresDistinctRepos(t *testing.T) {
	clearEnv(t)
	t.Setenv("SERVO_REPO", "servo/servo")
	t.Setenv("WPT_REPO", "wpt/wpt")
	t.Setenv("WPT_FORK_REPO", "servo/servo")
	t.Setenv("SERVO_PATH", "/work/servo")
	t.Setenv("WPT_PATH", "/work/wpt")
	t.Setenv("GITHUB_TOKEN", "tok")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for non-distinct repos")
	}
}

func TestLoadRejectsSameOrgFork(t *testing.T) {
	clearEnv(t)
	t.Setenv("SERVO_REPO", "servo/servo")
	t.Setenv("WPT_REPO", "wpt/wpt")
	t.Setenv("WPT_FORK_REPO", "wpt/servo-mirror")
	t.Setenv("SERVO_PATH", "/work/servo")
	t.Setenv("WPT_PATH", "/work/wpt")
	t.Setenv("GITHUB_TOKEN", "tok")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when fork org equals upstream org")
	}
}

func TestLoadRequiresAuth(t *testing.T) {
	clearEnv(t)
	t.Setenv("SERVO_REPO", "servo/servo")
	t.Setenv("WPT_REPO", "wpt/wpt")
	t.Setenv("WPT_FORK_REPO", "servo-wpt-sync/wpt")
	t.Setenv("SERVO_PATH", "/work/servo")
	t.Setenv("WPT_PATH", "/work/wpt")

	if _, err := Load(); err == nil {
		t.Fatal("expected error without GITHUB_TOKEN or app credentials")
	}
}

func TestLoadSuccess(t *testing.T) {
	clearEnv(t)
	t.Setenv("SERVO_REPO", "servo/servo")
	t.Setenv("WPT_REPO", "wpt/wpt")
	t.Setenv("WPT_FORK_REPO", "servo-wpt-sync/wpt")
	t.Setenv("SERVO_PATH", "/work/servo")
	t.Setenv("WPT_PATH", "/work/wpt")
	t.Setenv("GITHUB_TOKEN", "tok")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.CommitterName == "" || cfg.CommitterEmail == "" {
		t.Error("expected default committer identity")
	}
	if cfg.Port != 8000 {
		t.Errorf("Port = %d, want default 8000", cfg.Port)
	}
}

func TestNormalizePrivateKeyUnescapesNewlines(t *testing.T) {
	got := normalizePrivateKey(`"-----BEGIN KEY-----\nabc\n-----END KEY-----"`)
	want := "-----BEGIN KEY-----\nabc\n-----END KEY-----"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
