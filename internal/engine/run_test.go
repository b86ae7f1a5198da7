package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"testing"

	"github.com/servo/upstream-wpt-sync-webhook/internal/githubapi"
	"github.com/servo/upstream-wpt-sync-webhook/internal/githubapi/githubtest"
	"github.com/servo/upstream-wpt-sync-webhook/internal/gitshell"
)

var errImportantApplyFailure = errors.New("patch does not apply")

// scriptedGit returns a MockCommandRunner that answers CommitExtractor's
// and BranchBuilder's git invocations deterministically: n commits with
// hashes c0 (newest) .. c(n-1), each touching the upstreamable prefix
// (so all n are kept by Extract), `diff` reporting a non-empty diff
// unless n is 0, `branch --list` reporting servo_export_18746, and every
// other git subcommand (checkout, apply, add, commit, push, branch -D)
// succeeding with no output.
func scriptedGit(n int) *gitshell.MockCommandRunner {
	hashes := make([]string, n)
	for i := range hashes {
		hashes[i] = "c" + string(rune('0'+i))
	}
	mock := gitshell.NewMockCommandRunner()
	mock.RunFunc = func(dir string, env []string, name string, args ...string) ([]byte, error) {
		if len(args) == 0 {
			return []byte(""), nil
		}
		switch args[0] {
		case "log":
			return []byte(strings.Join(hashes, "\n") + "\n"), nil
		case "show":
			if contains(args, "--binary") {
				// restricted diff: non-empty, so every commit is kept.
				return []byte("diff --git a/f b/f\n+hi\n"), nil
			}
			hash := args[len(args)-1]
			if strings.Contains(args[2], "%an") {
				return []byte("Jane Doe <jane@example.com>\n"), nil
			}
			return []byte("Commit message for " + hash + "\n"), nil
		case "diff":
			if n == 0 {
				return []byte(""), nil
			}
			return []byte("diff --git a/f b/f\n+hi\n"), nil
		case "branch":
			if contains(args, "--list") {
				return []byte("servo_export_18746\n"), nil
			}
			return []byte(""), nil
		default:
			return []byte(""), nil
		}
	}
	return mock
}

func contains(args []string, want string) bool {
	for _, a := range args {
		if a == want {
			return true
		}
	}
	return false
}

func testEngine(t *testing.T, mock *githubtest.Server, gitMock *gitshell.MockCommandRunner, suppressForcePush bool) (*Engine, *[]string) {
	t.Helper()
	client, err := githubapi.NewClientWithHTTP(&http.Client{}, mock.URL(), "tok")
	if err != nil {
		t.Fatalf("NewClientWithHTTP: %v", err)
	}
	identity := gitshell.Identity{Name: "Servo WPT Sync Bot", Email: "wpt-sync@servo.org"}
	downstream := gitshell.NewClient(gitMock, t.TempDir(), identity)
	upstream := gitshell.NewClient(gitMock, t.TempDir(), identity)

	extractor := &CommitExtractor{Downstream: downstream, UpstreamablePath: "tests/wpt/web-platform-tests/"}
	builder := &BranchBuilder{
		Upstream:          upstream,
		UpstreamablePath:  "tests/wpt/web-platform-tests/",
		DownstreamFork:    forkRepo(),
		ForkUsername:      "servo-wpt-sync-bot",
		ForkToken:         "tok",
		SuppressForcePush: suppressForcePush,
	}

	var names []string
	eng := &Engine{
		DownstreamRepo:    RepoRef{Org: "servo", Name: "servo"},
		UpstreamRepo:      wptRepo(),
		DownstreamFork:    forkRepo(),
		GitHub:            client,
		Extractor:         extractor,
		Builder:           builder,
		ForkUsername:      "servo-wpt-sync-bot",
		ForkToken:         "tok",
		SuppressForcePush: suppressForcePush,
		Observer:          func(name string) { names = append(names, name) },
	}
	return eng, &names
}

func openedEventPayload(number, commits int) []byte {
	return []byte(`{"action":"opened","pull_request":{"number":` + itoa(number) + `,"title":"My PR","body":"Fixes things.","commits":` + itoa(commits) + `,"merged":false}}`)
}

func TestScenario1OpenedUpstreamableNoExistingUpstreamPR(t *testing.T) {
	mock := githubtest.NewServer()
	defer mock.Close()
	gitMock := scriptedGit(1)

	eng, names := testEngine(t, mock, gitMock, true)
	ok, err := eng.HandleEvent(context.Background(), openedEventPayload(18746, 1))
	if err != nil || !ok {
		t.Fatalf("HandleEvent: ok=%v err=%v", ok, err)
	}

	got := *names
	if len(got) != 3 {
		t.Fatalf("expected 3 steps, got %d: %v", len(got), got)
	}
	if !strings.HasPrefix(got[0], "CreateOrUpdateBranchForPRStep:1:servo-wpt-sync/wpt/servo_export_18746") {
		t.Errorf("step 0 = %q", got[0])
	}
	if !strings.HasPrefix(got[1], "OpenPRStep:servo-wpt-sync/wpt/servo_export_18746→wpt/wpt#") {
		t.Errorf("step 1 = %q", got[1])
	}
	upstreamRef := strings.TrimPrefix(got[1], "OpenPRStep:servo-wpt-sync/wpt/servo_export_18746→")
	wantComment := fmt.Sprintf("CommentStep:servo/servo#18746:%s", RenderTemplate(TemplateOpenedNewUpstreamPR, &PRRef{Repo: RepoRef{Org: "wpt", Name: "wpt"}, Number: mustPRNumber(t, upstreamRef)}, PRRef{Repo: RepoRef{Org: "servo", Name: "servo"}, Number: 18746}))
	if got[2] != wantComment {
		t.Errorf("step 2 = %q, want %q", got[2], wantComment)
	}
	if !strings.Contains(got[2], upstreamRef) {
		t.Errorf("step 2 = %q, does not reference newly opened upstream PR %q", got[2], upstreamRef)
	}

	comments := mock.Comments()
	if len(comments) != 1 {
		t.Fatalf("expected 1 posted comment, got %d: %v", len(comments), comments)
	}
	if !strings.Contains(comments[0].Body, upstreamRef) {
		t.Errorf("posted comment body = %q, does not reference newly opened upstream PR %q", comments[0].Body, upstreamRef)
	}
}

// mustPRNumber parses the numeric suffix of an "org/name#N" PR reference.
func mustPRNumber(t *testing.T, ref string) int {
	t.Helper()
	idx := strings.LastIndexByte(ref, '#')
	if idx < 0 {
		t.Fatalf("malformed PR reference %q", ref)
	}
	n, err := strconv.Atoi(ref[idx+1:])
	if err != nil {
		t.Fatalf("malformed PR reference %q: %v", ref, err)
	}
	return n
}

func TestScenario2ClosingExistingUpstreamPRWhenNoLongerUpstreamable(t *testing.T) {
	mock := githubtest.NewServer()
	defer mock.Close()
	mock.SeedPR(githubtest.PR{Number: 1, Repo: "wpt/wpt", Head: "servo-wpt-sync:servo_export_18746", State: "open"})

	gitMock := scriptedGit(0)
	eng, names := testEngine(t, mock, gitMock, true)

	ok, err := eng.HandleEvent(context.Background(), openedEventPayload(18746, 1))
	if err != nil || !ok {
		t.Fatalf("HandleEvent: ok=%v err=%v", ok, err)
	}

	got := *names
	if len(got) != 4 {
		t.Fatalf("expected 4 steps, got %d: %v", len(got), got)
	}
	if !strings.HasPrefix(got[0], "CommentStep:wpt/wpt#1:") {
		t.Errorf("step 0 = %q", got[0])
	}
	if got[1] != "ChangePRStep:wpt/wpt#1:closed" {
		t.Errorf("step 1 = %q", got[1])
	}
	if !strings.HasPrefix(got[2], "RemoveBranchForPRStep:servo-wpt-sync/wpt/servo_export_18746") {
		t.Errorf("step 2 = %q", got[2])
	}
	if !strings.HasPrefix(got[3], "CommentStep:servo/servo#18746:") {
		t.Errorf("step 3 = %q", got[3])
	}

	pr, _ := mock.PR("wpt/wpt", 1)
	if pr.State != "closed" {
		t.Errorf("upstream PR not closed: %+v", pr)
	}
}

func TestScenario4ClosedMergedRemovesBranch(t *testing.T) {
	mock := githubtest.NewServer()
	defer mock.Close()
	mock.SeedPR(githubtest.PR{Number: 100, Repo: "wpt/wpt", Head: "servo-wpt-sync:servo_export_19620", State: "open"})

	gitMock := scriptedGit(0)
	eng, names := testEngine(t, mock, gitMock, true)

	payload := []byte(`{"action":"closed","pull_request":{"number":19620,"title":"t","body":"b","commits":1,"merged":true}}`)
	ok, err := eng.HandleEvent(context.Background(), payload)
	if err != nil || !ok {
		t.Fatalf("HandleEvent: ok=%v err=%v", ok, err)
	}

	got := *names
	if len(got) != 2 {
		t.Fatalf("expected 2 steps, got %d: %v", len(got), got)
	}
	if got[0] != "MergePRStep:wpt/wpt#100" {
		t.Errorf("step 0 = %q", got[0])
	}
	if !strings.HasPrefix(got[1], "RemoveBranchForPRStep:servo-wpt-sync/wpt/servo_export_19620") {
		t.Errorf("step 1 = %q", got[1])
	}

	pr, _ := mock.PR("wpt/wpt", 100)
	if !pr.Merged {
		t.Errorf("PR not merged: %+v", pr)
	}
}

func TestScenario5EditedTitleAndBody(t *testing.T) {
	mock := githubtest.NewServer()
	defer mock.Close()
	mock.SeedPR(githubtest.PR{Number: 10, Repo: "wpt/wpt", Head: "servo-wpt-sync:servo_export_19620", State: "open"})

	gitMock := scriptedGit(0)
	eng, names := testEngine(t, mock, gitMock, true)

	payload := []byte(`{"action":"edited","pull_request":{"number":19620,"title":"New title","body":"New body.","commits":1,"merged":false},"changes":{"title":{}}}`)
	ok, err := eng.HandleEvent(context.Background(), payload)
	if err != nil || !ok {
		t.Fatalf("HandleEvent: ok=%v err=%v", ok, err)
	}

	got := *names
	if len(got) != 2 {
		t.Fatalf("expected 2 steps, got %d: %v", len(got), got)
	}
	if !strings.HasPrefix(got[0], "ChangePRStep:wpt/wpt#10:open:New title:") {
		t.Errorf("step 0 = %q", got[0])
	}
	if !strings.HasPrefix(got[1], "CommentStep:servo/servo#19620:") {
		t.Errorf("step 1 = %q", got[1])
	}
}

func TestScenario3ApplyFailureCompensatesBothSides(t *testing.T) {
	mock := githubtest.NewServer()
	defer mock.Close()
	mock.SeedPR(githubtest.PR{Number: 1, Repo: "wpt/wpt", Head: "servo-wpt-sync:servo_export_18746", State: "open"})

	gitMock := scriptedGit(1)
	baseRunFunc := gitMock.RunFunc
	gitMock.RunFunc = func(dir string, env []string, name string, args ...string) ([]byte, error) {
		if len(args) > 0 && args[0] == "apply" {
			return []byte("error: patch does not apply"), errImportantApplyFailure
		}
		return baseRunFunc(dir, env, name, args...)
	}

	eng, names := testEngine(t, mock, gitMock, true)
	ok, err := eng.HandleEvent(context.Background(), openedEventPayload(18746, 1))
	if err != nil || !ok {
		t.Fatalf("HandleEvent: ok=%v err=%v (ApplyFailure must be recovered locally, not bubbled up)", ok, err)
	}

	got := *names
	if len(got) != 4 {
		t.Fatalf("expected 4 steps, got %d: %v", len(got), got)
	}
	if !strings.HasPrefix(got[0], "ChangePRStep:wpt/wpt#1:opened:") {
		t.Errorf("step 0 = %q", got[0])
	}
	if got[1] != "CreateOrUpdateBranchForPRStep" {
		t.Errorf("step 1 = %q, want no detail suffix on failure", got[1])
	}
	if !strings.HasPrefix(got[2], "CommentStep:servo/servo#18746:") {
		t.Errorf("step 2 = %q", got[2])
	}
	if !strings.HasPrefix(got[3], "CommentStep:wpt/wpt#1:") {
		t.Errorf("step 3 = %q", got[3])
	}
}

func TestDropsEventsWithNoSyncToken(t *testing.T) {
	mock := githubtest.NewServer()
	defer mock.Close()
	eng, names := testEngine(t, mock, scriptedGit(0), true)

	payload := []byte(`{"action":"opened","pull_request":{"number":1,"title":"t","body":"[no-wpt-sync] skip this","commits":1,"merged":false}}`)
	ok, err := eng.HandleEvent(context.Background(), payload)
	if err != nil || !ok {
		t.Fatalf("HandleEvent: ok=%v err=%v", ok, err)
	}
	if len(*names) != 0 {
		t.Errorf("expected no steps, got %v", *names)
	}
}

func TestDropsUnhandledActions(t *testing.T) {
	mock := githubtest.NewServer()
	defer mock.Close()
	eng, names := testEngine(t, mock, scriptedGit(0), true)

	payload := []byte(`{"action":"labeled","pull_request":{"number":1,"title":"t","body":"b","commits":1,"merged":false}}`)
	ok, err := eng.HandleEvent(context.Background(), payload)
	if err != nil || !ok {
		t.Fatalf("HandleEvent: ok=%v err=%v", ok, err)
	}
	if len(*names) != 0 {
		t.Errorf("expected no steps, got %v", *names)
	}
}
