package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/servo/upstream-wpt-sync-webhook/internal/gitshell"
)

// BranchBuilder creates the per-PR branch on the local upstream clone and
// applies extracted commits.
type BranchBuilder struct {
	Upstream          *gitshell.Client
	UpstreamablePath  string
	DownstreamFork    RepoRef
	ForkUsername      string
	ForkToken         string
	SuppressForcePush bool
}

// Build creates branch "servo_export_<n>" for downstream PR number n,
// applies each commit's diff in the order given (newest-first, not
// reversed — see CommitExtractor.Extract), commits with the recorded
// author/message, then force-pushes unless suppressed. The local branch
// is always deleted and HEAD returned to master in a guaranteed cleanup
// step, whose own failures are swallowed.
func (b *BranchBuilder) Build(n int, commits []UpstreamableCommit) (branch BranchRef, err error) {
	name := BranchName(n)
	branch = BranchRef{Repo: b.DownstreamFork, Name: name}

	defer b.cleanup()

	if _, err := b.Upstream.Run("checkout", "-b", name); err != nil {
		return BranchRef{}, fmt.Errorf("create branch %s: %w", name, err)
	}

	strip := strings.Count(b.UpstreamablePath, "/") + 1

	for i, commit := range commits {
		patchPath, werr := b.writeScratchPatch(i, commit.Diff)
		if werr != nil {
			return BranchRef{}, werr
		}

		_, applyErr := b.Upstream.Run("apply", patchPath, "-p"+strconv.Itoa(strip))

		// Remove the scratch file before staging, whether or not apply
		// succeeded, so it is never accidentally committed.
		os.Remove(patchPath)

		if applyErr != nil {
			return BranchRef{}, fmt.Errorf("apply commit %d/%d: %w", i+1, len(commits), applyErr)
		}

		if _, err := b.Upstream.Run("add", "-A"); err != nil {
			return BranchRef{}, fmt.Errorf("stage commit %d/%d: %w", i+1, len(commits), err)
		}
		if _, err := b.Upstream.RunWithAuthor(commit.Author, "commit",
			"--author", commit.Author.Name+" <"+commit.Author.Email+">",
			"-m", commit.Message); err != nil {
			return BranchRef{}, fmt.Errorf("commit %d/%d: %w", i+1, len(commits), err)
		}
	}

	if !b.SuppressForcePush {
		remote := remoteURL(b.DownstreamFork, b.ForkUsername, b.ForkToken)
		if _, err := b.Upstream.Run("push", "--force", remote, name); err != nil {
			return BranchRef{}, fmt.Errorf("force-push %s: %w", name, err)
		}
	}

	return branch, nil
}

// cleanup checks out master and deletes the local per-PR branch. It runs
// unconditionally (success and failure) and swallows its own errors: a
// stray leftover local branch is not worth failing an otherwise
// successful run over.
func (b *BranchBuilder) cleanup() {
	_, _ = b.Upstream.Run("checkout", "master")
	for _, branch := range b.currentServoExportBranches() {
		_, _ = b.Upstream.Run("branch", "-D", branch)
	}
}

func (b *BranchBuilder) currentServoExportBranches() []string {
	out, err := b.Upstream.Run("branch", "--list", "servo_export_*", "--format=%(refname:short)")
	if err != nil {
		return nil
	}
	var names []string
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line != "" {
			names = append(names, line)
		}
	}
	return names
}

func (b *BranchBuilder) writeScratchPatch(index int, diff string) (string, error) {
	path := filepath.Join(b.Upstream.Dir(), fmt.Sprintf(".servo-export-%d.patch", index))
	if err := os.WriteFile(path, []byte(diff), 0o600); err != nil {
		return "", fmt.Errorf("write scratch patch: %w", err)
	}
	return path, nil
}
