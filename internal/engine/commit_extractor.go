package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/servo/upstream-wpt-sync-webhook/internal/gitshell"
)

// UpstreamableCommit is an (author, message, diff) triple: a downstream
// commit whose diff restricted to the mirrored sub-tree is non-empty.
type UpstreamableCommit struct {
	Author  gitshell.Identity
	Message string
	Diff    string
}

// CommitExtractor walks the local downstream clone to find upstreamable
// commits.
type CommitExtractor struct {
	Downstream       *gitshell.Client
	UpstreamablePath string
}

// Extract lists the last n commits (n = pull_request.commits) in
// reverse-chronological order, restricts each to UpstreamablePath, and
// drops commits whose restricted diff is empty. The returned slice
// preserves extraction order: newest first. This order is deliberately
// NOT reversed downstream in BranchBuilder.Build, even though it means
// the upstream branch ends up carrying commits in reverse chronological
// order relative to the downstream PR — re-implementations must match
// this to keep observable step outputs stable.
func (e *CommitExtractor) Extract(n int) ([]UpstreamableCommit, error) {
	if n <= 0 {
		return nil, nil
	}

	hashes, err := e.commitHashes(n)
	if err != nil {
		return nil, err
	}

	var commits []UpstreamableCommit
	for _, hash := range hashes {
		diff, err := e.restrictedDiff(hash)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(diff) == "" {
			continue
		}

		authorLine, err := e.show(hash, "%an <%ae>")
		if err != nil {
			return nil, err
		}
		author, err := gitshell.ParseAuthor(strings.TrimSpace(authorLine))
		if err != nil {
			return nil, fmt.Errorf("parse author for %s: %w", hash, err)
		}

		message, err := e.show(hash, "%B")
		if err != nil {
			return nil, err
		}

		commits = append(commits, UpstreamableCommit{
			Author:  author,
			Message: message,
			Diff:    diff,
		})
	}
	return commits, nil
}

// IsUpstreamable reports whether any of the last n commits touch
// UpstreamablePath: `git diff HEAD~n -- <prefix>` is non-empty.
func (e *CommitExtractor) IsUpstreamable(n int) (bool, error) {
	if n <= 0 {
		return false, nil
	}
	out, err := e.Downstream.Run("diff", "HEAD~"+strconv.Itoa(n), "--", e.UpstreamablePath)
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) != "", nil
}

func (e *CommitExtractor) commitHashes(n int) ([]string, error) {
	out, err := e.Downstream.Run("log", "-n", strconv.Itoa(n), "--format=%H")
	if err != nil {
		return nil, err
	}
	var hashes []string
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line != "" {
			hashes = append(hashes, line)
		}
	}
	return hashes, nil
}

// restrictedDiff generates a diff restricted to UpstreamablePath using
// `git show --binary --format=%b <sha> -- <prefix>`; the %b format
// suppresses the commit subject from the diff body while keeping patch
// binary chunks intact.
func (e *CommitExtractor) restrictedDiff(hash string) (string, error) {
	return e.Downstream.Run("show", "--binary", "--format=%b", hash, "--", e.UpstreamablePath)
}

func (e *CommitExtractor) show(hash, format string) (string, error) {
	return e.Downstream.Run("show", "-s", "--format="+format, hash)
}
