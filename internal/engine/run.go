package engine

import (
	"context"
	"fmt"
	"sync"
)

// Engine is the entry point of the sync service: it normalizes an
// incoming webhook event, discovers any existing upstream PR, builds a
// plan, and runs it. Engine holds no per-run mutable state beyond the
// mutex below; a Run is created fresh for each HandleEvent call and
// discarded on completion.
type Engine struct {
	DownstreamRepo RepoRef
	UpstreamRepo   RepoRef
	DownstreamFork RepoRef

	GitHub    GitHubClient
	Extractor *CommitExtractor
	Builder   *BranchBuilder

	ForkUsername      string
	ForkToken         string
	SuppressForcePush bool

	Observer Observer

	// mu serializes runs: at most one run may hold the upstream clone at
	// a time, since GitClient forbids concurrent use of the same working
	// directory. The HTTP front end may dispatch events concurrently;
	// this mutex is the single-writer fence that makes that safe.
	mu sync.Mutex
}

// HandleEvent normalizes the payload, fast-drops unhandled events,
// discovers any existing upstream PR, builds a plan, and runs it. The
// boolean return is the value the HTTP front end translates to 204
// (true) or 500 (false); a false return always carries a non-nil error
// to log.
//
// Fast-drop runs unlocked since it touches neither clone; only discovery
// through the step runner holds the lock, so the (cheap,
// side-effect-free) drop path isn't serialized behind in-flight runs.
func (e *Engine) HandleEvent(ctx context.Context, payload []byte) (bool, error) {
	ev, hasPullRequest, err := ParseEvent(payload)
	if err != nil {
		return false, fmt.Errorf("parse webhook payload: %w", err)
	}
	if !hasPullRequest || ev.ShouldDrop() {
		return true, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	downstreamPR := PRRef{Repo: e.DownstreamRepo, Number: ev.Number}

	upstreamPR, err := e.findUpstreamPR(ctx, ev.Number)
	if err != nil {
		return false, fmt.Errorf("discover upstream PR for %s: %w", downstreamPR, err)
	}

	planBuilder := &PlanBuilder{
		DownstreamRepo:    e.DownstreamRepo,
		UpstreamRepo:      e.UpstreamRepo,
		DownstreamFork:    e.DownstreamFork,
		Extractor:         e.Extractor,
		Builder:           e.Builder,
		GitHub:            e.GitHub,
		ForkUsername:      e.ForkUsername,
		ForkToken:         e.ForkToken,
		SuppressForcePush: e.SuppressForcePush,
	}
	steps, err := planBuilder.Build(ev, downstreamPR, upstreamPR)
	if err != nil {
		return false, fmt.Errorf("build plan for %s: %w", downstreamPR, err)
	}

	runner := &Runner{Observer: e.Observer}
	if err := runner.Run(ctx, steps); err != nil {
		return false, fmt.Errorf("run plan for %s: %w", downstreamPR, err)
	}
	return true, nil
}

// findUpstreamPR rediscovers the upstream PR bound to a downstream PR
// number by querying for an open PR whose head is the deterministic
// branch name on the downstream fork. There is no persistent mapping;
// this query is the sole source of truth on every event.
func (e *Engine) findUpstreamPR(ctx context.Context, downstreamPRNumber int) (*PRRef, error) {
	branch := BranchRef{Repo: e.DownstreamFork, Name: BranchName(downstreamPRNumber)}
	head := branch.HeadRef(e.UpstreamRepo.Org)

	number, found, err := e.GitHub.FindOpenPRForHead(ctx, e.UpstreamRepo.Org, e.UpstreamRepo.Name, head)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	pr := PRRef{Repo: e.UpstreamRepo, Number: number}
	return &pr, nil
}
