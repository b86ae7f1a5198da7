package engine

import (
	"context"
	"fmt"

	"github.com/servo/upstream-wpt-sync-webhook/internal/gitshell"
)

// Step is one atomic side-effecting action in a plan. Run returns the
// step's post-run observable name (tests match this as an exact string
// or a prefix followed by ":"-delimited details), an optional sub-plan
// that replaces the remainder of the runner's queue, and an error that
// aborts the whole run when non-nil. The two locally-recovered failure
// sites (CreateOrUpdateBranchForPRStep, MergePRStep) return a non-nil
// replace with a nil error; every other failure returns a non-nil error
// with a nil replace, so it propagates and aborts the run.
type Step interface {
	Run(ctx context.Context) (name string, replace []Step, err error)
}

// CreateOrUpdateBranchForPRStep extracts upstreamable commits, builds
// and force-pushes the per-PR branch, and resolves the branch producer
// cell for a later OpenPRStep.
type CreateOrUpdateBranchForPRStep struct {
	Commits      int
	DownstreamPR PRRef
	UpstreamPR   *PRRef // nil if no upstream PR exists yet

	Extractor *CommitExtractor
	Builder   *BranchBuilder
	GitHub    GitHubClient

	// BranchCell is resolved to the built branch on success, read by a
	// later OpenPRStep in the same plan when no upstream PR exists yet.
	// Nil when nothing in the plan needs to read it.
	BranchCell *Cell[BranchRef]
}

func (s *CreateOrUpdateBranchForPRStep) Run(ctx context.Context) (string, []Step, error) {
	commits, err := s.Extractor.Extract(s.Commits)
	if err == nil {
		var branch BranchRef
		branch, err = s.Builder.Build(s.DownstreamPR.Number, commits)
		if err == nil {
			if s.BranchCell != nil {
				s.BranchCell.Resolve(branch)
			}
			return fmt.Sprintf("CreateOrUpdateBranchForPRStep:%d:%s", len(commits), branch), nil, nil
		}
	}

	// A patch-apply failure is recovered locally with a compensating
	// sub-plan that replaces the rest of the queue, not reported as a
	// run failure.
	replace := []Step{
		&CommentStep{
			PR:           s.DownstreamPR,
			DownstreamPR: s.DownstreamPR,
			UpstreamPR:   s.UpstreamPR,
			Template:     TemplateCouldNotApplyChangesDownstreamComment,
			GitHub:       s.GitHub,
		},
	}
	if s.UpstreamPR != nil {
		replace = append(replace, &CommentStep{
			PR:           *s.UpstreamPR,
			DownstreamPR: s.DownstreamPR,
			UpstreamPR:   s.UpstreamPR,
			Template:     TemplateCouldNotApplyChangesUpstreamComment,
			GitHub:       s.GitHub,
		})
	}
	return "CreateOrUpdateBranchForPRStep", replace, nil
}

// OpenPRStep opens the upstream PR from the built branch, binds the
// run's upstream_pr slot, and labels the new PR.
type OpenPRStep struct {
	SourceBranch *Cell[BranchRef]
	TargetRepo   RepoRef
	DownstreamPR PRRef
	Title        string
	Body         string
	Labels       []string

	// UpstreamPRSlot is the run's upstream_pr slot. OpenPRStep asserts
	// it was previously empty and binds it.
	UpstreamPRSlot *PRRef
	ResultCell     *Cell[PRRef]

	GitHub GitHubClient
}

func (s *OpenPRStep) Run(ctx context.Context) (string, []Step, error) {
	branch := s.SourceBranch.Get()
	head := branch.HeadRef(s.TargetRepo.Org)
	body := RewriteBody(s.Body, s.DownstreamPR)

	number, err := s.GitHub.OpenPR(ctx, s.TargetRepo.Org, s.TargetRepo.Name, s.Title, head, body)
	if err != nil {
		return fmt.Sprintf("OpenPRStep:%s", branch), nil, fmt.Errorf("open PR from %s: %w", branch, err)
	}
	pr := PRRef{Repo: s.TargetRepo, Number: number}
	name := fmt.Sprintf("OpenPRStep:%s→%s", branch, pr)

	if s.UpstreamPRSlot != nil && *s.UpstreamPRSlot != (PRRef{}) {
		panic("engine: OpenPRStep: run's upstream_pr slot was already bound")
	}

	if len(s.Labels) > 0 {
		if err := s.GitHub.AddLabels(ctx, s.TargetRepo.Org, s.TargetRepo.Name, number, s.Labels); err != nil {
			return name, nil, fmt.Errorf("label new PR %s: %w", pr, err)
		}
	}

	if s.UpstreamPRSlot != nil {
		*s.UpstreamPRSlot = pr
	}
	if s.ResultCell != nil {
		s.ResultCell.Resolve(pr)
	}
	return name, nil, nil
}

// ChangePRStep patches state and optionally title/body of a PR. Title
// and Body are nil when the corresponding field should not be patched.
type ChangePRStep struct {
	PR           PRRef
	DownstreamPR PRRef
	State        string
	Title        *string
	Body         *string

	GitHub GitHubClient
}

func (s *ChangePRStep) Run(ctx context.Context) (string, []Step, error) {
	name := fmt.Sprintf("ChangePRStep:%s:%s", s.PR, s.State)

	var titlePtr, bodyPtr *string
	if s.Title != nil {
		title := *s.Title
		titlePtr = &title
	}
	if s.Body != nil {
		rewritten := RewriteBody(*s.Body, s.DownstreamPR)
		bodyPtr = &rewritten
	}
	if titlePtr != nil || bodyPtr != nil {
		title := ""
		if titlePtr != nil {
			title = *titlePtr
		}
		body := ""
		if bodyPtr != nil {
			body = *bodyPtr
		}
		name = fmt.Sprintf("%s:%s:%s", name, title, bodyDetail(body))
	}

	state := s.State
	if err := s.GitHub.ChangePR(ctx, s.PR.Repo.Org, s.PR.Repo.Name, s.PR.Number, &state, titlePtr, bodyPtr); err != nil {
		return name, nil, fmt.Errorf("change PR %s: %w", s.PR, err)
	}
	return name, nil, nil
}

// bodyDetailMaxPrefix bounds the body-prefix portion of a ChangePRStep's
// observable detail suffix so a long PR description doesn't blow up
// step-name-based test assertions.
const bodyDetailMaxPrefix = 40

// bodyDetail renders a body as "<prefix>[<total length>]" for a step's
// observable name.
func bodyDetail(body string) string {
	runes := []rune(body)
	prefix := body
	if len(runes) > bodyDetailMaxPrefix {
		prefix = string(runes[:bodyDetailMaxPrefix])
	}
	return fmt.Sprintf("%s[%d]", prefix, len(body))
}

// MergePRStep removes the supplied labels, then attempts a rebase
// merge.
type MergePRStep struct {
	UpstreamPR     PRRef
	DownstreamPR   PRRef
	LabelsToRemove []string

	GitHub GitHubClient
}

func (s *MergePRStep) Run(ctx context.Context) (string, []Step, error) {
	for _, label := range s.LabelsToRemove {
		// Label removal for a label that's already absent is not
		// fatal; RemoveLabel itself treats 404 as success.
		_ = s.GitHub.RemoveLabel(ctx, s.UpstreamPR.Repo.Org, s.UpstreamPR.Repo.Name, s.UpstreamPR.Number, label)
	}

	name := fmt.Sprintf("MergePRStep:%s", s.UpstreamPR)
	err := s.GitHub.MergePR(ctx, s.UpstreamPR.Repo.Org, s.UpstreamPR.Repo.Name, s.UpstreamPR.Number)
	if err == nil {
		return name, nil, nil
	}

	// A merge failure is recovered locally rather than bubbled up.
	_ = s.GitHub.AddLabels(ctx, s.UpstreamPR.Repo.Org, s.UpstreamPR.Repo.Name, s.UpstreamPR.Number, []string{LabelStaleServoExport})
	upstream := s.UpstreamPR
	replace := []Step{
		&CommentStep{
			PR:           s.UpstreamPR,
			DownstreamPR: s.DownstreamPR,
			UpstreamPR:   &upstream,
			Template:     TemplateCouldNotMergeChangesUpstreamComment,
			GitHub:       s.GitHub,
		},
		&CommentStep{
			PR:           s.DownstreamPR,
			DownstreamPR: s.DownstreamPR,
			UpstreamPR:   &upstream,
			Template:     TemplateCouldNotMergeChangesDownstreamComment,
			GitHub:       s.GitHub,
		},
	}
	return name, replace, nil
}

// CommentStep substitutes template placeholders and posts the result as
// an issue comment on the given PR.
type CommentStep struct {
	PR           PRRef
	DownstreamPR PRRef
	UpstreamPR   *PRRef

	// UpstreamPRCell, when set, is read instead of UpstreamPR: the
	// OPENED_NEW_UPSTREAM_PR comment fires after an OpenPRStep earlier
	// in the same plan, so the PR it references isn't known until that
	// step resolves its ResultCell.
	UpstreamPRCell *Cell[PRRef]

	Template string

	GitHub GitHubClient
}

func (s *CommentStep) Run(ctx context.Context) (string, []Step, error) {
	upstreamPR := s.UpstreamPR
	if s.UpstreamPRCell != nil {
		pr := s.UpstreamPRCell.Get()
		upstreamPR = &pr
	}

	rendered := RenderTemplate(s.Template, upstreamPR, s.DownstreamPR)
	name := fmt.Sprintf("CommentStep:%s:%s", s.PR, rendered)
	if err := s.GitHub.CreateComment(ctx, s.PR.Repo.Org, s.PR.Repo.Name, s.PR.Number, rendered); err != nil {
		return name, nil, fmt.Errorf("comment on %s: %w", s.PR, err)
	}
	return name, nil, nil
}

// RemoveBranchForPRStep deletes the per-PR branch from the downstream
// fork. Idempotent and non-fatal on failure: a non-existent branch is
// not an error.
type RemoveBranchForPRStep struct {
	Branch            BranchRef
	Upstream          *gitshell.Client
	ForkUsername      string
	ForkToken         string
	SuppressForcePush bool
}

func (s *RemoveBranchForPRStep) Run(ctx context.Context) (string, []Step, error) {
	name := fmt.Sprintf("RemoveBranchForPRStep:%s", s.Branch)
	if s.SuppressForcePush {
		return name, nil, nil
	}
	remote := remoteURL(s.Branch.Repo, s.ForkUsername, s.ForkToken)
	_, _ = s.Upstream.Run("push", remote, "--delete", s.Branch.Name)
	return name, nil, nil
}
