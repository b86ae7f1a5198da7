package engine

// PlanBuilder builds the ordered step list for one webhook event. It is
// the one place in the engine that performs a git operation
// (IsUpstreamable's restricted diff) before any step runs.
type PlanBuilder struct {
	DownstreamRepo RepoRef
	UpstreamRepo   RepoRef
	DownstreamFork RepoRef

	Extractor *CommitExtractor
	Builder   *BranchBuilder
	GitHub    GitHubClient

	ForkUsername      string
	ForkToken         string
	SuppressForcePush bool
}

// Build dispatches on ev.Action and returns the ordered steps for the
// run. downstreamPR is always known (derived from the payload);
// upstreamPR is nil when none was found for the deterministic branch
// name.
func (b *PlanBuilder) Build(ev Event, downstreamPR PRRef, upstreamPR *PRRef) ([]Step, error) {
	switch ev.Action {
	case "opened", "synchronize", "reopened":
		return b.contentsHandler(ev, downstreamPR, upstreamPR)
	case "edited":
		if ev.TitleEdited || ev.BodyEdited {
			return b.editedHandler(ev, downstreamPR, upstreamPR), nil
		}
		return nil, nil
	case "closed":
		return b.closedHandler(ev, downstreamPR, upstreamPR), nil
	default:
		return nil, nil
	}
}

func (b *PlanBuilder) contentsHandler(ev Event, downstreamPR PRRef, upstreamPR *PRRef) ([]Step, error) {
	isUpstreamable, err := b.Extractor.IsUpstreamable(ev.Commits)
	if err != nil {
		return nil, err
	}

	switch {
	case upstreamPR != nil && isUpstreamable:
		title, body := ev.Title, ev.Body
		branchStep, _ := b.createOrUpdateBranchStep(ev, downstreamPR, upstreamPR)
		return []Step{
			&ChangePRStep{PR: *upstreamPR, DownstreamPR: downstreamPR, State: "opened", Title: &title, Body: &body, GitHub: b.GitHub},
			branchStep,
			&CommentStep{PR: downstreamPR, DownstreamPR: downstreamPR, UpstreamPR: upstreamPR, Template: TemplateUpdatedExistingUpstreamPR, GitHub: b.GitHub},
		}, nil

	case upstreamPR != nil && !isUpstreamable:
		closed := "closed"
		return []Step{
			&CommentStep{PR: *upstreamPR, DownstreamPR: downstreamPR, UpstreamPR: upstreamPR, Template: TemplateNoUpstreamableChangesComment, GitHub: b.GitHub},
			&ChangePRStep{PR: *upstreamPR, DownstreamPR: downstreamPR, State: closed, GitHub: b.GitHub},
			b.removeBranchStep(downstreamPR.Number),
			&CommentStep{PR: downstreamPR, DownstreamPR: downstreamPR, UpstreamPR: upstreamPR, Template: TemplateClosingExistingUpstreamPR, GitHub: b.GitHub},
		}, nil

	case upstreamPR == nil && isUpstreamable:
		branchStep, branchCell := b.createOrUpdateBranchStep(ev, downstreamPR, nil)
		resultCell := NewCell[PRRef]()
		return []Step{
			branchStep,
			&OpenPRStep{
				SourceBranch: branchCell,
				TargetRepo:   b.UpstreamRepo,
				DownstreamPR: downstreamPR,
				Title:        ev.Title,
				Body:         ev.Body,
				Labels:       []string{LabelServoExport, LabelDoNotMergeYet},
				ResultCell:   resultCell,
				GitHub:       b.GitHub,
			},
			&CommentStep{PR: downstreamPR, DownstreamPR: downstreamPR, UpstreamPRCell: resultCell, Template: TemplateOpenedNewUpstreamPR, GitHub: b.GitHub},
		}, nil

	default:
		return nil, nil
	}
}

func (b *PlanBuilder) editedHandler(ev Event, downstreamPR PRRef, upstreamPR *PRRef) []Step {
	if upstreamPR == nil {
		return nil
	}
	title, body := ev.Title, ev.Body
	open := "open"
	return []Step{
		&ChangePRStep{PR: *upstreamPR, DownstreamPR: downstreamPR, State: open, Title: &title, Body: &body, GitHub: b.GitHub},
		&CommentStep{PR: downstreamPR, DownstreamPR: downstreamPR, UpstreamPR: upstreamPR, Template: TemplateUpdatedTitleInExistingUpstreamPR, GitHub: b.GitHub},
	}
}

func (b *PlanBuilder) closedHandler(ev Event, downstreamPR PRRef, upstreamPR *PRRef) []Step {
	if upstreamPR == nil {
		return nil
	}
	if ev.Merged {
		return []Step{
			&MergePRStep{UpstreamPR: *upstreamPR, DownstreamPR: downstreamPR, LabelsToRemove: []string{LabelDoNotMergeYet}, GitHub: b.GitHub},
			b.removeBranchStep(downstreamPR.Number),
		}
	}
	closed := "closed"
	return []Step{
		&ChangePRStep{PR: *upstreamPR, DownstreamPR: downstreamPR, State: closed, GitHub: b.GitHub},
		b.removeBranchStep(downstreamPR.Number),
	}
}

func (b *PlanBuilder) createOrUpdateBranchStep(ev Event, downstreamPR PRRef, upstreamPR *PRRef) (*CreateOrUpdateBranchForPRStep, *Cell[BranchRef]) {
	cell := NewCell[BranchRef]()
	return &CreateOrUpdateBranchForPRStep{
		Commits:      ev.Commits,
		DownstreamPR: downstreamPR,
		UpstreamPR:   upstreamPR,
		Extractor:    b.Extractor,
		Builder:      b.Builder,
		GitHub:       b.GitHub,
		BranchCell:   cell,
	}, cell
}

func (b *PlanBuilder) removeBranchStep(downstreamPRNumber int) *RemoveBranchForPRStep {
	return &RemoveBranchForPRStep{
		Branch:            BranchRef{Repo: b.DownstreamFork, Name: BranchName(downstreamPRNumber)},
		Upstream:          b.Builder.Upstream,
		ForkUsername:      b.ForkUsername,
		ForkToken:         b.ForkToken,
		SuppressForcePush: b.SuppressForcePush,
	}
}
