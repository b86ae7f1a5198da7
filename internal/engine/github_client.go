package engine

import "context"

// GitHubClient is the subset of GitHub REST operations the step
// taxonomy needs. *githubapi.Client satisfies this interface with
// identical method signatures; tests substitute a fake or the
// githubtest mock server through this seam instead.
type GitHubClient interface {
	FindOpenPRForHead(ctx context.Context, owner, repo, head string) (number int, found bool, err error)
	OpenPR(ctx context.Context, owner, repo, title, head, body string) (number int, err error)
	ChangePR(ctx context.Context, owner, repo string, number int, state, title, body *string) error
	MergePR(ctx context.Context, owner, repo string, number int) error
	AddLabels(ctx context.Context, owner, repo string, number int, labels []string) error
	RemoveLabel(ctx context.Context, owner, repo string, number int, label string) error
	CreateComment(ctx context.Context, owner, repo string, number int, body string) error
}
