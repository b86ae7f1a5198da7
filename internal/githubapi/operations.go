package githubapi

import (
	"context"
	"fmt"

	gh "github.com/google/go-github/v66/github"
)

// FindOpenPRForHead implements "GET repos/{repo}/pulls?head={org:branch}
// &base=master&state=open". head must already be in the "<branch>" or
// "<org>:<branch>" form per the head-reference convention. It returns
// the first matching PR's number, or found=false.
func (c *Client) FindOpenPRForHead(ctx context.Context, owner, repo, head string) (number int, found bool, err error) {
	opts := &gh.PullRequestListOptions{
		Head:  head,
		Base:  "master",
		State: "open",
	}
	prs, _, err := c.gh.PullRequests.List(ctx, owner, repo, opts)
	if err != nil {
		return 0, false, fmt.Errorf("list pulls for %s/%s head=%s: %w", owner, repo, head, err)
	}
	if len(prs) == 0 {
		return 0, false, nil
	}
	return prs[0].GetNumber(), true, nil
}

// OpenPR implements "POST repos/{repo}/pulls" with maintainer_can_modify
// forced false.
func (c *Client) OpenPR(ctx context.Context, owner, repo, title, head, body string) (number int, err error) {
	req := &gh.NewPullRequest{
		Title:               gh.String(title),
		Head:                gh.String(head),
		Base:                gh.String("master"),
		Body:                gh.String(body),
		MaintainerCanModify: gh.Bool(false),
	}
	pr, _, err := c.gh.PullRequests.Create(ctx, owner, repo, req)
	if err != nil {
		return 0, fmt.Errorf("open PR on %s/%s from %s: %w", owner, repo, head, err)
	}
	return pr.GetNumber(), nil
}

// ChangePR implements "PATCH repos/{repo}/pulls/{n}" with optional state,
// title, body. Nil fields are omitted from the request.
func (c *Client) ChangePR(ctx context.Context, owner, repo string, number int, state, title, body *string) error {
	req := &gh.PullRequest{}
	if state != nil {
		req.State = state
	}
	if title != nil {
		req.Title = title
	}
	if body != nil {
		req.Body = body
	}
	if _, _, err := c.gh.PullRequests.Edit(ctx, owner, repo, number, req); err != nil {
		return fmt.Errorf("change PR %s/%s#%d: %w", owner, repo, number, err)
	}
	return nil
}

// MergePR implements "PUT repos/{repo}/pulls/{n}/merge" with the rebase
// merge method.
func (c *Client) MergePR(ctx context.Context, owner, repo string, number int) error {
	opts := &gh.PullRequestOptions{MergeMethod: "rebase"}
	result, _, err := c.gh.PullRequests.Merge(ctx, owner, repo, number, "", opts)
	if err != nil {
		return fmt.Errorf("merge PR %s/%s#%d: %w", owner, repo, number, err)
	}
	if result != nil && !result.GetMerged() {
		return fmt.Errorf("merge PR %s/%s#%d: %s", owner, repo, number, result.GetMessage())
	}
	return nil
}

// AddLabels implements "POST repos/{repo}/issues/{n}/labels".
func (c *Client) AddLabels(ctx context.Context, owner, repo string, number int, labels []string) error {
	if len(labels) == 0 {
		return nil
	}
	if _, _, err := c.gh.Issues.AddLabelsToIssue(ctx, owner, repo, number, labels); err != nil {
		return fmt.Errorf("add labels %v to %s/%s#%d: %w", labels, owner, repo, number, err)
	}
	return nil
}

// RemoveLabel implements "DELETE repos/{repo}/issues/{n}/labels/{label}".
// A 404 (label already absent) is not an error, so re-delivered events
// that remove an already-removed label stay idempotent.
func (c *Client) RemoveLabel(ctx context.Context, owner, repo string, number int, label string) error {
	resp, err := c.gh.Issues.RemoveLabelForIssue(ctx, owner, repo, number, label)
	if err != nil {
		if resp != nil && resp.StatusCode == 404 {
			return nil
		}
		return fmt.Errorf("remove label %q from %s/%s#%d: %w", label, owner, repo, number, err)
	}
	return nil
}

// CreateComment implements "POST repos/{repo}/issues/{n}/comments".
func (c *Client) CreateComment(ctx context.Context, owner, repo string, number int, body string) error {
	comment := &gh.IssueComment{Body: gh.String(body)}
	if _, _, err := c.gh.Issues.CreateComment(ctx, owner, repo, number, comment); err != nil {
		return fmt.Errorf("comment on %s/%s#%d: %w", owner, repo, number, err)
	}
	return nil
}
