package gitshell

import (
	"fmt"
	"strings"
)

// Identity is the committer/author identity forced onto every commit made
// through a Client, unless a call provides its own override env.
type Identity struct {
	Name  string
	Email string
}

func (id Identity) env() []string {
	return []string{
		"GIT_AUTHOR_NAME=" + id.Name,
		"GIT_AUTHOR_EMAIL=" + id.Email,
		"GIT_COMMITTER_NAME=" + id.Name,
		"GIT_COMMITTER_EMAIL=" + id.Email,
	}
}

// Client scopes git invocations to one working directory, forcing the
// configured author/committer identity onto every Run invocation
// (RunWithAuthor substitutes the given identity). No
// concurrent use of the same Client's working directory is permitted;
// that invariant is enforced by the engine's single run-mutex, not here.
type Client struct {
	runner   CommandRunner
	dir      string
	identity Identity
}

func NewClient(runner CommandRunner, dir string, identity Identity) *Client {
	return &Client{runner: runner, dir: dir, identity: identity}
}

func (c *Client) Dir() string { return c.dir }

// Run executes git with the configured identity forced into the
// environment. On non-zero exit it returns a *GitFailure.
func (c *Client) Run(args ...string) (string, error) {
	return c.run(c.identity.env(), args...)
}

// RunWithAuthor runs git with the commit's own author/committer identity
// instead of the configured one, for BranchBuilder's per-commit replay.
func (c *Client) RunWithAuthor(author Identity, args ...string) (string, error) {
	return c.run(author.env(), args...)
}

func (c *Client) run(env []string, args ...string) (string, error) {
	out, err := c.runner.RunInDir(c.dir, env, "git", args...)
	if err != nil {
		return string(out), &GitFailure{
			Dir:    c.dir,
			Name:   "git",
			Args:   args,
			Output: string(out),
			Err:    err,
		}
	}
	return string(out), nil
}

// ParseAuthor splits "Name <email>" into an Identity, as produced by
// `git show -s --format=%an <%ae>` equivalents.
func ParseAuthor(nameEmail string) (Identity, error) {
	idx := strings.LastIndexByte(nameEmail, '<')
	end := strings.LastIndexByte(nameEmail, '>')
	if idx < 0 || end < idx {
		return Identity{}, fmt.Errorf("malformed author %q, expected \"Name <email>\"", nameEmail)
	}
	name := strings.TrimSpace(nameEmail[:idx])
	email := nameEmail[idx+1 : end]
	return Identity{Name: name, Email: email}, nil
}
