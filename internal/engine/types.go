// Package engine implements the synchronization engine: the plan
// builder, step taxonomy, step runner, commit extractor, and branch
// builder, in explicit Go control flow (a step returns its own
// replacement sub-plan rather than mutating a shared queue).
package engine

import "fmt"

// RepoRef identifies a GitHub repository by org and name.
type RepoRef struct {
	Org  string
	Name string
}

func (r RepoRef) String() string { return r.Org + "/" + r.Name }

// PRRef identifies one pull request.
type PRRef struct {
	Repo   RepoRef
	Number int
}

func (p PRRef) String() string { return fmt.Sprintf("%s#%d", p.Repo, p.Number) }

// BranchRef identifies a branch on a fork, in "org/repo/branch" display
// form (e.g. "servo-wpt-sync/wpt/servo_export_18746").
type BranchRef struct {
	Repo RepoRef
	Name string
}

func (b BranchRef) String() string { return b.Repo.String() + "/" + b.Name }

// HeadRef returns the value to send GitHub as a pull request's `head`
// field, applying the cross-org convention: when the branch's org
// matches targetOrg, just the branch name; otherwise
// "<branch-org>:<branch>".
func (b BranchRef) HeadRef(targetOrg string) string {
	if b.Repo.Org == targetOrg {
		return b.Name
	}
	return b.Repo.Org + ":" + b.Name
}

// ParseRepoRef splits an "org/name" string into a RepoRef.
func ParseRepoRef(s string) (RepoRef, error) {
	for i := 0; i < len(s); i++ {
		if s[i] == '/' {
			org, name := s[:i], s[i+1:]
			if org == "" || name == "" {
				break
			}
			return RepoRef{Org: org, Name: name}, nil
		}
	}
	return RepoRef{}, fmt.Errorf("invalid repo reference %q, expected org/name", s)
}
