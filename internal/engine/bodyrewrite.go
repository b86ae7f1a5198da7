package engine

import (
	"regexp"
	"strings"
)

// issueRefPattern matches a bare or org-prefixed issue reference.
// Matching only after start-of-string or whitespace means a
// fully-qualified "<org>/<repo>#N" reference is left untouched: the
// character preceding "repo#N" there is "/", not whitespace.
var issueRefPattern = regexp.MustCompile(`(^|\s)(\w*)#([1-9]\d*)`)

// RewriteBody rewrites a PR body before it is sent upstream (OpenPR,
// ChangePR with a body):
//
//  1. Replace every bare or <org>-prefixed issue reference with a
//     "#<!-- nolink -->N" form so GitHub doesn't auto-link or
//     auto-close issues in the upstream repo.
//  2. Truncate at the first "\n---" or "<!-- Thank you for", stripping
//     the downstream PR template's footer.
//  3. Append "\nReviewed in <servo_pr>".
func RewriteBody(body string, downstreamPR PRRef) string {
	rewritten := issueRefPattern.ReplaceAllString(body, `$1$2#<!-- nolink -->$3`)
	rewritten = truncateAtFooter(rewritten)
	rewritten = strings.TrimRight(rewritten, "\n")
	rewritten += "\nReviewed in " + downstreamPR.String()
	return rewritten
}

func truncateAtFooter(s string) string {
	if idx := strings.Index(s, "\n---"); idx >= 0 {
		s = s[:idx]
	}
	if idx := strings.Index(s, "<!-- Thank you for"); idx >= 0 {
		s = s[:idx]
	}
	return s
}
