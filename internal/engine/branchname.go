package engine

import "fmt"

// BranchName is the deterministic function of a downstream PR number
// that is the sole link between a downstream PR and its upstream PR:
// "servo_export_<N>". There is no persistent mapping file — existence
// of the upstream PR is rediscovered every event by querying for an
// open PR with this branch as head.
func BranchName(downstreamPRNumber int) string {
	return fmt.Sprintf("servo_export_%d", downstreamPRNumber)
}

// remoteURL builds the authenticated push URL for the downstream fork,
// shared by BranchBuilder's force-push and RemoveBranchForPRStep's
// delete-remote-branch push.
func remoteURL(fork RepoRef, user, token string) string {
	return fmt.Sprintf("https://%s:%s@github.com/%s.git", user, token, fork)
}
