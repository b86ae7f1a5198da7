package engine

import "strings"

// Comment templates for the nine comment sites the step taxonomy posts
// to. The exact wording is a product decision; only the
// {upstream_pr}/{servo_pr} placeholder tokens are load-bearing.
const (
	TemplateOpenedNewUpstreamPR = "A corresponding upstream PR has been opened at {upstream_pr}. " +
		"Changes pushed to this PR will be mirrored there automatically."

	TemplateUpdatedExistingUpstreamPR = "{upstream_pr} has been updated to reflect the latest changes " +
		"from {servo_pr}."

	TemplateUpdatedTitleInExistingUpstreamPR = "The title and description of {upstream_pr} have been " +
		"updated to match {servo_pr}."

	TemplateClosingExistingUpstreamPR = "{upstream_pr} no longer contains any changes to upstream and has " +
		"been closed."

	TemplateNoUpstreamableChangesComment = "The changes in {servo_pr} no longer touch any upstreamable files."

	TemplateCouldNotApplyChangesDownstreamComment = "The changes in this PR could not be applied to the " +
		"upstream branch. Please resolve any conflicts; the sync will retry on the next update."

	TemplateCouldNotApplyChangesUpstreamComment = "The latest changes from {servo_pr} could not be applied " +
		"to this branch and will need to be resolved manually."

	TemplateCouldNotMergeChangesDownstreamComment = "The upstream PR tracking this change ({upstream_pr}) " +
		"could not be merged automatically."

	TemplateCouldNotMergeChangesUpstreamComment = "This PR could not be merged automatically and has been " +
		"labeled " + LabelStaleServoExport + ". See {servo_pr} for the originating change."
)

// Label vocabulary applied to upstream PRs.
const (
	LabelServoExport      = "servo-export"
	LabelDoNotMergeYet    = "do not merge yet"
	LabelStaleServoExport = "stale-servo-export"
)

// RenderTemplate substitutes the {upstream_pr} and {servo_pr} tokens in
// a comment template. upstreamPR may be nil when no upstream PR exists
// yet; any {upstream_pr} token is left untouched in that case (no
// template that fires before an upstream PR exists references it).
func RenderTemplate(tpl string, upstreamPR *PRRef, downstreamPR PRRef) string {
	out := strings.ReplaceAll(tpl, "{servo_pr}", downstreamPR.String())
	if upstreamPR != nil {
		out = strings.ReplaceAll(out, "{upstream_pr}", upstreamPR.String())
	}
	return out
}
