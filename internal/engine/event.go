package engine

import (
	"encoding/json"
	"strings"
)

// Event is a decoded GitHub pull_request webhook payload.
type Event struct {
	Action      string
	Number      int
	Title       string
	Body        string
	Commits     int
	Merged      bool
	TitleEdited bool
	BodyEdited  bool
}

// rawEvent mirrors the subset of the GitHub pull_request payload this
// service reads, matching the field names GitHub actually sends.
type rawEvent struct {
	Action      string `json:"action"`
	PullRequest *struct {
		Number  int    `json:"number"`
		Title   string `json:"title"`
		Body    string `json:"body"`
		Commits int    `json:"commits"`
		Merged  bool   `json:"merged"`
	} `json:"pull_request"`
	Changes *struct {
		Title *struct{} `json:"title"`
		Body  *struct{} `json:"body"`
	} `json:"changes"`
}

// noSyncToken disables sync for a PR whose body contains it.
const noSyncToken = "[no-wpt-sync]"

// ParseEvent decodes a webhook payload into an Event. hasPullRequest
// reports whether the payload has a "pull_request" key at all, so the
// caller can fast-drop payloads that lack one.
func ParseEvent(payload []byte) (ev Event, hasPullRequest bool, err error) {
	var raw rawEvent
	if err := json.Unmarshal(payload, &raw); err != nil {
		return Event{}, false, err
	}
	if raw.PullRequest == nil {
		return Event{}, false, nil
	}

	ev = Event{
		Action:  raw.Action,
		Number:  raw.PullRequest.Number,
		Title:   raw.PullRequest.Title,
		Body:    raw.PullRequest.Body,
		Commits: raw.PullRequest.Commits,
		Merged:  raw.PullRequest.Merged,
	}
	if raw.Changes != nil {
		ev.TitleEdited = raw.Changes.Title != nil
		ev.BodyEdited = raw.Changes.Body != nil
	}
	return ev, true, nil
}

// ShouldDrop reports whether the event must be dropped before any work
// is attempted: an opt-out token in the body, or an action this service
// doesn't act on.
func (ev Event) ShouldDrop() bool {
	if strings.Contains(ev.Body, noSyncToken) {
		return true
	}
	switch ev.Action {
	case "opened", "synchronize", "reopened", "closed":
		return false
	case "edited":
		return !(ev.TitleEdited || ev.BodyEdited)
	default:
		return true
	}
}
