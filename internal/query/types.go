// Package query turns free-text questions into structured requests:
// which team member, what kind of activity, and how far back to look.
package query

import (
	"errors"

	"teampulse/internal/roster"
)

// Intent is the classified purpose of a query.
type Intent string

const (
	IntentIssues       Intent = "issues"
	IntentCommits      Intent = "commits"
	IntentPullRequests Intent = "pull_requests"
	IntentSummary      Intent = "summary"
)

// Window is the recency filter applied to source queries.
type Window string

const (
	WindowRecent   Window = "recent"
	WindowThisWeek Window = "this_week"
)

// Request is one interpreted query. Built once, consumed by the
// orchestrator, then discarded.
type Request struct {
	Member roster.Member
	Intent Intent
	Window Window
}

// MemberNotFoundError reports that no configured member name appears in the
// query text. Terminal for the request; the orchestrator never sees it.
type MemberNotFoundError struct {
	Text string
}

func (e *MemberNotFoundError) Error() string {
	return "no configured team member found in query"
}

// IsMemberNotFound reports whether err is a member-resolution failure.
func IsMemberNotFound(err error) bool {
	var target *MemberNotFoundError
	return errors.As(err, &target)
}
