package activity

import (
	"encoding/json"
	"fmt"
	"time"

	"teampulse/internal/query"
	"teampulse/internal/sources"
)

// Status tags a result slot. NotRequested is distinct from Failed: an
// unused source was never called, a failed one was called and broke.
type Status int

const (
	StatusNotRequested Status = iota
	StatusOK
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusFailed:
		return "failed"
	default:
		return "not_requested"
	}
}

// MarshalJSON renders the status as its string form.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON accepts the string form produced by MarshalJSON.
func (s *Status) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	switch str {
	case "ok":
		*s = StatusOK
	case "failed":
		*s = StatusFailed
	case "not_requested":
		*s = StatusNotRequested
	default:
		return fmt.Errorf("unknown result status %q", str)
	}
	return nil
}

// IssueResult is the issue slot of the envelope. Written exactly once.
type IssueResult struct {
	Status Status         `json:"status"`
	Items  []IssueItem    `json:"items,omitempty"`
	Err    *sources.Error `json:"error,omitempty"`
}

// Requested reports whether the issue call was dispatched.
func (r IssueResult) Requested() bool { return r.Status != StatusNotRequested }

// Failed reports whether the dispatched call broke.
func (r IssueResult) Failed() bool { return r.Status == StatusFailed }

// Empty reports a successful call that found nothing.
func (r IssueResult) Empty() bool { return r.Status == StatusOK && len(r.Items) == 0 }

// CommitResult is the commit slot of the envelope.
type CommitResult struct {
	Status Status         `json:"status"`
	Items  []CommitItem   `json:"items,omitempty"`
	Err    *sources.Error `json:"error,omitempty"`
}

func (r CommitResult) Requested() bool { return r.Status != StatusNotRequested }
func (r CommitResult) Failed() bool    { return r.Status == StatusFailed }
func (r CommitResult) Empty() bool     { return r.Status == StatusOK && len(r.Items) == 0 }

// PullRequestResult is the pull-request slot of the envelope.
type PullRequestResult struct {
	Status Status            `json:"status"`
	Items  []PullRequestItem `json:"items,omitempty"`
	Err    *sources.Error    `json:"error,omitempty"`
}

func (r PullRequestResult) Requested() bool { return r.Status != StatusNotRequested }
func (r PullRequestResult) Failed() bool    { return r.Status == StatusFailed }
func (r PullRequestResult) Empty() bool     { return r.Status == StatusOK && len(r.Items) == 0 }

// Envelope is the merged result of one orchestrated request. Built by
// Gather, consumed once by the formatter, then discarded.
type Envelope struct {
	Member       string            `json:"member"`
	Window       query.Window      `json:"window"`
	GeneratedAt  time.Time         `json:"generated_at"`
	Issues       IssueResult       `json:"issues"`
	Commits      CommitResult      `json:"commits"`
	PullRequests PullRequestResult `json:"pull_requests"`
}

// HasItems reports whether any requested slot returned at least one item.
func (e *Envelope) HasItems() bool {
	return len(e.Issues.Items) > 0 || len(e.Commits.Items) > 0 || len(e.PullRequests.Items) > 0
}

// AllQuiet reports whether every requested slot is empty or failed. The
// formatter collapses this case into a single combined message.
func (e *Envelope) AllQuiet() bool {
	return !e.HasItems()
}
