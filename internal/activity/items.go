// Package activity defines the normalized activity items, the per-source
// result slots, the merged envelope, and the orchestrator that fills it.
package activity

import "time"

// IssueItem is a read-only snapshot of one issue-tracker item.
type IssueItem struct {
	Key      string `json:"key"`
	Summary  string `json:"summary"`
	Status   string `json:"status"`
	Priority string `json:"priority,omitempty"`

	// Description is only populated when detail enrichment is enabled.
	Description string `json:"description,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// CommitItem is a read-only snapshot of one commit.
type CommitItem struct {
	ShortHash  string    `json:"short_hash"`
	Message    string    `json:"message"`
	Repo       string    `json:"repo,omitempty"`
	AuthoredAt time.Time `json:"authored_at"`
}

// PullRequestItem is a read-only snapshot of one pull/merge request.
type PullRequestItem struct {
	Number    int       `json:"number"`
	Title     string    `json:"title"`
	State     string    `json:"state"`
	UpdatedAt time.Time `json:"updated_at"`
}
