// Package jira implements the issue-tracker client against the Jira
// Cloud REST API v3.
package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"teampulse/internal/activity"
	"teampulse/internal/logging"
	"teampulse/internal/sources"
)

// searchFields is the field list requested from the search endpoint.
const searchFields = "key,summary,status,updated,assignee,priority"

// maxEnriched bounds how many issues get a rendered-description fetch.
const maxEnriched = 5

// jiraTimeLayout matches Jira's millisecond timestamps, e.g.
// "2026-03-02T14:05:09.123+0100".
const jiraTimeLayout = "2006-01-02T15:04:05.000-0700"

// Config holds the connection settings for a Jira site.
type Config struct {
	BaseURL    string
	Email      string
	APIToken   string
	MaxResults int
	Enrich     bool
	Timeout    time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxResults: 20,
		Timeout:    30 * time.Second,
	}
}

// Client talks to a single Jira site with basic auth.
type Client struct {
	baseURL    string
	email      string
	apiToken   string
	maxResults int
	enrich     bool
	httpClient *http.Client
}

// NewClient creates a Jira client from config.
func NewClient(cfg Config) *Client {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = DefaultConfig().MaxResults
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		email:      cfg.Email,
		apiToken:   cfg.APIToken,
		maxResults: cfg.MaxResults,
		enrich:     cfg.Enrich,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

type searchResponse struct {
	Issues []issueJSON `json:"issues"`
}

type issueJSON struct {
	Key    string `json:"key"`
	Fields struct {
		Summary string `json:"summary"`
		Status  struct {
			Name string `json:"name"`
		} `json:"status"`
		Priority struct {
			Name string `json:"name"`
		} `json:"priority"`
		Updated string `json:"updated"`
	} `json:"fields"`
}

type issueDetailResponse struct {
	RenderedFields struct {
		Description string `json:"description"`
	} `json:"renderedFields"`
}

// AssignedIssues returns the assignee's issues updated since the given
// time, newest first, excluding anything in the Done status category.
// Malformed entries in the response are skipped individually.
func (c *Client) AssignedIssues(ctx context.Context, assignee string, since time.Time) ([]activity.IssueItem, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.httpClient.Timeout)
		defer cancel()
	}

	startTime := time.Now()
	days := lookbackDays(since)
	jql := fmt.Sprintf("assignee = %q AND statusCategory != Done AND updated >= -%dd ORDER BY updated DESC", assignee, days)
	logging.JiraDebug("[Search] assignee=%s days=%d max=%d", assignee, days, c.maxResults)

	params := url.Values{}
	params.Set("jql", jql)
	params.Set("fields", searchFields)
	params.Set("maxResults", strconv.Itoa(c.maxResults))

	body, srcErr := c.get(ctx, "/rest/api/3/search?"+params.Encode())
	if srcErr != nil {
		logging.JiraError("[Search] assignee=%s failed after %v: %v", assignee, time.Since(startTime), srcErr)
		return nil, srcErr
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		logging.JiraError("[Search] assignee=%s bad response body: %v", assignee, err)
		return nil, sources.NewError(sources.Jira, sources.KindUnavailable, "decoding search response: "+err.Error())
	}

	items := make([]activity.IssueItem, 0, len(parsed.Issues))
	for _, issue := range parsed.Issues {
		if issue.Key == "" || issue.Fields.Summary == "" {
			logging.JiraDebug("[Search] skipping entry with missing key or summary")
			continue
		}
		updated, err := parseJiraTime(issue.Fields.Updated)
		if err != nil {
			logging.JiraDebug("[Search] skipping %s: bad updated timestamp %q", issue.Key, issue.Fields.Updated)
			continue
		}
		items = append(items, activity.IssueItem{
			Key:       issue.Key,
			Summary:   issue.Fields.Summary,
			Status:    issue.Fields.Status.Name,
			Priority:  issue.Fields.Priority.Name,
			UpdatedAt: updated,
		})
	}

	if c.enrich {
		c.enrichDescriptions(ctx, items)
	}

	logging.Jira("[Search] assignee=%s returned %d issues in %v", assignee, len(items), time.Since(startTime))
	return items, nil
}

// enrichDescriptions fills in plain-text descriptions for the first few
// issues. Failures here never fail the listing.
func (c *Client) enrichDescriptions(ctx context.Context, items []activity.IssueItem) {
	for i := range items {
		if i >= maxEnriched {
			return
		}
		desc, err := c.renderedDescription(ctx, items[i].Key)
		if err != nil {
			logging.JiraDebug("[Enrich] %s: %v", items[i].Key, err)
			continue
		}
		items[i].Description = desc
	}
}

// renderedDescription fetches one issue's description rendered as HTML
// and flattens it to plain text.
func (c *Client) renderedDescription(ctx context.Context, key string) (string, error) {
	params := url.Values{}
	params.Set("expand", "renderedFields")
	params.Set("fields", "description")

	body, srcErr := c.get(ctx, "/rest/api/3/issue/"+url.PathEscape(key)+"?"+params.Encode())
	if srcErr != nil {
		return "", srcErr
	}

	var parsed issueDetailResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decoding issue detail: %w", err)
	}
	return htmlToText(parsed.RenderedFields.Description), nil
}

// Ping verifies the configured credentials against the current-user
// endpoint.
func (c *Client) Ping(ctx context.Context) error {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.httpClient.Timeout)
		defer cancel()
	}

	if _, err := c.get(ctx, "/rest/api/3/myself"); err != nil {
		return err
	}
	logging.Jira("[Ping] ok")
	return nil
}

// get issues an authenticated GET and returns the body, mapping every
// failure to a source error.
func (c *Client) get(ctx context.Context, path string) ([]byte, *sources.Error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, sources.NewError(sources.Jira, sources.KindUnavailable, "creating request: "+err.Error())
	}
	req.SetBasicAuth(c.email, c.apiToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, sources.WrapError(sources.Jira, err)
	}
	defer resp.Body.Close()

	if kind, failed := kindForStatus(resp.StatusCode); failed {
		return nil, sources.NewError(sources.Jira, kind, fmt.Sprintf("status %d from %s", resp.StatusCode, req.URL.Path))
	}

	body, err := readBody(resp)
	if err != nil {
		return nil, sources.NewError(sources.Jira, sources.KindUnavailable, "reading response: "+err.Error())
	}
	return body, nil
}

// kindForStatus maps a Jira HTTP status to an error kind. Jira answers
// 403 for permission problems, so it maps to auth alongside 401.
func kindForStatus(status int) (sources.Kind, bool) {
	switch {
	case status >= 200 && status < 300:
		return 0, false
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return sources.KindAuthFailure, true
	case status == http.StatusTooManyRequests:
		return sources.KindRateLimited, true
	default:
		return sources.KindUnavailable, true
	}
}

// lookbackDays converts an absolute since time to the relative day count
// Jira's JQL works in.
func lookbackDays(since time.Time) int {
	days := int(math.Round(time.Since(since).Hours() / 24))
	if days < 1 {
		days = 1
	}
	return days
}

func parseJiraTime(s string) (time.Time, error) {
	if t, err := time.Parse(jiraTimeLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

func readBody(resp *http.Response) ([]byte, error) {
	return io.ReadAll(io.LimitReader(resp.Body, 2<<20))
}
