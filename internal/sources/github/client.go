// Package github implements the code-host client against the GitHub
// REST API.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"teampulse/internal/activity"
	"teampulse/internal/logging"
	"teampulse/internal/sources"
)

const (
	acceptJSON = "application/vnd.github+json"

	// Commit search is still gated behind the cloak preview media type.
	acceptCommitSearch = "application/vnd.github.cloak-preview+json"

	apiVersion = "2022-11-28"

	// maxFallbackRepos bounds the per-repo listing used when commit
	// search is not available for the token.
	maxFallbackRepos = 3
)

// Config holds the connection settings for a GitHub host.
type Config struct {
	BaseURL  string
	APIToken string
	PerPage  int
	Timeout  time.Duration
}

// DefaultConfig returns settings for the public GitHub API.
func DefaultConfig() Config {
	return Config{
		BaseURL: "https://api.github.com",
		PerPage: 10,
		Timeout: 30 * time.Second,
	}
}

// Client talks to a GitHub host with a bearer token.
type Client struct {
	baseURL    string
	token      string
	perPage    int
	httpClient *http.Client
}

// NewClient creates a GitHub client from config.
func NewClient(cfg Config) *Client {
	defaults := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaults.BaseURL
	}
	if cfg.PerPage <= 0 {
		cfg.PerPage = defaults.PerPage
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.APIToken,
		perPage:    cfg.PerPage,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

type commitJSON struct {
	SHA    string `json:"sha"`
	Commit struct {
		Message string `json:"message"`
		Author  struct {
			Date time.Time `json:"date"`
		} `json:"author"`
	} `json:"commit"`
	Repository struct {
		Name string `json:"name"`
	} `json:"repository"`
}

type commitSearchResponse struct {
	Items []commitJSON `json:"items"`
}

type prSearchResponse struct {
	Items []struct {
		Number      int       `json:"number"`
		Title       string    `json:"title"`
		State       string    `json:"state"`
		UpdatedAt   time.Time `json:"updated_at"`
		PullRequest struct {
			MergedAt *time.Time `json:"merged_at"`
		} `json:"pull_request"`
	} `json:"items"`
}

type eventJSON struct {
	Type string `json:"type"`
	Repo struct {
		Name string `json:"name"`
	} `json:"repo"`
}

// CommitsByAuthor returns the author's commits since the given time,
// newest first. When the search API rejects the query it falls back to
// listing commits in the author's recently active repositories.
func (c *Client) CommitsByAuthor(ctx context.Context, author string, since time.Time) ([]activity.CommitItem, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.httpClient.Timeout)
		defer cancel()
	}

	startTime := time.Now()
	logging.GitHubDebug("[Commits] author=%s since=%s", author, since.UTC().Format("2006-01-02"))

	params := url.Values{}
	params.Set("q", fmt.Sprintf("author:%s committer-date:>=%s", author, since.UTC().Format("2006-01-02")))
	params.Set("sort", "committer-date")
	params.Set("order", "desc")
	params.Set("per_page", strconv.Itoa(c.perPage))

	body, status, srcErr := c.get(ctx, "/search/commits?"+params.Encode(), acceptCommitSearch)
	if srcErr != nil {
		if status == http.StatusUnprocessableEntity {
			logging.GitHubWarn("[Commits] search rejected for %s, falling back to per-repo listing", author)
			return c.commitsViaRepos(ctx, author, since, startTime)
		}
		logging.GitHubError("[Commits] author=%s failed after %v: %v", author, time.Since(startTime), srcErr)
		return nil, srcErr
	}

	var parsed commitSearchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		logging.GitHubError("[Commits] author=%s bad response body: %v", author, err)
		return nil, sources.NewError(sources.GitHub, sources.KindUnavailable, "decoding commit search: "+err.Error())
	}

	items := make([]activity.CommitItem, 0, len(parsed.Items))
	for _, entry := range parsed.Items {
		item, ok := commitItem(entry, entry.Repository.Name)
		if !ok {
			logging.GitHubDebug("[Commits] skipping entry with missing sha or message")
			continue
		}
		items = append(items, item)
	}

	logging.GitHub("[Commits] author=%s returned %d commits in %v", author, len(items), time.Since(startTime))
	return items, nil
}

// commitsViaRepos lists commits repo by repo across the author's recent
// public activity. It serves tokens and hosts where commit search is
// unavailable.
func (c *Client) commitsViaRepos(ctx context.Context, author string, since time.Time, startTime time.Time) ([]activity.CommitItem, error) {
	repos, err := c.RecentRepos(ctx, author)
	if err != nil {
		return nil, err
	}
	if len(repos) > maxFallbackRepos {
		repos = repos[:maxFallbackRepos]
	}

	var items []activity.CommitItem
	for _, fullName := range repos {
		params := url.Values{}
		params.Set("author", author)
		params.Set("since", since.UTC().Format(time.RFC3339))
		params.Set("per_page", strconv.Itoa(c.perPage))

		body, _, srcErr := c.get(ctx, "/repos/"+fullName+"/commits?"+params.Encode(), acceptJSON)
		if srcErr != nil {
			logging.GitHubDebug("[Commits] repo %s listing failed: %v", fullName, srcErr)
			continue
		}

		var parsed []commitJSON
		if err := json.Unmarshal(body, &parsed); err != nil {
			logging.GitHubDebug("[Commits] repo %s bad body: %v", fullName, err)
			continue
		}

		repoName := fullName
		if idx := strings.IndexByte(fullName, '/'); idx >= 0 {
			repoName = fullName[idx+1:]
		}
		for _, entry := range parsed {
			if item, ok := commitItem(entry, repoName); ok {
				items = append(items, item)
			}
		}
	}

	sort.Slice(items, func(i, j int) bool { return items[i].AuthoredAt.After(items[j].AuthoredAt) })
	if len(items) > c.perPage {
		items = items[:c.perPage]
	}

	logging.GitHub("[Commits] author=%s fallback returned %d commits from %d repos in %v",
		author, len(items), len(repos), time.Since(startTime))
	return items, nil
}

func commitItem(entry commitJSON, repo string) (activity.CommitItem, bool) {
	if entry.SHA == "" || entry.Commit.Message == "" {
		return activity.CommitItem{}, false
	}
	short := entry.SHA
	if len(short) > 7 {
		short = short[:7]
	}
	return activity.CommitItem{
		ShortHash:  short,
		Message:    entry.Commit.Message,
		Repo:       repo,
		AuthoredAt: entry.Commit.Author.Date,
	}, true
}

// PullRequestsByAuthor returns the author's pull requests updated since
// the given time, newest first. A merged PR reports state "merged" even
// though the search API files it under "closed".
func (c *Client) PullRequestsByAuthor(ctx context.Context, author string, since time.Time) ([]activity.PullRequestItem, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.httpClient.Timeout)
		defer cancel()
	}

	startTime := time.Now()
	logging.GitHubDebug("[PullRequests] author=%s since=%s", author, since.UTC().Format("2006-01-02"))

	params := url.Values{}
	params.Set("q", fmt.Sprintf("author:%s is:pr updated:>=%s", author, since.UTC().Format("2006-01-02")))
	params.Set("sort", "updated")
	params.Set("order", "desc")
	params.Set("per_page", strconv.Itoa(c.perPage))

	body, _, srcErr := c.get(ctx, "/search/issues?"+params.Encode(), acceptJSON)
	if srcErr != nil {
		logging.GitHubError("[PullRequests] author=%s failed after %v: %v", author, time.Since(startTime), srcErr)
		return nil, srcErr
	}

	var parsed prSearchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		logging.GitHubError("[PullRequests] author=%s bad response body: %v", author, err)
		return nil, sources.NewError(sources.GitHub, sources.KindUnavailable, "decoding pull request search: "+err.Error())
	}

	items := make([]activity.PullRequestItem, 0, len(parsed.Items))
	for _, entry := range parsed.Items {
		if entry.Number == 0 || entry.Title == "" {
			logging.GitHubDebug("[PullRequests] skipping entry with missing number or title")
			continue
		}
		state := entry.State
		if entry.PullRequest.MergedAt != nil {
			state = "merged"
		}
		items = append(items, activity.PullRequestItem{
			Number:    entry.Number,
			Title:     entry.Title,
			State:     state,
			UpdatedAt: entry.UpdatedAt,
		})
	}

	logging.GitHub("[PullRequests] author=%s returned %d pull requests in %v", author, len(items), time.Since(startTime))
	return items, nil
}

// RecentRepos returns the distinct repositories the user touched in
// their recent public events, most recent first.
func (c *Client) RecentRepos(ctx context.Context, login string) ([]string, error) {
	body, _, srcErr := c.get(ctx, "/users/"+url.PathEscape(login)+"/events/public?per_page=30", acceptJSON)
	if srcErr != nil {
		return nil, srcErr
	}

	var events []eventJSON
	if err := json.Unmarshal(body, &events); err != nil {
		return nil, sources.NewError(sources.GitHub, sources.KindUnavailable, "decoding events: "+err.Error())
	}

	seen := make(map[string]bool)
	var repos []string
	for _, ev := range events {
		switch ev.Type {
		case "PushEvent", "PullRequestEvent", "CreateEvent":
		default:
			continue
		}
		if ev.Repo.Name == "" || seen[ev.Repo.Name] {
			continue
		}
		seen[ev.Repo.Name] = true
		repos = append(repos, ev.Repo.Name)
	}
	return repos, nil
}

// Ping verifies the configured token against the current-user endpoint.
func (c *Client) Ping(ctx context.Context) error {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.httpClient.Timeout)
		defer cancel()
	}

	if _, _, err := c.get(ctx, "/user", acceptJSON); err != nil {
		return err
	}
	logging.GitHub("[Ping] ok")
	return nil
}

// get issues an authenticated GET and returns the body plus the HTTP
// status, mapping every failure to a source error.
func (c *Client) get(ctx context.Context, path, accept string) ([]byte, int, *sources.Error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, 0, sources.NewError(sources.GitHub, sources.KindUnavailable, "creating request: "+err.Error())
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, sources.WrapError(sources.GitHub, err)
	}
	defer resp.Body.Close()

	if kind, failed := kindForStatus(resp.StatusCode); failed {
		return nil, resp.StatusCode, sources.NewError(sources.GitHub, kind,
			fmt.Sprintf("status %d from %s", resp.StatusCode, req.URL.Path))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return nil, resp.StatusCode, sources.NewError(sources.GitHub, sources.KindUnavailable, "reading response: "+err.Error())
	}
	return body, resp.StatusCode, nil
}

// kindForStatus maps a GitHub HTTP status to an error kind. GitHub
// answers 403 when the rate limit is exhausted, so it maps to rate
// limited rather than auth.
func kindForStatus(status int) (sources.Kind, bool) {
	switch {
	case status >= 200 && status < 300:
		return 0, false
	case status == http.StatusUnauthorized:
		return sources.KindAuthFailure, true
	case status == http.StatusForbidden || status == http.StatusTooManyRequests:
		return sources.KindRateLimited, true
	default:
		return sources.KindUnavailable, true
	}
}
