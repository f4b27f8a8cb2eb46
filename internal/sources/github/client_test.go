package github

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teampulse/internal/sources"
)

func testConfig(baseURL string) Config {
	cfg := DefaultConfig()
	cfg.BaseURL = baseURL
	cfg.APIToken = "ghp_test"
	return cfg
}

const commitSearchBody = `{
	"items": [
		{
			"sha": "abc1234def5678",
			"commit": {
				"message": "Fix race in session store",
				"author": {"date": "2026-03-02T10:00:00Z"}
			},
			"repository": {"name": "platform-api"}
		},
		{
			"sha": "",
			"commit": {
				"message": "Entry without a sha",
				"author": {"date": "2026-03-01T10:00:00Z"}
			},
			"repository": {"name": "platform-api"}
		},
		{
			"sha": "def5678abc1234",
			"commit": {
				"message": "Merge pull request #88 from org/feature",
				"author": {"date": "2026-03-01T09:00:00Z"}
			},
			"repository": {"name": "tools"}
		}
	]
}`

func TestCommitsByAuthor(t *testing.T) {
	since := time.Now().Add(-7 * 24 * time.Hour)
	wantDate := since.UTC().Format("2006-01-02")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search/commits", r.URL.Path)
		assert.Equal(t, acceptCommitSearch, r.Header.Get("Accept"))
		assert.Equal(t, apiVersion, r.Header.Get("X-GitHub-Api-Version"))
		assert.Equal(t, "Bearer ghp_test", r.Header.Get("Authorization"))

		q := r.URL.Query()
		assert.Contains(t, q.Get("q"), "author:ahvar")
		assert.Contains(t, q.Get("q"), "committer-date:>="+wantDate)
		assert.Equal(t, "committer-date", q.Get("sort"))
		assert.Equal(t, "desc", q.Get("order"))
		assert.Equal(t, "10", q.Get("per_page"))

		w.Write([]byte(commitSearchBody))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL))
	items, err := client.CommitsByAuthor(context.Background(), "ahvar", since)
	require.NoError(t, err)

	require.Len(t, items, 2)
	assert.Equal(t, "abc1234", items[0].ShortHash)
	assert.Equal(t, "Fix race in session store", items[0].Message)
	assert.Equal(t, "platform-api", items[0].Repo)
	assert.Equal(t, 2026, items[0].AuthoredAt.Year())
	assert.Equal(t, "def5678", items[1].ShortHash)
	assert.Equal(t, "tools", items[1].Repo)
}

func TestCommitsFallbackOnSearchRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/search/commits":
			w.WriteHeader(http.StatusUnprocessableEntity)
		case "/users/ahvar/events/public":
			w.Write([]byte(`[
				{"type": "PushEvent", "repo": {"name": "org/platform-api"}},
				{"type": "WatchEvent", "repo": {"name": "org/ignored"}},
				{"type": "PullRequestEvent", "repo": {"name": "org/tools"}},
				{"type": "PushEvent", "repo": {"name": "org/platform-api"}}
			]`))
		case "/repos/org/platform-api/commits":
			assert.Equal(t, "ahvar", r.URL.Query().Get("author"))
			assert.NotEmpty(t, r.URL.Query().Get("since"))
			w.Write([]byte(`[
				{"sha": "aaa1111222233334", "commit": {"message": "First", "author": {"date": "2026-03-02T10:00:00Z"}}},
				{"sha": "bbb1111222233334", "commit": {"message": "Second", "author": {"date": "2026-03-01T09:00:00Z"}}}
			]`))
		case "/repos/org/tools/commits":
			w.Write([]byte(`[
				{"sha": "ccc1111222233334", "commit": {"message": "Third", "author": {"date": "2026-03-02T11:00:00Z"}}}
			]`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL))
	items, err := client.CommitsByAuthor(context.Background(), "ahvar", time.Now().Add(-7*24*time.Hour))
	require.NoError(t, err)

	require.Len(t, items, 3)
	assert.Equal(t, "ccc1111", items[0].ShortHash)
	assert.Equal(t, "tools", items[0].Repo)
	assert.Equal(t, "aaa1111", items[1].ShortHash)
	assert.Equal(t, "platform-api", items[1].Repo)
	assert.Equal(t, "bbb1111", items[2].ShortHash)
}

func TestPullRequestsByAuthor(t *testing.T) {
	since := time.Now().Add(-14 * 24 * time.Hour)
	wantDate := since.UTC().Format("2006-01-02")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search/issues", r.URL.Path)
		assert.Equal(t, acceptJSON, r.Header.Get("Accept"))

		q := r.URL.Query().Get("q")
		assert.Contains(t, q, "author:ahvar")
		assert.Contains(t, q, "is:pr")
		assert.Contains(t, q, "updated:>="+wantDate)
		assert.Equal(t, "updated", r.URL.Query().Get("sort"))

		w.Write([]byte(`{
			"items": [
				{"number": 42, "title": "Add retry budget", "state": "open", "updated_at": "2026-03-02T10:00:00Z", "pull_request": {"merged_at": null}},
				{"number": 40, "title": "Bump deps", "state": "closed", "updated_at": "2026-03-01T10:00:00Z", "pull_request": {"merged_at": "2026-03-01T09:00:00Z"}},
				{"number": 0, "title": "Broken entry", "state": "open", "updated_at": "2026-03-01T08:00:00Z"}
			]
		}`))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL))
	items, err := client.PullRequestsByAuthor(context.Background(), "ahvar", since)
	require.NoError(t, err)

	require.Len(t, items, 2)
	assert.Equal(t, 42, items[0].Number)
	assert.Equal(t, "open", items[0].State)
	assert.Equal(t, 40, items[1].Number)
	assert.Equal(t, "merged", items[1].State)
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   sources.Kind
	}{
		{"401 maps to auth failure", http.StatusUnauthorized, sources.KindAuthFailure},
		{"403 maps to rate limited", http.StatusForbidden, sources.KindRateLimited},
		{"429 maps to rate limited", http.StatusTooManyRequests, sources.KindRateLimited},
		{"500 maps to unavailable", http.StatusInternalServerError, sources.KindUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			client := NewClient(testConfig(server.URL))
			_, err := client.PullRequestsByAuthor(context.Background(), "ahvar", time.Now().Add(-24*time.Hour))

			var srcErr *sources.Error
			require.ErrorAs(t, err, &srcErr)
			assert.Equal(t, sources.GitHub, srcErr.Source)
			assert.Equal(t, tt.want, srcErr.Kind)
		})
	}
}

func TestCommitsTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{"items": []}`))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL))
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := client.CommitsByAuthor(ctx, "ahvar", time.Now().Add(-24*time.Hour))

	var srcErr *sources.Error
	require.ErrorAs(t, err, &srcErr)
	assert.Equal(t, sources.KindTimeout, srcErr.Kind)
}

func TestRecentRepos(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/ahvar/events/public", r.URL.Path)
		w.Write([]byte(`[
			{"type": "PushEvent", "repo": {"name": "org/one"}},
			{"type": "PushEvent", "repo": {"name": "org/one"}},
			{"type": "ForkEvent", "repo": {"name": "org/skipped"}},
			{"type": "CreateEvent", "repo": {"name": "org/two"}}
		]`))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL))
	repos, err := client.RecentRepos(context.Background(), "ahvar")
	require.NoError(t, err)
	assert.Equal(t, []string{"org/one", "org/two"}, repos)
}

func TestPing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/user", r.URL.Path)
		w.Write([]byte(`{"login": "teampulse-bot"}`))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL))
	assert.NoError(t, client.Ping(context.Background()))
}

func TestPingUnauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL))
	err := client.Ping(context.Background())

	var srcErr *sources.Error
	require.ErrorAs(t, err, &srcErr)
	assert.Equal(t, sources.KindAuthFailure, srcErr.Kind)
}
