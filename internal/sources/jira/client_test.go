package jira

import (
	"context"
	"errors"
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
	cfg.Email = "bot@example.com"
	cfg.APIToken = "token-123"
	return cfg
}

const searchBody = `{
	"issues": [
		{
			"key": "PROJ-101",
			"fields": {
				"summary": "Fix login flow",
				"status": {"name": "In Progress"},
				"priority": {"name": "High"},
				"updated": "2026-03-02T14:05:09.123+0100"
			}
		},
		{
			"key": "",
			"fields": {
				"summary": "Entry without a key",
				"status": {"name": "To Do"},
				"updated": "2026-03-01T10:00:00.000+0000"
			}
		},
		{
			"key": "PROJ-103",
			"fields": {
				"summary": "Entry with a broken timestamp",
				"status": {"name": "To Do"},
				"updated": "not-a-time"
			}
		},
		{
			"key": "PROJ-104",
			"fields": {
				"summary": "Migrate billing cron",
				"status": {"name": "To Do"},
				"priority": {"name": ""},
				"updated": "2026-03-01T09:30:00.000+0000"
			}
		}
	]
}`

func TestAssignedIssues(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/rest/api/3/search", r.URL.Path)

		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "bot@example.com", user)
		assert.Equal(t, "token-123", pass)

		jql := r.URL.Query().Get("jql")
		assert.Contains(t, jql, `assignee = "712020:abc"`)
		assert.Contains(t, jql, "statusCategory != Done")
		assert.Contains(t, jql, "updated >= -7d")
		assert.Contains(t, jql, "ORDER BY updated DESC")
		assert.Equal(t, searchFields, r.URL.Query().Get("fields"))
		assert.Equal(t, "20", r.URL.Query().Get("maxResults"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(searchBody))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL))
	since := time.Now().Add(-7 * 24 * time.Hour)

	items, err := client.AssignedIssues(context.Background(), "712020:abc", since)
	require.NoError(t, err)

	require.Len(t, items, 2)
	assert.Equal(t, "PROJ-101", items[0].Key)
	assert.Equal(t, "Fix login flow", items[0].Summary)
	assert.Equal(t, "In Progress", items[0].Status)
	assert.Equal(t, "High", items[0].Priority)
	assert.Equal(t, 2026, items[0].UpdatedAt.Year())
	assert.Equal(t, "PROJ-104", items[1].Key)
	assert.Empty(t, items[1].Priority)
	assert.Empty(t, items[1].Description)
}

func TestAssignedIssuesStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   sources.Kind
	}{
		{"401 maps to auth failure", http.StatusUnauthorized, sources.KindAuthFailure},
		{"403 maps to auth failure", http.StatusForbidden, sources.KindAuthFailure},
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
			_, err := client.AssignedIssues(context.Background(), "712020:abc", time.Now().Add(-24*time.Hour))

			var srcErr *sources.Error
			require.ErrorAs(t, err, &srcErr)
			assert.Equal(t, sources.Jira, srcErr.Source)
			assert.Equal(t, tt.want, srcErr.Kind)
		})
	}
}

func TestAssignedIssuesBadBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL))
	_, err := client.AssignedIssues(context.Background(), "712020:abc", time.Now().Add(-24*time.Hour))

	var srcErr *sources.Error
	require.ErrorAs(t, err, &srcErr)
	assert.Equal(t, sources.KindUnavailable, srcErr.Kind)
}

func TestAssignedIssuesTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{"issues": []}`))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL))
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := client.AssignedIssues(ctx, "712020:abc", time.Now().Add(-24*time.Hour))

	var srcErr *sources.Error
	require.ErrorAs(t, err, &srcErr)
	assert.Equal(t, sources.KindTimeout, srcErr.Kind)
}

func TestAssignedIssuesEnrichment(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/rest/api/3/search":
			w.Write([]byte(`{"issues": [{"key": "PROJ-101", "fields": {"summary": "Fix login flow", "status": {"name": "In Progress"}, "updated": "2026-03-02T14:05:09.123+0100"}}]}`))
		case "/rest/api/3/issue/PROJ-101":
			assert.Equal(t, "renderedFields", r.URL.Query().Get("expand"))
			w.Write([]byte(`{"renderedFields": {"description": "<p>Fix the <b>login</b> flow</p><ul><li>step one</li></ul>"}}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.Enrich = true
	client := NewClient(cfg)

	items, err := client.AssignedIssues(context.Background(), "712020:abc", time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Fix the login flow step one", items[0].Description)
}

func TestAssignedIssuesEnrichmentFailureIsNonFatal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/rest/api/3/search" {
			w.Write([]byte(`{"issues": [{"key": "PROJ-101", "fields": {"summary": "Fix login flow", "status": {"name": "In Progress"}, "updated": "2026-03-02T14:05:09.123+0100"}}]}`))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.Enrich = true
	client := NewClient(cfg)

	items, err := client.AssignedIssues(context.Background(), "712020:abc", time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Empty(t, items[0].Description)
}

func TestPing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/api/3/myself", r.URL.Path)
		w.Write([]byte(`{"accountId": "712020:abc"}`))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL))
	assert.NoError(t, client.Ping(context.Background()))
}

func TestPingAuthFailure(t *testing.T) {
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

func TestLookbackDays(t *testing.T) {
	assert.Equal(t, 7, lookbackDays(time.Now().Add(-7*24*time.Hour)))
	assert.Equal(t, 14, lookbackDays(time.Now().Add(-14*24*time.Hour)))
	assert.Equal(t, 1, lookbackDays(time.Now().Add(-90*time.Minute)))
	assert.Equal(t, 1, lookbackDays(time.Now()))
}

func TestErrorsAreTyped(t *testing.T) {
	client := NewClient(testConfig("http://127.0.0.1:0"))
	_, err := client.AssignedIssues(context.Background(), "712020:abc", time.Now().Add(-24*time.Hour))
	require.Error(t, err)
	assert.True(t, errors.As(err, new(*sources.Error)))
}
