package query

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"teampulse/internal/config"
	"teampulse/internal/roster"
)

func testParser(t *testing.T, names ...string) *Parser {
	t.Helper()
	if len(names) == 0 {
		names = []string{"Arthur", "Mike", "Bob", "Bobby"}
	}
	entries := make([]config.MemberEntry, len(names))
	for i, n := range names {
		entries[i] = config.MemberEntry{Name: n}
	}
	r, err := roster.FromConfig(entries)
	if err != nil {
		t.Fatalf("roster.FromConfig failed: %v", err)
	}
	return NewParser(r)
}

func TestParseMemberResolution(t *testing.T) {
	p := testParser(t)

	tests := []struct {
		text string
		want string
	}{
		{"What is Arthur working on?", "Arthur"},
		{"what is arthur working on", "Arthur"},
		{"WHAT HAS ARTHUR BEEN DOING", "Arthur"},
		{"Show me Arthur's tickets", "Arthur"},
		{"arthur's commits please", "Arthur"},
		{"Is Mike busy with anything?", "Mike"},
		{"bob latest activity", "Bob"},
		{"What is Bobby working on?", "Bobby"},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			req, err := p.Parse(tt.text)
			if err != nil {
				t.Fatalf("Parse(%q) failed: %v", tt.text, err)
			}
			if req.Member.Name != tt.want {
				t.Errorf("Parse(%q) member = %q, want %q", tt.text, req.Member.Name, tt.want)
			}
		})
	}
}

func TestParseMemberNotFound(t *testing.T) {
	p := testParser(t)

	tests := []string{
		"",
		"What is Dave working on?",
		"Show me the sprint board",
		"What happened to the bobcat?",     // word boundary: bobcat is not Bob
		"robbie pushed something",          // robbie is not Bob
		"Update on the Arthur project",     // article + project word
		"How is the arthur team doing?",    // article + team word
		"Status of the Arthur repository?", // article + repo word
	}

	for _, text := range tests {
		t.Run(text, func(t *testing.T) {
			_, err := p.Parse(text)
			if err == nil {
				t.Fatalf("Parse(%q) expected MemberNotFound, got nil", text)
			}
			if !IsMemberNotFound(err) {
				t.Errorf("Parse(%q) error = %v, want MemberNotFoundError", text, err)
			}
		})
	}
}

func TestParseFirstOccurrenceWins(t *testing.T) {
	p := testParser(t)

	req, err := p.Parse("Did Mike pair with Arthur yesterday?")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if req.Member.Name != "Mike" {
		t.Errorf("member = %q, want first-mentioned Mike", req.Member.Name)
	}

	req, err = p.Parse("Did Arthur pair with Mike yesterday?")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if req.Member.Name != "Arthur" {
		t.Errorf("member = %q, want first-mentioned Arthur", req.Member.Name)
	}
}

func TestParseLongerNameNotShadowed(t *testing.T) {
	p := testParser(t)

	// "Bobby" must not resolve to "Bob" via substring
	req, err := p.Parse("Bobby's tickets")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if req.Member.Name != "Bobby" {
		t.Errorf("member = %q, want Bobby", req.Member.Name)
	}
}

func TestParseIntent(t *testing.T) {
	p := testParser(t)

	tests := []struct {
		text string
		want Intent
	}{
		{"Show me Arthur's tickets", IntentIssues},
		{"What issues is Mike assigned?", IntentIssues},
		{"arthur jira tasks", IntentIssues},
		{"What is Arthur's current work?", IntentIssues},
		{"What has Mike committed?", IntentCommits},
		{"Any code changes from Arthur?", IntentCommits},
		{"Did Bob push anything?", IntentCommits},
		{"Show Arthur's pull requests", IntentPullRequests},
		{"Mike's open prs", IntentPullRequests},
		{"Any merge requests from Bobby?", IntentPullRequests},
		{"What reviews does Arthur have open?", IntentPullRequests},
		{"What is Arthur working on?", IntentSummary},
		{"What has Mike been doing lately?", IntentSummary},
		{"What is Bob up to?", IntentSummary},
		{"Arthur's print jobs", IntentSummary}, // "pr" must not match inside "print"
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			req, err := p.Parse(tt.text)
			if err != nil {
				t.Fatalf("Parse(%q) failed: %v", tt.text, err)
			}
			if req.Intent != tt.want {
				t.Errorf("Parse(%q) intent = %s, want %s", tt.text, req.Intent, tt.want)
			}
		})
	}
}

// The decision table is a fixed priority order: pull requests beat commits,
// commits beat issues.
func TestParseIntentPriority(t *testing.T) {
	p := testParser(t)

	tests := []struct {
		text string
		want Intent
	}{
		{"Arthur's pull requests and commits", IntentPullRequests},
		{"Did Mike commit the pr fix?", IntentPullRequests},
		{"merge request tickets for Bob", IntentPullRequests},
		{"Did Arthur commit any tickets?", IntentCommits},
		{"commits closing issues by Mike", IntentCommits},
		{"Arthur's assigned tickets", IntentIssues},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			req, err := p.Parse(tt.text)
			if err != nil {
				t.Fatalf("Parse(%q) failed: %v", tt.text, err)
			}
			if req.Intent != tt.want {
				t.Errorf("Parse(%q) intent = %s, want %s", tt.text, req.Intent, tt.want)
			}
		})
	}
}

func TestParseWindow(t *testing.T) {
	p := testParser(t)

	tests := []struct {
		text string
		want Window
	}{
		{"What has Mike committed this week?", WindowThisWeek},
		{"Arthur's tickets from the past week", WindowThisWeek},
		{"current week summary for Bob", WindowThisWeek},
		{"Mike's commits in the last 7 days", WindowThisWeek},
		{"bobby weekly update", WindowThisWeek},
		{"What is Arthur working on these days?", WindowRecent},
		{"Show me Mike's tickets", WindowRecent},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			req, err := p.Parse(tt.text)
			if err != nil {
				t.Fatalf("Parse(%q) failed: %v", tt.text, err)
			}
			if req.Window != tt.want {
				t.Errorf("Parse(%q) window = %s, want %s", tt.text, req.Window, tt.want)
			}
		})
	}
}

func TestParseCombined(t *testing.T) {
	p := testParser(t)

	mike, ok := p.roster.Lookup("Mike")
	if !ok {
		t.Fatal("Mike missing from test roster")
	}
	want := Request{
		Member: mike,
		Intent: IntentCommits,
		Window: WindowThisWeek,
	}

	got, err := p.Parse("What has Mike committed this week?")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if diff := cmp.Diff(want, got, cmp.AllowUnexported(roster.Member{})); diff != "" {
		t.Errorf("request mismatch (-want +got):\n%s", diff)
	}
}
