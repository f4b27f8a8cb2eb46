package query

import (
	"regexp"
	"strings"

	"teampulse/internal/logging"
	"teampulse/internal/roster"
)

// intentRule is one row of the intent decision table. Rules are evaluated
// in order; the first match wins, so the slice order IS the priority order:
// pull requests > commits > issues, with summary as the default.
type intentRule struct {
	intent   Intent
	keywords []string
}

var intentRules = []intentRule{
	{IntentPullRequests, []string{
		"pull request", "pull requests", "merge request", "merge requests",
		"pr", "prs", "review", "reviews",
	}},
	{IntentCommits, []string{
		"commit", "commits", "committed", "push", "pushed",
		"code change", "code changes", "coding",
	}},
	{IntentIssues, []string{
		"ticket", "tickets", "issue", "issues", "task", "tasks",
		"jira", "assigned", "current work",
	}},
}

var weekKeywords = []string{
	"this week", "past week", "current week",
	"last 7 days", "past 7 days", "weekly",
}

// articles before a name mean the text is about a thing named like the
// member, not the member ("the Arthur project").
var articles = []string{"the", "a", "an"}

// projectWords after a name mean the same.
var projectWords = map[string]bool{
	"project":    true,
	"team":       true,
	"repo":       true,
	"repository": true,
}

// wordPatterns caches word-boundary matchers for single-word keywords so
// "pr" never matches inside "print".
var wordPatterns = map[string]*regexp.Regexp{}

func init() {
	for _, rule := range intentRules {
		for _, kw := range rule.keywords {
			compileWordPattern(kw)
		}
	}
	for _, kw := range weekKeywords {
		compileWordPattern(kw)
	}
}

func compileWordPattern(keyword string) {
	if strings.Contains(keyword, " ") {
		return // phrases use substring matching
	}
	wordPatterns[keyword] = regexp.MustCompile(`\b` + regexp.QuoteMeta(keyword) + `\b`)
}

func matchKeyword(text, keyword string) bool {
	if re, ok := wordPatterns[keyword]; ok {
		return re.MatchString(text)
	}
	return strings.Contains(text, keyword)
}

// Parser interprets free text against a member roster.
type Parser struct {
	roster   *roster.Roster
	patterns []memberPattern
}

type memberPattern struct {
	member roster.Member
	re     *regexp.Regexp
}

// NewParser builds a parser for the given roster. Member name matchers are
// compiled once here.
func NewParser(r *roster.Roster) *Parser {
	p := &Parser{roster: r}
	for _, m := range r.Members() {
		p.patterns = append(p.patterns, memberPattern{
			member: m,
			re:     regexp.MustCompile(`\b` + regexp.QuoteMeta(strings.ToLower(m.Name)) + `\b`),
		})
	}
	return p
}

// Parse interprets one free-text query. The only error is member
// resolution failing; intent and window always default rather than fail.
func (p *Parser) Parse(text string) (Request, error) {
	lowered := strings.ToLower(strings.TrimSpace(text))

	member, ok := p.findMember(lowered)
	if !ok {
		logging.QueryDebug("no roster member in query: %q", text)
		return Request{}, &MemberNotFoundError{Text: text}
	}

	req := Request{
		Member: member,
		Intent: detectIntent(lowered),
		Window: detectWindow(lowered),
	}
	logging.Query("interpreted member=%s intent=%s window=%s", req.Member.Name, req.Intent, req.Window)
	return req, nil
}

// findMember scans for configured names and returns the earliest valid
// mention. Ties at the same position go to roster order.
func (p *Parser) findMember(lowered string) (roster.Member, bool) {
	best := -1
	var found roster.Member

	for _, mp := range p.patterns {
		pos, ok := firstValidMention(lowered, mp.re)
		if !ok {
			continue
		}
		if best == -1 || pos < best {
			best = pos
			found = mp.member
		}
	}
	return found, best != -1
}

// firstValidMention returns the first occurrence that is a mention of the
// person rather than a thing named after them.
func firstValidMention(text string, re *regexp.Regexp) (int, bool) {
	for _, loc := range re.FindAllStringIndex(text, -1) {
		if precededByArticle(text, loc[0]) {
			continue
		}
		if followedByProjectWord(text, loc[1]) {
			continue
		}
		return loc[0], true
	}
	return 0, false
}

func precededByArticle(text string, start int) bool {
	prefix := strings.TrimRight(text[:start], " ")
	for _, art := range articles {
		if prefix == art || strings.HasSuffix(prefix, " "+art) {
			return true
		}
	}
	return false
}

func followedByProjectWord(text string, end int) bool {
	rest := text[end:]
	// Step over a possessive before checking the next word
	rest = strings.TrimPrefix(rest, "'s")
	rest = strings.TrimLeft(rest, " ")
	next := rest
	if idx := strings.IndexAny(rest, " .,!?;:"); idx >= 0 {
		next = rest[:idx]
	}
	return projectWords[next]
}

func detectIntent(lowered string) Intent {
	for _, rule := range intentRules {
		for _, kw := range rule.keywords {
			if matchKeyword(lowered, kw) {
				return rule.intent
			}
		}
	}
	return IntentSummary
}

func detectWindow(lowered string) Window {
	for _, kw := range weekKeywords {
		if matchKeyword(lowered, kw) {
			return WindowThisWeek
		}
	}
	return WindowRecent
}
