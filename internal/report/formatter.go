// Package report renders an activity envelope as human-readable text.
// Format is a pure function: the same envelope always produces the same
// string, and every combination of not-requested, failed, empty, and
// populated slots renders without error.
package report

import (
	"fmt"
	"strings"

	"teampulse/internal/activity"
	"teampulse/internal/logging"
	"teampulse/internal/query"
)

const (
	// Dedicated views show more items than summary sections.
	maxListItems    = 5
	maxSummaryItems = 3

	// Display lengths for one-line messages and titles.
	commitListLen    = 50
	commitSummaryLen = 40
	prListLen        = 45
	prSummaryLen     = 35
	descriptionLen   = 80
)

// Format renders the envelope. Not-requested slots are omitted, failed
// slots get a short per-source note, and an envelope with no items at all
// collapses into a single combined message.
func Format(env *activity.Envelope) string {
	logging.ReportDebug("format member=%s issues=%s commits=%s prs=%s",
		env.Member, env.Issues.Status, env.Commits.Status, env.PullRequests.Status)

	if env.AllQuiet() {
		return quietMessage(env)
	}

	switch {
	case onlyIssues(env):
		return issueView(env)
	case onlyCommits(env):
		return commitView(env)
	case onlyPullRequests(env):
		return pullRequestView(env)
	default:
		return summaryView(env)
	}
}

func onlyIssues(env *activity.Envelope) bool {
	return env.Issues.Requested() && !env.Commits.Requested() && !env.PullRequests.Requested()
}

func onlyCommits(env *activity.Envelope) bool {
	return env.Commits.Requested() && !env.Issues.Requested() && !env.PullRequests.Requested()
}

func onlyPullRequests(env *activity.Envelope) bool {
	return env.PullRequests.Requested() && !env.Issues.Requested() && !env.Commits.Requested()
}

// quietMessage is the single combined line for an envelope where every
// requested source came back empty or failed.
func quietMessage(env *activity.Envelope) string {
	msg := fmt.Sprintf("No recent activity found for %s.", env.Member)
	if env.Issues.Failed() || env.Commits.Failed() || env.PullRequests.Failed() {
		msg += " Some activity sources couldn't be reached, so there may be more than this."
	}
	return msg
}

func windowPhrase(w query.Window) string {
	if w == query.WindowThisWeek {
		return "this week"
	}
	return "recently"
}

func plural(n int, singular, pluralForm string) string {
	if n == 1 {
		return singular
	}
	return pluralForm
}

// issueView renders the dedicated ticket listing.
func issueView(env *activity.Envelope) string {
	items := env.Issues.Items
	var sb strings.Builder

	fmt.Fprintf(&sb, "%s has %d active %s %s:\n", env.Member, len(items),
		plural(len(items), "ticket", "tickets"), windowPhrase(env.Window))

	shown := items
	if len(shown) > maxListItems {
		shown = shown[:maxListItems]
	}
	for i, item := range shown {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, issueLine(item))
		if item.Description != "" {
			fmt.Fprintf(&sb, "   %s\n", truncate(item.Description, descriptionLen))
		}
	}
	if extra := len(items) - len(shown); extra > 0 {
		fmt.Fprintf(&sb, "...plus %d more\n", extra)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// commitView renders the dedicated commit listing.
func commitView(env *activity.Envelope) string {
	items := env.Commits.Items
	var sb strings.Builder

	fmt.Fprintf(&sb, "%s made %d %s %s:\n", env.Member, len(items),
		plural(len(items), "commit", "commits"), windowPhrase(env.Window))

	shown := items
	if len(shown) > maxListItems {
		shown = shown[:maxListItems]
	}
	for i, item := range shown {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, commitLine(item, commitListLen))
	}
	if extra := len(items) - len(shown); extra > 0 {
		fmt.Fprintf(&sb, "...plus %d more\n", extra)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// pullRequestView renders the dedicated pull-request listing.
func pullRequestView(env *activity.Envelope) string {
	items := env.PullRequests.Items
	var sb strings.Builder

	fmt.Fprintf(&sb, "%s has %d pull %s %s%s:\n", env.Member, len(items),
		plural(len(items), "request", "requests"), windowPhrase(env.Window), stateTally(items))

	shown := items
	if len(shown) > maxListItems {
		shown = shown[:maxListItems]
	}
	for i, item := range shown {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, pullRequestLine(item, prListLen))
	}
	if extra := len(items) - len(shown); extra > 0 {
		fmt.Fprintf(&sb, "...plus %d more\n", extra)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// summaryView renders the combined report. Sections for not-requested
// slots are omitted entirely; failed and empty slots get one line each.
func summaryView(env *activity.Envelope) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Here's what %s has been working on %s:\n", env.Member, windowPhrase(env.Window))

	if env.Issues.Requested() {
		sb.WriteString("\n")
		switch {
		case env.Issues.Failed():
			sb.WriteString("Couldn't reach the issue tracker, so ticket data is missing.\n")
		case env.Issues.Empty():
			sb.WriteString("No recent tickets.\n")
		default:
			items := env.Issues.Items
			fmt.Fprintf(&sb, "Tickets (%d):\n", len(items))
			writeSection(&sb, len(items), func(i int) string { return issueLine(items[i]) })
		}
	}

	if env.Commits.Requested() {
		sb.WriteString("\n")
		switch {
		case env.Commits.Failed():
			sb.WriteString("Couldn't reach the code host, so commit data is missing.\n")
		case env.Commits.Empty():
			sb.WriteString("No recent commits.\n")
		default:
			items := env.Commits.Items
			fmt.Fprintf(&sb, "Commits (%d):\n", len(items))
			writeSection(&sb, len(items), func(i int) string { return commitLine(items[i], commitSummaryLen) })
		}
	}

	if env.PullRequests.Requested() {
		sb.WriteString("\n")
		switch {
		case env.PullRequests.Failed():
			sb.WriteString("Couldn't reach the code host, so pull request data is missing.\n")
		case env.PullRequests.Empty():
			sb.WriteString("No recent pull requests.\n")
		default:
			items := env.PullRequests.Items
			fmt.Fprintf(&sb, "Pull requests (%d):\n", len(items))
			writeSection(&sb, len(items), func(i int) string { return pullRequestLine(items[i], prSummaryLen) })
		}
	}

	return strings.TrimRight(sb.String(), "\n")
}

// writeSection writes up to maxSummaryItems numbered lines plus overflow.
func writeSection(sb *strings.Builder, total int, line func(int) string) {
	shown := total
	if shown > maxSummaryItems {
		shown = maxSummaryItems
	}
	for i := 0; i < shown; i++ {
		fmt.Fprintf(sb, "  %d. %s\n", i+1, line(i))
	}
	if extra := total - shown; extra > 0 {
		fmt.Fprintf(sb, "  ...plus %d more\n", extra)
	}
}

func issueLine(item activity.IssueItem) string {
	status := item.Status
	if item.Priority != "" {
		status += ", " + item.Priority
	}
	return fmt.Sprintf("%s: %s (%s)", item.Key, item.Summary, status)
}

func commitLine(item activity.CommitItem, limit int) string {
	msg := truncate(compactCommitMessage(item.Message), limit)
	if item.Repo != "" {
		return fmt.Sprintf("%s %s (%s)", item.ShortHash, msg, item.Repo)
	}
	return fmt.Sprintf("%s %s", item.ShortHash, msg)
}

func pullRequestLine(item activity.PullRequestItem, limit int) string {
	return fmt.Sprintf("#%d %s (%s)", item.Number, truncate(item.Title, limit), item.State)
}

func stateTally(items []activity.PullRequestItem) string {
	counts := map[string]int{}
	for _, item := range items {
		counts[strings.ToLower(item.State)]++
	}
	var parts []string
	for _, state := range []string{"open", "merged", "closed"} {
		if counts[state] > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", counts[state], state))
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return " (" + strings.Join(parts, ", ") + ")"
}

// compactCommitMessage reduces a commit message to its subject line and
// shortens the noisy merge-commit prefix.
func compactCommitMessage(msg string) string {
	if idx := strings.IndexByte(msg, '\n'); idx >= 0 {
		msg = msg[:idx]
	}
	msg = strings.TrimSpace(msg)

	if rest, ok := strings.CutPrefix(msg, "Merge pull request #"); ok {
		num := rest
		if idx := strings.IndexByte(rest, ' '); idx >= 0 {
			num = rest[:idx]
		}
		return "Merge PR #" + num
	}
	return msg
}

// truncate cuts s at a word boundary near limit, appending an ellipsis.
func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	cut := string(runes[:limit])
	if idx := strings.LastIndex(cut, " "); idx > limit/2 {
		cut = cut[:idx]
	}
	return cut + "..."
}
