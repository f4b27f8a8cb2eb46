package activity

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"teampulse/internal/logging"
	"teampulse/internal/query"
	"teampulse/internal/sources"
)

// IssueFetcher is the issue-tracker side of the fan-out.
type IssueFetcher interface {
	AssignedIssues(ctx context.Context, assignee string, since time.Time) ([]IssueItem, error)
}

// CodeFetcher is the code-host side of the fan-out.
type CodeFetcher interface {
	CommitsByAuthor(ctx context.Context, login string, since time.Time) ([]CommitItem, error)
	PullRequestsByAuthor(ctx context.Context, login string, since time.Time) ([]PullRequestItem, error)
}

// Options tunes the orchestrator. Zero values get defaults.
type Options struct {
	// CallTimeout bounds each source call independently.
	CallTimeout time.Duration

	// Lookbacks per window.
	RecentLookback time.Duration
	WeekLookback   time.Duration
}

const (
	defaultCallTimeout    = 30 * time.Second
	defaultRecentLookback = 14 * 24 * time.Hour
	defaultWeekLookback   = 7 * 24 * time.Hour
)

// Orchestrator fans one structured request out to the sources it needs and
// joins the results into an envelope. Source failures never escape it.
type Orchestrator struct {
	issues IssueFetcher
	code   CodeFetcher
	opts   Options
}

// NewOrchestrator wires the fetchers. Either fetcher may be nil, in which
// case its calls are recorded as unavailable rather than dispatched.
func NewOrchestrator(issues IssueFetcher, code CodeFetcher, opts Options) *Orchestrator {
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = defaultCallTimeout
	}
	if opts.RecentLookback <= 0 {
		opts.RecentLookback = defaultRecentLookback
	}
	if opts.WeekLookback <= 0 {
		opts.WeekLookback = defaultWeekLookback
	}
	return &Orchestrator{issues: issues, code: code, opts: opts}
}

// Lookback maps a window to its configured duration.
func (o *Orchestrator) Lookback(w query.Window) time.Duration {
	if w == query.WindowThisWeek {
		return o.opts.WeekLookback
	}
	return o.opts.RecentLookback
}

// Gather dispatches the calls the intent needs, all concurrently, and
// waits for every one to settle. Each slot is written exactly once by its
// owning goroutine; a failure in one source cannot cancel or corrupt
// another. Gather itself never fails.
func (o *Orchestrator) Gather(ctx context.Context, req query.Request) *Envelope {
	since := time.Now().Add(-o.Lookback(req.Window))

	env := &Envelope{
		Member:       req.Member.Name,
		Window:       req.Window,
		GeneratedAt:  time.Now(),
		Issues:       IssueResult{Status: StatusNotRequested},
		Commits:      CommitResult{Status: StatusNotRequested},
		PullRequests: PullRequestResult{Status: StatusNotRequested},
	}

	needIssues := req.Intent == query.IntentIssues || req.Intent == query.IntentSummary
	needCommits := req.Intent == query.IntentCommits || req.Intent == query.IntentSummary
	needPRs := req.Intent == query.IntentPullRequests || req.Intent == query.IntentSummary

	logging.Gather("dispatch member=%s intent=%s issues=%v commits=%v prs=%v",
		req.Member.Name, req.Intent, needIssues, needCommits, needPRs)
	timer := logging.StartTimer(logging.CategoryGather, "activity fan-out")
	defer timer.StopWithThreshold(o.opts.CallTimeout)

	// Plain errgroup, not WithContext: the goroutines always return nil so
	// one slow or broken source can never cancel the others.
	var eg errgroup.Group

	if needIssues {
		eg.Go(func() error {
			callCtx, cancel := context.WithTimeout(ctx, o.opts.CallTimeout)
			defer cancel()

			items, err := o.fetchIssues(callCtx, req.Member.JiraIdentity(), since)
			if err != nil {
				se := sources.Ensure(sources.Jira, err)
				logging.GatherWarn("issue fetch failed: %v", se)
				env.Issues = IssueResult{Status: StatusFailed, Err: se}
				return nil
			}
			env.Issues = IssueResult{Status: StatusOK, Items: items}
			return nil
		})
	}

	if needCommits {
		eg.Go(func() error {
			callCtx, cancel := context.WithTimeout(ctx, o.opts.CallTimeout)
			defer cancel()

			items, err := o.fetchCommits(callCtx, req.Member.GitHubIdentity(), since)
			if err != nil {
				se := sources.Ensure(sources.GitHub, err)
				logging.GatherWarn("commit fetch failed: %v", se)
				env.Commits = CommitResult{Status: StatusFailed, Err: se}
				return nil
			}
			env.Commits = CommitResult{Status: StatusOK, Items: items}
			return nil
		})
	}

	if needPRs {
		eg.Go(func() error {
			callCtx, cancel := context.WithTimeout(ctx, o.opts.CallTimeout)
			defer cancel()

			items, err := o.fetchPullRequests(callCtx, req.Member.GitHubIdentity(), since)
			if err != nil {
				se := sources.Ensure(sources.GitHub, err)
				logging.GatherWarn("pull request fetch failed: %v", se)
				env.PullRequests = PullRequestResult{Status: StatusFailed, Err: se}
				return nil
			}
			env.PullRequests = PullRequestResult{Status: StatusOK, Items: items}
			return nil
		})
	}

	// Full join: every dispatched call settles before the envelope returns.
	eg.Wait()

	logging.Gather("gathered member=%s issues=%s commits=%s prs=%s",
		req.Member.Name, env.Issues.Status, env.Commits.Status, env.PullRequests.Status)
	return env
}

func (o *Orchestrator) fetchIssues(ctx context.Context, assignee string, since time.Time) ([]IssueItem, error) {
	if o.issues == nil {
		return nil, sources.NewError(sources.Jira, sources.KindUnavailable, "issue tracker not configured")
	}
	return o.issues.AssignedIssues(ctx, assignee, since)
}

func (o *Orchestrator) fetchCommits(ctx context.Context, login string, since time.Time) ([]CommitItem, error) {
	if o.code == nil {
		return nil, sources.NewError(sources.GitHub, sources.KindUnavailable, "code host not configured")
	}
	return o.code.CommitsByAuthor(ctx, login, since)
}

func (o *Orchestrator) fetchPullRequests(ctx context.Context, login string, since time.Time) ([]PullRequestItem, error) {
	if o.code == nil {
		return nil, sources.NewError(sources.GitHub, sources.KindUnavailable, "code host not configured")
	}
	return o.code.PullRequestsByAuthor(ctx, login, since)
}
