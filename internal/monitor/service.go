// Package monitor is the inbound boundary: it takes a free-text question,
// runs interpretation, gathering, and formatting, and hands back the
// answer text. Callers never see source failures as errors; those are
// folded into the answer. The only error a query can return is an
// interpretation failure.
package monitor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"teampulse/internal/activity"
	"teampulse/internal/config"
	"teampulse/internal/logging"
	"teampulse/internal/query"
	"teampulse/internal/report"
	"teampulse/internal/roster"
	"teampulse/internal/sources"
	"teampulse/internal/sources/github"
	"teampulse/internal/sources/jira"
)

// Pinger is the connectivity probe a source client exposes.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Service owns the query pipeline for one configured team.
type Service struct {
	roster *roster.Roster
	parser *query.Parser
	orch   *activity.Orchestrator

	jiraPing   Pinger
	githubPing Pinger
}

// New wires a service from config: roster, interpreter, source clients,
// and orchestrator.
func New(cfg *config.Config) (*Service, error) {
	r, err := roster.FromConfig(cfg.Team)
	if err != nil {
		return nil, fmt.Errorf("building roster: %w", err)
	}

	jiraClient := jira.NewClient(jira.Config{
		BaseURL:    cfg.Jira.BaseURL,
		Email:      cfg.Jira.Email,
		APIToken:   cfg.Jira.APIToken,
		MaxResults: cfg.Jira.MaxResults,
		Enrich:     cfg.Jira.Enrich,
		Timeout:    cfg.GetSourceTimeout(),
	})
	githubClient := github.NewClient(github.Config{
		BaseURL:  cfg.GitHub.BaseURL,
		APIToken: cfg.GitHub.APIToken,
		PerPage:  cfg.GitHub.PerPage,
		Timeout:  cfg.GetSourceTimeout(),
	})

	s := NewWithFetchers(r, jiraClient, githubClient, activity.Options{
		CallTimeout:    cfg.GetSourceTimeout(),
		RecentLookback: cfg.RecentLookback(),
		WeekLookback:   cfg.WeekLookback(),
	})
	s.jiraPing = jiraClient
	s.githubPing = githubClient

	logging.Boot("monitor service ready: %d members, jira=%s, github=%s",
		r.Len(), cfg.Jira.BaseURL, cfg.GitHub.BaseURL)
	return s, nil
}

// NewWithFetchers wires a service around explicit fetchers. The ping
// probes stay unset unless the fetchers also implement Pinger.
func NewWithFetchers(r *roster.Roster, issues activity.IssueFetcher, code activity.CodeFetcher, opts activity.Options) *Service {
	s := &Service{
		roster: r,
		parser: query.NewParser(r),
		orch:   activity.NewOrchestrator(issues, code, opts),
	}
	if p, ok := issues.(Pinger); ok {
		s.jiraPing = p
	}
	if p, ok := code.(Pinger); ok {
		s.githubPing = p
	}
	return s
}

// Roster exposes the configured team.
func (s *Service) Roster() *roster.Roster {
	return s.roster
}

// HandleQuery answers a free-text question about a team member. Source
// failures come back inside the answer text; the returned error is only
// ever an interpretation failure.
func (s *Service) HandleQuery(ctx context.Context, text string) (string, error) {
	env, err := s.HandleQueryEnvelope(ctx, text)
	if err != nil {
		return "", err
	}
	return report.Format(env), nil
}

// HandleQueryEnvelope is HandleQuery without the formatting step, for
// callers that want the structured result.
func (s *Service) HandleQueryEnvelope(ctx context.Context, text string) (*activity.Envelope, error) {
	rid := uuid.NewString()[:8]
	qlog := logging.WithRequestID(logging.CategoryQuery, rid)
	audit := logging.AuditFor(rid)
	timer := logging.StartTimer(logging.CategoryQuery, "handle_query")

	audit.QueryReceived(text)
	qlog.Info("received query len=%d", len(text))

	parseStart := time.Now()
	req, err := s.parser.Parse(text)
	if err != nil {
		if query.IsMemberNotFound(err) {
			audit.MemberNotFound(text)
			qlog.Warn("no configured member in query")
		}
		timer.Stop()
		return nil, err
	}
	audit.IntentParsed(req.Member.Name, string(req.Intent), string(req.Window), time.Since(parseStart))

	gatherStart := time.Now()
	env := s.orch.Gather(ctx, req)
	gatherElapsed := time.Since(gatherStart)

	recordFetches(audit, env, gatherElapsed)
	audit.QueryAnswered(req.Member.Name, time.Since(parseStart))
	qlog.Info("answered member=%s intent=%s items=%v", req.Member.Name, req.Intent, env.HasItems())
	timer.StopWithThreshold(2 * time.Second)

	return env, nil
}

// recordFetches writes one audit event per requested slot. The duration
// is the whole gather, since the calls run concurrently.
func recordFetches(audit *logging.AuditLogger, env *activity.Envelope, elapsed time.Duration) {
	if env.Issues.Requested() {
		audit.SourceFetch(string(sources.Jira), len(env.Issues.Items), elapsed, errOf(env.Issues.Err))
	}
	if env.Commits.Requested() {
		audit.SourceFetch(string(sources.GitHub), len(env.Commits.Items), elapsed, errOf(env.Commits.Err))
	}
	if env.PullRequests.Requested() {
		audit.SourceFetch(string(sources.GitHub), len(env.PullRequests.Items), elapsed, errOf(env.PullRequests.Err))
	}
}

func errOf(err *sources.Error) error {
	if err == nil {
		return nil
	}
	return err
}

// UnknownMemberReply is the user-facing text for a question that names
// nobody on the roster.
func (s *Service) UnknownMemberReply() string {
	return fmt.Sprintf("I couldn't spot a team member in that question. I currently know about: %s.",
		strings.Join(s.roster.Names(), ", "))
}

// CheckResult is one source's connectivity probe outcome.
type CheckResult struct {
	Source sources.Name
	Err    error
}

// OK reports whether the probe succeeded.
func (r CheckResult) OK() bool {
	return r.Err == nil
}

// Check probes both sources concurrently and reports per-source results
// in a fixed order: issue tracker first, then code host.
func (s *Service) Check(ctx context.Context) []CheckResult {
	rid := uuid.NewString()[:8]
	audit := logging.AuditFor(rid)

	results := []CheckResult{
		{Source: sources.Jira},
		{Source: sources.GitHub},
	}

	var eg errgroup.Group
	eg.Go(func() error {
		results[0].Err = runPing(ctx, s.jiraPing, sources.Jira)
		return nil
	})
	eg.Go(func() error {
		results[1].Err = runPing(ctx, s.githubPing, sources.GitHub)
		return nil
	})
	eg.Wait()

	for _, r := range results {
		audit.CheckRun(string(r.Source), r.Err)
	}
	return results
}

func runPing(ctx context.Context, p Pinger, name sources.Name) error {
	if p == nil {
		return sources.NewError(name, sources.KindUnavailable, "not configured")
	}
	return p.Ping(ctx)
}
