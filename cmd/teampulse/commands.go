package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"teampulse/cmd/teampulse/ui"
	"teampulse/internal/monitor"
	"teampulse/internal/query"
	"teampulse/internal/roster"
)

var (
	asJSON        bool
	queryDeadline time.Duration
)

// queryCmd answers a single question and exits.
var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Ask one question and print the answer",
	Long: `Asks a single plain-language question about a configured team member:

  teampulse query "What has Mike committed this week?"
  teampulse query "Show me Arthur's open tickets"

With --json the merged activity envelope is printed instead of the
formatted answer.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

func runQuery(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), queryDeadline)
	defer cancel()

	// Graceful shutdown on Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	question := strings.Join(args, " ")
	logger.Info("processing question", zap.String("question", question))

	svc, err := monitor.New(cfg)
	if err != nil {
		return err
	}

	if asJSON {
		env, err := svc.HandleQueryEnvelope(ctx, question)
		if err != nil {
			if query.IsMemberNotFound(err) {
				return fmt.Errorf("no configured team member found in %q", question)
			}
			return err
		}
		out, err := json.MarshalIndent(env, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding envelope: %w", err)
		}
		fmt.Println(string(out))
		return nil
	}

	answer, err := svc.HandleQuery(ctx, question)
	if err != nil {
		if query.IsMemberNotFound(err) {
			fmt.Println(svc.UnknownMemberReply())
			return nil
		}
		return err
	}
	fmt.Println(answer)
	return nil
}

// membersCmd prints the roster with per-source identities.
var membersCmd = &cobra.Command{
	Use:   "members",
	Short: "List the configured team members",
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := roster.FromConfig(cfg.Team)
		if err != nil {
			return fmt.Errorf("invalid roster: %w", err)
		}

		styles := ui.DefaultStyles()
		fmt.Println(styles.Title.Render("Team"))
		for _, member := range r.Members() {
			fmt.Printf("  %-16s jira=%-24s github=%s\n",
				member.Name, member.JiraIdentity(), member.GitHubIdentity())
		}
		return nil
	},
}

// checkCmd probes both sources and reports connectivity.
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check connectivity to both activity sources",
	RunE:  runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	styles := ui.DefaultStyles()

	if err := cfg.Validate(); err != nil {
		fmt.Println(styles.Warning.Render("config:") + " " + err.Error())
	}

	svc, err := monitor.New(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	failed := false
	for _, result := range svc.Check(ctx) {
		if result.OK() {
			fmt.Printf("%s  %s\n", styles.Success.Render("ok"), result.Source)
			continue
		}
		failed = true
		fmt.Printf("%s  %s: %v\n", styles.Error.Render("fail"), result.Source, result.Err)
	}
	if failed {
		return fmt.Errorf("one or more sources unreachable")
	}
	return nil
}
