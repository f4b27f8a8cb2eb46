// Package main provides the teampulse CLI entry point.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"teampulse/internal/config"
	"teampulse/internal/logging"
)

// Build metadata, set via ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	// Global flags
	verbose    bool
	configPath string

	logger *zap.Logger
	cfg    *config.Config
)

// rootCmd represents the base command. Running it without a subcommand
// starts the interactive chat.
var rootCmd = &cobra.Command{
	Use:   "teampulse",
	Short: "teampulse - ask what your teammates are working on",
	Long: `teampulse answers plain-language questions about team activity by
combining the issue tracker and the code host:

  teampulse query "What has Mike committed this week?"
  teampulse query --json "Show me Arthur's pull requests"
  teampulse chat

The roster, credentials, and lookback windows come from teampulse.yaml
plus environment overrides (JIRA_API_KEY, GITHUB_API_KEY, ...).`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// The chat TUI owns the terminal, so it skips the zap logger.
		interactive := cmd.Name() == "chat" || cmd.Name() == cmd.Root().Name()

		if !interactive {
			var err error
			if verbose {
				logger, err = zap.NewDevelopment()
			} else {
				logger, err = zap.NewProduction()
			}
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
		}

		path := configPath
		if path == "" {
			path = config.DefaultConfigPath()
		}
		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if err := logging.Initialize(logging.Options{
			Enabled: cfg.Logging.Enabled,
			Level:   cfg.Logging.Level,
			Dir:     cfg.Logging.Dir,
		}); err != nil {
			return fmt.Errorf("failed to initialize logging: %w", err)
		}
		if err := logging.InitAudit(); err != nil && logger != nil {
			logger.Warn("audit log unavailable", zap.Error(err))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAudit()
		logging.CloseAll()
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("teampulse %s (commit %s, built %s)\n", version, commit, date)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (default: ./teampulse.yaml)")

	queryCmd.Flags().BoolVar(&asJSON, "json", false, "Print the activity envelope as JSON")
	queryCmd.Flags().DurationVar(&queryDeadline, "timeout", 2*time.Minute, "Overall query timeout")

	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(membersCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
