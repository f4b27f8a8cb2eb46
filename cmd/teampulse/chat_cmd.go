package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"teampulse/cmd/teampulse/chat"
	"teampulse/cmd/teampulse/ui"
	"teampulse/internal/monitor"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start the interactive chat interface",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat()
	},
}

// runChat starts the interactive chat interface.
func runChat() error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	svc, err := monitor.New(cfg)
	if err != nil {
		return err
	}

	p := tea.NewProgram(
		chat.New(svc, ui.DefaultStyles()),
		tea.WithAltScreen(),
	)
	_, err = p.Run()
	return err
}
