package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/alquimista/studio/internal/shared"
	"github.com/alquimista/studio/internal/ui"
	"github.com/urfave/cli/v3"
)

// Studio launches the interactive terminal UI for the studio client.
func (r *Runner) Studio(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger(r.config.Studio.LogPath)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)
	defer r.conn.Disconnect()

	model := ui.NewModel(ctx, r.session, r.conn, r.client, r.library, r.feed, r.tracker, r.ledger)
	p := tea.NewProgram(model)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
