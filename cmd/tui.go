package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/likeshift/internal/shared"
	"github.com/desertthunder/likeshift/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive terminal UI for the liked songs migration.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	source, err := r.authenticatedService(ctx, shared.RoleSource)
	if err != nil {
		return err
	}
	dest, err := r.authenticatedService(ctx, shared.RoleDest)
	if err != nil {
		return err
	}

	if r.engine == nil {
		return fmt.Errorf("%w: migration engine not initialized", shared.ErrServiceUnavailable)
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger("./tmp/likeshift-tui.log")
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	model := ui.NewModel(ctx, source, dest, r.engine)
	p := tea.NewProgram(model)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
