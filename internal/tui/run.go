package tui

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// Run starts the chat in the alternate screen and blocks until the user
// quits or ctx is canceled.
func Run(ctx context.Context, cfg Config) error {
	if cfg.Handler == nil || cfg.Outbox == nil {
		return fmt.Errorf("chat needs a handler and an outbox")
	}
	if cfg.Phone == "" {
		return fmt.Errorf("chat needs a phone number")
	}

	p := tea.NewProgram(NewModel(ctx, cfg), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("chat: %w", err)
	}
	return nil
}
