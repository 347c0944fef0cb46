package monitor

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/muurk/intmatrix/internal/driver"
)

// Run shows the monitor until the user quits or ctx is cancelled. Events
// from the driver are forwarded into the program as EventMsg.
func Run(ctx context.Context, backend Backend, events <-chan driver.Event, host string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(New(backend, host), tea.WithAltScreen(), tea.WithContext(ctx))

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				p.Send(EventMsg(ev))
			}
		}
	}()

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
