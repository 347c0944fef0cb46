package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/muurk/intmatrix/internal/deviceerr"
	"github.com/muurk/intmatrix/internal/driver"
	"github.com/muurk/intmatrix/internal/matrix"
	"github.com/muurk/intmatrix/internal/protocol"
	"github.com/muurk/intmatrix/internal/ui"
)

const commandTimeout = 5 * time.Second

// Backend is the part of the driver the shell drives.
type Backend interface {
	State() matrix.View
	Status() driver.Status
	Execute(ctx context.Context, intent protocol.Intent) (bool, error)
	Refresh()
}

// Shell is a line-oriented console for one matrix.
type Shell struct {
	backend Backend
	rl      *readline.Instance
	out     io.Writer
}

var completer = readline.NewPrefixCompleter(
	readline.PcItem("route"),
	readline.PcItem("all"),
	readline.PcItem("through"),
	readline.PcItem("lock"),
	readline.PcItem("unlock"),
	readline.PcItem("status"),
	readline.PcItem("grid"),
	readline.PcItem("refresh"),
	readline.PcItem("help"),
	readline.PcItem("quit"),
)

// New creates a shell with a readline prompt.
func New(backend Backend, prompt string) (*Shell, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    completer,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	return &Shell{backend: backend, rl: rl, out: rl.Stdout()}, nil
}

// Stdout returns a writer that properly coordinates with the readline input.
// Use this for log output to avoid interfering with the command prompt.
func (s *Shell) Stdout() io.Writer {
	return s.rl.Stdout()
}

// Watch prints connection and lock changes until events is closed.
func (s *Shell) Watch(events <-chan driver.Event) {
	for ev := range events {
		switch ev.Kind {
		case driver.EventStatus:
			fmt.Fprintln(s.out, "\n"+ui.RenderStatus(ev.Status))
		case driver.EventState:
			if ev.Change.Has(matrix.ChangeModel) {
				fmt.Fprintf(s.out, "\nmodel: %s\n", ev.View.Model)
			}
			if ev.Change.Has(matrix.ChangeLock) {
				fmt.Fprintln(s.out, "\nfront panel: "+ui.RenderLock(ev.View.Info.Lock))
			}
		}
		if s.rl != nil {
			s.rl.Refresh()
		}
	}
}

// Run starts the interactive command loop. It returns when the user quits,
// input ends or ctx is cancelled.
func (s *Shell) Run(ctx context.Context) error {
	defer s.rl.Close()

	fmt.Fprintln(s.out, ui.RenderStatus(s.backend.Status()))
	fmt.Fprintln(s.out, "Type 'help' for commands.")

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		line, err := s.rl.Readline()
		if err != nil {
			// EOF or interrupt
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			fmt.Fprintln(s.out, "Exiting...")
			return nil
		}

		if strings.TrimSpace(line) == "" {
			continue
		}
		if !s.Dispatch(ctx, line) {
			fmt.Fprintln(s.out, "Exiting...")
			return nil
		}
	}
}

// Dispatch parses and executes one line. It returns false when the user
// asked to quit.
func (s *Shell) Dispatch(ctx context.Context, line string) bool {
	view := s.backend.State()

	cmd, err := Parse(line, view.Model)
	if err != nil {
		fmt.Fprintf(s.out, "error: %v\n", err)
		return true
	}

	if cmd.Intent != nil {
		s.execute(ctx, *cmd.Intent)
		return true
	}

	switch cmd.Verb {
	case VerbStatus:
		fmt.Fprintln(s.out, ui.RenderStatus(s.backend.Status()))
		fmt.Fprintln(s.out, ui.RenderDeviceInfo(view))
		fmt.Fprintln(s.out, ui.RenderRoutingTable(view))
	case VerbGrid:
		fmt.Fprintln(s.out, ui.RenderCrosspoints(view))
	case VerbRefresh:
		s.backend.Refresh()
		fmt.Fprintln(s.out, "refresh requested")
	case VerbHelp:
		s.printHelp(view.Model)
	case VerbQuit:
		return false
	}
	return true
}

func (s *Shell) execute(ctx context.Context, intent protocol.Intent) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	sent, err := s.backend.Execute(ctx, intent)
	switch {
	case err == nil:
		fmt.Fprintf(s.out, "sent: %s\n", intent)
	case !sent && errors.Is(err, driver.ErrCommandSuppressed):
		fmt.Fprintf(s.out, "not connected, %s dropped\n", intent)
	default:
		fmt.Fprintf(s.out, "error: %s\n", deviceerr.ShortMessage(err))
	}
}

func (s *Shell) printHelp(m protocol.Model) {
	n := m.Ports()
	if n == 0 {
		n = protocol.DefaultModel.Ports()
	}
	fmt.Fprintf(s.out, `
Matrix Commands (ports 1-%d):
  route <in> <out>[,<out>...] - Route an input to one or more outputs
  all <in>                    - Route an input to every output
  through                     - Route every input to the output with the same number
  lock                        - Lock the front panel
  unlock                      - Unlock the front panel

  status                      - Show connection and routing table
  grid                        - Show routing as a crosspoint grid
  refresh                     - Poll the web interface for full state
  help                        - Show this help
  quit                        - Exit
`, n)
}
