package monitor

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/intmatrix/internal/deviceerr"
	"github.com/muurk/intmatrix/internal/driver"
	"github.com/muurk/intmatrix/internal/matrix"
	"github.com/muurk/intmatrix/internal/protocol"
	"github.com/muurk/intmatrix/internal/transport"
	"github.com/muurk/intmatrix/internal/ui"
)

// commandTimeout bounds one Execute call from the monitor.
const commandTimeout = 5 * time.Second

// Backend is the part of the driver the monitor drives.
type Backend interface {
	State() matrix.View
	Status() driver.Status
	Execute(ctx context.Context, intent protocol.Intent) (bool, error)
	Refresh()
}

// EventMsg wraps a driver event for delivery through tea.Program.Send.
type EventMsg driver.Event

// commandResultMsg reports a finished Execute call.
type commandResultMsg struct {
	intent protocol.Intent
	sent   bool
	err    error
}

// Model is the Bubble Tea model for the live monitor.
type Model struct {
	backend Backend
	host    string

	view   matrix.View
	status driver.Status

	// cursor is the selected output, 1-based
	cursor  int
	allMode bool
	grid    bool
	pending int

	message    string
	messageErr bool

	width  int
	height int

	spinner spinner.Model
	help    help.Model
	keys    keyMap
}

// New creates a monitor model seeded with the backend's current state.
func New(backend Backend, host string) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(ui.PrimaryColor)

	return Model{
		backend: backend,
		host:    host,
		view:    backend.State(),
		status:  backend.Status(),
		cursor:  1,
		spinner: s,
		help:    help.New(),
		keys:    newKeyMap(),
	}
}

// Init starts the spinner.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case EventMsg:
		switch msg.Kind {
		case driver.EventState:
			m.view = msg.View
			if m.cursor > m.view.Ports() {
				m.cursor = 1
			}
		case driver.EventStatus:
			m.status = msg.Status
		}
		return m, nil

	case commandResultMsg:
		if m.pending > 0 {
			m.pending--
		}
		switch {
		case msg.err == nil:
			m.setMessage("sent: "+msg.intent.String(), false)
		case !msg.sent && m.status.State != transport.StatusOK:
			m.setMessage("not connected: "+msg.intent.String()+" dropped", true)
		default:
			m.setMessage(deviceerr.ShortMessage(msg.err), true)
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Up):
		m.cursor--
		if m.cursor < 1 {
			m.cursor = m.ports()
		}

	case key.Matches(msg, m.keys.Down):
		m.cursor++
		if m.cursor > m.ports() {
			m.cursor = 1
		}

	case key.Matches(msg, m.keys.Input):
		input, _ := strconv.Atoi(msg.String())
		if input > m.ports() {
			m.setMessage(fmt.Sprintf("input %d out of range for %s", input, m.view.Model), true)
			return m, nil
		}
		intent := protocol.Route(input, m.cursor)
		if m.allMode {
			intent = protocol.RouteAll(input)
			m.allMode = false
		}
		return m.execute(intent)

	case key.Matches(msg, m.keys.AllMode):
		m.allMode = !m.allMode

	case key.Matches(msg, m.keys.Cancel):
		m.allMode = false
		m.message = ""

	case key.Matches(msg, m.keys.PassThrough):
		return m.execute(protocol.PassThrough())

	case key.Matches(msg, m.keys.Lock):
		return m.execute(protocol.Lock())

	case key.Matches(msg, m.keys.Unlock):
		return m.execute(protocol.Unlock())

	case key.Matches(msg, m.keys.Refresh):
		m.backend.Refresh()
		m.setMessage("refresh requested", false)

	case key.Matches(msg, m.keys.Grid):
		m.grid = !m.grid

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	}

	return m, nil
}

func (m Model) execute(intent protocol.Intent) (tea.Model, tea.Cmd) {
	m.pending++
	backend := m.backend
	return m, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		sent, err := backend.Execute(ctx, intent)
		return commandResultMsg{intent: intent, sent: sent, err: err}
	}
}

func (m *Model) setMessage(text string, isErr bool) {
	m.message = text
	m.messageErr = isErr
}

func (m Model) ports() int {
	if n := m.view.Ports(); n > 0 {
		return n
	}
	return protocol.DefaultModel.Ports()
}

// View renders the monitor
func (m Model) View() string {
	sections := []string{m.renderHeader(), ""}

	if m.grid {
		sections = append(sections, ui.RenderCrosspoints(m.view))
	} else {
		sections = append(sections, m.renderOutputs())
	}

	sections = append(sections, "", m.renderFooter(), m.help.View(m.keys))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderHeader() string {
	title := ui.HeaderTitleStyle.UnsetPaddingLeft().Render("INTMATRIX MONITOR")
	host := ui.HeaderCommandStyle.Render(m.host)

	status := ui.RenderStatus(m.status)
	if m.status.State == transport.StatusConnecting || m.pending > 0 {
		status = m.spinner.View() + " " + status
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		title+host,
		status,
		ui.RenderDeviceInfo(m.view),
	)
}

func (m Model) renderOutputs() string {
	lines := make([]string, 0, m.view.Ports())
	for o := 1; o <= m.view.Ports(); o++ {
		in := m.view.Input(o)
		source := ui.UnassignedStyle.Render("unassigned")
		if in != matrix.Unassigned {
			source = fmt.Sprintf("%d  %s", in, m.view.InputLabel(in))
		}

		line := fmt.Sprintf("%d  %-16s ← %s", o, m.view.OutputLabel(o), source)
		if o == m.cursor {
			lines = append(lines, selectedStyle.Render("▸ "+line))
		} else {
			lines = append(lines, rowStyle.Render(line))
		}
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderFooter() string {
	if m.allMode {
		return ui.LockedStyle.Render("press an input number to route it to every output (esc cancels)")
	}
	if m.message == "" {
		return ""
	}
	if m.messageErr {
		return ui.ErrorMessageStyle.Render(m.message)
	}
	return noteStyle.Render(m.message)
}

var (
	rowStyle = lipgloss.NewStyle().
			PaddingLeft(2).
			Foreground(ui.TextColor)

	selectedStyle = lipgloss.NewStyle().
			Foreground(ui.SuccessColor).
			Bold(true)

	noteStyle = lipgloss.NewStyle().
			Foreground(ui.MutedColor).
			Italic(true)
)
