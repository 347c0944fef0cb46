package emulator

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/muurk/intmatrix/internal/logging"
	"github.com/muurk/intmatrix/internal/protocol"
)

// DefaultVersion is the firmware version line the emulator reports.
const DefaultVersion = "V1.05"

// Matrix is a software INT HDX switcher. It answers the stream command set
// on any listener passed to ServeStream and the CGI snapshot request through
// Handler.
type Matrix struct {
	model protocol.Model

	mu           sync.Mutex
	routes       []int
	locked       bool
	version      string
	title        string
	inputLabels  []string
	outputLabels []string
	hdcp         []bool
	password     string
	received     []string
	snapshots    int

	listeners   []net.Listener
	activeConns map[string]net.Conn
	wg          sync.WaitGroup
	closed      bool
}

// Option configures a Matrix.
type Option func(*Matrix)

// WithVersion sets the reported firmware version line.
func WithVersion(v string) Option {
	return func(m *Matrix) { m.version = v }
}

// WithTitle sets the front panel title.
func WithTitle(t string) Option {
	return func(m *Matrix) { m.title = t }
}

// WithPassword sets the admin password. With an empty password the
// snapshot omits the field, as unprovisioned units do.
func WithPassword(p string) Option {
	return func(m *Matrix) { m.password = p }
}

// WithInputLabel names an input.
func WithInputLabel(n int, label string) Option {
	return func(m *Matrix) {
		if n >= 1 && n <= len(m.inputLabels) {
			m.inputLabels[n-1] = label
		}
	}
}

// WithOutputLabel names an output.
func WithOutputLabel(n int, label string) Option {
	return func(m *Matrix) {
		if n >= 1 && n <= len(m.outputLabels) {
			m.outputLabels[n-1] = label
		}
	}
}

// New returns an unlocked matrix in pass-through.
func New(model protocol.Model, opts ...Option) *Matrix {
	n := model.Ports()
	m := &Matrix{
		model:        model,
		routes:       make([]int, n),
		version:      DefaultVersion,
		title:        model.String(),
		inputLabels:  make([]string, n),
		outputLabels: make([]string, n),
		hdcp:         make([]bool, n),
		activeConns:  make(map[string]net.Conn),
	}
	for i := range m.routes {
		m.routes[i] = i + 1
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Model returns the emulated model.
func (m *Matrix) Model() protocol.Model { return m.model }

// Routes returns a copy of the routing table, indexed by output-1.
func (m *Matrix) Routes() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.routes...)
}

// Locked reports the front panel lock.
func (m *Matrix) Locked() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.locked
}

// Received returns every command line received so far, terminators removed.
func (m *Matrix) Received() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.received...)
}

// Snapshots returns how many CGI snapshot requests were served.
func (m *Matrix) Snapshots() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshots
}

// SetRoute changes a route without telling stream clients, as a front panel
// press on a unit with notifications off would.
func (m *Matrix) SetRoute(output, input int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.model.ValidPort(output) && m.model.ValidPort(input) {
		m.routes[output-1] = input
	}
}

// execute applies one command line and returns the status lines the unit
// prints in reply.
func (m *Matrix) execute(line string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.received = append(m.received, line)

	switch line {
	case protocol.CmdTypeQuery:
		return []string{m.model.String(), m.version}
	case protocol.CmdLock:
		m.locked = true
		return []string{"System Locked!"}
	case protocol.CmdUnlock:
		m.locked = false
		return []string{"System UnLock!"}
	case protocol.CmdPassThrough:
		for i := range m.routes {
			m.routes[i] = i + 1
		}
		return []string{"All Through."}
	}

	if in, ok := strings.CutSuffix(line, "All."); ok {
		input, err := strconv.Atoi(in)
		if err != nil || !m.model.ValidPort(input) {
			return []string{"Command Error!"}
		}
		for i := range m.routes {
			m.routes[i] = input
		}
		return []string{m.routeAllLine(input)}
	}

	if in, rest, ok := strings.Cut(line, "B"); ok && strings.HasSuffix(rest, ".") {
		input, err := strconv.Atoi(in)
		if err != nil || !m.model.ValidPort(input) {
			return []string{"Command Error!"}
		}
		var outputs []int
		for _, field := range strings.Split(strings.TrimSuffix(rest, "."), ",") {
			o, err := strconv.Atoi(field)
			if err != nil || !m.model.ValidPort(o) {
				return []string{"Command Error!"}
			}
			outputs = append(outputs, o)
		}
		replies := make([]string, 0, len(outputs))
		for _, o := range outputs {
			m.routes[o-1] = input
			replies = append(replies, m.routeLine(input, o))
		}
		return replies
	}

	logging.Debug("Emulator ignoring command", zap.String("line", line))
	return []string{"Command Error!"}
}

// routeLine renders a per-output notification, "AV:01->02" on the 4x4
// and "AV: 1-> 2" elsewhere.
func (m *Matrix) routeLine(input, output int) string {
	return fmt.Sprintf("AV:%s->%s", m.model.FormatPort(input), m.model.FormatPort(output))
}

// routeAllLine renders "02 To All" on the 4x4 and "2 To All" elsewhere.
func (m *Matrix) routeAllLine(input int) string {
	if m.model.Padding() == protocol.PadZero {
		return fmt.Sprintf("%02d To All", input)
	}
	return fmt.Sprintf("%d To All", input)
}
