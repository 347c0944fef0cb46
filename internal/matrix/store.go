package matrix

import (
	"errors"
	"fmt"

	"github.com/muurk/intmatrix/internal/protocol"
)

var (
	// ErrPortOutOfRange is returned when an update names a port the model lacks.
	ErrPortOutOfRange = errors.New("port out of range")
	// ErrIncompleteSnapshot is returned when a snapshot doesn't cover every output.
	ErrIncompleteSnapshot = errors.New("snapshot does not cover every output")
)

// Change is a bit set describing what an update touched.
type Change uint8

const (
	ChangeRoutes Change = 1 << iota
	ChangeLock
	ChangeLabels
	ChangeInfo
	ChangeModel
)

// Has reports whether c includes all bits of other.
func (c Change) Has(other Change) bool { return c&other == other }

// Store owns the routing table and device info.
//
// A Store has a single writer: the driver's event loop. Readers get
// copies through View.
type Store struct {
	model  protocol.Model
	routes []int
	info   DeviceInfo
	synced bool
	rev    uint64
}

// NewStore returns a store for the model with every output unassigned and
// placeholder labels.
func NewStore(m protocol.Model) *Store {
	s := &Store{}
	s.reset(m)
	return s
}

func (s *Store) reset(m protocol.Model) {
	n := m.Ports()
	s.model = m
	s.routes = make([]int, n)
	s.synced = false

	version := s.info.Version
	s.info = DeviceInfo{
		Version:      version,
		InputLabels:  make(map[int]string, n),
		OutputLabels: make(map[int]string, n),
		InputHDCP:    make(map[int]bool, n),
	}
	for i := 1; i <= n; i++ {
		s.info.InputLabels[i] = InputPlaceholder(i)
		s.info.OutputLabels[i] = OutputPlaceholder(i)
	}
}

// Model returns the current model.
func (s *Store) Model() protocol.Model { return s.model }

// SetModel switches the model. Routing and labels are reset when the model
// actually changes.
func (s *Store) SetModel(m protocol.Model) Change {
	if m == s.model {
		return 0
	}
	s.reset(m)
	s.rev++
	return ChangeModel | ChangeRoutes | ChangeLabels | ChangeLock
}

// Reset forgets everything known about the device and starts over with m:
// routes unassigned, placeholder labels, not synced. Used when the driver
// is pointed at a different device.
func (s *Store) Reset(m protocol.Model) Change {
	change := ChangeRoutes | ChangeLabels | ChangeLock | ChangeInfo
	if m != s.model {
		change |= ChangeModel
	}
	s.info = DeviceInfo{}
	s.reset(m)
	s.rev++
	return change
}

// Apply merges one decoded status line. Unknown lines are not applied;
// the caller reconciles them with a poll.
func (s *Store) Apply(u protocol.Update) (Change, error) {
	var change Change
	var err error

	switch u := u.(type) {
	case *protocol.ModelAnnouncement:
		return s.SetModel(u.Model), nil
	case *protocol.VersionReport:
		if s.info.Version != u.Version {
			s.info.Version = u.Version
			change = ChangeInfo
		}
	case *protocol.LockReport:
		lock := LockUnlocked
		if u.Locked {
			lock = LockLocked
		}
		if s.info.Lock != lock {
			s.info.Lock = lock
			change = ChangeLock
		}
	case *protocol.RouteReport:
		change, err = s.applyRoute(u.Input, u.Outputs)
	case *protocol.RouteAllReport:
		if !s.model.ValidPort(u.Input) {
			return 0, fmt.Errorf("input %d: %w", u.Input, ErrPortOutOfRange)
		}
		for i := range s.routes {
			if s.routes[i] != u.Input {
				s.routes[i] = u.Input
				change = ChangeRoutes
			}
		}
	case *protocol.PassThroughReport:
		for i := range s.routes {
			if s.routes[i] != i+1 {
				s.routes[i] = i + 1
				change = ChangeRoutes
			}
		}
	case *protocol.UnknownLine, nil:
		return 0, nil
	default:
		return 0, fmt.Errorf("unsupported update %T", u)
	}

	if change != 0 {
		s.rev++
	}
	return change, err
}

// applyRoute sets each valid output to input. Invalid outputs are skipped
// and reported; they never disturb other entries.
func (s *Store) applyRoute(input int, outputs []int) (Change, error) {
	if !s.model.ValidPort(input) {
		return 0, fmt.Errorf("input %d: %w", input, ErrPortOutOfRange)
	}

	var change Change
	var bad []int
	for _, o := range outputs {
		if !s.model.ValidPort(o) {
			bad = append(bad, o)
			continue
		}
		if s.routes[o-1] != input {
			s.routes[o-1] = input
			change = ChangeRoutes
		}
	}

	if len(bad) > 0 {
		return change, fmt.Errorf("outputs %v: %w", bad, ErrPortOutOfRange)
	}
	return change, nil
}

// Replace installs a snapshot. Either every route and label is replaced or,
// on error, nothing is.
func (s *Store) Replace(snap *Snapshot) (Change, error) {
	if snap == nil {
		return 0, ErrIncompleteSnapshot
	}

	n := s.model.Ports()
	routes := make([]int, n)
	for o := 1; o <= n; o++ {
		in, ok := snap.Routes[o]
		if !ok {
			return 0, fmt.Errorf("output %d missing: %w", o, ErrIncompleteSnapshot)
		}
		if !s.model.ValidPort(in) {
			return 0, fmt.Errorf("output %d has input %d: %w", o, in, ErrPortOutOfRange)
		}
		routes[o-1] = in
	}

	info := DeviceInfo{
		Lock:         snap.Info.Lock,
		Version:      s.info.Version,
		Title:        snap.Info.Title,
		LCDReadout1:  snap.Info.LCDReadout1,
		LCDReadout2:  snap.Info.LCDReadout2,
		InputLabels:  make(map[int]string, n),
		OutputLabels: make(map[int]string, n),
		InputHDCP:    make(map[int]bool, n),
		AuthPresent:  snap.Info.AuthPresent,
	}
	for i := 1; i <= n; i++ {
		info.InputLabels[i] = labelOr(snap.Info.InputLabels[i], InputPlaceholder(i))
		info.OutputLabels[i] = labelOr(snap.Info.OutputLabels[i], OutputPlaceholder(i))
		info.InputHDCP[i] = snap.Info.InputHDCP[i]
	}

	change := s.diff(routes, info)
	s.routes = routes
	s.info = info
	if !s.synced {
		s.synced = true
		change |= ChangeRoutes
	}
	if change != 0 {
		s.rev++
	}
	return change, nil
}

func (s *Store) diff(routes []int, info DeviceInfo) Change {
	var c Change
	for i := range routes {
		if s.routes[i] != routes[i] {
			c |= ChangeRoutes
			break
		}
	}
	if s.info.Lock != info.Lock {
		c |= ChangeLock
	}
	if s.info.AuthPresent != info.AuthPresent ||
		!mapsEqual(s.info.InputLabels, info.InputLabels) ||
		!mapsEqual(s.info.OutputLabels, info.OutputLabels) {
		c |= ChangeLabels
	}
	if s.info.Title != info.Title ||
		s.info.LCDReadout1 != info.LCDReadout1 ||
		s.info.LCDReadout2 != info.LCDReadout2 ||
		!mapsEqual(s.info.InputHDCP, info.InputHDCP) {
		c |= ChangeInfo
	}
	return c
}

// View returns a deep copy of the current state.
func (s *Store) View() View {
	return View{
		Model:    s.model,
		Routes:   append([]int(nil), s.routes...),
		Info:     s.info.clone(),
		Synced:   s.synced,
		Revision: s.rev,
	}
}

func labelOr(label, fallback string) string {
	if label == "" {
		return fallback
	}
	return label
}

func mapsEqual[V comparable](a, b map[int]V) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if w, ok := b[k]; !ok || w != v {
			return false
		}
	}
	return true
}
