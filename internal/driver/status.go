package driver

import (
	"github.com/muurk/intmatrix/internal/matrix"
	"github.com/muurk/intmatrix/internal/transport"
)

// Status is the connection state with an operator-facing message when in
// error.
type Status struct {
	State   transport.Status `json:"state"`
	Message string           `json:"message,omitempty"`
}

func (s Status) String() string {
	if s.Message == "" {
		return s.State.String()
	}
	return s.State.String() + ": " + s.Message
}

// EventKind says what an Event carries.
type EventKind int

const (
	// EventState carries a new View after a store change.
	EventState EventKind = iota
	// EventStatus carries a connection status transition.
	EventStatus
)

func (k EventKind) String() string {
	if k == EventStatus {
		return "status"
	}
	return "state"
}

// Event is published to subscribers.
type Event struct {
	Kind   EventKind
	View   matrix.View
	Change matrix.Change
	Status Status
}
