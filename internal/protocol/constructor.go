package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

// Terminator ends every command sent on the stream channel.
const Terminator = "\r\n"

// Literal commands
const (
	CmdPassThrough = "All#."
	CmdLock        = "/%Lock;"
	CmdUnlock      = "/%Unlock;"
	CmdTypeQuery   = "/*Type;"
)

// ErrNoOutputs is returned for a route intent with an empty output set.
// Nothing should be sent in that case.
var ErrNoOutputs = errors.New("route has no outputs")

// Action names a user intent.
type Action int

const (
	ActionRoute Action = iota
	ActionRouteAll
	ActionPassThrough
	ActionLock
	ActionUnlock
)

func (a Action) String() string {
	switch a {
	case ActionRoute:
		return "route"
	case ActionRouteAll:
		return "route-all"
	case ActionPassThrough:
		return "pass-through"
	case ActionLock:
		return "lock"
	case ActionUnlock:
		return "unlock"
	default:
		return fmt.Sprintf("Action(%d)", int(a))
	}
}

// ParseAction maps a command name (as used by the CLI, shell and HTTP API)
// to an Action.
func ParseAction(name string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "route":
		return ActionRoute, nil
	case "route-all", "route_all", "all":
		return ActionRouteAll, nil
	case "pass-through", "pass_through", "passthrough", "through":
		return ActionPassThrough, nil
	case "lock":
		return ActionLock, nil
	case "unlock":
		return ActionUnlock, nil
	}
	return 0, fmt.Errorf("unknown action %q", name)
}

// Intent is a user request to change the matrix.
type Intent struct {
	Action  Action
	Input   int
	Outputs []int
}

// Route returns an intent routing input to the given outputs.
func Route(input int, outputs ...int) Intent {
	return Intent{Action: ActionRoute, Input: input, Outputs: outputs}
}

// RouteAll returns an intent routing input to every output.
func RouteAll(input int) Intent {
	return Intent{Action: ActionRouteAll, Input: input}
}

// PassThrough returns the identity routing intent.
func PassThrough() Intent { return Intent{Action: ActionPassThrough} }

// Lock returns the front panel lock intent.
func Lock() Intent { return Intent{Action: ActionLock} }

// Unlock returns the front panel unlock intent.
func Unlock() Intent { return Intent{Action: ActionUnlock} }

func (i Intent) String() string {
	switch i.Action {
	case ActionRoute:
		return fmt.Sprintf("route %d -> %v", i.Input, i.Outputs)
	case ActionRouteAll:
		return fmt.Sprintf("route %d -> all", i.Input)
	default:
		return i.Action.String()
	}
}

// Validate checks port numbers against the model. A zero model skips the
// range checks and only rejects non-positive ports.
func (i Intent) Validate(m Model) error {
	check := func(kind string, n int) error {
		if n < 1 || (m.Valid() && n > m.Ports()) {
			return fmt.Errorf("%s %d out of range for %s", kind, n, m)
		}
		return nil
	}

	switch i.Action {
	case ActionRoute:
		if len(i.Outputs) == 0 {
			return ErrNoOutputs
		}
		if err := check("input", i.Input); err != nil {
			return err
		}
		for _, o := range i.Outputs {
			if err := check("output", o); err != nil {
				return err
			}
		}
	case ActionRouteAll:
		return check("input", i.Input)
	case ActionPassThrough, ActionLock, ActionUnlock:
	default:
		return fmt.Errorf("unknown action %d", int(i.Action))
	}
	return nil
}

// CommandText returns the literal command for an intent, without terminator.
func CommandText(i Intent) (string, error) {
	switch i.Action {
	case ActionRoute:
		if len(i.Outputs) == 0 {
			return "", ErrNoOutputs
		}
		outs := make([]string, len(i.Outputs))
		for n, o := range i.Outputs {
			outs[n] = strconv.Itoa(o)
		}
		return strconv.Itoa(i.Input) + "B" + strings.Join(outs, ",") + ".", nil
	case ActionRouteAll:
		return strconv.Itoa(i.Input) + "All.", nil
	case ActionPassThrough:
		return CmdPassThrough, nil
	case ActionLock:
		return CmdLock, nil
	case ActionUnlock:
		return CmdUnlock, nil
	}
	return "", fmt.Errorf("unknown action %d", int(i.Action))
}

// BuildCommand encodes an intent as terminated 8-bit bytes ready to write.
func BuildCommand(i Intent) ([]byte, error) {
	text, err := CommandText(i)
	if err != nil {
		return nil, err
	}
	return EncodeLine(text)
}

// BuildTypeQuery returns the query the matrix answers with its model and
// firmware version.
func BuildTypeQuery() []byte {
	b, _ := EncodeLine(CmdTypeQuery)
	return b
}

// EncodeLine appends the terminator and encodes the text as ISO-8859-1,
// one byte per character.
func EncodeLine(text string) ([]byte, error) {
	b, err := charmap.ISO8859_1.NewEncoder().Bytes([]byte(text + Terminator))
	if err != nil {
		return nil, fmt.Errorf("encode %q: %w", text, err)
	}
	return b, nil
}
