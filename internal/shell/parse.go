package shell

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/muurk/intmatrix/internal/protocol"
)

// Verb names a shell command.
type Verb string

const (
	VerbRoute   Verb = "route"
	VerbAll     Verb = "all"
	VerbThrough Verb = "through"
	VerbLock    Verb = "lock"
	VerbUnlock  Verb = "unlock"
	VerbStatus  Verb = "status"
	VerbGrid    Verb = "grid"
	VerbRefresh Verb = "refresh"
	VerbHelp    Verb = "help"
	VerbQuit    Verb = "quit"
)

// Command is one parsed input line. Intent is set for verbs that change
// the matrix.
type Command struct {
	Verb   Verb
	Intent *protocol.Intent
}

var aliases = map[string]Verb{
	"route": VerbRoute, "r": VerbRoute,
	"all": VerbAll, "route-all": VerbAll,
	"through": VerbThrough, "pass-through": VerbThrough, "passthrough": VerbThrough,
	"lock":   VerbLock,
	"unlock": VerbUnlock,
	"status": VerbStatus, "s": VerbStatus,
	"grid":    VerbGrid,
	"refresh": VerbRefresh, "poll": VerbRefresh,
	"help": VerbHelp, "?": VerbHelp,
	"quit": VerbQuit, "exit": VerbQuit, "q": VerbQuit,
}

// Parse turns an input line into a Command. Port numbers are checked
// against m; a zero model only rejects non-positive ports.
func Parse(line string, m protocol.Model) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}, fmt.Errorf("empty command")
	}

	verb, ok := aliases[strings.ToLower(fields[0])]
	if !ok {
		return Command{}, fmt.Errorf("unknown command: %s (type 'help' for commands)", fields[0])
	}
	args := fields[1:]
	cmd := Command{Verb: verb}

	var intent protocol.Intent
	switch verb {
	case VerbRoute:
		if len(args) < 2 {
			return cmd, fmt.Errorf("usage: route <input> <output>[,<output>...]")
		}
		input, err := parsePort("input", args[0])
		if err != nil {
			return cmd, err
		}
		outputs, err := ParseOutputs(strings.Join(args[1:], ","))
		if err != nil {
			return cmd, err
		}
		intent = protocol.Route(input, outputs...)
	case VerbAll:
		if len(args) != 1 {
			return cmd, fmt.Errorf("usage: all <input>")
		}
		input, err := parsePort("input", args[0])
		if err != nil {
			return cmd, err
		}
		intent = protocol.RouteAll(input)
	case VerbThrough:
		intent = protocol.PassThrough()
	case VerbLock:
		intent = protocol.Lock()
	case VerbUnlock:
		intent = protocol.Unlock()
	default:
		if len(args) > 0 {
			return cmd, fmt.Errorf("%s takes no arguments", verb)
		}
		return cmd, nil
	}

	if err := intent.Validate(m); err != nil {
		return cmd, err
	}
	cmd.Intent = &intent
	return cmd, nil
}

// ParseOutputs parses a comma separated output list such as "1,3,4".
// Empty elements are skipped and duplicates removed, keeping first order.
func ParseOutputs(s string) ([]int, error) {
	var outputs []int
	seen := make(map[int]bool)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		o, err := parsePort("output", part)
		if err != nil {
			return nil, err
		}
		if !seen[o] {
			seen[o] = true
			outputs = append(outputs, o)
		}
	}
	if len(outputs) == 0 {
		return nil, protocol.ErrNoOutputs
	}
	return outputs, nil
}

func parsePort(kind, s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", kind, s)
	}
	return n, nil
}
