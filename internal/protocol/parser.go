package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// Status line markers. Offsets are zero-based byte positions.
const (
	familyTag         = "INT"
	modelDigitOffset  = 5
	versionMarker     = "V"
	lockKeyword       = "System"
	lockFlagOffset    = 7
	lockedFlag        = 'L'
	routeMarker       = "AV:"
	routeArrow        = "->"
	passThroughPrefix = "All T"
)

// Kind identifies what a status line reports.
type Kind int

const (
	KindUnknown Kind = iota
	KindModel
	KindVersion
	KindLock
	KindRoute
	KindRouteAll
	KindPassThrough
)

func (k Kind) String() string {
	switch k {
	case KindModel:
		return "model"
	case KindVersion:
		return "version"
	case KindLock:
		return "lock"
	case KindRoute:
		return "route"
	case KindRouteAll:
		return "route-all"
	case KindPassThrough:
		return "pass-through"
	default:
		return "unknown"
	}
}

// Update is a decoded status line.
type Update interface {
	Kind() Kind
	String() string
}

// ModelAnnouncement is the reply to the type query, e.g. "INT-44HDX".
type ModelAnnouncement struct {
	Model Model
	Line  string
}

func (u *ModelAnnouncement) Kind() Kind { return KindModel }

func (u *ModelAnnouncement) String() string {
	return fmt.Sprintf("ModelAnnouncement{model=%s}", u.Model)
}

// VersionReport carries the firmware version line verbatim.
type VersionReport struct {
	Version string
}

func (u *VersionReport) Kind() Kind { return KindVersion }

func (u *VersionReport) String() string {
	return fmt.Sprintf("VersionReport{version=%q}", u.Version)
}

// LockReport is "System Locked!" or "System Unlock!".
type LockReport struct {
	Locked bool
}

func (u *LockReport) Kind() Kind { return KindLock }

func (u *LockReport) String() string {
	return fmt.Sprintf("LockReport{locked=%v}", u.Locked)
}

// RouteReport assigns Input to each of Outputs. Per-output "AV:" lines carry
// one output; the echo of a route command may carry several.
type RouteReport struct {
	Input   int
	Outputs []int
}

func (u *RouteReport) Kind() Kind { return KindRoute }

func (u *RouteReport) String() string {
	return fmt.Sprintf("RouteReport{input=%d, outputs=%v}", u.Input, u.Outputs)
}

// RouteAllReport assigns Input to every output.
type RouteAllReport struct {
	Input int
}

func (u *RouteAllReport) Kind() Kind { return KindRouteAll }

func (u *RouteAllReport) String() string {
	return fmt.Sprintf("RouteAllReport{input=%d}", u.Input)
}

// PassThroughReport routes output N from input N on every port.
type PassThroughReport struct{}

func (u *PassThroughReport) Kind() Kind { return KindPassThrough }

func (u *PassThroughReport) String() string { return "PassThroughReport{}" }

// UnknownLine is a line no rule matched. Local state may be stale; callers
// reconcile with a snapshot poll.
type UnknownLine struct {
	Line   string
	Reason string
}

func (u *UnknownLine) Kind() Kind { return KindUnknown }

func (u *UnknownLine) String() string {
	return fmt.Sprintf("UnknownLine{line=%q, reason=%s}", u.Line, u.Reason)
}

// ParseLine classifies one logical line. Rules are tried in order and the
// first match wins. Blank lines return nil.
func ParseLine(line string) Update {
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return nil
	}

	switch {
	case strings.HasPrefix(line, familyTag):
		return parseModelLine(line)
	case strings.HasPrefix(line, versionMarker):
		return &VersionReport{Version: line}
	case strings.HasPrefix(line, lockKeyword):
		return parseLockLine(line)
	case strings.HasPrefix(line, routeMarker):
		return parseRouteLine(line)
	case startsWithDigit(line):
		if u := parseRouteAllLine(line); u != nil {
			return u
		}
		return parseRouteEcho(line)
	case strings.HasPrefix(line, passThroughPrefix):
		return &PassThroughReport{}
	}

	return unknown(line, "no matching rule")
}

func parseModelLine(line string) Update {
	if len(line) <= modelDigitOffset {
		return unknown(line, "announcement too short")
	}
	m, err := ParseModel(line[modelDigitOffset : modelDigitOffset+1])
	if err != nil {
		return unknown(line, err.Error())
	}
	return &ModelAnnouncement{Model: m, Line: line}
}

func parseLockLine(line string) Update {
	if len(line) <= lockFlagOffset {
		return unknown(line, "lock line too short")
	}
	return &LockReport{Locked: line[lockFlagOffset] == lockedFlag}
}

// parseRouteLine decodes "AV:01->02" (4x4) and "AV:  2-> 2" (6x6). Both put
// the arrow four bytes from the end and a two-character output field after it;
// the input field is everything between the marker and the arrow.
func parseRouteLine(line string) Update {
	n := len(line)
	if n < len(routeMarker)+1+len(routeArrow)+2 {
		return unknown(line, "route line too short")
	}
	if line[n-4:n-2] != routeArrow {
		return unknown(line, "route arrow not at expected offset")
	}

	input, err := parsePort(line[len(routeMarker) : n-4])
	if err != nil {
		return unknown(line, "bad input field")
	}
	output, err := parsePort(line[n-2:])
	if err != nil {
		return unknown(line, "bad output field")
	}
	return &RouteReport{Input: input, Outputs: []int{output}}
}

// parseRouteAllLine decodes "2 To All" (6x6) and "02 To Al" (4x4).
// The input number occupies the first two bytes in both variants.
func parseRouteAllLine(line string) Update {
	if len(line) < 8 {
		return nil
	}
	if line[5:8] != "All" && line[3:8] != "To Al" {
		return nil
	}
	input, err := parsePort(line[0:2])
	if err != nil {
		return nil
	}
	return &RouteAllReport{Input: input}
}

// parseRouteEcho decodes the device echoing a route command, "3B1,2.".
func parseRouteEcho(line string) Update {
	in, rest, ok := strings.Cut(line, "B")
	if !ok || !strings.HasSuffix(rest, ".") {
		return unknown(line, "no matching rule")
	}

	input, err := parsePort(in)
	if err != nil {
		return unknown(line, "bad input field")
	}

	var outputs []int
	for _, field := range strings.Split(strings.TrimSuffix(rest, "."), ",") {
		output, err := parsePort(field)
		if err != nil {
			return unknown(line, "bad output list")
		}
		outputs = append(outputs, output)
	}
	return &RouteReport{Input: input, Outputs: outputs}
}

// parsePort reads a space padded decimal field. Signs and any other
// characters are rejected.
func parsePort(field string) (int, error) {
	field = strings.Trim(field, " ")
	if field == "" {
		return 0, fmt.Errorf("empty port field")
	}
	for i := 0; i < len(field); i++ {
		if field[i] < '0' || field[i] > '9' {
			return 0, fmt.Errorf("port field %q is not a number", field)
		}
	}
	return strconv.Atoi(field)
}

func startsWithDigit(line string) bool {
	return line[0] >= '0' && line[0] <= '9'
}

func unknown(line, reason string) *UnknownLine {
	return &UnknownLine{Line: line, Reason: reason}
}
