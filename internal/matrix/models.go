package matrix

import (
	"fmt"

	"github.com/muurk/intmatrix/internal/protocol"
)

// Unassigned marks an output whose input has not been reported yet.
const Unassigned = 0

// LockState is the front panel lock.
type LockState int

const (
	LockUnknown LockState = iota
	LockUnlocked
	LockLocked
)

// Device LockKey values
const (
	LockKeyUnlocked = "1"
	LockKeyLocked   = "2"
)

func (l LockState) String() string {
	switch l {
	case LockUnlocked:
		return "unlocked"
	case LockLocked:
		return "locked"
	default:
		return "unknown"
	}
}

// Key returns the device's LockKey value for the state, or "" when unknown.
func (l LockState) Key() string {
	switch l {
	case LockUnlocked:
		return LockKeyUnlocked
	case LockLocked:
		return LockKeyLocked
	default:
		return ""
	}
}

// ParseLockKey decodes the device's LockKey field.
func ParseLockKey(key string) LockState {
	switch key {
	case LockKeyUnlocked:
		return LockUnlocked
	case LockKeyLocked:
		return LockLocked
	default:
		return LockUnknown
	}
}

// DeviceInfo is everything the matrix reports besides routing.
type DeviceInfo struct {
	Lock         LockState      `json:"lock"`
	Version      string         `json:"version,omitempty"`
	Title        string         `json:"title,omitempty"`
	LCDReadout1  string         `json:"lcd_readout_1,omitempty"`
	LCDReadout2  string         `json:"lcd_readout_2,omitempty"`
	InputLabels  map[int]string `json:"input_labels"`
	OutputLabels map[int]string `json:"output_labels"`
	InputHDCP    map[int]bool   `json:"input_hdcp"`

	// AuthPresent is set when the last snapshot carried the admin password
	// field. Only then are the device labels meaningful.
	AuthPresent bool `json:"auth_present"`
}

func (d DeviceInfo) clone() DeviceInfo {
	c := d
	c.InputLabels = cloneMap(d.InputLabels)
	c.OutputLabels = cloneMap(d.OutputLabels)
	c.InputHDCP = cloneMap(d.InputHDCP)
	return c
}

func cloneMap[V any](m map[int]V) map[int]V {
	if m == nil {
		return nil
	}
	c := make(map[int]V, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

// InputPlaceholder is the label used until the device names an input.
func InputPlaceholder(n int) string { return fmt.Sprintf("Input %d", n) }

// OutputPlaceholder is the label used until the device names an output.
func OutputPlaceholder(n int) string { return fmt.Sprintf("Output %d", n) }

// Snapshot is a decoded full-state reply from the CGI channel.
type Snapshot struct {
	// Routes maps output to input and must cover every port.
	Routes map[int]int
	// Info replaces the stored info wholesale except for Version, which
	// only the stream reports.
	Info DeviceInfo
}

// View is an immutable copy of the store, safe to share between goroutines.
type View struct {
	Model protocol.Model `json:"model"`
	// Routes[o-1] is the input feeding output o, or Unassigned.
	Routes []int      `json:"routes"`
	Info   DeviceInfo `json:"info"`
	// Synced is true once a snapshot has been applied for the current model.
	Synced   bool   `json:"synced"`
	Revision uint64 `json:"revision"`
}

// Input returns the input routed to output, or Unassigned.
func (v View) Input(output int) int {
	if output < 1 || output > len(v.Routes) {
		return Unassigned
	}
	return v.Routes[output-1]
}

// Ports returns the number of ports in the view.
func (v View) Ports() int {
	return v.Model.Ports()
}

// InputLabel returns the label shown for an input.
func (v View) InputLabel(n int) string {
	if l, ok := v.Info.InputLabels[n]; ok && l != "" {
		return l
	}
	return InputPlaceholder(n)
}

// OutputLabel returns the label shown for an output.
func (v View) OutputLabel(n int) string {
	if l, ok := v.Info.OutputLabels[n]; ok && l != "" {
		return l
	}
	return OutputPlaceholder(n)
}

// MarshalText renders the lock state by name in JSON and YAML.
func (l LockState) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText accepts the names produced by MarshalText.
func (l *LockState) UnmarshalText(b []byte) error {
	switch string(b) {
	case "locked":
		*l = LockLocked
	case "unlocked":
		*l = LockUnlocked
	default:
		*l = LockUnknown
	}
	return nil
}
