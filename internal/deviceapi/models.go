package deviceapi

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/muurk/intmatrix/internal/deviceerr"
	"github.com/muurk/intmatrix/internal/matrix"
	"github.com/muurk/intmatrix/internal/protocol"
)

// Snapshot reply keys
const (
	KeyLockKey       = "LockKey"
	KeyTitle         = "TitleLabelTable"
	KeyLCDReadout1   = "LCDReadout1"
	KeyLCDReadout2   = "LCDReadout2"
	KeyAdminPassword = "admpassword"
)

// OutputKey is the key holding the input routed to output n.
func OutputKey(n int) string { return fmt.Sprintf("CH%dOutput", n) }

// InputLabelKey is the key holding input n's name.
func InputLabelKey(n int) string { return fmt.Sprintf("Input%dTable", n) }

// OutputLabelKey is the key holding output n's name.
func OutputLabelKey(n int) string { return fmt.Sprintf("Output%dTable", n) }

// InputHDCPKey is the key holding input n's HDCP flag.
func InputHDCPKey(n int) string { return fmt.Sprintf("Input%dHDCP", n) }

// Fields is a decoded CGI reply. Values are usually strings but some
// firmware sends bare numbers.
type Fields map[string]any

// Text returns the value for key as text, and whether the key was present.
func (f Fields) Text(key string) (string, bool) {
	v, ok := f[key]
	if !ok {
		return "", false
	}
	switch v := v.(type) {
	case string:
		return v, true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(v), true
	case nil:
		return "", true
	default:
		return fmt.Sprint(v), true
	}
}

// Has reports whether key is present, whatever its value.
func (f Fields) Has(key string) bool {
	_, ok := f[key]
	return ok
}

// DecodeSnapshot builds a snapshot for model m. Every CHnOutput key must be
// present and numeric; everything else is optional.
func DecodeSnapshot(m protocol.Model, f Fields) (*matrix.Snapshot, error) {
	n := m.Ports()
	snap := &matrix.Snapshot{
		Routes: make(map[int]int, n),
		Info: matrix.DeviceInfo{
			InputLabels:  make(map[int]string, n),
			OutputLabels: make(map[int]string, n),
			InputHDCP:    make(map[int]bool, n),
		},
	}

	for o := 1; o <= n; o++ {
		raw, ok := f.Text(OutputKey(o))
		if !ok {
			return nil, deviceerr.NewDecodeError(fmt.Sprintf("reply has no %s", OutputKey(o)), nil)
		}
		in, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return nil, deviceerr.NewDecodeError(fmt.Sprintf("%s is not a port number: %q", OutputKey(o), raw), err)
		}
		snap.Routes[o] = in
	}

	for i := 1; i <= n; i++ {
		if label, ok := f.Text(InputLabelKey(i)); ok {
			snap.Info.InputLabels[i] = strings.TrimSpace(label)
		}
		if label, ok := f.Text(OutputLabelKey(i)); ok {
			snap.Info.OutputLabels[i] = strings.TrimSpace(label)
		}
		if hdcp, ok := f.Text(InputHDCPKey(i)); ok {
			snap.Info.InputHDCP[i] = truthy(hdcp)
		}
	}

	lock, _ := f.Text(KeyLockKey)
	snap.Info.Lock = matrix.ParseLockKey(strings.TrimSpace(lock))
	snap.Info.Title, _ = f.Text(KeyTitle)
	snap.Info.LCDReadout1, _ = f.Text(KeyLCDReadout1)
	snap.Info.LCDReadout2, _ = f.Text(KeyLCDReadout2)
	snap.Info.AuthPresent = f.Has(KeyAdminPassword)

	return snap, nil
}

func truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}
