package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// Model identifies an INT-xxHDX matrix variant by its port count.
type Model int

const (
	ModelUnknown Model = 0
	Model4x4     Model = 4
	Model6x6     Model = 6
	Model8x8     Model = 8
)

// DefaultModel is used when neither configuration nor the device has named one.
const DefaultModel = Model4x4

// Padding is the field-width convention a model uses for port numbers in
// status lines.
type Padding int

const (
	// PadZero writes ports as two digits with a leading zero ("AV:01->02").
	PadZero Padding = iota
	// PadSpace right-aligns ports in a two-character field ("AV:  2-> 2").
	PadSpace
)

// Models lists every supported variant in display order.
var Models = []Model{Model4x4, Model6x6, Model8x8}

// ParseModel accepts the model digit ("4"), the doubled digit ("44") or the
// product name ("INT-44HDX").
func ParseModel(s string) (Model, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "INT-")
	s = strings.TrimSuffix(s, "HDX")
	if len(s) == 2 && s[0] == s[1] {
		s = s[:1]
	}

	n, err := strconv.Atoi(s)
	if err != nil {
		return ModelUnknown, fmt.Errorf("unknown model %q", s)
	}
	m := Model(n)
	if !m.Valid() {
		return ModelUnknown, fmt.Errorf("unknown model %q (supported: 4, 6, 8)", s)
	}
	return m, nil
}

// Valid reports whether m is a supported variant.
func (m Model) Valid() bool {
	switch m {
	case Model4x4, Model6x6, Model8x8:
		return true
	}
	return false
}

// Ports returns the number of inputs (and outputs) on the matrix.
func (m Model) Ports() int {
	if !m.Valid() {
		return 0
	}
	return int(m)
}

// Digit returns the model digit as sent in configuration and announcements.
func (m Model) Digit() string {
	return strconv.Itoa(int(m))
}

// PathSegment returns the doubled model digit used in the CGI path ("44").
func (m Model) PathSegment() string {
	return m.Digit() + m.Digit()
}

// Padding returns the port field convention of the model's status lines.
// Only the 4x4 firmware zero-pads.
func (m Model) Padding() Padding {
	if m == Model4x4 {
		return PadZero
	}
	return PadSpace
}

// FormatPort renders a port number the way this model prints it in status lines.
func (m Model) FormatPort(n int) string {
	if m.Padding() == PadZero {
		return fmt.Sprintf("%02d", n)
	}
	return fmt.Sprintf("%2d", n)
}

// ValidPort reports whether n addresses a port on this model.
func (m Model) ValidPort(n int) bool {
	return n >= 1 && n <= m.Ports()
}

func (m Model) String() string {
	if !m.Valid() {
		return fmt.Sprintf("Model(%d)", int(m))
	}
	return "INT-" + m.PathSegment() + "HDX"
}
