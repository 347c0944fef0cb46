package protocol

import (
	"strings"
)

// ShortDeliveryMax is the largest delivery treated as half of a split
// notification. Longer deliveries carry complete, terminated lines.
const ShortDeliveryMax = 8

// Reassembler turns raw stream deliveries into logical lines.
//
// The matrix splits short status notifications across two small writes.
// A delivery of ShortDeliveryMax bytes or fewer is held until the next
// short delivery arrives and the two are joined. At most one short
// delivery is pending at any time.
//
// A Reassembler is not safe for concurrent use.
type Reassembler struct {
	pending []byte
}

// Feed consumes one delivery and returns the lines it completes.
func (r *Reassembler) Feed(data []byte) []string {
	if len(data) == 0 {
		return nil
	}

	if len(data) > ShortDeliveryMax {
		return splitLines(string(data))
	}

	if r.pending == nil {
		r.pending = append([]byte(nil), data...)
		return nil
	}

	joined := string(r.pending) + string(data)
	r.pending = nil

	line := strings.TrimRight(joined, "\r\n")
	if line == "" {
		return nil
	}
	return []string{line}
}

// Pending reports whether a short delivery is waiting for its pair.
func (r *Reassembler) Pending() bool {
	return r.pending != nil
}

// Reset drops any pending short delivery. Called on every reconnect.
func (r *Reassembler) Reset() {
	r.pending = nil
}

// splitLines splits on CR and LF and drops empty segments.
func splitLines(s string) []string {
	fields := strings.FieldsFunc(s, func(c rune) bool {
		return c == '\r' || c == '\n'
	})
	if len(fields) == 0 {
		return nil
	}
	return fields
}
