package capture

import (
	"fmt"
	"strings"

	"github.com/muurk/intmatrix/internal/protocol"
)

// Decoded is one logical line recovered from a capture.
type Decoded struct {
	// Record is the delivery that completed the line.
	Record    Record
	Direction Direction
	Line      string
	// Update is nil for sent commands.
	Update protocol.Update
}

// Analyze replays captured deliveries through the same reassembly and
// classification the driver uses. Received deliveries are paired and split
// into lines and then classified; sent deliveries are reported as command
// text. The reassembler is reset whenever the session changes.
func Analyze(records []Record) ([]Decoded, error) {
	var (
		out     []Decoded
		reasm   protocol.Reassembler
		session string
	)

	for _, rec := range records {
		if rec.Session != session {
			reasm.Reset()
			session = rec.Session
		}

		payload, err := rec.Payload()
		if err != nil {
			return out, fmt.Errorf("record %d: %w", rec.Seq, err)
		}

		switch rec.Direction {
		case DirectionSend:
			line := strings.TrimRight(string(payload), "\r\n")
			out = append(out, Decoded{Record: rec, Direction: DirectionSend, Line: line})
		default:
			for _, line := range reasm.Feed(payload) {
				out = append(out, Decoded{
					Record:    rec,
					Direction: DirectionReceive,
					Line:      line,
					Update:    protocol.ParseLine(line),
				})
			}
		}
	}

	return out, nil
}

// Summary counts decoded lines by kind.
type Summary struct {
	Records  int
	Sent     int
	Received int
	ByKind   map[protocol.Kind]int
}

// Summarize counts the output of Analyze.
func Summarize(records []Record, decoded []Decoded) Summary {
	s := Summary{Records: len(records), ByKind: make(map[protocol.Kind]int)}
	for _, d := range decoded {
		if d.Update == nil {
			s.Sent++
			continue
		}
		s.Received++
		s.ByKind[d.Update.Kind()]++
	}
	return s
}
