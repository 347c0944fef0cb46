package capture

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/muurk/intmatrix/internal/logging"
)

// Direction of a captured delivery.
type Direction string

const (
	DirectionReceive Direction = "device->client"
	DirectionSend    Direction = "client->device"
)

// Format selects the capture file encoding.
type Format string

const (
	FormatJSONL Format = "jsonl"
	FormatCBOR  Format = "cbor"
)

// ParseFormat accepts "jsonl" (or "json") and "cbor". Empty means jsonl.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "jsonl", "json":
		return FormatJSONL, nil
	case "cbor":
		return FormatCBOR, nil
	}
	return "", fmt.Errorf("unknown capture format %q (want jsonl or cbor)", s)
}

// Record is one captured stream delivery.
type Record struct {
	Timestamp time.Time `json:"timestamp" cbor:"1,keyasint"`
	Session   string    `json:"session" cbor:"2,keyasint"`
	Seq       uint64    `json:"seq" cbor:"3,keyasint"`
	Direction Direction `json:"direction" cbor:"4,keyasint"`
	Length    int       `json:"length" cbor:"5,keyasint"`
	Hex       string    `json:"payload_hex" cbor:"6,keyasint"`
	ASCII     string    `json:"payload_ascii" cbor:"7,keyasint"`
}

// Payload decodes the hex payload.
func (r Record) Payload() ([]byte, error) {
	return hex.DecodeString(r.Hex)
}

var encMode cbor.EncMode

func init() {
	opts := cbor.EncOptions{
		Sort:        cbor.SortCanonical,
		IndefLength: cbor.IndefLengthForbidden,
		Time:        cbor.TimeRFC3339Nano,
	}
	var err error
	encMode, err = opts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create capture CBOR encoder mode: %v", err))
	}
}

// Recorder appends stream deliveries to a capture file. It is safe for
// concurrent use.
type Recorder struct {
	path    string
	session string
	format  Format

	mu     sync.Mutex
	file   *os.File
	enc    *cbor.Encoder
	seq    uint64
	closed bool
}

// Open creates a new capture file in dir, named after the start time and a
// fresh session id.
func Open(dir string, format Format) (*Recorder, error) {
	if format == "" {
		format = FormatJSONL
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create capture directory: %w", err)
	}

	session := uuid.NewString()
	name := fmt.Sprintf("capture-%s-%s.%s", time.Now().Format("20060102-150405"), session[:8], format)
	path := filepath.Join(dir, name)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture file: %w", err)
	}

	r := &Recorder{
		path:    path,
		session: session,
		format:  format,
		file:    f,
	}
	if format == FormatCBOR {
		r.enc = encMode.NewEncoder(f)
	}

	logging.Info("Capturing stream",
		zap.String("file", path),
		zap.String("session", session),
	)
	return r, nil
}

// Path returns the capture file path.
func (r *Recorder) Path() string { return r.path }

// Session returns the capture session id.
func (r *Recorder) Session() string { return r.session }

// Record appends one delivery. Calls after Close are ignored.
func (r *Recorder) Record(dir Direction, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}

	r.seq++
	rec := Record{
		Timestamp: time.Now(),
		Session:   r.session,
		Seq:       r.seq,
		Direction: dir,
		Length:    len(data),
		Hex:       hex.EncodeToString(data),
		ASCII:     toASCII(data),
	}

	if r.enc != nil {
		return r.enc.Encode(rec)
	}

	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal capture record: %w", err)
	}
	if _, err := r.file.Write(append(line, '\n')); err != nil {
		logging.Error("Failed to write to capture file",
			zap.String("file", r.path),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// Close closes the file. It is safe to call more than once.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	return r.file.Close()
}

// ReadFile loads every record from a capture file, picking the decoder by
// file extension.
func ReadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var records []Record
	if strings.HasSuffix(path, "."+string(FormatCBOR)) {
		dec := cbor.NewDecoder(f)
		for {
			var rec Record
			if err := dec.Decode(&rec); err != nil {
				if err == io.EOF {
					return records, nil
				}
				return records, fmt.Errorf("failed to decode capture record: %w", err)
			}
			records = append(records, rec)
		}
	}

	dec := json.NewDecoder(f)
	for {
		var rec Record
		if err := dec.Decode(&rec); err != nil {
			if err == io.EOF {
				return records, nil
			}
			return records, fmt.Errorf("failed to decode capture record: %w", err)
		}
		records = append(records, rec)
	}
}

// toASCII converts bytes to ASCII string (non-printable chars become '.')
func toASCII(data []byte) string {
	result := make([]byte, len(data))
	for i, b := range data {
		if b >= 32 && b <= 126 {
			result[i] = b
		} else {
			result[i] = '.'
		}
	}
	return string(result)
}
