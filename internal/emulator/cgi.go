package emulator

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/muurk/intmatrix/internal/deviceapi"
	"github.com/muurk/intmatrix/internal/logging"
)

// Handler serves the CGI snapshot endpoint for the emulated model.
func (m *Matrix) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(deviceapi.SnapshotPath(m.model), m.handleSnapshot)
	return mux
}

func (m *Matrix) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	body, _ := io.ReadAll(io.LimitReader(r.Body, 1024))
	if strings.TrimSpace(string(body)) != "tag=ptn" {
		logging.Debug("Emulator got unexpected CGI body", zap.ByteString("body", body))
		http.Error(w, "bad tag", http.StatusBadRequest)
		return
	}

	reply, err := m.snapshotReply()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/javascript")
	_, _ = w.Write(reply)
}

// snapshotReply renders the state in the unit's envelope: a couple of
// marker bytes, then the object with single quotes.
func (m *Matrix) snapshotReply() ([]byte, error) {
	m.mu.Lock()
	fields := map[string]string{
		deviceapi.KeyLockKey:     lockKey(m.locked),
		deviceapi.KeyTitle:       m.title,
		deviceapi.KeyLCDReadout1: m.model.String(),
		deviceapi.KeyLCDReadout2: m.version,
	}
	for i := range m.routes {
		n := i + 1
		fields[deviceapi.OutputKey(n)] = strconv.Itoa(m.routes[i])
		fields[deviceapi.InputLabelKey(n)] = m.inputLabels[i]
		fields[deviceapi.OutputLabelKey(n)] = m.outputLabels[i]
		fields[deviceapi.InputHDCPKey(n)] = boolKey(m.hdcp[i])
	}
	if m.password != "" {
		fields[deviceapi.KeyAdminPassword] = m.password
	}
	m.snapshots++
	m.mu.Unlock()

	return append(append([]byte(" ("), singleQuoted(fields)...), ')'), nil
}

var quoteEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

// singleQuoted renders fields the way the unit does: keys in order, every
// key and value in single quotes.
func singleQuoted(fields map[string]string) []byte {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "'%s':'%s'", quoteEscaper.Replace(k), quoteEscaper.Replace(fields[k]))
	}
	b.WriteByte('}')
	return []byte(b.String())
}

func lockKey(locked bool) string {
	if locked {
		return "2"
	}
	return "1"
}

func boolKey(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
