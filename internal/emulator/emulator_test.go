package emulator

import (
	"bufio"
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muurk/intmatrix/internal/deviceapi"
	"github.com/muurk/intmatrix/internal/protocol"
)

func TestExecute(t *testing.T) {
	tests := []struct {
		name    string
		model   protocol.Model
		command string
		want    []string
	}{
		{"type query", protocol.Model4x4, "/*Type;", []string{"INT-44HDX", DefaultVersion}},
		{"lock", protocol.Model4x4, "/%Lock;", []string{"System Locked!"}},
		{"unlock", protocol.Model4x4, "/%Unlock;", []string{"System UnLock!"}},
		{"pass through", protocol.Model4x4, "All#.", []string{"All Through."}},
		{"route zero padded", protocol.Model4x4, "3B1,2.", []string{"AV:03->01", "AV:03->02"}},
		{"route space padded", protocol.Model6x6, "5B6.", []string{"AV: 5-> 6"}},
		{"route all zero padded", protocol.Model4x4, "2All.", []string{"02 To All"}},
		{"route all space padded", protocol.Model8x8, "7All.", []string{"7 To All"}},
		{"out of range", protocol.Model4x4, "5B1.", []string{"Command Error!"}},
		{"garbage", protocol.Model4x4, "hello", []string{"Command Error!"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(tt.model)
			assert.Equal(t, tt.want, m.execute(tt.command))
		})
	}
}

// Every status line the emulator prints must decode to the matching update.
func TestExecute_RepliesParse(t *testing.T) {
	for _, model := range protocol.Models {
		m := New(model)

		u := protocol.ParseLine(m.execute("2B1,3.")[1])
		route, ok := u.(*protocol.RouteReport)
		require.True(t, ok, "%s: got %v", model, u)
		assert.Equal(t, 2, route.Input)
		assert.Equal(t, []int{3}, route.Outputs)

		u = protocol.ParseLine(m.execute("4All.")[0])
		all, ok := u.(*protocol.RouteAllReport)
		require.True(t, ok, "%s: got %v", model, u)
		assert.Equal(t, 4, all.Input)

		u = protocol.ParseLine(m.execute("/*Type;")[0])
		ann, ok := u.(*protocol.ModelAnnouncement)
		require.True(t, ok, "%s: got %v", model, u)
		assert.Equal(t, model, ann.Model)

		u = protocol.ParseLine(m.execute("/%Lock;")[0])
		lock, ok := u.(*protocol.LockReport)
		require.True(t, ok)
		assert.True(t, lock.Locked)

		u = protocol.ParseLine(m.execute("/%Unlock;")[0])
		lock, ok = u.(*protocol.LockReport)
		require.True(t, ok)
		assert.False(t, lock.Locked)

		_, ok = protocol.ParseLine(m.execute("All#.")[0]).(*protocol.PassThroughReport)
		assert.True(t, ok)
	}
}

func TestExecute_UpdatesState(t *testing.T) {
	m := New(protocol.Model4x4)
	assert.Equal(t, []int{1, 2, 3, 4}, m.Routes())

	m.execute("3B1,2.")
	assert.Equal(t, []int{3, 3, 3, 4}, m.Routes())

	m.execute("2All.")
	assert.Equal(t, []int{2, 2, 2, 2}, m.Routes())

	m.execute("All#.")
	assert.Equal(t, []int{1, 2, 3, 4}, m.Routes())

	m.execute("/%Lock;")
	assert.True(t, m.Locked())

	assert.Len(t, m.Received(), 4)
}

func TestServeStream(t *testing.T) {
	m := New(protocol.Model4x4)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() { errCh <- m.ServeStream(ln) }()

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("1B4.\r\n"))
	require.NoError(t, err)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "AV:01->04\r\n", line)
	assert.Equal(t, 1, m.Routes()[3])

	require.NoError(t, m.Close(context.Background()))
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("ServeStream did not return after Close")
	}
}

func TestPush(t *testing.T) {
	m := New(protocol.Model4x4)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = m.ServeStream(ln) }()
	defer m.Close(context.Background())

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return m.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	m.PushLines("V1.09")
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "V1.09\r\n", line)
}

func TestHandler_Snapshot(t *testing.T) {
	m := New(protocol.Model4x4,
		WithPassword("admin"),
		WithTitle("Studio A"),
		WithInputLabel(1, "Camera"),
		WithOutputLabel(2, "Monitor"),
	)
	m.execute("3B2.")
	m.execute("/%Lock;")

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	client := deviceapi.NewClientWithURL(srv.URL)
	snap, err := client.FetchSnapshot(context.Background(), protocol.Model4x4)
	require.NoError(t, err)

	assert.Equal(t, map[int]int{1: 1, 2: 3, 3: 3, 4: 4}, snap.Routes)
	assert.Equal(t, "Camera", snap.Info.InputLabels[1])
	assert.Equal(t, "Monitor", snap.Info.OutputLabels[2])
	assert.Equal(t, "Studio A", snap.Info.Title)
	assert.True(t, snap.Info.AuthPresent)
	assert.Equal(t, "locked", snap.Info.Lock.String())
	assert.Equal(t, 1, m.Snapshots())
}

func TestHandler_SnapshotQuotedLabels(t *testing.T) {
	m := New(protocol.Model4x4,
		WithTitle("Bob's Rack"),
		WithInputLabel(1, `12" Monitor`),
		WithOutputLabel(1, `C:\Feed`),
	)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	client := deviceapi.NewClientWithURL(srv.URL)
	snap, err := client.FetchSnapshot(context.Background(), protocol.Model4x4)
	require.NoError(t, err)

	assert.Equal(t, "Bob's Rack", snap.Info.Title)
	assert.Equal(t, `12" Monitor`, snap.Info.InputLabels[1])
	assert.Equal(t, `C:\Feed`, snap.Info.OutputLabels[1])
}

func TestHandler_RejectsGet(t *testing.T) {
	m := New(protocol.Model6x6)
	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + deviceapi.SnapshotPath(protocol.Model6x6))
	require.NoError(t, err)
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHandler_WrongModelPath(t *testing.T) {
	m := New(protocol.Model6x6)
	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+deviceapi.SnapshotPath(protocol.Model4x4), "application/javascript", strings.NewReader("tag=ptn"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
