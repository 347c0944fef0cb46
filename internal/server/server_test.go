package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muurk/intmatrix/internal/deviceerr"
	"github.com/muurk/intmatrix/internal/driver"
	"github.com/muurk/intmatrix/internal/matrix"
	"github.com/muurk/intmatrix/internal/protocol"
	"github.com/muurk/intmatrix/internal/transport"
)

type fakeBackend struct {
	mu        sync.Mutex
	view      matrix.View
	status    driver.Status
	executed  []protocol.Intent
	connected bool
	refreshes int
	subs      []chan driver.Event
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	s := matrix.NewStore(protocol.Model4x4)
	_, err := s.Replace(&matrix.Snapshot{
		Routes: map[int]int{1: 1, 2: 2, 3: 3, 4: 4},
		Info: matrix.DeviceInfo{
			Lock:        matrix.LockUnlocked,
			InputLabels: map[int]string{1: "Camera"},
			AuthPresent: true,
		},
	})
	require.NoError(t, err)
	return &fakeBackend{
		view:      s.View(),
		status:    driver.Status{State: transport.StatusOK},
		connected: true,
	}
}

func (b *fakeBackend) State() matrix.View {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.view
}

func (b *fakeBackend) Status() driver.Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

func (b *fakeBackend) Execute(ctx context.Context, intent protocol.Intent) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.connected {
		return false, driver.ErrCommandSuppressed
	}
	if err := intent.Validate(b.view.Model); err != nil {
		return false, deviceerr.NewValidationError(err.Error())
	}
	b.executed = append(b.executed, intent)
	return true, nil
}

func (b *fakeBackend) Refresh() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refreshes++
}

func (b *fakeBackend) Subscribe() (<-chan driver.Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan driver.Event, 8)
	b.subs = append(b.subs, ch)
	return ch, func() {}
}

func (b *fakeBackend) publish(ev driver.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		ch <- ev
	}
}

func (b *fakeBackend) subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func TestGetState(t *testing.T) {
	b := newFakeBackend(t)
	srv := httptest.NewServer(New(Config{}, b).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/state")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var body struct {
		Status struct {
			State string `json:"state"`
		} `json:"status"`
		View struct {
			Model  int   `json:"model"`
			Routes []int `json:"routes"`
			Synced bool  `json:"synced"`
			Info   struct {
				Lock string `json:"lock"`
			} `json:"info"`
		} `json:"view"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body.Status.State)
	assert.Equal(t, 4, body.View.Model)
	assert.Equal(t, []int{1, 2, 3, 4}, body.View.Routes)
	assert.True(t, body.View.Synced)
	assert.Equal(t, "unlocked", body.View.Info.Lock)
}

func TestGetVariablesAndChoices(t *testing.T) {
	b := newFakeBackend(t)
	srv := httptest.NewServer(New(Config{}, b).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/variables")
	require.NoError(t, err)
	var vars VariablesResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&vars))
	resp.Body.Close()

	assert.Len(t, vars.Definitions, 5+4*4)
	assert.Equal(t, "Unlocked", vars.Values["lock_state"])
	assert.Equal(t, "3", vars.Values["output_3"])
	assert.Equal(t, "Camera", vars.Values["input_1_label"])

	resp, err = http.Get(srv.URL + "/api/choices")
	require.NoError(t, err)
	var choices ChoicesResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&choices))
	resp.Body.Close()

	require.Len(t, choices.Inputs, 4)
	assert.Equal(t, matrix.Choice{ID: 1, Label: "Camera"}, choices.Inputs[0])
	assert.Equal(t, matrix.Choice{ID: 2, Label: "Output 2"}, choices.Outputs[1])
}

func postCommand(t *testing.T, url, body string) (int, CommandResponse) {
	t.Helper()
	resp, err := http.Post(url+"/api/commands", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out CommandResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestPostCommand(t *testing.T) {
	b := newFakeBackend(t)
	srv := httptest.NewServer(New(Config{}, b).Handler())
	defer srv.Close()

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantSent   bool
	}{
		{"route", `{"id":"a","action":"route","input":3,"outputs":[1,2]}`, http.StatusOK, true},
		{"route all", `{"action":"route-all","input":2}`, http.StatusOK, true},
		{"lock", `{"action":"lock"}`, http.StatusOK, true},
		{"empty outputs", `{"action":"route","input":3}`, http.StatusBadRequest, false},
		{"out of range", `{"action":"route","input":9,"outputs":[1]}`, http.StatusBadRequest, false},
		{"unknown action", `{"action":"explode"}`, http.StatusBadRequest, false},
		{"unknown field", `{"action":"lock","force":true}`, http.StatusBadRequest, false},
		{"not json", `lock`, http.StatusBadRequest, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, resp := postCommand(t, srv.URL, tt.body)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantSent, resp.Sent)
			if !tt.wantSent {
				assert.NotEmpty(t, resp.Error)
			}
		})
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	require.Len(t, b.executed, 3)
	assert.Equal(t, protocol.Route(3, 1, 2), b.executed[0])
}

func TestPostCommand_Suppressed(t *testing.T) {
	b := newFakeBackend(t)
	b.connected = false
	srv := httptest.NewServer(New(Config{}, b).Handler())
	defer srv.Close()

	status, resp := postCommand(t, srv.URL, `{"action":"unlock"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.False(t, resp.Sent)
	assert.True(t, resp.Suppressed)
	assert.Empty(t, resp.Error)
}

func TestPostRefresh(t *testing.T) {
	b := newFakeBackend(t)
	srv := httptest.NewServer(New(Config{}, b).Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/refresh", "application/json", bytes.NewReader(nil))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	b.mu.Lock()
	defer b.mu.Unlock()
	assert.Equal(t, 1, b.refreshes)
}

func TestMethodNotAllowed(t *testing.T) {
	b := newFakeBackend(t)
	srv := httptest.NewServer(New(Config{}, b).Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/state", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var m Message
	require.NoError(t, conn.ReadJSON(&m))
	return m
}

func TestWebSocket_HelloAndUpdates(t *testing.T) {
	b := newFakeBackend(t)
	s := New(Config{}, b)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	conn := dialWS(t, srv)

	hello := readMessage(t, conn)
	assert.Equal(t, MessageHello, hello.Type)
	assert.NotEmpty(t, hello.ClientID)
	require.NotNil(t, hello.View)
	assert.Equal(t, []int{1, 2, 3, 4}, hello.View.Routes)
	assert.Equal(t, "1", hello.Variables["output_1"])

	require.Eventually(t, func() bool { return b.subscribers() == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, s.ActiveClients())

	next := b.State()
	next.Routes = []int{2, 2, 3, 4}
	b.publish(driver.Event{Kind: driver.EventState, View: next, Change: matrix.ChangeRoutes})

	update := readMessage(t, conn)
	assert.Equal(t, MessageState, update.Type)
	assert.Equal(t, map[string]string{"output_1": "2"}, update.Variables)

	b.publish(driver.Event{Kind: driver.EventStatus, Status: driver.Status{State: transport.StatusError, Message: "Connection closed by device"}})
	status := readMessage(t, conn)
	assert.Equal(t, MessageStatus, status.Type)
	require.NotNil(t, status.Status)
	assert.Equal(t, transport.StatusError, status.Status.State)
}

func TestWebSocket_Command(t *testing.T) {
	b := newFakeBackend(t)
	srv := httptest.NewServer(New(Config{}, b).Handler())
	defer srv.Close()

	conn := dialWS(t, srv)
	readMessage(t, conn)

	require.NoError(t, conn.WriteJSON(CommandRequest{ID: "42", Action: "pass-through"}))
	result := readMessage(t, conn)
	assert.Equal(t, MessageResult, result.Type)
	require.NotNil(t, result.Result)
	assert.Equal(t, "42", result.Result.ID)
	assert.True(t, result.Result.Sent)
}

func TestServe_ShutdownClosesClients(t *testing.T) {
	b := newFakeBackend(t)
	s := New(Config{ShutdownTimeout: 2 * time.Second}, b)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- s.Serve(ctx, ln) }()

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return s.ActiveClients() == 1 }, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Serve did not return")
	}
	assert.Equal(t, 0, s.ActiveClients())
}
