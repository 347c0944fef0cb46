package transport

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/muurk/intmatrix/internal/deviceerr"
)

type recordingHandler struct {
	mu     sync.Mutex
	data   [][]byte
	closed chan error
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{closed: make(chan error, 1)}
}

func (h *recordingHandler) OnData(data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.data = append(h.data, data)
}

func (h *recordingHandler) OnClose(err error) { h.closed <- err }

func (h *recordingHandler) joined() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var s string
	for _, d := range h.data {
		s += string(d)
	}
	return s
}

func listen(t *testing.T) (net.Listener, string, int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	host, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, _ := strconv.Atoi(portStr)
	return ln, host, port
}

func TestDial_SendAndReceive(t *testing.T) {
	ln, host, port := listen(t)

	serverGot := make(chan string, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		line, _ := bufio.NewReader(c).ReadString('\n')
		serverGot <- line
		c.Write([]byte("AV:01->02\r\n"))
		time.Sleep(100 * time.Millisecond)
	}()

	conn, err := Dial(context.Background(), host, port, Options{})
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	h := newRecordingHandler()
	conn.Start(h)

	if err := conn.Send([]byte("/%Lock;\r\n")); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	select {
	case got := <-serverGot:
		if got != "/%Lock;\r\n" {
			t.Errorf("server got %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not receive command")
	}

	select {
	case err := <-h.closed:
		if err == nil {
			t.Error("expected an error when the peer closes")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("OnClose was not called")
	}

	if got := h.joined(); got != "AV:01->02\r\n" {
		t.Errorf("received %q", got)
	}
}

func TestClose_ReportsNil(t *testing.T) {
	ln, host, port := listen(t)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			defer c.Close()
			time.Sleep(time.Second)
		}
	}()

	conn, err := Dial(context.Background(), host, port, Options{})
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}

	h := newRecordingHandler()
	conn.Start(h)
	conn.Close()
	conn.Close()

	select {
	case err := <-h.closed:
		if err != nil {
			t.Errorf("OnClose(%v), want nil after local close", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("OnClose was not called")
	}

	if err := conn.Send([]byte("x")); err != ErrClosed {
		t.Errorf("Send after Close = %v, want ErrClosed", err)
	}
}

func TestDial_Refused(t *testing.T) {
	ln, host, port := listen(t)
	ln.Close()

	_, err := Dial(context.Background(), host, port, Options{DialTimeout: time.Second})
	if err == nil {
		t.Fatal("expected an error")
	}
	if !deviceerr.IsNetworkError(err) {
		t.Errorf("error %v is not a network error", err)
	}
}

func TestDial_CustomDialer(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	var gotAddr string
	conn, err := Dial(context.Background(), "matrix.local", 0, Options{
		Dial: func(ctx context.Context, network, address string) (net.Conn, error) {
			gotAddr = address
			return client, nil
		},
	})
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	if gotAddr != "matrix.local:4001" {
		t.Errorf("dialed %q, want matrix.local:4001", gotAddr)
	}
}

func TestStatusString(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusDisconnected, "disconnected"},
		{StatusConnecting, "connecting"},
		{StatusOK, "ok"},
		{StatusError, "error"},
		{Status(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("Status(%d).String() = %q, want %q", tt.status, got, tt.want)
		}
	}
}
