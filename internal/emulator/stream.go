package emulator

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/intmatrix/internal/logging"
	"github.com/muurk/intmatrix/internal/protocol"
)

// ErrClosed is returned by ServeStream after Close.
var ErrClosed = errors.New("emulator closed")

// ServeStream accepts stream clients on ln until Close. It always returns a
// non-nil error; after Close it is ErrClosed.
func (m *Matrix) ServeStream(ln net.Listener) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		_ = ln.Close()
		return ErrClosed
	}
	m.listeners = append(m.listeners, ln)
	m.mu.Unlock()

	logging.Info("Emulator listening for stream clients",
		zap.String("addr", ln.Addr().String()),
		zap.Stringer("model", m.model),
	)

	for {
		conn, err := ln.Accept()
		if err != nil {
			if m.isClosed() || errors.Is(err, net.ErrClosed) {
				return ErrClosed
			}
			logging.Error("Failed to accept connection", zap.Error(err))
			return err
		}

		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.handleConnection(conn)
		}()
	}
}

func (m *Matrix) handleConnection(conn net.Conn) {
	remoteAddr := conn.RemoteAddr().String()

	m.mu.Lock()
	m.activeConns[remoteAddr] = conn
	m.mu.Unlock()

	defer func() {
		_ = conn.Close()
		m.mu.Lock()
		delete(m.activeConns, remoteAddr)
		m.mu.Unlock()
		logging.LogConnection(remoteAddr, "connection_closed")
	}()

	logging.LogConnection(remoteAddr, "connection_accepted")

	r := bufio.NewReader(conn)
	for {
		raw, err := r.ReadString('\n')
		if line := strings.TrimRight(raw, "\r\n"); line != "" {
			replies := m.execute(line)
			if werr := writeLines(conn, replies); werr != nil {
				logging.Warn("Emulator write failed",
					zap.String("remote_addr", remoteAddr),
					zap.Error(werr),
				)
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// writeLines sends replies as one delivery.
func writeLines(conn net.Conn, lines []string) error {
	if len(lines) == 0 {
		return nil
	}
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l)
		b.WriteString(protocol.Terminator)
	}
	_, err := conn.Write([]byte(b.String()))
	return err
}

// Push writes raw chunks to every connected client, one Write per chunk,
// pausing between chunks so they tend to arrive as separate deliveries.
func (m *Matrix) Push(chunks ...[]byte) {
	m.mu.Lock()
	conns := make([]net.Conn, 0, len(m.activeConns))
	for _, c := range m.activeConns {
		conns = append(conns, c)
	}
	m.mu.Unlock()

	for i, chunk := range chunks {
		if i > 0 {
			time.Sleep(20 * time.Millisecond)
		}
		for _, c := range conns {
			if _, err := c.Write(chunk); err != nil {
				logging.Debug("Emulator push failed",
					zap.String("remote_addr", c.RemoteAddr().String()),
					zap.Error(err),
				)
			}
		}
	}
}

// PushLines sends status lines to every client as one delivery.
func (m *Matrix) PushLines(lines ...string) {
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l)
		b.WriteString(protocol.Terminator)
	}
	m.Push([]byte(b.String()))
}

// Clients returns the number of connected stream clients.
func (m *Matrix) Clients() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.activeConns)
}

// DropClients closes every stream connection, leaving listeners open.
func (m *Matrix) DropClients() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.activeConns {
		_ = c.Close()
	}
}

// Close stops the listeners, closes all connections and waits for the
// connection goroutines, or for ctx.
func (m *Matrix) Close(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	for _, ln := range m.listeners {
		if err := ln.Close(); err != nil {
			logging.Error("Error closing listener", zap.Error(err))
		}
	}
	for addr, c := range m.activeConns {
		logging.Debug("Closing active connection", zap.String("remote_addr", addr))
		_ = c.Close()
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		logging.Warn("Emulator shutdown timeout, forcing close")
		return ctx.Err()
	}
}

func (m *Matrix) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
