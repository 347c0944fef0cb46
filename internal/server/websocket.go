package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/intmatrix/internal/console"
	"github.com/muurk/intmatrix/internal/driver"
	"github.com/muurk/intmatrix/internal/logging"
	"github.com/muurk/intmatrix/internal/matrix"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192

	// Outbound messages buffered per client
	sendBuffer = 16
)

// Message types pushed to WebSocket clients.
const (
	MessageHello  = "hello"
	MessageState  = "state"
	MessageStatus = "status"
	MessageResult = "result"
)

// Message is one server to client WebSocket message.
type Message struct {
	Type      string            `json:"type"`
	ClientID  string            `json:"client_id,omitempty"`
	Status    *driver.Status    `json:"status,omitempty"`
	View      *matrix.View      `json:"view,omitempty"`
	Variables map[string]string `json:"variables,omitempty"`
	Result    *CommandResponse  `json:"result,omitempty"`
}

type wsClient struct {
	id        string
	conn      *websocket.Conn
	send      chan Message
	done      chan struct{}
	closeOnce sync.Once
}

func (c *wsClient) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// enqueue drops the message if the client is not keeping up.
func (c *wsClient) enqueue(m Message) {
	select {
	case c.send <- m:
	case <-c.done:
	default:
		logging.Debug("WebSocket client lagging, message dropped",
			zap.String("client_id", c.id),
			zap.String("type", m.Type),
		)
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn("WebSocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}

	c := &wsClient{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan Message, sendBuffer),
		done: make(chan struct{}),
	}

	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.clients[c.id] = c
	s.wg.Add(2)
	s.mu.Unlock()

	logging.LogConnection(r.RemoteAddr, "websocket_connected")
	logging.Info("WebSocket client connected",
		zap.String("client_id", c.id),
		zap.String("remote_addr", r.RemoteAddr),
	)

	events, unsubscribe := s.backend.Subscribe()

	go func() {
		defer s.wg.Done()
		s.writeLoop(c, events)
	}()
	go func() {
		defer s.wg.Done()
		defer func() {
			unsubscribe()
			c.close()
			s.mu.Lock()
			delete(s.clients, c.id)
			s.mu.Unlock()
			logging.LogConnection(r.RemoteAddr, "websocket_closed")
		}()
		s.readLoop(c)
	}()
}

// writeLoop owns all writes to the connection.
func (s *Server) writeLoop(c *wsClient, events <-chan driver.Event) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	status := s.backend.Status()
	view := s.backend.State()
	vars := console.Variables(view)
	if !s.write(c, Message{Type: MessageHello, ClientID: c.id, Status: &status, View: &view, Variables: vars}) {
		c.close()
		return
	}

	for {
		select {
		case <-c.done:
			return
		case ev, ok := <-events:
			if !ok {
				c.close()
				return
			}
			m := Message{Type: MessageStatus, Status: &ev.Status}
			if ev.Kind == driver.EventState {
				v := ev.View
				next := console.Variables(v)
				m = Message{Type: MessageState, View: &v, Variables: console.Diff(vars, next)}
				vars = next
			}
			if !s.write(c, m) {
				c.close()
				return
			}
		case m := <-c.send:
			if !s.write(c, m) {
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		}
	}
}

func (s *Server) write(c *wsClient, m Message) bool {
	data, err := json.Marshal(m)
	if err != nil {
		logging.Error("Failed to marshal WebSocket message", zap.Error(err))
		return true
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		logging.Debug("WebSocket write failed",
			zap.String("client_id", c.id),
			zap.Error(err),
		)
		return false
	}
	logging.LogWebSocketMessage(c.id, "sent", websocket.TextMessage, data)
	return true
}

// readLoop accepts CommandRequest messages until the peer goes away.
func (s *Server) readLoop(c *wsClient) {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Info("WebSocket client closed unexpectedly",
					zap.String("client_id", c.id),
					zap.Error(err),
				)
			}
			return
		}
		logging.LogWebSocketMessage(c.id, "received", msgType, data)

		var req CommandRequest
		if err := json.Unmarshal(data, &req); err != nil {
			c.enqueue(Message{Type: MessageResult, Result: &CommandResponse{Error: "invalid request: " + err.Error()}})
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), writeWait)
		resp, _ := s.executeRequest(ctx, req)
		cancel()
		c.enqueue(Message{Type: MessageResult, Result: &resp})
	}
}
