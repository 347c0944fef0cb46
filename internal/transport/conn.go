package transport

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/intmatrix/internal/deviceerr"
	"github.com/muurk/intmatrix/internal/logging"
)

const (
	// DefaultPort is the matrix's control port
	DefaultPort = 4001

	// DefaultDialTimeout bounds connection establishment
	DefaultDialTimeout = 5 * time.Second

	// DefaultWriteTimeout bounds a single command write
	DefaultWriteTimeout = 3 * time.Second

	readBufferSize = 1024
	keepAlive      = 30 * time.Second
)

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("connection closed")

// Handler receives what a Conn reads. Calls come from the Conn's read
// goroutine, one at a time.
type Handler interface {
	// OnData is called once per read with a private copy of the bytes.
	OnData(data []byte)
	// OnClose is called exactly once when reading stops. err is nil when
	// the connection was closed locally.
	OnClose(err error)
}

// DialFunc opens the underlying connection. net.Dialer.DialContext fits.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// Conn is the stream channel to one matrix.
type Conn struct {
	conn         net.Conn
	host         string
	writeTimeout time.Duration

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    chan struct{}
}

// Options tune Dial. The zero value uses the defaults.
type Options struct {
	DialTimeout  time.Duration
	WriteTimeout time.Duration
	Dial         DialFunc
}

// Dial connects to host:port. Failures are returned as *deviceerr.DeviceError.
func Dial(ctx context.Context, host string, port int, opts Options) (*Conn, error) {
	if port == 0 {
		port = DefaultPort
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = DefaultDialTimeout
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}
	if opts.Dial == nil {
		d := &net.Dialer{KeepAlive: keepAlive}
		opts.Dial = d.DialContext
	}

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	dialCtx, cancel := context.WithTimeout(ctx, opts.DialTimeout)
	defer cancel()

	logging.LogConnection(addr, "dialing")
	nc, err := opts.Dial(dialCtx, "tcp", addr)
	if err != nil {
		return nil, deviceerr.NewNetworkError(host, "failed to connect to "+addr, err)
	}
	logging.LogConnection(addr, "connected")

	return &Conn{
		conn:         nc,
		host:         host,
		writeTimeout: opts.WriteTimeout,
		closed:       make(chan struct{}),
	}, nil
}

// Start begins reading in a new goroutine.
func (c *Conn) Start(h Handler) {
	go c.readLoop(h)
}

func (c *Conn) readLoop(h Handler) {
	buf := make([]byte, readBufferSize)
	for {
		n, err := c.conn.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			logging.LogRawBytes("Stream delivery", data)
			h.OnData(data)
		}
		if err != nil {
			if c.isClosed() {
				logging.LogConnection(c.RemoteAddr(), "closed")
				h.OnClose(nil)
				return
			}
			devErr := deviceerr.ClassifyNetworkError(err, c.host)
			logging.Warn("Stream read failed",
				zap.String("remote_addr", c.RemoteAddr()),
				zap.Error(devErr),
			)
			_ = c.Close()
			h.OnClose(devErr)
			return
		}
	}
}

// Send writes one encoded command.
func (c *Conn) Send(p []byte) error {
	if c.isClosed() {
		return ErrClosed
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return deviceerr.NewNetworkError(c.host, "failed to set write deadline", err)
	}
	logging.LogRawBytes("Stream send", p)
	if _, err := c.conn.Write(p); err != nil {
		return deviceerr.NewNetworkError(c.host, "failed to send command", err)
	}
	return nil
}

// Close shuts the connection. Safe to call more than once.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.conn.Close()
	})
	return err
}

// Done is closed once the connection is closed.
func (c *Conn) Done() <-chan struct{} { return c.closed }

// RemoteAddr returns the device address.
func (c *Conn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

func (c *Conn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}
