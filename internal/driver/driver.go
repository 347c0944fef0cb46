package driver

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/muurk/intmatrix/internal/capture"
	"github.com/muurk/intmatrix/internal/deviceapi"
	"github.com/muurk/intmatrix/internal/logging"
	"github.com/muurk/intmatrix/internal/matrix"
	"github.com/muurk/intmatrix/internal/poller"
	"github.com/muurk/intmatrix/internal/protocol"
	"github.com/muurk/intmatrix/internal/transport"
)

var (
	// ErrCommandSuppressed is returned by Execute when the stream is not
	// connected. Nothing was sent and nothing is queued.
	ErrCommandSuppressed = errors.New("not connected, command suppressed")

	// ErrNotRunning is returned once Run has exited.
	ErrNotRunning = errors.New("driver is not running")

	errAlreadyRunning = errors.New("driver is already running")
)

const (
	inboxSize      = 64
	subscriberSize = 32
)

// ModelSink persists a model the device announced for host.
type ModelSink func(host string, m protocol.Model) error

// Recorder receives every raw stream delivery in both directions.
type Recorder interface {
	Record(dir capture.Direction, data []byte) error
}

// Option configures a Driver.
type Option func(*Driver)

// WithFetcher replaces the CGI client used for snapshot polls.
func WithFetcher(f poller.Fetcher) Option {
	return func(d *Driver) { d.fetcher = f }
}

// WithDialFunc replaces the stream dialer.
func WithDialFunc(dial transport.DialFunc) Option {
	return func(d *Driver) { d.dial = dial }
}

// WithModelSink sets where announced models are persisted.
func WithModelSink(sink ModelSink) Option {
	return func(d *Driver) { d.sink = sink }
}

// WithRecorder captures the raw stream.
func WithRecorder(r Recorder) Option {
	return func(d *Driver) { d.recorder = r }
}

// Driver keeps a live model of one matrix.
//
// All protocol state (the store, the reassembler, the poller and the
// connection) is owned by the goroutine running Run. Everything else talks
// to it through its inbox: stream deliveries, dial and poll completions,
// commands and reconfiguration. Readers use State and Status, which return
// the last published copies, or Subscribe.
type Driver struct {
	// Owned by the Run goroutine.
	cfg    Config
	store  *matrix.Store
	reasm  protocol.Reassembler
	poller *poller.Poller
	conn   *transport.Conn
	connID uint64
	ctx    context.Context

	fetcher  poller.Fetcher
	client   atomic.Pointer[deviceapi.Client]
	dial     transport.DialFunc
	sink     ModelSink
	recorder Recorder

	inbox   chan any
	done    chan struct{}
	running atomic.Bool

	view    atomic.Pointer[matrix.View]
	status  atomic.Pointer[Status]
	current atomic.Pointer[Config]

	subMu      sync.Mutex
	subs       map[uint64]chan Event
	nextSub    uint64
	subsClosed bool
}

// Loop messages.
type (
	dialResult struct {
		id   uint64
		conn *transport.Conn
		err  error
	}
	streamData struct {
		id   uint64
		data []byte
	}
	streamClosed struct {
		id  uint64
		err error
	}
	pollResult struct {
		res poller.Result
	}
	command struct {
		intent protocol.Intent
		reply  chan commandReply
	}
	commandReply struct {
		sent bool
		err  error
	}
	reconfigure struct {
		cfg  Config
		done chan struct{}
	}
	refresh struct{}
)

// New returns a Driver for cfg. Nothing connects until Run.
func New(cfg Config, opts ...Option) (*Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	d := &Driver{
		cfg:   cfg,
		store: matrix.NewStore(cfg.Model),
		inbox: make(chan any, inboxSize),
		done:  make(chan struct{}),
		subs:  make(map[uint64]chan Event),
	}
	for _, opt := range opts {
		opt(d)
	}

	d.client.Store(deviceapi.NewClient(cfg.Host, cfg.HTTPPort))
	if d.fetcher == nil {
		d.fetcher = poller.FetcherFunc(d.fetchSnapshot)
	}
	d.poller = poller.New(d.fetcher, cfg.PollTimeout)

	d.current.Store(&cfg)
	d.status.Store(&Status{State: transport.StatusDisconnected})
	v := d.store.View()
	d.view.Store(&v)

	return d, nil
}

// Run connects and processes events until ctx is done. It returns nil on
// cancellation. A Driver runs once.
func (d *Driver) Run(ctx context.Context) error {
	if !d.running.CompareAndSwap(false, true) {
		return errAlreadyRunning
	}
	d.ctx = ctx
	defer d.shutdown()

	cfg := d.cfg
	logging.Info("Driver starting",
		zap.String("host", cfg.Host),
		zap.Stringer("model", cfg.Model),
		zap.Int("stream_port", cfg.StreamPort),
		zap.Int("http_port", cfg.HTTPPort),
	)
	d.reinitialize("start")

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-d.inbox:
			d.handle(msg)
		}
	}
}

// Execute encodes intent and writes it to the stream. When the stream is
// down the command is dropped, logged, and ErrCommandSuppressed returned
// with sent=false.
func (d *Driver) Execute(ctx context.Context, intent protocol.Intent) (sent bool, err error) {
	reply := make(chan commandReply, 1)
	if err := d.send(ctx, command{intent: intent, reply: reply}); err != nil {
		return false, err
	}
	select {
	case r := <-reply:
		return r.sent, r.err
	case <-ctx.Done():
		return false, ctx.Err()
	case <-d.done:
		return false, ErrNotRunning
	}
}

// Reconfigure applies a new configuration: the stream is torn down, pending
// input discarded, the model reselected, then the stream redialed and a
// snapshot polled. It returns once the procedure has started.
func (d *Driver) Reconfigure(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	done := make(chan struct{})
	if err := d.send(ctx, reconfigure{cfg: cfg.withDefaults(), done: done}); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-d.done:
		return ErrNotRunning
	}
}

// Refresh requests a snapshot poll. It is coalesced with one in flight.
func (d *Driver) Refresh() {
	select {
	case d.inbox <- refresh{}:
	case <-d.done:
	default:
		logging.Debug("Driver inbox full, refresh dropped")
	}
}

// State returns the last published view. Callers must not modify it.
func (d *Driver) State() matrix.View { return *d.view.Load() }

// Status returns the connection status.
func (d *Driver) Status() Status { return *d.status.Load() }

// Config returns the active configuration.
func (d *Driver) Config() Config { return *d.current.Load() }

// Subscribe returns a channel of events and a function to stop them. Slow
// subscribers miss events rather than block the driver; State always has
// the latest view. The channel is closed when Run exits.
func (d *Driver) Subscribe() (<-chan Event, func()) {
	d.subMu.Lock()
	defer d.subMu.Unlock()

	ch := make(chan Event, subscriberSize)
	if d.subsClosed {
		close(ch)
		return ch, func() {}
	}

	id := d.nextSub
	d.nextSub++
	d.subs[id] = ch

	return ch, func() {
		d.subMu.Lock()
		defer d.subMu.Unlock()
		if c, ok := d.subs[id]; ok {
			delete(d.subs, id)
			close(c)
		}
	}
}

// Done is closed when Run has exited.
func (d *Driver) Done() <-chan struct{} { return d.done }

func (d *Driver) send(ctx context.Context, msg any) error {
	select {
	case d.inbox <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-d.done:
		return ErrNotRunning
	}
}

// post delivers a message from a worker goroutine.
func (d *Driver) post(msg any) {
	select {
	case d.inbox <- msg:
	case <-d.done:
	}
}

func (d *Driver) fetchSnapshot(ctx context.Context, m protocol.Model) (*matrix.Snapshot, error) {
	return d.client.Load().FetchSnapshot(ctx, m)
}

func (d *Driver) shutdown() {
	d.teardown()
	d.poller.Cancel()
	d.setStatus(transport.StatusDisconnected, "")
	close(d.done)

	d.subMu.Lock()
	for id, ch := range d.subs {
		delete(d.subs, id)
		close(ch)
	}
	d.subsClosed = true
	d.subMu.Unlock()

	logging.Info("Driver stopped", zap.String("host", d.cfg.Host))
}
