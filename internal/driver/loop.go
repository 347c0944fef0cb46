package driver

import (
	"go.uber.org/zap"

	"github.com/muurk/intmatrix/internal/capture"
	"github.com/muurk/intmatrix/internal/deviceapi"
	"github.com/muurk/intmatrix/internal/deviceerr"
	"github.com/muurk/intmatrix/internal/logging"
	"github.com/muurk/intmatrix/internal/matrix"
	"github.com/muurk/intmatrix/internal/poller"
	"github.com/muurk/intmatrix/internal/protocol"
	"github.com/muurk/intmatrix/internal/transport"
)

func (d *Driver) handle(msg any) {
	switch m := msg.(type) {
	case dialResult:
		d.handleDial(m)
	case streamData:
		d.handleData(m)
	case streamClosed:
		d.handleClosed(m)
	case pollResult:
		d.handlePoll(m.res)
	case command:
		m.reply <- d.handleCommand(m.intent)
	case reconfigure:
		d.handleReconfigure(m.cfg)
		close(m.done)
	case refresh:
		d.poll("refresh")
	default:
		logging.Error("Driver got unexpected message", zap.Any("message", msg))
	}
}

// reinitialize tears down the stream, drops any partial line, abandons the
// in-flight poll, reselects the model, then redials and polls.
func (d *Driver) reinitialize(reason string) {
	d.teardown()
	d.reasm.Reset()
	d.poller.Cancel()
	d.publish(d.store.SetModel(d.cfg.Model))
	d.connect()
	d.poll(reason)
}

func (d *Driver) teardown() {
	d.connID++
	if d.conn != nil {
		_ = d.conn.Close()
		d.conn = nil
	}
}

func (d *Driver) connect() {
	d.connID++
	id := d.connID
	cfg := d.cfg
	dial := d.dial
	ctx := d.ctx

	d.setStatus(transport.StatusConnecting, "")
	go func() {
		conn, err := transport.Dial(ctx, cfg.Host, cfg.StreamPort, transport.Options{Dial: dial})
		d.post(dialResult{id: id, conn: conn, err: err})
	}()
}

func (d *Driver) handleDial(r dialResult) {
	if r.id != d.connID {
		if r.conn != nil {
			_ = r.conn.Close()
		}
		return
	}
	if r.err != nil {
		logging.Warn("Stream connection failed",
			zap.String("host", d.cfg.Host),
			zap.Error(r.err),
		)
		d.setStatus(transport.StatusError, deviceerr.ShortMessage(r.err))
		return
	}

	d.conn = r.conn
	d.conn.Start(&streamHandler{d: d, id: r.id})
	d.setStatus(transport.StatusOK, "")

	if err := d.write(protocol.BuildTypeQuery()); err != nil {
		logging.Warn("Type query failed", zap.Error(err))
	}
	d.poll("connected")
}

func (d *Driver) handleClosed(c streamClosed) {
	if c.id != d.connID {
		return
	}
	d.conn = nil
	d.reasm.Reset()
	if c.err != nil {
		d.setStatus(transport.StatusError, deviceerr.ShortMessage(c.err))
		return
	}
	d.setStatus(transport.StatusDisconnected, "")
}

func (d *Driver) handleData(m streamData) {
	if m.id != d.connID {
		return
	}
	d.record(capture.DirectionReceive, m.data)
	for _, line := range d.reasm.Feed(m.data) {
		d.handleLine(line)
	}
}

func (d *Driver) handleLine(line string) {
	u := protocol.ParseLine(line)
	if u == nil {
		return
	}

	switch u := u.(type) {
	case *protocol.UnknownLine:
		logging.Debug("Unrecognized status line",
			zap.String("line", u.Line),
			zap.String("reason", u.Reason),
		)
		d.poll("unrecognized line")
		return
	case *protocol.ModelAnnouncement:
		d.handleModel(u.Model)
		return
	}

	change, err := d.store.Apply(u)
	if err != nil {
		logging.Warn("Status line rejected",
			zap.String("line", line),
			zap.Stringer("update", u),
			zap.Error(err),
		)
		d.poll("rejected line")
	}
	d.publish(change)
}

func (d *Driver) handleModel(m protocol.Model) {
	if m == d.cfg.Model {
		return
	}
	logging.Info("Device announced a different model",
		zap.String("host", d.cfg.Host),
		zap.Stringer("configured", d.cfg.Model),
		zap.Stringer("announced", m),
	)

	d.cfg.Model = m
	cfg := d.cfg
	d.current.Store(&cfg)
	d.poller.Cancel()
	d.publish(d.store.SetModel(m))

	if d.sink != nil {
		if err := d.sink(d.cfg.Host, m); err != nil {
			logging.Warn("Failed to persist announced model", zap.Error(err))
		}
	}
	d.poll("model announced")
}

func (d *Driver) handlePoll(r poller.Result) {
	if !d.poller.Accept(r) {
		return
	}
	if r.Model != d.store.Model() {
		logging.Debug("Snapshot for previous model discarded", zap.Stringer("model", r.Model))
		return
	}
	if r.Err != nil {
		logging.Warn("Snapshot poll failed, keeping last known state",
			zap.String("host", d.cfg.Host),
			zap.Bool("decode_error", deviceerr.IsDecodeError(r.Err)),
			zap.Duration("duration", r.Duration),
			zap.Error(r.Err),
		)
		return
	}

	change, err := d.store.Replace(r.Snapshot)
	if err != nil {
		logging.Warn("Snapshot rejected, keeping last known state", zap.Error(err))
		return
	}
	logging.Debug("Snapshot applied",
		zap.Uint64("generation", r.Generation),
		zap.Duration("duration", r.Duration),
	)
	d.publish(change)
}

func (d *Driver) handleCommand(intent protocol.Intent) commandReply {
	if d.conn == nil {
		logging.Warn("Command suppressed, stream not connected",
			zap.String("host", d.cfg.Host),
			zap.Stringer("intent", intent),
		)
		return commandReply{err: ErrCommandSuppressed}
	}
	if err := intent.Validate(d.store.Model()); err != nil {
		return commandReply{err: deviceerr.NewValidationError(err.Error())}
	}
	b, err := protocol.BuildCommand(intent)
	if err != nil {
		return commandReply{err: err}
	}
	if err := d.write(b); err != nil {
		return commandReply{err: err}
	}
	logging.Debug("Command sent", zap.Stringer("intent", intent))
	return commandReply{sent: true}
}

func (d *Driver) handleReconfigure(cfg Config) {
	logging.Info("Reconfiguring",
		zap.String("host", cfg.Host),
		zap.Stringer("model", cfg.Model),
	)
	if cfg.endpoint() != d.cfg.endpoint() {
		d.publish(d.store.Reset(cfg.Model))
	}
	d.cfg = cfg
	d.current.Store(&cfg)
	d.client.Store(deviceapi.NewClient(cfg.Host, cfg.HTTPPort))
	d.poller.SetTimeout(cfg.PollTimeout)
	d.reinitialize("reconfigured")
}

func (d *Driver) poll(reason string) {
	d.poller.Trigger(d.ctx, d.store.Model(), reason, func(r poller.Result) {
		d.post(pollResult{res: r})
	})
}

func (d *Driver) write(b []byte) error {
	d.record(capture.DirectionSend, b)
	return d.conn.Send(b)
}

func (d *Driver) record(dir capture.Direction, data []byte) {
	if d.recorder == nil {
		return
	}
	if err := d.recorder.Record(dir, data); err != nil {
		logging.Debug("Capture failed", zap.Error(err))
	}
}

func (d *Driver) publish(change matrix.Change) {
	v := d.store.View()
	d.view.Store(&v)
	if change != 0 {
		d.broadcast(Event{Kind: EventState, View: v, Change: change})
	}
}

func (d *Driver) setStatus(state transport.Status, msg string) {
	s := Status{State: state, Message: msg}
	if old := d.status.Load(); old != nil && *old == s {
		return
	}
	d.status.Store(&s)
	logging.Info("Connection status",
		zap.String("host", d.cfg.Host),
		zap.Stringer("status", s),
	)
	d.broadcast(Event{Kind: EventStatus, View: *d.view.Load(), Status: s})
}

func (d *Driver) broadcast(ev Event) {
	d.subMu.Lock()
	defer d.subMu.Unlock()
	for _, ch := range d.subs {
		select {
		case ch <- ev:
		default:
			logging.Debug("Subscriber lagging, event dropped", zap.Stringer("kind", ev.Kind))
		}
	}
}

// streamHandler forwards a connection's callbacks into the loop, tagged
// with the connection they came from.
type streamHandler struct {
	d  *Driver
	id uint64
}

func (h *streamHandler) OnData(data []byte) { h.d.post(streamData{id: h.id, data: data}) }

func (h *streamHandler) OnClose(err error) { h.d.post(streamClosed{id: h.id, err: err}) }
