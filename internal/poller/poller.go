package poller

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/intmatrix/internal/logging"
	"github.com/muurk/intmatrix/internal/matrix"
	"github.com/muurk/intmatrix/internal/protocol"
)

// DefaultTimeout bounds a single poll.
const DefaultTimeout = 10 * time.Second

// Fetcher performs one snapshot request.
type Fetcher interface {
	FetchSnapshot(ctx context.Context, m protocol.Model) (*matrix.Snapshot, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, m protocol.Model) (*matrix.Snapshot, error)

// FetchSnapshot calls f.
func (f FetcherFunc) FetchSnapshot(ctx context.Context, m protocol.Model) (*matrix.Snapshot, error) {
	return f(ctx, m)
}

// Result is the outcome of one poll, tagged with the generation it was
// issued under.
type Result struct {
	Generation uint64
	Model      protocol.Model
	Snapshot   *matrix.Snapshot
	Err        error
	Duration   time.Duration
}

// Stats counts poll activity.
type Stats struct {
	Issued    uint64
	Coalesced uint64
	Stale     uint64
}

// Poller keeps at most one snapshot request in flight.
//
// Trigger and Accept must be called from the same goroutine, the one that
// owns the matrix.Store. The request itself runs on its own goroutine and
// hands its Result to the deliver callback.
type Poller struct {
	fetcher Fetcher
	timeout time.Duration

	gen      uint64
	inFlight bool
	cancel   context.CancelFunc
	stats    Stats
}

// New returns a Poller. A zero timeout means DefaultTimeout.
func New(f Fetcher, timeout time.Duration) *Poller {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Poller{fetcher: f, timeout: timeout}
}

// SetTimeout changes the per-request timeout for future polls. A zero
// timeout means DefaultTimeout.
func (p *Poller) SetTimeout(timeout time.Duration) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	p.timeout = timeout
}

// Trigger issues a poll for model m unless one is already in flight, in
// which case the trigger is coalesced into it and false is returned.
func (p *Poller) Trigger(ctx context.Context, m protocol.Model, reason string, deliver func(Result)) bool {
	if p.inFlight {
		p.stats.Coalesced++
		logging.Debug("Snapshot poll coalesced",
			zap.String("reason", reason),
			zap.Uint64("generation", p.gen),
		)
		return false
	}

	p.gen++
	p.inFlight = true
	p.stats.Issued++

	reqCtx, cancel := context.WithTimeout(ctx, p.timeout)
	p.cancel = cancel
	gen := p.gen

	logging.Debug("Snapshot poll issued",
		zap.String("reason", reason),
		zap.Uint64("generation", gen),
		zap.Stringer("model", m),
	)

	go func() {
		defer cancel()
		start := time.Now()
		snap, err := p.fetcher.FetchSnapshot(reqCtx, m)
		deliver(Result{
			Generation: gen,
			Model:      m,
			Snapshot:   snap,
			Err:        err,
			Duration:   time.Since(start),
		})
	}()

	return true
}

// Accept reports whether r answers the most recently issued request. An
// accepted result ends the in-flight period; a stale one is counted and
// should be dropped.
func (p *Poller) Accept(r Result) bool {
	if r.Generation != p.gen {
		p.stats.Stale++
		logging.Debug("Stale snapshot discarded",
			zap.Uint64("generation", r.Generation),
			zap.Uint64("current", p.gen),
		)
		return false
	}
	p.inFlight = false
	p.cancel = nil
	return true
}

// Cancel abandons the in-flight request, if any, so the next Trigger issues
// a new one. Replies to anything issued before Cancel are stale from here
// on. Used on reconnect and reconfiguration.
func (p *Poller) Cancel() {
	p.gen++
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.inFlight = false
}

// InFlight reports whether a request is outstanding.
func (p *Poller) InFlight() bool { return p.inFlight }

// Generation returns the current tag. Only results carrying it are accepted.
func (p *Poller) Generation() uint64 { return p.gen }

// Stats returns poll counters.
func (p *Poller) Stats() Stats { return p.stats }
