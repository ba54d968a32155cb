package pipe

import (
	"context"
	"errors"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/andersea/slurry/stream"
)

// TapConfig configures one pipeline tap.
type TapConfig struct {
	// MaxBufferSize is the tap channel capacity. The default 0 gives a
	// rendezvous channel, which preserves output order for a single
	// consumer.
	MaxBufferSize int

	// Timeout bounds each individual send attempt. Zero means no
	// timeout.
	Timeout time.Duration

	// Retries is the number of extra attempts after a timed-out send.
	Retries int

	// Start enables the pipeline when the tap is opened.
	Start bool
}

// Tap transmits pipeline output to one consumer. Sends for different
// taps run as independent workers, so a stuck consumer never blocks
// its siblings; sends for the same tap are chained to keep the
// consumer's item order.
type Tap struct {
	tx      *stream.Sender[any]
	timeout time.Duration
	retries int
	closed  atomic.Bool
	prev    chan struct{} // completion of the previous send, driver-owned
}

func newTap(tx *stream.Sender[any], cfg TapConfig) *Tap {
	return &Tap{tx: tx, timeout: cfg.Timeout, retries: cfg.Retries}
}

// Closed reports whether the consumer closed its end of the tap.
func (t *Tap) Closed() bool { return t.closed.Load() }

// send delivers one item, retrying timed-out attempts after yielding
// to the scheduler. A tap whose receiver went away is marked closed
// and dropped by the output driver on its next pass; exhausted retries
// fail with ErrBusyResource.
func (t *Tap) send(ctx context.Context, item any) error {
	if t.closed.Load() {
		return nil
	}
	for attempt := 0; attempt <= t.retries; attempt++ {
		attemptCtx, cancel := ctx, context.CancelFunc(func() {})
		if t.timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, t.timeout)
		}
		err := t.tx.Send(attemptCtx, item)
		cancel()

		switch {
		case err == nil:
			return nil
		case errors.Is(err, stream.ErrBrokenResource) || errors.Is(err, stream.ErrClosedResource):
			t.closed.Store(true)
			return nil
		case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
			runtime.Gosched()
		default:
			return err
		}
	}
	return ErrBusyResource
}
