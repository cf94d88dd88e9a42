package chat

import (
	"context"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/atlaschat/atlas/pkg/sse"
)

// controller supervises the connection attempts of one turn to a terminal
// outcome: Connecting → (Streaming | failed), failed → (backoff →
// Connecting) until the attempt budget is spent.
type controller struct {
	transport      Transport
	maxAttempts    int
	baseDelay      time.Duration
	attemptTimeout time.Duration
	log            *zap.Logger

	// status publishes connection status transitions to the manager.
	status func(Status)

	// sleep waits out a backoff delay, returning early with the context's
	// error on cancellation. Swapped out in tests to observe delays.
	sleep func(ctx context.Context, d time.Duration) error
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// delay returns the backoff before retry number k (1-based):
// baseDelay × 2^(k-1).
func (c *controller) delay(k int) time.Duration {
	return c.baseDelay << (k - 1)
}

// run drives the turn until a terminal outcome and is responsible for the
// turn's one terminal callback. attempt counts consecutive transient
// failures; reaching the streaming state resets it so a later failure
// restarts the backoff from the base delay.
func (c *controller) run(ctx context.Context, req Request, d *dispatcher) {
	attempt := 0
	var lastErr error

	for {
		// Cancellation checkpoint before opening and before every backoff.
		if ctx.Err() != nil {
			c.stop(d)
			return
		}

		if attempt == 0 {
			c.status(StatusConnecting)
		} else {
			c.status(StatusReconnecting)
			delay := c.delay(attempt)
			c.log.Debug("backing off before reconnect",
				zap.Int("failures", attempt),
				zap.Duration("delay", delay),
			)
			if err := c.sleep(ctx, delay); err != nil {
				c.stop(d)
				return
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, c.attemptTimeout)
		body, err := c.transport.Open(attemptCtx, req)
		if err != nil {
			cancel()
			if ctx.Err() != nil {
				c.stop(d)
				return
			}
			if !retryable(err) {
				c.fail(d, err)
				return
			}
			lastErr = err
			attempt++
			c.log.Debug("stream open failed",
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			if attempt >= c.maxAttempts {
				c.exhaust(d, lastErr)
				return
			}
			continue
		}

		c.status(StatusStreaming)
		attempt = 0

		readErr := c.consume(attemptCtx, body, d)
		cancel()
		_ = body.Close()

		switch {
		case d.agg.terminal():
			// The terminal frame already dispatched its callback.
			if d.agg.phase == PhaseErrored {
				c.status(StatusError)
			} else {
				c.status(StatusIdle)
			}
			return

		case ctx.Err() != nil:
			c.stop(d)
			return

		default:
			// The stream broke mid-turn: read error, attempt timeout, or
			// the source ended without a terminal frame. All transient.
			lastErr = readErr
			if lastErr == nil {
				lastErr = io.ErrUnexpectedEOF
			}
			attempt++
			c.log.Debug("stream interrupted mid-turn",
				zap.Int("attempt", attempt),
				zap.Error(lastErr),
			)
			if attempt >= c.maxAttempts {
				c.exhaust(d, lastErr)
				return
			}
		}
	}
}

// consume runs the read loop of one connection attempt. It returns nil when
// the source is exhausted or a terminal frame was dispatched, and the read
// error otherwise. Cancellation is polled at the top of every iteration.
func (c *controller) consume(ctx context.Context, body io.Reader, d *dispatcher) error {
	r := sse.NewReader(body)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		ev, err := r.Next()
		if err != nil {
			return err
		}
		if ev == nil {
			return nil
		}

		if IsTerminationSentinel(ev.Data) {
			d.dispatch(&Frame{Kind: KindDone})
			return nil
		}

		f, err := DecodeFrame(ev.Data)
		if err != nil {
			// One malformed frame must not abort a healthy stream.
			c.log.Debug("dropping malformed frame", zap.Error(err))
			continue
		}

		d.dispatch(f)
		if d.agg.terminal() {
			return nil
		}
	}
}

// stop finalizes the turn as user-stopped. Cancellation is a normal exit
// path, not an error: OnError is never invoked here.
func (c *controller) stop(d *dispatcher) {
	c.status(StatusDisconnected)
	if d.agg.terminal() {
		return
	}
	final := d.agg.finalize(PhaseStopped, nil)
	if d.cb.OnComplete != nil {
		d.cb.OnComplete(final)
	}
}

// fail finalizes the turn with a terminal protocol-level failure.
func (c *controller) fail(d *dispatcher, err error) {
	c.status(StatusError)
	c.log.Debug("stream failed with protocol error", zap.Error(err))
	final := d.agg.finalize(PhaseErrored, err)
	if d.cb.OnError != nil {
		d.cb.OnError(err, final)
	}
}

// exhaust finalizes the turn after the retry budget is spent.
func (c *controller) exhaust(d *dispatcher, lastErr error) {
	c.status(StatusError)
	err := &exhaustedError{attempts: c.maxAttempts, last: lastErr}
	c.log.Debug("reconnection attempts exhausted", zap.Error(lastErr))
	final := d.agg.finalize(PhaseErrored, err)
	if d.cb.OnError != nil {
		d.cb.OnError(err, final)
	}
}
