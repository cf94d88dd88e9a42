package chat

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	defaultMaxAttempts    = 3
	defaultBaseDelay      = 1 * time.Second
	defaultAttemptTimeout = 60 * time.Second
)

// Options tunes the stream client. The zero value picks the defaults.
type Options struct {
	// MaxAttempts is the connection attempt budget per run of transient
	// failures (default 3).
	MaxAttempts int

	// BaseDelay is the backoff before the first reconnection attempt;
	// subsequent delays double (default 1s).
	BaseDelay time.Duration

	// AttemptTimeout is the absolute deadline of a single connection
	// attempt, independent of the retry policy. Exceeding it cancels only
	// that attempt and counts as a transient failure (default 60s).
	AttemptTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = defaultMaxAttempts
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = defaultBaseDelay
	}
	if o.AttemptTimeout <= 0 {
		o.AttemptTimeout = defaultAttemptTimeout
	}
	return o
}

// Manager owns the lifecycle of outstanding turn requests: the dedup
// registry, per-turn cancellation handles, attempt timeouts, and the
// client-wide connection status. It is the only writer of that shared
// state; UI code reads the status through Status() and otherwise interacts
// via Submit/Cancel/CancelAll.
type Manager struct {
	transport Transport
	opts      Options
	log       *zap.Logger

	// sleep is the controller's backoff wait, swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error

	mu       sync.Mutex
	inflight map[string]context.CancelFunc
	status   Status

	// wg tracks live turn goroutines so teardown can drain them.
	wg sync.WaitGroup
}

// NewManager creates a stream session manager over the given transport.
func NewManager(transport Transport, opts Options, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		transport: transport,
		opts:      opts.withDefaults(),
		log:       log,
		sleep:     sleepContext,
		inflight:  make(map[string]context.CancelFunc),
		status:    StatusIdle,
	}
}

// Submit starts streaming one turn. It returns ErrDuplicateRequest without
// any network activity when a request with the same dedup key is already in
// flight; duplicates are rejected, never queued or replaced.
//
// All callbacks fire from the turn's own goroutine in frame arrival order.
// The dedup key is freed on any terminal outcome, so a logically identical
// future request is accepted again.
func (m *Manager) Submit(req Request, cb Callbacks) error {
	key := req.DedupKey()

	m.mu.Lock()
	if _, exists := m.inflight[key]; exists {
		m.mu.Unlock()
		m.log.Debug("rejecting duplicate turn", zap.String("key", key))
		return ErrDuplicateRequest
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.inflight[key] = cancel
	m.mu.Unlock()

	agg := newAggregator(req)
	d := newDispatcher(cb, agg, m.log)
	ctrl := &controller{
		transport:      m.transport,
		maxAttempts:    m.opts.MaxAttempts,
		baseDelay:      m.opts.BaseDelay,
		attemptTimeout: m.opts.AttemptTimeout,
		log:            m.log,
		status:         func(s Status) { m.setStatus(s, cb) },
		sleep:          m.sleep,
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer m.release(key)
		ctrl.run(ctx, req, d)
	}()

	return nil
}

// Cancel signals cancellation of the in-flight turn for key. It returns
// true when a live turn existed; the turn's read loop observes the signal
// within one iteration and finalizes as Stopped.
func (m *Manager) Cancel(key string) bool {
	m.mu.Lock()
	cancel, ok := m.inflight[key]
	m.mu.Unlock()

	if !ok {
		return false
	}
	cancel()
	return true
}

// CancelAll signals cancellation on every registered turn and waits for
// their goroutines to drain. Meant for teardown.
func (m *Manager) CancelAll() {
	m.mu.Lock()
	for _, cancel := range m.inflight {
		cancel()
	}
	m.mu.Unlock()

	m.wg.Wait()
}

// Status returns the current connection status.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// InFlight reports whether a turn is currently registered for key.
func (m *Manager) InFlight(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.inflight[key]
	return ok
}

// release retires a turn: its cancel handle is dropped and its dedup key
// freed for future submissions.
func (m *Manager) release(key string) {
	m.mu.Lock()
	if cancel, ok := m.inflight[key]; ok {
		cancel()
		delete(m.inflight, key)
	}
	m.mu.Unlock()
}

// setStatus records a status transition and notifies the turn's observer.
func (m *Manager) setStatus(s Status, cb Callbacks) {
	m.mu.Lock()
	changed := m.status != s
	m.status = s
	m.mu.Unlock()

	if changed && cb.OnConnectionChange != nil {
		cb.OnConnectionChange(s)
	}
}
