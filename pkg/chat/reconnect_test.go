package chat

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
)

// frames joins payloads into a wire-shaped SSE byte stream.
func frames(payloads ...string) string {
	var b strings.Builder
	for _, p := range payloads {
		b.WriteString("data: ")
		b.WriteString(p)
		b.WriteString("\n\n")
	}
	return b.String()
}

// streamBody serves canned bytes and then, when hold is set, blocks until
// the attempt context is cancelled — mimicking an idle long-lived response
// body that only unblocks when the request is torn down.
type streamBody struct {
	ctx  context.Context
	data *strings.Reader
	hold bool
}

func (b *streamBody) Read(p []byte) (int, error) {
	n, err := b.data.Read(p)
	if n > 0 {
		return n, nil
	}
	if errors.Is(err, io.EOF) && b.hold {
		<-b.ctx.Done()
		return 0, b.ctx.Err()
	}
	return n, err
}

func (b *streamBody) Close() error { return nil }

// openStep scripts the outcome of one Transport.Open call.
type openStep struct {
	err    error
	frames string
	hold   bool
}

// scriptedTransport plays back a fixed sequence of open outcomes, repeating
// the last step once the script is exhausted.
type scriptedTransport struct {
	mu    sync.Mutex
	steps []openStep
	opens int
}

func (t *scriptedTransport) Open(ctx context.Context, _ Request) (io.ReadCloser, error) {
	t.mu.Lock()
	i := t.opens
	t.opens++
	t.mu.Unlock()

	if i >= len(t.steps) {
		i = len(t.steps) - 1
	}
	step := t.steps[i]
	if step.err != nil {
		return nil, step.err
	}
	return &streamBody{ctx: ctx, data: strings.NewReader(step.frames), hold: step.hold}, nil
}

func (t *scriptedTransport) openCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.opens
}

// sleepRecorder captures backoff delays without actually waiting.
type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *sleepRecorder) recorded() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

const testBaseDelay = 10 * time.Millisecond

// runTurn drives one turn through a manager wired to the scripted
// transport and returns the recorder channels.
func runTurn(t *scriptedTransport, rec *sleepRecorder, opts Options, req Request) (chan Message, chan error, *Manager) {
	m := NewManager(t, opts, zap.NewNop())
	if rec != nil {
		m.sleep = rec.sleep
	}

	completed := make(chan Message, 1)
	failed := make(chan error, 1)
	cb := Callbacks{
		OnComplete: func(final Message) { completed <- final },
		OnError:    func(err error, _ Message) { failed <- err },
	}

	Expect(m.Submit(req, cb)).To(Succeed())
	return completed, failed, m
}

var _ = Describe("reconnection controller", func() {
	var (
		req  Request
		opts Options
	)

	BeforeEach(func() {
		req = Request{SessionID: "s1", Message: "plan a trip"}
		opts = Options{MaxAttempts: 3, BaseDelay: testBaseDelay, AttemptTimeout: time.Second}
	})

	It("retries transient failures with exponential backoff and then succeeds", func() {
		t := &scriptedTransport{steps: []openStep{
			{err: errors.New("connection refused")},
			{err: errors.New("connection refused")},
			{frames: frames(`{"type": "chunk", "content": "ok"}`, `{"type": "done"}`)},
		}}
		rec := &sleepRecorder{}

		completed, failed, _ := runTurn(t, rec, opts, req)

		Eventually(completed).Should(Receive())
		Consistently(failed).ShouldNot(Receive())
		Expect(t.openCount()).To(Equal(3))
		Expect(rec.recorded()).To(Equal([]time.Duration{testBaseDelay, 2 * testBaseDelay}))
	})

	It("resets the attempt counter once streaming begins", func() {
		t := &scriptedTransport{steps: []openStep{
			{err: errors.New("refused")},
			// Streams content but drops before any terminal frame.
			{frames: frames(`{"type": "chunk", "content": "par"}`)},
			{err: errors.New("refused")},
			{frames: frames(`{"type": "chunk", "content": "tial"}`, `{"type": "done"}`)},
		}}
		rec := &sleepRecorder{}

		completed, _, _ := runTurn(t, rec, opts, req)

		var final Message
		Eventually(completed).Should(Receive(&final))
		Expect(t.openCount()).To(Equal(4))
		// The mid-stream break restarts the backoff from the base delay
		// instead of continuing at 2d.
		Expect(rec.recorded()).To(Equal([]time.Duration{
			testBaseDelay,     // after the first failed open
			testBaseDelay,     // after the mid-stream break (counter was reset)
			2 * testBaseDelay, // after the following failed open
		}))
		// Buffers survive the reconnects: the turn resumed, not restarted.
		Expect(final.Text).To(Equal("partial"))
	})

	It("exhausts the attempt budget and reports the last failure", func() {
		t := &scriptedTransport{steps: []openStep{
			{err: errors.New("no route to host")},
		}}
		rec := &sleepRecorder{}

		_, failed, m := runTurn(t, rec, opts, req)

		var err error
		Eventually(failed).Should(Receive(&err))
		Expect(errors.Is(err, ErrConnectionExhausted)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring("no route to host"))
		Expect(t.openCount()).To(Equal(3))
		Expect(rec.recorded()).To(Equal([]time.Duration{testBaseDelay, 2 * testBaseDelay}))

		// The dedup key is freed after exhaustion so a retried identical
		// submission starts a fresh network attempt.
		Eventually(func() bool { return m.InFlight(req.DedupKey()) }).Should(BeFalse())
		Expect(m.Submit(req, Callbacks{})).To(Succeed())
	})

	It("does not retry a protocol-level rejection", func() {
		t := &scriptedTransport{steps: []openStep{
			{err: &ProtocolError{StatusCode: 503, Message: "agent unavailable"}},
		}}
		rec := &sleepRecorder{}

		_, failed, _ := runTurn(t, rec, opts, req)

		var err error
		Eventually(failed).Should(Receive(&err))
		var pe *ProtocolError
		Expect(errors.As(err, &pe)).To(BeTrue())
		Expect(pe.StatusCode).To(Equal(503))
		Expect(t.openCount()).To(Equal(1))
		Expect(rec.recorded()).To(BeEmpty())
	})

	It("does not consume a retry for a well-formed error frame", func() {
		t := &scriptedTransport{steps: []openStep{
			{frames: frames(`{"type": "error", "content": "model overloaded"}`)},
		}}

		_, failed, _ := runTurn(t, nil, opts, req)

		var err error
		Eventually(failed).Should(Receive(&err))
		var pe *ProtocolError
		Expect(errors.As(err, &pe)).To(BeTrue())
		Expect(pe.Message).To(Equal("model overloaded"))
		Expect(t.openCount()).To(Equal(1))
	})

	It("treats an attempt timeout as transient", func() {
		opts.AttemptTimeout = 20 * time.Millisecond
		t := &scriptedTransport{steps: []openStep{
			// Stream hangs with no terminal frame until the attempt deadline.
			{frames: frames(`{"type": "reasoning_start"}`), hold: true},
			{frames: frames(`{"type": "chunk", "content": "done now"}`, `{"type": "done"}`)},
		}}
		rec := &sleepRecorder{}

		completed, failed, _ := runTurn(t, rec, opts, req)

		Eventually(completed, 2*time.Second).Should(Receive())
		Consistently(failed).ShouldNot(Receive())
		Expect(t.openCount()).To(Equal(2))
	})

	It("treats the [DONE] sentinel as stream termination", func() {
		t := &scriptedTransport{steps: []openStep{
			{frames: frames(`{"type": "chunk", "content": "hi"}`) + "data: [DONE]\n\n"},
		}}

		completed, _, _ := runTurn(t, nil, opts, req)

		var final Message
		Eventually(completed).Should(Receive(&final))
		Expect(final.Phase).To(Equal(PhaseCompleted))
		Expect(final.Text).To(Equal("hi"))
	})

	It("drops malformed frames without aborting the stream", func() {
		t := &scriptedTransport{steps: []openStep{
			{frames: frames(
				`{"type": "chunk", "content": "a"}`,
				`{not json at all`,
				`{"type": "chunk", "content": "b"}`,
				`{"type": "done"}`,
			)},
		}}

		completed, failed, _ := runTurn(t, nil, opts, req)

		var final Message
		Eventually(completed).Should(Receive(&final))
		Consistently(failed).ShouldNot(Receive())
		Expect(final.Text).To(Equal("ab"))
	})

	It("stops without an error callback when cancelled during backoff", func() {
		block := make(chan struct{})
		t := &scriptedTransport{steps: []openStep{
			{err: errors.New("refused")},
		}}

		m := NewManager(t, opts, zap.NewNop())
		m.sleep = func(ctx context.Context, _ time.Duration) error {
			close(block)
			<-ctx.Done()
			return ctx.Err()
		}

		completed := make(chan Message, 1)
		failed := make(chan error, 1)
		Expect(m.Submit(req, Callbacks{
			OnComplete: func(final Message) { completed <- final },
			OnError:    func(err error, _ Message) { failed <- err },
		})).To(Succeed())

		Eventually(block).Should(BeClosed())
		Expect(m.Cancel(req.DedupKey())).To(BeTrue())

		var final Message
		Eventually(completed).Should(Receive(&final))
		Expect(final.Phase).To(Equal(PhaseStopped))
		Consistently(failed).ShouldNot(Receive())
		Expect(t.openCount()).To(Equal(1))
	})
})
