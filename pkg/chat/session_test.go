package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
)

var _ = Describe("Manager", func() {
	var (
		req  Request
		opts Options
	)

	BeforeEach(func() {
		req = Request{SessionID: "s1", Message: "三日游怎么安排"}
		opts = Options{MaxAttempts: 3, BaseDelay: testBaseDelay, AttemptTimeout: time.Second}
	})

	Describe("Submit", func() {
		It("rejects a duplicate submission without opening a connection", func() {
			t := &scriptedTransport{steps: []openStep{
				{frames: frames(`{"type": "reasoning_start"}`), hold: true},
			}}
			m := NewManager(t, opts, zap.NewNop())

			Expect(m.Submit(req, Callbacks{})).To(Succeed())
			Eventually(t.openCount).Should(Equal(1))

			err := m.Submit(req, Callbacks{})
			Expect(errors.Is(err, ErrDuplicateRequest)).To(BeTrue())
			Expect(t.openCount()).To(Equal(1))

			m.CancelAll()
		})

		It("accepts requests with distinct dedup keys concurrently", func() {
			t := &scriptedTransport{steps: []openStep{
				{frames: frames(`{"type": "reasoning_start"}`), hold: true},
			}}
			m := NewManager(t, opts, zap.NewNop())

			Expect(m.Submit(req, Callbacks{})).To(Succeed())
			Expect(m.Submit(Request{SessionID: "s2", Message: req.Message}, Callbacks{})).To(Succeed())
			Eventually(t.openCount).Should(Equal(2))

			m.CancelAll()
		})

		It("frees the dedup key after normal completion", func() {
			t := &scriptedTransport{steps: []openStep{
				{frames: frames(`{"type": "chunk", "content": "ok"}`, `{"type": "done"}`)},
			}}
			m := NewManager(t, opts, zap.NewNop())

			completed := make(chan Message, 1)
			Expect(m.Submit(req, Callbacks{
				OnComplete: func(final Message) { completed <- final },
			})).To(Succeed())
			Eventually(completed).Should(Receive())
			Eventually(func() bool { return m.InFlight(req.DedupKey()) }).Should(BeFalse())

			Expect(m.Submit(req, Callbacks{})).To(Succeed())
		})
	})

	Describe("Cancel", func() {
		It("returns false when no turn is in flight for the key", func() {
			m := NewManager(&scriptedTransport{steps: []openStep{{}}}, opts, zap.NewNop())
			Expect(m.Cancel("s1:nothing")).To(BeFalse())
		})

		It("yields exactly one terminal callback, Stopped, never Completed as well", func() {
			t := &scriptedTransport{steps: []openStep{
				{frames: frames(`{"type": "answer_start"}`, `{"type": "chunk", "content": "par"}`), hold: true},
			}}
			m := NewManager(t, opts, zap.NewNop())

			var terminal atomic.Int32
			completed := make(chan Message, 2)
			Expect(m.Submit(req, Callbacks{
				OnComplete: func(final Message) {
					terminal.Add(1)
					completed <- final
				},
				OnError: func(error, Message) { terminal.Add(1) },
			})).To(Succeed())

			// Let some content stream before stopping.
			Eventually(t.openCount).Should(Equal(1))
			Eventually(func() bool { return m.Status() == StatusStreaming }).Should(BeTrue())

			Expect(m.Cancel(req.DedupKey())).To(BeTrue())

			var final Message
			Eventually(completed).Should(Receive(&final))
			Expect(final.Phase).To(Equal(PhaseStopped))
			Expect(final.Text).To(HaveSuffix(stoppedMarker))
			Consistently(terminal.Load).Should(Equal(int32(1)))
		})
	})

	Describe("CancelAll", func() {
		It("stops every registered turn and clears the registry", func() {
			t := &scriptedTransport{steps: []openStep{
				{frames: frames(`{"type": "reasoning_start"}`), hold: true},
			}}
			m := NewManager(t, opts, zap.NewNop())

			var stopped atomic.Int32
			cb := Callbacks{
				OnComplete: func(final Message) {
					if final.Phase == PhaseStopped {
						stopped.Add(1)
					}
				},
			}
			Expect(m.Submit(Request{SessionID: "a", Message: "x"}, cb)).To(Succeed())
			Expect(m.Submit(Request{SessionID: "b", Message: "x"}, cb)).To(Succeed())
			Eventually(t.openCount).Should(Equal(2))

			m.CancelAll()

			Expect(stopped.Load()).To(Equal(int32(2)))
			Expect(m.InFlight("a:x")).To(BeFalse())
			Expect(m.InFlight("b:x")).To(BeFalse())
		})
	})

	Describe("connection status", func() {
		It("observes the transitions of a clean turn", func() {
			t := &scriptedTransport{steps: []openStep{
				{frames: frames(`{"type": "chunk", "content": "ok"}`, `{"type": "done"}`)},
			}}
			m := NewManager(t, opts, zap.NewNop())

			var mu sync.Mutex
			var seen []Status
			completed := make(chan Message, 1)
			Expect(m.Submit(req, Callbacks{
				OnConnectionChange: func(s Status) {
					mu.Lock()
					seen = append(seen, s)
					mu.Unlock()
				},
				OnComplete: func(final Message) { completed <- final },
			})).To(Succeed())

			Eventually(completed).Should(Receive())
			Eventually(func() []Status {
				mu.Lock()
				defer mu.Unlock()
				return append([]Status(nil), seen...)
			}).Should(Equal([]Status{StatusConnecting, StatusStreaming, StatusIdle}))
		})

		It("surfaces reconnecting as a transient status only", func() {
			t := &scriptedTransport{steps: []openStep{
				{err: errors.New("refused")},
				{frames: frames(`{"type": "done"}`)},
			}}
			m := NewManager(t, opts, zap.NewNop())

			var mu sync.Mutex
			var seen []Status
			completed := make(chan Message, 1)
			failed := make(chan error, 1)
			Expect(m.Submit(req, Callbacks{
				OnConnectionChange: func(s Status) {
					mu.Lock()
					seen = append(seen, s)
					mu.Unlock()
				},
				OnComplete: func(final Message) { completed <- final },
				OnError:    func(err error, _ Message) { failed <- err },
			})).To(Succeed())

			Eventually(completed).Should(Receive())
			Consistently(failed).ShouldNot(Receive())
			Eventually(func() []Status {
				mu.Lock()
				defer mu.Unlock()
				return append([]Status(nil), seen...)
			}).Should(Equal([]Status{
				StatusConnecting, StatusReconnecting, StatusStreaming, StatusIdle,
			}))
		})
	})
})

var _ = Describe("HTTPTransport end to end", func() {
	// sseHandler streams the scripted payloads as a text/event-stream
	// response, flushing after every frame.
	sseHandler := func(payloads ...string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			Expect(r.Method).To(Equal(http.MethodPost))
			Expect(r.URL.Path).To(Equal("/api/chat/stream"))

			var body streamRequestBody
			Expect(json.NewDecoder(r.Body).Decode(&body)).To(Succeed())
			Expect(body.Message).NotTo(BeEmpty())

			w.Header().Set("Content-Type", "text/event-stream")
			w.Header().Set("Cache-Control", "no-cache")
			flusher, ok := w.(http.Flusher)
			Expect(ok).To(BeTrue())

			for _, p := range payloads {
				fmt.Fprintf(w, "data: %s\n\n", p)
				flusher.Flush()
			}
		}
	}

	It("reconstructs the full transcript from a reasoning stream", func() {
		srv := httptest.NewServer(sseHandler(
			`{"type": "session_id", "session_id": "srv-1"}`,
			`{"type": "reasoning_start"}`,
			`{"type": "reasoning_chunk", "content": "思考"}`,
			`{"type": "reasoning_chunk", "content": "中"}`,
			`{"type": "reasoning_end"}`,
			`{"type": "answer_start"}`,
			`{"type": "chunk", "content": "你好"}`,
			`{"type": "chunk", "content": "！"}`,
			`{"type": "done"}`,
		))
		defer srv.Close()

		m := NewManager(NewHTTPTransport(srv.URL), Options{}, zap.NewNop())
		completed := make(chan Message, 1)
		Expect(m.Submit(Request{SessionID: "s1", Message: "hi", Mode: ModeReact}, Callbacks{
			OnComplete: func(final Message) { completed <- final },
		})).To(Succeed())

		var final Message
		Eventually(completed).Should(Receive(&final))
		Expect(final.Phase).To(Equal(PhaseCompleted))
		Expect(final.Reasoning).To(Equal("思考中"))
		Expect(final.Text).To(Equal("你好！"))
		Expect(final.SessionID).To(Equal("srv-1"))
	})

	It("accepts legacy frames identically to typed ones", func() {
		srv := httptest.NewServer(sseHandler(
			`{"chunk": "X"}`,
			`{"type": "chunk", "content": "Y"}`,
			`{"type": "done"}`,
		))
		defer srv.Close()

		m := NewManager(NewHTTPTransport(srv.URL), Options{}, zap.NewNop())
		completed := make(chan Message, 1)
		Expect(m.Submit(Request{SessionID: "s1", Message: "hi"}, Callbacks{
			OnComplete: func(final Message) { completed <- final },
		})).To(Succeed())

		var final Message
		Eventually(completed).Should(Receive(&final))
		Expect(final.Text).To(Equal("XY"))
	})

	It("surfaces a non-success response as a terminal protocol error", func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprint(w, `{"detail": "agent unavailable"}`)
		}))
		defer srv.Close()

		m := NewManager(NewHTTPTransport(srv.URL), Options{BaseDelay: time.Millisecond}, zap.NewNop())
		failed := make(chan error, 1)
		finals := make(chan Message, 1)
		Expect(m.Submit(Request{SessionID: "s1", Message: "hi"}, Callbacks{
			OnError: func(err error, final Message) {
				failed <- err
				finals <- final
			},
		})).To(Succeed())

		var err error
		Eventually(failed).Should(Receive(&err))
		var pe *ProtocolError
		Expect(errors.As(err, &pe)).To(BeTrue())
		Expect(pe.StatusCode).To(Equal(http.StatusServiceUnavailable))
		Expect(pe.Message).To(ContainSubstring("agent unavailable"))

		// The errored turn still carries a finalized transcript entry.
		var final Message
		Eventually(finals).Should(Receive(&final))
		Expect(final.Phase).To(Equal(PhaseErrored))
		Expect(final.Text).To(ContainSubstring(fallbackErrorText))
	})
})
