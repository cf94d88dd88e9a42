package chat

import (
	"errors"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
)

// recordingCallbacks tags every invocation in order so dispatch ordering is
// directly observable.
type recordingCallbacks struct {
	calls  []string
	finals []Message
	errs   []error
}

func (r *recordingCallbacks) callbacks() Callbacks {
	return Callbacks{
		OnSessionID:          func(id string) { r.calls = append(r.calls, "session:"+id) },
		OnReasoningStart:     func() { r.calls = append(r.calls, "reasoning_start") },
		OnReasoningChunk:     func(c string) { r.calls = append(r.calls, "reasoning:"+c) },
		OnReasoningEnd:       func() { r.calls = append(r.calls, "reasoning_end") },
		OnReasoningTimestamp: func(ts string) { r.calls = append(r.calls, "timestamp:"+ts) },
		OnAnswerStart:        func() { r.calls = append(r.calls, "answer_start") },
		OnChunk:              func(c string) { r.calls = append(r.calls, "chunk:"+c) },
		OnMetadata:           func(m Metadata) { r.calls = append(r.calls, fmt.Sprintf("metadata:%d", m.TotalSteps)) },
		OnHeartbeat:          func(ts string) { r.calls = append(r.calls, "heartbeat") },
		OnError: func(err error, final Message) {
			r.calls = append(r.calls, "error")
			r.errs = append(r.errs, err)
			r.finals = append(r.finals, final)
		},
		OnComplete: func(final Message) {
			r.calls = append(r.calls, "complete")
			r.finals = append(r.finals, final)
		},
	}
}

func newTestDispatcher(rec *recordingCallbacks) *dispatcher {
	agg := newAggregator(Request{SessionID: "s1", Message: "hi"})
	return newDispatcher(rec.callbacks(), agg, zap.NewNop())
}

var _ = Describe("dispatcher", func() {
	var (
		rec *recordingCallbacks
		d   *dispatcher
	)

	BeforeEach(func() {
		rec = &recordingCallbacks{}
		d = newTestDispatcher(rec)
	})

	It("invokes callbacks in exact arrival order", func() {
		d.dispatch(&Frame{Kind: KindSessionID, SessionID: "s1"})
		d.dispatch(&Frame{Kind: KindReasoningStart})
		d.dispatch(&Frame{Kind: KindReasoningChunk, Content: "a"})
		d.dispatch(&Frame{Kind: KindReasoningChunk, Content: "b"})
		d.dispatch(&Frame{Kind: KindReasoningEnd})
		d.dispatch(&Frame{Kind: KindAnswerStart})
		d.dispatch(&Frame{Kind: KindAnswerChunk, Content: "c"})
		d.dispatch(&Frame{Kind: KindDone})

		Expect(rec.calls).To(Equal([]string{
			"session:s1",
			"reasoning_start",
			"reasoning:a",
			"reasoning:b",
			"reasoning_end",
			"answer_start",
			"chunk:c",
			"complete",
		}))
	})

	It("synthesizes reasoning_start from metadata announcing reasoning", func() {
		d.dispatch(&Frame{Kind: KindMetadata, Metadata: &Metadata{TotalSteps: 2, HasReasoning: true}})

		Expect(rec.calls).To(Equal([]string{"reasoning_start", "metadata:2"}))
	})

	It("does not synthesize a second reasoning_start", func() {
		d.dispatch(&Frame{Kind: KindReasoningStart})
		d.dispatch(&Frame{Kind: KindMetadata, Metadata: &Metadata{HasReasoning: true}})
		d.dispatch(&Frame{Kind: KindReasoningChunk, Content: "x"})

		Expect(rec.calls).To(Equal([]string{"reasoning_start", "metadata:0", "reasoning:x"}))
	})

	It("does not synthesize reasoning_start from metadata without reasoning", func() {
		d.dispatch(&Frame{Kind: KindMetadata, Metadata: &Metadata{TotalSteps: 1}})

		Expect(rec.calls).To(Equal([]string{"metadata:1"}))
	})

	It("forwards heartbeats without touching turn state", func() {
		d.dispatch(&Frame{Kind: KindHeartbeat, Timestamp: "t"})

		Expect(rec.calls).To(Equal([]string{"heartbeat"}))
		Expect(d.agg.phase).To(Equal(PhaseConnecting))
	})

	It("ignores frames of unknown kind", func() {
		d.dispatch(&Frame{Kind: KindUnknown})

		Expect(rec.calls).To(BeEmpty())
	})

	It("ignores frames arriving after a terminal phase", func() {
		d.dispatch(&Frame{Kind: KindAnswerChunk, Content: "hi"})
		d.dispatch(&Frame{Kind: KindDone})
		callsAtTerminal := len(rec.calls)

		d.dispatch(&Frame{Kind: KindAnswerChunk, Content: "late"})
		d.dispatch(&Frame{Kind: KindDone})
		d.dispatch(&Frame{Kind: KindError, Content: "late error"})

		Expect(rec.calls).To(HaveLen(callsAtTerminal))
		Expect(d.agg.answer).To(Equal([]string{"hi"}))
	})

	It("finalizes with an error callback on an error frame", func() {
		d.dispatch(&Frame{Kind: KindError, Content: "upstream failed"})

		Expect(rec.calls).To(Equal([]string{"error"}))
		Expect(rec.errs).To(HaveLen(1))
		var pe *ProtocolError
		Expect(errors.As(rec.errs[0], &pe)).To(BeTrue())
		Expect(pe.Message).To(Equal("upstream failed"))
		Expect(rec.finals).To(HaveLen(1))
		Expect(rec.finals[0].Phase).To(Equal(PhaseErrored))
	})
})
