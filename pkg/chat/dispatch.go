package chat

import "go.uber.org/zap"

// Callbacks is the push-based subscription contract the UI layer hands to
// Manager.Submit. Every field is optional; nil callbacks are skipped.
//
// All callbacks for one turn fire from that turn's read-loop goroutine, in
// strict frame arrival order. Exactly one of OnComplete or OnError fires
// per turn, never both.
type Callbacks struct {
	OnSessionID          func(sessionID string)
	OnReasoningStart     func()
	OnReasoningChunk     func(content string)
	OnReasoningEnd       func()
	OnReasoningTimestamp func(label string)
	OnAnswerStart        func()
	OnChunk              func(content string)
	OnMetadata           func(m Metadata)
	OnHeartbeat          func(timestamp string)

	// OnError fires for the terminal failure of a turn (protocol error or
	// exhausted reconnection attempts). The finalized transcript message is
	// delivered alongside so the UI never ends up with a missing assistant
	// entry.
	OnError func(err error, final Message)

	// OnComplete fires when a turn finalizes without error, including
	// user-initiated stops (final.Phase is then PhaseStopped).
	OnComplete func(final Message)

	// OnConnectionChange observes client connection status transitions.
	OnConnectionChange func(status Status)
}

// dispatcher routes decoded frames to the aggregator and the UI callbacks.
// Routing is stateless apart from reasoningStarted, which lets a metadata
// frame synthesize the reasoning_start the backend is not required to emit.
type dispatcher struct {
	cb  Callbacks
	agg *aggregator
	log *zap.Logger

	reasoningStarted bool
}

func newDispatcher(cb Callbacks, agg *aggregator, log *zap.Logger) *dispatcher {
	return &dispatcher{cb: cb, agg: agg, log: log}
}

// dispatch routes one frame, in arrival order, with no batching. Frames
// arriving after the turn reached a terminal phase are dropped silently.
func (d *dispatcher) dispatch(f *Frame) {
	if d.agg.terminal() {
		d.log.Debug("dropping frame after terminal phase", zap.String("kind", f.Kind.String()))
		return
	}

	switch f.Kind {
	case KindSessionID:
		d.agg.setSessionID(f.SessionID)
		if d.cb.OnSessionID != nil {
			d.cb.OnSessionID(f.SessionID)
		}

	case KindReasoningStart:
		d.startReasoning()

	case KindReasoningChunk:
		d.startReasoning()
		d.agg.appendReasoning(f.Content)
		if d.cb.OnReasoningChunk != nil {
			d.cb.OnReasoningChunk(f.Content)
		}

	case KindReasoningEnd:
		d.agg.endReasoning()
		if d.cb.OnReasoningEnd != nil {
			d.cb.OnReasoningEnd()
		}

	case KindReasoningTimestamp:
		d.agg.setTimestampLabel(f.Timestamp)
		if d.cb.OnReasoningTimestamp != nil {
			d.cb.OnReasoningTimestamp(f.Timestamp)
		}

	case KindAnswerStart:
		d.agg.startAnswering()
		if d.cb.OnAnswerStart != nil {
			d.cb.OnAnswerStart()
		}

	case KindAnswerChunk:
		d.agg.appendAnswer(f.Content)
		if d.cb.OnChunk != nil {
			d.cb.OnChunk(f.Content)
		}

	case KindMetadata:
		// The producer is not required to emit explicit reasoning markers;
		// metadata announcing reasoning content implies the start.
		if f.Metadata != nil && f.Metadata.HasReasoning {
			d.startReasoning()
		}
		d.agg.setMetadata(f.Metadata)
		if d.cb.OnMetadata != nil && f.Metadata != nil {
			d.cb.OnMetadata(*f.Metadata)
		}

	case KindHeartbeat:
		if d.cb.OnHeartbeat != nil {
			d.cb.OnHeartbeat(f.Timestamp)
		}

	case KindError:
		final := d.agg.finalize(PhaseErrored, &ProtocolError{Message: f.Content})
		if d.cb.OnError != nil {
			d.cb.OnError(&ProtocolError{Message: f.Content}, final)
		}

	case KindDone:
		d.agg.setStats(f.Stats)
		final := d.agg.finalize(PhaseCompleted, nil)
		if d.cb.OnComplete != nil {
			d.cb.OnComplete(final)
		}

	default:
		d.log.Debug("ignoring frame of unknown kind")
	}
}

// startReasoning transitions into the reasoning phase exactly once per
// turn, whether triggered by an explicit reasoning_start, a first
// reasoning_chunk, or metadata implying reasoning content.
func (d *dispatcher) startReasoning() {
	if d.reasoningStarted {
		return
	}
	d.reasoningStarted = true
	d.agg.startReasoning()
	if d.cb.OnReasoningStart != nil {
		d.cb.OnReasoningStart()
	}
}
