package chat

import (
	"strings"
	"time"
)

// stoppedMarker is appended to the answer text when the user stops
// generation mid-turn.
const stoppedMarker = "\n\n[generation stopped]"

// fallbackErrorText is the user-facing answer text substituted when a turn
// errors before any answer content arrived.
const fallbackErrorText = "Sorry, something went wrong while generating a response"

// aggregator folds dispatched frames into the state of one conversation
// turn and builds the finalized transcript message at turn end.
//
// An aggregator is owned by exactly one turn's read loop; its state is never
// touched from another goroutine, so it needs no locking. Buffers survive
// reconnection attempts: a reconnect resumes the same logical turn.
type aggregator struct {
	sessionID string
	phase     Phase

	reasoning      []string
	answer         []string
	timestampLabel string
	metadata       *Metadata
	stats          map[string]any

	startedAt time.Time
}

func newAggregator(req Request) *aggregator {
	return &aggregator{
		sessionID: req.SessionID,
		phase:     PhaseConnecting,
		startedAt: time.Now(),
	}
}

// terminal reports whether the turn already reached a final phase.
func (a *aggregator) terminal() bool {
	return a.phase.Terminal()
}

func (a *aggregator) setSessionID(id string) {
	if id != "" {
		a.sessionID = id
	}
}

func (a *aggregator) startReasoning() {
	if a.phase == PhaseConnecting {
		a.phase = PhaseReasoning
	}
}

func (a *aggregator) appendReasoning(content string) {
	a.startReasoning()
	a.reasoning = append(a.reasoning, content)
}

func (a *aggregator) endReasoning() {
	if a.phase == PhaseReasoning {
		a.phase = PhaseAnswering
	}
}

func (a *aggregator) setTimestampLabel(label string) {
	a.timestampLabel = label
}

func (a *aggregator) startAnswering() {
	if !a.phase.Terminal() {
		a.phase = PhaseAnswering
	}
}

func (a *aggregator) appendAnswer(content string) {
	a.startAnswering()
	a.answer = append(a.answer, content)
}

func (a *aggregator) setMetadata(m *Metadata) {
	a.metadata = m
}

func (a *aggregator) setStats(stats map[string]any) {
	if stats != nil {
		a.stats = stats
	}
}

// finalize moves the turn into the given terminal phase and builds its
// transcript message. cause carries the failure for PhaseErrored terminals
// and is ignored otherwise. finalize is idempotent in the sense that the
// caller must check terminal() first; phases never transition out of a
// terminal state.
func (a *aggregator) finalize(phase Phase, cause error) Message {
	a.phase = phase

	text := strings.Join(a.answer, "")

	switch phase {
	case PhaseStopped:
		text += stoppedMarker
	case PhaseErrored:
		if text == "" {
			text = fallbackErrorText
			if cause != nil {
				text += ": " + cause.Error()
			}
		}
	}

	reasoning := strings.Join(a.reasoning, "")
	if a.timestampLabel != "" && reasoning != "" {
		reasoning = a.timestampLabel + "\n" + reasoning
	}

	return Message{
		SessionID: a.sessionID,
		Text:      text,
		Reasoning: reasoning,
		Phase:     phase,
		Metadata:  a.metadata,
		Stats:     a.stats,
		Elapsed:   time.Since(a.startedAt),
	}
}
