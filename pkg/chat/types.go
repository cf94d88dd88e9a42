// Package chat implements the streaming session protocol client for the
// atlas assistant backend. It opens one SSE stream per conversation turn,
// parses and dispatches the typed event frames, supervises reconnection
// with exponential backoff, deduplicates concurrent submissions for the
// same logical turn, and folds the partial events into a single finalized
// transcript message.
package chat

import "time"

// Mode selects the generation strategy the backend uses for a turn.
type Mode string

const (
	// ModeDirect answers without an explicit reasoning phase.
	ModeDirect Mode = "direct"

	// ModeReact streams a reactive reasoning phase before the answer.
	ModeReact Mode = "react"

	// ModePlan streams a planned, multi-step execution trace before the answer.
	ModePlan Mode = "plan"
)

// dedupPrefixLen is the number of leading message runes mixed into a
// request's dedup key. Long prompts differing only past this prefix are
// treated as the same logical turn while one of them is in flight.
const dedupPrefixLen = 32

// Request describes one conversation turn submission. It is immutable once
// handed to Manager.Submit.
type Request struct {
	// SessionID identifies the conversation on the backend. Must be
	// allocated (via backend.CreateSession) before submitting.
	SessionID string

	// Message is the user's prompt text.
	Message string

	// Mode is the optional generation mode. Empty means backend default.
	Mode Mode
}

// DedupKey derives the deterministic in-flight identity for this request:
// the session ID plus the first dedupPrefixLen runes of the message. At most
// one request per key may be in flight at any time.
func (r Request) DedupKey() string {
	msg := []rune(r.Message)
	if len(msg) > dedupPrefixLen {
		msg = msg[:dedupPrefixLen]
	}
	return r.SessionID + ":" + string(msg)
}

// Metadata carries the generation statistics the backend attaches to a turn.
type Metadata struct {
	TotalSteps      int      `json:"total_steps"`
	ToolsUsed       []string `json:"tools_used"`
	HasReasoning    bool     `json:"has_reasoning"`
	ReasoningLength int      `json:"reasoning_length"`
	AnswerLength    int      `json:"answer_length"`
}

// Phase is the lifecycle position of one conversation turn.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseConnecting
	PhaseReasoning
	PhaseAnswering
	PhaseCompleted
	PhaseErrored
	PhaseStopped
)

// Terminal reports whether the phase is final. No event may mutate a turn's
// buffers after a terminal phase is reached; late frames are ignored.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseErrored || p == PhaseStopped
}

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseConnecting:
		return "connecting"
	case PhaseReasoning:
		return "reasoning"
	case PhaseAnswering:
		return "answering"
	case PhaseCompleted:
		return "completed"
	case PhaseErrored:
		return "errored"
	case PhaseStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Status is the client-wide connection status, surfaced to the UI through
// OnConnectionChange and Manager.Status.
type Status int

const (
	StatusIdle Status = iota
	StatusConnecting
	StatusStreaming
	StatusReconnecting
	StatusError
	StatusDisconnected
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusConnecting:
		return "connecting"
	case StatusStreaming:
		return "streaming"
	case StatusReconnecting:
		return "reconnecting"
	case StatusError:
		return "error"
	case StatusDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Message is the finalized transcript entry a turn produces on terminal
// transition. Exactly one Message is emitted per submitted turn, whatever
// the outcome, so the transcript never has a missing assistant entry.
type Message struct {
	// SessionID is the conversation the turn belongs to. Populated from the
	// request, or from the backend's session_id frame when it re-announces it.
	SessionID string

	// Text is the assistant's answer (or the stop marker / user-facing error
	// text when the turn did not complete normally).
	Text string

	// Reasoning is the concatenated reasoning trace, prefixed with the
	// reasoning timestamp label when the backend sent one. Empty when the
	// turn had no reasoning phase.
	Reasoning string

	// Phase is the terminal phase the turn ended in: PhaseCompleted,
	// PhaseErrored or PhaseStopped.
	Phase Phase

	// Metadata is the backend's generation statistics, when received.
	Metadata *Metadata

	// Stats is the free-form statistics object from the done frame.
	Stats map[string]any

	// Elapsed is the wall time from submission to terminal transition.
	Elapsed time.Duration
}
