package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/atlaschat/atlas/pkg/chat"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeTurnCompleted is emitted after a conversation turn
	// reaches a terminal phase on the client.
	EventTypeTurnCompleted = "atlas.turn.completed"
)

// TurnCompletedEvent is a transport-neutral event payload for a
// finished conversation turn.
type TurnCompletedEvent struct {
	SchemaVersion int             `json:"schema_version"`
	EventType     string          `json:"event_type"`
	EventID       string          `json:"event_id"`
	EmittedAt     time.Time       `json:"emitted_at"`
	Source        EventSource     `json:"source"`
	RequestMeta   TurnRequestMeta `json:"request_meta"`
	Turn          Turn            `json:"turn"`
}

// EventSource identifies the client that produced the turn.
type EventSource struct {
	Project string `json:"project,omitempty"`
	Mode    string `json:"mode,omitempty"`
	Model   string `json:"model,omitempty"`
}

// TurnRequestMeta captures turn lifecycle metadata for the event.
type TurnRequestMeta struct {
	SessionID   string    `json:"session_id"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	DurationMs  int64     `json:"duration_ms"`
}

// Turn carries the exchange itself: the user's message and the
// assistant's finished reply, flattened for transport.
type Turn struct {
	UserMessage string         `json:"user_message"`
	Reply       string         `json:"reply"`
	Reasoning   string         `json:"reasoning,omitempty"`
	Phase       string         `json:"phase"`
	Metadata    *chat.Metadata `json:"metadata,omitempty"`
	Stats       map[string]any `json:"stats,omitempty"`
}

// NewTurnCompletedEvent stamps a finished turn with schema, id and
// emission time. The reply's elapsed duration becomes the request
// window ending at completedAt.
func NewTurnCompletedEvent(source EventSource, userMessage string, reply chat.Message) *TurnCompletedEvent {
	completedAt := time.Now().UTC()
	return &TurnCompletedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeTurnCompleted,
		EventID:       "evt_" + uuid.NewString(),
		EmittedAt:     completedAt,
		Source:        source,
		RequestMeta: TurnRequestMeta{
			SessionID:   reply.SessionID,
			StartedAt:   completedAt.Add(-reply.Elapsed),
			CompletedAt: completedAt,
			DurationMs:  reply.Elapsed.Milliseconds(),
		},
		Turn: Turn{
			UserMessage: userMessage,
			Reply:       reply.Text,
			Reasoning:   reply.Reasoning,
			Phase:       reply.Phase.String(),
			Metadata:    reply.Metadata,
			Stats:       reply.Stats,
		},
	}
}
