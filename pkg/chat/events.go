package chat

import "encoding/json"

// Kind discriminates the typed event frames on the chat stream.
type Kind int

const (
	KindUnknown Kind = iota
	KindSessionID
	KindReasoningStart
	KindReasoningChunk
	KindReasoningEnd
	KindReasoningTimestamp
	KindAnswerStart
	KindAnswerChunk
	KindMetadata
	KindHeartbeat
	KindError
	KindDone
)

func (k Kind) String() string {
	switch k {
	case KindSessionID:
		return "session_id"
	case KindReasoningStart:
		return "reasoning_start"
	case KindReasoningChunk:
		return "reasoning_chunk"
	case KindReasoningEnd:
		return "reasoning_end"
	case KindReasoningTimestamp:
		return "reasoning_timestamp"
	case KindAnswerStart:
		return "answer_start"
	case KindAnswerChunk:
		return "chunk"
	case KindMetadata:
		return "metadata"
	case KindHeartbeat:
		return "heartbeat"
	case KindError:
		return "error"
	case KindDone:
		return "done"
	default:
		return "unknown"
	}
}

// Frame is one decoded event record from the stream. Ordering is
// significant: frames are dispatched in strict arrival order and adjacent
// chunk frames of the same kind concatenate in the aggregator.
type Frame struct {
	Kind Kind

	// SessionID is set on session_id frames.
	SessionID string

	// Content is the text payload of chunk and error frames.
	Content string

	// Timestamp is set on reasoning_timestamp and heartbeat frames.
	Timestamp string

	// Metadata is set on metadata / reasoning_metadata frames.
	Metadata *Metadata

	// Stats is the free-form statistics object on done frames.
	Stats map[string]any
}

// terminationSentinel is the literal data payload the backend may emit in
// place of a done frame to close the stream.
const terminationSentinel = "[DONE]"

// IsTerminationSentinel reports whether an SSE data payload is the literal
// stream-termination sentinel, which is equivalent to a done frame.
func IsTerminationSentinel(data string) bool {
	return data == terminationSentinel
}

// wireFrame is the superset of all frame payload shapes the backend emits,
// including the legacy untyped ones. Chunk and Error are pointers so a bare
// legacy field can be told apart from an absent one.
type wireFrame struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`

	// Legacy shapes: no "type" discriminator, just a bare field.
	Chunk *string `json:"chunk"`
	Error *string `json:"error"`

	// Metadata fields, inlined on metadata / reasoning_metadata frames.
	TotalSteps      int      `json:"total_steps"`
	ToolsUsed       []string `json:"tools_used"`
	HasReasoning    bool     `json:"has_reasoning"`
	ReasoningLength int      `json:"reasoning_length"`
	AnswerLength    int      `json:"answer_length"`

	Stats map[string]any `json:"stats"`
}

// DecodeFrame parses one SSE data payload into a Frame.
//
// Both payload generations are accepted: the typed shape carrying a "type"
// discriminator, and the legacy shape carrying a bare "chunk" or "error"
// field. When recognized fields coexist in one payload the precedence is
// strict: a non-empty "type" wins, then "chunk", then "error".
//
// A JSON decode failure is returned as an error so the caller can drop the
// frame; one malformed frame must not abort an otherwise healthy stream.
// An unrecognized "type" yields KindUnknown, which the dispatcher ignores.
func DecodeFrame(data string) (*Frame, error) {
	var w wireFrame
	if err := json.Unmarshal([]byte(data), &w); err != nil {
		return nil, err
	}

	f := &Frame{
		SessionID: w.SessionID,
		Content:   w.Content,
		Timestamp: w.Timestamp,
		Stats:     w.Stats,
	}

	switch w.Type {
	case "session_id":
		f.Kind = KindSessionID
	case "reasoning_start":
		f.Kind = KindReasoningStart
	case "reasoning_chunk":
		f.Kind = KindReasoningChunk
	case "reasoning_end":
		f.Kind = KindReasoningEnd
	case "reasoning_timestamp":
		f.Kind = KindReasoningTimestamp
	case "answer_start":
		f.Kind = KindAnswerStart
	case "chunk":
		f.Kind = KindAnswerChunk
	case "metadata", "reasoning_metadata":
		f.Kind = KindMetadata
		f.Metadata = &Metadata{
			TotalSteps:      w.TotalSteps,
			ToolsUsed:       w.ToolsUsed,
			HasReasoning:    w.HasReasoning,
			ReasoningLength: w.ReasoningLength,
			AnswerLength:    w.AnswerLength,
		}
	case "heartbeat":
		f.Kind = KindHeartbeat
	case "error":
		f.Kind = KindError
	case "done":
		f.Kind = KindDone
	case "":
		// Legacy payloads: no discriminator at all.
		switch {
		case w.Chunk != nil:
			f.Kind = KindAnswerChunk
			f.Content = *w.Chunk
		case w.Error != nil:
			f.Kind = KindError
			f.Content = *w.Error
		default:
			f.Kind = KindUnknown
		}
	default:
		f.Kind = KindUnknown
	}

	return f, nil
}
