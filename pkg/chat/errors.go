package chat

import (
	"errors"
	"fmt"
)

// ErrDuplicateRequest is returned by Manager.Submit when a request with the
// same dedup key is already in flight. The duplicate is rejected outright,
// never queued, and no network activity occurs for it.
var ErrDuplicateRequest = errors.New("duplicate in-flight request")

// ErrConnectionExhausted is reported when every reconnection attempt failed.
// It always wraps the last underlying failure.
var ErrConnectionExhausted = errors.New("connection attempts exhausted")

// ProtocolError is a well-formed error from the remote side: either a
// non-success HTTP response with a body, or an explicit error frame on the
// stream. Protocol errors are terminal and never retried.
type ProtocolError struct {
	// StatusCode is the HTTP status for response-level failures, 0 for
	// in-stream error frames.
	StatusCode int

	// Message is the remote error text.
	Message string
}

func (e *ProtocolError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("backend error: %s", e.Message)
}

// exhaustedError reports a spent retry budget while carrying the last
// underlying failure. It matches ErrConnectionExhausted via errors.Is and
// unwraps to the last failure.
type exhaustedError struct {
	attempts int
	last     error
}

func (e *exhaustedError) Error() string {
	return fmt.Sprintf("connection attempts exhausted after %d attempts: %v", e.attempts, e.last)
}

func (e *exhaustedError) Is(target error) bool {
	return target == ErrConnectionExhausted
}

func (e *exhaustedError) Unwrap() error {
	return e.last
}

// retryable reports whether err is a transient failure eligible for a
// reconnection attempt. Protocol errors are terminal; everything else that
// reaches the controller (connection refused, resets, attempt timeouts,
// truncated streams) is treated as transient.
func retryable(err error) bool {
	if err == nil {
		return false
	}
	var pe *ProtocolError
	return !errors.As(err, &pe)
}
