package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Transport opens the streaming connection for one attempt. The returned
// body is the raw SSE byte stream; the caller owns closing it.
//
// Implementations must distinguish the two failure classes by error type:
// a *ProtocolError for well-formed remote rejections (non-2xx with a body),
// and any other error for transport-level failures, which the controller
// treats as transient.
type Transport interface {
	Open(ctx context.Context, req Request) (io.ReadCloser, error)
}

// streamPath is the backend's SSE chat endpoint.
const streamPath = "/api/chat/stream"

// maxErrorBody caps how much of a failed response body is read into the
// protocol error message.
const maxErrorBody = 4 * 1024

// streamRequestBody is the JSON body posted to the stream endpoint.
type streamRequestBody struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
	Mode      string `json:"mode,omitempty"`
}

// HTTPTransport opens chat streams against the backend over HTTP.
type HTTPTransport struct {
	target string
	client *http.Client
}

// NewHTTPTransport creates a transport for the backend at target
// (scheme + host + port, e.g. "http://localhost:8000").
//
// The underlying http.Client carries no request timeout: streams are
// long-lived by design and the per-attempt deadline arrives via the
// context instead.
func NewHTTPTransport(target string) *HTTPTransport {
	return &HTTPTransport{
		target: strings.TrimRight(target, "/"),
		client: &http.Client{},
	}
}

// Open posts the turn and returns the response body stream.
func (t *HTTPTransport) Open(ctx context.Context, req Request) (io.ReadCloser, error) {
	body, err := json.Marshal(streamRequestBody{
		Message:   req.Message,
		SessionID: req.SessionID,
		Mode:      string(req.Mode),
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling stream request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.target+streamPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating stream request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Cache-Control", "no-cache")

	resp, err := t.client.Do(httpReq)
	if err != nil {
		// Connection-level failure: transient, eligible for retry.
		return nil, fmt.Errorf("opening stream: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		_ = resp.Body.Close()
		return nil, &ProtocolError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(msg)),
		}
	}

	return resp.Body, nil
}
