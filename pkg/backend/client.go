// Package backend is a thin request/response client for the assistant
// backend's non-streaming collaborator routes: session CRUD, model
// listing, city lookups and health. The streaming chat protocol itself
// lives in pkg/chat; this client is only invoked at turn-submission
// boundaries (e.g. allocating a session id before opening a stream) and
// from the management CLI commands.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to the backend REST API at a fixed target URL.
type Client struct {
	target string
	httpc  *http.Client
}

// New creates a backend client for target (scheme + host + port).
func New(target string) *Client {
	return &Client{
		target: strings.TrimRight(target, "/"),
		httpc: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// envelope is the common response wrapper the backend uses:
// {"success": bool, ...payload} with an "error" message on failure.
type envelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// do performs one JSON request/response round trip. A nil body sends no
// payload; a nil out discards the response body after the status check.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.target + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		payload = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, payload)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("calling backend at %s: %w", c.target, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("backend returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// checkEnvelope turns a "success": false payload into an error.
func checkEnvelope(e envelope) error {
	if e.Success {
		return nil
	}
	if e.Error != "" {
		return fmt.Errorf("backend rejected request: %s", e.Error)
	}
	return fmt.Errorf("backend rejected request")
}

// Health pings the backend's health route.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/health", nil, nil, nil)
}
