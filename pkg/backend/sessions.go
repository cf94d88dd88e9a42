package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Session is one conversation session as listed by the backend.
type Session struct {
	ID           string    `json:"session_id"`
	Name         string    `json:"name"`
	ModelID      string    `json:"model_id"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CreateSession allocates a new conversation session and returns its id.
// An empty name lets the backend pick one.
func (c *Client) CreateSession(ctx context.Context, name string) (string, error) {
	var out struct {
		envelope
		SessionID string `json:"session_id"`
	}
	body := map[string]string{}
	if name != "" {
		body["name"] = name
	}
	if err := c.do(ctx, http.MethodPost, "/api/session/new", nil, body, &out); err != nil {
		return "", fmt.Errorf("creating session: %w", err)
	}
	if err := checkEnvelope(out.envelope); err != nil {
		return "", err
	}
	return out.SessionID, nil
}

// ListSessions returns the known sessions. includeEmpty also lists sessions
// that have no messages yet.
func (c *Client) ListSessions(ctx context.Context, includeEmpty bool) ([]Session, error) {
	var out struct {
		envelope
		Sessions []Session `json:"sessions"`
	}
	query := url.Values{"include_empty": []string{strconv.FormatBool(includeEmpty)}}
	if err := c.do(ctx, http.MethodGet, "/api/sessions", query, nil, &out); err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	if err := checkEnvelope(out.envelope); err != nil {
		return nil, err
	}
	return out.Sessions, nil
}

// DeleteSession removes a session and its history.
func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	var out envelope
	if err := c.do(ctx, http.MethodDelete, "/api/session/"+url.PathEscape(sessionID), nil, nil, &out); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return checkEnvelope(out)
}

// RenameSession updates a session's display name.
func (c *Client) RenameSession(ctx context.Context, sessionID, name string) error {
	var out envelope
	body := map[string]string{"name": name}
	if err := c.do(ctx, http.MethodPut, "/api/session/"+url.PathEscape(sessionID)+"/name", nil, body, &out); err != nil {
		return fmt.Errorf("renaming session: %w", err)
	}
	return checkEnvelope(out)
}

// SetSessionModel pins the generation model for a session.
func (c *Client) SetSessionModel(ctx context.Context, sessionID, modelID string) error {
	var out envelope
	body := map[string]string{"model_id": modelID}
	if err := c.do(ctx, http.MethodPut, "/api/session/"+url.PathEscape(sessionID)+"/model", nil, body, &out); err != nil {
		return fmt.Errorf("setting session model: %w", err)
	}
	return checkEnvelope(out)
}

// SessionModel returns the model currently pinned to a session.
func (c *Client) SessionModel(ctx context.Context, sessionID string) (string, error) {
	var out struct {
		envelope
		ModelID string `json:"model_id"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/session/"+url.PathEscape(sessionID)+"/model", nil, nil, &out); err != nil {
		return "", fmt.Errorf("getting session model: %w", err)
	}
	if err := checkEnvelope(out.envelope); err != nil {
		return "", err
	}
	return out.ModelID, nil
}

// ClearHistory wipes the message history of a session, keeping the session.
func (c *Client) ClearHistory(ctx context.Context, sessionID string) error {
	var out envelope
	if err := c.do(ctx, http.MethodPost, "/api/clear/"+url.PathEscape(sessionID), nil, nil, &out); err != nil {
		return fmt.Errorf("clearing history: %w", err)
	}
	return checkEnvelope(out)
}
