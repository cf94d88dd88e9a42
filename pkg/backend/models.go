package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// Model describes one generation model the backend exposes.
type Model struct {
	ID          string `json:"model_id"`
	Name        string `json:"name"`
	Provider    string `json:"provider"`
	Description string `json:"description"`
	MaxTokens   int    `json:"max_tokens"`
}

// ListModels returns the models available for chat sessions.
func (c *Client) ListModels(ctx context.Context) ([]Model, error) {
	var out struct {
		envelope
		Models []Model `json:"models"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/models", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("listing models: %w", err)
	}
	if err := checkEnvelope(out.envelope); err != nil {
		return nil, err
	}
	return out.Models, nil
}

// Model returns the details of one model by id.
func (c *Client) Model(ctx context.Context, modelID string) (*Model, error) {
	var out struct {
		envelope
		Model
	}
	if err := c.do(ctx, http.MethodGet, "/api/models/"+url.PathEscape(modelID), nil, nil, &out); err != nil {
		return nil, fmt.Errorf("getting model: %w", err)
	}
	if err := checkEnvelope(out.envelope); err != nil {
		return nil, err
	}
	return &out.Model, nil
}
