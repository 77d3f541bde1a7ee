package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const defaultMem0BaseURL = "https://api.mem0.ai/v1"

// Mem0Client is a thin adapter over the Mem0 memory search API. The raw
// payload is returned untyped; normalization happens in the service so
// field-name and score quirks are handled in one place.
type Mem0Client struct {
	apiKey  string
	userID  string
	baseURL string
	client  *http.Client
}

// Mem0ClientOption configures a Mem0Client.
type Mem0ClientOption func(*Mem0Client)

// WithMem0BaseURL overrides the API endpoint (used in tests).
func WithMem0BaseURL(url string) Mem0ClientOption {
	return func(c *Mem0Client) { c.baseURL = url }
}

// NewMem0Client creates a Mem0 API client from explicit credentials.
// Returns ErrClientUnavailable when no API key is configured.
func NewMem0Client(apiKey, userID string, opts ...Mem0ClientOption) (*Mem0Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: mem0 API key not configured", ErrClientUnavailable)
	}
	c := &Mem0Client{
		apiKey:  apiKey,
		userID:  userID,
		baseURL: defaultMem0BaseURL,
		client:  &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type mem0SearchRequest struct {
	Query  string `json:"query"`
	Limit  int    `json:"limit"`
	UserID string `json:"user_id,omitempty"`
}

// Search queries Mem0 and returns the raw result items.
func (c *Mem0Client) Search(ctx context.Context, query string, limit int) ([]map[string]any, error) {
	reqBody := mem0SearchRequest{
		Query:  query,
		Limit:  limit,
		UserID: c.userID,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/memories/search/", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Token "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("mem0 request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("mem0 API error (%d): %s", resp.StatusCode, string(respBody))
	}

	// The API returns either a bare array or {"results": [...]}
	var items []map[string]any
	if err := json.Unmarshal(respBody, &items); err == nil {
		return items, nil
	}

	var wrapped struct {
		Results []map[string]any `json:"results"`
	}
	if err := json.Unmarshal(respBody, &wrapped); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return wrapped.Results, nil
}
