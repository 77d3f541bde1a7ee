package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

const defaultRerankBaseURL = "https://api.voyageai.com/v1/rerank"

// ErrClientUnavailable reports that the rerank client cannot be constructed.
var ErrClientUnavailable = errors.New("rerank client unavailable")

// ScoredIndex is one scored document from the rerank API. Index refers to
// the position in the documents slice that was sent, not the response order.
type ScoredIndex struct {
	Index int
	// Score is the relevance score as returned. ScoreOK is false when the
	// field was missing or not a number; callers decide how to degrade.
	Score   float64
	ScoreOK bool
}

// VoyageReranker calls the Voyage AI cross-encoder rerank API.
type VoyageReranker struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// VoyageRerankerOption configures a VoyageReranker.
type VoyageRerankerOption func(*VoyageReranker)

// WithRerankBaseURL overrides the API endpoint (used in tests).
func WithRerankBaseURL(url string) VoyageRerankerOption {
	return func(c *VoyageReranker) { c.baseURL = url }
}

// NewVoyageReranker creates a rerank client. Returns ErrClientUnavailable
// when no API key is configured.
func NewVoyageReranker(apiKey string, opts ...VoyageRerankerOption) (*VoyageReranker, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: no API key configured", ErrClientUnavailable)
	}
	c := &VoyageReranker{
		apiKey:  apiKey,
		baseURL: defaultRerankBaseURL,
		client:  &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type rerankRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	Model     string   `json:"model"`
	TopK      int      `json:"top_k"`
}

type rerankResponse struct {
	Data []struct {
		Index          int `json:"index"`
		RelevanceScore any `json:"relevance_score"`
	} `json:"data"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// Rerank scores documents against the query with the given model. The
// returned indices refer to positions in the documents slice.
func (c *VoyageReranker) Rerank(ctx context.Context, query string, documents []string, model string, topK int) ([]ScoredIndex, int, error) {
	body, err := json.Marshal(rerankRequest{
		Query:     query,
		Documents: documents,
		Model:     model,
		TopK:      topK,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, 0, fmt.Errorf("rerank request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("rerank API error (%d): %s", resp.StatusCode, string(respBody))
	}

	var parsed rerankResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, 0, fmt.Errorf("failed to decode response: %w", err)
	}

	scored := make([]ScoredIndex, 0, len(parsed.Data))
	for _, item := range parsed.Data {
		si := ScoredIndex{Index: item.Index}
		if f, ok := item.RelevanceScore.(float64); ok {
			si.Score = f
			si.ScoreOK = true
		}
		scored = append(scored, si)
	}
	return scored, parsed.Usage.TotalTokens, nil
}
