package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// SupabaseClient calls the match_vectors RPC on a Supabase pgvector
// deployment. Rows come back untyped; the service normalizes them.
type SupabaseClient struct {
	url    string
	key    string
	client *http.Client
}

// NewSupabaseClient creates a Supabase RPC client from explicit
// credentials. Returns ErrClientUnavailable when either the URL or the
// key is missing.
func NewSupabaseClient(url, key string) (*SupabaseClient, error) {
	if url == "" || key == "" {
		return nil, fmt.Errorf("%w: supabase credentials not configured", ErrClientUnavailable)
	}
	return &SupabaseClient{
		url:    url,
		key:    key,
		client: &http.Client{},
	}, nil
}

type matchVectorsRequest struct {
	QueryEmbedding []float32 `json:"query_embedding"`
	MatchCount     int       `json:"match_count"`
}

// Search runs the match_vectors RPC with the given query embedding.
func (c *SupabaseClient) Search(ctx context.Context, queryEmbedding []float32, matchCount int) ([]map[string]any, error) {
	body, err := json.Marshal(matchVectorsRequest{
		QueryEmbedding: queryEmbedding,
		MatchCount:     matchCount,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.url+"/rest/v1/rpc/match_vectors", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("apikey", c.key)
	httpReq.Header.Set("Authorization", "Bearer "+c.key)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("supabase request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("supabase API error (%d): %s", resp.StatusCode, string(respBody))
	}

	var rows []map[string]any
	if err := json.Unmarshal(respBody, &rows); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return rows, nil
}
