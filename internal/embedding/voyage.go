// Package embedding provides the Voyage AI embedding client used by the
// supabase retrieval path to embed queries before vector search.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"
)

const (
	voyageBaseURL      = "https://api.voyageai.com/v1/embeddings"
	voyageMaxRetries   = 3
	voyageInitialDelay = 1 * time.Second
)

// ErrClientUnavailable reports that the client cannot be constructed,
// typically because no API key was configured.
var ErrClientUnavailable = errors.New("voyage embedding client unavailable")

// VoyageClient embeds text via the Voyage AI API. Credentials are passed
// explicitly at construction; the client never reads process environment.
type VoyageClient struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

type voyageRequest struct {
	Input     []string `json:"input"`
	Model     string   `json:"model"`
	InputType string   `json:"input_type"`
}

type voyageResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

type voyageError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// VoyageClientOption configures a VoyageClient.
type VoyageClientOption func(*VoyageClient)

// WithBaseURL overrides the API endpoint (used in tests).
func WithBaseURL(url string) VoyageClientOption {
	return func(c *VoyageClient) { c.baseURL = url }
}

// NewVoyageClient creates a Voyage embedding client. Returns
// ErrClientUnavailable when no API key is configured, so callers can
// record the unavailability reason once instead of checking a nil
// reference at every call site.
func NewVoyageClient(apiKey, model string, opts ...VoyageClientOption) (*VoyageClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: no API key configured", ErrClientUnavailable)
	}
	c := &VoyageClient{
		apiKey:  apiKey,
		model:   model,
		baseURL: voyageBaseURL,
		client:  &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// EmbedQuery embeds a search query.
func (c *VoyageClient) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	embeddings, err := c.embed(ctx, []string{query}, "query")
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}
	return embeddings[0], nil
}

// EmbedDocument embeds a text for storage/indexing.
func (c *VoyageClient) EmbedDocument(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := c.embed(ctx, []string{text}, "document")
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}
	return embeddings[0], nil
}

func (c *VoyageClient) embed(ctx context.Context, texts []string, inputType string) ([][]float32, error) {
	req := voyageRequest{
		Input:     texts,
		Model:     c.model,
		InputType: inputType,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	// Retry with exponential backoff
	var lastErr error
	for attempt := 0; attempt < voyageMaxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(math.Pow(2, float64(attempt))) * voyageInitialDelay
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(httpReq)
		if err != nil {
			lastErr = fmt.Errorf("HTTP request failed: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response body: %w", err)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			var voyageErr voyageError
			if json.Unmarshal(respBody, &voyageErr) == nil && voyageErr.Error.Message != "" {
				lastErr = fmt.Errorf("Voyage API error (%d): %s", resp.StatusCode, voyageErr.Error.Message)
			} else {
				lastErr = fmt.Errorf("Voyage API error (%d): %s", resp.StatusCode, string(respBody))
			}

			// Retry on rate limit or server errors only
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				continue
			}
			return nil, lastErr
		}

		var voyageResp voyageResponse
		if err := json.Unmarshal(respBody, &voyageResp); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}

		if len(voyageResp.Data) != len(texts) {
			return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(voyageResp.Data))
		}

		embeddings := make([][]float32, len(voyageResp.Data))
		for i, d := range voyageResp.Data {
			embeddings[i] = d.Embedding
		}

		return embeddings, nil
	}

	return nil, fmt.Errorf("max retries (%d) exceeded: %w", voyageMaxRetries, lastErr)
}
