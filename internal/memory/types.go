package memory

import "errors"

// Common provider errors.
var (
	ErrClientUnavailable = errors.New("provider client unavailable")
	ErrMalformedResponse = errors.New("malformed provider response")
)

// MemorySearchResult is a normalized memory search result. Source always
// names the provider that produced it.
type MemorySearchResult struct {
	ID         string         `json:"id"`
	Content    string         `json:"content"`
	Source     string         `json:"source"`
	Confidence float64        `json:"confidence"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// MockState is the tagged mock-data state of a service. Enabled with an
// empty result list is a distinct, intentional state from disabled:
// conflating the two is the bug class this type exists to remove.
type MockState struct {
	Enabled bool
	Results []MemorySearchResult
}

// SearchMetadata describes how a search call was actually served.
type SearchMetadata struct {
	Provider       string `json:"provider"`
	MockMode       bool   `json:"mock_mode,omitempty"`
	RealProvider   bool   `json:"real_provider,omitempty"`
	FallbackReason string `json:"fallback_reason,omitempty"`
	UsedFallback   bool   `json:"used_fallback,omitempty"`
	EmbedError     string `json:"embed_error,omitempty"`
	ErrorType      string `json:"error_type,omitempty"`
	ErrorMessage   string `json:"error_message,omitempty"`
	QueryEmpty     bool   `json:"query_empty,omitempty"`
	RawCount       int    `json:"raw_count"`
}

// Map flattens the metadata into the generic form carried by routing
// metadata and traces.
func (m SearchMetadata) Map() map[string]any {
	out := map[string]any{
		"provider":  m.Provider,
		"raw_count": m.RawCount,
	}
	if m.MockMode {
		out["mock_mode"] = true
	}
	if m.RealProvider {
		out["real_provider"] = true
	}
	if m.FallbackReason != "" {
		out["fallback_reason"] = m.FallbackReason
	}
	if m.UsedFallback {
		out["used_fallback"] = true
	}
	if m.EmbedError != "" {
		out["embed_error"] = m.EmbedError
	}
	if m.ErrorType != "" {
		out["error_type"] = m.ErrorType
	}
	if m.ErrorMessage != "" {
		out["error_message"] = m.ErrorMessage
	}
	if m.QueryEmpty {
		out["query_empty"] = true
	}
	return out
}
