package memory

import "strings"

// FallbackResults produces deterministic results when no real provider can
// serve a query. A few trigger substrings yield specific shapes so degraded
// paths stay reproducible end to end.
func FallbackResults(query, provider string) []MemorySearchResult {
	lower := strings.ToLower(query)

	switch {
	case strings.Contains(lower, "empty"), strings.Contains(lower, "no candidate"):
		return nil

	case strings.Contains(lower, "low confidence"):
		return []MemorySearchResult{
			{
				ID:         "mock-low-1",
				Content:    "Low confidence result for: " + query,
				Source:     provider,
				Confidence: 0.45,
				Metadata:   map[string]any{"mock": true, "low_conf": true},
			},
		}

	case strings.Contains(lower, "degraded"):
		return []MemorySearchResult{
			{
				ID:         "mock-degraded-1",
				Content:    "Degraded result for: " + query,
				Source:     provider,
				Confidence: 0.5,
				Metadata:   map[string]any{"mock": true, "degraded": true},
			},
		}
	}

	return []MemorySearchResult{
		{
			ID:         "mock-1",
			Content:    "High confidence result for: " + query,
			Source:     provider,
			Confidence: 0.85,
			Metadata:   map[string]any{"mock": true},
		},
		{
			ID:         "mock-2",
			Content:    "Secondary result for: " + query,
			Source:     provider,
			Confidence: 0.72,
			Metadata:   map[string]any{"mock": true},
		},
	}
}
