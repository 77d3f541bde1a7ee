package rerank

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/secondbrain/recall/internal/config"
	"github.com/secondbrain/recall/pkg/types"
)

func candidates(confidences ...float64) []types.ContextCandidate {
	out := make([]types.ContextCandidate, len(confidences))
	for i, c := range confidences {
		out[i] = types.ContextCandidate{
			ID:         string(rune('a' + i)),
			Content:    "candidate content",
			Source:     "mem0",
			Confidence: c,
		}
	}
	return out
}

// =============================================================================
// Test: Bypass conditions
// =============================================================================

func TestService_Bypass(t *testing.T) {
	ctx := context.Background()

	t.Run("Given rerank disabled When Rerank called Then returns input with type none", func(t *testing.T) {
		svc := NewService(config.RerankConfig{Enabled: false})
		input := candidates(0.8, 0.6)

		out, meta := svc.Rerank(ctx, "query", input, 5)

		if meta.Type != TypeNone {
			t.Errorf("expected type 'none', got %q", meta.Type)
		}
		if meta.BypassReason != BypassDisabled {
			t.Errorf("expected bypass reason %q, got %q", BypassDisabled, meta.BypassReason)
		}
		if len(out) != 2 {
			t.Errorf("expected input returned unchanged, got %d candidates", len(out))
		}
	})

	t.Run("Given zero candidates When Rerank called Then bypasses with no_candidates", func(t *testing.T) {
		svc := NewService(config.RerankConfig{Enabled: true})

		out, meta := svc.Rerank(ctx, "query", nil, 5)

		if meta.Type != TypeNone || meta.BypassReason != BypassNoCandidates {
			t.Errorf("unexpected metadata %+v", meta)
		}
		if len(out) != 0 {
			t.Errorf("expected 0 candidates, got %d", len(out))
		}
	})

	t.Run("Given single candidate When Rerank called Then bypasses with single_candidate", func(t *testing.T) {
		svc := NewService(config.RerankConfig{Enabled: true})
		input := candidates(0.9)

		out, meta := svc.Rerank(ctx, "query", input, 5)

		if meta.Type != TypeNone || meta.BypassReason != BypassSingleCandidate {
			t.Errorf("unexpected metadata %+v", meta)
		}
		if len(out) != 1 || out[0].Confidence != 0.9 {
			t.Errorf("expected untouched single candidate, got %+v", out)
		}
	})
}

// =============================================================================
// Test: Mock scorer
// =============================================================================

func TestService_MockScorer(t *testing.T) {
	ctx := context.Background()

	t.Run("Given overlapping terms When Rerank called Then boosts by overlap and clamps to 1", func(t *testing.T) {
		svc := NewService(config.RerankConfig{Enabled: true})
		input := []types.ContextCandidate{
			{ID: "a", Content: "quarterly revenue report", Confidence: 0.98},
			{ID: "b", Content: "unrelated note", Confidence: 0.5},
		}

		out, meta := svc.Rerank(ctx, "quarterly revenue", input, 5)

		if meta.Type != TypeMock {
			t.Errorf("expected type 'mock', got %q", meta.Type)
		}
		if meta.RealRerank {
			t.Error("mock scorer must not claim real_rerank")
		}
		// 0.98 + 2*0.05 clamps to 1.0
		if out[0].ID != "a" || out[0].Confidence != 1.0 {
			t.Errorf("expected candidate a clamped to 1.0, got %+v", out[0])
		}
		if out[0].Metadata["rerank_adjusted"] != true {
			t.Error("expected rerank_adjusted metadata")
		}
		if out[0].Metadata["original_confidence"] != 0.98 {
			t.Errorf("expected original_confidence 0.98, got %v", out[0].Metadata["original_confidence"])
		}
	})

	t.Run("Given duplicate and partial-word query terms Then overlap counts distinct whole tokens only", func(t *testing.T) {
		svc := NewService(config.RerankConfig{Enabled: true})
		input := []types.ContextCandidate{
			{ID: "a", Content: "revenue report", Confidence: 0.5},
			{ID: "b", Content: "other note", Confidence: 0.4},
		}

		// "rev" is a substring of "revenue" but not a token of it
		out, _ := svc.Rerank(ctx, "rev rev", input, 5)
		if out[0].Confidence != 0.5 {
			t.Errorf("expected confidence unchanged at 0.5, got %v", out[0].Confidence)
		}

		// a repeated matching token counts once
		out, _ = svc.Rerank(ctx, "report report", input, 5)
		if out[0].Confidence != 0.55 {
			t.Errorf("expected single +0.05 boost to 0.55, got %v", out[0].Confidence)
		}
	})

	t.Run("Given more candidates than topK When Rerank called Then output length bounded", func(t *testing.T) {
		svc := NewService(config.RerankConfig{Enabled: true})
		input := candidates(0.9, 0.8, 0.7, 0.6)

		out, _ := svc.Rerank(ctx, "query", input, 2)

		if len(out) != 2 {
			t.Errorf("expected 2 candidates, got %d", len(out))
		}
	})
}

// =============================================================================
// Test: External path
// =============================================================================

func TestService_External(t *testing.T) {
	ctx := context.Background()

	newRealConfig := func(baseURL string) config.RerankConfig {
		return config.RerankConfig{
			Enabled:       true,
			Model:         "rerank-2",
			UseRealRerank: true,
			VoyageAPIKey:  "test-key",
			BaseURL:       baseURL,
		}
	}

	t.Run("Given external API responds When Rerank called Then scores map back by index and clamp", func(t *testing.T) {
		// Given
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{
				"data": [
					{"index": 1, "relevance_score": 1.5},
					{"index": 0, "relevance_score": -0.1},
					{"index": 7, "relevance_score": 0.5}
				],
				"usage": {"total_tokens": 42}
			}`))
		}))
		defer server.Close()

		svc := NewService(newRealConfig(server.URL))
		input := candidates(0.3, 0.9)

		// When
		out, meta := svc.Rerank(ctx, "query", input, 5)

		// Then
		if meta.Type != TypeExternal || !meta.RealRerank {
			t.Errorf("expected external real rerank, got %+v", meta)
		}
		if meta.TotalTokens != 42 {
			t.Errorf("expected 42 tokens, got %d", meta.TotalTokens)
		}
		// out-of-range index 7 is skipped
		if len(out) != 2 {
			t.Fatalf("expected 2 candidates, got %d", len(out))
		}
		if out[0].ID != "b" || out[0].Confidence != 1.0 {
			t.Errorf("expected candidate b clamped to 1.0 first, got %+v", out[0])
		}
		if out[1].ID != "a" || out[1].Confidence != 0.0 {
			t.Errorf("expected candidate a clamped to 0.0, got %+v", out[1])
		}
		if out[0].Metadata["original_confidence"] != 0.9 {
			t.Errorf("expected original_confidence preserved, got %v", out[0].Metadata["original_confidence"])
		}
	})

	t.Run("Given non-numeric relevance score Then that candidate is dropped", func(t *testing.T) {
		// Given
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{
				"data": [
					{"index": 0, "relevance_score": 0.9},
					{"index": 1, "relevance_score": "not-a-number"}
				],
				"usage": {"total_tokens": 10}
			}`))
		}))
		defer server.Close()

		svc := NewService(newRealConfig(server.URL))
		input := candidates(0.3, 0.9)

		// When
		out, meta := svc.Rerank(ctx, "query", input, 5)

		// Then
		if meta.Type != TypeExternal {
			t.Errorf("expected external rerank, got type %q", meta.Type)
		}
		if len(out) != 1 {
			t.Fatalf("expected 1 candidate, got %d", len(out))
		}
		if out[0].ID != "a" || out[0].Confidence != 0.9 {
			t.Errorf("expected candidate a at 0.9, got %+v", out[0])
		}
	})

	t.Run("Given external API fails When Rerank called Then falls through to mock scorer", func(t *testing.T) {
		// Given
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "rate limited", http.StatusTooManyRequests)
		}))
		defer server.Close()

		svc := NewService(newRealConfig(server.URL))
		input := candidates(0.8, 0.6)

		// When
		out, meta := svc.Rerank(ctx, "query", input, 5)

		// Then
		if meta.Type != TypeMock {
			t.Errorf("expected fallthrough to mock, got type %q", meta.Type)
		}
		if meta.RealRerank {
			t.Error("real_rerank must be false after external failure")
		}
		if len(out) != 2 {
			t.Errorf("expected 2 candidates, got %d", len(out))
		}
	})

	t.Run("Given real rerank configured without key Then service uses mock scorer", func(t *testing.T) {
		svc := NewService(config.RerankConfig{Enabled: true, UseRealRerank: true})
		input := candidates(0.8, 0.6)

		_, meta := svc.Rerank(ctx, "query", input, 5)

		if meta.Type != TypeMock {
			t.Errorf("expected mock scorer, got type %q", meta.Type)
		}
	})
}
