// Package memory implements the memory search service triad: explicit mock
// state, real provider clients (mem0, supabase), and a deterministic
// fallback. A service is bound to exactly one provider for its lifetime.
package memory

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/secondbrain/recall/internal/config"
	"github.com/secondbrain/recall/internal/embedding"
)

const maxErrorMessageLen = 200

// Service serves memory searches for a single provider. Search never
// returns an error: provider failures degrade to fallback results with the
// failure recorded in SearchMetadata.
type Service struct {
	provider string
	timeout  time.Duration

	mu   sync.RWMutex
	mock MockState

	mem0           *Mem0Client
	mem0Reason     string
	supabase       *SupabaseClient
	supabaseReason string
	embedder       *embedding.VoyageClient
	embedReason    string

	// secrets are redacted from error messages before they reach metadata.
	secrets []string
}

// NewService binds a service to a provider using the given configuration.
// Construction never fails: a provider whose client cannot be built simply
// serves fallback results, with the reason recorded per call.
func NewService(provider string, cfg *config.Config) *Service {
	s := &Service{
		provider: provider,
		timeout:  time.Duration(cfg.Defaults.TimeoutMS) * time.Millisecond,
	}
	if s.timeout <= 0 {
		s.timeout = 10 * time.Second
	}

	switch provider {
	case "mem0":
		if !cfg.Mem0.UseRealProvider {
			s.mem0Reason = "real_provider_disabled"
			break
		}
		var opts []Mem0ClientOption
		if cfg.Mem0.BaseURL != "" {
			opts = append(opts, WithMem0BaseURL(cfg.Mem0.BaseURL))
		}
		client, err := NewMem0Client(cfg.Mem0.APIKey, cfg.Mem0.UserID, opts...)
		if err != nil {
			s.mem0Reason = "client_unavailable"
			break
		}
		s.mem0 = client
		s.secrets = append(s.secrets, cfg.Mem0.APIKey)

	case "supabase":
		if !cfg.Supabase.UseRealProvider {
			s.supabaseReason = "real_provider_disabled"
			break
		}
		client, err := NewSupabaseClient(cfg.Supabase.URL, cfg.Supabase.Key)
		if err != nil {
			s.supabaseReason = "client_unavailable"
		} else {
			s.supabase = client
			s.secrets = append(s.secrets, cfg.Supabase.Key, cfg.Supabase.URL)
		}
		var embedOpts []embedding.VoyageClientOption
		if cfg.Supabase.VoyageBaseURL != "" {
			embedOpts = append(embedOpts, embedding.WithBaseURL(cfg.Supabase.VoyageBaseURL))
		}
		embedder, err := embedding.NewVoyageClient(cfg.Supabase.VoyageAPIKey, cfg.Supabase.VoyageEmbedModel, embedOpts...)
		if err != nil {
			s.embedReason = "embedder_unavailable"
		} else {
			s.embedder = embedder
			s.secrets = append(s.secrets, cfg.Supabase.VoyageAPIKey)
		}

	default:
		// graphiti and unknown providers have no real client; every search
		// degrades to fallback.
	}

	return s
}

// Provider returns the provider this service is bound to. The binding is
// immutable for the lifetime of the service.
func (s *Service) Provider() string {
	return s.provider
}

// SetMockData enables mock mode with the given results. An empty slice is a
// valid, intentional state: the service is mocked and returns nothing.
func (s *Service) SetMockData(results []MemorySearchResult) {
	copied := make([]MemorySearchResult, len(results))
	copy(copied, results)
	s.mu.Lock()
	s.mock = MockState{Enabled: true, Results: copied}
	s.mu.Unlock()
}

// ClearMockData disables mock mode entirely. Subsequent searches go to the
// real provider or the fallback.
func (s *Service) ClearMockData() {
	s.mu.Lock()
	s.mock = MockState{}
	s.mu.Unlock()
}

// MockEnabled reports whether mock mode is active.
func (s *Service) MockEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mock.Enabled
}

// Search runs a memory search. Precedence is mock state, then the real
// provider, then the deterministic fallback. Results are sorted by
// confidence descending and truncated to topK.
func (s *Service) Search(ctx context.Context, query string, topK int) ([]MemorySearchResult, SearchMetadata) {
	if topK < 1 {
		topK = 1
	}

	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return nil, SearchMetadata{Provider: s.provider, QueryEmpty: true}
	}

	s.mu.RLock()
	mock := s.mock
	s.mu.RUnlock()

	if mock.Enabled {
		results := make([]MemorySearchResult, len(mock.Results))
		copy(results, mock.Results)
		for i := range results {
			results[i].Source = s.provider
		}
		sortByConfidence(results)
		results = truncate(results, topK)
		return results, SearchMetadata{Provider: s.provider, MockMode: true, RawCount: len(mock.Results)}
	}

	switch s.provider {
	case "mem0":
		return s.searchMem0(ctx, trimmed, topK)
	case "supabase":
		return s.searchSupabase(ctx, trimmed, topK)
	}

	return s.fallback(trimmed, topK, SearchMetadata{Provider: s.provider, FallbackReason: "real_provider_disabled"})
}

func (s *Service) searchMem0(ctx context.Context, query string, topK int) ([]MemorySearchResult, SearchMetadata) {
	if s.mem0 == nil {
		return s.fallback(query, topK, SearchMetadata{Provider: s.provider, FallbackReason: s.mem0Reason})
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	raw, err := s.mem0.Search(callCtx, query, topK)
	if err != nil {
		log.Printf("Warning: mem0 search failed, using fallback: %v", err)
		return s.fallback(query, topK, SearchMetadata{
			Provider:       s.provider,
			FallbackReason: "provider_error",
			ErrorType:      classifyError(err),
			ErrorMessage:   s.sanitizeError(err),
		})
	}

	results := s.normalize(raw, topK)
	return results, SearchMetadata{Provider: s.provider, RealProvider: true, RawCount: len(raw)}
}

func (s *Service) searchSupabase(ctx context.Context, query string, topK int) ([]MemorySearchResult, SearchMetadata) {
	if s.supabase == nil {
		return s.fallback(query, topK, SearchMetadata{Provider: s.provider, FallbackReason: s.supabaseReason})
	}
	if s.embedder == nil {
		return s.fallback(query, topK, SearchMetadata{Provider: s.provider, FallbackReason: s.embedReason})
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	queryEmbedding, err := s.embedder.EmbedQuery(callCtx, query)
	if err != nil {
		log.Printf("Warning: query embedding failed, using fallback: %v", err)
		return s.fallback(query, topK, SearchMetadata{
			Provider:       s.provider,
			FallbackReason: "embed_error",
			EmbedError:     s.sanitizeError(err),
		})
	}

	raw, err := s.supabase.Search(callCtx, queryEmbedding, topK)
	if err != nil {
		log.Printf("Warning: supabase search failed, using fallback: %v", err)
		return s.fallback(query, topK, SearchMetadata{
			Provider:       s.provider,
			FallbackReason: "provider_error",
			ErrorType:      classifyError(err),
			ErrorMessage:   s.sanitizeError(err),
		})
	}

	results := s.normalize(raw, topK)
	return results, SearchMetadata{Provider: s.provider, RealProvider: true, RawCount: len(raw)}
}

func (s *Service) fallback(query string, topK int, meta SearchMetadata) ([]MemorySearchResult, SearchMetadata) {
	results := FallbackResults(query, s.provider)
	sortByConfidence(results)
	results = truncate(results, topK)
	meta.UsedFallback = true
	meta.RawCount = len(results)
	return results, meta
}

// normalize converts raw provider payloads into results. Row shapes vary by
// provider: mem0 carries "memory" or "content" and "score", supabase
// match_vectors rows carry "similarity" with the content nested inside a
// "metadata" object. The row's own metadata is merged into the result;
// missing or unparseable scores become 0 rather than dropping the item.
func (s *Service) normalize(raw []map[string]any, topK int) []MemorySearchResult {
	results := make([]MemorySearchResult, 0, len(raw))
	for i, item := range raw {
		id := stringField(item, "id")
		if id == "" {
			id = fmt.Sprintf("%s-%d", s.provider, i)
		}

		rowMeta, _ := item["metadata"].(map[string]any)

		content := stringField(item, "memory")
		if content == "" {
			content = stringField(item, "content")
		}
		if content == "" && rowMeta != nil {
			content = stringField(rowMeta, "content")
			if content == "" {
				content = stringField(rowMeta, "text")
			}
		}

		confidence, ok := scoreField(item, "score")
		if !ok {
			confidence, ok = scoreField(item, "confidence")
		}
		if !ok {
			confidence, _ = scoreField(item, "similarity")
		}

		meta := map[string]any{"real_provider": true}
		for k, v := range rowMeta {
			meta[k] = v
		}

		results = append(results, MemorySearchResult{
			ID:         id,
			Content:    content,
			Source:     s.provider,
			Confidence: clamp01(confidence),
			Metadata:   meta,
		})
	}
	sortByConfidence(results)
	return truncate(results, topK)
}

func (s *Service) sanitizeError(err error) string {
	msg := err.Error()
	for _, secret := range s.secrets {
		if secret != "" {
			msg = strings.ReplaceAll(msg, secret, "[redacted]")
		}
	}
	if len(msg) > maxErrorMessageLen {
		msg = msg[:maxErrorMessageLen]
	}
	return msg
}

func classifyError(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed_response"
	case errors.Is(err, ErrClientUnavailable):
		return "client_unavailable"
	default:
		return "provider_error"
	}
}

func stringField(item map[string]any, key string) string {
	if v, ok := item[key]; ok {
		switch t := v.(type) {
		case string:
			return t
		case float64:
			return strconv.FormatFloat(t, 'f', -1, 64)
		}
	}
	return ""
}

func scoreField(item map[string]any, key string) (float64, bool) {
	v, ok := item[key]
	if !ok {
		return 0, false
	}
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		if f, err := strconv.ParseFloat(t, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func sortByConfidence(results []MemorySearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Confidence > results[j].Confidence
	})
}

func truncate(results []MemorySearchResult, topK int) []MemorySearchResult {
	if len(results) > topK {
		return results[:topK]
	}
	return results
}
