// Package rerank implements the candidate rerank stage: an external
// cross-encoder path with a lexical mock scorer behind it. External failures
// never surface to callers; the mock path takes over and the metadata says so.
package rerank

import (
	"context"
	"log"
	"sort"
	"strings"

	"github.com/secondbrain/recall/internal/config"
	"github.com/secondbrain/recall/pkg/types"
)

// Service reranks retrieval candidates.
type Service struct {
	enabled bool
	model   string
	useReal bool
	client  *VoyageReranker
}

// NewService builds a rerank service from configuration. When the real
// rerank client cannot be constructed the service silently serves the mock
// scorer; the reason is logged once here.
func NewService(cfg config.RerankConfig) *Service {
	s := &Service{
		enabled: cfg.Enabled,
		model:   cfg.Model,
	}
	if !cfg.UseRealRerank {
		return s
	}
	var opts []VoyageRerankerOption
	if cfg.BaseURL != "" {
		opts = append(opts, WithRerankBaseURL(cfg.BaseURL))
	}
	client, err := NewVoyageReranker(cfg.VoyageAPIKey, opts...)
	if err != nil {
		log.Printf("Warning: real rerank unavailable, using mock scorer: %v", err)
		return s
	}
	s.useReal = true
	s.client = client
	return s
}

// Rerank scores and reorders candidates for the query. Bypass conditions
// (disabled, zero or one candidate) return the input unchanged with
// Type "none" and a bypass reason. Output length never exceeds topK or the
// input length.
func (s *Service) Rerank(ctx context.Context, query string, candidates []types.ContextCandidate, topK int) ([]types.ContextCandidate, Metadata) {
	if !s.enabled {
		return candidates, Metadata{Type: TypeNone, BypassReason: BypassDisabled}
	}
	if len(candidates) == 0 {
		return candidates, Metadata{Type: TypeNone, BypassReason: BypassNoCandidates}
	}
	if len(candidates) == 1 {
		return candidates, Metadata{Type: TypeNone, BypassReason: BypassSingleCandidate}
	}
	if topK < 1 {
		topK = 1
	}

	if s.useReal && s.client != nil {
		reranked, meta, ok := s.rerankExternal(ctx, query, candidates, topK)
		if ok {
			return reranked, meta
		}
		// Fall through to the mock scorer on any external failure.
	}

	return s.rerankMock(query, candidates, topK)
}

func (s *Service) rerankExternal(ctx context.Context, query string, candidates []types.ContextCandidate, topK int) ([]types.ContextCandidate, Metadata, bool) {
	documents := make([]string, len(candidates))
	for i, c := range candidates {
		documents[i] = c.Content
	}

	scored, totalTokens, err := s.client.Rerank(ctx, query, documents, s.model, topK)
	if err != nil {
		log.Printf("Warning: external rerank failed, using mock scorer: %v", err)
		return nil, Metadata{}, false
	}

	reranked := make([]types.ContextCandidate, 0, len(scored))
	for _, item := range scored {
		if item.Index < 0 || item.Index >= len(candidates) {
			log.Printf("Warning: rerank returned out-of-range index %d for %d candidates, skipping", item.Index, len(candidates))
			continue
		}
		if !item.ScoreOK {
			log.Printf("Warning: rerank returned non-numeric score for index %d, skipping", item.Index)
			continue
		}
		reranked = append(reranked, adjusted(candidates[item.Index], clamp01(item.Score)))
	}
	if len(reranked) == 0 {
		log.Printf("Warning: external rerank returned no usable results, using mock scorer")
		return nil, Metadata{}, false
	}

	sortByConfidence(reranked)
	if len(reranked) > topK {
		reranked = reranked[:topK]
	}
	return reranked, Metadata{
		Type:        TypeExternal,
		RealRerank:  true,
		TotalTokens: totalTokens,
		Model:       s.model,
	}, true
}

// rerankMock scores by token-set overlap: each distinct query token that
// also appears as a whole token in the candidate content nudges the original
// confidence up by 0.05, clamped to [0, 1]. Duplicate query tokens count
// once; partial-word matches do not count.
func (s *Service) rerankMock(query string, candidates []types.ContextCandidate, topK int) ([]types.ContextCandidate, Metadata) {
	queryTerms := termSet(query)

	reranked := make([]types.ContextCandidate, 0, len(candidates))
	for _, c := range candidates {
		contentTerms := termSet(c.Content)
		overlap := 0
		for term := range queryTerms {
			if _, ok := contentTerms[term]; ok {
				overlap++
			}
		}
		score := clamp01(c.Confidence + float64(overlap)*0.05)
		reranked = append(reranked, adjusted(c, score))
	}

	sortByConfidence(reranked)
	if len(reranked) > topK {
		reranked = reranked[:topK]
	}
	return reranked, Metadata{Type: TypeMock, RealRerank: false}
}

func termSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, term := range strings.Fields(strings.ToLower(text)) {
		set[term] = struct{}{}
	}
	return set
}

func adjusted(c types.ContextCandidate, score float64) types.ContextCandidate {
	meta := make(map[string]any, len(c.Metadata)+2)
	for k, v := range c.Metadata {
		meta[k] = v
	}
	meta["rerank_adjusted"] = true
	meta["original_confidence"] = c.Confidence
	c.Metadata = meta
	c.Confidence = score
	return c
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

func sortByConfidence(candidates []types.ContextCandidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Confidence > candidates[j].Confidence
	})
}
