package recall

import (
	"context"
	"sync"

	"github.com/secondbrain/recall/pkg/types"
)

// ProviderComparison is one provider's answer to a comparison query.
type ProviderComparison struct {
	Provider       string                   `json:"provider"`
	Candidates     []types.ContextCandidate `json:"candidates"`
	TopConfidence  float64                  `json:"top_confidence"`
	CandidateCount int                      `json:"candidate_count"`
	Metadata       map[string]any           `json:"metadata,omitempty"`
}

// CompareProviders runs the same query against every named provider in
// parallel. Each provider gets its own service and timeout; one provider's
// failure or slowness never affects the others. Results come back in the
// order providers were given.
func (o *Orchestrator) CompareProviders(ctx context.Context, query string, providers []string, topK int) []ProviderComparison {
	if topK < 1 {
		topK = o.cfg.Defaults.TopK
	}

	results := make([]ProviderComparison, len(providers))
	var wg sync.WaitGroup
	for i, provider := range providers {
		wg.Add(1)
		go func(slot int, provider string) {
			defer wg.Done()

			svc := o.Service(provider)
			found, meta := svc.Search(ctx, query, topK)
			candidates := toCandidates(found)

			comparison := ProviderComparison{
				Provider:       svc.Provider(),
				Candidates:     candidates,
				CandidateCount: len(candidates),
				Metadata:       meta.Map(),
			}
			if len(candidates) > 0 {
				comparison.TopConfidence = candidates[0].Confidence
			}
			results[slot] = comparison
		}(i, provider)
	}
	wg.Wait()
	return results
}
