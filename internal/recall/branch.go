package recall

import (
	"fmt"
	"time"

	"github.com/secondbrain/recall/pkg/types"
)

// DetermineBranch classifies retrieval candidates into a branch and emits the
// packet plus next action for it. Candidates must already be sorted by
// confidence descending. CHANNEL_MISMATCH is never classified here; it exists
// only as a forced validation branch.
func DetermineBranch(candidates []types.ContextCandidate, threshold float64, rerankBypassed bool, provider string, rerankApplied bool) (types.ContextPacket, types.NextAction) {
	if len(candidates) == 0 {
		return emitEmptySet(provider)
	}

	topConfidence := candidates[0].Confidence

	// Low confidence wins over the bypass branch.
	if topConfidence < threshold {
		return emitLowConfidence(candidates, topConfidence, threshold, provider)
	}

	if rerankBypassed && provider == "mem0" {
		return emitRerankBypassed(candidates, threshold, provider)
	}

	return emitSuccess(candidates, provider, rerankApplied)
}

func emitEmptySet(provider string) (types.ContextPacket, types.NextAction) {
	packet := types.ContextPacket{
		Candidates: []types.ContextCandidate{},
		Summary: types.ConfidenceSummary{
			TopConfidence:  0,
			CandidateCount: 0,
			ThresholdMet:   false,
			Branch:         types.BranchEmptySet,
		},
		Provider:  provider,
		Timestamp: time.Now().UTC(),
	}
	action := types.NextAction{
		Action:     types.ActionFallback,
		Reason:     "No context candidates retrieved from any provider",
		BranchCode: types.BranchEmptySet,
		Suggestion: "Ask user to rephrase query or provide more context",
	}
	return packet, action
}

func emitLowConfidence(candidates []types.ContextCandidate, topConfidence, threshold float64, provider string) (types.ContextPacket, types.NextAction) {
	packet := types.ContextPacket{
		Candidates: candidates,
		Summary: types.ConfidenceSummary{
			TopConfidence:  topConfidence,
			CandidateCount: len(candidates),
			ThresholdMet:   false,
			Branch:         types.BranchLowConfidence,
		},
		Provider:  provider,
		Timestamp: time.Now().UTC(),
	}
	action := types.NextAction{
		Action:     types.ActionClarify,
		Reason:     fmt.Sprintf("Top confidence %.2f below threshold %.2f", topConfidence, threshold),
		BranchCode: types.BranchLowConfidence,
		Suggestion: "Request clarification on query intent or narrow scope",
	}
	return packet, action
}

func emitRerankBypassed(candidates []types.ContextCandidate, threshold float64, provider string) (types.ContextPacket, types.NextAction) {
	topConfidence := 0.0
	if len(candidates) > 0 {
		topConfidence = candidates[0].Confidence
	}
	packet := types.ContextPacket{
		Candidates: candidates,
		Summary: types.ConfidenceSummary{
			TopConfidence:  topConfidence,
			CandidateCount: len(candidates),
			ThresholdMet:   topConfidence >= threshold,
			Branch:         types.BranchRerankBypassed,
		},
		Provider: provider,
		// Provider-native rerank counts as applied.
		RerankApplied: true,
		Timestamp:     time.Now().UTC(),
	}
	action := types.NextAction{
		Action:     types.ActionProceed,
		Reason:     "Provider-native rerank applied, external rerank bypassed per policy",
		BranchCode: types.BranchRerankBypassed,
	}
	return packet, action
}

func emitSuccess(candidates []types.ContextCandidate, provider string, rerankApplied bool) (types.ContextPacket, types.NextAction) {
	topConfidence := 0.0
	if len(candidates) > 0 {
		topConfidence = candidates[0].Confidence
	}
	packet := types.ContextPacket{
		Candidates: candidates,
		Summary: types.ConfidenceSummary{
			TopConfidence:  topConfidence,
			CandidateCount: len(candidates),
			ThresholdMet:   true,
			Branch:         types.BranchSuccess,
		},
		Provider:      provider,
		RerankApplied: rerankApplied,
		Timestamp:     time.Now().UTC(),
	}
	action := types.NextAction{
		Action:     types.ActionProceed,
		Reason:     fmt.Sprintf("Retrieved %d high-confidence candidates", len(candidates)),
		BranchCode: types.BranchSuccess,
	}
	return packet, action
}

// emitChannelMismatch is reachable only through forced validation runs.
func emitChannelMismatch(candidates []types.ContextCandidate, provider string) (types.ContextPacket, types.NextAction) {
	topConfidence := 0.0
	if len(candidates) > 0 {
		topConfidence = candidates[0].Confidence
	}
	packet := types.ContextPacket{
		Candidates: candidates,
		Summary: types.ConfidenceSummary{
			TopConfidence:  topConfidence,
			CandidateCount: len(candidates),
			ThresholdMet:   false,
			Branch:         types.BranchChannelMismatch,
		},
		Provider:  provider,
		Timestamp: time.Now().UTC(),
	}
	action := types.NextAction{
		Action:     types.ActionEscalate,
		Reason:     "Retrieved context doesn't match expected channel",
		BranchCode: types.BranchChannelMismatch,
		Suggestion: "Escalate to human or trigger intent reclassification",
	}
	return packet, action
}
