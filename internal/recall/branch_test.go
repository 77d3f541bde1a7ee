package recall

import (
	"strings"
	"testing"

	"github.com/secondbrain/recall/pkg/types"
)

func TestDetermineBranch(t *testing.T) {
	t.Run("Given no candidates Then EMPTY_SET with fallback action", func(t *testing.T) {
		packet, action := DetermineBranch(nil, 0.6, false, "supabase", false)

		if packet.Summary.Branch != types.BranchEmptySet {
			t.Errorf("expected EMPTY_SET, got %q", packet.Summary.Branch)
		}
		if action.Action != types.ActionFallback {
			t.Errorf("expected fallback, got %q", action.Action)
		}
		if packet.Summary.CandidateCount != 0 || packet.Summary.TopConfidence != 0 {
			t.Errorf("unexpected summary %+v", packet.Summary)
		}
	})

	t.Run("Given top below threshold Then LOW_CONFIDENCE even when rerank bypassed", func(t *testing.T) {
		candidates := []types.ContextCandidate{{ID: "a", Confidence: 0.45, Source: "mem0"}}

		packet, action := DetermineBranch(candidates, 0.6, true, "mem0", false)

		if packet.Summary.Branch != types.BranchLowConfidence {
			t.Errorf("expected LOW_CONFIDENCE, got %q", packet.Summary.Branch)
		}
		if action.Action != types.ActionClarify {
			t.Errorf("expected clarify, got %q", action.Action)
		}
		if !strings.Contains(action.Reason, "0.45") || !strings.Contains(action.Reason, "0.60") {
			t.Errorf("reason should name confidence and threshold, got %q", action.Reason)
		}
	})

	t.Run("Given bypass on mem0 with good confidence Then RERANK_BYPASSED proceeds", func(t *testing.T) {
		candidates := []types.ContextCandidate{{ID: "a", Confidence: 0.9, Source: "mem0"}}

		packet, action := DetermineBranch(candidates, 0.6, true, "mem0", false)

		if packet.Summary.Branch != types.BranchRerankBypassed {
			t.Errorf("expected RERANK_BYPASSED, got %q", packet.Summary.Branch)
		}
		if action.Action != types.ActionProceed {
			t.Errorf("expected proceed, got %q", action.Action)
		}
		if !packet.RerankApplied {
			t.Error("provider-native rerank counts as applied")
		}
		if !packet.Summary.ThresholdMet {
			t.Error("expected threshold_met")
		}
	})

	t.Run("Given bypass on non-mem0 provider Then SUCCESS not RERANK_BYPASSED", func(t *testing.T) {
		candidates := []types.ContextCandidate{{ID: "a", Confidence: 0.9, Source: "supabase"}}

		packet, _ := DetermineBranch(candidates, 0.6, true, "supabase", false)

		if packet.Summary.Branch != types.BranchSuccess {
			t.Errorf("expected SUCCESS, got %q", packet.Summary.Branch)
		}
	})

	t.Run("Given good confidence no bypass Then SUCCESS with proceed", func(t *testing.T) {
		candidates := []types.ContextCandidate{
			{ID: "a", Confidence: 0.9, Source: "supabase"},
			{ID: "b", Confidence: 0.7, Source: "supabase"},
		}

		packet, action := DetermineBranch(candidates, 0.6, false, "supabase", true)

		if packet.Summary.Branch != types.BranchSuccess {
			t.Errorf("expected SUCCESS, got %q", packet.Summary.Branch)
		}
		if !packet.RerankApplied {
			t.Error("expected rerank_applied carried through")
		}
		if !strings.Contains(action.Reason, "2") {
			t.Errorf("reason should name candidate count, got %q", action.Reason)
		}
	})
}
