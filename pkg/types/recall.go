package types

import "time"

// Retrieval mode constants
const (
	ModeFast         = "fast"
	ModeAccurate     = "accurate"
	ModeConversation = "conversation"
)

// Branch code constants. Branches are the discrete outcome categories
// the orchestrator assigns to a recall response.
const (
	BranchEmptySet        = "EMPTY_SET"
	BranchLowConfidence   = "LOW_CONFIDENCE"
	BranchChannelMismatch = "CHANNEL_MISMATCH"
	BranchRerankBypassed  = "RERANK_BYPASSED"
	BranchSuccess         = "SUCCESS"
)

// Next-action constants
const (
	ActionProceed  = "proceed"
	ActionClarify  = "clarify"
	ActionFallback = "fallback"
	ActionEscalate = "escalate"
)

// ContextCandidate represents a single retrieval candidate.
// Source must always name the provider that actually produced it.
type ContextCandidate struct {
	ID         string         `json:"id"`
	Content    string         `json:"content"`
	Source     string         `json:"source"`
	Confidence float64        `json:"confidence"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// ConfidenceSummary aggregates candidate confidence for a packet.
type ConfidenceSummary struct {
	TopConfidence  float64 `json:"top_confidence"`
	CandidateCount int     `json:"candidate_count"`
	ThresholdMet   bool    `json:"threshold_met"`
	Branch         string  `json:"branch"`
}

// ContextPacket is the complete retrieval result envelope.
type ContextPacket struct {
	Candidates    []ContextCandidate `json:"candidates"`
	Summary       ConfidenceSummary  `json:"summary"`
	Provider      string             `json:"provider"`
	RerankApplied bool               `json:"rerank_applied"`
	Timestamp     time.Time          `json:"timestamp"`
}

// NextAction is the explicit actionability indicator attached to a branch.
type NextAction struct {
	Action     string `json:"action"` // proceed, clarify, fallback, escalate
	Reason     string `json:"reason"`
	BranchCode string `json:"branch_code"`
	Suggestion string `json:"suggestion,omitempty"`
}

// RetrievalRequest is a request to the recall core.
type RetrievalRequest struct {
	Query            string  `json:"query"`
	Mode             string  `json:"mode,omitempty"` // fast, accurate, conversation
	TopK             int     `json:"top_k,omitempty"`
	Threshold        float64 `json:"threshold,omitempty"`
	ProviderOverride string  `json:"provider_override,omitempty"`
}

// RoutingMetadata describes the execution path a request actually took.
// SelectedProvider is built from the provider that was queried, never
// from the router's intended provider alone.
type RoutingMetadata struct {
	SelectedProvider       string            `json:"selected_provider"`
	Mode                   string            `json:"mode"`
	SkipExternalRerank     bool              `json:"skip_external_rerank"`
	RerankType             string            `json:"rerank_type"`
	RerankBypassReason     string            `json:"rerank_bypass_reason,omitempty"`
	FeatureFlagsSnapshot   map[string]bool   `json:"feature_flags_snapshot,omitempty"`
	ProviderStatusSnapshot map[string]string `json:"provider_status_snapshot,omitempty"`
	ProviderMetadata       map[string]any    `json:"provider_metadata,omitempty"`
	ValidationMode         bool              `json:"validation_mode,omitempty"`
	ForcedBranch           string            `json:"forced_branch,omitempty"`
	TraceID                string            `json:"trace_id,omitempty"`
}

// RetrievalResponse is the full contract envelope returned by the orchestrator.
type RetrievalResponse struct {
	ContextPacket   ContextPacket   `json:"context_packet"`
	NextAction      NextAction      `json:"next_action"`
	RoutingMetadata RoutingMetadata `json:"routing_metadata"`
}
