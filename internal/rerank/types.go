package rerank

// Rerank type values carried in metadata. The type names the stage that
// actually scored the candidates, never the stage that was merely attempted.
const (
	TypeNone     = "none"
	TypeMock     = "mock"
	TypeExternal = "external"
)

// Bypass reasons
const (
	BypassDisabled        = "rerank_disabled"
	BypassNoCandidates    = "no_candidates"
	BypassSingleCandidate = "single_candidate"
)

// Metadata describes how a rerank call was served.
type Metadata struct {
	// Type is "none" when bypassed, "mock" for the lexical scorer, and
	// "external" only when the external model actually scored the output.
	Type         string `json:"type"`
	RealRerank   bool   `json:"real_rerank"`
	BypassReason string `json:"bypass_reason,omitempty"`
	TotalTokens  int    `json:"total_tokens,omitempty"`
	Model        string `json:"model,omitempty"`
}
