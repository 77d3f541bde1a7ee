package validation

import (
	"context"
	"sync"

	"github.com/secondbrain/recall/internal/config"
	"github.com/secondbrain/recall/internal/recall"
	"github.com/secondbrain/recall/pkg/types"
)

// Denial reasons reported by the runner.
const (
	ReasonScenarioNotFound     = "scenario_not_found"
	ReasonValidationGateDenied = "validation_gate_denied"
	ReasonOrchestratorError    = "orchestrator_error"
)

// Result is the outcome of replaying one scenario.
type Result struct {
	ScenarioID     string `json:"scenario_id"`
	Description    string `json:"description,omitempty"`
	Success        bool   `json:"success"`
	ExpectedBranch string `json:"expected_branch,omitempty"`
	ActualBranch   string `json:"actual_branch,omitempty"`
	ExpectedAction string `json:"expected_action,omitempty"`
	ActualAction   string `json:"actual_action,omitempty"`
	Match          bool   `json:"match"`
	// Forced reports that the expected branch was injected rather than
	// produced by classification.
	Forced bool `json:"forced"`
	// Gated reports an explicit denial rather than a mismatch.
	Gated  bool   `json:"gated,omitempty"`
	Reason string `json:"reason,omitempty"`
	Error  string `json:"error,omitempty"`
}

// OrchestratorRunner is the slice of the orchestrator the runner consumes.
type OrchestratorRunner interface {
	RunWithOptions(ctx context.Context, req types.RetrievalRequest, opts recall.RunOptions) (types.RetrievalResponse, error)
}

// Runner replays catalog scenarios. Each scenario runs against a fresh
// orchestrator configured with the scenario's own provider status and
// feature flags, so scenarios never interfere with each other.
type Runner struct {
	catalog *Catalog
	build   func(s Scenario) OrchestratorRunner
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithOrchestratorFactory replaces scenario orchestrator construction
// (used in tests).
func WithOrchestratorFactory(build func(s Scenario) OrchestratorRunner) RunnerOption {
	return func(r *Runner) { r.build = build }
}

// NewRunner creates a scenario runner over the catalog.
func NewRunner(cfg *config.Config, catalog *Catalog, opts ...RunnerOption) *Runner {
	r := &Runner{
		catalog: catalog,
		build: func(s Scenario) OrchestratorRunner {
			return recall.NewOrchestrator(cfg,
				recall.WithFeatureFlags(s.FeatureFlags),
				recall.WithProviderStatus(s.ProviderStatus),
			)
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Catalog exposes the scenario catalog behind the runner.
func (r *Runner) Catalog() *Catalog {
	return r.catalog
}

// ValidateBranch replays one scenario. Branch forcing happens only for
// scenarios tagged "validation", and only when debugMode is set; a tagged
// scenario without debug mode is denied explicitly, never run silently.
func (r *Runner) ValidateBranch(ctx context.Context, scenarioID string, debugMode bool) Result {
	scenario, ok := r.catalog.ByID(scenarioID)
	if !ok {
		return Result{
			ScenarioID: scenarioID,
			Success:    false,
			Reason:     ReasonScenarioNotFound,
		}
	}

	result := Result{
		ScenarioID:     scenario.ID,
		Description:    scenario.Description,
		ExpectedBranch: scenario.ExpectedBranch,
		ExpectedAction: scenario.ExpectedAction,
	}

	tagged := scenario.HasTag(TagValidation)
	if tagged && !debugMode {
		result.Gated = true
		result.Reason = ReasonValidationGateDenied
		return result
	}

	opts := recall.RunOptions{ValidationMode: true}
	if tagged && debugMode {
		opts.ForceBranch = scenario.ExpectedBranch
		result.Forced = true
	}

	resp, err := r.build(scenario).RunWithOptions(ctx, scenario.Request, opts)
	if err != nil {
		result.Reason = ReasonOrchestratorError
		result.Error = err.Error()
		return result
	}

	result.ActualBranch = resp.NextAction.BranchCode
	result.ActualAction = resp.NextAction.Action
	result.Match = result.ActualBranch == result.ExpectedBranch &&
		result.ActualAction == result.ExpectedAction
	result.Success = result.Match
	return result
}

// EvaluateAll replays every catalog scenario in parallel. Results come back
// in catalog order; one scenario's failure never affects the others.
func (r *Runner) EvaluateAll(ctx context.Context, debugMode bool) []Result {
	return r.evaluate(ctx, r.catalog.All(), debugMode)
}

// EvaluateTag replays every scenario carrying the tag, in parallel.
func (r *Runner) EvaluateTag(ctx context.Context, tag string, debugMode bool) []Result {
	return r.evaluate(ctx, r.catalog.ByTag(tag), debugMode)
}

func (r *Runner) evaluate(ctx context.Context, scenarios []Scenario, debugMode bool) []Result {
	results := make([]Result, len(scenarios))
	var wg sync.WaitGroup
	for i, s := range scenarios {
		wg.Add(1)
		go func(slot int, id string) {
			defer wg.Done()
			results[slot] = r.ValidateBranch(ctx, id, debugMode)
		}(i, s.ID)
	}
	wg.Wait()
	return results
}
