// Package recall implements the recall orchestrator: route a request to a
// provider, search the provider-consistent memory service, rerank, classify
// the outcome into a branch, and report the path actually taken.
package recall

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/secondbrain/recall/internal/config"
	"github.com/secondbrain/recall/internal/memory"
	"github.com/secondbrain/recall/internal/rerank"
	"github.com/secondbrain/recall/internal/router"
	"github.com/secondbrain/recall/internal/trace"
	"github.com/secondbrain/recall/pkg/types"
)

// ErrProviderConsistency reports that the resolved memory service is bound
// to a different provider than the router selected. It is the only failure
// the orchestrator surfaces; everything else degrades.
var ErrProviderConsistency = errors.New("provider consistency violation")

// Bypass reasons recorded when the external rerank stage is skipped before
// the rerank service is even consulted.
const (
	bypassMem0Policy     = "mem0-default-policy"
	bypassRerankDisabled = "external_rerank_disabled"
)

// MemoryService is the provider-bound search service consumed by the
// orchestrator.
type MemoryService interface {
	Provider() string
	Search(ctx context.Context, query string, topK int) ([]memory.MemorySearchResult, memory.SearchMetadata)
	SetMockData(results []memory.MemorySearchResult)
	ClearMockData()
}

// Reranker reorders candidates for a query.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []types.ContextCandidate, topK int) ([]types.ContextCandidate, rerank.Metadata)
}

// TraceRecorder receives one trace per completed request.
type TraceRecorder interface {
	Record(t trace.RetrievalTrace)
}

// RunOptions carries validation-only execution options.
type RunOptions struct {
	// ValidationMode marks the run as a validation replay in metadata and
	// traces.
	ValidationMode bool
	// ForceBranch overrides branch classification with the named branch.
	// Only the validation runner sets this, and only behind its debug gate.
	ForceBranch string
}

// Orchestrator coordinates routing, retrieval, rerank, and branch policy.
// Memory services are cached per provider and immutable once bound.
type Orchestrator struct {
	cfg            *config.Config
	reranker       Reranker
	featureFlags   map[string]bool
	providerStatus map[string]string
	traces         TraceRecorder

	mu         sync.Mutex
	services   map[string]MemoryService
	newService func(provider string) MemoryService
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithFeatureFlags replaces the feature-flag set.
func WithFeatureFlags(flags map[string]bool) Option {
	return func(o *Orchestrator) { o.featureFlags = flags }
}

// WithProviderStatus replaces the provider health snapshot.
func WithProviderStatus(status map[string]string) Option {
	return func(o *Orchestrator) { o.providerStatus = status }
}

// WithTraceRecorder attaches a trace recorder.
func WithTraceRecorder(tr TraceRecorder) Option {
	return func(o *Orchestrator) { o.traces = tr }
}

// WithReranker replaces the rerank service (used in tests).
func WithReranker(r Reranker) Option {
	return func(o *Orchestrator) { o.reranker = r }
}

// WithServiceFactory replaces the memory service factory (used in tests).
func WithServiceFactory(factory func(provider string) MemoryService) Option {
	return func(o *Orchestrator) { o.newService = factory }
}

// NewOrchestrator builds an orchestrator from configuration. Feature flags
// from the config are merged over the defaults; absent providers default to
// available.
func NewOrchestrator(cfg *config.Config, opts ...Option) *Orchestrator {
	flags := config.DefaultFeatureFlags()
	for k, v := range cfg.FeatureFlags {
		flags[k] = v
	}

	o := &Orchestrator{
		cfg:            cfg,
		reranker:       rerank.NewService(cfg.Rerank),
		featureFlags:   flags,
		providerStatus: config.DefaultProviderStatus(),
		services:       map[string]MemoryService{},
	}
	o.newService = func(provider string) MemoryService {
		return memory.NewService(provider, cfg)
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Service returns the memory service bound to provider, constructing and
// caching it on first use.
func (o *Orchestrator) Service(provider string) MemoryService {
	o.mu.Lock()
	defer o.mu.Unlock()
	if svc, ok := o.services[provider]; ok {
		return svc
	}
	svc := o.newService(provider)
	o.services[provider] = svc
	return svc
}

// Run executes one recall request.
func (o *Orchestrator) Run(ctx context.Context, req types.RetrievalRequest) (types.RetrievalResponse, error) {
	return o.RunWithOptions(ctx, req, RunOptions{})
}

// RunWithOptions executes one recall request with validation options. The
// routing metadata's SelectedProvider is always taken from the resolved
// service, never from the routing decision alone.
func (o *Orchestrator) RunWithOptions(ctx context.Context, req types.RetrievalRequest, opts RunOptions) (types.RetrievalResponse, error) {
	started := time.Now()
	req = o.normalize(req)
	traceID := trace.NewTraceID()

	decision := router.Route(req, o.providerStatus, o.featureFlags)

	if decision.Provider == router.ProviderNone {
		packet, action := emitEmptySet(router.ProviderNone)
		resp := types.RetrievalResponse{
			ContextPacket: packet,
			NextAction:    action,
			RoutingMetadata: o.buildMetadata(router.ProviderNone, req, decision.Options,
				rerank.Metadata{Type: rerank.TypeNone, BypassReason: rerank.BypassNoCandidates},
				memory.SearchMetadata{Provider: router.ProviderNone}, opts, traceID),
		}
		o.recordTrace(req, resp, opts, started)
		return resp, nil
	}

	svc := o.Service(decision.Provider)
	if svc.Provider() != decision.Provider {
		return types.RetrievalResponse{}, fmt.Errorf(
			"%w: routed to %q but service bound to %q",
			ErrProviderConsistency, decision.Provider, svc.Provider())
	}

	results, searchMeta := svc.Search(ctx, req.Query, req.TopK)
	candidates := toCandidates(results)

	candidates, rerankMeta := o.rerankStage(ctx, req, decision.Options, candidates)

	var packet types.ContextPacket
	var action types.NextAction
	if opts.ForceBranch != "" {
		packet, action = forceBranch(opts.ForceBranch, candidates, req.Threshold, svc.Provider())
	} else {
		rerankApplied := rerankMeta.Type == rerank.TypeMock || rerankMeta.Type == rerank.TypeExternal
		packet, action = DetermineBranch(candidates, req.Threshold, decision.Options.SkipExternalRerank, svc.Provider(), rerankApplied)
	}

	resp := types.RetrievalResponse{
		ContextPacket:   packet,
		NextAction:      action,
		RoutingMetadata: o.buildMetadata(svc.Provider(), req, decision.Options, rerankMeta, searchMeta, opts, traceID),
	}
	o.recordTrace(req, resp, opts, started)
	return resp, nil
}

// rerankStage applies the external rerank policy: skip entirely for
// provider-native rerank or when the feature flag disables the stage,
// otherwise delegate to the rerank service.
func (o *Orchestrator) rerankStage(ctx context.Context, req types.RetrievalRequest, routeOpts router.RouteOptions, candidates []types.ContextCandidate) ([]types.ContextCandidate, rerank.Metadata) {
	if routeOpts.SkipExternalRerank {
		return candidates, rerank.Metadata{Type: rerank.TypeNone, BypassReason: bypassMem0Policy}
	}
	if enabled, ok := o.featureFlags["external_rerank_enabled"]; ok && !enabled {
		return candidates, rerank.Metadata{Type: rerank.TypeNone, BypassReason: bypassRerankDisabled}
	}
	return o.reranker.Rerank(ctx, req.Query, candidates, req.TopK)
}

func (o *Orchestrator) normalize(req types.RetrievalRequest) types.RetrievalRequest {
	if req.Mode == "" {
		req.Mode = o.cfg.Defaults.Mode
	}
	if req.TopK < 1 {
		req.TopK = o.cfg.Defaults.TopK
	}
	if req.TopK < 1 {
		req.TopK = 1
	}
	if req.Threshold <= 0 {
		req.Threshold = o.cfg.Defaults.Threshold
	}
	if req.Threshold > 1 {
		req.Threshold = 1
	}
	return req
}

func (o *Orchestrator) buildMetadata(provider string, req types.RetrievalRequest, routeOpts router.RouteOptions, rerankMeta rerank.Metadata, searchMeta memory.SearchMetadata, opts RunOptions, traceID string) types.RoutingMetadata {
	return types.RoutingMetadata{
		SelectedProvider:       provider,
		Mode:                   req.Mode,
		SkipExternalRerank:     routeOpts.SkipExternalRerank,
		RerankType:             rerankMeta.Type,
		RerankBypassReason:     rerankMeta.BypassReason,
		FeatureFlagsSnapshot:   copyFlags(o.featureFlags),
		ProviderStatusSnapshot: copyStatus(o.providerStatus),
		ProviderMetadata:       searchMeta.Map(),
		ValidationMode:         opts.ValidationMode,
		ForcedBranch:           opts.ForceBranch,
		TraceID:                traceID,
	}
}

func (o *Orchestrator) recordTrace(req types.RetrievalRequest, resp types.RetrievalResponse, opts RunOptions, started time.Time) {
	if o.traces == nil {
		return
	}
	o.traces.Record(trace.RetrievalTrace{
		TraceID:          resp.RoutingMetadata.TraceID,
		Query:            req.Query,
		Mode:             req.Mode,
		TopK:             req.TopK,
		Threshold:        req.Threshold,
		SelectedProvider: resp.RoutingMetadata.SelectedProvider,
		FeatureFlags:     resp.RoutingMetadata.FeatureFlagsSnapshot,
		ProviderStatus:   resp.RoutingMetadata.ProviderStatusSnapshot,
		CandidateCount:   resp.ContextPacket.Summary.CandidateCount,
		TopConfidence:    resp.ContextPacket.Summary.TopConfidence,
		RerankType:       resp.RoutingMetadata.RerankType,
		BranchCode:       resp.NextAction.BranchCode,
		Action:           resp.NextAction.Action,
		ValidationMode:   opts.ValidationMode,
		ForcedBranch:     opts.ForceBranch,
		DurationMS:       float64(time.Since(started).Microseconds()) / 1000.0,
	})
}

// forceBranch emits the named branch regardless of what retrieval produced.
// Unknown branch codes emit the natural classification instead.
func forceBranch(branch string, candidates []types.ContextCandidate, threshold float64, provider string) (types.ContextPacket, types.NextAction) {
	topConfidence := 0.0
	if len(candidates) > 0 {
		topConfidence = candidates[0].Confidence
	}

	switch branch {
	case types.BranchEmptySet:
		return emitEmptySet(provider)
	case types.BranchLowConfidence:
		return emitLowConfidence(candidates, topConfidence, threshold, provider)
	case types.BranchChannelMismatch:
		return emitChannelMismatch(candidates, provider)
	case types.BranchRerankBypassed:
		return emitRerankBypassed(candidates, threshold, provider)
	case types.BranchSuccess:
		return emitSuccess(candidates, provider, false)
	}
	return DetermineBranch(candidates, threshold, false, provider, false)
}

func toCandidates(results []memory.MemorySearchResult) []types.ContextCandidate {
	candidates := make([]types.ContextCandidate, len(results))
	for i, r := range results {
		candidates[i] = types.ContextCandidate{
			ID:         r.ID,
			Content:    r.Content,
			Source:     r.Source,
			Confidence: r.Confidence,
			Metadata:   r.Metadata,
		}
	}
	return candidates
}

func copyFlags(flags map[string]bool) map[string]bool {
	out := make(map[string]bool, len(flags))
	for k, v := range flags {
		out[k] = v
	}
	return out
}

func copyStatus(status map[string]string) map[string]string {
	out := make(map[string]string, len(status))
	for k, v := range status {
		out[k] = v
	}
	return out
}
