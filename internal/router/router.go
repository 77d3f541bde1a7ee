// Package router selects a retrieval provider for a request.
//
// Routing is a pure function of the request, the provider health snapshot,
// and the feature-flag set: identical inputs always produce identical
// decisions, which is what makes validation scenarios replayable. The router
// never touches the memory or rerank providers; it only decides.
package router

import "github.com/secondbrain/recall/pkg/types"

// Provider status values as reported by health snapshots.
const (
	StatusAvailable   = "available"
	StatusUnavailable = "unavailable"
	StatusDegraded    = "degraded"
)

// ProviderNone is the decision when nothing is routable.
const ProviderNone = "none"

// providerPriority is the fixed tie-break order used whenever several
// providers are healthy. Deterministic by construction.
var providerPriority = []string{"mem0", "supabase", "graphiti"}

// RouteOptions carries execution options attached to a decision.
type RouteOptions struct {
	// SkipExternalRerank is set when the selected provider applies its own
	// native rerank (mem0 policy) and the external rerank stage should be
	// bypassed.
	SkipExternalRerank bool
}

// RouteDecision is the router's output for one request. It is produced once
// and consumed exactly once by the orchestrator.
type RouteDecision struct {
	Provider string
	Options  RouteOptions
}

// EnabledProviders returns the providers enabled via feature flags, in
// priority order. mem0 and supabase default on, graphiti defaults off.
func EnabledProviders(featureFlags map[string]bool) []string {
	var enabled []string
	if flagOn(featureFlags, "mem0_enabled", true) {
		enabled = append(enabled, "mem0")
	}
	if flagOn(featureFlags, "supabase_enabled", true) {
		enabled = append(enabled, "supabase")
	}
	if flagOn(featureFlags, "graphiti_enabled", false) {
		enabled = append(enabled, "graphiti")
	}
	return enabled
}

// Route maps a retrieval request plus provider status and feature flags to
// a route decision. Providers reported unavailable are never selected; if
// nothing qualifies the decision names ProviderNone.
func Route(req types.RetrievalRequest, providerStatus map[string]string, featureFlags map[string]bool) RouteDecision {
	enabled := EnabledProviders(featureFlags)

	// Provider override wins when the override is enabled. An override
	// naming a disabled provider falls through to normal selection.
	if req.ProviderOverride != "" && contains(enabled, req.ProviderOverride) {
		return decide(req.ProviderOverride)
	}

	if len(enabled) == 0 {
		return RouteDecision{Provider: ProviderNone}
	}

	switch req.Mode {
	case types.ModeConversation, "":
		// Prefer mem0 for conversation mode, supabase second.
		if contains(enabled, "mem0") && providerStatus["mem0"] == StatusAvailable {
			return decide("mem0")
		}
		if contains(enabled, "supabase") && providerStatus["supabase"] == StatusAvailable {
			return decide("supabase")
		}

	case types.ModeFast:
		// Single best available provider in fixed priority order.
		for _, provider := range providerPriority {
			if contains(enabled, provider) && providerStatus[provider] == StatusAvailable {
				return decide(provider)
			}
		}

	case types.ModeAccurate:
		// First enabled provider that is available.
		for _, provider := range enabled {
			if providerStatus[provider] == StatusAvailable {
				return decide(provider)
			}
		}
	}

	// Fallback: first enabled provider that is at least degraded.
	for _, provider := range enabled {
		status := providerStatus[provider]
		if status == StatusAvailable || status == StatusDegraded {
			return decide(provider)
		}
	}

	return RouteDecision{Provider: ProviderNone}
}

func decide(provider string) RouteDecision {
	return RouteDecision{
		Provider: provider,
		// mem0 applies provider-native rerank; skip the external stage.
		Options: RouteOptions{SkipExternalRerank: provider == "mem0"},
	}
}

func flagOn(flags map[string]bool, name string, def bool) bool {
	if v, ok := flags[name]; ok {
		return v
	}
	return def
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
