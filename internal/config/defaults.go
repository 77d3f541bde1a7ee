package config

// DefaultConfig returns the built-in configuration defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: "1",
		Defaults: DefaultsConfig{
			Mode:      "conversation",
			TopK:      5,
			Threshold: 0.6,
			TimeoutMS: 10000,
		},
		Mem0: Mem0Config{
			BaseURL: "https://api.mem0.ai/v1",
		},
		Supabase: SupabaseConfig{
			VoyageEmbedModel: "voyage-4-large",
		},
		Rerank: RerankConfig{
			Enabled: true,
			Model:   "rerank-2",
		},
		FeatureFlags: DefaultFeatureFlags(),
		Trace: TraceConfig{
			Enabled:   true,
			MaxTraces: 1000,
		},
	}
}

// DefaultFeatureFlags returns the default provider gating flags.
func DefaultFeatureFlags() map[string]bool {
	return map[string]bool{
		"mem0_enabled":            true,
		"supabase_enabled":        true,
		"graphiti_enabled":        false,
		"external_rerank_enabled": true,
	}
}

// DefaultProviderStatus returns a deterministic provider health snapshot.
// In production this would come from live health checks; the defaults keep
// tests and local runs reproducible.
func DefaultProviderStatus() map[string]string {
	return map[string]string{
		"mem0":     "available",
		"supabase": "available",
		"graphiti": "unavailable",
	}
}
