package config

// Config is the full recall configuration. It is loaded once at startup
// and treated as read-only afterwards; credentials are passed explicitly
// into provider clients rather than through process environment state.
type Config struct {
	Version string `yaml:"version" mapstructure:"version"`

	// Retrieval defaults
	Defaults DefaultsConfig `yaml:"defaults" mapstructure:"defaults"`

	// Provider configuration
	Mem0     Mem0Config     `yaml:"mem0" mapstructure:"mem0"`
	Supabase SupabaseConfig `yaml:"supabase" mapstructure:"supabase"`

	// Rerank configuration
	Rerank RerankConfig `yaml:"rerank" mapstructure:"rerank"`

	// Feature flags consulted by the router
	FeatureFlags map[string]bool `yaml:"feature_flags" mapstructure:"feature_flags"`

	// Trace configuration
	Trace TraceConfig `yaml:"trace" mapstructure:"trace"`
}

// DefaultsConfig holds per-request defaults.
type DefaultsConfig struct {
	Mode      string  `yaml:"mode" mapstructure:"mode"`
	TopK      int     `yaml:"top_k" mapstructure:"top_k"`
	Threshold float64 `yaml:"threshold" mapstructure:"threshold"`
	// TimeoutMS bounds each external provider call, not the whole request.
	TimeoutMS int `yaml:"timeout_ms" mapstructure:"timeout_ms"`
}

// Mem0Config configures the Mem0 memory provider.
type Mem0Config struct {
	UseRealProvider bool   `yaml:"use_real_provider" mapstructure:"use_real_provider"`
	APIKey          string `yaml:"api_key" mapstructure:"api_key"`
	UserID          string `yaml:"user_id" mapstructure:"user_id"`
	BaseURL         string `yaml:"base_url" mapstructure:"base_url"`
}

// SupabaseConfig configures the Supabase pgvector provider.
type SupabaseConfig struct {
	UseRealProvider bool   `yaml:"use_real_provider" mapstructure:"use_real_provider"`
	URL             string `yaml:"url" mapstructure:"url"`
	Key             string `yaml:"key" mapstructure:"key"`
	// Voyage embedding settings for the query-embedding step
	VoyageAPIKey     string `yaml:"voyage_api_key" mapstructure:"voyage_api_key"`
	VoyageEmbedModel string `yaml:"voyage_embed_model" mapstructure:"voyage_embed_model"`
	VoyageBaseURL    string `yaml:"voyage_base_url" mapstructure:"voyage_base_url"`
}

// RerankConfig configures the rerank service.
type RerankConfig struct {
	Enabled       bool   `yaml:"enabled" mapstructure:"enabled"`
	Model         string `yaml:"model" mapstructure:"model"`
	UseRealRerank bool   `yaml:"use_real_rerank" mapstructure:"use_real_rerank"`
	VoyageAPIKey  string `yaml:"voyage_api_key" mapstructure:"voyage_api_key"`
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
}

// TraceConfig configures retrieval trace collection.
type TraceConfig struct {
	Enabled   bool   `yaml:"enabled" mapstructure:"enabled"`
	MaxTraces int    `yaml:"max_traces" mapstructure:"max_traces"`
	DBPath    string `yaml:"db_path" mapstructure:"db_path"`
}
