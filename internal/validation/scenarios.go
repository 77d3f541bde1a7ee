// Package validation replays branch scenarios against the orchestrator. The
// catalog ships embedded in the binary and is read-only; branch forcing is
// gated behind an explicit debug mode.
package validation

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/secondbrain/recall/pkg/types"
)

//go:embed scenarios.yaml
var scenarioCatalog []byte

// TagValidation marks scenarios whose expected branch can only be produced
// by forcing.
const TagValidation = "validation"

// Scenario is one replayable branch scenario.
type Scenario struct {
	ID                 string                 `yaml:"id" json:"id"`
	Description        string                 `yaml:"description" json:"description"`
	Request            types.RetrievalRequest `yaml:"-" json:"request"`
	ProviderStatus     map[string]string      `yaml:"provider_status" json:"provider_status"`
	FeatureFlags       map[string]bool        `yaml:"feature_flags" json:"feature_flags"`
	ExpectedBranch     string                 `yaml:"expected_branch" json:"expected_branch"`
	ExpectedAction     string                 `yaml:"expected_action" json:"expected_action"`
	ExpectedRerankType string                 `yaml:"expected_rerank_type" json:"expected_rerank_type"`
	Tags               []string               `yaml:"tags" json:"tags"`
	Notes              string                 `yaml:"notes" json:"notes,omitempty"`
}

// scenarioRequest mirrors the request block in the catalog; RetrievalRequest
// itself carries json tags, so the yaml shape is declared separately.
type scenarioRequest struct {
	Query     string  `yaml:"query"`
	Mode      string  `yaml:"mode"`
	TopK      int     `yaml:"top_k"`
	Threshold float64 `yaml:"threshold"`
}

// UnmarshalYAML decodes a scenario including its request block.
func (s *Scenario) UnmarshalYAML(value *yaml.Node) error {
	type scenarioAlias Scenario
	aux := struct {
		*scenarioAlias `yaml:",inline"`
		Request        scenarioRequest `yaml:"request"`
	}{scenarioAlias: (*scenarioAlias)(s)}

	if err := value.Decode(&aux); err != nil {
		return err
	}
	s.Request = types.RetrievalRequest{
		Query:     aux.Request.Query,
		Mode:      aux.Request.Mode,
		TopK:      aux.Request.TopK,
		Threshold: aux.Request.Threshold,
	}
	return nil
}

// HasTag reports whether the scenario carries the tag.
func (s *Scenario) HasTag(tag string) bool {
	for _, t := range s.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Catalog is the parsed scenario set.
type Catalog struct {
	scenarios []Scenario
	byID      map[string]int
}

// LoadCatalog parses the embedded scenario catalog.
func LoadCatalog() (*Catalog, error) {
	var parsed struct {
		Scenarios []Scenario `yaml:"scenarios"`
	}
	if err := yaml.Unmarshal(scenarioCatalog, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse scenario catalog: %w", err)
	}

	c := &Catalog{
		scenarios: parsed.Scenarios,
		byID:      make(map[string]int, len(parsed.Scenarios)),
	}
	for i, s := range parsed.Scenarios {
		if s.ID == "" {
			return nil, fmt.Errorf("scenario at index %d has no id", i)
		}
		if _, dup := c.byID[s.ID]; dup {
			return nil, fmt.Errorf("duplicate scenario id %q", s.ID)
		}
		c.byID[s.ID] = i
	}
	return c, nil
}

// All returns every scenario in catalog order.
func (c *Catalog) All() []Scenario {
	out := make([]Scenario, len(c.scenarios))
	copy(out, c.scenarios)
	return out
}

// ByID returns the scenario with the given id.
func (c *Catalog) ByID(id string) (Scenario, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Scenario{}, false
	}
	return c.scenarios[i], true
}

// ByTag returns all scenarios carrying the tag, in catalog order.
func (c *Catalog) ByTag(tag string) []Scenario {
	var out []Scenario
	for _, s := range c.scenarios {
		if s.HasTag(tag) {
			out = append(out, s)
		}
	}
	return out
}
