// Package trace records per-request retrieval traces in a bounded in-memory
// ring, with optional SQLite persistence behind it.
package trace

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultMaxTraces = 1000

// RetrievalTrace captures the execution path of one recall request.
type RetrievalTrace struct {
	TraceID          string            `json:"trace_id"`
	Query            string            `json:"query"`
	Mode             string            `json:"mode"`
	TopK             int               `json:"top_k"`
	Threshold        float64           `json:"threshold"`
	SelectedProvider string            `json:"selected_provider"`
	FeatureFlags     map[string]bool   `json:"feature_flags,omitempty"`
	ProviderStatus   map[string]string `json:"provider_status,omitempty"`
	CandidateCount   int               `json:"candidate_count"`
	TopConfidence    float64           `json:"top_confidence"`
	RerankType       string            `json:"rerank_type"`
	BranchCode       string            `json:"branch_code"`
	Action           string            `json:"action"`
	ValidationMode   bool              `json:"validation_mode,omitempty"`
	ForcedBranch     string            `json:"forced_branch,omitempty"`
	DurationMS       float64           `json:"duration_ms"`
	CreatedAt        time.Time         `json:"created_at"`
}

// NewTraceID returns a fresh trace identifier.
func NewTraceID() string {
	return uuid.NewString()
}

// Collector is a bounded ring of recent traces. Record never blocks the
// request path; when a store is attached, persistence failures are dropped
// silently by the store itself.
type Collector struct {
	mu       sync.Mutex
	traces   []RetrievalTrace
	max      int
	store    *Store
	recorded int
}

// NewCollector creates a collector holding at most max traces in memory.
func NewCollector(max int) *Collector {
	if max <= 0 {
		max = defaultMaxTraces
	}
	return &Collector{max: max}
}

// WithStore attaches a persistent store. Recorded traces are written through.
func (c *Collector) WithStore(store *Store) *Collector {
	c.mu.Lock()
	c.store = store
	c.mu.Unlock()
	return c
}

// Record appends a trace, evicting the oldest when the ring is full.
func (c *Collector) Record(t RetrievalTrace) {
	if t.TraceID == "" {
		t.TraceID = NewTraceID()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	c.mu.Lock()
	c.traces = append(c.traces, t)
	if len(c.traces) > c.max {
		c.traces = c.traces[len(c.traces)-c.max:]
	}
	c.recorded++
	store := c.store
	c.mu.Unlock()

	if store != nil {
		store.Save(t)
	}
}

// Latest returns up to n most recent traces, newest first.
func (c *Collector) Latest(n int) []RetrievalTrace {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n <= 0 || n > len(c.traces) {
		n = len(c.traces)
	}
	out := make([]RetrievalTrace, 0, n)
	for i := len(c.traces) - 1; i >= len(c.traces)-n; i-- {
		out = append(out, c.traces[i])
	}
	return out
}

// Count returns the total number of traces recorded, including evicted ones.
func (c *Collector) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recorded
}
