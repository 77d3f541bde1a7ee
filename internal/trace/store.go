package trace

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

const traceSchema = `
CREATE TABLE IF NOT EXISTS retrieval_traces (
	trace_id          TEXT PRIMARY KEY,
	query             TEXT NOT NULL,
	mode              TEXT NOT NULL,
	top_k             INTEGER NOT NULL,
	threshold         REAL NOT NULL,
	selected_provider TEXT NOT NULL,
	feature_flags     TEXT,
	provider_status   TEXT,
	candidate_count   INTEGER NOT NULL,
	top_confidence    REAL NOT NULL,
	rerank_type       TEXT,
	branch_code       TEXT NOT NULL,
	action            TEXT NOT NULL,
	validation_mode   INTEGER NOT NULL DEFAULT 0,
	forced_branch     TEXT,
	duration_ms       REAL NOT NULL,
	created_at        DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_traces_created_at ON retrieval_traces(created_at);
`

// Store persists traces to SQLite. Save failures are logged, never surfaced:
// tracing must not fail a request.
type Store struct {
	db *sql.DB
}

// NewStore opens (creating if needed) the trace database at path.
func NewStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create trace db directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace db: %w", err)
	}
	if _, err := db.Exec(traceSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create trace schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Save writes one trace.
func (s *Store) Save(t RetrievalTrace) {
	flags, _ := json.Marshal(t.FeatureFlags)
	status, _ := json.Marshal(t.ProviderStatus)

	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO retrieval_traces (
			trace_id, query, mode, top_k, threshold, selected_provider,
			feature_flags, provider_status, candidate_count, top_confidence,
			rerank_type, branch_code, action, validation_mode, forced_branch,
			duration_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TraceID, t.Query, t.Mode, t.TopK, t.Threshold, t.SelectedProvider,
		string(flags), string(status), t.CandidateCount, t.TopConfidence,
		t.RerankType, t.BranchCode, t.Action, boolToInt(t.ValidationMode),
		t.ForcedBranch, t.DurationMS, t.CreatedAt,
	)
	if err != nil {
		log.Printf("Warning: failed to persist trace %s: %v", t.TraceID, err)
	}
}

// Latest returns up to n most recent persisted traces, newest first.
func (s *Store) Latest(n int) ([]RetrievalTrace, error) {
	if n <= 0 {
		n = defaultMaxTraces
	}
	rows, err := s.db.Query(`
		SELECT trace_id, query, mode, top_k, threshold, selected_provider,
			feature_flags, provider_status, candidate_count, top_confidence,
			rerank_type, branch_code, action, validation_mode, forced_branch,
			duration_ms, created_at
		FROM retrieval_traces
		ORDER BY created_at DESC
		LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query traces: %w", err)
	}
	defer rows.Close()

	var traces []RetrievalTrace
	for rows.Next() {
		var t RetrievalTrace
		var flags, status string
		var validation int
		if err := rows.Scan(
			&t.TraceID, &t.Query, &t.Mode, &t.TopK, &t.Threshold, &t.SelectedProvider,
			&flags, &status, &t.CandidateCount, &t.TopConfidence,
			&t.RerankType, &t.BranchCode, &t.Action, &validation, &t.ForcedBranch,
			&t.DurationMS, &t.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan trace: %w", err)
		}
		t.ValidationMode = validation != 0
		if flags != "" && flags != "null" {
			json.Unmarshal([]byte(flags), &t.FeatureFlags)
		}
		if status != "" && status != "null" {
			json.Unmarshal([]byte(status), &t.ProviderStatus)
		}
		traces = append(traces, t)
	}
	return traces, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
