package web

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/secondbrain/recall/internal/config"
	"github.com/secondbrain/recall/internal/recall"
	"github.com/secondbrain/recall/internal/trace"
	"github.com/secondbrain/recall/internal/validation"
)

func newTestServer(t *testing.T, debugMode bool) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.DefaultConfig()
	catalog, err := validation.LoadCatalog()
	if err != nil {
		t.Fatalf("LoadCatalog failed: %v", err)
	}
	collector := trace.NewCollector(100)
	orch := recall.NewOrchestrator(cfg, recall.WithTraceRecorder(collector))
	return NewServer(orch, validation.NewRunner(cfg, catalog), collector, debugMode)
}

func doJSON(t *testing.T, s *Server, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var parsed map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &parsed); err != nil {
		t.Fatalf("failed to parse response %q: %v", w.Body.String(), err)
	}
	return w, parsed
}

func TestHandleRecall(t *testing.T) {
	t.Run("Given valid request When POST /api/recall Then envelope returned", func(t *testing.T) {
		s := newTestServer(t, false)

		w, parsed := doJSON(t, s, "POST", "/api/recall", map[string]any{
			"query": "project deadlines",
			"mode":  "conversation",
		})

		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}
		if parsed["success"] != true {
			t.Error("expected success envelope")
		}
		data := parsed["data"].(map[string]any)
		routing := data["routing_metadata"].(map[string]any)
		if routing["selected_provider"] != "mem0" {
			t.Errorf("expected mem0, got %v", routing["selected_provider"])
		}
	})

	t.Run("Given missing query When POST /api/recall Then 400", func(t *testing.T) {
		s := newTestServer(t, false)

		w, parsed := doJSON(t, s, "POST", "/api/recall", map[string]any{"mode": "fast"})

		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", w.Code)
		}
		if parsed["success"] != false {
			t.Error("expected error envelope")
		}
	})
}

func TestHandleValidate(t *testing.T) {
	t.Run("Given known scenario When POST /api/validate/:id Then result returned", func(t *testing.T) {
		s := newTestServer(t, false)

		w, parsed := doJSON(t, s, "POST", "/api/validate/S001", nil)

		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}
		data := parsed["data"].(map[string]any)
		if data["actual_branch"] != "RERANK_BYPASSED" {
			t.Errorf("unexpected branch %v", data["actual_branch"])
		}
		if parsed["success"] != true {
			t.Error("expected scenario match")
		}
	})

	t.Run("Given unknown scenario Then 404 with scenario_not_found", func(t *testing.T) {
		s := newTestServer(t, false)

		w, parsed := doJSON(t, s, "POST", "/api/validate/S999", nil)

		if w.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", w.Code)
		}
		data := parsed["data"].(map[string]any)
		if data["reason"] != "scenario_not_found" {
			t.Errorf("unexpected reason %v", data["reason"])
		}
	})

	t.Run("Given gated scenario without debug mode Then denial in result", func(t *testing.T) {
		s := newTestServer(t, false)

		_, parsed := doJSON(t, s, "POST", "/api/validate/S027", nil)

		data := parsed["data"].(map[string]any)
		if data["reason"] != "validation_gate_denied" {
			t.Errorf("expected gate denial, got %v", data["reason"])
		}
	})
}

func TestHandleScenariosAndTraces(t *testing.T) {
	t.Run("Given tag filter When GET /api/scenarios Then filtered list", func(t *testing.T) {
		s := newTestServer(t, false)

		w, parsed := doJSON(t, s, "GET", "/api/scenarios?tag=smoke", nil)

		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		if parsed["count"].(float64) != 4 {
			t.Errorf("expected 4 smoke scenarios, got %v", parsed["count"])
		}
	})

	t.Run("Given a recall request served When GET /api/traces Then trace visible", func(t *testing.T) {
		s := newTestServer(t, false)
		doJSON(t, s, "POST", "/api/recall", map[string]any{"query": "trace me"})

		w, parsed := doJSON(t, s, "GET", "/api/traces?limit=5", nil)

		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		if parsed["count"].(float64) < 1 {
			t.Error("expected at least one trace")
		}
	})
}
