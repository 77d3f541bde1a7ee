package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/secondbrain/recall/internal/config"
	"github.com/secondbrain/recall/internal/recall"
	"github.com/secondbrain/recall/internal/trace"
	"github.com/secondbrain/recall/internal/validation"
)

func newTestServer(t *testing.T, debugMode bool) (*Server, *bytes.Buffer) {
	t.Helper()
	cfg := config.DefaultConfig()
	catalog, err := validation.LoadCatalog()
	if err != nil {
		t.Fatalf("LoadCatalog failed: %v", err)
	}
	srv := NewServer(
		recall.NewOrchestrator(cfg),
		validation.NewRunner(cfg, catalog),
		trace.NewCollector(10),
		debugMode,
	)
	out := &bytes.Buffer{}
	srv.out = out
	return srv, out
}

func runRequests(t *testing.T, srv *Server, out *bytes.Buffer, requests ...string) []MCPResponse {
	t.Helper()
	srv.in = strings.NewReader(strings.Join(requests, "\n") + "\n")
	if err := srv.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	var responses []MCPResponse
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		if line == "" {
			continue
		}
		var resp MCPResponse
		if err := json.Unmarshal([]byte(line), &resp); err != nil {
			t.Fatalf("failed to parse response %q: %v", line, err)
		}
		responses = append(responses, resp)
	}
	return responses
}

func toolText(t *testing.T, resp MCPResponse) string {
	t.Helper()
	raw, err := json.Marshal(resp.Result)
	if err != nil {
		t.Fatalf("failed to remarshal result: %v", err)
	}
	var result CallToolResult
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatalf("failed to parse tool result: %v", err)
	}
	if len(result.Content) == 0 {
		t.Fatal("expected tool content")
	}
	return result.Content[0].Text
}

func TestServer_Protocol(t *testing.T) {
	t.Run("Given initialize and tools list Then server describes four tools", func(t *testing.T) {
		srv, out := newTestServer(t, false)

		responses := runRequests(t, srv, out,
			`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`,
			`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`,
		)

		if len(responses) != 2 {
			t.Fatalf("expected 2 responses, got %d", len(responses))
		}
		listJSON, _ := json.Marshal(responses[1].Result)
		var list ListToolsResult
		if err := json.Unmarshal(listJSON, &list); err != nil {
			t.Fatalf("failed to parse tools list: %v", err)
		}
		if len(list.Tools) != 4 {
			t.Errorf("expected 4 tools, got %d", len(list.Tools))
		}
	})

	t.Run("Given unknown method Then method-not-found error", func(t *testing.T) {
		srv, out := newTestServer(t, false)

		responses := runRequests(t, srv, out, `{"jsonrpc":"2.0","id":1,"method":"bogus"}`)

		if responses[0].Error == nil || responses[0].Error.Code != -32601 {
			t.Errorf("expected -32601, got %+v", responses[0].Error)
		}
	})
}

func TestServer_Tools(t *testing.T) {
	t.Run("Given recall_search call Then returns full retrieval envelope", func(t *testing.T) {
		srv, out := newTestServer(t, false)

		responses := runRequests(t, srv, out,
			`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"recall_search","arguments":{"query":"project deadlines","mode":"conversation"}}}`,
		)

		text := toolText(t, responses[0])
		var envelope struct {
			NextAction struct {
				BranchCode string `json:"branch_code"`
			} `json:"next_action"`
			RoutingMetadata struct {
				SelectedProvider string `json:"selected_provider"`
			} `json:"routing_metadata"`
		}
		if err := json.Unmarshal([]byte(text), &envelope); err != nil {
			t.Fatalf("failed to parse envelope: %v", err)
		}
		if envelope.RoutingMetadata.SelectedProvider != "mem0" {
			t.Errorf("expected mem0, got %q", envelope.RoutingMetadata.SelectedProvider)
		}
		if envelope.NextAction.BranchCode != "RERANK_BYPASSED" {
			t.Errorf("expected RERANK_BYPASSED, got %q", envelope.NextAction.BranchCode)
		}
	})

	t.Run("Given validate_branch on gated scenario without debug Then denial surfaces", func(t *testing.T) {
		srv, out := newTestServer(t, false)

		responses := runRequests(t, srv, out,
			`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"validate_branch","arguments":{"scenario_id":"S027"}}}`,
		)

		text := toolText(t, responses[0])
		if !strings.Contains(text, validation.ReasonValidationGateDenied) {
			t.Errorf("expected gate denial in %q", text)
		}
	})

	t.Run("Given validate_branch with debug mode Then forced scenario succeeds", func(t *testing.T) {
		srv, out := newTestServer(t, true)

		responses := runRequests(t, srv, out,
			`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"validate_branch","arguments":{"scenario_id":"S027"}}}`,
		)

		text := toolText(t, responses[0])
		if !strings.Contains(text, `"success":true`) || !strings.Contains(text, `"forced":true`) {
			t.Errorf("expected forced success in %q", text)
		}
	})

	t.Run("Given list_scenarios with tag Then only tagged scenarios listed", func(t *testing.T) {
		srv, out := newTestServer(t, false)

		responses := runRequests(t, srv, out,
			`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"list_scenarios","arguments":{"tag":"smoke"}}}`,
		)

		text := toolText(t, responses[0])
		if !strings.Contains(text, `"count":4`) {
			t.Errorf("expected 4 smoke scenarios in %q", text)
		}
	})
}
