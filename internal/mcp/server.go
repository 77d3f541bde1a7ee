// Package mcp exposes the recall orchestrator over a stdio JSON-RPC tool
// server.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/secondbrain/recall/internal/recall"
	"github.com/secondbrain/recall/internal/trace"
	"github.com/secondbrain/recall/internal/validation"
	"github.com/secondbrain/recall/pkg/types"
)

// Server implements the recall MCP tool server.
type Server struct {
	orchestrator *recall.Orchestrator
	runner       *validation.Runner
	traces       *trace.Collector
	// debugMode unlocks branch forcing for validation-tagged scenarios.
	debugMode bool

	in  io.Reader
	out io.Writer
}

// NewServer creates a recall MCP server on stdio.
func NewServer(orchestrator *recall.Orchestrator, runner *validation.Runner, traces *trace.Collector, debugMode bool) *Server {
	return &Server{
		orchestrator: orchestrator,
		runner:       runner,
		traces:       traces,
		debugMode:    debugMode,
		in:           os.Stdin,
		out:          os.Stdout,
	}
}

// MCP Protocol Types
type MCPRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type MCPResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *MCPError   `json:"error,omitempty"`
}

type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type InitializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	ServerInfo      ServerInfo         `json:"serverInfo"`
	Capabilities    ServerCapabilities `json:"capabilities"`
}

type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type ServerCapabilities struct {
	Tools *ToolsCapability `json:"tools,omitempty"`
}

type ToolsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

type ListToolsResult struct {
	Tools []Tool `json:"tools"`
}

type Tool struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema interface{} `json:"inputSchema"`
}

type CallToolParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

type CallToolResult struct {
	Content []ToolContent `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

type ToolContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Run starts the MCP server loop.
func (s *Server) Run(ctx context.Context) error {
	reader := bufio.NewReader(s.in)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := reader.ReadBytes('\n')
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}

		var req MCPRequest
		if err := json.Unmarshal(line, &req); err != nil {
			s.sendError(nil, -32700, "Parse error")
			continue
		}

		resp := s.handleRequest(ctx, &req)
		if resp != nil {
			if err := s.sendResponse(resp); err != nil {
				return err
			}
		}
	}
}

func (s *Server) handleRequest(ctx context.Context, req *MCPRequest) *MCPResponse {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "tools/list":
		return s.handleListTools(req)
	case "tools/call":
		return s.handleCallTool(ctx, req)
	case "notifications/initialized":
		return nil // Notification, no response
	default:
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &MCPError{Code: -32601, Message: "Method not found"},
		}
	}
}

func (s *Server) handleInitialize(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: InitializeResult{
			ProtocolVersion: "2024-11-05",
			ServerInfo: ServerInfo{
				Name:    "recall",
				Version: "1.0.0",
			},
			Capabilities: ServerCapabilities{
				Tools: &ToolsCapability{},
			},
		},
	}
}

func (s *Server) handleListTools(req *MCPRequest) *MCPResponse {
	tools := []Tool{
		{
			Name:        "recall_search",
			Description: "Retrieve context candidates for a query with routing, rerank, and branch classification",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"query": map[string]interface{}{
						"type":        "string",
						"description": "Search query",
					},
					"mode": map[string]interface{}{
						"type":        "string",
						"description": "Retrieval mode: fast, accurate, conversation",
					},
					"top_k": map[string]interface{}{
						"type":        "integer",
						"description": "Maximum candidates (default 5)",
					},
					"threshold": map[string]interface{}{
						"type":        "number",
						"description": "Confidence threshold (default 0.6)",
					},
					"provider": map[string]interface{}{
						"type":        "string",
						"description": "Provider override: mem0, supabase, graphiti",
					},
				},
				"required": []string{"query"},
			},
		},
		{
			Name:        "validate_branch",
			Description: "Replay a branch validation scenario and compare the outcome against expectations",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"scenario_id": map[string]interface{}{
						"type":        "string",
						"description": "Scenario ID, e.g. S001",
					},
				},
				"required": []string{"scenario_id"},
			},
		},
		{
			Name:        "list_scenarios",
			Description: "List validation scenarios, optionally filtered by tag",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"tag": map[string]interface{}{
						"type":        "string",
						"description": "Filter by tag: smoke, policy, edge, degraded, validation",
					},
				},
			},
		},
		{
			Name:        "get_traces",
			Description: "Get the most recent retrieval traces",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"limit": map[string]interface{}{
						"type":        "integer",
						"description": "Maximum traces (default 20)",
					},
				},
			},
		},
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result:  ListToolsResult{Tools: tools},
	}
}

func (s *Server) handleCallTool(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params CallToolParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &MCPError{Code: -32602, Message: "Invalid params"},
		}
	}

	var result interface{}
	var err error

	switch params.Name {
	case "recall_search":
		result, err = s.handleSearch(ctx, params.Arguments)
	case "validate_branch":
		result, err = s.handleValidateBranch(ctx, params.Arguments)
	case "list_scenarios":
		result, err = s.handleListScenarios(params.Arguments)
	case "get_traces":
		result, err = s.handleGetTraces(params.Arguments)
	default:
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &MCPError{Code: -32601, Message: "Unknown tool"},
		}
	}

	if err != nil {
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result: CallToolResult{
				Content: []ToolContent{{Type: "text", Text: fmt.Sprintf("Error: %v", err)}},
				IsError: true,
			},
		}
	}

	resultJSON, _ := json.Marshal(result)
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: CallToolResult{
			Content: []ToolContent{{Type: "text", Text: string(resultJSON)}},
		},
	}
}

func (s *Server) handleSearch(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	query, _ := args["query"].(string)
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}

	req := types.RetrievalRequest{Query: query}
	if mode, ok := args["mode"].(string); ok {
		req.Mode = mode
	}
	if topK, ok := args["top_k"].(float64); ok {
		req.TopK = int(topK)
	}
	if threshold, ok := args["threshold"].(float64); ok {
		req.Threshold = threshold
	}
	if provider, ok := args["provider"].(string); ok {
		req.ProviderOverride = provider
	}

	return s.orchestrator.Run(ctx, req)
}

func (s *Server) handleValidateBranch(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	scenarioID, _ := args["scenario_id"].(string)
	if scenarioID == "" {
		return nil, fmt.Errorf("scenario_id is required")
	}

	return s.runner.ValidateBranch(ctx, scenarioID, s.debugMode), nil
}

func (s *Server) handleListScenarios(args map[string]interface{}) (interface{}, error) {
	var scenarios []validation.Scenario
	if tag, ok := args["tag"].(string); ok && tag != "" {
		scenarios = s.runner.Catalog().ByTag(tag)
	} else {
		scenarios = s.runner.Catalog().All()
	}

	summaries := make([]map[string]interface{}, len(scenarios))
	for i, sc := range scenarios {
		summaries[i] = map[string]interface{}{
			"id":              sc.ID,
			"description":     sc.Description,
			"expected_branch": sc.ExpectedBranch,
			"expected_action": sc.ExpectedAction,
			"tags":            sc.Tags,
		}
	}
	return map[string]interface{}{
		"scenarios": summaries,
		"count":     len(summaries),
	}, nil
}

func (s *Server) handleGetTraces(args map[string]interface{}) (interface{}, error) {
	if s.traces == nil {
		return nil, fmt.Errorf("tracing is not enabled")
	}

	limit := 20
	if l, ok := args["limit"].(float64); ok {
		limit = int(l)
	}

	traces := s.traces.Latest(limit)
	return map[string]interface{}{
		"traces": traces,
		"count":  len(traces),
	}, nil
}

func (s *Server) sendResponse(resp *MCPResponse) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(s.out, "%s\n", data)
	return err
}

func (s *Server) sendError(id interface{}, code int, message string) error {
	return s.sendResponse(&MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &MCPError{Code: code, Message: message},
	})
}
