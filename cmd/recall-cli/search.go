package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/secondbrain/recall/internal/recall"
	"github.com/secondbrain/recall/internal/trace"
	"github.com/secondbrain/recall/pkg/types"
)

var (
	searchMode      string
	searchTopK      int
	searchThreshold float64
	searchProvider  string
	searchJSON      bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Run one recall request and show the branch outcome",
	Long: `Run a retrieval request through routing, search, rerank, and branch
classification.

Examples:
  recall-cli search "project deadlines"
  recall-cli search "quarterly report" --mode fast --top-k 3
  recall-cli search "meeting notes" --provider supabase --json`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVarP(&searchMode, "mode", "m", "", "retrieval mode (fast, accurate, conversation)")
	searchCmd.Flags().IntVarP(&searchTopK, "top-k", "k", 0, "maximum candidates")
	searchCmd.Flags().Float64VarP(&searchThreshold, "threshold", "t", 0, "confidence threshold")
	searchCmd.Flags().StringVarP(&searchProvider, "provider", "p", "", "provider override (mem0, supabase, graphiti)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output as JSON")
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	orch := recall.NewOrchestrator(cfg,
		recall.WithTraceRecorder(trace.NewCollector(cfg.Trace.MaxTraces)),
	)

	resp, err := orch.Run(context.Background(), types.RetrievalRequest{
		Query:            args[0],
		Mode:             searchMode,
		TopK:             searchTopK,
		Threshold:        searchThreshold,
		ProviderOverride: searchProvider,
	})
	if err != nil {
		return fmt.Errorf("recall failed: %w", err)
	}

	if searchJSON {
		data, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	printResponse(resp)
	return nil
}

func printResponse(resp types.RetrievalResponse) {
	meta := resp.RoutingMetadata
	summary := resp.ContextPacket.Summary

	fmt.Printf("Branch: %s (%s)\n", resp.NextAction.BranchCode, resp.NextAction.Action)
	fmt.Printf("Provider: %s | rerank: %s", meta.SelectedProvider, meta.RerankType)
	if meta.RerankBypassReason != "" {
		fmt.Printf(" (%s)", meta.RerankBypassReason)
	}
	fmt.Println()
	fmt.Printf("Candidates: %d | top confidence: %.2f\n", summary.CandidateCount, summary.TopConfidence)
	fmt.Printf("Reason: %s\n", resp.NextAction.Reason)
	if resp.NextAction.Suggestion != "" {
		fmt.Printf("Suggestion: %s\n", resp.NextAction.Suggestion)
	}
	fmt.Println()

	for i, c := range resp.ContextPacket.Candidates {
		content := strings.ReplaceAll(c.Content, "\n", " ")
		if len(content) > 200 {
			content = content[:200] + "..."
		}
		fmt.Printf("%d. [%.2f] %s\n   %s\n", i+1, c.Confidence, c.ID, content)
	}
}
