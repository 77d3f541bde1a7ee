package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/secondbrain/recall/internal/recall"
)

var (
	compareProviders []string
	compareTopK      int
	compareJSON      bool
)

var compareCmd = &cobra.Command{
	Use:   "compare [query]",
	Short: "Run the same query against multiple providers side by side",
	Args:  cobra.ExactArgs(1),
	RunE:  runCompare,
}

func init() {
	compareCmd.Flags().StringSliceVarP(&compareProviders, "providers", "p", []string{"mem0", "supabase"}, "providers to compare")
	compareCmd.Flags().IntVarP(&compareTopK, "top-k", "k", 0, "maximum candidates per provider")
	compareCmd.Flags().BoolVar(&compareJSON, "json", false, "output as JSON")
}

func runCompare(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	orch := recall.NewOrchestrator(cfg)
	results := orch.CompareProviders(context.Background(), args[0], compareProviders, compareTopK)

	if compareJSON {
		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	for _, r := range results {
		fmt.Printf("%s: %d candidates, top confidence %.2f\n", r.Provider, r.CandidateCount, r.TopConfidence)
		for i, c := range r.Candidates {
			fmt.Printf("  %d. [%.2f] %s\n", i+1, c.Confidence, c.Content)
		}
		fmt.Println()
	}
	return nil
}
