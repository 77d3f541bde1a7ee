package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/secondbrain/recall/internal/validation"
)

var (
	validateTag   string
	validateAll   bool
	validateDebug bool
	validateJSON  bool
)

var validateCmd = &cobra.Command{
	Use:   "validate [scenario-id]",
	Short: "Replay branch validation scenarios against the orchestrator",
	Long: `Replay scenarios from the embedded catalog and compare outcomes
against expectations.

Branch forcing for validation-tagged scenarios requires --debug; without it
those scenarios are denied explicitly.

Examples:
  recall-cli validate S001
  recall-cli validate --tag smoke
  recall-cli validate --all --debug`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringVar(&validateTag, "tag", "", "replay all scenarios with this tag")
	validateCmd.Flags().BoolVar(&validateAll, "all", false, "replay the full catalog")
	validateCmd.Flags().BoolVar(&validateDebug, "debug", false, "unlock branch forcing for validation-tagged scenarios")
	validateCmd.Flags().BoolVar(&validateJSON, "json", false, "output as JSON")
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	catalog, err := validation.LoadCatalog()
	if err != nil {
		return err
	}
	runner := validation.NewRunner(cfg, catalog)
	ctx := context.Background()

	var results []validation.Result
	switch {
	case len(args) == 1:
		results = []validation.Result{runner.ValidateBranch(ctx, args[0], validateDebug)}
	case validateTag != "":
		results = runner.EvaluateTag(ctx, validateTag, validateDebug)
	case validateAll:
		results = runner.EvaluateAll(ctx, validateDebug)
	default:
		return fmt.Errorf("specify a scenario id, --tag, or --all")
	}

	if validateJSON {
		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
	} else {
		printResults(results)
	}

	for _, r := range results {
		if !r.Success {
			return fmt.Errorf("%d of %d scenarios failed", countFailed(results), len(results))
		}
	}
	return nil
}

func printResults(results []validation.Result) {
	for _, r := range results {
		status := "PASS"
		if !r.Success {
			status = "FAIL"
		}
		fmt.Printf("%s  %s  %s\n", status, r.ScenarioID, r.Description)
		if r.Reason != "" {
			fmt.Printf("      reason: %s\n", r.Reason)
			continue
		}
		marker := ""
		if r.Forced {
			marker = " (forced)"
		}
		fmt.Printf("      expected %s/%s, got %s/%s%s\n",
			r.ExpectedBranch, r.ExpectedAction, r.ActualBranch, r.ActualAction, marker)
	}
	fmt.Printf("\n%d/%d passed\n", len(results)-countFailed(results), len(results))
}

func countFailed(results []validation.Result) int {
	failed := 0
	for _, r := range results {
		if !r.Success {
			failed++
		}
	}
	return failed
}
