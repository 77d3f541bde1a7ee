package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/secondbrain/recall/internal/validation"
)

var (
	scenariosTag  string
	scenariosJSON bool
)

var scenariosCmd = &cobra.Command{
	Use:   "scenarios",
	Short: "List branch validation scenarios from the embedded catalog",
	RunE:  runScenarios,
}

func init() {
	scenariosCmd.Flags().StringVar(&scenariosTag, "tag", "", "filter by tag (smoke, policy, edge, degraded, validation)")
	scenariosCmd.Flags().BoolVar(&scenariosJSON, "json", false, "output as JSON")
}

func runScenarios(cmd *cobra.Command, args []string) error {
	catalog, err := validation.LoadCatalog()
	if err != nil {
		return err
	}

	scenarios := catalog.All()
	if scenariosTag != "" {
		scenarios = catalog.ByTag(scenariosTag)
	}

	if scenariosJSON {
		data, err := json.MarshalIndent(scenarios, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	for _, s := range scenarios {
		fmt.Printf("%s  %-45s %s/%s  [%s]\n",
			s.ID, s.Description, s.ExpectedBranch, s.ExpectedAction, strings.Join(s.Tags, ", "))
	}
	fmt.Printf("\n%d scenarios\n", len(scenarios))
	return nil
}
