package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/secondbrain/recall/internal/config"
)

var Version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:     "recall-cli",
	Short:   "Recall - retrieval orchestration with branch-aware recall",
	Version: Version,
}

func main() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default: ~/.recall/config.yaml, ./.recall/config.yaml)")

	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(compareCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(scenariosCmd)
	rootCmd.AddCommand(serveCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}
	return config.Load()
}
