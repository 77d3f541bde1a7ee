package main

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/secondbrain/recall/internal/mcp"
	"github.com/secondbrain/recall/internal/recall"
	"github.com/secondbrain/recall/internal/trace"
	"github.com/secondbrain/recall/internal/validation"
	"github.com/secondbrain/recall/internal/web"
)

var (
	serveMCP     bool
	serveWeb     bool
	serveWebAddr string
	serveDebug   bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP tool server or the web API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveMCP, "mcp", false, "serve MCP tools on stdio")
	serveCmd.Flags().BoolVar(&serveWeb, "web", false, "serve the HTTP API")
	serveCmd.Flags().StringVar(&serveWebAddr, "web-addr", ":8080", "web server address")
	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "unlock branch forcing for validation-tagged scenarios")
}

func runServe(cmd *cobra.Command, args []string) error {
	if serveMCP == serveWeb {
		return fmt.Errorf("specify exactly one of --mcp or --web")
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	var collector *trace.Collector
	if cfg.Trace.Enabled {
		collector = trace.NewCollector(cfg.Trace.MaxTraces)
		if cfg.Trace.DBPath != "" {
			store, err := trace.NewStore(cfg.Trace.DBPath)
			if err != nil {
				log.Printf("Warning: trace persistence unavailable: %v", err)
			} else {
				collector.WithStore(store)
				defer store.Close()
			}
		}
	}

	var orchOpts []recall.Option
	if collector != nil {
		orchOpts = append(orchOpts, recall.WithTraceRecorder(collector))
	}
	orch := recall.NewOrchestrator(cfg, orchOpts...)

	catalog, err := validation.LoadCatalog()
	if err != nil {
		return err
	}
	runner := validation.NewRunner(cfg, catalog)

	if serveMCP {
		return mcp.NewServer(orch, runner, collector, serveDebug).Run(context.Background())
	}

	log.Printf("INFO: serving recall API on %s", serveWebAddr)
	return web.NewServer(orch, runner, collector, serveDebug).Run(serveWebAddr)
}
