// Package web exposes the recall orchestrator over a JSON HTTP API.
package web

import (
	"github.com/gin-gonic/gin"

	"github.com/secondbrain/recall/internal/recall"
	"github.com/secondbrain/recall/internal/trace"
	"github.com/secondbrain/recall/internal/validation"
)

// Server is the recall web server.
type Server struct {
	orchestrator *recall.Orchestrator
	runner       *validation.Runner
	traces       *trace.Collector
	debugMode    bool
	router       *gin.Engine
}

// NewServer creates a web server over the orchestrator and scenario runner.
func NewServer(orchestrator *recall.Orchestrator, runner *validation.Runner, traces *trace.Collector, debugMode bool) *Server {
	router := gin.Default()

	s := &Server{
		orchestrator: orchestrator,
		runner:       runner,
		traces:       traces,
		debugMode:    debugMode,
		router:       router,
	}

	api := router.Group("/api")
	{
		api.POST("/recall", s.handleRecall)
		api.POST("/compare", s.handleCompare)
		api.GET("/scenarios", s.handleScenarios)
		api.POST("/validate/:id", s.handleValidate)
		api.POST("/validate", s.handleValidateAll)
		api.GET("/traces", s.handleTraces)
	}

	return s
}

// Run starts the web server.
func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}
