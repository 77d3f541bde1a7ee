package web

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/secondbrain/recall/internal/validation"
	"github.com/secondbrain/recall/pkg/types"
)

const maxQuerySize = 10 << 10 // 10KB

func (s *Server) handleRecall(c *gin.Context) {
	var req types.RetrievalRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	if req.Query == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "query is required",
		})
		return
	}
	if len(req.Query) > maxQuerySize {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "query exceeds maximum size of 10KB",
		})
		return
	}

	resp, err := s.orchestrator.Run(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    resp,
	})
}

type compareRequest struct {
	Query     string   `json:"query"`
	Providers []string `json:"providers"`
	TopK      int      `json:"top_k"`
}

func (s *Server) handleCompare(c *gin.Context) {
	var req compareRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	if req.Query == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "query is required",
		})
		return
	}
	if len(req.Providers) == 0 {
		req.Providers = []string{"mem0", "supabase"}
	}

	results := s.orchestrator.CompareProviders(c.Request.Context(), req.Query, req.Providers, req.TopK)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"results": results,
		"count":   len(results),
	})
}

func (s *Server) handleScenarios(c *gin.Context) {
	tag := c.Query("tag")

	scenarios := s.runner.Catalog().All()
	if tag != "" {
		scenarios = s.runner.Catalog().ByTag(tag)
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"scenarios": scenarios,
		"count":     len(scenarios),
	})
}

func (s *Server) handleValidate(c *gin.Context) {
	id := c.Param("id")

	result := s.runner.ValidateBranch(c.Request.Context(), id, s.debugMode)
	status := http.StatusOK
	if result.Reason == "scenario_not_found" {
		status = http.StatusNotFound
	}

	c.JSON(status, gin.H{
		"success": result.Success,
		"data":    result,
	})
}

func (s *Server) handleValidateAll(c *gin.Context) {
	tag := c.Query("tag")

	var results []validation.Result
	if tag != "" {
		results = s.runner.EvaluateTag(c.Request.Context(), tag, s.debugMode)
	} else {
		results = s.runner.EvaluateAll(c.Request.Context(), s.debugMode)
	}

	passed := 0
	for _, r := range results {
		if r.Success {
			passed++
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"results": results,
		"count":   len(results),
		"passed":  passed,
	})
}

func (s *Server) handleTraces(c *gin.Context) {
	if s.traces == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"error":   "tracing is not enabled",
		})
		return
	}

	limit := 20
	if l, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		limit = l
	}

	traces := s.traces.Latest(limit)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"traces":  traces,
		"count":   len(traces),
	})
}
