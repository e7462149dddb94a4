// Package handlers contains the HTTP handlers for the API.
//
// Go Pattern: Handlers in Gin receive a *gin.Context which provides
// request data (params, query, body, headers), response methods and
// middleware data (c.Get/c.Set). Related handlers hang off one Handler
// struct that holds their shared dependencies.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Shimizu-Technology/post-insights-api/internal/models"
	"github.com/Shimizu-Technology/post-insights-api/internal/session"
	"github.com/Shimizu-Technology/post-insights-api/internal/workflow"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

// HistoryStore is the read side of the optional history database.
type HistoryStore interface {
	HealthCheck(ctx context.Context) error
	ListHistory(ctx context.Context, params models.HistoryListParams) ([]models.HistoryRecord, int, error)
}

// PoolStats reports worker pool load.
type PoolStats interface {
	WorkerCount() int
	QueueSize() int
}

// Handler holds shared dependencies for all HTTP handlers.
// Go Pattern: Dependency injection via struct fields. Tests build a
// Handler with demo services and no database.
type Handler struct {
	Sessions *session.Store
	Tokens   *session.Tokens
	Previews *workflow.PreviewStore
	Workers  PoolStats
	History  HistoryStore // nil when DATABASE_URL is unset

	MaxUploadBytes int64
	AnalysisMode   string
	ExtractionMode string

	Log *zap.Logger
}

// HealthCheck returns the API health status.
// GET /api/v1/health
func (h *Handler) HealthCheck(c *gin.Context) {
	historyStatus := "disabled"
	if h.History != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		historyStatus = "healthy"
		if err := h.History.HealthCheck(ctx); err != nil {
			historyStatus = "unhealthy: " + err.Error()
		}
	}

	resp := models.HealthResponse{
		Status:         "ok",
		Version:        Version,
		History:        historyStatus,
		ActiveSessions: h.Sessions.Count(),
		AnalysisMode:   h.AnalysisMode,
		ExtractionMode: h.ExtractionMode,
	}
	if h.Workers != nil {
		resp.Workers = h.Workers.WorkerCount()
		resp.QueuedJobs = h.Workers.QueueSize()
	}
	c.JSON(http.StatusOK, resp)
}
