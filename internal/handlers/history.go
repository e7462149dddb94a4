package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Shimizu-Technology/post-insights-api/internal/database"
	"github.com/Shimizu-Technology/post-insights-api/internal/middleware"
	"github.com/Shimizu-Technology/post-insights-api/internal/models"
)

// ListHistory returns the caller's committed results, newest first.
// GET /api/v1/history?kind=&page=&per_page=
func (h *Handler) ListHistory(c *gin.Context) {
	if h.History == nil {
		respondError(c, http.StatusServiceUnavailable, "history_disabled", "History is not enabled on this server")
		return
	}

	var params models.HistoryListParams
	if err := c.ShouldBindQuery(&params); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", "kind must be one of extraction, analysis, rewrite")
		return
	}
	params.SessionID = middleware.GetSession(c).ID
	params = database.NormalizeListParams(params)

	records, total, err := h.History.ListHistory(c.Request.Context(), params)
	if err != nil {
		h.Log.Error("❌ Failed to list history", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "internal_error", "Failed to load history")
		return
	}
	if records == nil {
		records = []models.HistoryRecord{}
	}

	c.JSON(http.StatusOK, models.HistoryListResponse{
		Records: records,
		Total:   total,
		Page:    params.Page,
		PerPage: params.PerPage,
	})
}
