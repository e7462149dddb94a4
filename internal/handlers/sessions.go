package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Shimizu-Technology/post-insights-api/internal/middleware"
	"github.com/Shimizu-Technology/post-insights-api/internal/models"
)

// CreateSession starts an anonymous session and returns its token.
// POST /api/v1/sessions
func (h *Handler) CreateSession(c *gin.Context) {
	sess := h.Sessions.Create()

	token, expiresAt, err := h.Tokens.Issue(sess.ID)
	if err != nil {
		h.Sessions.Delete(sess.ID)
		h.Log.Error("❌ Failed to issue session token", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "internal_error", "Failed to create session")
		return
	}

	c.JSON(http.StatusCreated, models.CreateSessionResponse{
		SessionID: sess.ID,
		Token:     token,
		ExpiresAt: expiresAt,
		State:     sess.Workflow.Snapshot(),
	})
}

// GetSession returns the current workflow state.
// GET /api/v1/session
func (h *Handler) GetSession(c *gin.Context) {
	c.JSON(http.StatusOK, middleware.GetSession(c).Workflow.Snapshot())
}

// EndSession ends the session and releases its resources.
// DELETE /api/v1/session
func (h *Handler) EndSession(c *gin.Context) {
	h.Sessions.Delete(middleware.GetSession(c).ID)
	c.Status(http.StatusNoContent)
}

// respondError writes the standard error body.
func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, models.ErrorResponse{
		Error:   code,
		Message: message,
		Code:    status,
	})
}
