// Package router sets up all HTTP routes for the API.
package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Shimizu-Technology/post-insights-api/internal/handlers"
	"github.com/Shimizu-Technology/post-insights-api/internal/middleware"
)

// Setup creates and configures the Gin router with all routes.
func Setup(h *handlers.Handler, rl *middleware.RateLimiter, allowedOrigins []string, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.CORS(allowedOrigins))

	// --- Public Routes (no session required) ---
	r.GET("/api/v1/health", h.HealthCheck)
	r.POST("/api/v1/sessions", rl.RateLimit(), h.CreateSession)

	// --- Session Routes ---
	auth := middleware.SessionAuth(h.Sessions, h.Tokens)

	sess := r.Group("/api/v1/session")
	sess.Use(auth)
	sess.Use(rl.RateLimit())
	{
		sess.GET("", h.GetSession)
		sess.DELETE("", h.EndSession)

		sess.POST("/file", h.UploadFile)
		sess.GET("/preview", h.GetPreview)
		sess.POST("/analysis", h.RequestAnalysis)
		sess.POST("/rewrite", h.RequestRewrite)
		sess.GET("/rewrite/:tone", h.GetRewriteVariant)
		sess.POST("/reset", h.Reset)
		sess.POST("/theme", h.SetTheme)
		sess.GET("/export", h.ExportReport)
	}

	// History of committed results (needs DATABASE_URL)
	r.GET("/api/v1/history", auth, rl.RateLimit(), h.ListHistory)

	return r
}
