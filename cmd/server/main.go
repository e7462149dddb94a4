// Package main is the entry point for the Post Insights API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Shimizu-Technology/post-insights-api/internal/config"
	"github.com/Shimizu-Technology/post-insights-api/internal/database"
	"github.com/Shimizu-Technology/post-insights-api/internal/handlers"
	"github.com/Shimizu-Technology/post-insights-api/internal/logger"
	"github.com/Shimizu-Technology/post-insights-api/internal/middleware"
	"github.com/Shimizu-Technology/post-insights-api/internal/router"
	"github.com/Shimizu-Technology/post-insights-api/internal/services/extraction"
	"github.com/Shimizu-Technology/post-insights-api/internal/services/genai"
	"github.com/Shimizu-Technology/post-insights-api/internal/services/worker"
	"github.com/Shimizu-Technology/post-insights-api/internal/session"
	"github.com/Shimizu-Technology/post-insights-api/internal/workflow"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	// Step 1: Load Configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Options{
		Level:   cfg.LogLevel,
		File:    cfg.LogFile,
		Release: cfg.GinMode == gin.ReleaseMode,
	})
	defer func() { _ = log.Sync() }()

	log.Info("🚀 Post Insights API starting",
		zap.String("version", Version),
		zap.String("port", cfg.Port),
		zap.Int("workers", cfg.WorkerCount),
		zap.String("gin_mode", cfg.GinMode),
		zap.String("analysis_mode", cfg.AnalysisMode),
		zap.String("extraction_mode", cfg.ExtractionMode),
	)
	gin.SetMode(cfg.GinMode)

	// Step 2: Create Services
	extractor := newExtractor(cfg, log)
	analyzer, rewriter, err := newGenerators(cfg, log)
	if err != nil {
		log.Fatal("❌ Failed to configure the generative API", zap.Error(err))
	}

	// Step 3: Optional history database
	// Go Pattern: keep the interfaces nil when there is no database. A nil
	// *database.DB stored in an interface would not compare equal to nil.
	var (
		recorder workflow.Recorder
		history  handlers.HistoryStore
	)
	if cfg.HistoryEnabled() {
		db, err := database.New(cfg.DatabaseURL, log)
		if err != nil {
			log.Fatal("❌ Failed to connect to database", zap.Error(err))
		}
		defer db.Close()

		if err := db.RunMigrations(cfg.MigrationsPath); err != nil {
			log.Fatal("❌ Migration failed", zap.Error(err))
		}
		recorder, history = db, db
		log.Info("✅ History enabled")
	} else {
		log.Info("⚠️  History disabled (set DATABASE_URL to enable)")
	}

	// Step 4: Create and Start Worker Pool
	wp := worker.NewPool(cfg.WorkerCount, cfg.JobQueueSize, log)
	wp.Start()

	// Step 5: Sessions and their workflows
	previews, err := workflow.NewPreviewStore(cfg.PreviewDir, log)
	if err != nil {
		log.Fatal("❌ Failed to create preview store", zap.Error(err))
	}

	sessions := session.NewStore(cfg.SessionTTL, func(id string) *workflow.Workflow {
		return workflow.New(workflow.Options{
			SessionID:      id,
			Extractor:      extractor,
			Analyzer:       analyzer,
			Rewriter:       rewriter,
			Dispatcher:     wp,
			Previews:       previews,
			Recorder:       recorder,
			MaxUploadBytes: cfg.MaxUploadBytes,
			Logger:         log,
		})
	}, log)
	tokens := session.NewTokens(cfg.SessionSecret, cfg.SessionTTL)

	// Step 6: Setup HTTP Router
	h := &handlers.Handler{
		Sessions:       sessions,
		Tokens:         tokens,
		Previews:       previews,
		Workers:        wp,
		History:        history,
		MaxUploadBytes: cfg.MaxUploadBytes,
		AnalysisMode:   cfg.AnalysisMode,
		ExtractionMode: cfg.ExtractionMode,
		Log:            log,
	}
	rl := middleware.NewRateLimiter(cfg.DefaultRateLimit)
	r := router.Setup(h, rl, cfg.AllowedOrigins, log)

	// Step 7: Start the HTTP Server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("🌐 Server listening", zap.String("addr", "http://localhost:"+cfg.Port))
		log.Info("📖 Health check", zap.String("url", "http://localhost:"+cfg.Port+"/api/v1/health"))

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("❌ Server failed", zap.Error(err))
		}
	}()

	// Step 8: Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	log.Info("🛑 Shutting down gracefully", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Warn("⚠️  Server forced to shutdown", zap.Error(err))
	}

	// Drain the pool before closing sessions so no running task outlives
	// its preview file.
	wp.Stop()
	sessions.Close()
	if err := previews.Close(); err != nil {
		log.Warn("⚠️  Failed to remove preview files", zap.Error(err))
	}
	rl.Stop()

	log.Info("👋 Server stopped. Goodbye!")
}

// newExtractor picks the text extraction backend for EXTRACTION_MODE.
func newExtractor(cfg *config.Config, log *zap.Logger) extraction.Service {
	if cfg.ExtractionMode == config.ModeDemo {
		log.Info("🧪 Demo extraction enabled (no OCR or PDF parsing)")
		return extraction.DemoExtractor{StepDelay: 300 * time.Millisecond}
	}

	image := extraction.NewImageExtractor(cfg.TesseractPath, cfg.TesseractLang, extraction.ExecRunner{Log: log}, log)
	return extraction.NewRouter(image, extraction.NewPDFExtractor(log), log)
}

// newGenerators picks the analysis and rewrite backends for ANALYSIS_MODE.
func newGenerators(cfg *config.Config, log *zap.Logger) (genai.Analyzer, genai.Rewriter, error) {
	if cfg.AnalysisMode == config.ModeDemo {
		log.Info("🧪 Demo analysis enabled (no Gemini calls)")
		return genai.DemoAnalyzer{Delay: time.Second}, genai.DemoRewriter{Delay: time.Second}, nil
	}

	client, err := genai.NewClient(cfg.GeminiAPIKey, cfg.GeminiBaseURL, cfg.GeminiModel, cfg.GeminiTimeout, log)
	if err != nil {
		return nil, nil, err
	}
	log.Info("✅ Gemini configured", zap.String("model", client.Model()))
	return genai.NewAnalysisClient(client), genai.NewRewriteClient(client), nil
}
