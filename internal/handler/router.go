package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/srmaas/errorreport/internal/ai"
	"github.com/srmaas/errorreport/internal/auth"
	"github.com/srmaas/errorreport/internal/limiter"
	"github.com/srmaas/errorreport/internal/middleware"
	"github.com/srmaas/errorreport/internal/model"
	"github.com/srmaas/errorreport/internal/storage"
	"github.com/srmaas/errorreport/internal/upload"
	"go.uber.org/zap"
)

// ReportStore is the storage surface the HTTP layer depends on.
type ReportStore interface {
	CreateError(ctx context.Context, report *model.ErrorReport) (*model.ErrorReport, error)
	ListErrors(ctx context.Context, opts storage.ListOptions) (*storage.ListResult, error)
	ListAllErrors(ctx context.Context, opts storage.ListOptions, fn func([]model.ErrorReport) error) error
	GetError(ctx context.Context, id int64) (*model.ErrorReport, error)
	UpdateError(ctx context.Context, id int64, update storage.ErrorReportUpdate) (*model.ErrorReport, error)
	DeleteError(ctx context.Context, id int64) (bool, error)

	GetErrorStats(ctx context.Context) (*storage.ErrorStats, error)
	GetWeeklyStats(ctx context.Context) ([]storage.PeriodStat, error)
	GetPeriodStats(ctx context.Context, period string) ([]storage.PeriodStat, error)
	GetCategoryStats(ctx context.Context) ([]storage.CategoryStat, error)
	GetCategoryShift(ctx context.Context, period string) ([]storage.CategoryShift, error)
	CountErrors(ctx context.Context) (int64, error)
	CountResolved(ctx context.Context) (int64, error)
	AverageResolutionHours(ctx context.Context) (float64, error)
	SaveAnalysisResult(ctx context.Context, result *model.AnalysisResult) error
}

// StatusReporter exposes the state of a background job.
type StatusReporter interface {
	GetStatus() map[string]interface{}
}

type RouterDeps struct {
	Store     ReportStore
	Auth      auth.Authenticator
	Assistant ai.Assistant
	Uploads   *upload.Store
	Logger    *zap.Logger

	// RateLimiter is optional. Leave it nil to serve AI routes unlimited.
	RateLimiter middleware.RateChecker
	// Reaper is optional and only feeds /scheduler/status.
	Reaper StatusReporter
}

func NewRouter(deps RouterDeps) *gin.Engine {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(middleware.Recovery(logger), middleware.RequestLogger(logger), middleware.MetricsMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/scheduler/status", func(c *gin.Context) {
		if deps.Reaper != nil {
			c.JSON(http.StatusOK, deps.Reaper.GetStatus())
		} else {
			c.JSON(http.StatusOK, gin.H{"enabled": false, "message": "Scheduler is disabled"})
		}
	})

	userHandler := NewUserHandler(deps.Auth, logger)
	aiHandler := NewAIHandler(deps.Assistant, deps.Uploads, logger)
	reportHandler := NewErrorReportHandler(deps.Store, deps.Assistant, deps.Uploads, logger)
	statsHandler := NewStatsHandler(deps.Store, logger)
	analyticsHandler := NewAnalyticsHandler(deps.Store, deps.Assistant, logger)
	exportHandler := NewExportHandler(deps.Store, logger)
	fileHandler := NewFileHandler(deps.Uploads)

	limit := func(action string) gin.HandlerFunc {
		return middleware.RateLimit(deps.RateLimiter, action, logger)
	}
	reporter := deps.Auth.Require(auth.RoleReporter)
	admin := deps.Auth.Require(auth.RoleAdmin)

	r.GET("/uploads/:filename", fileHandler.Serve)

	api := r.Group("/api")
	{
		deps.Auth.RegisterRoutes(api)
		api.GET("/auth/user", reporter, userHandler.Current)

		// AI helpers
		api.POST("/errors/generate-title", limit(limiter.ActionGenerateTitle), aiHandler.GenerateTitle)
		api.POST("/ai/generate-title", reporter, limit(limiter.ActionGenerateTitle), aiHandler.GenerateTitle)
		api.POST("/errors/analyze-system", limit(limiter.ActionAnalyzeSystem), aiHandler.AnalyzeSystem)
		api.POST("/errors/analyze-image", reporter, limit(limiter.ActionAnalyzeImage), aiHandler.AnalyzeImage)
		api.POST("/speech/transcribe", limit(limiter.ActionTranscribe), aiHandler.Transcribe)

		// Error reports
		api.POST("/errors", reporter, reportHandler.Create)
		api.GET("/errors", admin, reportHandler.List)
		api.GET("/errors/export", admin, exportHandler.Export)
		api.GET("/errors/:id", reporter, reportHandler.Get)
		api.PATCH("/errors/:id", reporter, reportHandler.Update)
		api.DELETE("/errors/:id", reporter, reportHandler.Delete)

		// Statistics
		api.GET("/stats/errors", admin, statsHandler.ErrorStats)
		api.GET("/stats/weekly", admin, statsHandler.WeeklyStats)
		api.GET("/stats/categories", admin, statsHandler.CategoryStats)

		// Analytics
		api.GET("/analytics/basic-stats", reporter, analyticsHandler.BasicStats)
		api.GET("/analytics/trends", reporter, analyticsHandler.Trends)
		api.GET("/analytics/predictions", reporter, analyticsHandler.Predictions)
		api.GET("/analytics/predictions/:period", reporter, analyticsHandler.Predictions)
		api.POST("/analytics/generate-ai-analysis", reporter, limit(limiter.ActionGenerateReport), analyticsHandler.GenerateAIAnalysis)
	}

	return r
}

func errorMessage(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"message": message})
}
