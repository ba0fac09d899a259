package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/srmaas/errorreport/internal/ai"
	"github.com/srmaas/errorreport/internal/auth"
	"github.com/srmaas/errorreport/internal/cache"
	"github.com/srmaas/errorreport/internal/config"
	"github.com/srmaas/errorreport/internal/database"
	"github.com/srmaas/errorreport/internal/handler"
	"github.com/srmaas/errorreport/internal/limiter"
	"github.com/srmaas/errorreport/internal/logger"
	"github.com/srmaas/errorreport/internal/model"
	"github.com/srmaas/errorreport/internal/scheduler"
	"github.com/srmaas/errorreport/internal/seed"
	"github.com/srmaas/errorreport/internal/storage"
	"github.com/srmaas/errorreport/internal/upload"
	"github.com/srmaas/errorreport/internal/validator"
	"go.uber.org/zap"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg := config.Load()

	log := logger.New(logger.Options{
		Level:       cfg.LogLevel,
		FilePath:    cfg.LogFile,
		Development: cfg.IsDevelopment(),
	})
	defer log.Sync()

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	// Auto migrate
	if err := database.Migrate(db); err != nil {
		log.Fatal("failed to migrate database", zap.Error(err))
	}

	if err := validator.Register(); err != nil {
		log.Fatal("failed to register validators", zap.Error(err))
	}

	store := storage.New(db)
	sessions := auth.NewSessionStore(db)

	authenticator, err := auth.New(ctx, cfg, store, sessions, logger.Module(log, "auth"))
	if err != nil {
		log.Fatal("failed to initialize authentication", zap.Error(err))
	}
	log.Info("authentication ready", zap.String("mode", string(authenticator.Mode())))

	if cfg.SeedDemoData {
		// Demo reports are filed under the offline identities in every auth mode
		if err := auth.NewOffline(store, logger.Module(log, "auth")).EnsureIdentities(ctx); err != nil {
			log.Fatal("failed to create offline identities", zap.Error(err))
		}
		if _, err := seed.Run(ctx, store, model.OfflineUserID, logger.Module(log, "seed")); err != nil {
			log.Warn("failed to seed demo data", zap.Error(err))
		}
	}

	uploads, err := upload.NewStore(cfg.UploadDir)
	if err != nil {
		log.Fatal("failed to prepare upload directory", zap.Error(err))
	}

	deps := handler.RouterDeps{
		Store:     store,
		Auth:      authenticator,
		Assistant: ai.New(cfg, logger.Module(log, "ai")),
		Uploads:   uploads,
		Logger:    logger.Module(log, "http"),
	}

	// Rate limiting is skipped when Redis is unreachable
	redisCache, err := cache.NewRedisCache(ctx, cfg.RedisURL)
	if err != nil {
		log.Warn("redis unavailable, AI routes are not rate limited", zap.Error(err))
	} else {
		defer redisCache.Close()
		deps.RateLimiter = limiter.NewLimiter(redisCache)
	}

	// Session reaper only matters when sessions are issued
	if authenticator.Mode() == auth.ModeOIDC {
		reaper := scheduler.NewSessionReaper(sessions, cfg.SessionReapInterval, logger.Module(log, "scheduler"))
		go reaper.Start(ctx)
		defer reaper.Stop()
		deps.Reaper = reaper
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: handler.NewRouter(deps),
	}

	go func() {
		log.Info("API server starting", zap.String("port", cfg.Port), zap.String("env", cfg.AppEnv))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
}
