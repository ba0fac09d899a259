package main

import (
	"context"
	"flag"
	"time"

	"github.com/srmaas/errorreport/internal/auth"
	"github.com/srmaas/errorreport/internal/config"
	"github.com/srmaas/errorreport/internal/database"
	"github.com/srmaas/errorreport/internal/logger"
	"go.uber.org/zap"
)

func main() {
	// Parse command line flags
	dryRun := flag.Bool("dry-run", false, "Count expired sessions without deleting them")
	flag.Parse()

	startTime := time.Now()

	cfg := config.Load()
	log := logger.New(logger.Options{Level: cfg.LogLevel, FilePath: cfg.LogFile, Development: cfg.IsDevelopment()})
	defer log.Sync()

	log.Info("starting session cleanup job", zap.Bool("dryRun", *dryRun))

	// Connect to database
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	// Run migration to ensure tables exist
	if err := database.Migrate(db); err != nil {
		log.Fatal("failed to migrate database", zap.Error(err))
	}

	ctx := context.Background()
	sessions := auth.NewSessionStore(db)

	if *dryRun {
		expired, err := sessions.CountExpired(ctx)
		if err != nil {
			log.Fatal("failed to count expired sessions", zap.Error(err))
		}
		log.Info("dry run, no changes made", zap.Int64("expired", expired))
		return
	}

	purged, err := sessions.PurgeExpired(ctx)
	if err != nil {
		log.Fatal("failed to purge sessions", zap.Error(err))
	}

	log.Info("session cleanup complete", zap.Int64("purged", purged), zap.Duration("elapsed", time.Since(startTime)))
}
