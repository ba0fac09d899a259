package main

import (
	"context"
	"flag"

	"github.com/srmaas/errorreport/internal/auth"
	"github.com/srmaas/errorreport/internal/config"
	"github.com/srmaas/errorreport/internal/database"
	"github.com/srmaas/errorreport/internal/logger"
	"github.com/srmaas/errorreport/internal/model"
	"github.com/srmaas/errorreport/internal/seed"
	"github.com/srmaas/errorreport/internal/storage"
	"go.uber.org/zap"
)

func main() {
	// Parse command line flags
	reporter := flag.String("reporter", model.OfflineUserID, "User id the demo reports are filed under")
	flag.Parse()

	cfg := config.Load()
	log := logger.New(logger.Options{Level: cfg.LogLevel, FilePath: cfg.LogFile, Development: cfg.IsDevelopment()})
	defer log.Sync()

	// Connect to database
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	// Run migration
	if err := database.Migrate(db); err != nil {
		log.Fatal("failed to migrate database", zap.Error(err))
	}

	ctx := context.Background()
	store := storage.New(db)

	// Demo reports reference the offline identities
	if err := auth.NewOffline(store, log).EnsureIdentities(ctx); err != nil {
		log.Fatal("failed to create offline identities", zap.Error(err))
	}

	inserted, err := seed.Run(ctx, store, *reporter, log)
	if err != nil {
		log.Fatal("failed to seed demo data", zap.Error(err))
	}

	log.Info("seeding complete", zap.Int("inserted", inserted))
}
