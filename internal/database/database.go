package database

import (
	"fmt"
	"time"

	"github.com/srmaas/errorreport/internal/config"
	"github.com/srmaas/errorreport/internal/model"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func Connect(cfg *config.Config) (*gorm.DB, error) {
	logLevel := logger.Warn
	if cfg.IsDevelopment() {
		logLevel = logger.Info
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConns)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return db, nil
}

func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&model.User{},
		&model.Session{},
		&model.ErrorReport{},
		&model.AnalysisResult{},
	)
	if err != nil {
		return err
	}

	if db.Dialector.Name() == "postgres" {
		// Listing filters on status and sorts by recency.
		db.Exec("CREATE INDEX IF NOT EXISTS idx_errors_status_created_at ON errors(status, created_at DESC)")
		db.Exec("CREATE INDEX IF NOT EXISTS idx_analysis_results_type_period ON analysis_results(analysis_type, period)")
	}

	return nil
}
