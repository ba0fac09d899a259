package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/srmaas/errorreport/internal/audit"
	"github.com/srmaas/errorreport/internal/config"
	applog "github.com/srmaas/errorreport/internal/logger"
	"github.com/srmaas/errorreport/internal/model"
	"github.com/srmaas/errorreport/internal/storage"
	"github.com/srmaas/errorreport/internal/upload"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func main() {
	workers := flag.Int("workers", 10, "Number of parallel workers")
	outputFile := flag.String("output", "audit_results.json", "Output file for results")
	skipFiles := flag.Bool("skip-files", false, "Do not check that attachment files exist")
	flag.Parse()

	cfg := config.Load()
	log := applog.New(applog.Options{Level: cfg.LogLevel, Development: true})
	defer log.Sync()

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	// Get total count
	var total int64
	db.Model(&model.ErrorReport{}).Count(&total)

	fmt.Printf("Auditing %d reports with %d workers...\n", total, *workers)

	var files audit.FileChecker
	if !*skipFiles {
		store, err := upload.NewStore(cfg.UploadDir)
		if err != nil {
			log.Fatal("failed to open upload directory", zap.Error(err))
		}
		files = store
	}

	result, err := audit.Run(context.Background(), storage.New(db), files, *workers, func(processed, issues int64) {
		if processed%500 == 0 {
			fmt.Printf("Progress: %d/%d, Issues found: %d\n", processed, total, issues)
		}
	})
	if err != nil {
		log.Fatal("audit failed", zap.Error(err))
	}

	fmt.Printf("\n=== Audit Complete ===\n")
	fmt.Printf("Total reports: %d\n", result.Summary.Total)
	fmt.Printf("Issues found: %d\n", result.Summary.Issues)
	fmt.Printf("Time elapsed: %s\n", result.Summary.Elapsed)

	fmt.Printf("\n=== Issues by Type ===\n")
	for typ, typeIssues := range result.IssuesByType {
		fmt.Printf("%s: %d\n", typ, len(typeIssues))
	}

	// Save results
	jsonData, _ := json.MarshalIndent(result, "", "  ")
	if err := os.WriteFile(*outputFile, jsonData, 0644); err != nil {
		log.Error("failed to write output file", zap.String("path", *outputFile), zap.Error(err))
	} else {
		fmt.Printf("\nResults saved to %s\n", *outputFile)
	}
}
