// refdata-import is a one-shot job: fetch the provider spreadsheet and
// upsert the catalog into SQLite. Run it on deploy and whenever the
// catalog team publishes changes.
package main

import (
	"context"
	"os"
	"time"

	"github.com/joho/godotenv"

	"milecard/internal/config"
	applog "milecard/internal/log"
	"milecard/internal/refdata"
	refgoogle "milecard/internal/refdata/google"
	refmemory "milecard/internal/refdata/memory"
	"milecard/internal/storage"
)

func main() {
	_ = godotenv.Load()

	logger := applog.Setup(applog.ParseLevel(os.Getenv("LOG_LEVEL")), applog.ComponentRefdata)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	var src refdata.Source
	if cfg.SheetsConfigured() {
		client, err := refgoogle.New(ctx, refgoogle.Config{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			OAuthClientJSON: cfg.GoogleOAuthClientJSON,
			OAuthClientFile: cfg.GoogleOAuthClientFile,
			OAuthTokenJSON:  cfg.GoogleOAuthTokenJSON,
			OAuthTokenFile:  cfg.GoogleOAuthTokenFile,
		})
		if err != nil {
			logger.Error("Failed to initialize Sheets client", "error", err)
			os.Exit(1)
		}
		src = client
		logger.Info("Importing from Google Sheets", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		src = refmemory.NewFixture()
		logger.Warn("Sheets not configured, importing the built-in fixture catalog")
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	stats, err := refdata.NewImporter(src, repo).Run(ctx)
	if err != nil {
		logger.Error("Import failed", "error", err)
		os.Exit(1)
	}

	logger.Info("Import finished",
		"categories", stats.Categories,
		"programs", stats.Programs,
		"cards", stats.Cards,
		"earn_rules", stats.EarnRules,
		"caps", stats.Caps,
		"partners", stats.Partners,
		"rate_changes", stats.RateChanges,
		"skipped", stats.Skipped)
}
