// Package cli consolidates the initialization steps shared by
// cmd/bilancio, cmd/bilancio-worker, and cmd/recurring-worker.
package cli

import (
	"os"

	"github.com/joho/godotenv"

	"bilancio/internal/config"
	"bilancio/internal/log"
	"bilancio/internal/storage"
)

// SetupLogger initializes structured logging and sets it as the default.
func SetupLogger(component string) *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Component = component
	logger := log.New(cfg)
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development. Errors are ignored
// silently as the file is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads the configuration, exiting the process on
// validation failure.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

// InitSQLite opens the SQLite repository, exiting the process on failure.
func InitSQLite(logger *log.Logger, dbPath string) *storage.SQLiteRepository {
	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", dbPath)
		os.Exit(1)
	}
	return repo
}

// LoadHousehold reads the household definition, exiting the process on
// failure.
func LoadHousehold(logger *log.Logger, path string) config.HouseholdFile {
	hf, err := config.LoadHousehold(path)
	if err != nil {
		logger.Error("Failed to load household file", "error", err, "path", path)
		os.Exit(1)
	}
	return hf
}
