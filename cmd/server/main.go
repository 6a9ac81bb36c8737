// Package main is the entry point for the challenge hub API server.
//
// main stays minimal: read configuration, build the logger, make sure the
// database directory exists, then hand over to internal/server. Run
// cmd/seed once to load the sample challenges and conversations.
package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sakif/challenge-hub/internal/config"
	"github.com/sakif/challenge-hub/internal/server"
)

func main() {
	// === 1. CONFIGURATION AND LOGGING ===
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	// === 2. DATABASE DIRECTORY ===
	// SQLite creates the file but not its parent directory.
	if cfg.DBDriver == "sqlite" && cfg.DBDSN != ":memory:" {
		dbDir := filepath.Dir(cfg.DBDSN)
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			logger.Error("failed to create database directory",
				slog.String("dir", dbDir),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}

	// === 3. CREATE AND START THE SERVER ===
	srv, err := server.New(context.Background(), server.Config{
		Port:          cfg.Port,
		DBDriver:      cfg.DBDriver,
		DBDSN:         cfg.DBDSN,
		JWTSecret:     cfg.JWTSecret,
		DefaultUserID: cfg.DefaultUserID,
	}, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start blocks until SIGINT or SIGTERM.
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
