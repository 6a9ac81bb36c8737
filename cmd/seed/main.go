// Command seed loads the sample challenges and support conversations into
// the configured database.
//
//	go run ./cmd/seed                 # load if the database is empty
//	go run ./cmd/seed -force          # purge and reload
//	go run ./cmd/seed -challenges other.yaml
//
// File paths default to SEED_CHALLENGES_FILE and SEED_CONVERSATIONS_FILE.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sakif/challenge-hub/internal/auth"
	"github.com/sakif/challenge-hub/internal/config"
	"github.com/sakif/challenge-hub/internal/repository/sqlstore"
	"github.com/sakif/challenge-hub/internal/seed"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	force := flag.Bool("force", false, "purge existing challenges and conversations, then reload")
	challenges := flag.String("challenges", cfg.SeedChallengesFile, "challenge seed file (JSON or YAML)")
	conversations := flag.String("conversations", cfg.SeedConversationsFile, "conversation seed file (JSON or YAML)")
	flag.Parse()

	logger := cfg.NewLogger()

	if err := run(cfg, logger, seed.Files{Challenges: *challenges, Conversations: *conversations}, *force); err != nil {
		logger.Error("seeding failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger, files seed.Files, force bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.DBDriver == "sqlite" && cfg.DBDSN != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.DBDSN), 0755); err != nil {
			return err
		}
	}

	store, err := sqlstore.Open(ctx, sqlstore.Config{
		Driver: cfg.DBDriver,
		DSN:    cfg.DBDSN,
		Logger: logger,
	})
	if err != nil {
		return err
	}
	defer store.Close()

	loader := seed.NewLoader(store, auth.NewPasswordService(), logger)
	report, err := loader.Load(ctx, files, force)
	if err != nil {
		return err
	}
	if report.ChallengeErrors > 0 || report.ConversationErrors > 0 {
		logger.Warn("some records were not loaded",
			slog.Int("challengeErrors", report.ChallengeErrors),
			slog.Int("conversationErrors", report.ConversationErrors),
		)
	}
	return nil
}
