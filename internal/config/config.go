// Package config reads process configuration from the environment, after
// loading a .env file from the working directory when one exists.
//
//	PORT                     HTTP listen port                (8080)
//	DB_DRIVER                sqlite | postgres               (sqlite)
//	DB_DSN                   file path or postgres URL       (data/challenges.db)
//	JWT_SECRET               HMAC key; empty disables tokens ("")
//	DEFAULT_USER_ID          caller for token-less requests; 0 disables (1)
//	LOG_LEVEL                debug | info | warn | error     (info)
//	LOG_FORMAT               text | json                     (text)
//	SEED_CHALLENGES_FILE     challenge seed file             (data/challenges.json)
//	SEED_CONVERSATIONS_FILE  conversation seed file          (data/conversations.json)
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port int

	DBDriver string
	DBDSN    string

	JWTSecret     string
	DefaultUserID int64

	LogLevel  slog.Level
	LogFormat string

	SeedChallengesFile    string
	SeedConversationsFile string
}

// Load reads the configuration. Every invalid value is reported, not just
// the first one.
func Load() (Config, error) {
	// A missing .env is normal outside local development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("config: reading .env: %w", err)
	}

	var errs []error
	cfg := Config{
		DBDriver:              strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
		DBDSN:                 getEnv("DB_DSN", "data/challenges.db"),
		JWTSecret:             getEnv("JWT_SECRET", ""),
		LogFormat:             strings.ToLower(getEnv("LOG_FORMAT", "text")),
		SeedChallengesFile:    getEnv("SEED_CHALLENGES_FILE", "data/challenges.json"),
		SeedConversationsFile: getEnv("SEED_CONVERSATIONS_FILE", "data/conversations.json"),
	}

	port, err := getEnvAsInt("PORT", 8080)
	if err != nil {
		errs = append(errs, err)
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d is out of range", port))
	}
	cfg.Port = port

	userID, err := getEnvAsInt("DEFAULT_USER_ID", 1)
	if err != nil {
		errs = append(errs, err)
	} else if userID < 0 {
		errs = append(errs, errors.New("DEFAULT_USER_ID must not be negative"))
	}
	cfg.DefaultUserID = int64(userID)

	if err := cfg.LogLevel.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}

	switch cfg.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT %q: want text or json", cfg.LogFormat))
	}

	switch cfg.DBDriver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER %q: want sqlite or postgres", cfg.DBDriver))
	}

	if cfg.JWTSecret != "" && len(cfg.JWTSecret) < 16 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 16 characters"))
	}

	if err := errors.Join(errs...); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// NewLogger builds the process logger described by cfg.
func (c Config) NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.LogLevel}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

// getEnv treats a variable set to "" the same as an unset one.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) (int, error) {
	raw, exists := os.LookupEnv(key)
	if !exists || raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s %q is not an integer", key, raw)
	}
	return v, nil
}
