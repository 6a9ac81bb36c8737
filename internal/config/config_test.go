package config

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setEnv clears every variable Load reads, then applies kv.
func setEnv(t *testing.T, kv map[string]string) {
	t.Helper()
	for _, key := range []string{
		"PORT", "DB_DRIVER", "DB_DSN", "JWT_SECRET", "DEFAULT_USER_ID",
		"LOG_LEVEL", "LOG_FORMAT", "SEED_CHALLENGES_FILE", "SEED_CONVERSATIONS_FILE",
	} {
		t.Setenv(key, kv[key])
	}
	// Run from an empty directory so no stray .env interferes.
	t.Chdir(t.TempDir())
}

func TestLoad_Defaults(t *testing.T) {
	setEnv(t, nil)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "data/challenges.db", cfg.DBDSN)
	assert.Empty(t, cfg.JWTSecret)
	assert.Equal(t, int64(1), cfg.DefaultUserID)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "data/challenges.json", cfg.SeedChallengesFile)
}

func TestLoad_Overrides(t *testing.T) {
	setEnv(t, map[string]string{
		"PORT":            "9090",
		"DB_DRIVER":       "Postgres",
		"DB_DSN":          "postgres://localhost/hub",
		"JWT_SECRET":      "0123456789abcdef",
		"DEFAULT_USER_ID": "0",
		"LOG_LEVEL":       "debug",
		"LOG_FORMAT":      "json",
	})

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, int64(0), cfg.DefaultUserID)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.NotNil(t, cfg.NewLogger())
}

func TestLoad_ReportsEveryInvalidValue(t *testing.T) {
	setEnv(t, map[string]string{
		"PORT":            "eighty",
		"DB_DRIVER":       "oracle",
		"DEFAULT_USER_ID": "-2",
		"LOG_LEVEL":       "loud",
		"LOG_FORMAT":      "xml",
		"JWT_SECRET":      "short",
	})

	_, err := Load()
	require.Error(t, err)
	for _, want := range []string{"PORT", "DB_DRIVER", "DEFAULT_USER_ID", "LOG_LEVEL", "LOG_FORMAT", "JWT_SECRET"} {
		assert.Contains(t, err.Error(), want)
	}
}
