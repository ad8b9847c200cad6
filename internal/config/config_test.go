package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestEnv sets up environment variables for testing and returns a cleanup function
func setupTestEnv(t *testing.T, envVars map[string]string) func() {
	// Store original values
	original := make(map[string]string)
	for key := range envVars {
		original[key] = os.Getenv(key)
	}

	// Set test values
	for key, value := range envVars {
		if value == "" {
			err := os.Unsetenv(key)
			if err != nil {
				t.Error(err)
			}
		} else {
			err := os.Setenv(key, value)
			if err != nil {
				t.Error(err)
			}
		}
	}

	// Return cleanup function
	return func() {
		for key, value := range original {
			if value == "" {
				err := os.Unsetenv(key)
				if err != nil {
					t.Error(err)
				}
			} else {
				err := os.Setenv(key, value)
				if err != nil {
					t.Error(err)
				}
			}
		}
	}
}

func TestLoadConfigSuccess(t *testing.T) {
	cleanup := setupTestEnv(t, map[string]string{
		"DISCORD_TOKEN":       "test_token_123",
		"STORE_BACKEND":       "file",
		"STORE_FILE_PATH":     "/tmp/grants.json",
		"LOG_LEVEL":           "debug",
		"LOG_FORMAT":          "console",
		"PREVIEW_TTL_MINUTES": "10",
	})
	defer cleanup()

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "test_token_123", cfg.Discord.Token)
	assert.Equal(t, BackendFile, cfg.Store.Backend)
	assert.Equal(t, "/tmp/grants.json", cfg.Store.FilePath)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Equal(t, 10, cfg.Preview.TTLMinutes)
}

func TestLoadConfigDefaults(t *testing.T) {
	cleanup := setupTestEnv(t, map[string]string{
		"DISCORD_TOKEN":       "test_token_123",
		"STORE_BACKEND":       "",
		"STORE_FILE_PATH":     "",
		"STORE_SQLITE_PATH":   "",
		"LOG_LEVEL":           "",
		"LOG_FORMAT":          "",
		"PREVIEW_TTL_MINUTES": "",
	})
	defer cleanup()

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, BackendFile, cfg.Store.Backend)
	assert.Equal(t, "data/grants.json", cfg.Store.FilePath)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 5, cfg.Preview.TTLMinutes)
}

func TestLoadConfigMissingToken(t *testing.T) {
	cleanup := setupTestEnv(t, map[string]string{
		"DISCORD_TOKEN": "",
	})
	defer cleanup()

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DISCORD_TOKEN is required")
}

func TestLoadConfigUnknownBackend(t *testing.T) {
	cleanup := setupTestEnv(t, map[string]string{
		"DISCORD_TOKEN": "test_token_123",
		"STORE_BACKEND": "redis",
	})
	defer cleanup()

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STORE_BACKEND must be one of")
}

func TestLoadConfigPostgresRequiresCredentials(t *testing.T) {
	cleanup := setupTestEnv(t, map[string]string{
		"DISCORD_TOKEN": "test_token_123",
		"STORE_BACKEND": "postgres",
		"DB_PASSWORD":   "",
	})
	defer cleanup()

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_PASSWORD is required")
}

func TestLoadConfigInvalidLogLevel(t *testing.T) {
	cleanup := setupTestEnv(t, map[string]string{
		"DISCORD_TOKEN": "test_token_123",
		"LOG_LEVEL":     "verbose",
	})
	defer cleanup()

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LOG_LEVEL must be one of")
}

func TestLoadConfigInvalidPreviewTTL(t *testing.T) {
	cleanup := setupTestEnv(t, map[string]string{
		"DISCORD_TOKEN":       "test_token_123",
		"PREVIEW_TTL_MINUTES": "0",
	})
	defer cleanup()

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PREVIEW_TTL_MINUTES must be positive")
}

func TestGetDSN(t *testing.T) {
	db := DatabaseConfig{
		Host:     "localhost",
		Port:     "5432",
		User:     "rolewarden",
		Password: "secret",
		Name:     "rolewarden_db",
		SSLMode:  "disable",
	}

	dsn := db.GetDSN()
	assert.Equal(t, "host=localhost port=5432 user=rolewarden password=secret dbname=rolewarden_db sslmode=disable", dsn)
}
