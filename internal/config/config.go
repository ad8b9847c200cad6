// Package config provides application configuration management using environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Store backend names accepted by STORE_BACKEND.
const (
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Config holds all configuration for the application
type Config struct {
	Discord  DiscordConfig
	Store    StoreConfig
	Database DatabaseConfig
	Preview  PreviewConfig
	Logging  LoggingConfig
}

// DiscordConfig holds bot credentials
type DiscordConfig struct {
	Token string
}

// StoreConfig selects the grant store backend
type StoreConfig struct {
	Backend    string
	FilePath   string
	SQLitePath string
}

// DatabaseConfig holds Postgres connection configuration, used when the
// store backend is "postgres"
type DatabaseConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

// PreviewConfig holds role-preview session settings
type PreviewConfig struct {
	TTLMinutes int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// Load loads configuration from environment variables
// It optionally loads from a .env file if it exists
func Load() (*Config, error) {
	// Try to load .env file (optional, ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{}

	cfg.Discord = DiscordConfig{
		Token: getEnv("DISCORD_TOKEN", ""),
	}

	cfg.Store = StoreConfig{
		Backend:    getEnv("STORE_BACKEND", BackendFile),
		FilePath:   getEnv("STORE_FILE_PATH", "data/grants.json"),
		SQLitePath: getEnv("STORE_SQLITE_PATH", "data/grants.db"),
	}

	maxOpenConns, _ := strconv.Atoi(getEnv("DB_MAX_OPEN_CONNS", "25"))
	maxIdleConns, _ := strconv.Atoi(getEnv("DB_MAX_IDLE_CONNS", "5"))

	cfg.Database = DatabaseConfig{
		Host:         getEnv("DB_HOST", "localhost"),
		Port:         getEnv("DB_PORT", "5432"),
		User:         getEnv("DB_USER", "rolewarden"),
		Password:     getEnv("DB_PASSWORD", ""),
		Name:         getEnv("DB_NAME", "rolewarden_db"),
		SSLMode:      getEnv("DB_SSLMODE", "disable"),
		MaxOpenConns: maxOpenConns,
		MaxIdleConns: maxIdleConns,
	}

	previewTTL, _ := strconv.Atoi(getEnv("PREVIEW_TTL_MINUTES", "5"))
	cfg.Preview = PreviewConfig{
		TTLMinutes: previewTTL,
	}

	cfg.Logging = LoggingConfig{
		Level:  getEnv("LOG_LEVEL", "info"),
		Format: getEnv("LOG_FORMAT", "json"),
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Discord.Token == "" {
		return fmt.Errorf("DISCORD_TOKEN is required")
	}

	switch c.Store.Backend {
	case BackendFile:
		if c.Store.FilePath == "" {
			return fmt.Errorf("STORE_FILE_PATH is required for the file backend")
		}
	case BackendSQLite:
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("STORE_SQLITE_PATH is required for the sqlite backend")
		}
	case BackendPostgres:
		if c.Database.User == "" {
			return fmt.Errorf("DB_USER is required for the postgres backend")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("DB_PASSWORD is required for the postgres backend")
		}
		if c.Database.Name == "" {
			return fmt.Errorf("DB_NAME is required for the postgres backend")
		}
	default:
		return fmt.Errorf("STORE_BACKEND must be one of: file, sqlite, postgres")
	}

	if c.Preview.TTLMinutes <= 0 {
		return fmt.Errorf("PREVIEW_TTL_MINUTES must be positive")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of: debug, info, warn, error")
	}
	validLogFormats := map[string]bool{"json": true, "console": true}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}

	return nil
}

// GetDSN returns the database connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// getEnv retrieves an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
