// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Storage backends.
const (
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
	BackendREST   = "rest"
)

// Config holds the application configuration.
type Config struct {
	App     AppConfig
	Logger  LoggerConfig
	Storage StorageConfig
	Server  ServerConfig
	Search  SearchConfig
	Gallery GalleryConfig
	Outbox  OutboxConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
	DataPath    string // Base directory for sqlite, badger and the search index
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// StorageConfig selects and configures the remote store client.
type StorageConfig struct {
	Backend     string        // sqlite, badger or rest (default: sqlite)
	SQLitePath  string        // default: {data}/atomshelf.db
	BadgerPath  string        // default: {data}/kv
	RESTURL     string        // Base URL of the PostgREST-compatible service
	RESTKey     string        // API key sent as apikey + bearer token
	RESTTimeout time.Duration // Per-request timeout (default: 10s)
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Port           string        // default: 8080
	ReadTimeout    time.Duration // default: 15s
	WriteTimeout   time.Duration // default: 15s
	IdleTimeout    time.Duration // default: 60s
	AllowedOrigins []string      // CORS origins (default: *)
	RateLimitRPS   float64       // Write requests per second per client (default: 10)
	RateLimitBurst int           // default: 20
}

// SearchConfig holds full-text index configuration.
type SearchConfig struct {
	Enabled bool   // default: true
	Path    string // default: {data}
}

// GalleryConfig holds gallery view defaults.
type GalleryConfig struct {
	PageSize int // Initial reveal count (default: 40)
}

// OutboxConfig holds retry queue configuration.
type OutboxConfig struct {
	MaxAttempts int           // default: 5
	BaseDelay   time.Duration // First retry delay, doubled per attempt (default: 500ms)
	MaxDelay    time.Duration // default: 30s
}

// LoadConfig loads configuration from the process arguments.
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:])
}

// Load loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("atomshelf", flag.ContinueOnError)

	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	dataPath := fs.String("data-path", "", "Base path for local data")

	backend := fs.String("storage-backend", "", "Store backend: sqlite, badger or rest (default: sqlite)")
	sqlitePath := fs.String("sqlite-path", "", "SQLite database file")
	badgerPath := fs.String("badger-path", "", "Badger data directory")
	restURL := fs.String("rest-url", "", "PostgREST base URL")
	restTimeout := fs.String("rest-timeout", "", "REST request timeout (default: 10s)")

	serverPort := fs.String("port", "", "Server port (default: 8080)")
	readTimeout := fs.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := fs.String("write-timeout", "", "HTTP write timeout (default: 15s)")
	idleTimeout := fs.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")
	origins := fs.String("allowed-origins", "", "Comma-separated CORS origins (default: *)")

	searchEnabled := fs.String("search-enabled", "", "Enable the full-text index (default: true)")
	pageSize := fs.String("page-size", "", "Gallery initial page size (default: 40)")

	envFile := fs.String("env-file", ".env", "Path to .env file")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	// A missing .env file is fine.
	_ = loadEnvFile(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
			DataPath:    getConfigValue(*dataPath, "DATA_PATH", ""),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Storage: StorageConfig{
			Backend:    strings.ToLower(getConfigValue(*backend, "STORAGE_BACKEND", BackendSQLite)),
			SQLitePath: getConfigValue(*sqlitePath, "SQLITE_PATH", ""),
			BadgerPath: getConfigValue(*badgerPath, "BADGER_PATH", ""),
			RESTURL:    getConfigValue(*restURL, "REST_URL", ""),
			RESTKey:    getConfigValue("", "REST_API_KEY", ""),
		},
		Server: ServerConfig{
			Port:           getConfigValue(*serverPort, "SERVER_PORT", "8080"),
			AllowedOrigins: splitList(getConfigValue(*origins, "ALLOWED_ORIGINS", "*")),
			RateLimitRPS:   getFloatConfigValue("", "RATE_LIMIT_RPS", 10),
			RateLimitBurst: getIntConfigValue("", "RATE_LIMIT_BURST", 20),
		},
		Search: SearchConfig{
			Enabled: getBoolConfigValue(*searchEnabled, "SEARCH_ENABLED", true),
			Path:    getConfigValue("", "SEARCH_PATH", ""),
		},
		Gallery: GalleryConfig{
			PageSize: getIntConfigValue(*pageSize, "GALLERY_PAGE_SIZE", 40),
		},
		Outbox: OutboxConfig{
			MaxAttempts: getIntConfigValue("", "OUTBOX_MAX_ATTEMPTS", 5),
		},
	}

	durations := []struct {
		flagValue, envKey, def string
		target                 *time.Duration
	}{
		{*restTimeout, "REST_TIMEOUT", "10s", &cfg.Storage.RESTTimeout},
		{*readTimeout, "SERVER_READ_TIMEOUT", "15s", &cfg.Server.ReadTimeout},
		{*writeTimeout, "SERVER_WRITE_TIMEOUT", "15s", &cfg.Server.WriteTimeout},
		{*idleTimeout, "SERVER_IDLE_TIMEOUT", "60s", &cfg.Server.IdleTimeout},
		{"", "OUTBOX_BASE_DELAY", "500ms", &cfg.Outbox.BaseDelay},
		{"", "OUTBOX_MAX_DELAY", "30s", &cfg.Outbox.MaxDelay},
	}
	for _, d := range durations {
		raw := getConfigValue(d.flagValue, d.envKey, d.def)
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", d.envKey, raw, err)
		}
		*d.target = parsed
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	if c.App.Environment == "" {
		return errors.New("ENV is required")
	}

	validEnvs := map[string]bool{"development": true, "staging": true, "production": true}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	switch c.Storage.Backend {
	case BackendSQLite, BackendBadger:
	case BackendREST:
		if c.Storage.RESTURL == "" {
			return errors.New("REST_URL is required for the rest storage backend")
		}
	default:
		return fmt.Errorf("invalid storage backend: %s (must be sqlite, badger, or rest)", c.Storage.Backend)
	}

	if c.Gallery.PageSize <= 0 {
		return fmt.Errorf("gallery page size must be positive, got %d", c.Gallery.PageSize)
	}
	if c.Outbox.MaxAttempts <= 0 {
		return fmt.Errorf("outbox max attempts must be positive, got %d", c.Outbox.MaxAttempts)
	}

	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty, defaultPath is returned as is.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// expandPaths resolves the data path and derives per-component defaults from it.
func (c *Config) expandPaths() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	if c.App.DataPath, err = expandPath(c.App.DataPath, filepath.Join(homeDir, ".atomshelf")); err != nil {
		return err
	}
	if c.Storage.SQLitePath, err = expandPath(c.Storage.SQLitePath, filepath.Join(c.App.DataPath, "atomshelf.db")); err != nil {
		return err
	}
	if c.Storage.BadgerPath, err = expandPath(c.Storage.BadgerPath, filepath.Join(c.App.DataPath, "kv")); err != nil {
		return err
	}
	if c.Search.Path, err = expandPath(c.Search.Path, c.App.DataPath); err != nil {
		return err
	}
	return nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getBoolConfigValue accepts "true", "1" and "yes" (case-insensitive) as true.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	result, err := strconv.Atoi(strValue)
	if err != nil {
		return defaultValue
	}
	return result
}

// getFloatConfigValue returns a float from flag, env var, or default.
func getFloatConfigValue(flagValue, envKey string, defaultValue float64) float64 {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	result, err := strconv.ParseFloat(strValue, 64)
	if err != nil {
		return defaultValue
	}
	return result
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		// Real environment variables win over the file.
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
