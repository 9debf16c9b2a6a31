package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		App:     AppConfig{Environment: "development", DataPath: "/data"},
		Logger:  LoggerConfig{Level: "info"},
		Storage: StorageConfig{Backend: BackendSQLite},
		Gallery: GalleryConfig{PageSize: 40},
		Outbox:  OutboxConfig{MaxAttempts: 5},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_AllEnvironments(t *testing.T) {
	tests := []struct {
		env   string
		valid bool
	}{
		{"development", true},
		{"staging", true},
		{"production", true},
		{"test", false},
		{"", false},
		{"DEVELOPMENT", false},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			cfg := validConfig()
			cfg.App.Environment = tt.env
			if tt.valid {
				assert.NoError(t, cfg.Validate())
			} else {
				assert.Error(t, cfg.Validate())
			}
		})
	}
}

func TestValidate_StorageBackend(t *testing.T) {
	tests := []struct {
		name    string
		backend string
		restURL string
		valid   bool
	}{
		{"sqlite", BackendSQLite, "", true},
		{"badger", BackendBadger, "", true},
		{"rest with url", BackendREST, "http://localhost:3000", true},
		{"rest without url", BackendREST, "", false},
		{"unknown", "postgres", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Storage.Backend = tt.backend
			cfg.Storage.RESTURL = tt.restURL
			if tt.valid {
				assert.NoError(t, cfg.Validate())
			} else {
				assert.Error(t, cfg.Validate())
			}
		})
	}
}

func TestValidate_RejectsNonPositivePageSize(t *testing.T) {
	cfg := validConfig()
	cfg.Gallery.PageSize = 0
	assert.Error(t, cfg.Validate())
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("# comment\nSERVER_PORT=7000\nGALLERY_PAGE_SIZE=12\nLOG_LEVEL='debug'\n"), 0o600))

	t.Setenv("SERVER_PORT", "")
	t.Setenv("GALLERY_PAGE_SIZE", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("STORAGE_BACKEND", "badger")

	cfg, err := Load([]string{"-env-file", envFile, "-data-path", dir, "-port", "9090"})
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port, "flag beats .env")
	assert.Equal(t, 12, cfg.Gallery.PageSize, ".env beats default")
	assert.Equal(t, "debug", cfg.Logger.Level, "quotes stripped")
	assert.Equal(t, BackendBadger, cfg.Storage.Backend, "env var used")
	assert.Equal(t, filepath.Join(dir, "atomshelf.db"), cfg.Storage.SQLitePath)
	assert.Equal(t, filepath.Join(dir, "kv"), cfg.Storage.BadgerPath)
	assert.Equal(t, 10*time.Second, cfg.Storage.RESTTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Outbox.BaseDelay)
}

func TestLoad_InvalidDuration(t *testing.T) {
	_, err := Load([]string{"-env-file", filepath.Join(t.TempDir(), "missing"), "-read-timeout", "soon"})
	assert.Error(t, err)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := expandPath("~/shelf", "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "shelf"), got)

	got, err = expandPath("", "/default")
	require.NoError(t, err)
	assert.Equal(t, "/default", got)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"http://a", "http://b"}, splitList(" http://a, ,http://b "))
	assert.Nil(t, splitList(""))
}
