// Package providers contains dependency injection providers for the atomshelf server.
package providers

import (
	"github.com/samber/do/v2"

	"github.com/atomshelf/atomshelf-server/internal/config"
	"github.com/atomshelf/atomshelf-server/internal/logger"
)

// ProvideConfig provides the application configuration.
func ProvideConfig(i do.Injector) (*config.Config, error) {
	return config.LoadConfig()
}

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log := NewLogger(cfg)
	log.Info("Starting atomshelf server",
		"environment", cfg.App.Environment,
		"log_level", cfg.Logger.Level,
		"storage_backend", cfg.Storage.Backend,
		"data_path", cfg.App.DataPath,
	)

	return log, nil
}

// NewLogger builds the logger described by cfg. The CLI shares it.
func NewLogger(cfg *config.Config) *logger.Logger {
	return logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		AddSource:   cfg.App.Environment == "development",
		Environment: cfg.App.Environment,
	})
}
