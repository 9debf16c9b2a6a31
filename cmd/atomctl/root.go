package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/atomshelf/atomshelf-server/internal/collection"
	"github.com/atomshelf/atomshelf-server/internal/config"
	"github.com/atomshelf/atomshelf-server/internal/di/providers"
	"github.com/atomshelf/atomshelf-server/internal/logger"
	"github.com/atomshelf/atomshelf-server/internal/store"
)

var (
	backend  string
	dataPath string
	logLevel string
	envFile  string
	jsonOut  bool
)

var rootCmd = &cobra.Command{
	Use:           "atomctl",
	Short:         "Inspect and maintain an atomshelf catalog",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&backend, "storage-backend", "", "Store backend: sqlite, badger or rest")
	rootCmd.PersistentFlags().StringVar(&dataPath, "data-path", "", "Base path for local data")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to .env file")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Print results as JSON")
}

// session is an opened catalog. Close releases the store client.
type session struct {
	cfg    *config.Config
	log    *logger.Logger
	client store.Client
	store  *collection.Store
}

func (s *session) Close() {
	if err := s.client.Close(); err != nil {
		s.log.Warn("closing store failed", "error", err)
	}
}

// configArgs turns the persistent flags into config.Load arguments so the
// CLI resolves settings exactly like the server.
func configArgs() []string {
	args := []string{"-env-file", envFile}
	if backend != "" {
		args = append(args, "-storage-backend", backend)
	}
	if dataPath != "" {
		args = append(args, "-data-path", dataPath)
	}
	if logLevel != "" {
		args = append(args, "-log-level", logLevel)
	}
	return args
}

// openSession loads config, opens the store and mirrors the catalog.
func openSession(ctx context.Context) (*session, error) {
	cfg, err := config.Load(configArgs())
	if err != nil {
		return nil, err
	}
	log := providers.NewLogger(cfg)

	client, err := providers.OpenStoreClient(cfg, log.Logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	st := collection.New(client, collection.Options{Logger: log.WithComponent("collection").Logger})
	if err := st.Load(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	return &session{cfg: cfg, log: log, client: client, store: st}, nil
}
