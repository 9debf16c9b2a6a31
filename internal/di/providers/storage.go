package providers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/samber/do/v2"

	"github.com/atomshelf/atomshelf-server/internal/collection"
	"github.com/atomshelf/atomshelf-server/internal/config"
	"github.com/atomshelf/atomshelf-server/internal/logger"
	"github.com/atomshelf/atomshelf-server/internal/sse"
	"github.com/atomshelf/atomshelf-server/internal/store"
	"github.com/atomshelf/atomshelf-server/internal/store/kv"
	"github.com/atomshelf/atomshelf-server/internal/store/rest"
	"github.com/atomshelf/atomshelf-server/internal/store/sqlite"
)

// SSEManagerHandle wraps the SSE manager with its context for lifecycle management.
type SSEManagerHandle struct {
	*sse.Manager
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *SSEManagerHandle) Shutdown() error {
	h.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Manager.Shutdown(ctx)
}

// ProvideSSEManager provides the server-sent events manager.
func ProvideSSEManager(i do.Injector) (*SSEManagerHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)

	manager := sse.NewManager(log.Logger)

	// Start in background
	ctx, cancel := context.WithCancel(context.Background())
	go manager.Start(ctx)

	log.Info("SSE manager started")

	return &SSEManagerHandle{
		Manager: manager,
		cancel:  cancel,
	}, nil
}

// StoreClientHandle wraps the remote store client with shutdown capability.
type StoreClientHandle struct {
	store.Client
}

// Shutdown implements do.Shutdownable.
func (h *StoreClientHandle) Shutdown() error {
	return h.Close()
}

// ProvideStoreClient provides the remote store client for the configured backend.
func ProvideStoreClient(i do.Injector) (*StoreClientHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	client, err := OpenStoreClient(cfg, log.Logger)
	if err != nil {
		return nil, err
	}
	return &StoreClientHandle{Client: client}, nil
}

// OpenStoreClient opens the store.Client selected by cfg.Storage.Backend.
func OpenStoreClient(cfg *config.Config, log *slog.Logger) (store.Client, error) {
	switch cfg.Storage.Backend {
	case config.BackendSQLite:
		c, err := sqlite.Open(cfg.Storage.SQLitePath, log)
		if err != nil {
			return nil, err
		}
		log.Info("Store opened", "backend", "sqlite", "path", cfg.Storage.SQLitePath)
		return c, nil

	case config.BackendBadger:
		c, err := kv.Open(kv.Options{Path: cfg.Storage.BadgerPath, Logger: log})
		if err != nil {
			return nil, err
		}
		log.Info("Store opened", "backend", "badger", "path", cfg.Storage.BadgerPath)
		return c, nil

	case config.BackendREST:
		c, err := rest.New(rest.Options{
			BaseURL: cfg.Storage.RESTURL,
			APIKey:  cfg.Storage.RESTKey,
			Timeout: cfg.Storage.RESTTimeout,
			Logger:  log,
		})
		if err != nil {
			return nil, err
		}
		log.Info("Store opened", "backend", "rest", "url", cfg.Storage.RESTURL)
		return c, nil

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// ProvideCollectionStore provides the catalog mirror, loaded from the remote
// store. Writes are broadcast over SSE and mirrored into the search index.
func ProvideCollectionStore(i do.Injector) (*collection.Store, error) {
	log := do.MustInvoke[*logger.Logger](i)
	client := do.MustInvoke[*StoreClientHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)

	opts := collection.Options{
		Logger: log.WithComponent("collection").Logger,
		Events: sseHandle.Manager,
	}
	if indexHandle.Index != nil {
		opts.Indexer = indexHandle.Index
	}

	st := collection.New(client, opts)
	if err := st.Load(context.Background()); err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	return st, nil
}
