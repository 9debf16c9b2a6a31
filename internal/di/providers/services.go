package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/atomshelf/atomshelf-server/internal/collection"
	"github.com/atomshelf/atomshelf-server/internal/config"
	"github.com/atomshelf/atomshelf-server/internal/logger"
	"github.com/atomshelf/atomshelf-server/internal/outbox"
	"github.com/atomshelf/atomshelf-server/internal/service"
)

// OutboxHandle wraps the retry queue with its context for lifecycle management.
type OutboxHandle struct {
	*outbox.Queue
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable. Jobs still waiting fail with outbox.ErrClosed.
func (h *OutboxHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := h.Queue.Shutdown(ctx)
	h.cancel()
	return err
}

// ProvideOutbox provides the background retry queue for partially applied operations.
func ProvideOutbox(i do.Injector) (*OutboxHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	q := outbox.New(outbox.Options{
		MaxAttempts: cfg.Outbox.MaxAttempts,
		BaseDelay:   cfg.Outbox.BaseDelay,
		MaxDelay:    cfg.Outbox.MaxDelay,
		JitterFrac:  0.2,
		Retryable:   service.Retryable,
		Logger:      log.WithComponent("outbox").Logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	q.Start(ctx)

	log.Info("Retry queue started", "max_attempts", cfg.Outbox.MaxAttempts)
	return &OutboxHandle{Queue: q, cancel: cancel}, nil
}

// ProvideGalleryService provides the gallery view service.
func ProvideGalleryService(i do.Injector) (*service.GalleryService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	st := do.MustInvoke[*collection.Store](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewGalleryService(st, cfg.Gallery.PageSize, log.Logger), nil
}

// ProvideTaxonomyService provides the merge service.
func ProvideTaxonomyService(i do.Injector) (*service.TaxonomyService, error) {
	st := do.MustInvoke[*collection.Store](i)
	queue := do.MustInvoke[*OutboxHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewTaxonomyService(st, queue.Queue, log.Logger), nil
}
