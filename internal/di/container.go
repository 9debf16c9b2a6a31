// Package di provides dependency injection configuration for the atomshelf server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/atomshelf/atomshelf-server/internal/collection"
	"github.com/atomshelf/atomshelf-server/internal/config"
	"github.com/atomshelf/atomshelf-server/internal/di/providers"
	"github.com/atomshelf/atomshelf-server/internal/logger"
	"github.com/atomshelf/atomshelf-server/internal/service"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideSSEManager)

	// Storage layer
	do.Provide(injector, providers.ProvideStoreClient)
	do.Provide(injector, providers.ProvideSearchIndex)
	do.Provide(injector, providers.ProvideCollectionStore)

	// Workers
	do.Provide(injector, providers.ProvideOutbox)

	// Business services
	do.Provide(injector, providers.ProvideSearchService)
	do.Provide(injector, providers.ProvideGalleryService)
	do.Provide(injector, providers.ProvideTaxonomyService)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and returns handles for lifecycle management.
// This triggers lazy initialization of all core services.
func Bootstrap(injector *do.RootScope) error {
	if _, err := do.Invoke[*config.Config](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*providers.SSEManagerHandle](injector)

	if _, err := do.Invoke[*providers.StoreClientHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.SearchIndexHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*collection.Store](injector); err != nil {
		return err
	}

	_ = do.MustInvoke[*providers.OutboxHandle](injector)
	_ = do.MustInvoke[*service.SearchService](injector)
	_ = do.MustInvoke[*service.GalleryService](injector)
	_ = do.MustInvoke[*service.TaxonomyService](injector)

	// Server
	if _, err := do.Invoke[*providers.HTTPServerHandle](injector); err != nil {
		return err
	}

	// Trigger search reindex if needed
	providers.TriggerSearchReindexIfNeeded(injector)

	return nil
}
