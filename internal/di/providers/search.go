package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/atomshelf/atomshelf-server/internal/collection"
	"github.com/atomshelf/atomshelf-server/internal/config"
	"github.com/atomshelf/atomshelf-server/internal/logger"
	"github.com/atomshelf/atomshelf-server/internal/search"
	"github.com/atomshelf/atomshelf-server/internal/service"
)

// SearchIndexHandle wraps the search index with shutdown capability.
// Index is nil when search is disabled.
type SearchIndexHandle struct {
	*search.Index
}

// Shutdown implements do.Shutdownable.
func (h *SearchIndexHandle) Shutdown() error {
	if h.Index == nil {
		return nil
	}
	return h.Close()
}

// ProvideSearchIndex provides the Bleve search index.
func ProvideSearchIndex(i do.Injector) (*SearchIndexHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if !cfg.Search.Enabled {
		log.Info("Search index disabled, search falls back to collection scans")
		return &SearchIndexHandle{}, nil
	}

	index, err := search.NewIndex(search.Options{
		DataPath: cfg.Search.Path,
		Logger:   log.Logger,
	})
	if err != nil {
		return nil, err
	}

	docCount, _ := index.Count()
	log.Info("Search index initialized", "documents", docCount)

	return &SearchIndexHandle{Index: index}, nil
}

// ProvideSearchService provides the search service.
func ProvideSearchService(i do.Injector) (*service.SearchService, error) {
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	st := do.MustInvoke[*collection.Store](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewSearchService(indexHandle.Index, st, log.Logger), nil
}

// TriggerSearchReindexIfNeeded rebuilds an empty index when the catalog has atoms.
// Should be called after all services are wired.
func TriggerSearchReindexIfNeeded(i do.Injector) {
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	searchService := do.MustInvoke[*service.SearchService](i)
	st := do.MustInvoke[*collection.Store](i)
	log := do.MustInvoke[*logger.Logger](i)

	if indexHandle.Index == nil {
		return
	}
	docCount, _ := indexHandle.Count()
	atoms := len(st.Atoms())
	if docCount > 0 || atoms == 0 {
		return
	}

	log.Info("Search index is empty but atoms exist, triggering initial reindex", "atom_count", atoms)

	go func() {
		if _, err := searchService.Reindex(context.Background()); err != nil {
			log.Error("Initial search reindex failed", "error", err)
		}
	}()
}
