// Package service glues the collection store to the filter engine, the search
// index and the retry queue.
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/atomshelf/atomshelf-server/internal/collection"
	"github.com/atomshelf/atomshelf-server/internal/domain"
	domainerrors "github.com/atomshelf/atomshelf-server/internal/errors"
	"github.com/atomshelf/atomshelf-server/internal/filter"
	"github.com/atomshelf/atomshelf-server/internal/id"
)

// maxViews bounds the number of live gallery views. The least recently used
// view is dropped when a new one would exceed it.
const maxViews = 256

// ViewRequest asks for one page of the gallery.
type ViewRequest struct {
	// ViewID continues an existing view. Empty starts a new one.
	ViewID     string
	Predicates filter.Predicates
	// UseSelection takes the selected tags from the store instead of
	// Predicates.SelectedTags.
	UseSelection bool
	// More reveals one more page before slicing.
	More bool
}

// ViewResponse is the revealed prefix of the filtered gallery.
type ViewResponse struct {
	ViewID      string        `json:"view_id"`
	Atoms       []domain.Atom `json:"atoms"`
	Total       int           `json:"total"`
	Revealed    int           `json:"revealed"`
	HasMore     bool          `json:"has_more"`
	Reset       bool          `json:"reset"`
	IdeaPending bool          `json:"idea_pending"`
	Deleting    []int64       `json:"deleting,omitempty"`
}

type view struct {
	pager    *filter.Pager
	lastUsed time.Time
}

// GalleryService serves filtered, paged views of the collection.
type GalleryService struct {
	store    *collection.Store
	pageSize int
	logger   *slog.Logger

	mu    sync.Mutex
	views map[string]*view
}

// NewGalleryService creates a gallery service.
func NewGalleryService(store *collection.Store, pageSize int, logger *slog.Logger) *GalleryService {
	if pageSize <= 0 {
		pageSize = filter.DefaultPageSize
	}
	return &GalleryService{
		store:    store,
		pageSize: pageSize,
		logger:   logger,
		views:    make(map[string]*view),
	}
}

// View filters the collection and returns the page revealed so far for the
// view. The reveal count resets whenever the predicates change.
func (s *GalleryService) View(ctx context.Context, req ViewRequest) (*ViewResponse, error) {
	p := req.Predicates
	if req.UseSelection {
		p.SelectedTags = s.store.SelectedTags()
	}

	meta, err := s.metadata(ctx, p)
	if err != nil {
		return nil, err
	}
	result := filter.Apply(s.store.Atoms(), p, meta)

	viewID, v, err := s.view(req.ViewID)
	if err != nil {
		return nil, err
	}
	reset := v.pager.Sync(filter.Signature(p))
	if req.More && !reset {
		v.pager.More()
	}
	page := filter.Slice(v.pager, result.Atoms)

	return &ViewResponse{
		ViewID:      viewID,
		Atoms:       page.Items,
		Total:       page.Total,
		Revealed:    v.pager.Revealed(),
		HasMore:     page.HasMore,
		Reset:       reset,
		IdeaPending: result.IdeaPending,
		Deleting:    s.store.Deleting(),
	}, nil
}

// metadata gathers the catalog context for p, fetching idea children on
// first use. A failed child fetch leaves the idea scope pending.
func (s *GalleryService) metadata(ctx context.Context, p filter.Predicates) (filter.Metadata, error) {
	favorites := s.store.FavoriteCreators()
	names := make([]string, len(favorites))
	for i, c := range favorites {
		names[i] = c.Name
	}

	meta := filter.Metadata{
		Categories:        s.store.Categories(),
		CategoryTags:      s.store.CategoryTagLinks(),
		Tags:              s.store.Tags(),
		FavoriteCreators:  names,
		DefaultCategoryID: s.store.DefaultCategory(),
	}

	if p.IdeaID == nil {
		return meta, nil
	}
	if _, ok := s.store.Atom(*p.IdeaID); !ok {
		return meta, domainerrors.NotFoundf("idea %d not found", *p.IdeaID)
	}
	children, loaded := s.store.IdeaChildren(*p.IdeaID)
	if !loaded {
		fetched, err := s.store.FetchIdeaChildren(ctx, *p.IdeaID)
		if err != nil {
			s.logger.Warn("failed to load idea children", "idea_id", *p.IdeaID, "error", err)
		} else {
			children, loaded = fetched, true
		}
	}
	meta.IdeaChildren = filter.IdeaChildren{IDs: children, Loaded: loaded}
	return meta, nil
}

func (s *GalleryService) view(viewID string) (string, *view, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if v, ok := s.views[viewID]; ok {
		v.lastUsed = now
		return viewID, v, nil
	}

	if viewID == "" {
		var err error
		if viewID, err = id.Generate(id.PrefixView); err != nil {
			return "", nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "generate view id")
		}
	}
	if len(s.views) >= maxViews {
		s.evictOldest()
	}
	v := &view{pager: filter.NewPager(s.pageSize), lastUsed: now}
	s.views[viewID] = v
	return viewID, v, nil
}

func (s *GalleryService) evictOldest() {
	var oldestID string
	var oldest time.Time
	for vid, v := range s.views {
		if oldestID == "" || v.lastUsed.Before(oldest) {
			oldestID, oldest = vid, v.lastUsed
		}
	}
	delete(s.views, oldestID)
}

// ViewCount returns the number of live views.
func (s *GalleryService) ViewCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.views)
}
