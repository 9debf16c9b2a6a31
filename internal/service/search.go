package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/atomshelf/atomshelf-server/internal/collection"
	domainerrors "github.com/atomshelf/atomshelf-server/internal/errors"
	"github.com/atomshelf/atomshelf-server/internal/filter"
	"github.com/atomshelf/atomshelf-server/internal/normalize"
	"github.com/atomshelf/atomshelf-server/internal/search"
)

// SearchService runs full-text queries. Hits are checked against the
// collection so deleted or private atoms never surface.
//
// Without an index it falls back to the filter engine's substring search.
type SearchService struct {
	index  *search.Index
	store  *collection.Store
	logger *slog.Logger
}

// NewSearchService creates a search service. index may be nil.
func NewSearchService(index *search.Index, store *collection.Store, logger *slog.Logger) *SearchService {
	return &SearchService{index: index, store: store, logger: logger}
}

// Enabled reports whether a full-text index is attached.
func (s *SearchService) Enabled() bool {
	return s.index != nil
}

// Search returns atoms matching params.
func (s *SearchService) Search(ctx context.Context, params search.Params) (*search.Result, error) {
	if params.Limit <= 0 {
		params.Limit = search.DefaultParams().Limit
	}
	if s.index == nil {
		return s.scan(params), nil
	}

	res, err := s.index.Search(ctx, params)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "search failed")
	}

	privacy := filter.NewPrivacy(s.metadata())
	kept := res.Hits[:0]
	for _, h := range res.Hits {
		a, ok := s.store.Atom(h.ID)
		if !ok {
			s.logger.Debug("search hit for unknown atom", "atom_id", h.ID)
			continue
		}
		if privacy.Hides(a, params.Tags) {
			continue
		}
		kept = append(kept, h)
	}
	res.Hits = kept
	return res, nil
}

// scan answers a query from the in-memory collection.
func (s *SearchService) scan(params search.Params) *search.Result {
	start := time.Now()
	p := filter.Predicates{
		Search:       params.Query,
		ContentTypes: params.ContentTypes,
		SelectedTags: params.Tags,
		HideHidden:   !params.IncludeHidden,
	}
	matched := filter.Apply(s.store.Atoms(), p, s.metadata()).Atoms

	out := &search.Result{Query: params.Query, Total: uint64(len(matched)), Hits: []search.Hit{}}
	from := min(max(params.Offset, 0), len(matched))
	to := min(from+params.Limit, len(matched))
	for _, a := range matched[from:to] {
		hit := search.Hit{ID: a.ID, Title: a.Title, ContentType: a.ContentType, Tags: a.Tags}
		if a.CreatorName != nil {
			hit.Creators = normalize.SplitCreators(*a.CreatorName)
		}
		out.Hits = append(out.Hits, hit)
	}
	out.TookMs = time.Since(start).Milliseconds()
	return out
}

// metadata is the catalog context for privacy checks. Default-category
// scoping does not apply to search.
func (s *SearchService) metadata() filter.Metadata {
	return filter.Metadata{
		Categories:   s.store.Categories(),
		CategoryTags: s.store.CategoryTagLinks(),
		Tags:         s.store.Tags(),
	}
}

// Reindex rebuilds the index from the collection.
func (s *SearchService) Reindex(ctx context.Context) (int, error) {
	if s.index == nil {
		return 0, domainerrors.Validation("search index is disabled")
	}
	atoms := s.store.Atoms()
	if err := s.index.Reindex(ctx, atoms); err != nil {
		return 0, domainerrors.Wrap(err, domainerrors.CodeInternal, "reindex failed")
	}
	s.logger.Info("search index rebuilt", "atoms", len(atoms))
	return len(atoms), nil
}
