// Package collection holds the in-memory mirror of the catalog tables and
// every mutation on them.
//
// Writes go to the remote store first. Local state changes only after the
// remote call is confirmed, so a failed write never leaves the mirror ahead of
// the store. Updates patch the local copy with the caller's partial rather
// than re-reading the row.
package collection

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/atomshelf/atomshelf-server/internal/domain"
	domainerrors "github.com/atomshelf/atomshelf-server/internal/errors"
	"github.com/atomshelf/atomshelf-server/internal/store"
)

// EventEmitter receives an event after each confirmed write.
// *sse.Manager satisfies it.
type EventEmitter interface {
	Emit(event any)
}

// Indexer keeps a search index in step with atom writes.
type Indexer interface {
	IndexAtom(ctx context.Context, atom domain.Atom) error
	RemoveAtom(ctx context.Context, id int64) error
}

type nopEmitter struct{}

func (nopEmitter) Emit(any) {}

type nopIndexer struct{}

func (nopIndexer) IndexAtom(context.Context, domain.Atom) error { return nil }
func (nopIndexer) RemoveAtom(context.Context, int64) error      { return nil }

// Options configures a Store.
type Options struct {
	Logger  *slog.Logger
	Events  EventEmitter
	Indexer Indexer
	Now     func() time.Time // Clock for created_at/updated_at; time.Now if nil
}

// Store is the catalog mirror. It is safe for concurrent use: one RWMutex
// guards local state and remote calls are made without holding it.
type Store struct {
	client  store.Client
	logger  *slog.Logger
	events  EventEmitter
	indexer Indexer
	now     func() time.Time

	mu              sync.RWMutex
	atoms           []domain.Atom // created_at desc
	tags            []domain.Tag
	categories      []domain.Category
	creators        []domain.Creator
	categoryTags    []domain.CategoryTag
	creatorTags     []domain.CreatorTag
	creatorAtoms    []domain.CreatorAtom
	ideaChildren    map[int64][]int64
	deleting        map[int64]struct{}
	selected        []string
	defaultCategory *int64

	// version bumps on every tag or join-table change and keys the derivation memo.
	version uint64
	memo    derivationMemo
}

// New creates a Store over client. Nothing is fetched until Load or a Fetch* call.
func New(client store.Client, opts Options) *Store {
	s := &Store{
		client:       client,
		logger:       opts.Logger,
		events:       opts.Events,
		indexer:      opts.Indexer,
		now:          opts.Now,
		ideaChildren: make(map[int64][]int64),
		deleting:     make(map[int64]struct{}),
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	if s.events == nil {
		s.events = nopEmitter{}
	}
	if s.indexer == nil {
		s.indexer = nopIndexer{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Load fetches every table. Entity tables are required; join tables and
// settings are best effort and only logged on failure.
func (s *Store) Load(ctx context.Context) error {
	if _, err := s.FetchAtoms(ctx); err != nil {
		return err
	}
	if _, err := s.FetchTags(ctx); err != nil {
		return err
	}
	if _, err := s.FetchCategories(ctx); err != nil {
		return err
	}
	if _, err := s.FetchCreators(ctx); err != nil {
		return err
	}

	s.logIfFailed("category tags", s.FetchCategoryTags(ctx))
	s.logIfFailed("creator tags", s.FetchCreatorTags(ctx))
	s.logIfFailed("creator atoms", s.FetchCreatorAtoms(ctx))
	if _, err := s.FetchDefaultCategory(ctx); err != nil {
		s.logIfFailed("default category", err)
	}

	s.mu.RLock()
	s.logger.Info("catalog loaded",
		"atoms", len(s.atoms),
		"tags", len(s.tags),
		"categories", len(s.categories),
		"creators", len(s.creators),
	)
	s.mu.RUnlock()
	return nil
}

// Ping checks the remote store.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx); err != nil {
		return domainerrors.Remote("ping", err)
	}
	return nil
}

func (s *Store) logIfFailed(what string, err error) {
	if err != nil {
		s.logger.Warn("refetch failed, keeping previous state", "what", what, "error", err)
	}
}

// remoteErr wraps a store failure and logs it.
func (s *Store) remoteErr(op string, err error) error {
	s.logger.Error("remote write failed", "op", op, "error", err)
	return domainerrors.Remote(op, err)
}

// selectAll runs a select and decodes the rows into T.
func selectAll[T any](ctx context.Context, c store.Client, table store.Table, q store.Query) ([]T, error) {
	rows, err := c.Select(ctx, table, q)
	if err != nil {
		return nil, domainerrors.Remote("select "+string(table), err)
	}
	out, err := store.Decode[T](rows)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "decode "+string(table))
	}
	return out, nil
}

// insertOne inserts v and decodes the stored row.
func insertOne[T any](ctx context.Context, c store.Client, table store.Table, v any) (T, error) {
	var zero T
	row, err := store.Encode(v)
	if err != nil {
		return zero, domainerrors.Wrap(err, domainerrors.CodeInternal, "encode "+string(table))
	}
	delete(row, "id")
	rows, err := c.Insert(ctx, table, row)
	if err != nil {
		return zero, err
	}
	if len(rows) == 0 {
		return zero, store.ErrUnavailable.WithMessage("insert returned no rows")
	}
	out, err := store.DecodeRow[T](rows[0])
	if err != nil {
		return zero, domainerrors.Wrap(err, domainerrors.CodeInternal, "decode "+string(table))
	}
	return out, nil
}

// encodePatch turns a typed patch into a row, dropping absent fields.
func encodePatch(p any) (store.Row, error) {
	row, err := store.Encode(p)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "encode patch")
	}
	return row, nil
}

// bump invalidates derived lookups. Caller holds s.mu.
func (s *Store) bump() {
	s.version++
}
