package search

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"

	"github.com/atomshelf/atomshelf-server/internal/domain"
)

// Index wraps a Bleve index of atoms.
//
// All methods are safe for concurrent use. The mutex guards the index handle
// across Rebuild.
type Index struct {
	index    bleve.Index
	path     string
	inMemory bool
	logger   *slog.Logger
	mu       sync.RWMutex
}

// Options configures the search index.
type Options struct {
	DataPath string // Directory for index storage
	InMemory bool   // Keep the index in memory; DataPath is ignored
	Logger   *slog.Logger
}

// mappingVersion changes whenever buildIndexMapping does. An index on disk
// with a different version is dropped and recreated on open.
const mappingVersion = "1"

const batchSize = 500

// NewIndex opens the index under DataPath, creating it when missing,
// corrupted, or built with an older mapping.
func NewIndex(opts Options) (*Index, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if opts.InMemory {
		index, err := bleve.NewMemOnly(buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create in-memory index: %w", err)
		}
		return &Index{index: index, inMemory: true, logger: logger}, nil
	}

	indexPath := filepath.Join(opts.DataPath, "atoms.bleve")
	versionPath := filepath.Join(opts.DataPath, "atoms.version")

	var index bleve.Index
	if _, statErr := os.Stat(indexPath); statErr == nil {
		version, readErr := os.ReadFile(versionPath)
		switch {
		case readErr != nil:
			logger.Info("search index has no version file, rebuilding", "new_version", mappingVersion)
		case string(version) != mappingVersion:
			logger.Info("search index mapping changed, rebuilding",
				"old_version", string(version),
				"new_version", mappingVersion,
			)
		default:
			var err error
			index, err = bleve.Open(indexPath)
			if err != nil {
				logger.Warn("failed to open existing index, recreating", "path", indexPath, "error", err)
				index = nil
			}
		}
		if index == nil {
			if err := os.RemoveAll(indexPath); err != nil {
				return nil, fmt.Errorf("remove old index: %w", err)
			}
		}
	}

	if index == nil {
		var err error
		index, err = bleve.New(indexPath, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create index: %w", err)
		}
		if err := os.WriteFile(versionPath, []byte(mappingVersion), 0o644); err != nil {
			logger.Warn("failed to write search version file", "error", err)
		}
		logger.Info("created search index", "path", indexPath, "mapping_version", mappingVersion)
	} else {
		logger.Info("opened search index", "path", indexPath)
	}

	return &Index{index: index, path: indexPath, logger: logger}, nil
}

// Close releases the index.
func (s *Index) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Close()
}

// IndexAtom adds or replaces one atom.
func (s *Index) IndexAtom(_ context.Context, a domain.Atom) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc := NewDocument(a)
	return s.index.Index(doc.ID, doc.ToMap())
}

// RemoveAtom deletes one atom. Removing an absent id is not an error.
func (s *Index) RemoveAtom(_ context.Context, id int64) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Delete(DocID(id))
}

// IndexAtoms indexes atoms in batches.
func (s *Index) IndexAtoms(ctx context.Context, atoms []domain.Atom) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for start := 0; start < len(atoms); start += batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+batchSize, len(atoms))

		batch := s.index.NewBatch()
		for _, a := range atoms[start:end] {
			doc := NewDocument(a)
			if err := batch.Index(doc.ID, doc.ToMap()); err != nil {
				return fmt.Errorf("batch index %s: %w", doc.ID, err)
			}
		}
		if err := s.index.Batch(batch); err != nil {
			return fmt.Errorf("commit batch %d-%d: %w", start, end, err)
		}
	}
	return nil
}

// Count returns the number of indexed atoms.
func (s *Index) Count() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.DocCount()
}

// Rebuild drops every document and starts from an empty index.
// It blocks all other operations while it runs.
func (s *Index) Rebuild() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.index.Close(); err != nil {
		return fmt.Errorf("close index: %w", err)
	}

	var (
		index bleve.Index
		err   error
	)
	if s.inMemory {
		index, err = bleve.NewMemOnly(buildIndexMapping())
	} else {
		if rmErr := os.RemoveAll(s.path); rmErr != nil {
			return fmt.Errorf("remove index: %w", rmErr)
		}
		index, err = bleve.New(s.path, buildIndexMapping())
	}
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}

	s.index = index
	s.logger.Info("rebuilt search index", "path", s.path)
	return nil
}

// Reindex rebuilds the index from atoms.
func (s *Index) Reindex(ctx context.Context, atoms []domain.Atom) error {
	if err := s.Rebuild(); err != nil {
		return err
	}
	return s.IndexAtoms(ctx, atoms)
}
