package collection

import (
	"context"
	"slices"
	"sync"

	"github.com/atomshelf/atomshelf-server/internal/domain"
	"github.com/atomshelf/atomshelf-server/internal/sse"
	"github.com/atomshelf/atomshelf-server/internal/store"
)

// FetchCategoryTags refetches the category_tags join table. On failure the
// previous rows are kept.
func (s *Store) FetchCategoryTags(ctx context.Context) error {
	links, err := selectAll[domain.CategoryTag](ctx, s.client, store.TableCategoryTags, store.Query{})
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.categoryTags = links
	s.bump()
	s.mu.Unlock()
	return nil
}

// FetchCreatorTags refetches the creator_tags join table. On failure the
// previous rows are kept.
func (s *Store) FetchCreatorTags(ctx context.Context) error {
	links, err := selectAll[domain.CreatorTag](ctx, s.client, store.TableCreatorTags, store.Query{})
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.creatorTags = links
	s.bump()
	s.mu.Unlock()
	return nil
}

// FetchCreatorAtoms refetches the creator_atoms join table.
func (s *Store) FetchCreatorAtoms(ctx context.Context) error {
	links, err := selectAll[domain.CreatorAtom](ctx, s.client, store.TableCreatorAtoms, store.Query{})
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.creatorAtoms = links
	s.mu.Unlock()
	return nil
}

// CategoryTagLinks returns a copy of the category_tags rows.
func (s *Store) CategoryTagLinks() []domain.CategoryTag {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.categoryTags)
}

// CreatorTagLinks returns a copy of the creator_tags rows.
func (s *Store) CreatorTagLinks() []domain.CreatorTag {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.creatorTags)
}

// CreatorAtomLinks returns a copy of the creator_atoms rows.
func (s *Store) CreatorAtomLinks() []domain.CreatorAtom {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.creatorAtoms)
}

// AddCategoryTag links tagID into categoryID. Linking an existing pair is a no-op.
func (s *Store) AddCategoryTag(ctx context.Context, categoryID, tagID int64) error {
	if err := validateID("category_id", categoryID); err != nil {
		return err
	}
	if err := validateID("tag_id", tagID); err != nil {
		return err
	}
	s.mu.RLock()
	exists := slices.ContainsFunc(s.categoryTags, func(l domain.CategoryTag) bool {
		return l.CategoryID == categoryID && l.TagID == tagID
	})
	s.mu.RUnlock()
	if exists {
		return nil
	}

	link, err := insertOne[domain.CategoryTag](ctx, s.client, store.TableCategoryTags,
		domain.CategoryTag{CategoryID: categoryID, TagID: tagID})
	if err != nil {
		return s.remoteErr("add category tag", err)
	}
	s.mu.Lock()
	s.categoryTags = append(s.categoryTags, link)
	s.bump()
	s.mu.Unlock()

	s.events.Emit(sse.NewLinksChangedEvent(string(store.TableCategoryTags)))
	return nil
}

// RemoveCategoryTag removes every link between categoryID and tagID.
func (s *Store) RemoveCategoryTag(ctx context.Context, categoryID, tagID int64) error {
	err := s.client.Delete(ctx, store.TableCategoryTags,
		store.Eq("category_id", categoryID), store.Eq("tag_id", tagID))
	if err != nil {
		return s.remoteErr("remove category tag", err)
	}
	s.mu.Lock()
	s.categoryTags = slices.DeleteFunc(s.categoryTags, func(l domain.CategoryTag) bool {
		return l.CategoryID == categoryID && l.TagID == tagID
	})
	s.bump()
	s.mu.Unlock()

	s.events.Emit(sse.NewLinksChangedEvent(string(store.TableCategoryTags)))
	return nil
}

// AddCreatorTag links tagID to creatorID. Linking an existing pair is a no-op.
func (s *Store) AddCreatorTag(ctx context.Context, creatorID, tagID int64) error {
	if err := validateID("creator_id", creatorID); err != nil {
		return err
	}
	if err := validateID("tag_id", tagID); err != nil {
		return err
	}
	s.mu.RLock()
	exists := slices.ContainsFunc(s.creatorTags, func(l domain.CreatorTag) bool {
		return l.CreatorID == creatorID && l.TagID == tagID
	})
	s.mu.RUnlock()
	if exists {
		return nil
	}

	link, err := insertOne[domain.CreatorTag](ctx, s.client, store.TableCreatorTags,
		domain.CreatorTag{CreatorID: creatorID, TagID: tagID})
	if err != nil {
		return s.remoteErr("add creator tag", err)
	}
	s.mu.Lock()
	s.creatorTags = append(s.creatorTags, link)
	s.bump()
	s.mu.Unlock()

	s.events.Emit(sse.NewLinksChangedEvent(string(store.TableCreatorTags)))
	return nil
}

// RemoveCreatorTag removes every link between creatorID and tagID.
func (s *Store) RemoveCreatorTag(ctx context.Context, creatorID, tagID int64) error {
	err := s.client.Delete(ctx, store.TableCreatorTags,
		store.Eq("creator_id", creatorID), store.Eq("tag_id", tagID))
	if err != nil {
		return s.remoteErr("remove creator tag", err)
	}
	s.mu.Lock()
	s.creatorTags = slices.DeleteFunc(s.creatorTags, func(l domain.CreatorTag) bool {
		return l.CreatorID == creatorID && l.TagID == tagID
	})
	s.bump()
	s.mu.Unlock()

	s.events.Emit(sse.NewLinksChangedEvent(string(store.TableCreatorTags)))
	return nil
}

type memoKind uint8

const (
	memoCategory memoKind = iota
	memoCreator
)

type memoKey struct {
	kind memoKind
	id   int64
}

// derivationMemo caches join results for one store version.
type derivationMemo struct {
	mu      sync.Mutex
	version uint64
	entries map[memoKey][]domain.Tag
}

// CategoryTags returns the tags linked to categoryID, by name, without duplicates.
func (s *Store) CategoryTags(categoryID int64) []domain.Tag {
	return s.derive(memoKey{memoCategory, categoryID}, func() []int64 {
		var ids []int64
		for _, l := range s.categoryTags {
			if l.CategoryID == categoryID {
				ids = append(ids, l.TagID)
			}
		}
		return ids
	})
}

// CreatorTags returns the tags linked to creatorID, by name, without duplicates.
func (s *Store) CreatorTags(creatorID int64) []domain.Tag {
	return s.derive(memoKey{memoCreator, creatorID}, func() []int64 {
		var ids []int64
		for _, l := range s.creatorTags {
			if l.CreatorID == creatorID {
				ids = append(ids, l.TagID)
			}
		}
		return ids
	})
}

// derive inner-joins the tag ids produced by linked against the tag
// collection, memoized until the next tag or join mutation.
func (s *Store) derive(key memoKey, linked func() []int64) []domain.Tag {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m := &s.memo
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entries == nil || m.version != s.version {
		m.entries = make(map[memoKey][]domain.Tag)
		m.version = s.version
	}
	if tags, ok := m.entries[key]; ok {
		return slices.Clone(tags)
	}

	want := make(map[int64]bool)
	for _, id := range linked() {
		want[id] = true
	}
	tags := make([]domain.Tag, 0, len(want))
	for _, t := range s.tags {
		if want[t.ID] {
			tags = append(tags, t)
		}
	}
	m.entries[key] = tags
	return slices.Clone(tags)
}
