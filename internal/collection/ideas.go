package collection

import (
	"context"
	"errors"
	"slices"

	"github.com/atomshelf/atomshelf-server/internal/domain"
	domainerrors "github.com/atomshelf/atomshelf-server/internal/errors"
	"github.com/atomshelf/atomshelf-server/internal/sse"
	"github.com/atomshelf/atomshelf-server/internal/store"
)

// AddChildAtom makes child a member of the idea parent. Adding an existing
// pair is a no-op; an atom cannot be its own child.
func (s *Store) AddChildAtom(ctx context.Context, parentID, childID int64) error {
	if err := validateID("parent_atom_id", parentID); err != nil {
		return err
	}
	if err := validateID("child_atom_id", childID); err != nil {
		return err
	}
	if parentID == childID {
		return domainerrors.Validation("an atom cannot be a child of itself")
	}

	pair := []store.Filter{store.Eq("parent_atom_id", parentID), store.Eq("child_atom_id", childID)}
	rows, err := s.client.Select(ctx, store.TableAtomRelationships, store.Query{Columns: []string{"id"}, Filters: pair, Limit: 1})
	if err != nil {
		return s.remoteErr("add child atom", err)
	}
	if len(rows) > 0 {
		s.rememberChild(parentID, childID)
		return nil
	}

	rel := domain.AtomRelationship{ParentAtomID: parentID, ChildAtomID: childID, CreatedAt: s.now().UTC()}
	if _, err := insertOne[domain.AtomRelationship](ctx, s.client, store.TableAtomRelationships, rel); err != nil {
		// A concurrent add won the race; the pair exists either way.
		if !errors.Is(err, store.ErrConflict) {
			return s.remoteErr("add child atom", err)
		}
	}
	s.rememberChild(parentID, childID)

	s.events.Emit(sse.NewLinksChangedEvent(string(store.TableAtomRelationships)))
	s.logger.Debug("child atom added", "parent_atom_id", parentID, "child_atom_id", childID)
	return nil
}

// RemoveChildAtom removes child from the idea parent.
func (s *Store) RemoveChildAtom(ctx context.Context, parentID, childID int64) error {
	err := s.client.Delete(ctx, store.TableAtomRelationships,
		store.Eq("parent_atom_id", parentID), store.Eq("child_atom_id", childID))
	if err != nil {
		return s.remoteErr("remove child atom", err)
	}
	s.mu.Lock()
	if children, ok := s.ideaChildren[parentID]; ok {
		s.ideaChildren[parentID] = slices.DeleteFunc(children, func(c int64) bool { return c == childID })
	}
	s.mu.Unlock()

	s.events.Emit(sse.NewLinksChangedEvent(string(store.TableAtomRelationships)))
	return nil
}

// FetchIdeaChildren loads the child ids of ideaID, ascending.
func (s *Store) FetchIdeaChildren(ctx context.Context, ideaID int64) ([]int64, error) {
	rels, err := selectAll[domain.AtomRelationship](ctx, s.client, store.TableAtomRelationships, store.Query{
		Filters: []store.Filter{store.Eq("parent_atom_id", ideaID)},
	})
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(rels))
	for _, r := range rels {
		ids = append(ids, r.ChildAtomID)
	}
	slices.Sort(ids)
	ids = slices.Compact(ids)

	s.mu.Lock()
	s.ideaChildren[ideaID] = ids
	s.mu.Unlock()
	return slices.Clone(ids), nil
}

// IdeaChildren returns the cached child ids of ideaID and whether they have
// been loaded.
func (s *Store) IdeaChildren(ideaID int64) ([]int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids, ok := s.ideaChildren[ideaID]
	return slices.Clone(ids), ok
}

// rememberChild updates the cached child set if it has been loaded.
func (s *Store) rememberChild(parentID, childID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	children, ok := s.ideaChildren[parentID]
	if !ok {
		return
	}
	if i, found := slices.BinarySearch(children, childID); !found {
		s.ideaChildren[parentID] = slices.Insert(children, i, childID)
	}
}
