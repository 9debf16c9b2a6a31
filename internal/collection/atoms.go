package collection

import (
	"context"
	"errors"
	"slices"
	"strconv"

	"github.com/atomshelf/atomshelf-server/internal/domain"
	domainerrors "github.com/atomshelf/atomshelf-server/internal/errors"
	"github.com/atomshelf/atomshelf-server/internal/normalize"
	"github.com/atomshelf/atomshelf-server/internal/sse"
	"github.com/atomshelf/atomshelf-server/internal/store"
)

// FetchAtoms replaces the local atoms with the remote ones, newest first.
func (s *Store) FetchAtoms(ctx context.Context) ([]domain.Atom, error) {
	atoms, err := selectAll[domain.Atom](ctx, s.client, store.TableAtoms, store.Query{
		Order: &store.Order{Column: "created_at", Desc: true},
	})
	if err != nil {
		return nil, err
	}
	for i := range atoms {
		if atoms[i].Tags == nil {
			atoms[i].Tags = []string{}
		}
	}

	s.mu.Lock()
	s.atoms = atoms
	s.mu.Unlock()
	return s.Atoms(), nil
}

// Atoms returns a copy of the local atoms, newest first.
func (s *Store) Atoms() []domain.Atom {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Atom, len(s.atoms))
	for i, a := range s.atoms {
		out[i] = a.Clone()
	}
	return out
}

// Atom returns the local atom with id.
func (s *Store) Atom(id int64) (domain.Atom, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := slices.IndexFunc(s.atoms, func(a domain.Atom) bool { return a.ID == id })
	if i < 0 {
		return domain.Atom{}, false
	}
	return s.atoms[i].Clone(), true
}

// AddAtom normalizes the atom's tags, makes sure each tag row exists, then
// inserts the atom. The server row is added locally only after the insert is
// confirmed.
func (s *Store) AddAtom(ctx context.Context, atom domain.Atom) (domain.Atom, error) {
	atom.ContentType = normalize.Name(atom.ContentType)
	if atom.ContentType == "" {
		return domain.Atom{}, domainerrors.Validation("content_type is required")
	}
	atom.ID = 0
	atom.Tags = normalize.Tags(atom.Tags)
	now := s.now().UTC()
	if atom.CreatedAt.IsZero() {
		atom.CreatedAt = now
	}
	if atom.UpdatedAt.IsZero() {
		atom.UpdatedAt = atom.CreatedAt
	}

	newTags, err := s.ensureTags(ctx, atom.Tags)
	if err != nil {
		return domain.Atom{}, err
	}

	created, err := insertOne[domain.Atom](ctx, s.client, store.TableAtoms, atom)
	if err != nil {
		s.dropTags(ctx, newTags)
		return domain.Atom{}, s.remoteErr("add atom", err)
	}
	if created.Tags == nil {
		created.Tags = []string{}
	}

	s.mu.Lock()
	// Keep newest-first order; equal timestamps go after existing rows.
	i, _ := slices.BinarySearchFunc(s.atoms, created, func(a, b domain.Atom) int {
		if a.CreatedAt.After(b.CreatedAt) || a.CreatedAt.Equal(b.CreatedAt) {
			return -1
		}
		return 1
	})
	s.atoms = slices.Insert(s.atoms, i, created)
	s.mu.Unlock()

	s.afterAtomWrite(ctx, created, sse.NewAtomCreatedEvent(created.Clone()))
	s.logger.Info("atom added", "atom_id", created.ID, "content_type", created.ContentType, "tags", len(created.Tags))
	return created.Clone(), nil
}

// UpdateAtom writes patch remotely, then applies the same patch to the local
// copy. Tags in the patch are normalized and their rows ensured first.
func (s *Store) UpdateAtom(ctx context.Context, id int64, patch domain.AtomPatch) error {
	return s.updateAtom(ctx, id, patch, true)
}

// updateAtom skips tag row creation when ensure is false; merges and renames
// rewrite onto names whose rows they manage themselves.
func (s *Store) updateAtom(ctx context.Context, id int64, patch domain.AtomPatch, ensure bool) error {
	if patch.IsEmpty() {
		return nil
	}
	if patch.Tags != nil {
		tags := normalize.Tags(*patch.Tags)
		patch.Tags = &tags
	}
	if patch.ContentType != nil {
		ct := normalize.Name(*patch.ContentType)
		if ct == "" {
			return domainerrors.Validation("content_type cannot be blank")
		}
		patch.ContentType = &ct
	}
	if patch.UpdatedAt == nil {
		now := s.now().UTC()
		patch.UpdatedAt = &now
	}

	row, err := encodePatch(patch)
	if err != nil {
		return err
	}
	var newTags []domain.Tag
	if ensure && patch.Tags != nil {
		if newTags, err = s.ensureTags(ctx, *patch.Tags); err != nil {
			return err
		}
	}
	if err := s.client.Update(ctx, store.TableAtoms, row, store.Eq("id", id)); err != nil {
		s.dropTags(ctx, newTags)
		return s.remoteErr("update atom", err)
	}

	s.mu.Lock()
	i := slices.IndexFunc(s.atoms, func(a domain.Atom) bool { return a.ID == id })
	var updated domain.Atom
	if i >= 0 {
		patch.Apply(&s.atoms[i])
		updated = s.atoms[i].Clone()
	}
	s.mu.Unlock()

	if i >= 0 {
		s.afterAtomWrite(ctx, updated, sse.NewAtomUpdatedEvent(updated))
	}
	return nil
}

// DeleteAtom marks id as deleting, deletes it remotely, and drops it locally
// once confirmed. On failure the id stays in the deleting set and the atom
// stays in the collection.
func (s *Store) DeleteAtom(ctx context.Context, id int64) error {
	s.mu.Lock()
	s.deleting[id] = struct{}{}
	s.mu.Unlock()

	if err := s.client.Delete(ctx, store.TableAtoms, store.Eq("id", id)); err != nil {
		return s.remoteErr("delete atom", err)
	}

	s.mu.Lock()
	s.atoms = slices.DeleteFunc(s.atoms, func(a domain.Atom) bool { return a.ID == id })
	delete(s.deleting, id)
	s.creatorAtoms = slices.DeleteFunc(s.creatorAtoms, func(l domain.CreatorAtom) bool { return l.AtomID == id })
	delete(s.ideaChildren, id)
	for parent, children := range s.ideaChildren {
		s.ideaChildren[parent] = slices.DeleteFunc(children, func(c int64) bool { return c == id })
	}
	s.mu.Unlock()

	// Links to a deleted atom are dead weight; failures here do not undo the delete.
	s.logIfFailed("creator atom links", s.client.Delete(ctx, store.TableCreatorAtoms, store.Eq("atom_id", id)))
	s.logIfFailed("idea parent links", s.client.Delete(ctx, store.TableAtomRelationships, store.Eq("parent_atom_id", id)))
	s.logIfFailed("idea child links", s.client.Delete(ctx, store.TableAtomRelationships, store.Eq("child_atom_id", id)))

	if err := s.indexer.RemoveAtom(ctx, id); err != nil {
		s.logger.Warn("failed to remove atom from index", "atom_id", id, "error", err)
	}
	s.events.Emit(sse.NewAtomDeletedEvent(id))
	s.logger.Info("atom deleted", "atom_id", id)
	return nil
}

// IsDeleting reports whether a delete of id has started and not completed.
func (s *Store) IsDeleting(id int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.deleting[id]
	return ok
}

// Deleting returns the ids currently in the deleting set, ascending.
func (s *Store) Deleting() []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]int64, 0, len(s.deleting))
	for id := range s.deleting {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// AddAtomWithCreators adds the atom and links it to creatorIDs. If linking
// fails the atom is kept and a partial consistency error is returned;
// LinkAtomCreators can be re-run to finish.
func (s *Store) AddAtomWithCreators(ctx context.Context, atom domain.Atom, creatorIDs []int64) (domain.Atom, error) {
	created, err := s.AddAtom(ctx, atom)
	if err != nil {
		return domain.Atom{}, err
	}
	if err := s.LinkAtomCreators(ctx, created.ID, creatorIDs); err != nil {
		var de *domainerrors.Error
		if errors.As(err, &de) && de.Code == domainerrors.CodePartialConsistency {
			return created, err
		}
		return created, domainerrors.PartialConsistency("add atom with creators",
			[]string{"atom:" + strconv.FormatInt(created.ID, 10)}, idStrings(creatorIDs), err)
	}
	return created, nil
}

// LinkAtomCreators inserts a creator_atoms row per creator, skipping links
// that already exist.
func (s *Store) LinkAtomCreators(ctx context.Context, atomID int64, creatorIDs []int64) error {
	if len(creatorIDs) == 0 {
		return nil
	}
	existing, err := selectAll[domain.CreatorAtom](ctx, s.client, store.TableCreatorAtoms, store.Query{
		Filters: []store.Filter{store.Eq("atom_id", atomID)},
	})
	if err != nil {
		return err
	}
	linked := make(map[int64]bool, len(existing))
	for _, l := range existing {
		linked[l.CreatorID] = true
	}

	var (
		completed, failed []string
		errs              []error
		added             []domain.CreatorAtom
	)
	for _, cid := range creatorIDs {
		if linked[cid] {
			completed = append(completed, strconv.FormatInt(cid, 10))
			continue
		}
		link, err := insertOne[domain.CreatorAtom](ctx, s.client, store.TableCreatorAtoms,
			domain.CreatorAtom{CreatorID: cid, AtomID: atomID})
		if err != nil {
			failed = append(failed, strconv.FormatInt(cid, 10))
			errs = append(errs, err)
			continue
		}
		linked[cid] = true
		added = append(added, link)
		completed = append(completed, strconv.FormatInt(cid, 10))
	}

	if len(added) > 0 {
		s.mu.Lock()
		s.creatorAtoms = append(s.creatorAtoms, added...)
		s.mu.Unlock()
		s.events.Emit(sse.NewLinksChangedEvent(string(store.TableCreatorAtoms)))
	}
	if len(failed) > 0 {
		s.logger.Warn("creator linking incomplete", "atom_id", atomID, "failed", failed)
		return domainerrors.PartialConsistency("link atom creators", completed, failed, errors.Join(errs...))
	}
	return nil
}

// HideAtoms sets hidden on every id.
func (s *Store) HideAtoms(ctx context.Context, ids []int64) error {
	return s.setHidden(ctx, "hide atoms", ids, true)
}

// UnhideAtoms clears hidden on every id.
func (s *Store) UnhideAtoms(ctx context.Context, ids []int64) error {
	return s.setHidden(ctx, "unhide atoms", ids, false)
}

func (s *Store) setHidden(ctx context.Context, op string, ids []int64, hidden bool) error {
	var (
		completed, failed []string
		errs              []error
	)
	for _, id := range ids {
		h := hidden
		if err := s.UpdateAtom(ctx, id, domain.AtomPatch{Hidden: &h}); err != nil {
			failed = append(failed, strconv.FormatInt(id, 10))
			errs = append(errs, err)
			continue
		}
		completed = append(completed, strconv.FormatInt(id, 10))
	}
	switch {
	case len(failed) == 0:
		return nil
	case len(completed) == 0:
		return domainerrors.Remote(op, errors.Join(errs...))
	default:
		return domainerrors.PartialConsistency(op, completed, failed, errors.Join(errs...))
	}
}

func (s *Store) afterAtomWrite(ctx context.Context, atom domain.Atom, event sse.Event) {
	if err := s.indexer.IndexAtom(ctx, atom); err != nil {
		s.logger.Warn("failed to index atom", "atom_id", atom.ID, "error", err)
	}
	s.events.Emit(event)
}

func idStrings(ids []int64) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = strconv.FormatInt(id, 10)
	}
	return out
}
