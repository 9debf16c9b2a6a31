package collection

import (
	"cmp"
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

// FetchTags replaces the local tags with the remote ones, ordered by name.
func (s *Store) FetchTags(ctx context.Context) ([]domain.Tag, error) {
	tags, err := selectAll[domain.Tag](ctx, s.client, store.TableTags, store.Query{
		Order: &store.Order{Column: "name"},
	})
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.tags = tags
	s.bump()
	s.mu.Unlock()
	return s.Tags(), nil
}

// Tags returns a copy of the local tags.
func (s *Store) Tags() []domain.Tag {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.tags)
}

// Tag returns the local tag with id.
func (s *Store) Tag(id int64) (domain.Tag, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := slices.IndexFunc(s.tags, func(t domain.Tag) bool { return t.ID == id })
	if i < 0 {
		return domain.Tag{}, false
	}
	return s.tags[i], true
}

// TagByName returns the local tag whose name normalizes to the same form as name.
func (s *Store) TagByName(name string) (domain.Tag, bool) {
	n := normalize.Tag(name)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tagByNameLocked(n)
}

func (s *Store) tagByNameLocked(n string) (domain.Tag, bool) {
	i := slices.IndexFunc(s.tags, func(t domain.Tag) bool { return t.Name == n })
	if i < 0 {
		return domain.Tag{}, false
	}
	return s.tags[i], true
}

// AddTag creates a tag under its normalized name. If a tag with that name
// already exists the existing row is returned and nothing is written.
func (s *Store) AddTag(ctx context.Context, tag domain.Tag) (domain.Tag, error) {
	created, _, err := s.addTag(ctx, tag)
	return created, err
}

// addTag is AddTag that also reports whether this call inserted the row.
func (s *Store) addTag(ctx context.Context, tag domain.Tag) (domain.Tag, bool, error) {
	tag.Name = normalize.Tag(tag.Name)
	if tag.Name == "" {
		return domain.Tag{}, false, domainerrors.Validation("tag name is required")
	}
	if domain.IsPseudoTag(tag.Name) {
		return domain.Tag{}, false, domainerrors.Validationf("%q is reserved", tag.Name)
	}
	if existing, ok := s.TagByName(tag.Name); ok {
		return existing, false, nil
	}

	tag.ID = 0
	if tag.CreatedAt.IsZero() {
		tag.CreatedAt = s.now().UTC()
	}
	inserted := true
	created, err := insertOne[domain.Tag](ctx, s.client, store.TableTags, tag)
	if errors.Is(err, store.ErrConflict) {
		// Another writer created it first, or the mirror is stale.
		inserted = false
		created, err = s.fetchTagByName(ctx, tag.Name)
	}
	if err != nil {
		return domain.Tag{}, false, s.remoteErr("add tag", err)
	}

	s.mu.Lock()
	if existing, ok := s.tagByNameLocked(created.Name); ok {
		s.mu.Unlock()
		return existing, false, nil
	}
	i, _ := slices.BinarySearchFunc(s.tags, created.Name, func(t domain.Tag, name string) int {
		return cmp.Compare(t.Name, name)
	})
	s.tags = slices.Insert(s.tags, i, created)
	s.bump()
	s.mu.Unlock()

	s.events.Emit(sse.NewTagCreatedEvent(created))
	s.logger.Debug("tag added", "tag", created.Name, "tag_id", created.ID)
	return created, inserted, nil
}

func (s *Store) fetchTagByName(ctx context.Context, name string) (domain.Tag, error) {
	tags, err := selectAll[domain.Tag](ctx, s.client, store.TableTags, store.Query{
		Filters: []store.Filter{store.Eq("name", name)},
		Limit:   1,
	})
	if err != nil {
		return domain.Tag{}, err
	}
	if len(tags) == 0 {
		return domain.Tag{}, store.ErrNotFound.WithMessage("tag " + name)
	}
	return tags[0], nil
}

// ensureTags creates any missing tag rows for names, which must already be
// normalized. It returns the rows this call inserted so a caller whose
// following write fails can drop them again.
func (s *Store) ensureTags(ctx context.Context, names []string) ([]domain.Tag, error) {
	for _, n := range names {
		if domain.IsPseudoTag(n) {
			return nil, domainerrors.Validationf("%q is reserved and cannot be stored on an atom", n)
		}
	}
	var created []domain.Tag
	for _, n := range names {
		if _, ok := s.TagByName(n); ok {
			continue
		}
		tag, inserted, err := s.addTag(ctx, domain.Tag{Name: n})
		if err != nil {
			s.dropTags(ctx, created)
			return nil, err
		}
		if inserted {
			created = append(created, tag)
		}
	}
	return created, nil
}

// dropTags deletes tag rows created for a write that then failed. A row whose
// remote delete fails stays in the mirror, matching the store.
func (s *Store) dropTags(ctx context.Context, tags []domain.Tag) {
	for _, t := range tags {
		if err := s.client.Delete(ctx, store.TableTags, store.Eq("id", t.ID)); err != nil {
			s.logger.Warn("could not drop unused tag", "tag", t.Name, "tag_id", t.ID, "error", err)
			continue
		}
		s.mu.Lock()
		s.tags = slices.DeleteFunc(s.tags, func(x domain.Tag) bool { return x.ID == t.ID })
		s.bump()
		s.mu.Unlock()
		s.events.Emit(sse.NewTagDeletedEvent(t.ID))
	}
}

// UpdateTag writes patch and applies it locally. A rename is normalized and
// must not collide with another tag. Atoms carrying the old name are
// rewritten before the tag row is renamed, so a failed rename can be re-run.
func (s *Store) UpdateTag(ctx context.Context, id int64, patch domain.TagPatch) error {
	var oldName string
	if patch.Name != nil {
		n := normalize.Tag(*patch.Name)
		switch {
		case n == "":
			return domainerrors.Validation("tag name is required")
		case domain.IsPseudoTag(n):
			return domainerrors.Validationf("%q is reserved", n)
		}
		if other, ok := s.TagByName(n); ok && other.ID != id {
			return domainerrors.Validationf("tag %q already exists; merge the tags instead", n)
		}
		patch.Name = &n

		current, err := s.lookupTag(ctx, id)
		if err != nil {
			return err
		}
		if current.Name != n {
			oldName = current.Name
		}
	}

	row, err := encodePatch(patch)
	if err != nil {
		return err
	}
	if len(row) == 0 {
		return nil
	}
	if oldName != "" {
		if _, err := s.rewriteAtomTags(ctx, "rename tag", oldName, *patch.Name); err != nil {
			return err
		}
	}
	if err := s.client.Update(ctx, store.TableTags, row, store.Eq("id", id)); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return domainerrors.Validation("tag name already exists")
		}
		return s.remoteErr("update tag", err)
	}

	s.mu.Lock()
	var updated domain.Tag
	if i := slices.IndexFunc(s.tags, func(t domain.Tag) bool { return t.ID == id }); i >= 0 {
		patch.Apply(&s.tags[i])
		updated = s.tags[i]
		slices.SortStableFunc(s.tags, func(a, b domain.Tag) int { return cmp.Compare(a.Name, b.Name) })
	}
	if oldName != "" {
		for i, n := range s.selected {
			if n == oldName {
				s.selected[i] = *patch.Name
			}
		}
	}
	s.bump()
	s.mu.Unlock()

	if updated.ID != 0 {
		s.events.Emit(sse.NewTagUpdatedEvent(updated))
	}
	return nil
}

// DeleteTag strips the tag from every atom, removes its join rows and then
// deletes it. If stripping fails partway the tag row is kept.
func (s *Store) DeleteTag(ctx context.Context, id int64) error {
	tag, err := s.lookupTag(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.rewriteAtomTags(ctx, "delete tag", tag.Name, ""); err != nil {
		return err
	}

	if err := s.client.Delete(ctx, store.TableTags, store.Eq("id", id)); err != nil {
		return s.remoteErr("delete tag", err)
	}
	s.logIfFailed("category tag links", s.client.Delete(ctx, store.TableCategoryTags, store.Eq("tag_id", id)))
	s.logIfFailed("creator tag links", s.client.Delete(ctx, store.TableCreatorTags, store.Eq("tag_id", id)))

	s.mu.Lock()
	s.tags = slices.DeleteFunc(s.tags, func(t domain.Tag) bool { return t.ID == id })
	s.categoryTags = slices.DeleteFunc(s.categoryTags, func(l domain.CategoryTag) bool { return l.TagID == id })
	s.creatorTags = slices.DeleteFunc(s.creatorTags, func(l domain.CreatorTag) bool { return l.TagID == id })
	s.selected = slices.DeleteFunc(s.selected, func(n string) bool { return n == tag.Name })
	s.bump()
	s.mu.Unlock()

	s.events.Emit(sse.NewTagDeletedEvent(id))
	s.logger.Info("tag deleted", "tag", tag.Name, "tag_id", id)
	return nil
}

// RecountTags recomputes every tag's count from the remote atoms and writes
// the ones that changed.
func (s *Store) RecountTags(ctx context.Context) error {
	rows, err := s.client.Select(ctx, store.TableAtoms, store.Query{Columns: []string{"tags"}})
	if err != nil {
		return s.remoteErr("recount tags", err)
	}
	counts := make(map[string]int)
	for _, r := range rows {
		tags, _ := r["tags"].([]any)
		for _, t := range tags {
			if name, ok := t.(string); ok {
				counts[normalize.Tag(name)]++
			}
		}
	}

	var (
		completed, failed []string
		errs              []error
	)
	for _, t := range s.Tags() {
		n := counts[t.Name]
		if n == t.Count {
			continue
		}
		if err := s.setTagCount(ctx, t.ID, n); err != nil {
			failed = append(failed, strconv.FormatInt(t.ID, 10))
			errs = append(errs, err)
			continue
		}
		completed = append(completed, strconv.FormatInt(t.ID, 10))
	}
	if len(failed) > 0 {
		return domainerrors.PartialConsistency("recount tags", completed, failed, errors.Join(errs...))
	}
	s.logger.Info("tag counts recomputed", "changed", len(completed))
	return nil
}

func (s *Store) setTagCount(ctx context.Context, id int64, n int) error {
	if err := s.client.Update(ctx, store.TableTags, store.Row{"count": int64(n)}, store.Eq("id", id)); err != nil {
		return err
	}
	s.mu.Lock()
	if i := slices.IndexFunc(s.tags, func(t domain.Tag) bool { return t.ID == id }); i >= 0 {
		s.tags[i].Count = n
	}
	s.bump()
	s.mu.Unlock()
	return nil
}

// lookupTag finds a tag locally, falling back to the remote store.
func (s *Store) lookupTag(ctx context.Context, id int64) (domain.Tag, error) {
	if t, ok := s.Tag(id); ok {
		return t, nil
	}
	tags, err := selectAll[domain.Tag](ctx, s.client, store.TableTags, store.Query{
		Filters: []store.Filter{store.Eq("id", id)},
	})
	if err != nil {
		return domain.Tag{}, err
	}
	if len(tags) == 0 {
		return domain.Tag{}, domainerrors.NotFoundf("tag %d not found", id)
	}
	return tags[0], nil
}

// ToggleTag flips name in the selected-tags set and reports whether it is
// now selected. The pseudo-tags flagged and no-tag are accepted.
func (s *Store) ToggleTag(name string) bool {
	n := normalize.Tag(name)
	if n == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := slices.Index(s.selected, n); i >= 0 {
		s.selected = slices.Delete(s.selected, i, i+1)
		return false
	}
	s.selected = append(s.selected, n)
	return true
}

// SelectedTags returns the selected tags in selection order.
func (s *Store) SelectedTags() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string{}, s.selected...)
}

// ClearSelectedTags empties the selection.
func (s *Store) ClearSelectedTags() {
	s.mu.Lock()
	s.selected = nil
	s.mu.Unlock()
}

