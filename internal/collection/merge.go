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

// MergeTag folds source into target. Every atom carrying source's name is
// rewritten to target's name, category and creator links are repointed, and
// only then is source deleted. A failure leaves source in place so the merge
// can be re-run; atoms already rewritten are no-ops the second time.
func (s *Store) MergeTag(ctx context.Context, sourceID, targetID int64) error {
	if sourceID == targetID {
		return domainerrors.Validation("cannot merge a tag into itself")
	}
	src, err := s.lookupTag(ctx, sourceID)
	if err != nil {
		return err
	}
	dst, err := s.lookupTag(ctx, targetID)
	if err != nil {
		return err
	}

	rewritten, err := s.rewriteAtomTags(ctx, "merge tag", src.Name, dst.Name)
	if err != nil {
		return err
	}
	done := []string{"atoms"}

	if err := s.repoint(ctx, store.TableCategoryTags, "tag_id", sourceID, targetID); err != nil {
		return domainerrors.PartialConsistency("merge tag", done, []string{"category_tags", "creator_tags", "delete source"}, err)
	}
	done = append(done, "category_tags")
	if err := s.repoint(ctx, store.TableCreatorTags, "tag_id", sourceID, targetID); err != nil {
		return domainerrors.PartialConsistency("merge tag", done, []string{"creator_tags", "delete source"}, err)
	}
	done = append(done, "creator_tags")
	if err := s.client.Delete(ctx, store.TableTags, store.Eq("id", sourceID)); err != nil {
		return domainerrors.PartialConsistency("merge tag", done, []string{"delete source"}, err)
	}

	s.mu.Lock()
	s.tags = slices.DeleteFunc(s.tags, func(t domain.Tag) bool { return t.ID == sourceID })
	for i := range s.categoryTags {
		if s.categoryTags[i].TagID == sourceID {
			s.categoryTags[i].TagID = targetID
		}
	}
	for i := range s.creatorTags {
		if s.creatorTags[i].TagID == sourceID {
			s.creatorTags[i].TagID = targetID
		}
	}
	for i, n := range s.selected {
		if n == src.Name {
			s.selected[i] = dst.Name
		}
	}
	s.selected = normalize.Tags(s.selected)
	s.bump()
	s.mu.Unlock()

	// The count is advisory; a stale value is fixed by the next recount.
	if n, err := s.countAtomsWithTag(ctx, dst.Name); err != nil {
		s.logger.Warn("failed to recount merged tag", "tag_id", targetID, "error", err)
	} else if err := s.setTagCount(ctx, targetID, n); err != nil {
		s.logger.Warn("failed to store merged tag count", "tag_id", targetID, "error", err)
	}

	s.events.Emit(sse.NewTagDeletedEvent(sourceID))
	s.events.Emit(sse.NewMergedEvent("tag", sourceID, targetID))
	s.logger.Info("tags merged",
		"source", src.Name,
		"target", dst.Name,
		"atoms_rewritten", rewritten,
	)
	return nil
}

// MergeCategory repoints source's tag links to target, clears the default
// category selection if it was source, and deletes source. Duplicate (target, tag)
// links are tolerated.
func (s *Store) MergeCategory(ctx context.Context, sourceID, targetID int64) error {
	if sourceID == targetID {
		return domainerrors.Validation("cannot merge a category into itself")
	}
	if _, err := s.lookupCategory(ctx, sourceID); err != nil {
		return err
	}
	if _, err := s.lookupCategory(ctx, targetID); err != nil {
		return err
	}

	if err := s.repoint(ctx, store.TableCategoryTags, "category_id", sourceID, targetID); err != nil {
		return s.remoteErr("merge category", err)
	}
	done := []string{"category_tags"}

	if def := s.DefaultCategory(); def != nil && *def == sourceID {
		if err := s.SetDefaultCategory(ctx, nil); err != nil {
			return domainerrors.PartialConsistency("merge category", done, []string{domain.SettingDefaultCategory, "delete source"}, err)
		}
		done = append(done, domain.SettingDefaultCategory)
	}

	if err := s.client.Delete(ctx, store.TableCategories, store.Eq("id", sourceID)); err != nil {
		return domainerrors.PartialConsistency("merge category", done, []string{"delete source"}, err)
	}

	s.mu.Lock()
	s.categories = slices.DeleteFunc(s.categories, func(c domain.Category) bool { return c.ID == sourceID })
	for i := range s.categoryTags {
		if s.categoryTags[i].CategoryID == sourceID {
			s.categoryTags[i].CategoryID = targetID
		}
	}
	s.bump()
	s.mu.Unlock()

	s.events.Emit(sse.NewCategoryDeletedEvent(sourceID))
	s.events.Emit(sse.NewMergedEvent("category", sourceID, targetID))
	s.logger.Info("categories merged", "source_id", sourceID, "target_id", targetID)
	return nil
}

// MergeCreator rewrites atoms whose creator_name is exactly source's name to
// target's name, then deletes source. Comma-joined multi-creator names are
// not split. creator_atoms and creator_tags rows are not repointed; their
// number is logged.
func (s *Store) MergeCreator(ctx context.Context, sourceID, targetID int64) error {
	if sourceID == targetID {
		return domainerrors.Validation("cannot merge a creator into itself")
	}
	src, err := s.lookupCreator(ctx, sourceID)
	if err != nil {
		return err
	}
	dst, err := s.lookupCreator(ctx, targetID)
	if err != nil {
		return err
	}

	rows, err := s.client.Select(ctx, store.TableAtoms, store.Query{
		Columns: []string{"id"},
		Filters: []store.Filter{store.Eq("creator_name", src.Name)},
	})
	if err != nil {
		return s.remoteErr("merge creator", err)
	}
	var (
		completed, failed []string
		errs              []error
	)
	for _, id := range rowIDs(rows) {
		name := dst.Name
		if err := s.updateAtom(ctx, id, domain.AtomPatch{CreatorName: &name}, false); err != nil {
			failed = append(failed, strconv.FormatInt(id, 10))
			errs = append(errs, err)
			continue
		}
		completed = append(completed, strconv.FormatInt(id, 10))
	}
	if len(failed) > 0 {
		return domainerrors.PartialConsistency("merge creator", completed, failed, errors.Join(errs...))
	}

	s.warnDanglingCreatorLinks(ctx, sourceID)

	if err := s.client.Delete(ctx, store.TableCreators, store.Eq("id", sourceID)); err != nil {
		return domainerrors.PartialConsistency("merge creator", append(completed, "atoms"), []string{"delete source"}, err)
	}

	s.mu.Lock()
	s.creators = slices.DeleteFunc(s.creators, func(c domain.Creator) bool { return c.ID == sourceID })
	s.mu.Unlock()

	s.events.Emit(sse.NewCreatorDeletedEvent(sourceID))
	s.events.Emit(sse.NewMergedEvent("creator", sourceID, targetID))
	s.logger.Info("creators merged", "source", src.Name, "target", dst.Name, "atoms_rewritten", len(completed))
	return nil
}

func (s *Store) warnDanglingCreatorLinks(ctx context.Context, creatorID int64) {
	var dangling int
	for _, table := range []store.Table{store.TableCreatorAtoms, store.TableCreatorTags} {
		rows, err := s.client.Select(ctx, table, store.Query{
			Columns: []string{"id"},
			Filters: []store.Filter{store.Eq("creator_id", creatorID)},
		})
		if err != nil {
			s.logger.Warn("could not count creator links", "table", table, "error", err)
			continue
		}
		dangling += len(rows)
	}
	if dangling > 0 {
		s.logger.Warn("creator merge leaves links to the deleted creator",
			"creator_id", creatorID,
			"links", dangling,
		)
	}
}

// rewriteAtomTags replaces from with to on every atom carrying a tag that
// normalizes to from, dropping duplicates. An empty to removes the tag. It
// returns how many atoms were rewritten.
//
// Rows written by other clients may hold tags that were never normalized, so
// candidates are picked by comparing normalized names over every atom rather
// than by an exact contains filter.
func (s *Store) rewriteAtomTags(ctx context.Context, op, from, to string) (int, error) {
	atoms, err := selectAll[domain.Atom](ctx, s.client, store.TableAtoms, store.Query{
		Columns: []string{"id", "tags"},
	})
	if err != nil {
		return 0, s.remoteErr(op, err)
	}

	var (
		completed, failed []string
		errs              []error
	)
	for _, a := range atoms {
		if !slices.ContainsFunc(a.Tags, func(t string) bool { return normalize.Tag(t) == from }) {
			continue
		}
		tags := replaceTag(a.Tags, from, to)
		if err := s.updateAtom(ctx, a.ID, domain.AtomPatch{Tags: &tags}, false); err != nil {
			failed = append(failed, strconv.FormatInt(a.ID, 10))
			errs = append(errs, err)
			continue
		}
		completed = append(completed, strconv.FormatInt(a.ID, 10))
	}
	if len(failed) > 0 {
		s.logger.Warn("tag rewrite incomplete", "op", op, "from", from, "to", to, "failed", len(failed))
		return len(completed), domainerrors.PartialConsistency(op, completed, failed, errors.Join(errs...))
	}
	return len(completed), nil
}

// replaceTag swaps every entry normalizing to from for to. The result is
// normalized and keeps order and the ordered-set property.
func replaceTag(tags []string, from, to string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = normalize.Tag(t)
		if t == from {
			t = to
		}
		if t == "" || slices.Contains(out, t) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func (s *Store) repoint(ctx context.Context, table store.Table, column string, from, to int64) error {
	return s.client.Update(ctx, table, store.Row{column: to}, store.Eq(column, from))
}

func (s *Store) countAtomsWithTag(ctx context.Context, name string) (int, error) {
	rows, err := s.client.Select(ctx, store.TableAtoms, store.Query{
		Columns: []string{"id"},
		Filters: []store.Filter{store.Contains("tags", name)},
	})
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

func rowIDs(rows []store.Row) []int64 {
	ids := make([]int64, 0, len(rows))
	for _, r := range rows {
		if id, ok := r["id"].(int64); ok {
			ids = append(ids, id)
		}
	}
	return ids
}
