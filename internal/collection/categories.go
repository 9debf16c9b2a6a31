package collection

import (
	"context"
	"slices"
	"strconv"

	"github.com/atomshelf/atomshelf-server/internal/domain"
	domainerrors "github.com/atomshelf/atomshelf-server/internal/errors"
	"github.com/atomshelf/atomshelf-server/internal/normalize"
	"github.com/atomshelf/atomshelf-server/internal/sse"
	"github.com/atomshelf/atomshelf-server/internal/store"
)

// FetchCategories replaces the local categories, ordered by name.
func (s *Store) FetchCategories(ctx context.Context) ([]domain.Category, error) {
	cats, err := selectAll[domain.Category](ctx, s.client, store.TableCategories, store.Query{
		Order: &store.Order{Column: "name"},
	})
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.categories = cats
	s.mu.Unlock()
	return s.Categories(), nil
}

// Categories returns a copy of the local categories.
func (s *Store) Categories() []domain.Category {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.categories)
}

// Category returns the local category with id.
func (s *Store) Category(id int64) (domain.Category, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := slices.IndexFunc(s.categories, func(c domain.Category) bool { return c.ID == id })
	if i < 0 {
		return domain.Category{}, false
	}
	return s.categories[i], true
}

// AddCategory creates a category.
func (s *Store) AddCategory(ctx context.Context, c domain.Category) (domain.Category, error) {
	c.Name = normalize.Name(c.Name)
	if c.Name == "" {
		return domain.Category{}, domainerrors.Validation("category name is required")
	}
	c.ID = 0
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now().UTC()
	}
	created, err := insertOne[domain.Category](ctx, s.client, store.TableCategories, c)
	if err != nil {
		return domain.Category{}, s.remoteErr("add category", err)
	}

	s.mu.Lock()
	s.categories = append(s.categories, created)
	s.mu.Unlock()

	s.events.Emit(sse.NewCategoryCreatedEvent(created))
	return created, nil
}

// UpdateCategory writes patch and applies it locally.
func (s *Store) UpdateCategory(ctx context.Context, id int64, patch domain.CategoryPatch) error {
	if patch.Name != nil {
		n := normalize.Name(*patch.Name)
		if n == "" {
			return domainerrors.Validation("category name is required")
		}
		patch.Name = &n
	}
	row, err := encodePatch(patch)
	if err != nil {
		return err
	}
	if len(row) == 0 {
		return nil
	}
	if err := s.client.Update(ctx, store.TableCategories, row, store.Eq("id", id)); err != nil {
		return s.remoteErr("update category", err)
	}

	s.mu.Lock()
	var updated domain.Category
	if i := slices.IndexFunc(s.categories, func(c domain.Category) bool { return c.ID == id }); i >= 0 {
		patch.Apply(&s.categories[i])
		updated = s.categories[i]
	}
	s.mu.Unlock()

	if updated.ID != 0 {
		s.events.Emit(sse.NewCategoryUpdatedEvent(updated))
	}
	return nil
}

// DeleteCategory deletes the category and its tag links. If it was the
// default category the default is cleared.
func (s *Store) DeleteCategory(ctx context.Context, id int64) error {
	if err := s.client.Delete(ctx, store.TableCategories, store.Eq("id", id)); err != nil {
		return s.remoteErr("delete category", err)
	}
	s.logIfFailed("category tag links", s.client.Delete(ctx, store.TableCategoryTags, store.Eq("category_id", id)))

	s.mu.Lock()
	s.categories = slices.DeleteFunc(s.categories, func(c domain.Category) bool { return c.ID == id })
	s.categoryTags = slices.DeleteFunc(s.categoryTags, func(l domain.CategoryTag) bool { return l.CategoryID == id })
	s.bump()
	wasDefault := s.defaultCategory != nil && *s.defaultCategory == id
	s.mu.Unlock()

	s.events.Emit(sse.NewCategoryDeletedEvent(id))

	if wasDefault {
		if err := s.SetDefaultCategory(ctx, nil); err != nil {
			// The category is gone either way; never point the local default at it.
			s.clearDefaultCategory()
			return domainerrors.PartialConsistency("delete category",
				[]string{"category:" + strconv.FormatInt(id, 10)}, []string{domain.SettingDefaultCategory}, err)
		}
	}
	return nil
}

// FetchCreators replaces the local creators, ordered by name.
func (s *Store) FetchCreators(ctx context.Context) ([]domain.Creator, error) {
	creators, err := selectAll[domain.Creator](ctx, s.client, store.TableCreators, store.Query{
		Order: &store.Order{Column: "name"},
	})
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.creators = creators
	s.mu.Unlock()
	return s.Creators(), nil
}

// Creators returns a copy of the local creators.
func (s *Store) Creators() []domain.Creator {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.creators)
}

// Creator returns the local creator with id.
func (s *Store) Creator(id int64) (domain.Creator, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := slices.IndexFunc(s.creators, func(c domain.Creator) bool { return c.ID == id })
	if i < 0 {
		return domain.Creator{}, false
	}
	return s.creators[i], true
}

// FavoriteCreators returns the creators marked favorite.
func (s *Store) FavoriteCreators() []domain.Creator {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Creator
	for _, c := range s.creators {
		if c.IsFavorite {
			out = append(out, c)
		}
	}
	return out
}

// AddCreator creates a creator.
func (s *Store) AddCreator(ctx context.Context, c domain.Creator) (domain.Creator, error) {
	c.Name = normalize.Name(c.Name)
	if c.Name == "" {
		return domain.Creator{}, domainerrors.Validation("creator name is required")
	}
	c.ID = 0
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now().UTC()
	}
	created, err := insertOne[domain.Creator](ctx, s.client, store.TableCreators, c)
	if err != nil {
		return domain.Creator{}, s.remoteErr("add creator", err)
	}

	s.mu.Lock()
	s.creators = append(s.creators, created)
	s.mu.Unlock()

	s.events.Emit(sse.NewCreatorCreatedEvent(created))
	return created, nil
}

// UpdateCreator writes patch and applies it locally.
func (s *Store) UpdateCreator(ctx context.Context, id int64, patch domain.CreatorPatch) error {
	if patch.Name != nil {
		n := normalize.Name(*patch.Name)
		if n == "" {
			return domainerrors.Validation("creator name is required")
		}
		patch.Name = &n
	}
	row, err := encodePatch(patch)
	if err != nil {
		return err
	}
	if len(row) == 0 {
		return nil
	}
	if err := s.client.Update(ctx, store.TableCreators, row, store.Eq("id", id)); err != nil {
		return s.remoteErr("update creator", err)
	}

	s.mu.Lock()
	var updated domain.Creator
	if i := slices.IndexFunc(s.creators, func(c domain.Creator) bool { return c.ID == id }); i >= 0 {
		patch.Apply(&s.creators[i])
		updated = s.creators[i]
	}
	s.mu.Unlock()

	if updated.ID != 0 {
		s.events.Emit(sse.NewCreatorUpdatedEvent(updated))
	}
	return nil
}

// DeleteCreator deletes the creator and its tag and atom links.
func (s *Store) DeleteCreator(ctx context.Context, id int64) error {
	if err := s.client.Delete(ctx, store.TableCreators, store.Eq("id", id)); err != nil {
		return s.remoteErr("delete creator", err)
	}
	s.logIfFailed("creator tag links", s.client.Delete(ctx, store.TableCreatorTags, store.Eq("creator_id", id)))
	s.logIfFailed("creator atom links", s.client.Delete(ctx, store.TableCreatorAtoms, store.Eq("creator_id", id)))

	s.mu.Lock()
	s.creators = slices.DeleteFunc(s.creators, func(c domain.Creator) bool { return c.ID == id })
	s.creatorTags = slices.DeleteFunc(s.creatorTags, func(l domain.CreatorTag) bool { return l.CreatorID == id })
	s.creatorAtoms = slices.DeleteFunc(s.creatorAtoms, func(l domain.CreatorAtom) bool { return l.CreatorID == id })
	s.bump()
	s.mu.Unlock()

	s.events.Emit(sse.NewCreatorDeletedEvent(id))
	return nil
}

func (s *Store) lookupCategory(ctx context.Context, id int64) (domain.Category, error) {
	if c, ok := s.Category(id); ok {
		return c, nil
	}
	cats, err := selectAll[domain.Category](ctx, s.client, store.TableCategories, store.Query{
		Filters: []store.Filter{store.Eq("id", id)},
	})
	if err != nil {
		return domain.Category{}, err
	}
	if len(cats) == 0 {
		return domain.Category{}, domainerrors.NotFoundf("category %d not found", id)
	}
	return cats[0], nil
}

func (s *Store) lookupCreator(ctx context.Context, id int64) (domain.Creator, error) {
	if c, ok := s.Creator(id); ok {
		return c, nil
	}
	creators, err := selectAll[domain.Creator](ctx, s.client, store.TableCreators, store.Query{
		Filters: []store.Filter{store.Eq("id", id)},
	})
	if err != nil {
		return domain.Creator{}, err
	}
	if len(creators) == 0 {
		return domain.Creator{}, domainerrors.NotFoundf("creator %d not found", id)
	}
	return creators[0], nil
}
