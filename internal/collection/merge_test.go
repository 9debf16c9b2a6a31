package collection_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atomshelf/atomshelf-server/internal/domain"
	domainerrors "github.com/atomshelf/atomshelf-server/internal/errors"
	"github.com/atomshelf/atomshelf-server/internal/store"
	"github.com/atomshelf/atomshelf-server/internal/store/storetest"
)

func (f *fixture) countWithTag(t *testing.T, name string) int {
	t.Helper()
	rows, err := f.client.Select(f.ctx, store.TableAtoms, store.Query{
		Filters: []store.Filter{store.Contains("tags", name)},
	})
	require.NoError(t, err)
	return len(rows)
}

func TestMergeTag(t *testing.T) {
	f := newFixture(t)
	f.addAtom(t, "one", "kitty", "pets")
	f.addAtom(t, "two", "kitty")
	f.addAtom(t, "three", "cat")
	f.addAtom(t, "four", "dog")
	kitty, _ := f.store.TagByName("kitty")
	cat, _ := f.store.TagByName("cat")

	category, err := f.store.AddCategory(f.ctx, domain.Category{Name: "Animals"})
	require.NoError(t, err)
	require.NoError(t, f.store.AddCategoryTag(f.ctx, category.ID, kitty.ID))
	f.store.ToggleTag("kitty")

	before := f.countWithTag(t, "kitty") + f.countWithTag(t, "cat")

	require.NoError(t, f.store.MergeTag(f.ctx, kitty.ID, cat.ID))

	assert.Zero(t, f.countWithTag(t, "kitty"))
	assert.GreaterOrEqual(t, f.countWithTag(t, "cat"), before)

	_, ok := f.store.TagByName("kitty")
	assert.False(t, ok)
	assert.Equal(t, []string{"cat"}, tagNames(f.store.CategoryTags(category.ID)))
	assert.Equal(t, []string{"cat"}, f.store.SelectedTags())

	merged, _ := f.store.Tag(cat.ID)
	assert.Equal(t, 3, merged.Count)

	for _, a := range f.store.Atoms() {
		assert.NotContains(t, a.Tags, "kitty", "atom %d", a.ID)
	}
}

func TestMergeTag_DeduplicatesWhenAtomCarriesBoth(t *testing.T) {
	f := newFixture(t)
	a := f.addAtom(t, "both", "kitty", "sky", "cat")
	kitty, _ := f.store.TagByName("kitty")
	cat, _ := f.store.TagByName("cat")

	require.NoError(t, f.store.MergeTag(f.ctx, kitty.ID, cat.ID))

	local, _ := f.store.Atom(a.ID)
	assert.Equal(t, []string{"cat", "sky"}, local.Tags)
}

func TestMergeTag_PartialFailureIsRetryable(t *testing.T) {
	f := newFixture(t)
	f.addAtom(t, "one", "kitty")
	f.addAtom(t, "two", "kitty")
	f.addAtom(t, "three", "kitty")
	kitty, _ := f.store.TagByName("kitty")
	cat := f.addTag(t, "cat")

	f.client.Fail(storetest.MethodUpdate, store.TableAtoms).After(1).Times(1)

	err := f.store.MergeTag(f.ctx, kitty.ID, cat.ID)
	d := partialDetails(t, err)
	assert.Equal(t, "merge tag", d.Operation)
	assert.Len(t, d.Completed, 2)
	assert.Len(t, d.Failed, 1)

	_, ok := f.store.Tag(kitty.ID)
	assert.True(t, ok, "source survives a partial merge")
	assert.Equal(t, 1, f.countWithTag(t, "kitty"))

	require.NoError(t, f.store.MergeTag(f.ctx, kitty.ID, cat.ID))
	assert.Zero(t, f.countWithTag(t, "kitty"))
	assert.Equal(t, 3, f.countWithTag(t, "cat"))
}

// seedRawAtom writes an atom row directly, bypassing tag normalization, the
// way another client of the same store could.
func (f *fixture) seedRawAtom(t *testing.T, title string, tags ...string) int64 {
	t.Helper()
	row, err := store.Encode(domain.Atom{
		Title:       title,
		ContentType: domain.ContentImage,
		Tags:        tags,
		CreatedAt:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	rows, err := f.client.Insert(f.ctx, store.TableAtoms, row)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	created, err := store.DecodeRow[domain.Atom](rows[0])
	require.NoError(t, err)
	_, err = f.store.FetchAtoms(f.ctx)
	require.NoError(t, err)
	return created.ID
}

func TestMergeTag_RewritesUnnormalizedRows(t *testing.T) {
	f := newFixture(t)
	art := f.addTag(t, "art")
	painting := f.addTag(t, "painting")
	id := f.seedRawAtom(t, "raw", "Art", " sky ", "art ")

	require.NoError(t, f.store.MergeTag(f.ctx, art.ID, painting.ID))

	local, ok := f.store.Atom(id)
	require.True(t, ok)
	assert.Equal(t, []string{"painting", "sky"}, local.Tags)
	assert.Zero(t, f.countWithTag(t, "Art"))
	assert.Zero(t, f.countWithTag(t, "art "))
	assert.Equal(t, 1, f.countWithTag(t, "painting"))

	_, ok = f.store.TagByName("art")
	assert.False(t, ok)
}

func TestDeleteTag_StripsUnnormalizedRows(t *testing.T) {
	f := newFixture(t)
	art := f.addTag(t, "art")
	id := f.seedRawAtom(t, "raw", "ART", "sky")

	require.NoError(t, f.store.DeleteTag(f.ctx, art.ID))

	local, ok := f.store.Atom(id)
	require.True(t, ok)
	assert.Equal(t, []string{"sky"}, local.Tags)
	assert.Zero(t, f.countWithTag(t, "ART"))
}

func TestMergeTag_Validation(t *testing.T) {
	f := newFixture(t)
	art := f.addTag(t, "art")

	assert.ErrorIs(t, f.store.MergeTag(f.ctx, art.ID, art.ID), domainerrors.ErrValidation)
	assert.ErrorIs(t, f.store.MergeTag(f.ctx, art.ID, 999), domainerrors.ErrNotFound)
}

func TestMergeCategory(t *testing.T) {
	f := newFixture(t)
	art := f.addTag(t, "art")
	sky := f.addTag(t, "sky")
	src, err := f.store.AddCategory(f.ctx, domain.Category{Name: "Visual"})
	require.NoError(t, err)
	dst, err := f.store.AddCategory(f.ctx, domain.Category{Name: "Art"})
	require.NoError(t, err)

	require.NoError(t, f.store.AddCategoryTag(f.ctx, src.ID, art.ID))
	require.NoError(t, f.store.AddCategoryTag(f.ctx, src.ID, sky.ID))
	require.NoError(t, f.store.AddCategoryTag(f.ctx, dst.ID, art.ID))
	require.NoError(t, f.store.SetDefaultCategory(f.ctx, &src.ID))

	require.NoError(t, f.store.MergeCategory(f.ctx, src.ID, dst.ID))

	// The duplicate (dst, art) pair is harmless to the set-producing join.
	assert.Equal(t, []string{"art", "sky"}, tagNames(f.store.CategoryTags(dst.ID)))
	assert.Empty(t, f.store.CategoryTags(src.ID))
	_, ok := f.store.Category(src.ID)
	assert.False(t, ok)
	assert.Nil(t, f.store.DefaultCategory(), "merging away the default category clears it")
	stored, err := f.store.FetchDefaultCategory(f.ctx)
	require.NoError(t, err)
	assert.Nil(t, stored)

	require.NoError(t, f.store.FetchCategoryTags(f.ctx))
	assert.Equal(t, []string{"art", "sky"}, tagNames(f.store.CategoryTags(dst.ID)))

	assert.ErrorIs(t, f.store.MergeCategory(f.ctx, dst.ID, dst.ID), domainerrors.ErrValidation)
}

func TestMergeCreator(t *testing.T) {
	f := newFixture(t)
	src, err := f.store.AddCreator(f.ctx, domain.Creator{Name: "A. Adams"})
	require.NoError(t, err)
	dst, err := f.store.AddCreator(f.ctx, domain.Creator{Name: "Ansel Adams"})
	require.NoError(t, err)

	exact := "A. Adams"
	joined := "A. Adams, Dorothea Lange"
	solo, err := f.store.AddAtomWithCreators(f.ctx,
		domain.Atom{Title: "valley", ContentType: "image", CreatorName: &exact}, []int64{src.ID})
	require.NoError(t, err)
	duo, err := f.store.AddAtom(f.ctx, domain.Atom{Title: "fields", ContentType: "image", CreatorName: &joined})
	require.NoError(t, err)

	require.NoError(t, f.store.MergeCreator(f.ctx, src.ID, dst.ID))

	got, _ := f.store.Atom(solo.ID)
	require.NotNil(t, got.CreatorName)
	assert.Equal(t, "Ansel Adams", *got.CreatorName)

	got, _ = f.store.Atom(duo.ID)
	assert.Equal(t, joined, *got.CreatorName, "comma-joined names are not rewritten")

	_, ok := f.store.Creator(src.ID)
	assert.False(t, ok)

	// creator_atoms rows keep pointing at the merged-away creator.
	rows, err := f.client.Select(f.ctx, store.TableCreatorAtoms, store.Query{
		Filters: []store.Filter{store.Eq("creator_id", src.ID)},
	})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestMergeCreator_PartialFailure(t *testing.T) {
	f := newFixture(t)
	src, err := f.store.AddCreator(f.ctx, domain.Creator{Name: "Anon"})
	require.NoError(t, err)
	dst, err := f.store.AddCreator(f.ctx, domain.Creator{Name: "Unknown"})
	require.NoError(t, err)
	name := "Anon"
	for _, title := range []string{"a", "b"} {
		_, err := f.store.AddAtom(f.ctx, domain.Atom{Title: title, ContentType: "note", CreatorName: &name})
		require.NoError(t, err)
	}

	f.client.Fail(storetest.MethodUpdate, store.TableAtoms).After(1).Times(1)
	err = f.store.MergeCreator(f.ctx, src.ID, dst.ID)
	partialDetails(t, err)
	_, ok := f.store.Creator(src.ID)
	assert.True(t, ok)

	require.NoError(t, f.store.MergeCreator(f.ctx, src.ID, dst.ID))
	_, ok = f.store.Creator(src.ID)
	assert.False(t, ok)
}
