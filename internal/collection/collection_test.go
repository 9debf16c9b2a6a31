package collection_test

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atomshelf/atomshelf-server/internal/collection"
	"github.com/atomshelf/atomshelf-server/internal/domain"
	domainerrors "github.com/atomshelf/atomshelf-server/internal/errors"
	"github.com/atomshelf/atomshelf-server/internal/store"
	"github.com/atomshelf/atomshelf-server/internal/store/kv"
	"github.com/atomshelf/atomshelf-server/internal/store/storetest"
)

// recorder collects emitted events.
type recorder struct {
	mu     sync.Mutex
	events []any
}

func (r *recorder) Emit(e any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

type fixture struct {
	store  *collection.Store
	client *storetest.Faulty
	events *recorder
	ctx    context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	kvc, err := kv.Open(kv.Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = kvc.Close() })

	faulty := storetest.Wrap(kvc)
	events := &recorder{}

	var mu sync.Mutex
	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	now := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Second)
		return clock
	}

	s := collection.New(faulty, collection.Options{Events: events, Now: now})
	return &fixture{store: s, client: faulty, events: events, ctx: context.Background()}
}

func (f *fixture) addAtom(t *testing.T, title string, tags ...string) domain.Atom {
	t.Helper()
	a, err := f.store.AddAtom(f.ctx, domain.Atom{Title: title, ContentType: domain.ContentImage, Tags: tags})
	require.NoError(t, err)
	return a
}

func (f *fixture) addTag(t *testing.T, name string) domain.Tag {
	t.Helper()
	tag, err := f.store.AddTag(f.ctx, domain.Tag{Name: name})
	require.NoError(t, err)
	return tag
}

func ids(atoms []domain.Atom) []int64 {
	out := make([]int64, len(atoms))
	for i, a := range atoms {
		out[i] = a.ID
	}
	return out
}

func tagNames(tags []domain.Tag) []string {
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = t.Name
	}
	return out
}

func partialDetails(t *testing.T, err error) domainerrors.PartialDetails {
	t.Helper()
	var de *domainerrors.Error
	require.ErrorAs(t, err, &de)
	require.Equal(t, domainerrors.CodePartialConsistency, de.Code)
	d, ok := de.Details.(domainerrors.PartialDetails)
	require.True(t, ok)
	return d
}

func TestAddAtom_NormalizesTagsAndCreatesTagRows(t *testing.T) {
	f := newFixture(t)

	a := f.addAtom(t, "poster", "  Cat  Tag ", "ART", "art")

	assert.NotZero(t, a.ID)
	assert.Equal(t, []string{"cat tag", "art"}, a.Tags)
	assert.Equal(t, []string{"art", "cat tag"}, tagNames(f.store.Tags()))

	local, ok := f.store.Atom(a.ID)
	require.True(t, ok)
	assert.Equal(t, a.Tags, local.Tags)
	assert.Positive(t, f.events.count())
}

func TestAddAtom_NewestFirst(t *testing.T) {
	f := newFixture(t)
	first := f.addAtom(t, "first")
	second := f.addAtom(t, "second")

	assert.Equal(t, []int64{second.ID, first.ID}, ids(f.store.Atoms()))

	fetched, err := f.store.FetchAtoms(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{second.ID, first.ID}, ids(fetched))
}

func TestAddAtom_Failures(t *testing.T) {
	t.Run("remote insert fails", func(t *testing.T) {
		f := newFixture(t)
		f.client.Fail(storetest.MethodInsert, store.TableAtoms)

		_, err := f.store.AddAtom(f.ctx, domain.Atom{Title: "x", ContentType: "note", Tags: []string{"a"}})
		assert.ErrorIs(t, err, domainerrors.ErrRemote)
		assert.Empty(t, f.store.Atoms())
		assert.Empty(t, f.store.Tags(), "tag rows created for the failed insert are dropped")
		rows, err := f.client.Select(f.ctx, store.TableTags, store.Query{})
		require.NoError(t, err)
		assert.Empty(t, rows)
	})

	t.Run("existing tags survive a failed insert", func(t *testing.T) {
		f := newFixture(t)
		f.addTag(t, "old")
		f.client.Fail(storetest.MethodInsert, store.TableAtoms)

		_, err := f.store.AddAtom(f.ctx, domain.Atom{Title: "x", ContentType: "note", Tags: []string{"old", "brand new"}})
		assert.ErrorIs(t, err, domainerrors.ErrRemote)
		assert.Equal(t, []string{"old"}, tagNames(f.store.Tags()))
	})

	t.Run("tag creation fails first", func(t *testing.T) {
		f := newFixture(t)
		f.client.Fail(storetest.MethodInsert, store.TableTags)

		_, err := f.store.AddAtom(f.ctx, domain.Atom{Title: "x", ContentType: "note", Tags: []string{"new"}})
		assert.ErrorIs(t, err, domainerrors.ErrRemote)
		assert.Empty(t, f.store.Atoms())
		assert.Zero(t, f.client.Calls(storetest.MethodInsert, store.TableAtoms))
	})

	t.Run("missing content type", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.store.AddAtom(f.ctx, domain.Atom{Title: "x"})
		assert.ErrorIs(t, err, domainerrors.ErrValidation)
		assert.Zero(t, f.client.Calls(storetest.MethodInsert, store.TableAtoms))
	})

	t.Run("pseudo-tag on atom", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.store.AddAtom(f.ctx, domain.Atom{Title: "x", ContentType: "note", Tags: []string{"Flagged"}})
		assert.ErrorIs(t, err, domainerrors.ErrValidation)
	})
}

func TestAddTag_IsIdempotent(t *testing.T) {
	f := newFixture(t)

	a := f.addTag(t, "Street  Photo")
	b := f.addTag(t, " street photo ")

	assert.Equal(t, a.ID, b.ID)
	assert.Equal(t, "street photo", a.Name)
	assert.Equal(t, 1, f.client.Calls(storetest.MethodInsert, store.TableTags))
	assert.Len(t, f.store.Tags(), 1)
}

func TestAddTag_StaleMirrorAdoptsRemoteRow(t *testing.T) {
	f := newFixture(t)
	rows, err := f.client.Insert(f.ctx, store.TableTags, store.Row{"name": "art", "count": int64(0), "is_private": false})
	require.NoError(t, err)

	tag := f.addTag(t, "Art")

	assert.Equal(t, rows[0]["id"], tag.ID)
	assert.Len(t, f.store.Tags(), 1)
}

func TestAddTag_RejectsReservedAndBlank(t *testing.T) {
	f := newFixture(t)
	for _, name := range []string{"", "   ", "no-tag", "FLAGGED"} {
		_, err := f.store.AddTag(f.ctx, domain.Tag{Name: name})
		assert.ErrorIs(t, err, domainerrors.ErrValidation, "name %q", name)
	}
	assert.Zero(t, f.client.Calls(storetest.MethodInsert, store.TableTags))
}

func TestUpdateAtom_PatchesLocalWithPartial(t *testing.T) {
	f := newFixture(t)
	a := f.addAtom(t, "sunset", "sky")

	tags := []string{"New  Tag", "sky"}
	require.NoError(t, f.store.UpdateAtom(f.ctx, a.ID, domain.AtomPatch{Tags: &tags}))

	local, ok := f.store.Atom(a.ID)
	require.True(t, ok)
	assert.Equal(t, []string{"new tag", "sky"}, local.Tags)
	assert.Equal(t, "sunset", local.Title)

	_, ok = f.store.TagByName("new tag")
	assert.True(t, ok)

	remote, err := f.store.FetchAtoms(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, local.Tags, remote[0].Tags)
}

func TestUpdateAtom_RemoteFailureKeepsLocal(t *testing.T) {
	f := newFixture(t)
	a := f.addAtom(t, "sunset")
	f.client.Fail(storetest.MethodUpdate, store.TableAtoms)

	title := "dusk"
	err := f.store.UpdateAtom(f.ctx, a.ID, domain.AtomPatch{Title: &title})
	assert.ErrorIs(t, err, domainerrors.ErrRemote)

	local, _ := f.store.Atom(a.ID)
	assert.Equal(t, "sunset", local.Title)
}

func TestUpdateAtom_RemoteFailureDropsNewTagRows(t *testing.T) {
	f := newFixture(t)
	a := f.addAtom(t, "sunset", "sky")
	f.client.Fail(storetest.MethodUpdate, store.TableAtoms)

	tags := []string{"sky", "Golden Hour"}
	err := f.store.UpdateAtom(f.ctx, a.ID, domain.AtomPatch{Tags: &tags})
	assert.ErrorIs(t, err, domainerrors.ErrRemote)

	assert.Equal(t, []string{"sky"}, tagNames(f.store.Tags()))
	local, _ := f.store.Atom(a.ID)
	assert.Equal(t, []string{"sky"}, local.Tags)
}

func TestDeleteAtom(t *testing.T) {
	t.Run("remote failure keeps atom and deleting mark", func(t *testing.T) {
		f := newFixture(t)
		a := f.addAtom(t, "five")
		f.client.Fail(storetest.MethodDelete, store.TableAtoms)

		err := f.store.DeleteAtom(f.ctx, a.ID)
		assert.ErrorIs(t, err, domainerrors.ErrRemote)

		_, ok := f.store.Atom(a.ID)
		assert.True(t, ok)
		assert.True(t, f.store.IsDeleting(a.ID))
		assert.Equal(t, []int64{a.ID}, f.store.Deleting())
	})

	t.Run("success removes atom and its links", func(t *testing.T) {
		f := newFixture(t)
		idea := f.addAtom(t, "idea")
		child := f.addAtom(t, "child")
		require.NoError(t, f.store.AddChildAtom(f.ctx, idea.ID, child.ID))

		require.NoError(t, f.store.DeleteAtom(f.ctx, child.ID))

		_, ok := f.store.Atom(child.ID)
		assert.False(t, ok)
		assert.False(t, f.store.IsDeleting(child.ID))
		children, err := f.store.FetchIdeaChildren(f.ctx, idea.ID)
		require.NoError(t, err)
		assert.Empty(t, children)
	})
}

func TestAddAtomWithCreators(t *testing.T) {
	f := newFixture(t)
	c1, err := f.store.AddCreator(f.ctx, domain.Creator{Name: "Ansel Adams"})
	require.NoError(t, err)
	c2, err := f.store.AddCreator(f.ctx, domain.Creator{Name: "Dorothea Lange"})
	require.NoError(t, err)

	f.client.Fail(storetest.MethodInsert, store.TableCreatorAtoms).After(1).Times(1)

	a, err := f.store.AddAtomWithCreators(f.ctx,
		domain.Atom{Title: "valley", ContentType: "image"}, []int64{c1.ID, c2.ID})
	d := partialDetails(t, err)
	assert.Equal(t, []string{strconv.FormatInt(c1.ID, 10)}, d.Completed)
	assert.Equal(t, []string{strconv.FormatInt(c2.ID, 10)}, d.Failed)

	_, ok := f.store.Atom(a.ID)
	assert.True(t, ok, "atom is kept after a link failure")

	require.NoError(t, f.store.LinkAtomCreators(f.ctx, a.ID, []int64{c1.ID, c2.ID}))
	require.NoError(t, f.store.LinkAtomCreators(f.ctx, a.ID, []int64{c1.ID, c2.ID}))

	rows, err := f.client.Select(f.ctx, store.TableCreatorAtoms, store.Query{})
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Len(t, f.store.CreatorAtomLinks(), 2)
}

func TestHideAtoms(t *testing.T) {
	f := newFixture(t)
	a := f.addAtom(t, "a")
	b := f.addAtom(t, "b")

	require.NoError(t, f.store.HideAtoms(f.ctx, []int64{a.ID, b.ID}))
	for _, id := range []int64{a.ID, b.ID} {
		got, _ := f.store.Atom(id)
		assert.True(t, got.Hidden)
	}

	f.client.Fail(storetest.MethodUpdate, store.TableAtoms).After(1)
	err := f.store.UnhideAtoms(f.ctx, []int64{a.ID, b.ID})
	d := partialDetails(t, err)
	assert.Len(t, d.Completed, 1)
	assert.Len(t, d.Failed, 1)

	f.client.Heal()
	f.client.Fail(storetest.MethodUpdate, store.TableAtoms)
	err = f.store.UnhideAtoms(f.ctx, []int64{a.ID})
	assert.ErrorIs(t, err, domainerrors.ErrRemote)
}

func TestAddChildAtom(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.store.AddChildAtom(f.ctx, 10, 11))
	require.NoError(t, f.store.AddChildAtom(f.ctx, 10, 11))

	rows, err := f.client.Select(f.ctx, store.TableAtomRelationships, store.Query{})
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	children, err := f.store.FetchIdeaChildren(f.ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{11}, children)

	selects := f.client.Calls(storetest.MethodSelect, store.TableAtomRelationships)
	err = f.store.AddChildAtom(f.ctx, 12, 12)
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
	assert.Equal(t, selects, f.client.Calls(storetest.MethodSelect, store.TableAtomRelationships),
		"self relationship is rejected before any remote call")

	require.NoError(t, f.store.RemoveChildAtom(f.ctx, 10, 11))
	got, loaded := f.store.IdeaChildren(10)
	assert.True(t, loaded)
	assert.Empty(t, got)
}

func TestToggleTag(t *testing.T) {
	f := newFixture(t)

	assert.True(t, f.store.ToggleTag(" Art "))
	assert.True(t, f.store.ToggleTag("flagged"))
	assert.True(t, f.store.ToggleTag("no-tag"))
	assert.Equal(t, []string{"art", "flagged", "no-tag"}, f.store.SelectedTags())

	assert.False(t, f.store.ToggleTag("ART"))
	assert.Equal(t, []string{"flagged", "no-tag"}, f.store.SelectedTags())
	assert.False(t, f.store.ToggleTag("   "))

	_, ok := f.store.TagByName("flagged")
	assert.False(t, ok, "pseudo-tags are never tag rows")

	f.store.ClearSelectedTags()
	assert.Empty(t, f.store.SelectedTags())
}

func TestUpdateTag(t *testing.T) {
	f := newFixture(t)
	art := f.addTag(t, "art")
	f.addTag(t, "photo")
	a := f.addAtom(t, "x", "art", "sky")

	name := "Photo"
	err := f.store.UpdateTag(f.ctx, art.ID, domain.TagPatch{Name: &name})
	assert.ErrorIs(t, err, domainerrors.ErrValidation)

	name = "Fine  Art"
	require.NoError(t, f.store.UpdateTag(f.ctx, art.ID, domain.TagPatch{Name: &name}))

	got, _ := f.store.Tag(art.ID)
	assert.Equal(t, "fine art", got.Name)
	local, _ := f.store.Atom(a.ID)
	assert.Equal(t, []string{"fine art", "sky"}, local.Tags)
}

func TestDeleteTag_StripsAtomsAndLinks(t *testing.T) {
	f := newFixture(t)
	a := f.addAtom(t, "x", "art", "sky")
	art, _ := f.store.TagByName("art")
	cat, err := f.store.AddCategory(f.ctx, domain.Category{Name: "Visual"})
	require.NoError(t, err)
	require.NoError(t, f.store.AddCategoryTag(f.ctx, cat.ID, art.ID))

	require.NoError(t, f.store.DeleteTag(f.ctx, art.ID))

	local, _ := f.store.Atom(a.ID)
	assert.Equal(t, []string{"sky"}, local.Tags)
	assert.Empty(t, f.store.CategoryTags(cat.ID))
	_, ok := f.store.TagByName("art")
	assert.False(t, ok)
}

func TestRecountTags(t *testing.T) {
	f := newFixture(t)
	f.addAtom(t, "a", "art")
	f.addAtom(t, "b", "art", "sky")

	require.NoError(t, f.store.RecountTags(f.ctx))

	art, _ := f.store.TagByName("art")
	sky, _ := f.store.TagByName("sky")
	assert.Equal(t, 2, art.Count)
	assert.Equal(t, 1, sky.Count)

	tags, err := f.store.FetchTags(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, tags[0].Count)
}

func TestCategoryTags_DerivedAndInvalidated(t *testing.T) {
	f := newFixture(t)
	art := f.addTag(t, "art")
	sky := f.addTag(t, "sky")
	cat, err := f.store.AddCategory(f.ctx, domain.Category{Name: " Visual  Arts "})
	require.NoError(t, err)
	assert.Equal(t, "Visual Arts", cat.Name)

	require.NoError(t, f.store.AddCategoryTag(f.ctx, cat.ID, art.ID))
	assert.Equal(t, []string{"art"}, tagNames(f.store.CategoryTags(cat.ID)))

	require.NoError(t, f.store.AddCategoryTag(f.ctx, cat.ID, sky.ID))
	require.NoError(t, f.store.AddCategoryTag(f.ctx, cat.ID, sky.ID))
	assert.Equal(t, []string{"art", "sky"}, tagNames(f.store.CategoryTags(cat.ID)))
	assert.Equal(t, 2, f.client.Calls(storetest.MethodInsert, store.TableCategoryTags))

	require.NoError(t, f.store.RemoveCategoryTag(f.ctx, cat.ID, art.ID))
	assert.Equal(t, []string{"sky"}, tagNames(f.store.CategoryTags(cat.ID)))

	creator, err := f.store.AddCreator(f.ctx, domain.Creator{Name: "Ansel"})
	require.NoError(t, err)
	require.NoError(t, f.store.AddCreatorTag(f.ctx, creator.ID, sky.ID))
	assert.Equal(t, []string{"sky"}, tagNames(f.store.CreatorTags(creator.ID)))
	require.NoError(t, f.store.RemoveCreatorTag(f.ctx, creator.ID, sky.ID))
	assert.Empty(t, f.store.CreatorTags(creator.ID))
}

func TestFetchCategoryTags_FailureKeepsPriorLinks(t *testing.T) {
	f := newFixture(t)
	art := f.addTag(t, "art")
	cat, err := f.store.AddCategory(f.ctx, domain.Category{Name: "Visual"})
	require.NoError(t, err)
	require.NoError(t, f.store.AddCategoryTag(f.ctx, cat.ID, art.ID))

	f.client.Fail(storetest.MethodSelect, store.TableCategoryTags)
	assert.Error(t, f.store.FetchCategoryTags(f.ctx))
	assert.Equal(t, []string{"art"}, tagNames(f.store.CategoryTags(cat.ID)))
}

func TestDefaultCategory(t *testing.T) {
	f := newFixture(t)
	cat, err := f.store.AddCategory(f.ctx, domain.Category{Name: "Home"})
	require.NoError(t, err)

	require.NoError(t, f.store.SetDefaultCategory(f.ctx, &cat.ID))
	got, err := f.store.FetchDefaultCategory(f.ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, cat.ID, *got)

	require.NoError(t, f.store.DeleteCategory(f.ctx, cat.ID))
	assert.Nil(t, f.store.DefaultCategory())

	got, err = f.store.FetchDefaultCategory(f.ctx)
	require.NoError(t, err)
	assert.Nil(t, got, "the cleared default is persisted")
}

func TestDeleteCategory_SettingWriteFails(t *testing.T) {
	f := newFixture(t)
	cat, err := f.store.AddCategory(f.ctx, domain.Category{Name: "Home"})
	require.NoError(t, err)
	require.NoError(t, f.store.SetDefaultCategory(f.ctx, &cat.ID))

	f.client.Fail(storetest.MethodUpsert, store.TableSettings)
	err = f.store.DeleteCategory(f.ctx, cat.ID)
	d := partialDetails(t, err)
	assert.Equal(t, []string{domain.SettingDefaultCategory}, d.Failed)
	assert.Nil(t, f.store.DefaultCategory())
}

func TestLoad(t *testing.T) {
	f := newFixture(t)
	f.addAtom(t, "a", "art")
	cat, err := f.store.AddCategory(f.ctx, domain.Category{Name: "Visual"})
	require.NoError(t, err)
	require.NoError(t, f.store.SetDefaultCategory(f.ctx, &cat.ID))

	fresh := collection.New(f.client, collection.Options{})
	f.client.Fail(storetest.MethodSelect, store.TableCreatorTags)
	require.NoError(t, fresh.Load(f.ctx), "join table failures are not fatal")

	assert.Len(t, fresh.Atoms(), 1)
	assert.Len(t, fresh.Tags(), 1)
	require.NotNil(t, fresh.DefaultCategory())
	assert.Equal(t, cat.ID, *fresh.DefaultCategory())

	f.client.Fail(storetest.MethodSelect, store.TableAtoms)
	assert.ErrorIs(t, fresh.Load(f.ctx), domainerrors.ErrRemote)
}
