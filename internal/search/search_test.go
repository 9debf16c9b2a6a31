package search

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atomshelf/atomshelf-server/internal/domain"
)

func setupTestIndex(t *testing.T) *Index {
	t.Helper()
	index, err := NewIndex(Options{DataPath: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })
	return index
}

func ptr(s string) *string { return &s }

func testAtom(id int64, title, contentType string, tags ...string) domain.Atom {
	at := time.Date(2026, 3, 1, 0, 0, int(id), 0, time.UTC)
	return domain.Atom{ID: id, Title: title, ContentType: contentType, Tags: tags, CreatedAt: at, UpdatedAt: at}
}

func hitIDs(r *Result) []int64 {
	ids := make([]int64, len(r.Hits))
	for i, h := range r.Hits {
		ids[i] = h.ID
	}
	return ids
}

func TestNewIndex(t *testing.T) {
	index := setupTestIndex(t)

	count, err := index.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}

func TestNewIndex_ReopensExisting(t *testing.T) {
	dir := t.TempDir()
	index, err := NewIndex(Options{DataPath: dir})
	require.NoError(t, err)
	require.NoError(t, index.IndexAtom(context.Background(), testAtom(1, "Sunset", "image")))
	require.NoError(t, index.Close())

	reopened, err := NewIndex(Options{DataPath: dir})
	require.NoError(t, err)
	defer reopened.Close()

	count, err := reopened.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func TestIndex_IndexAndRemove(t *testing.T) {
	index := setupTestIndex(t)
	ctx := context.Background()

	require.NoError(t, index.IndexAtom(ctx, testAtom(7, "Harbor at dawn", "image")))
	require.NoError(t, index.IndexAtom(ctx, testAtom(7, "Harbor at dusk", "image")))

	count, err := index.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count, "re-indexing replaces the document")

	require.NoError(t, index.RemoveAtom(ctx, 7))
	require.NoError(t, index.RemoveAtom(ctx, 7))

	count, err = index.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}

func TestIndex_Search(t *testing.T) {
	index, err := NewIndex(Options{InMemory: true})
	require.NoError(t, err)
	defer index.Close()
	ctx := context.Background()

	portrait := testAtom(1, "Migrant Mother", "image", "portrait", "documentary")
	portrait.CreatorName = ptr("Dorothea Lange")
	recipe := testAtom(2, "Sourdough loaf", "recipe", "baking")
	recipe.Description = ptr("<p>A <strong>crusty</strong> bread with a long ferment.</p>")
	hidden := testAtom(3, "Mother of pearl", "image", "texture")
	hidden.Hidden = true
	landscape := testAtom(4, "Moonrise", "image", "landscape", "documentary")
	landscape.CreatorName = ptr("Ansel Adams, Dorothea Lange")

	require.NoError(t, index.IndexAtoms(ctx, []domain.Atom{portrait, recipe, hidden, landscape}))

	tests := []struct {
		name   string
		params Params
		want   []int64
	}{
		{"title match skips hidden", Params{Query: "mother"}, []int64{1}},
		{"hidden included on request", Params{Query: "mother", IncludeHidden: true, SortBy: SortRecent, SortOrder: "asc"}, []int64{1, 3}},
		{"description html is indexed as text", Params{Query: "crusty"}, []int64{2}},
		{"creator", Params{Query: "Lange", SortBy: SortRecent, SortOrder: "asc"}, []int64{1, 4}},
		{"tag filter", Params{Tags: []string{"Documentary"}, SortBy: SortRecent}, []int64{4, 1}},
		{"tags are conjunctive", Params{Tags: []string{"documentary", "landscape"}}, []int64{4}},
		{"content type filter", Params{ContentTypes: []string{"recipe"}}, []int64{2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := index.Search(ctx, tt.params)
			require.NoError(t, err)
			assert.Equal(t, tt.want, hitIDs(res))
		})
	}
}

func TestIndex_SearchFacetsAndFields(t *testing.T) {
	index, err := NewIndex(Options{InMemory: true})
	require.NoError(t, err)
	defer index.Close()
	ctx := context.Background()

	a := testAtom(1, "Tide pools", "image", "ocean", "macro")
	a.CreatorName = ptr("Ansel Adams")
	require.NoError(t, index.IndexAtoms(ctx, []domain.Atom{a, testAtom(2, "Waves", "video", "ocean")}))

	params := DefaultParams()
	res, err := index.Search(ctx, params)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), res.Total)
	assert.ElementsMatch(t, []FacetCount{{Value: "ocean", Count: 2}, {Value: "macro", Count: 1}}, res.Facets.Tags)
	assert.ElementsMatch(t, []FacetCount{{Value: "image", Count: 1}, {Value: "video", Count: 1}}, res.Facets.ContentTypes)

	params.Query = "tide"
	res, err = index.Search(ctx, params)
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	hit := res.Hits[0]
	assert.Equal(t, "Tide pools", hit.Title)
	assert.Equal(t, "image", hit.ContentType)
	assert.Equal(t, []string{"Ansel Adams"}, hit.Creators)
	assert.ElementsMatch(t, []string{"ocean", "macro"}, hit.Tags)
}

func TestIndex_Reindex(t *testing.T) {
	index := setupTestIndex(t)
	ctx := context.Background()

	require.NoError(t, index.IndexAtom(ctx, testAtom(1, "Stale", "note")))
	require.NoError(t, index.Reindex(ctx, []domain.Atom{testAtom(2, "Fresh", "note"), testAtom(3, "Also fresh", "note")}))

	count, err := index.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)

	res, err := index.Search(ctx, Params{Query: "stale"})
	require.NoError(t, err)
	assert.Empty(t, res.Hits)
}

func TestNewDocument(t *testing.T) {
	a := testAtom(42, "Notes", "note", "Art ", "art", "Ideas")
	a.Description = ptr("plain <3 text")
	a.CreatorName = ptr(" Ansel Adams ,, Dorothea Lange")

	doc := NewDocument(a)
	assert.Equal(t, "42", doc.ID)
	assert.Equal(t, []string{"art", "ideas"}, doc.Tags)
	assert.Equal(t, "plain <3 text", doc.Description)
	assert.Equal(t, []string{"Ansel Adams", "Dorothea Lange"}, doc.Creators)
	assert.Equal(t, a.CreatedAt.UnixMilli(), doc.CreatedAt)
}
