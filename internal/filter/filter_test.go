package filter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/atomshelf/atomshelf-server/internal/domain"
)

func strPtr(s string) *string { return &s }
func idPtr(id int64) *int64   { return &id }

func atom(id int64, contentType string, tags ...string) domain.Atom {
	return domain.Atom{
		ID:          id,
		Title:       "atom",
		ContentType: contentType,
		Tags:        tags,
		CreatedAt:   time.Date(2026, 1, 1, 0, 0, int(100-id), 0, time.UTC),
	}
}

func resultIDs(r Result) []int64 {
	out := make([]int64, len(r.Atoms))
	for i, a := range r.Atoms {
		out[i] = a.ID
	}
	return out
}

func TestApply_SelectedTagMatchesNormalizedAtomTags(t *testing.T) {
	atoms := []domain.Atom{atom(1, "image", "Art"), atom(2, "image", "art ")}

	got := Apply(atoms, Predicates{SelectedTags: []string{"art"}}, Metadata{})

	assert.Equal(t, []int64{1, 2}, resultIDs(got))
}

func TestApply_IsPure(t *testing.T) {
	atoms := []domain.Atom{atom(3, "image", "a"), atom(2, "note", "b"), atom(1, "image", "a", "b")}
	p := Predicates{ContentTypes: []string{"image"}, SelectedTags: []string{"a"}}

	first := Apply(atoms, p, Metadata{})
	second := Apply(atoms, p, Metadata{})

	assert.Equal(t, resultIDs(first), resultIDs(second))
	assert.Equal(t, []int64{3, 1}, resultIDs(first))
}

func TestApply_DropsDuplicateIDs(t *testing.T) {
	atoms := []domain.Atom{atom(1, "image"), atom(1, "image"), atom(2, "image")}
	assert.Equal(t, []int64{1, 2}, resultIDs(Apply(atoms, Predicates{}, Metadata{})))
}

func TestApply_Search(t *testing.T) {
	withDesc := atom(2, "note")
	withDesc.Description = strPtr("A <b>Sunset</b> over water")
	titled := atom(3, "note")
	titled.Title = "Mountain SUNSET"

	atoms := []domain.Atom{atom(1, "image", "sunsets"), withDesc, titled, atom(4, "image", "dawn")}

	tests := []struct {
		name   string
		search string
		want   []int64
	}{
		{"empty matches all", "  ", []int64{1, 2, 3, 4}},
		{"case-insensitive across fields", "SunSet", []int64{1, 2, 3}},
		{"tag substring", "daw", []int64{4}},
		{"no match", "forest", []int64{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Apply(atoms, Predicates{Search: tt.search}, Metadata{})
			assert.Equal(t, tt.want, resultIDs(got))
		})
	}
}

func TestApply_Creators(t *testing.T) {
	a1 := atom(1, "image")
	a1.CreatorName = strPtr("Ansel Adams, Dorothea Lange")
	a2 := atom(2, "image")
	a2.CreatorName = strPtr("Dorothea Lange")
	a3 := atom(3, "image")
	atoms := []domain.Atom{a1, a2, a3}

	got := Apply(atoms, Predicates{Creators: []string{" Ansel Adams "}}, Metadata{})
	assert.Equal(t, []int64{1}, resultIDs(got))

	got = Apply(atoms, Predicates{FavoritesOnly: true}, Metadata{FavoriteCreators: []string{"Dorothea Lange"}})
	assert.Equal(t, []int64{1, 2}, resultIDs(got))

	got = Apply(atoms, Predicates{FavoritesOnly: true}, Metadata{})
	assert.Empty(t, resultIDs(got))
}

func privacyMetadata() Metadata {
	return Metadata{
		Categories: []domain.Category{
			{ID: 1, Name: "Secret", IsPrivate: true},
			{ID: 2, Name: "Public"},
		},
		Tags: []domain.Tag{
			{ID: 10, Name: "diary"},
			{ID: 11, Name: "travel"},
			{ID: 12, Name: "draft", IsPrivate: true},
		},
		CategoryTags: []domain.CategoryTag{
			{CategoryID: 1, TagID: 10},
			{CategoryID: 2, TagID: 11},
		},
	}
}

func TestApply_PrivacyExclusionAndWaiver(t *testing.T) {
	atoms := []domain.Atom{
		atom(1, "note", "diary"),
		atom(2, "note", "travel"),
		atom(3, "note", "diary", "travel"),
		atom(4, "note", "draft"),
	}
	m := privacyMetadata()

	got := Apply(atoms, Predicates{}, m)
	assert.Equal(t, []int64{2}, resultIDs(got))

	got = Apply(atoms, Predicates{SelectedTags: []string{"travel"}}, m)
	assert.Equal(t, []int64{2}, resultIDs(got), "selecting a public tag does not reveal private atoms")

	got = Apply(atoms, Predicates{SelectedTags: []string{"diary"}}, m)
	assert.Equal(t, []int64{1, 3}, resultIDs(got), "selecting a private tag reveals its atoms")
}

func TestApply_DefaultCategoryScoping(t *testing.T) {
	m := Metadata{
		Tags:              []domain.Tag{{ID: 1, Name: "t"}, {ID: 2, Name: "u"}},
		CategoryTags:      []domain.CategoryTag{{CategoryID: 7, TagID: 1}},
		Categories:        []domain.Category{{ID: 7, Name: "C"}},
		DefaultCategoryID: idPtr(7),
	}
	x := atom(1, "image", "t")
	y := atom(2, "image", "u")
	atoms := []domain.Atom{x, y}

	got := Apply(atoms, Predicates{}, m)
	assert.Equal(t, []int64{1}, resultIDs(got))

	got = Apply(atoms, Predicates{SelectedTags: []string{"u"}}, m)
	assert.Equal(t, []int64{2}, resultIDs(got), "scoping is waived once a tag is selected")

	got = Apply(atoms, Predicates{SelectedTags: []string{"no-tag"}}, m)
	assert.Empty(t, resultIDs(got))
}

func TestApply_PseudoTags(t *testing.T) {
	flagged := atom(1, "image", "art")
	flagged.FlagForDeletion = true
	untagged := atom(2, "image")
	plain := atom(3, "image", "art")
	atoms := []domain.Atom{flagged, untagged, plain}

	tests := []struct {
		name     string
		selected []string
		want     []int64
	}{
		{"flagged", []string{"flagged"}, []int64{1}},
		{"flagged with real tag", []string{"Flagged", "art"}, []int64{1}},
		{"no-tag", []string{"no-tag"}, []int64{2}},
		{"no-tag with real tag", []string{"no-tag", "art"}, []int64{}},
		{"real tag only", []string{"art"}, []int64{1, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Apply(atoms, Predicates{SelectedTags: tt.selected}, Metadata{})
			assert.Equal(t, tt.want, resultIDs(got))
		})
	}
}

func TestApply_RealTagsAreConjunctive(t *testing.T) {
	atoms := []domain.Atom{atom(1, "image", "a"), atom(2, "image", "a", "b"), atom(3, "image", "b")}
	got := Apply(atoms, Predicates{SelectedTags: []string{"b", "a"}}, Metadata{})
	assert.Equal(t, []int64{2}, resultIDs(got))
}

func TestApply_IdeaScope(t *testing.T) {
	hiddenChild := atom(2, "image")
	hiddenChild.Hidden = true
	atoms := []domain.Atom{atom(1, "idea"), hiddenChild, atom(3, "image")}
	p := Predicates{IdeaID: idPtr(1), HideHidden: true}

	pending := Apply(atoms, p, Metadata{})
	assert.True(t, pending.IdeaPending)
	assert.Equal(t, []int64{1, 2, 3}, resultIDs(pending), "idea predicate is skipped until children load")

	loaded := Apply(atoms, p, Metadata{IdeaChildren: IdeaChildren{IDs: []int64{2}, Loaded: true}})
	assert.False(t, loaded.IdeaPending)
	assert.Equal(t, []int64{2}, resultIDs(loaded), "hidden children show inside their idea")

	outside := Apply(atoms, Predicates{HideHidden: true}, Metadata{})
	assert.Equal(t, []int64{1, 3}, resultIDs(outside))
}

func TestApply_ContentTypes(t *testing.T) {
	atoms := []domain.Atom{atom(1, "image"), atom(2, "video"), atom(3, "recipe")}
	got := Apply(atoms, Predicates{ContentTypes: []string{"video", "recipe"}}, Metadata{})
	assert.Equal(t, []int64{2, 3}, resultIDs(got))
}

func TestPrivacy_Hides(t *testing.T) {
	p := NewPrivacy(privacyMetadata())

	assert.True(t, p.Hides(atom(1, "note", "Diary"), nil))
	assert.True(t, p.Hides(atom(2, "note", "draft"), []string{"travel"}))
	assert.False(t, p.Hides(atom(3, "note", "travel"), nil))
	assert.False(t, p.Hides(atom(4, "note", "diary"), []string{"DRAFT"}))
}
