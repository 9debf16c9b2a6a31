package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignature_IsCanonical(t *testing.T) {
	a := Signature(Predicates{Search: " Cat ", SelectedTags: []string{"B", "a", "a"}, ContentTypes: []string{"video", "image"}})
	b := Signature(Predicates{Search: "cat", SelectedTags: []string{"a", "b"}, ContentTypes: []string{"image", "video"}})
	assert.Equal(t, a, b)

	c := Signature(Predicates{Search: "cat", SelectedTags: []string{"a"}})
	assert.NotEqual(t, a, c)

	assert.NotEqual(t, Signature(Predicates{}), Signature(Predicates{IdeaID: idPtr(4)}))
}

func TestPager(t *testing.T) {
	p := NewPager(2)
	items := []int{1, 2, 3, 4, 5}

	assert.True(t, p.Sync("sig-a"))
	page := Slice(p, items)
	assert.Equal(t, []int{1, 2}, page.Items)
	assert.True(t, page.HasMore)
	assert.Equal(t, 5, page.Total)

	assert.Equal(t, 4, p.More())
	assert.False(t, p.Sync("sig-a"), "same signature keeps the reveal count")
	assert.Equal(t, []int{1, 2, 3, 4}, Slice(p, items).Items)

	assert.Equal(t, 6, p.More())
	page = Slice(p, items)
	assert.Equal(t, items, page.Items)
	assert.False(t, page.HasMore)

	assert.True(t, p.Sync("sig-b"))
	assert.Equal(t, 2, p.Revealed())
}

func TestNewPager_DefaultsPageSize(t *testing.T) {
	p := NewPager(0)
	assert.Equal(t, DefaultPageSize, p.PageSize())
	assert.Equal(t, DefaultPageSize, p.Revealed())
}
