package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func ptr[T any](v T) *T { return &v }

func TestAtomPatch_Apply(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	a := Atom{ID: 1, Title: "old", ContentType: ContentImage, Tags: []string{"art"}}

	AtomPatch{
		Title:           ptr("new"),
		Tags:            &[]string{},
		FlagForDeletion: ptr(true),
		UpdatedAt:       &now,
	}.Apply(&a)

	assert.Equal(t, "new", a.Title)
	assert.Equal(t, ContentImage, a.ContentType, "absent field untouched")
	assert.Empty(t, a.Tags)
	assert.True(t, a.FlagForDeletion)
	assert.Equal(t, now, a.UpdatedAt)
}

func TestAtomPatch_IsEmpty(t *testing.T) {
	assert.True(t, AtomPatch{}.IsEmpty())
	assert.False(t, AtomPatch{Hidden: ptr(false)}.IsEmpty())
}

func TestAtom_CloneIsDeep(t *testing.T) {
	a := Atom{Tags: []string{"art"}, Metadata: map[string]any{"lat": 1.5}}
	c := a.Clone()
	c.Tags[0] = "changed"
	c.Metadata["lat"] = 2.0

	assert.Equal(t, "art", a.Tags[0])
	assert.Equal(t, 1.5, a.Metadata["lat"])
}

func TestIsPseudoTag(t *testing.T) {
	assert.True(t, IsPseudoTag("flagged"))
	assert.True(t, IsPseudoTag("no-tag"))
	assert.False(t, IsPseudoTag("art"))
}
