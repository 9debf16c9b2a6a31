package domain

import "time"

// Reserved filter tokens. They take part in tag selection but never exist as tag rows.
const (
	PseudoTagFlagged = "flagged"
	PseudoTagNoTag   = "no-tag"
)

// IsPseudoTag reports whether name is one of the reserved filter tokens.
func IsPseudoTag(name string) bool {
	return name == PseudoTagFlagged || name == PseudoTagNoTag
}

// Tag is a canonical label. Name is always normalized.
// CategoryID is the legacy single-parent link; category membership
// is read from CategoryTag rows.
type Tag struct {
	ID         int64     `json:"id,omitempty"`
	Name       string    `json:"name"`
	Count      int       `json:"count"`
	IsPrivate  bool      `json:"is_private"`
	CategoryID *int64    `json:"category_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// TagPatch is a partial tag update.
type TagPatch struct {
	Name       *string `json:"name,omitempty"`
	Count      *int    `json:"count,omitempty"`
	IsPrivate  *bool   `json:"is_private,omitempty"`
	CategoryID *int64  `json:"category_id,omitempty"`
}

// Apply copies every present field onto t.
func (p TagPatch) Apply(t *Tag) {
	if p.Name != nil {
		t.Name = *p.Name
	}
	if p.Count != nil {
		t.Count = *p.Count
	}
	if p.IsPrivate != nil {
		t.IsPrivate = *p.IsPrivate
	}
	if p.CategoryID != nil {
		t.CategoryID = p.CategoryID
	}
}

// CategoryTag places a tag in a category. Duplicate pairs are tolerated.
type CategoryTag struct {
	ID         int64 `json:"id,omitempty"`
	CategoryID int64 `json:"category_id"`
	TagID      int64 `json:"tag_id"`
}

// CreatorTag associates a tag with a creator.
type CreatorTag struct {
	ID        int64 `json:"id,omitempty"`
	CreatorID int64 `json:"creator_id"`
	TagID     int64 `json:"tag_id"`
}
