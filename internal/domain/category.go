package domain

import "time"

// Category groups tags. Private categories hide their atoms from the gallery
// until one of their tags is selected explicitly.
type Category struct {
	ID          int64     `json:"id,omitempty"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	IsPrivate   bool      `json:"is_private"`
	CreatedAt   time.Time `json:"created_at"`
}

// CategoryPatch is a partial category update.
type CategoryPatch struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	IsPrivate   *bool   `json:"is_private,omitempty"`
}

// Apply copies every present field onto c.
func (p CategoryPatch) Apply(c *Category) {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Description != nil {
		c.Description = p.Description
	}
	if p.IsPrivate != nil {
		c.IsPrivate = *p.IsPrivate
	}
}
