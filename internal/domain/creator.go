package domain

import "time"

// Creator is an attributed author or source.
type Creator struct {
	ID         int64     `json:"id,omitempty"`
	Name       string    `json:"name"`
	Count      int       `json:"count"`
	Link1      *string   `json:"link_1,omitempty"`
	Link2      *string   `json:"link_2,omitempty"`
	Link3      *string   `json:"link_3,omitempty"`
	IsFavorite bool      `json:"is_favorite"`
	CreatedAt  time.Time `json:"created_at"`
}

// CreatorPatch is a partial creator update.
type CreatorPatch struct {
	Name       *string `json:"name,omitempty"`
	Count      *int    `json:"count,omitempty"`
	Link1      *string `json:"link_1,omitempty"`
	Link2      *string `json:"link_2,omitempty"`
	Link3      *string `json:"link_3,omitempty"`
	IsFavorite *bool   `json:"is_favorite,omitempty"`
}

// Apply copies every present field onto c.
func (p CreatorPatch) Apply(c *Creator) {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Count != nil {
		c.Count = *p.Count
	}
	if p.Link1 != nil {
		c.Link1 = p.Link1
	}
	if p.Link2 != nil {
		c.Link2 = p.Link2
	}
	if p.Link3 != nil {
		c.Link3 = p.Link3
	}
	if p.IsFavorite != nil {
		c.IsFavorite = *p.IsFavorite
	}
}

// CreatorAtom links a creator to an atom.
type CreatorAtom struct {
	ID        int64 `json:"id,omitempty"`
	CreatorID int64 `json:"creator_id"`
	AtomID    int64 `json:"atom_id"`
}
