// Package domain contains the catalog entities shared by the store, filter and API layers.
package domain

import "time"

// Well-known content types. The set is open: any string is accepted.
const (
	ContentImage    = "image"
	ContentVideo    = "video"
	ContentLink     = "link"
	ContentIdea     = "idea"
	ContentNote     = "note"
	ContentRecipe   = "recipe"
	ContentLocation = "location"
	ContentAudio    = "audio"
	ContentText     = "text"
)

// Atom is a single cataloged item.
// Tags holds canonical tag names; it is an ordered set.
type Atom struct {
	ID              int64          `json:"id,omitempty"`
	Title           string         `json:"title"`
	Description     *string        `json:"description,omitempty"`
	ContentType     string         `json:"content_type"`
	MediaSourceLink *string        `json:"media_source_link,omitempty"`
	Link            *string        `json:"link,omitempty"`
	CreatorName     *string        `json:"creator_name,omitempty"`
	Tags            []string       `json:"tags"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	FlagForDeletion bool           `json:"flag_for_deletion"`
	Hidden          bool           `json:"hidden"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// IsIdea reports whether the atom groups child atoms.
func (a *Atom) IsIdea() bool {
	return a.ContentType == ContentIdea
}

// HasTag reports whether the atom carries the canonical tag name.
func (a *Atom) HasTag(name string) bool {
	for _, t := range a.Tags {
		if t == name {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the slice and map fields.
func (a Atom) Clone() Atom {
	a.Tags = append([]string(nil), a.Tags...)
	if a.Metadata != nil {
		m := make(map[string]any, len(a.Metadata))
		for k, v := range a.Metadata {
			m[k] = v
		}
		a.Metadata = m
	}
	return a
}

// AtomPatch is a partial atom update. Nil fields are absent.
// Tags uses a pointer so that an explicit empty set can be written.
type AtomPatch struct {
	Title           *string        `json:"title,omitempty"`
	Description     *string        `json:"description,omitempty"`
	ContentType     *string        `json:"content_type,omitempty"`
	MediaSourceLink *string        `json:"media_source_link,omitempty"`
	Link            *string        `json:"link,omitempty"`
	CreatorName     *string        `json:"creator_name,omitempty"`
	Tags            *[]string      `json:"tags,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	FlagForDeletion *bool          `json:"flag_for_deletion,omitempty"`
	Hidden          *bool          `json:"hidden,omitempty"`
	UpdatedAt       *time.Time     `json:"updated_at,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p AtomPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.ContentType == nil &&
		p.MediaSourceLink == nil && p.Link == nil && p.CreatorName == nil &&
		p.Tags == nil && p.Metadata == nil && p.FlagForDeletion == nil &&
		p.Hidden == nil && p.UpdatedAt == nil
}

// Apply copies every present field onto a.
func (p AtomPatch) Apply(a *Atom) {
	if p.Title != nil {
		a.Title = *p.Title
	}
	if p.Description != nil {
		a.Description = p.Description
	}
	if p.ContentType != nil {
		a.ContentType = *p.ContentType
	}
	if p.MediaSourceLink != nil {
		a.MediaSourceLink = p.MediaSourceLink
	}
	if p.Link != nil {
		a.Link = p.Link
	}
	if p.CreatorName != nil {
		a.CreatorName = p.CreatorName
	}
	if p.Tags != nil {
		a.Tags = append([]string(nil), (*p.Tags)...)
	}
	if p.Metadata != nil {
		a.Metadata = p.Metadata
	}
	if p.FlagForDeletion != nil {
		a.FlagForDeletion = *p.FlagForDeletion
	}
	if p.Hidden != nil {
		a.Hidden = *p.Hidden
	}
	if p.UpdatedAt != nil {
		a.UpdatedAt = *p.UpdatedAt
	}
}

// AtomRelationship links an idea atom to one of its children.
type AtomRelationship struct {
	ID           int64     `json:"id,omitempty"`
	ParentAtomID int64     `json:"parent_atom_id"`
	ChildAtomID  int64     `json:"child_atom_id"`
	CreatedAt    time.Time `json:"created_at"`
}
