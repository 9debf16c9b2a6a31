// Package sse implements Server-Sent Events for live catalog updates.
package sse

import (
	"time"

	"github.com/atomshelf/atomshelf-server/internal/domain"
)

// EventType represents the type of SSE Event.
type EventType string

const (
	// EventAtomCreated is emitted after an atom insert is confirmed.
	EventAtomCreated EventType = "atom.created"
	// EventAtomUpdated is emitted after an atom patch is confirmed.
	EventAtomUpdated EventType = "atom.updated"
	// EventAtomDeleted is emitted after an atom delete is confirmed.
	EventAtomDeleted EventType = "atom.deleted"

	EventTagCreated EventType = "tag.created"
	EventTagUpdated EventType = "tag.updated"
	EventTagDeleted EventType = "tag.deleted"

	EventCategoryCreated EventType = "category.created"
	EventCategoryUpdated EventType = "category.updated"
	EventCategoryDeleted EventType = "category.deleted"

	EventCreatorCreated EventType = "creator.created"
	EventCreatorUpdated EventType = "creator.updated"
	EventCreatorDeleted EventType = "creator.deleted"

	// EventMerged is emitted when a duplicate tag, category or creator
	// has been folded into its survivor.
	EventMerged EventType = "taxonomy.merged"

	// EventLinksChanged is emitted when a join table (category tags,
	// creator tags, creator atoms, idea children) changes.
	EventLinksChanged EventType = "links.changed"

	// EventSettingsUpdated is emitted when a persisted preference changes.
	EventSettingsUpdated EventType = "settings.updated"

	// EventHeartbeat represents a connection keepalive event.
	EventHeartbeat EventType = "heartbeat"
)

// Event is one message on the stream.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Type      EventType `json:"type"`
}

// AtomEventData is the payload of atom.created and atom.updated.
type AtomEventData struct {
	Atom domain.Atom `json:"atom"`
}

// DeletedEventData is the payload of every *.deleted event.
type DeletedEventData struct {
	ID int64 `json:"id"`
}

// TagEventData is the payload of tag.created and tag.updated.
type TagEventData struct {
	Tag domain.Tag `json:"tag"`
}

// CategoryEventData is the payload of category.created and category.updated.
type CategoryEventData struct {
	Category domain.Category `json:"category"`
}

// CreatorEventData is the payload of creator.created and creator.updated.
type CreatorEventData struct {
	Creator domain.Creator `json:"creator"`
}

// MergedEventData is the payload of taxonomy.merged.
type MergedEventData struct {
	Kind     string `json:"kind"` // tag, category or creator
	SourceID int64  `json:"source_id"`
	TargetID int64  `json:"target_id"`
}

// LinksEventData is the payload of links.changed.
type LinksEventData struct {
	Table string `json:"table"`
}

// SettingsEventData is the payload of settings.updated.
type SettingsEventData struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// HeartbeatEventData is the payload of a heartbeat.
type HeartbeatEventData struct {
	ServerTime time.Time `json:"server_time"`
}

func newEvent(t EventType, data any) Event {
	return Event{Type: t, Data: data, Timestamp: time.Now()}
}

// NewAtomCreatedEvent creates an atom.created event.
func NewAtomCreatedEvent(a domain.Atom) Event {
	return newEvent(EventAtomCreated, AtomEventData{Atom: a})
}

// NewAtomUpdatedEvent creates an atom.updated event.
func NewAtomUpdatedEvent(a domain.Atom) Event {
	return newEvent(EventAtomUpdated, AtomEventData{Atom: a})
}

// NewAtomDeletedEvent creates an atom.deleted event.
func NewAtomDeletedEvent(id int64) Event {
	return newEvent(EventAtomDeleted, DeletedEventData{ID: id})
}

// NewTagCreatedEvent creates a tag.created event.
func NewTagCreatedEvent(t domain.Tag) Event {
	return newEvent(EventTagCreated, TagEventData{Tag: t})
}

// NewTagUpdatedEvent creates a tag.updated event.
func NewTagUpdatedEvent(t domain.Tag) Event {
	return newEvent(EventTagUpdated, TagEventData{Tag: t})
}

// NewTagDeletedEvent creates a tag.deleted event.
func NewTagDeletedEvent(id int64) Event {
	return newEvent(EventTagDeleted, DeletedEventData{ID: id})
}

// NewCategoryCreatedEvent creates a category.created event.
func NewCategoryCreatedEvent(c domain.Category) Event {
	return newEvent(EventCategoryCreated, CategoryEventData{Category: c})
}

// NewCategoryUpdatedEvent creates a category.updated event.
func NewCategoryUpdatedEvent(c domain.Category) Event {
	return newEvent(EventCategoryUpdated, CategoryEventData{Category: c})
}

// NewCategoryDeletedEvent creates a category.deleted event.
func NewCategoryDeletedEvent(id int64) Event {
	return newEvent(EventCategoryDeleted, DeletedEventData{ID: id})
}

// NewCreatorCreatedEvent creates a creator.created event.
func NewCreatorCreatedEvent(c domain.Creator) Event {
	return newEvent(EventCreatorCreated, CreatorEventData{Creator: c})
}

// NewCreatorUpdatedEvent creates a creator.updated event.
func NewCreatorUpdatedEvent(c domain.Creator) Event {
	return newEvent(EventCreatorUpdated, CreatorEventData{Creator: c})
}

// NewCreatorDeletedEvent creates a creator.deleted event.
func NewCreatorDeletedEvent(id int64) Event {
	return newEvent(EventCreatorDeleted, DeletedEventData{ID: id})
}

// NewMergedEvent creates a taxonomy.merged event.
func NewMergedEvent(kind string, sourceID, targetID int64) Event {
	return newEvent(EventMerged, MergedEventData{Kind: kind, SourceID: sourceID, TargetID: targetID})
}

// NewLinksChangedEvent creates a links.changed event for a join table.
func NewLinksChangedEvent(table string) Event {
	return newEvent(EventLinksChanged, LinksEventData{Table: table})
}

// NewSettingsUpdatedEvent creates a settings.updated event.
func NewSettingsUpdatedEvent(key string, value any) Event {
	return newEvent(EventSettingsUpdated, SettingsEventData{Key: key, Value: value})
}

// NewHeartbeatEvent creates a heartbeat event.
func NewHeartbeatEvent() Event {
	return newEvent(EventHeartbeat, HeartbeatEventData{ServerTime: time.Now()})
}
