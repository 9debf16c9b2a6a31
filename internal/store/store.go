// Package store defines the generic relational client the collection store talks to.
//
// The client knows nothing about atoms or tags: it moves Rows in and out of
// named tables. Adapters live in the sqlite, kv and rest subpackages; all of
// them honor the same contract so the collection store can run against any.
package store

import (
	"context"
)

// Table names a remote collection.
type Table string

// Tables backing the catalog.
const (
	TableAtoms             Table = "atoms"
	TableTags              Table = "tags"
	TableCategories        Table = "categories"
	TableCreators          Table = "creators"
	TableCategoryTags      Table = "category_tags"
	TableCreatorTags       Table = "creator_tags"
	TableCreatorAtoms      Table = "creator_atoms"
	TableAtomRelationships Table = "atom_relationships"
	TableSettings          Table = "settings"
)

// Row is one record keyed by column name. Values are JSON-shaped:
// int64, float64, string, bool, nil, []any or map[string]any.
type Row map[string]any

// Order is the single ordering parameter a select accepts.
type Order struct {
	Column string
	Desc   bool
}

// Query describes a select. Empty Columns selects every column.
type Query struct {
	Columns []string
	Filters []Filter
	Order   *Order
	Limit   int
}

// Client performs CRUD requests against the remote tables.
//
// Insert returns the stored rows including server-assigned ids.
// Update and Delete with no filters are rejected with ErrInvalidInput so that
// a missing filter never touches a whole table.
// Upsert inserts row or, when a row with the same conflictKey values exists,
// overwrites it.
type Client interface {
	Select(ctx context.Context, table Table, q Query) ([]Row, error)
	Insert(ctx context.Context, table Table, rows ...Row) ([]Row, error)
	Update(ctx context.Context, table Table, patch Row, filters ...Filter) error
	Delete(ctx context.Context, table Table, filters ...Filter) error
	Upsert(ctx context.Context, table Table, row Row, conflictKey ...string) error
	Ping(ctx context.Context) error
	Close() error
}
