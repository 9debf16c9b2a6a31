package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atomshelf/atomshelf-server/internal/store"
	"github.com/atomshelf/atomshelf-server/internal/store/storetest"
)

// newTestClient creates a Client backed by a temporary database file.
func newTestClient(t *testing.T) *Client {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	return c
}

func TestContract(t *testing.T) {
	storetest.RunContract(t, func(t *testing.T) store.Client {
		return newTestClient(t)
	})
}

func TestOpen_IsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	c, err := Open(path, nil)
	require.NoError(t, err)
	_, err = c.Insert(context.Background(), store.TableCategories, store.Row{"name": "Design", "is_private": false})
	require.NoError(t, err)
	require.NoError(t, c.Close())

	c, err = Open(path, nil)
	require.NoError(t, err)
	defer c.Close()

	rows, err := c.Select(context.Background(), store.TableCategories, store.Query{})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestSelfRelationshipRejected(t *testing.T) {
	c := newTestClient(t)
	defer c.Close()

	_, err := c.Insert(context.Background(), store.TableAtomRelationships,
		store.Row{"parent_atom_id": int64(4), "child_atom_id": int64(4)})
	assert.ErrorIs(t, err, store.ErrInvalidInput)
}

func TestUnknownColumnRejected(t *testing.T) {
	c := newTestClient(t)
	defer c.Close()

	_, err := c.Select(context.Background(), store.TableAtoms, store.Query{
		Filters: []store.Filter{store.Eq("title; DROP TABLE atoms", "x")},
	})
	assert.ErrorIs(t, err, store.ErrInvalidInput)
}

func TestUpsertSuffix(t *testing.T) {
	assert.Equal(t, "ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		upsertSuffix([]string{"key", "value"}, []string{"key"}))
	assert.Equal(t, "ON CONFLICT(key) DO NOTHING",
		upsertSuffix([]string{"key"}, []string{"key"}))
}
