package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atomshelf/atomshelf-server/internal/store"
)

// RunContract exercises the behavior every store.Client adapter must share.
// open must return a fresh, empty client; RunContract closes it.
func RunContract(t *testing.T, open func(t *testing.T) store.Client) {
	t.Helper()

	fresh := func(t *testing.T) (store.Client, context.Context) {
		t.Helper()
		c := open(t)
		t.Cleanup(func() { _ = c.Close() })
		return c, context.Background()
	}

	t.Run("insert assigns ids and returns rows", func(t *testing.T) {
		c, ctx := fresh(t)

		rows, err := c.Insert(ctx, store.TableTags,
			store.Row{"name": "art", "count": int64(0), "is_private": false, "created_at": stamp(0)},
			store.Row{"name": "photo", "count": int64(2), "is_private": true, "created_at": stamp(1)},
		)
		require.NoError(t, err)
		require.Len(t, rows, 2)

		assert.NotZero(t, rows[0]["id"])
		assert.NotEqual(t, rows[0]["id"], rows[1]["id"])
		assert.Equal(t, "photo", rows[1]["name"])
		assert.Equal(t, true, rows[1]["is_private"])
	})

	t.Run("select orders and filters", func(t *testing.T) {
		c, ctx := fresh(t)
		seedAtoms(t, c)

		rows, err := c.Select(ctx, store.TableAtoms, store.Query{
			Order: &store.Order{Column: "created_at", Desc: true},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"third", "second", "first"}, titles(rows))

		rows, err = c.Select(ctx, store.TableAtoms, store.Query{
			Filters: []store.Filter{store.Contains("tags", "art")},
			Order:   &store.Order{Column: "created_at"},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"first", "third"}, titles(rows))

		rows, err = c.Select(ctx, store.TableAtoms, store.Query{
			Filters: []store.Filter{store.In("content_type", "image", "link")},
			Order:   &store.Order{Column: "created_at"},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"first", "second"}, titles(rows))

		rows, err = c.Select(ctx, store.TableAtoms, store.Query{
			Filters: []store.Filter{store.Eq("flag_for_deletion", true)},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"second"}, titles(rows))
	})

	t.Run("select round-trips json columns", func(t *testing.T) {
		c, ctx := fresh(t)
		_, err := c.Insert(ctx, store.TableAtoms, store.Row{
			"title": "recipe", "content_type": "recipe", "tags": []any{"food"},
			"metadata":  map[string]any{"steps": []any{"mix", "bake"}, "serves": int64(4)},
			"hidden":    false, "flag_for_deletion": false,
			"created_at": stamp(0), "updated_at": stamp(0),
		})
		require.NoError(t, err)

		rows, err := c.Select(ctx, store.TableAtoms, store.Query{})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, []any{"food"}, rows[0]["tags"])
		meta, ok := rows[0]["metadata"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, []any{"mix", "bake"}, meta["steps"])
		assert.Equal(t, int64(4), meta["serves"])
	})

	t.Run("select projects columns", func(t *testing.T) {
		c, ctx := fresh(t)
		seedAtoms(t, c)

		rows, err := c.Select(ctx, store.TableAtoms, store.Query{Columns: []string{"id", "title"}, Limit: 2})
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Len(t, rows[0], 2)
	})

	t.Run("update patches matching rows only", func(t *testing.T) {
		c, ctx := fresh(t)
		ids := seedAtoms(t, c)

		err := c.Update(ctx, store.TableAtoms, store.Row{"title": "renamed", "tags": []any{"x"}}, store.Eq("id", ids[0]))
		require.NoError(t, err)

		rows, err := c.Select(ctx, store.TableAtoms, store.Query{Filters: []store.Filter{store.Eq("id", ids[0])}})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "renamed", rows[0]["title"])
		assert.Equal(t, []any{"x"}, rows[0]["tags"])

		rows, err = c.Select(ctx, store.TableAtoms, store.Query{Filters: []store.Filter{store.Eq("title", "renamed")}})
		require.NoError(t, err)
		assert.Len(t, rows, 1)
	})

	t.Run("update and delete require a filter", func(t *testing.T) {
		c, ctx := fresh(t)
		assert.ErrorIs(t, c.Update(ctx, store.TableAtoms, store.Row{"title": "x"}), store.ErrInvalidInput)
		assert.ErrorIs(t, c.Delete(ctx, store.TableAtoms), store.ErrInvalidInput)
	})

	t.Run("delete removes matching rows", func(t *testing.T) {
		c, ctx := fresh(t)
		ids := seedAtoms(t, c)

		require.NoError(t, c.Delete(ctx, store.TableAtoms, store.In("id", ids[0], ids[2])))

		rows, err := c.Select(ctx, store.TableAtoms, store.Query{})
		require.NoError(t, err)
		assert.Equal(t, []string{"second"}, titles(rows))
	})

	t.Run("unique tag names conflict", func(t *testing.T) {
		c, ctx := fresh(t)
		_, err := c.Insert(ctx, store.TableTags, store.Row{"name": "art", "count": int64(0), "is_private": false, "created_at": stamp(0)})
		require.NoError(t, err)

		_, err = c.Insert(ctx, store.TableTags, store.Row{"name": "art", "count": int64(0), "is_private": false, "created_at": stamp(1)})
		assert.ErrorIs(t, err, store.ErrConflict)
	})

	t.Run("relationship pairs are unique", func(t *testing.T) {
		c, ctx := fresh(t)
		row := store.Row{"parent_atom_id": int64(10), "child_atom_id": int64(11), "created_at": stamp(0)}
		_, err := c.Insert(ctx, store.TableAtomRelationships, row)
		require.NoError(t, err)

		_, err = c.Insert(ctx, store.TableAtomRelationships, store.Row{"parent_atom_id": int64(10), "child_atom_id": int64(11), "created_at": stamp(1)})
		assert.ErrorIs(t, err, store.ErrConflict)
	})

	t.Run("upsert overwrites on conflict key", func(t *testing.T) {
		c, ctx := fresh(t)

		require.NoError(t, c.Upsert(ctx, store.TableSettings,
			store.Row{"key": "default_category", "value": map[string]any{"categoryId": int64(3)}}, "key"))
		require.NoError(t, c.Upsert(ctx, store.TableSettings,
			store.Row{"key": "default_category", "value": map[string]any{"categoryId": int64(5)}}, "key"))

		rows, err := c.Select(ctx, store.TableSettings, store.Query{Filters: []store.Filter{store.Eq("key", "default_category")}})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, map[string]any{"categoryId": int64(5)}, rows[0]["value"])
	})

	t.Run("ping", func(t *testing.T) {
		c, ctx := fresh(t)
		assert.NoError(t, c.Ping(ctx))
	})
}

// seedAtoms inserts three atoms with increasing created_at and returns their ids.
func seedAtoms(t *testing.T, c store.Client) []int64 {
	t.Helper()
	rows, err := c.Insert(context.Background(), store.TableAtoms,
		atomRow("first", "image", []any{"art"}, false, stamp(0)),
		atomRow("second", "link", []any{"news"}, true, stamp(1)),
		atomRow("third", "note", []any{"art", "ideas"}, false, stamp(2)),
	)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	ids := make([]int64, len(rows))
	for i, r := range rows {
		id, ok := r["id"].(int64)
		require.True(t, ok, "id should be int64, got %T", r["id"])
		ids[i] = id
	}
	return ids
}

func atomRow(title, contentType string, tags []any, flagged bool, at string) store.Row {
	return store.Row{
		"title": title, "content_type": contentType, "tags": tags,
		"flag_for_deletion": flagged, "hidden": false,
		"created_at": at, "updated_at": at,
	}
}

func stamp(offset int) string {
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	return base.Add(time.Duration(offset) * time.Second).Format(time.RFC3339Nano)
}

func titles(rows []store.Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i], _ = r["title"].(string)
	}
	return out
}
