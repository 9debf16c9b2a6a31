package kv

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/atomshelf/atomshelf-server/internal/store"
)

func tablePrefix(table store.Table) []byte {
	return []byte("t:" + string(table) + ":")
}

// rowKey zero-pads ids so key order matches id order.
func rowKey(table store.Table, row store.Row) ([]byte, error) {
	if !store.HasID(table) {
		k, ok := row["key"].(string)
		if !ok || k == "" {
			return nil, store.ErrInvalidInput.WithMessage("settings row needs a key")
		}
		return append(tablePrefix(table), k...), nil
	}
	id, ok := row["id"].(int64)
	if !ok {
		return nil, store.ErrInvalidInput.WithMessage("row has no id")
	}
	return fmt.Appendf(tablePrefix(table), "%020d", id), nil
}

func put(txn *badger.Txn, table store.Table, row store.Row) error {
	key, err := rowKey(table, row)
	if err != nil {
		return err
	}
	data, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("marshal row: %w", err)
	}
	return txn.Set(key, data)
}

// scan visits every row of table in key order.
func scan(ctx context.Context, txn *badger.Txn, table store.Table, fn func(key []byte, row store.Row) error) error {
	prefix := tablePrefix(table)
	it := txn.NewIterator(badger.IteratorOptions{PrefetchValues: true, PrefetchSize: 100, Prefix: prefix})
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		item := it.Item()
		var row store.Row
		err := item.Value(func(val []byte) error {
			v, err := store.UnmarshalValue(val)
			if err != nil {
				return err
			}
			m, ok := v.(map[string]any)
			if !ok {
				return fmt.Errorf("corrupt row at %s", item.Key())
			}
			row = m
			return nil
		})
		if err != nil {
			return err
		}
		if err := fn(item.KeyCopy(nil), row); err != nil {
			return err
		}
	}
	return nil
}

func loadAll(ctx context.Context, txn *badger.Txn, table store.Table) ([]store.Row, error) {
	var rows []store.Row
	err := scan(ctx, txn, table, func(_ []byte, row store.Row) error {
		rows = append(rows, row)
		return nil
	})
	return rows, err
}
