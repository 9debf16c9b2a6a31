// Package kv implements store.Client on badger, an embedded key-value store.
//
// Each row is one JSON value under "t:<table>:<id>". Filtering and ordering
// run in process with store.Match and store.SortRows, which is fine for a
// personal catalog and keeps the adapter free of secondary indexes.
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/atomshelf/atomshelf-server/internal/store"
)

// Options configures the badger client.
type Options struct {
	Path     string       // Data directory; ignored when InMemory is set
	InMemory bool         // Keep everything in RAM (tests, throwaway sessions)
	Logger   *slog.Logger // Uses discard if nil
}

// Client is a store.Client backed by badger.
type Client struct {
	db     *badger.DB
	logger *slog.Logger

	seqMu sync.Mutex
	seqs  map[store.Table]*badger.Sequence
}

var _ store.Client = (*Client)(nil)

// Open opens (or creates) the badger database.
func Open(opts Options) (*Client, error) {
	bopts := badger.DefaultOptions(opts.Path)
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		bopts.SyncWrites = true
		bopts.CompactL0OnClose = true
	}
	bopts.Logger = nil

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger.Info("Badger database opened", "path", opts.Path, "in_memory", opts.InMemory)

	return &Client{db: db, logger: logger, seqs: make(map[store.Table]*badger.Sequence)}, nil
}

// Close releases id sequences and closes the database.
func (c *Client) Close() error {
	c.seqMu.Lock()
	var errs []error
	for _, seq := range c.seqs {
		if err := seq.Release(); err != nil {
			errs = append(errs, err)
		}
	}
	c.seqs = nil
	c.seqMu.Unlock()

	if err := c.db.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Ping reports whether the database is open.
func (c *Client) Ping(context.Context) error {
	if c.db.IsClosed() {
		return store.ErrUnavailable
	}
	return nil
}

// Select returns the rows of table matching q.
func (c *Client) Select(ctx context.Context, table store.Table, q store.Query) ([]store.Row, error) {
	if _, ok := store.Spec(table); !ok {
		return nil, store.ErrInvalidInput.WithMessage("unknown table " + string(table))
	}

	var out []store.Row
	err := c.db.View(func(txn *badger.Txn) error {
		return scan(ctx, txn, table, func(_ []byte, row store.Row) error {
			if store.Match(row, q.Filters) {
				out = append(out, row)
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", table, err)
	}

	store.SortRows(out, q.Order)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	for i := range out {
		out[i] = store.Project(out[i], q.Columns)
	}
	return out, nil
}

// Insert stores rows and returns them with assigned ids.
func (c *Client) Insert(ctx context.Context, table store.Table, rows ...store.Row) ([]store.Row, error) {
	spec, ok := store.Spec(table)
	if !ok {
		return nil, store.ErrInvalidInput.WithMessage("unknown table " + string(table))
	}
	if len(rows) == 0 {
		return nil, nil
	}

	out := make([]store.Row, 0, len(rows))
	err := c.db.Update(func(txn *badger.Txn) error {
		existing, err := loadAll(ctx, txn, table)
		if err != nil {
			return err
		}
		for _, r := range rows {
			row, err := normalizeRow(r)
			if err != nil {
				return err
			}
			if store.HasID(table) {
				id, err := c.nextID(table)
				if err != nil {
					return err
				}
				row["id"] = id
			}
			if err := checkUnique(spec, existing, row); err != nil {
				return err
			}
			if err := put(txn, table, row); err != nil {
				return err
			}
			existing = append(existing, row)
			out = append(out, row)
		}
		return nil
	})
	if err != nil {
		return nil, wrap(err, "insert into "+string(table))
	}
	return out, nil
}

// Update merges patch into every row matching filters.
func (c *Client) Update(ctx context.Context, table store.Table, patch store.Row, filters ...store.Filter) error {
	spec, ok := store.Spec(table)
	if !ok {
		return store.ErrInvalidInput.WithMessage("unknown table " + string(table))
	}
	if len(filters) == 0 {
		return store.ErrInvalidInput.WithMessage("update without filter")
	}
	p, err := normalizeRow(patch)
	if err != nil {
		return err
	}
	delete(p, "id")

	err = c.db.Update(func(txn *badger.Txn) error {
		all, err := loadAll(ctx, txn, table)
		if err != nil {
			return err
		}
		for _, row := range all {
			if !store.Match(row, filters) {
				continue
			}
			for k, v := range p {
				row[k] = v
			}
			if err := checkUnique(spec, all, row); err != nil {
				return err
			}
			if err := put(txn, table, row); err != nil {
				return err
			}
		}
		return nil
	})
	return wrap(err, "update "+string(table))
}

// Delete removes every row matching filters.
func (c *Client) Delete(ctx context.Context, table store.Table, filters ...store.Filter) error {
	if _, ok := store.Spec(table); !ok {
		return store.ErrInvalidInput.WithMessage("unknown table " + string(table))
	}
	if len(filters) == 0 {
		return store.ErrInvalidInput.WithMessage("delete without filter")
	}

	err := c.db.Update(func(txn *badger.Txn) error {
		var keys [][]byte
		err := scan(ctx, txn, table, func(key []byte, row store.Row) error {
			if store.Match(row, filters) {
				keys = append(keys, key)
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	return wrap(err, "delete from "+string(table))
}

// Upsert inserts row or overwrites the row with the same conflictKey values.
func (c *Client) Upsert(ctx context.Context, table store.Table, row store.Row, conflictKey ...string) error {
	spec, ok := store.Spec(table)
	if !ok {
		return store.ErrInvalidInput.WithMessage("unknown table " + string(table))
	}
	if len(conflictKey) == 0 {
		return store.ErrInvalidInput.WithMessage("upsert without conflict key")
	}
	r, err := normalizeRow(row)
	if err != nil {
		return err
	}

	err = c.db.Update(func(txn *badger.Txn) error {
		all, err := loadAll(ctx, txn, table)
		if err != nil {
			return err
		}
		keyFilters := make([]store.Filter, 0, len(conflictKey))
		for _, k := range conflictKey {
			keyFilters = append(keyFilters, store.Eq(k, r[k]))
		}
		for _, existing := range all {
			if store.Match(existing, keyFilters) {
				for k, v := range r {
					if k != "id" {
						existing[k] = v
					}
				}
				if err := checkUnique(spec, all, existing); err != nil {
					return err
				}
				return put(txn, table, existing)
			}
		}
		if store.HasID(table) {
			id, err := c.nextID(table)
			if err != nil {
				return err
			}
			r["id"] = id
		}
		if err := checkUnique(spec, all, r); err != nil {
			return err
		}
		return put(txn, table, r)
	})
	return wrap(err, "upsert "+string(table))
}

// nextID hands out ids starting at 1.
func (c *Client) nextID(table store.Table) (int64, error) {
	c.seqMu.Lock()
	defer c.seqMu.Unlock()

	seq, ok := c.seqs[table]
	if !ok {
		var err error
		seq, err = c.db.GetSequence([]byte("seq:"+string(table)), 64)
		if err != nil {
			return 0, fmt.Errorf("get sequence: %w", err)
		}
		c.seqs[table] = seq
	}
	n, err := seq.Next()
	if err != nil {
		return 0, fmt.Errorf("next id: %w", err)
	}
	return int64(n) + 1, nil //nolint:gosec // ids stay far below MaxInt64
}

// checkUnique fails when row collides with another row on a unique key.
func checkUnique(spec store.TableSpec, rows []store.Row, row store.Row) error {
	for _, cols := range spec.Unique {
		for _, other := range rows {
			if sameRow(other, row) {
				continue
			}
			if slices.ContainsFunc(cols, func(c string) bool { return row[c] == nil }) {
				continue
			}
			if !slices.ContainsFunc(cols, func(c string) bool { return !store.Equal(row[c], other[c]) }) {
				return store.ErrConflict.WithMessage(fmt.Sprintf("duplicate %v", cols))
			}
		}
	}
	return nil
}

// sameRow reports whether a and b are the same stored row.
func sameRow(a, b store.Row) bool {
	if a == nil || b == nil {
		return false
	}
	if id, ok := a["id"]; ok {
		return store.Equal(id, b["id"])
	}
	return a["key"] != nil && a["key"] == b["key"]
}

func normalizeRow(r store.Row) (store.Row, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode row: %w", err)
	}
	v, err := store.UnmarshalValue(data)
	if err != nil {
		return nil, fmt.Errorf("encode row: %w", err)
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, store.ErrInvalidInput.WithMessage("row must be an object")
	}
	return store.Row(m), nil
}

func wrap(err error, op string) error {
	if err == nil {
		return nil
	}
	var se *store.Error
	if errors.As(err, &se) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}
