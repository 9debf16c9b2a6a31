// Package sqlite implements store.Client on an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/atomshelf/atomshelf-server/internal/store"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// Client provides SQLite-backed persistence for the catalog tables.
type Client struct {
	db     *sql.DB
	logger *slog.Logger
	sb     sq.StatementBuilderType
}

var _ store.Client = (*Client)(nil)

// Open creates or opens the database at path.
// It configures WAL mode, sets pragmas, and applies the schema.
func Open(path string, logger *slog.Logger) (*Client, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("exec schema: %w", err)
	}

	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger.Info("SQLite database opened", "path", path)

	return &Client{
		db:     db,
		logger: logger,
		sb:     sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}, nil
}

// Close closes the underlying database connection.
func (c *Client) Close() error {
	return c.db.Close()
}

// Ping checks the connection.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.db.PingContext(ctx); err != nil {
		return store.ErrUnavailable.WithCause(err)
	}
	return nil
}

// Select returns the rows of table matching q.
func (c *Client) Select(ctx context.Context, table store.Table, q store.Query) ([]store.Row, error) {
	spec, err := tableSpec(table)
	if err != nil {
		return nil, err
	}

	columns := q.Columns
	if len(columns) == 0 {
		columns = []string{"*"}
	} else if err := checkColumns(spec, columns...); err != nil {
		return nil, err
	}

	sel := c.sb.Select(columns...).From(string(table))
	where, err := buildWhere(spec, q.Filters)
	if err != nil {
		return nil, err
	}
	if where != nil {
		sel = sel.Where(where)
	}
	if q.Order != nil {
		if err := checkColumns(spec, q.Order.Column); err != nil {
			return nil, err
		}
		dir := "ASC"
		if q.Order.Desc {
			dir = "DESC"
		}
		// id breaks ties so equal timestamps keep insertion order.
		sel = sel.OrderBy(q.Order.Column+" "+dir, tieBreaker(table, dir))
	}
	if q.Limit > 0 {
		sel = sel.Limit(uint64(q.Limit))
	}

	query, args, err := sel.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "select "+string(table))
	}
	defer rows.Close()

	return scanRows(spec, rows)
}

// Insert stores rows and returns them as persisted, ids included.
func (c *Client) Insert(ctx context.Context, table store.Table, rows ...store.Row) ([]store.Row, error) {
	spec, err := tableSpec(table)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, mapError(err, "begin insert")
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	out := make([]store.Row, 0, len(rows))
	for _, row := range rows {
		cols, vals, err := toColumns(spec, row)
		if err != nil {
			return nil, err
		}
		query, args, err := c.sb.Insert(string(table)).Columns(cols...).Values(vals...).Suffix("RETURNING *").ToSql()
		if err != nil {
			return nil, fmt.Errorf("build insert: %w", err)
		}
		res, err := tx.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, mapError(err, "insert into "+string(table))
		}
		inserted, err := scanRows(spec, res)
		res.Close()
		if err != nil {
			return nil, err
		}
		out = append(out, inserted...)
	}

	if err := tx.Commit(); err != nil {
		return nil, mapError(err, "commit insert")
	}
	return out, nil
}

// Update applies patch to every row matching filters.
func (c *Client) Update(ctx context.Context, table store.Table, patch store.Row, filters ...store.Filter) error {
	spec, err := tableSpec(table)
	if err != nil {
		return err
	}
	if len(filters) == 0 {
		return store.ErrInvalidInput.WithMessage("update without filter")
	}
	if len(patch) == 0 {
		return nil
	}

	cols, vals, err := toColumns(spec, patch)
	if err != nil {
		return err
	}
	set := make(map[string]any, len(cols))
	for i, col := range cols {
		set[col] = vals[i]
	}
	where, err := buildWhere(spec, filters)
	if err != nil {
		return err
	}

	query, args, err := c.sb.Update(string(table)).SetMap(set).Where(where).ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	if _, err := c.db.ExecContext(ctx, query, args...); err != nil {
		return mapError(err, "update "+string(table))
	}
	return nil
}

// Delete removes every row matching filters.
func (c *Client) Delete(ctx context.Context, table store.Table, filters ...store.Filter) error {
	spec, err := tableSpec(table)
	if err != nil {
		return err
	}
	if len(filters) == 0 {
		return store.ErrInvalidInput.WithMessage("delete without filter")
	}
	where, err := buildWhere(spec, filters)
	if err != nil {
		return err
	}

	query, args, err := c.sb.Delete(string(table)).Where(where).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	if _, err := c.db.ExecContext(ctx, query, args...); err != nil {
		return mapError(err, "delete from "+string(table))
	}
	return nil
}

// Upsert inserts row or overwrites the row sharing its conflictKey values.
func (c *Client) Upsert(ctx context.Context, table store.Table, row store.Row, conflictKey ...string) error {
	spec, err := tableSpec(table)
	if err != nil {
		return err
	}
	if len(conflictKey) == 0 {
		return store.ErrInvalidInput.WithMessage("upsert without conflict key")
	}
	if err := checkColumns(spec, conflictKey...); err != nil {
		return err
	}

	cols, vals, err := toColumns(spec, row)
	if err != nil {
		return err
	}
	suffix := upsertSuffix(cols, conflictKey)

	query, args, err := c.sb.Insert(string(table)).Columns(cols...).Values(vals...).Suffix(suffix).ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}
	if _, err := c.db.ExecContext(ctx, query, args...); err != nil {
		return mapError(err, "upsert "+string(table))
	}
	return nil
}

func tieBreaker(table store.Table, dir string) string {
	if !store.HasID(table) {
		return "rowid " + dir
	}
	return "id " + dir
}
