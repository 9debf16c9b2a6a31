package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/atomshelf/atomshelf-server/internal/store"
)

func tableSpec(table store.Table) (store.TableSpec, error) {
	spec, ok := store.Spec(table)
	if !ok {
		return store.TableSpec{}, store.ErrInvalidInput.WithMessage("unknown table " + string(table))
	}
	return spec, nil
}

// checkColumns rejects names outside the schema. Column names are spliced
// into SQL text, so this is the only thing standing between a caller and
// an injected identifier.
func checkColumns(spec store.TableSpec, cols ...string) error {
	for _, c := range cols {
		if _, ok := spec.Columns[c]; !ok {
			return store.ErrInvalidInput.WithMessage("unknown column " + c)
		}
	}
	return nil
}

func buildWhere(spec store.TableSpec, filters []store.Filter) (sq.Sqlizer, error) {
	if len(filters) == 0 {
		return nil, nil
	}
	and := make(sq.And, 0, len(filters))
	for _, f := range filters {
		if err := checkColumns(spec, f.Column); err != nil {
			return nil, err
		}
		switch f.Op {
		case store.OpEq:
			if len(f.Values) != 1 {
				return nil, store.ErrInvalidInput.WithMessage("eq filter needs one value")
			}
			and = append(and, sq.Eq{f.Column: toSQLValue(spec.Type(f.Column), f.Values[0])})
		case store.OpIn:
			vals := make([]any, len(f.Values))
			for i, v := range f.Values {
				vals[i] = toSQLValue(spec.Type(f.Column), v)
			}
			and = append(and, sq.Eq{f.Column: vals})
		case store.OpContains:
			if len(f.Values) != 1 || spec.Type(f.Column) != store.ColJSON {
				return nil, store.ErrInvalidInput.WithMessage("contains filter needs one value on a JSON column")
			}
			and = append(and, sq.Expr(
				fmt.Sprintf("EXISTS (SELECT 1 FROM json_each(%s) WHERE json_each.value = ?)", f.Column),
				f.Values[0],
			))
		default:
			return nil, store.ErrInvalidInput.WithMessage("unsupported filter op " + string(f.Op))
		}
	}
	return and, nil
}

// toColumns splits a row into sorted column names and SQL values.
func toColumns(spec store.TableSpec, row store.Row) ([]string, []any, error) {
	cols := make([]string, 0, len(row))
	for c := range row {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	if err := checkColumns(spec, cols...); err != nil {
		return nil, nil, err
	}

	vals := make([]any, len(cols))
	for i, c := range cols {
		v, err := encodeValue(spec.Type(c), row[c])
		if err != nil {
			return nil, nil, fmt.Errorf("column %s: %w", c, err)
		}
		vals[i] = v
	}
	return cols, vals, nil
}

func encodeValue(t store.ColumnType, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch t {
	case store.ColJSON:
		if raw, ok := v.(json.RawMessage); ok {
			return string(raw), nil
		}
		data, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return string(data), nil
	case store.ColTime:
		if s, ok := v.(string); ok {
			parsed, err := time.Parse(time.RFC3339Nano, s)
			if err != nil {
				return nil, err
			}
			return formatTime(parsed), nil
		}
		return toSQLValue(t, v), nil
	default:
		return toSQLValue(t, v), nil
	}
}

func toSQLValue(t store.ColumnType, v any) any {
	switch x := v.(type) {
	case time.Time:
		return formatTime(x)
	case bool:
		if x {
			return int64(1)
		}
		return int64(0)
	case float64:
		if t == store.ColInt && x == float64(int64(x)) {
			return int64(x)
		}
	}
	return v
}

func scanRows(spec store.TableSpec, rows *sql.Rows) ([]store.Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	var out []store.Row
	for rows.Next() {
		raw := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		row := make(store.Row, len(cols))
		for i, c := range cols {
			v, err := decodeValue(spec.Type(c), raw[i])
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", c, err)
			}
			row[c] = v
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

func decodeValue(t store.ColumnType, v any) (any, error) {
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	if v == nil {
		return nil, nil
	}
	switch t {
	case store.ColBool:
		switch x := v.(type) {
		case int64:
			return x != 0, nil
		case bool:
			return x, nil
		}
	case store.ColJSON:
		if s, ok := v.(string); ok {
			return store.UnmarshalValue([]byte(s))
		}
	case store.ColTime:
		if x, ok := v.(time.Time); ok {
			return formatTime(x), nil
		}
	}
	return v, nil
}

func upsertSuffix(cols, conflictKey []string) string {
	var updates []string
	for _, c := range cols {
		if slices.Contains(conflictKey, c) {
			continue
		}
		updates = append(updates, c+" = excluded."+c)
	}
	target := "ON CONFLICT(" + strings.Join(conflictKey, ", ") + ")"
	if len(updates) == 0 {
		return target + " DO NOTHING"
	}
	return target + " DO UPDATE SET " + strings.Join(updates, ", ")
}

func mapError(err error, op string) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return store.ErrConflict.WithMessage(op).WithCause(err)
	case strings.Contains(msg, "CHECK constraint failed"), strings.Contains(msg, "NOT NULL constraint failed"):
		return store.ErrInvalidInput.WithMessage(op).WithCause(err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

// timeLayout is RFC3339 with a fixed-width fraction so stored timestamps
// sort correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// formatTime formats a time.Time for storage.
func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
