package store

import (
	"cmp"
	"fmt"
	"slices"
	"time"
)

// Op is a filter operator.
type Op string

// Filter operators.
const (
	OpEq       Op = "eq"
	OpIn       Op = "in"
	OpContains Op = "contains" // array column contains the value
)

// Filter restricts the rows a request touches.
type Filter struct {
	Column string
	Op     Op
	Values []any
}

// Eq matches rows whose column equals v.
func Eq(column string, v any) Filter {
	return Filter{Column: column, Op: OpEq, Values: []any{v}}
}

// In matches rows whose column equals any of vs.
func In[T any](column string, vs ...T) Filter {
	values := make([]any, len(vs))
	for i, v := range vs {
		values[i] = v
	}
	return Filter{Column: column, Op: OpIn, Values: values}
}

// Contains matches rows whose array column holds v.
func Contains(column string, v any) Filter {
	return Filter{Column: column, Op: OpContains, Values: []any{v}}
}

// String renders the filter for logs.
func (f Filter) String() string {
	return fmt.Sprintf("%s %s %v", f.Column, f.Op, f.Values)
}

// Match reports whether row satisfies every filter.
// Adapters without a query engine use it to evaluate filters in process.
func Match(row Row, filters []Filter) bool {
	for _, f := range filters {
		v := row[f.Column]
		switch f.Op {
		case OpEq, OpIn:
			if !slices.ContainsFunc(f.Values, func(want any) bool { return Equal(v, want) }) {
				return false
			}
		case OpContains:
			arr, ok := v.([]any)
			if !ok || len(f.Values) == 0 {
				return false
			}
			if !slices.ContainsFunc(arr, func(el any) bool { return Equal(el, f.Values[0]) }) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// Equal compares two JSON-shaped values, treating all numeric types alike.
func Equal(a, b any) bool {
	if af, ok := toFloat(a); ok {
		bf, ok := toFloat(b)
		return ok && af == bf
	}
	if !isComparable(a) || !isComparable(b) {
		return false
	}
	return a == b
}

// SortRows orders rows in place by a single column. Nil values sort first.
func SortRows(rows []Row, order *Order) {
	if order == nil || order.Column == "" {
		return
	}
	slices.SortStableFunc(rows, func(x, y Row) int {
		c := compareValues(x[order.Column], y[order.Column])
		if order.Desc {
			return -c
		}
		return c
	})
}

// Project keeps only the listed columns. Empty columns returns row unchanged.
func Project(row Row, columns []string) Row {
	if len(columns) == 0 {
		return row
	}
	out := make(Row, len(columns))
	for _, c := range columns {
		if v, ok := row[c]; ok {
			out[c] = v
		}
	}
	return out
}

func compareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			return cmp.Compare(af, bf)
		}
	}
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		// RFC3339Nano strings with different fraction widths do not sort lexically.
		at, aerr := time.Parse(time.RFC3339Nano, as)
		bt, berr := time.Parse(time.RFC3339Nano, bs)
		if aerr == nil && berr == nil {
			return at.Compare(bt)
		}
		return cmp.Compare(as, bs)
	}
	if ab, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			switch {
			case ab == bb:
				return 0
			case !ab:
				return -1
			default:
				return 1
			}
		}
	}
	return cmp.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func isComparable(v any) bool {
	switch v.(type) {
	case []any, map[string]any, Row:
		return false
	default:
		return true
	}
}
