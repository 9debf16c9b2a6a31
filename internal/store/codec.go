package store

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Encode converts a struct with json tags into a Row.
// Integers come back as int64, other numbers as float64.
func Encode(v any) (Row, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode row: %w", err)
	}
	var row Row
	if err := unmarshalNumbers(data, &row); err != nil {
		return nil, fmt.Errorf("encode row: %w", err)
	}
	return row, nil
}

// Decode converts rows into values of type T.
func Decode[T any](rows []Row) ([]T, error) {
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		v, err := DecodeRow[T](r)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// DecodeRow converts a single row into a T.
func DecodeRow[T any](row Row) (T, error) {
	var v T
	data, err := json.Marshal(row)
	if err != nil {
		return v, fmt.Errorf("decode row: %w", err)
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("decode row: %w", err)
	}
	return v, nil
}

// NormalizeValue converts decoded JSON into Row value shapes: json.Number
// becomes int64 or float64, recursively through arrays and objects.
func NormalizeValue(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	case []any:
		for i := range t {
			t[i] = NormalizeValue(t[i])
		}
		return t
	case map[string]any:
		for k := range t {
			t[k] = NormalizeValue(t[k])
		}
		return t
	case Row:
		for k := range t {
			t[k] = NormalizeValue(t[k])
		}
		return t
	default:
		return v
	}
}

// UnmarshalRows decodes a JSON array of objects into rows.
func UnmarshalRows(data []byte) ([]Row, error) {
	var rows []Row
	if err := unmarshalNumbers(data, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// UnmarshalValue decodes arbitrary JSON into a Row value shape.
func UnmarshalValue(data []byte) (any, error) {
	var v any
	if err := unmarshalNumbers(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func unmarshalNumbers(data []byte, dst any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	switch d := dst.(type) {
	case *Row:
		NormalizeValue(*d)
	case *[]Row:
		for _, r := range *d {
			NormalizeValue(r)
		}
	case *any:
		*d = NormalizeValue(*d)
	}
	return nil
}
