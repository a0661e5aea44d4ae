package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"pesantren/internal/table"
)

// Encode converts a domain value to a record through its JSON field names.
// Integral numbers become int64.
func Encode(v any) (table.Record, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var rec table.Record
	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	for k, val := range rec {
		if n, ok := val.(json.Number); ok {
			if i, err := n.Int64(); err == nil {
				rec[k] = i
			} else if f, err := n.Float64(); err == nil {
				rec[k] = f
			}
		}
	}
	return rec, nil
}

// Decode fills a domain value from a record.
func Decode[T any](rec table.Record) (T, error) {
	var out T
	b, err := json.Marshal(rec)
	if err != nil {
		return out, fmt.Errorf("decode record: %w", err)
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return out, fmt.Errorf("decode record: %w", err)
	}
	return out, nil
}

// DecodeAll decodes every record.
func DecodeAll[T any](recs []table.Record) ([]T, error) {
	out := make([]T, 0, len(recs))
	for _, rec := range recs {
		v, err := Decode[T](rec)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Without returns a copy of rec lacking the named fields.
func Without(rec table.Record, fields ...string) table.Record {
	out := make(table.Record, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	for _, f := range fields {
		delete(out, f)
	}
	return out
}

// Match reports whether rec satisfies every predicate. It is the in-process
// evaluator used by stores that cannot push filters down.
func Match(rec table.Record, where []Predicate) bool {
	for _, p := range where {
		if !matchOne(rec[p.Field], p) {
			return false
		}
	}
	return true
}

func matchOne(v any, p Predicate) bool {
	switch p.Op {
	case OpEq:
		return equal(v, p.Value)
	case OpNe:
		return !equal(v, p.Value)
	case OpIn:
		for _, candidate := range inValues(p.Value) {
			if equal(v, candidate) {
				return true
			}
		}
		return false
	}

	c, ok := order(v, p.Value)
	if !ok {
		return false
	}
	switch p.Op {
	case OpGt:
		return c > 0
	case OpGte:
		return c >= 0
	case OpLt:
		return c < 0
	case OpLte:
		return c <= 0
	}
	return false
}

func inValues(v any) []any {
	switch vs := v.(type) {
	case []any:
		return vs
	case []string:
		out := make([]any, len(vs))
		for i, s := range vs {
			out[i] = s
		}
		return out
	}
	return []any{v}
}

func equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if ab, ok := a.(bool); ok {
		bb, ok := b.(bool)
		return ok && ab == bb
	}
	c, ok := order(a, b)
	return ok && c == 0
}

// order compares two strings bytewise or two numbers numerically, the way
// SQLite compares TEXT and INTEGER columns.
func order(a, b any) (int, bool) {
	if a == nil || b == nil {
		return 0, false
	}
	if as, ok := a.(string); ok {
		bs, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(as, bs), true
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if !aok || !bok {
		return 0, false
	}
	switch {
	case af < bf:
		return -1, true
	case af > bf:
		return 1, true
	}
	return 0, true
}

// Select applies q to records in process: filter, order, limit. Records
// without the order field sort last.
func Select(recs []table.Record, q Query) []table.Record {
	var out []table.Record
	for _, rec := range recs {
		if Match(rec, q.Where) {
			out = append(out, rec)
		}
	}
	if q.OrderBy != "" {
		dir := table.Ascending
		if q.Descending {
			dir = table.Descending
		}
		out = table.SortBy(out, table.SortConfig{Key: q.OrderBy, Direction: dir}, func(r table.Record, key string) any {
			return r[key]
		})
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	if out == nil {
		out = []table.Record{}
	}
	return out
}
