// Package table provides the sort and pagination primitives shared by every
// record list the API serves.
package table

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// ErrInvalidArgument is returned for a non-positive page size.
var ErrInvalidArgument = errors.New("invalid argument")

// Record is an opaque mapping of field name to value.
type Record map[string]any

// Direction orders a sort.
type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
	None       Direction = ""
)

// ParseDirection accepts asc, desc or empty (none), case-insensitively.
func ParseDirection(s string) (Direction, error) {
	switch Direction(strings.ToLower(strings.TrimSpace(s))) {
	case Ascending:
		return Ascending, nil
	case Descending:
		return Descending, nil
	case None, "none":
		return None, nil
	default:
		return None, fmt.Errorf("%w: sort direction %q", ErrInvalidArgument, s)
	}
}

// SortConfig names the field to order by and the direction.
type SortConfig struct {
	Key       string
	Direction Direction
}

// Sort returns a new slice ordered by cfg. The input is never mutated.
//
// Absent and nil values always sort last, whatever the direction. Strings are
// compared with Indonesian collation, numbers numerically. Any other pairing
// compares equal, and ties keep their input order.
func Sort(records []Record, cfg SortConfig) []Record {
	return SortBy(records, cfg, func(r Record, key string) any { return r[key] })
}

// SortBy is Sort over any element type; field extracts the value of key.
func SortBy[T any](items []T, cfg SortConfig, field func(item T, key string) any) []T {
	out := slices.Clone(items)
	if out == nil {
		out = []T{}
	}
	if cfg.Direction == None || cfg.Key == "" || len(out) < 2 {
		return out
	}

	// Collators keep per-call buffers and are not safe for concurrent use.
	col := collate.New(language.Indonesian)
	desc := cfg.Direction == Descending

	slices.SortStableFunc(out, func(a, b T) int {
		av, bv := field(a, cfg.Key), field(b, cfg.Key)
		aNil, bNil := isNil(av), isNil(bv)
		switch {
		case aNil && bNil:
			return 0
		case aNil:
			return 1
		case bNil:
			return -1
		}
		c := compare(col, av, bv)
		if desc {
			return -c
		}
		return c
	})
	return out
}

func compare(col *collate.Collator, a, b any) int {
	if as, ok := a.(string); ok {
		if bs, ok := b.(string); ok {
			return col.CompareString(as, bs)
		}
		return 0
	}
	if ai, ok := integer(a); ok {
		if bi, ok := integer(b); ok {
			return cmp.Compare(ai, bi)
		}
	}
	an, aok := number(a)
	bn, bok := number(b)
	if !aok || !bok {
		return 0
	}
	return cmp.Compare(an, bn)
}

// integer reports v as an int64 when it is an integer kind that fits.
func integer(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), uint64(n) <= math.MaxInt64
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), n <= math.MaxInt64
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	default:
		return 0, false
	}
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	switch p := v.(type) {
	case *string:
		return p == nil
	case *int64:
		return p == nil
	case *float64:
		return p == nil
	}
	return false
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// Paginate returns the items of page (1-based) when split into pages of
// pageSize. A page past the end yields an empty slice; page <= 0 is treated
// as page 1. The result shares no backing array with items.
func Paginate[T any](items []T, page, pageSize int) ([]T, error) {
	if pageSize <= 0 {
		return nil, fmt.Errorf("%w: page size %d", ErrInvalidArgument, pageSize)
	}
	if page < 1 {
		page = 1
	}

	pages := len(items) / pageSize
	if len(items)%pageSize != 0 {
		pages++
	}
	if page-1 >= pages {
		return []T{}, nil
	}
	start := (page - 1) * pageSize
	end := min(start+pageSize, len(items))
	return slices.Clone(items[start:end]), nil
}

// TotalPages is the number of pages needed to show totalItems.
func TotalPages(totalItems, pageSize int) (int, error) {
	if pageSize <= 0 {
		return 0, fmt.Errorf("%w: page size %d", ErrInvalidArgument, pageSize)
	}
	if totalItems <= 0 {
		return 0, nil
	}
	pages := totalItems / pageSize
	if totalItems%pageSize != 0 {
		pages++
	}
	return pages, nil
}

// Window is a page request together with the sort to apply before slicing.
type Window struct {
	Page    int
	PerPage int
	Sort    SortConfig
}

// Page is one sorted, paginated slice of a record list.
type Page[T any] struct {
	Items      []T       `json:"items"`
	Page       int       `json:"page"`
	PerPage    int       `json:"per_page"`
	TotalItems int       `json:"total_items"`
	TotalPages int       `json:"total_pages"`
	Sort       string    `json:"sort,omitempty"`
	Dir        Direction `json:"dir,omitempty"`
}

// Apply sorts records and cuts the requested page.
func Apply(records []Record, w Window) (Page[Record], error) {
	sorted := Sort(records, w.Sort)
	items, err := Paginate(sorted, w.Page, w.PerPage)
	if err != nil {
		return Page[Record]{}, err
	}
	pages, err := TotalPages(len(sorted), w.PerPage)
	if err != nil {
		return Page[Record]{}, err
	}
	page := w.Page
	if page < 1 {
		page = 1
	}
	return Page[Record]{
		Items:      items,
		Page:       page,
		PerPage:    w.PerPage,
		TotalItems: len(sorted),
		TotalPages: pages,
		Sort:       w.Sort.Key,
		Dir:        w.Sort.Direction,
	}, nil
}
