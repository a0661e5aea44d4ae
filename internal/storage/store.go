// Package storage defines the persistence/query port every backend
// implements: records addressed by collection name, filtered by predicates
// and ordered by a single field.
package storage

import (
	"context"
	"errors"
	"fmt"

	"pesantren/internal/core"
	"pesantren/internal/table"
)

// ErrNotFound wraps core.ErrNotFound so callers can match either.
var ErrNotFound = fmt.Errorf("record %w", core.ErrNotFound)

// ErrUnknownField is returned when a record or predicate names a column the
// collection does not have.
var ErrUnknownField = errors.New("unknown field")

// Op is a predicate comparison.
type Op string

const (
	OpEq  Op = "="
	OpNe  Op = "!="
	OpGt  Op = ">"
	OpGte Op = ">="
	OpLt  Op = "<"
	OpLte Op = "<="
	OpIn  Op = "in"
)

// Predicate filters records on one field. For OpIn, Value is a []string or
// []any.
type Predicate struct {
	Field string
	Op    Op
	Value any
}

func Eq(field string, v any) Predicate  { return Predicate{Field: field, Op: OpEq, Value: v} }
func Ne(field string, v any) Predicate  { return Predicate{Field: field, Op: OpNe, Value: v} }
func Gte(field string, v any) Predicate { return Predicate{Field: field, Op: OpGte, Value: v} }
func Lt(field string, v any) Predicate  { return Predicate{Field: field, Op: OpLt, Value: v} }
func In(field string, v ...string) Predicate {
	return Predicate{Field: field, Op: OpIn, Value: v}
}

// InMonth restricts a date field to one calendar month.
func InMonth(field string, year, month int) []Predicate {
	from, until := core.MonthRange(year, month)
	return []Predicate{Gte(field, from), Lt(field, until)}
}

// Query selects records of a collection.
type Query struct {
	Where      []Predicate
	OrderBy    string
	Descending bool
	// Limit caps the result; zero means no limit.
	Limit int
}

// Store is the persistence/query collaborator.
type Store interface {
	// Get returns the record with the given id or ErrNotFound.
	Get(ctx context.Context, collection, id string) (table.Record, error)
	// Find returns the records matching q.
	Find(ctx context.Context, collection string, q Query) ([]table.Record, error)
	// Count returns how many records match every predicate.
	Count(ctx context.Context, collection string, where ...Predicate) (int, error)
	// Insert stores rec and returns its id, generating one when rec has none.
	Insert(ctx context.Context, collection string, rec table.Record) (string, error)
	// Update merges changes into the record with the given id.
	Update(ctx context.Context, collection, id string, changes table.Record) error
	// Delete removes the record with the given id or returns ErrNotFound.
	Delete(ctx context.Context, collection, id string) error
	Close() error
}

// Pinger is implemented by stores that can report readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}
