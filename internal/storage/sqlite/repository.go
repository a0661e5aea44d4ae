// Package sqlite implements storage.Store on an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"pesantren/internal/core"
	"pesantren/internal/storage"
	"pesantren/internal/table"

	_ "modernc.org/sqlite"
)

type Repository struct {
	db *sql.DB
}

var _ storage.Store = (*Repository)(nil)

// Open creates the database file if needed, migrates it and returns a store.
func Open(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single connection serializes writers; SQLite allows one at a time anyway.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) Get(ctx context.Context, collection, id string) (table.Record, error) {
	recs, err := r.Find(ctx, collection, storage.Query{Where: []storage.Predicate{storage.Eq("id", id)}, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("%s %s: %w", collection, id, storage.ErrNotFound)
	}
	return recs[0], nil
}

func (r *Repository) Find(ctx context.Context, collection string, q storage.Query) ([]table.Record, error) {
	c, err := storage.Lookup(collection)
	if err != nil {
		return nil, err
	}
	if err := c.CheckQuery(q); err != nil {
		return nil, err
	}

	fields := c.Fields()
	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(fields, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(c.Name)

	where, args := whereClause(q.Where)
	sb.WriteString(where)

	if q.OrderBy != "" {
		dir := "ASC"
		if q.Descending {
			dir = "DESC"
		}
		// NULLs last in both directions.
		fmt.Fprintf(&sb, " ORDER BY %s IS NULL, %s %s", q.OrderBy, q.OrderBy, dir)
	}
	if q.Limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", q.Limit)
	}

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	defer rows.Close()

	out := []table.Record{}
	for rows.Next() {
		values := make([]any, len(fields))
		ptrs := make([]any, len(fields))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", collection, err)
		}
		rec := make(table.Record, len(fields))
		for i, field := range fields {
			rec[field] = fromColumn(c.Columns[field], values[i])
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", collection, err)
	}
	return out, nil
}

func (r *Repository) Count(ctx context.Context, collection string, where ...storage.Predicate) (int, error) {
	c, err := storage.Lookup(collection)
	if err != nil {
		return 0, err
	}
	if err := c.CheckQuery(storage.Query{Where: where}); err != nil {
		return 0, err
	}
	clause, args := whereClause(where)

	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+c.Name+clause, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", collection, err)
	}
	return n, nil
}

func (r *Repository) Insert(ctx context.Context, collection string, rec table.Record) (string, error) {
	c, err := storage.Lookup(collection)
	if err != nil {
		return "", err
	}
	norm, err := c.Normalize(rec)
	if err != nil {
		return "", err
	}
	id, _ := norm["id"].(string)
	if id == "" {
		id = uuid.NewString()
		norm["id"] = id
	}

	names := sortedKeys(norm)
	args := make([]any, len(names))
	for i, name := range names {
		args[i] = toColumn(norm[name])
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		c.Name, strings.Join(names, ", "), strings.TrimSuffix(strings.Repeat("?, ", len(names)), ", "))

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return "", fmt.Errorf("insert %s: %w", collection, translate(err))
	}

	slog.DebugContext(ctx, "Record inserted", "collection", collection, "id", id)
	return id, nil
}

func (r *Repository) Update(ctx context.Context, collection, id string, changes table.Record) error {
	c, err := storage.Lookup(collection)
	if err != nil {
		return err
	}
	norm, err := c.Normalize(storage.Without(changes, "id"))
	if err != nil {
		return err
	}
	if len(norm) == 0 {
		return nil
	}

	names := sortedKeys(norm)
	sets := make([]string, len(names))
	args := make([]any, 0, len(names)+1)
	for i, name := range names {
		sets[i] = name + " = ?"
		args = append(args, toColumn(norm[name]))
	}
	args = append(args, id)

	res, err := r.db.ExecContext(ctx, "UPDATE "+c.Name+" SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return fmt.Errorf("update %s %s: %w", collection, id, translate(err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s %s: %w", collection, id, storage.ErrNotFound)
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, collection, id string) error {
	c, err := storage.Lookup(collection)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, "DELETE FROM "+c.Name+" WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", collection, id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s %s: %w", collection, id, storage.ErrNotFound)
	}
	return nil
}

// whereClause renders predicates whose fields were already checked against
// the schema.
func whereClause(where []storage.Predicate) (string, []any) {
	if len(where) == 0 {
		return "", nil
	}
	parts := make([]string, 0, len(where))
	var args []any
	for _, p := range where {
		switch {
		case p.Op == storage.OpIn:
			values := inArgs(p.Value)
			if len(values) == 0 {
				parts = append(parts, "0")
				continue
			}
			parts = append(parts, p.Field+" IN ("+strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ")+")")
			args = append(args, values...)
		case p.Value == nil && p.Op == storage.OpEq:
			parts = append(parts, p.Field+" IS NULL")
		case p.Value == nil && p.Op == storage.OpNe:
			parts = append(parts, p.Field+" IS NOT NULL")
		default:
			parts = append(parts, p.Field+" "+string(p.Op)+" ?")
			args = append(args, toColumn(p.Value))
		}
	}
	return " WHERE " + strings.Join(parts, " AND "), args
}

func inArgs(v any) []any {
	switch vs := v.(type) {
	case []string:
		out := make([]any, len(vs))
		for i, s := range vs {
			out[i] = s
		}
		return out
	case []any:
		out := make([]any, len(vs))
		for i, s := range vs {
			out[i] = toColumn(s)
		}
		return out
	}
	return []any{toColumn(v)}
}

func toColumn(v any) any {
	if b, ok := v.(bool); ok {
		if b {
			return int64(1)
		}
		return int64(0)
	}
	return v
}

func fromColumn(kind storage.Kind, v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case []byte:
		return string(val)
	case int64:
		if kind == storage.Bool {
			return val != 0
		}
		return val
	}
	return v
}

func translate(err error) error {
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("%w: %v", core.ErrConflict, err)
	}
	return err
}

func sortedKeys(rec table.Record) []string {
	out := make([]string, 0, len(rec))
	for k := range rec {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

