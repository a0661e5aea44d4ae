// Package memory provides an in-process storage.Store, optionally seeded from
// a YAML file. It is used for demos and tests.
package memory

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"pesantren/internal/core"
	"pesantren/internal/storage"
	"pesantren/internal/table"
)

type Store struct {
	mu   sync.RWMutex
	data map[string][]table.Record
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{data: make(map[string][]table.Record)}
}

// seedFile is the YAML layout: collection name to a list of records.
type seedFile map[string][]map[string]any

// NewFromFile creates a store and loads every record listed in the seed file.
func NewFromFile(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	s := New()
	if err := s.Load(data); err != nil {
		return nil, fmt.Errorf("load seed file %s: %w", path, err)
	}
	return s, nil
}

// Load inserts the records of a YAML seed document.
func (s *Store) Load(data []byte) error {
	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("parse seed: %w", err)
	}
	ctx := context.Background()
	for collection, rows := range seed {
		for i, row := range rows {
			if _, err := s.Insert(ctx, collection, table.Record(row)); err != nil {
				return fmt.Errorf("%s[%d]: %w", collection, i, err)
			}
		}
	}
	return nil
}

func (s *Store) Close() error { return nil }

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Get(_ context.Context, collection, id string) (table.Record, error) {
	if _, err := storage.Lookup(collection); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.index(collection, id); i >= 0 {
		return clone(s.data[collection][i]), nil
	}
	return nil, fmt.Errorf("%s %s: %w", collection, id, storage.ErrNotFound)
}

func (s *Store) Find(_ context.Context, collection string, q storage.Query) ([]table.Record, error) {
	c, err := storage.Lookup(collection)
	if err != nil {
		return nil, err
	}
	if err := c.CheckQuery(q); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	selected := storage.Select(s.data[collection], q)
	out := make([]table.Record, len(selected))
	for i, rec := range selected {
		out[i] = clone(rec)
	}
	return out, nil
}

func (s *Store) Count(_ context.Context, collection string, where ...storage.Predicate) (int, error) {
	c, err := storage.Lookup(collection)
	if err != nil {
		return 0, err
	}
	if err := c.CheckQuery(storage.Query{Where: where}); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, rec := range s.data[collection] {
		if storage.Match(rec, where) {
			n++
		}
	}
	return n, nil
}

func (s *Store) Insert(_ context.Context, collection string, rec table.Record) (string, error) {
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

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.index(collection, id) >= 0 || c.Conflicts(s.data[collection], norm) {
		return "", fmt.Errorf("insert %s: %w", collection, core.ErrConflict)
	}
	s.data[collection] = append(s.data[collection], norm)
	return id, nil
}

func (s *Store) Update(_ context.Context, collection, id string, changes table.Record) error {
	c, err := storage.Lookup(collection)
	if err != nil {
		return err
	}
	norm, err := c.Normalize(storage.Without(changes, "id"))
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.index(collection, id)
	if i < 0 {
		return fmt.Errorf("%s %s: %w", collection, id, storage.ErrNotFound)
	}
	merged := clone(s.data[collection][i])
	for k, v := range norm {
		merged[k] = v
	}
	if c.Conflicts(s.data[collection], merged) {
		return fmt.Errorf("update %s %s: %w", collection, id, core.ErrConflict)
	}
	s.data[collection][i] = merged
	return nil
}

func (s *Store) Delete(_ context.Context, collection, id string) error {
	if _, err := storage.Lookup(collection); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.index(collection, id)
	if i < 0 {
		return fmt.Errorf("%s %s: %w", collection, id, storage.ErrNotFound)
	}
	rows := s.data[collection]
	s.data[collection] = append(rows[:i:i], rows[i+1:]...)
	return nil
}

// index must be called with the lock held.
func (s *Store) index(collection, id string) int {
	for i, rec := range s.data[collection] {
		if rec["id"] == id {
			return i
		}
	}
	return -1
}

func clone(rec table.Record) table.Record {
	out := make(table.Record, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out
}
