package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"pesantren/internal/core"
	"pesantren/internal/storage"
	"pesantren/internal/table"
)

const seedYAML = `
students:
  - id: s-1
    nim: "2024001"
    full_name: Ahmad Fauzi
    status: active
    class: 7A
    enrollment_date: 2024-07-15
  - id: s-2
    nim: "2024002"
    full_name: Siti Aminah
    status: graduated
transactions:
  - transaction_type: spp
    student_id: s-1
    amount: 150000
    transaction_date: 2024-03-02
    status: completed
`

func TestLoadSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	if err := os.WriteFile(path, []byte(seedYAML), 0o600); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	s, err := NewFromFile(path)
	if err != nil {
		t.Fatalf("NewFromFile: %v", err)
	}
	ctx := context.Background()

	rec, err := s.Get(ctx, storage.Students, "s-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec["enrollment_date"] != "2024-07-15" || rec["nim"] != "2024001" {
		t.Fatalf("unexpected record %v", rec)
	}

	n, err := s.Count(ctx, storage.Students, storage.Eq("status", core.StatusActive))
	if err != nil || n != 1 {
		t.Fatalf("Count = %d, %v", n, err)
	}

	txs, err := s.Find(ctx, storage.Transactions, storage.Query{Where: storage.InMonth("transaction_date", 2024, 3)})
	if err != nil || len(txs) != 1 || txs[0]["amount"] != int64(150000) {
		t.Fatalf("Find = %v, %v", txs, err)
	}
}

func TestLoadRejectsUnknownCollection(t *testing.T) {
	s := New()
	if err := s.Load([]byte("ghosts:\n  - id: x\n")); err == nil {
		t.Fatalf("expected error for unknown collection")
	}
}

func TestCRUD(t *testing.T) {
	ctx := context.Background()
	s := New()

	id, err := s.Insert(ctx, storage.Teachers, table.Record{"nip": "T1", "full_name": "Ustadz Hasan", "status": "active"})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := s.Update(ctx, storage.Teachers, id, table.Record{"base_salary": 2500000}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	rec, err := s.Get(ctx, storage.Teachers, id)
	if err != nil || rec["base_salary"] != int64(2500000) {
		t.Fatalf("Get = %v, %v", rec, err)
	}

	// Mutating a returned record must not leak into the store.
	rec["full_name"] = "changed"
	again, _ := s.Get(ctx, storage.Teachers, id)
	if again["full_name"] != "Ustadz Hasan" {
		t.Fatalf("store was mutated through a returned record")
	}

	if err := s.Delete(ctx, storage.Teachers, id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, storage.Teachers, id); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUniqueKeys(t *testing.T) {
	ctx := context.Background()
	s := New()

	if _, err := s.Insert(ctx, storage.Students, table.Record{"nim": "1", "full_name": "A", "status": "active"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if _, err := s.Insert(ctx, storage.Students, table.Record{"nim": "1", "full_name": "B", "status": "active"}); !errors.Is(err, core.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	id, _ := s.Insert(ctx, storage.Students, table.Record{"nim": "2", "full_name": "C", "status": "active"})
	if err := s.Update(ctx, storage.Students, id, table.Record{"nim": "1"}); !errors.Is(err, core.ErrConflict) {
		t.Fatalf("expected ErrConflict on update, got %v", err)
	}
	if err := s.Update(ctx, storage.Students, id, table.Record{"nim": "2", "class": "8B"}); err != nil {
		t.Fatalf("updating own unique value should succeed: %v", err)
	}

	ps := table.Record{"student_id": id, "year": 2024, "month": 3, "spp_paid": true}
	if _, err := s.Insert(ctx, storage.PaymentStatus, ps); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if _, err := s.Insert(ctx, storage.PaymentStatus, ps); !errors.Is(err, core.ErrConflict) {
		t.Fatalf("expected ErrConflict for composite key, got %v", err)
	}
}

func TestFindOrdersAndLimits(t *testing.T) {
	ctx := context.Background()
	s := New()
	for _, amount := range []int{300, 100, 200} {
		if _, err := s.Insert(ctx, storage.Expenses, table.Record{"expense_category": "ATK", "amount": amount, "expense_date": "2024-01-01"}); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
	got, err := s.Find(ctx, storage.Expenses, storage.Query{OrderBy: "amount", Limit: 2})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(got) != 2 || got[0]["amount"] != int64(100) || got[1]["amount"] != int64(200) {
		t.Fatalf("unexpected order %v", got)
	}
	if _, err := s.Find(ctx, storage.Expenses, storage.Query{OrderBy: "nope"}); !errors.Is(err, storage.ErrUnknownField) {
		t.Fatalf("expected ErrUnknownField, got %v", err)
	}
}
