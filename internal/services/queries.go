package services

import (
	"context"
	"fmt"

	"pesantren/internal/core"
	"pesantren/internal/storage"
	"pesantren/internal/table"
)

// ListFilter narrows a ledger listing. Zero fields do not filter.
type ListFilter struct {
	StudentID string
	TeacherID string
	Types     []string
	Year      int
	// Month needs Year.
	Month int
}

var (
	dateFields = map[string]string{
		storage.Transactions:     "transaction_date",
		storage.CashTransactions: "transaction_date",
		storage.Expenses:         "expense_date",
		storage.Donations:        "donation_date",
		storage.SalaryPayments:   "payment_date",
	}
	typeFields = map[string]string{
		storage.Transactions:     "transaction_type",
		storage.CashTransactions: "transaction_type",
		storage.Expenses:         "expense_category",
		storage.Donations:        "donation_type",
	}
)

// List returns the ledger records of collection matching f, newest first.
func (l *Ledger) List(ctx context.Context, collection string, f ListFilter) ([]table.Record, error) {
	dateField, ok := dateFields[collection]
	if !ok {
		return nil, fmt.Errorf("%q is not a ledger collection: %w", collection, core.ErrNotFound)
	}

	var where []storage.Predicate
	if f.StudentID != "" {
		where = append(where, storage.Eq("student_id", f.StudentID))
	}
	if f.TeacherID != "" {
		where = append(where, storage.Eq("teacher_id", f.TeacherID))
	}
	if len(f.Types) > 0 {
		if field, ok := typeFields[collection]; ok {
			where = append(where, storage.In(field, f.Types...))
		}
	}
	switch {
	case f.Year > 0 && f.Month > 0:
		if err := core.ValidateMonth(f.Year, f.Month); err != nil {
			return nil, err
		}
		where = append(where, storage.InMonth(dateField, f.Year, f.Month)...)
	case f.Year > 0:
		where = append(where, yearRange(dateField, f.Year)...)
	}

	recs, err := l.store.Find(ctx, collection, storage.Query{Where: where, OrderBy: dateField, Descending: true})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	return recs, nil
}

// SavingsAccounts lists every savings account.
func (l *Ledger) SavingsAccounts(ctx context.Context) ([]table.Record, error) {
	recs, err := l.store.Find(ctx, storage.SavingsAccounts, storage.Query{})
	if err != nil {
		return nil, fmt.Errorf("list savings accounts: %w", err)
	}
	return recs, nil
}

// SavingsAccount returns a student's account, opening it when missing.
func (l *Ledger) SavingsAccount(ctx context.Context, studentID string) (core.SavingsAccount, error) {
	if err := requireRecord(ctx, l.store, storage.Students, studentID, "student_id"); err != nil {
		return core.SavingsAccount{}, err
	}
	return ensureSavingsAccount(ctx, l.store, studentID)
}
