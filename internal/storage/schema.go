package storage

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"

	"pesantren/internal/table"
)

// Collection names.
const (
	Students           = "students"
	Teachers           = "teachers"
	TeacherAssignments = "teacher_assignments"
	SavingsAccounts    = "savings_accounts"
	Transactions       = "transactions"
	Expenses           = "expenses"
	Donations          = "donations"
	CashTransactions   = "cash_transactions"
	SalaryPayments     = "salary_payments"
	Profiles           = "profiles"
	Users              = "users"
	Activities         = "user_activities"
	MonthlyReports     = "monthly_reports"
	PaymentStatus      = "payment_status"
)

// Kind is the storage type of a column.
type Kind int

const (
	Text Kind = iota
	Integer
	Real
	Bool
)

// Collection describes the columns of one record type.
type Collection struct {
	Name    string
	Columns map[string]Kind
}

func cols(kinds map[string]Kind) map[string]Kind {
	kinds["id"] = Text
	return kinds
}

var collections = map[string]Collection{
	Students: {Students, cols(map[string]Kind{
		"nim": Text, "full_name": Text, "gender": Text, "date_of_birth": Text,
		"parent_name": Text, "parent_phone": Text, "parent_address": Text,
		"room_assignment": Text, "class": Text, "status": Text,
		"enrollment_date": Text, "created_at": Text, "updated_at": Text,
	})},
	Teachers: {Teachers, cols(map[string]Kind{
		"nip": Text, "full_name": Text, "gender": Text, "phone": Text, "address": Text,
		"qualification": Text, "specialization": Text, "base_salary": Integer,
		"hourly_rate": Integer, "status": Text, "hire_date": Text,
		"created_at": Text, "updated_at": Text,
	})},
	TeacherAssignments: {TeacherAssignments, cols(map[string]Kind{
		"teacher_id": Text, "subject": Text, "class": Text, "hours_per_week": Integer,
		"academic_year": Text, "created_at": Text,
	})},
	SavingsAccounts: {SavingsAccounts, cols(map[string]Kind{
		"student_id": Text, "account_type": Text, "current_balance": Integer,
		"savings_goal": Integer, "goal_description": Text, "created_at": Text, "updated_at": Text,
	})},
	Transactions: {Transactions, cols(map[string]Kind{
		"transaction_type": Text, "student_id": Text, "savings_account_id": Text,
		"amount": Integer, "transaction_date": Text, "category": Text, "description": Text,
		"payment_method": Text, "receipt_number": Text, "processed_by": Text,
		"status": Text, "created_at": Text,
	})},
	Expenses: {Expenses, cols(map[string]Kind{
		"expense_category": Text, "amount": Integer, "expense_date": Text, "description": Text,
		"vendor_name": Text, "payment_method": Text, "approval_status": Text,
		"teacher_id": Text, "created_by": Text, "created_at": Text, "updated_at": Text,
	})},
	Donations: {Donations, cols(map[string]Kind{
		"donor_name": Text, "donation_type": Text, "amount": Integer, "donation_date": Text,
		"description": Text, "is_anonymous": Bool, "created_by": Text, "created_at": Text,
	})},
	CashTransactions: {CashTransactions, cols(map[string]Kind{
		"transaction_type": Text, "amount": Integer, "transaction_date": Text,
		"category": Text, "description": Text, "student_id": Text,
		"created_by": Text, "created_at": Text,
	})},
	SalaryPayments: {SalaryPayments, cols(map[string]Kind{
		"teacher_id": Text, "period_month": Integer, "period_year": Integer,
		"base_amount": Integer, "bonus": Integer, "deductions": Integer,
		"total_amount": Integer, "payment_date": Text, "status": Text, "notes": Text,
		"created_at": Text,
	})},
	Profiles: {Profiles, cols(map[string]Kind{
		"email": Text, "full_name": Text, "role": Text, "student_id": Text,
		"teacher_id": Text, "created_at": Text, "updated_at": Text,
	})},
	Users: {Users, cols(map[string]Kind{
		"email": Text, "password_hash": Text, "created_at": Text,
	})},
	Activities: {Activities, cols(map[string]Kind{
		"user_id": Text, "activity_type": Text, "description": Text,
		"metadata": Text, "created_at": Text,
	})},
	MonthlyReports: {MonthlyReports, cols(map[string]Kind{
		"year": Integer, "month": Integer, "total_spp": Integer, "total_donations": Integer,
		"total_expenses": Integer, "total_savings_deposits": Integer,
		"total_savings_withdrawals": Integer, "total_savings": Integer,
		"active_students": Integer, "net_balance": Integer, "generated_at": Text,
	})},
	PaymentStatus: {PaymentStatus, cols(map[string]Kind{
		"student_id": Text, "year": Integer, "month": Integer, "spp_paid": Bool,
		"cash_paid": Bool, "updated_at": Text,
	})},
}

// Lookup returns the schema of a collection.
func Lookup(name string) (Collection, error) {
	c, ok := collections[name]
	if !ok {
		return Collection{}, fmt.Errorf("unknown collection %q", name)
	}
	return c, nil
}

// Names returns every collection name, sorted.
func Names() []string {
	out := make([]string, 0, len(collections))
	for name := range collections {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Has reports whether the collection has a column named field.
func (c Collection) Has(field string) bool {
	_, ok := c.Columns[field]
	return ok
}

// Fields returns the column names, sorted.
func (c Collection) Fields() []string {
	out := make([]string, 0, len(c.Columns))
	for name := range c.Columns {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// CheckQuery verifies every field a query names.
func (c Collection) CheckQuery(q Query) error {
	for _, p := range q.Where {
		if !c.Has(p.Field) {
			return fmt.Errorf("%w %q in %s", ErrUnknownField, p.Field, c.Name)
		}
	}
	if q.OrderBy != "" && !c.Has(q.OrderBy) {
		return fmt.Errorf("%w %q in %s", ErrUnknownField, q.OrderBy, c.Name)
	}
	return nil
}

// Normalize coerces rec to the collection's column kinds. Unknown fields are
// rejected.
func (c Collection) Normalize(rec table.Record) (table.Record, error) {
	out := make(table.Record, len(rec))
	for field, v := range rec {
		kind, ok := c.Columns[field]
		if !ok {
			return nil, fmt.Errorf("%w %q in %s", ErrUnknownField, field, c.Name)
		}
		cv, err := coerce(kind, v)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", c.Name, field, err)
		}
		out[field] = cv
	}
	return out, nil
}

func coerce(kind Kind, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch kind {
	case Text:
		switch s := v.(type) {
		case string:
			return s, nil
		case []byte:
			return string(s), nil
		case fmt.Stringer:
			return s.String(), nil
		}
		return fmt.Sprint(v), nil
	case Integer:
		f, ok := toFloat(v)
		if !ok {
			if s, isStr := v.(string); isStr {
				n, err := strconv.ParseInt(s, 10, 64)
				if err != nil {
					return nil, fmt.Errorf("expected integer, got %q", s)
				}
				return n, nil
			}
			return nil, fmt.Errorf("expected integer, got %T", v)
		}
		if f != math.Trunc(f) {
			return nil, fmt.Errorf("expected integer, got %v", f)
		}
		if n, isInt := v.(int64); isInt {
			return n, nil
		}
		return int64(f), nil
	case Real:
		f, ok := toFloat(v)
		if !ok {
			return nil, fmt.Errorf("expected number, got %T", v)
		}
		return f, nil
	case Bool:
		switch b := v.(type) {
		case bool:
			return b, nil
		case string:
			return strconv.ParseBool(b)
		}
		f, ok := toFloat(v)
		if !ok {
			return nil, fmt.Errorf("expected bool, got %T", v)
		}
		return f != 0, nil
	}
	return v, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
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
		if i, err := n.Int64(); err == nil {
			return float64(i), true
		}
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// uniqueKeys mirrors the unique indexes of the SQLite schema for stores that
// have to enforce them in process.
var uniqueKeys = map[string][][]string{
	Students:        {{"nim"}},
	Teachers:        {{"nip"}},
	SavingsAccounts: {{"student_id"}},
	Users:           {{"email"}},
	MonthlyReports:  {{"year", "month"}},
	PaymentStatus:   {{"student_id", "year", "month"}},
}

// UniqueKeys returns the field sets that must be unique across records.
func (c Collection) UniqueKeys() [][]string {
	return uniqueKeys[c.Name]
}

// Conflicts reports whether rec collides with any record in existing on a
// unique key. The record whose id equals rec's id is ignored.
func (c Collection) Conflicts(existing []table.Record, rec table.Record) bool {
	id := rec["id"]
	for _, key := range c.UniqueKeys() {
		for _, other := range existing {
			if id != nil && other["id"] == id {
				continue
			}
			same := true
			for _, field := range key {
				if rec[field] == nil || !equal(rec[field], other[field]) {
					same = false
					break
				}
			}
			if same {
				return true
			}
		}
	}
	return false
}
