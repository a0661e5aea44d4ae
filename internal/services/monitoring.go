package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"pesantren/internal/core"
	"pesantren/internal/storage"
	"pesantren/internal/table"
)

// Monitoring tracks which students paid SPP and cash dues in each month.
type Monitoring struct {
	store  storage.Store
	logger *slog.Logger
}

func NewMonitoring(store storage.Store, logger *slog.Logger) *Monitoring {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitoring{store: store, logger: logger.With("component", "monitoring")}
}

func paidKey(studentID string, month int) string {
	return studentID + "#" + strconv.Itoa(month)
}

// yearRange restricts a date field to one calendar year.
func yearRange(field string, year int) []storage.Predicate {
	from, _ := core.MonthRange(year, 1)
	until, _ := core.MonthRange(year+1, 1)
	return []storage.Predicate{storage.Gte(field, from), storage.Lt(field, until)}
}

// paidMonths returns the set of student/month keys with at least one
// matching record in year.
func paidMonths(ctx context.Context, store storage.Store, collection, dateField string, year int, where ...storage.Predicate) (map[string]bool, error) {
	recs, err := store.Find(ctx, collection, storage.Query{Where: append(yearRange(dateField, year), where...)})
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", collection, err)
	}
	paid := make(map[string]bool, len(recs))
	for _, rec := range recs {
		studentID := stringField(rec, "student_id")
		if studentID == "" {
			continue
		}
		d, err := core.ParseDate(stringField(rec, dateField))
		if err != nil {
			continue
		}
		paid[paidKey(studentID, d.Month())] = true
	}
	return paid, nil
}

func (m *Monitoring) activeStudents(ctx context.Context) ([]core.Student, error) {
	recs, err := m.store.Find(ctx, storage.Students, storage.Query{
		Where:   []storage.Predicate{storage.Eq("status", core.StatusActive)},
		OrderBy: "full_name",
	})
	if err != nil {
		return nil, fmt.Errorf("load active students: %w", err)
	}
	return storage.DecodeAll[core.Student](recs)
}

// Sync recomputes the payment status of every active student for each month
// of year and upserts the payment_status rows. It returns the number of rows
// written.
func (m *Monitoring) Sync(ctx context.Context, year int) (int, error) {
	if err := core.ValidateMonth(year, 1); err != nil {
		return 0, err
	}

	var (
		students []core.Student
		spp      map[string]bool
		cash     map[string]bool
		existing []table.Record
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		students, err = m.activeStudents(gctx)
		return err
	})
	g.Go(func() (err error) {
		spp, err = paidMonths(gctx, m.store, storage.Transactions, "transaction_date", year,
			storage.Eq("transaction_type", string(core.TransactionSPP)),
			storage.Eq("status", core.StatusCompleted))
		return err
	})
	g.Go(func() (err error) {
		cash, err = paidMonths(gctx, m.store, storage.CashTransactions, "transaction_date", year,
			storage.Eq("transaction_type", string(core.CashReceipt)))
		return err
	})
	g.Go(func() (err error) {
		existing, err = m.store.Find(gctx, storage.PaymentStatus, storage.Query{
			Where: []storage.Predicate{storage.Eq("year", year)},
		})
		if err != nil {
			err = fmt.Errorf("load payment status: %w", err)
		}
		return err
	})
	if err := g.Wait(); err != nil {
		return 0, err
	}

	ids := make(map[string]string, len(existing))
	for _, rec := range existing {
		ids[paidKey(stringField(rec, "student_id"), int(intField(rec, "month")))] = stringField(rec, "id")
	}

	now := core.Now().Format(time.RFC3339)
	written := 0
	for _, s := range students {
		for month := 1; month <= 12; month++ {
			key := paidKey(s.ID, month)
			rec := table.Record{
				"student_id": s.ID,
				"year":       year,
				"month":      month,
				"spp_paid":   spp[key],
				"cash_paid":  cash[key],
				"updated_at": now,
			}
			var err error
			if id, ok := ids[key]; ok {
				err = m.store.Update(ctx, storage.PaymentStatus, id, rec)
			} else {
				_, err = m.store.Insert(ctx, storage.PaymentStatus, rec)
			}
			if err != nil {
				return written, fmt.Errorf("save payment status of %s %s: %w", s.NIM, core.PeriodKey(year, month), err)
			}
			written++
		}
	}

	m.logger.InfoContext(ctx, "Payment status synchronized",
		"year", year,
		"students", len(students),
		"rows", written)
	return written, nil
}

// Grid returns one row per active student with the stored status of each
// month of year. Months never synchronized show as unpaid.
func (m *Monitoring) Grid(ctx context.Context, year int) ([]core.PaymentRow, error) {
	if err := core.ValidateMonth(year, 1); err != nil {
		return nil, err
	}
	students, err := m.activeStudents(ctx)
	if err != nil {
		return nil, err
	}
	recs, err := m.store.Find(ctx, storage.PaymentStatus, storage.Query{
		Where: []storage.Predicate{storage.Eq("year", year)},
	})
	if err != nil {
		return nil, fmt.Errorf("load payment status: %w", err)
	}
	statuses, err := storage.DecodeAll[core.PaymentStatus](recs)
	if err != nil {
		return nil, err
	}
	byKey := make(map[string]core.PaymentStatus, len(statuses))
	for _, st := range statuses {
		byKey[paidKey(st.StudentID, st.Month)] = st
	}

	rows := make([]core.PaymentRow, 0, len(students))
	for _, s := range students {
		row := core.PaymentRow{StudentID: s.ID, NIM: s.NIM, FullName: s.FullName, Class: s.Class}
		for month := 1; month <= 12; month++ {
			st := byKey[paidKey(s.ID, month)]
			row.Months[month-1] = core.PaymentCell{Month: month, SPPPaid: st.SPPPaid, CashPaid: st.CashPaid}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
