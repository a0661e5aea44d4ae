package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"pesantren/internal/cache"
	"pesantren/internal/core"
	"pesantren/internal/storage"
	"pesantren/internal/table"
)

// MonthlyReport is a computed report ready for display or export.
type MonthlyReport struct {
	core.MonthlyReport
	MonthName   string `json:"month_name"`
	Institution string `json:"institution"`
}

// Reports computes monthly financial summaries and keeps their snapshots.
type Reports struct {
	store       storage.Store
	cache       cache.Cache[core.MonthlyReport]
	institution string
	logger      *slog.Logger
}

// NewReports creates the report service. reportCache may be nil to disable
// caching.
func NewReports(store storage.Store, reportCache cache.Cache[core.MonthlyReport], institution string, logger *slog.Logger) *Reports {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reports{
		store:       store,
		cache:       reportCache,
		institution: institution,
		logger:      logger.With("component", "report"),
	}
}

func (r *Reports) view(m core.MonthlyReport) MonthlyReport {
	return MonthlyReport{MonthlyReport: m, MonthName: core.MonthName(m.Month), Institution: r.institution}
}

// Invalidate drops the cached report of a month.
func (r *Reports) Invalidate(year, month int) {
	if r.cache != nil {
		r.cache.Delete(core.PeriodKey(year, month))
	}
}

// Monthly returns the report of a month, computing it on a cache miss.
func (r *Reports) Monthly(ctx context.Context, year, month int) (MonthlyReport, error) {
	if err := core.ValidateMonth(year, month); err != nil {
		return MonthlyReport{}, err
	}
	key := core.PeriodKey(year, month)
	if r.cache != nil {
		if m, ok := r.cache.Get(key); ok {
			return r.view(m), nil
		}
	}

	m, err := r.compute(ctx, year, month)
	if err != nil {
		return MonthlyReport{}, err
	}
	if r.cache != nil {
		r.cache.Set(key, m)
	}
	return r.view(m), nil
}

// Refresh recomputes a month and upserts its monthly_reports snapshot.
func (r *Reports) Refresh(ctx context.Context, year, month int) (MonthlyReport, error) {
	if err := core.ValidateMonth(year, month); err != nil {
		return MonthlyReport{}, err
	}
	m, err := r.compute(ctx, year, month)
	if err != nil {
		return MonthlyReport{}, err
	}

	existing, err := r.store.Find(ctx, storage.MonthlyReports, storage.Query{
		Where: []storage.Predicate{storage.Eq("year", year), storage.Eq("month", month)},
		Limit: 1,
	})
	if err != nil {
		return MonthlyReport{}, fmt.Errorf("load report snapshot: %w", err)
	}
	rec, err := storage.Encode(m)
	if err != nil {
		return MonthlyReport{}, err
	}
	rec = storage.Without(rec, "id")
	if len(existing) > 0 {
		m.ID = stringField(existing[0], "id")
		err = r.store.Update(ctx, storage.MonthlyReports, m.ID, rec)
	} else {
		m.ID, err = r.store.Insert(ctx, storage.MonthlyReports, rec)
	}
	if err != nil {
		return MonthlyReport{}, fmt.Errorf("save report snapshot: %w", err)
	}

	if r.cache != nil {
		r.cache.Set(core.PeriodKey(year, month), m)
	}
	r.logger.InfoContext(ctx, "Monthly report refreshed",
		"year", year,
		"month", month,
		"net_balance", m.NetBalance)
	return r.view(m), nil
}

// Snapshots lists the stored monthly report snapshots.
func (r *Reports) Snapshots(ctx context.Context) ([]table.Record, error) {
	recs, err := r.store.Find(ctx, storage.MonthlyReports, storage.Query{})
	if err != nil {
		return nil, fmt.Errorf("list report snapshots: %w", err)
	}
	return recs, nil
}

func (r *Reports) compute(ctx context.Context, year, month int) (core.MonthlyReport, error) {
	m := core.MonthlyReport{Year: year, Month: month, GeneratedAt: core.Now()}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		recs, err := r.store.Find(gctx, storage.Transactions, storage.Query{
			Where: append(storage.InMonth("transaction_date", year, month), storage.Eq("status", core.StatusCompleted)),
		})
		if err != nil {
			return fmt.Errorf("load transactions: %w", err)
		}
		for _, rec := range recs {
			amount := intField(rec, "amount")
			switch core.TransactionType(stringField(rec, "transaction_type")) {
			case core.TransactionSPP:
				m.TotalSPP += amount
			case core.TransactionSavingsDeposit:
				m.TotalSavingsDeposits += amount
			case core.TransactionSavingsWithdrawal:
				m.TotalSavingsWithdrawals += amount
			}
		}
		return nil
	})
	g.Go(func() error {
		total, err := sumAmounts(gctx, r.store, storage.Donations, "amount", storage.InMonth("donation_date", year, month)...)
		m.TotalDonations = total
		return err
	})
	g.Go(func() error {
		total, err := sumAmounts(gctx, r.store, storage.Expenses, "amount", storage.InMonth("expense_date", year, month)...)
		m.TotalExpenses = total
		return err
	})
	g.Go(func() error {
		total, err := sumAmounts(gctx, r.store, storage.SavingsAccounts, "current_balance")
		m.TotalSavings = total
		return err
	})
	g.Go(func() error {
		n, err := r.store.Count(gctx, storage.Students, storage.Eq("status", core.StatusActive))
		if err != nil {
			return fmt.Errorf("count active students: %w", err)
		}
		m.ActiveStudents = n
		return nil
	})
	if err := g.Wait(); err != nil {
		return core.MonthlyReport{}, err
	}

	m.NetBalance = m.Net()
	return m, nil
}

func sumAmounts(ctx context.Context, store storage.Store, collection, field string, where ...storage.Predicate) (int64, error) {
	recs, err := store.Find(ctx, collection, storage.Query{Where: where})
	if err != nil {
		return 0, fmt.Errorf("load %s: %w", collection, err)
	}
	var total int64
	for _, rec := range recs {
		total += intField(rec, field)
	}
	return total, nil
}

// currentPeriod returns the year and month of t in UTC.
func currentPeriod(t time.Time) (int, int) {
	t = t.UTC()
	return t.Year(), int(t.Month())
}
