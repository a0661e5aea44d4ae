package services

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"pesantren/internal/core"
	"pesantren/internal/storage"
	"pesantren/internal/table"
)

// Dashboard sizes.
const (
	adminRecentTransactions   = 5
	studentRecentTransactions = 10
	committeeCashWindow       = 7 * 24 * time.Hour
)

type AdminDashboard struct {
	ActiveStudents     int            `json:"active_students"`
	ActiveTeachers     int            `json:"active_teachers"`
	TotalSavings       int64          `json:"total_savings"`
	MonthlySPP         int64          `json:"monthly_spp"`
	MonthlyDonations   int64          `json:"monthly_donations"`
	MonthlyExpenses    int64          `json:"monthly_expenses"`
	CashBalance        int64          `json:"cash_balance"`
	RecentTransactions []table.Record `json:"recent_transactions"`
}

type CommitteeDashboard struct {
	ActiveStudents int            `json:"active_students"`
	CashBalance    int64          `json:"cash_balance"`
	TotalSavings   int64          `json:"total_savings"`
	RecentCash     []table.Record `json:"recent_cash"`
}

type StudentDashboard struct {
	Student            core.Student        `json:"student"`
	Savings            core.SavingsAccount `json:"savings"`
	RecentTransactions []table.Record      `json:"recent_transactions"`
}

type TeacherDashboard struct {
	Teacher     core.Teacher   `json:"teacher"`
	Salaries    []table.Record `json:"salaries"`
	Assignments []table.Record `json:"assignments"`
}

// Dashboards loads the data behind each role's landing view. Every figure is
// an explicit query; independent queries run concurrently.
type Dashboards struct {
	store storage.Store
	now   func() time.Time
}

func NewDashboards(store storage.Store) *Dashboards {
	return &Dashboards{store: store, now: time.Now}
}

func (d *Dashboards) count(ctx context.Context, collection string, dst *int) func() error {
	return func() error {
		n, err := d.store.Count(ctx, collection, storage.Eq("status", core.StatusActive))
		if err != nil {
			return fmt.Errorf("count %s: %w", collection, err)
		}
		*dst = n
		return nil
	}
}

func (d *Dashboards) sum(ctx context.Context, collection, field string, dst *int64, where ...storage.Predicate) func() error {
	return func() (err error) {
		*dst, err = sumAmounts(ctx, d.store, collection, field, where...)
		return err
	}
}

func (d *Dashboards) find(ctx context.Context, collection string, q storage.Query, dst *[]table.Record) func() error {
	return func() error {
		recs, err := d.store.Find(ctx, collection, q)
		if err != nil {
			return fmt.Errorf("load %s: %w", collection, err)
		}
		*dst = recs
		return nil
	}
}

func (d *Dashboards) Admin(ctx context.Context) (AdminDashboard, error) {
	year, month := currentPeriod(d.now())
	var out AdminDashboard

	g, gctx := errgroup.WithContext(ctx)
	g.Go(d.count(gctx, storage.Students, &out.ActiveStudents))
	g.Go(d.count(gctx, storage.Teachers, &out.ActiveTeachers))
	g.Go(d.sum(gctx, storage.SavingsAccounts, "current_balance", &out.TotalSavings))
	g.Go(d.sum(gctx, storage.Transactions, "amount", &out.MonthlySPP,
		append(storage.InMonth("transaction_date", year, month),
			storage.Eq("transaction_type", string(core.TransactionSPP)),
			storage.Eq("status", core.StatusCompleted))...))
	g.Go(d.sum(gctx, storage.Donations, "amount", &out.MonthlyDonations, storage.InMonth("donation_date", year, month)...))
	g.Go(d.sum(gctx, storage.Expenses, "amount", &out.MonthlyExpenses, storage.InMonth("expense_date", year, month)...))
	g.Go(func() (err error) {
		out.CashBalance, err = cashBalance(gctx, d.store)
		return err
	})
	g.Go(d.find(gctx, storage.Transactions, storage.Query{
		OrderBy: "created_at", Descending: true, Limit: adminRecentTransactions,
	}, &out.RecentTransactions))
	if err := g.Wait(); err != nil {
		return AdminDashboard{}, err
	}
	return out, nil
}

func (d *Dashboards) Committee(ctx context.Context) (CommitteeDashboard, error) {
	since := core.Date{Time: d.now().UTC().Add(-committeeCashWindow)}.String()
	var out CommitteeDashboard

	g, gctx := errgroup.WithContext(ctx)
	g.Go(d.count(gctx, storage.Students, &out.ActiveStudents))
	g.Go(d.sum(gctx, storage.SavingsAccounts, "current_balance", &out.TotalSavings))
	g.Go(func() (err error) {
		out.CashBalance, err = cashBalance(gctx, d.store)
		return err
	})
	g.Go(d.find(gctx, storage.CashTransactions, storage.Query{
		Where:      []storage.Predicate{storage.Gte("transaction_date", since)},
		OrderBy:    "transaction_date",
		Descending: true,
	}, &out.RecentCash))
	if err := g.Wait(); err != nil {
		return CommitteeDashboard{}, err
	}
	return out, nil
}

// Student loads a santri's own data. A student without a savings account
// shows a zero balance.
func (d *Dashboards) Student(ctx context.Context, studentID string) (StudentDashboard, error) {
	var out StudentDashboard

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		out.Student, err = getAs[core.Student](gctx, d.store, storage.Students, studentID)
		return err
	})
	g.Go(func() error {
		recs, err := d.store.Find(gctx, storage.SavingsAccounts, storage.Query{
			Where: []storage.Predicate{storage.Eq("student_id", studentID)},
			Limit: 1,
		})
		if err != nil {
			return fmt.Errorf("load savings account: %w", err)
		}
		if len(recs) > 0 {
			out.Savings, err = storage.Decode[core.SavingsAccount](recs[0])
			return err
		}
		out.Savings = core.SavingsAccount{StudentID: studentID, AccountType: core.AccountRegular}
		return nil
	})
	g.Go(d.find(gctx, storage.Transactions, storage.Query{
		Where:      []storage.Predicate{storage.Eq("student_id", studentID)},
		OrderBy:    "created_at",
		Descending: true,
		Limit:      studentRecentTransactions,
	}, &out.RecentTransactions))
	if err := g.Wait(); err != nil {
		return StudentDashboard{}, err
	}
	return out, nil
}

func (d *Dashboards) Teacher(ctx context.Context, teacherID string) (TeacherDashboard, error) {
	var out TeacherDashboard

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		out.Teacher, err = getAs[core.Teacher](gctx, d.store, storage.Teachers, teacherID)
		return err
	})
	g.Go(d.find(gctx, storage.SalaryPayments, storage.Query{
		Where:      []storage.Predicate{storage.Eq("teacher_id", teacherID)},
		OrderBy:    "payment_date",
		Descending: true,
	}, &out.Salaries))
	g.Go(d.find(gctx, storage.TeacherAssignments, storage.Query{
		Where: []storage.Predicate{storage.Eq("teacher_id", teacherID)},
	}, &out.Assignments))
	if err := g.Wait(); err != nil {
		return TeacherDashboard{}, err
	}
	return out, nil
}
