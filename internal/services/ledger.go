package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"pesantren/internal/amqp"
	"pesantren/internal/core"
	"pesantren/internal/storage"
	"pesantren/internal/table"
)

// SPPPaymentInput is a tuition payment received from a student.
type SPPPaymentInput struct {
	StudentID     string
	Amount        int64
	Date          core.Date
	PaymentMethod string
	Description   string
}

// SavingsInput is a deposit to or withdrawal from a student's savings.
type SavingsInput struct {
	StudentID     string
	Amount        int64
	Date          core.Date
	PaymentMethod string
	Description   string
}

// CashInput is a petty-cash receipt or disbursement.
type CashInput struct {
	Type        core.CashType
	Amount      int64
	Date        core.Date
	Category    string
	Description string
	StudentID   string
}

// SavingsMovement is the result of a deposit or withdrawal.
type SavingsMovement struct {
	Transaction core.Transaction `json:"transaction"`
	Balance     int64            `json:"balance"`
}

// Ledger records money movements.
type Ledger struct {
	store    storage.Store
	notifier *notifier
	accounts keyedMutex
	now      func() time.Time
	logger   *slog.Logger
}

// NewLedger creates the ledger. publisher and invalidator may be nil.
func NewLedger(store storage.Store, activities *Activities, publisher EventPublisher, invalidator ReportInvalidator, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "ledger")
	return &Ledger{
		store: store,
		notifier: &notifier{
			activities:  activities,
			publisher:   publisher,
			invalidator: invalidator,
			logger:      logger,
		},
		now:    time.Now,
		logger: logger,
	}
}

func (l *Ledger) insert(ctx context.Context, collection string, v any) (string, error) {
	rec, err := storage.Encode(v)
	if err != nil {
		return "", err
	}
	id, err := l.store.Insert(ctx, collection, storage.Without(rec, "id"))
	if err != nil {
		return "", fmt.Errorf("insert %s: %w", collection, err)
	}
	return id, nil
}

// requireRecord turns a missing referenced record into a field error.
func requireRecord(ctx context.Context, store storage.Store, collection, id, field string) error {
	if id == "" {
		return core.ValidationErrors{{Field: field, Message: "is required"}}
	}
	_, err := store.Get(ctx, collection, id)
	if errors.Is(err, core.ErrNotFound) {
		return core.ValidationErrors{{Field: field, Message: "does not exist"}}
	}
	if err != nil {
		return fmt.Errorf("load %s %s: %w", collection, id, err)
	}
	return nil
}

// RecordSPPPayment stores a completed SPP payment for an existing student.
func (l *Ledger) RecordSPPPayment(ctx context.Context, actor string, in SPPPaymentInput) (core.Transaction, error) {
	tx := core.Transaction{
		TransactionType: core.TransactionSPP,
		StudentID:       in.StudentID,
		Amount:          in.Amount,
		TransactionDate: orToday(in.Date),
		Category:        "SPP",
		Description:     strings.TrimSpace(in.Description),
		PaymentMethod:   in.PaymentMethod,
		ReceiptNumber:   fmt.Sprintf("SPP-%d", l.now().UnixMilli()),
		ProcessedBy:     actor,
		Status:          core.StatusCompleted,
		CreatedAt:       core.Now(),
	}
	if tx.Description == "" {
		tx.Description = fmt.Sprintf("Pembayaran SPP %s %d", core.MonthName(tx.TransactionDate.Month()), tx.TransactionDate.Year())
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if err := requireRecord(ctx, l.store, storage.Students, in.StudentID, "student_id"); err != nil {
		return core.Transaction{}, err
	}

	id, err := l.insert(ctx, storage.Transactions, tx)
	if err != nil {
		return core.Transaction{}, err
	}
	tx.ID = id

	l.notifier.written(ctx, change{
		actor: actor, activity: "spp_payment", description: tx.Description,
		kind: amqp.KindCreated, collection: storage.Transactions, recordID: id,
		date: tx.TransactionDate, amount: tx.Amount,
	})
	return tx, nil
}

// Deposit adds to a student's savings, opening the account when needed.
func (l *Ledger) Deposit(ctx context.Context, actor string, in SavingsInput) (SavingsMovement, error) {
	return l.moveSavings(ctx, actor, in, core.TransactionSavingsDeposit)
}

// Withdraw takes from a student's savings. It fails with
// core.ErrInsufficientBalance, writing nothing, when the balance is too low.
func (l *Ledger) Withdraw(ctx context.Context, actor string, in SavingsInput) (SavingsMovement, error) {
	return l.moveSavings(ctx, actor, in, core.TransactionSavingsWithdrawal)
}

func (l *Ledger) moveSavings(ctx context.Context, actor string, in SavingsInput, kind core.TransactionType) (SavingsMovement, error) {
	tx := core.Transaction{
		TransactionType: kind,
		StudentID:       in.StudentID,
		Amount:          in.Amount,
		TransactionDate: orToday(in.Date),
		Category:        "Tabungan",
		Description:     strings.TrimSpace(in.Description),
		PaymentMethod:   in.PaymentMethod,
		ProcessedBy:     actor,
		Status:          core.StatusCompleted,
		CreatedAt:       core.Now(),
	}
	if err := tx.Validate(); err != nil {
		return SavingsMovement{}, err
	}
	if err := requireRecord(ctx, l.store, storage.Students, in.StudentID, "student_id"); err != nil {
		return SavingsMovement{}, err
	}

	unlock := l.accounts.Lock(in.StudentID)
	defer unlock()

	account, err := ensureSavingsAccount(ctx, l.store, in.StudentID)
	if err != nil {
		return SavingsMovement{}, err
	}

	balance := account.CurrentBalance + tx.Amount
	if kind == core.TransactionSavingsWithdrawal {
		balance = account.CurrentBalance - tx.Amount
		if balance < 0 {
			return SavingsMovement{}, fmt.Errorf("withdraw %s from balance %s: %w",
				core.FormatRupiah(tx.Amount), core.FormatRupiah(account.CurrentBalance), core.ErrInsufficientBalance)
		}
	}

	tx.SavingsAccountID = account.ID
	id, err := l.insert(ctx, storage.Transactions, tx)
	if err != nil {
		return SavingsMovement{}, err
	}
	tx.ID = id

	if err := l.store.Update(ctx, storage.SavingsAccounts, account.ID, table.Record{
		"current_balance": balance,
		"updated_at":      core.Now().Format(time.RFC3339),
	}); err != nil {
		// Keep the ledger consistent with the balance.
		if derr := l.store.Delete(ctx, storage.Transactions, id); derr != nil {
			l.logger.ErrorContext(ctx, "Failed to roll back savings transaction", "record_id", id, "error", derr)
		}
		return SavingsMovement{}, fmt.Errorf("update savings balance: %w", err)
	}

	activity := "savings_deposit"
	if kind == core.TransactionSavingsWithdrawal {
		activity = "savings_withdrawal"
	}
	l.notifier.written(ctx, change{
		actor: actor, activity: activity, description: tx.Description,
		kind: amqp.KindCreated, collection: storage.Transactions, recordID: id,
		date: tx.TransactionDate, amount: tx.Amount,
	})
	return SavingsMovement{Transaction: tx, Balance: balance}, nil
}

// ensureSavingsAccount returns the student's account, creating a regular one
// with a zero balance when none exists.
func ensureSavingsAccount(ctx context.Context, store storage.Store, studentID string) (core.SavingsAccount, error) {
	recs, err := store.Find(ctx, storage.SavingsAccounts, storage.Query{
		Where: []storage.Predicate{storage.Eq("student_id", studentID)},
		Limit: 1,
	})
	if err != nil {
		return core.SavingsAccount{}, fmt.Errorf("load savings account: %w", err)
	}
	if len(recs) > 0 {
		return storage.Decode[core.SavingsAccount](recs[0])
	}

	now := core.Now()
	account := core.SavingsAccount{
		StudentID:   studentID,
		AccountType: core.AccountRegular,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	rec, err := storage.Encode(account)
	if err != nil {
		return core.SavingsAccount{}, err
	}
	id, err := store.Insert(ctx, storage.SavingsAccounts, storage.Without(rec, "id"))
	if err != nil {
		return core.SavingsAccount{}, fmt.Errorf("open savings account: %w", err)
	}
	account.ID = id
	return account, nil
}

// RecordCash stores a petty-cash receipt or disbursement.
func (l *Ledger) RecordCash(ctx context.Context, actor string, in CashInput) (core.CashTransaction, error) {
	ct := core.CashTransaction{
		TransactionType: in.Type,
		Amount:          in.Amount,
		TransactionDate: orToday(in.Date),
		Category:        strings.TrimSpace(in.Category),
		Description:     strings.TrimSpace(in.Description),
		StudentID:       in.StudentID,
		CreatedBy:       actor,
		CreatedAt:       core.Now(),
	}
	if err := ct.Validate(); err != nil {
		return core.CashTransaction{}, err
	}
	if in.StudentID != "" {
		if err := requireRecord(ctx, l.store, storage.Students, in.StudentID, "student_id"); err != nil {
			return core.CashTransaction{}, err
		}
	}

	id, err := l.insert(ctx, storage.CashTransactions, ct)
	if err != nil {
		return core.CashTransaction{}, err
	}
	ct.ID = id

	l.notifier.written(ctx, change{
		actor: actor, activity: "cash_" + string(ct.TransactionType), description: ct.Description,
		kind: amqp.KindCreated, collection: storage.CashTransactions, recordID: id,
		date: ct.TransactionDate, amount: ct.Amount,
	})
	return ct, nil
}

// CashBalance is the sum of receipts minus the sum of disbursements.
func (l *Ledger) CashBalance(ctx context.Context) (int64, error) {
	return cashBalance(ctx, l.store)
}

func cashBalance(ctx context.Context, store storage.Store) (int64, error) {
	recs, err := store.Find(ctx, storage.CashTransactions, storage.Query{})
	if err != nil {
		return 0, fmt.Errorf("load cash transactions: %w", err)
	}
	var balance int64
	for _, rec := range recs {
		amount := intField(rec, "amount")
		switch core.CashType(stringField(rec, "transaction_type")) {
		case core.CashReceipt:
			balance += amount
		case core.CashDisbursement:
			balance -= amount
		}
	}
	return balance, nil
}

// RecordExpense stores an expense. Teacher salary expenses must name an
// existing teacher.
func (l *Ledger) RecordExpense(ctx context.Context, actor string, e core.Expense) (core.Expense, error) {
	now := core.Now()
	e.ID = ""
	e.ExpenseDate = orToday(e.ExpenseDate)
	e.Description = strings.TrimSpace(e.Description)
	if e.ApprovalStatus == "" {
		e.ApprovalStatus = core.StatusApproved
	}
	if e.ExpenseCategory != core.CategorySalary {
		e.TeacherID = ""
	}
	e.CreatedBy = actor
	e.CreatedAt, e.UpdatedAt = now, now
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	if e.TeacherID != "" {
		if err := requireRecord(ctx, l.store, storage.Teachers, e.TeacherID, "teacher_id"); err != nil {
			return core.Expense{}, err
		}
	}

	id, err := l.insert(ctx, storage.Expenses, e)
	if err != nil {
		return core.Expense{}, err
	}
	e.ID = id

	l.notifier.written(ctx, change{
		actor: actor, activity: "expense_created", description: e.ExpenseCategory + ": " + e.Description,
		kind: amqp.KindCreated, collection: storage.Expenses, recordID: id,
		date: e.ExpenseDate, amount: e.Amount,
	})
	return e, nil
}

// DeleteExpense removes an expense.
func (l *Ledger) DeleteExpense(ctx context.Context, actor, id string) error {
	e, err := getAs[core.Expense](ctx, l.store, storage.Expenses, id)
	if err != nil {
		return err
	}
	if err := l.store.Delete(ctx, storage.Expenses, id); err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	l.notifier.written(ctx, change{
		actor: actor, activity: "expense_deleted", description: e.ExpenseCategory + ": " + e.Description,
		kind: amqp.KindDeleted, collection: storage.Expenses, recordID: id,
		date: e.ExpenseDate, amount: e.Amount,
	})
	return nil
}

// RecordDonation stores a donation. Anonymous donations without a name are
// credited to core.AnonymousDonor.
func (l *Ledger) RecordDonation(ctx context.Context, actor string, d core.Donation) (core.Donation, error) {
	d.ID = ""
	d.DonationDate = orToday(d.DonationDate)
	d.DonorName = strings.TrimSpace(d.DonorName)
	if d.IsAnonymous && d.DonorName == "" {
		d.DonorName = core.AnonymousDonor
	}
	d.CreatedBy = actor
	d.CreatedAt = core.Now()
	if err := d.Validate(); err != nil {
		return core.Donation{}, err
	}

	id, err := l.insert(ctx, storage.Donations, d)
	if err != nil {
		return core.Donation{}, err
	}
	d.ID = id

	l.notifier.written(ctx, change{
		actor: actor, activity: "donation_created", description: d.DonationType + " dari " + d.DonorName,
		kind: amqp.KindCreated, collection: storage.Donations, recordID: id,
		date: d.DonationDate, amount: d.Amount,
	})
	return d, nil
}

// DeleteDonation removes a donation.
func (l *Ledger) DeleteDonation(ctx context.Context, actor, id string) error {
	d, err := getAs[core.Donation](ctx, l.store, storage.Donations, id)
	if err != nil {
		return err
	}
	if err := l.store.Delete(ctx, storage.Donations, id); err != nil {
		return fmt.Errorf("delete donation: %w", err)
	}
	l.notifier.written(ctx, change{
		actor: actor, activity: "donation_deleted", description: d.DonationType + " dari " + d.DonorName,
		kind: amqp.KindDeleted, collection: storage.Donations, recordID: id,
		date: d.DonationDate, amount: d.Amount,
	})
	return nil
}

// RecordSalaryPayment pays a teacher. The total is base plus bonus minus
// deductions and must not be negative.
func (l *Ledger) RecordSalaryPayment(ctx context.Context, actor string, p core.SalaryPayment) (core.SalaryPayment, error) {
	p.ID = ""
	p.PaymentDate = orToday(p.PaymentDate)
	if p.PeriodMonth == 0 && p.PeriodYear == 0 {
		p.PeriodYear, p.PeriodMonth = p.PaymentDate.Year(), p.PaymentDate.Month()
	}
	p.TotalAmount = p.BaseAmount + p.Bonus - p.Deductions
	if p.Status == "" {
		p.Status = core.StatusPaid
	}
	p.CreatedAt = core.Now()
	if err := p.Validate(); err != nil {
		return core.SalaryPayment{}, err
	}
	if err := requireRecord(ctx, l.store, storage.Teachers, p.TeacherID, "teacher_id"); err != nil {
		return core.SalaryPayment{}, err
	}

	id, err := l.insert(ctx, storage.SalaryPayments, p)
	if err != nil {
		return core.SalaryPayment{}, err
	}
	p.ID = id

	l.notifier.written(ctx, change{
		actor: actor, activity: "salary_paid",
		description: fmt.Sprintf("Gaji %s %d", core.MonthName(p.PeriodMonth), p.PeriodYear),
		kind:        "created", collection: storage.SalaryPayments, recordID: id,
		date: p.PaymentDate, amount: p.TotalAmount,
	})
	return p, nil
}

func getAs[T any](ctx context.Context, store storage.Store, collection, id string) (T, error) {
	var zero T
	rec, err := store.Get(ctx, collection, id)
	if err != nil {
		return zero, fmt.Errorf("load %s %s: %w", collection, id, err)
	}
	return storage.Decode[T](rec)
}

func intField(rec table.Record, field string) int64 {
	switch v := rec[field].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

func stringField(rec table.Record, field string) string {
	s, _ := rec[field].(string)
	return s
}
