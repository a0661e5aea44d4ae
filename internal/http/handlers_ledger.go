package http

import (
	"net/http"

	"pesantren/internal/core"
	"pesantren/internal/services"
	"pesantren/internal/storage"
)

type sppRequest struct {
	StudentID     string    `json:"student_id" validate:"notblank"`
	Amount        Amount    `json:"amount" validate:"gt=0"`
	PaymentDate   core.Date `json:"payment_date"`
	PaymentMethod string    `json:"payment_method" validate:"omitempty,oneof=Tunai 'Transfer Bank' E-Wallet"`
	Description   string    `json:"description" validate:"max=255"`
}

type savingsRequest struct {
	StudentID     string    `json:"student_id" validate:"notblank"`
	Amount        Amount    `json:"amount" validate:"gt=0"`
	Date          core.Date `json:"transaction_date"`
	PaymentMethod string    `json:"payment_method" validate:"omitempty,oneof=Tunai 'Transfer Bank' E-Wallet"`
	Description   string    `json:"description" validate:"max=255"`
}

type cashRequest struct {
	TransactionType core.CashType `json:"transaction_type" validate:"required,oneof=receipt disbursement"`
	Amount          Amount        `json:"amount" validate:"gt=0"`
	Date            core.Date     `json:"transaction_date"`
	Category        string        `json:"category"`
	Description     string        `json:"description" validate:"notblank,max=255"`
	StudentID       string        `json:"student_id"`
}

type expenseRequest struct {
	ExpenseCategory string    `json:"expense_category" validate:"notblank"`
	Amount          Amount    `json:"amount" validate:"gt=0"`
	ExpenseDate     core.Date `json:"expense_date"`
	Description     string    `json:"description" validate:"max=255"`
	VendorName      string    `json:"vendor_name"`
	PaymentMethod   string    `json:"payment_method" validate:"omitempty,oneof=Tunai 'Transfer Bank' E-Wallet"`
	TeacherID       string    `json:"teacher_id"`
}

type donationRequest struct {
	DonorName    string    `json:"donor_name" validate:"required_without=IsAnonymous"`
	DonationType string    `json:"donation_type" validate:"notblank"`
	Amount       Amount    `json:"amount" validate:"gt=0"`
	DonationDate core.Date `json:"donation_date"`
	Description  string    `json:"description" validate:"max=255"`
	IsAnonymous  bool      `json:"is_anonymous"`
}

type salaryRequest struct {
	TeacherID   string    `json:"teacher_id" validate:"notblank"`
	PeriodMonth int       `json:"period_month" validate:"omitempty,min=1,max=12"`
	PeriodYear  int       `json:"period_year" validate:"omitempty,min=2000"`
	BaseAmount  Amount    `json:"base_amount" validate:"gte=0"`
	Bonus       Amount    `json:"bonus" validate:"gte=0"`
	Deductions  Amount    `json:"deductions" validate:"gte=0"`
	PaymentDate core.Date `json:"payment_date"`
	Status      string    `json:"status" validate:"omitempty,oneof=paid pending"`
	Notes       string    `json:"notes"`
}

// ledgerFilter reads the list filters shared by ledger collections.
func ledgerFilter(r *http.Request) (services.ListFilter, error) {
	year, month, err := yearMonth(r)
	if err != nil {
		return services.ListFilter{}, err
	}
	q := r.URL.Query()
	f := services.ListFilter{
		StudentID: q.Get("student_id"),
		TeacherID: q.Get("teacher_id"),
		Year:      year,
		Month:     month,
	}
	if t := q.Get("type"); t != "" {
		f.Types = []string{t}
	}
	return f, nil
}

func (s *Server) listLedger(w http.ResponseWriter, r *http.Request, collection string, f services.ListFilter) {
	recs, err := s.deps.Ledger.List(r.Context(), collection, f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.writePage(w, r, recs)
}

func (s *Server) handleListSPP(w http.ResponseWriter, r *http.Request) {
	f, err := ledgerFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	f.Types = []string{string(core.TransactionSPP)}
	s.listLedger(w, r, storage.Transactions, f)
}

func (s *Server) handleRecordSPP(w http.ResponseWriter, r *http.Request) {
	var req sppRequest
	if err := decodeValid(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	tx, err := s.deps.Ledger.RecordSPPPayment(r.Context(), actor(r), services.SPPPaymentInput{
		StudentID:     req.StudentID,
		Amount:        req.Amount.Int64(),
		Date:          req.PaymentDate,
		PaymentMethod: req.PaymentMethod,
		Description:   req.Description,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, displayRecord(tx))
}

func (s *Server) handleListSavings(w http.ResponseWriter, r *http.Request) {
	recs, err := s.deps.Ledger.SavingsAccounts(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.writePage(w, r, recs)
}

func (s *Server) moveSavings(w http.ResponseWriter, r *http.Request, withdraw bool) {
	var req savingsRequest
	if err := decodeValid(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	in := services.SavingsInput{
		StudentID:     req.StudentID,
		Amount:        req.Amount.Int64(),
		Date:          req.Date,
		PaymentMethod: req.PaymentMethod,
		Description:   req.Description,
	}
	move := s.deps.Ledger.Deposit
	if withdraw {
		move = s.deps.Ledger.Withdraw
	}
	res, err := move(r.Context(), actor(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"transaction":     displayRecord(res.Transaction),
		"balance":         res.Balance,
		"balance_display": core.FormatRupiah(res.Balance),
	})
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request)  { s.moveSavings(w, r, false) }
func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) { s.moveSavings(w, r, true) }

func (s *Server) handleListCash(w http.ResponseWriter, r *http.Request) {
	f, err := ledgerFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.listLedger(w, r, storage.CashTransactions, f)
}

func (s *Server) handleRecordCash(w http.ResponseWriter, r *http.Request) {
	var req cashRequest
	if err := decodeValid(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	tx, err := s.deps.Ledger.RecordCash(r.Context(), actor(r), services.CashInput{
		Type:        req.TransactionType,
		Amount:      req.Amount.Int64(),
		Date:        req.Date,
		Category:    req.Category,
		Description: req.Description,
		StudentID:   req.StudentID,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, displayRecord(tx))
}

func (s *Server) handleCashBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := s.deps.Ledger.CashBalance(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"balance":         balance,
		"balance_display": core.FormatRupiah(balance),
	})
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	f, err := ledgerFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if c := r.URL.Query().Get("category"); c != "" {
		f.Types = []string{c}
	}
	s.listLedger(w, r, storage.Expenses, f)
}

func (s *Server) handleRecordExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := decodeValid(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	e, err := s.deps.Ledger.RecordExpense(r.Context(), actor(r), core.Expense{
		ExpenseCategory: req.ExpenseCategory,
		Amount:          req.Amount.Int64(),
		ExpenseDate:     req.ExpenseDate,
		Description:     req.Description,
		VendorName:      req.VendorName,
		PaymentMethod:   req.PaymentMethod,
		TeacherID:       req.TeacherID,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, displayRecord(e))
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Ledger.DeleteExpense(r.Context(), actor(r), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListDonations(w http.ResponseWriter, r *http.Request) {
	f, err := ledgerFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.listLedger(w, r, storage.Donations, f)
}

func (s *Server) handleRecordDonation(w http.ResponseWriter, r *http.Request) {
	var req donationRequest
	if err := decodeValid(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	d, err := s.deps.Ledger.RecordDonation(r.Context(), actor(r), core.Donation{
		DonorName:    req.DonorName,
		DonationType: req.DonationType,
		Amount:       req.Amount.Int64(),
		DonationDate: req.DonationDate,
		Description:  req.Description,
		IsAnonymous:  req.IsAnonymous,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, displayRecord(d))
}

func (s *Server) handleDeleteDonation(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Ledger.DeleteDonation(r.Context(), actor(r), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListSalaries(w http.ResponseWriter, r *http.Request) {
	f, err := ledgerFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.listLedger(w, r, storage.SalaryPayments, f)
}

func (s *Server) handleRecordSalary(w http.ResponseWriter, r *http.Request) {
	var req salaryRequest
	if err := decodeValid(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := s.deps.Ledger.RecordSalaryPayment(r.Context(), actor(r), core.SalaryPayment{
		TeacherID:   req.TeacherID,
		PeriodMonth: req.PeriodMonth,
		PeriodYear:  req.PeriodYear,
		BaseAmount:  req.BaseAmount.Int64(),
		Bonus:       req.Bonus.Int64(),
		Deductions:  req.Deductions.Int64(),
		PaymentDate: req.PaymentDate,
		Status:      req.Status,
		Notes:       req.Notes,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, displayRecord(p))
}
