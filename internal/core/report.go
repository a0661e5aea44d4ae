package core

import (
	"fmt"
	"strconv"
	"time"
)

// MonthlyReport is the financial summary of one calendar month.
type MonthlyReport struct {
	ID                      string    `json:"id"`
	Year                    int       `json:"year"`
	Month                   int       `json:"month"`
	TotalSPP                int64     `json:"total_spp"`
	TotalDonations          int64     `json:"total_donations"`
	TotalExpenses           int64     `json:"total_expenses"`
	TotalSavingsDeposits    int64     `json:"total_savings_deposits"`
	TotalSavingsWithdrawals int64     `json:"total_savings_withdrawals"`
	TotalSavings            int64     `json:"total_savings"`
	ActiveStudents          int       `json:"active_students"`
	NetBalance              int64     `json:"net_balance"`
	GeneratedAt             time.Time `json:"generated_at"`
}

// Income is SPP plus donations.
func (r MonthlyReport) Income() int64 {
	return r.TotalSPP + r.TotalDonations
}

// Net recomputes the month balance from its totals.
func (r MonthlyReport) Net() int64 {
	return r.Income() - r.TotalExpenses
}

// Period formats the report month as "Januari 2024".
func (r MonthlyReport) Period() string {
	return MonthName(r.Month) + " " + strconv.Itoa(r.Year)
}

// Key identifies the report month as "2024-01".
func (r MonthlyReport) Key() string {
	return PeriodKey(r.Year, r.Month)
}

// PeriodKey formats year and month as "YYYY-MM".
func PeriodKey(year, month int) string {
	return fmt.Sprintf("%04d-%02d", year, month)
}

var monthNames = [...]string{
	"Januari", "Februari", "Maret", "April", "Mei", "Juni",
	"Juli", "Agustus", "September", "Oktober", "November", "Desember",
}

// MonthName returns the Indonesian name of month 1-12, or "" when out of range.
func MonthName(month int) string {
	if month < 1 || month > 12 {
		return ""
	}
	return monthNames[month-1]
}

// ValidateMonth checks a year/month pair.
func ValidateMonth(year, month int) error {
	if month < 1 || month > 12 || year < 1900 || year > 9999 {
		return ErrInvalidMonth
	}
	return nil
}

// PaymentCell is one month of a student's payment monitoring row.
type PaymentCell struct {
	Month    int  `json:"month"`
	SPPPaid  bool `json:"spp_paid"`
	CashPaid bool `json:"cash_paid"`
}

// PaymentRow is a student's payment status for every month of a year.
type PaymentRow struct {
	StudentID string          `json:"student_id"`
	NIM       string          `json:"nim"`
	FullName  string          `json:"full_name"`
	Class     string          `json:"class"`
	Months    [12]PaymentCell `json:"months"`
}

// PaidMonths counts months with SPP paid.
func (r PaymentRow) PaidMonths() int {
	n := 0
	for _, c := range r.Months {
		if c.SPPPaid {
			n++
		}
	}
	return n
}
