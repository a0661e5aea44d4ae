package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire and storage layout of calendar dates.
const DateLayout = "2006-01-02"

type (
	// Date is a calendar day in UTC. The zero Date encodes as JSON null.
	Date struct {
		time.Time
	}

	Student struct {
		ID             string    `json:"id"`
		NIM            string    `json:"nim"`
		FullName       string    `json:"full_name"`
		Gender         string    `json:"gender"`
		DateOfBirth    Date      `json:"date_of_birth"`
		ParentName     string    `json:"parent_name"`
		ParentPhone    string    `json:"parent_phone"`
		ParentAddress  string    `json:"parent_address"`
		RoomAssignment string    `json:"room_assignment"`
		Class          string    `json:"class"`
		Status         string    `json:"status"`
		EnrollmentDate Date      `json:"enrollment_date"`
		CreatedAt      time.Time `json:"created_at"`
		UpdatedAt      time.Time `json:"updated_at"`
	}

	Teacher struct {
		ID             string    `json:"id"`
		NIP            string    `json:"nip"`
		FullName       string    `json:"full_name"`
		Gender         string    `json:"gender"`
		Phone          string    `json:"phone"`
		Address        string    `json:"address"`
		Qualification  string    `json:"qualification"`
		Specialization string    `json:"specialization"`
		BaseSalary     int64     `json:"base_salary"`
		HourlyRate     int64     `json:"hourly_rate"`
		Status         string    `json:"status"`
		HireDate       Date      `json:"hire_date"`
		CreatedAt      time.Time `json:"created_at"`
		UpdatedAt      time.Time `json:"updated_at"`
	}

	TeacherAssignment struct {
		ID           string    `json:"id"`
		TeacherID    string    `json:"teacher_id"`
		Subject      string    `json:"subject"`
		Class        string    `json:"class"`
		HoursPerWeek int64     `json:"hours_per_week"`
		AcademicYear string    `json:"academic_year"`
		CreatedAt    time.Time `json:"created_at"`
	}

	SavingsAccount struct {
		ID              string    `json:"id"`
		StudentID       string    `json:"student_id"`
		AccountType     string    `json:"account_type"`
		CurrentBalance  int64     `json:"current_balance"`
		SavingsGoal     int64     `json:"savings_goal"`
		GoalDescription string    `json:"goal_description"`
		CreatedAt       time.Time `json:"created_at"`
		UpdatedAt       time.Time `json:"updated_at"`
	}

	// Transaction is a student-linked ledger entry: an SPP payment or a
	// savings movement.
	Transaction struct {
		ID               string          `json:"id"`
		TransactionType  TransactionType `json:"transaction_type"`
		StudentID        string          `json:"student_id"`
		SavingsAccountID string          `json:"savings_account_id"`
		Amount           int64           `json:"amount"`
		TransactionDate  Date            `json:"transaction_date"`
		Category         string          `json:"category"`
		Description      string          `json:"description"`
		PaymentMethod    string          `json:"payment_method"`
		ReceiptNumber    string          `json:"receipt_number"`
		ProcessedBy      string          `json:"processed_by"`
		Status           string          `json:"status"`
		CreatedAt        time.Time       `json:"created_at"`
	}

	Expense struct {
		ID              string    `json:"id"`
		ExpenseCategory string    `json:"expense_category"`
		Amount          int64     `json:"amount"`
		ExpenseDate     Date      `json:"expense_date"`
		Description     string    `json:"description"`
		VendorName      string    `json:"vendor_name"`
		PaymentMethod   string    `json:"payment_method"`
		ApprovalStatus  string    `json:"approval_status"`
		TeacherID       string    `json:"teacher_id"`
		CreatedBy       string    `json:"created_by"`
		CreatedAt       time.Time `json:"created_at"`
		UpdatedAt       time.Time `json:"updated_at"`
	}

	Donation struct {
		ID           string    `json:"id"`
		DonorName    string    `json:"donor_name"`
		DonationType string    `json:"donation_type"`
		Amount       int64     `json:"amount"`
		DonationDate Date      `json:"donation_date"`
		Description  string    `json:"description"`
		IsAnonymous  bool      `json:"is_anonymous"`
		CreatedBy    string    `json:"created_by"`
		CreatedAt    time.Time `json:"created_at"`
	}

	CashTransaction struct {
		ID              string    `json:"id"`
		TransactionType CashType  `json:"transaction_type"`
		Amount          int64     `json:"amount"`
		TransactionDate Date      `json:"transaction_date"`
		Category        string    `json:"category"`
		Description     string    `json:"description"`
		StudentID       string    `json:"student_id"`
		CreatedBy       string    `json:"created_by"`
		CreatedAt       time.Time `json:"created_at"`
	}

	SalaryPayment struct {
		ID          string    `json:"id"`
		TeacherID   string    `json:"teacher_id"`
		PeriodMonth int       `json:"period_month"`
		PeriodYear  int       `json:"period_year"`
		BaseAmount  int64     `json:"base_amount"`
		Bonus       int64     `json:"bonus"`
		Deductions  int64     `json:"deductions"`
		TotalAmount int64     `json:"total_amount"`
		PaymentDate Date      `json:"payment_date"`
		Status      string    `json:"status"`
		Notes       string    `json:"notes"`
		CreatedAt   time.Time `json:"created_at"`
	}

	// Profile binds an authenticated user to a role and, for students and
	// teachers, to the directory entry they may see.
	Profile struct {
		ID        string    `json:"id"`
		Email     string    `json:"email"`
		FullName  string    `json:"full_name"`
		Role      Role      `json:"role"`
		StudentID string    `json:"student_id"`
		TeacherID string    `json:"teacher_id"`
		CreatedAt time.Time `json:"created_at"`
		UpdatedAt time.Time `json:"updated_at"`
	}

	User struct {
		ID           string    `json:"id"`
		Email        string    `json:"email"`
		PasswordHash string    `json:"password_hash"`
		CreatedAt    time.Time `json:"created_at"`
	}

	UserActivity struct {
		ID           string    `json:"id"`
		UserID       string    `json:"user_id"`
		ActivityType string    `json:"activity_type"`
		Description  string    `json:"description"`
		Metadata     string    `json:"metadata"`
		CreatedAt    time.Time `json:"created_at"`
	}

	PaymentStatus struct {
		ID        string    `json:"id"`
		StudentID string    `json:"student_id"`
		Year      int       `json:"year"`
		Month     int       `json:"month"`
		SPPPaid   bool      `json:"spp_paid"`
		CashPaid  bool      `json:"cash_paid"`
		UpdatedAt time.Time `json:"updated_at"`
	}
)

type TransactionType string

const (
	TransactionSPP               TransactionType = "spp"
	TransactionSavingsDeposit    TransactionType = "savings_deposit"
	TransactionSavingsWithdrawal TransactionType = "savings_withdrawal"
)

type CashType string

const (
	CashReceipt      CashType = "receipt"
	CashDisbursement CashType = "disbursement"
)

const (
	StatusActive    = "active"
	StatusInactive  = "inactive"
	StatusGraduated = "graduated"
	StatusCompleted = "completed"
	StatusApproved  = "approved"
	StatusPending   = "pending"
	StatusPaid      = "paid"

	AccountRegular = "regular"

	// CategorySalary is the expense category that must name a teacher.
	CategorySalary = "Gaji Guru"

	// AnonymousDonor replaces an empty donor name on anonymous donations.
	AnonymousDonor = "Hamba Allah"
)

var (
	ExpenseCategories = []string{"Program", "Operasional", "Administrasi", "Pemeliharaan", "ATK", "Transportasi", CategorySalary}
	DonationTypes     = []string{"Zakat", "Infaq", "Sedekah", "Waqf"}
	PaymentMethods    = []string{"Tunai", "Transfer Bank", "E-Wallet"}
	Genders           = []string{"L", "P"}
	StudentStatuses   = []string{StatusActive, StatusInactive, StatusGraduated}
	TeacherStatuses   = []string{StatusActive, StatusInactive}
)

// NewDate creates a Date from year, month, day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

// Today returns the current day in UTC.
func Today() Date {
	now := time.Now().UTC()
	return NewDate(now.Year(), int(now.Month()), now.Day())
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// Month returns the month as 1-12.
func (d Date) Month() int {
	return int(d.Time.Month())
}

// InMonth reports whether d falls in the given year and month.
func (d Date) InMonth(year, month int) bool {
	return !d.IsZero() && d.Year() == year && d.Month() == month
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(DateLayout))
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidDate, data)
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	// Timestamps written by other stores carry a time part; keep the day.
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MonthRange returns the first day of the month and the first day of the
// following month, as YYYY-MM-DD strings suitable for range predicates.
func MonthRange(year, month int) (from, until string) {
	start := NewDate(year, month, 1)
	return start.String(), Date{Time: start.AddDate(0, 1, 0)}.String()
}

// Now returns the current UTC time truncated to the second, so stored
// timestamps order lexicographically.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

func (s Student) Validate() error {
	var errs ValidationErrors
	if strings.TrimSpace(s.NIM) == "" {
		errs.Add("nim", "is required")
	}
	if strings.TrimSpace(s.FullName) == "" {
		errs.Add("full_name", "is required")
	}
	if s.Gender != "" && !oneOf(s.Gender, Genders) {
		errs.Add("gender", "must be L or P")
	}
	if !oneOf(s.Status, StudentStatuses) {
		errs.Add("status", "must be one of "+strings.Join(StudentStatuses, ", "))
	}
	return errs.Err()
}

func (t Teacher) Validate() error {
	var errs ValidationErrors
	if strings.TrimSpace(t.NIP) == "" {
		errs.Add("nip", "is required")
	}
	if strings.TrimSpace(t.FullName) == "" {
		errs.Add("full_name", "is required")
	}
	if t.Gender != "" && !oneOf(t.Gender, Genders) {
		errs.Add("gender", "must be L or P")
	}
	if t.BaseSalary < 0 {
		errs.Add("base_salary", "must not be negative")
	}
	if t.HourlyRate < 0 {
		errs.Add("hourly_rate", "must not be negative")
	}
	if !oneOf(t.Status, TeacherStatuses) {
		errs.Add("status", "must be one of "+strings.Join(TeacherStatuses, ", "))
	}
	return errs.Err()
}

func (a TeacherAssignment) Validate() error {
	var errs ValidationErrors
	if a.TeacherID == "" {
		errs.Add("teacher_id", "is required")
	}
	if strings.TrimSpace(a.Subject) == "" {
		errs.Add("subject", "is required")
	}
	if a.HoursPerWeek < 0 {
		errs.Add("hours_per_week", "must not be negative")
	}
	return errs.Err()
}

func (t Transaction) Validate() error {
	var errs ValidationErrors
	switch t.TransactionType {
	case TransactionSPP, TransactionSavingsDeposit, TransactionSavingsWithdrawal:
	default:
		errs.Add("transaction_type", "is not supported")
	}
	if t.StudentID == "" {
		errs.Add("student_id", "is required")
	}
	if t.Amount <= 0 {
		errs.Add("amount", "must be greater than zero")
	}
	if t.TransactionDate.IsZero() {
		errs.Add("transaction_date", "is required")
	}
	return errs.Err()
}

func (e Expense) Validate() error {
	var errs ValidationErrors
	if !oneOf(e.ExpenseCategory, ExpenseCategories) {
		errs.Add("expense_category", "must be one of "+strings.Join(ExpenseCategories, ", "))
	}
	if e.ExpenseCategory == CategorySalary && e.TeacherID == "" {
		errs.Add("teacher_id", "is required for teacher salary expenses")
	}
	if e.Amount <= 0 {
		errs.Add("amount", "must be greater than zero")
	}
	if e.ExpenseDate.IsZero() {
		errs.Add("expense_date", "is required")
	}
	if len(e.Description) > 500 {
		errs.Add("description", "must be at most 500 characters")
	}
	return errs.Err()
}

func (d Donation) Validate() error {
	var errs ValidationErrors
	if !oneOf(d.DonationType, DonationTypes) {
		errs.Add("donation_type", "must be one of "+strings.Join(DonationTypes, ", "))
	}
	if !d.IsAnonymous && strings.TrimSpace(d.DonorName) == "" {
		errs.Add("donor_name", "is required unless the donation is anonymous")
	}
	if d.Amount <= 0 {
		errs.Add("amount", "must be greater than zero")
	}
	if d.DonationDate.IsZero() {
		errs.Add("donation_date", "is required")
	}
	return errs.Err()
}

func (c CashTransaction) Validate() error {
	var errs ValidationErrors
	if c.TransactionType != CashReceipt && c.TransactionType != CashDisbursement {
		errs.Add("transaction_type", "must be receipt or disbursement")
	}
	if c.Amount <= 0 {
		errs.Add("amount", "must be greater than zero")
	}
	if c.TransactionDate.IsZero() {
		errs.Add("transaction_date", "is required")
	}
	if strings.TrimSpace(c.Description) == "" {
		errs.Add("description", "is required")
	}
	return errs.Err()
}

func (p SalaryPayment) Validate() error {
	var errs ValidationErrors
	if p.TeacherID == "" {
		errs.Add("teacher_id", "is required")
	}
	if p.PeriodMonth < 1 || p.PeriodMonth > 12 {
		errs.Add("period_month", "must be between 1 and 12")
	}
	if p.PeriodYear < 2000 {
		errs.Add("period_year", "is out of range")
	}
	if p.BaseAmount < 0 || p.Bonus < 0 || p.Deductions < 0 {
		errs.Add("base_amount", "amounts must not be negative")
	}
	if p.BaseAmount+p.Bonus-p.Deductions < 0 {
		errs.Add("deductions", "exceed the payable amount")
	}
	if p.PaymentDate.IsZero() {
		errs.Add("payment_date", "is required")
	}
	return errs.Err()
}
