package http

import (
	"net/http"

	"pesantren/internal/access"
	"pesantren/internal/core"
	"pesantren/internal/services"
	"pesantren/internal/storage"
)

// errNoLink is returned when a santri or guru profile has no directory
// entry linked yet.
var errNoLink = core.ValidationError{Field: "profile", Message: "is not linked to a directory entry"}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())
	var (
		data any
		err  error
	)
	switch v := p.View.(type) {
	case access.AdminView:
		data, err = s.deps.Dashboards.Admin(r.Context())
	case access.CommitteeView:
		data, err = s.deps.Dashboards.Committee(r.Context())
	case access.StudentView:
		if v.StudentID == "" {
			err = errNoLink
			break
		}
		data, err = s.deps.Dashboards.Student(r.Context(), v.StudentID)
	case access.TeacherView:
		if v.TeacherID == "" {
			err = errNoLink
			break
		}
		data, err = s.deps.Dashboards.Teacher(r.Context(), v.TeacherID)
	default:
		err = core.ErrUnauthenticated
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"view": p.View.Name(), "data": data})
}

// linkedStudent returns the student id of a santri caller.
func linkedStudent(r *http.Request) (string, error) {
	p, _ := principalFrom(r.Context())
	v, ok := p.View.(access.StudentView)
	if !ok {
		return "", core.ErrForbidden
	}
	if v.StudentID == "" {
		return "", errNoLink
	}
	return v.StudentID, nil
}

// linkedTeacher returns the teacher id of a guru caller.
func linkedTeacher(r *http.Request) (string, error) {
	p, _ := principalFrom(r.Context())
	v, ok := p.View.(access.TeacherView)
	if !ok {
		return "", core.ErrForbidden
	}
	if v.TeacherID == "" {
		return "", errNoLink
	}
	return v.TeacherID, nil
}

func (s *Server) handleMySavings(w http.ResponseWriter, r *http.Request) {
	studentID, err := linkedStudent(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	account, err := s.deps.Ledger.SavingsAccount(r.Context(), studentID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	recs, err := s.deps.Ledger.List(r.Context(), storage.Transactions, services.ListFilter{
		StudentID: studentID,
		Types:     []string{string(core.TransactionSavingsDeposit), string(core.TransactionSavingsWithdrawal)},
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	items := make([]any, 0, len(recs))
	for _, rec := range recs {
		items = append(items, withDisplay(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"account":      displayRecord(account),
		"transactions": items,
	})
}

func (s *Server) handleMyPayments(w http.ResponseWriter, r *http.Request) {
	studentID, err := linkedStudent(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	year, month, err := yearMonth(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.listLedger(w, r, storage.Transactions, services.ListFilter{
		StudentID: studentID,
		Types:     []string{string(core.TransactionSPP)},
		Year:      year,
		Month:     month,
	})
}

func (s *Server) handleMySalary(w http.ResponseWriter, r *http.Request) {
	teacherID, err := linkedTeacher(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	year, month, err := yearMonth(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.listLedger(w, r, storage.SalaryPayments, services.ListFilter{TeacherID: teacherID, Year: year, Month: month})
}

func (s *Server) handleMyAssignments(w http.ResponseWriter, r *http.Request) {
	teacherID, err := linkedTeacher(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	recs, err := s.deps.Directory.Assignments(r.Context(), teacherID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.writePage(w, r, recs)
}
