package http

import (
	"net/http"
	"time"

	"pesantren/internal/core"
)

type periodRequest struct {
	Year  int `json:"year" validate:"required,min=1900,max=9999"`
	Month int `json:"month" validate:"omitempty,min=1,max=12"`
}

type reportResponse struct {
	core.MonthlyReport
	MonthName   string            `json:"month_name"`
	Period      string            `json:"period"`
	Institution string            `json:"institution"`
	Display     map[string]string `json:"display"`
}

// currentYearMonth fills missing query values with the current month.
func currentYearMonth(r *http.Request) (int, int, error) {
	year, month, err := yearMonth(r)
	if err != nil {
		return 0, 0, err
	}
	now := time.Now()
	if year == 0 {
		year = now.Year()
	}
	if month == 0 {
		month = int(now.Month())
	}
	return year, month, nil
}

func (s *Server) writeReport(w http.ResponseWriter, r *http.Request, year, month int, refresh bool) {
	get := s.deps.Reports.Monthly
	if refresh {
		get = s.deps.Reports.Refresh
	}
	rep, err := get(r.Context(), year, month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reportResponse{
		MonthlyReport: rep.MonthlyReport,
		MonthName:     rep.MonthName,
		Period:        rep.Period(),
		Institution:   rep.Institution,
		Display: map[string]string{
			"total_spp":                 core.FormatRupiah(rep.TotalSPP),
			"total_donations":           core.FormatRupiah(rep.TotalDonations),
			"total_expenses":            core.FormatRupiah(rep.TotalExpenses),
			"total_savings_deposits":    core.FormatRupiah(rep.TotalSavingsDeposits),
			"total_savings_withdrawals": core.FormatRupiah(rep.TotalSavingsWithdrawals),
			"total_savings":             core.FormatRupiah(rep.TotalSavings),
			"net_balance":               core.FormatRupiah(rep.NetBalance),
		},
	})
}

func (s *Server) handleMonthlyReport(w http.ResponseWriter, r *http.Request) {
	year, month, err := currentYearMonth(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.writeReport(w, r, year, month, false)
}

func (s *Server) handleRefreshReport(w http.ResponseWriter, r *http.Request) {
	var req periodRequest
	if err := decodeValid(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Month == 0 {
		writeError(w, r, core.ValidationError{Field: "month", Message: "is required"})
		return
	}
	s.writeReport(w, r, req.Year, req.Month, true)
}

func (s *Server) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	recs, err := s.deps.Reports.Snapshots(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.writePage(w, r, recs)
}

func (s *Server) handleMonitoringGrid(w http.ResponseWriter, r *http.Request) {
	year, _, err := currentYearMonth(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rows, err := s.deps.Monitoring.Grid(r.Context(), year)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"year": year, "rows": rows})
}

func (s *Server) handleMonitoringSync(w http.ResponseWriter, r *http.Request) {
	var req periodRequest
	if err := decodeValid(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	n, err := s.deps.Monitoring.Sync(r.Context(), req.Year)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"year": req.Year, "rows": n})
}
