package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"pesantren/internal/core"
	"pesantren/internal/storage"
	"pesantren/internal/table"
)

// moneyFields get a "<field>_display" companion in list responses.
var moneyFields = []string{
	"amount", "total_amount", "base_amount", "bonus", "deductions",
	"current_balance", "savings_goal", "base_salary", "hourly_rate",
}

// PageSizes bounds the per_page parameter.
type PageSizes struct {
	Default int
	Max     int
}

// parseWindow reads sort, dir, page and per_page. A missing per_page uses
// the default; larger values are capped at the maximum.
func parseWindow(r *http.Request, sizes PageSizes) (table.Window, error) {
	q := r.URL.Query()
	dir, err := table.ParseDirection(q.Get("dir"))
	if err != nil {
		return table.Window{}, err
	}
	sortKey := strings.TrimSpace(q.Get("sort"))
	if sortKey != "" && dir == table.None {
		dir = table.Ascending
	}

	w := table.Window{Page: 1, PerPage: sizes.Default, Sort: table.SortConfig{Key: sortKey, Direction: dir}}
	if v := strings.TrimSpace(q.Get("page")); v != "" {
		if w.Page, err = strconv.Atoi(v); err != nil {
			return table.Window{}, fmt.Errorf("%w: page %q", errInvalidQuery, v)
		}
	}
	if v := strings.TrimSpace(q.Get("per_page")); v != "" {
		if w.PerPage, err = strconv.Atoi(v); err != nil {
			return table.Window{}, fmt.Errorf("%w: per_page %q", errInvalidQuery, v)
		}
	}
	if sizes.Max > 0 && w.PerPage > sizes.Max {
		w.PerPage = sizes.Max
	}
	return w, nil
}

// int64Value reads a numeric record value whatever its decoded type.
func int64Value(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	}
	return 0, false
}

// withDisplay copies rec adding the Rupiah display form of its amounts.
func withDisplay(rec table.Record) table.Record {
	out := make(table.Record, len(rec)+2)
	for k, v := range rec {
		out[k] = v
	}
	for _, f := range moneyFields {
		if n, ok := int64Value(rec[f]); ok {
			out[f+"_display"] = core.FormatRupiah(n)
		}
	}
	return out
}

// displayRecord renders a written entity with its display amounts.
func displayRecord(v any) any {
	rec, err := storage.Encode(v)
	if err != nil {
		return v
	}
	return withDisplay(rec)
}

// writePage sorts and paginates recs by the request window.
func (s *Server) writePage(w http.ResponseWriter, r *http.Request, recs []table.Record) {
	win, err := parseWindow(r, s.pageSizes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	page, err := table.Apply(recs, win)
	if err != nil {
		writeError(w, r, err)
		return
	}
	for i, rec := range page.Items {
		page.Items[i] = withDisplay(rec)
	}
	writeJSON(w, http.StatusOK, page)
}

// yearMonth reads the optional year and month query parameters.
func yearMonth(r *http.Request) (year, month int, err error) {
	q := r.URL.Query()
	if v := strings.TrimSpace(q.Get("year")); v != "" {
		if year, err = strconv.Atoi(v); err != nil {
			return 0, 0, fmt.Errorf("%w: year %q", errInvalidQuery, v)
		}
	}
	if v := strings.TrimSpace(q.Get("month")); v != "" {
		if month, err = strconv.Atoi(v); err != nil {
			return 0, 0, fmt.Errorf("%w: month %q", errInvalidQuery, v)
		}
		if year == 0 {
			return 0, 0, fmt.Errorf("%w: month needs year", errInvalidQuery)
		}
	}
	return year, month, nil
}
