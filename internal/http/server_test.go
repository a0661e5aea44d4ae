package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"pesantren/internal/auth"
	"pesantren/internal/cache"
	"pesantren/internal/core"
	"pesantren/internal/log"
	"pesantren/internal/services"
	"pesantren/internal/storage/memory"
	"pesantren/internal/table"
)

const (
	testSecret        = "test-secret-that-is-long-enough-for-hs256"
	testAdminEmail    = "admin@pesantren.id"
	testAdminPassword = "rahasia-admin"
)

type testEnv struct {
	t         *testing.T
	server    *Server
	auth      *auth.Service
	directory *services.Directory
}

func newTestEnv(t *testing.T, writeLimit int) *testEnv {
	t.Helper()
	store := memory.New()
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	activities := services.NewActivities(store, quiet)
	reports := services.NewReports(store, cache.NewLRUCache[core.MonthlyReport](12, time.Hour), "Pondok Pesantren Muharrik", quiet)
	authSvc := auth.NewService(store, testSecret, time.Hour, quiet)
	directory := services.NewDirectory(store, activities, quiet)

	if _, err := authSvc.EnsureAdmin(context.Background(), testAdminEmail, testAdminPassword); err != nil {
		t.Fatalf("EnsureAdmin: %v", err)
	}

	srv := NewServer(":0", Deps{
		Auth:           authSvc,
		Ledger:         services.NewLedger(store, activities, nil, reports, quiet),
		Directory:      directory,
		Reports:        reports,
		Monitoring:     services.NewMonitoring(store, quiet),
		Dashboards:     services.NewDashboards(store),
		Activities:     activities,
		PageSizes:      PageSizes{Default: 10, Max: 50},
		WriteRateLimit: writeLimit,
		Logger:         log.New(log.Config{Output: io.Discard}),
	})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return &testEnv{t: t, server: srv, auth: authSvc, directory: directory}
}

func (e *testEnv) do(method, path, token string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			e.t.Fatal(err)
		}
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.server.Handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) login(email, password string) string {
	e.t.Helper()
	token, _, err := e.auth.SignIn(context.Background(), email, password)
	if err != nil {
		e.t.Fatalf("SignIn %s: %v", email, err)
	}
	return token
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, want, rec.Body.String())
	}
}

func (e *testEnv) createStudent(token, nim, name string) string {
	e.t.Helper()
	rec := e.do(http.MethodPost, "/api/students", token, map[string]any{"nim": nim, "full_name": name, "gender": "L", "class": "7A"})
	expectStatus(e.t, rec, http.StatusCreated)
	return decodeBody[core.Student](e.t, rec).ID
}

// santri registers a user and links it to studentID.
func (e *testEnv) santri(email, studentID string) string {
	e.t.Helper()
	p, err := e.auth.Register(context.Background(), email, "password-santri", "Santri")
	if err != nil {
		e.t.Fatalf("Register: %v", err)
	}
	if _, err := e.directory.UpdateRole(context.Background(), "admin", p.ID, core.RoleStudent, studentID, ""); err != nil {
		e.t.Fatalf("UpdateRole: %v", err)
	}
	return e.login(email, "password-santri")
}

func TestHealthAndSecurityHeaders(t *testing.T) {
	e := newTestEnv(t, 0)
	rec := e.do(http.MethodGet, "/healthz", "", nil)
	expectStatus(t, rec, http.StatusOK)
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatalf("missing X-Request-ID")
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("security headers not applied: %v", rec.Header())
	}
}

func TestAuthRequired(t *testing.T) {
	e := newTestEnv(t, 0)
	tests := []struct {
		name  string
		token string
	}{
		{"no token", ""},
		{"garbage token", "not-a-jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(http.MethodGet, "/api/students", tt.token, nil)
			expectStatus(t, rec, http.StatusUnauthorized)
		})
	}
}

func TestDeletedProfileRevokesToken(t *testing.T) {
	e := newTestEnv(t, 0)
	ctx := context.Background()
	p, err := e.auth.Register(ctx, "hapus@pesantren.id", "password-santri", "Santri")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	token := e.login("hapus@pesantren.id", "password-santri")

	rec := e.do(http.MethodGet, "/api/profiles", token, nil)
	expectStatus(t, rec, http.StatusForbidden)

	if err := e.directory.DeleteProfile(ctx, "admin", p.ID); err != nil {
		t.Fatalf("DeleteProfile: %v", err)
	}

	tests := []struct {
		method string
		path   string
		body   any
	}{
		{http.MethodGet, "/api/me", nil},
		{http.MethodGet, "/api/profiles", nil},
		{http.MethodGet, "/api/dashboard", nil},
		{http.MethodPost, "/api/donations", map[string]any{"donor_name": "X", "donation_type": "Infaq", "amount": 1000}},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := e.do(tt.method, tt.path, token, tt.body)
			expectStatus(t, rec, http.StatusUnauthorized)
		})
	}
}

func TestLoginAndMe(t *testing.T) {
	e := newTestEnv(t, 0)

	rec := e.do(http.MethodPost, "/auth/login", "", map[string]string{"email": testAdminEmail, "password": "wrong-password"})
	expectStatus(t, rec, http.StatusUnauthorized)

	rec = e.do(http.MethodPost, "/auth/login", "", map[string]string{"email": testAdminEmail, "password": testAdminPassword})
	expectStatus(t, rec, http.StatusOK)
	login := decodeBody[loginResponse](t, rec)
	if login.Token == "" || login.View != "admin" {
		t.Fatalf("login = %+v", login)
	}

	rec = e.do(http.MethodGet, "/api/me", login.Token, nil)
	expectStatus(t, rec, http.StatusOK)
	me := decodeBody[meResponse](t, rec)
	if me.View != "admin" || len(me.Modules) == 0 || me.Profile == nil || me.Profile.Role != core.RoleAdmin {
		t.Fatalf("me = %+v", me)
	}
}

func TestRegisterValidation(t *testing.T) {
	e := newTestEnv(t, 0)

	rec := e.do(http.MethodPost, "/auth/register", "", map[string]string{"email": "bukan-email", "password": "123", "full_name": " "})
	expectStatus(t, rec, http.StatusUnprocessableEntity)
	body := decodeBody[errorBody](t, rec)
	for _, field := range []string{"email", "password", "full_name"} {
		if _, ok := body.Fields[field]; !ok {
			t.Errorf("missing field error for %s: %+v", field, body.Fields)
		}
	}

	rec = e.do(http.MethodPost, "/auth/register", "", map[string]string{"email": "baru@pesantren.id", "password": "password-baru", "full_name": "Baru"})
	expectStatus(t, rec, http.StatusCreated)
	rec = e.do(http.MethodPost, "/auth/register", "", map[string]string{"email": "baru@pesantren.id", "password": "password-baru", "full_name": "Baru"})
	expectStatus(t, rec, http.StatusConflict)
}

func TestMalformedBody(t *testing.T) {
	e := newTestEnv(t, 0)
	token := e.login(testAdminEmail, testAdminPassword)

	req := httptest.NewRequest(http.MethodPost, "/api/students", strings.NewReader(`{"nim": "1", "unknown": true}`))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	e.server.Handler.ServeHTTP(rec, req)
	expectStatus(t, rec, http.StatusBadRequest)
}

func TestPermissionTable(t *testing.T) {
	e := newTestEnv(t, 0)
	admin := e.login(testAdminEmail, testAdminPassword)
	studentID := e.createStudent(admin, "2024001", "Ahmad")
	santri := e.santri("ahmad@pesantren.id", studentID)

	tests := []struct {
		name   string
		token  string
		method string
		path   string
		want   int
	}{
		{"admin lists students", admin, http.MethodGet, "/api/students", http.StatusOK},
		{"santri cannot list students", santri, http.MethodGet, "/api/students", http.StatusForbidden},
		{"santri cannot read reports", santri, http.MethodGet, "/api/reports/monthly?year=2024&month=3", http.StatusForbidden},
		{"santri reads own savings", santri, http.MethodGet, "/api/my/savings", http.StatusOK},
		{"admin has no own savings page", admin, http.MethodGet, "/api/my/savings", http.StatusForbidden},
		{"santri has no salary page", santri, http.MethodGet, "/api/my/salary", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(tt.method, tt.path, tt.token, nil)
			expectStatus(t, rec, tt.want)
		})
	}
}

func TestStudentCRUD(t *testing.T) {
	e := newTestEnv(t, 0)
	token := e.login(testAdminEmail, testAdminPassword)

	id := e.createStudent(token, "2024001", "Ahmad")
	rec := e.do(http.MethodPost, "/api/students", token, map[string]any{"nim": "2024001", "full_name": "Lain"})
	expectStatus(t, rec, http.StatusConflict)

	rec = e.do(http.MethodPut, "/api/students/"+id, token, map[string]any{"nim": "2024001", "full_name": "Ahmad Fauzi", "class": "8B"})
	expectStatus(t, rec, http.StatusOK)

	rec = e.do(http.MethodGet, "/api/students/"+id, token, nil)
	expectStatus(t, rec, http.StatusOK)
	if got := decodeBody[core.Student](t, rec); got.FullName != "Ahmad Fauzi" || got.Class != "8B" {
		t.Fatalf("student = %+v", got)
	}

	rec = e.do(http.MethodDelete, "/api/students/"+id, token, nil)
	expectStatus(t, rec, http.StatusNoContent)
	rec = e.do(http.MethodGet, "/api/students/"+id, token, nil)
	expectStatus(t, rec, http.StatusNotFound)
}

func TestListEnvelope(t *testing.T) {
	e := newTestEnv(t, 0)
	token := e.login(testAdminEmail, testAdminPassword)
	for i, name := range []string{"Cahya", "Ahmad", "Budi"} {
		e.createStudent(token, fmt.Sprintf("20240%02d", i), name)
	}

	rec := e.do(http.MethodGet, "/api/students?sort=full_name&page=1&per_page=2", token, nil)
	expectStatus(t, rec, http.StatusOK)
	page := decodeBody[table.Page[map[string]any]](t, rec)
	if page.TotalItems != 3 || page.TotalPages != 2 || len(page.Items) != 2 {
		t.Fatalf("page = %+v", page)
	}
	if page.Items[0]["full_name"] != "Ahmad" || page.Items[1]["full_name"] != "Budi" {
		t.Fatalf("items not sorted: %v", page.Items)
	}

	rec = e.do(http.MethodGet, "/api/students?dir=sideways", token, nil)
	expectStatus(t, rec, http.StatusBadRequest)
}

func TestSavingsFlow(t *testing.T) {
	e := newTestEnv(t, 0)
	token := e.login(testAdminEmail, testAdminPassword)
	id := e.createStudent(token, "2024001", "Ahmad")

	rec := e.do(http.MethodPost, "/api/savings/deposit", token, map[string]any{"student_id": id, "amount": "1.500.000"})
	expectStatus(t, rec, http.StatusCreated)
	body := decodeBody[map[string]any](t, rec)
	if body["balance_display"] != "Rp 1.500.000" {
		t.Fatalf("deposit response = %v", body)
	}

	rec = e.do(http.MethodPost, "/api/savings/withdraw", token, map[string]any{"student_id": id, "amount": 2000000})
	expectStatus(t, rec, http.StatusUnprocessableEntity)

	rec = e.do(http.MethodPost, "/api/savings/withdraw", token, map[string]any{"student_id": id, "amount": 0})
	expectStatus(t, rec, http.StatusUnprocessableEntity)

	for _, amount := range []string{"1,500", "12abc"} {
		rec = e.do(http.MethodPost, "/api/savings/deposit", token, map[string]any{"student_id": id, "amount": amount})
		expectStatus(t, rec, http.StatusUnprocessableEntity)
	}

	rec = e.do(http.MethodPost, "/api/savings/deposit", token, map[string]any{"student_id": "ghost", "amount": 1000})
	expectStatus(t, rec, http.StatusUnprocessableEntity)

	rec = e.do(http.MethodGet, "/api/savings", token, nil)
	expectStatus(t, rec, http.StatusOK)
	page := decodeBody[table.Page[map[string]any]](t, rec)
	if len(page.Items) != 1 || page.Items[0]["current_balance_display"] != "Rp 1.500.000" {
		t.Fatalf("accounts = %+v", page.Items)
	}
}

func TestSPPAndMonthlyReport(t *testing.T) {
	e := newTestEnv(t, 0)
	token := e.login(testAdminEmail, testAdminPassword)
	id := e.createStudent(token, "2024001", "Ahmad")

	rec := e.do(http.MethodPost, "/api/spp", token, map[string]any{"student_id": id, "amount": 350000, "payment_date": "2024-03-10", "payment_method": "Transfer Bank"})
	expectStatus(t, rec, http.StatusCreated)
	if body := decodeBody[map[string]any](t, rec); body["amount_display"] != "Rp 350.000" {
		t.Fatalf("spp response = %v", body)
	}

	rec = e.do(http.MethodPost, "/api/spp", token, map[string]any{"student_id": id, "amount": 1000, "payment_method": "Cek"})
	expectStatus(t, rec, http.StatusUnprocessableEntity)

	rec = e.do(http.MethodGet, "/api/spp?year=2024&month=3", token, nil)
	expectStatus(t, rec, http.StatusOK)
	if page := decodeBody[table.Page[map[string]any]](t, rec); page.TotalItems != 1 {
		t.Fatalf("spp list = %+v", page)
	}

	rec = e.do(http.MethodGet, "/api/reports/monthly?year=2024&month=3", token, nil)
	expectStatus(t, rec, http.StatusOK)
	report := decodeBody[map[string]any](t, rec)
	if report["total_spp"] != float64(350000) || report["period"] != "Maret 2024" {
		t.Fatalf("report = %v", report)
	}

	rec = e.do(http.MethodGet, "/api/reports/monthly?year=2024&month=13", token, nil)
	expectStatus(t, rec, http.StatusUnprocessableEntity)
	rec = e.do(http.MethodGet, "/api/reports/monthly?month=3", token, nil)
	expectStatus(t, rec, http.StatusBadRequest)

	rec = e.do(http.MethodPost, "/api/reports/monthly/refresh", token, map[string]any{"year": 2024, "month": 3})
	expectStatus(t, rec, http.StatusOK)
	rec = e.do(http.MethodGet, "/api/reports", token, nil)
	expectStatus(t, rec, http.StatusOK)
	if page := decodeBody[table.Page[map[string]any]](t, rec); page.TotalItems != 1 {
		t.Fatalf("snapshots = %+v", page)
	}
}

func TestDonationRequiresDonorUnlessAnonymous(t *testing.T) {
	e := newTestEnv(t, 0)
	token := e.login(testAdminEmail, testAdminPassword)

	rec := e.do(http.MethodPost, "/api/donations", token, map[string]any{"donation_type": "Infaq", "amount": 10000})
	expectStatus(t, rec, http.StatusUnprocessableEntity)
	if body := decodeBody[errorBody](t, rec); body.Fields["donor_name"] == "" {
		t.Fatalf("fields = %v", body.Fields)
	}

	rec = e.do(http.MethodPost, "/api/donations", token, map[string]any{"donation_type": "Infaq", "amount": 10000, "is_anonymous": true})
	expectStatus(t, rec, http.StatusCreated)
}

func TestDashboardByView(t *testing.T) {
	e := newTestEnv(t, 0)
	admin := e.login(testAdminEmail, testAdminPassword)
	id := e.createStudent(admin, "2024001", "Ahmad")
	santri := e.santri("ahmad@pesantren.id", id)

	rec := e.do(http.MethodGet, "/api/dashboard", admin, nil)
	expectStatus(t, rec, http.StatusOK)
	if body := decodeBody[map[string]any](t, rec); body["view"] != "admin" {
		t.Fatalf("admin dashboard = %v", body)
	}

	rec = e.do(http.MethodGet, "/api/dashboard", santri, nil)
	expectStatus(t, rec, http.StatusOK)
	body := decodeBody[struct {
		View string                   `json:"view"`
		Data services.StudentDashboard `json:"data"`
	}](t, rec)
	if body.View != "santri" || body.Data.Student.ID != id {
		t.Fatalf("santri dashboard = %+v", body)
	}
}

func TestWriteRateLimit(t *testing.T) {
	e := newTestEnv(t, 2)
	token := e.login(testAdminEmail, testAdminPassword)

	for i := 0; i < 2; i++ {
		e.createStudent(token, fmt.Sprintf("%d", i), "Santri")
	}
	rec := e.do(http.MethodPost, "/api/students", token, map[string]any{"nim": "9", "full_name": "Santri"})
	expectStatus(t, rec, http.StatusTooManyRequests)
	if rec.Header().Get("Retry-After") == "" {
		t.Fatalf("missing Retry-After")
	}
	// Reads are not limited.
	expectStatus(t, e.do(http.MethodGet, "/api/students", token, nil), http.StatusOK)
}

func TestCurrencyMask(t *testing.T) {
	e := newTestEnv(t, 0)
	token := e.login(testAdminEmail, testAdminPassword)

	rec := e.do(http.MethodPost, "/api/currency/mask", token, map[string]string{"value": "Rp 1500000x"})
	expectStatus(t, rec, http.StatusOK)
	body := decodeBody[map[string]any](t, rec)
	if body["masked"] != "1.500.000" || body["amount"] != float64(1500000) {
		t.Fatalf("mask = %v", body)
	}
}

func TestParseWindow(t *testing.T) {
	sizes := PageSizes{Default: 10, Max: 50}
	tests := []struct {
		query   string
		want    table.Window
		wantErr bool
	}{
		{"", table.Window{Page: 1, PerPage: 10}, false},
		{"sort=nim", table.Window{Page: 1, PerPage: 10, Sort: table.SortConfig{Key: "nim", Direction: table.Ascending}}, false},
		{"sort=nim&dir=desc&page=3&per_page=20", table.Window{Page: 3, PerPage: 20, Sort: table.SortConfig{Key: "nim", Direction: table.Descending}}, false},
		{"per_page=500", table.Window{Page: 1, PerPage: 50}, false},
		{"page=abc", table.Window{}, true},
		{"dir=up", table.Window{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/x?"+tt.query, nil)
			got, err := parseWindow(r, sizes)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Fatalf("window = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestAmountUnmarshal(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{`1500000`, 1500000, false},
		{`"1.500.000"`, 1500000, false},
		{`"250000"`, 250000, false},
		{`" 12.500 "`, 12500, false},
		{`""`, 0, false},
		{`null`, 0, false},
		{`"Rp 25.000"`, 0, true},
		{`"1,500"`, 0, true},
		{`"12abc"`, 0, true},
		{`"1.50.000"`, 0, true},
		{`"99999999999999999999"`, 0, true},
		{`1.5`, 0, true},
		{`true`, 0, true},
	}
	for _, tt := range tests {
		var a Amount
		err := json.Unmarshal([]byte(tt.in), &a)
		if (err != nil) != tt.wantErr {
			t.Fatalf("%s: err = %v", tt.in, err)
		}
		if !tt.wantErr && a.Int64() != tt.want {
			t.Fatalf("%s: got %d, want %d", tt.in, a, tt.want)
		}
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{core.ValidationErrors{{Field: "nim", Message: "is required"}}, http.StatusUnprocessableEntity},
		{fmt.Errorf("withdraw: %w", core.ErrInsufficientBalance), http.StatusUnprocessableEntity},
		{fmt.Errorf("%w: \"1,500\" is not a grouped number", core.ErrInvalidAmount), http.StatusUnprocessableEntity},
		{errBadJSON, http.StatusBadRequest},
		{table.ErrInvalidArgument, http.StatusBadRequest},
		{core.ErrInvalidCredentials, http.StatusUnauthorized},
		{core.ErrUnauthenticated, http.StatusUnauthorized},
		{core.ErrForbidden, http.StatusForbidden},
		{fmt.Errorf("student x: %w", core.ErrNotFound), http.StatusNotFound},
		{core.ErrConflict, http.StatusConflict},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got, _ := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
