// Package http serves the JSON API of the finance administration.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"pesantren/internal/access"
	"pesantren/internal/auth"
	"pesantren/internal/log"
	"pesantren/internal/middleware/ratelimit"
	"pesantren/internal/middleware/security"
	"pesantren/internal/services"
)

// Deps are the collaborators behind the routes.
type Deps struct {
	Auth       *auth.Service
	Ledger     *services.Ledger
	Directory  *services.Directory
	Reports    *services.Reports
	Monitoring *services.Monitoring
	Dashboards *services.Dashboards
	Activities *services.Activities

	// Ready reports whether backing services can take traffic.
	Ready func(ctx context.Context) error

	PageSizes      PageSizes
	LoginRateLimit int
	WriteRateLimit int
	Logger         *log.Logger
}

type Server struct {
	http.Server

	deps      Deps
	pageSizes PageSizes
	logger    *log.Logger
	detector  *security.Detector

	loginLimiter *ratelimit.Limiter
	writeLimiter *ratelimit.Limiter
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	if deps.PageSizes.Default <= 0 {
		deps.PageSizes.Default = 10
	}

	s := &Server{
		deps:         deps,
		pageSizes:    deps.PageSizes,
		logger:       logger.WithComponent(log.ComponentHTTP),
		detector:     security.NewDetector(logger.Logger),
		loginLimiter: ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: deps.LoginRateLimit}),
		writeLimiter: ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: deps.WriteRateLimit}),
	}

	mux := http.NewServeMux()
	s.routes(mux)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.middleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// middleware wraps the mux; the first entry runs outermost.
func (s *Server) middleware(h http.Handler) http.Handler {
	chain := []func(http.Handler) http.Handler{
		log.Middleware(s.logger),
		s.requestID,
		s.logRequests,
		security.Headers(security.DefaultHeadersConfig()),
		s.detector.Middleware,
	}
	for i := len(chain) - 1; i >= 0; i-- {
		h = chain[i](h)
	}
	return h
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	login := s.loginLimiter.Middleware(s.detector.ClientIP, s.rateLimited)
	mux.Handle("POST /auth/register", login(http.HandlerFunc(s.handleRegister)))
	mux.Handle("POST /auth/login", login(http.HandlerFunc(s.handleLogin)))

	mux.Handle("GET /api/me", s.authed(s.handleMe))
	mux.Handle("GET /api/dashboard", s.guard(access.ModuleDashboard, s.handleDashboard))
	mux.Handle("POST /api/currency/mask", s.guard(access.ModuleDashboard, s.handleCurrencyMask))
	mux.Handle("GET /api/activities", s.guard(access.ModuleMyProfile, s.handleActivities))

	mux.Handle("GET /api/students", s.guard(access.ModuleStudents, s.handleListStudents))
	mux.Handle("POST /api/students", s.guard(access.ModuleStudents, s.handleCreateStudent))
	mux.Handle("GET /api/students/{id}", s.guard(access.ModuleStudents, s.handleGetStudent))
	mux.Handle("PUT /api/students/{id}", s.guard(access.ModuleStudents, s.handleUpdateStudent))
	mux.Handle("DELETE /api/students/{id}", s.guard(access.ModuleStudents, s.handleDeleteStudent))

	mux.Handle("GET /api/teachers", s.guard(access.ModuleTeachers, s.handleListTeachers))
	mux.Handle("POST /api/teachers", s.guard(access.ModuleTeachers, s.handleCreateTeacher))
	mux.Handle("GET /api/teachers/{id}", s.guard(access.ModuleTeachers, s.handleGetTeacher))
	mux.Handle("PUT /api/teachers/{id}", s.guard(access.ModuleTeachers, s.handleUpdateTeacher))
	mux.Handle("DELETE /api/teachers/{id}", s.guard(access.ModuleTeachers, s.handleDeleteTeacher))
	mux.Handle("GET /api/teachers/{id}/assignments", s.guard(access.ModuleTeachers, s.handleListAssignments))
	mux.Handle("POST /api/teachers/{id}/assignments", s.guard(access.ModuleTeachers, s.handleCreateAssignment))

	mux.Handle("GET /api/spp", s.guard(access.ModuleSPP, s.handleListSPP))
	mux.Handle("POST /api/spp", s.guard(access.ModuleSPP, s.handleRecordSPP))

	mux.Handle("GET /api/savings", s.guard(access.ModuleSavings, s.handleListSavings))
	mux.Handle("POST /api/savings/deposit", s.guard(access.ModuleSavings, s.handleDeposit))
	mux.Handle("POST /api/savings/withdraw", s.guard(access.ModuleSavings, s.handleWithdraw))

	mux.Handle("GET /api/cash", s.guard(access.ModuleCash, s.handleListCash))
	mux.Handle("POST /api/cash", s.guard(access.ModuleCash, s.handleRecordCash))
	mux.Handle("GET /api/cash/balance", s.guard(access.ModuleCash, s.handleCashBalance))

	mux.Handle("GET /api/expenses", s.guard(access.ModuleExpenses, s.handleListExpenses))
	mux.Handle("POST /api/expenses", s.guard(access.ModuleExpenses, s.handleRecordExpense))
	mux.Handle("DELETE /api/expenses/{id}", s.guard(access.ModuleExpenses, s.handleDeleteExpense))

	mux.Handle("GET /api/donations", s.guard(access.ModuleDonations, s.handleListDonations))
	mux.Handle("POST /api/donations", s.guard(access.ModuleDonations, s.handleRecordDonation))
	mux.Handle("DELETE /api/donations/{id}", s.guard(access.ModuleDonations, s.handleDeleteDonation))

	mux.Handle("GET /api/salaries", s.guard(access.ModuleSalaries, s.handleListSalaries))
	mux.Handle("POST /api/salaries", s.guard(access.ModuleSalaries, s.handleRecordSalary))

	mux.Handle("GET /api/reports", s.guard(access.ModuleReports, s.handleListSnapshots))
	mux.Handle("GET /api/reports/monthly", s.guard(access.ModuleReports, s.handleMonthlyReport))
	mux.Handle("POST /api/reports/monthly/refresh", s.guard(access.ModuleReports, s.handleRefreshReport))

	mux.Handle("GET /api/monitoring", s.guard(access.ModuleMonitoring, s.handleMonitoringGrid))
	mux.Handle("POST /api/monitoring/sync", s.guard(access.ModuleMonitoring, s.handleMonitoringSync))

	mux.Handle("GET /api/profiles", s.guard(access.ModuleRoles, s.handleListProfiles))
	mux.Handle("PUT /api/profiles/{id}", s.guard(access.ModuleRoles, s.handleUpdateProfile))
	mux.Handle("DELETE /api/profiles/{id}", s.guard(access.ModuleRoles, s.handleDeleteProfile))

	mux.Handle("GET /api/my/savings", s.guard(access.ModuleMySavings, s.handleMySavings))
	mux.Handle("GET /api/my/payments", s.guard(access.ModuleMyPayments, s.handleMyPayments))
	mux.Handle("GET /api/my/salary", s.guard(access.ModuleMySalary, s.handleMySalary))
	mux.Handle("GET /api/my/assignments", s.guard(access.ModuleMyAssignments, s.handleMyAssignments))
}

// Shutdown stops the limiters and drains the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.loginLimiter.Stop()
		s.writeLimiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := s.deps.Ready(ctx); err != nil {
			s.logger.WarnContext(ctx, "Readiness check failed", log.FieldError, err.Error())
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
		"rate_limiter": map[string]any{
			"login_clients": s.loginLimiter.ActiveClients(),
			"write_clients": s.writeLimiter.ActiveClients(),
			"rejected":      s.loginLimiter.Rejected() + s.writeLimiter.Rejected(),
		},
		"blocked_requests": s.detector.Blocked(),
	})
}

func (s *Server) rateLimited(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ClientIP(r),
		log.FieldPath, r.URL.Path)
	writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded"})
}
