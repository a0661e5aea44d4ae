package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pesantren/internal/access"
	"pesantren/internal/core"
	"pesantren/internal/log"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	principalKey contextKey = "principal"
)

// principal is the authenticated caller of an /api request.
type principal struct {
	Session access.Session
	Profile *core.Profile
	View    access.ViewVariant
}

func principalFrom(ctx context.Context) (principal, bool) {
	p, ok := ctx.Value(principalKey).(principal)
	return p, ok
}

// RequestIDFrom returns the id assigned to the request, if any.
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// generateRequestID creates a unique request ID for tracing.
func generateRequestID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("req_%016x", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(b)
}

func (s *Server) requestID(next http.Handler) http.Handler {
	withLogger := log.RequestIDMiddleware(func(r *http.Request) string { return RequestIDFrom(r.Context()) })
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := generateRequestID()
		w.Header().Set("X-Request-ID", id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		withLogger(next).ServeHTTP(w, r.WithContext(ctx))
	})
}

// statusRecorder wraps http.ResponseWriter to capture the status code
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	sl := log.NewStructuredLogger(s.logger)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := s.detector.ClientIP(r)
		sl.LogHTTPStart(r.Context(), r, clientIP)

		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)

		sl.LogHTTPEnd(r.Context(), r, rw.status, time.Since(start).Milliseconds(), clientIP)
	})
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

// authed resolves the bearer token to a session, loads its profile and
// selects the view before calling h.
func (s *Server) authed(h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, r, core.ErrUnauthenticated)
			return
		}
		session, err := s.deps.Auth.Verify(token)
		if err != nil {
			writeError(w, r, err)
			return
		}
		profile, err := s.deps.Auth.Profile(r.Context(), session)
		if err != nil {
			writeError(w, r, err)
			return
		}
		view := access.SelectView(&session, profile)
		if _, ok := view.(access.LoggedOutView); ok {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Token without usable profile",
				log.FieldUserID, session.UserID)
			writeError(w, r, core.ErrUnauthenticated)
			return
		}
		p := principal{Session: session, Profile: profile, View: view}

		logger := log.FromContext(r.Context()).With(log.FieldUserID, session.UserID)
		ctx := log.WithLogger(context.WithValue(r.Context(), principalKey, p), logger)
		h(w, r.WithContext(ctx))
	})
}

// guard authenticates the caller and checks the permission table for
// module. Writes are also rate limited per user.
func (s *Server) guard(module access.Module, h http.HandlerFunc) http.Handler {
	return s.authed(func(w http.ResponseWriter, r *http.Request) {
		p, _ := principalFrom(r.Context())
		role, ok := access.RoleOf(p.View)
		if !ok {
			writeError(w, r, core.ErrUnauthenticated)
			return
		}
		if !access.CanAccess(role, module) {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Permission denied",
				log.FieldRole, role.String(),
				"module", string(module))
			writeError(w, r, core.ErrForbidden)
			return
		}
		if r.Method != http.MethodGet {
			if ok, retry := s.writeLimiter.Allow(p.Session.UserID); !ok {
				w.Header().Set("Retry-After", strconv.Itoa(int(retry/time.Second)+1))
				s.rateLimited(w, r)
				return
			}
		}
		h(w, r)
	})
}

// actor is the user id recorded on writes.
func actor(r *http.Request) string {
	p, _ := principalFrom(r.Context())
	return p.Session.UserID
}
