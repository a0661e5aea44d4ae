package http

import (
	"net/http"
	"time"

	"pesantren/internal/access"
	"pesantren/internal/core"
)

type registerRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	FullName string `json:"full_name" validate:"notblank"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	View      string    `json:"view"`
}

type meResponse struct {
	Profile *core.Profile   `json:"profile"`
	View    string          `json:"view"`
	Modules []access.Module `json:"modules"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeValid(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	profile, err := s.deps.Auth.Register(r.Context(), req.Email, req.Password, req.FullName)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, profile)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeValid(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	token, session, err := s.deps.Auth.SignIn(r.Context(), req.Email, req.Password)
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
		writeError(w, r, core.ErrInvalidCredentials)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		ExpiresAt: session.ExpiresAt,
		View:      view.Name(),
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())
	resp := meResponse{Profile: p.Profile, View: p.View.Name()}
	if role, ok := access.RoleOf(p.View); ok {
		resp.Modules = access.Modules(role)
	}
	writeJSON(w, http.StatusOK, resp)
}

type maskRequest struct {
	Value string `json:"value"`
}

// handleCurrencyMask formats a partially typed amount field.
func (s *Server) handleCurrencyMask(w http.ResponseWriter, r *http.Request) {
	var req maskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	var masked string
	core.MaskInput(req.Value, func(m string) { masked = m })
	writeJSON(w, http.StatusOK, map[string]any{
		"masked": masked,
		"amount": core.ParseThousands(masked),
	})
}

func (s *Server) handleActivities(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())
	userID := p.Session.UserID
	// Administrators may read anyone's trail.
	if _, isAdmin := p.View.(access.AdminView); isAdmin {
		userID = r.URL.Query().Get("user_id")
	}
	recs, err := s.deps.Activities.List(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.writePage(w, r, recs)
}
