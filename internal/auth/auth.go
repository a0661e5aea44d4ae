// Package auth is the credential and session provider: bcrypt password
// hashes, HS256 session tokens and profile lookup.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"

	"pesantren/internal/access"
	"pesantren/internal/core"
	"pesantren/internal/storage"
)

const (
	// Issuer is the iss claim of every session token.
	Issuer = "pesantren"

	MinPasswordLength = 8
)

var errTokenSigning = errors.New("failed to sign session token")

// Claims are the JWT claims of a session token.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// Service issues and verifies sessions against the users and profiles
// collections.
type Service struct {
	store  storage.Store
	secret []byte
	ttl    time.Duration
	cost   int
	now    func() time.Time
	logger *slog.Logger
}

// NewService creates the auth provider. secret signs session tokens.
func NewService(store storage.Store, secret string, ttl time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		secret: []byte(secret),
		ttl:    ttl,
		cost:   bcrypt.DefaultCost,
		now:    time.Now,
		logger: logger.With("component", "auth"),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates credentials and a santri profile for a new user.
func (s *Service) Register(ctx context.Context, email, password, fullName string) (*core.Profile, error) {
	return s.register(ctx, email, password, fullName, core.RoleStudent)
}

func (s *Service) register(ctx context.Context, email, password, fullName string, role core.Role) (*core.Profile, error) {
	email = normalizeEmail(email)

	var errs core.ValidationErrors
	if email == "" || !strings.Contains(email, "@") {
		errs.Add("email", "must be a valid email address")
	}
	if len(password) < MinPasswordLength {
		errs.Add("password", fmt.Sprintf("must be at least %d characters", MinPasswordLength))
	}
	if strings.TrimSpace(fullName) == "" {
		errs.Add("full_name", "is required")
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	n, err := s.store.Count(ctx, storage.Users, storage.Eq("email", email))
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if n > 0 {
		return nil, fmt.Errorf("email %s: %w", email, core.ErrConflict)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := core.Now()
	user := core.User{Email: email, PasswordHash: string(hash), CreatedAt: now}
	rec, err := storage.Encode(user)
	if err != nil {
		return nil, err
	}
	id, err := s.store.Insert(ctx, storage.Users, storage.Without(rec, "id"))
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	profile := core.Profile{
		ID:        id,
		Email:     email,
		FullName:  strings.TrimSpace(fullName),
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	prec, err := storage.Encode(profile)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.Insert(ctx, storage.Profiles, prec); err != nil {
		if derr := s.store.Delete(ctx, storage.Users, id); derr != nil {
			s.logger.ErrorContext(ctx, "Failed to remove user without profile", "user_id", id, "error", derr)
		}
		return nil, fmt.Errorf("create profile: %w", err)
	}

	s.logger.InfoContext(ctx, "User registered", "user_id", id, "role", role.String())
	return &profile, nil
}

// EnsureAdmin creates an admin account when no user with email exists yet.
// It reports whether an account was created.
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) (bool, error) {
	n, err := s.store.Count(ctx, storage.Users, storage.Eq("email", normalizeEmail(email)))
	if err != nil {
		return false, fmt.Errorf("check admin: %w", err)
	}
	if n > 0 {
		return false, nil
	}
	if _, err := s.register(ctx, email, password, "Administrator", core.RoleAdmin); err != nil {
		return false, fmt.Errorf("create admin: %w", err)
	}
	return true, nil
}

// SignIn verifies credentials and issues a session token. Unknown emails and
// wrong passwords fail identically.
func (s *Service) SignIn(ctx context.Context, email, password string) (string, access.Session, error) {
	email = normalizeEmail(email)
	recs, err := s.store.Find(ctx, storage.Users, storage.Query{Where: []storage.Predicate{storage.Eq("email", email)}, Limit: 1})
	if err != nil {
		return "", access.Session{}, fmt.Errorf("look up user: %w", err)
	}
	if len(recs) == 0 {
		// Match the timing of the wrong-password path.
		bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return "", access.Session{}, core.ErrInvalidCredentials
	}
	user, err := storage.Decode[core.User](recs[0])
	if err != nil {
		return "", access.Session{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", access.Session{}, core.ErrInvalidCredentials
	}

	now := s.now()
	session := access.Session{UserID: user.ID, Email: user.Email, ExpiresAt: now.Add(s.ttl).UTC().Truncate(time.Second)}
	token, err := s.generateToken(session, now)
	if err != nil {
		return "", access.Session{}, err
	}

	s.logger.InfoContext(ctx, "User signed in", "user_id", user.ID)
	return token, session, nil
}

// dummyHash is compared against when the email is unknown.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.MinCost)

func (s *Service) generateToken(session access.Session, now time.Time) (string, error) {
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   session.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
		},
		Email: session.Email,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString(s.secret)
	if err != nil {
		return "", errTokenSigning
	}
	return ss, nil
}

// Verify checks a token's signature, algorithm, issuer and expiry.
func (s *Service) Verify(token string) (access.Session, error) {
	claims := &Claims{}
	parser := jwt.Parser{ValidMethods: []string{jwt.SigningMethodHS256.Alg()}}
	parsed, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return access.Session{}, fmt.Errorf("%w: %v", core.ErrUnauthenticated, err)
	}
	if !claims.VerifyIssuer(Issuer, true) || claims.Subject == "" {
		return access.Session{}, fmt.Errorf("%w: bad issuer or subject", core.ErrUnauthenticated)
	}
	if claims.ExpiresAt == nil || !claims.ExpiresAt.After(s.now()) {
		return access.Session{}, fmt.Errorf("%w: token expired", core.ErrUnauthenticated)
	}
	return access.Session{UserID: claims.Subject, Email: claims.Email, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// Profile returns the profile of the session's user, or nil when the user has
// none.
func (s *Service) Profile(ctx context.Context, session access.Session) (*core.Profile, error) {
	rec, err := s.store.Get(ctx, storage.Profiles, session.UserID)
	if errors.Is(err, core.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	p, err := storage.Decode[core.Profile](rec)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
