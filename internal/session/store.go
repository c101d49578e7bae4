package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/ishworii/jobboard/internal/domain"
	"github.com/ishworii/jobboard/internal/gateway"
	"github.com/jonboulle/clockwork"
)

// Authenticator resolves credentials and tokens against the backend.
type Authenticator interface {
	Login(ctx context.Context, creds domain.Credentials) (string, error)
	Profile(ctx context.Context, token string) (*domain.User, error)
}

// Store holds the current session and its persisted token.
type Store struct {
	auth                 Authenticator
	tokens               domain.TokenStore
	clock                clockwork.Clock
	logoutOnUnauthorized bool

	// lifecycle serializes every change of the persisted token together
	// with the session swap, so a token is persisted iff a session is set.
	lifecycle sync.Mutex

	mu        sync.RWMutex
	session   *domain.Session
	listeners []func(ctx context.Context)
}

type Option func(*Store)

// WithLogoutOnUnauthorized makes HandleUnauthorized force a logout when a
// request carrying the current token is rejected with 401.
func WithLogoutOnUnauthorized(enabled bool) Option {
	return func(s *Store) { s.logoutOnUnauthorized = enabled }
}

func NewStore(auth Authenticator, tokens domain.TokenStore, clock clockwork.Clock, opts ...Option) *Store {
	s := &Store{
		auth:   auth,
		tokens: tokens,
		clock:  clock,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnSessionEnd registers fn to run after the session is torn down or replaced
// by a different user's session.
func (s *Store) OnSessionEnd(fn func(ctx context.Context)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// Initialize re-hydrates the session from a persisted token. Any failure
// leaves the store unauthenticated with the token cleared.
func (s *Store) Initialize(ctx context.Context) {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	token, err := s.tokens.Load(ctx)
	if errors.Is(err, domain.ErrTokenNotFound) {
		slog.InfoContext(ctx, "No persisted token, starting unauthenticated")
		return
	}
	if err != nil {
		slog.WarnContext(ctx, "Failed to load persisted token, clearing", "error", err)
		s.clearToken(ctx)
		return
	}

	if exp, ok := tokenExpiry(token); ok && !exp.After(s.clock.Now()) {
		slog.InfoContext(ctx, "Persisted token expired, clearing", "expired_at", exp)
		s.clearToken(ctx)
		return
	}

	user, err := s.auth.Profile(ctx, token)
	if err != nil {
		slog.WarnContext(ctx, "Persisted token rejected, clearing", "error", err)
		s.clearToken(ctx)
		return
	}

	s.swap(&domain.Session{User: *user, Token: token})
	slog.InfoContext(ctx, "Session restored", "user_id", user.ID, "role", user.Role)
}

// Login exchanges credentials for a token, resolves the profile and persists
// the token. On failure the previous state is left untouched.
func (s *Store) Login(ctx context.Context, creds domain.Credentials) (*domain.Session, error) {
	token, err := s.auth.Login(ctx, creds)
	if err != nil {
		return nil, newLoginError(err)
	}

	user, err := s.auth.Profile(ctx, token)
	if err != nil {
		return nil, newLoginError(err)
	}

	next := &domain.Session{User: *user, Token: token}

	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if err := s.tokens.Save(ctx, token); err != nil {
		return nil, fmt.Errorf("persist token: %w", err)
	}

	prev := s.swap(next)
	if prev != nil && prev.ID != next.ID {
		s.notify(ctx)
	}

	slog.InfoContext(ctx, "Login succeeded", "user_id", user.ID, "role", user.Role)
	out := *next
	return &out, nil
}

// Logout clears the session and the persisted token. It is idempotent.
func (s *Store) Logout(ctx context.Context) {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	s.logoutLocked(ctx)
}

// logoutLocked requires s.lifecycle.
func (s *Store) logoutLocked(ctx context.Context) {
	s.clearToken(ctx)
	if prev := s.swap(nil); prev != nil {
		slog.InfoContext(ctx, "Logged out", "user_id", prev.ID)
		s.notify(ctx)
	}
}

// swap publishes next and returns the previous session.
func (s *Store) swap(next *domain.Session) *domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.session
	s.session = next
	return prev
}

// Current returns a copy of the session, or nil when unauthenticated.
func (s *Store) Current() *domain.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return nil
	}
	out := *s.session
	return &out
}

func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session != nil
}

// HandleUnauthorized applies the 401 policy to err, returned by a request made
// with sess. It reports whether a logout was forced. A rejection of a token
// that is no longer current never affects the current session.
func (s *Store) HandleUnauthorized(ctx context.Context, sess *domain.Session, err error) bool {
	if !s.logoutOnUnauthorized || sess == nil {
		return false
	}

	var httpErr *gateway.HTTPError
	if !errors.As(err, &httpErr) || httpErr.Status != http.StatusUnauthorized {
		return false
	}

	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.mu.RLock()
	current := s.session != nil && s.session.Token == sess.Token
	s.mu.RUnlock()
	if !current {
		return false
	}

	slog.WarnContext(ctx, "Token rejected by backend, forcing logout", "user_id", sess.ID)
	s.logoutLocked(ctx)
	return true
}

func (s *Store) clearToken(ctx context.Context) {
	if err := s.tokens.Clear(ctx); err != nil {
		slog.ErrorContext(ctx, "Failed to clear persisted token", "error", err)
	}
}

// notify runs the session-end listeners. Listeners run under s.lifecycle and
// must not call back into the store.
func (s *Store) notify(ctx context.Context) {
	s.mu.RLock()
	listeners := s.listeners
	s.mu.RUnlock()
	for _, fn := range listeners {
		fn(ctx)
	}
}

// tokenExpiry reads the exp claim of a JWT without verifying its signature.
// Tokens that are not JWTs, or carry no exp, report ok=false.
func tokenExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
