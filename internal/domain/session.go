package domain

import (
	"context"
	"log/slog"
)

// Session is the authenticated identity held by the running client.
// Token is never serialized or logged.
type Session struct {
	User
	Token string `json:"-"`
}

// HasRole reports whether the session exists and carries role r.
func (s *Session) HasRole(r Role) bool {
	return s != nil && s.Role == r
}

// LogValue keeps the bearer token out of structured logs.
func (s *Session) LogValue() slog.Value {
	if s == nil {
		return slog.StringValue("anonymous")
	}
	return slog.GroupValue(
		slog.Int64("user_id", s.ID),
		slog.String("role", string(s.Role)),
	)
}

// TokenStore persists the single process-wide bearer token slot.
// Load returns ErrTokenNotFound when the slot is empty.
type TokenStore interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

// TokenKey is the storage key of the bearer token in every TokenStore backend.
const TokenKey = "token"
