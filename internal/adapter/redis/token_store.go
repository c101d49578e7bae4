package redis

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/ishworii/jobboard/internal/domain"
)

// TokenStore keeps the bearer token under "<prefix>token".
type TokenStore struct {
	rdb goredis.Cmdable
	key string
}

var _ domain.TokenStore = (*TokenStore)(nil)

func NewTokenStore(rdb goredis.Cmdable, keyPrefix string) *TokenStore {
	return &TokenStore{rdb: rdb, key: keyPrefix + domain.TokenKey}
}

func (s *TokenStore) Load(ctx context.Context) (string, error) {
	token, err := s.rdb.Get(ctx, s.key).Result()
	if errors.Is(err, goredis.Nil) || (err == nil && token == "") {
		return "", domain.ErrTokenNotFound
	}
	if err != nil {
		return "", fmt.Errorf("load token: %w", err)
	}
	return token, nil
}

// Save stores the token without expiry; the backend decides its lifetime.
func (s *TokenStore) Save(ctx context.Context, token string) error {
	if err := s.rdb.Set(ctx, s.key, token, 0).Err(); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

func (s *TokenStore) Clear(ctx context.Context) error {
	if err := s.rdb.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("clear token: %w", err)
	}
	return nil
}

// Ping verifies the redis server is reachable.
func (s *TokenStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}
