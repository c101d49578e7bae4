package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ishworii/jobboard/internal/domain"
	"github.com/ishworii/jobboard/internal/platform/crypto"
)

// SealedTokenStore encrypts the token before it reaches the inner store.
type SealedTokenStore struct {
	inner  domain.TokenStore
	cipher crypto.Cipher
}

var _ domain.TokenStore = (*SealedTokenStore)(nil)

func NewSealedTokenStore(inner domain.TokenStore, cipher crypto.Cipher) *SealedTokenStore {
	return &SealedTokenStore{inner: inner, cipher: cipher}
}

// Load treats a slot that no longer decrypts (rotated key, tampering) as
// empty and clears it.
func (s *SealedTokenStore) Load(ctx context.Context) (string, error) {
	sealed, err := s.inner.Load(ctx)
	if err != nil {
		return "", err
	}

	token, err := s.cipher.Decrypt(sealed)
	if err != nil {
		slog.WarnContext(ctx, "Persisted token does not decrypt, discarding", "error", err)
		if clearErr := s.inner.Clear(ctx); clearErr != nil {
			return "", errors.Join(domain.ErrTokenNotFound, clearErr)
		}
		return "", domain.ErrTokenNotFound
	}
	return token, nil
}

func (s *SealedTokenStore) Save(ctx context.Context, token string) error {
	sealed, err := s.cipher.Encrypt(token)
	if err != nil {
		return fmt.Errorf("seal token: %w", err)
	}
	return s.inner.Save(ctx, sealed)
}

func (s *SealedTokenStore) Clear(ctx context.Context) error {
	return s.inner.Clear(ctx)
}
