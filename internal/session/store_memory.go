package session

import (
	"context"
	"sync"

	"github.com/ishworii/jobboard/internal/domain"
)

// MemoryTokenStore keeps the token in process memory. Nothing survives a
// restart, so every start is unauthenticated.
type MemoryTokenStore struct {
	mu    sync.Mutex
	token string
}

var _ domain.TokenStore = (*MemoryTokenStore)(nil)

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{}
}

func (m *MemoryTokenStore) Load(_ context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token == "" {
		return "", domain.ErrTokenNotFound
	}
	return m.token, nil
}

func (m *MemoryTokenStore) Save(_ context.Context, token string) error {
	m.mu.Lock()
	m.token = token
	m.mu.Unlock()
	return nil
}

func (m *MemoryTokenStore) Clear(_ context.Context) error {
	m.mu.Lock()
	m.token = ""
	m.mu.Unlock()
	return nil
}
