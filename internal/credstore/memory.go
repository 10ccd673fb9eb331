package credstore

import (
	"context"
	"sync"

	"golang.org/x/oauth2"
)

// MemoryStore keeps credentials in process memory only.
type MemoryStore struct {
	mu    sync.RWMutex
	token *oauth2.Token
}

// Compile-time check to ensure MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load(ctx context.Context) (*oauth2.Token, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.token == nil {
		return nil, ErrNotFound
	}
	return cloneToken(m.token), nil
}

func (m *MemoryStore) Save(ctx context.Context, token *oauth2.Token) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validate(token); err != nil {
		return err
	}

	m.mu.Lock()
	m.token = cloneToken(token)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	m.token = nil
	m.mu.Unlock()
	return nil
}

// cloneToken copies the exported fields so callers can't mutate shared state.
func cloneToken(t *oauth2.Token) *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  t.AccessToken,
		TokenType:    t.TokenType,
		RefreshToken: t.RefreshToken,
		Expiry:       t.Expiry,
		ExpiresIn:    t.ExpiresIn,
	}
}
