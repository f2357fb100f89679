// Package credentials persists the session token.
//
// A Store holds at most one token under common.AccessTokenKey. Only the
// session manager writes to it; every authenticated API call reads from it.
package credentials

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrEmptyToken is returned by Save for an empty token.
var ErrEmptyToken = errors.New("empty token")

// TokenReader is the read side of a Store.
type TokenReader interface {
	// Token returns the persisted token, or "" when there is none.
	Token(ctx context.Context) (string, error)
}

// Store is the durable token holder.
type Store interface {
	TokenReader
	// Save replaces the persisted token.
	Save(ctx context.Context, token string) error
	// Erase removes the token. Erasing an empty store is not an error.
	Erase(ctx context.Context) error
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu    sync.RWMutex
	token string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Token(context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token, nil
}

func (m *MemoryStore) Save(_ context.Context, token string) error {
	if token == "" {
		return ErrEmptyToken
	}
	m.mu.Lock()
	m.token = token
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Erase(context.Context) error {
	m.mu.Lock()
	m.token = ""
	m.mu.Unlock()
	return nil
}

// TokenExpiry reads the exp claim of a JWT without verifying its signature.
// It is for diagnostics only; the server remains the judge of validity.
func TokenExpiry(token string) (time.Time, bool) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
