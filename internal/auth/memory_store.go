package auth

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrKeyNotFound is returned for unknown key hashes.
var ErrKeyNotFound = errors.New("API key not found")

// MemoryStore is an in-memory key store for demo/development mode.
type MemoryStore struct {
	keys map[string]*APIKey // hash -> key
	mu   sync.RWMutex
}

// NewMemoryStore creates a new in-memory key store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{keys: make(map[string]*APIKey)}
}

func (m *MemoryStore) Create(ctx context.Context, key *APIKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *key
	m.keys[key.Hash] = &cp
	return nil
}

func (m *MemoryStore) GetByHash(ctx context.Context, hash string) (*APIKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	key, ok := m.keys[hash]
	if !ok {
		return nil, ErrKeyNotFound
	}
	cp := *key
	return &cp, nil
}

func (m *MemoryStore) Touch(ctx context.Context, hash string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key, ok := m.keys[hash]
	if !ok {
		return ErrKeyNotFound
	}
	key.LastUsed = &at
	return nil
}
