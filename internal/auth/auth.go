// Package auth resolves API keys to account addresses.
//
// Every mutating operation needs a caller identity: the creator on link
// registration and cancellation, the payer on completion, the owner on
// admin calls. Keys are issued once at registration and stored hashed.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/mbd888/splitpay/internal/idgen"
)

var (
	ErrInvalidKey = errors.New("invalid API key")
)

// APIKey is a stored credential. The raw key is never persisted.
type APIKey struct {
	Hash      string     `json:"-"`
	Address   string     `json:"address"`
	CreatedAt time.Time  `json:"createdAt"`
	LastUsed  *time.Time `json:"lastUsed,omitempty"`
}

// Store persists API keys.
type Store interface {
	Create(ctx context.Context, key *APIKey) error
	GetByHash(ctx context.Context, hash string) (*APIKey, error)
	Touch(ctx context.Context, hash string, at time.Time) error
}

// Manager issues and validates API keys.
type Manager struct {
	store Store
}

// NewManager creates a new auth manager.
func NewManager(store Store) *Manager {
	return &Manager{store: store}
}

// CreateKey issues a new key bound to an account address and returns the
// raw key. This is the only time the raw key is available.
func (m *Manager) CreateKey(ctx context.Context, address string) (string, error) {
	raw := "sk_" + idgen.Hex(24)
	key := &APIKey{
		Hash:      hashKey(raw),
		Address:   strings.ToLower(address),
		CreatedAt: time.Now(),
	}
	if err := m.store.Create(ctx, key); err != nil {
		return "", err
	}
	return raw, nil
}

// ValidateKey resolves a raw key (optionally "Bearer "-prefixed) to its
// stored record.
func (m *Manager) ValidateKey(ctx context.Context, raw string) (*APIKey, error) {
	raw = strings.TrimPrefix(strings.TrimSpace(raw), "Bearer ")
	if !strings.HasPrefix(raw, "sk_") {
		return nil, ErrInvalidKey
	}

	key, err := m.store.GetByHash(ctx, hashKey(raw))
	if err != nil {
		return nil, ErrInvalidKey
	}

	// Best-effort usage tracking
	_ = m.store.Touch(ctx, key.Hash, time.Now())

	return key, nil
}

func hashKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
