package paylink

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory link store for demo/development mode.
type MemoryStore struct {
	links    map[string]*PaymentLink
	settings *Settings
	mu       sync.RWMutex
}

// NewMemoryStore creates a new in-memory payment link store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		links: make(map[string]*PaymentLink),
	}
}

func (m *MemoryStore) GetLink(ctx context.Context, id string) (*PaymentLink, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	link, ok := m.links[id]
	if !ok {
		return nil, ErrLinkNotFound
	}
	return copyLink(link), nil
}

func (m *MemoryStore) PutLink(ctx context.Context, link *PaymentLink) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.links[link.PaymentID] = copyLink(link)
	return nil
}

func (m *MemoryStore) ContainsLink(ctx context.Context, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.links[id]
	return ok, nil
}

func (m *MemoryStore) GetSettings(ctx context.Context) (*Settings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.settings == nil {
		return nil, ErrNotInitialized
	}
	cp := *m.settings
	return &cp, nil
}

func (m *MemoryStore) PutSettings(ctx context.Context, settings *Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *settings
	m.settings = &cp
	return nil
}

// copyLink returns a deep copy to prevent races on the shared pointer.
// Shallow copy shares the payments backing array, so an append on the
// copy could mutate the stored link.
func copyLink(link *PaymentLink) *PaymentLink {
	cp := *link
	if link.Payments != nil {
		cp.Payments = make([]IndividualPayment, len(link.Payments))
		copy(cp.Payments, link.Payments)
	}
	return &cp
}
