package ledger

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/mbd888/splitpay/internal/amount"
)

// MemoryStore is an in-memory ledger store for demo/development mode.
type MemoryStore struct {
	balances map[string]*big.Int
	entries  []*Entry
	nextID   int64
	mu       sync.RWMutex
}

// NewMemoryStore creates a new in-memory ledger store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		balances: make(map[string]*big.Int),
		nextID:   1,
	}
}

func (m *MemoryStore) GetBalance(ctx context.Context, address string) (*Balance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	bal, ok := m.balances[address]
	if !ok {
		bal = big.NewInt(0)
	}
	return &Balance{
		Address:   address,
		Balance:   amount.Format(bal),
		UpdatedAt: time.Now(),
	}, nil
}

func (m *MemoryStore) Deposit(ctx context.Context, address, amt, reference string) error {
	v, ok := amount.Parse(amt)
	if !ok {
		return ErrInvalidAmount
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.credit(address, v)
	m.append(address, EntryDeposit, amt, "", reference)
	return nil
}

func (m *MemoryStore) ApplySettlement(ctx context.Context, payer, debit string, credits []Credit, reference string) error {
	debitV, ok := amount.Parse(debit)
	if !ok {
		return ErrInvalidAmount
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Re-check under the write lock; the service-level check can go stale.
	bal, ok := m.balances[payer]
	if !ok {
		bal = big.NewInt(0)
		m.balances[payer] = bal
	}
	if bal.Cmp(debitV) < 0 {
		return ErrInsufficientBalance
	}

	bal.Sub(bal, debitV)
	m.append(payer, EntrySettlementOut, debit, "", reference)

	for _, c := range credits {
		v, ok := amount.Parse(c.Amount)
		if !ok {
			continue
		}
		m.credit(c.Address, v)
		m.append(c.Address, c.Type, c.Amount, payer, reference)
	}

	return nil
}

func (m *MemoryStore) History(ctx context.Context, address string, limit int) ([]*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*Entry
	for i := len(m.entries) - 1; i >= 0 && len(result) < limit; i-- {
		if m.entries[i].Address == address {
			cp := *m.entries[i]
			result = append(result, &cp)
		}
	}
	return result, nil
}

// credit adds v to an account, creating it on first touch. Caller holds mu.
func (m *MemoryStore) credit(address string, v *big.Int) {
	bal, ok := m.balances[address]
	if !ok {
		bal = big.NewInt(0)
		m.balances[address] = bal
	}
	bal.Add(bal, v)
}

// append records an entry. Caller holds mu.
func (m *MemoryStore) append(address, entryType, amt, counterparty, reference string) {
	m.entries = append(m.entries, &Entry{
		ID:           m.nextID,
		Address:      address,
		Type:         entryType,
		Amount:       amt,
		Counterparty: counterparty,
		Reference:    reference,
		CreatedAt:    time.Now(),
	})
	m.nextID++
}
