// Package ledger tracks account balances for the settlement asset.
//
// Flow:
//  1. Payer deposits funds to their account
//  2. Completing a payment link debits the payer's attached value
//  3. The same settlement credits every destination, the commission, and
//     the payer's refund in a single atomic step
package ledger

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"time"

	"github.com/mbd888/splitpay/internal/amount"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrUnbalancedSettle    = errors.New("settlement credits do not sum to the debit")
)

// Entry types recorded against accounts.
const (
	EntryDeposit       = "deposit"
	EntrySettlementOut = "settlement_out"
	EntryPayoutIn      = "payout_in"
	EntryCommissionIn  = "commission_in"
	EntryRefundIn      = "refund_in"
)

// Entry is an append-only record of one balance movement.
type Entry struct {
	ID           int64     `json:"id"`
	Address      string    `json:"address"`
	Type         string    `json:"type"`
	Amount       string    `json:"amount"`
	Counterparty string    `json:"counterparty,omitempty"`
	Reference    string    `json:"reference,omitempty"` // payment link ID
	CreatedAt    time.Time `json:"createdAt"`
}

// Balance is an account's current holdings.
type Balance struct {
	Address   string    `json:"address"`
	Balance   string    `json:"balance"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Credit is one leg of a settlement applied to a receiving account.
type Credit struct {
	Address string
	Amount  string
	Type    string
}

// Store persists balances and entries. ApplySettlement must be atomic:
// either the debit and every credit land, or nothing does.
type Store interface {
	GetBalance(ctx context.Context, address string) (*Balance, error)
	Deposit(ctx context.Context, address, amt, reference string) error
	ApplySettlement(ctx context.Context, payer, debit string, credits []Credit, reference string) error
	History(ctx context.Context, address string, limit int) ([]*Entry, error)
}

// Ledger manages account balances.
type Ledger struct {
	store Store
}

// New creates a new ledger.
func New(store Store) *Ledger {
	return &Ledger{store: store}
}

// GetBalance returns an account's current balance. Unknown accounts
// report zero rather than an error.
func (l *Ledger) GetBalance(ctx context.Context, address string) (*Balance, error) {
	return l.store.GetBalance(ctx, strings.ToLower(address))
}

// Deposit credits an account.
func (l *Ledger) Deposit(ctx context.Context, address, amt, reference string) error {
	v, ok := amount.Parse(amt)
	if !ok || v.Sign() <= 0 {
		return ErrInvalidAmount
	}
	return l.store.Deposit(ctx, strings.ToLower(address), amount.Format(v), reference)
}

// Settle debits callValue from the payer and applies the credits.
// The credits must sum to exactly callValue; anything else is rejected
// before a single unit moves.
func (l *Ledger) Settle(ctx context.Context, payer string, callValue *big.Int, credits []Credit, reference string) error {
	if callValue == nil || callValue.Sign() < 0 {
		return ErrInvalidAmount
	}

	total := big.NewInt(0)
	for _, c := range credits {
		v, ok := amount.Parse(c.Amount)
		if !ok {
			return ErrInvalidAmount
		}
		total.Add(total, v)
	}
	if total.Cmp(callValue) != 0 {
		return ErrUnbalancedSettle
	}

	payer = strings.ToLower(payer)
	bal, err := l.store.GetBalance(ctx, payer)
	if err != nil {
		return err
	}
	have, _ := amount.Parse(bal.Balance)
	if have.Cmp(callValue) < 0 {
		return ErrInsufficientBalance
	}

	normalized := make([]Credit, len(credits))
	for i, c := range credits {
		normalized[i] = Credit{
			Address: strings.ToLower(c.Address),
			Amount:  c.Amount,
			Type:    c.Type,
		}
	}

	return l.store.ApplySettlement(ctx, payer, amount.Format(callValue), normalized, reference)
}

// History returns ledger entries for an account, newest first.
func (l *Ledger) History(ctx context.Context, address string, limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	return l.store.History(ctx, strings.ToLower(address), limit)
}
