// Package paylink implements split-payment links.
//
// Flow:
//  1. Creator registers a link naming one or more destination payouts
//  2. Payer funds the link in a single call (value attached)
//  3. Service pays every destination, retains a commission, refunds the rest
//  4. Creator may cancel a link that was never funded
package paylink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/mbd888/splitpay/internal/amount"
)

var (
	ErrLinkNotFound          = errors.New("payment link does not exist")
	ErrInvalidStatus         = errors.New("payment link does not have the required status")
	ErrInsufficientFunds     = errors.New("not enough funds sent to complete payment (check required amount)")
	ErrUnauthorized          = errors.New("not authorized for this operation")
	ErrContractDisabled      = errors.New("contract is disabled")
	ErrInvalidCommissionRate = errors.New("commission rate cannot be greater than 100%")
	ErrAlreadyEnabled        = errors.New("contract is already enabled")
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrNotInitialized        = errors.New("contract settings not initialized")
)

// Status represents the state of a payment link.
type Status string

const (
	StatusPending   Status = "pending"   // Created, awaiting funding
	StatusCompleted Status = "completed" // Funded, destinations paid
	StatusCancelled Status = "cancelled" // Withdrawn by the creator
)

// Terminal returns true if the link is in a final state.
// Completed and cancelled links admit no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// QuotedCommissionRatePercent is the fixed rate baked into quotes and the
// funding threshold. Settlement uses the live rate from Settings instead;
// the two can drift apart once the owner changes the live rate. That
// asymmetry is deliberate and load-bearing for the refund arithmetic.
const QuotedCommissionRatePercent = 1

// IndividualPayment is one destination payout within a link.
// Immutable once part of a link's payment list.
type IndividualPayment struct {
	Amount      string `json:"amount"`
	Destination string `json:"destination"`
}

// PaymentLink is a creator-authored record of payouts awaiting funding.
type PaymentLink struct {
	PaymentID string              `json:"paymentId"`
	Payments  []IndividualPayment `json:"payments"`
	Status    Status              `json:"status"`
	Creator   string              `json:"creator"`
	CreatedAt time.Time           `json:"createdAt"`
	UpdatedAt time.Time           `json:"updatedAt"`
}

// Settings holds the process-wide contract configuration.
type Settings struct {
	Enabled        bool      `json:"enabled"`
	Owner          string    `json:"owner"`
	CommissionRate uint64    `json:"commissionRate"` // percent, 0-100
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Store persists payment links and the settings singleton.
// Reads must observe writes made earlier in the same call.
type Store interface {
	GetLink(ctx context.Context, id string) (*PaymentLink, error)
	PutLink(ctx context.Context, link *PaymentLink) error
	ContainsLink(ctx context.Context, id string) (bool, error)
	GetSettings(ctx context.Context) (*Settings, error)
	PutSettings(ctx context.Context, settings *Settings) error
}

// Leg is a single destination transfer inside a settlement.
type Leg struct {
	Destination string
	Amount      *big.Int
}

// LedgerService abstracts value transfer so paylink doesn't import ledger.
// Settle must apply the whole movement atomically: debit the payer's
// callValue, credit every leg, credit the commission, credit the refund.
type LedgerService interface {
	Settle(ctx context.Context, payer string, callValue *big.Int, legs []Leg, commissionTo string, commission, refund *big.Int, reference string) error
}

// Events receives lifecycle notifications. Implementations must be
// fire-and-forget; the service never blocks on them.
type Events interface {
	CreatedPaymentLink(paymentID, creator string)
	IndividualPaymentCompleted(paymentID, from, destination, amt string)
	CompletedPayment(paymentID string)
	CancelledPayment(paymentID string)
}

// Service implements the payment link state machine.
type Service struct {
	store      Store
	ledger     LedgerService
	events     Events
	logger     *slog.Logger
	locks      sync.Map   // per-link ID locks, one settlement at a time
	settingsMu sync.Mutex // serializes settings mutations
}

// NewService creates a new payment link service.
func NewService(store Store, ledger LedgerService, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		ledger: ledger,
		logger: logger,
	}
}

// WithEvents adds a lifecycle event sink.
func (s *Service) WithEvents(ev Events) *Service {
	s.events = ev
	return s
}

// linkLock returns a mutex for the given payment ID.
// This prevents concurrent state transitions (e.g. complete + cancel racing).
func (s *Service) linkLock(id string) *sync.Mutex {
	v, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// Initialize performs one-time setup: live commission rate set to the quoted
// constant, owner set to the bootstrap caller, contract enabled. Calling it
// again once settings exist is a no-op.
func (s *Service) Initialize(ctx context.Context, caller string) error {
	s.settingsMu.Lock()
	defer s.settingsMu.Unlock()

	_, err := s.store.GetSettings(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrNotInitialized) {
		return err
	}

	return s.store.PutSettings(ctx, &Settings{
		Enabled:        true,
		Owner:          strings.ToLower(caller),
		CommissionRate: QuotedCommissionRatePercent,
		UpdatedAt:      time.Now(),
	})
}

// CreateLink registers a new payment link. A second create with the same ID
// overwrites the prior record, matching the original contract semantics.
// No funds move.
func (s *Service) CreateLink(ctx context.Context, id string, payments []IndividualPayment, caller string) (*PaymentLink, error) {
	mu := s.linkLock(id)
	mu.Lock()
	defer mu.Unlock()

	if err := s.requireEnabled(ctx); err != nil {
		return nil, err
	}

	for _, p := range payments {
		if !amount.IsValid(p.Amount) {
			return nil, ErrInvalidAmount
		}
	}

	if exists, err := s.store.ContainsLink(ctx, id); err == nil && exists {
		s.logger.Warn("overwriting existing payment link", "payment_id", id, "caller", caller)
	}

	now := time.Now()
	link := &PaymentLink{
		PaymentID: id,
		Payments:  payments,
		Status:    StatusPending,
		Creator:   strings.ToLower(caller),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.PutLink(ctx, link); err != nil {
		return nil, fmt.Errorf("store payment link %s: %w", id, err)
	}

	linksCreatedTotal.Inc()
	if s.events != nil {
		s.events.CreatedPaymentLink(link.PaymentID, link.Creator)
	}

	return link, nil
}

// Complete settles a pending link. All guards run before the first transfer;
// a guard failure leaves no partial state. The funding guard checks the
// quoted total (fixed rate) while the retained commission uses the live rate,
// so the settlement re-checks that the attached value still covers
// payouts plus commission before moving anything.
func (s *Service) Complete(ctx context.Context, id, caller string, callValue *big.Int) (*PaymentLink, error) {
	mu := s.linkLock(id)
	mu.Lock()
	defer mu.Unlock()

	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		return nil, err
	}
	if !settings.Enabled {
		return nil, ErrContractDisabled
	}

	link, err := s.store.GetLink(ctx, id)
	if err != nil {
		return nil, err
	}
	if link.Status != StatusPending {
		return nil, ErrInvalidStatus
	}

	if callValue == nil || callValue.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	required := ComputeTotalAmount(link.Payments)
	if callValue.Cmp(required) < 0 {
		return nil, ErrInsufficientFunds
	}

	usedAmount := big.NewInt(0)
	legs := make([]Leg, 0, len(link.Payments))
	for _, p := range link.Payments {
		amt, ok := amount.Parse(p.Amount)
		if !ok {
			// Stored links only hold amounts validated at create time.
			continue
		}
		legs = append(legs, Leg{Destination: p.Destination, Amount: amt})
		usedAmount.Add(usedAmount, amt)
	}

	commission := ComputeCommission(usedAmount, settings.CommissionRate)
	refund := new(big.Int).Sub(callValue, usedAmount)
	refund.Sub(refund, commission)
	if refund.Sign() < 0 {
		// Live rate rose above the quoted rate since the quote was taken.
		return nil, ErrInsufficientFunds
	}

	payer := strings.ToLower(caller)
	if err := s.ledger.Settle(ctx, payer, callValue, legs, settings.Owner, commission, refund, link.PaymentID); err != nil {
		return nil, fmt.Errorf("settle payment link %s: %w", id, err)
	}

	now := time.Now()
	link.Status = StatusCompleted
	link.UpdatedAt = now

	if err := s.store.PutLink(ctx, link); err != nil {
		// Funds already moved; retry the status write once before giving up.
		if retryErr := s.store.PutLink(ctx, link); retryErr != nil {
			s.logger.Error("CRITICAL: payment link settled but status update failed",
				"payment_id", link.PaymentID, "payer", payer, "error", retryErr)
			return nil, fmt.Errorf("update payment link after settlement (requires manual resolution): %w", err)
		}
	}

	paymentsCompletedTotal.Inc()
	if s.events != nil {
		for _, leg := range legs {
			s.events.IndividualPaymentCompleted(link.PaymentID, payer, leg.Destination, amount.Format(leg.Amount))
		}
		s.events.CompletedPayment(link.PaymentID)
	}

	return link, nil
}

// Cancel marks a pending link cancelled. Only the creator may cancel, and
// only before completion. No funds move: links carry no value until the
// moment they are completed.
func (s *Service) Cancel(ctx context.Context, id, caller string) (*PaymentLink, error) {
	mu := s.linkLock(id)
	mu.Lock()
	defer mu.Unlock()

	if err := s.requireEnabled(ctx); err != nil {
		return nil, err
	}

	link, err := s.store.GetLink(ctx, id)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(caller, link.Creator) {
		return nil, ErrUnauthorized
	}
	if link.Status != StatusPending {
		return nil, ErrInvalidStatus
	}

	link.Status = StatusCancelled
	link.UpdatedAt = time.Now()

	if err := s.store.PutLink(ctx, link); err != nil {
		return nil, fmt.Errorf("store payment link %s: %w", id, err)
	}

	paymentsCancelledTotal.Inc()
	if s.events != nil {
		s.events.CancelledPayment(link.PaymentID)
	}

	return link, nil
}

// SetCommissionRate updates the live commission rate. Owner only.
// Already-completed links are unaffected; quotes keep using the fixed rate.
func (s *Service) SetCommissionRate(ctx context.Context, rate uint64, caller string) error {
	s.settingsMu.Lock()
	defer s.settingsMu.Unlock()

	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		return err
	}
	if !settings.Enabled {
		return ErrContractDisabled
	}
	if !strings.EqualFold(caller, settings.Owner) {
		return ErrUnauthorized
	}
	if rate > 100 {
		return ErrInvalidCommissionRate
	}

	settings.CommissionRate = rate
	settings.UpdatedAt = time.Now()
	return s.store.PutSettings(ctx, settings)
}

// Disable flips the kill switch off. Owner only; fails if already disabled.
func (s *Service) Disable(ctx context.Context, caller string) error {
	s.settingsMu.Lock()
	defer s.settingsMu.Unlock()

	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		return err
	}
	if !settings.Enabled {
		return ErrContractDisabled
	}
	if !strings.EqualFold(caller, settings.Owner) {
		return ErrUnauthorized
	}

	settings.Enabled = false
	settings.UpdatedAt = time.Now()
	return s.store.PutSettings(ctx, settings)
}

// Enable flips the kill switch back on. Owner only; fails if already enabled.
func (s *Service) Enable(ctx context.Context, caller string) error {
	s.settingsMu.Lock()
	defer s.settingsMu.Unlock()

	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		return err
	}
	if settings.Enabled {
		return ErrAlreadyEnabled
	}
	if !strings.EqualFold(caller, settings.Owner) {
		return ErrUnauthorized
	}

	settings.Enabled = true
	settings.UpdatedAt = time.Now()
	return s.store.PutSettings(ctx, settings)
}

// RequiredAmount quotes the amount a payer must attach to complete the link:
// the sum of all payouts plus the fixed quoted commission.
func (s *Service) RequiredAmount(ctx context.Context, id string) (*big.Int, error) {
	link, err := s.store.GetLink(ctx, id)
	if err != nil {
		return nil, err
	}
	if link.Status != StatusPending {
		return nil, ErrInvalidStatus
	}
	return ComputeTotalAmount(link.Payments), nil
}

// PaymentStatus returns the stored status of a link.
func (s *Service) PaymentStatus(ctx context.Context, id string) (Status, error) {
	link, err := s.store.GetLink(ctx, id)
	if err != nil {
		return "", err
	}
	return link.Status, nil
}

// Get returns a payment link by ID.
func (s *Service) Get(ctx context.Context, id string) (*PaymentLink, error) {
	return s.store.GetLink(ctx, id)
}

// ContractState returns the current settings singleton.
func (s *Service) ContractState(ctx context.Context) (*Settings, error) {
	return s.store.GetSettings(ctx)
}

// IsEnabled reports the kill-switch state.
func (s *Service) IsEnabled(ctx context.Context) (bool, error) {
	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		return false, err
	}
	return settings.Enabled, nil
}

// Owner returns the contract owner address.
func (s *Service) Owner(ctx context.Context) (string, error) {
	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		return "", err
	}
	return settings.Owner, nil
}

// CommissionRate returns the live commission rate.
func (s *Service) CommissionRate(ctx context.Context) (uint64, error) {
	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		return 0, err
	}
	return settings.CommissionRate, nil
}

func (s *Service) requireEnabled(ctx context.Context) error {
	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		return err
	}
	if !settings.Enabled {
		return ErrContractDisabled
	}
	return nil
}
