// Package webhooks provides event notifications to external services.
//
// Subscribers register a URL and receive signed POSTs for payment link
// lifecycle events: creation, per-destination payouts, completion,
// cancellation.
package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mbd888/splitpay/internal/retry"
)

// EventType represents the type of webhook event.
// The names are part of the public contract and never change.
type EventType string

const (
	EventCreatedPaymentLink         EventType = "createdPaymentLink"
	EventIndividualPaymentCompleted EventType = "individualPaymentCompleted"
	EventCompletedPayment           EventType = "completedPayment"
	EventCancelledPayment           EventType = "cancelledPayment"
)

// Event represents a webhook event.
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Subscription represents a webhook subscription.
type Subscription struct {
	ID          string      `json:"id"`
	URL         string      `json:"url"`
	Secret      string      `json:"-"` // Used for HMAC signing
	Events      []EventType `json:"events"`
	Active      bool        `json:"active"`
	CreatedAt   time.Time   `json:"createdAt"`
	LastSuccess *time.Time  `json:"lastSuccess,omitempty"`
	LastError   string      `json:"lastError,omitempty"`
}

// Store persists webhook subscriptions.
type Store interface {
	Create(ctx context.Context, sub *Subscription) error
	Get(ctx context.Context, id string) (*Subscription, error)
	List(ctx context.Context) ([]*Subscription, error)
	GetByEvent(ctx context.Context, eventType EventType) ([]*Subscription, error)
	Update(ctx context.Context, sub *Subscription) error
	Delete(ctx context.Context, id string) error
}

// Delivery retry policy. A 4xx response is permanent; network errors and
// 5xx responses are retried with exponential backoff.
const (
	deliveryAttempts  = 3
	deliveryBaseDelay = time.Second
)

// Dispatcher sends webhook events.
type Dispatcher struct {
	store  Store
	client *http.Client
}

// NewDispatcher creates a new webhook dispatcher.
func NewDispatcher(store Store) *Dispatcher {
	return &Dispatcher{
		store: store,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Dispatch sends an event to all active subscribers of its type.
func (d *Dispatcher) Dispatch(ctx context.Context, event *Event) error {
	subs, err := d.store.GetByEvent(ctx, event.Type)
	if err != nil {
		return fmt.Errorf("failed to get subscribers: %w", err)
	}

	for _, sub := range subs {
		if !sub.Active {
			continue
		}

		// Send async to avoid blocking the settlement path
		go d.send(context.WithoutCancel(ctx), sub, event)
	}

	return nil
}

func (d *Dispatcher) send(ctx context.Context, sub *Subscription, event *Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}

	err = retry.Do(ctx, deliveryAttempts, deliveryBaseDelay, func() error {
		return d.attempt(ctx, sub, event, payload)
	})

	now := time.Now()
	if err != nil {
		sub.LastError = err.Error()
	} else {
		sub.LastSuccess = &now
		sub.LastError = ""
	}
	_ = d.store.Update(ctx, sub)
}

func (d *Dispatcher) attempt(ctx context.Context, sub *Subscription, event *Event, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.URL, bytes.NewReader(payload))
	if err != nil {
		return retry.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Splitpay-Event", string(event.Type))
	req.Header.Set("X-Splitpay-Signature", Sign(payload, sub.Secret))

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return retry.Permanent(fmt.Errorf("received status %d", resp.StatusCode))
	default:
		return fmt.Errorf("received status %d", resp.StatusCode)
	}
}

// Sign computes the hex HMAC-SHA256 of the payload under the secret.
// Subscribers verify deliveries against the X-Splitpay-Signature header.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
