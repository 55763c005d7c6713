package webhooks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mbd888/splitpay/internal/testutil"
)

func TestPostgresStore_SubscriptionRoundTrip(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()

	sub := &Subscription{
		ID:        "wh_1",
		URL:       "https://example.com/hook",
		Secret:    "s3cret",
		Events:    []EventType{EventCompletedPayment, EventCancelledPayment},
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	if err := store.Create(ctx, sub); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := store.Get(ctx, "wh_1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.URL != sub.URL || got.Secret != "s3cret" || !got.Active || len(got.Events) != 2 {
		t.Errorf("Unexpected subscription: %+v", got)
	}

	_, err = store.Get(ctx, "missing")
	if !errors.Is(err, ErrSubscriptionNotFound) {
		t.Errorf("Expected ErrSubscriptionNotFound, got %v", err)
	}
}

func TestPostgresStore_GetByEvent(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()

	a := &Subscription{ID: "wh_1", URL: "https://a.example.com", Events: []EventType{EventCompletedPayment}, Active: true, CreatedAt: time.Now().UTC()}
	b := &Subscription{ID: "wh_2", URL: "https://b.example.com", Events: []EventType{EventCancelledPayment}, Active: true, CreatedAt: time.Now().UTC()}
	for _, sub := range []*Subscription{a, b} {
		if err := store.Create(ctx, sub); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	subs, err := store.GetByEvent(ctx, EventCompletedPayment)
	if err != nil {
		t.Fatalf("GetByEvent failed: %v", err)
	}
	if len(subs) != 1 || subs[0].ID != "wh_1" {
		t.Errorf("Expected only wh_1 for completedPayment, got %+v", subs)
	}

	subs, err = store.GetByEvent(ctx, EventCreatedPaymentLink)
	if err != nil {
		t.Fatalf("GetByEvent failed: %v", err)
	}
	if len(subs) != 0 {
		t.Errorf("Expected no subscribers, got %d", len(subs))
	}
}

func TestPostgresStore_UpdateAndDelete(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()

	sub := &Subscription{ID: "wh_1", URL: "https://example.com", Events: []EventType{EventCompletedPayment}, Active: true, CreatedAt: time.Now().UTC()}
	if err := store.Create(ctx, sub); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	now := time.Now().UTC()
	sub.LastSuccess = &now
	sub.LastError = ""
	sub.Active = false
	if err := store.Update(ctx, sub); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	got, _ := store.Get(ctx, "wh_1")
	if got.Active {
		t.Error("Expected subscription deactivated")
	}
	if got.LastSuccess == nil {
		t.Error("Expected LastSuccess persisted")
	}

	if err := store.Delete(ctx, "wh_1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := store.Delete(ctx, "wh_1"); !errors.Is(err, ErrSubscriptionNotFound) {
		t.Errorf("Expected ErrSubscriptionNotFound, got %v", err)
	}
}
