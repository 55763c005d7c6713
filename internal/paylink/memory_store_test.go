package paylink

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStore_LinkRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	now := time.Now()
	link := &PaymentLink{
		PaymentID: "p1",
		Payments:  twoPayments(),
		Status:    StatusPending,
		Creator:   creator,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := store.PutLink(ctx, link); err != nil {
		t.Fatalf("PutLink failed: %v", err)
	}

	got, err := store.GetLink(ctx, "p1")
	if err != nil {
		t.Fatalf("GetLink failed: %v", err)
	}
	if got.PaymentID != "p1" || got.Status != StatusPending || len(got.Payments) != 2 {
		t.Errorf("Unexpected link: %+v", got)
	}

	ok, err := store.ContainsLink(ctx, "p1")
	if err != nil || !ok {
		t.Errorf("Expected ContainsLink true, got %v %v", ok, err)
	}
	ok, _ = store.ContainsLink(ctx, "missing")
	if ok {
		t.Error("Expected ContainsLink false for missing ID")
	}
}

func TestMemoryStore_GetLinkNotFound(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.GetLink(context.Background(), "missing")
	if !errors.Is(err, ErrLinkNotFound) {
		t.Errorf("Expected ErrLinkNotFound, got %v", err)
	}
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	link := &PaymentLink{PaymentID: "p1", Payments: twoPayments(), Status: StatusPending}
	if err := store.PutLink(ctx, link); err != nil {
		t.Fatalf("PutLink failed: %v", err)
	}

	got, _ := store.GetLink(ctx, "p1")
	got.Status = StatusCompleted
	got.Payments[0].Amount = "999"

	again, _ := store.GetLink(ctx, "p1")
	if again.Status != StatusPending {
		t.Error("Mutating a returned link must not affect the stored record")
	}
	if again.Payments[0].Amount != "100" {
		t.Error("Mutating a returned payment list must not affect the stored record")
	}
}

func TestMemoryStore_SettingsLifecycle(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.GetSettings(ctx)
	if !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("Expected ErrNotInitialized before first put, got %v", err)
	}

	settings := &Settings{Enabled: true, Owner: owner, CommissionRate: 1, UpdatedAt: time.Now()}
	if err := store.PutSettings(ctx, settings); err != nil {
		t.Fatalf("PutSettings failed: %v", err)
	}

	got, err := store.GetSettings(ctx)
	if err != nil {
		t.Fatalf("GetSettings failed: %v", err)
	}
	if !got.Enabled || got.Owner != owner || got.CommissionRate != 1 {
		t.Errorf("Unexpected settings: %+v", got)
	}

	// Returned settings are detached from the stored singleton.
	got.CommissionRate = 99
	again, _ := store.GetSettings(ctx)
	if again.CommissionRate != 1 {
		t.Error("Mutating returned settings must not affect the stored record")
	}
}
