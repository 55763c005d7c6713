package paylink

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mbd888/splitpay/internal/testutil"
)

func TestPostgresStore_LinkRoundTrip(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Microsecond)
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
	if got.Status != StatusPending || got.Creator != creator {
		t.Errorf("Unexpected link: %+v", got)
	}
	if len(got.Payments) != 2 || got.Payments[0].Amount != "100" || got.Payments[1].Destination != destB {
		t.Errorf("Payments not preserved: %+v", got.Payments)
	}

	ok, err := store.ContainsLink(ctx, "p1")
	if err != nil || !ok {
		t.Errorf("Expected ContainsLink true, got %v %v", ok, err)
	}

	_, err = store.GetLink(ctx, "missing")
	if !errors.Is(err, ErrLinkNotFound) {
		t.Errorf("Expected ErrLinkNotFound, got %v", err)
	}
}

func TestPostgresStore_PutLinkOverwrites(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()

	now := time.Now().UTC()
	first := &PaymentLink{
		PaymentID: "p1",
		Payments:  twoPayments(),
		Status:    StatusCompleted,
		Creator:   creator,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := store.PutLink(ctx, first); err != nil {
		t.Fatalf("PutLink failed: %v", err)
	}

	second := &PaymentLink{
		PaymentID: "p1",
		Payments:  []IndividualPayment{{Amount: "7", Destination: destA}},
		Status:    StatusPending,
		Creator:   payer,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := store.PutLink(ctx, second); err != nil {
		t.Fatalf("overwrite PutLink failed: %v", err)
	}

	got, err := store.GetLink(ctx, "p1")
	if err != nil {
		t.Fatalf("GetLink failed: %v", err)
	}
	if got.Status != StatusPending || got.Creator != payer || len(got.Payments) != 1 {
		t.Errorf("Expected overwritten record, got %+v", got)
	}
}

func TestPostgresStore_EmptyPaymentList(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()

	now := time.Now().UTC()
	link := &PaymentLink{PaymentID: "p1", Status: StatusPending, Creator: creator, CreatedAt: now, UpdatedAt: now}
	if err := store.PutLink(ctx, link); err != nil {
		t.Fatalf("PutLink failed: %v", err)
	}

	got, err := store.GetLink(ctx, "p1")
	if err != nil {
		t.Fatalf("GetLink failed: %v", err)
	}
	if len(got.Payments) != 0 {
		t.Errorf("Expected empty payment list, got %+v", got.Payments)
	}
}

func TestPostgresStore_Settings(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()

	_, err := store.GetSettings(ctx)
	if !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("Expected ErrNotInitialized before first put, got %v", err)
	}

	settings := &Settings{Enabled: true, Owner: owner, CommissionRate: 1, UpdatedAt: time.Now().UTC()}
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

	// The settings row is a singleton; a second put updates in place.
	settings.Enabled = false
	settings.CommissionRate = 42
	if err := store.PutSettings(ctx, settings); err != nil {
		t.Fatalf("second PutSettings failed: %v", err)
	}
	got, _ = store.GetSettings(ctx)
	if got.Enabled || got.CommissionRate != 42 {
		t.Errorf("Expected updated singleton, got %+v", got)
	}
}
