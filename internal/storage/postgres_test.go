package storage

import (
	"context"
	"errors"
	"os"
	"testing"

	"leasetoken/internal/models"

	"github.com/google/uuid"
)

// newTestPostgres connects to TEST_DATABASE_URL or skips the test
func newTestPostgres(t *testing.T) *PostgresRepository {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	repo, err := NewPostgresRepository(ctx, url)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	if err := repo.Migrate(ctx); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}
	return repo
}

func TestPostgresRepository_LeaseLifecycle(t *testing.T) {
	repo := newTestPostgres(t)
	ctx := context.Background()

	leaseID := "lease-" + uuid.NewString()
	lease := &models.Lease{
		LeaseID:      leaseID,
		LenderID:     "alice",
		ContractAddr: "nft.example",
		TokenID:      "7",
		StartTsNano:  1,
		EndTsNano:    1000,
		State:        models.LeaseStateActive,
	}

	if err := repo.InsertLease(ctx, lease); err != nil {
		t.Fatalf("InsertLease failed: %v", err)
	}
	if err := repo.InsertLease(ctx, lease); !errors.Is(err, models.ErrConflict) {
		t.Errorf("Expected ErrConflict, got: %v", err)
	}

	if ok, err := repo.IsActive(ctx, leaseID); err != nil || !ok {
		t.Fatalf("Expected active lease, got (%v, %v)", ok, err)
	}

	if err := repo.UpdateLender(ctx, leaseID, "bob"); err != nil {
		t.Fatalf("UpdateLender failed: %v", err)
	}
	got, err := repo.GetLease(ctx, leaseID)
	if err != nil {
		t.Fatalf("GetLease failed: %v", err)
	}
	if got.LenderID != "bob" || got.EndTsNano != 1000 {
		t.Errorf("Unexpected lease: %+v", got)
	}

	if err := repo.SetLeaseState(ctx, leaseID, models.LeaseStateFinished); err != nil {
		t.Fatalf("SetLeaseState failed: %v", err)
	}
	if ok, _ := repo.IsActive(ctx, leaseID); ok {
		t.Error("Finished lease must leave the active set")
	}
}

func TestPostgresRepository_ListingConflict(t *testing.T) {
	repo := newTestPostgres(t)
	ctx := context.Background()

	listing := &models.Listing{
		OwnerID:        "carol",
		ApprovalID:     3,
		NFTContractID:  "lease.near",
		NFTTokenID:     uuid.NewString(),
		FTContractID:   "usdc.near",
		Price:          "100",
		LeaseEndTsNano: 1000,
		Payout:         map[string]string{"carol": "100"},
	}

	if err := repo.InsertListing(ctx, listing); err != nil {
		t.Fatalf("InsertListing failed: %v", err)
	}
	if err := repo.InsertListing(ctx, listing); !errors.Is(err, models.ErrConflict) {
		t.Errorf("Expected ErrConflict, got: %v", err)
	}

	got, err := repo.GetListing(ctx, listing.Key())
	if err != nil {
		t.Fatalf("GetListing failed: %v", err)
	}
	if got.Payout["carol"] != "100" || got.ApprovalID != 3 {
		t.Errorf("Unexpected listing: %+v", got)
	}
}

func TestPostgresRepository_TokenEventsByToken(t *testing.T) {
	repo := newTestPostgres(t)
	ctx := context.Background()

	tokenID := uuid.NewString() + "_lender"
	other := uuid.NewString() + "_lender"

	saved := []*models.TokenEvent{
		{Event: models.EventNftMint, OwnerID: "alice", TokenIDs: []string{tokenID}},
		{Event: models.EventNftMint, OwnerID: "dave", TokenIDs: []string{other}},
		{Event: models.EventNftTransfer, OldOwnerID: "alice", NewOwnerID: "bob", TokenIDs: []string{other, tokenID}},
	}
	for _, event := range saved {
		if err := repo.SaveTokenEvent(ctx, event); err != nil {
			t.Fatalf("SaveTokenEvent failed: %v", err)
		}
	}

	events, err := repo.ListTokenEvents(ctx, tokenID, 10, 0)
	if err != nil {
		t.Fatalf("ListTokenEvents failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("Expected 2 events touching %s, got %d", tokenID, len(events))
	}
	if events[0].Event != models.EventNftMint || events[1].NewOwnerID != "bob" {
		t.Errorf("Expected mint then transfer, got %s then %s", events[0].Event, events[1].Event)
	}

	events, err = repo.ListTokenEvents(ctx, tokenID, 1, 1)
	if err != nil || len(events) != 1 || events[0].Event != models.EventNftTransfer {
		t.Errorf("Expected the transfer on the second page, got %v, %v", events, err)
	}
}
