package storage

import (
	"context"
	"errors"
	"testing"

	"leasetoken/internal/models"
)

func TestMemoryRepository_ActiveSetFollowsState(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	pending := &models.Lease{LeaseID: "p1", LenderID: "alice", State: models.LeaseStatePending}
	active := &models.Lease{LeaseID: "a1", LenderID: "alice", State: models.LeaseStateActive}

	for _, lease := range []*models.Lease{pending, active} {
		if err := repo.InsertLease(ctx, lease); err != nil {
			t.Fatalf("InsertLease(%s) failed: %v", lease.LeaseID, err)
		}
	}

	if ok, _ := repo.IsActive(ctx, "p1"); ok {
		t.Error("Pending lease must not be active")
	}
	if ok, _ := repo.IsActive(ctx, "a1"); !ok {
		t.Error("Active lease must be in the active set")
	}

	if err := repo.SetLeaseState(ctx, "a1", models.LeaseStateExpired); err != nil {
		t.Fatalf("SetLeaseState failed: %v", err)
	}
	if ok, _ := repo.IsActive(ctx, "a1"); ok {
		t.Error("Expired lease must leave the active set")
	}

	err := repo.SetLeaseState(ctx, "missing", models.LeaseStateActive)
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got: %v", err)
	}
}

func TestMemoryRepository_InsertLeaseConflict(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	lease := &models.Lease{LeaseID: "k1", LenderID: "alice", State: models.LeaseStateActive}
	if err := repo.InsertLease(ctx, lease); err != nil {
		t.Fatalf("InsertLease failed: %v", err)
	}

	err := repo.InsertLease(ctx, lease)
	if !errors.Is(err, models.ErrConflict) {
		t.Errorf("Expected ErrConflict, got: %v", err)
	}
}

func TestMemoryRepository_ReadsAreCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	repo.InsertLease(ctx, &models.Lease{LeaseID: "k1", LenderID: "alice", State: models.LeaseStateActive})

	lease, err := repo.GetLease(ctx, "k1")
	if err != nil {
		t.Fatalf("GetLease failed: %v", err)
	}
	lease.LenderID = "mallory"

	again, _ := repo.GetLease(ctx, "k1")
	if again.LenderID != "alice" {
		t.Errorf("Mutating a read must not change storage, got lender: %s", again.LenderID)
	}
}

func TestMemoryRepository_Listings(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	listing := &models.Listing{
		OwnerID:       "carol",
		NFTContractID: "lease.near",
		NFTTokenID:    "k1_lender",
		FTContractID:  "usdc.near",
		Price:         "100",
		Payout:        map[string]string{"carol": "100"},
	}

	if err := repo.InsertListing(ctx, listing); err != nil {
		t.Fatalf("InsertListing failed: %v", err)
	}
	if err := repo.InsertListing(ctx, listing); !errors.Is(err, models.ErrConflict) {
		t.Errorf("Expected ErrConflict on duplicate, got: %v", err)
	}

	listing.Payout["mallory"] = "1"
	got, err := repo.GetListing(ctx, listing.Key())
	if err != nil {
		t.Fatalf("GetListing failed: %v", err)
	}
	if len(got.Payout) != 1 || got.Payout["carol"] != "100" {
		t.Errorf("Unexpected payout: %v", got.Payout)
	}

	_, err = repo.GetListing(ctx, models.ListingKey{NFTContractID: "lease.near", NFTTokenID: "other"})
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got: %v", err)
	}
}

func TestPage(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	tests := []struct {
		name          string
		limit, offset int
		expected      int
	}{
		{"first page", 2, 0, 2},
		{"last partial page", 2, 4, 1},
		{"offset past end", 2, 10, 0},
		{"no limit", 0, 1, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(page(items, tt.limit, tt.offset)); got != tt.expected {
				t.Errorf("page(limit=%d, offset=%d) returned %d items, expected %d", tt.limit, tt.offset, got, tt.expected)
			}
		})
	}
}
