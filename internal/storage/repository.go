package storage

import (
	"context"

	"leasetoken/internal/models"
)

// LeaseRepository is the ledger store: lease records keyed by lease id plus
// the set of lease ids that are active and therefore rendered as tokens.
// Missing records are reported as models.ErrNotFound.
type LeaseRepository interface {
	GetLease(ctx context.Context, leaseID string) (*models.Lease, error)
	// InsertLease stores a new lease and, when its state is active, adds it to
	// the active set in the same write. Duplicates fail with models.ErrConflict.
	InsertLease(ctx context.Context, lease *models.Lease) error
	UpdateLender(ctx context.Context, leaseID, lenderID string) error
	// SetLeaseState moves a lease to state and keeps the active set in step
	SetLeaseState(ctx context.Context, leaseID string, state models.LeaseState) error
	IsActive(ctx context.Context, leaseID string) (bool, error)
	ListActiveLeasesByLender(ctx context.Context, lenderID string, limit, offset int) ([]*models.Lease, error)
}

// ListingRepository is the marketplace keyspace, keyed by (nft contract, token id)
type ListingRepository interface {
	GetListing(ctx context.Context, key models.ListingKey) (*models.Listing, error)
	ListingExists(ctx context.Context, key models.ListingKey) (bool, error)
	// InsertListing checks uniqueness and writes in one step.
	// An existing key fails with models.ErrConflict.
	InsertListing(ctx context.Context, listing *models.Listing) error
	ListListings(ctx context.Context, limit, offset int) ([]*models.Listing, error)
}

// EventRepository persists token events
type EventRepository interface {
	SaveTokenEvent(ctx context.Context, event *models.TokenEvent) error
	ListTokenEvents(ctx context.Context, tokenID string, limit, offset int) ([]*models.TokenEvent, error)
}

// Repository defines the interface for all storage operations
type Repository interface {
	LeaseRepository
	ListingRepository
	EventRepository

	// Health & Maintenance
	Ping(ctx context.Context) error
	Close() error
}
