package storage

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"leasetoken/internal/models"
)

// MemoryRepository implements the Repository interface in process memory.
// It backs tests and the `serve --memory` development mode.
type MemoryRepository struct {
	mu       sync.RWMutex
	leases   map[string]models.Lease
	active   map[string]bool
	listings map[models.ListingKey]models.Listing
	order    []models.ListingKey
	events   []models.TokenEvent
}

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		leases:   make(map[string]models.Lease),
		active:   make(map[string]bool),
		listings: make(map[models.ListingKey]models.Listing),
	}
}

// GetLease retrieves a copy of a lease by lease ID
func (r *MemoryRepository) GetLease(ctx context.Context, leaseID string) (*models.Lease, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lease, ok := r.leases[leaseID]
	if !ok {
		return nil, fmt.Errorf("lease %s: %w", leaseID, models.ErrNotFound)
	}
	return &lease, nil
}

// InsertLease saves a new lease, adding it to the active set when it is active
func (r *MemoryRepository) InsertLease(ctx context.Context, lease *models.Lease) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.leases[lease.LeaseID]; ok {
		return fmt.Errorf("lease %s: %w", lease.LeaseID, models.ErrConflict)
	}
	r.leases[lease.LeaseID] = *lease
	if lease.State == models.LeaseStateActive {
		r.active[lease.LeaseID] = true
	}
	return nil
}

// UpdateLender sets the lender of an existing lease
func (r *MemoryRepository) UpdateLender(ctx context.Context, leaseID, lenderID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	lease, ok := r.leases[leaseID]
	if !ok {
		return fmt.Errorf("lease %s: %w", leaseID, models.ErrNotFound)
	}
	lease.LenderID = lenderID
	r.leases[leaseID] = lease
	return nil
}

// SetLeaseState updates the lease state and the active set together
func (r *MemoryRepository) SetLeaseState(ctx context.Context, leaseID string, state models.LeaseState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	lease, ok := r.leases[leaseID]
	if !ok {
		return fmt.Errorf("lease %s: %w", leaseID, models.ErrNotFound)
	}
	lease.State = state
	r.leases[leaseID] = lease

	if state == models.LeaseStateActive {
		r.active[leaseID] = true
	} else {
		delete(r.active, leaseID)
	}
	return nil
}

// IsActive reports whether the lease id is in the active set
func (r *MemoryRepository) IsActive(ctx context.Context, leaseID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active[leaseID], nil
}

// ListActiveLeasesByLender lists active leases held by a lender, ordered by lease id
func (r *MemoryRepository) ListActiveLeasesByLender(ctx context.Context, lenderID string, limit, offset int) ([]*models.Lease, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.active))
	for id := range r.active {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	var leases []*models.Lease
	for _, id := range ids {
		lease := r.leases[id]
		if lease.LenderID != lenderID {
			continue
		}
		leases = append(leases, &lease)
	}

	return page(leases, limit, offset), nil
}

// GetListing retrieves a copy of a listing by its key
func (r *MemoryRepository) GetListing(ctx context.Context, key models.ListingKey) (*models.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	listing, ok := r.listings[key]
	if !ok {
		return nil, fmt.Errorf("listing %s/%s: %w", key.NFTContractID, key.NFTTokenID, models.ErrNotFound)
	}
	listing.Payout = maps.Clone(listing.Payout)
	return &listing, nil
}

// ListingExists reports whether a listing is stored under key
func (r *MemoryRepository) ListingExists(ctx context.Context, key models.ListingKey) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.listings[key]
	return ok, nil
}

// InsertListing saves a listing unless one already exists for its key
func (r *MemoryRepository) InsertListing(ctx context.Context, listing *models.Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := listing.Key()
	if _, ok := r.listings[key]; ok {
		return fmt.Errorf("listing %s/%s: %w", key.NFTContractID, key.NFTTokenID, models.ErrConflict)
	}

	stored := *listing
	stored.Payout = maps.Clone(listing.Payout)
	r.listings[key] = stored
	r.order = append(r.order, key)
	return nil
}

// ListListings lists listings with pagination, newest first
func (r *MemoryRepository) ListListings(ctx context.Context, limit, offset int) ([]*models.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	listings := make([]*models.Listing, 0, len(r.order))
	for i := len(r.order) - 1; i >= 0; i-- {
		listing := r.listings[r.order[i]]
		listing.Payout = maps.Clone(listing.Payout)
		listings = append(listings, &listing)
	}

	return page(listings, limit, offset), nil
}

// SaveTokenEvent appends a token event
func (r *MemoryRepository) SaveTokenEvent(ctx context.Context, event *models.TokenEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	event.ID = int64(len(r.events) + 1)
	stored := *event
	stored.TokenIDs = slices.Clone(event.TokenIDs)
	r.events = append(r.events, stored)
	return nil
}

// ListTokenEvents lists events touching a token, oldest first
func (r *MemoryRepository) ListTokenEvents(ctx context.Context, tokenID string, limit, offset int) ([]*models.TokenEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var events []*models.TokenEvent
	for _, event := range r.events {
		event := event
		if !slices.Contains(event.TokenIDs, tokenID) {
			continue
		}
		event.TokenIDs = slices.Clone(event.TokenIDs)
		events = append(events, &event)
	}
	return page(events, limit, offset), nil
}

// Ping always succeeds
func (r *MemoryRepository) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op
func (r *MemoryRepository) Close() error {
	return nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
