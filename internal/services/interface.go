package services

import (
	"context"
	"time"

	"leasetoken/internal/models"
)

// Service is implemented by every protocol engine
type Service interface {
	// Name returns the service name for logging
	Name() string
}

// EventEmitter records completed ownership changes
type EventEmitter interface {
	Emit(ctx context.Context, event *models.TokenEvent) error
}

// TransferConfig bounds the two steps of a transfer with receiver notification.
// ResolveTimeout must cover one lease read, at most one write and one event.
type TransferConfig struct {
	ReceiverCallTimeout time.Duration
	ResolveTimeout      time.Duration
}

// ListingConfig configures the marketplace side
type ListingConfig struct {
	// MarketplaceAccountID is our own identity; approvals from it are self-calls
	MarketplaceAccountID string
	PayoutCallTimeout    time.Duration
	ListingTimeout       time.Duration
	MaxLenPayout         uint32
}

// MaxLenPayout is the largest payout split accepted from a token contract
const MaxLenPayout uint32 = 50

// DefaultTransferConfig returns the budgets used when none are configured
func DefaultTransferConfig() TransferConfig {
	return TransferConfig{
		ReceiverCallTimeout: 25 * time.Second,
		ResolveTimeout:      5 * time.Second,
	}
}

// DefaultListingConfig returns the listing settings used when none are configured
func DefaultListingConfig(marketplaceAccountID string) ListingConfig {
	return ListingConfig{
		MarketplaceAccountID: marketplaceAccountID,
		PayoutCallTimeout:    25 * time.Second,
		ListingTimeout:       10 * time.Second,
		MaxLenPayout:         MaxLenPayout,
	}
}
