package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"leasetoken/internal/allowlist"
	"leasetoken/internal/metrics"
	"leasetoken/internal/models"
	"leasetoken/internal/orchestrator"
	"leasetoken/internal/promise"
	"leasetoken/internal/remote"
	"leasetoken/internal/storage"
)

// ListingService turns approval notifications from allow-listed token
// contracts into marketplace listings
type ListingService struct {
	repository   storage.ListingRepository
	orch         *orchestrator.Orchestrator
	oracle       remote.PayoutOracle
	nftContracts *allowlist.Set
	ftContracts  *allowlist.Set
	config       ListingConfig
}

// PendingListing carries the validated approval into the payout continuation
type PendingListing struct {
	OwnerID       string
	ApprovalID    uint64
	NFTContractID string
	NFTTokenID    string
	Terms         ListingTerms
}

var _ Service = (*ListingService)(nil)

// NewListingService creates a new ListingService instance
func NewListingService(
	repository storage.ListingRepository,
	orch *orchestrator.Orchestrator,
	oracle remote.PayoutOracle,
	nftContracts, ftContracts *allowlist.Set,
	config ListingConfig,
) *ListingService {
	if config.MaxLenPayout == 0 {
		config.MaxLenPayout = MaxLenPayout
	}
	return &ListingService{
		repository:   repository,
		orch:         orch,
		oracle:       oracle,
		nftContracts: nftContracts,
		ftContracts:  ftContracts,
		config:       config,
	}
}

// Name returns the service name
func (s *ListingService) Name() string {
	return "ListingService"
}

// OnApprovalReceived handles the notification a token contract sends after its
// owner approved the marketplace. Validation failures are returned at once;
// otherwise the payout split is queried and the listing is written when it
// arrives. The returned Deferred settles with that listing, or with the reason
// none was created.
func (s *ListingService) OnApprovalReceived(
	ctx context.Context,
	call models.CallContext,
	tokenID, ownerID string,
	approvalID uint64,
	msg string,
) (*promise.Deferred[*models.Listing], error) {
	result := promise.NewDeferred[*models.Listing]()

	err := s.orch.Exec(ctx, "nft_on_approve", func(ctx context.Context) error {
		pending, err := s.validateApproval(ctx, call, tokenID, ownerID, approvalID, msg)
		if err != nil {
			return err
		}

		chainID := s.orch.Then(ctx, orchestrator.Chain{
			Method: remote.MethodNftPayout,
			Call: func(ctx context.Context) promise.Result {
				return s.oracle.NftPayout(ctx, pending.NFTContractID, remote.PayoutArgs{
					TokenID:      pending.NFTTokenID,
					Balance:      pending.Terms.Price,
					MaxLenPayout: s.config.MaxLenPayout,
				})
			},
			CallBudget: s.config.PayoutCallTimeout,
			Name:       "create_listing_with_payout",
			Next: func(ctx context.Context, results []promise.Result) {
				listing, err := s.CreateListingWithPayout(ctx, results, *pending)
				if err != nil {
					result.Reject(err)
					return
				}
				result.Resolve(listing)
			},
			NextBudget: s.config.ListingTimeout,
			Abort:      result.Reject,
		})

		slog.Info("Approval accepted, querying payout",
			"chain_id", chainID,
			"nft_contract_id", pending.NFTContractID,
			"token_id", pending.NFTTokenID,
			"owner_id", pending.OwnerID,
		)
		return nil
	})
	if err != nil {
		metrics.ApprovalsReceived.WithLabelValues("rejected").Inc()
		slog.Warn("Approval rejected",
			"nft_contract_id", call.Predecessor,
			"token_id", tokenID,
			"owner_id", ownerID,
			"error", err,
		)
		return nil, err
	}

	metrics.ApprovalsReceived.WithLabelValues("accepted").Inc()
	return result, nil
}

func (s *ListingService) validateApproval(
	ctx context.Context,
	call models.CallContext,
	tokenID, ownerID string,
	approvalID uint64,
	msg string,
) (*PendingListing, error) {
	nftContractID := call.Predecessor

	if nftContractID == "" || nftContractID == s.config.MarketplaceAccountID {
		return nil, fmt.Errorf("nft_on_approve should only be called by a token contract: %w", models.ErrUnauthorized)
	}

	if ownerID != call.Signer {
		return nil, fmt.Errorf("owner_id should be signer_id: %w", models.ErrUnauthorized)
	}

	if !s.nftContracts.Contains(nftContractID) {
		return nil, fmt.Errorf("nft contract %s is not allowed: %w", nftContractID, models.ErrForbidden)
	}

	key := models.ListingKey{NFTContractID: nftContractID, NFTTokenID: tokenID}
	exists, err := s.repository.ListingExists(ctx, key)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("token %s of %s is already listed: %w", tokenID, nftContractID, models.ErrConflict)
	}

	terms, err := ParseListingMessage(msg)
	if err != nil {
		return nil, err
	}

	if !s.ftContracts.Contains(terms.FTContractID) {
		return nil, fmt.Errorf("ft contract %s is not allowed: %w", terms.FTContractID, models.ErrForbidden)
	}

	return &PendingListing{
		OwnerID:       ownerID,
		ApprovalID:    approvalID,
		NFTContractID: nftContractID,
		NFTTokenID:    tokenID,
		Terms:         *terms,
	}, nil
}

// CreateListingWithPayout writes the listing once the payout query settled.
// A failed or malformed payout creates nothing; the owner has to approve again.
func (s *ListingService) CreateListingWithPayout(ctx context.Context, results []promise.Result, pending PendingListing) (*models.Listing, error) {
	if len(results) != 1 {
		panic(promise.ProtocolViolation{
			Continuation: "create_listing_with_payout",
			Reason:       fmt.Sprintf("expected exactly one prior outcome, got %d", len(results)),
		})
	}

	outcome := results[0]
	switch outcome.Status {
	case promise.Successful:
	case promise.Failed:
		return nil, s.drop(pending, "payout_failed", fmt.Errorf("payout query failed: %w", outcome.Err))
	default:
		panic(promise.ProtocolViolation{
			Continuation: "create_listing_with_payout",
			Reason:       "payout outcome is " + outcome.Status.String(),
		})
	}

	payout, err := ParsePayout(outcome.Value, s.config.MaxLenPayout)
	if err != nil {
		return nil, s.drop(pending, "payout_malformed", err)
	}

	listing := &models.Listing{
		OwnerID:          pending.OwnerID,
		ApprovalID:       pending.ApprovalID,
		NFTContractID:    pending.NFTContractID,
		NFTTokenID:       pending.NFTTokenID,
		FTContractID:     pending.Terms.FTContractID,
		Price:            pending.Terms.Price,
		LeaseStartTsNano: pending.Terms.LeaseStartTsNano,
		LeaseEndTsNano:   pending.Terms.LeaseEndTsNano,
		Payout:           payout,
	}

	if err := s.repository.InsertListing(ctx, listing); err != nil {
		reason := "storage"
		if errors.Is(err, models.ErrConflict) {
			reason = "conflict"
		}
		return nil, s.drop(pending, reason, err)
	}

	metrics.ListingsCreated.Inc()
	slog.Info("✅ Listing created",
		"nft_contract_id", listing.NFTContractID,
		"token_id", listing.NFTTokenID,
		"owner_id", listing.OwnerID,
		"price", listing.Price,
		"payees", len(listing.Payout),
	)

	return listing, nil
}

// GetListing returns the listing of a token
func (s *ListingService) GetListing(ctx context.Context, nftContractID, tokenID string) (*models.Listing, error) {
	return s.repository.GetListing(ctx, models.ListingKey{NFTContractID: nftContractID, NFTTokenID: tokenID})
}

// ListListings lists listings with pagination
func (s *ListingService) ListListings(ctx context.Context, limit, offset int) ([]*models.Listing, error) {
	return s.repository.ListListings(ctx, limit, offset)
}

func (s *ListingService) drop(pending PendingListing, reason string, err error) error {
	metrics.ListingsDropped.WithLabelValues(reason).Inc()
	slog.Warn("Listing not created",
		"nft_contract_id", pending.NFTContractID,
		"token_id", pending.NFTTokenID,
		"owner_id", pending.OwnerID,
		"reason", reason,
		"error", err,
	)
	return err
}
