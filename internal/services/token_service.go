package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"leasetoken/internal/metrics"
	"leasetoken/internal/models"
	"leasetoken/internal/orchestrator"
	"leasetoken/internal/remote"
	"leasetoken/internal/storage"
	"leasetoken/internal/token"
)

// TokenService exposes active leases as ownership tokens and moves them
// between accounts
type TokenService struct {
	repository storage.LeaseRepository
	events     EventEmitter
	orch       *orchestrator.Orchestrator
	receiver   remote.Receiver
	config     TransferConfig
}

var _ Service = (*TokenService)(nil)

// NewTokenService creates a new TokenService instance
func NewTokenService(
	repository storage.LeaseRepository,
	events EventEmitter,
	orch *orchestrator.Orchestrator,
	receiver remote.Receiver,
	config TransferConfig,
) *TokenService {
	return &TokenService{
		repository: repository,
		events:     events,
		orch:       orch,
		receiver:   receiver,
		config:     config,
	}
}

// Name returns the service name
func (s *TokenService) Name() string {
	return "TokenService"
}

// GetToken returns the token view for tokenID, or nil when no active lease backs it
func (s *TokenService) GetToken(ctx context.Context, tokenID string) (*models.Token, error) {
	leaseID, ok := token.Decode(tokenID)
	if !ok {
		return nil, nil
	}

	active, err := s.repository.IsActive(ctx, leaseID)
	if err != nil {
		return nil, err
	}
	if !active {
		return nil, nil
	}

	lease, err := s.repository.GetLease(ctx, leaseID)
	if err != nil {
		return nil, fmt.Errorf("active lease %s has no record: %w", leaseID, err)
	}

	return token.Render(lease), nil
}

// TokensForOwner lists the tokens currently owned by ownerID
func (s *TokenService) TokensForOwner(ctx context.Context, ownerID string, limit, offset int) ([]models.Token, error) {
	leases, err := s.repository.ListActiveLeasesByLender(ctx, ownerID, limit, offset)
	if err != nil {
		return nil, err
	}

	tokens := make([]models.Token, 0, len(leases))
	for _, lease := range leases {
		tokens = append(tokens, *token.Render(lease))
	}
	return tokens, nil
}

// Mint stores an active lease and emits the mint event of its token
func (s *TokenService) Mint(ctx context.Context, lease models.Lease, memo *string) (*models.Token, error) {
	if lease.LeaseID == "" || lease.LenderID == "" {
		return nil, fmt.Errorf("lease id and lender id are required: %w", models.ErrInvalidArgument)
	}
	lease.State = models.LeaseStateActive

	err := s.orch.Exec(ctx, "nft_mint", func(ctx context.Context) error {
		if err := s.repository.InsertLease(ctx, &lease); err != nil {
			return err
		}

		s.emit(ctx, &models.TokenEvent{
			Event:    models.EventNftMint,
			OwnerID:  lease.LenderID,
			TokenIDs: []string{token.Encode(lease.LeaseID)},
			Memo:     memo,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.TokensMinted.Inc()
	slog.Info("Token minted",
		"lease_id", lease.LeaseID,
		"owner_id", lease.LenderID,
	)

	return token.Render(&lease), nil
}

// emit records an event; the state change it describes is already committed,
// so a sink failure is logged and not returned
func (s *TokenService) emit(ctx context.Context, event *models.TokenEvent) {
	if err := s.events.Emit(ctx, event); err != nil {
		slog.Error("TokenService: Event not recorded",
			"event", event.Event,
			"token_ids", event.TokenIDs,
			"error", err,
		)
	}
}

// requireOneYocto guards ownership-changing calls against accidental or replayed invocation
func requireOneYocto(call models.CallContext) error {
	if call.AttachedDeposit != models.OneYocto {
		return fmt.Errorf("requires attached deposit of exactly 1 yoctoNEAR, got %d: %w", call.AttachedDeposit, models.ErrInvalidArgument)
	}
	if call.Predecessor == "" {
		return fmt.Errorf("caller identity is required: %w", models.ErrUnauthorized)
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, models.ErrNotFound)
}
