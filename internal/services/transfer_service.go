package services

import (
	"context"
	"fmt"
	"log/slog"

	"leasetoken/internal/metrics"
	"leasetoken/internal/models"
	"leasetoken/internal/orchestrator"
	"leasetoken/internal/promise"
	"leasetoken/internal/remote"
	"leasetoken/internal/token"
)

// Transfer moves tokenID from the caller to receiverID. The new owner is
// committed immediately and no confirmation is requested.
func (s *TokenService) Transfer(ctx context.Context, call models.CallContext, receiverID, tokenID string, approvalID *uint64, memo *string) error {
	if err := requireOneYocto(call); err != nil {
		return err
	}

	err := s.orch.Exec(ctx, "nft_transfer", func(ctx context.Context) error {
		_, err := s.internalTransfer(ctx, call.Predecessor, receiverID, tokenID, memo)
		return err
	})
	if err != nil {
		return err
	}

	metrics.TransfersApplied.WithLabelValues("transfer").Inc()
	return nil
}

// TransferCall moves tokenID to receiverID and then asks the receiver, through
// nft_on_transfer, whether it wants to keep it.
//
// The returned Deferred settles once the receiver answered (or failed) and the
// transfer was resolved: true means the token went back to the sender.
func (s *TokenService) TransferCall(
	ctx context.Context,
	call models.CallContext,
	receiverID, tokenID string,
	approvalID *uint64,
	memo *string,
	msg string,
) (*promise.Deferred[bool], error) {
	if err := requireOneYocto(call); err != nil {
		return nil, err
	}

	result := promise.NewDeferred[bool]()
	senderID := call.Predecessor

	err := s.orch.Exec(ctx, "nft_transfer_call", func(ctx context.Context) error {
		previous, err := s.internalTransfer(ctx, senderID, receiverID, tokenID, memo)
		if err != nil {
			return err
		}
		previousOwnerID := previous.LenderID

		chainID := s.orch.Then(ctx, orchestrator.Chain{
			Method: remote.MethodNftOnTransfer,
			Call: func(ctx context.Context) promise.Result {
				return s.receiver.NftOnTransfer(ctx, receiverID, remote.OnTransferArgs{
					SenderID:        senderID,
					PreviousOwnerID: previousOwnerID,
					TokenID:         tokenID,
					Msg:             msg,
				})
			},
			CallBudget: s.config.ReceiverCallTimeout,
			Name:       "nft_resolve_transfer",
			Next: func(ctx context.Context, results []promise.Result) {
				result.Resolve(s.ResolveTransfer(ctx, results, previousOwnerID, receiverID, tokenID, memo))
			},
			NextBudget: s.config.ResolveTimeout,
			Abort:      result.Reject,
		})

		slog.Info("Transfer applied, awaiting receiver",
			"chain_id", chainID,
			"token_id", tokenID,
			"sender_id", senderID,
			"receiver_id", receiverID,
		)
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.TransfersApplied.WithLabelValues("transfer_call").Inc()
	return result, nil
}

// internalTransfer checks ownership and writes the new lender.
// It returns the lease as it was before the write.
func (s *TokenService) internalTransfer(ctx context.Context, senderID, receiverID, tokenID string, memo *string) (*models.Lease, error) {
	if receiverID == "" {
		return nil, fmt.Errorf("receiver id is required: %w", models.ErrInvalidArgument)
	}

	leaseID, ok := token.Decode(tokenID)
	if !ok {
		return nil, fmt.Errorf("token %s: %w", tokenID, models.ErrNotFound)
	}

	active, err := s.repository.IsActive(ctx, leaseID)
	if err != nil {
		return nil, err
	}
	if !active {
		return nil, fmt.Errorf("token %s: %w", tokenID, models.ErrNotFound)
	}

	previous, err := s.repository.GetLease(ctx, leaseID)
	if err != nil {
		return nil, err
	}

	if previous.LenderID != senderID {
		return nil, fmt.Errorf("%s does not own token %s: %w", senderID, tokenID, models.ErrUnauthorized)
	}
	if receiverID == senderID {
		return nil, fmt.Errorf("the token owner and the receiver should be different: %w", models.ErrInvalidArgument)
	}

	if err := s.repository.UpdateLender(ctx, leaseID, receiverID); err != nil {
		return nil, err
	}

	s.emit(ctx, &models.TokenEvent{
		Event:      models.EventNftTransfer,
		OldOwnerID: senderID,
		NewOwnerID: receiverID,
		TokenIDs:   []string{tokenID},
		Memo:       memo,
	})

	return previous, nil
}
