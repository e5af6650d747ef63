package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"leasetoken/internal/metrics"
	"leasetoken/internal/models"
	"leasetoken/internal/promise"
	"leasetoken/internal/token"
)

// ResolveTransfer settles a transfer once the receiver's nft_on_transfer
// outcome is known. It returns true when the token ended up back with the
// sender, or when returning it was abandoned because the token had moved on.
//
// It must run with exactly one settled outcome; anything else is a
// scheduling bug and panics with promise.ProtocolViolation.
func (s *TokenService) ResolveTransfer(
	ctx context.Context,
	results []promise.Result,
	previousOwnerID, receiverID, tokenID string,
	memo *string,
) bool {
	if len(results) != 1 {
		panic(promise.ProtocolViolation{
			Continuation: "nft_resolve_transfer",
			Reason:       fmt.Sprintf("expected exactly one prior outcome, got %d", len(results)),
		})
	}

	if !shouldRevert(results[0]) {
		metrics.TransferResolutions.WithLabelValues("committed").Inc()
		slog.Info("Transfer committed",
			"token_id", tokenID,
			"owner_id", receiverID,
		)
		return false
	}

	// The receiver asked for the token back, or could not answer. Only return it
	// if nothing else has touched it since the optimistic write.
	leaseID, ok := token.Decode(tokenID)
	if !ok {
		return s.abandonRevert(tokenID, receiverID, "token id no longer decodes")
	}

	active, err := s.repository.IsActive(ctx, leaseID)
	if err != nil {
		return s.abandonRevert(tokenID, receiverID, err.Error())
	}
	if !active {
		return s.abandonRevert(tokenID, receiverID, "token is no longer active")
	}

	lease, err := s.repository.GetLease(ctx, leaseID)
	if isNotFound(err) {
		return s.abandonRevert(tokenID, receiverID, "lease record is gone")
	}
	if err != nil {
		return s.abandonRevert(tokenID, receiverID, err.Error())
	}

	if lease.LenderID != receiverID {
		return s.abandonRevert(tokenID, receiverID, "token is now owned by "+lease.LenderID)
	}

	if err := s.repository.UpdateLender(ctx, leaseID, previousOwnerID); err != nil {
		// Nothing was written: the token stays with the receiver
		metrics.ErrorsTotal.WithLabelValues(s.Name()).Inc()
		slog.Error("Failed to return token to previous owner",
			"token_id", tokenID,
			"receiver_id", receiverID,
			"previous_owner_id", previousOwnerID,
			"error", err,
		)
		return false
	}

	s.emit(ctx, &models.TokenEvent{
		Event:      models.EventNftTransfer,
		OldOwnerID: receiverID,
		NewOwnerID: previousOwnerID,
		TokenIDs:   []string{tokenID},
		Memo:       memo,
	})

	metrics.TransferResolutions.WithLabelValues("reverted").Inc()
	slog.Info("Transfer reverted",
		"token_id", tokenID,
		"receiver_id", receiverID,
		"previous_owner_id", previousOwnerID,
	)
	return true
}

// shouldRevert decides from the receiver outcome. Failure and anything but a
// well-formed boolean revert.
func shouldRevert(result promise.Result) bool {
	switch result.Status {
	case promise.Successful:
		var returnToken *bool
		if err := json.Unmarshal(result.Value, &returnToken); err != nil || returnToken == nil {
			slog.Warn("Receiver answer is not a boolean, reverting", "payload", string(result.Value))
			return true
		}
		return *returnToken
	case promise.Failed:
		slog.Warn("Receiver call failed, reverting", "error", result.Err)
		return true
	default:
		panic(promise.ProtocolViolation{
			Continuation: "nft_resolve_transfer",
			Reason:       "receiver outcome is " + result.Status.String(),
		})
	}
}

// abandonRevert reports the transfer as reverted without writing anything.
// The token has moved to a third party who must not lose it to this compensation.
func (s *TokenService) abandonRevert(tokenID, receiverID, reason string) bool {
	metrics.TransferResolutions.WithLabelValues("revert_abandoned").Inc()
	slog.Warn("Transfer revert abandoned",
		"token_id", tokenID,
		"receiver_id", receiverID,
		"reason", reason,
	)
	return true
}
