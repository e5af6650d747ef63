package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"leasetoken/internal/models"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// handleIndex returns basic service information
// GET / - Returns service info and available endpoints
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		s.sendError(w, "Endpoint not found", http.StatusNotFound)
		return
	}

	info := map[string]interface{}{
		"service":     "leasetoken",
		"version":     "1.0.0",
		"description": "Lease ownership tokens and rental marketplace listings",
		"endpoints": map[string]string{
			"GET /":                                      "This page - Service information",
			"GET /health":                                "Health check endpoint",
			"GET /metrics":                               "Prometheus metrics for monitoring",
			"GET /tokens?owner_id=":                      "List tokens of an owner (supports ?limit=, ?offset=)",
			"GET /tokens/{id}":                           "Get a token",
			"GET /tokens/{id}/events":                    "Get the event timeline of a token",
			"POST /tokens/{id}/transfer":                 "Transfer a token",
			"POST /tokens/{id}/transfer_call":            "Transfer a token and notify the receiver",
			"POST /marketplace/approvals":                "Approval notification from a token contract",
			"GET /marketplace/listings":                  "List listings (supports ?limit=, ?offset=)",
			"GET /marketplace/listings/{source}/{token}": "Get a listing",
		},
	}

	s.sendJSON(w, http.StatusOK, info)
}

// handleHealth returns health status
// GET /health - Pings the database
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status, code := "healthy", http.StatusOK
	if err := s.repository.Ping(ctx); err != nil {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}

	s.sendJSON(w, code, map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"service":   "leasetoken",
	})
}

// handleMetrics returns Prometheus metrics
// GET /metrics - Prometheus scraping endpoint
func (s *Server) handleMetrics() http.Handler {
	return promhttp.Handler()
}

// =============================================================================
// TOKEN ENDPOINTS
// =============================================================================

// handleListTokens lists the tokens of an owner
// GET /tokens?owner_id=alice&limit=50&offset=0
func (s *Server) handleListTokens(w http.ResponseWriter, r *http.Request) {
	ownerID := r.URL.Query().Get("owner_id")
	if ownerID == "" {
		s.sendError(w, "owner_id is required", http.StatusBadRequest)
		return
	}
	limit, offset, page := pagination(r)

	tokens, err := s.tokens.TokensForOwner(r.Context(), ownerID, limit, offset)
	if err != nil {
		s.sendServiceError(w, r, err)
		return
	}

	s.sendJSON(w, http.StatusOK, models.TokenListResponse{
		Tokens:   tokens,
		OwnerID:  ownerID,
		Page:     page,
		PageSize: limit,
	})
}

// handleGetToken returns one token
// GET /tokens/{id}
func (s *Server) handleGetToken(w http.ResponseWriter, r *http.Request, tokenID string) {
	view, err := s.tokens.GetToken(r.Context(), tokenID)
	if err != nil {
		s.sendServiceError(w, r, err)
		return
	}
	if view == nil {
		s.sendError(w, "Token not found", http.StatusNotFound)
		return
	}

	s.sendJSON(w, http.StatusOK, view)
}

// handleGetTokenEvents returns the event timeline of a token, oldest first
// GET /tokens/{id}/events
func (s *Server) handleGetTokenEvents(w http.ResponseWriter, r *http.Request, tokenID string) {
	limit, offset, page := pagination(r)

	events, err := s.repository.ListTokenEvents(r.Context(), tokenID, limit, offset)
	if err != nil {
		s.sendServiceError(w, r, err)
		return
	}

	response := models.TokenEventListResponse{
		TokenID:  tokenID,
		Events:   make([]models.TokenEvent, 0, len(events)),
		Page:     page,
		PageSize: limit,
	}
	for _, event := range events {
		response.Events = append(response.Events, *event)
	}

	s.sendJSON(w, http.StatusOK, response)
}

// handleTransfer moves a token without notifying the receiver
// POST /tokens/{id}/transfer
func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request, tokenID string) {
	call, err := callContext(r)
	if err != nil {
		s.sendServiceError(w, r, err)
		return
	}

	var req models.TransferRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.sendServiceError(w, r, err)
		return
	}

	if err := s.tokens.Transfer(r.Context(), call, req.ReceiverID, tokenID, req.ApprovalID, req.Memo); err != nil {
		s.sendServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleTransferCall moves a token and waits for the receiver's decision.
// Answers 202 when the resolution did not settle within the configured wait.
// POST /tokens/{id}/transfer_call
func (s *Server) handleTransferCall(w http.ResponseWriter, r *http.Request, tokenID string) {
	call, err := callContext(r)
	if err != nil {
		s.sendServiceError(w, r, err)
		return
	}

	var req models.TransferRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.sendServiceError(w, r, err)
		return
	}

	result, err := s.tokens.TransferCall(r.Context(), call, req.ReceiverID, tokenID, req.ApprovalID, req.Memo, req.Msg)
	if err != nil {
		s.sendServiceError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.options.TransferCallWait)
	defer cancel()

	reverted, err := result.Wait(ctx)
	switch {
	case err == nil:
		s.sendJSON(w, http.StatusOK, models.TransferCallResponse{
			TokenID:  tokenID,
			Status:   "resolved",
			Reverted: &reverted,
		})
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.sendJSON(w, http.StatusAccepted, models.TransferCallResponse{
			TokenID: tokenID,
			Status:  "pending",
		})
	default:
		s.sendServiceError(w, r, fmt.Errorf("transfer of %s was not resolved: %w", tokenID, err))
	}
}

// =============================================================================
// MARKETPLACE ENDPOINTS
// =============================================================================

// handleApproval accepts an approval notification relayed by a token contract.
// The listing is created once the payout query settles.
// POST /marketplace/approvals
func (s *Server) handleApproval(w http.ResponseWriter, r *http.Request) {
	call, err := callContext(r)
	if err != nil {
		s.sendServiceError(w, r, err)
		return
	}

	var req models.ApprovalRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.sendServiceError(w, r, err)
		return
	}

	if _, err := s.listings.OnApprovalReceived(r.Context(), call, req.TokenID, req.OwnerID, req.ApprovalID, req.Msg); err != nil {
		s.sendServiceError(w, r, err)
		return
	}

	s.sendJSON(w, http.StatusAccepted, models.AcceptedResponse{Status: "pending"})
}

// handleListListings lists listings, newest first
// GET /marketplace/listings?limit=50&offset=0
func (s *Server) handleListListings(w http.ResponseWriter, r *http.Request) {
	limit, offset, page := pagination(r)

	listings, err := s.listings.ListListings(r.Context(), limit, offset)
	if err != nil {
		s.sendServiceError(w, r, err)
		return
	}

	response := models.ListingListResponse{
		Listings: make([]models.Listing, 0, len(listings)),
		Page:     page,
		PageSize: limit,
	}
	for _, listing := range listings {
		response.Listings = append(response.Listings, *listing)
	}

	s.sendJSON(w, http.StatusOK, response)
}

// handleGetListing returns one listing
// GET /marketplace/listings/{source_id}/{token_id}
func (s *Server) handleGetListing(w http.ResponseWriter, r *http.Request, sourceID, tokenID string) {
	listing, err := s.listings.GetListing(r.Context(), sourceID, tokenID)
	if err != nil {
		s.sendServiceError(w, r, err)
		return
	}

	s.sendJSON(w, http.StatusOK, listing)
}
