package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"leasetoken/internal/services"
	"leasetoken/internal/storage"
)

// Options tunes the API server
type Options struct {
	// TransferCallWait bounds how long transfer_call waits for the resolution
	TransferCallWait time.Duration

	// Per-caller token bucket
	RateLimit float64
	RateBurst int
}

// Server represents the HTTP API server.
// Provides token and marketplace endpoints, Prometheus metrics and health checks.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	repository storage.Repository
	tokens     *services.TokenService
	listings   *services.ListingService
	limiter    *callerLimiter
	options    Options
	port       int
}

// NewServer creates a new API server instance
func NewServer(
	port int,
	repository storage.Repository,
	tokens *services.TokenService,
	listings *services.ListingService,
	options Options,
) *Server {
	mux := http.NewServeMux()

	s := &Server{
		mux:        mux,
		repository: repository,
		tokens:     tokens,
		listings:   listings,
		limiter:    newCallerLimiter(options.RateLimit, options.RateBurst, callerIdleTTL),
		options:    options,
		port:       port,
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: options.TransferCallWait + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.registerRoutes()

	return s
}

// Handler returns the routed handler wrapped with rate limiting
func (s *Server) Handler() http.Handler {
	return s.rateLimit(s.mux)
}

// registerRoutes sets up all HTTP routes
func (s *Server) registerRoutes() {
	// Core endpoints
	s.mux.HandleFunc("/", s.handleIndex)
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.Handle("/metrics", s.handleMetrics())

	// Token endpoints
	s.mux.HandleFunc("/tokens", s.handleTokens)
	s.mux.HandleFunc("/tokens/", s.handleTokenRoutes)

	// Marketplace endpoints
	s.mux.HandleFunc("/marketplace/approvals", s.handleApprovals)
	s.mux.HandleFunc("/marketplace/listings", s.handleListings)
	s.mux.HandleFunc("/marketplace/listings/", s.handleListingRoutes)
}

// handleTokens lists tokens of an owner (without trailing slash)
func (s *Server) handleTokens(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.handleListTokens(w, r)
}

// handleTokenRoutes routes token sub-endpoints (with trailing slash)
func (s *Server) handleTokenRoutes(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/tokens/")
	parts := strings.Split(path, "/")

	switch {
	// GET /tokens/{id}
	case len(parts) == 1 && r.Method == http.MethodGet:
		s.handleGetToken(w, r, parts[0])

	// GET /tokens/{id}/events
	case len(parts) == 2 && parts[1] == "events" && r.Method == http.MethodGet:
		s.handleGetTokenEvents(w, r, parts[0])

	// POST /tokens/{id}/transfer
	case len(parts) == 2 && parts[1] == "transfer" && r.Method == http.MethodPost:
		s.handleTransfer(w, r, parts[0])

	// POST /tokens/{id}/transfer_call
	case len(parts) == 2 && parts[1] == "transfer_call" && r.Method == http.MethodPost:
		s.handleTransferCall(w, r, parts[0])

	case len(parts) <= 2:
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)

	default:
		s.sendError(w, "Endpoint not found", http.StatusNotFound)
	}
}

// handleListings lists marketplace listings (without trailing slash)
func (s *Server) handleListings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.handleListListings(w, r)
}

// handleListingRoutes serves GET /marketplace/listings/{source_id}/{token_id}
func (s *Server) handleListingRoutes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/marketplace/listings/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		s.sendError(w, "Endpoint not found", http.StatusNotFound)
		return
	}

	s.handleGetListing(w, r, parts[0], parts[1])
}

// handleApprovals accepts approval notifications relayed by token contracts
func (s *Server) handleApprovals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.handleApproval(w, r)
}

// ListenAndServe runs the HTTP server until it is shut down
func (s *Server) ListenAndServe() error {
	slog.Info("API server starting",
		"port", s.port,
		"endpoints", []string{"/", "/health", "/metrics", "/tokens", "/marketplace/listings"},
	)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
// Waits for active connections to close or context to timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("API server shutting down...")
	return s.httpServer.Shutdown(ctx)
}
