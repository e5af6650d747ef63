package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"leasetoken/internal/models"
)

// Caller identity headers set by the fronting gateway
const (
	HeaderPredecessorID   = "X-Predecessor-Id"
	HeaderSignerID        = "X-Signer-Id"
	HeaderAttachedDeposit = "X-Attached-Deposit"
)

// callContext builds the caller identity of a request.
// The signer defaults to the predecessor for direct calls.
func callContext(r *http.Request) (models.CallContext, error) {
	call := models.CallContext{
		Predecessor: strings.TrimSpace(r.Header.Get(HeaderPredecessorID)),
		Signer:      strings.TrimSpace(r.Header.Get(HeaderSignerID)),
	}
	if call.Signer == "" {
		call.Signer = call.Predecessor
	}

	if raw := strings.TrimSpace(r.Header.Get(HeaderAttachedDeposit)); raw != "" {
		deposit, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return call, fmt.Errorf("invalid %s header %q: %w", HeaderAttachedDeposit, raw, models.ErrInvalidArgument)
		}
		call.AttachedDeposit = deposit
	}

	return call, nil
}

// pagination reads limit and offset, defaulting to 50 and capping limit at 100
func pagination(r *http.Request) (limit, offset, page int) {
	query := r.URL.Query()

	limit = 50
	if parsed, err := strconv.Atoi(query.Get("limit")); err == nil && parsed > 0 && parsed <= 100 {
		limit = parsed
	}

	if parsed, err := strconv.Atoi(query.Get("offset")); err == nil && parsed >= 0 {
		offset = parsed
	}

	return limit, offset, offset/limit + 1
}

// decodeBody strictly decodes a JSON request body
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", errors.Join(models.ErrInvalidArgument, err))
	}
	return nil
}

// statusFor maps service errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// sendServiceError writes err with its mapped status; internal details are only logged
func (s *Server) sendServiceError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		slog.Error("Request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		s.sendError(w, "Internal server error", code)
		return
	}
	s.sendError(w, err.Error(), code)
}

// sendJSON writes a JSON body with the given status
func (s *Server) sendJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Warn("Failed to write response", "error", err)
	}
}

// sendError sends a JSON error response
func (s *Server) sendError(w http.ResponseWriter, message string, code int) {
	s.sendJSON(w, code, models.ErrorResponse{
		Error:   http.StatusText(code),
		Message: message,
		Code:    code,
	})
}
