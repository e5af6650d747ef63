package models

import "errors"

// Error taxonomy shared by the token and marketplace services.
// Wrap these with fmt.Errorf("...: %w") and match with errors.Is.
var (
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrInvalidArgument = errors.New("invalid argument")
)
