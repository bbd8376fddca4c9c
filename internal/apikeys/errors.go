package apikeys

import (
	"errors"
	"fmt"
)

// Rejection taxonomy. Every failure surfaced by this package is one of
// these, so handlers can map outcomes to HTTP statuses without string
// matching.
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrNotFound           = errors.New("api key not found")
	ErrNoOp               = errors.New("no fields to update")
	ErrMissingCredential  = errors.New("api key required")
	ErrInvalidCredential  = errors.New("invalid api key")
	ErrRevokedCredential  = errors.New("api key revoked")
	ErrQuotaExceeded      = errors.New("monthly limit exceeded")
	ErrBackendUnavailable = errors.New("backend unavailable")
)

// ErrDuplicateKey is returned by a Store when an insert or secret update
// collides with an existing secret. The service retries with a fresh token.
var ErrDuplicateKey = errors.New("duplicate api key secret")

// QuotaError carries the usage figures a caller needs to self-diagnose a
// quota rejection. It matches ErrQuotaExceeded under errors.Is.
type QuotaError struct {
	Usage int64
	Limit int64
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("monthly limit of %d requests reached (usage: %d)", e.Limit, e.Usage)
}

func (e *QuotaError) Is(target error) bool {
	return target == ErrQuotaExceeded
}
