// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// This file centralizes symbolic error code constants that are mapped to HTTP
// responses (via the `fail()` helper in this package). These codes give
// clients a stable, machine-readable error taxonomy alongside human-readable
// messages.
//
// Conventions:
//   - Codes are lowercase, snake_case.
//   - Generic codes (bad_request, not_found, internal_error) mirror common
//     HTTP status semantics.
//   - Domain-specific codes (invalid_amount, insufficient_balance,
//     lock_timeout) carry the point-service failure taxonomy that a status
//     alone cannot convey.
//
// Status mapping used by the point endpoints:
//   - invalid_amount        → 400
//   - lock_timeout          → 408
//   - insufficient_balance  → 409
//   - anything else         → 500
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"

	// Domain-specific:
	ErrCodeInvalidAmount       = "invalid_amount"
	ErrCodeInsufficientBalance = "insufficient_balance"
	ErrCodeLockTimeout         = "lock_timeout"
)
