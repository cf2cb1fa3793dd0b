// Package services implements the business logic of the point ledger.
// This file centralizes the service-level error values so that they can be
// consistently returned by service methods and checked by callers.
//
// These errors form the complete failure taxonomy of charge/use/read
// operations. Translation into HTTP status codes is performed at the
// handler layer; none of them is retried internally.
package services

import "errors"

var (
	// ErrInvalidAmount is returned when a charge or use amount is zero or
	// negative. State is left untouched.
	ErrInvalidAmount = errors.New("amount must be greater than zero")

	// ErrInsufficientBalance is returned when a use would drive the balance
	// negative. State is left untouched.
	ErrInsufficientBalance = errors.New("insufficient point balance")

	// ErrLockTimeout is returned when the per-user lock could not be acquired
	// within its bound. The mutation never started; callers may retry.
	ErrLockTimeout = errors.New("timed out waiting for user lock")

	// ErrStoreUnavailable is returned when an underlying store call failed.
	// It is surfaced as a general failure, never specially recovered.
	ErrStoreUnavailable = errors.New("point store unavailable")
)
