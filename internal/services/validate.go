package services

import "github.com/tbourn/go-point-backend/internal/domain"

// validatePositive rejects non-positive mutation amounts. Pure, safe to call
// without holding any lock.
func validatePositive(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// validateSufficient rejects a deduction that exceeds the current balance.
//
// It must be evaluated inside the same locked critical section as the
// balance read it is based on; checking against a balance read outside the
// lock reintroduces the check-then-act race this service exists to prevent.
func validateSufficient(amount int64, balance domain.UserPoint) error {
	if balance.Point < amount {
		return ErrInsufficientBalance
	}
	return nil
}
