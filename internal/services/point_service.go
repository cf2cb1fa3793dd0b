// Package services – PointService
//
// This file implements the PointService, which orchestrates every read and
// mutation of user point balances. Reads (balance, history) go straight to
// the stores; mutations (charge, use) run inside the user's exclusive lock
// so that the read-modify-write of the balance and the matching history
// append form one critical section. The stores themselves provide no
// atomicity, which makes the per-user lock the sole consistency mechanism.
//
// Service-level errors (e.g., ErrInsufficientBalance) are returned for
// predictable cases so handlers can map them to HTTP results consistently.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-point-backend/internal/domain"
	"github.com/tbourn/go-point-backend/internal/lock"
	"github.com/tbourn/go-point-backend/internal/store"
)

// PointRepo defines the balance-table contract required by PointService.
type PointRepo interface {
	// SelectByID returns the user's balance record, defaulting to a
	// zero-point record for users never written.
	SelectByID(ctx context.Context, userID int64) (domain.UserPoint, error)

	// InsertOrUpdate unconditionally overwrites the user's balance record.
	InsertOrUpdate(ctx context.Context, userID, point, updatedAt int64) (domain.UserPoint, error)
}

// HistoryRepo defines the history-log contract required by PointService.
type HistoryRepo interface {
	// Insert appends one immutable history entry with a log-global id.
	Insert(ctx context.Context, userID, amount int64, txType domain.TransactionType, createdAt int64) (domain.PointHistory, error)

	// SelectAllByUserID returns the user's entries in insertion order.
	SelectAllByUserID(ctx context.Context, userID int64) ([]domain.PointHistory, error)
}

// Locker serializes critical sections per user id with a bounded wait.
type Locker interface {
	WithLock(ctx context.Context, key int64, fn func() error) error
}

// PointService provides balance queries and the charge/use mutations.
//
// A mutation for user U holds U's lock across: re-read of the current
// balance, (for use) the sufficiency check, the balance overwrite, and the
// history append. Plain reads bypass locking entirely and may observe a
// snapshot concurrently being updated.
type PointService struct {
	// Points is the balance table.
	Points PointRepo
	// Histories is the append-only transaction log.
	Histories HistoryRepo
	// Locks serializes mutations per user id.
	Locks Locker

	// Now supplies timestamps; overridable in tests. Defaults to time.Now.
	Now func() time.Time
}

// NewPointService constructs a PointService over the given collaborators.
func NewPointService(points PointRepo, histories HistoryRepo, locks Locker) *PointService {
	return &PointService{
		Points:    points,
		Histories: histories,
		Locks:     locks,
		Now:       time.Now,
	}
}

// GetBalance returns the user's current balance without locking. Users that
// were never charged yield the zero-balance default.
func (s *PointService) GetBalance(ctx context.Context, userID int64) (domain.UserPoint, error) {
	up, err := s.Points.SelectByID(ctx, userID)
	if err != nil {
		return domain.UserPoint{}, translate(err)
	}
	return up, nil
}

// GetHistory returns the user's transaction history in insertion order
// without locking. Users with no transactions yield an empty slice.
func (s *PointService) GetHistory(ctx context.Context, userID int64) ([]domain.PointHistory, error) {
	entries, err := s.Histories.SelectAllByUserID(ctx, userID)
	if err != nil {
		return nil, translate(err)
	}
	return entries, nil
}

// Charge adds amount points to the user's balance and appends a CHARGE
// history entry, all inside the user's lock. It returns the updated balance.
//
// Fails with ErrInvalidAmount when amount <= 0 and ErrLockTimeout when the
// lock wait bound elapses; neither leaves any state change behind.
func (s *PointService) Charge(ctx context.Context, userID, amount int64) (domain.UserPoint, error) {
	if err := validatePositive(amount); err != nil {
		return domain.UserPoint{}, err
	}

	var updated domain.UserPoint
	err := s.Locks.WithLock(ctx, userID, func() error {
		cur, err := s.Points.SelectByID(ctx, userID)
		if err != nil {
			return err
		}

		now := s.now().UnixMilli()
		updated, err = s.Points.InsertOrUpdate(ctx, userID, cur.Point+amount, now)
		if err != nil {
			return err
		}
		if _, err := s.Histories.Insert(ctx, userID, amount, domain.TransactionCharge, now); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return domain.UserPoint{}, translate(err)
	}

	log.Debug().
		Int64("user_id", userID).
		Int64("amount", amount).
		Int64("balance", updated.Point).
		Msg("points charged")
	return updated, nil
}

// Use deducts amount points from the user's balance and appends a USE
// history entry, all inside the user's lock. It returns the updated balance.
//
// The sufficiency check runs against the balance re-read inside the lock, so
// a concurrent mutation can never slip between validation and the write.
// Fails with ErrInvalidAmount (amount <= 0), ErrInsufficientBalance, or
// ErrLockTimeout; none of them leaves any state change behind.
func (s *PointService) Use(ctx context.Context, userID, amount int64) (domain.UserPoint, error) {
	if err := validatePositive(amount); err != nil {
		return domain.UserPoint{}, err
	}

	var updated domain.UserPoint
	err := s.Locks.WithLock(ctx, userID, func() error {
		cur, err := s.Points.SelectByID(ctx, userID)
		if err != nil {
			return err
		}
		if err := validateSufficient(amount, cur); err != nil {
			return err
		}

		now := s.now().UnixMilli()
		updated, err = s.Points.InsertOrUpdate(ctx, userID, cur.Point-amount, now)
		if err != nil {
			return err
		}
		if _, err := s.Histories.Insert(ctx, userID, amount, domain.TransactionUse, now); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return domain.UserPoint{}, translate(err)
	}

	log.Debug().
		Int64("user_id", userID).
		Int64("amount", amount).
		Int64("balance", updated.Point).
		Msg("points used")
	return updated, nil
}

// now tolerates a zero-value service constructed without NewPointService.
func (s *PointService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// translate maps collaborator errors onto the service taxonomy. Service
// sentinels pass through untouched; unknown errors bubble up raw.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrInsufficientBalance):
		return err
	case errors.Is(err, lock.ErrAcquireTimeout):
		return ErrLockTimeout
	case errors.Is(err, store.ErrUnavailable):
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return err
}
