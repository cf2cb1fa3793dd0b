package store

import (
	"context"
	"sync"

	"github.com/tbourn/go-point-backend/internal/domain"
)

// UserPointTable holds the current balance record per user id.
//
// Semantics match a trivial external key-value table:
//   - SelectByID is get-or-default: a user with no record yields the lazily
//     created zero-balance UserPoint (nothing is stored by a read).
//   - InsertOrUpdate is an unconditional overwrite.
//
// The table is memory-safe under concurrent use but deliberately provides no
// compare-and-swap or transaction primitive; serializing read-modify-write
// sequences is the caller's job.
type UserPointTable struct {
	mu       sync.RWMutex
	records  map[int64]domain.UserPoint
	throttle Throttle
}

// NewUserPointTable constructs an empty balance table with the given
// simulated latency window.
func NewUserPointTable(throttle Throttle) *UserPointTable {
	return &UserPointTable{
		records:  make(map[int64]domain.UserPoint),
		throttle: throttle,
	}
}

// SelectByID returns the balance record for userID, or the zero-balance
// default when the user has never been written.
func (t *UserPointTable) SelectByID(ctx context.Context, userID int64) (domain.UserPoint, error) {
	if err := t.throttle.sleep(ctx); err != nil {
		return domain.UserPoint{}, err
	}

	t.mu.RLock()
	up, ok := t.records[userID]
	t.mu.RUnlock()
	if !ok {
		return domain.NewEmptyUserPoint(userID), nil
	}
	return up, nil
}

// InsertOrUpdate overwrites the balance record for userID and returns the
// stored record.
func (t *UserPointTable) InsertOrUpdate(ctx context.Context, userID, point, updatedAt int64) (domain.UserPoint, error) {
	if err := t.throttle.sleep(ctx); err != nil {
		return domain.UserPoint{}, err
	}

	up := domain.UserPoint{ID: userID, Point: point, UpdatedAt: updatedAt}
	t.mu.Lock()
	t.records[userID] = up
	t.mu.Unlock()
	return up, nil
}
