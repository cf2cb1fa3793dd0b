package store

import (
	"context"
	"sync"

	"github.com/tbourn/go-point-backend/internal/domain"
)

// PointHistoryTable is the append-only transaction log shared by all users.
//
// Entry ids come from a single log-global cursor that starts at 1 and only
// moves forward for the process lifetime, so ids are strictly increasing
// across users and never reused. Entries are immutable once appended and
// SelectAllByUserID preserves insertion order.
type PointHistoryTable struct {
	mu       sync.RWMutex
	entries  []domain.PointHistory
	cursor   int64
	throttle Throttle
}

// NewPointHistoryTable constructs an empty history log with the given
// simulated latency window.
func NewPointHistoryTable(throttle Throttle) *PointHistoryTable {
	return &PointHistoryTable{throttle: throttle}
}

// Insert appends a new history entry, assigning it the next log-global id,
// and returns the stored entry.
func (t *PointHistoryTable) Insert(ctx context.Context, userID, amount int64, txType domain.TransactionType, createdAt int64) (domain.PointHistory, error) {
	if err := t.throttle.sleep(ctx); err != nil {
		return domain.PointHistory{}, err
	}

	t.mu.Lock()
	t.cursor++
	entry := domain.PointHistory{
		ID:        t.cursor,
		UserID:    userID,
		Amount:    amount,
		Type:      txType,
		CreatedAt: createdAt,
	}
	t.entries = append(t.entries, entry)
	t.mu.Unlock()
	return entry, nil
}

// SelectAllByUserID returns the user's history entries in insertion order.
// A user with no entries yields an empty (non-nil) slice.
func (t *PointHistoryTable) SelectAllByUserID(ctx context.Context, userID int64) ([]domain.PointHistory, error) {
	if err := t.throttle.sleep(ctx); err != nil {
		return nil, err
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]domain.PointHistory, 0)
	for _, e := range t.entries {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}
