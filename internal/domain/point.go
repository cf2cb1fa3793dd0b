// Package domain defines the core records of the point ledger: per-user
// balances and the append-only transaction history. These types are the
// single source of truth shared by the store, service, and HTTP layers.
package domain

// TransactionType distinguishes the two kinds of balance mutations that can
// appear in the history log.
type TransactionType string

const (
	// TransactionCharge marks a history entry that added points to a balance.
	TransactionCharge TransactionType = "CHARGE"
	// TransactionUse marks a history entry that deducted points from a balance.
	TransactionUse TransactionType = "USE"
)

// Valid reports whether t is one of the known transaction types.
func (t TransactionType) Valid() bool {
	return t == TransactionCharge || t == TransactionUse
}

// UserPoint is the current balance record for one user.
//
// Invariants:
//   - Point is never negative; the service rejects any deduction that would
//     break this before writing.
//   - There is exactly one UserPoint per user id. A user that was never
//     charged is represented by the zero-point record returned by
//     NewEmptyUserPoint; nothing is persisted until the first mutation.
//   - Writes happen only inside the owning user's locked critical section.
//
// Fields:
//   - ID: user identifier (>= 0).
//   - Point: current balance.
//   - UpdatedAt: unix milliseconds of the last mutation (0 for the lazily
//     created default).
type UserPoint struct {
	ID        int64 `json:"id"`
	Point     int64 `json:"point"`
	UpdatedAt int64 `json:"updateMillis"`
}

// NewEmptyUserPoint returns the default zero-balance record for a user that
// has no stored balance yet.
func NewEmptyUserPoint(userID int64) UserPoint {
	return UserPoint{ID: userID, Point: 0, UpdatedAt: 0}
}

// PointHistory is one immutable entry in the transaction log.
//
// Fields:
//   - ID: log-global sequence number, strictly increasing from 1 across ALL
//     users for the process lifetime. Never reused.
//   - UserID: the user whose balance the entry mutated.
//   - Amount: the charged or used amount; always positive regardless of type.
//   - Type: CHARGE or USE.
//   - CreatedAt: unix milliseconds; equals the UpdatedAt written to the
//     balance record in the same critical section.
type PointHistory struct {
	ID        int64           `json:"id"`
	UserID    int64           `json:"userId"`
	Amount    int64           `json:"amount"`
	Type      TransactionType `json:"type"`
	CreatedAt int64           `json:"updateMillis"`
}
