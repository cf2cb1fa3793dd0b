// Package store provides the in-memory tables backing the point service:
// one balance record per user and an append-only transaction history log.
//
// The tables stand in for an external datastore. Each call can be configured
// to sleep for a random duration (Throttle) so that deployments and tests
// exercise the service under realistic store latency. Crucially, the tables
// offer NO read-modify-write atomicity: callers that need a consistent
// balance update must hold the per-user lock across the read, the write, and
// the history append. The internal mutexes below exist only to keep the maps
// and slices memory-safe under concurrent access, never to order callers.
package store

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

// ErrUnavailable is returned when a table call gives up because the caller's
// context was canceled mid-operation. The service layer surfaces it as a
// general store failure.
var ErrUnavailable = errors.New("store unavailable")

// Throttle describes the artificial latency window applied to every table
// call, simulating a slow external datastore. A zero Throttle disables the
// delay entirely (the default for tests).
type Throttle struct {
	// Min is the lower bound of the simulated call latency.
	Min time.Duration
	// Max is the upper bound. Values below Min are treated as Min.
	Max time.Duration
}

// sleep blocks for a random duration in [Min, Max], honoring ctx. It returns
// an ErrUnavailable-wrapped error when ctx is canceled before the delay
// elapses.
func (t Throttle) sleep(ctx context.Context) error {
	d := t.Min
	if t.Max > t.Min {
		d = t.Min + rand.N(t.Max-t.Min)
	}
	if d <= 0 {
		// Still honor an already-canceled context on the fast path.
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrUnavailable, ctx.Err())
	}
}
