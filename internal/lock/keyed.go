// Package lock implements the per-user mutual exclusion that serializes
// balance mutations. Each user id maps to its own FIFO mutex, so concurrent
// charge/use calls for one user run strictly one at a time in arrival order
// while calls for different users proceed in parallel.
//
// The mutex here differs from sync.Mutex in two ways the service depends on:
//   - Fairness: release hands ownership directly to the oldest waiter, so a
//     hot user cannot starve any single caller.
//   - Bounded wait: acquisition gives up after a configurable timeout (or on
//     context cancellation) without ever running the critical section.
//
// Lock entries are created lazily, at most one per key, and retained for the
// process lifetime. The key space is bounded by active users, so there is no
// eviction.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultTimeout bounds lock acquisition when no explicit timeout is given.
const DefaultTimeout = 3000 * time.Millisecond

// ErrAcquireTimeout is returned by WithLock when the per-key lock could not
// be acquired within the configured bound. The protected operation is not
// executed in that case.
var ErrAcquireTimeout = errors.New("lock acquisition timed out")

var (
	// lockWait records how long callers waited to enter a critical section.
	lockWait = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "point_lock_wait_seconds",
		Help:    "Time spent waiting to acquire a per-user lock.",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms..~4s
	})

	// lockTimeouts counts acquisitions abandoned at the wait bound.
	lockTimeouts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "point_lock_timeouts_total",
		Help: "Total number of per-user lock acquisitions that timed out.",
	})

	// locksHeld gauges critical sections currently executing.
	locksHeld = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "point_locks_held",
		Help: "Number of per-user locks currently held.",
	})
)

func init() {
	prometheus.MustRegister(lockWait, lockTimeouts, locksHeld)
}

// fifoMutex is an exclusive lock whose waiters are granted in arrival order.
//
// Invariant: when locked is false the waiter queue is empty, because release
// transfers ownership to the head waiter instead of unlocking whenever the
// queue is non-empty.
type fifoMutex struct {
	mu      sync.Mutex
	locked  bool
	waiters []chan struct{}
}

// acquire blocks until the lock is granted, the timeout elapses, or ctx is
// canceled. A closed waiter channel signals ownership transfer from release.
func (m *fifoMutex) acquire(ctx context.Context, timeout time.Duration) error {
	m.mu.Lock()
	if !m.locked {
		m.locked = true
		m.mu.Unlock()
		return nil
	}
	w := make(chan struct{})
	m.waiters = append(m.waiters, w)
	m.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-w:
		return nil
	case <-timer.C:
		return m.abandon(w, ErrAcquireTimeout)
	case <-ctx.Done():
		return m.abandon(w, ctx.Err())
	}
}

// abandon withdraws w from the wait queue and reports cause. If release
// already granted the lock to w, ownership is passed straight on to the next
// waiter so no grant is lost.
func (m *fifoMutex) abandon(w chan struct{}, cause error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	select {
	case <-w:
		m.handOffLocked()
		return cause
	default:
	}

	for i, q := range m.waiters {
		if q == w {
			m.waiters = append(m.waiters[:i], m.waiters[i+1:]...)
			break
		}
	}
	return cause
}

// release grants the lock to the oldest waiter, or unlocks when none wait.
func (m *fifoMutex) release() {
	m.mu.Lock()
	m.handOffLocked()
	m.mu.Unlock()
}

// handOffLocked pops the head waiter and transfers ownership by closing its
// channel; locked stays true across the transfer. Callers must hold m.mu.
func (m *fifoMutex) handOffLocked() {
	if len(m.waiters) > 0 {
		w := m.waiters[0]
		m.waiters = m.waiters[1:]
		close(w)
		return
	}
	m.locked = false
}

// Keyed coordinates one fifoMutex per key. It is safe for concurrent use;
// the zero value is not usable, construct it with NewKeyed.
type Keyed struct {
	timeout time.Duration

	mu    sync.Mutex
	locks map[int64]*fifoMutex
}

// NewKeyed constructs a coordinator whose acquisitions wait at most timeout.
// A non-positive timeout falls back to DefaultTimeout.
func NewKeyed(timeout time.Duration) *Keyed {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Keyed{
		timeout: timeout,
		locks:   make(map[int64]*fifoMutex),
	}
}

// get returns the mutex for key, installing at most one even under
// concurrent first-time access.
func (k *Keyed) get(key int64) *fifoMutex {
	k.mu.Lock()
	defer k.mu.Unlock()
	m, ok := k.locks[key]
	if !ok {
		m = &fifoMutex{}
		k.locks[key] = m
	}
	return m
}

// WithLock runs fn while holding the exclusive lock for key.
//
// When the lock cannot be acquired within the coordinator's timeout it
// returns ErrAcquireTimeout and fn is never called; when ctx is canceled
// first, ctx's error is returned instead. Once entered, the critical section
// runs to completion and the lock is released unconditionally afterward,
// including when fn returns an error or panics. fn's error is returned as-is.
func (k *Keyed) WithLock(ctx context.Context, key int64, fn func() error) error {
	m := k.get(key)

	start := time.Now()
	if err := m.acquire(ctx, k.timeout); err != nil {
		if errors.Is(err, ErrAcquireTimeout) {
			lockTimeouts.Inc()
		}
		return err
	}
	lockWait.Observe(time.Since(start).Seconds())

	locksHeld.Inc()
	defer func() {
		m.release()
		locksHeld.Dec()
	}()

	return fn()
}
