package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbourn/go-point-backend/internal/domain"
	"github.com/tbourn/go-point-backend/internal/lock"
	"github.com/tbourn/go-point-backend/internal/store"
)

func newTestService(t *testing.T) *PointService {
	t.Helper()
	return NewPointService(
		store.NewUserPointTable(store.Throttle{}),
		store.NewPointHistoryTable(store.Throttle{}),
		lock.NewKeyed(3*time.Second),
	)
}

func TestGetBalance_NeverChargedUser(t *testing.T) {
	svc := newTestService(t)

	up, err := svc.GetBalance(context.Background(), 123)
	require.NoError(t, err)
	assert.Equal(t, int64(123), up.ID)
	assert.Equal(t, int64(0), up.Point)
}

func TestGetHistory_NeverChargedUser(t *testing.T) {
	svc := newTestService(t)

	entries, err := svc.GetHistory(context.Background(), 123)
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestCharge_InvalidAmount(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	for _, amount := range []int64{0, -1, -500} {
		_, err := svc.Charge(ctx, 1, amount)
		assert.ErrorIs(t, err, ErrInvalidAmount, "amount %d", amount)
	}

	// State untouched.
	up, err := svc.GetBalance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), up.Point)
	entries, err := svc.GetHistory(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUse_InvalidAmount(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Charge(ctx, 1, 100)
	require.NoError(t, err)

	for _, amount := range []int64{0, -1} {
		_, err := svc.Use(ctx, 1, amount)
		assert.ErrorIs(t, err, ErrInvalidAmount, "amount %d", amount)
	}

	up, err := svc.GetBalance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(100), up.Point)
}

func TestCharge_Accumulates(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Charge(ctx, 5, 1000)
	require.NoError(t, err)
	up, err := svc.Charge(ctx, 5, 250)
	require.NoError(t, err)
	assert.Equal(t, int64(1250), up.Point)

	entries, err := svc.GetHistory(ctx, 5)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(1000), entries[0].Amount)
	assert.Equal(t, domain.TransactionCharge, entries[0].Type)
	assert.Equal(t, int64(250), entries[1].Amount)
	assert.Equal(t, domain.TransactionCharge, entries[1].Type)
	assert.Less(t, entries[0].ID, entries[1].ID)
}

func TestUse_InsufficientBalance(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Charge(ctx, 9, 100)
	require.NoError(t, err)

	_, err = svc.Use(ctx, 9, 101)
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	// Balance and history untouched by the failed use.
	up, err := svc.GetBalance(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, int64(100), up.Point)
	entries, err := svc.GetHistory(ctx, 9)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestChargeThenUse_Example(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	up, err := svc.Charge(ctx, 7, 500)
	require.NoError(t, err)
	assert.Equal(t, domain.UserPoint{ID: 7, Point: 500, UpdatedAt: up.UpdatedAt}, up)

	entries, err := svc.GetHistory(ctx, 7)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(1), entries[0].ID)
	assert.Equal(t, int64(7), entries[0].UserID)
	assert.Equal(t, int64(500), entries[0].Amount)
	assert.Equal(t, domain.TransactionCharge, entries[0].Type)

	up, err = svc.Use(ctx, 7, 300)
	require.NoError(t, err)
	assert.Equal(t, int64(200), up.Point)

	entries, err = svc.GetHistory(ctx, 7)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(2), entries[1].ID)
	assert.Equal(t, int64(300), entries[1].Amount)
	assert.Equal(t, domain.TransactionUse, entries[1].Type)
}

func TestMutation_TimestampsMatchHistory(t *testing.T) {
	svc := newTestService(t)
	fixed := time.UnixMilli(1_700_000_000_000)
	svc.Now = func() time.Time { return fixed }
	ctx := context.Background()

	up, err := svc.Charge(ctx, 3, 42)
	require.NoError(t, err)
	assert.Equal(t, fixed.UnixMilli(), up.UpdatedAt)

	entries, err := svc.GetHistory(ctx, 3)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, fixed.UnixMilli(), entries[0].CreatedAt)
}

func TestConcurrentMutations_NoLostUpdate(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	const userID = 1

	_, err := svc.Charge(ctx, userID, 10_000)
	require.NoError(t, err)

	// use(3000), charge(5000), use(7000) concurrently: every interleaving
	// keeps the balance non-negative, so all three must succeed and land on
	// 10000 - 3000 + 5000 - 7000 = 5000.
	ops := []func() (domain.UserPoint, error){
		func() (domain.UserPoint, error) { return svc.Use(ctx, userID, 3_000) },
		func() (domain.UserPoint, error) { return svc.Charge(ctx, userID, 5_000) },
		func() (domain.UserPoint, error) { return svc.Use(ctx, userID, 7_000) },
	}

	var wg sync.WaitGroup
	errs := make([]error, len(ops))
	for i, op := range ops {
		wg.Add(1)
		go func(i int, op func() (domain.UserPoint, error)) {
			defer wg.Done()
			_, errs[i] = op()
		}(i, op)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "op %d", i)
	}

	up, err := svc.GetBalance(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(5_000), up.Point)

	entries, err := svc.GetHistory(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, entries, 4)
}

func TestConcurrentMutations_RoundTripSum(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	const userID = 2

	_, err := svc.Charge(ctx, userID, 1_000)
	require.NoError(t, err)

	// 20 charges of 10 and 10 uses of 5; the starting balance covers every
	// interleaving, so the final balance is the plain arithmetic sum.
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Charge(ctx, userID, 10); err != nil {
				t.Errorf("Charge: %v", err)
			}
		}()
	}
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Use(ctx, userID, 5); err != nil {
				t.Errorf("Use: %v", err)
			}
		}()
	}
	wg.Wait()

	up, err := svc.GetBalance(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(1_000+20*10-10*5), up.Point)

	entries, err := svc.GetHistory(ctx, userID)
	require.NoError(t, err)
	require.Len(t, entries, 31)
	for i := 1; i < len(entries); i++ {
		assert.Less(t, entries[i-1].ID, entries[i].ID, "history ids must increase")
	}
}

func TestHistoryIDs_GlobalAcrossUsers(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Charge(ctx, 1, 10)
	require.NoError(t, err)
	_, err = svc.Charge(ctx, 2, 10)
	require.NoError(t, err)
	_, err = svc.Use(ctx, 1, 5)
	require.NoError(t, err)

	u1, err := svc.GetHistory(ctx, 1)
	require.NoError(t, err)
	u2, err := svc.GetHistory(ctx, 2)
	require.NoError(t, err)

	require.Len(t, u1, 2)
	require.Len(t, u2, 1)
	// Single log-global sequence: 1, 2, 3 — not per-user counters.
	assert.Equal(t, int64(1), u1[0].ID)
	assert.Equal(t, int64(2), u2[0].ID)
	assert.Equal(t, int64(3), u1[1].ID)
}

func TestDistinctUsers_MutateInParallel(t *testing.T) {
	// A user holding its lock must not delay another user's mutation.
	svc := newTestService(t)
	ctx := context.Background()

	entered := make(chan struct{})
	release := make(chan struct{})
	blocking := &blockingLocker{inner: svc.Locks, key: 1, entered: entered, release: release}
	svc.Locks = blocking

	go func() {
		_, _ = svc.Charge(ctx, 1, 10)
	}()
	<-entered

	done := make(chan error, 1)
	go func() {
		_, err := svc.Charge(ctx, 2, 10)
		done <- err
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatalf("user 2 blocked behind user 1's critical section")
	}
	close(release)
}

// blockingLocker parks inside user `key`'s critical section until released,
// delegating everything else to the real coordinator.
type blockingLocker struct {
	inner   Locker
	key     int64
	entered chan struct{}
	release chan struct{}

	once sync.Once
}

func (b *blockingLocker) WithLock(ctx context.Context, key int64, fn func() error) error {
	if key != b.key {
		return b.inner.WithLock(ctx, key, fn)
	}
	return b.inner.WithLock(ctx, key, func() error {
		b.once.Do(func() { close(b.entered) })
		<-b.release
		return fn()
	})
}

// timeoutLocker simulates a coordinator that never acquires in time.
type timeoutLocker struct{}

func (timeoutLocker) WithLock(ctx context.Context, key int64, fn func() error) error {
	return lock.ErrAcquireTimeout
}

func TestMutations_LockTimeout(t *testing.T) {
	svc := newTestService(t)
	svc.Locks = timeoutLocker{}
	ctx := context.Background()

	_, err := svc.Charge(ctx, 1, 100)
	assert.ErrorIs(t, err, ErrLockTimeout)
	_, err = svc.Use(ctx, 1, 100)
	assert.ErrorIs(t, err, ErrLockTimeout)

	// Nothing ran: balance and history are untouched.
	up, err := svc.GetBalance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), up.Point)
}

func TestReads_StoreUnavailable(t *testing.T) {
	svc := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.GetBalance(ctx, 1)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	_, err = svc.GetHistory(ctx, 1)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}
