package store

import (
	"context"
	"sync"
	"testing"

	"github.com/tbourn/go-point-backend/internal/domain"
)

func TestPointHistoryTable_Insert_AssignsSequentialIDs(t *testing.T) {
	tbl := NewPointHistoryTable(Throttle{})
	ctx := context.Background()

	first, err := tbl.Insert(ctx, 7, 500, domain.TransactionCharge, 1000)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if first.ID != 1 {
		t.Fatalf("first ID = %d; want 1", first.ID)
	}

	// ids are log-global: a different user continues the same sequence.
	second, err := tbl.Insert(ctx, 8, 300, domain.TransactionUse, 2000)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if second.ID != 2 {
		t.Fatalf("second ID = %d; want 2", second.ID)
	}
}

func TestPointHistoryTable_SelectAllByUserID_Empty(t *testing.T) {
	tbl := NewPointHistoryTable(Throttle{})

	got, err := tbl.SelectAllByUserID(context.Background(), 1)
	if err != nil {
		t.Fatalf("SelectAllByUserID: %v", err)
	}
	if got == nil {
		t.Fatalf("expected empty slice, got nil")
	}
	if len(got) != 0 {
		t.Fatalf("len = %d; want 0", len(got))
	}
}

func TestPointHistoryTable_SelectAllByUserID_FiltersAndPreservesOrder(t *testing.T) {
	tbl := NewPointHistoryTable(Throttle{})
	ctx := context.Background()

	seed := []struct {
		userID int64
		amount int64
		txType domain.TransactionType
	}{
		{7, 500, domain.TransactionCharge},
		{8, 100, domain.TransactionCharge},
		{7, 300, domain.TransactionUse},
		{7, 200, domain.TransactionCharge},
	}
	for _, s := range seed {
		if _, err := tbl.Insert(ctx, s.userID, s.amount, s.txType, 1); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	got, err := tbl.SelectAllByUserID(ctx, 7)
	if err != nil {
		t.Fatalf("SelectAllByUserID: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d; want 3", len(got))
	}
	wantAmounts := []int64{500, 300, 200}
	for i, e := range got {
		if e.UserID != 7 {
			t.Fatalf("entry %d UserID = %d; want 7", i, e.UserID)
		}
		if e.Amount != wantAmounts[i] {
			t.Fatalf("entry %d Amount = %d; want %d", i, e.Amount, wantAmounts[i])
		}
		if i > 0 && got[i].ID <= got[i-1].ID {
			t.Fatalf("ids not increasing: %d then %d", got[i-1].ID, got[i].ID)
		}
	}
}

func TestPointHistoryTable_ConcurrentInserts_NoIDReuse(t *testing.T) {
	tbl := NewPointHistoryTable(Throttle{})
	ctx := context.Background()

	const n = 100
	ids := make(chan int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			e, err := tbl.Insert(ctx, userID, 10, domain.TransactionCharge, 1)
			if err != nil {
				t.Errorf("Insert: %v", err)
				return
			}
			ids <- e.ID
		}(int64(i % 5))
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]bool, n)
	for id := range ids {
		if id < 1 || id > n {
			t.Fatalf("id %d outside [1,%d]", id, n)
		}
		if seen[id] {
			t.Fatalf("id %d assigned twice", id)
		}
		seen[id] = true
	}
	if len(seen) != n {
		t.Fatalf("got %d unique ids; want %d", len(seen), n)
	}
}

func TestPointHistoryTable_CanceledContext(t *testing.T) {
	tbl := NewPointHistoryTable(Throttle{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := tbl.Insert(ctx, 1, 10, domain.TransactionCharge, 1); err == nil {
		t.Fatalf("expected error for canceled context")
	}
	if _, err := tbl.SelectAllByUserID(ctx, 1); err == nil {
		t.Fatalf("expected error for canceled context")
	}
}
