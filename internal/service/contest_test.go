package service

import (
	"errors"
	"sync"
	"testing"

	"github.com/efreitasn/athletex/internal/domain"
)

func TestContestEnter_StakesShares(t *testing.T) {
	ts := newTestStack()
	ts.listAsset("LBJ", 1000, 45.00)
	ts.register("u1", 0, []HoldingInput{{AssetID: "LBJ", Quantity: 10}})

	entry, err := ts.contestSvc.Enter("u1", "LBJ", 6)
	if err != nil {
		t.Fatalf("enter error: %v", err)
	}
	if entry.Quantity != 6 {
		t.Errorf("expected stake of 6, got %d", entry.Quantity)
	}

	// Staked shares cannot be sold.
	_, err = ts.orderSvc.SubmitOrder(SubmitOrderRequest{
		Type: domain.OrderTypeLimit, AccountID: "u1", AssetID: "LBJ",
		Side: domain.OrderSideSell, Price: floatPtr(45.00), Quantity: 5,
	})
	if !errors.Is(err, domain.ErrInsufficientShares) {
		t.Fatalf("expected ErrInsufficientShares for staked shares, got %v", err)
	}
}

func TestContestEnter_InsufficientShares(t *testing.T) {
	ts := newTestStack()
	ts.listAsset("LBJ", 1000, 45.00)
	ts.register("u1", 0, []HoldingInput{{AssetID: "LBJ", Quantity: 3}})

	if _, err := ts.contestSvc.Enter("u1", "LBJ", 4); !errors.Is(err, domain.ErrInsufficientShares) {
		t.Fatalf("expected ErrInsufficientShares, got %v", err)
	}
}

func TestContestWithdraw_RestoresAvailability(t *testing.T) {
	ts := newTestStack()
	ts.listAsset("LBJ", 1000, 45.00)
	ts.register("u1", 0, []HoldingInput{{AssetID: "LBJ", Quantity: 10}})

	entry, _ := ts.contestSvc.Enter("u1", "LBJ", 10)
	if err := ts.contestSvc.Withdraw("u1", entry.EntryID); err != nil {
		t.Fatalf("withdraw error: %v", err)
	}

	b, _ := ts.accountSvc.GetBalance("u1")
	if b.Holdings[0].AvailableQuantity != 10 {
		t.Errorf("expected availability restored to 10, got %d", b.Holdings[0].AvailableQuantity)
	}

	// The entry is gone afterwards.
	if err := ts.contestSvc.Withdraw("u1", entry.EntryID); !errors.Is(err, domain.ErrEntryNotFound) {
		t.Fatalf("expected ErrEntryNotFound on second withdraw, got %v", err)
	}
}

func TestContestSettle_Win(t *testing.T) {
	ts := newTestStack()
	ts.listAsset("LBJ", 1000, 45.00)
	ts.register("u1", 0, []HoldingInput{{AssetID: "LBJ", Quantity: 10}})

	entry, _ := ts.contestSvc.Enter("u1", "LBJ", 10)
	if err := ts.contestSvc.Settle("u1", entry.EntryID, 5); err != nil {
		t.Fatalf("settle error: %v", err)
	}

	b, _ := ts.accountSvc.GetBalance("u1")
	if b.Holdings[0].Quantity != 15 || b.Holdings[0].AvailableQuantity != 15 {
		t.Errorf("expected 15 shares all available, got %+v", b.Holdings[0])
	}

	// Winnings are minted into supply.
	stats, _ := ts.marketSvc.GetStats("LBJ")
	if stats.TotalShares != 1005 {
		t.Errorf("expected supply 1005, got %d", stats.TotalShares)
	}
}

func TestContestSettle_Loss(t *testing.T) {
	ts := newTestStack()
	ts.listAsset("LBJ", 1000, 45.00)
	ts.register("u1", 0, []HoldingInput{{AssetID: "LBJ", Quantity: 10}})

	entry, _ := ts.contestSvc.Enter("u1", "LBJ", 10)
	if err := ts.contestSvc.Settle("u1", entry.EntryID, -4); err != nil {
		t.Fatalf("settle error: %v", err)
	}

	b, _ := ts.accountSvc.GetBalance("u1")
	if b.Holdings[0].Quantity != 6 || b.Holdings[0].AvailableQuantity != 6 {
		t.Errorf("expected 6 shares all available, got %+v", b.Holdings[0])
	}
}

func TestContestSettle_LossCannotExceedStake(t *testing.T) {
	ts := newTestStack()
	ts.listAsset("LBJ", 1000, 45.00)
	ts.register("u1", 0, []HoldingInput{{AssetID: "LBJ", Quantity: 10}})

	entry, _ := ts.contestSvc.Enter("u1", "LBJ", 3)
	err := ts.contestSvc.Settle("u1", entry.EntryID, -4)
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}

	// The entry is still settleable afterwards.
	if err := ts.contestSvc.Settle("u1", entry.EntryID, -3); err != nil {
		t.Fatalf("settle error: %v", err)
	}
}

func TestContestSettle_LossNotSpendableConcurrently(t *testing.T) {
	ts := newTestStack()
	ts.listAsset("LBJ", 1000, 45.00)
	ts.register("u1", 0, []HoldingInput{{AssetID: "LBJ", Quantity: 10}})

	entry, _ := ts.contestSvc.Enter("u1", "LBJ", 10)

	// The full stake is lost while other goroutines try to reserve the
	// same shares. The stake lock must pin the shares until the loss is
	// debited, so no reservation may ever win.
	const attempts = 8
	var wg sync.WaitGroup
	results := make([]error, attempts)
	wg.Add(attempts + 1)
	go func() {
		defer wg.Done()
		if err := ts.contestSvc.Settle("u1", entry.EntryID, -10); err != nil {
			t.Errorf("settle error: %v", err)
		}
	}()
	for i := 0; i < attempts; i++ {
		go func(i int) {
			defer wg.Done()
			_, results[i] = ts.contestSvc.Enter("u1", "LBJ", 1)
		}(i)
	}
	wg.Wait()

	for i, err := range results {
		if err == nil {
			t.Errorf("attempt %d reserved shares that were being burned", i)
		} else if !errors.Is(err, domain.ErrInsufficientShares) {
			t.Errorf("attempt %d: expected ErrInsufficientShares, got %v", i, err)
		}
	}

	b, _ := ts.accountSvc.GetBalance("u1")
	if len(b.Holdings) != 0 {
		t.Errorf("expected holding deleted after full loss, got %+v", b.Holdings)
	}
}

func TestContestEntry_WrongAccount(t *testing.T) {
	ts := newTestStack()
	ts.listAsset("LBJ", 1000, 45.00)
	ts.register("u1", 0, []HoldingInput{{AssetID: "LBJ", Quantity: 10}})
	ts.register("u2", 0, nil)

	entry, _ := ts.contestSvc.Enter("u1", "LBJ", 5)
	if err := ts.contestSvc.Withdraw("u2", entry.EntryID); !errors.Is(err, domain.ErrEntryNotFound) {
		t.Fatalf("expected ErrEntryNotFound for foreign entry, got %v", err)
	}
}
