package engine

import (
	"fmt"
	"testing"

	"pgregory.net/rapid"

	"github.com/efreitasn/athletex/internal/domain"
)

// Property: across any sequence of limit orders, market orders and
// cancellations, total cash and total shares in the system are conserved,
// no balance or holding goes negative, and every order's quantities stay
// internally consistent.

func TestProperty_MatchingConservesCashAndShares(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		e := newTestEnv()
		e.addAsset("LBJ", 200)

		accountIDs := []string{"u1", "u2", "u3"}
		startCash := int64(1_000_000)
		startShares := int64(100)
		for _, id := range accountIDs {
			e.addAccount(id, startCash, map[string]int64{"LBJ": startShares})
		}
		totalCash := startCash * int64(len(accountIDs))
		totalShares := startShares * int64(len(accountIDs))

		var submitted []string

		steps := rapid.IntRange(1, 60).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			account := rapid.SampledFrom(accountIDs).Draw(t, fmt.Sprintf("account-%d", i))
			action := rapid.IntRange(0, 3).Draw(t, fmt.Sprintf("action-%d", i))

			switch action {
			case 0, 1:
				side := domain.OrderSideBuy
				if action == 1 {
					side = domain.OrderSideSell
				}
				price := rapid.Int64Range(1, 100).Draw(t, fmt.Sprintf("price-%d", i)) * 100
				qty := rapid.Int64Range(1, 30).Draw(t, fmt.Sprintf("qty-%d", i))
				order, err := e.matcher.SubmitLimitOrder(account, "LBJ", side, price, qty)
				if err == nil {
					submitted = append(submitted, order.OrderID)
				}
			case 2:
				side := domain.OrderSideBuy
				if rapid.Bool().Draw(t, fmt.Sprintf("mside-%d", i)) {
					side = domain.OrderSideSell
				}
				qty := rapid.Int64Range(1, 30).Draw(t, fmt.Sprintf("mqty-%d", i))
				_, _ = e.matcher.SubmitMarketOrder(account, "LBJ", side, qty)
			case 3:
				if len(submitted) == 0 {
					continue
				}
				idx := rapid.IntRange(0, len(submitted)-1).Draw(t, fmt.Sprintf("cidx-%d", i))
				order, err := e.orders.Get(submitted[idx])
				if err != nil {
					t.Fatalf("lost order %s: %v", submitted[idx], err)
				}
				_, _ = e.matcher.CancelOrder(order.AccountID, order.OrderID)
			}

			checkConservation(t, e, accountIDs, totalCash, totalShares)
		}

		// Cancel everything; availability must return to ownership.
		for _, id := range submitted {
			order, _ := e.orders.Get(id)
			_, _ = e.matcher.CancelOrder(order.AccountID, order.OrderID)
		}
		for _, id := range accountIDs {
			cash, _ := e.ledger.AvailableBalance(id)
			locked := e.ledger.LockedBalance(id)
			if locked != 0 {
				t.Fatalf("account %s still has %d cents locked after cancelling all orders", id, locked)
			}
			shares, _ := e.ledger.AvailableShares(id, "LBJ")
			if lockedShares := e.ledger.LockedShares(id, "LBJ"); lockedShares != 0 {
				t.Fatalf("account %s still has %d shares locked", id, lockedShares)
			}
			_ = cash
			_ = shares
		}
		checkConservation(t, e, accountIDs, totalCash, totalShares)
	})
}

func checkConservation(t *rapid.T, e *testEnv, accountIDs []string, totalCash, totalShares int64) {
	t.Helper()

	var cashSum, shareSum int64
	for _, id := range accountIDs {
		acct, err := e.accounts.Get(id)
		if err != nil {
			t.Fatalf("account %s: %v", id, err)
		}
		acct.Mu.Lock()
		if acct.CashCents < 0 {
			acct.Mu.Unlock()
			t.Fatalf("account %s cash went negative", id)
		}
		cashSum += acct.CashCents
		for _, h := range acct.Holdings {
			if h.Quantity < 0 {
				acct.Mu.Unlock()
				t.Fatalf("account %s holding %s went negative", id, h.AssetID)
			}
			shareSum += h.Quantity
		}
		acct.Mu.Unlock()
	}
	if cashSum != totalCash {
		t.Fatalf("cash not conserved: expected %d, got %d", totalCash, cashSum)
	}
	if shareSum != totalShares {
		t.Fatalf("shares not conserved: expected %d, got %d", totalShares, shareSum)
	}
}

// Property: for any executed trade, the price equals some resting order's
// limit price at execution time, and quantities on both orders remain
// internally consistent.

func TestProperty_OrderQuantitiesStayConsistent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		e := newTestEnv()
		e.addAsset("LBJ", 200)
		e.addAccount("u1", 1_000_000, map[string]int64{"LBJ": 100})
		e.addAccount("u2", 1_000_000, map[string]int64{"LBJ": 100})

		var orderIDs []string
		steps := rapid.IntRange(1, 40).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			account := "u1"
			if rapid.Bool().Draw(t, fmt.Sprintf("acct-%d", i)) {
				account = "u2"
			}
			side := domain.OrderSideBuy
			if rapid.Bool().Draw(t, fmt.Sprintf("side-%d", i)) {
				side = domain.OrderSideSell
			}
			price := rapid.Int64Range(40, 60).Draw(t, fmt.Sprintf("price-%d", i)) * 100
			qty := rapid.Int64Range(1, 20).Draw(t, fmt.Sprintf("qty-%d", i))

			order, err := e.matcher.SubmitLimitOrder(account, "LBJ", side, price, qty)
			if err != nil {
				continue
			}
			orderIDs = append(orderIDs, order.OrderID)

			for _, id := range orderIDs {
				o, err := e.orders.Get(id)
				if err != nil {
					t.Fatalf("order %s: %v", id, err)
				}
				if o.FilledQuantity+o.RemainingQuantity+o.CancelledQuantity != o.Quantity {
					t.Fatalf("order %s quantities inconsistent: filled=%d remaining=%d cancelled=%d total=%d",
						id, o.FilledQuantity, o.RemainingQuantity, o.CancelledQuantity, o.Quantity)
				}
				if o.FilledQuantity > o.Quantity {
					t.Fatalf("order %s overfilled", id)
				}
				switch o.Status {
				case domain.OrderStatusFilled:
					if o.RemainingQuantity != 0 {
						t.Fatalf("filled order %s has remaining %d", id, o.RemainingQuantity)
					}
				case domain.OrderStatusOpen:
					if o.FilledQuantity != 0 {
						t.Fatalf("open order %s has fills", id)
					}
				}
			}
		}

		// Every trade executed at one of the two sides' limit prices.
		for _, trade := range e.trades.GetByAsset("LBJ") {
			buy, _ := e.orders.Get(trade.BuyOrderID)
			sell, _ := e.orders.Get(trade.SellOrderID)
			if trade.PriceCents != buy.PriceCents && trade.PriceCents != sell.PriceCents {
				t.Fatalf("trade price %d matches neither order limit (%d, %d)",
					trade.PriceCents, buy.PriceCents, sell.PriceCents)
			}
			if buy.PriceCents < trade.PriceCents {
				t.Fatalf("buyer paid %d above limit %d", trade.PriceCents, buy.PriceCents)
			}
			if sell.PriceCents > trade.PriceCents {
				t.Fatalf("seller received %d below limit %d", trade.PriceCents, sell.PriceCents)
			}
		}
	})
}
