package engine

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/efreitasn/athletex/internal/domain"
	"github.com/efreitasn/athletex/internal/ledger"
	"github.com/efreitasn/athletex/internal/store"
)

type testEnv struct {
	matcher  *Matcher
	ledger   *ledger.Ledger
	accounts *store.AccountStore
	assets   *store.AssetStore
	trades   *store.TradeStore
	orders   *store.OrderStore
}

func newTestEnv() *testEnv {
	accounts := store.NewAccountStore()
	locks := store.NewLockStore()
	assets := store.NewAssetStore()
	orders := store.NewOrderStore()
	trades := store.NewTradeStore()
	l := ledger.New(accounts, locks)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	m := NewMatcher(NewBookManager(), l, orders, trades, assets, NopNotifier{}, logger, 24*time.Hour)
	return &testEnv{
		matcher:  m,
		ledger:   l,
		accounts: accounts,
		assets:   assets,
		trades:   trades,
		orders:   orders,
	}
}

func (e *testEnv) addAccount(id string, cashCents int64, shares map[string]int64) {
	holdings := make(map[string]*domain.Holding)
	for assetID, qty := range shares {
		holdings[assetID] = &domain.Holding{
			AssetType: domain.AssetTypeAthlete,
			AssetID:   assetID,
			Quantity:  qty,
		}
	}
	_ = e.accounts.Create(&domain.Account{
		AccountID: id,
		CashCents: cashCents,
		Holdings:  holdings,
		CreatedAt: time.Now(),
	})
}

func (e *testEnv) addAsset(id string, totalShares int64) {
	_ = e.assets.Create(&domain.Asset{
		AssetID:     id,
		Name:        id,
		TotalShares: totalShares,
		ListedAt:    time.Now(),
	})
}

func TestLimitOrders_CrossAtRestingPrice(t *testing.T) {
	e := newTestEnv()
	e.addAsset("LBJ", 1000)
	e.addAccount("seller", 0, map[string]int64{"LBJ": 10})
	e.addAccount("buyer", 100000, nil)

	// Resting sell 10 @ $45.00.
	sell, err := e.matcher.SubmitLimitOrder("seller", "LBJ", domain.OrderSideSell, 4500, 10)
	if err != nil {
		t.Fatalf("sell error: %v", err)
	}
	// Incoming buy 10 @ $50.00 crosses at the resting price.
	buy, err := e.matcher.SubmitLimitOrder("buyer", "LBJ", domain.OrderSideBuy, 5000, 10)
	if err != nil {
		t.Fatalf("buy error: %v", err)
	}

	trades := e.trades.GetByAsset("LBJ")
	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}
	if trades[0].PriceCents != 4500 {
		t.Errorf("expected execution at resting price 4500, got %d", trades[0].PriceCents)
	}
	if trades[0].Quantity != 10 {
		t.Errorf("expected quantity 10, got %d", trades[0].Quantity)
	}

	if buy.Status != domain.OrderStatusFilled || sell.Status != domain.OrderStatusFilled {
		t.Errorf("expected both filled, got buy=%s sell=%s", buy.Status, sell.Status)
	}

	// Settlement: buyer paid 45000, not the 50000 that was reserved.
	buyerCash, _ := e.ledger.AvailableBalance("buyer")
	if buyerCash != 55000 {
		t.Errorf("expected buyer available cash 55000, got %d", buyerCash)
	}
	sellerCash, _ := e.ledger.AvailableBalance("seller")
	if sellerCash != 45000 {
		t.Errorf("expected seller cash 45000, got %d", sellerCash)
	}
	buyerShares, _ := e.ledger.AvailableShares("buyer", "LBJ")
	if buyerShares != 10 {
		t.Errorf("expected buyer to hold 10 shares, got %d", buyerShares)
	}
	sellerShares, _ := e.ledger.AvailableShares("seller", "LBJ")
	if sellerShares != 0 {
		t.Errorf("expected seller to hold 0 shares, got %d", sellerShares)
	}

	// No residual locks on either side.
	if locked := e.ledger.LockedBalance("buyer"); locked != 0 {
		t.Errorf("expected no buyer cash locks, got %d", locked)
	}
	if locked := e.ledger.LockedShares("seller", "LBJ"); locked != 0 {
		t.Errorf("expected no seller share locks, got %d", locked)
	}
}

func TestLimitSell_CrossesAtRestingBidPrice(t *testing.T) {
	e := newTestEnv()
	e.addAsset("LBJ", 1000)
	e.addAccount("buyer", 100000, nil)
	e.addAccount("seller", 0, map[string]int64{"LBJ": 10})

	// Resting bid 10 @ $50.00; incoming sell 10 @ $45.00.
	if _, err := e.matcher.SubmitLimitOrder("buyer", "LBJ", domain.OrderSideBuy, 5000, 10); err != nil {
		t.Fatalf("buy error: %v", err)
	}
	if _, err := e.matcher.SubmitLimitOrder("seller", "LBJ", domain.OrderSideSell, 4500, 10); err != nil {
		t.Fatalf("sell error: %v", err)
	}

	trades := e.trades.GetByAsset("LBJ")
	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}
	if trades[0].PriceCents != 5000 {
		t.Errorf("expected execution at resting bid price 5000, got %d", trades[0].PriceCents)
	}
	sellerCash, _ := e.ledger.AvailableBalance("seller")
	if sellerCash != 50000 {
		t.Errorf("expected seller to receive 50000, got %d", sellerCash)
	}
}

func TestLimitOrder_PartialFillRestsRemainder(t *testing.T) {
	e := newTestEnv()
	e.addAsset("LBJ", 1000)
	e.addAccount("seller", 0, map[string]int64{"LBJ": 4})
	e.addAccount("buyer", 100000, nil)

	_, _ = e.matcher.SubmitLimitOrder("seller", "LBJ", domain.OrderSideSell, 4500, 4)
	buy, err := e.matcher.SubmitLimitOrder("buyer", "LBJ", domain.OrderSideBuy, 5000, 10)
	if err != nil {
		t.Fatalf("buy error: %v", err)
	}

	if buy.Status != domain.OrderStatusPartial {
		t.Errorf("expected partial, got %s", buy.Status)
	}
	if buy.FilledQuantity != 4 || buy.RemainingQuantity != 6 {
		t.Errorf("expected filled=4 remaining=6, got filled=%d remaining=%d", buy.FilledQuantity, buy.RemainingQuantity)
	}

	// The remainder rests and its cash lock shrinks to limit price * remaining.
	bids, _, err := e.matcher.Depth("LBJ", 10)
	if err != nil {
		t.Fatalf("depth error: %v", err)
	}
	if len(bids) != 1 || bids[0].TotalQuantity != 6 {
		t.Fatalf("expected resting bid of 6, got %+v", bids)
	}
	if locked := e.ledger.LockedBalance("buyer"); locked != 5000*6 {
		t.Errorf("expected cash lock 30000 for the remainder, got %d", locked)
	}
}

func TestLimitOrder_NoCrossWhenPricesDoNotOverlap(t *testing.T) {
	e := newTestEnv()
	e.addAsset("LBJ", 1000)
	e.addAccount("seller", 0, map[string]int64{"LBJ": 10})
	e.addAccount("buyer", 100000, nil)

	_, _ = e.matcher.SubmitLimitOrder("seller", "LBJ", domain.OrderSideSell, 5000, 10)
	buy, _ := e.matcher.SubmitLimitOrder("buyer", "LBJ", domain.OrderSideBuy, 4900, 10)

	if buy.Status != domain.OrderStatusOpen {
		t.Errorf("expected open, got %s", buy.Status)
	}
	if trades := e.trades.GetByAsset("LBJ"); len(trades) != 0 {
		t.Errorf("expected no trades, got %d", len(trades))
	}
}

func TestLimitOrder_RejectedWhenReservationFails(t *testing.T) {
	e := newTestEnv()
	e.addAsset("LBJ", 1000)
	e.addAccount("buyer", 1000, nil)
	e.addAccount("seller", 0, map[string]int64{"LBJ": 3})

	_, err := e.matcher.SubmitLimitOrder("buyer", "LBJ", domain.OrderSideBuy, 5000, 10)
	if !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	_, err = e.matcher.SubmitLimitOrder("seller", "LBJ", domain.OrderSideSell, 5000, 10)
	if !errors.Is(err, domain.ErrInsufficientShares) {
		t.Fatalf("expected ErrInsufficientShares, got %v", err)
	}

	// Nothing rested, nothing locked.
	bids, asks, _ := e.matcher.Depth("LBJ", 10)
	if len(bids) != 0 || len(asks) != 0 {
		t.Errorf("expected empty book, got bids=%v asks=%v", bids, asks)
	}
	if locked := e.ledger.LockedBalance("buyer"); locked != 0 {
		t.Errorf("expected no cash locks, got %d", locked)
	}
}

func TestCancelOrder_RestoresAvailabilityExactly(t *testing.T) {
	e := newTestEnv()
	e.addAsset("LBJ", 1000)
	e.addAccount("seller", 0, map[string]int64{"LBJ": 10})

	sell, _ := e.matcher.SubmitLimitOrder("seller", "LBJ", domain.OrderSideSell, 4500, 10)
	avail, _ := e.ledger.AvailableShares("seller", "LBJ")
	if avail != 0 {
		t.Fatalf("expected 0 available while resting, got %d", avail)
	}

	cancelled, err := e.matcher.CancelOrder("seller", sell.OrderID)
	if err != nil {
		t.Fatalf("cancel error: %v", err)
	}
	if cancelled.Status != domain.OrderStatusCancelled {
		t.Errorf("expected cancelled, got %s", cancelled.Status)
	}
	if cancelled.CancelledAt == nil {
		t.Error("expected CancelledAt to be set")
	}

	avail, _ = e.ledger.AvailableShares("seller", "LBJ")
	if avail != 10 {
		t.Errorf("expected availability restored to 10, got %d", avail)
	}
	if _, _, err := e.matcher.Depth("LBJ", 10); err != nil {
		t.Fatalf("depth error: %v", err)
	}
	_, asks, _ := e.matcher.Depth("LBJ", 10)
	if len(asks) != 0 {
		t.Errorf("expected empty ask side, got %v", asks)
	}
}

func TestCancelOrder_FilledIsNotCancellable(t *testing.T) {
	e := newTestEnv()
	e.addAsset("LBJ", 1000)
	e.addAccount("seller", 0, map[string]int64{"LBJ": 10})
	e.addAccount("buyer", 100000, nil)

	sell, _ := e.matcher.SubmitLimitOrder("seller", "LBJ", domain.OrderSideSell, 4500, 10)
	_, _ = e.matcher.SubmitLimitOrder("buyer", "LBJ", domain.OrderSideBuy, 4500, 10)

	_, err := e.matcher.CancelOrder("seller", sell.OrderID)
	if !errors.Is(err, domain.ErrOrderNotCancellable) {
		t.Fatalf("expected ErrOrderNotCancellable, got %v", err)
	}
}

func TestCancelOrder_WrongAccount(t *testing.T) {
	e := newTestEnv()
	e.addAsset("LBJ", 1000)
	e.addAccount("seller", 0, map[string]int64{"LBJ": 10})
	e.addAccount("other", 0, nil)

	sell, _ := e.matcher.SubmitLimitOrder("seller", "LBJ", domain.OrderSideSell, 4500, 10)
	if _, err := e.matcher.CancelOrder("other", sell.OrderID); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestMarketBuy_ImmediateOrCancel(t *testing.T) {
	e := newTestEnv()
	e.addAsset("LBJ", 1000)
	e.addAccount("seller", 0, map[string]int64{"LBJ": 5})
	e.addAccount("buyer", 100000, nil)

	_, _ = e.matcher.SubmitLimitOrder("seller", "LBJ", domain.OrderSideSell, 4500, 5)

	// Only 5 on the book; the other 5 are cancelled.
	order, err := e.matcher.SubmitMarketOrder("buyer", "LBJ", domain.OrderSideBuy, 10)
	if err != nil {
		t.Fatalf("market buy error: %v", err)
	}
	if order.FilledQuantity != 5 || order.CancelledQuantity != 5 {
		t.Errorf("expected filled=5 cancelled=5, got filled=%d cancelled=%d", order.FilledQuantity, order.CancelledQuantity)
	}
	if order.Status != domain.OrderStatusCancelled {
		t.Errorf("expected cancelled status for partially filled IOC order, got %s", order.Status)
	}

	// Exactly the executed notional was spent and no locks remain.
	cash, _ := e.ledger.AvailableBalance("buyer")
	if cash != 100000-5*4500 {
		t.Errorf("expected buyer cash 77500, got %d", cash)
	}
	if locked := e.ledger.LockedBalance("buyer"); locked != 0 {
		t.Errorf("expected no residual cash lock, got %d", locked)
	}
	shares, _ := e.ledger.AvailableShares("buyer", "LBJ")
	if shares != 5 {
		t.Errorf("expected buyer to hold 5 shares, got %d", shares)
	}
}

func TestMarketSell_FillsAgainstBids(t *testing.T) {
	e := newTestEnv()
	e.addAsset("LBJ", 1000)
	e.addAccount("buyer", 100000, nil)
	e.addAccount("seller", 0, map[string]int64{"LBJ": 10})

	_, _ = e.matcher.SubmitLimitOrder("buyer", "LBJ", domain.OrderSideBuy, 5000, 4)
	_, _ = e.matcher.SubmitLimitOrder("buyer", "LBJ", domain.OrderSideBuy, 4900, 4)

	order, err := e.matcher.SubmitMarketOrder("seller", "LBJ", domain.OrderSideSell, 8)
	if err != nil {
		t.Fatalf("market sell error: %v", err)
	}
	if order.Status != domain.OrderStatusFilled {
		t.Errorf("expected filled, got %s", order.Status)
	}

	// Best bid consumed first.
	cash, _ := e.ledger.AvailableBalance("seller")
	if cash != 4*5000+4*4900 {
		t.Errorf("expected seller cash 39600, got %d", cash)
	}
	if locked := e.ledger.LockedShares("seller", "LBJ"); locked != 0 {
		t.Errorf("expected no residual share lock, got %d", locked)
	}
}

func TestMarketOrder_NoLiquidity(t *testing.T) {
	e := newTestEnv()
	e.addAsset("LBJ", 1000)
	e.addAccount("buyer", 100000, nil)

	_, err := e.matcher.SubmitMarketOrder("buyer", "LBJ", domain.OrderSideBuy, 10)
	if !errors.Is(err, domain.ErrNoLiquidity) {
		t.Fatalf("expected ErrNoLiquidity, got %v", err)
	}
	if locked := e.ledger.LockedBalance("buyer"); locked != 0 {
		t.Errorf("expected no locks after rejection, got %d", locked)
	}
}

func TestSimulateMarketOrder_QuotesWithoutExecuting(t *testing.T) {
	e := newTestEnv()
	e.addAsset("LBJ", 1000)
	e.addAccount("seller", 0, map[string]int64{"LBJ": 10})

	_, _ = e.matcher.SubmitLimitOrder("seller", "LBJ", domain.OrderSideSell, 4500, 4)
	_, _ = e.matcher.SubmitLimitOrder("seller", "LBJ", domain.OrderSideSell, 4600, 6)

	q, err := e.matcher.SimulateMarketOrder("LBJ", domain.OrderSideBuy, 8)
	if err != nil {
		t.Fatalf("simulate error: %v", err)
	}
	if q.FillableQuantity != 8 {
		t.Errorf("expected fillable 8, got %d", q.FillableQuantity)
	}
	wantCost := int64(4*4500 + 4*4600)
	if q.EstimatedCostCents != wantCost {
		t.Errorf("expected cost %d, got %d", wantCost, q.EstimatedCostCents)
	}
	if trades := e.trades.GetByAsset("LBJ"); len(trades) != 0 {
		t.Errorf("expected no trades from simulation, got %d", len(trades))
	}
}

func TestMatchingPass_UpdatesAssetStats(t *testing.T) {
	e := newTestEnv()
	e.addAsset("LBJ", 1000)
	e.addAccount("seller", 0, map[string]int64{"LBJ": 10})
	e.addAccount("buyer", 100000, nil)

	_, _ = e.matcher.SubmitLimitOrder("seller", "LBJ", domain.OrderSideSell, 4500, 10)
	_, _ = e.matcher.SubmitLimitOrder("buyer", "LBJ", domain.OrderSideBuy, 4500, 10)

	a, err := e.assets.Get("LBJ")
	if err != nil {
		t.Fatalf("asset error: %v", err)
	}
	if a.LastPriceCents != 4500 {
		t.Errorf("expected last price 4500, got %d", a.LastPriceCents)
	}
	if a.Volume24h != 10 {
		t.Errorf("expected 24h volume 10, got %d", a.Volume24h)
	}
	if a.MarketCapCents != 1000*4500 {
		t.Errorf("expected market cap %d, got %d", int64(1000*4500), a.MarketCapCents)
	}
}

func TestIncomingOrder_SweepsMultiplePriceLevels(t *testing.T) {
	e := newTestEnv()
	e.addAsset("LBJ", 1000)
	e.addAccount("s1", 0, map[string]int64{"LBJ": 3})
	e.addAccount("s2", 0, map[string]int64{"LBJ": 3})
	e.addAccount("buyer", 100000, nil)

	_, _ = e.matcher.SubmitLimitOrder("s1", "LBJ", domain.OrderSideSell, 4500, 3)
	_, _ = e.matcher.SubmitLimitOrder("s2", "LBJ", domain.OrderSideSell, 4600, 3)

	buy, _ := e.matcher.SubmitLimitOrder("buyer", "LBJ", domain.OrderSideBuy, 4600, 6)
	if buy.Status != domain.OrderStatusFilled {
		t.Fatalf("expected filled, got %s", buy.Status)
	}

	trades := e.trades.GetByAsset("LBJ")
	if len(trades) != 2 {
		t.Fatalf("expected 2 trades, got %d", len(trades))
	}
	// Each trade at its maker's price, best price first.
	if trades[0].PriceCents != 4500 || trades[1].PriceCents != 4600 {
		t.Errorf("expected prices 4500 then 4600, got %d then %d", trades[0].PriceCents, trades[1].PriceCents)
	}

	cash, _ := e.ledger.AvailableBalance("buyer")
	if cash != 100000-3*4500-3*4600 {
		t.Errorf("expected buyer cash %d, got %d", 100000-3*4500-3*4600, cash)
	}
}
