// Package engine implements the continuous double-auction matching engine.
// Each asset has its own order book; a matching pass holds that book's
// mutex from reservation check to settlement, so passes for one asset are
// strictly serialized while different assets match in parallel.
package engine

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/efreitasn/athletex/internal/domain"
	"github.com/efreitasn/athletex/internal/ledger"
	"github.com/efreitasn/athletex/internal/store"
)

// Quote is the result of simulating a market order against the current book.
type Quote struct {
	Quantity           int64
	FillableQuantity   int64
	EstimatedCostCents int64
	AvgPriceCents      int64
}

// Matcher coordinates order intake, crossing and settlement for all assets.
type Matcher struct {
	books       *BookManager
	ledger      *ledger.Ledger
	orders      *store.OrderStore
	trades      *store.TradeStore
	assets      *store.AssetStore
	notifier    Notifier
	logger      *slog.Logger
	statsWindow time.Duration
}

// NewMatcher creates a Matcher wired to the given stores. statsWindow is
// the rolling window used for volume and price change (24h in production).
func NewMatcher(books *BookManager, l *ledger.Ledger, orders *store.OrderStore, trades *store.TradeStore, assets *store.AssetStore, notifier Notifier, logger *slog.Logger, statsWindow time.Duration) *Matcher {
	return &Matcher{
		books:       books,
		ledger:      l,
		orders:      orders,
		trades:      trades,
		assets:      assets,
		notifier:    notifier,
		logger:      logger,
		statsWindow: statsWindow,
	}
}

// SubmitLimitOrder reserves the order's full funding, runs a matching pass
// against the opposite side and rests any unfilled remainder on the book.
//
// The reservation happens before the order becomes visible: a buy locks
// price*quantity of cash, a sell locks quantity shares, both under the
// order's own ID as reference. If the reservation fails the order is
// rejected and nothing else changes.
func (m *Matcher) SubmitLimitOrder(accountID, assetID string, side domain.OrderSide, priceCents, quantity int64) (*domain.Order, error) {
	if !m.assets.Exists(assetID) {
		return nil, domain.ErrAssetNotFound
	}
	if priceCents <= 0 {
		return nil, &domain.ValidationError{Message: "price must be positive"}
	}
	if quantity <= 0 {
		return nil, &domain.ValidationError{Message: "quantity must be positive"}
	}

	orderID := uuid.New().String()
	now := time.Now()

	book := m.books.GetOrCreate(assetID)
	book.mu.Lock()

	if side == domain.OrderSideBuy {
		if _, err := m.ledger.ReserveCash(accountID, domain.LockTypeOrder, orderID, priceCents*quantity); err != nil {
			book.mu.Unlock()
			return nil, err
		}
	} else {
		if _, err := m.ledger.ReserveShares(accountID, domain.AssetTypeAthlete, assetID, domain.LockTypeOrder, orderID, quantity); err != nil {
			book.mu.Unlock()
			return nil, err
		}
	}

	order := &domain.Order{
		OrderID:           orderID,
		Type:              domain.OrderTypeLimit,
		AccountID:         accountID,
		AssetID:           assetID,
		Side:              side,
		PriceCents:        priceCents,
		Quantity:          quantity,
		RemainingQuantity: quantity,
		Status:            domain.OrderStatusOpen,
		CreatedAt:         now,
	}
	m.orders.Create(order)

	executed := m.crossLocked(book, order, now)

	if order.RemainingQuantity > 0 {
		entry := OrderBookEntry{
			PriceCents: priceCents,
			CreatedAt:  now,
			OrderID:    orderID,
			Order:      order,
		}
		if side == domain.OrderSideBuy {
			book.InsertBid(entry)
		} else {
			book.InsertAsk(entry)
		}
	}

	if len(executed) > 0 {
		m.updateStatsLocked(assetID, now)
	}
	book.mu.Unlock()

	m.publish(assetID, executed)
	return order, nil
}

// SubmitMarketOrder executes immediately against the best available prices
// and never rests on the book. A market buy reserves the estimated cost of
// the fillable depth; a market sell reserves the full quantity. Whatever
// the pass does not consume is released afterwards. Unfilled remainder is
// cancelled (immediate-or-cancel).
func (m *Matcher) SubmitMarketOrder(accountID, assetID string, side domain.OrderSide, quantity int64) (*domain.Order, error) {
	if !m.assets.Exists(assetID) {
		return nil, domain.ErrAssetNotFound
	}
	if quantity <= 0 {
		return nil, &domain.ValidationError{Message: "quantity must be positive"}
	}

	orderID := uuid.New().String()
	now := time.Now()

	book := m.books.GetOrCreate(assetID)
	book.mu.Lock()

	fillable, estimatedCost := walkDepth(book, side, quantity)
	if fillable == 0 {
		book.mu.Unlock()
		return nil, domain.ErrNoLiquidity
	}

	if side == domain.OrderSideBuy {
		if _, err := m.ledger.ReserveCash(accountID, domain.LockTypeOrder, orderID, estimatedCost); err != nil {
			book.mu.Unlock()
			return nil, err
		}
	} else {
		if _, err := m.ledger.ReserveShares(accountID, domain.AssetTypeAthlete, assetID, domain.LockTypeOrder, orderID, quantity); err != nil {
			book.mu.Unlock()
			return nil, err
		}
	}

	order := &domain.Order{
		OrderID:           orderID,
		Type:              domain.OrderTypeMarket,
		AccountID:         accountID,
		AssetID:           assetID,
		Side:              side,
		Quantity:          quantity,
		RemainingQuantity: quantity,
		Status:            domain.OrderStatusOpen,
		CreatedAt:         now,
	}
	m.orders.Create(order)

	executed := m.crossLocked(book, order, now)

	if order.RemainingQuantity > 0 {
		order.CancelledQuantity = order.RemainingQuantity
		order.RemainingQuantity = 0
		order.Status = domain.OrderStatusCancelled
		cancelled := now
		order.CancelledAt = &cancelled
	}
	// Drop whatever the pass left of the estimate (or the share lock).
	m.ledger.ReleaseByReference(orderID)

	if len(executed) > 0 {
		m.updateStatsLocked(assetID, now)
	}
	book.mu.Unlock()

	m.publish(assetID, executed)
	return order, nil
}

// CancelOrder removes a resting order from the book and releases its
// remaining reservation. Only open and partially filled orders owned by
// the requesting account can be cancelled.
func (m *Matcher) CancelOrder(accountID, orderID string) (*domain.Order, error) {
	order, err := m.orders.Get(orderID)
	if err != nil {
		return nil, err
	}
	if order.AccountID != accountID {
		return nil, domain.ErrOrderNotFound
	}

	book := m.books.GetOrCreate(order.AssetID)
	book.mu.Lock()

	if !order.Cancellable() {
		book.mu.Unlock()
		return nil, domain.ErrOrderNotCancellable
	}

	book.Remove(orderID)
	order.CancelledQuantity = order.RemainingQuantity
	order.RemainingQuantity = 0
	order.Status = domain.OrderStatusCancelled
	now := time.Now()
	order.CancelledAt = &now

	m.ledger.ReleaseByReference(orderID)
	book.mu.Unlock()

	m.notifier.OrderBookChanged(order.AssetID)
	return order, nil
}

// SimulateMarketOrder prices a hypothetical market order against the
// current book without reserving or executing anything.
func (m *Matcher) SimulateMarketOrder(assetID string, side domain.OrderSide, quantity int64) (*Quote, error) {
	if !m.assets.Exists(assetID) {
		return nil, domain.ErrAssetNotFound
	}
	if quantity <= 0 {
		return nil, &domain.ValidationError{Message: "quantity must be positive"}
	}

	book := m.books.GetOrCreate(assetID)
	book.mu.RLock()
	fillable, cost := walkDepth(book, side, quantity)
	book.mu.RUnlock()

	q := &Quote{
		Quantity:           quantity,
		FillableQuantity:   fillable,
		EstimatedCostCents: cost,
	}
	if fillable > 0 {
		q.AvgPriceCents = cost / fillable
	}
	return q, nil
}

// TradesForOrder returns every trade the order participated in, in
// execution order.
func (m *Matcher) TradesForOrder(o *domain.Order) []*domain.Trade {
	var result []*domain.Trade
	for _, t := range m.trades.GetByAsset(o.AssetID) {
		if t.BuyOrderID == o.OrderID || t.SellOrderID == o.OrderID {
			result = append(result, t)
		}
	}
	return result
}

// Depth returns up to n aggregated price levels per side.
func (m *Matcher) Depth(assetID string, n int) (bids, asks []PriceLevel, err error) {
	if !m.assets.Exists(assetID) {
		return nil, nil, domain.ErrAssetNotFound
	}
	book := m.books.GetOrCreate(assetID)
	book.mu.RLock()
	defer book.mu.RUnlock()
	return book.TopBids(n), book.TopAsks(n), nil
}

// crossLocked runs the matching pass for an incoming order. The caller
// holds the book's write lock. Trades execute at the resting order's limit
// price; the incoming order's limit (if any) bounds which resting orders
// qualify. Returns the trades executed during the pass.
func (m *Matcher) crossLocked(book *OrderBook, incoming *domain.Order, now time.Time) []*domain.Trade {
	var executed []*domain.Trade

	for incoming.RemainingQuantity > 0 {
		var resting OrderBookEntry
		var ok bool
		if incoming.Side == domain.OrderSideBuy {
			resting, ok = book.BestAsk()
			if !ok || (incoming.Type == domain.OrderTypeLimit && resting.PriceCents > incoming.PriceCents) {
				break
			}
		} else {
			resting, ok = book.BestBid()
			if !ok || (incoming.Type == domain.OrderTypeLimit && resting.PriceCents < incoming.PriceCents) {
				break
			}
		}

		maker := resting.Order
		qty := incoming.RemainingQuantity
		if maker.RemainingQuantity < qty {
			qty = maker.RemainingQuantity
		}
		execPrice := resting.PriceCents

		var buyOrder, sellOrder *domain.Order
		if incoming.Side == domain.OrderSideBuy {
			buyOrder, sellOrder = incoming, maker
		} else {
			buyOrder, sellOrder = maker, incoming
		}

		if err := m.settle(buyOrder, sellOrder, execPrice, qty); err != nil {
			// Should be impossible: reservation happened at placement time.
			// Fail this pair, evict the resting order and keep matching.
			m.logger.Error("settlement failed for order pair",
				"asset_id", incoming.AssetID,
				"buy_order_id", buyOrder.OrderID,
				"sell_order_id", sellOrder.OrderID,
				"quantity", qty,
				"price_cents", execPrice,
				"error", err)
			m.evictLocked(book, maker, now)
			continue
		}

		fill(incoming, qty)
		fill(maker, qty)
		if maker.RemainingQuantity == 0 {
			book.Remove(maker.OrderID)
		}

		trade := &domain.Trade{
			TradeID:     uuid.New().String(),
			AssetID:     incoming.AssetID,
			BuyerID:     buyOrder.AccountID,
			SellerID:    sellOrder.AccountID,
			BuyOrderID:  buyOrder.OrderID,
			SellOrderID: sellOrder.OrderID,
			Quantity:    qty,
			PriceCents:  execPrice,
			ExecutedAt:  now,
		}
		m.trades.Append(trade)
		executed = append(executed, trade)
	}

	return executed
}

// evictLocked removes a resting order whose settlement failed, cancels it
// and releases whatever its reservation still held.
func (m *Matcher) evictLocked(book *OrderBook, o *domain.Order, now time.Time) {
	book.Remove(o.OrderID)
	o.CancelledQuantity = o.RemainingQuantity
	o.RemainingQuantity = 0
	o.Status = domain.OrderStatusCancelled
	cancelled := now
	o.CancelledAt = &cancelled
	m.ledger.ReleaseByReference(o.OrderID)
}

// settle moves cash and shares for one matched pair and shrinks both
// sides' reservations to their remaining unfilled size. Called with the
// book lock held; the per-account mutexes inside the ledger serialize
// against concurrent reservations on other assets.
func (m *Matcher) settle(buyOrder, sellOrder *domain.Order, execPrice, qty int64) error {
	notional := execPrice * qty

	if err := m.ledger.DebitCash(buyOrder.AccountID, notional); err != nil {
		return err
	}
	if err := m.ledger.AddShares(buyOrder.AccountID, domain.AssetTypeAthlete, buyOrder.AssetID, qty, notional); err != nil {
		return err
	}
	if err := m.ledger.RemoveShares(sellOrder.AccountID, sellOrder.AssetID, qty); err != nil {
		return err
	}
	if err := m.ledger.CreditCash(sellOrder.AccountID, notional); err != nil {
		return err
	}

	// A limit buy's lock shrinks to limit price times what is still
	// unfilled; a market buy's estimate shrinks by the notional spent.
	buyRemaining := buyOrder.RemainingQuantity - qty
	if buyOrder.Type == domain.OrderTypeLimit {
		m.ledger.AdjustCashLock(buyOrder.OrderID, buyOrder.PriceCents*buyRemaining)
	} else {
		m.shrinkCashLockBy(buyOrder.OrderID, notional)
	}
	m.ledger.AdjustShareLock(sellOrder.OrderID, sellOrder.RemainingQuantity-qty)
	return nil
}

// shrinkCashLockBy reduces the balance lock carrying ref by spent cents.
func (m *Matcher) shrinkCashLockBy(ref string, spent int64) {
	for _, lock := range m.ledger.BalanceLocksByRef(ref) {
		m.ledger.AdjustCashLock(ref, lock.AmountCents-spent)
		return
	}
}

// fill applies an execution to an order and advances its status.
func fill(o *domain.Order, qty int64) {
	o.FilledQuantity += qty
	o.RemainingQuantity -= qty
	if o.RemainingQuantity == 0 {
		o.Status = domain.OrderStatusFilled
	} else {
		o.Status = domain.OrderStatusPartial
	}
}

// walkDepth measures how much of a hypothetical market order the opposite
// side can fill and what it would cost at current resting prices.
func walkDepth(book *OrderBook, side domain.OrderSide, quantity int64) (fillable, costCents int64) {
	remaining := quantity
	walk := book.WalkAsks
	if side == domain.OrderSideSell {
		walk = book.WalkBids
	}
	walk(func(entry OrderBookEntry) bool {
		take := entry.Order.RemainingQuantity
		if take > remaining {
			take = remaining
		}
		fillable += take
		costCents += take * entry.PriceCents
		remaining -= take
		return remaining > 0
	})
	return fillable, costCents
}

// updateStatsLocked refreshes the asset's pricing read model after a pass
// that executed at least one trade. Called with the book lock held.
func (m *Matcher) updateStatsLocked(assetID string, now time.Time) {
	volume, lastPrice := m.trades.VolumeSince(assetID, now.Add(-m.statsWindow))

	var change int64
	if prev, ok := m.assets.PriceAround(assetID, now.Add(-m.statsWindow)); ok {
		change = lastPrice - prev
	}

	if err := m.assets.UpdateStats(assetID, lastPrice, volume, change, now, m.statsWindow); err != nil {
		m.logger.Error("failed to update asset stats", "asset_id", assetID, "error", err)
	}
}

// publish fans out post-pass notifications. Called after the book lock is
// released so slow subscribers never extend the pass.
func (m *Matcher) publish(assetID string, executed []*domain.Trade) {
	if len(executed) == 0 {
		return
	}
	seen := make(map[string]struct{}, 2)
	for _, t := range executed {
		m.notifier.TradeExecuted(t)
		seen[t.BuyerID] = struct{}{}
		seen[t.SellerID] = struct{}{}
	}
	for accountID := range seen {
		if balance, err := m.ledger.AvailableBalance(accountID); err == nil {
			m.notifier.PortfolioChanged(accountID, balance)
		}
	}
	m.notifier.OrderBookChanged(assetID)
}
