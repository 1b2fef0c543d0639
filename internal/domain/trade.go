package domain

import "time"

// Trade represents a matched execution between a buy and a sell order.
// Trades are immutable once created.
type Trade struct {
	TradeID     string
	AssetID     string
	BuyerID     string
	SellerID    string
	BuyOrderID  string
	SellOrderID string
	Quantity    int64
	PriceCents  int64
	ExecutedAt  time.Time
}

// NotionalCents returns the cash value of the trade.
func (t *Trade) NotionalCents() int64 {
	return t.PriceCents * t.Quantity
}
