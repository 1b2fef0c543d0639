package engine

import "github.com/efreitasn/athletex/internal/domain"

// AssetActivity is one row of the periodic market-activity broadcast.
type AssetActivity struct {
	AssetID        string `json:"asset_id"`
	LastPriceCents int64  `json:"last_price_cents"`
	Volume24h      int64  `json:"volume_24h"`
	Change24hCents int64  `json:"change_24h_cents"`
}

// Notifier is the injected broadcaster capability. The engine never talks
// to a transport directly; it hands events to whatever implementation was
// wired in (the websocket hub in production, NopNotifier in tests).
// Deliveries are fire-and-forget: implementations must not block the
// matching pass on network I/O.
type Notifier interface {
	TradeExecuted(trade *domain.Trade)
	PortfolioChanged(accountID string, balanceCents int64)
	OrderBookChanged(assetID string)
	MarketActivity(activity []AssetActivity)
}

// NopNotifier discards all events.
type NopNotifier struct{}

func (NopNotifier) TradeExecuted(*domain.Trade)    {}
func (NopNotifier) PortfolioChanged(string, int64) {}
func (NopNotifier) OrderBookChanged(string)        {}
func (NopNotifier) MarketActivity([]AssetActivity) {}
