package domain

import "time"

// Asset represents a listed athlete whose shares trade on the exchange.
// The pricing stats block is written only by the matching engine after a
// pass and by the vesting engine when claims mint new shares; everything
// else reads it (listings, analytics, the activity broadcast).
type Asset struct {
	AssetID     string
	Name        string
	Sport       string
	Position    string
	TotalShares int64 // outstanding shares; grows when vesting claims mint

	// Pricing read model.
	LastPriceCents int64 // 0 until the first trade
	Volume24h      int64 // shares traded inside the stats window
	Change24hCents int64 // last price − price observed ~24h ago
	MarketCapCents int64 // TotalShares × LastPriceCents

	ListedAt  time.Time
	UpdatedAt time.Time
}

// PricePoint is a (timestamp, price) observation kept per asset so the
// 24h change can compare against the closest point to now−24h.
type PricePoint struct {
	At         time.Time
	PriceCents int64
}
