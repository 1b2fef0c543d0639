package domain

import (
	"sync"
	"time"
)

// Holding represents an account's position in a single athlete asset.
// A holding is created lazily on the first non-zero credit and deleted
// when its quantity reaches exactly zero.
type Holding struct {
	AssetType      AssetType
	AssetID        string
	Quantity       int64
	TotalCostCents int64 // total cost basis; 0 for vested (free) shares
}

// AverageCostCents returns the weighted-average purchase price per share
// in cents, or 0 when the holding is empty.
func (h *Holding) AverageCostCents() int64 {
	if h == nil || h.Quantity == 0 {
		return 0
	}
	return h.TotalCostCents / h.Quantity
}

// Account represents a registered user of the exchange. The account owns
// the cash balance and all holdings; both are mutated only through the
// ledger while Mu is held, which is the in-process equivalent of a
// row-level lock on the account.
type Account struct {
	AccountID string
	CashCents int64
	Premium   bool                // premium accounts vest at double the base rate
	Holdings  map[string]*Holding // asset_id → holding
	CreatedAt time.Time
	Mu        sync.Mutex
}

// Holding returns the account's holding for the given asset, or nil.
// Callers must hold Mu.
func (a *Account) Holding(assetID string) *Holding {
	return a.Holdings[assetID]
}

// OwnedQuantity returns the total (reserved or not) quantity held for the
// given asset, or 0 when no holding exists. Callers must hold Mu.
func (a *Account) OwnedQuantity(assetID string) int64 {
	h, ok := a.Holdings[assetID]
	if !ok {
		return 0
	}
	return h.Quantity
}
