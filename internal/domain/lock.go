package domain

import "time"

// AssetType distinguishes classes of tradeable assets. Athlete shares are
// the only class currently listed, but locks and holdings carry the type
// so contest instruments can be added without a schema change.
type AssetType string

const (
	AssetTypeAthlete AssetType = "athlete"
)

// LockType identifies the obligation a reservation is earmarked against.
type LockType string

const (
	LockTypeOrder   LockType = "order"
	LockTypeContest LockType = "contest"
)

// HoldingsLock earmarks part of a holding against a pending obligation so
// it cannot be double-spent. Multiple locks may coexist per (account,
// asset); available = holding.quantity − Σ locked quantities.
type HoldingsLock struct {
	LockID    string
	AccountID string
	AssetType AssetType
	AssetID   string
	Type      LockType
	Reference string // order id, contest entry id, ...
	Quantity  int64
	CreatedAt time.Time
}

// BalanceLock earmarks part of an account's cash balance against a pending
// obligation. Same availability rule as HoldingsLock, against CashCents.
type BalanceLock struct {
	LockID      string
	AccountID   string
	Type        LockType
	Reference   string
	AmountCents int64
	CreatedAt   time.Time
}
