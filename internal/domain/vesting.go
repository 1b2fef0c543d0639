package domain

import "time"

// MillisPerHour is the divisor for converting rate-weighted milliseconds
// into whole shares during accrual.
const MillisPerHour = 3_600_000

// VestingState tracks one account's continuous share accrual. Accrual is
// computed lazily on read or claim; ResidualRateMs carries the sub-share
// progress (elapsed milliseconds × hourly rate, modulo MillisPerHour) so
// no fractional accrual is ever lost across updates, including across
// rate changes.
type VestingState struct {
	AccountID         string
	SharesAccumulated int64
	ResidualRateMs    int64 // 0 ≤ ResidualRateMs < MillisPerHour
	LastAccruedAt     time.Time
	TargetAssetID     string // single-target mode; "" when unset or split
	CapReachedAt      *time.Time
}

// VestingSplit assigns part of an account's hourly rate to one target
// asset. Present only in multi-target mode; an account's split rates sum
// to its total hourly rate.
type VestingSplit struct {
	AccountID   string
	AssetID     string
	RatePerHour int64
}

// VestingClaim is one immutable row of the claim audit log: the shares
// actually credited to one asset by one claim.
type VestingClaim struct {
	ClaimID   string
	AccountID string
	AssetID   string
	Shares    int64
	ClaimedAt time.Time
}
