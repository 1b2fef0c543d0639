// Package vesting implements continuous share accrual and claim
// distribution. Accrual is lazy: nothing ticks in the background, the
// elapsed time is converted to shares whenever state is read or claimed.
package vesting

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/efreitasn/athletex/internal/domain"
	"github.com/efreitasn/athletex/internal/ledger"
	"github.com/efreitasn/athletex/internal/store"
)

// Config holds the accrual parameters.
type Config struct {
	BaseRatePerHour   int64 // shares accrued per hour for a regular account
	PremiumMultiplier int64 // rate multiplier for premium accounts
	CapShares         int64 // accrual stops at this many unclaimed shares
}

// Allocation is one target's portion of a claim.
type Allocation struct {
	AssetID string
	Shares  int64
}

// Engine accrues shares over wall-clock time and distributes them on
// claim. All state mutation runs under a single engine mutex: vesting
// operations are rare compared to trading, so one lock keeps the
// accrue-then-mutate sequences trivially atomic.
type Engine struct {
	store    *store.VestingStore
	accounts *store.AccountStore
	assets   *store.AssetStore
	ledger   *ledger.Ledger
	cfg      Config
	logger   *slog.Logger

	mu  sync.Mutex
	now func() time.Time
}

// NewEngine creates a vesting engine. now is injectable for tests;
// pass time.Now in production.
func NewEngine(vs *store.VestingStore, accounts *store.AccountStore, assets *store.AssetStore, l *ledger.Ledger, cfg Config, logger *slog.Logger, now func() time.Time) *Engine {
	return &Engine{
		store:    vs,
		accounts: accounts,
		assets:   assets,
		ledger:   l,
		cfg:      cfg,
		logger:   logger,
		now:      now,
	}
}

// HourlyRate returns the account's total accrual rate in shares per hour.
func (e *Engine) HourlyRate(acct *domain.Account) int64 {
	if acct.Premium {
		return e.cfg.BaseRatePerHour * e.cfg.PremiumMultiplier
	}
	return e.cfg.BaseRatePerHour
}

// Rate looks up the account and returns its hourly accrual rate.
func (e *Engine) Rate(accountID string) (int64, error) {
	acct, err := e.accounts.Get(accountID)
	if err != nil {
		return 0, err
	}
	return e.HourlyRate(acct), nil
}

// Accrue brings the account's vesting state up to date and returns a
// snapshot of it.
func (e *Engine) Accrue(accountID string) (domain.VestingState, error) {
	acct, err := e.accounts.Get(accountID)
	if err != nil {
		return domain.VestingState{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	state := e.store.GetOrCreateState(accountID, e.now())
	e.accrueLocked(state, e.HourlyRate(acct))
	return *state, nil
}

// accrueLocked converts the time elapsed since the last accrual into
// whole shares. The residual (elapsed ms × rate, modulo an hour's worth
// of ms) carries over so no fractional progress is lost, including across
// rate changes: progress is rate-weighted at the rate that was in effect
// while it accumulated.
func (e *Engine) accrueLocked(state *domain.VestingState, ratePerHour int64) {
	now := e.now()
	if state.CapReachedAt != nil {
		state.LastAccruedAt = now
		return
	}

	elapsedMs := now.Sub(state.LastAccruedAt).Milliseconds()
	if elapsedMs < 0 {
		elapsedMs = 0
	}
	progress := state.ResidualRateMs + elapsedMs*ratePerHour
	state.SharesAccumulated += progress / domain.MillisPerHour
	state.ResidualRateMs = progress % domain.MillisPerHour
	state.LastAccruedAt = now

	if state.SharesAccumulated >= e.cfg.CapShares {
		state.SharesAccumulated = e.cfg.CapShares
		state.ResidualRateMs = 0
		capAt := now
		state.CapReachedAt = &capAt
	}
}

// SetTarget configures single-target mode: all future claims credit the
// one asset. Any split configuration is removed. An empty assetID clears
// the target.
func (e *Engine) SetTarget(accountID, assetID string) error {
	if _, err := e.accounts.Get(accountID); err != nil {
		return err
	}
	if assetID != "" && !e.assets.Exists(assetID) {
		return domain.ErrAssetNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	state := e.store.GetOrCreateState(accountID, e.now())
	state.TargetAssetID = assetID
	e.store.SetSplits(accountID, nil)
	return nil
}

// SetSplits configures multi-target mode. Every split asset must exist,
// every rate must be positive and the rates must sum to the account's
// total hourly rate.
func (e *Engine) SetSplits(accountID string, splits []*domain.VestingSplit) error {
	acct, err := e.accounts.Get(accountID)
	if err != nil {
		return err
	}

	var rateSum int64
	seen := make(map[string]struct{}, len(splits))
	for _, s := range splits {
		if s.RatePerHour <= 0 {
			return &domain.ValidationError{Message: "split rate must be positive"}
		}
		if !e.assets.Exists(s.AssetID) {
			return domain.ErrAssetNotFound
		}
		if _, dup := seen[s.AssetID]; dup {
			return &domain.ValidationError{Message: "duplicate split asset " + s.AssetID}
		}
		seen[s.AssetID] = struct{}{}
		s.AccountID = accountID
		rateSum += s.RatePerHour
	}
	if rateSum != e.HourlyRate(acct) {
		return &domain.ValidationError{Message: "split rates must sum to the account's hourly rate"}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.store.GetOrCreateState(accountID, e.now())
	e.store.SetSplits(accountID, splits)
	return nil
}

// Splits returns the account's split configuration.
func (e *Engine) Splits(accountID string) []*domain.VestingSplit {
	return e.store.Splits(accountID)
}

// Claims returns the account's claim log.
func (e *Engine) Claims(accountID string) []*domain.VestingClaim {
	return e.store.Claims(accountID)
}

// Claim accrues, then converts the accumulated shares into real holdings
// of the configured target(s) and resets the accrual counters. Claiming
// with nothing accumulated succeeds and credits nothing. Claiming with no
// target configured is rejected so the accumulated shares are preserved
// instead of forfeited.
func (e *Engine) Claim(accountID string) ([]*domain.VestingClaim, error) {
	acct, err := e.accounts.Get(accountID)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	state := e.store.GetOrCreateState(accountID, now)
	e.accrueLocked(state, e.HourlyRate(acct))

	total := state.SharesAccumulated
	if total == 0 {
		return []*domain.VestingClaim{}, nil
	}

	splits := e.store.Splits(accountID)
	var allocations []Allocation
	if len(splits) == 0 {
		if state.TargetAssetID == "" {
			return nil, domain.ErrNoVestingTarget
		}
		allocations = []Allocation{{AssetID: state.TargetAssetID, Shares: total}}
	} else {
		allocations = Distribute(total, splits)
	}

	claims := make([]*domain.VestingClaim, 0, len(allocations))
	for _, alloc := range allocations {
		if alloc.Shares == 0 {
			continue
		}
		// Vested shares are free: zero cost basis, minted into supply.
		if err := e.ledger.AddShares(accountID, domain.AssetTypeAthlete, alloc.AssetID, alloc.Shares, 0); err != nil {
			return nil, err
		}
		if err := e.assets.Mint(alloc.AssetID, alloc.Shares); err != nil {
			return nil, err
		}
		claims = append(claims, &domain.VestingClaim{
			ClaimID:   uuid.New().String(),
			AccountID: accountID,
			AssetID:   alloc.AssetID,
			Shares:    alloc.Shares,
			ClaimedAt: now,
		})
	}

	state.SharesAccumulated = 0
	state.ResidualRateMs = 0
	state.LastAccruedAt = now
	state.CapReachedAt = nil
	e.store.AppendClaims(accountID, claims)

	e.logger.Info("vesting claim distributed",
		"account_id", accountID,
		"total_shares", total,
		"targets", len(claims))
	return claims, nil
}

// Distribute splits total shares across the given splits proportionally
// to their rates. Each split gets floor(rate/rateSum × total); the
// remainder goes one unit at a time to the splits in the given order,
// which the store guarantees is rate descending with asset id as the tie
// breaker. The allocations always sum to exactly total.
func Distribute(total int64, splits []*domain.VestingSplit) []Allocation {
	var rateSum int64
	for _, s := range splits {
		rateSum += s.RatePerHour
	}
	if rateSum == 0 || total <= 0 {
		return nil
	}

	allocations := make([]Allocation, len(splits))
	var assigned int64
	for i, s := range splits {
		base := s.RatePerHour * total / rateSum
		allocations[i] = Allocation{AssetID: s.AssetID, Shares: base}
		assigned += base
	}
	// Remainder is always < len(splits).
	for i := 0; assigned < total; i++ {
		allocations[i].Shares++
		assigned++
	}
	return allocations
}
