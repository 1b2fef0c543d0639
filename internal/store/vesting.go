package store

import (
	"sort"
	"sync"
	"time"

	"github.com/efreitasn/athletex/internal/domain"
)

// VestingStore is a thread-safe in-memory store for vesting state, split
// configuration and the immutable claim log, keyed by account_id.
type VestingStore struct {
	mu     sync.RWMutex
	states map[string]*domain.VestingState
	splits map[string][]*domain.VestingSplit
	claims map[string][]*domain.VestingClaim // account_id → claim rows (append-only)
}

// NewVestingStore creates an empty VestingStore.
func NewVestingStore() *VestingStore {
	return &VestingStore{
		states: make(map[string]*domain.VestingState),
		splits: make(map[string][]*domain.VestingSplit),
		claims: make(map[string][]*domain.VestingClaim),
	}
}

// GetOrCreateState returns the account's vesting state, creating a fresh
// one (accrual clock starting now) on first touch.
func (s *VestingStore) GetOrCreateState(accountID string, now time.Time) *domain.VestingState {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.states[accountID]
	if !ok {
		state = &domain.VestingState{
			AccountID:     accountID,
			LastAccruedAt: now,
		}
		s.states[accountID] = state
	}
	return state
}

// Splits returns the account's split configuration sorted by rate
// descending, ties broken by asset_id ascending. This is the remainder
// distribution order.
func (s *VestingStore) Splits(accountID string) []*domain.VestingSplit {
	s.mu.RLock()
	defer s.mu.RUnlock()

	splits := s.splits[accountID]
	result := make([]*domain.VestingSplit, len(splits))
	copy(result, splits)
	sort.Slice(result, func(i, j int) bool {
		if result[i].RatePerHour != result[j].RatePerHour {
			return result[i].RatePerHour > result[j].RatePerHour
		}
		return result[i].AssetID < result[j].AssetID
	})
	return result
}

// SetSplits replaces the account's split configuration.
func (s *VestingStore) SetSplits(accountID string, splits []*domain.VestingSplit) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(splits) == 0 {
		delete(s.splits, accountID)
		return
	}
	s.splits[accountID] = splits
}

// AppendClaims adds rows to the account's claim log.
func (s *VestingStore) AppendClaims(accountID string, claims []*domain.VestingClaim) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.claims[accountID] = append(s.claims[accountID], claims...)
}

// Claims returns the account's claim log in chronological order.
func (s *VestingStore) Claims(accountID string) []*domain.VestingClaim {
	s.mu.RLock()
	defer s.mu.RUnlock()

	claims := s.claims[accountID]
	result := make([]*domain.VestingClaim, len(claims))
	copy(result, claims)
	return result
}
