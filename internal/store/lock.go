package store

import (
	"sync"

	"github.com/efreitasn/athletex/internal/domain"
)

// LockStore is a thread-safe in-memory store for reservation locks.
// HoldingsLocks carry a secondary index by (account_id, asset_id) for
// availability sums; both kinds carry a secondary index by reference so
// order/contest code can release or shrink locks by the id it knows.
//
// The store itself only guards its maps; the check-then-insert sequence
// that makes reservations race-free happens in the ledger under the
// owning account's mutex.
type LockStore struct {
	mu sync.RWMutex

	shareLocks   map[string]*domain.HoldingsLock            // lock_id → lock
	sharesByPos  map[string]map[string]*domain.HoldingsLock // account_id/asset_id → lock_id → lock
	sharesByRef  map[string][]*domain.HoldingsLock          // reference → locks
	balanceLocks map[string]*domain.BalanceLock             // lock_id → lock
	balByAccount map[string]map[string]*domain.BalanceLock  // account_id → lock_id → lock
	balByRef     map[string][]*domain.BalanceLock           // reference → locks
}

// NewLockStore creates an empty LockStore.
func NewLockStore() *LockStore {
	return &LockStore{
		shareLocks:   make(map[string]*domain.HoldingsLock),
		sharesByPos:  make(map[string]map[string]*domain.HoldingsLock),
		sharesByRef:  make(map[string][]*domain.HoldingsLock),
		balanceLocks: make(map[string]*domain.BalanceLock),
		balByAccount: make(map[string]map[string]*domain.BalanceLock),
		balByRef:     make(map[string][]*domain.BalanceLock),
	}
}

func posKey(accountID, assetID string) string {
	return accountID + "/" + assetID
}

// AddShareLock inserts a holdings lock into all indexes.
func (s *LockStore) AddShareLock(l *domain.HoldingsLock) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.shareLocks[l.LockID] = l
	key := posKey(l.AccountID, l.AssetID)
	if s.sharesByPos[key] == nil {
		s.sharesByPos[key] = make(map[string]*domain.HoldingsLock)
	}
	s.sharesByPos[key][l.LockID] = l
	s.sharesByRef[l.Reference] = append(s.sharesByRef[l.Reference], l)
}

// AddBalanceLock inserts a balance lock into all indexes.
func (s *LockStore) AddBalanceLock(l *domain.BalanceLock) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.balanceLocks[l.LockID] = l
	if s.balByAccount[l.AccountID] == nil {
		s.balByAccount[l.AccountID] = make(map[string]*domain.BalanceLock)
	}
	s.balByAccount[l.AccountID][l.LockID] = l
	s.balByRef[l.Reference] = append(s.balByRef[l.Reference], l)
}

// SumShareLocks returns the total locked quantity for (account, asset).
func (s *LockStore) SumShareLocks(accountID, assetID string) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sum int64
	for _, l := range s.sharesByPos[posKey(accountID, assetID)] {
		sum += l.Quantity
	}
	return sum
}

// SumBalanceLocks returns the total locked cash for an account.
func (s *LockStore) SumBalanceLocks(accountID string) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sum int64
	for _, l := range s.balByAccount[accountID] {
		sum += l.AmountCents
	}
	return sum
}

// GetShareLock retrieves a holdings lock by ID, or nil.
func (s *LockStore) GetShareLock(lockID string) *domain.HoldingsLock {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.shareLocks[lockID]
}

// ShareLocksByRef returns all holdings locks carrying the reference.
func (s *LockStore) ShareLocksByRef(ref string) []*domain.HoldingsLock {
	s.mu.RLock()
	defer s.mu.RUnlock()

	locks := s.sharesByRef[ref]
	result := make([]*domain.HoldingsLock, len(locks))
	copy(result, locks)
	return result
}

// BalanceLocksByRef returns all balance locks carrying the reference.
func (s *LockStore) BalanceLocksByRef(ref string) []*domain.BalanceLock {
	s.mu.RLock()
	defer s.mu.RUnlock()

	locks := s.balByRef[ref]
	result := make([]*domain.BalanceLock, len(locks))
	copy(result, locks)
	return result
}

// SetShareLockQuantity overwrites a lock's quantity. No-op if the lock is
// already gone.
func (s *LockStore) SetShareLockQuantity(lockID string, qty int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if l, ok := s.shareLocks[lockID]; ok {
		l.Quantity = qty
	}
}

// SetBalanceLockAmount overwrites a lock's amount. No-op if the lock is
// already gone.
func (s *LockStore) SetBalanceLockAmount(lockID string, amount int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if l, ok := s.balanceLocks[lockID]; ok {
		l.AmountCents = amount
	}
}

// RemoveShareLock deletes a holdings lock from all indexes. Idempotent.
func (s *LockStore) RemoveShareLock(lockID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeShareLockLocked(lockID)
}

func (s *LockStore) removeShareLockLocked(lockID string) {
	l, ok := s.shareLocks[lockID]
	if !ok {
		return
	}
	delete(s.shareLocks, lockID)

	key := posKey(l.AccountID, l.AssetID)
	if byPos := s.sharesByPos[key]; byPos != nil {
		delete(byPos, lockID)
		if len(byPos) == 0 {
			delete(s.sharesByPos, key)
		}
	}
	s.sharesByRef[l.Reference] = filterShareLocks(s.sharesByRef[l.Reference], lockID)
	if len(s.sharesByRef[l.Reference]) == 0 {
		delete(s.sharesByRef, l.Reference)
	}
}

// RemoveBalanceLock deletes a balance lock from all indexes. Idempotent.
func (s *LockStore) RemoveBalanceLock(lockID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeBalanceLockLocked(lockID)
}

func (s *LockStore) removeBalanceLockLocked(lockID string) {
	l, ok := s.balanceLocks[lockID]
	if !ok {
		return
	}
	delete(s.balanceLocks, lockID)

	if byAcct := s.balByAccount[l.AccountID]; byAcct != nil {
		delete(byAcct, lockID)
		if len(byAcct) == 0 {
			delete(s.balByAccount, l.AccountID)
		}
	}
	s.balByRef[l.Reference] = filterBalanceLocks(s.balByRef[l.Reference], lockID)
	if len(s.balByRef[l.Reference]) == 0 {
		delete(s.balByRef, l.Reference)
	}
}

// RemoveByReference deletes every share and balance lock carrying the
// reference. Idempotent if none exist.
func (s *LockStore) RemoveByReference(ref string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	shareIDs := make([]string, 0, len(s.sharesByRef[ref]))
	for _, l := range s.sharesByRef[ref] {
		shareIDs = append(shareIDs, l.LockID)
	}
	for _, id := range shareIDs {
		s.removeShareLockLocked(id)
	}

	balanceIDs := make([]string, 0, len(s.balByRef[ref]))
	for _, l := range s.balByRef[ref] {
		balanceIDs = append(balanceIDs, l.LockID)
	}
	for _, id := range balanceIDs {
		s.removeBalanceLockLocked(id)
	}
}

func filterShareLocks(locks []*domain.HoldingsLock, dropID string) []*domain.HoldingsLock {
	out := locks[:0]
	for _, l := range locks {
		if l.LockID != dropID {
			out = append(out, l)
		}
	}
	return out
}

func filterBalanceLocks(locks []*domain.BalanceLock, dropID string) []*domain.BalanceLock {
	out := locks[:0]
	for _, l := range locks {
		if l.LockID != dropID {
			out = append(out, l)
		}
	}
	return out
}
