package ledger

import (
	"time"

	"github.com/google/uuid"

	"github.com/efreitasn/athletex/internal/domain"
)

// ReserveShares locks qty shares of (account, asset) against the given
// reference. The availability check and the lock insert happen under the
// owning account's mutex, so two concurrent reservations can never both
// succeed against the same last unit. There is no partial reservation:
// the call either locks the full quantity or fails with
// domain.ErrInsufficientShares.
func (l *Ledger) ReserveShares(accountID string, assetType domain.AssetType, assetID string, lockType domain.LockType, ref string, qty int64) (*domain.HoldingsLock, error) {
	if qty <= 0 {
		return nil, &domain.ValidationError{Message: "reservation quantity must be positive"}
	}
	acct, err := l.accounts.Get(accountID)
	if err != nil {
		return nil, err
	}

	acct.Mu.Lock()
	defer acct.Mu.Unlock()

	owned := acct.OwnedQuantity(assetID)
	available := owned - l.locks.SumShareLocks(accountID, assetID)
	if available < qty {
		return nil, domain.ErrInsufficientShares
	}

	lock := &domain.HoldingsLock{
		LockID:    uuid.New().String(),
		AccountID: accountID,
		AssetType: assetType,
		AssetID:   assetID,
		Type:      lockType,
		Reference: ref,
		Quantity:  qty,
		CreatedAt: time.Now(),
	}
	l.locks.AddShareLock(lock)
	return lock, nil
}

// ReserveCash locks amountCents of the account's cash balance against the
// given reference. Symmetric to ReserveShares; fails with
// domain.ErrInsufficientBalance when available cash is short.
func (l *Ledger) ReserveCash(accountID string, lockType domain.LockType, ref string, amountCents int64) (*domain.BalanceLock, error) {
	if amountCents <= 0 {
		return nil, &domain.ValidationError{Message: "reservation amount must be positive"}
	}
	acct, err := l.accounts.Get(accountID)
	if err != nil {
		return nil, err
	}

	acct.Mu.Lock()
	defer acct.Mu.Unlock()

	available := acct.CashCents - l.locks.SumBalanceLocks(accountID)
	if available < amountCents {
		return nil, domain.ErrInsufficientBalance
	}

	lock := &domain.BalanceLock{
		LockID:      uuid.New().String(),
		AccountID:   accountID,
		Type:        lockType,
		Reference:   ref,
		AmountCents: amountCents,
		CreatedAt:   time.Now(),
	}
	l.locks.AddBalanceLock(lock)
	return lock, nil
}

// ReleaseShareLock deletes a holdings lock unconditionally. Idempotent if
// the lock is already absent.
func (l *Ledger) ReleaseShareLock(lockID string) {
	l.locks.RemoveShareLock(lockID)
}

// ReleaseByReference deletes every share and balance lock carrying the
// reference (an order id, a contest entry id). Idempotent.
func (l *Ledger) ReleaseByReference(ref string) {
	l.locks.RemoveByReference(ref)
}

// AdjustShareLock shrinks the holdings lock carrying the reference to the
// remaining unfilled quantity. A value ≤ 0 deletes the lock. No-op when
// no lock carries the reference.
func (l *Ledger) AdjustShareLock(ref string, newQty int64) {
	for _, lock := range l.locks.ShareLocksByRef(ref) {
		if newQty <= 0 {
			l.locks.RemoveShareLock(lock.LockID)
		} else {
			l.locks.SetShareLockQuantity(lock.LockID, newQty)
		}
	}
}

// AdjustCashLock shrinks the balance lock carrying the reference to the
// remaining unfilled amount. A value ≤ 0 deletes the lock. No-op when no
// lock carries the reference.
func (l *Ledger) AdjustCashLock(ref string, newAmountCents int64) {
	for _, lock := range l.locks.BalanceLocksByRef(ref) {
		if newAmountCents <= 0 {
			l.locks.RemoveBalanceLock(lock.LockID)
		} else {
			l.locks.SetBalanceLockAmount(lock.LockID, newAmountCents)
		}
	}
}

// ShareLocksByRef returns the holdings locks carrying the reference.
// Contest settlement uses this to recover the entry's account/asset/qty.
func (l *Ledger) ShareLocksByRef(ref string) []*domain.HoldingsLock {
	return l.locks.ShareLocksByRef(ref)
}

// BalanceLocksByRef returns the balance locks carrying the reference.
func (l *Ledger) BalanceLocksByRef(ref string) []*domain.BalanceLock {
	return l.locks.BalanceLocksByRef(ref)
}

// AvailableShares returns max(0, owned − Σ locks) for (account, asset).
func (l *Ledger) AvailableShares(accountID, assetID string) (int64, error) {
	acct, err := l.accounts.Get(accountID)
	if err != nil {
		return 0, err
	}

	acct.Mu.Lock()
	defer acct.Mu.Unlock()

	available := acct.OwnedQuantity(assetID) - l.locks.SumShareLocks(accountID, assetID)
	if available < 0 {
		return 0, nil
	}
	return available, nil
}

// AvailableBalance returns max(0, cash − Σ locks) for the account.
func (l *Ledger) AvailableBalance(accountID string) (int64, error) {
	acct, err := l.accounts.Get(accountID)
	if err != nil {
		return 0, err
	}

	acct.Mu.Lock()
	defer acct.Mu.Unlock()

	available := acct.CashCents - l.locks.SumBalanceLocks(accountID)
	if available < 0 {
		return 0, nil
	}
	return available, nil
}

// LockedShares returns the total locked quantity for (account, asset).
func (l *Ledger) LockedShares(accountID, assetID string) int64 {
	return l.locks.SumShareLocks(accountID, assetID)
}

// LockedBalance returns the total locked cash for the account.
func (l *Ledger) LockedBalance(accountID string) int64 {
	return l.locks.SumBalanceLocks(accountID)
}
