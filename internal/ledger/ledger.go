// Package ledger owns every mutation of cash balances, holdings and
// reservation locks. All check-then-act sequences run while the owning
// account's mutex is held, so a concurrent reservation or settlement can
// never observe a stale available value.
package ledger

import (
	"github.com/efreitasn/athletex/internal/domain"
	"github.com/efreitasn/athletex/internal/store"
)

// Ledger provides the account-ledger primitives (atomic cash and holding
// mutations) and the reservation ledger on top of them.
type Ledger struct {
	accounts *store.AccountStore
	locks    *store.LockStore
}

// New creates a Ledger over the given stores.
func New(accounts *store.AccountStore, locks *store.LockStore) *Ledger {
	return &Ledger{
		accounts: accounts,
		locks:    locks,
	}
}

// CreditCash atomically increases an account's cash balance.
func (l *Ledger) CreditCash(accountID string, amountCents int64) error {
	if amountCents < 0 {
		return domain.Invariantf("CreditCash", "negative amount %d for account %s", amountCents, accountID)
	}
	acct, err := l.accounts.Get(accountID)
	if err != nil {
		return err
	}

	acct.Mu.Lock()
	defer acct.Mu.Unlock()
	acct.CashCents += amountCents
	return nil
}

// DebitCash atomically decreases an account's cash balance. Driving the
// balance below zero is an invariant violation, not a recoverable
// condition: the reservation ledger should have made it impossible.
func (l *Ledger) DebitCash(accountID string, amountCents int64) error {
	if amountCents < 0 {
		return domain.Invariantf("DebitCash", "negative amount %d for account %s", amountCents, accountID)
	}
	acct, err := l.accounts.Get(accountID)
	if err != nil {
		return err
	}

	acct.Mu.Lock()
	defer acct.Mu.Unlock()
	if acct.CashCents-amountCents < 0 {
		return domain.Invariantf("DebitCash", "account %s balance %d would go below zero by %d",
			accountID, acct.CashCents, amountCents)
	}
	acct.CashCents -= amountCents
	return nil
}

// AddShares credits shares to an account's holding, creating the holding
// lazily on the first non-zero credit. costCents is the total cost of the
// credited shares (0 for vested shares); the holding's average cost basis
// becomes the weighted average of the prior cost and this credit.
func (l *Ledger) AddShares(accountID string, assetType domain.AssetType, assetID string, qty, costCents int64) error {
	if qty <= 0 {
		return domain.Invariantf("AddShares", "non-positive quantity %d for account %s asset %s", qty, accountID, assetID)
	}
	acct, err := l.accounts.Get(accountID)
	if err != nil {
		return err
	}

	acct.Mu.Lock()
	defer acct.Mu.Unlock()

	h := acct.Holdings[assetID]
	if h == nil {
		h = &domain.Holding{AssetType: assetType, AssetID: assetID}
		acct.Holdings[assetID] = h
	}
	h.Quantity += qty
	h.TotalCostCents += costCents
	return nil
}

// RemoveShares debits shares from an account's holding. The average cost
// basis is unchanged: the total cost basis shrinks proportionally to the
// removed quantity. The holding is deleted when its quantity reaches
// exactly zero. Reducing below zero is an invariant violation.
func (l *Ledger) RemoveShares(accountID, assetID string, qty int64) error {
	if qty <= 0 {
		return domain.Invariantf("RemoveShares", "non-positive quantity %d for account %s asset %s", qty, accountID, assetID)
	}
	acct, err := l.accounts.Get(accountID)
	if err != nil {
		return err
	}

	acct.Mu.Lock()
	defer acct.Mu.Unlock()

	h := acct.Holdings[assetID]
	if h == nil || h.Quantity < qty {
		owned := int64(0)
		if h != nil {
			owned = h.Quantity
		}
		return domain.Invariantf("RemoveShares", "account %s asset %s holds %d, cannot remove %d",
			accountID, assetID, owned, qty)
	}

	// Proportional cost removal keeps the average basis intact.
	h.TotalCostCents -= h.TotalCostCents * qty / h.Quantity
	h.Quantity -= qty
	if h.Quantity == 0 {
		delete(acct.Holdings, assetID)
	}
	return nil
}
