package service

import (
	"github.com/google/uuid"

	"github.com/efreitasn/athletex/internal/domain"
	"github.com/efreitasn/athletex/internal/ledger"
	"github.com/efreitasn/athletex/internal/store"
)

// ContestEntry represents one staked contest entry.
type ContestEntry struct {
	EntryID   string
	AccountID string
	AssetID   string
	Quantity  int64
}

// ContestService stakes shares into contest entries. An entry is a
// reservation: the shares stay owned but cannot be traded until the
// entry is withdrawn or settled.
type ContestService struct {
	ledger   *ledger.Ledger
	accounts *store.AccountStore
	assets   *store.AssetStore
}

// NewContestService creates a new ContestService.
func NewContestService(l *ledger.Ledger, accounts *store.AccountStore, assets *store.AssetStore) *ContestService {
	return &ContestService{
		ledger:   l,
		accounts: accounts,
		assets:   assets,
	}
}

// Enter stakes quantity shares of the asset into a new contest entry.
// The stake is a share lock referenced by the entry id, so the same
// availability rules as orders apply: no partial stakes, no
// double-spending against resting orders.
func (s *ContestService) Enter(accountID, assetID string, quantity int64) (*ContestEntry, error) {
	if !accountIDRegex.MatchString(accountID) {
		return nil, &domain.ValidationError{
			Message: "account_id must match ^[a-zA-Z0-9_-]{1,64}$",
		}
	}
	if !s.assets.Exists(assetID) {
		return nil, domain.ErrAssetNotFound
	}
	if quantity <= 0 {
		return nil, &domain.ValidationError{
			Message: "quantity must be a positive integer",
		}
	}
	if !s.accounts.Exists(accountID) {
		return nil, domain.ErrAccountNotFound
	}

	entryID := uuid.New().String()
	lock, err := s.ledger.ReserveShares(accountID, domain.AssetTypeAthlete, assetID, domain.LockTypeContest, entryID, quantity)
	if err != nil {
		return nil, err
	}

	return &ContestEntry{
		EntryID:   entryID,
		AccountID: accountID,
		AssetID:   assetID,
		Quantity:  lock.Quantity,
	}, nil
}

// Withdraw releases an unsettled entry's stake back to the account.
func (s *ContestService) Withdraw(accountID, entryID string) error {
	entry, err := s.find(accountID, entryID)
	if err != nil {
		return err
	}

	s.ledger.ReleaseByReference(entry.EntryID)
	return nil
}

// Settle resolves an entry: the staked shares are released and the
// account's holding is adjusted by deltaShares (positive for a win paid
// out in newly minted shares, negative for a loss burned from the stake).
// A loss can never exceed the stake.
func (s *ContestService) Settle(accountID, entryID string, deltaShares int64) error {
	entry, err := s.find(accountID, entryID)
	if err != nil {
		return err
	}
	if deltaShares < -entry.Quantity {
		return &domain.ValidationError{
			Message: "loss cannot exceed the staked quantity",
		}
	}

	// Apply the delta before releasing the stake. The lock pins the
	// staked shares while the loss is debited, so a concurrent order
	// cannot reserve and spend them first; a failure here leaves the
	// entry intact for a retry.
	switch {
	case deltaShares > 0:
		if err := s.ledger.AddShares(accountID, domain.AssetTypeAthlete, entry.AssetID, deltaShares, 0); err != nil {
			return err
		}
		if err := s.assets.Mint(entry.AssetID, deltaShares); err != nil {
			return err
		}
	case deltaShares < 0:
		if err := s.ledger.RemoveShares(accountID, entry.AssetID, -deltaShares); err != nil {
			return err
		}
		if err := s.assets.Mint(entry.AssetID, deltaShares); err != nil {
			return err
		}
	}

	s.ledger.ReleaseByReference(entry.EntryID)
	return nil
}

// Get returns an entry by id.
func (s *ContestService) Get(accountID, entryID string) (*ContestEntry, error) {
	return s.find(accountID, entryID)
}

// find recovers an entry from its share lock. Entries are not stored
// separately: the lock carrying the entry id as reference is the entry.
func (s *ContestService) find(accountID, entryID string) (*ContestEntry, error) {
	for _, lock := range s.ledger.ShareLocksByRef(entryID) {
		if lock.Type != domain.LockTypeContest {
			continue
		}
		if lock.AccountID != accountID {
			return nil, domain.ErrEntryNotFound
		}
		return &ContestEntry{
			EntryID:   entryID,
			AccountID: lock.AccountID,
			AssetID:   lock.AssetID,
			Quantity:  lock.Quantity,
		}, nil
	}
	return nil, domain.ErrEntryNotFound
}
