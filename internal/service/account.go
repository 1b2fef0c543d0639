package service

import (
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/efreitasn/athletex/internal/domain"
	"github.com/efreitasn/athletex/internal/ledger"
	"github.com/efreitasn/athletex/internal/store"
)

var (
	accountIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)
	assetIDRegex   = regexp.MustCompile(`^[A-Z0-9]{1,10}$`)
)

// RegisterAccountRequest represents the input for account registration.
type RegisterAccountRequest struct {
	AccountID       string
	Premium         bool
	InitialCash     float64
	InitialHoldings []HoldingInput
}

// HoldingInput represents a single holding in a registration request.
type HoldingInput struct {
	AssetID     string
	Quantity    int64
	AverageCost float64 // optional cost basis per share; 0 means free
}

// BalanceResponse represents the response for the account balance endpoint.
type BalanceResponse struct {
	AccountID      string
	CashCents      int64
	ReservedCents  int64
	AvailableCents int64
	Premium        bool
	Holdings       []HoldingBalance
}

// HoldingBalance represents a single holding in the balance response.
type HoldingBalance struct {
	AssetID           string
	Quantity          int64
	ReservedQuantity  int64
	AvailableQuantity int64
	AverageCostCents  int64
}

// AccountService handles account registration and balance queries.
type AccountService struct {
	store  *store.AccountStore
	assets *store.AssetStore
	ledger *ledger.Ledger
}

// NewAccountService creates a new AccountService.
func NewAccountService(accounts *store.AccountStore, assets *store.AssetStore, l *ledger.Ledger) *AccountService {
	return &AccountService{
		store:  accounts,
		assets: assets,
		ledger: l,
	}
}

// Register validates the request and creates an account with its initial
// cash and holdings. Every initial holding must reference a listed asset.
func (s *AccountService) Register(req RegisterAccountRequest) (*domain.Account, error) {
	if !accountIDRegex.MatchString(req.AccountID) {
		return nil, &domain.ValidationError{
			Message: "account_id must match ^[a-zA-Z0-9_-]{1,64}$",
		}
	}

	if req.InitialCash < 0 {
		return nil, &domain.ValidationError{
			Message: "initial_cash must be >= 0",
		}
	}
	cashCents, err := domain.DollarsToCents(req.InitialCash)
	if err != nil {
		return nil, &domain.ValidationError{
			Message: "initial_cash must have at most 2 decimal places",
		}
	}

	seen := make(map[string]bool)
	for _, h := range req.InitialHoldings {
		if !assetIDRegex.MatchString(h.AssetID) {
			return nil, &domain.ValidationError{
				Message: fmt.Sprintf("holding asset_id must match ^[A-Z0-9]{1,10}$, got %q", h.AssetID),
			}
		}
		if !s.assets.Exists(h.AssetID) {
			return nil, domain.ErrAssetNotFound
		}
		if h.Quantity <= 0 {
			return nil, &domain.ValidationError{
				Message: fmt.Sprintf("holding quantity must be > 0 for asset %s", h.AssetID),
			}
		}
		if h.AverageCost < 0 {
			return nil, &domain.ValidationError{
				Message: fmt.Sprintf("holding average_cost must be >= 0 for asset %s", h.AssetID),
			}
		}
		if seen[h.AssetID] {
			return nil, &domain.ValidationError{
				Message: fmt.Sprintf("duplicate asset in initial_holdings: %s", h.AssetID),
			}
		}
		seen[h.AssetID] = true
	}

	holdings := make(map[string]*domain.Holding)
	for _, h := range req.InitialHoldings {
		costCents, err := domain.DollarsToCents(h.AverageCost)
		if err != nil {
			return nil, &domain.ValidationError{
				Message: fmt.Sprintf("holding average_cost must have at most 2 decimal places for asset %s", h.AssetID),
			}
		}
		holdings[h.AssetID] = &domain.Holding{
			AssetType:      domain.AssetTypeAthlete,
			AssetID:        h.AssetID,
			Quantity:       h.Quantity,
			TotalCostCents: costCents * h.Quantity,
		}
	}

	account := &domain.Account{
		AccountID: req.AccountID,
		CashCents: cashCents,
		Premium:   req.Premium,
		Holdings:  holdings,
		CreatedAt: time.Now(),
	}

	if err := s.store.Create(account); err != nil {
		return nil, err
	}
	return account, nil
}

// GetBalance retrieves the account's current balance including
// reservations, holdings sorted by asset id.
func (s *AccountService) GetBalance(accountID string) (*BalanceResponse, error) {
	account, err := s.store.Get(accountID)
	if err != nil {
		return nil, err
	}

	account.Mu.Lock()
	cash := account.CashCents
	premium := account.Premium
	type holdingRow struct {
		assetID  string
		quantity int64
		avgCost  int64
	}
	rows := make([]holdingRow, 0, len(account.Holdings))
	for assetID, h := range account.Holdings {
		rows = append(rows, holdingRow{assetID: assetID, quantity: h.Quantity, avgCost: h.AverageCostCents()})
	}
	account.Mu.Unlock()

	sort.Slice(rows, func(i, j int) bool {
		return rows[i].assetID < rows[j].assetID
	})

	reserved := s.ledger.LockedBalance(accountID)
	holdings := make([]HoldingBalance, 0, len(rows))
	for _, row := range rows {
		lockedQty := s.ledger.LockedShares(accountID, row.assetID)
		holdings = append(holdings, HoldingBalance{
			AssetID:           row.assetID,
			Quantity:          row.quantity,
			ReservedQuantity:  lockedQty,
			AvailableQuantity: row.quantity - lockedQty,
			AverageCostCents:  row.avgCost,
		})
	}

	return &BalanceResponse{
		AccountID:      accountID,
		CashCents:      cash,
		ReservedCents:  reserved,
		AvailableCents: cash - reserved,
		Premium:        premium,
		Holdings:       holdings,
	}, nil
}
