package service

import (
	"time"

	"github.com/efreitasn/athletex/internal/domain"
	"github.com/efreitasn/athletex/internal/vesting"
)

// VestingStatusResponse represents the response for the vesting status
// endpoint.
type VestingStatusResponse struct {
	AccountID         string
	SharesAccumulated int64
	RatePerHour       int64
	TargetAssetID     string
	Splits            []VestingSplitRow
	CapReachedAt      *time.Time
	LastAccruedAt     time.Time
}

// VestingSplitRow represents one split in a status response or target
// update request.
type VestingSplitRow struct {
	AssetID     string
	RatePerHour int64
}

// SetVestingTargetsRequest represents the input for configuring where
// claims go. Exactly one of TargetAssetID or Splits must be set.
type SetVestingTargetsRequest struct {
	AccountID     string
	TargetAssetID string
	Splits        []VestingSplitRow
}

// ClaimRow represents one credited asset in a claim response.
type ClaimRow struct {
	ClaimID   string
	AssetID   string
	Shares    int64
	ClaimedAt time.Time
}

// VestingService exposes accrual status, target configuration and claims.
type VestingService struct {
	engine     *vesting.Engine
	webhookSvc *WebhookService
}

// NewVestingService creates a new VestingService.
func NewVestingService(engine *vesting.Engine, webhookSvc *WebhookService) *VestingService {
	return &VestingService{
		engine:     engine,
		webhookSvc: webhookSvc,
	}
}

// GetStatus accrues and returns the account's up-to-date vesting state.
func (s *VestingService) GetStatus(accountID string) (*VestingStatusResponse, error) {
	state, err := s.engine.Accrue(accountID)
	if err != nil {
		return nil, err
	}

	rate, err := s.engine.Rate(accountID)
	if err != nil {
		return nil, err
	}

	splits := s.engine.Splits(accountID)
	rows := make([]VestingSplitRow, 0, len(splits))
	for _, split := range splits {
		rows = append(rows, VestingSplitRow{AssetID: split.AssetID, RatePerHour: split.RatePerHour})
	}

	return &VestingStatusResponse{
		AccountID:         accountID,
		SharesAccumulated: state.SharesAccumulated,
		RatePerHour:       rate,
		TargetAssetID:     state.TargetAssetID,
		Splits:            rows,
		CapReachedAt:      state.CapReachedAt,
		LastAccruedAt:     state.LastAccruedAt,
	}, nil
}

// SetTargets configures single-target or multi-target mode for the
// account's future claims.
func (s *VestingService) SetTargets(req SetVestingTargetsRequest) error {
	if req.TargetAssetID != "" && len(req.Splits) > 0 {
		return &domain.ValidationError{
			Message: "set either target_asset_id or splits, not both",
		}
	}
	if req.TargetAssetID == "" && len(req.Splits) == 0 {
		return &domain.ValidationError{
			Message: "either target_asset_id or splits is required",
		}
	}

	if req.TargetAssetID != "" {
		if !assetIDRegex.MatchString(req.TargetAssetID) {
			return &domain.ValidationError{
				Message: "target_asset_id must match ^[A-Z0-9]{1,10}$",
			}
		}
		return s.engine.SetTarget(req.AccountID, req.TargetAssetID)
	}

	splits := make([]*domain.VestingSplit, 0, len(req.Splits))
	for _, row := range req.Splits {
		if !assetIDRegex.MatchString(row.AssetID) {
			return &domain.ValidationError{
				Message: "split asset_id must match ^[A-Z0-9]{1,10}$",
			}
		}
		splits = append(splits, &domain.VestingSplit{
			AccountID:   req.AccountID,
			AssetID:     row.AssetID,
			RatePerHour: row.RatePerHour,
		})
	}
	return s.engine.SetSplits(req.AccountID, splits)
}

// Claim distributes the accumulated shares to the configured targets and
// dispatches a vesting.claimed webhook when anything was credited.
func (s *VestingService) Claim(accountID string) ([]ClaimRow, error) {
	claims, err := s.engine.Claim(accountID)
	if err != nil {
		return nil, err
	}

	if s.webhookSvc != nil {
		s.webhookSvc.DispatchVestingClaimed(accountID, claims)
	}

	rows := make([]ClaimRow, 0, len(claims))
	for _, c := range claims {
		rows = append(rows, ClaimRow{
			ClaimID:   c.ClaimID,
			AssetID:   c.AssetID,
			Shares:    c.Shares,
			ClaimedAt: c.ClaimedAt,
		})
	}
	return rows, nil
}

// History returns the account's past claims in chronological order.
func (s *VestingService) History(accountID string) []ClaimRow {
	claims := s.engine.Claims(accountID)
	rows := make([]ClaimRow, 0, len(claims))
	for _, c := range claims {
		rows = append(rows, ClaimRow{
			ClaimID:   c.ClaimID,
			AssetID:   c.AssetID,
			Shares:    c.Shares,
			ClaimedAt: c.ClaimedAt,
		})
	}
	return rows
}
