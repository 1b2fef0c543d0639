package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/efreitasn/athletex/internal/domain"
	"github.com/efreitasn/athletex/internal/service"
)

// VestingHandler handles HTTP requests for vesting endpoints.
type VestingHandler struct {
	vestingSvc *service.VestingService
}

// NewVestingHandler creates a new VestingHandler.
func NewVestingHandler(vestingSvc *service.VestingService) *VestingHandler {
	return &VestingHandler{vestingSvc: vestingSvc}
}

// vestingStatusResponse is the JSON response for
// GET /accounts/{account_id}/vesting.
type vestingStatusResponse struct {
	AccountID         string            `json:"account_id"`
	SharesAccumulated int64             `json:"shares_accumulated"`
	RatePerHour       int64             `json:"rate_per_hour"`
	TargetAssetID     *string           `json:"target_asset_id"`
	Splits            []vestingSplitRow `json:"splits"`
	CapReachedAt      *string           `json:"cap_reached_at"`
	LastAccruedAt     string            `json:"last_accrued_at"`
}

// vestingSplitRow is one split in a status response or targets request.
type vestingSplitRow struct {
	AssetID     string `json:"asset_id"`
	RatePerHour int64  `json:"rate_per_hour"`
}

// setVestingTargetsRequest is the JSON request body for
// PUT /accounts/{account_id}/vesting/targets.
type setVestingTargetsRequest struct {
	TargetAssetID string            `json:"target_asset_id"`
	Splits        []vestingSplitRow `json:"splits"`
}

// claimResponse is the JSON response for claim and history endpoints.
type claimResponse struct {
	AccountID string     `json:"account_id"`
	Claims    []claimRow `json:"claims"`
}

// claimRow is one credited asset in a claim response.
type claimRow struct {
	ClaimID   string `json:"claim_id"`
	AssetID   string `json:"asset_id"`
	Shares    int64  `json:"shares"`
	ClaimedAt string `json:"claimed_at"`
}

// GetStatus handles GET /accounts/{account_id}/vesting.
func (h *VestingHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "account_id")

	status, err := h.vestingSvc.GetStatus(accountID)
	if err != nil {
		mapVestingError(w, err)
		return
	}

	splits := make([]vestingSplitRow, len(status.Splits))
	for i, s := range status.Splits {
		splits[i] = vestingSplitRow{AssetID: s.AssetID, RatePerHour: s.RatePerHour}
	}

	resp := vestingStatusResponse{
		AccountID:         status.AccountID,
		SharesAccumulated: status.SharesAccumulated,
		RatePerHour:       status.RatePerHour,
		Splits:            splits,
		LastAccruedAt:     status.LastAccruedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
	if status.TargetAssetID != "" {
		t := status.TargetAssetID
		resp.TargetAssetID = &t
	}
	if status.CapReachedAt != nil {
		s := status.CapReachedAt.UTC().Format("2006-01-02T15:04:05Z")
		resp.CapReachedAt = &s
	}

	WriteJSON(w, http.StatusOK, resp)
}

// SetTargets handles PUT /accounts/{account_id}/vesting/targets.
func (h *VestingHandler) SetTargets(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "account_id")

	var req setVestingTargetsRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	splits := make([]service.VestingSplitRow, len(req.Splits))
	for i, s := range req.Splits {
		splits[i] = service.VestingSplitRow{AssetID: s.AssetID, RatePerHour: s.RatePerHour}
	}

	if err := h.vestingSvc.SetTargets(service.SetVestingTargetsRequest{
		AccountID:     accountID,
		TargetAssetID: req.TargetAssetID,
		Splits:        splits,
	}); err != nil {
		mapVestingError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Claim handles POST /accounts/{account_id}/vesting/claim.
func (h *VestingHandler) Claim(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "account_id")

	rows, err := h.vestingSvc.Claim(accountID)
	if err != nil {
		mapVestingError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, claimResponse{
		AccountID: accountID,
		Claims:    buildClaimRows(rows),
	})
}

// History handles GET /accounts/{account_id}/vesting/claims.
func (h *VestingHandler) History(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "account_id")

	WriteJSON(w, http.StatusOK, claimResponse{
		AccountID: accountID,
		Claims:    buildClaimRows(h.vestingSvc.History(accountID)),
	})
}

// buildClaimRows converts service claim rows to response rows.
func buildClaimRows(rows []service.ClaimRow) []claimRow {
	result := make([]claimRow, len(rows))
	for i, c := range rows {
		result[i] = claimRow{
			ClaimID:   c.ClaimID,
			AssetID:   c.AssetID,
			Shares:    c.Shares,
			ClaimedAt: c.ClaimedAt.UTC().Format("2006-01-02T15:04:05Z"),
		}
	}
	return result
}

// mapVestingError maps domain errors to HTTP responses for vesting
// endpoints.
func mapVestingError(w http.ResponseWriter, err error) {
	if writeValidationError(w, err) {
		return
	}

	switch {
	case errors.Is(err, domain.ErrAccountNotFound):
		WriteError(w, http.StatusNotFound, "account_not_found", err.Error())
	case errors.Is(err, domain.ErrAssetNotFound):
		WriteError(w, http.StatusNotFound, "asset_not_found", err.Error())
	case errors.Is(err, domain.ErrNoVestingTarget):
		WriteError(w, http.StatusConflict, "no_vesting_target", err.Error())
	default:
		writeInternalError(w)
	}
}
