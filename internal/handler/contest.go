package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/efreitasn/athletex/internal/domain"
	"github.com/efreitasn/athletex/internal/service"
)

// ContestHandler handles HTTP requests for contest entry endpoints.
type ContestHandler struct {
	contestSvc *service.ContestService
}

// NewContestHandler creates a new ContestHandler.
func NewContestHandler(contestSvc *service.ContestService) *ContestHandler {
	return &ContestHandler{contestSvc: contestSvc}
}

// enterContestRequest is the JSON request body for POST /contests/entries.
type enterContestRequest struct {
	AccountID string `json:"account_id"`
	AssetID   string `json:"asset_id"`
	Quantity  int64  `json:"quantity"`
}

// settleContestRequest is the JSON request body for
// POST /contests/entries/{entry_id}/settle.
type settleContestRequest struct {
	AccountID   string `json:"account_id"`
	DeltaShares int64  `json:"delta_shares"`
}

// contestEntryResponse is a single contest entry in the response.
type contestEntryResponse struct {
	EntryID   string `json:"entry_id"`
	AccountID string `json:"account_id"`
	AssetID   string `json:"asset_id"`
	Quantity  int64  `json:"quantity"`
}

// Enter handles POST /contests/entries.
func (h *ContestHandler) Enter(w http.ResponseWriter, r *http.Request) {
	var req enterContestRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	entry, err := h.contestSvc.Enter(req.AccountID, req.AssetID, req.Quantity)
	if err != nil {
		mapContestError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, buildContestEntryResponse(entry))
}

// Get handles GET /contests/entries/{entry_id}.
func (h *ContestHandler) Get(w http.ResponseWriter, r *http.Request) {
	entryID := chi.URLParam(r, "entry_id")

	accountID := r.URL.Query().Get("account_id")
	if accountID == "" {
		WriteError(w, http.StatusBadRequest, "validation_error", "account_id query parameter is required")
		return
	}

	entry, err := h.contestSvc.Get(accountID, entryID)
	if err != nil {
		mapContestError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildContestEntryResponse(entry))
}

// Withdraw handles DELETE /contests/entries/{entry_id}.
func (h *ContestHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	entryID := chi.URLParam(r, "entry_id")

	accountID := r.URL.Query().Get("account_id")
	if accountID == "" {
		WriteError(w, http.StatusBadRequest, "validation_error", "account_id query parameter is required")
		return
	}

	if err := h.contestSvc.Withdraw(accountID, entryID); err != nil {
		mapContestError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Settle handles POST /contests/entries/{entry_id}/settle.
func (h *ContestHandler) Settle(w http.ResponseWriter, r *http.Request) {
	entryID := chi.URLParam(r, "entry_id")

	var req settleContestRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	if err := h.contestSvc.Settle(req.AccountID, entryID, req.DeltaShares); err != nil {
		mapContestError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// buildContestEntryResponse converts a service entry to the response shape.
func buildContestEntryResponse(e *service.ContestEntry) contestEntryResponse {
	return contestEntryResponse{
		EntryID:   e.EntryID,
		AccountID: e.AccountID,
		AssetID:   e.AssetID,
		Quantity:  e.Quantity,
	}
}

// mapContestError maps domain errors to HTTP responses for contest
// endpoints.
func mapContestError(w http.ResponseWriter, err error) {
	if writeValidationError(w, err) {
		return
	}

	switch {
	case errors.Is(err, domain.ErrAccountNotFound):
		WriteError(w, http.StatusNotFound, "account_not_found", err.Error())
	case errors.Is(err, domain.ErrAssetNotFound):
		WriteError(w, http.StatusNotFound, "asset_not_found", err.Error())
	case errors.Is(err, domain.ErrEntryNotFound):
		WriteError(w, http.StatusNotFound, "entry_not_found", err.Error())
	case errors.Is(err, domain.ErrInsufficientShares):
		WriteError(w, http.StatusConflict, "insufficient_shares", err.Error())
	default:
		writeInternalError(w)
	}
}
