package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/efreitasn/athletex/internal/domain"
	"github.com/efreitasn/athletex/internal/service"
)

// AccountHandler handles HTTP requests for account endpoints.
type AccountHandler struct {
	accountSvc *service.AccountService
	orderSvc   *service.OrderService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accountSvc *service.AccountService, orderSvc *service.OrderService) *AccountHandler {
	return &AccountHandler{
		accountSvc: accountSvc,
		orderSvc:   orderSvc,
	}
}

// registerAccountRequest is the JSON request body for POST /accounts.
type registerAccountRequest struct {
	AccountID       string         `json:"account_id"`
	Premium         bool           `json:"premium"`
	InitialCash     float64        `json:"initial_cash"`
	InitialHoldings []holdingInput `json:"initial_holdings"`
}

// holdingInput is a single holding in the registration request.
type holdingInput struct {
	AssetID     string  `json:"asset_id"`
	Quantity    int64   `json:"quantity"`
	AverageCost float64 `json:"average_cost"`
}

// accountResponse is the JSON response for POST /accounts (201 Created).
type accountResponse struct {
	AccountID   string            `json:"account_id"`
	Premium     bool              `json:"premium"`
	CashBalance float64           `json:"cash_balance"`
	Holdings    []holdingResponse `json:"holdings"`
	CreatedAt   string            `json:"created_at"`
}

// holdingResponse is a single holding in the account response.
type holdingResponse struct {
	AssetID  string `json:"asset_id"`
	Quantity int64  `json:"quantity"`
}

// balanceResponse is the JSON response for GET /accounts/{account_id}/balance.
type balanceResponse struct {
	AccountID     string                   `json:"account_id"`
	Premium       bool                     `json:"premium"`
	CashBalance   float64                  `json:"cash_balance"`
	ReservedCash  float64                  `json:"reserved_cash"`
	AvailableCash float64                  `json:"available_cash"`
	Holdings      []holdingBalanceResponse `json:"holdings"`
}

// holdingBalanceResponse is a single holding in the balance response.
type holdingBalanceResponse struct {
	AssetID           string  `json:"asset_id"`
	Quantity          int64   `json:"quantity"`
	ReservedQuantity  int64   `json:"reserved_quantity"`
	AvailableQuantity int64   `json:"available_quantity"`
	AverageCost       float64 `json:"average_cost"`
}

// orderSummaryResponse is a single order in the order listing (summary view, no trades).
type orderSummaryResponse struct {
	OrderID           string   `json:"order_id"`
	Type              string   `json:"type"`
	AccountID         string   `json:"account_id"`
	AssetID           string   `json:"asset_id"`
	Side              string   `json:"side"`
	Price             *float64 `json:"price,omitempty"`
	Quantity          int64    `json:"quantity"`
	FilledQuantity    int64    `json:"filled_quantity"`
	RemainingQuantity int64    `json:"remaining_quantity"`
	CancelledQuantity int64    `json:"cancelled_quantity"`
	Status            string   `json:"status"`
	CreatedAt         string   `json:"created_at"`
}

// orderListResponse is the JSON response for GET /accounts/{account_id}/orders.
type orderListResponse struct {
	Orders []orderSummaryResponse `json:"orders"`
	Total  int                    `json:"total"`
	Page   int                    `json:"page"`
	Limit  int                    `json:"limit"`
}

// Register handles POST /accounts.
func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerAccountRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	// Map to service request.
	holdings := make([]service.HoldingInput, len(req.InitialHoldings))
	for i, h := range req.InitialHoldings {
		holdings[i] = service.HoldingInput{
			AssetID:     h.AssetID,
			Quantity:    h.Quantity,
			AverageCost: h.AverageCost,
		}
	}

	account, err := h.accountSvc.Register(service.RegisterAccountRequest{
		AccountID:       req.AccountID,
		Premium:         req.Premium,
		InitialCash:     req.InitialCash,
		InitialHoldings: holdings,
	})
	if err != nil {
		mapAccountError(w, err)
		return
	}

	// Build response with cents→dollars conversion.
	respHoldings := make([]holdingResponse, 0, len(account.Holdings))
	for assetID, holding := range account.Holdings {
		respHoldings = append(respHoldings, holdingResponse{
			AssetID:  assetID,
			Quantity: holding.Quantity,
		})
	}

	WriteJSON(w, http.StatusCreated, accountResponse{
		AccountID:   account.AccountID,
		Premium:     account.Premium,
		CashBalance: domain.CentsToDollars(account.CashCents),
		Holdings:    respHoldings,
		CreatedAt:   account.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	})
}

// GetBalance handles GET /accounts/{account_id}/balance.
func (h *AccountHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "account_id")

	balance, err := h.accountSvc.GetBalance(accountID)
	if err != nil {
		mapAccountError(w, err)
		return
	}

	holdings := make([]holdingBalanceResponse, len(balance.Holdings))
	for i, h := range balance.Holdings {
		holdings[i] = holdingBalanceResponse{
			AssetID:           h.AssetID,
			Quantity:          h.Quantity,
			ReservedQuantity:  h.ReservedQuantity,
			AvailableQuantity: h.AvailableQuantity,
			AverageCost:       domain.CentsToDollars(h.AverageCostCents),
		}
	}

	WriteJSON(w, http.StatusOK, balanceResponse{
		AccountID:     balance.AccountID,
		Premium:       balance.Premium,
		CashBalance:   domain.CentsToDollars(balance.CashCents),
		ReservedCash:  domain.CentsToDollars(balance.ReservedCents),
		AvailableCash: domain.CentsToDollars(balance.AvailableCents),
		Holdings:      holdings,
	})
}

// ListOrders handles GET /accounts/{account_id}/orders.
func (h *AccountHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "account_id")

	// Parse query params.
	var statusFilter *domain.OrderStatus
	if s := r.URL.Query().Get("status"); s != "" {
		status := domain.OrderStatus(s)
		statusFilter = &status
	}

	page := 1
	if p := r.URL.Query().Get("page"); p != "" {
		var err error
		page, err = strconv.Atoi(p)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "validation_error", "page must be a valid integer")
			return
		}
	}

	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		var err error
		limit, err = strconv.Atoi(l)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "validation_error", "limit must be a valid integer")
			return
		}
	}

	orders, total, err := h.orderSvc.ListOrders(accountID, statusFilter, page, limit)
	if err != nil {
		mapAccountError(w, err)
		return
	}

	// Build summary responses.
	summaries := make([]orderSummaryResponse, len(orders))
	for i, o := range orders {
		summary := orderSummaryResponse{
			OrderID:           o.OrderID,
			Type:              string(o.Type),
			AccountID:         o.AccountID,
			AssetID:           o.AssetID,
			Side:              string(o.Side),
			Quantity:          o.Quantity,
			FilledQuantity:    o.FilledQuantity,
			RemainingQuantity: o.RemainingQuantity,
			CancelledQuantity: o.CancelledQuantity,
			Status:            string(o.Status),
			CreatedAt:         o.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		}

		// Conditional price field: limit orders include price, market orders omit it.
		if o.Type == domain.OrderTypeLimit {
			p := domain.CentsToDollars(o.PriceCents)
			summary.Price = &p
		}

		summaries[i] = summary
	}

	WriteJSON(w, http.StatusOK, orderListResponse{
		Orders: summaries,
		Total:  total,
		Page:   page,
		Limit:  limit,
	})
}

// mapAccountError maps domain errors to HTTP responses for account endpoints.
func mapAccountError(w http.ResponseWriter, err error) {
	if writeValidationError(w, err) {
		return
	}

	switch {
	case errors.Is(err, domain.ErrAccountAlreadyExists):
		WriteError(w, http.StatusConflict, "account_already_exists", err.Error())
	case errors.Is(err, domain.ErrAccountNotFound):
		WriteError(w, http.StatusNotFound, "account_not_found", err.Error())
	case errors.Is(err, domain.ErrAssetNotFound):
		WriteError(w, http.StatusNotFound, "asset_not_found", err.Error())
	default:
		writeInternalError(w)
	}
}
