package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/efreitasn/athletex/internal/domain"
	"github.com/efreitasn/athletex/internal/service"
)

// OrderHandler handles HTTP requests for order endpoints.
type OrderHandler struct {
	orderSvc *service.OrderService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(orderSvc *service.OrderService) *OrderHandler {
	return &OrderHandler{orderSvc: orderSvc}
}

// submitOrderRequest is the JSON request body for POST /orders.
type submitOrderRequest struct {
	Type      string   `json:"type"`
	AccountID string   `json:"account_id"`
	AssetID   string   `json:"asset_id"`
	Side      string   `json:"side"`
	Price     *float64 `json:"price"`
	Quantity  int64    `json:"quantity"`
}

// limitOrderResponse is the JSON response for limit orders.
// All fields are always present; nullable fields use pointers.
type limitOrderResponse struct {
	OrderID           string          `json:"order_id"`
	Type              string          `json:"type"`
	AccountID         string          `json:"account_id"`
	AssetID           string          `json:"asset_id"`
	Side              string          `json:"side"`
	Price             float64         `json:"price"`
	Quantity          int64           `json:"quantity"`
	FilledQuantity    int64           `json:"filled_quantity"`
	RemainingQuantity int64           `json:"remaining_quantity"`
	CancelledQuantity int64           `json:"cancelled_quantity"`
	Status            string          `json:"status"`
	CreatedAt         string          `json:"created_at"`
	CancelledAt       *string         `json:"cancelled_at"`
	AveragePrice      *float64        `json:"average_price"`
	Trades            []tradeResponse `json:"trades"`
}

// marketOrderResponse is the JSON response for market orders.
// Omits price and cancelled_at entirely.
type marketOrderResponse struct {
	OrderID           string          `json:"order_id"`
	Type              string          `json:"type"`
	AccountID         string          `json:"account_id"`
	AssetID           string          `json:"asset_id"`
	Side              string          `json:"side"`
	Quantity          int64           `json:"quantity"`
	FilledQuantity    int64           `json:"filled_quantity"`
	RemainingQuantity int64           `json:"remaining_quantity"`
	CancelledQuantity int64           `json:"cancelled_quantity"`
	Status            string          `json:"status"`
	CreatedAt         string          `json:"created_at"`
	AveragePrice      *float64        `json:"average_price"`
	Trades            []tradeResponse `json:"trades"`
}

// tradeResponse is a single trade in the order response.
type tradeResponse struct {
	TradeID    string  `json:"trade_id"`
	Price      float64 `json:"price"`
	Quantity   int64   `json:"quantity"`
	ExecutedAt string  `json:"executed_at"`
}

// SubmitOrder handles POST /orders.
func (h *OrderHandler) SubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req submitOrderRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	order, err := h.orderSvc.SubmitOrder(service.SubmitOrderRequest{
		Type:      domain.OrderType(req.Type),
		AccountID: req.AccountID,
		AssetID:   req.AssetID,
		Side:      domain.OrderSide(req.Side),
		Price:     req.Price,
		Quantity:  req.Quantity,
	})
	if err != nil {
		mapOrderError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, h.buildOrderResponse(order))
}

// GetOrder handles GET /orders/{order_id}.
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "order_id")

	order, err := h.orderSvc.GetOrder(orderID)
	if err != nil {
		mapOrderError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, h.buildOrderResponse(order))
}

// CancelOrder handles DELETE /orders/{order_id}.
// The owning account is identified through the account_id query parameter.
func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "order_id")

	accountID := r.URL.Query().Get("account_id")
	if accountID == "" {
		WriteError(w, http.StatusBadRequest, "validation_error", "account_id query parameter is required")
		return
	}

	order, err := h.orderSvc.CancelOrder(accountID, orderID)
	if err != nil {
		mapOrderError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, h.buildOrderResponse(order))
}

// buildOrderResponse constructs the appropriate response type based on
// order type. Market orders omit price and cancelled_at; limit orders
// always include them (null when not set).
func (h *OrderHandler) buildOrderResponse(o *domain.Order) any {
	domainTrades := h.orderSvc.TradesForOrder(o)
	trades := buildTradeResponses(domainTrades)

	var avgPrice *float64
	if o.FilledQuantity > 0 {
		var notional int64
		for _, t := range domainTrades {
			notional += t.NotionalCents()
		}
		v := domain.CentsToDollars(notional / o.FilledQuantity)
		avgPrice = &v
	}

	if o.Type == domain.OrderTypeMarket {
		return marketOrderResponse{
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
			AveragePrice:      avgPrice,
			Trades:            trades,
		}
	}

	resp := limitOrderResponse{
		OrderID:           o.OrderID,
		Type:              string(o.Type),
		AccountID:         o.AccountID,
		AssetID:           o.AssetID,
		Side:              string(o.Side),
		Price:             domain.CentsToDollars(o.PriceCents),
		Quantity:          o.Quantity,
		FilledQuantity:    o.FilledQuantity,
		RemainingQuantity: o.RemainingQuantity,
		CancelledQuantity: o.CancelledQuantity,
		Status:            string(o.Status),
		CreatedAt:         o.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		AveragePrice:      avgPrice,
		Trades:            trades,
	}

	if o.CancelledAt != nil {
		s := o.CancelledAt.UTC().Format("2006-01-02T15:04:05Z")
		resp.CancelledAt = &s
	}

	return resp
}

// buildTradeResponses converts domain trades to response trades.
func buildTradeResponses(trades []*domain.Trade) []tradeResponse {
	result := make([]tradeResponse, len(trades))
	for i, t := range trades {
		result[i] = tradeResponse{
			TradeID:    t.TradeID,
			Price:      domain.CentsToDollars(t.PriceCents),
			Quantity:   t.Quantity,
			ExecutedAt: t.ExecutedAt.UTC().Format("2006-01-02T15:04:05Z"),
		}
	}
	return result
}

// mapOrderError maps domain errors to HTTP responses for order endpoints.
func mapOrderError(w http.ResponseWriter, err error) {
	if writeValidationError(w, err) {
		return
	}

	switch {
	case errors.Is(err, domain.ErrAccountNotFound):
		WriteError(w, http.StatusNotFound, "account_not_found", err.Error())
	case errors.Is(err, domain.ErrAssetNotFound):
		WriteError(w, http.StatusNotFound, "asset_not_found", err.Error())
	case errors.Is(err, domain.ErrOrderNotFound):
		WriteError(w, http.StatusNotFound, "order_not_found", err.Error())
	case errors.Is(err, domain.ErrOrderNotCancellable):
		WriteError(w, http.StatusConflict, "order_not_cancellable", err.Error())
	case errors.Is(err, domain.ErrInsufficientBalance):
		WriteError(w, http.StatusConflict, "insufficient_balance", err.Error())
	case errors.Is(err, domain.ErrInsufficientShares):
		WriteError(w, http.StatusConflict, "insufficient_shares", err.Error())
	case errors.Is(err, domain.ErrNoLiquidity):
		WriteError(w, http.StatusConflict, "no_liquidity", err.Error())
	default:
		writeInternalError(w)
	}
}
