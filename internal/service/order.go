package service

import (
	"fmt"

	"github.com/efreitasn/athletex/internal/domain"
	"github.com/efreitasn/athletex/internal/engine"
	"github.com/efreitasn/athletex/internal/store"
)

// ValidOrderStatuses lists all valid order status values for validation.
var ValidOrderStatuses = map[domain.OrderStatus]bool{
	domain.OrderStatusOpen:      true,
	domain.OrderStatusPartial:   true,
	domain.OrderStatusFilled:    true,
	domain.OrderStatusCancelled: true,
}

// SubmitOrderRequest represents the input for order submission. The same
// path serves interactive users and automated traders; there is no
// separate bot surface.
type SubmitOrderRequest struct {
	Type      domain.OrderType
	AccountID string
	AssetID   string
	Side      domain.OrderSide
	Price     *float64 // required for limit, must be nil for market
	Quantity  int64
}

// OrderService handles order submission, retrieval, cancellation, and
// listing.
type OrderService struct {
	matcher    *engine.Matcher
	accounts   *store.AccountStore
	orderStore *store.OrderStore
	webhookSvc *WebhookService
}

// NewOrderService creates a new OrderService with the given dependencies.
func NewOrderService(matcher *engine.Matcher, accounts *store.AccountStore, orders *store.OrderStore, webhookSvc *WebhookService) *OrderService {
	return &OrderService{
		matcher:    matcher,
		accounts:   accounts,
		orderStore: orders,
		webhookSvc: webhookSvc,
	}
}

// SubmitOrder validates the request, funds and places the order through
// the matching engine, and dispatches webhooks for any trades executed.
func (s *OrderService) SubmitOrder(req SubmitOrderRequest) (*domain.Order, error) {
	if req.Type != domain.OrderTypeLimit && req.Type != domain.OrderTypeMarket {
		return nil, &domain.ValidationError{
			Message: fmt.Sprintf("Unknown order type: %s. Must be one of: limit, market", req.Type),
		}
	}

	if !accountIDRegex.MatchString(req.AccountID) {
		return nil, &domain.ValidationError{
			Message: "account_id must match ^[a-zA-Z0-9_-]{1,64}$",
		}
	}
	if req.Side != domain.OrderSideBuy && req.Side != domain.OrderSideSell {
		return nil, &domain.ValidationError{
			Message: "side must be 'buy' or 'sell'",
		}
	}
	if !assetIDRegex.MatchString(req.AssetID) {
		return nil, &domain.ValidationError{
			Message: "asset_id must match ^[A-Z0-9]{1,10}$",
		}
	}
	if req.Quantity <= 0 {
		return nil, &domain.ValidationError{
			Message: "quantity must be a positive integer",
		}
	}
	if !s.accounts.Exists(req.AccountID) {
		return nil, domain.ErrAccountNotFound
	}

	if req.Type == domain.OrderTypeLimit {
		return s.submitLimitOrder(req)
	}
	return s.submitMarketOrder(req)
}

func (s *OrderService) submitLimitOrder(req SubmitOrderRequest) (*domain.Order, error) {
	if req.Price == nil {
		return nil, &domain.ValidationError{
			Message: "price is required for limit orders",
		}
	}
	if *req.Price <= 0 {
		return nil, &domain.ValidationError{
			Message: "price must be greater than 0",
		}
	}
	priceCents, err := domain.DollarsToCents(*req.Price)
	if err != nil {
		return nil, &domain.ValidationError{
			Message: "price must have at most 2 decimal places",
		}
	}

	order, err := s.matcher.SubmitLimitOrder(req.AccountID, req.AssetID, req.Side, priceCents, req.Quantity)
	if err != nil {
		return nil, err
	}

	s.dispatchTradeWebhooks(order)
	return order, nil
}

func (s *OrderService) submitMarketOrder(req SubmitOrderRequest) (*domain.Order, error) {
	// Market orders must NOT include a price.
	if req.Price != nil {
		return nil, &domain.ValidationError{
			Message: "market orders must not include price",
		}
	}

	order, err := s.matcher.SubmitMarketOrder(req.AccountID, req.AssetID, req.Side, req.Quantity)
	if err != nil {
		return nil, err
	}

	s.dispatchTradeWebhooks(order)
	return order, nil
}

// dispatchTradeWebhooks dispatches trade.executed webhooks for every
// trade the order participated in, to both sides. Skips dispatch if
// webhookSvc is nil.
func (s *OrderService) dispatchTradeWebhooks(order *domain.Order) {
	if s.webhookSvc == nil || order.FilledQuantity == 0 {
		return
	}

	for _, trade := range s.matcher.TradesForOrder(order) {
		s.webhookSvc.DispatchTradeExecuted(trade, order)

		// Notify the counterparty through its own order.
		counterOrderID := trade.SellOrderID
		if order.Side == domain.OrderSideSell {
			counterOrderID = trade.BuyOrderID
		}
		if counterOrder, err := s.orderStore.Get(counterOrderID); err == nil {
			s.webhookSvc.DispatchTradeExecuted(trade, counterOrder)
		}
	}
}

// GetOrder retrieves an order by ID.
func (s *OrderService) GetOrder(orderID string) (*domain.Order, error) {
	return s.orderStore.Get(orderID)
}

// TradesForOrder returns the trades an order participated in, in
// execution order.
func (s *OrderService) TradesForOrder(order *domain.Order) []*domain.Trade {
	return s.matcher.TradesForOrder(order)
}

// CancelOrder cancels an open or partially filled order owned by the
// account.
func (s *OrderService) CancelOrder(accountID, orderID string) (*domain.Order, error) {
	order, err := s.matcher.CancelOrder(accountID, orderID)
	if err != nil {
		return nil, err
	}

	if s.webhookSvc != nil {
		s.webhookSvc.DispatchOrderCancelled(order)
	}
	return order, nil
}

// ListOrders returns a paginated list of orders for an account with
// optional status filtering.
func (s *OrderService) ListOrders(accountID string, status *domain.OrderStatus, page, limit int) ([]*domain.Order, int, error) {
	if !s.accounts.Exists(accountID) {
		return nil, 0, domain.ErrAccountNotFound
	}

	if status != nil {
		if !ValidOrderStatuses[*status] {
			return nil, 0, &domain.ValidationError{
				Message: fmt.Sprintf("Invalid status filter: '%s'. Must be one of: open, partial, filled, cancelled", *status),
			}
		}
	}

	if page < 1 {
		return nil, 0, &domain.ValidationError{
			Message: "page must be >= 1",
		}
	}
	if limit < 1 || limit > 100 {
		return nil, 0, &domain.ValidationError{
			Message: "limit must be between 1 and 100",
		}
	}

	orders, total := s.orderStore.ListByAccount(accountID, status, page, limit)
	return orders, total, nil
}
