package domain

import "time"

// OrderType distinguishes limit orders from market orders.
type OrderType string

const (
	OrderTypeLimit  OrderType = "limit"
	OrderTypeMarket OrderType = "market"
)

// OrderSide indicates whether an order buys or sells shares.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderStatus represents the lifecycle state of an order. Transitions are
// monotone: open → partial → filled, or → cancelled from open/partial only.
type OrderStatus string

const (
	OrderStatusOpen      OrderStatus = "open"
	OrderStatusPartial   OrderStatus = "partial"
	OrderStatusFilled    OrderStatus = "filled"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Order represents a buy or sell instruction submitted by an account.
// CreatedAt is the time-priority tie breaker on the book.
type Order struct {
	OrderID           string
	Type              OrderType
	AccountID         string
	AssetID           string
	Side              OrderSide
	PriceCents        int64 // limit price in cents; 0 for market orders
	Quantity          int64
	FilledQuantity    int64
	RemainingQuantity int64
	CancelledQuantity int64
	Status            OrderStatus
	CreatedAt         time.Time
	CancelledAt       *time.Time
}

// Cancellable reports whether the order is still in a state that permits
// cancellation.
func (o *Order) Cancellable() bool {
	switch o.Status {
	case OrderStatusOpen, OrderStatusPartial:
		return true
	}
	return false
}
