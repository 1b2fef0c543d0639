package service

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/efreitasn/athletex/internal/domain"
	"github.com/efreitasn/athletex/internal/store"
)

// Valid webhook event types.
var validWebhookEvents = map[string]bool{
	"trade.executed":  true,
	"order.cancelled": true,
	"vesting.claimed": true,
}

// UpsertWebhookRequest represents the input for webhook registration.
type UpsertWebhookRequest struct {
	AccountID string
	URL       string
	Events    []string
}

// WebhookService handles webhook CRUD and event dispatch.
type WebhookService struct {
	store    *store.WebhookStore
	accounts *store.AccountStore
	client   *http.Client
}

// NewWebhookService creates a new WebhookService with the given dependencies.
func NewWebhookService(webhookStore *store.WebhookStore, accounts *store.AccountStore, timeout time.Duration) *WebhookService {
	return &WebhookService{
		store:    webhookStore,
		accounts: accounts,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Upsert validates the request and creates or updates webhook subscriptions.
// Returns the resulting webhooks, whether any new subscriptions were
// created, and any error.
func (s *WebhookService) Upsert(req UpsertWebhookRequest) ([]*domain.Webhook, bool, error) {
	if !s.accounts.Exists(req.AccountID) {
		return nil, false, domain.ErrAccountNotFound
	}

	if req.URL == "" {
		return nil, false, &domain.ValidationError{Message: "url is required"}
	}
	if len(req.URL) > 2048 {
		return nil, false, &domain.ValidationError{Message: "url must be at most 2048 characters"}
	}
	parsed, err := url.ParseRequestURI(req.URL)
	if err != nil || !parsed.IsAbs() {
		return nil, false, &domain.ValidationError{Message: "url must be a valid absolute URL"}
	}
	if parsed.Scheme != "https" {
		return nil, false, &domain.ValidationError{Message: "url must use https scheme"}
	}

	if len(req.Events) == 0 {
		return nil, false, &domain.ValidationError{Message: "events must be a non-empty array"}
	}

	// Deduplicate events while preserving order and validating.
	seen := make(map[string]bool, len(req.Events))
	dedupedEvents := make([]string, 0, len(req.Events))
	for _, event := range req.Events {
		if !validWebhookEvents[event] {
			return nil, false, &domain.ValidationError{
				Message: "Unknown event type: " + event + ". Must be one of: trade.executed, order.cancelled, vesting.claimed",
			}
		}
		if !seen[event] {
			seen[event] = true
			dedupedEvents = append(dedupedEvents, event)
		}
	}

	// Upsert each (account_id, event) pair.
	now := time.Now().UTC().Truncate(time.Second)
	anyCreated := false
	webhooks := make([]*domain.Webhook, 0, len(dedupedEvents))

	for _, event := range dedupedEvents {
		w := &domain.Webhook{
			WebhookID: uuid.New().String(),
			AccountID: req.AccountID,
			Event:     event,
			URL:       req.URL,
			CreatedAt: now,
			UpdatedAt: now,
		}

		created := s.store.Upsert(w)
		if created {
			anyCreated = true
			webhooks = append(webhooks, w)
		} else {
			existing := s.store.GetByAccountEvent(req.AccountID, event)
			if existing != nil {
				webhooks = append(webhooks, existing)
			}
		}
	}

	return webhooks, anyCreated, nil
}

// List validates the account exists and returns all webhook subscriptions.
func (s *WebhookService) List(accountID string) ([]*domain.Webhook, error) {
	if !s.accounts.Exists(accountID) {
		return nil, domain.ErrAccountNotFound
	}
	return s.store.ListByAccount(accountID), nil
}

// Delete removes a webhook subscription by ID.
func (s *WebhookService) Delete(webhookID string) error {
	return s.store.Delete(webhookID)
}

// tradeExecutedPayload is the JSON payload for trade.executed webhooks.
type tradeExecutedPayload struct {
	Event     string            `json:"event"`
	Timestamp string            `json:"timestamp"`
	Data      tradeExecutedData `json:"data"`
}

type tradeExecutedData struct {
	TradeID                string  `json:"trade_id"`
	AccountID              string  `json:"account_id"`
	OrderID                string  `json:"order_id"`
	AssetID                string  `json:"asset_id"`
	Side                   string  `json:"side"`
	TradePrice             float64 `json:"trade_price"`
	TradeQuantity          int64   `json:"trade_quantity"`
	OrderStatus            string  `json:"order_status"`
	OrderFilledQuantity    int64   `json:"order_filled_quantity"`
	OrderRemainingQuantity int64   `json:"order_remaining_quantity"`
}

// orderCancelledPayload is the JSON payload for order.cancelled webhooks.
type orderCancelledPayload struct {
	Event     string             `json:"event"`
	Timestamp string             `json:"timestamp"`
	Data      orderCancelledData `json:"data"`
}

type orderCancelledData struct {
	AccountID         string  `json:"account_id"`
	OrderID           string  `json:"order_id"`
	AssetID           string  `json:"asset_id"`
	Side              string  `json:"side"`
	Price             float64 `json:"price"`
	Quantity          int64   `json:"quantity"`
	FilledQuantity    int64   `json:"filled_quantity"`
	CancelledQuantity int64   `json:"cancelled_quantity"`
	RemainingQuantity int64   `json:"remaining_quantity"`
	Status            string  `json:"status"`
}

// vestingClaimedPayload is the JSON payload for vesting.claimed webhooks.
type vestingClaimedPayload struct {
	Event     string             `json:"event"`
	Timestamp string             `json:"timestamp"`
	Data      vestingClaimedData `json:"data"`
}

type vestingClaimedData struct {
	AccountID   string              `json:"account_id"`
	TotalShares int64               `json:"total_shares"`
	Credits     []vestingClaimedRow `json:"credits"`
}

type vestingClaimedRow struct {
	AssetID string `json:"asset_id"`
	Shares  int64  `json:"shares"`
}

// DispatchTradeExecuted dispatches a trade.executed webhook notification
// to the given order's account. Fire-and-forget: errors are silently
// ignored.
func (s *WebhookService) DispatchTradeExecuted(trade *domain.Trade, order *domain.Order) {
	wh := s.store.GetByAccountEvent(order.AccountID, "trade.executed")
	if wh == nil {
		return
	}

	payload := tradeExecutedPayload{
		Event:     "trade.executed",
		Timestamp: trade.ExecutedAt.UTC().Truncate(time.Second).Format(time.RFC3339),
		Data: tradeExecutedData{
			TradeID:                trade.TradeID,
			AccountID:              order.AccountID,
			OrderID:                order.OrderID,
			AssetID:                order.AssetID,
			Side:                   string(order.Side),
			TradePrice:             domain.CentsToDollars(trade.PriceCents),
			TradeQuantity:          trade.Quantity,
			OrderStatus:            string(order.Status),
			OrderFilledQuantity:    order.FilledQuantity,
			OrderRemainingQuantity: order.RemainingQuantity,
		},
	}

	go s.deliver(wh, "trade.executed", payload)
}

// DispatchOrderCancelled dispatches an order.cancelled webhook notification
// to the order's account. Fire-and-forget.
func (s *WebhookService) DispatchOrderCancelled(order *domain.Order) {
	wh := s.store.GetByAccountEvent(order.AccountID, "order.cancelled")
	if wh == nil {
		return
	}

	payload := orderCancelledPayload{
		Event:     "order.cancelled",
		Timestamp: time.Now().UTC().Truncate(time.Second).Format(time.RFC3339),
		Data: orderCancelledData{
			AccountID:         order.AccountID,
			OrderID:           order.OrderID,
			AssetID:           order.AssetID,
			Side:              string(order.Side),
			Price:             domain.CentsToDollars(order.PriceCents),
			Quantity:          order.Quantity,
			FilledQuantity:    order.FilledQuantity,
			CancelledQuantity: order.CancelledQuantity,
			RemainingQuantity: order.RemainingQuantity,
			Status:            string(order.Status),
		},
	}

	go s.deliver(wh, "order.cancelled", payload)
}

// DispatchVestingClaimed dispatches a vesting.claimed webhook notification
// to the claiming account. Fire-and-forget.
func (s *WebhookService) DispatchVestingClaimed(accountID string, claims []*domain.VestingClaim) {
	if len(claims) == 0 {
		return
	}
	wh := s.store.GetByAccountEvent(accountID, "vesting.claimed")
	if wh == nil {
		return
	}

	var total int64
	credits := make([]vestingClaimedRow, 0, len(claims))
	for _, c := range claims {
		total += c.Shares
		credits = append(credits, vestingClaimedRow{AssetID: c.AssetID, Shares: c.Shares})
	}

	payload := vestingClaimedPayload{
		Event:     "vesting.claimed",
		Timestamp: claims[0].ClaimedAt.UTC().Truncate(time.Second).Format(time.RFC3339),
		Data: vestingClaimedData{
			AccountID:   accountID,
			TotalShares: total,
			Credits:     credits,
		},
	}

	go s.deliver(wh, "vesting.claimed", payload)
}

// deliver sends the webhook payload via HTTP POST with the required
// headers. Errors are silently ignored (fire-and-forget).
func (s *WebhookService) deliver(wh *domain.Webhook, eventType string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		return
	}

	req, err := http.NewRequest(http.MethodPost, wh.URL, bytes.NewReader(body))
	if err != nil {
		return
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Delivery-Id", uuid.New().String())
	req.Header.Set("X-Webhook-Id", wh.WebhookID)
	req.Header.Set("X-Event-Type", eventType)

	resp, err := s.client.Do(req)
	if err != nil {
		return
	}
	resp.Body.Close()
}
