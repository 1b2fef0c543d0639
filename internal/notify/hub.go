// Package notify pushes realtime market events to websocket subscribers.
package notify

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/efreitasn/athletex/internal/domain"
	"github.com/efreitasn/athletex/internal/engine"
)

// envelope is the wire format for every pushed event.
type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type tradePayload struct {
	TradeID    string    `json:"trade_id"`
	AssetID    string    `json:"asset_id"`
	Quantity   int64     `json:"quantity"`
	PriceCents int64     `json:"price_cents"`
	ExecutedAt time.Time `json:"executed_at"`
}

type portfolioPayload struct {
	AccountID    string `json:"account_id"`
	BalanceCents int64  `json:"balance_cents"`
}

type bookPayload struct {
	AssetID string `json:"asset_id"`
}

// client is one connected subscriber. Writes go through a buffered
// channel so a slow reader never blocks a broadcast.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub is the process-wide registry of live websocket connections. It
// implements engine.Notifier: the matching engine and vesting service
// hand it events without knowing anything about the transport.
type Hub struct {
	logger *slog.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}
}

// NewHub creates an empty Hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger:  logger,
		clients: make(map[*client]struct{}),
	}
}

// sendBuffer is the per-client outbound queue. A client that falls this
// far behind is dropped rather than back-pressuring the broadcast.
const sendBuffer = 64

// Register adopts an upgraded websocket connection. It owns the
// connection from here on: the write pump drains the send queue and the
// read pump discards inbound frames until the peer goes away.
func (h *Hub) Register(conn *websocket.Conn) {
	c := &client{
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go h.writePump(c)
	go h.readPump(c)
}

// ClientCount returns the number of live subscribers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// TradeExecuted broadcasts one executed trade.
func (h *Hub) TradeExecuted(t *domain.Trade) {
	h.broadcast("trade", tradePayload{
		TradeID:    t.TradeID,
		AssetID:    t.AssetID,
		Quantity:   t.Quantity,
		PriceCents: t.PriceCents,
		ExecutedAt: t.ExecutedAt,
	})
}

// PortfolioChanged broadcasts an account's updated available balance.
func (h *Hub) PortfolioChanged(accountID string, balanceCents int64) {
	h.broadcast("portfolio", portfolioPayload{
		AccountID:    accountID,
		BalanceCents: balanceCents,
	})
}

// OrderBookChanged broadcasts that an asset's book depth changed.
func (h *Hub) OrderBookChanged(assetID string) {
	h.broadcast("book", bookPayload{AssetID: assetID})
}

// MarketActivity broadcasts the periodic per-asset stats snapshot.
func (h *Hub) MarketActivity(activity []engine.AssetActivity) {
	h.broadcast("activity", activity)
}

// broadcast serializes the event once and enqueues it to every client.
// Clients whose queue is full are dropped.
func (h *Hub) broadcast(eventType string, data any) {
	msg, err := json.Marshal(envelope{Type: eventType, Data: data})
	if err != nil {
		h.logger.Error("failed to serialize event", "type", eventType, "error", err)
		return
	}

	var stale []*client
	h.mu.RLock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			stale = append(stale, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range stale {
		h.logger.Warn("dropping slow websocket subscriber", "remote", c.conn.RemoteAddr().String())
		h.drop(c)
	}
}

// drop removes a client and closes its connection. Idempotent.
func (h *Hub) drop(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()

	if ok {
		_ = c.conn.Close()
	}
}

// writePump drains the client's send queue onto the connection.
func (h *Hub) writePump(c *client) {
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.drop(c)
			return
		}
	}
}

// readPump consumes and discards inbound frames. The feed is push-only;
// the read loop exists to notice disconnects and process control frames.
func (h *Hub) readPump(c *client) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			h.drop(c)
			return
		}
	}
}
