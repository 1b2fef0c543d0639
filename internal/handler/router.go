package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/efreitasn/athletex/internal/notify"
	"github.com/efreitasn/athletex/internal/service"
)

// NewRouter creates a chi router with all routes registered, request logging,
// and Content-Type validation middleware.
func NewRouter(
	accountSvc *service.AccountService,
	orderSvc *service.OrderService,
	marketSvc *service.MarketService,
	vestingSvc *service.VestingService,
	contestSvc *service.ContestService,
	webhookSvc *service.WebhookService,
	hub *notify.Hub,
	tradeWindow time.Duration,
	logger *slog.Logger,
) chi.Router {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(requestLogging(logger))
	r.Use(contentTypeJSON)

	// Create handlers.
	accountH := NewAccountHandler(accountSvc, orderSvc)
	orderH := NewOrderHandler(orderSvc)
	marketH := NewMarketHandler(marketSvc, tradeWindow)
	vestingH := NewVestingHandler(vestingSvc)
	contestH := NewContestHandler(contestSvc)
	webhookH := NewWebhookHandler(webhookSvc)
	wsH := NewWSHandler(hub, logger)

	// Health check.
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Account routes.
	r.Post("/accounts", accountH.Register)
	r.Get("/accounts/{account_id}/balance", accountH.GetBalance)
	r.Get("/accounts/{account_id}/orders", accountH.ListOrders)

	// Order routes.
	r.Post("/orders", orderH.SubmitOrder)
	r.Get("/orders/{order_id}", orderH.GetOrder)
	r.Delete("/orders/{order_id}", orderH.CancelOrder)

	// Asset and market data routes.
	r.Post("/assets", marketH.ListAsset)
	r.Get("/assets", marketH.ListAssets)
	r.Get("/assets/{asset_id}/stats", marketH.GetStats)
	r.Get("/assets/{asset_id}/book", marketH.GetBook)
	r.Get("/assets/{asset_id}/quote", marketH.GetQuote)
	r.Get("/assets/{asset_id}/trades", marketH.GetTrades)

	// Vesting routes.
	r.Get("/accounts/{account_id}/vesting", vestingH.GetStatus)
	r.Put("/accounts/{account_id}/vesting/targets", vestingH.SetTargets)
	r.Post("/accounts/{account_id}/vesting/claim", vestingH.Claim)
	r.Get("/accounts/{account_id}/vesting/claims", vestingH.History)

	// Contest routes.
	r.Post("/contests/entries", contestH.Enter)
	r.Get("/contests/entries/{entry_id}", contestH.Get)
	r.Delete("/contests/entries/{entry_id}", contestH.Withdraw)
	r.Post("/contests/entries/{entry_id}/settle", contestH.Settle)

	// Webhook routes.
	r.Post("/webhooks", webhookH.Upsert)
	r.Get("/webhooks", webhookH.List)
	r.Delete("/webhooks/{webhook_id}", webhookH.Delete)

	// Realtime feed.
	r.Get("/ws", wsH.Subscribe)

	return r
}

// requestLogging returns middleware that logs each request's method, path,
// status code, and duration using slog.
func requestLogging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

// contentTypeJSON is middleware that validates Content-Type for POST, PUT, and
// PATCH requests carrying a body. If the Content-Type header doesn't start
// with "application/json", it returns 400 Bad Request before the handler runs.
// Body-less POSTs (like the vesting claim) pass through.
func contentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hasBody := r.ContentLength != 0
		if hasBody && (r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch) {
			ct := r.Header.Get("Content-Type")
			if ct == "" || !strings.HasPrefix(ct, "application/json") {
				WriteError(w, http.StatusBadRequest, "invalid_request",
					"Content-Type must be application/json")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
