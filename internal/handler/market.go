package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/efreitasn/athletex/internal/domain"
	"github.com/efreitasn/athletex/internal/service"
)

// MarketHandler handles HTTP requests for asset and market data endpoints.
type MarketHandler struct {
	marketSvc   *service.MarketService
	tradeWindow time.Duration
}

// NewMarketHandler creates a new MarketHandler. tradeWindow bounds how far
// back the trade feed endpoint reaches.
func NewMarketHandler(marketSvc *service.MarketService, tradeWindow time.Duration) *MarketHandler {
	return &MarketHandler{
		marketSvc:   marketSvc,
		tradeWindow: tradeWindow,
	}
}

// listAssetRequest is the JSON request body for POST /assets.
type listAssetRequest struct {
	AssetID      string  `json:"asset_id"`
	Name         string  `json:"name"`
	Sport        string  `json:"sport"`
	Position     string  `json:"position"`
	TotalShares  int64   `json:"total_shares"`
	InitialPrice float64 `json:"initial_price"`
}

// assetResponse is a single asset with its pricing stats.
type assetResponse struct {
	AssetID     string  `json:"asset_id"`
	Name        string  `json:"name"`
	Sport       string  `json:"sport"`
	Position    string  `json:"position"`
	TotalShares int64   `json:"total_shares"`
	LastPrice   float64 `json:"last_price"`
	Volume24h   int64   `json:"volume_24h"`
	Change24h   float64 `json:"change_24h"`
	MarketCap   float64 `json:"market_cap"`
	ListedAt    string  `json:"listed_at"`
	UpdatedAt   string  `json:"updated_at"`
}

// assetListResponse is the JSON response for GET /assets.
type assetListResponse struct {
	Assets []assetResponse `json:"assets"`
}

// bookLevelResponse is a single price level in the book response.
type bookLevelResponse struct {
	Price         float64 `json:"price"`
	TotalQuantity int64   `json:"total_quantity"`
	OrderCount    int     `json:"order_count"`
}

// bookResponse is the JSON response for GET /assets/{asset_id}/book.
type bookResponse struct {
	AssetID    string              `json:"asset_id"`
	Bids       []bookLevelResponse `json:"bids"`
	Asks       []bookLevelResponse `json:"asks"`
	Spread     *float64            `json:"spread"`
	SnapshotAt string              `json:"snapshot_at"`
}

// quoteResponse is the JSON response for GET /assets/{asset_id}/quote.
type quoteResponse struct {
	AssetID           string   `json:"asset_id"`
	Side              string   `json:"side"`
	QuantityRequested int64    `json:"quantity_requested"`
	QuantityAvailable int64    `json:"quantity_available"`
	FullyFillable     bool     `json:"fully_fillable"`
	EstimatedAvgPrice *float64 `json:"estimated_average_price"`
	EstimatedTotal    *float64 `json:"estimated_total"`
	QuotedAt          string   `json:"quoted_at"`
}

// tradeFeedResponse is the JSON response for GET /assets/{asset_id}/trades.
type tradeFeedResponse struct {
	AssetID string              `json:"asset_id"`
	Trades  []tradeFeedRowShape `json:"trades"`
}

// tradeFeedRowShape is a single executed trade in the feed.
type tradeFeedRowShape struct {
	TradeID    string  `json:"trade_id"`
	Price      float64 `json:"price"`
	Quantity   int64   `json:"quantity"`
	ExecutedAt string  `json:"executed_at"`
}

// ListAsset handles POST /assets.
func (h *MarketHandler) ListAsset(w http.ResponseWriter, r *http.Request) {
	var req listAssetRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	asset, err := h.marketSvc.ListAsset(service.ListAssetRequest{
		AssetID:      req.AssetID,
		Name:         req.Name,
		Sport:        req.Sport,
		Position:     req.Position,
		TotalShares:  req.TotalShares,
		InitialPrice: req.InitialPrice,
	})
	if err != nil {
		mapMarketError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, buildAssetResponse(asset))
}

// ListAssets handles GET /assets.
func (h *MarketHandler) ListAssets(w http.ResponseWriter, r *http.Request) {
	assets := h.marketSvc.ListAssets()

	resp := assetListResponse{Assets: make([]assetResponse, len(assets))}
	for i, a := range assets {
		resp.Assets[i] = buildAssetResponse(a)
	}

	WriteJSON(w, http.StatusOK, resp)
}

// GetStats handles GET /assets/{asset_id}/stats.
func (h *MarketHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	assetID := chi.URLParam(r, "asset_id")

	stats, err := h.marketSvc.GetStats(assetID)
	if err != nil {
		mapMarketError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, assetResponse{
		AssetID:     stats.AssetID,
		Name:        stats.Name,
		Sport:       stats.Sport,
		Position:    stats.Position,
		TotalShares: stats.TotalShares,
		LastPrice:   domain.CentsToDollars(stats.LastPriceCents),
		Volume24h:   stats.Volume24h,
		Change24h:   domain.CentsToDollars(stats.Change24hCents),
		MarketCap:   domain.CentsToDollars(stats.MarketCapCents),
		UpdatedAt:   stats.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	})
}

// GetBook handles GET /assets/{asset_id}/book.
func (h *MarketHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	assetID := chi.URLParam(r, "asset_id")

	// Parse depth query param (default 10, max 50).
	depth := 10
	if d := r.URL.Query().Get("depth"); d != "" {
		var err error
		depth, err = strconv.Atoi(d)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "validation_error", "depth must be a valid integer")
			return
		}
	}

	book, err := h.marketSvc.GetBook(assetID, depth)
	if err != nil {
		mapMarketError(w, err)
		return
	}

	bids := make([]bookLevelResponse, len(book.Bids))
	for i, b := range book.Bids {
		bids[i] = bookLevelResponse{
			Price:         domain.CentsToDollars(b.PriceCents),
			TotalQuantity: b.TotalQuantity,
			OrderCount:    b.OrderCount,
		}
	}

	asks := make([]bookLevelResponse, len(book.Asks))
	for i, a := range book.Asks {
		asks[i] = bookLevelResponse{
			Price:         domain.CentsToDollars(a.PriceCents),
			TotalQuantity: a.TotalQuantity,
			OrderCount:    a.OrderCount,
		}
	}

	resp := bookResponse{
		AssetID:    book.AssetID,
		Bids:       bids,
		Asks:       asks,
		SnapshotAt: book.SnapshotAt.UTC().Format("2006-01-02T15:04:05Z"),
	}

	if book.Spread != nil {
		v := domain.CentsToDollars(*book.Spread)
		resp.Spread = &v
	}

	WriteJSON(w, http.StatusOK, resp)
}

// GetQuote handles GET /assets/{asset_id}/quote.
func (h *MarketHandler) GetQuote(w http.ResponseWriter, r *http.Request) {
	assetID := chi.URLParam(r, "asset_id")

	side := r.URL.Query().Get("side")
	quantityStr := r.URL.Query().Get("quantity")

	// Parse quantity.
	quantity, err := strconv.ParseInt(quantityStr, 10, 64)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "validation_error", "quantity must be a positive integer")
		return
	}

	quote, err := h.marketSvc.GetQuote(assetID, domain.OrderSide(side), quantity)
	if err != nil {
		mapMarketError(w, err)
		return
	}

	resp := quoteResponse{
		AssetID:           quote.AssetID,
		Side:              string(quote.Side),
		QuantityRequested: quote.QuantityRequested,
		QuantityAvailable: quote.QuantityAvailable,
		FullyFillable:     quote.FullyFillable,
		QuotedAt:          quote.QuotedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}

	if quote.EstimatedAvgCents != nil {
		v := domain.CentsToDollars(*quote.EstimatedAvgCents)
		resp.EstimatedAvgPrice = &v
	}
	if quote.EstimatedCostCents != nil {
		v := domain.CentsToDollars(*quote.EstimatedCostCents)
		resp.EstimatedTotal = &v
	}

	WriteJSON(w, http.StatusOK, resp)
}

// GetTrades handles GET /assets/{asset_id}/trades.
func (h *MarketHandler) GetTrades(w http.ResponseWriter, r *http.Request) {
	assetID := chi.URLParam(r, "asset_id")

	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		var err error
		limit, err = strconv.Atoi(l)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "validation_error", "limit must be a valid integer")
			return
		}
	}

	rows, err := h.marketSvc.GetTrades(assetID, h.tradeWindow, limit)
	if err != nil {
		mapMarketError(w, err)
		return
	}

	resp := tradeFeedResponse{
		AssetID: assetID,
		Trades:  make([]tradeFeedRowShape, len(rows)),
	}
	for i, row := range rows {
		resp.Trades[i] = tradeFeedRowShape{
			TradeID:    row.TradeID,
			Price:      domain.CentsToDollars(row.PriceCents),
			Quantity:   row.Quantity,
			ExecutedAt: row.ExecutedAt.UTC().Format("2006-01-02T15:04:05Z"),
		}
	}

	WriteJSON(w, http.StatusOK, resp)
}

// buildAssetResponse converts a domain asset to the response shape.
func buildAssetResponse(a *domain.Asset) assetResponse {
	return assetResponse{
		AssetID:     a.AssetID,
		Name:        a.Name,
		Sport:       a.Sport,
		Position:    a.Position,
		TotalShares: a.TotalShares,
		LastPrice:   domain.CentsToDollars(a.LastPriceCents),
		Volume24h:   a.Volume24h,
		Change24h:   domain.CentsToDollars(a.Change24hCents),
		MarketCap:   domain.CentsToDollars(a.MarketCapCents),
		ListedAt:    a.ListedAt.UTC().Format("2006-01-02T15:04:05Z"),
		UpdatedAt:   a.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
}

// mapMarketError maps domain errors to HTTP responses for market endpoints.
func mapMarketError(w http.ResponseWriter, err error) {
	if writeValidationError(w, err) {
		return
	}

	switch {
	case errors.Is(err, domain.ErrAssetAlreadyExists):
		WriteError(w, http.StatusConflict, "asset_already_exists", err.Error())
	case errors.Is(err, domain.ErrAssetNotFound):
		WriteError(w, http.StatusNotFound, "asset_not_found", err.Error())
	default:
		writeInternalError(w)
	}
}
