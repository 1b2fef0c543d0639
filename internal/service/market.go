package service

import (
	"fmt"
	"time"

	"github.com/efreitasn/athletex/internal/domain"
	"github.com/efreitasn/athletex/internal/engine"
	"github.com/efreitasn/athletex/internal/store"
)

// ListAssetRequest represents the input for listing a new athlete asset.
type ListAssetRequest struct {
	AssetID      string
	Name         string
	Sport        string
	Position     string
	TotalShares  int64
	InitialPrice float64
}

// AssetStatsResponse represents the response for the asset stats endpoint.
type AssetStatsResponse struct {
	AssetID        string
	Name           string
	Sport          string
	Position       string
	TotalShares    int64
	LastPriceCents int64
	Volume24h      int64
	Change24hCents int64
	MarketCapCents int64
	UpdatedAt      time.Time
}

// BookPriceLevel represents an aggregated price level in the book response.
type BookPriceLevel struct {
	PriceCents    int64
	TotalQuantity int64
	OrderCount    int
}

// BookResponse represents the response for the order book endpoint.
type BookResponse struct {
	AssetID    string
	Bids       []BookPriceLevel
	Asks       []BookPriceLevel
	Spread     *int64 // nil if either side empty
	SnapshotAt time.Time
}

// QuoteResponse represents the response for the quote endpoint.
type QuoteResponse struct {
	AssetID            string
	Side               domain.OrderSide
	QuantityRequested  int64
	QuantityAvailable  int64
	FullyFillable      bool
	EstimatedAvgCents  *int64 // nil when no liquidity
	EstimatedCostCents *int64 // nil when no liquidity
	QuotedAt           time.Time
}

// TradeRow represents one executed trade in the trade feed response.
type TradeRow struct {
	TradeID    string
	Quantity   int64
	PriceCents int64
	ExecutedAt time.Time
}

// MarketService handles the asset registry and market data queries.
type MarketService struct {
	assets     *store.AssetStore
	tradeStore *store.TradeStore
	matcher    *engine.Matcher
}

// NewMarketService creates a new MarketService with the given dependencies.
func NewMarketService(assets *store.AssetStore, trades *store.TradeStore, matcher *engine.Matcher) *MarketService {
	return &MarketService{
		assets:     assets,
		tradeStore: trades,
		matcher:    matcher,
	}
}

// ListAsset validates the request and registers a new tradeable athlete.
// The initial price seeds the pricing read model so stats are meaningful
// before the first trade.
func (s *MarketService) ListAsset(req ListAssetRequest) (*domain.Asset, error) {
	if !assetIDRegex.MatchString(req.AssetID) {
		return nil, &domain.ValidationError{
			Message: "asset_id must match ^[A-Z0-9]{1,10}$",
		}
	}
	if req.Name == "" {
		return nil, &domain.ValidationError{
			Message: "name is required",
		}
	}
	if req.TotalShares <= 0 {
		return nil, &domain.ValidationError{
			Message: "total_shares must be a positive integer",
		}
	}
	if req.InitialPrice <= 0 {
		return nil, &domain.ValidationError{
			Message: "initial_price must be greater than 0",
		}
	}
	priceCents, err := domain.DollarsToCents(req.InitialPrice)
	if err != nil {
		return nil, &domain.ValidationError{
			Message: "initial_price must have at most 2 decimal places",
		}
	}

	now := time.Now()
	asset := &domain.Asset{
		AssetID:        req.AssetID,
		Name:           req.Name,
		Sport:          req.Sport,
		Position:       req.Position,
		TotalShares:    req.TotalShares,
		LastPriceCents: priceCents,
		MarketCapCents: req.TotalShares * priceCents,
		ListedAt:       now,
		UpdatedAt:      now,
	}

	if err := s.assets.Create(asset); err != nil {
		return nil, err
	}
	return asset, nil
}

// ListAssets returns all listed assets sorted by asset id.
func (s *MarketService) ListAssets() []*domain.Asset {
	return s.assets.List()
}

// GetStats returns the asset's pricing read model.
func (s *MarketService) GetStats(assetID string) (*AssetStatsResponse, error) {
	asset, err := s.assets.Get(assetID)
	if err != nil {
		return nil, err
	}

	return &AssetStatsResponse{
		AssetID:        asset.AssetID,
		Name:           asset.Name,
		Sport:          asset.Sport,
		Position:       asset.Position,
		TotalShares:    asset.TotalShares,
		LastPriceCents: asset.LastPriceCents,
		Volume24h:      asset.Volume24h,
		Change24hCents: asset.Change24hCents,
		MarketCapCents: asset.MarketCapCents,
		UpdatedAt:      asset.UpdatedAt,
	}, nil
}

// GetBook returns the top N price levels of the order book for an asset.
func (s *MarketService) GetBook(assetID string, depth int) (*BookResponse, error) {
	if depth < 1 || depth > 50 {
		return nil, &domain.ValidationError{
			Message: "depth must be between 1 and 50",
		}
	}

	bids, asks, err := s.matcher.Depth(assetID, depth)
	if err != nil {
		return nil, err
	}

	resp := &BookResponse{
		AssetID:    assetID,
		Bids:       toBookLevels(bids),
		Asks:       toBookLevels(asks),
		SnapshotAt: time.Now(),
	}

	// Spread = best ask - best bid (null if either side empty).
	if len(bids) > 0 && len(asks) > 0 {
		spread := asks[0].PriceCents - bids[0].PriceCents
		resp.Spread = &spread
	}

	return resp, nil
}

func toBookLevels(levels []engine.PriceLevel) []BookPriceLevel {
	result := make([]BookPriceLevel, len(levels))
	for i, pl := range levels {
		result[i] = BookPriceLevel{
			PriceCents:    pl.PriceCents,
			TotalQuantity: pl.TotalQuantity,
			OrderCount:    pl.OrderCount,
		}
	}
	return result
}

// GetQuote simulates a market order against the current book and returns
// the estimated result without placing an order.
func (s *MarketService) GetQuote(assetID string, side domain.OrderSide, quantity int64) (*QuoteResponse, error) {
	if side != domain.OrderSideBuy && side != domain.OrderSideSell {
		return nil, &domain.ValidationError{
			Message: "side must be 'buy' or 'sell'",
		}
	}
	if quantity <= 0 {
		return nil, &domain.ValidationError{
			Message: "quantity must be a positive integer",
		}
	}

	q, err := s.matcher.SimulateMarketOrder(assetID, side, quantity)
	if err != nil {
		return nil, err
	}

	resp := &QuoteResponse{
		AssetID:           assetID,
		Side:              side,
		QuantityRequested: quantity,
		QuantityAvailable: q.FillableQuantity,
		FullyFillable:     q.FillableQuantity == quantity,
		QuotedAt:          time.Now(),
	}
	if q.FillableQuantity > 0 {
		avg := q.AvgPriceCents
		total := q.EstimatedCostCents
		resp.EstimatedAvgCents = &avg
		resp.EstimatedCostCents = &total
	}
	return resp, nil
}

// GetTrades returns the asset's trades executed within the given window,
// most recent last, capped at limit rows.
func (s *MarketService) GetTrades(assetID string, window time.Duration, limit int) ([]TradeRow, error) {
	if !s.assets.Exists(assetID) {
		return nil, domain.ErrAssetNotFound
	}
	if limit < 1 || limit > 500 {
		return nil, &domain.ValidationError{
			Message: fmt.Sprintf("limit must be between 1 and 500, got %d", limit),
		}
	}

	trades := s.tradeStore.Recent(assetID, time.Now().Add(-window))
	if len(trades) > limit {
		trades = trades[len(trades)-limit:]
	}

	rows := make([]TradeRow, 0, len(trades))
	for _, t := range trades {
		rows = append(rows, TradeRow{
			TradeID:    t.TradeID,
			Quantity:   t.Quantity,
			PriceCents: t.PriceCents,
			ExecutedAt: t.ExecutedAt,
		})
	}
	return rows, nil
}
