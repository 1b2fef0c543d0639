package store

import (
	"sync"
	"time"

	"github.com/efreitasn/athletex/internal/domain"
)

// TradeStore is a thread-safe in-memory store for trades,
// keyed by asset_id. Trades are append-only and chronological.
type TradeStore struct {
	mu     sync.RWMutex
	trades map[string][]*domain.Trade // asset_id → trades (chronological)
}

// NewTradeStore creates an empty TradeStore.
func NewTradeStore() *TradeStore {
	return &TradeStore{
		trades: make(map[string][]*domain.Trade),
	}
}

// Append adds a trade to the asset's chronological list.
func (s *TradeStore) Append(t *domain.Trade) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.trades[t.AssetID] = append(s.trades[t.AssetID], t)
}

// GetByAsset returns all trades for an asset in chronological order.
// Returns an empty slice if no trades exist for the asset.
func (s *TradeStore) GetByAsset(assetID string) []*domain.Trade {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trades := s.trades[assetID]
	if trades == nil {
		return []*domain.Trade{}
	}

	// Return a copy to avoid callers mutating the internal slice.
	result := make([]*domain.Trade, len(trades))
	copy(result, trades)
	return result
}

// Recent returns all trades for an asset executed at or after the cutoff,
// newest last.
func (s *TradeStore) Recent(assetID string, since time.Time) []*domain.Trade {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trades := s.trades[assetID]
	result := make([]*domain.Trade, 0)
	// Trades are chronological; scan from the back until the cutoff.
	for i := len(trades) - 1; i >= 0; i-- {
		if trades[i].ExecutedAt.Before(since) {
			break
		}
		result = append([]*domain.Trade{trades[i]}, result...)
	}
	return result
}

// VolumeSince returns the total share quantity traded at or after the
// cutoff, plus the price of the most recent trade (0 when none exist).
func (s *TradeStore) VolumeSince(assetID string, since time.Time) (volume, lastPrice int64) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trades := s.trades[assetID]
	if len(trades) == 0 {
		return 0, 0
	}
	lastPrice = trades[len(trades)-1].PriceCents
	for i := len(trades) - 1; i >= 0; i-- {
		if trades[i].ExecutedAt.Before(since) {
			break
		}
		volume += trades[i].Quantity
	}
	return volume, lastPrice
}
