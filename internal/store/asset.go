package store

import (
	"sort"
	"sync"
	"time"

	"github.com/efreitasn/athletex/internal/domain"
)

// AssetStore is a thread-safe in-memory store for listed assets and their
// pricing read model, keyed by asset_id. It also keeps a bounded price
// history per asset so the 24h change can be derived.
type AssetStore struct {
	mu     sync.RWMutex
	assets map[string]*domain.Asset
	prices map[string][]domain.PricePoint // asset_id → observations, chronological
}

// NewAssetStore creates an empty AssetStore.
func NewAssetStore() *AssetStore {
	return &AssetStore{
		assets: make(map[string]*domain.Asset),
		prices: make(map[string][]domain.PricePoint),
	}
}

// Create adds an asset to the store. It returns
// domain.ErrAssetAlreadyExists if an asset with the same ID already exists.
func (s *AssetStore) Create(a *domain.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.assets[a.AssetID]; exists {
		return domain.ErrAssetAlreadyExists
	}
	s.assets[a.AssetID] = a
	return nil
}

// Get retrieves an asset by ID. It returns
// domain.ErrAssetNotFound if the asset does not exist.
func (s *AssetStore) Get(id string) (*domain.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.assets[id]
	if !ok {
		return nil, domain.ErrAssetNotFound
	}
	return a, nil
}

// Exists returns true if an asset with the given ID exists.
func (s *AssetStore) Exists(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.assets[id]
	return ok
}

// List returns all assets sorted by asset_id.
func (s *AssetStore) List() []*domain.Asset {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Asset, 0, len(s.assets))
	for _, a := range s.assets {
		result = append(result, a)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].AssetID < result[j].AssetID
	})
	return result
}

// Mint increases the asset's outstanding shares (vesting claims create
// shares out of thin air) and refreshes the market cap.
func (s *AssetStore) Mint(assetID string, shares int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.assets[assetID]
	if !ok {
		return domain.ErrAssetNotFound
	}
	a.TotalShares += shares
	a.MarketCapCents = a.TotalShares * a.LastPriceCents
	a.UpdatedAt = time.Now()
	return nil
}

// UpdateStats overwrites the asset's pricing read model after a matching
// pass and records a price observation for the change window. Older
// observations beyond keepFor are pruned.
func (s *AssetStore) UpdateStats(assetID string, lastPrice, volume, change int64, now time.Time, keepFor time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.assets[assetID]
	if !ok {
		return domain.ErrAssetNotFound
	}
	a.LastPriceCents = lastPrice
	a.Volume24h = volume
	a.Change24hCents = change
	a.MarketCapCents = a.TotalShares * lastPrice
	a.UpdatedAt = now

	points := append(s.prices[assetID], domain.PricePoint{At: now, PriceCents: lastPrice})
	cutoff := now.Add(-keepFor)
	trim := 0
	for trim < len(points)-1 && points[trim].At.Before(cutoff) {
		trim++
	}
	s.prices[assetID] = points[trim:]
	return nil
}

// PriceAround returns the price observation closest to the given instant,
// or (0, false) when no observation exists.
func (s *AssetStore) PriceAround(assetID string, at time.Time) (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	points := s.prices[assetID]
	if len(points) == 0 {
		return 0, false
	}

	best := points[0]
	bestDiff := absDuration(points[0].At.Sub(at))
	for _, p := range points[1:] {
		d := absDuration(p.At.Sub(at))
		if d < bestDiff {
			best = p
			bestDiff = d
		}
	}
	return best.PriceCents, true
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
