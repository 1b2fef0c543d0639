package notify

import (
	"context"
	"time"

	"github.com/efreitasn/athletex/internal/engine"
	"github.com/efreitasn/athletex/internal/store"
)

// Monitor periodically snapshots every listed asset's trading stats and
// broadcasts them through the notifier. It is the only timed loop in the
// process: trading and vesting are both request-driven.
type Monitor struct {
	interval time.Duration
	assets   *store.AssetStore
	notifier engine.Notifier
}

// NewMonitor creates a Monitor that ticks at the given interval.
func NewMonitor(interval time.Duration, assets *store.AssetStore, notifier engine.Notifier) *Monitor {
	return &Monitor{
		interval: interval,
		assets:   assets,
		notifier: notifier,
	}
}

// Start launches a background goroutine that ticks at the configured
// interval. It stops when ctx is cancelled.
func (m *Monitor) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.tick()
			}
		}
	}()
}

// tick builds the activity snapshot and hands it to the notifier.
func (m *Monitor) tick() {
	assets := m.assets.List()
	if len(assets) == 0 {
		return
	}

	activity := make([]engine.AssetActivity, 0, len(assets))
	for _, a := range assets {
		activity = append(activity, engine.AssetActivity{
			AssetID:        a.AssetID,
			LastPriceCents: a.LastPriceCents,
			Volume24h:      a.Volume24h,
			Change24hCents: a.Change24hCents,
		})
	}
	m.notifier.MarketActivity(activity)
}
