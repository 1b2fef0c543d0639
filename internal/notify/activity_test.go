package notify

import (
	"sync"
	"testing"
	"time"

	"github.com/efreitasn/athletex/internal/domain"
	"github.com/efreitasn/athletex/internal/engine"
	"github.com/efreitasn/athletex/internal/store"
)

type recordingNotifier struct {
	mu       sync.Mutex
	activity [][]engine.AssetActivity
}

func (r *recordingNotifier) TradeExecuted(*domain.Trade)    {}
func (r *recordingNotifier) PortfolioChanged(string, int64) {}
func (r *recordingNotifier) OrderBookChanged(string)        {}

func (r *recordingNotifier) MarketActivity(a []engine.AssetActivity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.activity = append(r.activity, a)
}

func (r *recordingNotifier) snapshots() [][]engine.AssetActivity {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activity
}

func TestMonitorTick_BroadcastsAllAssets(t *testing.T) {
	assets := store.NewAssetStore()
	_ = assets.Create(&domain.Asset{AssetID: "KD", LastPriceCents: 3000, ListedAt: time.Now()})
	_ = assets.Create(&domain.Asset{AssetID: "LBJ", LastPriceCents: 4500, Volume24h: 12, ListedAt: time.Now()})

	rec := &recordingNotifier{}
	m := NewMonitor(time.Hour, assets, rec)
	m.tick()

	snaps := rec.snapshots()
	if len(snaps) != 1 {
		t.Fatalf("expected 1 broadcast, got %d", len(snaps))
	}
	if len(snaps[0]) != 2 {
		t.Fatalf("expected 2 assets in snapshot, got %d", len(snaps[0]))
	}
	// AssetStore.List is sorted by asset_id.
	if snaps[0][0].AssetID != "KD" || snaps[0][1].AssetID != "LBJ" {
		t.Errorf("unexpected snapshot order: %+v", snaps[0])
	}
	if snaps[0][1].LastPriceCents != 4500 || snaps[0][1].Volume24h != 12 {
		t.Errorf("unexpected LBJ stats: %+v", snaps[0][1])
	}
}

func TestMonitorTick_SkipsEmptyMarket(t *testing.T) {
	rec := &recordingNotifier{}
	m := NewMonitor(time.Hour, store.NewAssetStore(), rec)
	m.tick()

	if len(rec.snapshots()) != 0 {
		t.Error("expected no broadcast for an empty market")
	}
}
