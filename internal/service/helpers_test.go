package service

import (
	"io"
	"log/slog"
	"time"

	"github.com/efreitasn/athletex/internal/domain"
	"github.com/efreitasn/athletex/internal/engine"
	"github.com/efreitasn/athletex/internal/ledger"
	"github.com/efreitasn/athletex/internal/store"
	"github.com/efreitasn/athletex/internal/vesting"
)

// testStack wires the full service stack over fresh in-memory stores.
type testStack struct {
	accounts *store.AccountStore
	assets   *store.AssetStore
	orders   *store.OrderStore
	trades   *store.TradeStore
	ledger   *ledger.Ledger
	matcher  *engine.Matcher

	accountSvc *AccountService
	orderSvc   *OrderService
	marketSvc  *MarketService
	contestSvc *ContestService
	vestingSvc *VestingService
	webhookSvc *WebhookService
}

func newTestStack() *testStack {
	accounts := store.NewAccountStore()
	locks := store.NewLockStore()
	assets := store.NewAssetStore()
	orders := store.NewOrderStore()
	trades := store.NewTradeStore()
	webhooks := store.NewWebhookStore()
	l := ledger.New(accounts, locks)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	matcher := engine.NewMatcher(engine.NewBookManager(), l, orders, trades, assets, engine.NopNotifier{}, logger, 24*time.Hour)
	vestingEngine := vesting.NewEngine(store.NewVestingStore(), accounts, assets, l,
		vesting.Config{BaseRatePerHour: 100, PremiumMultiplier: 2, CapShares: 1000}, logger, time.Now)
	webhookSvc := NewWebhookService(webhooks, accounts, time.Second)

	return &testStack{
		accounts:   accounts,
		assets:     assets,
		orders:     orders,
		trades:     trades,
		ledger:     l,
		matcher:    matcher,
		accountSvc: NewAccountService(accounts, assets, l),
		orderSvc:   NewOrderService(matcher, accounts, orders, webhookSvc),
		marketSvc:  NewMarketService(assets, trades, matcher),
		contestSvc: NewContestService(l, accounts, assets),
		vestingSvc: NewVestingService(vestingEngine, webhookSvc),
		webhookSvc: webhookSvc,
	}
}

func (ts *testStack) listAsset(id string, totalShares int64, price float64) {
	_, err := ts.marketSvc.ListAsset(ListAssetRequest{
		AssetID:      id,
		Name:         id,
		TotalShares:  totalShares,
		InitialPrice: price,
	})
	if err != nil {
		panic(err)
	}
}

func (ts *testStack) register(id string, cash float64, holdings []HoldingInput) *domain.Account {
	a, err := ts.accountSvc.Register(RegisterAccountRequest{
		AccountID:       id,
		InitialCash:     cash,
		InitialHoldings: holdings,
	})
	if err != nil {
		panic(err)
	}
	return a
}

func floatPtr(f float64) *float64 {
	return &f
}
