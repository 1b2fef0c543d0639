package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/efreitasn/athletex/internal/config"
	"github.com/efreitasn/athletex/internal/engine"
	"github.com/efreitasn/athletex/internal/handler"
	"github.com/efreitasn/athletex/internal/ledger"
	"github.com/efreitasn/athletex/internal/notify"
	"github.com/efreitasn/athletex/internal/service"
	"github.com/efreitasn/athletex/internal/store"
	"github.com/efreitasn/athletex/internal/vesting"
)

func main() {
	healthcheck := flag.Bool("healthcheck", false, "Run health check against running server")
	flag.Parse()

	// Handle -healthcheck flag: HTTP GET to localhost:PORT/healthz, exit 0/1.
	if *healthcheck {
		port := os.Getenv("PORT")
		if port == "" {
			port = "8080"
		}
		resp, err := http.Get(fmt.Sprintf("http://localhost:%s/healthz", port))
		if err != nil || resp.StatusCode != http.StatusOK {
			os.Exit(1)
		}
		os.Exit(0)
	}

	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Set up slog logger with configured level.
	var logLevel slog.Level
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Instantiate stores.
	accountStore := store.NewAccountStore()
	lockStore := store.NewLockStore()
	assetStore := store.NewAssetStore()
	orderStore := store.NewOrderStore()
	tradeStore := store.NewTradeStore()
	webhookStore := store.NewWebhookStore()
	vestingStore := store.NewVestingStore()

	// Ledger.
	l := ledger.New(accountStore, lockStore)

	// Realtime feed hub (the matcher's notifier).
	hub := notify.NewHub(logger)

	// Engines.
	books := engine.NewBookManager()
	matcher := engine.NewMatcher(books, l, orderStore, tradeStore, assetStore, hub, logger, cfg.StatsWindow)
	vestingEngine := vesting.NewEngine(vestingStore, accountStore, assetStore, l, vesting.Config{
		BaseRatePerHour:   cfg.VestingBaseRatePerHour,
		PremiumMultiplier: cfg.VestingPremiumMultiplier,
		CapShares:         cfg.VestingCapShares,
	}, logger, time.Now)

	// Services (webhook first so the others can dispatch through it).
	webhookSvc := service.NewWebhookService(webhookStore, accountStore, cfg.WebhookTimeout)
	accountSvc := service.NewAccountService(accountStore, assetStore, l)
	orderSvc := service.NewOrderService(matcher, accountStore, orderStore, webhookSvc)
	marketSvc := service.NewMarketService(assetStore, tradeStore, matcher)
	vestingSvc := service.NewVestingService(vestingEngine, webhookSvc)
	contestSvc := service.NewContestService(l, accountStore, assetStore)

	// Router.
	router := handler.NewRouter(accountSvc, orderSvc, marketSvc, vestingSvc, contestSvc, webhookSvc, hub, cfg.StatsWindow, logger)

	// Start the periodic market activity broadcast.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	monitor := notify.NewMonitor(cfg.ActivityInterval, assetStore, hub)
	monitor.Start(ctx)

	// Configure HTTP server.
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	// Start HTTP server in a goroutine.
	go func() {
		logger.Info("server starting", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Wait for SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutdown signal received", slog.String("signal", sig.String()))

	// Graceful shutdown: stop HTTP server, cancel context (stops the monitor).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
	}
	cancel()

	logger.Info("server stopped")
}
