package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stackfolio/basketd/service/basket"
	"github.com/stackfolio/basketd/service/catalog"
	"github.com/stackfolio/basketd/service/config"
	"github.com/stackfolio/basketd/service/db"
	"github.com/stackfolio/basketd/service/jupiter"
	"github.com/stackfolio/basketd/service/metrics"
	natspkg "github.com/stackfolio/basketd/service/nats"
	"github.com/stackfolio/basketd/service/pricefeed"
	"github.com/stackfolio/basketd/service/server"
	"github.com/stackfolio/basketd/service/solana"
)

func main() {
	// Load and validate configuration from environment
	// This fails fast if any required config is missing or invalid
	cfg := config.MustLoad()

	// Setup structured logging
	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting server",
		"addr", cfg.ServerAddr,
		"log_level", cfg.LogLevel,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection pool
	dbPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	// Verify database connection
	if err := dbPool.Ping(ctx); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to database")

	// Initialize run-history store
	store := db.NewStore(dbPool)
	if err := store.EnsureSchema(ctx); err != nil {
		logger.Error("failed to apply database schema", "error", err)
		os.Exit(1)
	}

	// Initialize Prometheus metrics
	m := metrics.NewMetrics(nil)

	// Static asset and basket catalogs
	repo := catalog.NewRepository()

	// Quote/swap and recurring-order API clients
	jup := jupiter.NewClient(cfg.JupiterQuoteURL, nil, logger)
	recurring := jupiter.NewRecurringClient(cfg.JupiterRecurringURL, nil, logger)

	// Display price feed with indicative fallbacks
	prices := pricefeed.NewClient(cfg.PriceAPIURL, nil, pricefeed.FallbackPrices(repo), logger)

	// Ledger submitter
	// Note: For premium RPC endpoints, include API key in the URL
	rpc := solana.NewRPCClient(cfg.SolanaRPCURL)
	submitter := solana.NewSubmitter(rpc, solana.SubmitPolicy{
		SkipPreflight:  cfg.SubmitSkipPreflight,
		MaxRetries:     uint(cfg.SubmitMaxRetries),
		ConfirmTimeout: cfg.ConfirmTimeout,
		PollInterval:   cfg.ConfirmPollInterval,
	}, m, logger)
	logger.Info("initialized solana RPC client", "url", cfg.SolanaRPCURL)

	// NATS run-event publisher (optional)
	var events basket.EventSink
	publisher, err := natspkg.NewPublisher(cfg.NATSURL, m, logger)
	if err != nil {
		logger.Warn("NATS unavailable, run events disabled", "error", err)
	} else {
		events = publisher
		defer publisher.Close()
	}

	// Service wallet and execution session (optional: without a key the
	// server serves the catalog and run history but cannot execute)
	var session *basket.Session
	if cfg.WalletPrivateKey != "" {
		wallet, err := solana.NewLocalWallet(cfg.WalletPrivateKey)
		if err != nil {
			logger.Error("failed to load wallet key", "error", err)
			os.Exit(1)
		}
		logger.Info("loaded service wallet", "address", wallet.Address())

		session = basket.NewSession(basket.Deps{
			Quoter:    jup,
			Swaps:     jup,
			Ledger:    submitter,
			Recurring: recurring,
			Wallet:    wallet,
			Assets:    repo,
			Limits: basket.Limits{
				SlippageBps:             cfg.SlippageBps,
				BasketDCAMinPerOrderUSD: cfg.BasketDCAMinPerOrderUSD,
				RecurringMinPerOrderUSD: cfg.RecurringMinPerOrderUSD,
				RecurringMinTotalUSD:    cfg.RecurringMinTotalUSD,
			},
			Logger:   logger,
			Metrics:  m,
			Events:   events,
			Recorder: store,
		})
	}

	// SSE publisher for run-event streaming (optional, needs NATS)
	var ssePublisher *server.SSEPublisher
	if events != nil {
		ssePublisher, err = server.NewSSEPublisher(cfg.NATSURL, logger)
		if err != nil {
			logger.Warn("failed to initialize SSE publisher", "error", err)
			ssePublisher = nil
		}
	}

	// Initialize HTTP server
	httpServer := server.New(cfg.ServerAddr, cfg, store, repo, session, prices, ssePublisher, m, logger)

	// Start HTTP server in background
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpServer.Start()
	}()

	// Wait for shutdown signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", "error", err)
		os.Exit(1)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())

		// Graceful shutdown with timeout
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown server gracefully", "error", err)
			os.Exit(1)
		}

		logger.Info("server shutdown complete")
	}
}

// setupLogger creates a structured logger with the given log level.
func setupLogger(levelStr string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
