package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stackfolio/basketd/service/basket"
	"github.com/stackfolio/basketd/service/catalog"
	"github.com/stackfolio/basketd/service/config"
	"github.com/stackfolio/basketd/service/db"
	"github.com/stackfolio/basketd/service/metrics"
)

// Server represents the HTTP server for the basket service.
type Server struct {
	addr         string
	cfg          *config.Config
	store        *db.Store
	catalog      *catalog.Repository
	session      *basket.Session
	prices       basket.PriceFeed
	ssePublisher *SSEPublisher
	metrics      *metrics.Metrics
	logger       *slog.Logger
	server       *http.Server
}

// New creates a new HTTP server with the given dependencies.
// The session executes purchases with the service wallet; if nil, execution
// endpoints won't be available (catalog and run history stay up).
// The ssePublisher is optional - if nil, SSE endpoints won't be available.
// The metrics is optional - if nil, the metrics endpoint won't be available.
func New(addr string, cfg *config.Config, store *db.Store, repo *catalog.Repository, session *basket.Session, prices basket.PriceFeed, ssePublisher *SSEPublisher, m *metrics.Metrics, logger *slog.Logger) *Server {
	return &Server{
		addr:         addr,
		cfg:          cfg,
		store:        store,
		catalog:      repo,
		session:      session,
		prices:       prices,
		ssePublisher: ssePublisher,
		metrics:      m,
		logger:       logger,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	mux := http.NewServeMux()

	// instrument wraps a handler with request metrics under a constant route
	// name so label cardinality stays bounded.
	instrument := func(route string, h http.Handler) http.Handler {
		if s.metrics == nil {
			return h
		}
		return metrics.HTTPMetricsMiddleware(s.metrics, route)(h)
	}

	// Catalog routes
	mux.Handle("GET /api/v1/baskets", instrument("/api/v1/baskets", handleListBaskets(s.catalog, s.logger)))
	mux.Handle("GET /api/v1/baskets/{id}", instrument("/api/v1/baskets/{id}", handleGetBasket(s.catalog, s.logger)))

	// Execution routes (if a signing session is configured)
	if s.session != nil {
		mux.Handle("POST /api/v1/baskets/{id}/quote", instrument("/api/v1/baskets/{id}/quote", handleQuoteBasket(s.session, s.catalog, s.logger)))
		mux.Handle("POST /api/v1/baskets/{id}/buy", instrument("/api/v1/baskets/{id}/buy", handleBuyBasket(s.session, s.catalog, s.logger)))
		mux.Handle("POST /api/v1/baskets/{id}/dca", instrument("/api/v1/baskets/{id}/dca", handleStartBasketDCA(s.session, s.catalog, s.logger)))
		mux.Handle("POST /api/v1/recurring-buys", instrument("/api/v1/recurring-buys", handleCreateRecurringBuy(s.session, s.catalog, s.logger)))
		mux.Handle("POST /api/v1/swaps", instrument("/api/v1/swaps", handleSwap(s.session, s.logger)))
	} else {
		s.logger.Warn("no signing wallet configured, execution endpoints disabled")
	}

	// Run history routes
	mux.Handle("GET /api/v1/runs", instrument("/api/v1/runs", handleListRuns(s.store, s.logger)))
	mux.Handle("GET /api/v1/runs/{id}", instrument("/api/v1/runs/{id}", handleGetRun(s.store, s.logger)))

	// Display prices
	if s.prices != nil {
		mux.Handle("GET /api/v1/prices", instrument("/api/v1/prices", handleGetPrices(s.prices, s.catalog, s.logger)))
	}

	// SSE streaming endpoints (if SSE publisher is configured)
	if s.ssePublisher != nil {
		mux.Handle("GET /api/v1/stream/runs/{wallet}", handleStreamRuns(s.ssePublisher, s.logger))
		mux.Handle("GET /api/v1/stream/runs", handleStreamRuns(s.ssePublisher, s.logger))
		s.logger.Info("SSE streaming endpoints enabled")
	} else {
		s.logger.Warn("SSE publisher not configured, streaming endpoints disabled")
	}

	// Health check endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Prometheus metrics endpoint (if metrics collector is configured)
	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.Handler())
		s.logger.Info("Prometheus metrics endpoint enabled")
	}

	// Wrap mux with CORS middleware
	handler := corsMiddleware(mux)

	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second, // confirmation polling can hold a request open
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting HTTP server", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	// Close SSE publisher first (disconnects all clients)
	if s.ssePublisher != nil {
		s.ssePublisher.Close()
	}

	// Then shutdown HTTP server
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// corsMiddleware adds CORS headers to all responses and handles OPTIONS preflight requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Set CORS headers for all requests
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "3600")

		// Handle preflight OPTIONS requests
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		// Pass through to next handler
		next.ServeHTTP(w, r)
	})
}
