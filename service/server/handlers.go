package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/stackfolio/basketd/service/basket"
	"github.com/stackfolio/basketd/service/catalog"
	"github.com/stackfolio/basketd/service/db"
)

const (
	maxRequestBodySize = 1 << 20 // 1MB - plenty for any purchase request
	maxAddressLength   = 100     // Solana addresses are 44 chars, give buffer
)

var (
	// Valid Solana address characters: base58 (no 0, O, I, l)
	validAddressRegex = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]+$`)
)

// basketResponse is the wire format for a basket listing.
type basketResponse struct {
	ID             string               `json:"id"`
	Name           string               `json:"name"`
	Description    string               `json:"description"`
	Risk           string               `json:"risk"`
	Tags           []string             `json:"tags,omitempty"`
	Featured       bool                 `json:"featured"`
	Disabled       bool                 `json:"disabled"`
	DisabledReason string               `json:"disabled_reason,omitempty"`
	Items          []basketItemResponse `json:"items"`
}

type basketItemResponse struct {
	Mint      string  `json:"mint"`
	Symbol    string  `json:"symbol"`
	Name      string  `json:"name"`
	Ticker    string  `json:"ticker,omitempty"`
	WeightPct float64 `json:"weight_pct"`
}

func basketToResponse(repo *catalog.Repository, b catalog.Basket) basketResponse {
	items := repo.DisplayItems(b)
	resp := basketResponse{
		ID:             b.ID,
		Name:           b.Name,
		Description:    b.Description,
		Risk:           string(b.Risk),
		Tags:           b.Tags,
		Featured:       b.Featured,
		Disabled:       b.Disabled,
		DisabledReason: b.DisabledReason,
		Items:          make([]basketItemResponse, len(items)),
	}
	for i, it := range items {
		resp.Items[i] = basketItemResponse{
			Mint:      it.Mint,
			Symbol:    it.Symbol,
			Name:      it.Name,
			Ticker:    it.Ticker,
			WeightPct: it.WeightPct,
		}
	}
	return resp
}

// handleListBaskets returns a handler that lists the basket catalog.
// GET /api/v1/baskets
func handleListBaskets(repo *catalog.Repository, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		baskets := repo.Baskets()
		resp := make([]basketResponse, len(baskets))
		for i, b := range baskets {
			resp[i] = basketToResponse(repo, b)
		}

		logger.Debug("baskets listed", "count", len(resp))
		writeJSON(w, map[string]interface{}{
			"baskets": resp,
		}, http.StatusOK)
	})
}

// handleGetBasket returns a handler that retrieves one basket by ID.
// GET /api/v1/baskets/{id}
func handleGetBasket(repo *catalog.Repository, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		b, ok := repo.Basket(id)
		if !ok {
			writeError(w, "basket not found", http.StatusNotFound)
			return
		}
		writeJSON(w, basketToResponse(repo, b), http.StatusOK)
	})
}

// handleQuoteBasket returns a handler that fetches a fresh quote batch for a
// basket purchase. All-or-nothing: any single quote failure fails the batch.
// POST /api/v1/baskets/{id}/quote
func handleQuoteBasket(session *basket.Session, repo *catalog.Repository, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

		b, ok := repo.Basket(r.PathValue("id"))
		if !ok {
			writeError(w, "basket not found", http.StatusNotFound)
			return
		}

		var req struct {
			TotalUSD float64 `json:"total_usd"`
		}
		if err := decodeBody(r, &req); err != nil {
			logger.Debug("failed to decode quote request", "error", err)
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.TotalUSD <= 0 {
			writeError(w, "total_usd must be positive", http.StatusBadRequest)
			return
		}

		rows, err := session.FetchQuotes(r.Context(), b, req.TotalUSD)
		if err != nil {
			logger.Warn("quote batch failed", "basket", b.ID, "error", err)
			writeError(w, err.Error(), http.StatusBadGateway)
			return
		}

		writeJSON(w, map[string]interface{}{
			"basket_id": b.ID,
			"total_usd": req.TotalUSD,
			"quotes":    rows,
		}, http.StatusOK)
	})
}

// handleBuyBasket returns a handler that executes a previously quoted basket
// purchase immediately. Requires a preceding quote call for the same basket
// and amount.
// POST /api/v1/baskets/{id}/buy
func handleBuyBasket(session *basket.Session, repo *catalog.Repository, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

		b, ok := repo.Basket(r.PathValue("id"))
		if !ok {
			writeError(w, "basket not found", http.StatusNotFound)
			return
		}

		var req struct {
			TotalUSD float64 `json:"total_usd"`
		}
		if err := decodeBody(r, &req); err != nil {
			logger.Debug("failed to decode buy request", "error", err)
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		sigs, err := session.ExecuteOnce(r.Context(), b, req.TotalUSD)
		if err != nil {
			status := http.StatusInternalServerError
			if strings.Contains(err.Error(), "Preview quotes first.") {
				status = http.StatusConflict
			}
			// Partial completion still returns the confirmed signatures so the
			// caller knows which purchases went through.
			logger.Error("basket buy failed", "basket", b.ID, "completed", len(sigs), "error", err)
			writeJSON(w, map[string]interface{}{
				"error":      err.Error(),
				"signatures": sigs,
			}, status)
			return
		}

		writeJSON(w, map[string]interface{}{
			"basket_id":  b.ID,
			"signatures": sigs,
		}, http.StatusOK)
	})
}

// handleStartBasketDCA returns a handler that schedules a basket purchase as
// recurring orders, one per asset.
// POST /api/v1/baskets/{id}/dca
func handleStartBasketDCA(session *basket.Session, repo *catalog.Repository, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

		b, ok := repo.Basket(r.PathValue("id"))
		if !ok {
			writeError(w, "basket not found", http.StatusNotFound)
			return
		}

		var req struct {
			TotalUSD        float64 `json:"total_usd"`
			Orders          int     `json:"orders"`
			IntervalSeconds int64   `json:"interval_seconds"`
		}
		if err := decodeBody(r, &req); err != nil {
			logger.Debug("failed to decode dca request", "error", err)
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.IntervalSeconds <= 0 {
			req.IntervalSeconds = basket.IntervalWeekly
		}
		if req.Orders == 0 {
			if n, ok := basket.DefaultOrdersByInterval[req.IntervalSeconds]; ok {
				req.Orders = n
			}
		}

		if msg := session.Validate(b, req.TotalUSD, basket.ModeDCA, req.Orders); msg != "" {
			writeError(w, msg, http.StatusBadRequest)
			return
		}

		msgs, err := session.ExecuteRecurring(r.Context(), b, req.TotalUSD, req.Orders, req.IntervalSeconds)
		if err != nil {
			logger.Error("basket dca failed", "basket", b.ID, "completed", len(msgs), "error", err)
			writeJSON(w, map[string]interface{}{
				"error":    err.Error(),
				"messages": msgs,
			}, http.StatusInternalServerError)
			return
		}

		writeJSON(w, map[string]interface{}{
			"basket_id": b.ID,
			"messages":  msgs,
		}, http.StatusOK)
	})
}

// handleCreateRecurringBuy returns a handler that sets up a standalone
// recurring buy of a single asset.
// POST /api/v1/recurring-buys
func handleCreateRecurringBuy(session *basket.Session, repo *catalog.Repository, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

		var req struct {
			Mint            string  `json:"mint"`
			Symbol          string  `json:"symbol"`
			PerOrderUSD     float64 `json:"per_order_usd"`
			Orders          int     `json:"orders"`
			IntervalSeconds int64   `json:"interval_seconds"`
		}
		if err := decodeBody(r, &req); err != nil {
			logger.Debug("failed to decode recurring-buy request", "error", err)
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		mint := req.Mint
		if mint == "" && req.Symbol != "" {
			a, ok := repo.BySymbol(req.Symbol)
			if !ok {
				writeError(w, "unknown symbol", http.StatusBadRequest)
				return
			}
			mint = a.Mint
		}
		if err := validateAddress(mint); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.IntervalSeconds <= 0 {
			req.IntervalSeconds = basket.IntervalWeekly
		}
		if req.Orders == 0 {
			if n, ok := basket.DefaultOrdersByInterval[req.IntervalSeconds]; ok {
				req.Orders = n
			}
		}

		params := basket.RecurringBuyParams{
			OutputMint:      mint,
			PerOrderUSD:     req.PerOrderUSD,
			OrderCount:      req.Orders,
			IntervalSeconds: req.IntervalSeconds,
		}
		if msg := session.PlanRecurringBuy(params); msg != "" {
			writeError(w, msg, http.StatusBadRequest)
			return
		}

		res, err := session.StartRecurringBuy(r.Context(), params)
		if err != nil {
			logger.Error("recurring buy failed", "mint", mint, "error", err)
			writeError(w, err.Error(), http.StatusInternalServerError)
			return
		}

		writeJSON(w, map[string]interface{}{
			"mint":            mint,
			"orders":          req.Orders,
			"per_order_usd":   req.PerOrderUSD,
			"status":          res.Status,
			"confirmation_id": res.ConfirmationID,
		}, http.StatusOK)
	})
}

// handleSwap returns a handler that executes a single immediate swap.
// POST /api/v1/swaps
func handleSwap(session *basket.Session, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

		var req struct {
			InputMint   string `json:"input_mint"`
			OutputMint  string `json:"output_mint"`
			Amount      uint64 `json:"amount"`
			SlippageBps int    `json:"slippage_bps"`
		}
		if err := decodeBody(r, &req); err != nil {
			logger.Debug("failed to decode swap request", "error", err)
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := validateAddress(req.InputMint); err != nil {
			writeError(w, fmt.Sprintf("input_mint: %v", err), http.StatusBadRequest)
			return
		}
		if err := validateAddress(req.OutputMint); err != nil {
			writeError(w, fmt.Sprintf("output_mint: %v", err), http.StatusBadRequest)
			return
		}
		if req.Amount == 0 {
			writeError(w, "amount must be positive", http.StatusBadRequest)
			return
		}

		sig, err := session.Swap(r.Context(), basket.SwapParams{
			InputMint:   req.InputMint,
			OutputMint:  req.OutputMint,
			Amount:      req.Amount,
			SlippageBps: req.SlippageBps,
		})
		if err != nil {
			logger.Error("swap failed", "output_mint", req.OutputMint, "error", err)
			writeError(w, err.Error(), http.StatusInternalServerError)
			return
		}

		writeJSON(w, map[string]interface{}{
			"signature": sig,
		}, http.StatusOK)
	})
}

// runResponse is the wire format for a persisted run.
type runResponse struct {
	RunID       string                 `json:"run_id"`
	Wallet      string                 `json:"wallet"`
	BasketID    string                 `json:"basket_id,omitempty"`
	Mode        string                 `json:"mode"`
	TotalUSD    float64                `json:"total_usd"`
	Total       int                    `json:"total"`
	Status      string                 `json:"status"`
	Error       *string                `json:"error,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	Steps       []confirmationResponse `json:"steps,omitempty"`
}

type confirmationResponse struct {
	Seq            int       `json:"seq"`
	AssetMint      string    `json:"asset_mint"`
	ConfirmationID string    `json:"confirmation_id"`
	CreatedAt      time.Time `json:"created_at"`
}

func runToResponse(run *db.Run) runResponse {
	return runResponse{
		RunID:       run.RunID,
		Wallet:      run.Wallet,
		BasketID:    run.BasketID,
		Mode:        string(run.Mode),
		TotalUSD:    run.TotalUSD,
		Total:       run.Total,
		Status:      string(run.Status),
		Error:       run.Error,
		CreatedAt:   run.CreatedAt,
		CompletedAt: run.CompletedAt,
	}
}

// handleListRuns returns a handler that lists persisted execution runs.
// GET /api/v1/runs?wallet={wallet}&limit={n}&offset={n}
func handleListRuns(store *db.Store, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		params := db.ListRunsParams{
			Wallet: r.URL.Query().Get("wallet"),
		}
		if params.Wallet != "" {
			if err := validateAddress(params.Wallet); err != nil {
				writeError(w, err.Error(), http.StatusBadRequest)
				return
			}
		}
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				writeError(w, "invalid limit", http.StatusBadRequest)
				return
			}
			params.Limit = int32(n)
		}
		if v := r.URL.Query().Get("offset"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				writeError(w, "invalid offset", http.StatusBadRequest)
				return
			}
			params.Offset = int32(n)
		}

		runs, err := store.ListRuns(r.Context(), params)
		if err != nil {
			logger.Error("failed to list runs", "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		resp := make([]runResponse, len(runs))
		for i, run := range runs {
			resp[i] = runToResponse(run)
		}

		logger.Debug("runs listed", "count", len(resp))
		writeJSON(w, map[string]interface{}{
			"runs": resp,
		}, http.StatusOK)
	})
}

// handleGetRun returns a handler that retrieves one run with its confirmed
// steps in order.
// GET /api/v1/runs/{id}
func handleGetRun(store *db.Store, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")

		run, confs, err := store.GetRun(r.Context(), id)
		if err != nil {
			if strings.Contains(err.Error(), "not found") {
				writeError(w, "run not found", http.StatusNotFound)
				return
			}
			logger.Error("failed to get run", "run_id", id, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		resp := runToResponse(run)
		resp.Steps = make([]confirmationResponse, len(confs))
		for i, c := range confs {
			resp.Steps[i] = confirmationResponse{
				Seq:            c.Seq,
				AssetMint:      c.AssetMint,
				ConfirmationID: c.ConfirmationID,
				CreatedAt:      c.CreatedAt,
			}
		}

		writeJSON(w, resp, http.StatusOK)
	})
}

// handleGetPrices returns a handler that serves display prices for catalog
// assets. Best effort: transport failures degrade to indicative fallbacks
// inside the feed.
// GET /api/v1/prices?mints={mint,mint,...}
func handleGetPrices(feed basket.PriceFeed, repo *catalog.Repository, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var mints []string
		if v := r.URL.Query().Get("mints"); v != "" {
			for _, m := range strings.Split(v, ",") {
				m = strings.TrimSpace(m)
				if m == "" {
					continue
				}
				if err := validateAddress(m); err != nil {
					writeError(w, err.Error(), http.StatusBadRequest)
					return
				}
				mints = append(mints, m)
			}
		} else {
			for _, a := range repo.Assets() {
				mints = append(mints, a.Mint)
			}
		}

		prices, err := feed.Prices(r.Context(), mints)
		if err != nil {
			logger.Error("failed to fetch prices", "error", err)
			writeError(w, "price feed unavailable", http.StatusBadGateway)
			return
		}

		writeJSON(w, map[string]interface{}{
			"prices": prices,
		}, http.StatusOK)
	})
}

// decodeBody decodes a JSON request body with a friendly error for oversized
// payloads.
func decodeBody(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if strings.Contains(err.Error(), "http: request body too large") {
			return errorf("request body too large: maximum size is 1MB")
		}
		return errorf("invalid request body: must be valid JSON")
	}
	return nil
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// validateAddress validates a mint or wallet address for security and format.
func validateAddress(address string) error {
	if address == "" {
		return errorf("address is required")
	}

	if len(address) > maxAddressLength {
		return errorf("address too long: maximum length is %d characters", maxAddressLength)
	}

	// Check for null bytes and control characters
	for _, r := range address {
		if r == 0 || unicode.IsControl(r) {
			return errorf("invalid characters in address: control characters not allowed")
		}
	}

	// Check for common SQL injection patterns
	lowerAddr := strings.ToLower(address)
	sqlPatterns := []string{"drop ", "delete ", "insert ", "update ", "select ", "--", "/*", "*/", ";"}
	for _, pattern := range sqlPatterns {
		if strings.Contains(lowerAddr, pattern) {
			return errorf("invalid characters in address: suspicious pattern detected")
		}
	}

	// Validate against Solana base58 format (optional but recommended)
	// For now we just check alphanumeric with valid base58 chars
	if !validAddressRegex.MatchString(address) {
		return errorf("invalid address format: must contain only valid base58 characters")
	}

	return nil
}

// errorf is a helper for creating formatted errors.
func errorf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}
