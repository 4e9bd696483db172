// Package client is the HTTP client for the basketd API. It is consumed by
// the basketctl CLI and by programs embedding basket execution.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Basket is one curated basket as served by the API.
type Basket struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	Description    string       `json:"description"`
	Risk           string       `json:"risk"`
	Tags           []string     `json:"tags,omitempty"`
	Featured       bool         `json:"featured"`
	Disabled       bool         `json:"disabled"`
	DisabledReason string       `json:"disabled_reason,omitempty"`
	Items          []BasketItem `json:"items"`
}

// BasketItem is one asset within a basket.
type BasketItem struct {
	Mint      string  `json:"mint"`
	Symbol    string  `json:"symbol"`
	Name      string  `json:"name"`
	Ticker    string  `json:"ticker,omitempty"`
	WeightPct float64 `json:"weight_pct"`
}

// QuoteRow is one allocation with its execution quote.
type QuoteRow struct {
	Mint     string          `json:"mint"`
	USD      float64         `json:"usd"`
	Smallest uint64          `json:"smallest"`
	Quote    json.RawMessage `json:"quote"`
}

// Run is one persisted execution run.
type Run struct {
	RunID       string     `json:"run_id"`
	Wallet      string     `json:"wallet"`
	BasketID    string     `json:"basket_id,omitempty"`
	Mode        string     `json:"mode"`
	TotalUSD    float64    `json:"total_usd"`
	Total       int        `json:"total"`
	Status      string     `json:"status"`
	Error       *string    `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Steps       []RunStep  `json:"steps,omitempty"`
}

// RunStep is one confirmed step of a run.
type RunStep struct {
	Seq            int       `json:"seq"`
	AssetMint      string    `json:"asset_mint"`
	ConfirmationID string    `json:"confirmation_id"`
	CreatedAt      time.Time `json:"created_at"`
}

// RecurringBuy is the acknowledgement for a standalone recurring buy.
type RecurringBuy struct {
	Mint           string  `json:"mint"`
	Orders         int     `json:"orders"`
	PerOrderUSD    float64 `json:"per_order_usd"`
	Status         string  `json:"status"`
	ConfirmationID string  `json:"confirmation_id"`
}

// Client is the HTTP client for the basketd service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new basket service client.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		// Buys hold the request open through confirmation polling.
		httpClient = &http.Client{Timeout: 3 * time.Minute}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// ListBaskets retrieves the basket catalog.
func (c *Client) ListBaskets(ctx context.Context) ([]Basket, error) {
	var response struct {
		Baskets []Basket `json:"baskets"`
	}
	if err := c.get(ctx, "/api/v1/baskets", &response); err != nil {
		return nil, err
	}
	return response.Baskets, nil
}

// GetBasket retrieves one basket by ID.
func (c *Client) GetBasket(ctx context.Context, id string) (*Basket, error) {
	var b Basket
	if err := c.get(ctx, "/api/v1/baskets/"+url.PathEscape(id), &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// QuoteBasket fetches a quote batch for a basket purchase.
func (c *Client) QuoteBasket(ctx context.Context, basketID string, totalUSD float64) ([]QuoteRow, error) {
	var response struct {
		Quotes []QuoteRow `json:"quotes"`
	}
	body := map[string]interface{}{"total_usd": totalUSD}
	if err := c.post(ctx, "/api/v1/baskets/"+url.PathEscape(basketID)+"/quote", body, &response); err != nil {
		return nil, err
	}
	c.logger.Debug("basket quoted", "basket_id", basketID, "quotes", len(response.Quotes))
	return response.Quotes, nil
}

// BuyBasket executes a previously quoted basket purchase. Returns the
// confirmed signatures in allocation order; on a partial failure the
// signatures confirmed before the failure come back alongside the error.
func (c *Client) BuyBasket(ctx context.Context, basketID string, totalUSD float64) ([]string, error) {
	var response struct {
		Signatures []string `json:"signatures"`
		Error      string   `json:"error"`
	}
	body := map[string]interface{}{"total_usd": totalUSD}
	err := c.post(ctx, "/api/v1/baskets/"+url.PathEscape(basketID)+"/buy", body, &response)
	if err != nil {
		return response.Signatures, err
	}
	c.logger.Debug("basket bought", "basket_id", basketID, "signatures", len(response.Signatures))
	return response.Signatures, nil
}

// StartDCA schedules a basket purchase as recurring orders. A zero orders
// count picks the server default for the interval.
func (c *Client) StartDCA(ctx context.Context, basketID string, totalUSD float64, orders int, intervalSeconds int64) ([]string, error) {
	var response struct {
		Messages []string `json:"messages"`
	}
	body := map[string]interface{}{
		"total_usd":        totalUSD,
		"orders":           orders,
		"interval_seconds": intervalSeconds,
	}
	if err := c.post(ctx, "/api/v1/baskets/"+url.PathEscape(basketID)+"/dca", body, &response); err != nil {
		return response.Messages, err
	}
	return response.Messages, nil
}

// StartRecurringBuy sets up a standalone recurring buy of a single asset.
// Either mint or symbol identifies the asset.
func (c *Client) StartRecurringBuy(ctx context.Context, mint, symbol string, perOrderUSD float64, orders int, intervalSeconds int64) (*RecurringBuy, error) {
	var rb RecurringBuy
	body := map[string]interface{}{
		"mint":             mint,
		"symbol":           symbol,
		"per_order_usd":    perOrderUSD,
		"orders":           orders,
		"interval_seconds": intervalSeconds,
	}
	if err := c.post(ctx, "/api/v1/recurring-buys", body, &rb); err != nil {
		return nil, err
	}
	return &rb, nil
}

// Swap executes a single immediate swap and returns the confirmed signature.
func (c *Client) Swap(ctx context.Context, inputMint, outputMint string, amount uint64, slippageBps int) (string, error) {
	var response struct {
		Signature string `json:"signature"`
	}
	body := map[string]interface{}{
		"input_mint":   inputMint,
		"output_mint":  outputMint,
		"amount":       amount,
		"slippage_bps": slippageBps,
	}
	if err := c.post(ctx, "/api/v1/swaps", body, &response); err != nil {
		return "", err
	}
	return response.Signature, nil
}

// ListRuns retrieves persisted execution runs, newest first.
func (c *Client) ListRuns(ctx context.Context, wallet string, limit, offset int) ([]Run, error) {
	q := url.Values{}
	if wallet != "" {
		q.Set("wallet", wallet)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	path := "/api/v1/runs"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var response struct {
		Runs []Run `json:"runs"`
	}
	if err := c.get(ctx, path, &response); err != nil {
		return nil, err
	}
	return response.Runs, nil
}

// GetRun retrieves one run with its confirmed steps.
func (c *Client) GetRun(ctx context.Context, runID string) (*Run, error) {
	var run Run
	if err := c.get(ctx, "/api/v1/runs/"+url.PathEscape(runID), &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// Prices retrieves display prices keyed by mint. An empty mints slice asks
// for the whole catalog.
func (c *Client) Prices(ctx context.Context, mints []string) (map[string]float64, error) {
	path := "/api/v1/prices"
	if len(mints) > 0 {
		q := url.Values{}
		q.Set("mints", strings.Join(mints, ","))
		path += "?" + q.Encode()
	}

	var response struct {
		Prices map[string]float64 `json:"prices"`
	}
	if err := c.get(ctx, path, &response); err != nil {
		return nil, err
	}
	return response.Prices, nil
}

// Health checks whether the service is up.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed with status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		// Error bodies may still carry partial results (e.g. signatures
		// confirmed before a mid-batch failure), so decode before failing.
		if out != nil {
			json.Unmarshal(raw, out)
		}
		return parseErrorResponse(resp.StatusCode, raw)
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// parseErrorResponse attempts to parse an error response from the server.
func parseErrorResponse(statusCode int, body []byte) error {
	var errResp struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return fmt.Errorf("request failed with status %d: %s", statusCode, string(body))
	}
	return fmt.Errorf("request failed: %s", errResp.Error)
}
