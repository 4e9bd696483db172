// Package pricefeed fetches best-effort USD prices by mint. Prices feed
// display and allocation previews only; execution never depends on them.
package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/stackfolio/basketd/service/catalog"
)

// DefaultBaseURL is the public lite price endpoint.
const DefaultBaseURL = "https://lite-api.jup.ag/price/v3"

// Client implements basket.PriceFeed over the price HTTP API, with a static
// fallback table for listings the upstream feed does not cover (xStocks and
// pre-launch mints).
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	fallback   map[string]float64 // mint -> USD
}

// NewClient creates a price client. Nil httpClient/logger get the usual
// defaults; fallback may be nil.
func NewClient(baseURL string, httpClient *http.Client, fallback map[string]float64, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
		fallback:   fallback,
	}
}

// priceEntry is the per-mint payload of the price API.
type priceEntry struct {
	USDPrice float64 `json:"usdPrice"`
}

// Prices returns USD prices for the given mints. Mints the upstream feed
// does not know fall back to the static table; mints absent from both are
// simply missing from the result, never an error.
func (c *Client) Prices(ctx context.Context, mints []string) (map[string]float64, error) {
	out := make(map[string]float64, len(mints))
	if len(mints) == 0 {
		return out, nil
	}

	q := url.Values{}
	q.Set("ids", strings.Join(mints, ","))
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Degrade to fallbacks on transport errors; the feed is advisory.
		c.logger.Warn("price request failed, using fallbacks", "error", err)
		c.applyFallbacks(mints, out)
		return out, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		var entries map[string]priceEntry
		if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
			return nil, fmt.Errorf("failed to decode price response: %w", err)
		}
		for mint, e := range entries {
			if e.USDPrice > 0 {
				out[mint] = e.USDPrice
			}
		}
	} else {
		c.logger.Warn("price request rejected, using fallbacks", "status", resp.StatusCode)
	}

	c.applyFallbacks(mints, out)
	return out, nil
}

func (c *Client) applyFallbacks(mints []string, out map[string]float64) {
	for _, mint := range mints {
		if _, ok := out[mint]; ok {
			continue
		}
		if p, ok := c.fallback[mint]; ok {
			out[mint] = p
		}
	}
}

// fallbackByTicker holds temporary quotes for xStocks and majors while a
// real market-data integration is pending.
var fallbackByTicker = map[string]float64{
	"NVDA":  134.2,
	"AAPL":  192.44,
	"MSFT":  421.12,
	"AMZN":  186.12,
	"META":  488.55,
	"TSLA":  182.09,
	"GOOGL": 158.1,
	"BTC":   68000,
	"ETH":   3200,
	"SOL":   180,
}

// FallbackPrices builds the mint-keyed fallback table for a catalog.
func FallbackPrices(repo *catalog.Repository) map[string]float64 {
	out := make(map[string]float64)
	for _, a := range repo.Assets() {
		if p, ok := fallbackByTicker[a.Ticker]; ok {
			out[a.Mint] = p
		}
	}
	return out
}
