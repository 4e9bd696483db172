// Package jupiter implements the external swap collaborators over the
// Jupiter lite HTTP API: quoting, swap-transaction building, and recurring
// (DCA) order creation/execution.
package jupiter

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// DefaultQuoteBaseURL is the public lite endpoint for quote/swap.
const DefaultQuoteBaseURL = "https://lite-api.jup.ag/swap/v1"

// Client calls the quote and swap-build endpoints. It implements
// basket.Quoter and basket.SwapBuilder.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a quote/swap client. A nil httpClient gets a 30s
// timeout default; a nil logger discards.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultQuoteBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
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

// Quote fetches an execution quote for one swap. The response body is
// returned opaque; it is handed back verbatim when building the swap, and
// its expiry is enforced server-side.
func (c *Client) Quote(ctx context.Context, inputMint, outputMint string, amount uint64, slippageBps int) (json.RawMessage, error) {
	q := url.Values{}
	q.Set("inputMint", inputMint)
	q.Set("outputMint", outputMint)
	q.Set("amount", strconv.FormatUint(amount, 10))
	q.Set("slippageBps", strconv.Itoa(slippageBps))

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/quote?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("quote request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read quote response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apiError("quote", resp.StatusCode, body)
	}

	c.logger.Debug("quote fetched",
		"input_mint", inputMint,
		"output_mint", outputMint,
		"amount", amount,
		"slippage_bps", slippageBps,
	)
	return json.RawMessage(body), nil
}

// swapRequest is the build-swap payload. The quote goes back verbatim as
// quoteResponse.
type swapRequest struct {
	QuoteResponse           json.RawMessage `json:"quoteResponse"`
	UserPublicKey           string          `json:"userPublicKey"`
	WrapAndUnwrapSol        bool            `json:"wrapAndUnwrapSol"`
	DynamicComputeUnitLimit bool            `json:"dynamicComputeUnitLimit"`
}

type swapResponse struct {
	SwapTransaction string `json:"swapTransaction"`
}

// BuildSwap asks the service to build an unsigned transaction for a quote.
// Returns the raw transaction bytes ready for signing.
func (c *Client) BuildSwap(ctx context.Context, quote json.RawMessage, userAddress string, wrapAndUnwrapSOL bool) ([]byte, error) {
	payload, err := json.Marshal(swapRequest{
		QuoteResponse:           quote,
		UserPublicKey:           userAddress,
		WrapAndUnwrapSol:        wrapAndUnwrapSOL,
		DynamicComputeUnitLimit: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal swap request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/swap", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("swap request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read swap response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apiError("swap", resp.StatusCode, body)
	}

	var sr swapResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, fmt.Errorf("failed to decode swap response: %w", err)
	}
	if sr.SwapTransaction == "" {
		return nil, fmt.Errorf("swap build failed (missing swapTransaction)")
	}

	raw, err := base64.StdEncoding.DecodeString(sr.SwapTransaction)
	if err != nil {
		return nil, fmt.Errorf("failed to decode swap transaction: %w", err)
	}
	return raw, nil
}

// apiError surfaces the response body when the API reports a failure; bodies
// are short JSON error messages.
func apiError(op string, status int, body []byte) error {
	msg := string(body)
	if msg == "" {
		msg = http.StatusText(status)
	}
	return fmt.Errorf("%s failed (%d): %s", op, status, msg)
}
