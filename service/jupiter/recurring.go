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
	"time"

	"github.com/stackfolio/basketd/service/basket"
)

// DefaultRecurringBaseURL is the public lite endpoint for recurring orders.
const DefaultRecurringBaseURL = "https://lite-api.jup.ag/recurring/v1"

// RecurringClient calls the recurring-order endpoints. It implements
// basket.RecurringService.
type RecurringClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewRecurringClient creates a recurring-order client with the same nil
// defaults as NewClient.
func NewRecurringClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *RecurringClient {
	if baseURL == "" {
		baseURL = DefaultRecurringBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &RecurringClient{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// createOrderRequest is the createOrder payload. Time-based orders carry
// their schedule under params.time.
type createOrderRequest struct {
	User       string `json:"user"`
	InputMint  string `json:"inputMint"`
	OutputMint string `json:"outputMint"`
	Params     struct {
		Time timeParams `json:"time"`
	} `json:"params"`
}

type timeParams struct {
	InAmount       uint64   `json:"inAmount"`
	NumberOfOrders int      `json:"numberOfOrders"`
	Interval       int64    `json:"interval"`
	MinPrice       *float64 `json:"minPrice"`
	MaxPrice       *float64 `json:"maxPrice"`
	StartAt        *int64   `json:"startAt"`
}

type createOrderResponse struct {
	Transaction string `json:"transaction"`
	RequestID   string `json:"requestId"`
}

// CreateOrder asks the service to build an unsigned recurring-order
// transaction. Returns the raw transaction bytes and the request ID that
// correlates the later ExecuteOrder call.
func (c *RecurringClient) CreateOrder(ctx context.Context, params basket.CreateOrderParams) ([]byte, string, error) {
	reqBody := createOrderRequest{
		User:       params.User,
		InputMint:  params.InputMint,
		OutputMint: params.OutputMint,
	}
	reqBody.Params.Time = timeParams{
		InAmount:       params.InAmount,
		NumberOfOrders: params.NumberOfOrders,
		Interval:       params.IntervalSeconds,
		MinPrice:       params.MinPrice,
		MaxPrice:       params.MaxPrice,
		StartAt:        params.StartAt,
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, "", fmt.Errorf("failed to marshal createOrder request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/createOrder", bytes.NewReader(payload))
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("createOrder request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read createOrder response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, "", apiError("createOrder", resp.StatusCode, body)
	}

	var cr createOrderResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return nil, "", fmt.Errorf("failed to decode createOrder response: %w", err)
	}
	if cr.Transaction == "" || cr.RequestID == "" {
		return nil, "", fmt.Errorf("invalid createOrder response: missing transaction/requestId")
	}

	raw, err := base64.StdEncoding.DecodeString(cr.Transaction)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode order transaction: %w", err)
	}

	c.logger.Debug("recurring order created",
		"output_mint", params.OutputMint,
		"orders", params.NumberOfOrders,
		"interval_seconds", params.IntervalSeconds,
		"request_id", cr.RequestID,
	)
	return raw, cr.RequestID, nil
}

type executeRequest struct {
	SignedTransaction string `json:"signedTransaction"`
	RequestID         string `json:"requestId"`
}

type executeResponse struct {
	Status    string `json:"status"`
	Signature string `json:"signature"`
}

// ExecuteOrder submits the signed order transaction; the service handles
// ledger submission itself.
func (c *RecurringClient) ExecuteOrder(ctx context.Context, signedTx []byte, requestID string) (basket.ExecuteOrderResult, error) {
	payload, err := json.Marshal(executeRequest{
		SignedTransaction: base64.StdEncoding.EncodeToString(signedTx),
		RequestID:         requestID,
	})
	if err != nil {
		return basket.ExecuteOrderResult{}, fmt.Errorf("failed to marshal execute request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/execute", bytes.NewReader(payload))
	if err != nil {
		return basket.ExecuteOrderResult{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return basket.ExecuteOrderResult{}, fmt.Errorf("execute request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return basket.ExecuteOrderResult{}, fmt.Errorf("failed to read execute response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return basket.ExecuteOrderResult{}, apiError("execute", resp.StatusCode, body)
	}

	var er executeResponse
	if err := json.Unmarshal(body, &er); err != nil {
		return basket.ExecuteOrderResult{}, fmt.Errorf("failed to decode execute response: %w", err)
	}

	c.logger.Debug("recurring order executed", "request_id", requestID, "status", er.Status)
	return basket.ExecuteOrderResult{Status: er.Status, ConfirmationID: er.Signature}, nil
}
