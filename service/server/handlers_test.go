package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackfolio/basketd/service/basket"
	"github.com/stackfolio/basketd/service/catalog"
	natspkg "github.com/stackfolio/basketd/service/nats"
)

const testWalletAddr = "4Nd1mBQtrMJVYVfKf2PJy9NZUZdTAsp7D4xWLs4gDB4T"

type fakeQuoter struct {
	fn func(ctx context.Context, inputMint, outputMint string, amount uint64, slippageBps int) (json.RawMessage, error)
}

func (f *fakeQuoter) Quote(ctx context.Context, inputMint, outputMint string, amount uint64, slippageBps int) (json.RawMessage, error) {
	return f.fn(ctx, inputMint, outputMint, amount, slippageBps)
}

type fakeSwapBuilder struct{}

func (f *fakeSwapBuilder) BuildSwap(ctx context.Context, quote json.RawMessage, userAddress string, wrapAndUnwrapSOL bool) ([]byte, error) {
	return []byte("unsigned-tx"), nil
}

type fakeSubmitter struct {
	n int
}

func (f *fakeSubmitter) Submit(ctx context.Context, signedTx []byte) (string, error) {
	f.n++
	return fmt.Sprintf("sig-%d", f.n), nil
}

func (f *fakeSubmitter) Confirm(ctx context.Context, signature string) error { return nil }

type fakeRecurring struct{}

func (f *fakeRecurring) CreateOrder(ctx context.Context, params basket.CreateOrderParams) ([]byte, string, error) {
	return []byte("unsigned-order"), "req-1", nil
}

func (f *fakeRecurring) ExecuteOrder(ctx context.Context, signedTx []byte, requestID string) (basket.ExecuteOrderResult, error) {
	return basket.ExecuteOrderResult{Status: "open", ConfirmationID: "order-sig-1"}, nil
}

type fakeWallet struct{}

func (f *fakeWallet) Address() string  { return testWalletAddr }
func (f *fakeWallet) CanSignAll() bool { return true }
func (f *fakeWallet) CanSign() bool    { return true }
func (f *fakeWallet) SignAll(ctx context.Context, txs [][]byte) ([][]byte, error) {
	return txs, nil
}
func (f *fakeWallet) Sign(ctx context.Context, tx []byte) ([]byte, error) { return tx, nil }

type fakePriceFeed struct {
	prices map[string]float64
	err    error
}

func (f *fakePriceFeed) Prices(ctx context.Context, mints []string) (map[string]float64, error) {
	return f.prices, f.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestSession(q *fakeQuoter) *basket.Session {
	return basket.NewSession(basket.Deps{
		Quoter:    q,
		Swaps:     &fakeSwapBuilder{},
		Ledger:    &fakeSubmitter{},
		Recurring: &fakeRecurring{},
		Wallet:    &fakeWallet{},
		Assets:    catalog.NewRepository(),
		Limits:    basket.DefaultLimits(),
		Logger:    testLogger(),
	})
}

func okQuoter() *fakeQuoter {
	return &fakeQuoter{fn: func(ctx context.Context, inputMint, outputMint string, amount uint64, slippageBps int) (json.RawMessage, error) {
		return json.RawMessage(`{"outAmount":"1000"}`), nil
	}}
}

func TestListBaskets(t *testing.T) {
	repo := catalog.NewRepository()
	handler := handleListBaskets(repo, testLogger())

	req := httptest.NewRequest("GET", "/api/v1/baskets", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Baskets []basketResponse `json:"baskets"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Baskets, len(repo.Baskets()))

	var mag7 *basketResponse
	for i := range resp.Baskets {
		if resp.Baskets[i].ID == "mag7" {
			mag7 = &resp.Baskets[i]
		}
	}
	require.NotNil(t, mag7, "expected mag7 basket in listing")
	assert.Len(t, mag7.Items, 7)
	assert.False(t, mag7.Disabled)

	total := 0.0
	for _, it := range mag7.Items {
		total += it.WeightPct
	}
	assert.InDelta(t, 100.0, total, 0.01)
}

func TestGetBasket(t *testing.T) {
	repo := catalog.NewRepository()
	handler := handleGetBasket(repo, testLogger())

	t.Run("found", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/baskets/mag7", nil)
		req.SetPathValue("id", "mag7")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp basketResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "mag7", resp.ID)
	})

	t.Run("not found", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/baskets/nope", nil)
		req.SetPathValue("id", "nope")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestQuoteBasket(t *testing.T) {
	repo := catalog.NewRepository()

	t.Run("success", func(t *testing.T) {
		session := newTestSession(okQuoter())
		handler := handleQuoteBasket(session, repo, testLogger())

		req := httptest.NewRequest("POST", "/api/v1/baskets/mag7/quote", strings.NewReader(`{"total_usd": 700}`))
		req.SetPathValue("id", "mag7")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp struct {
			BasketID string            `json:"basket_id"`
			Quotes   []basket.QuoteRow `json:"quotes"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "mag7", resp.BasketID)
		assert.Len(t, resp.Quotes, 7)
	})

	t.Run("quote failure fails the whole batch", func(t *testing.T) {
		session := newTestSession(&fakeQuoter{fn: func(ctx context.Context, inputMint, outputMint string, amount uint64, slippageBps int) (json.RawMessage, error) {
			return nil, fmt.Errorf("upstream unavailable")
		}})
		handler := handleQuoteBasket(session, repo, testLogger())

		req := httptest.NewRequest("POST", "/api/v1/baskets/mag7/quote", strings.NewReader(`{"total_usd": 700}`))
		req.SetPathValue("id", "mag7")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Contains(t, rec.Body.String(), "upstream unavailable")
	})

	t.Run("unknown basket", func(t *testing.T) {
		handler := handleQuoteBasket(newTestSession(okQuoter()), repo, testLogger())

		req := httptest.NewRequest("POST", "/api/v1/baskets/nope/quote", strings.NewReader(`{"total_usd": 700}`))
		req.SetPathValue("id", "nope")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("pathological input", func(t *testing.T) {
		handler := handleQuoteBasket(newTestSession(okQuoter()), repo, testLogger())

		tests := []struct {
			name           string
			body           string
			expectedStatus int
			checkError     func(t *testing.T, body string)
		}{
			{
				name:           "malformed JSON",
				body:           `{"total_usd":`,
				expectedStatus: http.StatusBadRequest,
				checkError: func(t *testing.T, body string) {
					assert.Contains(t, body, "invalid request body")
				},
			},
			{
				name:           "zero amount",
				body:           `{"total_usd": 0}`,
				expectedStatus: http.StatusBadRequest,
				checkError: func(t *testing.T, body string) {
					assert.Contains(t, body, "total_usd must be positive")
				},
			},
			{
				name:           "negative amount",
				body:           `{"total_usd": -50}`,
				expectedStatus: http.StatusBadRequest,
				checkError: func(t *testing.T, body string) {
					assert.Contains(t, body, "total_usd must be positive")
				},
			},
			{
				name:           "extremely large request body",
				body:           `{"total_usd": 1, "junk":"` + strings.Repeat("A", 2*1024*1024) + `"}`,
				expectedStatus: http.StatusBadRequest,
				checkError: func(t *testing.T, body string) {
					assert.Contains(t, body, "request body too large")
				},
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				req := httptest.NewRequest("POST", "/api/v1/baskets/mag7/quote", strings.NewReader(tt.body))
				req.SetPathValue("id", "mag7")
				rec := httptest.NewRecorder()
				handler.ServeHTTP(rec, req)

				assert.Equal(t, tt.expectedStatus, rec.Code)
				tt.checkError(t, rec.Body.String())
			})
		}
	})
}

func TestBuyBasket(t *testing.T) {
	repo := catalog.NewRepository()

	t.Run("requires a prior quote", func(t *testing.T) {
		session := newTestSession(okQuoter())
		handler := handleBuyBasket(session, repo, testLogger())

		req := httptest.NewRequest("POST", "/api/v1/baskets/mag7/buy", strings.NewReader(`{"total_usd": 700}`))
		req.SetPathValue("id", "mag7")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusConflict, rec.Code)
		assert.Contains(t, rec.Body.String(), "Preview quotes first.")
	})

	t.Run("quote then buy", func(t *testing.T) {
		session := newTestSession(okQuoter())
		mag7, ok := repo.Basket("mag7")
		require.True(t, ok)
		_, err := session.FetchQuotes(context.Background(), mag7, 700)
		require.NoError(t, err)

		handler := handleBuyBasket(session, repo, testLogger())
		req := httptest.NewRequest("POST", "/api/v1/baskets/mag7/buy", strings.NewReader(`{"total_usd": 700}`))
		req.SetPathValue("id", "mag7")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp struct {
			Signatures []string `json:"signatures"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Len(t, resp.Signatures, 7)
	})

	t.Run("quote for a different amount does not satisfy buy", func(t *testing.T) {
		session := newTestSession(okQuoter())
		mag7, ok := repo.Basket("mag7")
		require.True(t, ok)
		_, err := session.FetchQuotes(context.Background(), mag7, 100)
		require.NoError(t, err)

		handler := handleBuyBasket(session, repo, testLogger())
		req := httptest.NewRequest("POST", "/api/v1/baskets/mag7/buy", strings.NewReader(`{"total_usd": 700}`))
		req.SetPathValue("id", "mag7")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusConflict, rec.Code)
		assert.Contains(t, rec.Body.String(), "Preview quotes first.")
	})

	t.Run("publishes run events", func(t *testing.T) {
		sink := natspkg.NewMockPublisher()
		session := basket.NewSession(basket.Deps{
			Quoter:    okQuoter(),
			Swaps:     &fakeSwapBuilder{},
			Ledger:    &fakeSubmitter{},
			Recurring: &fakeRecurring{},
			Wallet:    &fakeWallet{},
			Assets:    catalog.NewRepository(),
			Limits:    basket.DefaultLimits(),
			Logger:    testLogger(),
			Events:    sink,
		})
		mag7, ok := repo.Basket("mag7")
		require.True(t, ok)
		_, err := session.FetchQuotes(context.Background(), mag7, 700)
		require.NoError(t, err)

		handler := handleBuyBasket(session, repo, testLogger())
		req := httptest.NewRequest("POST", "/api/v1/baskets/mag7/buy", strings.NewReader(`{"total_usd": 700}`))
		req.SetPathValue("id", "mag7")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		events := sink.GetPublishedEventsForWallet(testWalletAddr)
		require.NotEmpty(t, events)
		last := events[len(events)-1]
		assert.Equal(t, 7, last.Completed)
		assert.Equal(t, 7, last.Total)
	})

	t.Run("disabled basket", func(t *testing.T) {
		session := newTestSession(okQuoter())
		handler := handleBuyBasket(session, repo, testLogger())

		req := httptest.NewRequest("POST", "/api/v1/baskets/balanced-growth/buy", strings.NewReader(`{"total_usd": 700}`))
		req.SetPathValue("id", "balanced-growth")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, rec.Body.String(), "unavailable")
	})
}

func TestStartBasketDCA(t *testing.T) {
	repo := catalog.NewRepository()

	t.Run("validation failure", func(t *testing.T) {
		session := newTestSession(okQuoter())
		handler := handleStartBasketDCA(session, repo, testLogger())

		req := httptest.NewRequest("POST", "/api/v1/baskets/mag7/dca",
			strings.NewReader(`{"total_usd": 700, "orders": 1, "interval_seconds": 86400}`))
		req.SetPathValue("id", "mag7")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "DCA needs at least 2 orders.")
	})

	t.Run("success with default orders", func(t *testing.T) {
		session := newTestSession(okQuoter())
		handler := handleStartBasketDCA(session, repo, testLogger())

		req := httptest.NewRequest("POST", "/api/v1/baskets/mag7/dca",
			strings.NewReader(`{"total_usd": 700, "interval_seconds": 604800}`))
		req.SetPathValue("id", "mag7")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp struct {
			Messages []string `json:"messages"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Messages, 7)
		assert.Contains(t, resp.Messages[0], "12 orders")
	})
}

func TestCreateRecurringBuy(t *testing.T) {
	repo := catalog.NewRepository()
	sol, ok := repo.BySymbol("SOL")
	require.True(t, ok)

	t.Run("per-order minimum", func(t *testing.T) {
		session := newTestSession(okQuoter())
		handler := handleCreateRecurringBuy(session, repo, testLogger())

		body := fmt.Sprintf(`{"mint": %q, "per_order_usd": 10, "orders": 4}`, sol.Mint)
		req := httptest.NewRequest("POST", "/api/v1/recurring-buys", strings.NewReader(body))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "Minimum is $50 per order.")
	})

	t.Run("rejects funding asset as output", func(t *testing.T) {
		session := newTestSession(okQuoter())
		handler := handleCreateRecurringBuy(session, repo, testLogger())

		body := fmt.Sprintf(`{"mint": %q, "per_order_usd": 50, "orders": 4}`, catalog.USDC.Mint)
		req := httptest.NewRequest("POST", "/api/v1/recurring-buys", strings.NewReader(body))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "other than USDC")
	})

	t.Run("success by symbol", func(t *testing.T) {
		session := newTestSession(okQuoter())
		handler := handleCreateRecurringBuy(session, repo, testLogger())

		body := `{"symbol": "SOL", "per_order_usd": 50, "orders": 4, "interval_seconds": 86400}`
		req := httptest.NewRequest("POST", "/api/v1/recurring-buys", strings.NewReader(body))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp struct {
			Mint           string `json:"mint"`
			Status         string `json:"status"`
			ConfirmationID string `json:"confirmation_id"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, sol.Mint, resp.Mint)
		assert.Equal(t, "open", resp.Status)
		assert.Equal(t, "order-sig-1", resp.ConfirmationID)
	})

	t.Run("unknown symbol", func(t *testing.T) {
		session := newTestSession(okQuoter())
		handler := handleCreateRecurringBuy(session, repo, testLogger())

		req := httptest.NewRequest("POST", "/api/v1/recurring-buys",
			strings.NewReader(`{"symbol": "NOPE", "per_order_usd": 50, "orders": 4}`))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "unknown symbol")
	})
}

func TestSwapHandler(t *testing.T) {
	repo := catalog.NewRepository()
	sol, ok := repo.BySymbol("SOL")
	require.True(t, ok)

	t.Run("success", func(t *testing.T) {
		session := newTestSession(okQuoter())
		handler := handleSwap(session, testLogger())

		body := fmt.Sprintf(`{"input_mint": %q, "output_mint": %q, "amount": 1000000}`, catalog.USDC.Mint, sol.Mint)
		req := httptest.NewRequest("POST", "/api/v1/swaps", strings.NewReader(body))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "sig-1")
	})

	t.Run("invalid mint", func(t *testing.T) {
		session := newTestSession(okQuoter())
		handler := handleSwap(session, testLogger())

		req := httptest.NewRequest("POST", "/api/v1/swaps",
			strings.NewReader(`{"input_mint": "not base58 0OIl", "output_mint": "x", "amount": 1}`))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "input_mint")
	})

	t.Run("zero amount", func(t *testing.T) {
		session := newTestSession(okQuoter())
		handler := handleSwap(session, testLogger())

		body := fmt.Sprintf(`{"input_mint": %q, "output_mint": %q, "amount": 0}`, catalog.USDC.Mint, sol.Mint)
		req := httptest.NewRequest("POST", "/api/v1/swaps", strings.NewReader(body))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "amount must be positive")
	})
}

func TestGetPrices(t *testing.T) {
	repo := catalog.NewRepository()
	sol, ok := repo.BySymbol("SOL")
	require.True(t, ok)

	t.Run("explicit mints", func(t *testing.T) {
		feed := &fakePriceFeed{prices: map[string]float64{sol.Mint: 180}}
		handler := handleGetPrices(feed, repo, testLogger())

		req := httptest.NewRequest("GET", "/api/v1/prices?mints="+sol.Mint, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp struct {
			Prices map[string]float64 `json:"prices"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 180.0, resp.Prices[sol.Mint])
	})

	t.Run("feed failure", func(t *testing.T) {
		feed := &fakePriceFeed{err: fmt.Errorf("timeout")}
		handler := handleGetPrices(feed, repo, testLogger())

		req := httptest.NewRequest("GET", "/api/v1/prices", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadGateway, rec.Code)
	})

	t.Run("invalid mint", func(t *testing.T) {
		feed := &fakePriceFeed{}
		handler := handleGetPrices(feed, repo, testLogger())

		req := httptest.NewRequest("GET", "/api/v1/prices?mints=%3Bdrop", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestListRuns_InvalidParams(t *testing.T) {
	logger := testLogger()
	handler := handleListRuns(nil, logger) // params are rejected before the store is touched

	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"bad wallet", "?wallet=bad%3Bwallet", "invalid"},
		{"bad limit", "?limit=abc", "invalid limit"},
		{"negative limit", "?limit=-1", "invalid limit"},
		{"bad offset", "?offset=x", "invalid offset"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/v1/runs"+tt.query, nil)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.want)
		})
	}
}

func TestValidateAddress(t *testing.T) {
	tests := []struct {
		name    string
		address string
		wantErr string
	}{
		{"valid", testWalletAddr, ""},
		{"empty", "", "address is required"},
		{"too long", strings.Repeat("A", 200), "address too long"},
		{"control characters", "wallet\x00123", "control characters"},
		{"sql injection", "wallet'; DROP TABLE runs; --", "suspicious pattern"},
		{"invalid base58", "0OIl", "base58"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateAddress(tt.address)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
