package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepositoryLookups(t *testing.T) {
	r := NewRepository()

	a, ok := r.ByMint("Xsc9qvGR1efVDFGLrVsmkzv3qi45LTBjeUKSPmx9qEh")
	require.True(t, ok)
	assert.Equal(t, "NVDAx", a.Symbol)

	a, ok = r.BySymbol("BTC")
	require.True(t, ok)
	assert.Equal(t, CategoryCrypto, a.Category)

	_, ok = r.ByMint("unknown-mint")
	assert.False(t, ok)
	_, ok = r.BySymbol("UNKNOWN")
	assert.False(t, ok)
}

func TestRepositoryResolvesUSDC(t *testing.T) {
	// USDC is not a tradable listing but must always resolve, since every
	// flow quotes against it.
	r := NewRepository()

	a, ok := r.ByMint(USDC.Mint)
	require.True(t, ok)
	assert.Equal(t, "USDC", a.Symbol)
	assert.Equal(t, 6, a.Decimals)

	a, ok = r.BySymbol("USDC")
	require.True(t, ok)
	assert.Equal(t, USDC.Mint, a.Mint)
}

func TestSymbolForMint_Fallback(t *testing.T) {
	r := NewRepository()

	assert.Equal(t, "SOL", r.SymbolForMint(WrappedSOLMint))
	// Unknown mints degrade to an ellipsized prefix, not an error.
	assert.Equal(t, "Zq9x…", r.SymbolForMint("Zq9xUnknownMintAddress"))
	assert.Equal(t, "ab", r.SymbolForMint("ab"))
}

func TestBasketCatalog(t *testing.T) {
	r := NewRepository()

	b, ok := r.Basket("mag7")
	require.True(t, ok)
	assert.Len(t, b.Items, 7)
	assert.False(t, b.Disabled)

	// Every basket item must reference a resolvable asset so execution can
	// display real symbols.
	for _, basket := range r.Baskets() {
		for _, item := range basket.Items {
			assert.NotEmpty(t, item.Mint, "basket %s has an empty mint", basket.ID)
			assert.Positive(t, item.Weight, "basket %s has a non-positive weight", basket.ID)
			_, ok := r.ByMint(item.Mint)
			assert.True(t, ok, "basket %s references unknown mint %s", basket.ID, item.Mint)
		}
	}

	// Placeholder-backed baskets ship disabled with a reason.
	for _, id := range []string{"balanced-growth", "pre-ipo-future"} {
		b, ok := r.Basket(id)
		require.True(t, ok)
		assert.True(t, b.Disabled)
		assert.NotEmpty(t, b.DisabledReason)
	}
}

func TestDisplayItems(t *testing.T) {
	r := NewRepository()
	b, ok := r.Basket("mag7")
	require.True(t, ok)

	items := r.DisplayItems(b)
	require.Len(t, items, 7)

	sum := 0.0
	for _, it := range items {
		sum += it.WeightPct
		assert.NotEmpty(t, it.Symbol)
		assert.NotEqual(t, "Unknown asset", it.Name)
	}
	assert.InDelta(t, 100.0, sum, 1e-9)
}

func TestDisplayItems_UnknownMint(t *testing.T) {
	r := NewRepository()
	b := Basket{
		ID: "custom",
		Items: []BasketItem{
			{Mint: "ZzUnknownMintAddress111111111111111111111", Weight: 1},
		},
	}

	items := r.DisplayItems(b)
	require.Len(t, items, 1)
	assert.Equal(t, "Unknown asset", items[0].Name)
	// Same ellipsized fallback as SymbolForMint.
	assert.Equal(t, "ZzUn…", items[0].Symbol)
	assert.Equal(t, 6, items[0].Decimals)
	assert.InDelta(t, 100.0, items[0].WeightPct, 1e-9)
}

func TestAllAssets_UniqueMints(t *testing.T) {
	seen := make(map[string]string)
	for _, a := range AllAssets() {
		if prev, dup := seen[a.Mint]; dup {
			t.Errorf("mint %s shared by %s and %s", a.Mint, prev, a.Symbol)
		}
		seen[a.Mint] = a.Symbol
	}
}
