package catalog

// BasketRisk is the displayed risk tier for a basket.
type BasketRisk string

const (
	RiskLow    BasketRisk = "low"
	RiskMedium BasketRisk = "medium"
	RiskHigh   BasketRisk = "high"
)

// BasketItem is one weighted allocation inside a basket. Weights are
// positive reals relative to the basket's weight sum; item order is
// display-only.
type BasketItem struct {
	Mint   string
	Weight float64
}

// Basket is a named collection of weighted asset allocations purchased or
// scheduled as one user action. Static configuration, immutable at runtime.
type Basket struct {
	ID             string
	Name           string
	Description    string
	Risk           BasketRisk
	Tags           []string
	Featured       bool
	Disabled       bool
	DisabledReason string
	Items          []BasketItem
}

func mintBySymbol(assets []Asset) map[string]string {
	m := make(map[string]string, len(assets))
	for _, a := range assets {
		m[a.Symbol] = a.Mint
	}
	return m
}

var (
	stockMint     = mintBySymbol(Stocks)
	cryptoMint    = mintBySymbol(Crypto)
	indexMint     = mintBySymbol(Indices)
	commodityMint = mintBySymbol(Commodities)
	preIPOMint    = mintBySymbol(PreIPO)
)

// Baskets is the curated basket catalog, in display order.
var Baskets = []Basket{
	{
		ID:          "mag7",
		Name:        "MAG 7",
		Description: "Equal-weight mega-cap tech leaders",
		Risk:        RiskMedium,
		Featured:    true,
		Tags:        []string{"Stocks", "Equal-weight"},
		Items: []BasketItem{
			{Mint: stockMint["NVDAx"], Weight: 1},
			{Mint: stockMint["AAPLx"], Weight: 1},
			{Mint: stockMint["MSFTx"], Weight: 1},
			{Mint: stockMint["AMZNx"], Weight: 1},
			{Mint: stockMint["GOOGLx"], Weight: 1},
			{Mint: stockMint["METAx"], Weight: 1},
			{Mint: stockMint["TSLAx"], Weight: 1},
		},
	},
	{
		ID:          "ai-chips",
		Name:        "AI + Chips",
		Description: "AI leaders + infra exposure",
		Risk:        RiskHigh,
		Featured:    true,
		Tags:        []string{"Stocks", "AI"},
		Items: []BasketItem{
			{Mint: stockMint["NVDAx"], Weight: 45},
			{Mint: stockMint["MSFTx"], Weight: 35},
			{Mint: cryptoMint["SOL"], Weight: 20},
		},
	},
	{
		ID:          "crypto-blue",
		Name:        "Crypto Blue Chips",
		Description: "BTC + ETH + SOL (core majors)",
		Risk:        RiskHigh,
		Featured:    true,
		Tags:        []string{"Crypto", "Core"},
		Items: []BasketItem{
			{Mint: cryptoMint["BTC"], Weight: 40},
			{Mint: cryptoMint["ETH"], Weight: 35},
			{Mint: cryptoMint["SOL"], Weight: 25},
		},
	},
	{
		ID:             "balanced-growth",
		Name:           "Balanced Growth",
		Description:    "Stocks index + crypto + gold hedge",
		Risk:           RiskMedium,
		Featured:       true,
		Tags:           []string{"Mixed", "Hedge"},
		Disabled:       true,
		DisabledReason: "Index and commodity tokens aren't live yet.",
		Items: []BasketItem{
			{Mint: indexMint["xSPY"], Weight: 50},
			{Mint: cryptoMint["BTC"], Weight: 30},
			{Mint: commodityMint["xGLD"], Weight: 20},
		},
	},
	{
		ID:          "coinbase-tech",
		Name:        "Tech + Crypto Proxy",
		Description: "Tech leaders + COIN + SOL",
		Risk:        RiskHigh,
		Tags:        []string{"Stocks", "Mixed"},
		Items: []BasketItem{
			{Mint: stockMint["NVDAx"], Weight: 30},
			{Mint: stockMint["MSFTx"], Weight: 20},
			{Mint: stockMint["METAx"], Weight: 20},
			{Mint: stockMint["COINx"], Weight: 15},
			{Mint: cryptoMint["SOL"], Weight: 15},
		},
	},
	{
		ID:             "pre-ipo-future",
		Name:           "Pre-IPO Future",
		Description:    "SpaceX + Stripe + OpenAI (coming soon)",
		Risk:           RiskHigh,
		Tags:           []string{"Pre-IPO"},
		Disabled:       true,
		DisabledReason: "Pre-IPO tokens aren't live yet.",
		Items: []BasketItem{
			{Mint: preIPOMint["xSPACEX"], Weight: 1},
			{Mint: preIPOMint["xOPENAI"], Weight: 1},
		},
	},
}
