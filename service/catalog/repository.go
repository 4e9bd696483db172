package catalog

// Repository provides read-only lookups over the static asset and basket
// catalogs. Components take a *Repository rather than reaching into the
// package-level data so tests can run against a trimmed catalog.
type Repository struct {
	assets   []Asset
	byMint   map[string]Asset
	bySymbol map[string]Asset
	baskets  []Basket
	basketID map[string]Basket
}

// NewRepository builds a repository over the default catalogs.
func NewRepository() *Repository {
	return NewRepositoryWith(AllAssets(), Baskets)
}

// NewRepositoryWith builds a repository over explicit asset and basket sets.
func NewRepositoryWith(assets []Asset, baskets []Basket) *Repository {
	r := &Repository{
		assets:   assets,
		byMint:   make(map[string]Asset, len(assets)+1),
		bySymbol: make(map[string]Asset, len(assets)+1),
		baskets:  baskets,
		basketID: make(map[string]Basket, len(baskets)),
	}
	for _, a := range assets {
		r.byMint[a.Mint] = a
		r.bySymbol[a.Symbol] = a
	}
	// USDC is always resolvable even though it is not a tradable listing.
	r.byMint[USDC.Mint] = USDC
	r.bySymbol[USDC.Symbol] = USDC
	for _, b := range baskets {
		r.basketID[b.ID] = b
	}
	return r
}

// Assets returns the full catalog in display order.
func (r *Repository) Assets() []Asset { return r.assets }

// Baskets returns the basket catalog in display order.
func (r *Repository) Baskets() []Basket { return r.baskets }

// ByMint looks up an asset by its mint address.
func (r *Repository) ByMint(mint string) (Asset, bool) {
	a, ok := r.byMint[mint]
	return a, ok
}

// BySymbol looks up an asset by its display symbol.
func (r *Repository) BySymbol(symbol string) (Asset, bool) {
	a, ok := r.bySymbol[symbol]
	return a, ok
}

// Basket looks up a basket by ID.
func (r *Repository) Basket(id string) (Basket, bool) {
	b, ok := r.basketID[id]
	return b, ok
}

// SymbolForMint returns the asset's display symbol, falling back to a
// truncated mint when the asset is unknown.
func (r *Repository) SymbolForMint(mint string) string {
	if a, ok := r.byMint[mint]; ok {
		return a.Symbol
	}
	if len(mint) > 4 {
		return mint[:4] + "…"
	}
	return mint
}

// DisplayItem is a basket item joined with its asset metadata and its
// weight as a percentage of the basket.
type DisplayItem struct {
	Mint      string
	Weight    float64
	WeightPct float64
	Symbol    string
	Name      string
	Ticker    string
	Category  AssetCategory
	Decimals  int
}

// DisplayItems expands a basket's items with asset metadata for rendering.
// Unknown mints fall back to a truncated-mint symbol so a stale basket
// definition degrades instead of erroring.
func (r *Repository) DisplayItems(b Basket) []DisplayItem {
	sum := 0.0
	for _, it := range b.Items {
		sum += it.Weight
	}
	if sum == 0 {
		sum = 1
	}

	out := make([]DisplayItem, 0, len(b.Items))
	for _, it := range b.Items {
		d := DisplayItem{
			Mint:      it.Mint,
			Weight:    it.Weight,
			WeightPct: it.Weight / sum * 100,
			Symbol:    r.SymbolForMint(it.Mint),
			Name:      "Unknown asset",
			Decimals:  6,
		}
		if a, ok := r.byMint[it.Mint]; ok {
			d.Symbol = a.Symbol
			d.Name = a.Name
			d.Ticker = a.Ticker
			d.Category = a.Category
			d.Decimals = a.Decimals
		}
		out = append(out, d)
	}
	return out
}
