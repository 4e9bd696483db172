package catalog

// AssetCategory partitions the catalog into the product tabs the app exposes.
type AssetCategory string

const (
	CategoryStocks      AssetCategory = "stocks"
	CategoryCrypto      AssetCategory = "crypto"
	CategoryPreIPO      AssetCategory = "pre-ipo"
	CategoryIndex       AssetCategory = "index"
	CategoryCommodities AssetCategory = "commodities"
)

// Asset describes one tokenized asset tradable through the service.
// Catalog data is plain immutable configuration; all behavior lives in
// Repository.
type Asset struct {
	Symbol   string
	Name     string
	Mint     string
	Decimals int
	Ticker   string
	Category AssetCategory
	LogoURI  string
}

// USDC is the funding asset for every buy, swap, and recurring order.
var USDC = Asset{
	Symbol:   "USDC",
	Name:     "USD Coin",
	Mint:     "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
	Decimals: 6,
	Ticker:   "USDC",
	Category: CategoryCrypto,
}

// WrappedSOLMint is the mint for wrapped native SOL. Swaps into it need the
// unwrap flag set when building the transaction.
const WrappedSOLMint = "So11111111111111111111111111111111111111112"

var Stocks = []Asset{
	{Symbol: "NVDAx", Name: "NVIDIA Corporation", Mint: "Xsc9qvGR1efVDFGLrVsmkzv3qi45LTBjeUKSPmx9qEh", Decimals: 9, Ticker: "NVDA", Category: CategoryStocks},
	{Symbol: "AAPLx", Name: "Apple xStock", Mint: "XsbEhLAtcf6HdfpFZ5xEMdqW8nfAvcsP5bdudRLJzJp", Decimals: 9, Ticker: "AAPL", Category: CategoryStocks},
	{Symbol: "AMZNx", Name: "Amazon.com xStock", Mint: "Xs3eBt7uRfJX8QUs4suhyU8p2M6DoUDrJyWBa8LLZsg", Decimals: 9, Ticker: "AMZN", Category: CategoryStocks},
	{Symbol: "TSLAx", Name: "Tesla xStock", Mint: "XsDoVfqeBukxuZHWhdvWHBhgEHjGNst4MLodqsJHzoB", Decimals: 9, Ticker: "TSLA", Category: CategoryStocks},
	{Symbol: "GOOGLx", Name: "Alphabet xStock", Mint: "XsCPL9dNWBMvFtTmwcCA5v3xWPSMEBCszbQdiLLq6aN", Decimals: 9, Ticker: "GOOGL", Category: CategoryStocks},
	{Symbol: "METAx", Name: "Meta xStock", Mint: "Xsa62P5mvPszXL1krVUnU5ar38bBSVcWAB6fmPCo5Zu", Decimals: 9, Ticker: "META", Category: CategoryStocks},
	{Symbol: "MSFTx", Name: "Microsoft xStock", Mint: "XspzcW1PRtgf6Wj92HCiZdjzKCyFekVD8P5Ueh3dRMX", Decimals: 9, Ticker: "MSFT", Category: CategoryStocks},
	{Symbol: "COINx", Name: "Coinbase xStock", Mint: "Xs7ZdzSHLU9ftNJsii5fCeJhoRWSC32SQGzGQtePxNu", Decimals: 9, Ticker: "COIN", Category: CategoryStocks},
}

var Crypto = []Asset{
	{Symbol: "SOL", Name: "Solana", Mint: WrappedSOLMint, Decimals: 9, Ticker: "SOL", Category: CategoryCrypto},
	{Symbol: "BTC", Name: "Bitcoin", Mint: "3NZ9JMVBmGAqocybic2c7LQCJScmgsAZ6vQqTDzcqmJh", Decimals: 8, Ticker: "BTC", Category: CategoryCrypto},
	{Symbol: "ETH", Name: "Ethereum", Mint: "7vfCXTUXx5WJV5JADk17DUJ4ksgau7utNKj4b963voxs", Decimals: 8, Ticker: "ETH", Category: CategoryCrypto},
}

var PreIPO = []Asset{
	{Symbol: "xSPACEX", Name: "SpaceX", Mint: "PreANxuXjsy2pvisWWMNB6YaJNzr7681wJJr2rHsfTh", Decimals: 9, Ticker: "SPACEX", Category: CategoryPreIPO},
	{Symbol: "xOPENAI", Name: "OpenAI", Mint: "PreweJYECqtQwBtpxHL171nL2K6umo692gTm7Q3rpgF", Decimals: 9, Ticker: "OPENAI", Category: CategoryPreIPO},
}

// Index and commodity mints are placeholders until the tokens go live;
// baskets referencing them stay disabled.
var Indices = []Asset{
	{Symbol: "xSPY", Name: "S&P 500 ETF", Mint: "SPY500MintAddress111111111111111111111111111", Decimals: 9, Ticker: "SPY", Category: CategoryIndex},
	{Symbol: "xQQQ", Name: "Nasdaq 100 ETF", Mint: "QQQNasdaqMintAddress1111111111111111111111111", Decimals: 9, Ticker: "QQQ", Category: CategoryIndex},
	{Symbol: "xDIA", Name: "Dow Jones ETF", Mint: "DIADowJonesMintAddress11111111111111111111111", Decimals: 9, Ticker: "DIA", Category: CategoryIndex},
}

var Commodities = []Asset{
	{Symbol: "xGLD", Name: "Gold", Mint: "hWfiw4mcxT8rnNFkk6fsCQSxoxgZ9yVhB6tyeVcondo", Decimals: 9, Ticker: "GLD", Category: CategoryCommodities},
	{Symbol: "xSLV", Name: "Silver", Mint: "iy11ytbSGcUnrjE6Lfv78TFqxKyUESfku1FugS9ondo", Decimals: 9, Ticker: "SLV", Category: CategoryCommodities},
}

// AllAssets is the full tradable catalog, in display order.
func AllAssets() []Asset {
	out := make([]Asset, 0, len(Stocks)+len(Crypto)+len(PreIPO)+len(Indices)+len(Commodities))
	out = append(out, Stocks...)
	out = append(out, Crypto...)
	out = append(out, PreIPO...)
	out = append(out, Indices...)
	out = append(out, Commodities...)
	return out
}

// CategoryLabels maps categories to their display names.
var CategoryLabels = map[AssetCategory]string{
	CategoryStocks:      "US Stocks",
	CategoryCrypto:      "Crypto",
	CategoryPreIPO:      "Pre-IPO",
	CategoryIndex:       "Indices",
	CategoryCommodities: "Commodities",
}
