package basket

import (
	"context"
	"encoding/json"
	"time"
)

// Mode selects how a basket purchase is executed.
type Mode string

const (
	// ModeOnce executes every allocation immediately as individual swaps,
	// submitted sequentially after one batch signature.
	ModeOnce Mode = "once"
	// ModeDCA schedules each allocation as a series of future periodic
	// orders via the recurring-order service.
	ModeDCA Mode = "dca"
)

// Interval presets for recurring orders, with the default order counts the
// app suggests for each horizon.
const (
	IntervalDaily   = 86400
	IntervalWeekly  = 604800
	IntervalMonthly = 2628000
)

// DefaultOrdersByInterval maps an interval preset to a duration that feels
// like a normal investing horizon (30 days, ~3 months, 6 months).
var DefaultOrdersByInterval = map[int64]int{
	IntervalDaily:   30,
	IntervalWeekly:  12,
	IntervalMonthly: 6,
}

// AllocationRow is the per-asset share of a basket purchase: the USD amount
// derived from the basket weights and its smallest-unit (floored) integer
// equivalent in the funding asset.
type AllocationRow struct {
	Mint     string  `json:"mint"`
	USD      float64 `json:"usd"`
	Smallest uint64  `json:"smallest"`
}

// QuoteRow pairs an allocation with the opaque execution quote obtained for
// it. Quote expiry is enforced by the quoting service, not tracked here.
type QuoteRow struct {
	AllocationRow
	Quote json.RawMessage `json:"quote"`
}

// Progress reports how far an execution run has advanced. Completed never
// decreases within one run.
type Progress struct {
	Completed int    `json:"completed"`
	Total     int    `json:"total"`
	Current   string `json:"current,omitempty"`
}

// RunState is the full mutable state of the active run. It is replaced
// wholesale at the start of every fetch or execution so results from a
// superseded run never bleed into a new one.
type RunState struct {
	Quotes []QuoteRow
	// QuotedBasket and QuotedTotalUSD identify the purchase the quote batch
	// was fetched for. Execution with different arguments must not consume
	// the batch.
	QuotedBasket      string
	QuotedTotalUSD    float64
	Signatures        []string
	Messages          []string
	Progress          *Progress
	RecurringProgress *Progress
	Err               string
}

// RunStatus is the terminal disposition of an execution run.
type RunStatus string

const (
	RunSucceeded RunStatus = "succeeded"
	RunPartial   RunStatus = "partial"
	RunFailed    RunStatus = "failed"
)

// Quoter obtains an execution quote for a single swap. Must be safe to call
// concurrently for independent asset pairs.
type Quoter interface {
	Quote(ctx context.Context, inputMint, outputMint string, amount uint64, slippageBps int) (json.RawMessage, error)
}

// SwapBuilder turns a quote into an unsigned transaction for the user.
type SwapBuilder interface {
	BuildSwap(ctx context.Context, quote json.RawMessage, userAddress string, wrapAndUnwrapSOL bool) ([]byte, error)
}

// Submitter sends signed transactions to the ledger and waits for
// confirmation. Retry and timeout policy lives behind this interface.
type Submitter interface {
	Submit(ctx context.Context, signedTx []byte) (signature string, err error)
	Confirm(ctx context.Context, signature string) error
}

// CreateOrderParams describes one recurring order. InAmount is the total
// deposit in smallest units; the recurring service divides it across
// NumberOfOrders internally.
type CreateOrderParams struct {
	User            string
	InputMint       string
	OutputMint      string
	InAmount        uint64
	NumberOfOrders  int
	IntervalSeconds int64
	MinPrice        *float64
	MaxPrice        *float64
	StartAt         *int64
}

// ExecuteOrderResult is the recurring service's acknowledgement of a
// submitted order.
type ExecuteOrderResult struct {
	Status         string
	ConfirmationID string
}

// RecurringService creates and submits recurring orders. CreateOrder returns
// the unsigned transaction to sign plus a request ID correlating the later
// ExecuteOrder call.
type RecurringService interface {
	CreateOrder(ctx context.Context, params CreateOrderParams) (unsignedTx []byte, requestID string, err error)
	ExecuteOrder(ctx context.Context, signedTx []byte, requestID string) (ExecuteOrderResult, error)
}

// Wallet is the signing capability. CanSignAll/CanSign are the capability
// flags the validation gate checks before an execution is offered.
type Wallet interface {
	Address() string
	CanSignAll() bool
	CanSign() bool
	SignAll(ctx context.Context, txs [][]byte) ([][]byte, error)
	Sign(ctx context.Context, tx []byte) ([]byte, error)
}

// PriceFeed returns best-effort USD prices by mint. Display only; execution
// correctness never depends on it.
type PriceFeed interface {
	Prices(ctx context.Context, mints []string) (map[string]float64, error)
}

// RunEvent is published on every progress change of an execution run.
type RunEvent struct {
	RunID          string    `json:"run_id"`
	Wallet         string    `json:"wallet"`
	BasketID       string    `json:"basket_id,omitempty"`
	Mode           Mode      `json:"mode"`
	Status         string    `json:"status"`
	Completed      int       `json:"completed"`
	Total          int       `json:"total"`
	Current        string    `json:"current,omitempty"`
	ConfirmationID string    `json:"confirmation_id,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// EventSink receives run events. Publish failures are logged, never fatal.
type EventSink interface {
	PublishRunEvent(ctx context.Context, ev *RunEvent) error
}

// RunRecord describes an execution run for persistence.
type RunRecord struct {
	RunID    string
	Wallet   string
	BasketID string
	Mode     Mode
	TotalUSD float64
	Total    int
}

// RunRecorder persists run history. Optional; a nil recorder disables
// persistence without changing execution semantics.
type RunRecorder interface {
	StartRun(ctx context.Context, rec RunRecord) error
	RecordConfirmation(ctx context.Context, runID string, seq int, assetMint, confirmationID string) error
	CompleteRun(ctx context.Context, runID string, status RunStatus, errMsg string) error
}
