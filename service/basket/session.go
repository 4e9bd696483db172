package basket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/stackfolio/basketd/service/catalog"
	"github.com/stackfolio/basketd/service/metrics"
)

// Limits holds the tunable execution parameters for a session.
type Limits struct {
	SlippageBps int
	// BasketDCAMinPerOrderUSD guards tiny basket DCA slices ($2 default).
	BasketDCAMinPerOrderUSD float64
	// RecurringMinPerOrderUSD / RecurringMinTotalUSD are the standalone
	// recurring-buy minimums ($50 / $100 defaults). Kept separate from the
	// basket guardrail on purpose.
	RecurringMinPerOrderUSD float64
	RecurringMinTotalUSD    float64
}

// DefaultLimits returns the production guardrails.
func DefaultLimits() Limits {
	return Limits{
		SlippageBps:             50,
		BasketDCAMinPerOrderUSD: 2,
		RecurringMinPerOrderUSD: 50,
		RecurringMinTotalUSD:    100,
	}
}

// Session orchestrates basket purchases for one wallet: quote fan-out,
// one-shot swap sequencing, and recurring-order sequencing. All collaborators
// are injected; the session owns only the active run's progress/result state.
//
// Each fetch or execution starts a new run. State updates from a superseded
// run are discarded by comparing run tokens, so an abandoned run can settle
// without corrupting the one that replaced it.
type Session struct {
	quoter    Quoter
	swaps     SwapBuilder
	ledger    Submitter
	recurring RecurringService
	wallet    Wallet
	assets    *catalog.Repository
	limits    Limits
	logger    *slog.Logger
	metrics   *metrics.Metrics
	events    EventSink
	recorder  RunRecorder

	mu  sync.Mutex
	seq uint64
	st  RunState
}

// Deps bundles the collaborators for NewSession. Metrics, events, and
// recorder are optional.
type Deps struct {
	Quoter    Quoter
	Swaps     SwapBuilder
	Ledger    Submitter
	Recurring RecurringService
	Wallet    Wallet
	Assets    *catalog.Repository
	Limits    Limits
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
	Events    EventSink
	Recorder  RunRecorder
}

// NewSession creates a session over the given collaborators.
func NewSession(d Deps) *Session {
	return &Session{
		quoter:    d.Quoter,
		swaps:     d.Swaps,
		ledger:    d.Ledger,
		recurring: d.Recurring,
		wallet:    d.Wallet,
		assets:    d.Assets,
		limits:    d.Limits,
		logger:    d.Logger,
		metrics:   d.Metrics,
		events:    d.Events,
		recorder:  d.Recorder,
	}
}

// State returns a snapshot of the active run's state.
func (s *Session) State() RunState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.st
	st.Quotes = append([]QuoteRow(nil), s.st.Quotes...)
	st.Signatures = append([]string(nil), s.st.Signatures...)
	st.Messages = append([]string(nil), s.st.Messages...)
	if s.st.Progress != nil {
		p := *s.st.Progress
		st.Progress = &p
	}
	if s.st.RecurringProgress != nil {
		p := *s.st.RecurringProgress
		st.RecurringProgress = &p
	}
	return st
}

// beginRun supersedes the active run and fully replaces its state.
func (s *Session) beginRun() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.st = RunState{}
	return s.seq
}

// consumeQuotes supersedes the active run and carries the previewed quote
// batch into it, but only when the batch was fetched for this exact basket
// and amount. A missing or mismatched batch is discarded and nil quotes are
// returned, forcing the caller back through FetchQuotes.
func (s *Session) consumeQuotes(basketID string, totalUSD float64) (uint64, []QuoteRow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	if s.st.QuotedBasket != basketID || s.st.QuotedTotalUSD != totalUSD {
		s.st = RunState{}
		return s.seq, nil
	}
	quotes := s.st.Quotes
	s.st = RunState{Quotes: quotes, QuotedBasket: basketID, QuotedTotalUSD: totalUSD}
	return s.seq, quotes
}

// apply mutates run state only if run is still the active run.
func (s *Session) apply(run uint64, fn func(st *RunState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if run == s.seq {
		fn(&s.st)
	}
}

func (s *Session) runID(run uint64) string {
	return fmt.Sprintf("%s-%d", s.wallet.Address(), run)
}

// Validate runs the validation gate for a basket purchase in the given mode.
// Returns "" when execution is permitted.
func (s *Session) Validate(b catalog.Basket, totalUSD float64, mode Mode, orderCount int) string {
	return Validate(ValidateInput{
		Connected:      true,
		Address:        s.wallet.Address(),
		TotalUSD:       totalUSD,
		Mode:           mode,
		CanSignAll:     s.wallet.CanSignAll(),
		CanSign:        s.wallet.CanSign(),
		ItemCount:      len(b.Items),
		OrderCount:     orderCount,
		MinPerOrderUSD: s.limits.BasketDCAMinPerOrderUSD,
	})
}

// FetchQuotes computes the allocations for a basket purchase and fetches one
// execution quote per allocation concurrently. All-or-nothing: any quote
// failure discards the whole batch and surfaces a single aggregate error.
// Quote rows come back in allocation order.
func (s *Session) FetchQuotes(ctx context.Context, b catalog.Basket, totalUSD float64) ([]QuoteRow, error) {
	// Guard before float→smallest-unit conversion: a negative or non-finite
	// total would convert to a garbage uint64 amount.
	if math.IsNaN(totalUSD) || math.IsInf(totalUSD, 0) || totalUSD <= 0 {
		return nil, errors.New("Enter an amount.")
	}

	run := s.beginRun()
	allocs := Allocate(totalUSD, b.Items, catalog.USDC.Decimals)

	s.logger.DebugContext(ctx, "fetching quote batch",
		"basket", b.ID,
		"total_usd", totalUSD,
		"allocations", len(allocs),
		"slippage_bps", s.limits.SlippageBps,
	)

	start := time.Now()
	rows := make([]QuoteRow, len(allocs))
	g, gctx := errgroup.WithContext(ctx)
	for i, alloc := range allocs {
		g.Go(func() error {
			q, err := s.quoter.Quote(gctx, catalog.USDC.Mint, alloc.Mint, alloc.Smallest, s.limits.SlippageBps)
			if err != nil {
				return fmt.Errorf("quote for %s: %w", s.assets.SymbolForMint(alloc.Mint), err)
			}
			rows[i] = QuoteRow{AllocationRow: alloc, Quote: q}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.apply(run, func(st *RunState) {
			st.Quotes = nil
			st.Err = err.Error()
		})
		if s.metrics != nil {
			s.metrics.RecordQuoteBatch("error", len(allocs), time.Since(start).Seconds())
		}
		s.logger.WarnContext(ctx, "quote batch failed", "basket", b.ID, "error", err)
		return nil, err
	}

	s.apply(run, func(st *RunState) {
		st.Quotes = rows
		st.QuotedBasket = b.ID
		st.QuotedTotalUSD = totalUSD
	})
	if s.metrics != nil {
		s.metrics.RecordQuoteBatch("success", len(allocs), time.Since(start).Seconds())
	}
	s.logger.InfoContext(ctx, "quote batch fetched", "basket", b.ID, "quotes", len(rows))
	return rows, nil
}

// ExecuteOnce buys every quoted allocation now: one transaction per quote
// row, one batched signature, then strictly sequential submit+confirm per
// row. A mid-batch failure halts the remainder; signatures confirmed before
// the failure are preserved and returned alongside the error, since those
// purchases already executed on-ledger and cannot be undone.
func (s *Session) ExecuteOnce(ctx context.Context, b catalog.Basket, totalUSD float64) ([]string, error) {
	if b.Disabled {
		return nil, fmt.Errorf("basket %s is unavailable: %s", b.ID, b.DisabledReason)
	}
	if msg := s.Validate(b, totalUSD, ModeOnce, 0); msg != "" {
		return nil, fmt.Errorf("%s", msg)
	}

	run, quotes := s.consumeQuotes(b.ID, totalUSD)
	if len(quotes) == 0 {
		err := errors.New("Preview quotes first.")
		s.apply(run, func(st *RunState) { st.Err = err.Error() })
		return nil, err
	}

	s.apply(run, func(st *RunState) {
		st.Progress = &Progress{Completed: 0, Total: len(quotes)}
	})
	s.startRecord(ctx, run, b.ID, ModeOnce, totalUSD, len(quotes))

	// Build one unsigned transaction per quote row, preserving batch order.
	txs := make([][]byte, 0, len(quotes))
	for _, row := range quotes {
		unwrapSOL := row.Mint == catalog.WrappedSOLMint
		tx, err := s.swaps.BuildSwap(ctx, row.Quote, s.wallet.Address(), unwrapSOL)
		if err != nil {
			return nil, s.failRun(ctx, run, ModeOnce, nil,
				fmt.Errorf("swap build failed for %s: %w", s.assets.SymbolForMint(row.Mint), err))
		}
		txs = append(txs, tx)
	}

	// One signing prompt for the whole batch.
	signed, err := s.wallet.SignAll(ctx, txs)
	if err != nil {
		return nil, s.failRun(ctx, run, ModeOnce, nil, fmt.Errorf("signing failed: %w", err))
	}

	// Sequential submission bounds the blast radius of a mid-batch failure
	// and keeps progress strictly ordered.
	sigs := make([]string, 0, len(signed))
	for i, raw := range signed {
		symbol := s.assets.SymbolForMint(quotes[i].Mint)
		s.apply(run, func(st *RunState) {
			st.Progress = &Progress{Completed: i, Total: len(signed), Current: symbol}
		})
		s.publishProgress(ctx, run, b.ID, ModeOnce, i, len(signed), symbol, "")

		stepStart := time.Now()
		sig, err := s.ledger.Submit(ctx, raw)
		if err != nil {
			s.recordStep(ModeOnce, "submit_error", stepStart)
			return sigs, s.failRun(ctx, run, ModeOnce, sigs,
				fmt.Errorf("submission failed for %s: %w", symbol, err))
		}
		if err := s.ledger.Confirm(ctx, sig); err != nil {
			s.recordStep(ModeOnce, "confirm_error", stepStart)
			return sigs, s.failRun(ctx, run, ModeOnce, sigs,
				fmt.Errorf("confirmation failed for %s: %w", symbol, err))
		}
		s.recordStep(ModeOnce, "success", stepStart)

		sigs = append(sigs, sig)
		s.apply(run, func(st *RunState) {
			st.Signatures = append([]string(nil), sigs...)
			st.Progress = &Progress{Completed: i + 1, Total: len(signed), Current: symbol}
		})
		s.recordConfirmation(ctx, run, i, quotes[i].Mint, sig)
		s.publishProgress(ctx, run, b.ID, ModeOnce, i+1, len(signed), symbol, sig)

		s.logger.InfoContext(ctx, "swap confirmed",
			"basket", b.ID,
			"asset", symbol,
			"signature", sig,
			"completed", i+1,
			"total", len(signed),
		)
	}

	s.completeRecord(ctx, run, RunSucceeded, "")
	if s.metrics != nil {
		s.metrics.RecordRun(string(ModeOnce), string(RunSucceeded))
	}
	return sigs, nil
}

// ExecuteRecurring sets up one recurring order per allocation, strictly
// sequentially: create, sign, execute for each asset in turn. A failure
// halts the remaining assets; orders already created stay active, no
// compensating cancellation is attempted.
func (s *Session) ExecuteRecurring(ctx context.Context, b catalog.Basket, totalUSD float64, orderCount int, intervalSeconds int64) ([]string, error) {
	if b.Disabled {
		return nil, fmt.Errorf("basket %s is unavailable: %s", b.ID, b.DisabledReason)
	}
	if msg := s.Validate(b, totalUSD, ModeDCA, orderCount); msg != "" {
		return nil, fmt.Errorf("%s", msg)
	}

	run := s.beginRun()
	allocs := Allocate(totalUSD, b.Items, catalog.USDC.Decimals)
	s.apply(run, func(st *RunState) {
		st.RecurringProgress = &Progress{Completed: 0, Total: len(allocs)}
	})
	s.startRecord(ctx, run, b.ID, ModeDCA, totalUSD, len(allocs))

	msgs := make([]string, 0, len(allocs))
	for i, alloc := range allocs {
		symbol := s.assets.SymbolForMint(alloc.Mint)
		s.apply(run, func(st *RunState) {
			st.RecurringProgress = &Progress{Completed: i, Total: len(allocs), Current: symbol}
		})
		s.publishProgress(ctx, run, b.ID, ModeDCA, i, len(allocs), symbol, "")

		stepStart := time.Now()
		// The deposit is this asset's full allocation; the recurring
		// service splits it across orderCount internally.
		tx, requestID, err := s.recurring.CreateOrder(ctx, CreateOrderParams{
			User:            s.wallet.Address(),
			InputMint:       catalog.USDC.Mint,
			OutputMint:      alloc.Mint,
			InAmount:        alloc.Smallest,
			NumberOfOrders:  orderCount,
			IntervalSeconds: intervalSeconds,
		})
		if err != nil {
			s.recordStep(ModeDCA, "create_error", stepStart)
			return msgs, s.failRun(ctx, run, ModeDCA, msgs,
				fmt.Errorf("recurring order failed for %s: %w", symbol, err))
		}

		signed, err := s.wallet.Sign(ctx, tx)
		if err != nil {
			s.recordStep(ModeDCA, "sign_error", stepStart)
			return msgs, s.failRun(ctx, run, ModeDCA, msgs,
				fmt.Errorf("signing failed for %s: %w", symbol, err))
		}

		res, err := s.recurring.ExecuteOrder(ctx, signed, requestID)
		if err != nil {
			s.recordStep(ModeDCA, "execute_error", stepStart)
			return msgs, s.failRun(ctx, run, ModeDCA, msgs,
				fmt.Errorf("recurring order failed for %s: %w", symbol, err))
		}
		s.recordStep(ModeDCA, "success", stepStart)

		msg := fmt.Sprintf("Recurring buy set for %s (%d orders)", symbol, orderCount)
		msgs = append(msgs, msg)
		s.apply(run, func(st *RunState) {
			st.Messages = append([]string(nil), msgs...)
			st.RecurringProgress = &Progress{Completed: i + 1, Total: len(allocs), Current: symbol}
		})
		confirmation := res.ConfirmationID
		if confirmation == "" {
			confirmation = requestID
		}
		s.recordConfirmation(ctx, run, i, alloc.Mint, confirmation)
		s.publishProgress(ctx, run, b.ID, ModeDCA, i+1, len(allocs), symbol, confirmation)

		s.logger.InfoContext(ctx, "recurring order created",
			"basket", b.ID,
			"asset", symbol,
			"orders", orderCount,
			"interval_seconds", intervalSeconds,
			"confirmation", confirmation,
		)
	}

	s.completeRecord(ctx, run, RunSucceeded, "")
	if s.metrics != nil {
		s.metrics.RecordRun(string(ModeDCA), string(RunSucceeded))
	}
	return msgs, nil
}

// failRun records the terminal error on the run (if still active), persists
// the outcome, and returns a single user-facing error that keeps the
// underlying cause for diagnostics.
func (s *Session) failRun(ctx context.Context, run uint64, mode Mode, partial []string, err error) error {
	s.apply(run, func(st *RunState) { st.Err = err.Error() })

	status := RunFailed
	if len(partial) > 0 {
		status = RunPartial
	}
	s.completeRecord(ctx, run, status, err.Error())
	if s.metrics != nil {
		s.metrics.RecordRun(string(mode), string(status))
	}
	s.logger.ErrorContext(ctx, "execution run failed",
		"mode", mode,
		"completed", len(partial),
		"error", err,
	)
	return err
}

func (s *Session) publishProgress(ctx context.Context, run uint64, basketID string, mode Mode, completed, total int, current, confirmation string) {
	if s.events == nil {
		return
	}
	ev := &RunEvent{
		RunID:          s.runID(run),
		Wallet:         s.wallet.Address(),
		BasketID:       basketID,
		Mode:           mode,
		Status:         "in_progress",
		Completed:      completed,
		Total:          total,
		Current:        current,
		ConfirmationID: confirmation,
		Timestamp:      time.Now(),
	}
	if err := s.events.PublishRunEvent(ctx, ev); err != nil {
		s.logger.WarnContext(ctx, "failed to publish run event", "run_id", ev.RunID, "error", err)
	}
}

func (s *Session) startRecord(ctx context.Context, run uint64, basketID string, mode Mode, totalUSD float64, total int) {
	if s.recorder == nil {
		return
	}
	rec := RunRecord{
		RunID:    s.runID(run),
		Wallet:   s.wallet.Address(),
		BasketID: basketID,
		Mode:     mode,
		TotalUSD: totalUSD,
		Total:    total,
	}
	if err := s.recorder.StartRun(ctx, rec); err != nil {
		s.logger.WarnContext(ctx, "failed to persist run start", "run_id", rec.RunID, "error", err)
	}
}

func (s *Session) recordConfirmation(ctx context.Context, run uint64, seq int, mint, confirmation string) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.RecordConfirmation(ctx, s.runID(run), seq, mint, confirmation); err != nil {
		s.logger.WarnContext(ctx, "failed to persist confirmation", "run_id", s.runID(run), "error", err)
	}
}

func (s *Session) completeRecord(ctx context.Context, run uint64, status RunStatus, errMsg string) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.CompleteRun(ctx, s.runID(run), status, errMsg); err != nil {
		s.logger.WarnContext(ctx, "failed to persist run completion", "run_id", s.runID(run), "error", err)
	}
}

func (s *Session) recordStep(mode Mode, status string, start time.Time) {
	if s.metrics != nil {
		s.metrics.RecordExecutionStep(string(mode), status, time.Since(start).Seconds())
	}
}

// friendlySwapError maps known ledger failure modes to actionable copy while
// keeping everything else verbatim.
func friendlySwapError(err error) string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "block height exceeded"):
		return "Transaction expired. Please try again."
	case strings.Contains(msg, "insufficient"):
		return "Insufficient balance for this swap."
	default:
		return msg
	}
}
