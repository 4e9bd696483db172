package basket

import (
	"context"
	"errors"
	"fmt"

	"github.com/stackfolio/basketd/service/catalog"
)

// SwapParams describes a single immediate swap.
type SwapParams struct {
	InputMint   string
	OutputMint  string
	Amount      uint64 // smallest units of the input asset
	SlippageBps int    // 0 means the session default
}

// Swap executes one immediate swap: fresh quote, build, single signature,
// submit, confirm. Returns the confirmed transaction signature.
func (s *Session) Swap(ctx context.Context, p SwapParams) (string, error) {
	if s.wallet.Address() == "" {
		return "", errors.New("Wallet not connected")
	}
	if !s.wallet.CanSign() {
		return "", errors.New("Your wallet doesn't support transaction signing.")
	}
	slippage := p.SlippageBps
	if slippage == 0 {
		slippage = s.limits.SlippageBps
	}

	symbol := s.assets.SymbolForMint(p.OutputMint)
	s.logger.DebugContext(ctx, "starting swap",
		"input_mint", p.InputMint,
		"output", symbol,
		"amount", p.Amount,
		"slippage_bps", slippage,
	)

	quote, err := s.quoter.Quote(ctx, p.InputMint, p.OutputMint, p.Amount, slippage)
	if err != nil {
		return "", fmt.Errorf("quote failed: %w", err)
	}

	unwrapSOL := p.OutputMint == catalog.WrappedSOLMint
	tx, err := s.swaps.BuildSwap(ctx, quote, s.wallet.Address(), unwrapSOL)
	if err != nil {
		return "", fmt.Errorf("swap build failed: %w", err)
	}

	signed, err := s.wallet.Sign(ctx, tx)
	if err != nil {
		return "", fmt.Errorf("signing failed: %w", err)
	}

	sig, err := s.ledger.Submit(ctx, signed)
	if err != nil {
		return "", errors.New(friendlySwapError(err))
	}
	if err := s.ledger.Confirm(ctx, sig); err != nil {
		return "", errors.New(friendlySwapError(err))
	}

	s.logger.InfoContext(ctx, "swap confirmed", "output", symbol, "signature", sig)
	return sig, nil
}
