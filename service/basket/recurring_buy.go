package basket

import (
	"context"
	"errors"
	"fmt"

	"github.com/stackfolio/basketd/service/catalog"
)

// RecurringBuyParams configures a standalone recurring buy of one asset.
// PerOrderUSD is the spend per purchase; the total deposit made now is
// PerOrderUSD * OrderCount.
type RecurringBuyParams struct {
	OutputMint      string
	PerOrderUSD     float64
	OrderCount      int
	IntervalSeconds int64
}

// PlanRecurringBuy validates a standalone recurring buy against the
// session's recurring-flow minimums. Returns "" when permitted.
func (s *Session) PlanRecurringBuy(p RecurringBuyParams) string {
	return ValidateRecurringBuy(RecurringBuyInput{
		Connected:      s.wallet.Address() != "",
		Address:        s.wallet.Address(),
		CanSign:        s.wallet.CanSign(),
		PerOrderUSD:    p.PerOrderUSD,
		OrderCount:     p.OrderCount,
		OutputMint:     p.OutputMint,
		FundingMint:    catalog.USDC.Mint,
		MinPerOrderUSD: s.limits.RecurringMinPerOrderUSD,
		MinTotalUSD:    s.limits.RecurringMinTotalUSD,
	})
}

// StartRecurringBuy creates, signs, and submits one recurring order for a
// single asset. The deposit made now funds all future orders; the recurring
// service divides it by OrderCount internally.
func (s *Session) StartRecurringBuy(ctx context.Context, p RecurringBuyParams) (ExecuteOrderResult, error) {
	if msg := s.PlanRecurringBuy(p); msg != "" {
		return ExecuteOrderResult{}, errors.New(msg)
	}

	symbol := s.assets.SymbolForMint(p.OutputMint)
	totalSmallest := usdToSmallest(p.PerOrderUSD*float64(p.OrderCount), catalog.USDC.Decimals)

	tx, requestID, err := s.recurring.CreateOrder(ctx, CreateOrderParams{
		User:            s.wallet.Address(),
		InputMint:       catalog.USDC.Mint,
		OutputMint:      p.OutputMint,
		InAmount:        totalSmallest,
		NumberOfOrders:  p.OrderCount,
		IntervalSeconds: p.IntervalSeconds,
	})
	if err != nil {
		return ExecuteOrderResult{}, fmt.Errorf("recurring order failed for %s: %w", symbol, err)
	}

	signed, err := s.wallet.Sign(ctx, tx)
	if err != nil {
		return ExecuteOrderResult{}, fmt.Errorf("signing failed for %s: %w", symbol, err)
	}

	res, err := s.recurring.ExecuteOrder(ctx, signed, requestID)
	if err != nil {
		return ExecuteOrderResult{}, fmt.Errorf("recurring order failed for %s: %w", symbol, err)
	}

	s.logger.InfoContext(ctx, "recurring buy created",
		"asset", symbol,
		"orders", p.OrderCount,
		"interval_seconds", p.IntervalSeconds,
		"status", res.Status,
		"confirmation", res.ConfirmationID,
	)
	return res, nil
}
