package basket

import "math"

// ValidateInput is everything the validation gate needs to decide whether an
// execution may proceed.
type ValidateInput struct {
	Connected  bool
	Address    string
	TotalUSD   float64
	Mode       Mode
	CanSignAll bool
	CanSign    bool
	ItemCount  int
	OrderCount int
	// MinPerOrderUSD is the per-asset-per-order guardrail for DCA mode.
	// The basket flow and the standalone recurring-buy flow configure this
	// independently; they are not one shared threshold.
	MinPerOrderUSD float64
}

// Validate returns a human-readable reason the execution is blocked, or ""
// when it is permitted. Rules are evaluated in order and the first failing
// rule wins. Purely advisory: no side effects, nothing is thrown.
func Validate(in ValidateInput) string {
	if !in.Connected || in.Address == "" {
		return "Connect wallet first."
	}
	if in.TotalUSD <= 0 || math.IsNaN(in.TotalUSD) || math.IsInf(in.TotalUSD, 0) {
		return "Enter an amount."
	}
	if in.Mode == ModeOnce && !in.CanSignAll {
		return "Wallet must support batch signing for one-click baskets."
	}
	if in.Mode == ModeDCA && !in.CanSign {
		return "Wallet must support transaction signing for DCA."
	}
	if in.Mode == ModeDCA {
		if in.OrderCount < 2 {
			return "DCA needs at least 2 orders."
		}
		perOrder := in.TotalUSD / float64(max(1, in.ItemCount)) / float64(max(1, in.OrderCount))
		if perOrder < in.MinPerOrderUSD {
			return "Per-order amount too small. Increase total or reduce number of orders."
		}
	}
	return ""
}

// RecurringBuyInput is the validation input for the standalone recurring-buy
// flow. Its minimums come from the recurring service's own limits and are
// deliberately separate from the basket DCA guardrail.
type RecurringBuyInput struct {
	Connected      bool
	Address        string
	CanSign        bool
	PerOrderUSD    float64
	OrderCount     int
	OutputMint     string
	FundingMint    string
	MinPerOrderUSD float64
	MinTotalUSD    float64
}

// ValidateRecurringBuy returns the blocking reason for a standalone
// recurring buy, or "" when permitted.
func ValidateRecurringBuy(in RecurringBuyInput) string {
	if !in.Connected || in.Address == "" {
		return "Connect your wallet to start a recurring buy."
	}
	if !in.CanSign {
		return "Your wallet doesn't support transaction signing."
	}
	if in.PerOrderUSD <= 0 || math.IsNaN(in.PerOrderUSD) || math.IsInf(in.PerOrderUSD, 0) {
		return "Enter an amount."
	}
	if in.OrderCount < 2 {
		return "Minimum 2 orders."
	}
	if in.PerOrderUSD*float64(in.OrderCount) < in.MinTotalUSD {
		return "Minimum total deposit is $100."
	}
	if in.PerOrderUSD < in.MinPerOrderUSD {
		return "Minimum is $50 per order."
	}
	if in.OutputMint == in.FundingMint {
		return "Choose an asset other than USDC."
	}
	return ""
}
