package basket

import (
	"math"

	"github.com/stackfolio/basketd/service/catalog"
)

// Allocate splits totalUSD across the basket items proportionally to their
// weights and converts each share to smallest units of the funding asset.
//
// Smallest-unit amounts are floored, never rounded, so the sum of the rows
// can under-allocate by a few base units but never exceeds the smallest-unit
// equivalent of totalUSD. A zero weight sum yields all-zero rows. Pure and
// deterministic: identical inputs always produce identical rows.
func Allocate(totalUSD float64, items []catalog.BasketItem, inputDecimals int) []AllocationRow {
	sum := 0.0
	for _, it := range items {
		sum += it.Weight
	}

	scale := math.Pow(10, float64(inputDecimals))
	rows := make([]AllocationRow, 0, len(items))
	for _, it := range items {
		usd := 0.0
		if sum > 0 {
			usd = totalUSD * it.Weight / sum
		}
		rows = append(rows, AllocationRow{
			Mint:     it.Mint,
			USD:      usd,
			Smallest: uint64(math.Floor(usd * scale)),
		})
	}
	return rows
}

// usdToSmallest converts a USD amount to smallest units of an asset with the
// given decimals, flooring so totals never over-allocate.
func usdToSmallest(usd float64, decimals int) uint64 {
	return uint64(math.Floor(usd * math.Pow(10, float64(decimals))))
}
