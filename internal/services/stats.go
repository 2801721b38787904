package services

import (
	"sort"

	"bonus-hunt/internal/models"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ComputeStats derives the hunt figures from the start amount and the slot
// set. Slots are evaluated in Order regardless of the order they are passed
// in. Every ratio with a zero denominator is reported as zero.
func ComputeStats(startAmount decimal.Decimal, slots []models.Slot) models.Stats {
	ordered := SortSlots(slots)

	stats := models.Stats{
		StartAmount: startAmount,
		TotalBets:   decimal.Zero,
		TotalResult: decimal.Zero,
		SlotCount:   len(ordered),
	}

	for i := range ordered {
		s := &ordered[i]
		stats.TotalBets = stats.TotalBets.Add(s.BetSize)
		if s.Result.Valid {
			stats.TotalResult = stats.TotalResult.Add(s.Result.Decimal)
		}
		if s.IsSuper {
			stats.SuperCount++
		}
		if s.IsExtreme {
			stats.ExtremeCount++
		}
		if s.IsOpened() {
			stats.OpenedCount++
		} else {
			if stats.CurrentSlotIndex == nil {
				idx := i
				stats.CurrentSlotIndex = &idx
			}
			stats.PendingCount++
		}
	}

	stats.BreakevenMultiplier = safeDiv(startAmount, stats.TotalBets)
	stats.LiveMultiplier = safeDiv(stats.TotalResult, stats.TotalBets)
	stats.Profit = stats.TotalResult.Sub(startAmount)
	stats.ProgressPercent = safeDiv(decimal.NewFromInt(int64(stats.OpenedCount)).Mul(hundred), decimal.NewFromInt(int64(stats.SlotCount)))

	return stats
}

// Totals returns the sums cached on the hunt row: Σ betSize and
// Σ result with pending slots counted as zero.
func Totals(slots []models.Slot) (totalCost, totalResult decimal.Decimal) {
	totalCost, totalResult = decimal.Zero, decimal.Zero
	for i := range slots {
		totalCost = totalCost.Add(slots[i].BetSize)
		if slots[i].Result.Valid {
			totalResult = totalResult.Add(slots[i].Result.Decimal)
		}
	}
	return totalCost, totalResult
}

// SlotMultiplier is the payout multiple of a single opened slot. The second
// return value is false for pending slots or a zero bet.
func SlotMultiplier(slot models.Slot) (decimal.Decimal, bool) {
	if !slot.Result.Valid || slot.BetSize.IsZero() {
		return decimal.Zero, false
	}
	return slot.Result.Decimal.Div(slot.BetSize), true
}

// SortSlots returns a copy of slots ordered by Order.
func SortSlots(slots []models.Slot) []models.Slot {
	ordered := make([]models.Slot, len(slots))
	copy(ordered, slots)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Order < ordered[j].Order
	})
	return ordered
}

// safeDiv never lets decimal's divide-by-zero panic escape.
func safeDiv(num, den decimal.Decimal) decimal.Decimal {
	if den.IsZero() {
		return decimal.Zero
	}
	return num.Div(den)
}
