package services

import (
	"testing"

	"bonus-hunt/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func pendingSlot(order int, bet string) models.Slot {
	return models.Slot{
		ID:      uuid.New(),
		Name:    "slot",
		BetSize: dec(bet),
		Status:  models.SlotStatusPending,
		Order:   order,
	}
}

func openedSlot(order int, bet, result string) models.Slot {
	s := pendingSlot(order, bet)
	s.Status = models.SlotStatusOpened
	s.Result = decimal.NewNullDecimal(dec(result))
	return s
}

func TestComputeStatsEmptyHunt(t *testing.T) {
	stats := ComputeStats(dec("1000"), nil)

	assert.Equal(t, 0, stats.SlotCount)
	assert.True(t, stats.TotalBets.IsZero())
	assert.True(t, stats.BreakevenMultiplier.IsZero(), "zero bets must not divide")
	assert.True(t, stats.LiveMultiplier.IsZero())
	assert.True(t, stats.ProgressPercent.IsZero())
	assert.Equal(t, "-1000", stats.Profit.String())
	assert.Nil(t, stats.CurrentSlotIndex)
}

func TestComputeStatsBreakeven(t *testing.T) {
	slots := []models.Slot{
		pendingSlot(1, "10"),
		pendingSlot(2, "20"),
		pendingSlot(3, "30"),
	}

	stats := ComputeStats(dec("1000"), slots)

	assert.Equal(t, "60", stats.TotalBets.String())
	assert.Equal(t, "16.67", stats.BreakevenMultiplier.StringFixed(2))
	assert.True(t, stats.LiveMultiplier.IsZero())
	assert.Equal(t, 3, stats.PendingCount)
	require.NotNil(t, stats.CurrentSlotIndex)
	assert.Equal(t, 0, *stats.CurrentSlotIndex)
}

func TestComputeStatsPartiallyOpened(t *testing.T) {
	slots := []models.Slot{
		openedSlot(1, "10", "15"),
		pendingSlot(2, "20"),
		pendingSlot(3, "30"),
	}

	stats := ComputeStats(dec("1000"), slots)

	assert.Equal(t, "15", stats.TotalResult.String())
	assert.Equal(t, "0.25", stats.LiveMultiplier.StringFixed(2))
	assert.Equal(t, "-985", stats.Profit.String())
	assert.Equal(t, 1, stats.OpenedCount)
	assert.Equal(t, 2, stats.PendingCount)
	assert.Equal(t, "33.33", stats.ProgressPercent.StringFixed(2))
	require.NotNil(t, stats.CurrentSlotIndex)
	assert.Equal(t, 1, *stats.CurrentSlotIndex)
}

func TestComputeStatsCountsOutcomeFlags(t *testing.T) {
	super := openedSlot(1, "10", "200")
	super.IsSuper = true
	extreme := openedSlot(2, "10", "5000")
	extreme.IsExtreme = true

	stats := ComputeStats(dec("100"), []models.Slot{super, extreme, openedSlot(3, "10", "0")})

	assert.Equal(t, 1, stats.SuperCount)
	assert.Equal(t, 1, stats.ExtremeCount)
	assert.Equal(t, "100", stats.ProgressPercent.String())
	assert.Nil(t, stats.CurrentSlotIndex, "no slot is pending")
}

func TestComputeStatsUsesOrderNotInputPosition(t *testing.T) {
	// Gaps in order are allowed; only relative order matters.
	slots := []models.Slot{
		pendingSlot(7, "30"),
		openedSlot(2, "10", "5"),
		pendingSlot(4, "20"),
	}

	stats := ComputeStats(dec("0"), slots)

	require.NotNil(t, stats.CurrentSlotIndex)
	assert.Equal(t, 1, *stats.CurrentSlotIndex, "order 4 is the first pending slot")
	assert.Equal(t, 7, slots[0].Order, "input must not be reordered in place")
}

func TestComputeStatsZeroStartAmount(t *testing.T) {
	stats := ComputeStats(decimal.Zero, []models.Slot{openedSlot(1, "10", "25")})

	assert.True(t, stats.BreakevenMultiplier.IsZero())
	assert.Equal(t, "2.5", stats.LiveMultiplier.String())
	assert.Equal(t, "25", stats.Profit.String())
}

func TestTotalsCountsPendingResultAsZero(t *testing.T) {
	cost, result := Totals([]models.Slot{
		openedSlot(1, "10", "15"),
		pendingSlot(2, "20.50"),
	})

	assert.Equal(t, "30.5", cost.String())
	assert.Equal(t, "15", result.String())
}

func TestSlotMultiplier(t *testing.T) {
	m, ok := SlotMultiplier(openedSlot(1, "4", "10"))
	require.True(t, ok)
	assert.Equal(t, "2.5", m.String())

	_, ok = SlotMultiplier(pendingSlot(1, "4"))
	assert.False(t, ok)
}
