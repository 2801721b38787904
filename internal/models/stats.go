package models

import "github.com/shopspring/decimal"

// Stats are the figures derived from a hunt's start amount and its slots.
// CurrentSlotIndex is nil once every slot has been opened.
type Stats struct {
	StartAmount         decimal.Decimal `json:"startAmount"`
	TotalBets           decimal.Decimal `json:"totalBets"`
	TotalResult         decimal.Decimal `json:"totalResult"`
	BreakevenMultiplier decimal.Decimal `json:"breakevenMultiplier"`
	LiveMultiplier      decimal.Decimal `json:"liveMultiplier"`
	Profit              decimal.Decimal `json:"profit"`
	SuperCount          int             `json:"superCount"`
	ExtremeCount        int             `json:"extremeCount"`
	OpenedCount         int             `json:"openedCount"`
	PendingCount        int             `json:"pendingCount"`
	SlotCount           int             `json:"slotCount"`
	ProgressPercent     decimal.Decimal `json:"progressPercent"`
	CurrentSlotIndex    *int            `json:"currentSlotIndex"`
}
