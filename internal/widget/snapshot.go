// Package widget projects hunt state for the read-only stream overlay.
package widget

import (
	"time"

	"bonus-hunt/internal/apperr"
	"bonus-hunt/internal/models"
	"bonus-hunt/internal/services"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusLoading     Status = "loading"
	StatusLive        Status = "live"
	StatusNotFound    Status = "not_found"
	StatusConcluded   Status = "concluded"
	StatusUnavailable Status = "unavailable"
)

const (
	messageNotFound    = "Bonus hunt not found"
	messageConcluded   = "Bonus hunt has concluded"
	messageUnavailable = "Bonus hunt is temporarily unavailable"
)

// SlotView is one card on the overlay. Position is 1-based.
type SlotView struct {
	ID         uuid.UUID           `json:"id"`
	Position   int                 `json:"position"`
	Name       string              `json:"name"`
	BetSize    decimal.Decimal     `json:"betSize"`
	Result     decimal.NullDecimal `json:"result"`
	Multiplier decimal.NullDecimal `json:"multiplier"`
	Status     models.SlotStatus   `json:"status"`
	IsSuper    bool                `json:"isSuper"`
	IsExtreme  bool                `json:"isExtreme"`
	IsCurrent  bool                `json:"isCurrent"`
	ImageURL   *string             `json:"imageUrl"`
}

// Snapshot is a render-ready overlay state. Only live snapshots carry hunt
// data; every other status renders a placeholder.
type Snapshot struct {
	HuntID      uuid.UUID        `json:"huntId"`
	Status      Status           `json:"status"`
	Message     string           `json:"message,omitempty"`
	Name        string           `json:"name,omitempty"`
	Phase       models.HuntPhase `json:"phase,omitempty"`
	Stats       *models.Stats    `json:"stats,omitempty"`
	Slots       []SlotView       `json:"slots,omitempty"`
	Revision    uint64           `json:"revision"`
	GeneratedAt time.Time        `json:"generatedAt"`
}

// Loading is published before the first fetch completes.
func Loading(huntID uuid.UUID, now time.Time) Snapshot {
	return Snapshot{HuntID: huntID, Status: StatusLoading, GeneratedAt: now}
}

// BuildSnapshot turns the result of a full-state fetch into a snapshot.
func BuildSnapshot(huntID uuid.UUID, state *models.HuntStateResponse, err error, now time.Time) Snapshot {
	snap := Snapshot{HuntID: huntID, GeneratedAt: now}

	switch {
	case apperr.IsNotFound(err):
		snap.Status = StatusNotFound
		snap.Message = messageNotFound
		return snap
	case err != nil || state == nil || state.Hunt == nil:
		snap.Status = StatusUnavailable
		snap.Message = messageUnavailable
		return snap
	case !state.Hunt.IsActive():
		snap.Status = StatusConcluded
		snap.Message = messageConcluded
		return snap
	}

	stats := services.ComputeStats(state.Hunt.StartAmount, state.Slots)
	ordered := services.SortSlots(state.Slots)

	views := make([]SlotView, 0, len(ordered))
	for i, slot := range ordered {
		view := SlotView{
			ID:        slot.ID,
			Position:  i + 1,
			Name:      slot.Name,
			BetSize:   slot.BetSize,
			Result:    slot.Result,
			Status:    slot.Status,
			IsSuper:   slot.IsSuper,
			IsExtreme: slot.IsExtreme,
			IsCurrent: stats.CurrentSlotIndex != nil && *stats.CurrentSlotIndex == i,
			ImageURL:  slot.ImageURL,
		}
		if m, ok := services.SlotMultiplier(slot); ok {
			view.Multiplier = decimal.NewNullDecimal(m)
		}
		views = append(views, view)
	}

	snap.Status = StatusLive
	snap.Name = state.Hunt.Name
	snap.Phase = state.Hunt.Phase
	snap.Stats = &stats
	snap.Slots = views
	return snap
}
