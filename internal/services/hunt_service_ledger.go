package services

import (
	"context"
	"strings"

	"bonus-hunt/internal/apperr"
	"bonus-hunt/internal/models"
	"bonus-hunt/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AddSlot appends a pending slot to a hunt. The new slot is ordered after
// every existing slot.
func (s *HuntService) AddSlot(ctx context.Context, ownerID string, huntID uuid.UUID, req *models.AddSlotRequest) (*models.Slot, *models.Hunt, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, nil, apperr.New(apperr.CodeSlotEmptyName, "slot name is required")
	}

	betSize, err := normalizeMoney("bet size", req.BetSize)
	if err != nil {
		return nil, nil, err
	}
	if !betSize.IsPositive() {
		return nil, nil, apperr.New(apperr.CodeSlotInvalidBetSize, "bet size must be greater than zero")
	}

	imageURL := s.resolveImage(ctx, ownerID, name, req.ImageURL)

	slot := &models.Slot{
		ID:       uuid.New(),
		HuntID:   huntID,
		Name:     name,
		BetSize:  betSize,
		Status:   models.SlotStatusPending,
		ImageURL: imageURL,
	}

	var hunt *models.Hunt
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		var err error
		hunt, err = lockOwnedHunt(ctx, tx, ownerID, huntID)
		if err != nil {
			return err
		}

		switch hunt.State() {
		case models.HuntStateCompleted:
			return apperr.New(apperr.CodeHuntCompleted, "hunt is completed")
		case models.HuntStateOpening:
			if !s.opts.AllowSlotsWhileOpening {
				return apperr.New(apperr.CodeSlotAdditionNotAllowed, "slots cannot be added once the hunt is opening")
			}
		}

		slot.Order, err = tx.NextSlotOrder(ctx, huntID)
		if err != nil {
			return err
		}
		if err := tx.CreateSlot(ctx, slot); err != nil {
			return err
		}
		return recomputeTotals(ctx, tx, hunt)
	})
	if err != nil {
		return nil, nil, err
	}

	s.logger.Debug("Slot added", "hunt", huntID, "slot", slot.ID, "bet", betSize, "order", slot.Order)
	s.notify(huntID)
	return slot, hunt, nil
}

// OpenSlot records the payout of a pending slot. Super and extreme are
// exclusive; extreme wins when both are requested.
func (s *HuntService) OpenSlot(ctx context.Context, ownerID string, slotID uuid.UUID, req *models.OpenSlotRequest) (*models.Slot, *models.Hunt, error) {
	if req.Result == nil {
		return nil, nil, apperr.New(apperr.CodeInvalidRequest, "result is required")
	}
	result, err := normalizeMoney("result", *req.Result)
	if err != nil {
		return nil, nil, err
	}
	if result.IsNegative() {
		return nil, nil, apperr.New(apperr.CodeSlotNegativeResult, "result cannot be negative")
	}
	isSuper, isExtreme := req.IsSuper, req.IsExtreme
	if isExtreme {
		isSuper = false
	}

	var (
		slot *models.Slot
		hunt *models.Hunt
	)
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		var err error
		slot, hunt, err = lockSlotHunt(ctx, tx, ownerID, slotID)
		if err != nil {
			return err
		}
		if !hunt.IsActive() {
			return apperr.New(apperr.CodeHuntCompleted, "hunt is completed")
		}
		if slot.IsOpened() {
			return apperr.New(apperr.CodeSlotAlreadyOpened, "slot is already opened")
		}

		slot.Status = models.SlotStatusOpened
		slot.Result = decimal.NewNullDecimal(result)
		slot.IsSuper = isSuper
		slot.IsExtreme = isExtreme
		if err := tx.UpdateSlotOutcome(ctx, slot); err != nil {
			return err
		}
		return recomputeTotals(ctx, tx, hunt)
	})
	if err != nil {
		return nil, nil, err
	}

	s.logger.Debug("Slot opened", "hunt", hunt.ID, "slot", slot.ID, "result", result, "super", isSuper, "extreme", isExtreme)
	s.notify(hunt.ID)
	return slot, hunt, nil
}

// DeleteSlot removes a slot in any status. Surviving slots keep their order.
func (s *HuntService) DeleteSlot(ctx context.Context, ownerID string, slotID uuid.UUID) (*models.Hunt, error) {
	var hunt *models.Hunt
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		var err error
		_, hunt, err = lockSlotHunt(ctx, tx, ownerID, slotID)
		if err != nil {
			return err
		}
		if !hunt.IsActive() {
			return apperr.New(apperr.CodeHuntCompleted, "hunt is completed")
		}
		if err := tx.DeleteSlot(ctx, slotID); err != nil {
			return err
		}
		return recomputeTotals(ctx, tx, hunt)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("Slot deleted", "hunt", hunt.ID, "slot", slotID)
	s.notify(hunt.ID)
	return hunt, nil
}

func (s *HuntService) resolveImage(ctx context.Context, ownerID, name string, requested *string) *string {
	if requested != nil {
		if url := strings.TrimSpace(*requested); url != "" {
			return &url
		}
	}
	if s.opts.Catalog == nil {
		return nil
	}

	url, ok, err := s.opts.Catalog.LookupImage(ctx, ownerID, name)
	if err != nil {
		s.logger.Warn("Slot catalog lookup failed", "slot", name, "error", err)
		return nil
	}
	if !ok || url == "" {
		return nil
	}
	return &url
}

// lockSlotHunt resolves the slot, locks its hunt and re-reads the slot
// under the lock.
func lockSlotHunt(ctx context.Context, tx *repository.Repository, ownerID string, slotID uuid.UUID) (*models.Slot, *models.Hunt, error) {
	slot, err := tx.GetSlotByID(ctx, slotID)
	if err != nil {
		return nil, nil, err
	}
	hunt, err := lockOwnedHunt(ctx, tx, ownerID, slot.HuntID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil, nil, apperr.New(apperr.CodeSlotNotFound, "slot not found")
		}
		return nil, nil, err
	}
	slot, err = tx.GetSlotByID(ctx, slotID)
	if err != nil {
		return nil, nil, err
	}
	return slot, hunt, nil
}

// recomputeTotals rewrites the cached sums from the full slot set.
func recomputeTotals(ctx context.Context, tx *repository.Repository, hunt *models.Hunt) error {
	slots, err := tx.ListSlots(ctx, hunt.ID)
	if err != nil {
		return err
	}
	hunt.TotalCost, hunt.TotalResult = Totals(slots)
	return tx.UpdateHuntTotals(ctx, hunt)
}
