package services

import (
	"context"
	"strings"

	"bonus-hunt/internal/apperr"
	"bonus-hunt/internal/models"
	"bonus-hunt/internal/repository"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	// moneyPlaces matches the decimal(18,2) columns.
	moneyPlaces = 2

	// Exponent bounds checked before any arithmetic. Rounding a value like
	// 1e200000000 materialises every digit.
	maxMoneyExponent = 16
	minMoneyExponent = -18
)

// maxMoney is the first amount that no longer fits decimal(18,2).
var maxMoney = decimal.New(1, 16)

// normalizeMoney bounds an amount to the storable range and rounds it to
// cents.
func normalizeMoney(field string, amount decimal.Decimal) (decimal.Decimal, error) {
	exp := amount.Exponent()
	if exp > maxMoneyExponent || exp < minMoneyExponent || amount.Abs().GreaterThanOrEqual(maxMoney) {
		return decimal.Zero, apperr.New(apperr.CodeAmountOutOfRange, field+" is out of range")
	}
	return amount.Round(moneyPlaces), nil
}

// Notifier is told about every committed change to a hunt.
type Notifier interface {
	Notify(huntID uuid.UUID) int
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(huntID uuid.UUID) int

func (f NotifierFunc) Notify(huntID uuid.UUID) int {
	return f(huntID)
}

// SlotCatalog resolves a display image for a slot name. It is an external
// collaborator; a nil catalog disables the lookup.
type SlotCatalog interface {
	LookupImage(ctx context.Context, ownerID, slotName string) (string, bool, error)
}

// HuntOptions configures the hunt lifecycle policies.
type HuntOptions struct {
	// AllowSlotsWhileOpening lets operators keep adding slots after the
	// hunt moved to the opening phase.
	AllowSlotsWhileOpening bool
	Catalog                SlotCatalog
}

// HuntService owns the hunt state machine and the slot ledger. Every
// mutation runs in one transaction with the hunt row locked, recomputes the
// cached totals from the full slot set and notifies subscribers after
// commit.
type HuntService struct {
	repo     *repository.Repository
	notifier Notifier
	opts     HuntOptions
	logger   *log.Logger
}

func NewHuntService(repo *repository.Repository, notifier Notifier, logger *log.Logger, opts HuntOptions) *HuntService {
	return &HuntService{
		repo:     repo,
		notifier: notifier,
		opts:     opts,
		logger:   logger.WithPrefix("hunts"),
	}
}

// CreateHunt starts a new hunt in the collecting phase. An owner can have
// at most one active hunt.
func (s *HuntService) CreateHunt(ctx context.Context, ownerID string, req *models.CreateHuntRequest) (*models.Hunt, error) {
	if ownerID == "" {
		return nil, apperr.New(apperr.CodeInvalidRequest, "owner is required")
	}

	startAmount, err := normalizeMoney("start amount", req.StartAmount)
	if err != nil {
		return nil, err
	}
	if startAmount.IsNegative() {
		return nil, apperr.New(apperr.CodeHuntNegativeStartAmount, "start amount cannot be negative")
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = models.DefaultHuntName
	}

	hunt := &models.Hunt{
		ID:          uuid.New(),
		OwnerID:     ownerID,
		Name:        name,
		Status:      models.HuntStatusActive,
		Phase:       models.HuntPhaseCollecting,
		StartAmount: startAmount,
		TotalCost:   decimal.Zero,
		TotalResult: decimal.Zero,
	}

	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		_, err := tx.GetActiveHuntByOwner(ctx, ownerID)
		if err == nil {
			return apperr.New(apperr.CodeActiveHuntExists, "complete the current hunt before starting a new one")
		}
		if !apperr.IsNotFound(err) {
			return err
		}
		return tx.CreateHunt(ctx, hunt)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Hunt created", "hunt", hunt.ID, "owner", ownerID, "start", startAmount)
	s.notify(hunt.ID)
	return hunt, nil
}

// StartOpening moves a collecting hunt with at least one slot to the
// opening phase. The move is irreversible.
func (s *HuntService) StartOpening(ctx context.Context, ownerID string, huntID uuid.UUID) (*models.Hunt, error) {
	var hunt *models.Hunt
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		var err error
		hunt, err = lockOwnedHunt(ctx, tx, ownerID, huntID)
		if err != nil {
			return err
		}

		switch hunt.State() {
		case models.HuntStateCompleted:
			return apperr.New(apperr.CodeHuntCompleted, "hunt is already completed")
		case models.HuntStateOpening:
			return apperr.New(apperr.CodeHuntNotCollecting, "hunt is already opening")
		}

		slots, err := tx.ListSlots(ctx, hunt.ID)
		if err != nil {
			return err
		}
		if len(slots) == 0 {
			return apperr.New(apperr.CodeHuntHasNoSlots, "add at least one slot before starting the hunt")
		}

		hunt.Phase = models.HuntPhaseOpening
		return tx.UpdateHuntState(ctx, hunt)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Hunt opening", "hunt", hunt.ID)
	s.notify(hunt.ID)
	return hunt, nil
}

// CompleteHunt closes an active hunt. Completed is terminal.
func (s *HuntService) CompleteHunt(ctx context.Context, ownerID string, huntID uuid.UUID) (*models.Hunt, error) {
	var hunt *models.Hunt
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		var err error
		hunt, err = lockOwnedHunt(ctx, tx, ownerID, huntID)
		if err != nil {
			return err
		}
		if !hunt.IsActive() {
			return apperr.New(apperr.CodeHuntCompleted, "hunt is already completed")
		}

		hunt.Status = models.HuntStatusCompleted
		return tx.UpdateHuntState(ctx, hunt)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Hunt completed", "hunt", hunt.ID, "cost", hunt.TotalCost, "result", hunt.TotalResult)
	s.notify(hunt.ID)
	return hunt, nil
}

// GetActiveHunt returns the full state of the owner's active hunt.
func (s *HuntService) GetActiveHunt(ctx context.Context, ownerID string) (*models.HuntStateResponse, error) {
	hunt, err := s.repo.GetActiveHuntByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return s.withSlots(ctx, hunt)
}

// GetHuntState returns the full state of any hunt. It is the one-shot
// fetch behind the public widget and performs no ownership check.
func (s *HuntService) GetHuntState(ctx context.Context, huntID uuid.UUID) (*models.HuntStateResponse, error) {
	hunt, err := s.repo.GetHuntByID(ctx, huntID)
	if err != nil {
		return nil, err
	}
	return s.withSlots(ctx, hunt)
}

// withSlots loads the slots and derives the totals from them so the
// response is self-consistent even if a write landed between the reads.
func (s *HuntService) withSlots(ctx context.Context, hunt *models.Hunt) (*models.HuntStateResponse, error) {
	slots, err := s.repo.ListSlots(ctx, hunt.ID)
	if err != nil {
		return nil, err
	}
	slots = SortSlots(slots)
	hunt.TotalCost, hunt.TotalResult = Totals(slots)

	return &models.HuntStateResponse{
		Hunt:  hunt,
		Slots: slots,
		Stats: ComputeStats(hunt.StartAmount, slots),
	}, nil
}

func (s *HuntService) notify(huntID uuid.UUID) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(huntID)
}

// lockOwnedHunt locks the hunt row; hunts of other owners look missing.
func lockOwnedHunt(ctx context.Context, tx *repository.Repository, ownerID string, huntID uuid.UUID) (*models.Hunt, error) {
	hunt, err := tx.LockHunt(ctx, huntID)
	if err != nil {
		return nil, err
	}
	if hunt.OwnerID != ownerID {
		return nil, apperr.New(apperr.CodeHuntNotFound, "hunt not found")
	}
	return hunt, nil
}
