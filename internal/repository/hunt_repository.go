package repository

import (
	"context"
	"database/sql"
	"errors"

	"bonus-hunt/internal/apperr"
	"bonus-hunt/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Transaction runs fn inside a database transaction. The repository handed
// to fn is bound to the transaction; fn must not use the outer repository.
func (r *Repository) Transaction(ctx context.Context, fn func(tx *Repository) error) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repository{db: tx})
	})
	if err == nil {
		return nil
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	return apperr.Store("transaction failed", err)
}

// CreateHunt inserts a new hunt
func (r *Repository) CreateHunt(ctx context.Context, hunt *models.Hunt) error {
	err := r.db.WithContext(ctx).Create(hunt).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperr.New(apperr.CodeActiveHuntExists, "an active hunt already exists for this owner")
	}
	if err != nil {
		return apperr.Store("failed to create hunt", err)
	}
	return nil
}

// GetHuntByID retrieves a hunt by ID
func (r *Repository) GetHuntByID(ctx context.Context, huntID uuid.UUID) (*models.Hunt, error) {
	var hunt models.Hunt
	err := r.db.WithContext(ctx).Where("id = ?", huntID).First(&hunt).Error
	if err != nil {
		return nil, huntLookupError(err)
	}
	return &hunt, nil
}

// LockHunt retrieves a hunt and locks its row until the transaction ends.
// sqlite ignores the locking clause and serializes writers instead.
func (r *Repository) LockHunt(ctx context.Context, huntID uuid.UUID) (*models.Hunt, error) {
	var hunt models.Hunt
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", huntID).
		First(&hunt).Error
	if err != nil {
		return nil, huntLookupError(err)
	}
	return &hunt, nil
}

// GetActiveHuntByOwner returns the single active hunt of an owner
func (r *Repository) GetActiveHuntByOwner(ctx context.Context, ownerID string) (*models.Hunt, error) {
	var hunts []models.Hunt
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND status = ?", ownerID, models.HuntStatusActive).
		Limit(2).
		Find(&hunts).Error
	if err != nil {
		return nil, apperr.Store("failed to load active hunt", err)
	}

	switch len(hunts) {
	case 0:
		return nil, apperr.New(apperr.CodeHuntNotFound, "no active hunt")
	case 1:
		return &hunts[0], nil
	default:
		// The partial unique index makes this unreachable on a migrated schema.
		return nil, apperr.Store("owner has more than one active hunt", errors.New("active hunt invariant violated"))
	}
}

// UpdateHuntState persists status and phase
func (r *Repository) UpdateHuntState(ctx context.Context, hunt *models.Hunt) error {
	err := r.db.WithContext(ctx).
		Model(hunt).
		Select("status", "phase", "updated_at").
		Updates(hunt).Error
	if err != nil {
		return apperr.Store("failed to update hunt", err)
	}
	return nil
}

// UpdateHuntTotals persists the cached slot sums
func (r *Repository) UpdateHuntTotals(ctx context.Context, hunt *models.Hunt) error {
	err := r.db.WithContext(ctx).
		Model(hunt).
		Select("total_cost", "total_result", "updated_at").
		Updates(hunt).Error
	if err != nil {
		return apperr.Store("failed to update hunt totals", err)
	}
	return nil
}

// ListSlots returns the slots of a hunt ordered by slot_order
func (r *Repository) ListSlots(ctx context.Context, huntID uuid.UUID) ([]models.Slot, error) {
	slots := []models.Slot{}
	err := r.db.WithContext(ctx).
		Where("hunt_id = ?", huntID).
		Order("slot_order ASC").
		Find(&slots).Error
	if err != nil {
		return nil, apperr.Store("failed to load slots", err)
	}
	return slots, nil
}

// NextSlotOrder returns max(slot_order)+1 for a hunt, or 0 when it is empty
func (r *Repository) NextSlotOrder(ctx context.Context, huntID uuid.UUID) (int, error) {
	var maxOrder sql.NullInt64
	err := r.db.WithContext(ctx).
		Model(&models.Slot{}).
		Where("hunt_id = ?", huntID).
		Select("MAX(slot_order)").
		Scan(&maxOrder).Error
	if err != nil {
		return 0, apperr.Store("failed to read slot order", err)
	}
	if !maxOrder.Valid {
		return 0, nil
	}
	return int(maxOrder.Int64) + 1, nil
}

// GetSlotByID retrieves a slot by ID
func (r *Repository) GetSlotByID(ctx context.Context, slotID uuid.UUID) (*models.Slot, error) {
	var slot models.Slot
	err := r.db.WithContext(ctx).Where("id = ?", slotID).First(&slot).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.New(apperr.CodeSlotNotFound, "slot not found")
	}
	if err != nil {
		return nil, apperr.Store("failed to load slot", err)
	}
	return &slot, nil
}

// CreateSlot inserts a slot
func (r *Repository) CreateSlot(ctx context.Context, slot *models.Slot) error {
	if err := r.db.WithContext(ctx).Create(slot).Error; err != nil {
		return apperr.Store("failed to create slot", err)
	}
	return nil
}

// UpdateSlotOutcome persists the opening of a slot
func (r *Repository) UpdateSlotOutcome(ctx context.Context, slot *models.Slot) error {
	err := r.db.WithContext(ctx).
		Model(slot).
		Select("status", "result", "is_super", "is_extreme").
		Updates(slot).Error
	if err != nil {
		return apperr.Store("failed to update slot", err)
	}
	return nil
}

// DeleteSlot removes a slot
func (r *Repository) DeleteSlot(ctx context.Context, slotID uuid.UUID) error {
	res := r.db.WithContext(ctx).Where("id = ?", slotID).Delete(&models.Slot{})
	if res.Error != nil {
		return apperr.Store("failed to delete slot", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.New(apperr.CodeSlotNotFound, "slot not found")
	}
	return nil
}

func huntLookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.New(apperr.CodeHuntNotFound, "hunt not found")
	}
	return apperr.Store("failed to load hunt", err)
}
