package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type SlotStatus string

const (
	SlotStatusPending SlotStatus = "pending"
	SlotStatusOpened  SlotStatus = "opened"
)

// Slot is one pre-bought bonus round inside a hunt. Result is NULL while
// the slot is pending. Order is a sort key; gaps left by deletions are
// never renumbered.
type Slot struct {
	ID        uuid.UUID           `gorm:"type:uuid;primaryKey" json:"id"`
	HuntID    uuid.UUID           `gorm:"type:uuid;not null;uniqueIndex:idx_slots_hunt_order,priority:1" json:"huntId"`
	Name      string              `gorm:"column:slot_name;size:255;not null" json:"name"`
	BetSize   decimal.Decimal     `gorm:"type:decimal(18,2);not null" json:"betSize"`
	Result    decimal.NullDecimal `gorm:"type:decimal(18,2)" json:"result"`
	Status    SlotStatus          `gorm:"size:20;not null;default:pending" json:"status"`
	Order     int                 `gorm:"column:slot_order;not null;uniqueIndex:idx_slots_hunt_order,priority:2" json:"order"`
	IsSuper   bool                `gorm:"not null;default:false" json:"isSuper"`
	IsExtreme bool                `gorm:"not null;default:false" json:"isExtreme"`
	ImageURL  *string             `gorm:"size:1000" json:"imageUrl"`
	CreatedAt time.Time           `json:"createdAt"`
}

func (Slot) TableName() string {
	return "slots"
}

func (s *Slot) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

func (s *Slot) IsOpened() bool {
	return s.Status == SlotStatusOpened
}

// AddSlotRequest represents a request to add a slot to a hunt
type AddSlotRequest struct {
	Name     string          `json:"name"`
	BetSize  decimal.Decimal `json:"betSize"`
	ImageURL *string         `json:"imageUrl"`
}

// OpenSlotRequest records the payout of a pending slot
type OpenSlotRequest struct {
	Result    *decimal.Decimal `json:"result" binding:"required"`
	IsSuper   bool             `json:"isSuper"`
	IsExtreme bool             `json:"isExtreme"`
}
