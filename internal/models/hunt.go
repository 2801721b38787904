package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func init() {
	// Money goes over the wire as JSON numbers, not quoted strings.
	decimal.MarshalJSONWithoutQuotes = true
}

type HuntStatus string

const (
	HuntStatusActive    HuntStatus = "active"
	HuntStatusCompleted HuntStatus = "completed"
)

type HuntPhase string

const (
	HuntPhaseCollecting HuntPhase = "collecting"
	HuntPhaseOpening    HuntPhase = "opening"
)

// HuntState is the lifecycle state derived from status and phase.
type HuntState string

const (
	HuntStateCollecting HuntState = "collecting"
	HuntStateOpening    HuntState = "opening"
	HuntStateCompleted  HuntState = "completed"
)

// DefaultHuntName is used when a hunt is created without a name.
const DefaultHuntName = "Bonus Hunt"

// Hunt is one tracked bonus hunt session owned by a single operator.
// TotalCost and TotalResult are caches of the slot sums and are only ever
// written by the ledger recomputation.
type Hunt struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerID     string          `gorm:"size:255;not null;index;uniqueIndex:idx_hunts_one_active_per_owner,where:status = 'active'" json:"ownerId"`
	Name        string          `gorm:"size:255;not null" json:"name"`
	Status      HuntStatus      `gorm:"size:20;not null;default:active;index" json:"status"`
	Phase       HuntPhase       `gorm:"size:20;not null;default:collecting" json:"phase"`
	StartAmount decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"startAmount"`
	TotalCost   decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"totalCost"`
	TotalResult decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"totalResult"`
	Slots       []Slot          `gorm:"foreignKey:HuntID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

func (Hunt) TableName() string {
	return "bonus_hunts"
}

func (h *Hunt) BeforeCreate(tx *gorm.DB) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	return nil
}

// State collapses status and phase into the three lifecycle states.
func (h *Hunt) State() HuntState {
	if h.Status == HuntStatusCompleted {
		return HuntStateCompleted
	}
	if h.Phase == HuntPhaseOpening {
		return HuntStateOpening
	}
	return HuntStateCollecting
}

func (h *Hunt) IsActive() bool {
	return h.Status == HuntStatusActive
}

// CreateHuntRequest represents a request to start a new hunt
type CreateHuntRequest struct {
	Name        string          `json:"name"`
	StartAmount decimal.Decimal `json:"startAmount"`
}

// HuntStateResponse is the full authoritative state of a hunt: the hunt
// row, its slots in order and the derived statistics.
type HuntStateResponse struct {
	Hunt      *Hunt  `json:"hunt"`
	Slots     []Slot `json:"slots"`
	Stats     Stats  `json:"stats"`
	WidgetURL string `json:"widgetUrl,omitempty"`
}
