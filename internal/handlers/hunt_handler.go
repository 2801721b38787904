package handlers

import (
	"net/http"

	"bonus-hunt/internal/apperr"
	"bonus-hunt/internal/models"
	"bonus-hunt/internal/services"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type HuntHandler struct {
	huntService   *services.HuntService
	publicBaseURL string
	logger        *log.Logger
}

func NewHuntHandler(huntService *services.HuntService, publicBaseURL string, logger *log.Logger) *HuntHandler {
	return &HuntHandler{
		huntService:   huntService,
		publicBaseURL: publicBaseURL,
		logger:        logger.WithPrefix("http"),
	}
}

// WidgetURL is the public overlay address of a hunt.
func (h *HuntHandler) WidgetURL(huntID uuid.UUID) string {
	return h.publicBaseURL + "/widget/" + huntID.String()
}

// CreateHunt starts a new hunt for the operator
// POST /api/hunts
func (h *HuntHandler) CreateHunt(c *gin.Context) {
	ownerID, ok := requireOwner(c)
	if !ok {
		return
	}

	var req models.CreateHuntRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": apperr.CodeInvalidRequest})
		return
	}

	hunt, err := h.huntService.CreateHunt(c.Request.Context(), ownerID, &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"hunt":      hunt,
		"widgetUrl": h.WidgetURL(hunt.ID),
	})
}

// GetActiveHunt returns the operator's active hunt with slots and stats
// GET /api/hunts/active
func (h *HuntHandler) GetActiveHunt(c *gin.Context) {
	ownerID, ok := requireOwner(c)
	if !ok {
		return
	}

	state, err := h.huntService.GetActiveHunt(c.Request.Context(), ownerID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	state.WidgetURL = h.WidgetURL(state.Hunt.ID)

	c.JSON(http.StatusOK, state)
}

// StartOpening moves the hunt to the opening phase
// POST /api/hunts/:id/start
func (h *HuntHandler) StartOpening(c *gin.Context) {
	ownerID, ok := requireOwner(c)
	if !ok {
		return
	}
	huntID, ok := parseID(c, "id")
	if !ok {
		return
	}

	hunt, err := h.huntService.StartOpening(c.Request.Context(), ownerID, huntID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"hunt": hunt})
}

// CompleteHunt concludes the hunt
// POST /api/hunts/:id/complete
func (h *HuntHandler) CompleteHunt(c *gin.Context) {
	ownerID, ok := requireOwner(c)
	if !ok {
		return
	}
	huntID, ok := parseID(c, "id")
	if !ok {
		return
	}

	hunt, err := h.huntService.CompleteHunt(c.Request.Context(), ownerID, huntID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"hunt": hunt})
}

// AddSlot appends a slot to the hunt
// POST /api/hunts/:id/slots
func (h *HuntHandler) AddSlot(c *gin.Context) {
	ownerID, ok := requireOwner(c)
	if !ok {
		return
	}
	huntID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req models.AddSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": apperr.CodeInvalidRequest})
		return
	}

	slot, hunt, err := h.huntService.AddSlot(c.Request.Context(), ownerID, huntID, &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"slot": slot, "hunt": hunt})
}

// OpenSlot records a slot's payout
// POST /api/slots/:id/open
func (h *HuntHandler) OpenSlot(c *gin.Context) {
	ownerID, ok := requireOwner(c)
	if !ok {
		return
	}
	slotID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req models.OpenSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": apperr.CodeInvalidRequest})
		return
	}

	slot, hunt, err := h.huntService.OpenSlot(c.Request.Context(), ownerID, slotID, &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"slot": slot, "hunt": hunt})
}

// DeleteSlot removes a slot from its hunt
// DELETE /api/slots/:id
func (h *HuntHandler) DeleteSlot(c *gin.Context) {
	ownerID, ok := requireOwner(c)
	if !ok {
		return
	}
	slotID, ok := parseID(c, "id")
	if !ok {
		return
	}

	hunt, err := h.huntService.DeleteSlot(c.Request.Context(), ownerID, slotID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"hunt": hunt})
}
