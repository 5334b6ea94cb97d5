package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/driveschool-hub/scheduling-service/internal/repositories"
	"github.com/driveschool-hub/scheduling-service/internal/services"
	"github.com/driveschool-hub/scheduling-service/internal/utils"
	"github.com/driveschool-hub/scheduling-service/internal/validator"
)

type SlotHandler struct {
	BaseHandler
	slotService services.SlotService
	validator   *validator.Validator
}

func NewSlotHandler(slotService services.SlotService, validator *validator.Validator, logger utils.Logger) *SlotHandler {
	return &SlotHandler{
		BaseHandler: NewBaseHandler(logger),
		slotService: slotService,
		validator:   validator,
	}
}

// CreateSlot publishes an availability window
// @Summary Publish slot
// @Description Publishes an instructor availability window for booking
// @Tags slots
// @Accept json
// @Produce json
// @Param slot body services.SlotCreateRequest true "Slot data"
// @Success 201 {object} models.RideSlot
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /slots [post]
func (h *SlotHandler) CreateSlot(c *gin.Context) {
	var req services.SlotCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "bad_request",
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	actor := h.getActor(c)
	if actor == nil {
		return
	}

	slot, err := h.slotService.Publish(c.Request.Context(), actor, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, slot)
}

// DeleteSlot withdraws a free slot
// @Summary Delete slot
// @Description Withdraws a free availability window
// @Tags slots
// @Produce json
// @Param id path uint true "Slot ID"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /slots/{id} [delete]
func (h *SlotHandler) DeleteSlot(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	actor := h.getActor(c)
	if actor == nil {
		return
	}

	if err := h.slotService.Delete(c.Request.Context(), actor, id); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// GetSlot retrieves one slot
// @Summary Get slot
// @Tags slots
// @Produce json
// @Param id path uint true "Slot ID"
// @Success 200 {object} models.RideSlot
// @Failure 404 {object} ErrorResponse
// @Router /slots/{id} [get]
func (h *SlotHandler) GetSlot(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	actor := h.getActor(c)
	if actor == nil {
		return
	}

	slot, err := h.slotService.Get(c.Request.Context(), actor, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, slot)
}

// ListSlots lists availability windows
// @Summary List slots
// @Description Lists slots, filterable by instructor, occupancy and window
// @Tags slots
// @Produce json
// @Param instructor_id query string false "Instructor ID"
// @Param free query bool false "Only free slots"
// @Param from query string false "Window start (RFC3339)"
// @Param to query string false "Window end (RFC3339)"
// @Success 200 {array} models.RideSlot
// @Router /slots [get]
func (h *SlotHandler) ListSlots(c *gin.Context) {
	actor := h.getActor(c)
	if actor == nil {
		return
	}

	filters := repositories.SlotFilters{
		Limit:  parseIntQuery(c, "limit", 20),
		Offset: parseIntQuery(c, "offset", 0),
	}

	if instructorID := c.Query("instructor_id"); instructorID != "" {
		filters.InstructorID = &instructorID
	}
	if free, err := strconv.ParseBool(c.Query("free")); err == nil {
		filters.OnlyFree = free
	}
	if from, err := time.Parse(time.RFC3339, c.Query("from")); err == nil {
		filters.From = &from
	}
	if to, err := time.Parse(time.RFC3339, c.Query("to")); err == nil {
		filters.To = &to
	}

	slots, err := h.slotService.List(c.Request.Context(), actor, filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, slots)
}

func parseIntQuery(c *gin.Context, name string, fallback int) int {
	if raw := c.Query(name); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			return v
		}
	}
	return fallback
}
