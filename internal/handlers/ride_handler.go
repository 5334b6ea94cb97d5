package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/driveschool-hub/scheduling-service/internal/models"
	"github.com/driveschool-hub/scheduling-service/internal/repositories"
	"github.com/driveschool-hub/scheduling-service/internal/services"
	"github.com/driveschool-hub/scheduling-service/internal/utils"
	"github.com/driveschool-hub/scheduling-service/internal/validator"
)

type RideHandler struct {
	BaseHandler
	rideService services.RideService
	validator   *validator.Validator
}

func NewRideHandler(rideService services.RideService, validator *validator.Validator, logger utils.Logger) *RideHandler {
	return &RideHandler{
		BaseHandler: NewBaseHandler(logger),
		rideService: rideService,
		validator:   validator,
	}
}

// BookRide claims a slot for a practice ride
// @Summary Book ride
// @Description Books a free slot for a course; exactly one of two concurrent bookings wins
// @Tags rides
// @Accept json
// @Produce json
// @Param ride body services.RideBookRequest true "Booking data"
// @Success 201 {object} models.Ride
// @Failure 409 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /rides [post]
func (h *RideHandler) BookRide(c *gin.Context) {
	var req services.RideBookRequest
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

	h.LogRequest(c, "Booking ride", "course_id", req.CourseID, "slot_id", req.SlotID)

	ride, err := h.rideService.Book(c.Request.Context(), actor, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, ride)
}

// StartRide moves a scheduled ride to in-progress
// @Summary Start ride
// @Tags rides
// @Produce json
// @Param id path uint true "Ride ID"
// @Success 200 {object} models.Ride
// @Failure 409 {object} ErrorResponse
// @Router /rides/{id}/start [post]
func (h *RideHandler) StartRide(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	actor := h.getActor(c)
	if actor == nil {
		return
	}

	ride, err := h.rideService.Start(c.Request.Context(), actor, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, ride)
}

// CompleteRide finishes a ride and consumes course hours
// @Summary Complete ride
// @Description Completes a ride; consumed hours default to the slot duration
// @Tags rides
// @Accept json
// @Produce json
// @Param id path uint true "Ride ID"
// @Param completion body services.RideCompleteRequest false "Completion data"
// @Success 200 {object} models.Ride
// @Failure 409 {object} ErrorResponse
// @Router /rides/{id}/complete [post]
func (h *RideHandler) CompleteRide(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	var req services.RideCompleteRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "bad_request",
				Message: "Invalid request payload",
				Details: err.Error(),
			})
			return
		}
	}

	actor := h.getActor(c)
	if actor == nil {
		return
	}

	ride, err := h.rideService.Complete(c.Request.Context(), actor, id, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, ride)
}

// CancelRide aborts a scheduled ride and frees its slot
// @Summary Cancel ride
// @Tags rides
// @Produce json
// @Param id path uint true "Ride ID"
// @Success 200 {object} models.Ride
// @Failure 409 {object} ErrorResponse
// @Router /rides/{id}/cancel [post]
func (h *RideHandler) CancelRide(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	actor := h.getActor(c)
	if actor == nil {
		return
	}

	ride, err := h.rideService.Cancel(c.Request.Context(), actor, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, ride)
}

// GetRide retrieves one ride
// @Summary Get ride
// @Tags rides
// @Produce json
// @Param id path uint true "Ride ID"
// @Success 200 {object} models.Ride
// @Failure 404 {object} ErrorResponse
// @Router /rides/{id} [get]
func (h *RideHandler) GetRide(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	actor := h.getActor(c)
	if actor == nil {
		return
	}

	ride, err := h.rideService.Get(c.Request.Context(), actor, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, ride)
}

// ListRides lists rides
// @Summary List rides
// @Tags rides
// @Produce json
// @Param course_id query uint false "Course ID"
// @Param status query string false "Ride status"
// @Success 200 {object} services.RideListResponse
// @Router /rides [get]
func (h *RideHandler) ListRides(c *gin.Context) {
	actor := h.getActor(c)
	if actor == nil {
		return
	}

	filters := repositories.RideFilters{
		Limit:  parseIntQuery(c, "limit", 20),
		Offset: parseIntQuery(c, "offset", 0),
	}

	if courseID := uint(parseIntQuery(c, "course_id", 0)); courseID != 0 {
		filters.CourseID = &courseID
	}
	if status := c.Query("status"); status != "" {
		rideStatus := models.RideStatus(status)
		filters.Status = &rideStatus
	}
	if from, err := time.Parse(time.RFC3339, c.Query("from")); err == nil {
		filters.DateFrom = &from
	}
	if to, err := time.Parse(time.RFC3339, c.Query("to")); err == nil {
		filters.DateTo = &to
	}

	rides, err := h.rideService.List(c.Request.Context(), actor, filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, rides)
}
