package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/driveschool-hub/scheduling-service/internal/models"
	"github.com/driveschool-hub/scheduling-service/internal/repositories"
	"github.com/driveschool-hub/scheduling-service/internal/services"
	"github.com/driveschool-hub/scheduling-service/internal/utils"
	"github.com/driveschool-hub/scheduling-service/internal/validator"
)

type ChangeRequestHandler struct {
	BaseHandler
	changeRequestService services.ChangeRequestService
	validator            *validator.Validator
}

func NewChangeRequestHandler(changeRequestService services.ChangeRequestService, validator *validator.Validator, logger utils.Logger) *ChangeRequestHandler {
	return &ChangeRequestHandler{
		BaseHandler:          NewBaseHandler(logger),
		changeRequestService: changeRequestService,
		validator:            validator,
	}
}

// FileChangeRequest opens an instructor change request for a course
// @Summary File change request
// @Description Files an instructor change request; a course carries at most one pending request
// @Tags instructor-changes
// @Accept json
// @Produce json
// @Param id path uint true "Course ID"
// @Param request body services.ChangeRequestCreateRequest true "Request data"
// @Success 201 {object} models.InstructorChangeRequest
// @Failure 409 {object} ErrorResponse
// @Router /courses/{id}/instructor-changes [post]
func (h *ChangeRequestHandler) FileChangeRequest(c *gin.Context) {
	courseID := h.parseIDParam(c, "id")
	if courseID == 0 {
		return
	}

	var req services.ChangeRequestCreateRequest
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

	request, err := h.changeRequestService.File(c.Request.Context(), actor, courseID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, request)
}

// ResolveChangeRequest approves or rejects a pending request
// @Summary Resolve change request
// @Description Approves or rejects a pending request; approval reassigns the course instructor
// @Tags instructor-changes
// @Accept json
// @Produce json
// @Param id path uint true "Request ID"
// @Param resolution body services.ChangeRequestResolveRequest true "Resolution"
// @Success 200 {object} models.InstructorChangeRequest
// @Failure 409 {object} ErrorResponse
// @Router /instructor-changes/{id}/resolve [post]
func (h *ChangeRequestHandler) ResolveChangeRequest(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	var req services.ChangeRequestResolveRequest
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

	request, err := h.changeRequestService.Resolve(c.Request.Context(), actor, id, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, request)
}

// GetChangeRequest retrieves one request
// @Summary Get change request
// @Tags instructor-changes
// @Produce json
// @Param id path uint true "Request ID"
// @Success 200 {object} models.InstructorChangeRequest
// @Failure 404 {object} ErrorResponse
// @Router /instructor-changes/{id} [get]
func (h *ChangeRequestHandler) GetChangeRequest(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	actor := h.getActor(c)
	if actor == nil {
		return
	}

	request, err := h.changeRequestService.Get(c.Request.Context(), actor, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, request)
}

// ListChangeRequests lists change requests
// @Summary List change requests
// @Tags instructor-changes
// @Produce json
// @Param status query string false "Request status"
// @Param course_id query uint false "Course ID"
// @Success 200 {object} services.ChangeRequestListResponse
// @Router /instructor-changes [get]
func (h *ChangeRequestHandler) ListChangeRequests(c *gin.Context) {
	actor := h.getActor(c)
	if actor == nil {
		return
	}

	filters := repositories.ChangeRequestFilters{
		Limit:     parseIntQuery(c, "limit", 20),
		Offset:    parseIntQuery(c, "offset", 0),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}

	if status := c.Query("status"); status != "" {
		requestStatus := models.ChangeRequestStatus(status)
		filters.Status = &requestStatus
	}
	if courseID := uint(parseIntQuery(c, "course_id", 0)); courseID != 0 {
		filters.CourseID = &courseID
	}

	requests, err := h.changeRequestService.List(c.Request.Context(), actor, filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, requests)
}
