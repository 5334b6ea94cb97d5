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

type CourseHandler struct {
	BaseHandler
	courseService services.CourseService
	reportService services.ReportService
	validator     *validator.Validator
}

func NewCourseHandler(courseService services.CourseService, reportService services.ReportService, validator *validator.Validator, logger utils.Logger) *CourseHandler {
	return &CourseHandler{
		BaseHandler:   NewBaseHandler(logger),
		courseService: courseService,
		reportService: reportService,
		validator:     validator,
	}
}

// PurchaseCourse creates a course from a confirmed payment
// @Summary Purchase course
// @Description Creates a course from a payment; replaying a transaction id returns the existing course
// @Tags courses
// @Accept json
// @Produce json
// @Param purchase body services.CoursePurchaseRequest true "Purchase data"
// @Success 201 {object} models.Course
// @Failure 400 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /courses [post]
func (h *CourseHandler) PurchaseCourse(c *gin.Context) {
	var req services.CoursePurchaseRequest
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

	h.LogRequest(c, "Processing course purchase", "transaction_id", req.TransactionID)

	course, err := h.courseService.Purchase(c.Request.Context(), actor, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, course)
}

// ApplyHourPackage credits extra hours onto a course
// @Summary Apply hour package
// @Description Credits hours from a confirmed payment; each transaction id credits at most once
// @Tags courses
// @Accept json
// @Produce json
// @Param id path uint true "Course ID"
// @Param package body services.HourPackageRequest true "Package data"
// @Success 200 {object} models.Course
// @Failure 400 {object} ErrorResponse
// @Router /courses/{id}/hours [post]
func (h *CourseHandler) ApplyHourPackage(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	var req services.HourPackageRequest
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

	course, err := h.courseService.ApplyHourPackage(c.Request.Context(), actor, id, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, course)
}

// ArchiveCourse closes a course
// @Summary Archive course
// @Tags courses
// @Produce json
// @Param id path uint true "Course ID"
// @Success 200 {object} models.Course
// @Failure 409 {object} ErrorResponse
// @Router /courses/{id}/archive [post]
func (h *CourseHandler) ArchiveCourse(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	actor := h.getActor(c)
	if actor == nil {
		return
	}

	course, err := h.courseService.Archive(c.Request.Context(), actor, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, course)
}

// GetCourse retrieves one course
// @Summary Get course
// @Tags courses
// @Produce json
// @Param id path uint true "Course ID"
// @Success 200 {object} models.Course
// @Failure 404 {object} ErrorResponse
// @Router /courses/{id} [get]
func (h *CourseHandler) GetCourse(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	actor := h.getActor(c)
	if actor == nil {
		return
	}

	course, err := h.courseService.Get(c.Request.Context(), actor, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, course)
}

// GetCourseProgress returns hour balance and ride/exam counters
// @Summary Get course progress
// @Tags courses
// @Produce json
// @Param id path uint true "Course ID"
// @Success 200 {object} repositories.CourseProgress
// @Failure 404 {object} ErrorResponse
// @Router /courses/{id}/progress [get]
func (h *CourseHandler) GetCourseProgress(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	actor := h.getActor(c)
	if actor == nil {
		return
	}

	progress, err := h.courseService.GetProgress(c.Request.Context(), actor, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, progress)
}

// ListCourses lists courses visible to the caller
// @Summary List courses
// @Tags courses
// @Produce json
// @Param category query string false "Licence category"
// @Param archived query bool false "Archived filter"
// @Success 200 {object} services.CourseListResponse
// @Router /courses [get]
func (h *CourseHandler) ListCourses(c *gin.Context) {
	actor := h.getActor(c)
	if actor == nil {
		return
	}

	filters := repositories.CourseFilters{
		Limit:     parseIntQuery(c, "limit", 20),
		Offset:    parseIntQuery(c, "offset", 0),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}

	if category := c.Query("category"); category != "" {
		cat := models.CourseCategory(category)
		filters.Category = &cat
	}
	if archived := c.Query("archived"); archived != "" {
		value := archived == "true"
		filters.Archived = &value
	}

	courses, err := h.courseService.List(c.Request.Context(), actor, filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, courses)
}

// ExportCourseHistory downloads the course history workbook
// @Summary Export course history
// @Description Exports the course summary, rides and exams as an XLSX workbook
// @Tags courses
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path uint true "Course ID"
// @Success 200 {file} binary
// @Failure 404 {object} ErrorResponse
// @Router /courses/{id}/export [get]
func (h *CourseHandler) ExportCourseHistory(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	actor := h.getActor(c)
	if actor == nil {
		return
	}

	data, filename, err := h.reportService.ExportCourseHistory(c.Request.Context(), actor, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}
