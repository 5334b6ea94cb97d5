package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/driveschool-hub/scheduling-service/internal/services"
	"github.com/driveschool-hub/scheduling-service/internal/utils"
	"github.com/driveschool-hub/scheduling-service/internal/validator"
)

type ExamHandler struct {
	BaseHandler
	examService services.ExamService
	validator   *validator.Validator
}

func NewExamHandler(examService services.ExamService, validator *validator.Validator, logger utils.Logger) *ExamHandler {
	return &ExamHandler{
		BaseHandler: NewBaseHandler(logger),
		examService: examService,
		validator:   validator,
	}
}

// ScheduleExam books an exam ride with its criteria checklist
// @Summary Schedule exam
// @Description Schedules a practical exam on a free slot; the criteria checklist comes from the category curriculum
// @Tags exams
// @Accept json
// @Produce json
// @Param exam body services.ExamScheduleRequest true "Exam data"
// @Success 201 {object} models.Exam
// @Failure 409 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /exams [post]
func (h *ExamHandler) ScheduleExam(c *gin.Context) {
	var req services.ExamScheduleRequest
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

	h.LogRequest(c, "Scheduling exam", "course_id", req.CourseID, "slot_id", req.SlotID)

	exam, err := h.examService.Schedule(c.Request.Context(), actor, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, exam)
}

// GradeCriterion records one criterion result
// @Summary Grade criterion
// @Description Grades one exam criterion; grading the last one resolves the exam
// @Tags exams
// @Accept json
// @Produce json
// @Param id path uint true "Exam ID"
// @Param criterion_id path uint true "Criterion ID"
// @Param grade body services.CriterionGradeRequest true "Grade"
// @Success 200 {object} models.Exam
// @Failure 409 {object} ErrorResponse
// @Router /exams/{id}/criteria/{criterion_id} [put]
func (h *ExamHandler) GradeCriterion(c *gin.Context) {
	examID := h.parseIDParam(c, "id")
	if examID == 0 {
		return
	}
	criterionID := h.parseIDParam(c, "criterion_id")
	if criterionID == 0 {
		return
	}

	var req services.CriterionGradeRequest
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

	exam, err := h.examService.GradeCriterion(c.Request.Context(), actor, examID, criterionID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, exam)
}

// CancelExam aborts an unresolved exam
// @Summary Cancel exam
// @Tags exams
// @Produce json
// @Param id path uint true "Exam ID"
// @Success 200 {object} models.Exam
// @Failure 409 {object} ErrorResponse
// @Router /exams/{id}/cancel [post]
func (h *ExamHandler) CancelExam(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	actor := h.getActor(c)
	if actor == nil {
		return
	}

	exam, err := h.examService.Cancel(c.Request.Context(), actor, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, exam)
}

// GetExam retrieves an exam with its criteria
// @Summary Get exam
// @Tags exams
// @Produce json
// @Param id path uint true "Exam ID"
// @Success 200 {object} models.Exam
// @Failure 404 {object} ErrorResponse
// @Router /exams/{id} [get]
func (h *ExamHandler) GetExam(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	actor := h.getActor(c)
	if actor == nil {
		return
	}

	exam, err := h.examService.Get(c.Request.Context(), actor, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, exam)
}

// ListExamsByCourse lists a course's exams
// @Summary List exams by course
// @Tags exams
// @Produce json
// @Param course_id path uint true "Course ID"
// @Success 200 {array} models.Exam
// @Router /courses/{id}/exams [get]
func (h *ExamHandler) ListExamsByCourse(c *gin.Context) {
	courseID := h.parseIDParam(c, "id")
	if courseID == 0 {
		return
	}

	actor := h.getActor(c)
	if actor == nil {
		return
	}

	exams, err := h.examService.ListByCourse(c.Request.Context(), actor, courseID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, exams)
}
