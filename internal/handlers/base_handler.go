package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/driveschool-hub/scheduling-service/internal/services"
	"github.com/driveschool-hub/scheduling-service/internal/utils"
)

// ErrorResponse is the error payload for all endpoints
type ErrorResponse struct {
	Error   string      `json:"error"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// SuccessResponse wraps successful payloads
type SuccessResponse struct {
	Data interface{} `json:"data"`
}

type BaseHandler struct {
	logger utils.Logger
}

func NewBaseHandler(logger utils.Logger) BaseHandler {
	return BaseHandler{logger: logger}
}

func (h *BaseHandler) LogRequest(c *gin.Context, msg string, args ...any) {
	utils.LoggerFromContext(c.Request.Context()).Info(msg, args...)
}

// parseIDParam parses a numeric path parameter, writing the 400 itself.
// Returns 0 when parsing failed and the response is already sent.
func (h *BaseHandler) parseIDParam(c *gin.Context, name string) uint {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "bad_request",
			Message: "invalid " + name + " parameter",
		})
		return 0
	}
	return uint(id)
}

// getActor returns the authenticated actor set by the auth middleware.
func (h *BaseHandler) getActor(c *gin.Context) *services.Actor {
	value, exists := c.Get("actor")
	if !exists {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthorized",
			Message: "user not authenticated",
		})
		return nil
	}
	actor, ok := value.(*services.Actor)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthorized",
			Message: "invalid actor in context",
		})
		return nil
	}
	return actor
}

// handleServiceError maps service error kinds onto HTTP status codes.
func (h *BaseHandler) handleServiceError(c *gin.Context, err error) {
	kind := services.KindOf(err)

	status := http.StatusInternalServerError
	label := "internal_error"
	switch kind {
	case services.KindAccessDenied:
		status = http.StatusForbidden
		label = "forbidden"
	case services.KindNotFound:
		status = http.StatusNotFound
		label = "not_found"
	case services.KindConflict:
		status = http.StatusConflict
		label = "conflict"
	case services.KindInvalidState:
		status = http.StatusConflict
		label = "invalid_state"
	case services.KindExhausted:
		status = http.StatusUnprocessableEntity
		label = "hours_exhausted"
	case services.KindValidation:
		status = http.StatusBadRequest
		label = "validation_failed"
	case services.KindUpstream:
		status = http.StatusBadGateway
		label = "upstream_error"
	}

	if status == http.StatusInternalServerError || status == http.StatusBadGateway {
		h.logger.Error("service error", "error", err, "path", c.FullPath())
	}

	c.JSON(status, ErrorResponse{
		Error:   label,
		Message: err.Error(),
	})
}
