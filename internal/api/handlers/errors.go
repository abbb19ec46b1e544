package handlers

import (
	"errors"
	"net/http"
	"strconv"

	apperrors "email-marketing-backend/internal/errors"
	"email-marketing-backend/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ErrorResponse represents a standard API error response
type ErrorResponse struct {
	Error   string            `json:"error" example:"error message"`
	Details map[string]string `json:"details,omitempty"`
}

// DataResponse wraps a single resource
type DataResponse struct {
	Data interface{} `json:"data"`
}

// StatusResponse reports the outcome of an operation without a body
type StatusResponse struct {
	Status string `json:"status" example:"deleted"`
}

// respondError maps an application error onto its HTTP status. Anything
// unclassified is logged and reported as a generic 500.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	body := ErrorResponse{Error: "Internal server error"}

	var vErr *apperrors.ValidationError
	switch {
	case errors.As(err, &vErr):
		status = http.StatusBadRequest
		body = ErrorResponse{Error: "Validation error", Details: vErr.Details()}
	case apperrors.IsAuthentication(err):
		status, body.Error = http.StatusUnauthorized, err.Error()
	case apperrors.IsAuthorization(err):
		status, body.Error = http.StatusForbidden, err.Error()
	case apperrors.IsNotFound(err):
		status, body.Error = http.StatusNotFound, err.Error()
	case apperrors.IsAlreadyExists(err), apperrors.IsConflict(err):
		status, body.Error = http.StatusConflict, err.Error()
	case apperrors.IsPrecondition(err):
		status, body.Error = http.StatusBadRequest, err.Error()
	case errors.Is(err, apperrors.ErrDeliveryFailed):
		status, body.Error = http.StatusBadGateway, err.Error()
	}

	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		logger.WithContext(c.Request.Context()).WithError(err).WithField("path", c.Request.URL.Path).Error("Request failed")
	}
	c.JSON(status, body)
}

// badRequest reports a malformed request
func badRequest(c *gin.Context, message string, err error) {
	body := ErrorResponse{Error: message}
	if err != nil {
		body.Details = map[string]string{"body": err.Error()}
	}
	c.JSON(http.StatusBadRequest, body)
}

// parseID reads a UUID path parameter, answering 400 when it is malformed
func parseID(c *gin.Context, param, entity string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid " + entity + " ID: invalid UUID format"})
		return uuid.Nil, false
	}
	return id, true
}

// pagination reads page and page_size; out-of-range values are clamped by the services
func pagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	return page, pageSize
}
