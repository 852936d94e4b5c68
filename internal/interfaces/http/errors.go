package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/internflow/internal/domain/workflow"
)

// Error codes returned in ErrorBody.Code
const (
	CodeValidation      = "VALIDATION_ERROR"
	CodeUnauthenticated = "UNAUTHENTICATED"
	CodeForbidden       = "FORBIDDEN"
	CodeNotFound        = "NOT_FOUND"
	CodeInvalidState    = "INVALID_STATE"
	CodeConfiguration   = "CONFIGURATION_ERROR"
	CodeInternal        = "INTERNAL_ERROR"
)

// ErrorBody is the error object of a failed Response
type ErrorBody struct {
	Code    string                `json:"code"`
	Message string                `json:"message"`
	Details []workflow.FieldError `json:"details,omitempty"`
}

// HTTPStatus returns the status code and error code for an error
func HTTPStatus(err error) (int, string) {
	switch {
	case errors.Is(err, workflow.ErrValidation):
		return http.StatusBadRequest, CodeValidation
	case errors.Is(err, workflow.ErrUnauthenticated):
		return http.StatusUnauthorized, CodeUnauthenticated
	case errors.Is(err, workflow.ErrForbidden):
		return http.StatusForbidden, CodeForbidden
	case errors.Is(err, workflow.ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, workflow.ErrInvalidState):
		return http.StatusConflict, CodeInvalidState
	case errors.Is(err, workflow.ErrConfiguration):
		return http.StatusUnprocessableEntity, CodeConfiguration
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

// writeError maps err onto a response. Internal errors are logged and their
// message is not exposed.
func (h *Handlers) writeError(c *gin.Context, err error) {
	status, code := HTTPStatus(err)
	body := &ErrorBody{Code: code, Message: err.Error()}

	var verr *workflow.ValidationError
	if errors.As(err, &verr) {
		body.Details = verr.Fields
	}
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
		body.Message = "internal error"
	}

	c.AbortWithStatusJSON(status, Response{Success: false, Error: body})
}

func badRequest(field, message string) error {
	return workflow.NewValidationError(field, message)
}
