package utils

import (
	"net/http"

	"spotfix-widget-service/internal/fault"

	"github.com/gin-gonic/gin"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	ErrorCode string      `json:"error_code"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}

// RespondWithError sends a standardized error response
func RespondWithError(c *gin.Context, statusCode int, errorCode, message string, details interface{}) {
	c.JSON(statusCode, ErrorResponse{
		ErrorCode: errorCode,
		Message:   message,
		Details:   details,
	})
}

// RespondWithBadRequest sends a 400 Bad Request error
func RespondWithBadRequest(c *gin.Context, message string, details interface{}) {
	RespondWithError(c, http.StatusBadRequest, "bad_request", message, details)
}

// RespondWithUnauthorized sends a 401 Unauthorized error
func RespondWithUnauthorized(c *gin.Context, message string) {
	RespondWithError(c, http.StatusUnauthorized, "unauthorized", message, nil)
}

// RespondWithForbidden sends a 403 Forbidden error
func RespondWithForbidden(c *gin.Context, message string) {
	RespondWithError(c, http.StatusForbidden, "forbidden", message, nil)
}

// RespondWithNotFound sends a 404 Not Found error
func RespondWithNotFound(c *gin.Context, message string) {
	RespondWithError(c, http.StatusNotFound, "not_found", message, nil)
}

// RespondWithInternalError sends a 500 Internal Server Error
func RespondWithInternalError(c *gin.Context, message string, details interface{}) {
	RespondWithError(c, http.StatusInternalServerError, "internal_error", message, details)
}

// RespondWithFault maps a classified error to the matching HTTP status. The
// message is shown verbatim in the admin UI, so it stays as produced.
func RespondWithFault(c *gin.Context, err error) {
	switch fault.KindOf(err) {
	case fault.KindValidation:
		RespondWithError(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case fault.KindConfiguration:
		RespondWithError(c, http.StatusConflict, "configuration_error", err.Error(), nil)
	case fault.KindTransport:
		RespondWithError(c, http.StatusBadGateway, "upstream_unreachable", err.Error(), nil)
	default:
		RespondWithError(c, http.StatusBadGateway, "upstream_error", err.Error(), nil)
	}
}
