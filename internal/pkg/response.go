package pkg

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// APIResponse represents a standard API response
type APIResponse struct {
	Success   bool            `json:"success"`
	Message   string          `json:"message"`
	Data      interface{}     `json:"data,omitempty"`
	Error     *ErrorInfo      `json:"error,omitempty"`
	Meta      *PaginationMeta `json:"meta,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// ErrorInfo represents error information
type ErrorInfo struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// SuccessResponse sends a successful response
func SuccessResponse(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
}

// PaginatedResponse sends a successful list response with pagination metadata.
func PaginatedResponse(c *gin.Context, message string, data interface{}, meta *PaginationMeta) {
	c.JSON(http.StatusOK, APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Meta:      meta,
		Timestamp: time.Now().UTC(),
	})
}

// ErrorResponse sends an error response
func ErrorResponse(c *gin.Context, statusCode int, code, message string, details interface{}) {
	c.JSON(statusCode, APIResponse{
		Success: false,
		Message: "Request failed",
		Error: &ErrorInfo{
			Code:    code,
			Message: message,
			Details: details,
		},
		Timestamp: time.Now().UTC(),
	})
}

// HandleError maps any error to the appropriate response. Domain errors carry
// their own status codes; everything else is an internal error.
func HandleError(c *gin.Context, err error) {
	if appErr, ok := IsAppError(err); ok {
		var details interface{}
		if len(appErr.Details) > 0 {
			details = appErr.Details
		}
		ErrorResponse(c, appErr.StatusCode, appErr.Code, appErr.Message, details)
		return
	}
	if ve, ok := err.(ValidationErrors); ok {
		ErrorResponse(c, http.StatusBadRequest, ErrValidationFailed.Code, ErrValidationFailed.Message, ve)
		return
	}
	ErrorResponse(c, http.StatusInternalServerError, ErrInternalServer.Code, ErrInternalServer.Message, nil)
}

// UnauthorizedResponse sends a 401 response
func UnauthorizedResponse(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusUnauthorized, "UNAUTHORIZED", message, nil)
}
