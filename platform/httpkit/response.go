package httpkit

import (
	"net/http"

	"leadflow_backend/platform/apperr"

	"github.com/gin-gonic/gin"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

func JSON(c *gin.Context, status int, payload any) {
	c.JSON(status, payload)
}

func OK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// Error replies with status and a message. Handlers use it for request
// parsing failures that never reach a service.
func Error(c *gin.Context, status int, message string, details any) {
	c.JSON(status, ErrorResponse{Error: message, Details: details})
}

// HandleError writes err as a response and reports whether there was one.
// Typed errors keep their message and kind; anything else becomes an opaque
// 500 so driver text never reaches clients.
func HandleError(c *gin.Context, err error) bool {
	if err == nil {
		return false
	}
	if e, ok := apperr.As(err); ok {
		c.JSON(e.HTTPStatus(), ErrorResponse{Error: e.Message, Code: string(e.Kind), Details: e.Details})
		return true
	}
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error", Code: string(apperr.KindInternal)})
	return true
}
