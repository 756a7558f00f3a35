package dto

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorResponse carries a stable machine-readable code alongside the
// human-readable message. Clients dispatch on Code, never on Message.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

func JsonError(c *gin.Context, status int, message ...string) {
	msg := ""
	if len(message) > 0 {
		msg = message[0]
	}

	c.JSON(status, ErrorResponse{
		Error:   http.StatusText(status),
		Message: msg,
	})
}

func JsonErrorCode(c *gin.Context, status int, code, message string) {
	c.JSON(status, ErrorResponse{
		Error:   http.StatusText(status),
		Code:    code,
		Message: message,
	})
}
