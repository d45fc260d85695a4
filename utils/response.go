package utils

import (
	"github.com/gin-gonic/gin"
)

// Envelope is the uniform body shape of every API response. Success bodies
// carry Data; error bodies carry Error. Status always repeats the HTTP code.
type Envelope struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// JSONResponse sends a structured JSON success response
func JSONResponse(c *gin.Context, status int, data any, message string) {
	c.JSON(status, Envelope{
		Status:  status,
		Message: message,
		Data:    data,
	})
}

// JSONError sends a structured error response
func JSONError(c *gin.Context, status int, err error, message string) {
	c.JSON(status, Envelope{
		Status:  status,
		Message: message,
		Error:   err.Error(),
	})
}
