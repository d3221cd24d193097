package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// JSON writes the standard response envelope used by every handler.
func JSON(c *gin.Context, message string, status int, data interface{}, errs []string) {
	if message == "" {
		message = http.StatusText(status)
	}
	c.JSON(status, gin.H{
		"message": message,
		"data":    data,
		"errors":  errs,
	})
}
