package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/statforge/statforge-go/internal/utils"
)

// respondError maps an error to the standard failure envelope: client-side
// failures (validation, unknown strategy, insufficient data) become 400,
// everything else 500.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	if utils.IsClientError(err) {
		status = http.StatusBadRequest
	}
	c.JSON(status, gin.H{
		"success": false,
		"error":   err.Error(),
	})
}

func respondBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error":   "invalid request: " + err.Error(),
	})
}

func respondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}

// requestID returns the inbound X-Request-ID, generating one when absent.
func requestID(c *gin.Context) string {
	if id := c.GetHeader("X-Request-ID"); id != "" {
		return id
	}
	return uuid.NewString()
}
