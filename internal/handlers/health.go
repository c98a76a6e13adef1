package handlers

import (
	"github.com/gin-gonic/gin"
)

// Health is the liveness probe.
func Health(c *gin.Context) {
	RespondOK(c, gin.H{"status": "healthy"})
}
