package handlers

import (
	"net/http"

	"bloomdispatch/utils"

	"github.com/gin-gonic/gin"
)

// HealthHandler reports the last background check of Mongo and Redis.
func HealthHandler(c *gin.Context) {
	h := utils.GetHealthStatus()
	status := http.StatusOK
	state := "ok"
	if !h.Mongo || !h.Redis {
		status = http.StatusServiceUnavailable
		state = "degraded"
	}
	c.JSON(status, gin.H{"status": state, "checks": h})
}
