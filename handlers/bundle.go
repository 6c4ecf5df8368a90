package handlers

import "github.com/gin-gonic/gin"

// HandlerBundle groups the endpoint handlers registered on the router.
type HandlerBundle struct {
	// Provider response links
	RespondHandler gin.HandlerFunc

	// Internal endpoints
	RunSweepHandler gin.HandlerFunc
	HealthHandler   gin.HandlerFunc

	AdminToken string
}
