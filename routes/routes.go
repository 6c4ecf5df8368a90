package routes

import (
	"time"

	"bloomdispatch/handlers"
	"bloomdispatch/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// RegisterHealthRoute registers a health-check endpoint.
func RegisterHealthRoute(r *gin.Engine, hb *handlers.HandlerBundle) {
	r.GET("/health", hb.HealthHandler)
}

// RegisterBookingRoutes registers the public accept/decline endpoint.
func RegisterBookingRoutes(r *gin.Engine, hb *handlers.HandlerBundle, perMin int) {
	api := r.Group("/api/bookings")
	{
		api.Use(middleware.RateLimitMiddleware(perMin))
		api.GET("/respond", hb.RespondHandler)
		api.POST("/respond", hb.RespondHandler)
	}
}

// RegisterInternalRoutes registers operator endpoints behind the admin token.
func RegisterInternalRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	api := r.Group("/api/internal")
	{
		api.Use(middleware.AdminTokenMiddleware(hb.AdminToken))
		api.POST("/timeout-sweep", hb.RunSweepHandler)
	}
}

// RegisterRoutes wires CORS and every route group.
func RegisterRoutes(r *gin.Engine, hb *handlers.HandlerBundle, perMin int) {
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	RegisterHealthRoute(r, hb)
	RegisterBookingRoutes(r, hb, perMin)
	RegisterInternalRoutes(r, hb)
}
