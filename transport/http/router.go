package http

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/blgvbtc/poolauth/service"
)

// SetupRouter sets up the Gin router
func SetupRouter(authService *service.AuthService, info PoolInfo) *gin.Engine {
	router := gin.Default()
	router.Use(cors.Default())

	handlers := NewAuthHandlers(authService, info)

	// Auth routes
	auth := router.Group("/auth")
	{
		auth.POST("/challenge", handlers.Challenge)
		auth.POST("/verify", handlers.Verify)
		auth.POST("/poll", handlers.Poll)
	}

	// Public pool API
	api := router.Group("/api")
	{
		api.GET("/stats", handlers.Stats)
		api.GET("/system/status", handlers.SystemStatus)
		api.GET("/miner/:address", handlers.MinerStats)
		api.GET("/payouts/:address", handlers.Payouts)
	}

	// Session-protected API
	protected := router.Group("/api")
	protected.Use(AuthMiddleware(authService))
	{
		protected.GET("/me", handlers.Me)
		protected.POST("/miners/heartbeat", handlers.Heartbeat)
	}

	return router
}
