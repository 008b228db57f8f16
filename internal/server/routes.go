package server

import (
	"github.com/gin-gonic/gin"
	"github.com/nulzo/atlas-api/internal/platform/logger"
	"github.com/nulzo/atlas-api/internal/server/middleware"
	v1 "github.com/nulzo/atlas-api/internal/server/v1"
)

func (s *Server) SetupRoutes() {
	s.router.Use(middleware.CORS(s.config.Server.CORSOrigins))
	s.router.Use(middleware.ErrorHandler(s.logger))

	health := v1.NewHealthHandler(s.service, s.version)
	s.router.GET("/health", health.Health)
	s.router.GET("/ready", health.Ready)

	limiter := middleware.NewRateLimiter(s.config.RateLimit.RequestsPerSecond, s.config.RateLimit.Burst, s.logger)

	api := s.router.Group("/v1")
	api.Use(limiter.Middleware(s.config.Server.APIKeys...))
	api.Use(middleware.Auth(s.config.Server.APIKeys))
	{
		models := v1.NewModelHandler(s.service)
		api.GET("/models", models.ListModels)

		itineraries := v1.NewItineraryHandler(s.service)
		api.POST("/itineraries/validate", itineraries.Validate)
		api.POST("/itineraries", itineraries.Create)

		chat := v1.NewChatHandler(s.service)
		api.POST("/chat/completions", chat.CreateCompletion)

		db := v1.NewDBHandler(s.service)
		api.GET("/db/:table", db.Query)
		api.POST("/db/:table", db.Insert)
	}

	admin := s.router.Group("/v1/admin")
	admin.Use(limiter.Middleware(s.config.Server.AdminKeys...))
	admin.Use(middleware.AdminAuth(s.config.Server.AdminKeys))
	{
		settings := v1.NewSettingsHandler(s.service)
		admin.GET("/settings", settings.Get)
		admin.PUT("/settings", settings.Update)
		admin.DELETE("/settings", settings.Reset)
		admin.GET("/audit", settings.Audit)

		level := gin.WrapH(logger.Level())
		admin.GET("/log-level", level)
		admin.PUT("/log-level", level)

		usage := v1.NewAnalyticsHandler(s.analytics)
		admin.GET("/usage", usage.GetUsage)
		admin.GET("/requests/:id", usage.GetRequest)
	}
}
