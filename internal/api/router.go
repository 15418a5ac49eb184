package api

import (
	"github.com/gin-gonic/gin"

	"github.com/tallyhq/tally/internal/api/middleware"
	v1 "github.com/tallyhq/tally/internal/api/v1"
)

type Handlers struct {
	Ingest    *v1.IngestHandler
	Analytics *v1.AnalyticsHandler
	Health    *v1.HealthHandler
}

func NewRouter(handlers Handlers) *gin.Engine {
	router := gin.Default()
	router.Use(middleware.RequestIDMiddleware)

	router.GET("/health", handlers.Health.Health)

	// SDK endpoints keep their historical single-letter paths: /i for
	// writes, /o for reads. Old SDKs send writes as GETs.
	router.GET("/i", handlers.Ingest.Track)
	router.POST("/i", handlers.Ingest.Track)
	router.GET("/o", handlers.Analytics.Fetch)

	return router
}
