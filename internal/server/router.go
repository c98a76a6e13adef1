package server

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/yungbote/hermes-backend/internal/handlers"
	"github.com/yungbote/hermes-backend/internal/middleware"
	"github.com/yungbote/hermes-backend/internal/pkg/logger"
)

type RouterConfig struct {
	Log           *logger.Logger
	SearchHandler *handlers.SearchHandler
	AdminHandler  *handlers.AdminHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())
	router.Use(otelgin.Middleware("hermes-backend"))
	router.Use(middleware.AttachTraceContext())
	router.Use(middleware.RequestLogger(cfg.Log))

	router.GET("/health", handlers.Health)

	api := router.Group("/api/v1")
	{
		if cfg.SearchHandler != nil {
			api.POST("/search", cfg.SearchHandler.Search)
			api.GET("/search/session/:sessionId", cfg.SearchHandler.PaginateSession)
			api.GET("/search/session/:sessionId/filtered", cfg.SearchHandler.PaginateFiltered)
		}

		if cfg.AdminHandler != nil {
			admin := api.Group("/admin")
			admin.GET("/stats", cfg.AdminHandler.Stats)
			admin.GET("/features", cfg.AdminHandler.Features)
			admin.POST("/cache/clear", cfg.AdminHandler.ClearCache)
			admin.POST("/ingestion/reprocess", cfg.AdminHandler.ReprocessIngestion)
			admin.GET("/creators/similar", cfg.AdminHandler.SimilarCreators)
		}
	}

	return router
}
