package app

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/hermes-backend/internal/pkg/logger"
	"github.com/yungbote/hermes-backend/internal/server"
)

func wireRouter(log *logger.Logger, h Handlers) *gin.Engine {
	return server.NewRouter(server.RouterConfig{
		Log:           log,
		SearchHandler: h.Search,
		AdminHandler:  h.Admin,
	})
}
