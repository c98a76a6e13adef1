package app

import (
	"github.com/yungbote/hermes-backend/internal/handlers"
	"github.com/yungbote/hermes-backend/internal/pkg/logger"
)

type Handlers struct {
	Search *handlers.SearchHandler
	Admin  *handlers.AdminHandler
}

func wireHandlers(log *logger.Logger, s Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Search: handlers.NewSearchHandler(s.Search, s.Sessions, log),
		Admin: handlers.NewAdminHandler(
			s.Sessions,
			s.QueryCache,
			s.PlatformSearch,
			s.Ingestion,
			s.VectorScoring,
			s.Features,
			s.QuotaGovernor,
			s.TokenGovernor,
			s.Enrichers,
			log,
		),
	}
}
