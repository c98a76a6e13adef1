package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/hermes-backend/internal/governor"
	"github.com/yungbote/hermes-backend/internal/jobs"
	"github.com/yungbote/hermes-backend/internal/pkg/logger"
	"github.com/yungbote/hermes-backend/internal/services"
)

type Services struct {
	QuotaGovernor governor.QuotaGovernor
	TokenGovernor governor.TokenGovernor

	Features  services.FeatureRegistry
	Enrichers []services.PlatformEnricher

	QueryCache     services.QueryCacheService
	QueryExpansion services.QueryExpansionService
	PlatformSearch services.PlatformSearchService
	Sessions       services.SessionService
	Ingestion      services.IngestionService
	VectorScoring  services.VectorScoringService
	Search         services.SearchService

	Sweeper *jobs.Sweeper
}

func wireServices(gdb *gorm.DB, log *logger.Logger, cfg Config, r Repos, c Clients) Services {
	log.Info("Wiring services...")

	quota := governor.NewQuotaGovernor(cfg.YouTubeDailyQuota, cfg.YouTubeDowngradeThreshold, log)
	tokens := governor.NewTokenGovernor(cfg.LLMDailyTokenBudget, cfg.LLMPerRequestBudget, cfg.LLMFallbackThreshold, log)

	features := services.NewFeatureRegistry(cfg.Features, log)
	enrichers := []services.PlatformEnricher{
		services.NewRedditEnricher(features, log),
	}

	queryCache := services.NewQueryCacheService(gdb, r.QueryCache, cfg.CacheL2TTL, log)
	expansion := services.NewQueryExpansionService(c.Cohere, tokens, queryCache, log)
	platformSearch := services.NewPlatformSearchService(c.YouTube, quota, cfg.MaxQueriesPerSearch, cfg.EnrichTopN, log)
	sessions := services.NewSessionService(gdb, r.Sessions, r.SessionResults, cfg.SessionTTL, cfg.SessionSliding, log)
	ingestion := services.NewIngestionService(r.Creators, c.Cohere, tokens, log)
	vectors := services.NewVectorScoringService(c.Cohere, tokens, r.Creators, r.QueryEmbeddings, log)
	search := services.NewSearchService(expansion, platformSearch, sessions, ingestion, cfg.MaxResultsPerQuery, log)

	sweeper := jobs.NewSweeper(sessions, queryCache, vectors, cfg.SweepInterval, log)

	return Services{
		QuotaGovernor:  quota,
		TokenGovernor:  tokens,
		Features:       features,
		Enrichers:      enrichers,
		QueryCache:     queryCache,
		QueryExpansion: expansion,
		PlatformSearch: platformSearch,
		Sessions:       sessions,
		Ingestion:      ingestion,
		VectorScoring:  vectors,
		Search:         search,
		Sweeper:        sweeper,
	}
}
