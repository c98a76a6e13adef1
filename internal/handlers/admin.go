package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/hermes-backend/internal/governor"
	"github.com/yungbote/hermes-backend/internal/pkg/logger"
	"github.com/yungbote/hermes-backend/internal/services"
)

const (
	defaultReprocessLimit = 50
	defaultSimilarLimit   = 10
)

// AdminHandler exposes the operational surface: governor and cache
// statistics, feature states, cache clearing, and ingestion controls.
// Nothing here is used by the search or session read paths.
type AdminHandler struct {
	log        *logger.Logger
	sessions   services.SessionService
	queryCache services.QueryCacheService
	platform   services.PlatformSearchService
	ingestion  services.IngestionService
	vectors    services.VectorScoringService
	features   services.FeatureRegistry
	quota      governor.QuotaGovernor
	tokens     governor.TokenGovernor
	enrichers  []services.PlatformEnricher
}

func NewAdminHandler(
	sessions services.SessionService,
	queryCache services.QueryCacheService,
	platform services.PlatformSearchService,
	ingestion services.IngestionService,
	vectors services.VectorScoringService,
	features services.FeatureRegistry,
	quota governor.QuotaGovernor,
	tokens governor.TokenGovernor,
	enrichers []services.PlatformEnricher,
	baseLog *logger.Logger,
) *AdminHandler {
	return &AdminHandler{
		log:        baseLog.With("handler", "AdminHandler"),
		sessions:   sessions,
		queryCache: queryCache,
		platform:   platform,
		ingestion:  ingestion,
		vectors:    vectors,
		features:   features,
		quota:      quota,
		tokens:     tokens,
		enrichers:  enrichers,
	}
}

// GET /api/v1/admin/stats
func (h *AdminHandler) Stats(c *gin.Context) {
	ctx := c.Request.Context()

	sessionStats := h.sessions.Stats(ctx)
	quotaStats := h.quota.Stats()
	tokenStats := h.tokens.Stats()
	channelCache := h.platform.CacheStats()
	queryCache := h.queryCache.Stats(ctx)

	RespondOK(c, gin.H{
		"sessions": gin.H{
			"activeSessions": sessionStats.ActiveSessions,
			"l1CacheHits":    sessionStats.L1CacheHits,
			"l1CacheMisses":  sessionStats.L1CacheMisses,
			"l1HitRate":      percent(sessionStats.L1HitRate),
		},
		"youtubeQuota": gin.H{
			"unitsUsed":      quotaStats.UnitsUsed,
			"dailyLimit":     quotaStats.DailyLimit,
			"remainingUnits": quotaStats.RemainingUnits,
			"usagePercent":   percent(quotaStats.UsageRatio),
			"date":           quotaStats.Date,
		},
		"llmTokens": gin.H{
			"tokensUsed":      tokenStats.TokensUsed,
			"dailyBudget":     tokenStats.DailyBudget,
			"remainingBudget": tokenStats.RemainingBudget,
			"usagePercent":    percent(tokenStats.UsageRatio),
			"date":            tokenStats.Date,
		},
		"channelCache": gin.H{
			"cacheSize": channelCache.CacheSize,
			"hits":      channelCache.Hits,
			"misses":    channelCache.Misses,
			"hitRate":   percent(channelCache.HitRate),
		},
		"queryCache": gin.H{
			"l1Size":     queryCache.L1Size,
			"l1Hits":     queryCache.L1Hits,
			"l1Misses":   queryCache.L1Misses,
			"l1HitRate":  percent(queryCache.L1HitRate),
			"l2Entries":  queryCache.L2Entries,
			"topDigests": queryCache.TopDigests,
		},
	})
}

// GET /api/v1/admin/features
func (h *AdminHandler) Features(c *gin.Context) {
	snap := h.features.Snapshot()

	enrichers := make([]gin.H, 0, len(h.enrichers))
	for _, e := range h.enrichers {
		enrichers = append(enrichers, gin.H{
			"platform": e.PlatformID(),
			"feature":  string(e.Flag()),
			"active":   h.features.IsEnabled(e.Flag()),
		})
	}

	RespondOK(c, gin.H{
		"summary":         snap.Summary,
		"features":        snap.Features,
		"enabledFeatures": snap.EnabledFeatures,
		"enrichers":       enrichers,
	})
}

// POST /api/v1/admin/cache/clear
// Drops the channel metadata cache and sweeps everything expired:
// sessions with their results, query cache rows, query embeddings.
func (h *AdminHandler) ClearCache(c *gin.Context) {
	ctx := c.Request.Context()

	channelsCleared := h.platform.ClearChannelCache()

	sweep, err := h.sessions.SweepExpired(ctx)
	if err != nil {
		h.log.Error("session sweep failed", "error", err)
		RespondError(c, http.StatusInternalServerError, "cache_clear_failed", err)
		return
	}
	querySwept, err := h.queryCache.SweepExpired(ctx)
	if err != nil {
		h.log.Error("query cache sweep failed", "error", err)
		RespondError(c, http.StatusInternalServerError, "cache_clear_failed", err)
		return
	}
	embeddingsSwept, err := h.vectors.SweepExpired(ctx)
	if err != nil {
		h.log.Error("embedding sweep failed", "error", err)
		RespondError(c, http.StatusInternalServerError, "cache_clear_failed", err)
		return
	}

	h.log.Info("cache cleared",
		"channels_cleared", channelsCleared,
		"sessions_swept", sweep.SessionsDeleted,
		"query_cache_swept", querySwept,
		"embeddings_swept", embeddingsSwept)

	RespondOK(c, gin.H{
		"channelsCleared": channelsCleared,
		"sessionsSwept":   sweep.SessionsDeleted,
		"resultsSwept":    sweep.ResultsDeleted,
		"queryCacheSwept": querySwept,
		"embeddingsSwept": embeddingsSwept,
		"message":         "Cache cleared. New searches will fetch fresh channel data.",
	})
}

// POST /api/v1/admin/ingestion/reprocess
func (h *AdminHandler) ReprocessIngestion(c *gin.Context) {
	ctx := c.Request.Context()
	limit := intQuery(c, "limit", defaultReprocessLimit)

	outcome, err := h.ingestion.ReprocessPending(ctx, limit)
	if err != nil {
		h.log.Error("ingestion reprocess failed", "error", err)
		RespondError(c, http.StatusInternalServerError, "reprocess_failed", err)
		return
	}

	body := gin.H{"outcome": outcome}
	if counts, err := h.ingestion.StatusCounts(ctx); err == nil {
		body["statusCounts"] = counts
	}
	RespondOK(c, body)
}

// GET /api/v1/admin/creators/similar?query=&platform=&limit=
func (h *AdminHandler) SimilarCreators(c *gin.Context) {
	query := strings.TrimSpace(c.Query("query"))
	if query == "" {
		RespondError(c, http.StatusBadRequest, "missing_query", errors.New("query is required"))
		return
	}
	platform := c.Query("platform")
	limit := intQuery(c, "limit", defaultSimilarLimit)

	scored, err := h.vectors.SimilarCreators(c.Request.Context(), query, platform, limit)
	if err != nil {
		h.log.Error("similar creators lookup failed", "query", query, "error", err)
		RespondError(c, http.StatusInternalServerError, "similarity_failed", err)
		return
	}

	RespondOK(c, gin.H{
		"query":   query,
		"count":   len(scored),
		"results": scored,
	})
}

func percent(ratio float64) string {
	return fmt.Sprintf("%.2f%%", ratio*100)
}
