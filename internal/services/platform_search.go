package services

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/yungbote/hermes-backend/internal/clients/youtube"
	"github.com/yungbote/hermes-backend/internal/governor"
	"github.com/yungbote/hermes-backend/internal/pkg/logger"
	"github.com/yungbote/hermes-backend/internal/types"
)

const (
	// providerMaxResults is the hard per-query ceiling of the YouTube
	// search API, applied after all governor caps.
	providerMaxResults = 50

	defaultEnrichTopN = 20
)

// QueryProfiles pairs one search query with the profiles it returned,
// in provider order. The slice of these preserves query fan-out order
// so downstream ranking is deterministic.
type QueryProfiles struct {
	Query    string                 `json:"query"`
	Profiles []types.CreatorProfile `json:"profiles"`
}

type PlatformSearchOutcome struct {
	Groups    []QueryProfiles `json:"groups"`
	QuotaUsed int64           `json:"quotaUsed"`
}

// PlatformSearchService executes the query fan-out against the video
// platform under the quota governor. Quota rejection, missing keys,
// and exhausted keys all degrade to whatever was collected so far;
// none of them surface as an error.
type PlatformSearchService interface {
	SearchChannels(ctx context.Context, queries []string, maxResultsPerQuery int) PlatformSearchOutcome
	CacheStats() youtube.ChannelCacheStats
	ClearChannelCache() int
}

type platformSearchService struct {
	log        *logger.Logger
	client     youtube.Client
	quota      governor.QuotaGovernor
	maxQueries int
	enrichTopN int
}

func NewPlatformSearchService(client youtube.Client, quota governor.QuotaGovernor, maxQueriesPerSearch, enrichTopN int, baseLog *logger.Logger) PlatformSearchService {
	if enrichTopN <= 0 {
		enrichTopN = defaultEnrichTopN
	}
	return &platformSearchService{
		log:        baseLog.With("service", "PlatformSearchService"),
		client:     client,
		quota:      quota,
		maxQueries: maxQueriesPerSearch,
		enrichTopN: enrichTopN,
	}
}

func (ps *platformSearchService) SearchChannels(ctx context.Context, queries []string, maxResultsPerQuery int) PlatformSearchOutcome {
	if len(queries) == 0 {
		return PlatformSearchOutcome{}
	}
	if !ps.client.Configured() {
		ps.log.Warn("Platform search skipped: no API keys configured")
		return PlatformSearchOutcome{}
	}

	estimated := ps.quota.EstimateCost(len(queries), maxResultsPerQuery)
	decision := ps.quota.CheckQuota(estimated)
	if !decision.Allowed() {
		ps.log.Warn("Platform search rejected by quota governor",
			"estimated", estimated,
			"reason", decision.Reason,
		)
		return PlatformSearchOutcome{}
	}

	maxQueries := decision.MaxQueries()
	if ps.maxQueries > 0 && ps.maxQueries < maxQueries {
		maxQueries = ps.maxQueries
	}
	maxResults := maxResultsPerQuery
	if maxResults <= 0 || maxResults > decision.MaxResults() {
		maxResults = decision.MaxResults()
	}
	if maxResults > providerMaxResults {
		maxResults = providerMaxResults
	}

	deduped := dedupeQueries(queries)
	if len(deduped) > maxQueries {
		deduped = deduped[:maxQueries]
	}

	var (
		groups    []QueryProfiles
		quotaUsed int64
	)
	for _, query := range deduped {
		outcome, err := ps.client.SearchChannels(ctx, query, int64(maxResults))
		quotaUsed += outcome.QuotaUsed
		if err != nil {
			var exhausted *youtube.ExhaustedKeysError
			if errors.As(err, &exhausted) {
				ps.log.Error("Aborting search fan-out: every API key is out of quota",
					"query", query,
					"completed_queries", len(groups),
				)
				break
			}
			ps.log.Warn("Platform query failed, continuing fan-out", "query", query, "error", err)
			continue
		}
		groups = append(groups, QueryProfiles{Query: query, Profiles: outcome.Profiles})
	}

	quotaUsed += ps.enrichRecentVideos(ctx, groups)

	if quotaUsed > 0 {
		ps.quota.RecordUsage(quotaUsed)
	}
	ps.log.Info("Platform search complete",
		"queries_run", len(groups),
		"quota_used", quotaUsed,
	)
	return PlatformSearchOutcome{Groups: groups, QuotaUsed: quotaUsed}
}

// enrichRecentVideos attaches per-video statistics to the biggest
// channels in the result set so engagement can be scored from viewer
// behavior instead of the subscriber-ratio fallback. Cost is two units
// per channel, so enrichment is capped at the top N by subscribers.
func (ps *platformSearchService) enrichRecentVideos(ctx context.Context, groups []QueryProfiles) int64 {
	instances := make(map[string][]*types.CreatorProfile)
	var order []*types.CreatorProfile
	for gi := range groups {
		for pi := range groups[gi].Profiles {
			p := &groups[gi].Profiles[pi]
			if p.UploadsPlaylistID == "" {
				continue
			}
			if _, seen := instances[p.ID]; !seen {
				order = append(order, p)
			}
			instances[p.ID] = append(instances[p.ID], p)
		}
	}
	if len(order) == 0 {
		return 0
	}

	sort.SliceStable(order, func(i, j int) bool {
		return order[i].SubscriberCount > order[j].SubscriberCount
	})
	if len(order) > ps.enrichTopN {
		order = order[:ps.enrichTopN]
	}

	var quotaUsed int64
	for _, p := range order {
		videos, cost, err := ps.client.FetchRecentVideos(ctx, p.UploadsPlaylistID)
		quotaUsed += cost
		if err != nil {
			var exhausted *youtube.ExhaustedKeysError
			if errors.As(err, &exhausted) {
				ps.log.Warn("Stopping video enrichment: every API key is out of quota")
				break
			}
			ps.log.Debug("Recent video fetch failed", "channel_id", p.ID, "error", err)
			continue
		}
		if len(videos) == 0 {
			continue
		}
		for _, instance := range instances[p.ID] {
			instance.RecentVideos = videos
		}
	}
	return quotaUsed
}

func (ps *platformSearchService) CacheStats() youtube.ChannelCacheStats {
	return ps.client.CacheStats()
}

func (ps *platformSearchService) ClearChannelCache() int {
	return ps.client.ClearCache()
}

// dedupeQueries drops case-insensitive duplicates while keeping the
// first occurrence and its original casing.
func dedupeQueries(queries []string) []string {
	seen := make(map[string]struct{}, len(queries))
	out := make([]string, 0, len(queries))
	for _, q := range queries {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		lowered := strings.ToLower(q)
		if _, dup := seen[lowered]; dup {
			continue
		}
		seen[lowered] = struct{}{}
		out = append(out, q)
	}
	return out
}
