package services

import (
	"context"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/yungbote/hermes-backend/internal/grading"
	"github.com/yungbote/hermes-backend/internal/normalization"
	"github.com/yungbote/hermes-backend/internal/pkg/logger"
	"github.com/yungbote/hermes-backend/internal/ranking"
	"github.com/yungbote/hermes-backend/internal/types"
)

const (
	defaultPlatform = "youtube"

	// ingestionTimeout bounds the fire-and-forget ingestion batch
	// spawned after a fresh search. It runs on a detached context so
	// the HTTP response never waits on it.
	ingestionTimeout = 2 * time.Minute
)

// SearchRequest is the discovery request body.
type SearchRequest struct {
	Platform string            `json:"platform"`
	Genre    string            `json:"genre"`
	Page     int               `json:"page"`
	PageSize int               `json:"pageSize"`
	Filters  map[string]string `json:"filters"`
}

// SearchResponse carries the first page of a session plus the
// execution metadata of how it was produced. On a warm session hit
// QueryInfo is nil, ChannelResults is empty and YoutubeQuotaUsed is
// zero: the call spent nothing.
type SearchResponse struct {
	SessionID        string                      `json:"sessionId"`
	Results          []types.SearchSessionResult `json:"results"`
	TotalResults     int                         `json:"totalResults"`
	CurrentPage      int                         `json:"currentPage"`
	TotalPages       int                         `json:"totalPages"`
	FromCache        bool                        `json:"fromCache"`
	YoutubeQuotaUsed int                         `json:"youtubeQuotaUsed"`
	QueryInfo        *ExpansionResult            `json:"queryInfo"`
	ChannelResults   map[string]int              `json:"channelResults"`
}

// SearchService runs the full discovery pipeline: expansion, platform
// fan-out, grading, ranking, materialization, first page. A valid
// session for the same normalized genre and platform short-circuits
// everything before the first external call.
type SearchService interface {
	Search(ctx context.Context, req SearchRequest) (SearchResponse, error)
}

type searchService struct {
	log                *logger.Logger
	expansion          QueryExpansionService
	platform           PlatformSearchService
	sessions           SessionService
	ingestion          IngestionService
	maxResultsPerQuery int
	flight             singleflight.Group
	now                func() time.Time
}

func NewSearchService(expansion QueryExpansionService, platform PlatformSearchService, sessions SessionService, ingestion IngestionService, maxResultsPerQuery int, baseLog *logger.Logger) SearchService {
	return &searchService{
		log:                baseLog.With("service", "SearchService"),
		expansion:          expansion,
		platform:           platform,
		sessions:           sessions,
		ingestion:          ingestion,
		maxResultsPerQuery: maxResultsPerQuery,
		now:                time.Now,
	}
}

// freshOutcome is what one singleflight execution produces. Every
// caller collapsed into the flight paginates its own page from the
// shared session afterwards.
type freshOutcome struct {
	session        *types.SearchSession
	queryInfo      ExpansionResult
	channelResults map[string]int
	quotaUsed      int64
	fromSession    bool
}

func (sv *searchService) Search(ctx context.Context, req SearchRequest) (SearchResponse, error) {
	genre := strings.TrimSpace(req.Genre)
	platform := normalizePlatform(req.Platform)

	session, err := sv.sessions.FindValidSession(ctx, genre, platform)
	if err != nil {
		return SearchResponse{}, err
	}
	if session != nil {
		return sv.respond(ctx, session, req, true, nil, nil, 0)
	}

	// Concurrent fresh searches on the same digest collapse into one
	// execution; losers share the winner's materialized session.
	key := normalization.QueryDigest(genre) + ":" + platform
	v, err, shared := sv.flight.Do(key, func() (any, error) {
		return sv.freshSearch(ctx, genre, platform, req.Filters)
	})
	if err != nil {
		return SearchResponse{}, err
	}
	outcome := v.(*freshOutcome)
	if shared {
		sv.log.Debug("Search collapsed into in-flight execution", "digest_key", key)
	}

	if outcome.fromSession {
		return sv.respond(ctx, outcome.session, req, true, nil, nil, 0)
	}
	return sv.respond(ctx, outcome.session, req, false, &outcome.queryInfo, outcome.channelResults, outcome.quotaUsed)
}

func (sv *searchService) freshSearch(ctx context.Context, genre, platform string, filters map[string]string) (*freshOutcome, error) {
	// Re-check under the flight: another writer may have materialized
	// this digest between the outer probe and here.
	if session, err := sv.sessions.FindValidSession(ctx, genre, platform); err != nil {
		sv.log.Warn("Session re-check failed, continuing fresh", "error", err)
	} else if session != nil {
		return &freshOutcome{session: session, fromSession: true}, nil
	}

	expansion := sv.expansion.Generate(ctx, genre)
	outcome := sv.platform.SearchChannels(ctx, expansion.Queries, sv.maxResultsPerQuery)

	criteria := grading.CriteriaFromFilters(genre, filters)
	now := sv.now()
	grouped := make([]ranking.QueryResults, 0, len(outcome.Groups))
	channelResults := make(map[string]int, len(outcome.Groups))
	var profiles []types.CreatorProfile
	for _, group := range outcome.Groups {
		channelResults[group.Query] = len(group.Profiles)
		grouped = append(grouped, ranking.QueryResults{
			Query:   group.Query,
			Results: sv.gradeProfiles(group.Profiles, platform, criteria, now),
		})
		profiles = append(profiles, group.Profiles...)
	}
	ranked := ranking.Rank(grouped)

	// Empty results still materialize: the session absorbs repeat
	// traffic on a genre the platform has nothing for.
	session, err := sv.sessions.Materialize(ctx, genre, platform, ranked, outcome.QuotaUsed)
	if err != nil {
		return nil, err
	}

	sv.spawnIngestion(platform, genre, profiles)

	sv.log.Info("Fresh search completed",
		"genre", genre,
		"platform", platform,
		"queries", len(expansion.Queries),
		"ranked", len(ranked),
		"quota_used", outcome.QuotaUsed,
	)
	return &freshOutcome{
		session:        session,
		queryInfo:      expansion,
		channelResults: channelResults,
		quotaUsed:      outcome.QuotaUsed,
	}, nil
}

func (sv *searchService) respond(ctx context.Context, session *types.SearchSession, req SearchRequest, fromCache bool, queryInfo *ExpansionResult, channelResults map[string]int, quotaUsed int64) (SearchResponse, error) {
	page, err := sv.sessions.Paginate(ctx, session.SessionID, req.Page, req.PageSize, types.SortFinalScore)
	if err != nil {
		return SearchResponse{}, err
	}
	if channelResults == nil {
		channelResults = map[string]int{}
	}
	return SearchResponse{
		SessionID:        session.SessionID.String(),
		Results:          page.Results,
		TotalResults:     page.TotalResults,
		CurrentPage:      page.Page,
		TotalPages:       page.TotalPages,
		FromCache:        fromCache,
		YoutubeQuotaUsed: int(quotaUsed),
		QueryInfo:        queryInfo,
		ChannelResults:   channelResults,
	}, nil
}

func (sv *searchService) gradeProfiles(profiles []types.CreatorProfile, platform string, criteria grading.Criteria, now time.Time) []grading.GradedCreator {
	graded := make([]grading.GradedCreator, 0, len(profiles))
	for _, profile := range profiles {
		if creator, ok := sv.gradeProfile(profile, platform, criteria, now); ok {
			graded = append(graded, creator)
		}
	}
	return graded
}

// gradeProfile isolates scorer panics so one malformed profile drops
// out alone instead of voiding the whole result set.
func (sv *searchService) gradeProfile(profile types.CreatorProfile, platform string, criteria grading.Criteria, now time.Time) (creator grading.GradedCreator, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			sv.log.Error("Scorer panicked, excluding profile", "channel_id", profile.ID, "panic", r)
			ok = false
		}
	}()
	return grading.Grade(profile, platform, criteria, now), true
}

// spawnIngestion hands freshly seen profiles to the ingestion service
// on a detached context. The search response never waits for it.
func (sv *searchService) spawnIngestion(platform, genre string, profiles []types.CreatorProfile) {
	if len(profiles) == 0 {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), ingestionTimeout)
		defer cancel()
		sv.ingestion.IngestBatch(ctx, platform, genre, profiles)
	}()
}

func normalizePlatform(platform string) string {
	p := strings.ToLower(strings.TrimSpace(platform))
	if p == "" {
		return defaultPlatform
	}
	return p
}
