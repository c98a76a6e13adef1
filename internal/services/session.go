package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/hermes-backend/internal/filter"
	"github.com/yungbote/hermes-backend/internal/grading"
	"github.com/yungbote/hermes-backend/internal/normalization"
	"github.com/yungbote/hermes-backend/internal/pkg/logger"
	"github.com/yungbote/hermes-backend/internal/pkg/memcache"
	"github.com/yungbote/hermes-backend/internal/ranking"
	"github.com/yungbote/hermes-backend/internal/repos"
	"github.com/yungbote/hermes-backend/internal/types"
)

const (
	sessionL1Size = 1000
	sessionL1TTL  = 5 * time.Minute
)

// SessionPage is one page of a materialized session, plus enough
// context for the handler to shape the response. Found=false means the
// session never existed (or was already swept); Expired means the row
// is still there but past its TTL.
type SessionPage struct {
	SessionID    uuid.UUID                   `json:"sessionId"`
	Results      []types.SearchSessionResult `json:"results"`
	TotalResults int                         `json:"totalResults"`
	Page         int                         `json:"currentPage"`
	PageSize     int                         `json:"pageSize"`
	TotalPages   int                         `json:"totalPages"`
	SortKey      types.SortKey               `json:"sortBy"`
	Found        bool                        `json:"-"`
	Expired      bool                        `json:"expired"`
}

type SessionStats struct {
	ActiveSessions int64   `json:"activeSessions"`
	L1CacheHits    int64   `json:"l1CacheHits"`
	L1CacheMisses  int64   `json:"l1CacheMisses"`
	L1HitRate      float64 `json:"l1HitRate"`
}

type SweepOutcome struct {
	SessionsDeleted int64 `json:"sessionsDeleted"`
	ResultsDeleted  int64 `json:"resultsDeleted"`
}

// SessionService owns materialized search sessions: the write path
// that freezes a ranked list into rows, and the read path that serves
// pages from those rows without any external call.
type SessionService interface {
	// Materialize upserts the session for (query digest, platform) and
	// replaces its results with the ranked list, ranks 1..N.
	Materialize(ctx context.Context, rawQuery, platform string, ranked []grading.GradedCreator, quotaUsed int64) (*types.SearchSession, error)
	// FindValidSession returns the live session for the query, touching
	// its expiry, or nil when none exists.
	FindValidSession(ctx context.Context, rawQuery, platform string) (*types.SearchSession, error)
	Paginate(ctx context.Context, sessionID uuid.UUID, page, pageSize int, sortKey types.SortKey) (SessionPage, error)
	PaginateFiltered(ctx context.Context, sessionID uuid.UUID, page, pageSize int, sortKey types.SortKey, criteria filter.Criteria) (SessionPage, error)
	SweepExpired(ctx context.Context) (SweepOutcome, error)
	Stats(ctx context.Context) SessionStats
}

type sessionService struct {
	db       *gorm.DB
	log      *logger.Logger
	sessions repos.SearchSessionRepo
	results  repos.SessionResultRepo
	l1       *memcache.Cache[string, uuid.UUID]
	ttl      time.Duration
	sliding  bool
	now      func() time.Time
}

func NewSessionService(db *gorm.DB, sessions repos.SearchSessionRepo, results repos.SessionResultRepo, ttl time.Duration, sliding bool, baseLog *logger.Logger) SessionService {
	return &sessionService{
		db:       db,
		log:      baseLog.With("service", "SessionService"),
		sessions: sessions,
		results:  results,
		l1:       memcache.New[string, uuid.UUID](sessionL1Size, sessionL1TTL),
		ttl:      ttl,
		sliding:  sliding,
		now:      time.Now,
	}
}

func sessionKey(digest, platform string) string {
	return digest + ":" + platform
}

func (ss *sessionService) Materialize(ctx context.Context, rawQuery, platform string, ranked []grading.GradedCreator, quotaUsed int64) (*types.SearchSession, error) {
	digest := normalization.QueryDigest(rawQuery)
	normalized := normalization.NormalizeQuery(rawQuery)

	session, err := ss.materializeTx(ctx, digest, normalized, platform, ranked, quotaUsed)
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// Lost a race with a concurrent writer on the same digest; the
		// session row now exists, so rerun as an update.
		session, err = ss.materializeTx(ctx, digest, normalized, platform, ranked, quotaUsed)
	}
	if err != nil {
		return nil, err
	}

	ss.l1.Set(sessionKey(digest, platform), session.SessionID)
	ss.log.Info("Materialized search session",
		"session_id", session.SessionID.String(),
		"platform", platform,
		"total_results", session.TotalResults,
		"quota_used", quotaUsed,
	)
	return session, nil
}

func (ss *sessionService) materializeTx(ctx context.Context, digest, normalized, platform string, ranked []grading.GradedCreator, quotaUsed int64) (*types.SearchSession, error) {
	now := ss.now()
	var session *types.SearchSession
	err := ss.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := ss.sessions.GetByDigest(ctx, tx, digest, platform)
		if err != nil {
			return err
		}
		if existing != nil {
			existing.NormalizedQuery = normalized
			existing.TotalResults = len(ranked)
			existing.YoutubeQuotaUsed += int(quotaUsed)
			existing.ExpiresAt = now.Add(ss.ttl)
			existing.LastAccessedAt = now
			if err := ss.sessions.Update(ctx, tx, existing); err != nil {
				return err
			}
			session = existing
		} else {
			session = &types.SearchSession{
				SessionID:        uuid.New(),
				QueryDigest:      digest,
				NormalizedQuery:  normalized,
				Platform:         platform,
				TotalResults:     len(ranked),
				YoutubeQuotaUsed: int(quotaUsed),
				CreatedAt:        now,
				ExpiresAt:        now.Add(ss.ttl),
				LastAccessedAt:   now,
			}
			if err := ss.sessions.Create(ctx, tx, session); err != nil {
				return err
			}
		}
		return ss.results.ReplaceForSession(ctx, tx, session.SessionID, buildResultRows(session.SessionID, ranked))
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// buildResultRows freezes the ranked list into result rows with dense
// ranks. Competitiveness is computed here, once, and never again.
func buildResultRows(sessionID uuid.UUID, ranked []grading.GradedCreator) []*types.SearchSessionResult {
	rows := make([]*types.SearchSessionResult, 0, len(ranked))
	for i, creator := range ranked {
		score := creator.Score
		rows = append(rows, &types.SearchSessionResult{
			SessionID:            sessionID,
			Rank:                 i + 1,
			ChannelID:            creator.ChannelID,
			ChannelName:          truncateText(creator.ChannelName, 255),
			Description:          truncateText(creator.Description, 2000),
			ProfileImageURL:      truncateText(creator.ProfileImageURL, 500),
			Score:                score.FinalScore,
			GenreRelevance:       score.GenreRelevance,
			AudienceFit:          score.AudienceFit,
			EngagementQuality:    score.EngagementQuality,
			ActivityConsistency:  score.ActivityConsistency,
			CompetitivenessScore: grading.CompetitivenessFromScore(score),
			Freshness:            score.Freshness,
			SubscriberCount:      creator.SubscriberCount,
			Labels:               datatypes.JSONSlice[string](creator.Labels),
			LastVideoDate:        creator.LastVideoDate,
		})
	}
	return rows
}

func (ss *sessionService) FindValidSession(ctx context.Context, rawQuery, platform string) (*types.SearchSession, error) {
	digest := normalization.QueryDigest(rawQuery)
	key := sessionKey(digest, platform)
	now := ss.now()

	if id, ok := ss.l1.Get(key); ok {
		session, err := ss.sessions.FindValidByID(ctx, nil, id, now)
		if err != nil {
			return nil, err
		}
		if session != nil {
			ss.touch(ctx, session, now)
			return session, nil
		}
		ss.l1.Remove(key)
	}

	session, err := ss.sessions.FindValidByDigest(ctx, nil, digest, platform, now)
	if err != nil || session == nil {
		return nil, err
	}
	ss.l1.Set(key, session.SessionID)
	ss.touch(ctx, session, now)
	return session, nil
}

// touch slides the expiry window forward by a full TTL. The update is
// conditional on the session still being alive, so an expired session
// is never revived.
func (ss *sessionService) touch(ctx context.Context, session *types.SearchSession, now time.Time) {
	if !ss.sliding {
		return
	}
	expiresAt := now.Add(ss.ttl)
	if err := ss.sessions.ExtendExpiry(ctx, nil, session.SessionID, expiresAt, now); err != nil {
		ss.log.Warn("Session touch failed", "session_id", session.SessionID.String(), "error", err)
		return
	}
	session.ExpiresAt = expiresAt
	session.LastAccessedAt = now
}

func (ss *sessionService) Paginate(ctx context.Context, sessionID uuid.UUID, page, pageSize int, sortKey types.SortKey) (SessionPage, error) {
	if pageSize <= 0 {
		pageSize = ranking.DefaultPageSize
	}
	out := SessionPage{
		SessionID: sessionID,
		Results:   []types.SearchSessionResult{},
		Page:      page,
		PageSize:  pageSize,
		SortKey:   sortKey,
	}

	now := ss.now()
	session, err := ss.sessions.GetByID(ctx, nil, sessionID)
	if err != nil {
		return out, err
	}
	if session == nil {
		return out, nil
	}
	if !session.ExpiresAt.After(now) {
		out.Expired = true
		return out, nil
	}

	ss.touch(ctx, session, now)
	out.Found = true
	out.TotalResults = session.TotalResults

	start, end, effectivePage, totalPages := ranking.Window(session.TotalResults, page, pageSize)
	out.Page = effectivePage
	out.TotalPages = totalPages
	if end > start {
		rows, err := ss.results.ListPage(ctx, nil, sessionID, sortKey, end-start, start)
		if err != nil {
			return out, err
		}
		out.Results = derefResults(rows)
	}
	return out, nil
}

func (ss *sessionService) PaginateFiltered(ctx context.Context, sessionID uuid.UUID, page, pageSize int, sortKey types.SortKey, criteria filter.Criteria) (SessionPage, error) {
	if pageSize <= 0 {
		pageSize = ranking.DefaultPageSize
	}
	out := SessionPage{
		SessionID: sessionID,
		Results:   []types.SearchSessionResult{},
		Page:      page,
		PageSize:  pageSize,
		SortKey:   sortKey,
	}

	now := ss.now()
	session, err := ss.sessions.GetByID(ctx, nil, sessionID)
	if err != nil {
		return out, err
	}
	if session == nil {
		return out, nil
	}
	if !session.ExpiresAt.After(now) {
		out.Expired = true
		return out, nil
	}

	ss.touch(ctx, session, now)
	out.Found = true

	rows, err := ss.results.ListAll(ctx, nil, sessionID)
	if err != nil {
		return out, err
	}
	matched := filter.Sort(filter.Apply(derefResults(rows), criteria), sortKey)

	start, end, effectivePage, totalPages := ranking.Window(len(matched), page, pageSize)
	out.TotalResults = len(matched)
	out.Page = effectivePage
	out.TotalPages = totalPages
	out.Results = append(out.Results, matched[start:end]...)
	return out, nil
}

// SweepExpired removes every expired session and its results in one
// transaction. Runs from the background sweeper and the admin
// cache-clear endpoint.
func (ss *sessionService) SweepExpired(ctx context.Context) (SweepOutcome, error) {
	now := ss.now()
	var out SweepOutcome
	err := ss.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids, err := ss.sessions.ListExpiredIDs(ctx, tx, now)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		resultsDeleted, err := ss.results.DeleteBySessionIDs(ctx, tx, ids)
		if err != nil {
			return err
		}
		sessionsDeleted, err := ss.sessions.DeleteByIDs(ctx, tx, ids)
		if err != nil {
			return err
		}
		out = SweepOutcome{SessionsDeleted: sessionsDeleted, ResultsDeleted: resultsDeleted}
		return nil
	})
	if err != nil {
		return SweepOutcome{}, err
	}
	if out.SessionsDeleted > 0 {
		ss.log.Info("Swept expired sessions",
			"sessions_deleted", out.SessionsDeleted,
			"results_deleted", out.ResultsDeleted,
		)
	}
	return out, nil
}

func (ss *sessionService) Stats(ctx context.Context) SessionStats {
	l1 := ss.l1.Stats()
	stats := SessionStats{
		L1CacheHits:   l1.Hits,
		L1CacheMisses: l1.Misses,
	}
	if total := l1.Hits + l1.Misses; total > 0 {
		stats.L1HitRate = float64(l1.Hits) / float64(total)
	}
	if active, err := ss.sessions.CountActive(ctx, nil, ss.now()); err == nil {
		stats.ActiveSessions = active
	} else {
		ss.log.Warn("Active session count unavailable", "error", err)
	}
	return stats
}

func derefResults(rows []*types.SearchSessionResult) []types.SearchSessionResult {
	out := make([]types.SearchSessionResult, 0, len(rows))
	for _, row := range rows {
		if row != nil {
			out = append(out, *row)
		}
	}
	return out
}

// truncateText cuts a string to at most max runes. Column widths are
// in characters, and profile text can be multibyte.
func truncateText(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
