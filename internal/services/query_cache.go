package services

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/hermes-backend/internal/normalization"
	"github.com/yungbote/hermes-backend/internal/pkg/logger"
	"github.com/yungbote/hermes-backend/internal/pkg/memcache"
	"github.com/yungbote/hermes-backend/internal/repos"
	"github.com/yungbote/hermes-backend/internal/types"
)

const (
	queryCacheL1Size = 1000
	queryCacheL1TTL  = 5 * time.Minute

	hitCountBumpTimeout = 3 * time.Second
)

// CachedExpansion is the deserialized form of a query_cache row: the
// generated queries plus what they cost to produce.
type CachedExpansion struct {
	NormalizedQuery string   `json:"normalizedQuery"`
	Queries         []string `json:"queries"`
	TokenCost       int      `json:"tokenCost"`
}

type QueryCacheStats struct {
	L1Size     int            `json:"l1Size"`
	L1Hits     int64          `json:"l1Hits"`
	L1Misses   int64          `json:"l1Misses"`
	L1HitRate  float64        `json:"l1HitRate"`
	L2Entries  int64          `json:"l2Entries"`
	TopDigests []HotExpansion `json:"topDigests"`
}

// HotExpansion is one of the most-reused cached expansions.
type HotExpansion struct {
	DigestKey       string `json:"digestKey"`
	NormalizedQuery string `json:"normalizedQuery"`
	HitCount        int64  `json:"hitCount"`
}

// QueryCacheService is the two-tier expansion cache: a small in-memory
// tier in front of the durable query_cache table. Within the L1 TTL a
// memory hit may lag the table; after that the table is authoritative.
type QueryCacheService interface {
	Get(ctx context.Context, rawQuery string) (CachedExpansion, bool)
	Put(ctx context.Context, rawQuery string, queries []string, tokenCost int)
	Stats(ctx context.Context) QueryCacheStats
	SweepExpired(ctx context.Context) (int64, error)
}

type queryCacheService struct {
	db    *gorm.DB
	log   *logger.Logger
	repo  repos.QueryCacheRepo
	l1    *memcache.Cache[string, CachedExpansion]
	l2TTL time.Duration
	now   func() time.Time
}

func NewQueryCacheService(db *gorm.DB, repo repos.QueryCacheRepo, l2TTL time.Duration, baseLog *logger.Logger) QueryCacheService {
	return &queryCacheService{
		db:    db,
		log:   baseLog.With("service", "QueryCacheService"),
		repo:  repo,
		l1:    memcache.New[string, CachedExpansion](queryCacheL1Size, queryCacheL1TTL),
		l2TTL: l2TTL,
		now:   time.Now,
	}
}

func (qc *queryCacheService) Get(ctx context.Context, rawQuery string) (CachedExpansion, bool) {
	key := normalization.CacheKey(rawQuery)

	if hit, ok := qc.l1.Get(key); ok {
		return hit, true
	}

	row, err := qc.repo.FindValid(ctx, nil, key, qc.now())
	if err != nil {
		qc.log.Warn("Query cache lookup failed", "digest_key", key, "error", err)
		return CachedExpansion{}, false
	}
	if row == nil {
		return CachedExpansion{}, false
	}

	var queries []string
	if err := json.Unmarshal([]byte(row.ResponseJSON), &queries); err != nil || len(queries) == 0 {
		qc.log.Warn("Dropping corrupt cached expansion", "digest_key", key, "error", err)
		return CachedExpansion{}, false
	}

	entry := CachedExpansion{
		NormalizedQuery: row.NormalizedQuery,
		Queries:         queries,
		TokenCost:       row.TokenCost,
	}
	qc.l1.Set(key, entry)
	qc.bumpHitCount(key)
	return entry, true
}

// Put installs the expansion in both tiers. Persistence failures are
// logged and swallowed; the caller already has its queries.
func (qc *queryCacheService) Put(ctx context.Context, rawQuery string, queries []string, tokenCost int) {
	if len(queries) == 0 {
		return
	}
	key := normalization.CacheKey(rawQuery)
	normalized := normalization.NormalizeQuery(rawQuery)

	qc.l1.Set(key, CachedExpansion{
		NormalizedQuery: normalized,
		Queries:         queries,
		TokenCost:       tokenCost,
	})

	payload, err := json.Marshal(queries)
	if err != nil {
		qc.log.Warn("Expansion serialization failed", "digest_key", key, "error", err)
		return
	}
	now := qc.now()
	row := &types.QueryCache{
		DigestKey:       key,
		NormalizedQuery: normalized,
		ResponseJSON:    string(payload),
		TokenCost:       tokenCost,
		CreatedAt:       now,
		ExpiresAt:       now.Add(qc.l2TTL),
	}
	if err := qc.repo.Upsert(ctx, nil, row); err != nil {
		qc.log.Warn("Query cache persist failed", "digest_key", key, "error", err)
	}
}

// bumpHitCount increments the stored counter off the request path. The
// counter is advisory, so a lost bump is fine.
func (qc *queryCacheService) bumpHitCount(key string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), hitCountBumpTimeout)
		defer cancel()
		if err := qc.repo.IncrementHitCount(ctx, nil, key); err != nil {
			qc.log.Debug("Hit count bump failed", "digest_key", key, "error", err)
		}
	}()
}

func (qc *queryCacheService) Stats(ctx context.Context) QueryCacheStats {
	l1 := qc.l1.Stats()
	stats := QueryCacheStats{
		L1Size:   l1.Size,
		L1Hits:   l1.Hits,
		L1Misses: l1.Misses,
	}
	if total := l1.Hits + l1.Misses; total > 0 {
		stats.L1HitRate = float64(l1.Hits) / float64(total)
	}

	if count, err := qc.repo.Count(ctx, nil); err == nil {
		stats.L2Entries = count
	}
	top, err := qc.repo.TopByHitCount(ctx, nil, 10)
	if err != nil {
		qc.log.Warn("Top cached expansions unavailable", "error", err)
		return stats
	}
	for _, row := range top {
		stats.TopDigests = append(stats.TopDigests, HotExpansion{
			DigestKey:       row.DigestKey,
			NormalizedQuery: row.NormalizedQuery,
			HitCount:        row.HitCount,
		})
	}
	return stats
}

func (qc *queryCacheService) SweepExpired(ctx context.Context) (int64, error) {
	return qc.repo.DeleteExpired(ctx, nil, qc.now())
}
