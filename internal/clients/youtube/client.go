// Package youtube wraps the YouTube Data API v3 for channel discovery:
// search, channel detail batches with an in-memory metadata cache, and
// recent-video statistics for behavior-based engagement scoring.
// Multiple API keys rotate automatically when one runs out of quota.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"

	"github.com/yungbote/hermes-backend/internal/governor"
	"github.com/yungbote/hermes-backend/internal/grading"
	"github.com/yungbote/hermes-backend/internal/pkg/logger"
	"github.com/yungbote/hermes-backend/internal/pkg/memcache"
	"github.com/yungbote/hermes-backend/internal/types"
)

const (
	maxResultsCap = 50 // YouTube API max per search.list

	defaultCacheSize = 2000
	defaultCacheTTL  = time.Hour

	playlistItemsListCost = 1
	videosListCost        = 1
)

// ErrNotConfigured is returned when no API key was provided. Searches
// degrade to cached sessions only.
var ErrNotConfigured = errors.New("youtube: no api keys configured")

// ExhaustedKeysError means every configured key hit its quota in one
// rotation cycle. Callers should stop issuing calls for the request.
type ExhaustedKeysError struct {
	Keys int
	Last error
}

func (e *ExhaustedKeysError) Error() string {
	return fmt.Sprintf("all %d youtube api keys exhausted: %v", e.Keys, e.Last)
}

func (e *ExhaustedKeysError) Unwrap() error { return e.Last }

// SearchOutcome carries the profiles found for one query plus the
// quota units actually spent producing them.
type SearchOutcome struct {
	Profiles  []types.CreatorProfile
	QuotaUsed int64
}

// ChannelCacheStats mirrors the channel metadata cache counters
// surfaced by the admin stats endpoint.
type ChannelCacheStats struct {
	CacheSize int     `json:"cacheSize"`
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	HitRate   float64 `json:"hitRate"`
}

// Client is the platform adapter surface used by the search pipeline.
type Client interface {
	// SearchChannels runs one channel search and resolves the hits to
	// full profiles, reading the channel cache before the API.
	SearchChannels(ctx context.Context, query string, maxResults int64) (SearchOutcome, error)
	// FetchRecentVideos loads per-video statistics from a channel's
	// uploads playlist, newest first, for engagement scoring.
	FetchRecentVideos(ctx context.Context, uploadsPlaylistID string) ([]types.VideoStatistics, int64, error)
	Configured() bool
	KeyCount() int
	CacheStats() ChannelCacheStats
	ClearCache() int
}

type Config struct {
	APIKeys   []string
	Endpoint  string // override for tests
	CacheSize int
	CacheTTL  time.Duration
}

type client struct {
	log      *logger.Logger
	services []*yt.Service
	keyIndex atomic.Int32
	cache    *memcache.Cache[string, types.CreatorProfile]
}

func NewClient(cfg Config, log *logger.Logger) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	cacheSize := cfg.CacheSize
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}
	cacheTTL := cfg.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = defaultCacheTTL
	}

	c := &client{
		log:   log.With("client", "YouTubeClient"),
		cache: memcache.New[string, types.CreatorProfile](cacheSize, cacheTTL),
	}

	ctx := context.Background()
	for _, key := range cfg.APIKeys {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		opts := []option.ClientOption{option.WithAPIKey(key)}
		if cfg.Endpoint != "" {
			opts = append(opts, option.WithEndpoint(cfg.Endpoint))
		}
		svc, err := yt.NewService(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("youtube service init: %w", err)
		}
		c.services = append(c.services, svc)
	}

	if len(c.services) == 0 {
		c.log.Warn("No YouTube API keys configured; fresh searches disabled")
	} else {
		c.log.Info("YouTube client initialized",
			"key_count", len(c.services),
			"cache_size", cacheSize,
			"cache_ttl", cacheTTL.String(),
		)
	}
	return c, nil
}

func (c *client) Configured() bool { return len(c.services) > 0 }
func (c *client) KeyCount() int    { return len(c.services) }

func (c *client) currentIndex() int {
	return int(c.keyIndex.Load()) % len(c.services)
}

func (c *client) rotate() {
	c.keyIndex.Add(1)
}

// withRotation runs fn against the current key and advances to the
// next one on quota errors until every key has been tried once.
func withRotation[T any](ctx context.Context, c *client, op string, fn func(svc *yt.Service) (T, error)) (T, error) {
	var zero T
	if !c.Configured() {
		return zero, ErrNotConfigured
	}

	var lastErr error
	for attempt := 0; attempt < len(c.services); attempt++ {
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		idx := c.currentIndex()
		out, err := fn(c.services[idx])
		if err == nil {
			return out, nil
		}
		if !IsQuotaError(err) {
			return zero, err
		}
		lastErr = err
		c.log.Warn("YouTube quota exceeded, rotating API key",
			"op", op,
			"key", idx+1,
			"key_count", len(c.services),
		)
		c.rotate()
	}
	return zero, &ExhaustedKeysError{Keys: len(c.services), Last: lastErr}
}

func (c *client) SearchChannels(ctx context.Context, query string, maxResults int64) (SearchOutcome, error) {
	if maxResults <= 0 || maxResults > maxResultsCap {
		maxResults = maxResultsCap
	}
	return withRotation(ctx, c, "search_channels", func(svc *yt.Service) (SearchOutcome, error) {
		return c.searchOnce(ctx, svc, query, maxResults)
	})
}

func (c *client) searchOnce(ctx context.Context, svc *yt.Service, query string, maxResults int64) (SearchOutcome, error) {
	var quotaUsed int64

	searchResp, err := svc.Search.List([]string{"snippet"}).
		Q(query).
		Type("channel").
		MaxResults(maxResults).
		Context(ctx).
		Do()
	if err != nil {
		return SearchOutcome{}, err
	}
	quotaUsed += governor.SearchListCost

	channelIDs := collectChannelIDs(searchResp.Items)
	if len(channelIDs) == 0 {
		return SearchOutcome{Profiles: []types.CreatorProfile{}, QuotaUsed: quotaUsed}, nil
	}

	// Known channels come from the cache; only the rest hit the API.
	cached := make([]types.CreatorProfile, 0, len(channelIDs))
	uncached := make([]string, 0, len(channelIDs))
	for _, id := range channelIDs {
		if profile, ok := c.cache.Get(id); ok {
			cached = append(cached, profile)
		} else {
			uncached = append(uncached, id)
		}
	}
	c.log.Debug("Channel cache partition",
		"query", query,
		"hits", len(cached),
		"misses", len(uncached),
	)

	fresh := make([]types.CreatorProfile, 0, len(uncached))
	for start := 0; start < len(uncached); start += maxResultsCap {
		end := start + maxResultsCap
		if end > len(uncached) {
			end = len(uncached)
		}
		batch := uncached[start:end]

		chResp, err := svc.Channels.List([]string{"snippet", "statistics", "contentDetails"}).
			Id(batch...).
			MaxResults(int64(len(batch))).
			Context(ctx).
			Do()
		if err != nil {
			return SearchOutcome{}, err
		}
		quotaUsed += governor.ChannelsListCostPerCall

		for _, ch := range chResp.Items {
			profile := mapChannel(ch)
			fresh = append(fresh, profile)
			c.cache.Set(ch.Id, profile)
		}
	}

	profiles := append(cached, fresh...)
	return SearchOutcome{Profiles: profiles, QuotaUsed: quotaUsed}, nil
}

func (c *client) FetchRecentVideos(ctx context.Context, uploadsPlaylistID string) ([]types.VideoStatistics, int64, error) {
	if strings.TrimSpace(uploadsPlaylistID) == "" {
		return nil, 0, nil
	}

	type outcome struct {
		videos []types.VideoStatistics
		quota  int64
	}
	out, err := withRotation(ctx, c, "recent_videos", func(svc *yt.Service) (outcome, error) {
		var quotaUsed int64

		plResp, err := svc.PlaylistItems.List([]string{"snippet"}).
			PlaylistId(uploadsPlaylistID).
			MaxResults(int64(grading.MaxRecentVideos)).
			Context(ctx).
			Do()
		if err != nil {
			return outcome{}, err
		}
		quotaUsed += playlistItemsListCost

		videoIDs := make([]string, 0, len(plResp.Items))
		for _, item := range plResp.Items {
			if item.Snippet == nil || item.Snippet.ResourceId == nil {
				continue
			}
			if id := item.Snippet.ResourceId.VideoId; id != "" {
				videoIDs = append(videoIDs, id)
			}
		}
		if len(videoIDs) == 0 {
			return outcome{quota: quotaUsed}, nil
		}

		vResp, err := svc.Videos.List([]string{"statistics", "snippet"}).
			Id(videoIDs...).
			Context(ctx).
			Do()
		if err != nil {
			return outcome{}, err
		}
		quotaUsed += videosListCost

		videos := make([]types.VideoStatistics, 0, len(vResp.Items))
		for _, v := range vResp.Items {
			if v.Statistics == nil {
				continue
			}
			stat := types.VideoStatistics{
				VideoID:      v.Id,
				ViewCount:    int64(v.Statistics.ViewCount),
				LikeCount:    int64(v.Statistics.LikeCount),
				CommentCount: int64(v.Statistics.CommentCount),
			}
			if v.Snippet != nil {
				stat.PublishedAt = parseTimestamp(v.Snippet.PublishedAt)
			}
			videos = append(videos, stat)
		}
		return outcome{videos: videos, quota: quotaUsed}, nil
	})
	if err != nil {
		return nil, 0, err
	}
	return out.videos, out.quota, nil
}

func (c *client) CacheStats() ChannelCacheStats {
	stats := c.cache.Stats()
	total := stats.Hits + stats.Misses
	rate := 0.0
	if total > 0 {
		rate = float64(stats.Hits) / float64(total)
	}
	return ChannelCacheStats{
		CacheSize: stats.Size,
		Hits:      stats.Hits,
		Misses:    stats.Misses,
		HitRate:   rate,
	}
}

func (c *client) ClearCache() int {
	size := c.cache.Len()
	c.cache.Purge()
	c.log.Info("Channel cache cleared", "entries_removed", size)
	return size
}

// IsQuotaError reports whether an API error means the key ran out of
// quota (as opposed to a malformed request or transport failure).
func IsQuotaError(err error) bool {
	var gErr *googleapi.Error
	if !errors.As(err, &gErr) {
		return false
	}
	if gErr.Code == http.StatusTooManyRequests {
		return true
	}
	if gErr.Code != http.StatusForbidden {
		return false
	}
	for _, item := range gErr.Errors {
		switch item.Reason {
		case "quotaExceeded", "dailyLimitExceeded", "rateLimitExceeded", "userRateLimitExceeded":
			return true
		}
	}
	return strings.Contains(strings.ToLower(gErr.Message), "quota")
}

func collectChannelIDs(items []*yt.SearchResult) []string {
	seen := make(map[string]bool, len(items))
	ids := make([]string, 0, len(items))
	for _, item := range items {
		id := ""
		if item.Snippet != nil {
			id = item.Snippet.ChannelId
		}
		if id == "" && item.Id != nil {
			id = item.Id.ChannelId
		}
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}

func mapChannel(ch *yt.Channel) types.CreatorProfile {
	profile := types.CreatorProfile{ID: ch.Id}
	if snippet := ch.Snippet; snippet != nil {
		profile.Handle = snippet.CustomUrl
		profile.DisplayName = snippet.Title
		profile.Bio = snippet.Description
		profile.Location = snippet.Country
		profile.PublishedAt = parseTimestamp(snippet.PublishedAt)
		profile.ProfileImageURL = bestThumbnail(snippet.Thumbnails)
	}
	if stats := ch.Statistics; stats != nil {
		profile.SubscriberCount = int64(stats.SubscriberCount)
		profile.ViewCount = int64(stats.ViewCount)
		profile.VideoCount = int64(stats.VideoCount)
	}
	if ch.ContentDetails != nil && ch.ContentDetails.RelatedPlaylists != nil {
		profile.UploadsPlaylistID = ch.ContentDetails.RelatedPlaylists.Uploads
	}
	return profile
}

// bestThumbnail prefers the highest resolution available.
func bestThumbnail(thumbs *yt.ThumbnailDetails) string {
	if thumbs == nil {
		return ""
	}
	for _, t := range []*yt.Thumbnail{thumbs.Maxres, thumbs.High, thumbs.Medium, thumbs.Default} {
		if t != nil && t.Url != "" {
			return t.Url
		}
	}
	return ""
}

func parseTimestamp(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil
	}
	return &parsed
}
