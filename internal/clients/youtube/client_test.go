package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"google.golang.org/api/googleapi"

	"github.com/yungbote/hermes-backend/internal/pkg/logger"
)

func quotaErrorBody(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	_, _ = w.Write([]byte(`{"error":{"code":403,"message":"quotaExceeded","errors":[{"reason":"quotaExceeded","message":"Quota exceeded"}]}}`))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func searchResponse(channelIDs ...string) map[string]any {
	items := make([]map[string]any, 0, len(channelIDs))
	for _, id := range channelIDs {
		items = append(items, map[string]any{
			"id":      map[string]any{"channelId": id},
			"snippet": map[string]any{"channelId": id},
		})
	}
	return map[string]any{"items": items}
}

func channelsResponse() map[string]any {
	return map[string]any{
		"items": []map[string]any{
			{
				"id": "UC1",
				"snippet": map[string]any{
					"title":       "Lofi Girl",
					"customUrl":   "@lofigirl",
					"description": "beats to relax to",
					"country":     "FR",
					"publishedAt": "2015-03-18T00:00:00Z",
					"thumbnails": map[string]any{
						"maxres": map[string]any{"url": "https://img.example/maxres.jpg"},
						"high":   map[string]any{"url": "https://img.example/high.jpg"},
					},
				},
				"statistics": map[string]any{
					"subscriberCount": "12000000",
					"viewCount":       "900000000",
					"videoCount":      "420",
				},
				"contentDetails": map[string]any{
					"relatedPlaylists": map[string]any{"uploads": "UU1"},
				},
			},
			{
				"id": "UC2",
				"snippet": map[string]any{
					"title": "Chill Beats",
					"thumbnails": map[string]any{
						"high": map[string]any{"url": "https://img.example/high2.jpg"},
					},
				},
				"statistics": map[string]any{
					"subscriberCount": "53000",
					"viewCount":       "420000",
					"videoCount":      "88",
				},
			},
		},
	}
}

func newServerClient(t *testing.T, keys []string, handler http.HandlerFunc) Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{APIKeys: keys, Endpoint: srv.URL + "/"}, logger.NewNop())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestSearchChannelsMapsProfiles(t *testing.T) {
	var searchCalls, channelCalls atomic.Int32
	c := newServerClient(t, []string{"k1"}, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/youtube/v3/search":
			searchCalls.Add(1)
			writeJSON(w, searchResponse("UC1", "UC2"))
		case "/youtube/v3/channels":
			channelCalls.Add(1)
			writeJSON(w, channelsResponse())
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
			http.NotFound(w, r)
		}
	})

	out, err := c.SearchChannels(context.Background(), "lofi hip hop", 50)
	if err != nil {
		t.Fatalf("SearchChannels: %v", err)
	}
	if out.QuotaUsed != 101 {
		t.Fatalf("quotaUsed=%d want=101", out.QuotaUsed)
	}
	if len(out.Profiles) != 2 {
		t.Fatalf("profiles=%d want=2", len(out.Profiles))
	}

	p := out.Profiles[0]
	if p.ID != "UC1" || p.DisplayName != "Lofi Girl" || p.Handle != "@lofigirl" {
		t.Fatalf("profile identity=%+v", p)
	}
	if p.SubscriberCount != 12_000_000 || p.VideoCount != 420 {
		t.Fatalf("stats subs=%d videos=%d", p.SubscriberCount, p.VideoCount)
	}
	if p.ProfileImageURL != "https://img.example/maxres.jpg" {
		t.Fatalf("thumbnail=%q want maxres", p.ProfileImageURL)
	}
	if p.Location != "FR" || p.UploadsPlaylistID != "UU1" {
		t.Fatalf("location=%q uploads=%q", p.Location, p.UploadsPlaylistID)
	}
	if p.PublishedAt == nil || p.PublishedAt.Year() != 2015 {
		t.Fatalf("publishedAt=%v", p.PublishedAt)
	}
	if searchCalls.Load() != 1 || channelCalls.Load() != 1 {
		t.Fatalf("calls search=%d channels=%d", searchCalls.Load(), channelCalls.Load())
	}
}

func TestSearchChannelsUsesCacheOnRepeat(t *testing.T) {
	var channelCalls atomic.Int32
	c := newServerClient(t, []string{"k1"}, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/youtube/v3/search":
			writeJSON(w, searchResponse("UC1", "UC2"))
		case "/youtube/v3/channels":
			channelCalls.Add(1)
			writeJSON(w, channelsResponse())
		}
	})

	if _, err := c.SearchChannels(context.Background(), "lofi hip hop", 50); err != nil {
		t.Fatalf("first search: %v", err)
	}
	out, err := c.SearchChannels(context.Background(), "lofi radio", 50)
	if err != nil {
		t.Fatalf("second search: %v", err)
	}

	if channelCalls.Load() != 1 {
		t.Fatalf("channels.list calls=%d want=1 (cache should serve repeat)", channelCalls.Load())
	}
	if out.QuotaUsed != 100 {
		t.Fatalf("quotaUsed=%d want=100 (search only)", out.QuotaUsed)
	}

	stats := c.CacheStats()
	if stats.Hits != 2 || stats.Misses != 2 || stats.CacheSize != 2 {
		t.Fatalf("cache stats=%+v", stats)
	}
	if stats.HitRate != 0.5 {
		t.Fatalf("hitRate=%v want=0.5", stats.HitRate)
	}
}

func TestSearchChannelsRotatesKeysOnQuota(t *testing.T) {
	var keysSeen []string
	c := newServerClient(t, []string{"k1", "k2"}, func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Query().Get("key")
		switch r.URL.Path {
		case "/youtube/v3/search":
			keysSeen = append(keysSeen, key)
			if key == "k1" {
				quotaErrorBody(w)
				return
			}
			writeJSON(w, searchResponse("UC1", "UC2"))
		case "/youtube/v3/channels":
			writeJSON(w, channelsResponse())
		}
	})

	out, err := c.SearchChannels(context.Background(), "lofi hip hop", 50)
	if err != nil {
		t.Fatalf("SearchChannels: %v", err)
	}
	if len(out.Profiles) != 2 {
		t.Fatalf("profiles=%d want=2", len(out.Profiles))
	}
	if len(keysSeen) != 2 || keysSeen[0] != "k1" || keysSeen[1] != "k2" {
		t.Fatalf("keysSeen=%v want=[k1 k2]", keysSeen)
	}
}

func TestSearchChannelsAllKeysExhausted(t *testing.T) {
	c := newServerClient(t, []string{"k1", "k2"}, func(w http.ResponseWriter, r *http.Request) {
		quotaErrorBody(w)
	})

	_, err := c.SearchChannels(context.Background(), "lofi hip hop", 50)
	if err == nil {
		t.Fatalf("expected exhaustion error")
	}
	var exhausted *ExhaustedKeysError
	if !errors.As(err, &exhausted) || exhausted.Keys != 2 {
		t.Fatalf("err=%v want ExhaustedKeysError over 2 keys", err)
	}
	if !IsQuotaError(errors.Unwrap(err)) {
		t.Fatalf("exhaustion should wrap the quota error, got %v", err)
	}
}

func TestFetchRecentVideos(t *testing.T) {
	c := newServerClient(t, []string{"k1"}, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/youtube/v3/playlistItems":
			if got := r.URL.Query().Get("playlistId"); got != "UU1" {
				t.Errorf("playlistId=%q want=UU1", got)
			}
			writeJSON(w, map[string]any{
				"items": []map[string]any{
					{"snippet": map[string]any{"resourceId": map[string]any{"videoId": "v1"}}},
					{"snippet": map[string]any{"resourceId": map[string]any{"videoId": "v2"}}},
				},
			})
		case "/youtube/v3/videos":
			writeJSON(w, map[string]any{
				"items": []map[string]any{
					{
						"id":         "v1",
						"statistics": map[string]any{"viewCount": "1000", "likeCount": "80", "commentCount": "10"},
						"snippet":    map[string]any{"publishedAt": "2025-05-01T12:00:00Z"},
					},
					{
						"id":         "v2",
						"statistics": map[string]any{"viewCount": "400", "likeCount": "20", "commentCount": "4"},
						"snippet":    map[string]any{"publishedAt": "2025-04-20T12:00:00Z"},
					},
				},
			})
		}
	})

	videos, quotaUsed, err := c.FetchRecentVideos(context.Background(), "UU1")
	if err != nil {
		t.Fatalf("FetchRecentVideos: %v", err)
	}
	if quotaUsed != 2 {
		t.Fatalf("quotaUsed=%d want=2", quotaUsed)
	}
	if len(videos) != 2 {
		t.Fatalf("videos=%d want=2", len(videos))
	}
	if videos[0].VideoID != "v1" || videos[0].ViewCount != 1000 || videos[0].LikeCount != 80 || videos[0].CommentCount != 10 {
		t.Fatalf("video stats=%+v", videos[0])
	}
	if videos[0].PublishedAt == nil {
		t.Fatalf("publishedAt missing")
	}
}

func TestFetchRecentVideosEmptyPlaylistID(t *testing.T) {
	c := newServerClient(t, []string{"k1"}, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("no API call expected, got %q", r.URL.Path)
	})

	videos, quotaUsed, err := c.FetchRecentVideos(context.Background(), "")
	if err != nil || videos != nil || quotaUsed != 0 {
		t.Fatalf("got videos=%v quota=%d err=%v", videos, quotaUsed, err)
	}
}

func TestUnconfiguredClient(t *testing.T) {
	c, err := NewClient(Config{}, logger.NewNop())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if c.Configured() || c.KeyCount() != 0 {
		t.Fatalf("empty key set reported configured")
	}
	_, err = c.SearchChannels(context.Background(), "anything", 10)
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err=%v want=ErrNotConfigured", err)
	}
}

func TestClearCache(t *testing.T) {
	c := newServerClient(t, []string{"k1"}, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/youtube/v3/search":
			writeJSON(w, searchResponse("UC1", "UC2"))
		case "/youtube/v3/channels":
			writeJSON(w, channelsResponse())
		}
	})

	if _, err := c.SearchChannels(context.Background(), "lofi", 50); err != nil {
		t.Fatalf("search: %v", err)
	}
	if removed := c.ClearCache(); removed != 2 {
		t.Fatalf("removed=%d want=2", removed)
	}
	if stats := c.CacheStats(); stats.CacheSize != 0 {
		t.Fatalf("cacheSize=%d want=0", stats.CacheSize)
	}
}

func TestIsQuotaError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "403 quotaExceeded reason",
			err:  &googleapi.Error{Code: 403, Errors: []googleapi.ErrorItem{{Reason: "quotaExceeded"}}},
			want: true,
		},
		{
			name: "403 rateLimitExceeded reason",
			err:  &googleapi.Error{Code: 403, Errors: []googleapi.ErrorItem{{Reason: "rateLimitExceeded"}}},
			want: true,
		},
		{
			name: "403 forbidden without quota reason",
			err:  &googleapi.Error{Code: 403, Message: "access not configured", Errors: []googleapi.ErrorItem{{Reason: "accessNotConfigured"}}},
			want: false,
		},
		{
			name: "429 always quota",
			err:  &googleapi.Error{Code: 429},
			want: true,
		},
		{name: "plain error", err: errors.New("boom"), want: false},
		{name: "400 bad request", err: &googleapi.Error{Code: 400}, want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsQuotaError(tc.err); got != tc.want {
				t.Fatalf("got=%v want=%v", got, tc.want)
			}
		})
	}
}
