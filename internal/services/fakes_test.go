package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/hermes-backend/internal/clients/cohere"
	"github.com/yungbote/hermes-backend/internal/clients/youtube"
	"github.com/yungbote/hermes-backend/internal/db"
	"github.com/yungbote/hermes-backend/internal/governor"
	"github.com/yungbote/hermes-backend/internal/normalization"
	"github.com/yungbote/hermes-backend/internal/pkg/logger"
	"github.com/yungbote/hermes-backend/internal/types"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	svc, err := db.NewTestService(strings.ReplaceAll(t.Name(), "/", "_"), logger.NewNop())
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := svc.AutoMigrateAll(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return svc.DB()
}

func testProfile(id, name string, subscribers int64) types.CreatorProfile {
	published := time.Now().UTC().AddDate(-2, 0, 0)
	lastVideo := time.Now().UTC().AddDate(0, 0, -3)
	return types.CreatorProfile{
		ID:              id,
		Handle:          "@" + strings.ToLower(strings.ReplaceAll(name, " ", "")),
		DisplayName:     name,
		Bio:             name + " uploads every week",
		ProfileImageURL: "https://img.example.com/" + id + ".jpg",
		SubscriberCount: subscribers,
		ViewCount:       subscribers * 40,
		VideoCount:      120,
		PublishedAt:     &published,
		LastVideoDate:   &lastVideo,
	}
}

// fakeLLM stands in for the Cohere client. Chat returns a canned completion
// and Embed hands out a fixed vector per text unless embedFn overrides it.
type fakeLLM struct {
	mu         sync.Mutex
	configured bool
	chatText   string
	chatErr    error
	chatTokens int64
	chatCalls  int
	embedFn    func(req cohere.EmbedRequest) (cohere.EmbedResponse, error)
	embedErr   error
	embedCalls int
	lastEmbed  cohere.EmbedRequest
}

func (f *fakeLLM) Chat(ctx context.Context, req cohere.ChatRequest) (cohere.ChatResponse, error) {
	f.mu.Lock()
	f.chatCalls++
	f.mu.Unlock()
	if f.chatErr != nil {
		return cohere.ChatResponse{}, f.chatErr
	}
	return cohere.ChatResponse{Text: f.chatText, OutputTokens: f.chatTokens}, nil
}

func (f *fakeLLM) Embed(ctx context.Context, req cohere.EmbedRequest) (cohere.EmbedResponse, error) {
	f.mu.Lock()
	f.embedCalls++
	f.lastEmbed = req
	f.mu.Unlock()
	if f.embedErr != nil {
		return cohere.EmbedResponse{}, f.embedErr
	}
	if f.embedFn != nil {
		return f.embedFn(req)
	}
	embeddings := make([][]float64, len(req.Texts))
	for i := range req.Texts {
		embeddings[i] = []float64{1, 0, 0}
	}
	return cohere.EmbedResponse{Embeddings: embeddings, InputTokens: int64(8 * len(req.Texts))}, nil
}

func (f *fakeLLM) Configured() bool { return f.configured }

func (f *fakeLLM) EmbedModel() string { return "embed-english-v3.0" }

func (f *fakeLLM) embeds() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.embedCalls
}

func (f *fakeLLM) chats() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.chatCalls
}

type fakeTokens struct {
	mu       sync.Mutex
	action   governor.BudgetAction
	checks   []int64
	recorded []int64
}

func (f *fakeTokens) CheckBudget(estimatedTokens int64) governor.BudgetDecision {
	f.mu.Lock()
	f.checks = append(f.checks, estimatedTokens)
	action := f.action
	f.mu.Unlock()
	if action == "" {
		action = governor.BudgetAllow
	}
	return governor.BudgetDecision{Action: action, Reason: "test"}
}

func (f *fakeTokens) RecordUsage(tokens int64) {
	f.mu.Lock()
	f.recorded = append(f.recorded, tokens)
	f.mu.Unlock()
}

func (f *fakeTokens) Stats() governor.TokenUsageStats { return governor.TokenUsageStats{} }

func (f *fakeTokens) totalRecorded() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	var total int64
	for _, n := range f.recorded {
		total += n
	}
	return total
}

type fakeQuota struct {
	mu       sync.Mutex
	action   governor.QuotaAction
	recorded []int64
}

func (f *fakeQuota) CheckQuota(estimatedCost int64) governor.QuotaDecision {
	action := f.action
	if action == "" {
		action = governor.QuotaAllow
	}
	return governor.QuotaDecision{Action: action, Reason: "test"}
}

func (f *fakeQuota) EstimateCost(queryCount, maxResultsPerQuery int) int64 {
	return int64(queryCount) * governor.SearchListCost
}

func (f *fakeQuota) RecordUsage(units int64) {
	f.mu.Lock()
	f.recorded = append(f.recorded, units)
	f.mu.Unlock()
}

func (f *fakeQuota) Stats() governor.QuotaStats { return governor.QuotaStats{} }

func (f *fakeQuota) totalRecorded() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	var total int64
	for _, n := range f.recorded {
		total += n
	}
	return total
}

// fakeYouTube maps queries to canned outcomes. Unmapped queries return an
// empty outcome, mirroring a search that matched nothing.
type fakeYouTube struct {
	mu          sync.Mutex
	configured  bool
	outcomes    map[string]youtube.SearchOutcome
	errs        map[string]error
	videoStats  map[string][]types.VideoStatistics
	videoCost   int64
	videoErr    error
	searchCalls []string
	videoCalls  []string
	maxResults  []int64
}

func newFakeYouTube() *fakeYouTube {
	return &fakeYouTube{
		configured: true,
		outcomes:   make(map[string]youtube.SearchOutcome),
		errs:       make(map[string]error),
		videoStats: make(map[string][]types.VideoStatistics),
	}
}

func (f *fakeYouTube) SearchChannels(ctx context.Context, query string, maxResults int64) (youtube.SearchOutcome, error) {
	f.mu.Lock()
	f.searchCalls = append(f.searchCalls, query)
	f.maxResults = append(f.maxResults, maxResults)
	f.mu.Unlock()
	if err, ok := f.errs[query]; ok {
		return youtube.SearchOutcome{QuotaUsed: governor.SearchListCost}, err
	}
	return f.outcomes[query], nil
}

func (f *fakeYouTube) FetchRecentVideos(ctx context.Context, uploadsPlaylistID string) ([]types.VideoStatistics, int64, error) {
	f.mu.Lock()
	f.videoCalls = append(f.videoCalls, uploadsPlaylistID)
	f.mu.Unlock()
	if f.videoErr != nil {
		return nil, f.videoCost, f.videoErr
	}
	return f.videoStats[uploadsPlaylistID], f.videoCost, nil
}

func (f *fakeYouTube) Configured() bool { return f.configured }

func (f *fakeYouTube) KeyCount() int {
	if f.configured {
		return 1
	}
	return 0
}

func (f *fakeYouTube) CacheStats() youtube.ChannelCacheStats { return youtube.ChannelCacheStats{} }

func (f *fakeYouTube) ClearCache() int { return 0 }

func (f *fakeYouTube) searches() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.searchCalls...)
}

// fakeQueryCache keeps expansions in a map keyed the same way the real
// cache keys its rows.
type fakeQueryCache struct {
	mu      sync.Mutex
	entries map[string]CachedExpansion
	puts    []CachedExpansion
}

func newFakeQueryCache() *fakeQueryCache {
	return &fakeQueryCache{entries: make(map[string]CachedExpansion)}
}

func (f *fakeQueryCache) Get(ctx context.Context, rawQuery string) (CachedExpansion, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry, ok := f.entries[normalization.CacheKey(rawQuery)]
	return entry, ok
}

func (f *fakeQueryCache) Put(ctx context.Context, rawQuery string, queries []string, tokenCost int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry := CachedExpansion{
		NormalizedQuery: normalization.NormalizeQuery(rawQuery),
		Queries:         append([]string(nil), queries...),
		TokenCost:       tokenCost,
	}
	f.entries[normalization.CacheKey(rawQuery)] = entry
	f.puts = append(f.puts, entry)
}

func (f *fakeQueryCache) Stats(ctx context.Context) QueryCacheStats { return QueryCacheStats{} }

func (f *fakeQueryCache) SweepExpired(ctx context.Context) (int64, error) { return 0, nil }

func (f *fakeQueryCache) lastPut() (CachedExpansion, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.puts) == 0 {
		return CachedExpansion{}, false
	}
	return f.puts[len(f.puts)-1], true
}

// fakeIngestionService records handed-off batches and closes done on the
// first one so tests can wait for the detached goroutine.
type fakeIngestionService struct {
	mu       sync.Mutex
	once     sync.Once
	done     chan struct{}
	batches  [][]types.CreatorProfile
	platform string
	origin   string
}

func newFakeIngestionService() *fakeIngestionService {
	return &fakeIngestionService{done: make(chan struct{})}
}

func (f *fakeIngestionService) IngestBatch(ctx context.Context, platform, originQuery string, profiles []types.CreatorProfile) IngestionOutcome {
	f.mu.Lock()
	f.batches = append(f.batches, append([]types.CreatorProfile(nil), profiles...))
	f.platform = platform
	f.origin = originQuery
	f.mu.Unlock()
	f.once.Do(func() { close(f.done) })
	return IngestionOutcome{Ingested: len(profiles)}
}

func (f *fakeIngestionService) ReprocessPending(ctx context.Context, limit int) (IngestionOutcome, error) {
	return IngestionOutcome{}, nil
}

func (f *fakeIngestionService) StatusCounts(ctx context.Context) (map[string]int64, error) {
	return map[string]int64{}, nil
}

func (f *fakeIngestionService) waitForBatch(t *testing.T) []types.CreatorProfile {
	t.Helper()
	select {
	case <-f.done:
	case <-time.After(5 * time.Second):
		t.Fatalf("ingestion batch never arrived")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.batches) == 0 {
		t.Fatalf("ingestion signalled without a batch")
	}
	return f.batches[0]
}
