package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/hermes-backend/internal/clients/youtube"
	"github.com/yungbote/hermes-backend/internal/filter"
	"github.com/yungbote/hermes-backend/internal/grading"
	"github.com/yungbote/hermes-backend/internal/services"
	"github.com/yungbote/hermes-backend/internal/types"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeSearchService struct {
	resp services.SearchResponse
	err  error
	got  *services.SearchRequest
}

func (f *fakeSearchService) Search(_ context.Context, req services.SearchRequest) (services.SearchResponse, error) {
	f.got = &req
	if f.err != nil {
		return services.SearchResponse{}, f.err
	}
	return f.resp, nil
}

type fakeSessionService struct {
	page     services.SessionPage
	pageErr  error
	stats    services.SessionStats
	sweep    services.SweepOutcome
	sweepErr error

	gotID       uuid.UUID
	gotPage     int
	gotPageSize int
	gotSort     types.SortKey
	gotCriteria *filter.Criteria
}

func (f *fakeSessionService) Materialize(context.Context, string, string, []grading.GradedCreator, int64) (*types.SearchSession, error) {
	return nil, nil
}

func (f *fakeSessionService) FindValidSession(context.Context, string, string) (*types.SearchSession, error) {
	return nil, nil
}

func (f *fakeSessionService) Paginate(_ context.Context, sessionID uuid.UUID, page, pageSize int, sortKey types.SortKey) (services.SessionPage, error) {
	f.gotID = sessionID
	f.gotPage = page
	f.gotPageSize = pageSize
	f.gotSort = sortKey
	return f.page, f.pageErr
}

func (f *fakeSessionService) PaginateFiltered(_ context.Context, sessionID uuid.UUID, page, pageSize int, sortKey types.SortKey, criteria filter.Criteria) (services.SessionPage, error) {
	f.gotID = sessionID
	f.gotPage = page
	f.gotPageSize = pageSize
	f.gotSort = sortKey
	f.gotCriteria = &criteria
	return f.page, f.pageErr
}

func (f *fakeSessionService) SweepExpired(context.Context) (services.SweepOutcome, error) {
	return f.sweep, f.sweepErr
}

func (f *fakeSessionService) Stats(context.Context) services.SessionStats {
	return f.stats
}

type fakeQueryCacheService struct {
	stats    services.QueryCacheStats
	swept    int64
	sweepErr error
}

func (f *fakeQueryCacheService) Get(context.Context, string) (services.CachedExpansion, bool) {
	return services.CachedExpansion{}, false
}

func (f *fakeQueryCacheService) Put(context.Context, string, []string, int) {}

func (f *fakeQueryCacheService) Stats(context.Context) services.QueryCacheStats {
	return f.stats
}

func (f *fakeQueryCacheService) SweepExpired(context.Context) (int64, error) {
	return f.swept, f.sweepErr
}

type fakePlatformService struct {
	cacheStats youtube.ChannelCacheStats
	cleared    int
}

func (f *fakePlatformService) SearchChannels(context.Context, []string, int) services.PlatformSearchOutcome {
	return services.PlatformSearchOutcome{}
}

func (f *fakePlatformService) CacheStats() youtube.ChannelCacheStats {
	return f.cacheStats
}

func (f *fakePlatformService) ClearChannelCache() int {
	return f.cleared
}

type fakeIngestionService struct {
	outcome  services.IngestionOutcome
	err      error
	counts   map[string]int64
	gotLimit int
}

func (f *fakeIngestionService) IngestBatch(context.Context, string, string, []types.CreatorProfile) services.IngestionOutcome {
	return services.IngestionOutcome{}
}

func (f *fakeIngestionService) ReprocessPending(_ context.Context, limit int) (services.IngestionOutcome, error) {
	f.gotLimit = limit
	return f.outcome, f.err
}

func (f *fakeIngestionService) StatusCounts(context.Context) (map[string]int64, error) {
	return f.counts, nil
}

type fakeVectorService struct {
	scored   []services.VectorScoredCreator
	err      error
	swept    int64
	sweepErr error

	gotQuery    string
	gotPlatform string
	gotLimit    int
}

func (f *fakeVectorService) SimilarCreators(_ context.Context, rawQuery, platform string, limit int) ([]services.VectorScoredCreator, error) {
	f.gotQuery = rawQuery
	f.gotPlatform = platform
	f.gotLimit = limit
	return f.scored, f.err
}

func (f *fakeVectorService) QueryEmbedding(context.Context, string) ([]float64, bool) {
	return nil, false
}

func (f *fakeVectorService) SweepExpired(context.Context) (int64, error) {
	return f.swept, f.sweepErr
}

// doJSON drives a request through the engine and decodes the JSON
// body into a generic map. JSON numbers come back as float64.
func doJSON(t *testing.T, r http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	parsed := map[string]any{}
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &parsed); err != nil {
			t.Fatalf("response is not JSON: %v\nbody: %s", err, w.Body.String())
		}
	}
	return w, parsed
}

func errorCode(t *testing.T, body map[string]any) string {
	t.Helper()
	envelope, ok := body["error"].(map[string]any)
	if !ok {
		t.Fatalf("no error envelope in body: %v", body)
	}
	code, _ := envelope["code"].(string)
	return code
}
