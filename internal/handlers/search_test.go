package handlers

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/hermes-backend/internal/pkg/logger"
	"github.com/yungbote/hermes-backend/internal/services"
	"github.com/yungbote/hermes-backend/internal/types"
)

func searchRouter(search *fakeSearchService, sessions *fakeSessionService) *gin.Engine {
	h := NewSearchHandler(search, sessions, logger.NewNop())
	r := gin.New()
	r.POST("/api/v1/search", h.Search)
	r.GET("/api/v1/search/session/:sessionId", h.PaginateSession)
	r.GET("/api/v1/search/session/:sessionId/filtered", h.PaginateFiltered)
	return r
}

func TestSearchRejectsBadJSON(t *testing.T) {
	search := &fakeSearchService{}
	r := searchRouter(search, &fakeSessionService{})

	w, body := doJSON(t, r, http.MethodPost, "/api/v1/search", "{not json")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if code := errorCode(t, body); code != "invalid_request_body" {
		t.Fatalf("expected invalid_request_body, got %q", code)
	}
	if search.got != nil {
		t.Fatal("pipeline should not run on a bad body")
	}
}

func TestSearchRejectsEmptyGenre(t *testing.T) {
	search := &fakeSearchService{}
	r := searchRouter(search, &fakeSessionService{})

	w, body := doJSON(t, r, http.MethodPost, "/api/v1/search", `{"genre":"   ","platform":"youtube"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if code := errorCode(t, body); code != "missing_genre" {
		t.Fatalf("expected missing_genre, got %q", code)
	}
	if search.got != nil {
		t.Fatal("pipeline should not run without a genre")
	}
}

func TestSearchReturnsPipelineResponse(t *testing.T) {
	search := &fakeSearchService{
		resp: services.SearchResponse{
			SessionID:        "11111111-2222-3333-4444-555555555555",
			Results:          []types.SearchSessionResult{{ChannelID: "UC-a", Rank: 1}},
			TotalResults:     1,
			CurrentPage:      0,
			TotalPages:       1,
			FromCache:        false,
			YoutubeQuotaUsed: 300,
			QueryInfo: &services.ExpansionResult{
				NormalizedQuery: "lofi",
				Queries:         []string{"lofi", "lofi official"},
				Count:           2,
				GeneratedAt:     time.Now(),
			},
			ChannelResults: map[string]int{"lofi": 1},
		},
	}
	r := searchRouter(search, &fakeSessionService{})

	w, body := doJSON(t, r, http.MethodPost, "/api/v1/search", `{"genre":"lofi","platform":"youtube","pageSize":10}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if search.got == nil || search.got.Genre != "lofi" {
		t.Fatalf("request not passed through: %+v", search.got)
	}
	if body["sessionId"] != "11111111-2222-3333-4444-555555555555" {
		t.Fatalf("unexpected sessionId: %v", body["sessionId"])
	}
	if body["youtubeQuotaUsed"] != float64(300) {
		t.Fatalf("unexpected quota: %v", body["youtubeQuotaUsed"])
	}
	if body["fromCache"] != false {
		t.Fatalf("expected fromCache false, got %v", body["fromCache"])
	}
	if body["queryInfo"] == nil {
		t.Fatal("expected queryInfo on a fresh search")
	}
}

func TestSearchSurfacesStorageError(t *testing.T) {
	search := &fakeSearchService{err: errors.New("connection refused")}
	r := searchRouter(search, &fakeSessionService{})

	w, body := doJSON(t, r, http.MethodPost, "/api/v1/search", `{"genre":"lofi"}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if code := errorCode(t, body); code != "search_failed" {
		t.Fatalf("expected search_failed, got %q", code)
	}
}

func TestPaginateSessionRejectsBadID(t *testing.T) {
	r := searchRouter(&fakeSearchService{}, &fakeSessionService{})

	w, body := doJSON(t, r, http.MethodGet, "/api/v1/search/session/not-a-uuid", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if code := errorCode(t, body); code != "invalid_session_id" {
		t.Fatalf("expected invalid_session_id, got %q", code)
	}
}

func TestPaginateSessionParamsAndDefaults(t *testing.T) {
	sessionID := uuid.New()
	sessions := &fakeSessionService{
		page: services.SessionPage{
			SessionID:    sessionID,
			Results:      []types.SearchSessionResult{{ChannelID: "UC-a", Rank: 4}},
			TotalResults: 17,
			Page:         2,
			PageSize:     5,
			TotalPages:   4,
			SortKey:      types.SortSubscribers,
			Found:        true,
		},
	}
	r := searchRouter(&fakeSearchService{}, sessions)

	w, body := doJSON(t, r, http.MethodGet,
		"/api/v1/search/session/"+sessionID.String()+"?page=2&pageSize=5&sortBy=subscribers", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if sessions.gotID != sessionID {
		t.Fatalf("wrong session id passed: %s", sessions.gotID)
	}
	if sessions.gotPage != 2 || sessions.gotPageSize != 5 {
		t.Fatalf("params not forwarded: page=%d size=%d", sessions.gotPage, sessions.gotPageSize)
	}
	if sessions.gotSort != types.SortSubscribers {
		t.Fatalf("sort key not parsed: %s", sessions.gotSort)
	}
	if body["fromCache"] != true {
		t.Fatal("session reads must report fromCache")
	}
	if body["youtubeQuotaUsed"] != float64(0) {
		t.Fatalf("session reads must spend nothing, got %v", body["youtubeQuotaUsed"])
	}
	if body["sortBy"] != string(types.SortSubscribers) {
		t.Fatalf("unexpected sortBy: %v", body["sortBy"])
	}

	// No params: defaults page 0, size 10, FINAL_SCORE; junk sortBy
	// also lands on FINAL_SCORE.
	doJSON(t, r, http.MethodGet, "/api/v1/search/session/"+sessionID.String()+"?sortBy=bogus", "")
	if sessions.gotPage != 0 || sessions.gotPageSize != 10 {
		t.Fatalf("defaults not applied: page=%d size=%d", sessions.gotPage, sessions.gotPageSize)
	}
	if sessions.gotSort != types.SortFinalScore {
		t.Fatalf("invalid sortBy should fall back to FINAL_SCORE, got %s", sessions.gotSort)
	}
}

func TestPaginateSessionExpiredMarker(t *testing.T) {
	sessionID := uuid.New()
	sessions := &fakeSessionService{
		page: services.SessionPage{
			SessionID: sessionID,
			Results:   []types.SearchSessionResult{},
			SortKey:   types.SortFinalScore,
			Expired:   true,
		},
	}
	r := searchRouter(&fakeSearchService{}, sessions)

	w, body := doJSON(t, r, http.MethodGet, "/api/v1/search/session/"+sessionID.String(), "")
	if w.Code != http.StatusOK {
		t.Fatalf("expired sessions are not errors, got %d", w.Code)
	}
	if body["expired"] != true {
		t.Fatalf("expected expired marker, got %v", body["expired"])
	}
	results, ok := body["results"].([]any)
	if !ok || len(results) != 0 {
		t.Fatalf("expected empty results, got %v", body["results"])
	}
}

func TestPaginateSessionStorageError(t *testing.T) {
	sessions := &fakeSessionService{pageErr: errors.New("disk gone")}
	r := searchRouter(&fakeSearchService{}, sessions)

	w, body := doJSON(t, r, http.MethodGet, "/api/v1/search/session/"+uuid.NewString(), "")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if code := errorCode(t, body); code != "pagination_failed" {
		t.Fatalf("expected pagination_failed, got %q", code)
	}
}

func TestPaginateFilteredParsesCriteria(t *testing.T) {
	sessionID := uuid.New()
	sessions := &fakeSessionService{
		page: services.SessionPage{
			SessionID:    sessionID,
			Results:      []types.SearchSessionResult{{ChannelID: "UC-a", Rank: 1}},
			TotalResults: 1,
			TotalPages:   1,
			SortKey:      types.SortEngagement,
			Found:        true,
		},
	}
	r := searchRouter(&fakeSearchService{}, sessions)

	path := "/api/v1/search/session/" + sessionID.String() +
		"/filtered?audience=small,large&engagement=high&sortBy=ENGAGEMENT"
	w, body := doJSON(t, r, http.MethodGet, path, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if sessions.gotCriteria == nil {
		t.Fatal("criteria never reached the service")
	}
	if got := sessions.gotCriteria.Audience; len(got) != 2 || got[0] != "small" || got[1] != "large" {
		t.Fatalf("audience criteria mangled: %v", got)
	}
	if got := sessions.gotCriteria.Engagement; len(got) != 1 || got[0] != "high" {
		t.Fatalf("engagement criteria mangled: %v", got)
	}
	if sessions.gotSort != types.SortEngagement {
		t.Fatalf("sort key not parsed: %s", sessions.gotSort)
	}
	if body["activeFilters"] != float64(2) {
		t.Fatalf("expected 2 active filters, got %v", body["activeFilters"])
	}
	if body["fromCache"] != true {
		t.Fatal("filtered reads must report fromCache")
	}
}
