package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/hermes-backend/internal/filter"
	"github.com/yungbote/hermes-backend/internal/pkg/logger"
	"github.com/yungbote/hermes-backend/internal/services"
	"github.com/yungbote/hermes-backend/internal/types"
)

const (
	defaultPage     = 0
	defaultPageSize = 10
)

type SearchHandler struct {
	log      *logger.Logger
	search   services.SearchService
	sessions services.SessionService
}

func NewSearchHandler(search services.SearchService, sessions services.SessionService, baseLog *logger.Logger) *SearchHandler {
	return &SearchHandler{
		log:      baseLog.With("handler", "SearchHandler"),
		search:   search,
		sessions: sessions,
	}
}

// POST /api/v1/search
// Runs the discovery pipeline and returns the first page plus a
// sessionId for zero-quota pagination. A repeat search for the same
// genre within the session TTL is served from the stored session.
func (h *SearchHandler) Search(c *gin.Context) {
	var req services.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request_body", err)
		return
	}
	if strings.TrimSpace(req.Genre) == "" {
		RespondError(c, http.StatusBadRequest, "missing_genre", errors.New("genre is required"))
		return
	}

	resp, err := h.search.Search(c.Request.Context(), req)
	if err != nil {
		h.log.Error("search failed", "genre", req.Genre, "error", err)
		RespondError(c, http.StatusInternalServerError, "search_failed", err)
		return
	}

	RespondOK(c, resp)
}

// GET /api/v1/search/session/:sessionId
// Pages through a materialized session without any external call.
// Unknown and expired sessions are not errors: the body carries an
// empty result list and the expired marker.
func (h *SearchHandler) PaginateSession(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("sessionId"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_session_id", err)
		return
	}

	page := intQuery(c, "page", defaultPage)
	pageSize := intQuery(c, "pageSize", defaultPageSize)
	sortKey := types.ParseSortKey(c.Query("sortBy"))

	result, err := h.sessions.Paginate(c.Request.Context(), sessionID, page, pageSize, sortKey)
	if err != nil {
		h.log.Error("session pagination failed", "sessionId", sessionID, "error", err)
		RespondError(c, http.StatusInternalServerError, "pagination_failed", err)
		return
	}

	RespondOK(c, sessionPageBody(result))
}

// GET /api/v1/search/session/:sessionId/filtered
// Same as PaginateSession with multi-select filters applied before
// sorting and windowing. Filter categories are comma-separated query
// params; values within a category OR, categories AND.
func (h *SearchHandler) PaginateFiltered(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("sessionId"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_session_id", err)
		return
	}

	page := intQuery(c, "page", defaultPage)
	pageSize := intQuery(c, "pageSize", defaultPageSize)
	sortKey := types.ParseSortKey(c.Query("sortBy"))
	criteria := filter.Parse(c.Query)

	result, err := h.sessions.PaginateFiltered(c.Request.Context(), sessionID, page, pageSize, sortKey, criteria)
	if err != nil {
		h.log.Error("filtered pagination failed", "sessionId", sessionID, "error", err)
		RespondError(c, http.StatusInternalServerError, "pagination_failed", err)
		return
	}

	body := sessionPageBody(result)
	body["activeFilters"] = criteria.ActiveFilterCount()
	RespondOK(c, body)
}

// sessionPageBody mirrors the search response envelope for the read
// path: session reads are always cache hits and never spend quota.
func sessionPageBody(page services.SessionPage) gin.H {
	return gin.H{
		"sessionId":        page.SessionID,
		"results":          page.Results,
		"totalResults":     page.TotalResults,
		"currentPage":      page.Page,
		"pageSize":         page.PageSize,
		"totalPages":       page.TotalPages,
		"sortBy":           page.SortKey,
		"expired":          page.Expired,
		"fromCache":        true,
		"youtubeQuotaUsed": 0,
	}
}

func intQuery(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
