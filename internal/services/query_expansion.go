package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/yungbote/hermes-backend/internal/clients/cohere"
	"github.com/yungbote/hermes-backend/internal/governor"
	"github.com/yungbote/hermes-backend/internal/normalization"
	"github.com/yungbote/hermes-backend/internal/pkg/logger"
)

const (
	// estimatedExpansionTokens is the budget charged against the token
	// governor before an expansion call is attempted.
	estimatedExpansionTokens = 300

	expansionTemperature = 0.3
	expansionMaxTokens   = 256
)

// listMarkerRE strips leading bullet and numbering markers from LLM
// output lines ("1. lofi mix" -> "lofi mix").
var listMarkerRE = regexp.MustCompile(`^[-*\d.]+\s*`)

// ExpansionResult is what every caller of Generate receives: a
// non-empty ordered query list, whatever it took to get one.
type ExpansionResult struct {
	NormalizedQuery string    `json:"normalizedQuery"`
	Queries         []string  `json:"queries"`
	Count           int       `json:"count"`
	FromCache       bool      `json:"fromCache"`
	Fallback        bool      `json:"fallback"`
	GeneratedAt     time.Time `json:"generatedAt"`
}

// QueryExpansionService turns one genre phrase into a fan-out of
// platform search queries. LLM failures of any kind collapse into the
// deterministic fallback set; Generate never errors and never returns
// an empty list.
type QueryExpansionService interface {
	Generate(ctx context.Context, rawQuery string) ExpansionResult
}

type queryExpansionService struct {
	log    *logger.Logger
	llm    cohere.Client
	tokens governor.TokenGovernor
	cache  QueryCacheService
	now    func() time.Time
}

func NewQueryExpansionService(llm cohere.Client, tokens governor.TokenGovernor, cache QueryCacheService, baseLog *logger.Logger) QueryExpansionService {
	return &queryExpansionService{
		log:    baseLog.With("service", "QueryExpansionService"),
		llm:    llm,
		tokens: tokens,
		cache:  cache,
		now:    time.Now,
	}
}

func (qe *queryExpansionService) Generate(ctx context.Context, rawQuery string) ExpansionResult {
	normalized := normalization.NormalizeQuery(rawQuery)
	base := normalized
	if base == "" {
		base = strings.ToLower(strings.TrimSpace(rawQuery))
	}

	if cached, ok := qe.cache.Get(ctx, rawQuery); ok {
		return ExpansionResult{
			NormalizedQuery: cached.NormalizedQuery,
			Queries:         cached.Queries,
			Count:           len(cached.Queries),
			FromCache:       true,
			GeneratedAt:     qe.now(),
		}
	}

	decision := qe.tokens.CheckBudget(estimatedExpansionTokens)
	if !decision.Allowed() || !qe.llm.Configured() {
		qe.log.Info("Using deterministic expansion fallback",
			"normalized", normalized,
			"budget_action", string(decision.Action),
			"llm_configured", qe.llm.Configured(),
		)
		return qe.fallback(ctx, rawQuery, normalized, base)
	}

	resp, err := qe.llm.Chat(ctx, cohere.ChatRequest{
		Message:     expansionPrompt(base),
		Temperature: expansionTemperature,
		MaxTokens:   expansionMaxTokens,
	})
	if err != nil {
		qe.log.Warn("Query expansion call failed, falling back", "normalized", normalized, "error", err)
		return qe.fallback(ctx, rawQuery, normalized, base)
	}

	generated := parseQueryLines(resp.Text)
	if len(generated) == 0 {
		qe.log.Warn("Query expansion produced no usable lines, falling back", "normalized", normalized)
		return qe.fallback(ctx, rawQuery, normalized, base)
	}

	queries := withPriorityVariants(base, generated)

	tokensUsed := resp.TotalTokens()
	if tokensUsed <= 0 {
		tokensUsed = estimatedExpansionTokens
	}
	qe.tokens.RecordUsage(tokensUsed)
	qe.cache.Put(ctx, rawQuery, queries, int(tokensUsed))

	qe.log.Info("Generated query expansion",
		"normalized", normalized,
		"query_count", len(queries),
		"tokens_used", tokensUsed,
	)
	return ExpansionResult{
		NormalizedQuery: normalized,
		Queries:         queries,
		Count:           len(queries),
		GeneratedAt:     qe.now(),
	}
}

// fallback builds the deterministic query set and caches it at zero
// token cost so repeated misses stop re-checking the budget.
func (qe *queryExpansionService) fallback(ctx context.Context, rawQuery, normalized, base string) ExpansionResult {
	queries := fallbackQueries(base)
	qe.cache.Put(ctx, rawQuery, queries, 0)
	return ExpansionResult{
		NormalizedQuery: normalized,
		Queries:         queries,
		Count:           len(queries),
		Fallback:        true,
		GeneratedAt:     qe.now(),
	}
}

func expansionPrompt(genre string) string {
	return fmt.Sprintf(
		"Generate 6-8 short, high-signal YouTube search queries for discovering channels in the genre %q. "+
			"Each query should surface creators, not individual videos. "+
			"Return one query per line with no numbering and no commentary.",
		genre,
	)
}

// parseQueryLines extracts candidate queries from raw LLM output:
// one per line, list markers stripped, deduplicated case-insensitively.
func parseQueryLines(text string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		line = listMarkerRE.ReplaceAllString(line, "")
		line = strings.Trim(line, `"'`)
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lowered := strings.ToLower(line)
		if _, dup := seen[lowered]; dup {
			continue
		}
		seen[lowered] = struct{}{}
		out = append(out, line)
	}
	return out
}

// withPriorityVariants puts the three base variants first and appends
// generated queries that are not already present (case-insensitive).
func withPriorityVariants(base string, generated []string) []string {
	queries := priorityVariants(base)
	seen := make(map[string]struct{}, len(queries)+len(generated))
	for _, q := range queries {
		seen[strings.ToLower(q)] = struct{}{}
	}
	for _, q := range generated {
		lowered := strings.ToLower(q)
		if _, dup := seen[lowered]; dup {
			continue
		}
		seen[lowered] = struct{}{}
		queries = append(queries, q)
	}
	return queries
}

func priorityVariants(base string) []string {
	return []string{base, base + " official", base + " channel"}
}

func fallbackQueries(base string) []string {
	return append(priorityVariants(base),
		base+" youtuber",
		base+" creator",
		base+" best",
	)
}
