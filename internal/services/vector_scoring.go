package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"gorm.io/datatypes"

	"github.com/yungbote/hermes-backend/internal/clients/cohere"
	"github.com/yungbote/hermes-backend/internal/governor"
	"github.com/yungbote/hermes-backend/internal/normalization"
	"github.com/yungbote/hermes-backend/internal/pkg/logger"
	"github.com/yungbote/hermes-backend/internal/pkg/memcache"
	"github.com/yungbote/hermes-backend/internal/repos"
	"github.com/yungbote/hermes-backend/internal/types"
)

const (
	// Query embeddings are cached in two tiers like digest expansions:
	// a small in-process LRU in front of a 7-day database row.
	embeddingL1Size   = 500
	embeddingL1TTL    = 30 * time.Minute
	queryEmbeddingTTL = 7 * 24 * time.Hour

	// estimatedQueryEmbedTokens is charged against the token governor
	// before an embedding call; billed tokens replace it afterwards.
	estimatedQueryEmbedTokens = 100

	vectorWeight    = 0.7
	nameBoostWeight = 0.3

	// neutralSimilarity stands in when either side of the comparison
	// has no usable embedding.
	neutralSimilarity = 0.5
	nameBoostFloor    = 0.3

	defaultSimilarLimit  = 20
	similarCandidatePool = 500
)

// VectorScoredCreator is one stored creator scored against a query.
type VectorScoredCreator struct {
	ChannelID       string   `json:"channelId"`
	ChannelName     string   `json:"channelName"`
	Description     string   `json:"description,omitempty"`
	ProfileImageURL string   `json:"profileImageUrl,omitempty"`
	Platform        string   `json:"platform"`
	Similarity      float64  `json:"similarity"`
	NameMatchBoost  float64  `json:"nameMatchBoost"`
	FinalScore      float64  `json:"finalScore"`
	Labels          []string `json:"labels"`
}

// VectorScoringService ranks ingested creators against a free-text
// query by cosine similarity over stored profile embeddings, blended
// with a name match boost. It backs the admin similar-creators
// endpoint and stays out of the session read path, which must not
// trigger external calls.
type VectorScoringService interface {
	// SimilarCreators scores up to similarCandidatePool embedded
	// creators and returns the best limit of them, highest first.
	// When no query embedding can be obtained every candidate keeps
	// the neutral similarity and the ordering degrades to name match.
	SimilarCreators(ctx context.Context, rawQuery, platform string, limit int) ([]VectorScoredCreator, error)

	// QueryEmbedding resolves the embedding for a query through the
	// L1/L2 caches, generating and persisting it on a miss. ok is
	// false when no embedding could be produced (blank query, budget
	// exhausted, provider not configured or failing).
	QueryEmbedding(ctx context.Context, rawQuery string) ([]float64, bool)

	// SweepExpired deletes query embedding rows past their TTL.
	SweepExpired(ctx context.Context) (int64, error)
}

type vectorScoringService struct {
	log        *logger.Logger
	llm        cohere.Client
	tokens     governor.TokenGovernor
	creators   repos.CreatorRepo
	embeddings repos.QueryEmbeddingRepo
	l1         *memcache.Cache[string, []float64]
	now        func() time.Time
}

func NewVectorScoringService(llm cohere.Client, tokens governor.TokenGovernor, creators repos.CreatorRepo, embeddings repos.QueryEmbeddingRepo, baseLog *logger.Logger) VectorScoringService {
	return &vectorScoringService{
		log:        baseLog.With("service", "VectorScoringService"),
		llm:        llm,
		tokens:     tokens,
		creators:   creators,
		embeddings: embeddings,
		l1:         memcache.New[string, []float64](embeddingL1Size, embeddingL1TTL),
		now:        time.Now,
	}
}

func (vs *vectorScoringService) SimilarCreators(ctx context.Context, rawQuery, platform string, limit int) ([]VectorScoredCreator, error) {
	if limit <= 0 {
		limit = defaultSimilarLimit
	}

	candidates, err := vs.creators.ListWithEmbedding(ctx, nil, platform, similarCandidatePool)
	if err != nil {
		return nil, fmt.Errorf("listing embedded creators: %w", err)
	}
	if len(candidates) == 0 {
		return []VectorScoredCreator{}, nil
	}

	queryEmbedding, haveQuery := vs.QueryEmbedding(ctx, rawQuery)
	normalized := normalization.NormalizeQuery(rawQuery)
	if normalized == "" {
		normalized = strings.ToLower(strings.TrimSpace(rawQuery))
	}

	scored := make([]VectorScoredCreator, 0, len(candidates))
	for _, creator := range candidates {
		similarity := neutralSimilarity
		if haveQuery && creator.HasEmbedding() {
			similarity = (cohere.CosineSimilarity(queryEmbedding, creator.ProfileEmbedding) + 1) / 2
		}
		boost := nameMatchBoost(creator.ChannelName, normalized)
		final := similarity*vectorWeight + boost*nameBoostWeight

		scored = append(scored, VectorScoredCreator{
			ChannelID:       creator.ChannelID,
			ChannelName:     creator.ChannelName,
			Description:     creator.Description,
			ProfileImageURL: creator.ProfileImageURL,
			Platform:        creator.Platform,
			Similarity:      similarity,
			NameMatchBoost:  boost,
			FinalScore:      final,
			Labels:          similarityLabels(similarity, boost, final),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].FinalScore > scored[j].FinalScore
	})
	if len(scored) > limit {
		scored = scored[:limit]
	}

	vs.log.Info("Scored similar creators",
		"normalized", normalized,
		"candidates", len(candidates),
		"returned", len(scored),
		"query_embedding", haveQuery,
	)
	return scored, nil
}

func (vs *vectorScoringService) QueryEmbedding(ctx context.Context, rawQuery string) ([]float64, bool) {
	key := normalization.CacheKey(rawQuery)

	if embedding, ok := vs.l1.Get(key); ok {
		return embedding, true
	}

	row, err := vs.embeddings.FindValid(ctx, nil, key, vs.now())
	if err != nil {
		vs.log.Warn("Query embedding lookup failed", "digest_key", key, "error", err)
	} else if row != nil && !isZeroVector(row.Embedding) {
		embedding := []float64(row.Embedding)
		vs.l1.Set(key, embedding)
		return embedding, true
	}

	normalized := normalization.NormalizeQuery(rawQuery)
	if normalized == "" || !vs.llm.Configured() {
		return nil, false
	}
	decision := vs.tokens.CheckBudget(estimatedQueryEmbedTokens)
	if !decision.CanUseLLM() {
		vs.log.Info("Token budget blocks query embedding",
			"normalized", normalized,
			"budget_action", string(decision.Action),
		)
		return nil, false
	}

	resp, err := vs.llm.Embed(ctx, cohere.EmbedRequest{
		Texts:     []string{normalized},
		InputType: cohere.InputTypeSearchQuery,
	})
	if err != nil || len(resp.Embeddings) == 0 {
		vs.log.Warn("Query embedding call failed", "normalized", normalized, "error", err)
		return nil, false
	}
	tokensUsed := resp.InputTokens
	if tokensUsed <= 0 {
		tokensUsed = cohere.EstimateTokens(normalized)
	}
	vs.tokens.RecordUsage(tokensUsed)

	embedding := resp.Embeddings[0]
	entry := &types.QueryEmbedding{
		DigestKey:       key,
		NormalizedQuery: normalized,
		Embedding:       datatypes.JSONSlice[float64](embedding),
		ModelVersion:    vs.llm.EmbedModel(),
		ExpiresAt:       vs.now().Add(queryEmbeddingTTL),
	}
	if err := vs.embeddings.Upsert(ctx, nil, entry); err != nil {
		vs.log.Warn("Persisting query embedding failed", "digest_key", key, "error", err)
	}
	vs.l1.Set(key, embedding)
	return embedding, true
}

func (vs *vectorScoringService) SweepExpired(ctx context.Context) (int64, error) {
	deleted, err := vs.embeddings.DeleteExpired(ctx, nil, vs.now())
	if err != nil {
		return 0, fmt.Errorf("deleting expired query embeddings: %w", err)
	}
	if deleted > 0 {
		vs.log.Info("Swept expired query embeddings", "deleted", deleted)
	}
	return deleted, nil
}

// nameMatchBoost grades how directly a channel name restates the
// query: exact 1.0, prefix 0.9, substring 0.7, then word overlap
// scaled between 0.5 and 0.7, floor 0.3.
func nameMatchBoost(channelName, normalizedQuery string) float64 {
	cleanChannel := foldAlnum(channelName)
	cleanQuery := foldAlnum(normalizedQuery)
	if cleanChannel == "" || cleanQuery == "" {
		return nameBoostFloor
	}
	if cleanChannel == cleanQuery {
		return 1.0
	}
	if strings.HasPrefix(cleanChannel, cleanQuery) || strings.HasPrefix(cleanQuery, cleanChannel) {
		return 0.9
	}
	if strings.Contains(cleanChannel, cleanQuery) || strings.Contains(cleanQuery, cleanChannel) {
		return 0.7
	}

	queryWords := wordSet(normalizedQuery)
	if len(queryWords) == 0 {
		return nameBoostFloor
	}
	hits := 0
	for word := range wordSet(channelName) {
		if _, ok := queryWords[word]; ok {
			hits++
		}
	}
	if hits > 0 {
		return 0.5 + 0.2*float64(hits)/float64(len(queryWords))
	}
	return nameBoostFloor
}

func similarityLabels(similarity, boost, final float64) []string {
	labels := make([]string, 0, 2)
	if boost >= 0.9 {
		labels = append(labels, "Best Match")
	} else if similarity >= 0.7 {
		labels = append(labels, "Strong Fit")
	}
	if final >= 0.8 {
		labels = append(labels, "Highly Relevant")
	}
	if len(labels) == 0 {
		labels = append(labels, "Related")
	}
	return labels
}

// foldAlnum lowercases and strips everything outside [a-z0-9] so
// "Lo-Fi Girl" and "lofi girl" compare equal.
func foldAlnum(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func wordSet(s string) map[string]struct{} {
	words := make(map[string]struct{})
	for _, w := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		words[w] = struct{}{}
	}
	return words
}

func isZeroVector(v []float64) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
