package services

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/hermes-backend/internal/clients/cohere"
	"github.com/yungbote/hermes-backend/internal/governor"
	"github.com/yungbote/hermes-backend/internal/pkg/logger"
	"github.com/yungbote/hermes-backend/internal/repos"
	"github.com/yungbote/hermes-backend/internal/types"
)

const (
	maxIngestionBatch        = 50
	ingestionConcurrency     = 4
	estimatedIngestionTokens = 500
	compressedBioLength      = 300
	maxContentTags           = 5
	majorCreatorThreshold    = 1_000_000
	establishedThreshold     = 100_000
	pgUniqueViolation        = "23505"
)

// contentTagDictionary is the closed keyword set for tag extraction.
// Matches are collected in dictionary order, capped at maxContentTags.
var contentTagDictionary = []string{
	"gaming", "music", "comedy", "tech", "lifestyle",
	"education", "fitness", "food", "beauty", "commentary",
}

type IngestionOutcome struct {
	Ingested int `json:"ingested"`
	Touched  int `json:"touched"`
	Deferred int `json:"deferred"`
	Failed   int `json:"failed"`
}

func (o IngestionOutcome) Total() int {
	return o.Ingested + o.Touched + o.Deferred + o.Failed
}

// IngestionService persists newly discovered creators: embedding, tag
// extraction, and the pending/deferred/complete/failed status machine.
// Everything here is best effort; nothing propagates to the search
// path that triggered it.
type IngestionService interface {
	IngestBatch(ctx context.Context, platform, originQuery string, profiles []types.CreatorProfile) IngestionOutcome
	// ReprocessPending re-runs ingestion for creators stuck in pending
	// or deferred, up to limit per status.
	ReprocessPending(ctx context.Context, limit int) (IngestionOutcome, error)
	StatusCounts(ctx context.Context) (map[string]int64, error)
}

type ingestionService struct {
	log      *logger.Logger
	creators repos.CreatorRepo
	llm      cohere.Client
	tokens   governor.TokenGovernor
	now      func() time.Time
}

func NewIngestionService(creators repos.CreatorRepo, llm cohere.Client, tokens governor.TokenGovernor, baseLog *logger.Logger) IngestionService {
	return &ingestionService{
		log:      baseLog.With("service", "IngestionService"),
		creators: creators,
		llm:      llm,
		tokens:   tokens,
		now:      time.Now,
	}
}

type ingestResult int

const (
	ingestIngested ingestResult = iota
	ingestTouched
	ingestDeferred
	ingestFailed
)

func (is *ingestionService) IngestBatch(ctx context.Context, platform, originQuery string, profiles []types.CreatorProfile) IngestionOutcome {
	batch := dedupeProfiles(profiles)
	if len(batch) > maxIngestionBatch {
		batch = batch[:maxIngestionBatch]
	}
	if len(batch) == 0 {
		return IngestionOutcome{}
	}

	var ingested, touched, deferred, failed atomic.Int64
	var g errgroup.Group
	g.SetLimit(ingestionConcurrency)
	for _, profile := range batch {
		g.Go(func() error {
			switch is.ingestOne(ctx, platform, originQuery, profile) {
			case ingestIngested:
				ingested.Add(1)
			case ingestTouched:
				touched.Add(1)
			case ingestDeferred:
				deferred.Add(1)
			case ingestFailed:
				failed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	out := IngestionOutcome{
		Ingested: int(ingested.Load()),
		Touched:  int(touched.Load()),
		Deferred: int(deferred.Load()),
		Failed:   int(failed.Load()),
	}
	is.log.Info("Ingestion batch complete",
		"platform", platform,
		"batch_size", len(batch),
		"ingested", out.Ingested,
		"touched", out.Touched,
		"deferred", out.Deferred,
		"failed", out.Failed,
	)
	return out
}

func (is *ingestionService) ingestOne(ctx context.Context, platform, originQuery string, profile types.CreatorProfile) ingestResult {
	now := is.now()

	existing, err := is.creators.GetByPlatformChannelID(ctx, nil, platform, profile.ID)
	if err != nil {
		is.log.Warn("Creator lookup failed", "channel_id", profile.ID, "error", err)
		return ingestFailed
	}
	if existing != nil && existing.HasEmbedding() && existing.IngestionStatus == types.IngestionStatusComplete {
		if err := is.creators.TouchLastSeen(ctx, nil, existing.ID, now); err != nil {
			is.log.Debug("Last-seen touch failed", "channel_id", profile.ID, "error", err)
		}
		return ingestTouched
	}

	decision := is.tokens.CheckBudget(estimatedIngestionTokens)
	if !decision.Allowed() || !is.llm.Configured() {
		is.persistWithStatus(ctx, existing, platform, originQuery, profile, types.IngestionStatusDeferred, now)
		return ingestDeferred
	}

	text := embeddingText(profile)
	resp, err := is.llm.Embed(ctx, cohere.EmbedRequest{
		Texts:     []string{text},
		InputType: cohere.InputTypeSearchDocument,
	})
	if err != nil || len(resp.Embeddings) == 0 {
		is.log.Warn("Profile embedding failed", "channel_id", profile.ID, "error", err)
		is.persistWithStatus(ctx, existing, platform, originQuery, profile, types.IngestionStatusFailed, now)
		return ingestFailed
	}
	tokensUsed := resp.InputTokens
	if tokensUsed <= 0 {
		tokensUsed = cohere.EstimateTokens(text)
	}
	is.tokens.RecordUsage(tokensUsed)

	row := existing
	if row == nil {
		row = &types.Creator{
			ID:           uuid.New(),
			Platform:     platform,
			ChannelID:    profile.ID,
			Status:       types.CreatorStatusActive,
			Source:       types.CreatorSourceAPI,
			DiscoveredAt: now,
		}
	}
	applyProfile(row, profile, originQuery, now)
	row.ProfileEmbedding = datatypes.JSONSlice[float64](resp.Embeddings[0])
	row.EmbeddingModel = is.llm.EmbedModel()
	row.EmbeddingCreatedAt = &now
	row.CompressedBio = truncateText(profile.Bio, compressedBioLength)
	row.ContentTags = datatypes.JSONSlice[string](extractContentTags(profile.DisplayName + " " + profile.Bio))
	row.IngestionStatus = types.IngestionStatusComplete

	if existing != nil {
		err = is.creators.Update(ctx, nil, row)
	} else {
		_, err = is.creators.Create(ctx, nil, []*types.Creator{row})
	}
	if err != nil {
		if isDuplicateCreator(err) {
			// A concurrent ingest of the same channel won the insert.
			return ingestTouched
		}
		is.log.Warn("Creator persist failed", "channel_id", profile.ID, "error", err)
		return ingestFailed
	}
	return ingestIngested
}

// persistWithStatus records a creator we discovered but could not (or
// chose not to) embed, so reprocessing can pick it up later.
func (is *ingestionService) persistWithStatus(ctx context.Context, existing *types.Creator, platform, originQuery string, profile types.CreatorProfile, status string, now time.Time) {
	if existing != nil {
		existing.IngestionStatus = status
		existing.LastSeenAt = now
		if err := is.creators.Update(ctx, nil, existing); err != nil {
			is.log.Warn("Creator status update failed", "channel_id", profile.ID, "status", status, "error", err)
		}
		return
	}

	row := &types.Creator{
		ID:              uuid.New(),
		Platform:        platform,
		ChannelID:       profile.ID,
		Status:          types.CreatorStatusActive,
		Source:          types.CreatorSourceAPI,
		IngestionStatus: status,
		DiscoveredAt:    now,
	}
	applyProfile(row, profile, originQuery, now)
	if _, err := is.creators.Create(ctx, nil, []*types.Creator{row}); err != nil && !isDuplicateCreator(err) {
		is.log.Warn("Creator create failed", "channel_id", profile.ID, "status", status, "error", err)
	}
}

func applyProfile(row *types.Creator, profile types.CreatorProfile, originQuery string, now time.Time) {
	row.ChannelName = truncateText(profile.DisplayName, 255)
	row.Description = truncateText(profile.Bio, 2000)
	row.ProfileImageURL = truncateText(profile.ProfileImageURL, 500)
	if row.BaseGenre == "" {
		row.BaseGenre = truncateText(originQuery, 255)
	}
	if row.OriginQuery == "" {
		row.OriginQuery = truncateText(originQuery, 500)
	}
	if profile.Location != "" {
		row.Country = truncateText(profile.Location, 100)
	}
	row.LastSeenAt = now
}

func (is *ingestionService) ReprocessPending(ctx context.Context, limit int) (IngestionOutcome, error) {
	if limit <= 0 {
		limit = maxIngestionBatch
	}

	var rows []*types.Creator
	for _, status := range []string{types.IngestionStatusPending, types.IngestionStatusDeferred} {
		listed, err := is.creators.ListByIngestionStatus(ctx, nil, status, limit)
		if err != nil {
			return IngestionOutcome{}, err
		}
		rows = append(rows, listed...)
	}

	var out IngestionOutcome
	for _, row := range rows {
		switch is.ingestOne(ctx, row.Platform, row.OriginQuery, profileFromCreator(row)) {
		case ingestIngested:
			out.Ingested++
		case ingestTouched:
			out.Touched++
		case ingestDeferred:
			out.Deferred++
		case ingestFailed:
			out.Failed++
		}
	}
	if out.Total() > 0 {
		is.log.Info("Reprocessed stalled creators",
			"ingested", out.Ingested,
			"touched", out.Touched,
			"deferred", out.Deferred,
			"failed", out.Failed,
		)
	}
	return out, nil
}

func (is *ingestionService) StatusCounts(ctx context.Context) (map[string]int64, error) {
	return is.creators.CountByIngestionStatus(ctx, nil)
}

// profileFromCreator rebuilds the in-memory profile from a stored row
// for reprocessing. Counts are not persisted, so the size label is
// absent from re-run embedding text.
func profileFromCreator(c *types.Creator) types.CreatorProfile {
	return types.CreatorProfile{
		ID:              c.ChannelID,
		DisplayName:     c.ChannelName,
		Bio:             c.Description,
		ProfileImageURL: c.ProfileImageURL,
		Location:        c.Country,
	}
}

// embeddingText builds the text fed to the embedding model: name,
// compressed bio, a coarse size label, and the creator's country.
func embeddingText(p types.CreatorProfile) string {
	var b strings.Builder
	b.WriteString(p.DisplayName)
	b.WriteString(". ")
	if bio := strings.TrimSpace(p.Bio); bio != "" {
		b.WriteString(truncateText(bio, compressedBioLength))
	}
	switch {
	case p.SubscriberCount > majorCreatorThreshold:
		b.WriteString(" Major creator.")
	case p.SubscriberCount > establishedThreshold:
		b.WriteString(" Established creator.")
	}
	if loc := strings.TrimSpace(p.Location); loc != "" {
		b.WriteString(" Based in ")
		b.WriteString(loc)
		b.WriteString(".")
	}
	return strings.TrimSpace(b.String())
}

func extractContentTags(text string) []string {
	lowered := strings.ToLower(text)
	var tags []string
	for _, tag := range contentTagDictionary {
		if strings.Contains(lowered, tag) {
			tags = append(tags, tag)
			if len(tags) == maxContentTags {
				break
			}
		}
	}
	return tags
}

func dedupeProfiles(profiles []types.CreatorProfile) []types.CreatorProfile {
	seen := make(map[string]struct{}, len(profiles))
	out := make([]types.CreatorProfile, 0, len(profiles))
	for _, p := range profiles {
		if p.ID == "" {
			continue
		}
		if _, dup := seen[p.ID]; dup {
			continue
		}
		seen[p.ID] = struct{}{}
		out = append(out, p)
	}
	return out
}

// isDuplicateCreator matches the (platform, channel_id) unique
// violation from either driver: gorm's translated sentinel covers
// sqlite, the raw pgconn code covers postgres.
func isDuplicateCreator(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
