package services

import (
	"context"

	"github.com/yungbote/hermes-backend/internal/pkg/logger"
)

// PlatformEnrichment is cross-platform presence data for a creator
// sourced from a secondary platform.
type PlatformEnrichment struct {
	PlatformID       string         `json:"platformId"`
	PlatformUsername string         `json:"platformUsername,omitempty"`
	ProfileURL       string         `json:"profileUrl,omitempty"`
	Followers        int64          `json:"followers"`
	Engagement       int64          `json:"engagement"`
	Extra            map[string]any `json:"extra,omitempty"`
}

// EmptyEnrichment is the placeholder an enabled enricher returns until
// its real API integration lands.
func EmptyEnrichment(platformID string) *PlatformEnrichment {
	return &PlatformEnrichment{PlatformID: platformID}
}

// PlatformEnricher adds secondary-platform metadata to creator
// profiles. Implementations are feature gated: Enrich returns nil
// without error whenever the owning feature is not ENABLED.
type PlatformEnricher interface {
	Flag() FeatureFlag
	PlatformID() string
	Enrich(ctx context.Context, creatorName string) (*PlatformEnrichment, error)
}

type redditEnricher struct {
	log      *logger.Logger
	features FeatureRegistry
}

// NewRedditEnricher builds the Reddit presence enricher. It needs
// REDDIT_ENRICHMENT to be ENABLED before doing any work.
func NewRedditEnricher(features FeatureRegistry, baseLog *logger.Logger) PlatformEnricher {
	return &redditEnricher{
		log:      baseLog.With("service", "RedditEnricher"),
		features: features,
	}
}

func (re *redditEnricher) Flag() FeatureFlag { return FeatureRedditEnrichment }

func (re *redditEnricher) PlatformID() string { return "reddit" }

func (re *redditEnricher) Enrich(ctx context.Context, creatorName string) (*PlatformEnrichment, error) {
	if !re.features.IsEnabled(FeatureRedditEnrichment) {
		re.log.Debug("Reddit enrichment skipped, feature not enabled", "creator", creatorName)
		return nil, nil
	}

	re.log.Debug("Enriching creator from Reddit", "creator", creatorName)
	// TODO: call the Reddit search API once credentials are provisioned.
	return EmptyEnrichment(re.PlatformID()), nil
}
