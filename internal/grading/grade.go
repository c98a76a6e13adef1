package grading

import (
	"math"
	"time"

	"github.com/yungbote/hermes-backend/internal/types"
)

// Criteria carries the user's grading intent. Only the audience
// preference changes a scorer's output; everything else is derived
// from the profile itself.
type Criteria struct {
	BaseGenre string
	Audience  *AudienceScale
	Location  string
}

// CriteriaFromFilters builds criteria from the request filter map.
func CriteriaFromFilters(genre string, filters map[string]string) Criteria {
	c := Criteria{BaseGenre: genre}
	if filters == nil {
		return c
	}
	c.Audience = ParseAudienceScale(filters["audience"])
	c.Location = filters["location"]
	return c
}

// Grade scores a single fresh profile against the criteria. Pure:
// every input it depends on is a parameter.
func Grade(profile types.CreatorProfile, platform string, criteria Criteria, now time.Time) GradedCreator {
	genreRelevance := math.Max(
		GenreRelevance(profile.DisplayName, profile.Bio, criteria.BaseGenre),
		NameRelevance(profile.DisplayName, criteria.BaseGenre),
	)
	audienceFit := AudienceFit(profile.SubscriberCount, criteria.Audience)
	engagementQuality := EngagementQuality(profile.ViewCount, profile.SubscriberCount, profile.RecentVideos)
	activityConsistency := ActivityConsistency(profile.VideoCount, profile.PublishedAt, now)
	freshness := Freshness(profile.LastVideoDate, now)

	score := ComputeScore(genreRelevance, audienceFit, engagementQuality, activityConsistency, freshness)

	return GradedCreator{
		ChannelID:       profile.ID,
		ChannelName:     profile.DisplayName,
		Description:     profile.Bio,
		ProfileImageURL: profile.ProfileImageURL,
		Platform:        platform,
		Score:           score,
		Labels:          GenerateLabels(score),
		SubscriberCount: profile.SubscriberCount,
		ViewCount:       profile.ViewCount,
		LastVideoDate:   profile.LastVideoDate,
	}
}
