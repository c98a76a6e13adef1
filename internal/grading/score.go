package grading

import "time"

// Final-score weights. The five sub-scores always combine with these
// fixed weights; finalScore is a pure function of the sub-scores.
const (
	WeightGenre      = 0.35
	WeightAudience   = 0.20
	WeightEngagement = 0.20
	WeightActivity   = 0.15
	WeightFreshness  = 0.10
)

// Competitiveness weights, shared by the label generator and the
// materializer so labels and stored scores agree.
const (
	weightCompetitivenessAudience   = 0.40
	weightCompetitivenessEngagement = 0.35
	weightCompetitivenessGrowth     = 0.25
)

// Competitiveness tier thresholds.
const (
	ThresholdEmerging    = 0.20
	ThresholdGrowing     = 0.40
	ThresholdEstablished = 0.60
	ThresholdDominant    = 0.80
)

// CreatorScore is the per-creator scoring breakdown. All values are in
// [0,1].
type CreatorScore struct {
	GenreRelevance      float64 `json:"genreRelevance"`
	AudienceFit         float64 `json:"audienceFit"`
	EngagementQuality   float64 `json:"engagementQuality"`
	ActivityConsistency float64 `json:"activityConsistency"`
	Freshness           float64 `json:"freshness"`
	FinalScore          float64 `json:"finalScore"`
}

// ComputeScore aggregates sub-scores into the weighted final score.
func ComputeScore(genreRelevance, audienceFit, engagementQuality, activityConsistency, freshness float64) CreatorScore {
	final := WeightGenre*genreRelevance +
		WeightAudience*audienceFit +
		WeightEngagement*engagementQuality +
		WeightActivity*activityConsistency +
		WeightFreshness*freshness
	return CreatorScore{
		GenreRelevance:      genreRelevance,
		AudienceFit:         audienceFit,
		EngagementQuality:   engagementQuality,
		ActivityConsistency: activityConsistency,
		Freshness:           freshness,
		FinalScore:          clamp01(final),
	}
}

// Competitiveness measures how hard it is to displace a creator in
// their niche. Growth is proxied by activity consistency when no
// direct growth data exists.
func Competitiveness(audienceFit, engagementQuality, growth float64) float64 {
	return clamp01(weightCompetitivenessAudience*audienceFit +
		weightCompetitivenessEngagement*engagementQuality +
		weightCompetitivenessGrowth*growth)
}

// CompetitivenessFromScore derives competitiveness from a score
// breakdown using activity consistency as the growth proxy.
func CompetitivenessFromScore(score CreatorScore) float64 {
	return Competitiveness(score.AudienceFit, score.EngagementQuality, score.ActivityConsistency)
}

// CompetitivenessBucket maps a competitiveness score to its tier.
// Coverage is total: every value in [0,1] lands in a tier.
func CompetitivenessBucket(score float64) string {
	switch {
	case score >= ThresholdDominant:
		return "Dominant"
	case score >= ThresholdEstablished:
		return "Established"
	case score >= ThresholdGrowing:
		return "Growing"
	case score >= ThresholdEmerging:
		return "Emerging"
	default:
		return "Nascent"
	}
}

// GradedCreator is the output of grading: identity, score breakdown,
// and qualitative labels.
type GradedCreator struct {
	ChannelID       string       `json:"channelId"`
	ChannelName     string       `json:"channelName"`
	Description     string       `json:"description"`
	ProfileImageURL string       `json:"profileImageUrl"`
	Platform        string       `json:"platform"`
	Score           CreatorScore `json:"score"`
	Labels          []string     `json:"labels"`
	SubscriberCount int64        `json:"subscriberCount"`
	ViewCount       int64        `json:"viewCount"`
	LastVideoDate   *time.Time   `json:"lastVideoDate,omitempty"`
}

// FinalScore returns the composite score used for ranking.
func (g GradedCreator) FinalScore() float64 { return g.Score.FinalScore }

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
