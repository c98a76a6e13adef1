// Package filter evaluates bucket filters against materialized session
// results. Everything here runs over rows already in memory; the
// filtered read path never reaches an external API.
package filter

import (
	"sort"
	"strings"

	"github.com/yungbote/hermes-backend/internal/grading"
	"github.com/yungbote/hermes-backend/internal/types"
)

// Bucket boundaries. The top bound sits above 1.0 so a perfect score
// still lands in the highest bucket.
const (
	bucketMediumMin = 0.4
	bucketHighMin   = 0.7
)

// Criteria holds the requested filter values per category. Values
// within a category OR together; categories AND together.
type Criteria struct {
	Audience        []string `json:"audience,omitempty"`
	Engagement      []string `json:"engagement,omitempty"`
	Competitiveness []string `json:"competitiveness,omitempty"`
	Activity        []string `json:"activity,omitempty"`
	Platform        []string `json:"platform,omitempty"`
	Genres          []string `json:"genres,omitempty"`
}

// Parse builds Criteria from a query-param accessor. Each category is
// a comma-separated list; blank entries are dropped.
func Parse(queryValue func(key string) string) Criteria {
	return Criteria{
		Audience:        splitValues(queryValue("audience")),
		Engagement:      splitValues(queryValue("engagement")),
		Competitiveness: splitValues(queryValue("competitiveness")),
		Activity:        splitValues(queryValue("activity")),
		Platform:        splitValues(queryValue("platform")),
		Genres:          splitValues(queryValue("genres")),
	}
}

func splitValues(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var values []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}

// ActiveFilterCount reports how many categories carry at least one
// value. Platform counts as active even though it never excludes
// rows while only one platform is live.
func (c Criteria) ActiveFilterCount() int {
	count := 0
	for _, values := range [][]string{c.Audience, c.Engagement, c.Competitiveness, c.Activity, c.Platform, c.Genres} {
		if len(values) > 0 {
			count++
		}
	}
	return count
}

func (c Criteria) IsEmpty() bool { return c.ActiveFilterCount() == 0 }

// Matches reports whether a result passes every active category.
func (c Criteria) Matches(result types.SearchSessionResult) bool {
	if len(c.Audience) > 0 && !containsFold(c.Audience, AudienceBucket(result.AudienceFit)) {
		return false
	}
	if len(c.Engagement) > 0 && !containsFold(c.Engagement, EngagementBucket(result.EngagementQuality)) {
		return false
	}
	if len(c.Competitiveness) > 0 && !containsFold(c.Competitiveness, CompetitivenessBucket(result.CompetitivenessScore)) {
		return false
	}
	if len(c.Activity) > 0 && !containsFold(c.Activity, ActivityBucket(result.ActivityConsistency)) {
		return false
	}
	// Platform is accepted but never excludes: results are
	// single-platform until more adapters ship.
	if len(c.Genres) > 0 && !intersectsFold(c.Genres, result.Labels) {
		return false
	}
	return true
}

// Apply keeps the rows that pass the criteria, preserving input order.
func Apply(results []types.SearchSessionResult, criteria Criteria) []types.SearchSessionResult {
	if criteria.IsEmpty() {
		return results
	}
	filtered := make([]types.SearchSessionResult, 0, len(results))
	for _, result := range results {
		if criteria.Matches(result) {
			filtered = append(filtered, result)
		}
	}
	return filtered
}

// AudienceBucket maps an audience-fit score to small/medium/large.
func AudienceBucket(fit float64) string {
	return threeBucket(fit, "small", "medium", "large")
}

// EngagementBucket maps an engagement-quality score to low/medium/high.
func EngagementBucket(quality float64) string {
	return threeBucket(quality, "low", "medium", "high")
}

// ActivityBucket maps an activity-consistency score to low/medium/high.
func ActivityBucket(consistency float64) string {
	return threeBucket(consistency, "low", "medium", "high")
}

// CompetitivenessBucket maps a competitiveness score to its tier name
// in filter-value form.
func CompetitivenessBucket(score float64) string {
	return strings.ToLower(grading.CompetitivenessBucket(score))
}

func threeBucket(value float64, low, medium, high string) string {
	switch {
	case value >= bucketHighMin:
		return high
	case value >= bucketMediumMin:
		return medium
	default:
		return low
	}
}

func containsFold(values []string, target string) bool {
	for _, value := range values {
		if strings.EqualFold(value, target) {
			return true
		}
	}
	return false
}

func intersectsFold(requested []string, labels []string) bool {
	for _, want := range requested {
		for _, label := range labels {
			if strings.EqualFold(want, label) {
				return true
			}
		}
	}
	return false
}

// Sort orders rows by the given key, descending, with materialized
// rank as the tiebreak. ACTIVITY puts rows with no known upload date
// last regardless of direction.
func Sort(results []types.SearchSessionResult, key types.SortKey) []types.SearchSessionResult {
	sorted := make([]types.SearchSessionResult, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool {
		if less, decided := lessByKey(sorted[i], sorted[j], key); decided {
			return less
		}
		return sorted[i].Rank < sorted[j].Rank
	})
	return sorted
}

func lessByKey(a, b types.SearchSessionResult, key types.SortKey) (less, decided bool) {
	switch key {
	case types.SortRelevance:
		return descFloat(a.GenreRelevance, b.GenreRelevance)
	case types.SortSubscribers:
		if a.SubscriberCount == b.SubscriberCount {
			return false, false
		}
		return a.SubscriberCount > b.SubscriberCount, true
	case types.SortEngagement:
		return descFloat(a.EngagementQuality, b.EngagementQuality)
	case types.SortCompetitiveness:
		return descFloat(a.CompetitivenessScore, b.CompetitivenessScore)
	case types.SortActivity:
		switch {
		case a.LastVideoDate == nil && b.LastVideoDate == nil:
			return false, false
		case a.LastVideoDate == nil:
			return false, true
		case b.LastVideoDate == nil:
			return true, true
		case a.LastVideoDate.Equal(*b.LastVideoDate):
			return false, false
		default:
			return a.LastVideoDate.After(*b.LastVideoDate), true
		}
	default:
		return descFloat(a.Score, b.Score)
	}
}

func descFloat(a, b float64) (less, decided bool) {
	if a == b {
		return false, false
	}
	return a > b, true
}
