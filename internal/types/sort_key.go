package types

import "strings"

// SortKey is a whitelisted session-result ordering. Each key maps to
// exactly one stored column; sorting never recomputes scores or calls
// out to a platform API.
type SortKey string

const (
	SortFinalScore      SortKey = "FINAL_SCORE"
	SortRelevance       SortKey = "RELEVANCE"
	SortSubscribers     SortKey = "SUBSCRIBERS"
	SortEngagement      SortKey = "ENGAGEMENT"
	SortActivity        SortKey = "ACTIVITY"
	SortCompetitiveness SortKey = "COMPETITIVENESS"
)

// Column returns the stored column this key orders by. SUBSCRIBERS
// orders by the raw count rather than the audience_fit score, and
// ACTIVITY orders by the newest upload date rather than the
// activity_consistency score.
func (k SortKey) Column() string {
	switch k {
	case SortRelevance:
		return "genre_relevance"
	case SortSubscribers:
		return "subscriber_count"
	case SortEngagement:
		return "engagement_quality"
	case SortActivity:
		return "last_video_date"
	case SortCompetitiveness:
		return "competitiveness_score"
	default:
		return "score"
	}
}

func (k SortKey) DisplayName() string {
	switch k {
	case SortRelevance:
		return "Relevance"
	case SortSubscribers:
		return "Subscribers"
	case SortEngagement:
		return "Engagement"
	case SortActivity:
		return "Recently Active"
	case SortCompetitiveness:
		return "Competitiveness"
	default:
		return "Final Score"
	}
}

// ParseSortKey maps a request value to a SortKey, falling back to
// FINAL_SCORE for anything outside the whitelist.
func ParseSortKey(value string) SortKey {
	if value == "" {
		return SortFinalScore
	}
	normalized := strings.ToUpper(strings.ReplaceAll(value, "-", "_"))
	switch SortKey(normalized) {
	case SortFinalScore, SortRelevance, SortSubscribers, SortEngagement, SortActivity, SortCompetitiveness:
		return SortKey(normalized)
	default:
		return SortFinalScore
	}
}

// IsValidSortKey reports whether the value names a whitelisted key.
func IsValidSortKey(value string) bool {
	if value == "" {
		return false
	}
	normalized := strings.ToUpper(strings.ReplaceAll(value, "-", "_"))
	switch SortKey(normalized) {
	case SortFinalScore, SortRelevance, SortSubscribers, SortEngagement, SortActivity, SortCompetitiveness:
		return true
	default:
		return false
	}
}
