package grading

import (
	"math"
	"strings"
	"time"

	"github.com/yungbote/hermes-backend/internal/types"
)

// Behavior-based engagement parameters.
const (
	MaxRecentVideos = 10
	MinVideoViews   = 100
)

// recencyWeights weight the most recent uploads heaviest; everything
// older than the fifth video contributes at the 0.40 floor.
var recencyWeights = [MaxRecentVideos]float64{1.00, 0.85, 0.70, 0.55, 0.40, 0.40, 0.40, 0.40, 0.40, 0.40}

// GenreRelevance scores keyword overlap between the search genre and
// the channel's name + description. Blank genres score neutral 0.5.
func GenreRelevance(channelName, description, baseGenre string) float64 {
	if strings.TrimSpace(baseGenre) == "" {
		return 0.5
	}
	genreTokens := tokenizeWords(baseGenre)
	if len(genreTokens) == 0 {
		return 0.5
	}

	combined := normalizeText(channelName + " " + description)
	matches := 0
	for _, token := range genreTokens {
		if strings.Contains(combined, token) {
			matches++
		}
	}
	score := float64(matches) / float64(len(genreTokens))

	if strings.Contains(normalizeText(channelName), normalizeText(baseGenre)) {
		score += 0.3
	}
	return clamp01(score)
}

// NameRelevance boosts channels whose name closely matches the query.
// Exact match 1.0, prefix 0.95, word-boundary containment 0.8,
// containment across word boundaries 0.7, otherwise word overlap with
// a 0.3 floor.
func NameRelevance(channelName, query string) float64 {
	if channelName == "" || strings.TrimSpace(query) == "" {
		return 0.3
	}
	squeezedName := squeeze(channelName)
	squeezedQuery := squeeze(query)
	if squeezedName == "" || squeezedQuery == "" {
		return 0.3
	}
	normName := normalizeText(channelName)
	normQuery := normalizeText(query)

	switch {
	case squeezedName == squeezedQuery:
		return 1.0
	case strings.HasPrefix(squeezedName, squeezedQuery) || strings.HasPrefix(squeezedQuery, squeezedName):
		return 0.95
	case strings.Contains(normName, normQuery) || strings.Contains(normQuery, normName):
		return 0.8
	case strings.Contains(squeezedName, squeezedQuery) || strings.Contains(squeezedQuery, squeezedName):
		return 0.7
	}

	nameWords := map[string]bool{}
	for _, w := range strings.Fields(normalizeText(channelName)) {
		nameWords[w] = true
	}
	queryWords := strings.Fields(normalizeText(query))
	hits := 0
	for _, w := range queryWords {
		if nameWords[w] {
			hits++
		}
	}
	if hits == 0 || len(queryWords) == 0 {
		return 0.3
	}
	return clamp01(0.4 + 0.3*float64(hits)/float64(len(queryWords)))
}

// AudienceScale is a subscriber-count preference bucket.
type AudienceScale struct {
	Name           string
	MinSubscribers int64
	MaxSubscribers int64
}

var (
	AudienceSmall  = AudienceScale{Name: "small", MinSubscribers: 0, MaxSubscribers: 10_000}
	AudienceMedium = AudienceScale{Name: "medium", MinSubscribers: 10_000, MaxSubscribers: 100_000}
	AudienceLarge  = AudienceScale{Name: "large", MinSubscribers: 100_000, MaxSubscribers: math.MaxInt64}
)

// Matches reports whether the count falls in [min, max).
func (s AudienceScale) Matches(count int64) bool {
	return count >= s.MinSubscribers && count < s.MaxSubscribers
}

// ParseAudienceScale maps a filter value to a scale, nil when the
// value names no bucket.
func ParseAudienceScale(value string) *AudienceScale {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "small":
		s := AudienceSmall
		return &s
	case "medium":
		s := AudienceMedium
		return &s
	case "large":
		s := AudienceLarge
		return &s
	default:
		return nil
	}
}

// AudienceFit scores subscriber count. Without a preference the score
// is a fixed piecewise ladder over raw count; with one, an in-range
// count is perfect and misses decay linearly, capped at 0.7 (0.8 when
// the count exceeds the top bucket entirely).
func AudienceFit(subscriberCount int64, preferred *AudienceScale) float64 {
	if preferred == nil {
		switch {
		case subscriberCount >= 10_000_000:
			return 1.0
		case subscriberCount >= 1_000_000:
			return 0.9
		case subscriberCount >= 100_000:
			return 0.7
		case subscriberCount >= 10_000:
			return 0.5
		case subscriberCount >= 1_000:
			return 0.3
		default:
			return 0.2
		}
	}

	if preferred.Matches(subscriberCount) {
		return 1.0
	}
	if subscriberCount >= AudienceLarge.MaxSubscribers {
		return 0.8
	}

	var distance float64
	if subscriberCount < preferred.MinSubscribers {
		distance = float64(preferred.MinSubscribers-subscriberCount) / float64(preferred.MinSubscribers)
	} else {
		distance = float64(subscriberCount-preferred.MaxSubscribers) / float64(preferred.MaxSubscribers)
	}
	return math.Max(0, 1-distance) * 0.7
}

// EngagementQuality prefers the behavior-based form over recent
// uploads when per-video data exists, falling back to the
// views-per-subscriber sigmoid.
func EngagementQuality(viewCount, subscriberCount int64, recentVideos []types.VideoStatistics) float64 {
	if score, ok := engagementFromVideos(recentVideos); ok {
		return score
	}
	ratio := 0.5
	if subscriberCount > 0 {
		ratio = float64(viewCount) / float64(subscriberCount)
	}
	return 1.0 / (1.0 + math.Exp(-0.05*(ratio-50.0)))
}

// engagementFromVideos computes the recency-weighted mean engagement
// rate over up to 10 recent videos with at least 100 views, then maps
// it through a steep sigmoid centered at a 15% interaction rate.
func engagementFromVideos(videos []types.VideoStatistics) (float64, bool) {
	var weightedSum, weightTotal float64
	eligible := 0
	for _, v := range videos {
		if v.ViewCount < MinVideoViews {
			continue
		}
		if eligible >= MaxRecentVideos {
			break
		}
		w := recencyWeights[eligible]
		weightedSum += w * v.EngagementRate(MinVideoViews)
		weightTotal += w
		eligible++
	}
	if eligible == 0 {
		return 0, false
	}
	rate := weightedSum / weightTotal
	return 1.0 / (1.0 + math.Exp(-3.0*(rate-0.15))), true
}

// ActivityConsistency normalizes uploads-per-month with diminishing
// returns above 8 uploads a month.
func ActivityConsistency(videoCount int64, publishedAt *time.Time, now time.Time) float64 {
	uploads := uploadsPerMonth(videoCount, publishedAt, now)
	switch {
	case uploads <= 0:
		return 0
	case uploads <= 1:
		return uploads * 0.3
	case uploads <= 4:
		return 0.3 + (uploads-1)/3.0*0.4
	case uploads <= 8:
		return 0.7 + (uploads-4)/4.0*0.2
	default:
		return 0.9 + math.Min(0.1, (uploads-8)/20.0*0.1)
	}
}

func uploadsPerMonth(videoCount int64, publishedAt *time.Time, now time.Time) float64 {
	if publishedAt == nil || videoCount == 0 {
		return 0
	}
	days := now.Sub(*publishedAt).Hours() / 24
	if days < 30 {
		return float64(videoCount)
	}
	return float64(videoCount) / (days / 30.0)
}

// Freshness decays from 1.0 within a week of the last activity down
// to 0.1 past 180 days. Unknown activity scores neutral 0.5.
func Freshness(lastSeenAt *time.Time, now time.Time) float64 {
	if lastSeenAt == nil {
		return 0.5
	}
	days := now.Sub(*lastSeenAt).Hours() / 24
	switch {
	case days < 0:
		return 1.0
	case days <= 7:
		return 1.0
	case days <= 30:
		return 1.0 - (days-7)/23.0*0.2
	case days <= 90:
		return 0.8 - (days-30)/60.0*0.3
	case days <= 180:
		return 0.5 - (days-90)/90.0*0.3
	default:
		return 0.1
	}
}

// tokenizeWords splits normalized text into distinct words longer
// than two characters.
func tokenizeWords(text string) []string {
	seen := map[string]bool{}
	var tokens []string
	for _, w := range strings.Fields(normalizeText(text)) {
		if len(w) <= 2 || seen[w] {
			continue
		}
		seen[w] = true
		tokens = append(tokens, w)
	}
	return tokens
}

// normalizeText lowercases and squashes everything outside [a-z0-9]
// into single spaces.
func normalizeText(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	lastSpace := false
	for _, r := range strings.ToLower(text) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastSpace = false
			continue
		}
		if !lastSpace && b.Len() > 0 {
			b.WriteByte(' ')
			lastSpace = true
		}
	}
	return strings.TrimSpace(b.String())
}

// squeeze strips everything outside [a-z0-9], spaces included.
func squeeze(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
