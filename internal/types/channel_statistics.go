package types

import "time"

// ChannelStatistics holds the fetched-on-demand numbers a channel is
// graded on. Not persisted.
type ChannelStatistics struct {
	ChannelID       string
	SubscriberCount int64
	ViewCount       int64
	VideoCount      int64
	PublishedAt     *time.Time
	RecentVideos    []VideoStatistics
}

// ViewsPerSubscriber returns total views divided by subscribers, or 0
// when the channel has no subscribers.
func (s ChannelStatistics) ViewsPerSubscriber() float64 {
	if s.SubscriberCount == 0 {
		return 0
	}
	return float64(s.ViewCount) / float64(s.SubscriberCount)
}

// UploadsPerMonth estimates the channel's upload cadence since
// creation. Channels younger than 30 days count as one month.
func (s ChannelStatistics) UploadsPerMonth(now time.Time) float64 {
	if s.PublishedAt == nil {
		return 0
	}
	days := now.Sub(*s.PublishedAt).Hours() / 24
	if days < 30 {
		return float64(s.VideoCount)
	}
	months := days / 30.0
	return float64(s.VideoCount) / months
}

// VideoStatistics is per-video engagement data used for behavior-based
// scoring.
type VideoStatistics struct {
	VideoID      string
	ViewCount    int64
	LikeCount    int64
	CommentCount int64
	PublishedAt  *time.Time
}

// InteractionScore weights comments double because they signal deeper
// audience investment than likes.
func (v VideoStatistics) InteractionScore() float64 {
	return float64(v.LikeCount) + 2.0*float64(v.CommentCount)
}

// EngagementRate normalizes interactions by views. Videos below the
// view threshold return 0 to keep noise out of the average.
func (v VideoStatistics) EngagementRate(minViews int64) float64 {
	if v.ViewCount < minViews {
		return 0
	}
	return v.InteractionScore() / float64(v.ViewCount)
}
