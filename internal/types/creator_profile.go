package types

import "time"

// CreatorProfile is the platform-neutral view of a discovered channel.
// It is assembled from search + channel detail responses and is never
// persisted directly; Creator is the stored form.
type CreatorProfile struct {
	ID              string            `json:"id"`
	Handle          string            `json:"handle,omitempty"`
	DisplayName     string            `json:"displayName"`
	Bio             string            `json:"bio,omitempty"`
	ProfileImageURL string            `json:"profileImageUrl,omitempty"`
	SubscriberCount int64             `json:"subscriberCount"`
	ViewCount       int64             `json:"viewCount"`
	VideoCount      int64             `json:"videoCount"`
	Categories      []string          `json:"categories,omitempty"`
	Location        string            `json:"location,omitempty"`
	PublishedAt     *time.Time        `json:"publishedAt,omitempty"`
	LastVideoDate   *time.Time        `json:"lastVideoDate,omitempty"`
	RecentVideos    []VideoStatistics `json:"-"`
	// UploadsPlaylistID is platform plumbing for recent-video
	// enrichment; it never leaves the process.
	UploadsPlaylistID string `json:"-"`
}
