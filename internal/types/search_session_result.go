package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// SearchSessionResult is one materialized row of a search session.
// Every score is precomputed at materialization time so that reads
// never touch an external API.
type SearchSessionResult struct {
	SessionID            uuid.UUID                   `gorm:"type:uuid;primaryKey;column:session_id" json:"session_id"`
	Rank                 int                         `gorm:"primaryKey;column:rank" json:"rank"`
	ChannelID            string                      `gorm:"column:channel_id;size:50;not null" json:"channel_id"`
	ChannelName          string                      `gorm:"column:channel_name;size:255" json:"channel_name"`
	Description          string                      `gorm:"column:description;size:2000" json:"description"`
	ProfileImageURL      string                      `gorm:"column:profile_image_url;size:500" json:"profile_image_url"`
	Score                float64                     `gorm:"column:score;not null" json:"score"`
	GenreRelevance       float64                     `gorm:"column:genre_relevance;not null" json:"genre_relevance"`
	AudienceFit          float64                     `gorm:"column:audience_fit;not null" json:"audience_fit"`
	EngagementQuality    float64                     `gorm:"column:engagement_quality;not null" json:"engagement_quality"`
	ActivityConsistency  float64                     `gorm:"column:activity_consistency;not null" json:"activity_consistency"`
	CompetitivenessScore float64                     `gorm:"column:competitiveness_score;not null" json:"competitiveness_score"`
	Freshness            float64                     `gorm:"column:freshness;not null" json:"freshness"`
	SubscriberCount      int64                       `gorm:"column:subscriber_count;not null;default:0" json:"subscriber_count"`
	Labels               datatypes.JSONSlice[string] `gorm:"column:labels" json:"labels"`
	LastVideoDate        *time.Time                  `gorm:"column:last_video_date" json:"last_video_date,omitempty"`
}

func (SearchSessionResult) TableName() string { return "search_session_result" }
