package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	CreatorStatusActive   = "ACTIVE"
	CreatorStatusInactive = "INACTIVE"
	CreatorStatusHidden   = "HIDDEN"

	CreatorSourceAPI      = "API"
	CreatorSourceManual   = "MANUAL"
	CreatorSourceImported = "IMPORTED"

	IngestionStatusPending  = "pending"
	IngestionStatusDeferred = "deferred"
	IngestionStatusComplete = "complete"
	IngestionStatusFailed   = "failed"
)

type Creator struct {
	ID                 uuid.UUID                    `gorm:"type:uuid;primaryKey" json:"id"`
	Platform           string                       `gorm:"column:platform;size:20;not null;uniqueIndex:idx_creator_platform_channel" json:"platform"`
	ChannelID          string                       `gorm:"column:channel_id;size:50;not null;uniqueIndex:idx_creator_platform_channel" json:"channel_id"`
	ChannelName        string                       `gorm:"column:channel_name;size:255;not null" json:"channel_name"`
	Description        string                       `gorm:"column:description;size:2000" json:"description"`
	ProfileImageURL    string                       `gorm:"column:profile_image_url;size:500" json:"profile_image_url"`
	BaseGenre          string                       `gorm:"column:base_genre;size:255;index" json:"base_genre"`
	OriginQuery        string                       `gorm:"column:origin_query;size:500" json:"origin_query"`
	Country            string                       `gorm:"column:country;size:100" json:"country,omitempty"`
	ContentCategory    string                       `gorm:"column:content_category;size:100" json:"content_category,omitempty"`
	Status             string                       `gorm:"column:status;size:20;not null;default:ACTIVE" json:"status"`
	Source             string                       `gorm:"column:source;size:20;not null;default:API" json:"source"`
	IngestionStatus    string                       `gorm:"column:ingestion_status;size:20;not null;default:pending;index" json:"ingestion_status"`
	ProfileEmbedding   datatypes.JSONSlice[float64] `gorm:"column:profile_embedding" json:"-"`
	EmbeddingModel     string                       `gorm:"column:embedding_model;size:50" json:"embedding_model,omitempty"`
	EmbeddingCreatedAt *time.Time                   `gorm:"column:embedding_created_at" json:"embedding_created_at,omitempty"`
	CompressedBio      string                       `gorm:"column:compressed_bio;size:500" json:"compressed_bio,omitempty"`
	ContentTags        datatypes.JSONSlice[string]  `gorm:"column:content_tags" json:"content_tags,omitempty"`
	DiscoveredAt       time.Time                    `gorm:"column:discovered_at;not null" json:"discovered_at"`
	LastSeenAt         time.Time                    `gorm:"column:last_seen_at;not null" json:"last_seen_at"`
	CreatedAt          time.Time                    `gorm:"not null" json:"created_at"`
	UpdatedAt          time.Time                    `gorm:"not null" json:"updated_at"`
}

func (Creator) TableName() string { return "creator" }

// HasEmbedding reports whether a non-zero profile embedding is stored.
func (c *Creator) HasEmbedding() bool {
	for _, v := range c.ProfileEmbedding {
		if v != 0 {
			return true
		}
	}
	return false
}
