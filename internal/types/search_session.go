package types

import (
	"time"

	"github.com/google/uuid"
)

type SearchSession struct {
	SessionID        uuid.UUID `gorm:"type:uuid;primaryKey;column:session_id" json:"session_id"`
	QueryDigest      string    `gorm:"column:query_digest;size:64;not null;uniqueIndex:idx_session_digest_platform" json:"query_digest"`
	NormalizedQuery  string    `gorm:"column:normalized_query;size:500;not null" json:"normalized_query"`
	Platform         string    `gorm:"column:platform;size:20;not null;default:youtube;uniqueIndex:idx_session_digest_platform" json:"platform"`
	TotalResults     int       `gorm:"column:total_results;not null;default:0" json:"total_results"`
	YoutubeQuotaUsed int       `gorm:"column:youtube_quota_used;not null;default:0" json:"youtube_quota_used"`
	CreatedAt        time.Time `gorm:"not null" json:"created_at"`
	ExpiresAt        time.Time `gorm:"column:expires_at;not null;index" json:"expires_at"`
	LastAccessedAt   time.Time `gorm:"column:last_accessed_at;not null" json:"last_accessed_at"`
}

func (SearchSession) TableName() string { return "search_session" }
