package types

import "time"

type QueryCache struct {
	DigestKey       string    `gorm:"column:digest_key;size:80;primaryKey" json:"digest_key"`
	NormalizedQuery string    `gorm:"column:normalized_query;size:500;not null" json:"normalized_query"`
	ResponseJSON    string    `gorm:"column:response_json;type:text;not null" json:"response_json"`
	TokenCost       int       `gorm:"column:token_cost;not null;default:0" json:"token_cost"`
	CreatedAt       time.Time `gorm:"not null" json:"created_at"`
	ExpiresAt       time.Time `gorm:"column:expires_at;not null;index" json:"expires_at"`
	HitCount        int64     `gorm:"column:hit_count;not null;default:0" json:"hit_count"`
}

func (QueryCache) TableName() string { return "query_cache" }
