package types

import (
	"time"

	"gorm.io/datatypes"
)

type QueryEmbedding struct {
	DigestKey       string                       `gorm:"column:digest_key;size:80;primaryKey" json:"digest_key"`
	NormalizedQuery string                       `gorm:"column:normalized_query;size:500;not null" json:"normalized_query"`
	Embedding       datatypes.JSONSlice[float64] `gorm:"column:embedding" json:"-"`
	ModelVersion    string                       `gorm:"column:model_version;size:50" json:"model_version"`
	CreatedAt       time.Time                    `gorm:"not null" json:"created_at"`
	ExpiresAt       time.Time                    `gorm:"column:expires_at;not null;index" json:"expires_at"`
}

func (QueryEmbedding) TableName() string { return "query_embedding" }
