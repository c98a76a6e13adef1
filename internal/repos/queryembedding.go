package repos

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/hermes-backend/internal/pkg/logger"
	"github.com/yungbote/hermes-backend/internal/types"
)

type QueryEmbeddingRepo interface {
	Upsert(ctx context.Context, tx *gorm.DB, entry *types.QueryEmbedding) error
	FindValid(ctx context.Context, tx *gorm.DB, digestKey string, now time.Time) (*types.QueryEmbedding, error)
	DeleteExpired(ctx context.Context, tx *gorm.DB, now time.Time) (int64, error)
}

type queryEmbeddingRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewQueryEmbeddingRepo(db *gorm.DB, baseLog *logger.Logger) QueryEmbeddingRepo {
	repoLog := baseLog.With("repo", "QueryEmbeddingRepo")
	return &queryEmbeddingRepo{db: db, log: repoLog}
}

func (qr *queryEmbeddingRepo) Upsert(ctx context.Context, tx *gorm.DB, entry *types.QueryEmbedding) error {
	transaction := tx
	if transaction == nil {
		transaction = qr.db
	}

	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "digest_key"}},
			UpdateAll: true,
		}).
		Create(entry).Error
}

func (qr *queryEmbeddingRepo) FindValid(ctx context.Context, tx *gorm.DB, digestKey string, now time.Time) (*types.QueryEmbedding, error) {
	transaction := tx
	if transaction == nil {
		transaction = qr.db
	}

	var entry types.QueryEmbedding
	err := transaction.WithContext(ctx).
		Where("digest_key = ? AND expires_at > ?", digestKey, now).
		First(&entry).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

func (qr *queryEmbeddingRepo) DeleteExpired(ctx context.Context, tx *gorm.DB, now time.Time) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = qr.db
	}

	result := transaction.WithContext(ctx).
		Where("expires_at <= ?", now).
		Delete(&types.QueryEmbedding{})
	return result.RowsAffected, result.Error
}
