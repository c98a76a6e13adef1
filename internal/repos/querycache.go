package repos

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/hermes-backend/internal/pkg/logger"
	"github.com/yungbote/hermes-backend/internal/types"
)

type QueryCacheRepo interface {
	Upsert(ctx context.Context, tx *gorm.DB, entry *types.QueryCache) error
	FindValid(ctx context.Context, tx *gorm.DB, digestKey string, now time.Time) (*types.QueryCache, error)
	IncrementHitCount(ctx context.Context, tx *gorm.DB, digestKey string) error
	DeleteExpired(ctx context.Context, tx *gorm.DB, now time.Time) (int64, error)
	TopByHitCount(ctx context.Context, tx *gorm.DB, limit int) ([]*types.QueryCache, error)
	Count(ctx context.Context, tx *gorm.DB) (int64, error)
}

type queryCacheRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewQueryCacheRepo(db *gorm.DB, baseLog *logger.Logger) QueryCacheRepo {
	repoLog := baseLog.With("repo", "QueryCacheRepo")
	return &queryCacheRepo{db: db, log: repoLog}
}

func (qr *queryCacheRepo) Upsert(ctx context.Context, tx *gorm.DB, entry *types.QueryCache) error {
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

func (qr *queryCacheRepo) FindValid(ctx context.Context, tx *gorm.DB, digestKey string, now time.Time) (*types.QueryCache, error) {
	transaction := tx
	if transaction == nil {
		transaction = qr.db
	}

	var entry types.QueryCache
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

func (qr *queryCacheRepo) IncrementHitCount(ctx context.Context, tx *gorm.DB, digestKey string) error {
	transaction := tx
	if transaction == nil {
		transaction = qr.db
	}

	return transaction.WithContext(ctx).
		Model(&types.QueryCache{}).
		Where("digest_key = ?", digestKey).
		UpdateColumn("hit_count", gorm.Expr("hit_count + 1")).Error
}

func (qr *queryCacheRepo) DeleteExpired(ctx context.Context, tx *gorm.DB, now time.Time) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = qr.db
	}

	result := transaction.WithContext(ctx).
		Where("expires_at <= ?", now).
		Delete(&types.QueryCache{})
	return result.RowsAffected, result.Error
}

func (qr *queryCacheRepo) TopByHitCount(ctx context.Context, tx *gorm.DB, limit int) ([]*types.QueryCache, error) {
	transaction := tx
	if transaction == nil {
		transaction = qr.db
	}

	if limit <= 0 {
		limit = 10
	}

	var entries []*types.QueryCache
	if err := transaction.WithContext(ctx).
		Order("hit_count DESC, created_at ASC").
		Limit(limit).
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (qr *queryCacheRepo) Count(ctx context.Context, tx *gorm.DB) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = qr.db
	}

	var count int64
	if err := transaction.WithContext(ctx).Model(&types.QueryCache{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
