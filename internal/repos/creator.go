package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/hermes-backend/internal/pkg/logger"
	"github.com/yungbote/hermes-backend/internal/types"
)

type CreatorRepo interface {
	Create(ctx context.Context, tx *gorm.DB, creators []*types.Creator) ([]*types.Creator, error)
	Update(ctx context.Context, tx *gorm.DB, creator *types.Creator) error
	GetByPlatformChannelID(ctx context.Context, tx *gorm.DB, platform, channelID string) (*types.Creator, error)
	TouchLastSeen(ctx context.Context, tx *gorm.DB, id uuid.UUID, seenAt time.Time) error
	ListByIngestionStatus(ctx context.Context, tx *gorm.DB, status string, limit int) ([]*types.Creator, error)
	ListWithEmbedding(ctx context.Context, tx *gorm.DB, platform string, limit int) ([]*types.Creator, error)
	CountByIngestionStatus(ctx context.Context, tx *gorm.DB) (map[string]int64, error)
	Count(ctx context.Context, tx *gorm.DB) (int64, error)
}

type creatorRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCreatorRepo(db *gorm.DB, baseLog *logger.Logger) CreatorRepo {
	repoLog := baseLog.With("repo", "CreatorRepo")
	return &creatorRepo{db: db, log: repoLog}
}

func (cr *creatorRepo) Create(ctx context.Context, tx *gorm.DB, creators []*types.Creator) ([]*types.Creator, error) {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}

	if len(creators) == 0 {
		return []*types.Creator{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&creators).Error; err != nil {
		return nil, err
	}
	return creators, nil
}

func (cr *creatorRepo) Update(ctx context.Context, tx *gorm.DB, creator *types.Creator) error {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}

	return transaction.WithContext(ctx).Save(creator).Error
}

// GetByPlatformChannelID returns nil without error when the creator is
// not known yet; the ingestion upsert depends on that.
func (cr *creatorRepo) GetByPlatformChannelID(ctx context.Context, tx *gorm.DB, platform, channelID string) (*types.Creator, error) {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}

	var creator types.Creator
	err := transaction.WithContext(ctx).
		Where("platform = ? AND channel_id = ?", platform, channelID).
		First(&creator).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &creator, nil
}

func (cr *creatorRepo) TouchLastSeen(ctx context.Context, tx *gorm.DB, id uuid.UUID, seenAt time.Time) error {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}

	return transaction.WithContext(ctx).
		Model(&types.Creator{}).
		Where("id = ?", id).
		UpdateColumn("last_seen_at", seenAt).Error
}

func (cr *creatorRepo) ListByIngestionStatus(ctx context.Context, tx *gorm.DB, status string, limit int) ([]*types.Creator, error) {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}

	var results []*types.Creator
	query := transaction.WithContext(ctx).
		Where("ingestion_status = ?", status).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "discovered_at"}})
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// ListWithEmbedding returns creators whose ingestion produced an
// embedding, newest discoveries first. The similarity path scores
// against these in memory.
func (cr *creatorRepo) ListWithEmbedding(ctx context.Context, tx *gorm.DB, platform string, limit int) ([]*types.Creator, error) {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}

	var results []*types.Creator
	query := transaction.WithContext(ctx).
		Where("ingestion_status = ? AND profile_embedding IS NOT NULL", types.IngestionStatusComplete).
		Order("discovered_at DESC")
	if platform != "" {
		query = query.Where("platform = ?", platform)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (cr *creatorRepo) CountByIngestionStatus(ctx context.Context, tx *gorm.DB) (map[string]int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}

	var rows []struct {
		IngestionStatus string
		Total           int64
	}
	if err := transaction.WithContext(ctx).
		Model(&types.Creator{}).
		Select("ingestion_status, count(*) as total").
		Group("ingestion_status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.IngestionStatus] = row.Total
	}
	return counts, nil
}

func (cr *creatorRepo) Count(ctx context.Context, tx *gorm.DB) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}

	var count int64
	if err := transaction.WithContext(ctx).Model(&types.Creator{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
