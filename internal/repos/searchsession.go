package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/hermes-backend/internal/pkg/logger"
	"github.com/yungbote/hermes-backend/internal/types"
)

type SearchSessionRepo interface {
	Create(ctx context.Context, tx *gorm.DB, session *types.SearchSession) error
	Update(ctx context.Context, tx *gorm.DB, session *types.SearchSession) error
	// GetByDigest ignores expiry; materialization reuses the session
	// row (and its id) when the same search comes back.
	GetByDigest(ctx context.Context, tx *gorm.DB, digest, platform string) (*types.SearchSession, error)
	FindValidByDigest(ctx context.Context, tx *gorm.DB, digest, platform string, now time.Time) (*types.SearchSession, error)
	// GetByID ignores expiry so the read path can tell an expired
	// session apart from one that never existed.
	GetByID(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) (*types.SearchSession, error)
	FindValidByID(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID, now time.Time) (*types.SearchSession, error)
	// ExtendExpiry slides the window only while the session is still
	// alive; an expired session stays expired.
	ExtendExpiry(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID, expiresAt, accessedAt time.Time) error
	ListExpiredIDs(ctx context.Context, tx *gorm.DB, now time.Time) ([]uuid.UUID, error)
	DeleteByIDs(ctx context.Context, tx *gorm.DB, sessionIDs []uuid.UUID) (int64, error)
	CountActive(ctx context.Context, tx *gorm.DB, now time.Time) (int64, error)
}

type searchSessionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSearchSessionRepo(db *gorm.DB, baseLog *logger.Logger) SearchSessionRepo {
	repoLog := baseLog.With("repo", "SearchSessionRepo")
	return &searchSessionRepo{db: db, log: repoLog}
}

func (sr *searchSessionRepo) Create(ctx context.Context, tx *gorm.DB, session *types.SearchSession) error {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}

	return transaction.WithContext(ctx).Create(session).Error
}

func (sr *searchSessionRepo) Update(ctx context.Context, tx *gorm.DB, session *types.SearchSession) error {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}

	return transaction.WithContext(ctx).Save(session).Error
}

func (sr *searchSessionRepo) GetByDigest(ctx context.Context, tx *gorm.DB, digest, platform string) (*types.SearchSession, error) {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}

	var session types.SearchSession
	err := transaction.WithContext(ctx).
		Where("query_digest = ? AND platform = ?", digest, platform).
		First(&session).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

func (sr *searchSessionRepo) FindValidByDigest(ctx context.Context, tx *gorm.DB, digest, platform string, now time.Time) (*types.SearchSession, error) {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}

	var session types.SearchSession
	err := transaction.WithContext(ctx).
		Where("query_digest = ? AND platform = ? AND expires_at > ?", digest, platform, now).
		First(&session).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

func (sr *searchSessionRepo) GetByID(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) (*types.SearchSession, error) {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}

	var session types.SearchSession
	err := transaction.WithContext(ctx).
		Where("session_id = ?", sessionID).
		First(&session).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

func (sr *searchSessionRepo) FindValidByID(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID, now time.Time) (*types.SearchSession, error) {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}

	var session types.SearchSession
	err := transaction.WithContext(ctx).
		Where("session_id = ? AND expires_at > ?", sessionID, now).
		First(&session).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

func (sr *searchSessionRepo) ExtendExpiry(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID, expiresAt, accessedAt time.Time) error {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}

	return transaction.WithContext(ctx).
		Model(&types.SearchSession{}).
		Where("session_id = ? AND expires_at > ?", sessionID, accessedAt).
		UpdateColumns(map[string]any{
			"expires_at":       expiresAt,
			"last_accessed_at": accessedAt,
		}).Error
}

func (sr *searchSessionRepo) ListExpiredIDs(ctx context.Context, tx *gorm.DB, now time.Time) ([]uuid.UUID, error) {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}

	var ids []uuid.UUID
	if err := transaction.WithContext(ctx).
		Model(&types.SearchSession{}).
		Where("expires_at <= ?", now).
		Pluck("session_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (sr *searchSessionRepo) DeleteByIDs(ctx context.Context, tx *gorm.DB, sessionIDs []uuid.UUID) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}

	if len(sessionIDs) == 0 {
		return 0, nil
	}

	result := transaction.WithContext(ctx).
		Where("session_id IN ?", sessionIDs).
		Delete(&types.SearchSession{})
	return result.RowsAffected, result.Error
}

func (sr *searchSessionRepo) CountActive(ctx context.Context, tx *gorm.DB, now time.Time) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}

	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.SearchSession{}).
		Where("expires_at > ?", now).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
