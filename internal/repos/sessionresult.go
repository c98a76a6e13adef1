package repos

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/hermes-backend/internal/pkg/logger"
	"github.com/yungbote/hermes-backend/internal/types"
)

type SessionResultRepo interface {
	// ReplaceForSession swaps a session's result set atomically:
	// delete then insert inside the caller's transaction.
	ReplaceForSession(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID, results []*types.SearchSessionResult) error
	ListAll(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) ([]*types.SearchSessionResult, error)
	ListPage(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID, sortKey types.SortKey, limit, offset int) ([]*types.SearchSessionResult, error)
	DeleteBySessionIDs(ctx context.Context, tx *gorm.DB, sessionIDs []uuid.UUID) (int64, error)
}

type sessionResultRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSessionResultRepo(db *gorm.DB, baseLog *logger.Logger) SessionResultRepo {
	repoLog := baseLog.With("repo", "SessionResultRepo")
	return &sessionResultRepo{db: db, log: repoLog}
}

func (rr *sessionResultRepo) ReplaceForSession(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID, results []*types.SearchSessionResult) error {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}

	if err := transaction.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Delete(&types.SearchSessionResult{}).Error; err != nil {
		return err
	}
	if len(results) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).Create(&results).Error
}

func (rr *sessionResultRepo) ListAll(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) ([]*types.SearchSessionResult, error) {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}

	var results []*types.SearchSessionResult
	if err := transaction.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("rank ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (rr *sessionResultRepo) ListPage(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID, sortKey types.SortKey, limit, offset int) ([]*types.SearchSessionResult, error) {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}

	var results []*types.SearchSessionResult
	if err := transaction.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order(orderClause(sortKey)).
		Limit(limit).
		Offset(offset).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// orderClause builds the ORDER BY for a sort key. The column names
// come from the SortKey whitelist, never from user input. Rank breaks
// ties so pages stay stable, and channels with no known upload date
// sort last under ACTIVITY on both postgres and sqlite.
func orderClause(sortKey types.SortKey) string {
	column := sortKey.Column()
	if sortKey == types.SortActivity {
		return fmt.Sprintf("(%s IS NULL) ASC, %s DESC, rank ASC", column, column)
	}
	return fmt.Sprintf("%s DESC, rank ASC", column)
}

func (rr *sessionResultRepo) DeleteBySessionIDs(ctx context.Context, tx *gorm.DB, sessionIDs []uuid.UUID) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}

	if len(sessionIDs) == 0 {
		return 0, nil
	}

	result := transaction.WithContext(ctx).
		Where("session_id IN ?", sessionIDs).
		Delete(&types.SearchSessionResult{})
	return result.RowsAffected, result.Error
}
