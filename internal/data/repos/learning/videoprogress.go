package learning

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/learnhubhq/learnhub-backend/internal/domain"
	"github.com/learnhubhq/learnhub-backend/internal/platform/logger"
)

type VideoProgressRepo interface {
	// UpsertSample inserts or overwrites the watch-position fields for
	// the (user, video, course) key. The completed flag and completed_at
	// are deliberately excluded from the conflict update so a late or
	// out-of-order sample can never clear a completion.
	UpsertSample(ctx context.Context, tx *gorm.DB, row *domain.VideoProgress) error
	// MarkCompleted flips completed false->true as a conditional update
	// and reports whether this call performed the transition. Calling it
	// on an already-completed row affects zero rows.
	MarkCompleted(ctx context.Context, tx *gorm.DB, userID, videoID, courseID uuid.UUID, completedAt time.Time) (bool, error)
	GetByUserAndVideo(ctx context.Context, tx *gorm.DB, userID, videoID, courseID uuid.UUID) (*domain.VideoProgress, error)
	GetByUserAndCourse(ctx context.Context, tx *gorm.DB, userID, courseID uuid.UUID) ([]*domain.VideoProgress, error)
	GetByUserAndVideoIDs(ctx context.Context, tx *gorm.DB, userID uuid.UUID, videoIDs []uuid.UUID) ([]*domain.VideoProgress, error)
}

type videoProgressRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewVideoProgressRepo(db *gorm.DB, baseLog *logger.Logger) VideoProgressRepo {
	repoLog := baseLog.With("repo", "VideoProgressRepo")
	return &videoProgressRepo{db: db, log: repoLog}
}

func (r *videoProgressRepo) UpsertSample(ctx context.Context, tx *gorm.DB, row *domain.VideoProgress) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if row == nil {
		return nil
	}

	if err := transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "user_id"},
				{Name: "video_id"},
				{Name: "course_id"},
			},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"watched_seconds": gorm.Expr("excluded.watched_seconds"),
				"total_seconds":   gorm.Expr("excluded.total_seconds"),
				"percent_watched": gorm.Expr("excluded.percent_watched"),
				"updated_at":      gorm.Expr("now()"),
			}),
		}).
		Create(row).Error; err != nil {
		return err
	}
	return nil
}

func (r *videoProgressRepo) MarkCompleted(ctx context.Context, tx *gorm.DB, userID, videoID, courseID uuid.UUID, completedAt time.Time) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	res := transaction.WithContext(ctx).
		Model(&domain.VideoProgress{}).
		Where("user_id = ? AND video_id = ? AND course_id = ? AND completed = false", userID, videoID, courseID).
		Updates(map[string]interface{}{
			"completed":    true,
			"completed_at": completedAt,
			"updated_at":   completedAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *videoProgressRepo) GetByUserAndVideo(ctx context.Context, tx *gorm.DB, userID, videoID, courseID uuid.UUID) (*domain.VideoProgress, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result domain.VideoProgress
	if err := transaction.WithContext(ctx).
		Where("user_id = ? AND video_id = ? AND course_id = ?", userID, videoID, courseID).
		First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}

func (r *videoProgressRepo) GetByUserAndCourse(ctx context.Context, tx *gorm.DB, userID, courseID uuid.UUID) ([]*domain.VideoProgress, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*domain.VideoProgress
	if userID == uuid.Nil || courseID == uuid.Nil {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *videoProgressRepo) GetByUserAndVideoIDs(ctx context.Context, tx *gorm.DB, userID uuid.UUID, videoIDs []uuid.UUID) ([]*domain.VideoProgress, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*domain.VideoProgress
	if userID == uuid.Nil || len(videoIDs) == 0 {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("user_id = ? AND video_id IN ?", userID, videoIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
