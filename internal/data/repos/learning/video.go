package learning

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/learnhubhq/learnhub-backend/internal/domain"
	"github.com/learnhubhq/learnhub-backend/internal/platform/logger"
)

type VideoRepo interface {
	Create(ctx context.Context, tx *gorm.DB, videos []*domain.Video) ([]*domain.Video, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.Video, error)
	GetByCourseID(ctx context.Context, tx *gorm.DB, courseID uuid.UUID) ([]*domain.Video, error)
}

type videoRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewVideoRepo(db *gorm.DB, baseLog *logger.Logger) VideoRepo {
	repoLog := baseLog.With("repo", "VideoRepo")
	return &videoRepo{db: db, log: repoLog}
}

func (r *videoRepo) Create(ctx context.Context, tx *gorm.DB, videos []*domain.Video) ([]*domain.Video, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(videos) == 0 {
		return []*domain.Video{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&videos).Error; err != nil {
		return nil, err
	}
	return videos, nil
}

func (r *videoRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.Video, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result domain.Video
	if err := transaction.WithContext(ctx).
		Where("id = ?", id).
		First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}

func (r *videoRepo) GetByCourseID(ctx context.Context, tx *gorm.DB, courseID uuid.UUID) ([]*domain.Video, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*domain.Video
	if courseID == uuid.Nil {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("course_id = ?", courseID).
		Order("index ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
