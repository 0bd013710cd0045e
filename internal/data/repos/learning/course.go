package learning

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/learnhubhq/learnhub-backend/internal/domain"
	"github.com/learnhubhq/learnhub-backend/internal/platform/logger"
)

type CourseRepo interface {
	Create(ctx context.Context, tx *gorm.DB, courses []*domain.Course) ([]*domain.Course, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.Course, error)
	GetByIDWithContent(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.Course, error)
	List(ctx context.Context, tx *gorm.DB) ([]*domain.Course, error)
}

type courseRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCourseRepo(db *gorm.DB, baseLog *logger.Logger) CourseRepo {
	repoLog := baseLog.With("repo", "CourseRepo")
	return &courseRepo{db: db, log: repoLog}
}

func (r *courseRepo) Create(ctx context.Context, tx *gorm.DB, courses []*domain.Course) ([]*domain.Course, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(courses) == 0 {
		return []*domain.Course{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&courses).Error; err != nil {
		return nil, err
	}
	return courses, nil
}

func (r *courseRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.Course, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result domain.Course
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

func (r *courseRepo) GetByIDWithContent(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.Course, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result domain.Course
	if err := transaction.WithContext(ctx).
		Preload("Modules", func(db *gorm.DB) *gorm.DB { return db.Order("index ASC") }).
		Preload("Modules.Videos", func(db *gorm.DB) *gorm.DB { return db.Order("index ASC") }).
		Where("id = ?", id).
		First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}

func (r *courseRepo) List(ctx context.Context, tx *gorm.DB) ([]*domain.Course, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*domain.Course
	if err := transaction.WithContext(ctx).
		Order("created_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
