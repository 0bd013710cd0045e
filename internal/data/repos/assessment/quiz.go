package assessment

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/learnhubhq/learnhub-backend/internal/domain"
	"github.com/learnhubhq/learnhub-backend/internal/platform/logger"
)

type QuizRepo interface {
	Upsert(ctx context.Context, tx *gorm.DB, quiz *domain.Quiz) error
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.Quiz, error)
	GetByCourseID(ctx context.Context, tx *gorm.DB, courseID uuid.UUID) (*domain.Quiz, error)
}

type quizRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewQuizRepo(db *gorm.DB, baseLog *logger.Logger) QuizRepo {
	repoLog := baseLog.With("repo", "QuizRepo")
	return &quizRepo{db: db, log: repoLog}
}

func (r *quizRepo) Upsert(ctx context.Context, tx *gorm.DB, quiz *domain.Quiz) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if quiz == nil {
		return nil
	}

	// One quiz per course: collide on course_id, refresh the config fields.
	if err := transaction.WithContext(ctx).
		Omit("Questions").
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "course_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"title":          gorm.Expr("excluded.title"),
				"min_pass_score": gorm.Expr("excluded.min_pass_score"),
				"updated_at":     gorm.Expr("now()"),
			}),
		}).
		Create(quiz).Error; err != nil {
		return err
	}
	return nil
}

func (r *quizRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.Quiz, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result domain.Quiz
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

func (r *quizRepo) GetByCourseID(ctx context.Context, tx *gorm.DB, courseID uuid.UUID) (*domain.Quiz, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result domain.Quiz
	if err := transaction.WithContext(ctx).
		Where("course_id = ?", courseID).
		First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}
