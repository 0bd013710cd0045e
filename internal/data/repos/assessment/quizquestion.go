package assessment

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/learnhubhq/learnhub-backend/internal/domain"
	"github.com/learnhubhq/learnhub-backend/internal/platform/logger"
)

type QuizQuestionRepo interface {
	ReplaceForQuiz(ctx context.Context, tx *gorm.DB, quizID uuid.UUID, questions []*domain.QuizQuestion) error
	GetByQuizID(ctx context.Context, tx *gorm.DB, quizID uuid.UUID) ([]*domain.QuizQuestion, error)
}

type quizQuestionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewQuizQuestionRepo(db *gorm.DB, baseLog *logger.Logger) QuizQuestionRepo {
	repoLog := baseLog.With("repo", "QuizQuestionRepo")
	return &quizQuestionRepo{db: db, log: repoLog}
}

func (r *quizQuestionRepo) ReplaceForQuiz(ctx context.Context, tx *gorm.DB, quizID uuid.UUID, questions []*domain.QuizQuestion) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if quizID == uuid.Nil {
		return nil
	}

	return transaction.WithContext(ctx).Transaction(func(inner *gorm.DB) error {
		if err := inner.
			Where("quiz_id = ?", quizID).
			Delete(&domain.QuizQuestion{}).Error; err != nil {
			return err
		}
		if len(questions) == 0 {
			return nil
		}
		return inner.Create(&questions).Error
	})
}

func (r *quizQuestionRepo) GetByQuizID(ctx context.Context, tx *gorm.DB, quizID uuid.UUID) ([]*domain.QuizQuestion, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*domain.QuizQuestion
	if quizID == uuid.Nil {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("quiz_id = ?", quizID).
		Order("index ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
