package services

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/learnhubhq/learnhub-backend/internal/data/repos/learning"
	"github.com/learnhubhq/learnhub-backend/internal/domain"
	"github.com/learnhubhq/learnhub-backend/internal/platform/apierr"
	"github.com/learnhubhq/learnhub-backend/internal/platform/logger"
)

type CourseService interface {
	ListCourses(ctx context.Context) ([]*domain.Course, error)
	// GetCourse returns the course with its modules and videos preloaded
	// in playback order.
	GetCourse(ctx context.Context, courseID uuid.UUID) (*domain.Course, error)
}

type courseService struct {
	db         *gorm.DB
	log        *logger.Logger
	courseRepo learning.CourseRepo
}

func NewCourseService(db *gorm.DB, baseLog *logger.Logger, courseRepo learning.CourseRepo) CourseService {
	serviceLog := baseLog.With("service", "CourseService")
	return &courseService{db: db, log: serviceLog, courseRepo: courseRepo}
}

func (s *courseService) ListCourses(ctx context.Context) ([]*domain.Course, error) {
	courses, err := s.courseRepo.List(ctx, nil)
	if err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "load_courses_failed", err)
	}
	return courses, nil
}

func (s *courseService) GetCourse(ctx context.Context, courseID uuid.UUID) (*domain.Course, error) {
	if courseID == uuid.Nil {
		return nil, apierr.New(http.StatusBadRequest, "invalid_course_id", nil)
	}
	course, err := s.courseRepo.GetByIDWithContent(ctx, nil, courseID)
	if err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "load_course_failed", err)
	}
	if course == nil {
		return nil, apierr.New(http.StatusNotFound, "course_not_found", nil)
	}
	return course, nil
}
