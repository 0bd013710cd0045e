package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/learnhubhq/learnhub-backend/internal/domain"
)

func SeedUser(tb testing.TB, ctx context.Context, tx *gorm.DB, email string) *domain.User {
	tb.Helper()
	u := &domain.User{
		ID:        uuid.New(),
		Email:     email,
		Password:  "pw",
		FirstName: "A",
		LastName:  "B",
	}
	if err := tx.WithContext(ctx).Create(u).Error; err != nil {
		tb.Fatalf("seed user: %v", err)
	}
	return u
}

func SeedCourse(tb testing.TB, ctx context.Context, tx *gorm.DB, category string) *domain.Course {
	tb.Helper()
	c := &domain.Course{
		ID:           uuid.New(),
		Title:        "course",
		CategoryName: category,
		Status:       "published",
	}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed course: %v", err)
	}
	return c
}

func SeedCourseModule(tb testing.TB, ctx context.Context, tx *gorm.DB, courseID uuid.UUID, index int) *domain.CourseModule {
	tb.Helper()
	m := &domain.CourseModule{
		ID:       uuid.New(),
		CourseID: courseID,
		Index:    index,
		Title:    "module",
	}
	if err := tx.WithContext(ctx).Create(m).Error; err != nil {
		tb.Fatalf("seed course module: %v", err)
	}
	return m
}

func SeedVideo(tb testing.TB, ctx context.Context, tx *gorm.DB, moduleID, courseID uuid.UUID, index int, durationSeconds float64) *domain.Video {
	tb.Helper()
	v := &domain.Video{
		ID:              uuid.New(),
		ModuleID:        moduleID,
		CourseID:        courseID,
		Index:           index,
		Title:           "video",
		DurationSeconds: durationSeconds,
	}
	if err := tx.WithContext(ctx).Create(v).Error; err != nil {
		tb.Fatalf("seed video: %v", err)
	}
	return v
}

func SeedQuiz(tb testing.TB, ctx context.Context, tx *gorm.DB, courseID uuid.UUID, minPassScore int) *domain.Quiz {
	tb.Helper()
	q := &domain.Quiz{
		ID:           uuid.New(),
		CourseID:     courseID,
		Title:        "quiz",
		MinPassScore: minPassScore,
	}
	if err := tx.WithContext(ctx).Create(q).Error; err != nil {
		tb.Fatalf("seed quiz: %v", err)
	}
	return q
}

func PtrUUID(v uuid.UUID) *uuid.UUID { return &v }

func PtrTime(v time.Time) *time.Time { return &v }
