package services

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/learnhubhq/learnhub-backend/internal/data/repos/learning"
	"github.com/learnhubhq/learnhub-backend/internal/platform/apierr"
	"github.com/learnhubhq/learnhub-backend/internal/platform/logger"
	"github.com/learnhubhq/learnhub-backend/internal/sse"
)

type CompletionService interface {
	// IsCourseComplete recomputes course completion from scratch: every
	// video reachable from the course must have a completed progress row
	// for the user. A course with zero videos is never complete.
	IsCourseComplete(ctx context.Context, userID, courseID uuid.UUID) (bool, error)
	// HandleVideoCompleted recomputes after a video completion and emits
	// the CourseCompleted signal exactly once per incomplete->complete
	// transition observed by this instance.
	HandleVideoCompleted(ctx context.Context, userID, courseID uuid.UUID) error
}

type completionService struct {
	db           *gorm.DB
	log          *logger.Logger
	videoRepo    learning.VideoRepo
	progressRepo learning.VideoProgressRepo
	pub          sse.Publisher

	group singleflight.Group

	mu       sync.Mutex
	signaled map[string]bool
}

func NewCompletionService(
	db *gorm.DB,
	baseLog *logger.Logger,
	videoRepo learning.VideoRepo,
	progressRepo learning.VideoProgressRepo,
	pub sse.Publisher,
) CompletionService {
	serviceLog := baseLog.With("service", "CompletionService")
	return &completionService{
		db:           db,
		log:          serviceLog,
		videoRepo:    videoRepo,
		progressRepo: progressRepo,
		pub:          pub,
		signaled:     make(map[string]bool),
	}
}

func completionKey(userID, courseID uuid.UUID) string {
	return fmt.Sprintf("%s|%s", userID, courseID)
}

func (s *completionService) IsCourseComplete(ctx context.Context, userID, courseID uuid.UUID) (bool, error) {
	if userID == uuid.Nil || courseID == uuid.Nil {
		return false, apierr.New(http.StatusBadRequest, "invalid_course_id", nil)
	}

	// Bursts of video completions (and quiz gate checks) collapse into a
	// single recompute per key.
	v, err, _ := s.group.Do(completionKey(userID, courseID), func() (interface{}, error) {
		return s.recompute(ctx, userID, courseID)
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

// recompute enumerates the course's videos every time instead of keeping a
// counter, so videos added or removed after progress exists can never make
// the aggregate drift.
func (s *completionService) recompute(ctx context.Context, userID, courseID uuid.UUID) (bool, error) {
	videos, err := s.videoRepo.GetByCourseID(ctx, nil, courseID)
	if err != nil {
		return false, fmt.Errorf("list course videos: %w", err)
	}
	if len(videos) == 0 {
		return false, nil
	}

	videoIDs := make([]uuid.UUID, 0, len(videos))
	for _, v := range videos {
		videoIDs = append(videoIDs, v.ID)
	}

	rows, err := s.progressRepo.GetByUserAndVideoIDs(ctx, nil, userID, videoIDs)
	if err != nil {
		return false, fmt.Errorf("list progress rows: %w", err)
	}

	completed := make(map[uuid.UUID]bool, len(rows))
	for _, row := range rows {
		if row.Completed {
			completed[row.VideoID] = true
		}
	}
	for _, id := range videoIDs {
		if !completed[id] {
			return false, nil
		}
	}
	return true, nil
}

func (s *completionService) HandleVideoCompleted(ctx context.Context, userID, courseID uuid.UUID) error {
	complete, err := s.IsCourseComplete(ctx, userID, courseID)
	if err != nil {
		return err
	}
	if !complete {
		return nil
	}

	key := completionKey(userID, courseID)
	s.mu.Lock()
	if s.signaled[key] {
		s.mu.Unlock()
		return nil
	}
	s.signaled[key] = true
	s.mu.Unlock()

	s.log.Info("Course completed", "user_id", userID, "course_id", courseID)
	if s.pub != nil {
		s.pub.Broadcast(sse.Message{
			Channel: userID.String(),
			Event:   sse.EventCourseCompleted,
			Data: map[string]interface{}{
				"course_id": courseID,
			},
		})
	}
	return nil
}
