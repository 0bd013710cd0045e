package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/learnhubhq/learnhub-backend/internal/domain"
)

type completionFixture struct {
	svc      CompletionService
	repo     *fakeProgressRepo
	pub      *recordingPublisher
	userID   uuid.UUID
	courseID uuid.UUID
	videoIDs []uuid.UUID
}

func newCompletionFixture(t *testing.T, videoCount int) *completionFixture {
	t.Helper()

	courseID := uuid.New()
	moduleID := uuid.New()
	videoRepo := newFakeVideoRepo()
	videoIDs := make([]uuid.UUID, 0, videoCount)
	for i := 0; i < videoCount; i++ {
		v := &domain.Video{
			ID:              uuid.New(),
			ModuleID:        moduleID,
			CourseID:        courseID,
			Index:           i,
			DurationSeconds: 300,
		}
		videoIDs = append(videoIDs, v.ID)
		if _, err := videoRepo.Create(context.Background(), nil, []*domain.Video{v}); err != nil {
			t.Fatalf("seed video: %v", err)
		}
	}

	repo := newFakeProgressRepo()
	pub := &recordingPublisher{}
	svc := NewCompletionService(nil, testLogger(), videoRepo, repo, pub)
	return &completionFixture{
		svc:      svc,
		repo:     repo,
		pub:      pub,
		userID:   uuid.New(),
		courseID: courseID,
		videoIDs: videoIDs,
	}
}

func (f *completionFixture) completeVideo(t *testing.T, videoID uuid.UUID) {
	t.Helper()
	row := &domain.VideoProgress{
		ID:             uuid.New(),
		UserID:         f.userID,
		VideoID:        videoID,
		CourseID:       f.courseID,
		WatchedSeconds: 300,
		TotalSeconds:   300,
		PercentWatched: 100,
	}
	if err := f.repo.UpsertSample(context.Background(), nil, row); err != nil {
		t.Fatalf("seed progress: %v", err)
	}
	if _, err := f.repo.MarkCompleted(context.Background(), nil, f.userID, videoID, f.courseID, time.Now()); err != nil {
		t.Fatalf("mark completed: %v", err)
	}
}

func TestCourseWithZeroVideosIsNeverComplete(t *testing.T) {
	f := newCompletionFixture(t, 0)
	complete, err := f.svc.IsCourseComplete(context.Background(), f.userID, f.courseID)
	if err != nil {
		t.Fatalf("IsCourseComplete: %v", err)
	}
	if complete {
		t.Fatal("a course with zero videos must not be complete")
	}
}

func TestPartialProgressIsNotComplete(t *testing.T) {
	f := newCompletionFixture(t, 3)
	f.completeVideo(t, f.videoIDs[0])
	f.completeVideo(t, f.videoIDs[1])

	complete, err := f.svc.IsCourseComplete(context.Background(), f.userID, f.courseID)
	if err != nil {
		t.Fatalf("IsCourseComplete: %v", err)
	}
	if complete {
		t.Fatal("expected incomplete with one video unwatched")
	}
}

func TestUncompletedRowDoesNotCount(t *testing.T) {
	f := newCompletionFixture(t, 1)
	// A progress row exists but the completed flag never flipped.
	row := &domain.VideoProgress{
		ID:             uuid.New(),
		UserID:         f.userID,
		VideoID:        f.videoIDs[0],
		CourseID:       f.courseID,
		WatchedSeconds: 100,
		TotalSeconds:   300,
		PercentWatched: 33,
	}
	if err := f.repo.UpsertSample(context.Background(), nil, row); err != nil {
		t.Fatalf("seed progress: %v", err)
	}

	complete, err := f.svc.IsCourseComplete(context.Background(), f.userID, f.courseID)
	if err != nil {
		t.Fatalf("IsCourseComplete: %v", err)
	}
	if complete {
		t.Fatal("an incomplete row must not count toward completion")
	}
}

func TestAllVideosCompletedCompletesCourse(t *testing.T) {
	f := newCompletionFixture(t, 3)
	for _, id := range f.videoIDs {
		f.completeVideo(t, id)
	}

	complete, err := f.svc.IsCourseComplete(context.Background(), f.userID, f.courseID)
	if err != nil {
		t.Fatalf("IsCourseComplete: %v", err)
	}
	if !complete {
		t.Fatal("expected complete after every video completed")
	}
}

func TestCourseCompletedSignalFiresOnce(t *testing.T) {
	f := newCompletionFixture(t, 2)
	ctx := context.Background()

	f.completeVideo(t, f.videoIDs[0])
	if err := f.svc.HandleVideoCompleted(ctx, f.userID, f.courseID); err != nil {
		t.Fatalf("HandleVideoCompleted: %v", err)
	}
	if got := f.pub.byEvent("CourseCompleted"); len(got) != 0 {
		t.Fatalf("expected no signal while incomplete, got %d", len(got))
	}

	f.completeVideo(t, f.videoIDs[1])
	for i := 0; i < 3; i++ {
		if err := f.svc.HandleVideoCompleted(ctx, f.userID, f.courseID); err != nil {
			t.Fatalf("HandleVideoCompleted: %v", err)
		}
	}
	if got := f.pub.byEvent("CourseCompleted"); len(got) != 1 {
		t.Fatalf("expected exactly one CourseCompleted signal, got %d", len(got))
	}
}

func TestCompletionIsPerUser(t *testing.T) {
	f := newCompletionFixture(t, 1)
	f.completeVideo(t, f.videoIDs[0])

	otherUser := uuid.New()
	complete, err := f.svc.IsCourseComplete(context.Background(), otherUser, f.courseID)
	if err != nil {
		t.Fatalf("IsCourseComplete: %v", err)
	}
	if complete {
		t.Fatal("completion must not leak across users")
	}
}
