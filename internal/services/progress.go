package services

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/learnhubhq/learnhub-backend/internal/data/repos/learning"
	"github.com/learnhubhq/learnhub-backend/internal/domain"
	"github.com/learnhubhq/learnhub-backend/internal/platform/apierr"
	"github.com/learnhubhq/learnhub-backend/internal/platform/logger"
	"github.com/learnhubhq/learnhub-backend/internal/sse"
)

// ProgressSample is one playback-position report. Players send these
// several times per second; the tracker coalesces them per key.
type ProgressSample struct {
	VideoID         uuid.UUID `json:"video_id"`
	CourseID        uuid.UUID `json:"course_id"`
	PositionSeconds float64   `json:"position_seconds"`
	DurationSeconds float64   `json:"duration_seconds"`
}

type ProgressService interface {
	// Sample ingests a playback sample and returns immediately. At most
	// one persistence write per key is in flight at any time; samples
	// inside the debounce window are buffered and flushed by a single
	// trailing write. Write failures are retried on later samples, never
	// surfaced to the caller.
	Sample(ctx context.Context, userID uuid.UUID, in ProgressSample)
	// MarkComplete is the explicit "mark as watched" action: a forced
	// 100% sample that always performs the completion transition.
	MarkComplete(ctx context.Context, userID, videoID uuid.UUID) (*domain.VideoProgress, error)
	GetCourseProgress(ctx context.Context, userID, courseID uuid.UUID) ([]*domain.VideoProgress, error)
	// FlushAll synchronously drains every buffered sample; used on
	// shutdown so trailing writes are not lost.
	FlushAll(ctx context.Context)
}

type ProgressConfig struct {
	DebounceInterval  time.Duration
	CompletionPercent float64
	WriteTimeout      time.Duration
}

func DefaultProgressConfig() ProgressConfig {
	return ProgressConfig{
		DebounceInterval:  2 * time.Second,
		CompletionPercent: 90,
		WriteTimeout:      5 * time.Second,
	}
}

type progressKey struct {
	userID  uuid.UUID
	videoID uuid.UUID
}

// watchState is the transient per-(user, video) debounce record. It lives
// in a map owned by the service instance so independent engines (tests,
// replicas) never share timer state.
type watchState struct {
	lastFlush time.Time
	timer     *time.Timer
	pending   *ProgressSample
	inflight  bool
}

type progressService struct {
	db           *gorm.DB
	log          *logger.Logger
	progressRepo learning.VideoProgressRepo
	videoRepo    learning.VideoRepo
	completion   CompletionService
	pub          sse.Publisher
	cfg          ProgressConfig

	mu     sync.Mutex
	states map[progressKey]*watchState
}

func NewProgressService(
	db *gorm.DB,
	baseLog *logger.Logger,
	progressRepo learning.VideoProgressRepo,
	videoRepo learning.VideoRepo,
	completion CompletionService,
	pub sse.Publisher,
	cfg ProgressConfig,
) ProgressService {
	serviceLog := baseLog.With("service", "ProgressService")
	if cfg.DebounceInterval <= 0 {
		cfg.DebounceInterval = DefaultProgressConfig().DebounceInterval
	}
	if cfg.CompletionPercent <= 0 {
		cfg.CompletionPercent = DefaultProgressConfig().CompletionPercent
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultProgressConfig().WriteTimeout
	}
	return &progressService{
		db:           db,
		log:          serviceLog,
		progressRepo: progressRepo,
		videoRepo:    videoRepo,
		completion:   completion,
		pub:          pub,
		cfg:          cfg,
		states:       make(map[progressKey]*watchState),
	}
}

func (s *progressService) Sample(ctx context.Context, userID uuid.UUID, in ProgressSample) {
	if userID == uuid.Nil || in.VideoID == uuid.Nil || in.CourseID == uuid.Nil {
		return
	}
	if in.DurationSeconds <= 0 {
		return
	}
	if in.PositionSeconds < 0 {
		in.PositionSeconds = 0
	}
	if in.PositionSeconds > in.DurationSeconds {
		in.PositionSeconds = in.DurationSeconds
	}

	key := progressKey{userID: userID, videoID: in.VideoID}

	s.mu.Lock()
	st, ok := s.states[key]
	if !ok {
		st = &watchState{}
		s.states[key] = st
	}
	sample := in
	st.pending = &sample

	if !st.inflight && time.Since(st.lastFlush) >= s.cfg.DebounceInterval {
		st.inflight = true
		st.pending = nil
		if st.timer != nil {
			st.timer.Stop()
			st.timer = nil
		}
		s.mu.Unlock()
		go s.flush(userID, sample)
		return
	}

	// Buffered: replace any armed timer with one that fires when the
	// current window closes (or a full window from now if a write is
	// still outstanding).
	delay := s.cfg.DebounceInterval - time.Since(st.lastFlush)
	if st.inflight || delay <= 0 {
		delay = s.cfg.DebounceInterval
	}
	if st.timer != nil {
		st.timer.Stop()
	}
	st.timer = time.AfterFunc(delay, func() { s.flushPending(key) })
	s.mu.Unlock()
}

func (s *progressService) flushPending(key progressKey) {
	s.mu.Lock()
	st, ok := s.states[key]
	if !ok || st.pending == nil || st.inflight {
		// An outstanding write re-arms the timer itself when it sees a
		// newer pending sample.
		s.mu.Unlock()
		return
	}
	st.inflight = true
	sample := *st.pending
	st.pending = nil
	st.timer = nil
	s.mu.Unlock()

	s.flush(key.userID, sample)
}

func (s *progressService) flush(userID uuid.UUID, sample ProgressSample) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.WriteTimeout)
	defer cancel()

	percent := sample.PositionSeconds / sample.DurationSeconds * 100

	row := &domain.VideoProgress{
		ID:             uuid.New(),
		UserID:         userID,
		VideoID:        sample.VideoID,
		CourseID:       sample.CourseID,
		WatchedSeconds: sample.PositionSeconds,
		TotalSeconds:   sample.DurationSeconds,
		PercentWatched: percent,
	}
	err := s.progressRepo.UpsertSample(ctx, nil, row)

	key := progressKey{userID: userID, videoID: sample.VideoID}
	s.mu.Lock()
	st := s.states[key]
	if st == nil {
		st = &watchState{}
		s.states[key] = st
	}
	st.inflight = false
	st.lastFlush = time.Now()
	if err != nil && st.pending == nil {
		// Keep the sample around; the trailing timer or the next sample
		// retries it.
		retry := sample
		st.pending = &retry
	}
	rearm := st.pending != nil
	if rearm {
		if st.timer != nil {
			st.timer.Stop()
		}
		st.timer = time.AfterFunc(s.cfg.DebounceInterval, func() { s.flushPending(key) })
	}
	s.mu.Unlock()

	if err != nil {
		s.log.Warn("Progress write failed; will retry", "error", err, "user_id", userID, "video_id", sample.VideoID)
		return
	}

	completed := false
	if percent >= s.cfg.CompletionPercent {
		completed = s.completeVideo(ctx, userID, sample.VideoID, sample.CourseID)
	}

	if s.pub != nil {
		s.pub.Broadcast(sse.Message{
			Channel: userID.String(),
			Event:   sse.EventVideoProgressChanged,
			Data: map[string]interface{}{
				"video_id":        sample.VideoID,
				"course_id":       sample.CourseID,
				"percent_watched": percent,
				"completed":       completed,
			},
		})
	}
}

// completeVideo performs the one-way completion transition. The conditional
// update in the repo is the source of truth: only the caller that actually
// flipped the flag runs the side effects, no matter how many samples cross
// the threshold or how many clients are writing.
func (s *progressService) completeVideo(ctx context.Context, userID, videoID, courseID uuid.UUID) bool {
	transitioned, err := s.progressRepo.MarkCompleted(ctx, nil, userID, videoID, courseID, time.Now().UTC())
	if err != nil {
		s.log.Warn("Completion transition failed; will retry on a later sample", "error", err, "user_id", userID, "video_id", videoID)
		return false
	}
	if !transitioned {
		return true // already completed earlier
	}

	s.log.Info("Video completed", "user_id", userID, "video_id", videoID, "course_id", courseID)
	if s.completion != nil {
		if err := s.completion.HandleVideoCompleted(ctx, userID, courseID); err != nil {
			s.log.Warn("Course completion recompute failed", "error", err, "user_id", userID, "course_id", courseID)
		}
	}
	return true
}

func (s *progressService) MarkComplete(ctx context.Context, userID, videoID uuid.UUID) (*domain.VideoProgress, error) {
	if userID == uuid.Nil || videoID == uuid.Nil {
		return nil, apierr.New(http.StatusBadRequest, "invalid_video_id", nil)
	}

	video, err := s.videoRepo.GetByID(ctx, nil, videoID)
	if err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "load_video_failed", err)
	}
	if video == nil {
		return nil, apierr.New(http.StatusNotFound, "video_not_found", nil)
	}

	duration := video.DurationSeconds
	row := &domain.VideoProgress{
		ID:             uuid.New(),
		UserID:         userID,
		VideoID:        videoID,
		CourseID:       video.CourseID,
		ModuleID:       &video.ModuleID,
		WatchedSeconds: duration,
		TotalSeconds:   duration,
		PercentWatched: 100,
	}
	if err := s.progressRepo.UpsertSample(ctx, nil, row); err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "progress_write_failed", err)
	}

	s.completeVideo(ctx, userID, videoID, video.CourseID)

	stored, err := s.progressRepo.GetByUserAndVideo(ctx, nil, userID, videoID, video.CourseID)
	if err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "load_progress_failed", err)
	}
	return stored, nil
}

func (s *progressService) GetCourseProgress(ctx context.Context, userID, courseID uuid.UUID) ([]*domain.VideoProgress, error) {
	rows, err := s.progressRepo.GetByUserAndCourse(ctx, nil, userID, courseID)
	if err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "load_progress_failed", err)
	}
	return rows, nil
}

func (s *progressService) FlushAll(ctx context.Context) {
	s.mu.Lock()
	type flushItem struct {
		userID uuid.UUID
		sample ProgressSample
	}
	var items []flushItem
	for key, st := range s.states {
		if st.pending == nil || st.inflight {
			continue
		}
		st.inflight = true
		items = append(items, flushItem{userID: key.userID, sample: *st.pending})
		st.pending = nil
		if st.timer != nil {
			st.timer.Stop()
			st.timer = nil
		}
	}
	s.mu.Unlock()

	for _, it := range items {
		s.flush(it.userID, it.sample)
	}
}
