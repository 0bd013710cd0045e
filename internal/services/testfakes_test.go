package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/learnhubhq/learnhub-backend/internal/data/repos/credential"
	"github.com/learnhubhq/learnhub-backend/internal/domain"
	"github.com/learnhubhq/learnhub-backend/internal/platform/logger"
	"github.com/learnhubhq/learnhub-backend/internal/sse"
)

func testLogger() *logger.Logger {
	log, err := logger.New("test")
	if err != nil {
		panic(err)
	}
	return log
}

// recordingPublisher captures broadcast messages for assertions.
type recordingPublisher struct {
	mu       sync.Mutex
	messages []sse.Message
}

func (p *recordingPublisher) Broadcast(msg sse.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, msg)
}

func (p *recordingPublisher) byEvent(event sse.Event) []sse.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []sse.Message
	for _, m := range p.messages {
		if m.Event == event {
			out = append(out, m)
		}
	}
	return out
}

type progressRowKey struct {
	userID   uuid.UUID
	videoID  uuid.UUID
	courseID uuid.UUID
}

// fakeProgressRepo mirrors the persistence contract in memory: last write
// wins on watch fields, completed only ever flips forward.
type fakeProgressRepo struct {
	mu          sync.Mutex
	rows        map[progressRowKey]*domain.VideoProgress
	upsertCalls int
	markCalls   int
	failUpserts int
}

func newFakeProgressRepo() *fakeProgressRepo {
	return &fakeProgressRepo{rows: make(map[progressRowKey]*domain.VideoProgress)}
}

func (r *fakeProgressRepo) UpsertSample(ctx context.Context, tx *gorm.DB, row *domain.VideoProgress) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upsertCalls++
	if r.failUpserts > 0 {
		r.failUpserts--
		return fmt.Errorf("simulated write failure")
	}
	key := progressRowKey{userID: row.UserID, videoID: row.VideoID, courseID: row.CourseID}
	existing, ok := r.rows[key]
	if !ok {
		clone := *row
		r.rows[key] = &clone
		return nil
	}
	existing.WatchedSeconds = row.WatchedSeconds
	existing.TotalSeconds = row.TotalSeconds
	existing.PercentWatched = row.PercentWatched
	return nil
}

func (r *fakeProgressRepo) MarkCompleted(ctx context.Context, tx *gorm.DB, userID, videoID, courseID uuid.UUID, completedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.markCalls++
	key := progressRowKey{userID: userID, videoID: videoID, courseID: courseID}
	row, ok := r.rows[key]
	if !ok || row.Completed {
		return false, nil
	}
	row.Completed = true
	at := completedAt
	row.CompletedAt = &at
	return true, nil
}

func (r *fakeProgressRepo) GetByUserAndVideo(ctx context.Context, tx *gorm.DB, userID, videoID, courseID uuid.UUID) (*domain.VideoProgress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[progressRowKey{userID: userID, videoID: videoID, courseID: courseID}]
	if !ok {
		return nil, nil
	}
	clone := *row
	return &clone, nil
}

func (r *fakeProgressRepo) GetByUserAndCourse(ctx context.Context, tx *gorm.DB, userID, courseID uuid.UUID) ([]*domain.VideoProgress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.VideoProgress
	for key, row := range r.rows {
		if key.userID == userID && key.courseID == courseID {
			clone := *row
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *fakeProgressRepo) GetByUserAndVideoIDs(ctx context.Context, tx *gorm.DB, userID uuid.UUID, videoIDs []uuid.UUID) ([]*domain.VideoProgress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	wanted := make(map[uuid.UUID]bool, len(videoIDs))
	for _, id := range videoIDs {
		wanted[id] = true
	}
	var out []*domain.VideoProgress
	for key, row := range r.rows {
		if key.userID == userID && wanted[key.videoID] {
			clone := *row
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *fakeProgressRepo) row(userID, videoID, courseID uuid.UUID) *domain.VideoProgress {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[progressRowKey{userID: userID, videoID: videoID, courseID: courseID}]
	if !ok {
		return nil
	}
	clone := *row
	return &clone
}

func (r *fakeProgressRepo) upserts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.upsertCalls
}

type fakeVideoRepo struct {
	mu     sync.Mutex
	videos map[uuid.UUID]*domain.Video
}

func newFakeVideoRepo(videos ...*domain.Video) *fakeVideoRepo {
	r := &fakeVideoRepo{videos: make(map[uuid.UUID]*domain.Video)}
	for _, v := range videos {
		r.videos[v.ID] = v
	}
	return r
}

func (r *fakeVideoRepo) Create(ctx context.Context, tx *gorm.DB, videos []*domain.Video) ([]*domain.Video, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range videos {
		r.videos[v.ID] = v
	}
	return videos, nil
}

func (r *fakeVideoRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.Video, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.videos[id], nil
}

func (r *fakeVideoRepo) GetByCourseID(ctx context.Context, tx *gorm.DB, courseID uuid.UUID) ([]*domain.Video, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Video
	for _, v := range r.videos {
		if v.CourseID == courseID {
			out = append(out, v)
		}
	}
	return out, nil
}

type fakeCourseRepo struct {
	courses map[uuid.UUID]*domain.Course
}

func newFakeCourseRepo(courses ...*domain.Course) *fakeCourseRepo {
	r := &fakeCourseRepo{courses: make(map[uuid.UUID]*domain.Course)}
	for _, c := range courses {
		r.courses[c.ID] = c
	}
	return r
}

func (r *fakeCourseRepo) Create(ctx context.Context, tx *gorm.DB, courses []*domain.Course) ([]*domain.Course, error) {
	for _, c := range courses {
		r.courses[c.ID] = c
	}
	return courses, nil
}

func (r *fakeCourseRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.Course, error) {
	return r.courses[id], nil
}

func (r *fakeCourseRepo) GetByIDWithContent(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.Course, error) {
	return r.courses[id], nil
}

func (r *fakeCourseRepo) List(ctx context.Context, tx *gorm.DB) ([]*domain.Course, error) {
	var out []*domain.Course
	for _, c := range r.courses {
		out = append(out, c)
	}
	return out, nil
}

type fakeQuizRepo struct {
	mu       sync.Mutex
	byCourse map[uuid.UUID]*domain.Quiz
}

func newFakeQuizRepo(quizzes ...*domain.Quiz) *fakeQuizRepo {
	r := &fakeQuizRepo{byCourse: make(map[uuid.UUID]*domain.Quiz)}
	for _, q := range quizzes {
		r.byCourse[q.CourseID] = q
	}
	return r
}

func (r *fakeQuizRepo) Upsert(ctx context.Context, tx *gorm.DB, quiz *domain.Quiz) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.byCourse[quiz.CourseID]; ok {
		existing.Title = quiz.Title
		existing.MinPassScore = quiz.MinPassScore
		return nil
	}
	r.byCourse[quiz.CourseID] = quiz
	return nil
}

func (r *fakeQuizRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.Quiz, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, q := range r.byCourse {
		if q.ID == id {
			return q, nil
		}
	}
	return nil, nil
}

func (r *fakeQuizRepo) GetByCourseID(ctx context.Context, tx *gorm.DB, courseID uuid.UUID) (*domain.Quiz, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byCourse[courseID], nil
}

type fakeQuestionRepo struct {
	mu     sync.Mutex
	byQuiz map[uuid.UUID][]*domain.QuizQuestion
}

func newFakeQuestionRepo() *fakeQuestionRepo {
	return &fakeQuestionRepo{byQuiz: make(map[uuid.UUID][]*domain.QuizQuestion)}
}

func (r *fakeQuestionRepo) ReplaceForQuiz(ctx context.Context, tx *gorm.DB, quizID uuid.UUID, questions []*domain.QuizQuestion) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byQuiz[quizID] = questions
	return nil
}

func (r *fakeQuestionRepo) GetByQuizID(ctx context.Context, tx *gorm.DB, quizID uuid.UUID) ([]*domain.QuizQuestion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byQuiz[quizID], nil
}

type fakeAttemptRepo struct {
	mu       sync.Mutex
	attempts []*domain.QuizAttempt
}

func newFakeAttemptRepo() *fakeAttemptRepo {
	return &fakeAttemptRepo{}
}

func (r *fakeAttemptRepo) Create(ctx context.Context, tx *gorm.DB, attempts []*domain.QuizAttempt) ([]*domain.QuizAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = append(r.attempts, attempts...)
	return attempts, nil
}

func (r *fakeAttemptRepo) GetByUserAndQuiz(ctx context.Context, tx *gorm.DB, userID, quizID uuid.UUID) ([]*domain.QuizAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.QuizAttempt
	for _, a := range r.attempts {
		if a.UserID == userID && a.QuizID == quizID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *fakeAttemptRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*domain.QuizAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.QuizAttempt
	for _, a := range r.attempts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

type certKey struct {
	userID   uuid.UUID
	courseID uuid.UUID
}

// fakeCertRepo enforces the same two uniqueness rules as the real table:
// one active row per (user, course) and globally unique numbers.
type fakeCertRepo struct {
	mu          sync.Mutex
	certs       map[uuid.UUID]*domain.Certificate
	numbers     map[string]bool
	insertCalls int
	failInserts int
}

func newFakeCertRepo() *fakeCertRepo {
	return &fakeCertRepo{
		certs:   make(map[uuid.UUID]*domain.Certificate),
		numbers: make(map[string]bool),
	}
}

func (r *fakeCertRepo) InsertIfUnique(ctx context.Context, tx *gorm.DB, cert *domain.Certificate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.insertCalls++
	if r.failInserts > 0 {
		r.failInserts--
		return credential.ErrDuplicate
	}
	if r.numbers[cert.CertificateNumber] {
		return credential.ErrDuplicate
	}
	for _, existing := range r.certs {
		if existing.UserID == cert.UserID && existing.CourseID == cert.CourseID &&
			existing.Status == domain.CertificateStatusActive {
			return credential.ErrDuplicate
		}
	}
	clone := *cert
	r.certs[cert.ID] = &clone
	r.numbers[cert.CertificateNumber] = true
	return nil
}

func (r *fakeCertRepo) FindActive(ctx context.Context, tx *gorm.DB, userID, courseID uuid.UUID) (*domain.Certificate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cert := range r.certs {
		if cert.UserID == userID && cert.CourseID == courseID && cert.Status == domain.CertificateStatusActive {
			clone := *cert
			return &clone, nil
		}
	}
	return nil, nil
}

func (r *fakeCertRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.Certificate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cert, ok := r.certs[id]
	if !ok {
		return nil, nil
	}
	clone := *cert
	return &clone, nil
}

func (r *fakeCertRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*domain.Certificate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Certificate
	for _, cert := range r.certs {
		if cert.UserID == userID {
			clone := *cert
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *fakeCertRepo) Revoke(ctx context.Context, tx *gorm.DB, id uuid.UUID, revokedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cert, ok := r.certs[id]
	if !ok || cert.Status != domain.CertificateStatusActive {
		return false, nil
	}
	cert.Status = domain.CertificateStatusRevoked
	at := revokedAt
	cert.RevokedAt = &at
	return true, nil
}

func (r *fakeCertRepo) activeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, cert := range r.certs {
		if cert.Status == domain.CertificateStatusActive {
			n++
		}
	}
	return n
}

// fakeCompletionService gates quiz attempts without touching persistence.
type fakeCompletionService struct {
	mu          sync.Mutex
	complete    bool
	handleCalls int
}

func (s *fakeCompletionService) IsCourseComplete(ctx context.Context, userID, courseID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.complete, nil
}

func (s *fakeCompletionService) HandleVideoCompleted(ctx context.Context, userID, courseID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handleCalls++
	return nil
}

func (s *fakeCompletionService) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handleCalls
}

// fakeIssuer records Issue calls; the quiz engine only cares that the call
// happened and what came back.
type fakeIssuer struct {
	mu     sync.Mutex
	issued []uuid.UUID
	cert   *domain.Certificate
	err    error
}

func (s *fakeIssuer) Issue(ctx context.Context, userID, courseID uuid.UUID, categoryName string, score int) (*domain.Certificate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued = append(s.issued, courseID)
	if s.err != nil {
		return nil, s.err
	}
	if s.cert != nil {
		return s.cert, nil
	}
	return &domain.Certificate{
		ID:           uuid.New(),
		UserID:       userID,
		CourseID:     courseID,
		CategoryName: categoryName,
		Score:        score,
		Status:       domain.CertificateStatusActive,
	}, nil
}

func (s *fakeIssuer) ListUserCertificates(ctx context.Context, userID uuid.UUID) ([]*domain.Certificate, error) {
	return nil, nil
}

func (s *fakeIssuer) Revoke(ctx context.Context, certificateID uuid.UUID) (*domain.Certificate, error) {
	return nil, nil
}

func (s *fakeIssuer) issueCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.issued)
}
