package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/learnhubhq/learnhub-backend/internal/data/repos/assessment"
	"github.com/learnhubhq/learnhub-backend/internal/data/repos/learning"
	"github.com/learnhubhq/learnhub-backend/internal/domain"
	"github.com/learnhubhq/learnhub-backend/internal/platform/apierr"
	"github.com/learnhubhq/learnhub-backend/internal/platform/logger"
	"github.com/learnhubhq/learnhub-backend/internal/platform/quizconfig"
	"github.com/learnhubhq/learnhub-backend/internal/sse"
)

// AttemptState is the UI-facing view of an in-progress attempt.
type AttemptState struct {
	QuizID               uuid.UUID         `json:"quiz_id"`
	CurrentQuestionIndex int               `json:"current_question_index"`
	TotalQuestions       int               `json:"total_questions"`
	Answers              map[uuid.UUID]int `json:"answers"`
	Submitted            bool              `json:"submitted"`
}

// QuizSubmission is the result of Submit. Certificate is set only when the
// attempt passed and issuance succeeded.
type QuizSubmission struct {
	Attempt     *domain.QuizAttempt `json:"attempt"`
	Certificate *domain.Certificate `json:"certificate,omitempty"`
}

type QuizService interface {
	// GetCourseQuiz returns the quiz and its questions (correct answers
	// stripped by the domain JSON tags). A course without a configured
	// quiz yields a 404-coded apierr, the recoverable "not available"
	// state.
	GetCourseQuiz(ctx context.Context, courseID uuid.UUID) (*domain.Quiz, []*domain.QuizQuestion, error)
	// StartAttempt opens (or restarts) the in-memory attempt state
	// machine for the user. Gated on course completion.
	StartAttempt(ctx context.Context, userID, courseID uuid.UUID) (*AttemptState, error)
	// SelectAnswer records or overwrites an answer. A no-op once the
	// attempt is submitted.
	SelectAnswer(ctx context.Context, userID, quizID, questionID uuid.UUID, answerIndex int) (*AttemptState, error)
	Next(ctx context.Context, userID, quizID uuid.UUID) (*AttemptState, error)
	Previous(ctx context.Context, userID, quizID uuid.UUID) (*AttemptState, error)
	// Submit validates, scores, persists one QuizAttempt row, and feeds
	// the issuer on a pass. Re-attempts after Submit go through
	// StartAttempt again and produce new rows.
	Submit(ctx context.Context, userID, quizID uuid.UUID) (*QuizSubmission, error)
	ListAttempts(ctx context.Context, userID, quizID uuid.UUID) ([]*domain.QuizAttempt, error)
	// ImportQuizzes upserts quiz definitions from the operator YAML file.
	ImportQuizzes(ctx context.Context, quizzes []quizconfig.Quiz) error
}

type attemptKey struct {
	userID uuid.UUID
	quizID uuid.UUID
}

// quizSession holds the InProgress state; Submitted is terminal until the
// user starts a fresh attempt.
type quizSession struct {
	quizID      uuid.UUID
	courseID    uuid.UUID
	questionIDs []uuid.UUID
	answers     map[uuid.UUID]int
	index       int
	submitted   bool
}

type quizService struct {
	db           *gorm.DB
	log          *logger.Logger
	quizRepo     assessment.QuizRepo
	questionRepo assessment.QuizQuestionRepo
	attemptRepo  assessment.QuizAttemptRepo
	courseRepo   learning.CourseRepo
	completion   CompletionService
	issuer       CertificateService
	pub          sse.Publisher

	mu       sync.Mutex
	sessions map[attemptKey]*quizSession
}

func NewQuizService(
	db *gorm.DB,
	baseLog *logger.Logger,
	quizRepo assessment.QuizRepo,
	questionRepo assessment.QuizQuestionRepo,
	attemptRepo assessment.QuizAttemptRepo,
	courseRepo learning.CourseRepo,
	completion CompletionService,
	issuer CertificateService,
	pub sse.Publisher,
) QuizService {
	serviceLog := baseLog.With("service", "QuizService")
	return &quizService{
		db:           db,
		log:          serviceLog,
		quizRepo:     quizRepo,
		questionRepo: questionRepo,
		attemptRepo:  attemptRepo,
		courseRepo:   courseRepo,
		completion:   completion,
		issuer:       issuer,
		pub:          pub,
		sessions:     make(map[attemptKey]*quizSession),
	}
}

func (s *quizService) GetCourseQuiz(ctx context.Context, courseID uuid.UUID) (*domain.Quiz, []*domain.QuizQuestion, error) {
	quiz, err := s.quizRepo.GetByCourseID(ctx, nil, courseID)
	if err != nil {
		return nil, nil, apierr.New(http.StatusInternalServerError, "load_quiz_failed", err)
	}
	if quiz == nil {
		return nil, nil, apierr.New(http.StatusNotFound, "quiz_not_available", nil)
	}
	questions, err := s.questionRepo.GetByQuizID(ctx, nil, quiz.ID)
	if err != nil {
		return nil, nil, apierr.New(http.StatusInternalServerError, "load_quiz_failed", err)
	}
	if len(questions) == 0 {
		return nil, nil, apierr.New(http.StatusNotFound, "quiz_not_available", nil)
	}
	return quiz, questions, nil
}

func (s *quizService) StartAttempt(ctx context.Context, userID, courseID uuid.UUID) (*AttemptState, error) {
	if userID == uuid.Nil || courseID == uuid.Nil {
		return nil, apierr.New(http.StatusBadRequest, "invalid_course_id", nil)
	}

	quiz, questions, err := s.GetCourseQuiz(ctx, courseID)
	if err != nil {
		return nil, err
	}

	complete, err := s.completion.IsCourseComplete(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}
	if !complete {
		return nil, apierr.New(http.StatusConflict, "course_incomplete", nil)
	}

	questionIDs := make([]uuid.UUID, 0, len(questions))
	for _, q := range questions {
		questionIDs = append(questionIDs, q.ID)
	}

	session := &quizSession{
		quizID:      quiz.ID,
		courseID:    courseID,
		questionIDs: questionIDs,
		answers:     make(map[uuid.UUID]int, len(questionIDs)),
	}

	s.mu.Lock()
	s.sessions[attemptKey{userID: userID, quizID: quiz.ID}] = session
	state := session.state()
	s.mu.Unlock()

	return state, nil
}

func (s *quizService) SelectAnswer(ctx context.Context, userID, quizID, questionID uuid.UUID, answerIndex int) (*AttemptState, error) {
	if answerIndex < 0 {
		return nil, apierr.New(http.StatusBadRequest, "invalid_answer_index", nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.session(userID, quizID)
	if err != nil {
		return nil, err
	}
	if session.submitted {
		return session.state(), nil
	}

	known := false
	for _, id := range session.questionIDs {
		if id == questionID {
			known = true
			break
		}
	}
	if !known {
		return nil, apierr.New(http.StatusBadRequest, "unknown_question", nil)
	}

	session.answers[questionID] = answerIndex
	return session.state(), nil
}

func (s *quizService) Next(ctx context.Context, userID, quizID uuid.UUID) (*AttemptState, error) {
	return s.navigate(userID, quizID, 1)
}

func (s *quizService) Previous(ctx context.Context, userID, quizID uuid.UUID) (*AttemptState, error) {
	return s.navigate(userID, quizID, -1)
}

func (s *quizService) navigate(userID, quizID uuid.UUID, delta int) (*AttemptState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.session(userID, quizID)
	if err != nil {
		return nil, err
	}
	if session.submitted {
		return session.state(), nil
	}

	next := session.index + delta
	if next < 0 {
		next = 0
	}
	if max := len(session.questionIDs) - 1; next > max {
		next = max
	}
	session.index = next
	return session.state(), nil
}

func (s *quizService) Submit(ctx context.Context, userID, quizID uuid.UUID) (*QuizSubmission, error) {
	s.mu.Lock()
	session, err := s.session(userID, quizID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if session.submitted {
		s.mu.Unlock()
		return nil, apierr.New(http.StatusConflict, "attempt_already_submitted", nil)
	}
	for _, id := range session.questionIDs {
		if _, ok := session.answers[id]; !ok {
			s.mu.Unlock()
			return nil, apierr.New(http.StatusUnprocessableEntity, "unanswered_questions",
				fmt.Errorf("question %s has no answer", id))
		}
	}
	answers := make(map[uuid.UUID]int, len(session.answers))
	for k, v := range session.answers {
		answers[k] = v
	}
	courseID := session.courseID
	s.mu.Unlock()

	quiz, err := s.quizRepo.GetByID(ctx, nil, quizID)
	if err != nil || quiz == nil {
		return nil, apierr.New(http.StatusInternalServerError, "load_quiz_failed", err)
	}
	questions, err := s.questionRepo.GetByQuizID(ctx, nil, quizID)
	if err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "load_quiz_failed", err)
	}

	score := scoreAnswers(questions, answers)
	passed := score >= quiz.MinPassScore

	answersJSON, err := json.Marshal(answers)
	if err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "encode_answers_failed", err)
	}

	attempt := &domain.QuizAttempt{
		ID:          uuid.New(),
		QuizID:      quizID,
		UserID:      userID,
		Answers:     datatypes.JSON(answersJSON),
		Score:       score,
		Passed:      passed,
		SubmittedAt: time.Now().UTC(),
	}
	if _, err := s.attemptRepo.Create(ctx, nil, []*domain.QuizAttempt{attempt}); err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "persist_attempt_failed", err)
	}

	s.mu.Lock()
	session.submitted = true
	s.mu.Unlock()

	s.log.Info("Quiz submitted", "user_id", userID, "quiz_id", quizID, "score", score, "passed", passed)
	if s.pub != nil {
		s.pub.Broadcast(sse.Message{
			Channel: userID.String(),
			Event:   sse.EventQuizSubmitted,
			Data: map[string]interface{}{
				"quiz_id": quizID,
				"score":   score,
				"passed":  passed,
			},
		})
	}

	result := &QuizSubmission{Attempt: attempt}
	if passed {
		category := ""
		if course, cerr := s.courseRepo.GetByID(ctx, nil, courseID); cerr == nil && course != nil {
			category = course.CategoryName
		}
		cert, ierr := s.issuer.Issue(ctx, userID, courseID, category, score)
		if ierr != nil {
			// The attempt row is already durable; a failed issuance is
			// retried the next time the user passes or reloads.
			s.log.Warn("Certificate issuance failed after pass", "error", ierr, "user_id", userID, "course_id", courseID)
		} else {
			result.Certificate = cert
		}
	}
	return result, nil
}

func (s *quizService) ListAttempts(ctx context.Context, userID, quizID uuid.UUID) ([]*domain.QuizAttempt, error) {
	rows, err := s.attemptRepo.GetByUserAndQuiz(ctx, nil, userID, quizID)
	if err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "load_attempts_failed", err)
	}
	return rows, nil
}

func (s *quizService) ImportQuizzes(ctx context.Context, quizzes []quizconfig.Quiz) error {
	for _, def := range quizzes {
		quiz := &domain.Quiz{
			ID:           uuid.New(),
			CourseID:     def.CourseID,
			Title:        def.Title,
			MinPassScore: def.MinPassScore,
		}
		if err := s.quizRepo.Upsert(ctx, nil, quiz); err != nil {
			return fmt.Errorf("upsert quiz for course %s: %w", def.CourseID, err)
		}

		stored, err := s.quizRepo.GetByCourseID(ctx, nil, def.CourseID)
		if err != nil || stored == nil {
			return fmt.Errorf("reload quiz for course %s: %w", def.CourseID, err)
		}

		questions := make([]*domain.QuizQuestion, 0, len(def.Questions))
		for i, q := range def.Questions {
			optionsJSON, merr := json.Marshal(q.Options)
			if merr != nil {
				return fmt.Errorf("encode options for course %s: %w", def.CourseID, merr)
			}
			correct := -1
			if q.CorrectIndex != nil {
				correct = *q.CorrectIndex
			}
			questions = append(questions, &domain.QuizQuestion{
				ID:           uuid.New(),
				QuizID:       stored.ID,
				Index:        i,
				Prompt:       q.Prompt,
				Options:      datatypes.JSON(optionsJSON),
				CorrectIndex: correct,
			})
		}
		if err := s.questionRepo.ReplaceForQuiz(ctx, nil, stored.ID, questions); err != nil {
			return fmt.Errorf("replace questions for course %s: %w", def.CourseID, err)
		}
	}
	return nil
}

// session must be called with s.mu held.
func (s *quizService) session(userID, quizID uuid.UUID) (*quizSession, error) {
	session, ok := s.sessions[attemptKey{userID: userID, quizID: quizID}]
	if !ok {
		return nil, apierr.New(http.StatusNotFound, "attempt_not_started", nil)
	}
	return session, nil
}

func (sess *quizSession) state() *AttemptState {
	answers := make(map[uuid.UUID]int, len(sess.answers))
	for k, v := range sess.answers {
		answers[k] = v
	}
	return &AttemptState{
		QuizID:               sess.quizID,
		CurrentQuestionIndex: sess.index,
		TotalQuestions:       len(sess.questionIDs),
		Answers:              answers,
		Submitted:            sess.submitted,
	}
}

// scoreAnswers grades round-half-up on the percentage. A question with no
// configured correct answer (CorrectIndex < 0) counts as incorrect rather
// than erroring.
func scoreAnswers(questions []*domain.QuizQuestion, answers map[uuid.UUID]int) int {
	total := len(questions)
	if total == 0 {
		return 0
	}
	correct := 0
	for _, q := range questions {
		selected, ok := answers[q.ID]
		if !ok || q.CorrectIndex < 0 {
			continue
		}
		if selected == q.CorrectIndex {
			correct++
		}
	}
	return int(math.Round(float64(correct) / float64(total) * 100))
}
