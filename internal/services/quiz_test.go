package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/learnhubhq/learnhub-backend/internal/domain"
	"github.com/learnhubhq/learnhub-backend/internal/platform/apierr"
)

type quizFixture struct {
	svc         QuizService
	quizRepo    *fakeQuizRepo
	attemptRepo *fakeAttemptRepo
	completion  *fakeCompletionService
	issuer      *fakeIssuer
	pub         *recordingPublisher
	userID      uuid.UUID
	courseID    uuid.UUID
	quizID      uuid.UUID
	questionIDs []uuid.UUID
}

// newQuizFixture seeds a quiz whose questions all have option 0 correct,
// except indexes listed in noCorrect which have no configured answer.
func newQuizFixture(t *testing.T, questionCount, minPass int, noCorrect ...int) *quizFixture {
	t.Helper()

	courseID := uuid.New()
	quiz := &domain.Quiz{
		ID:           uuid.New(),
		CourseID:     courseID,
		Title:        "Final Quiz",
		MinPassScore: minPass,
	}
	quizRepo := newFakeQuizRepo(quiz)

	skip := make(map[int]bool, len(noCorrect))
	for _, i := range noCorrect {
		skip[i] = true
	}

	questionRepo := newFakeQuestionRepo()
	questions := make([]*domain.QuizQuestion, 0, questionCount)
	questionIDs := make([]uuid.UUID, 0, questionCount)
	for i := 0; i < questionCount; i++ {
		options, _ := json.Marshal([]string{"right", "wrong", "also wrong"})
		correct := 0
		if skip[i] {
			correct = -1
		}
		q := &domain.QuizQuestion{
			ID:           uuid.New(),
			QuizID:       quiz.ID,
			Index:        i,
			Prompt:       "pick one",
			Options:      datatypes.JSON(options),
			CorrectIndex: correct,
		}
		questions = append(questions, q)
		questionIDs = append(questionIDs, q.ID)
	}
	if err := questionRepo.ReplaceForQuiz(context.Background(), nil, quiz.ID, questions); err != nil {
		t.Fatalf("seed questions: %v", err)
	}

	attemptRepo := newFakeAttemptRepo()
	courseRepo := newFakeCourseRepo(&domain.Course{ID: courseID, Title: "Go Basics", CategoryName: "Programming"})
	completion := &fakeCompletionService{complete: true}
	issuer := &fakeIssuer{}
	pub := &recordingPublisher{}

	svc := NewQuizService(nil, testLogger(), quizRepo, questionRepo, attemptRepo, courseRepo, completion, issuer, pub)
	return &quizFixture{
		svc:         svc,
		quizRepo:    quizRepo,
		attemptRepo: attemptRepo,
		completion:  completion,
		issuer:      issuer,
		pub:         pub,
		userID:      uuid.New(),
		courseID:    courseID,
		quizID:      quiz.ID,
		questionIDs: questionIDs,
	}
}

func (f *quizFixture) answerAll(t *testing.T, answer int) {
	t.Helper()
	for _, id := range f.questionIDs {
		if _, err := f.svc.SelectAnswer(context.Background(), f.userID, f.quizID, id, answer); err != nil {
			t.Fatalf("SelectAnswer: %v", err)
		}
	}
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	var apiErr *apierr.Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected apierr, got %v", err)
	}
	return apiErr.Status
}

func TestStartAttemptRequiresCompleteCourse(t *testing.T) {
	f := newQuizFixture(t, 3, 70)
	f.completion.complete = false

	_, err := f.svc.StartAttempt(context.Background(), f.userID, f.courseID)
	if err == nil {
		t.Fatal("expected gate rejection for incomplete course")
	}
	if got := statusOf(t, err); got != 409 {
		t.Fatalf("expected 409, got %d", got)
	}
}

func TestGetCourseQuizMissingIsNotAvailable(t *testing.T) {
	f := newQuizFixture(t, 3, 70)
	_, _, err := f.svc.GetCourseQuiz(context.Background(), uuid.New())
	if err == nil {
		t.Fatal("expected quiz_not_available for unknown course")
	}
	if got := statusOf(t, err); got != 404 {
		t.Fatalf("expected 404, got %d", got)
	}
}

func TestSubmitAllCorrectScoresHundred(t *testing.T) {
	f := newQuizFixture(t, 5, 70)
	ctx := context.Background()

	if _, err := f.svc.StartAttempt(ctx, f.userID, f.courseID); err != nil {
		t.Fatalf("StartAttempt: %v", err)
	}
	f.answerAll(t, 0)

	result, err := f.svc.Submit(ctx, f.userID, f.quizID)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if result.Attempt.Score != 100 || !result.Attempt.Passed {
		t.Fatalf("expected 100/passed, got %d/%v", result.Attempt.Score, result.Attempt.Passed)
	}
	if result.Certificate == nil {
		t.Fatal("expected a certificate on pass")
	}
	if f.issuer.issueCount() != 1 {
		t.Fatalf("expected one issuance, got %d", f.issuer.issueCount())
	}
}

func TestSubmitAllWrongScoresZero(t *testing.T) {
	f := newQuizFixture(t, 4, 70)
	ctx := context.Background()

	if _, err := f.svc.StartAttempt(ctx, f.userID, f.courseID); err != nil {
		t.Fatalf("StartAttempt: %v", err)
	}
	f.answerAll(t, 2)

	result, err := f.svc.Submit(ctx, f.userID, f.quizID)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if result.Attempt.Score != 0 || result.Attempt.Passed {
		t.Fatalf("expected 0/failed, got %d/%v", result.Attempt.Score, result.Attempt.Passed)
	}
	if result.Certificate != nil {
		t.Fatal("expected no certificate on fail")
	}
	if f.issuer.issueCount() != 0 {
		t.Fatalf("expected no issuance, got %d", f.issuer.issueCount())
	}
}

func TestSubmitFourOfFiveRoundsToEighty(t *testing.T) {
	f := newQuizFixture(t, 5, 70)
	ctx := context.Background()

	if _, err := f.svc.StartAttempt(ctx, f.userID, f.courseID); err != nil {
		t.Fatalf("StartAttempt: %v", err)
	}
	for i, id := range f.questionIDs {
		answer := 0
		if i == 4 {
			answer = 1
		}
		if _, err := f.svc.SelectAnswer(ctx, f.userID, f.quizID, id, answer); err != nil {
			t.Fatalf("SelectAnswer: %v", err)
		}
	}

	result, err := f.svc.Submit(ctx, f.userID, f.quizID)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if result.Attempt.Score != 80 {
		t.Fatalf("expected 80, got %d", result.Attempt.Score)
	}
	if !result.Attempt.Passed {
		t.Fatal("80 >= 70 must pass")
	}
}

func TestScoreRoundsHalfUp(t *testing.T) {
	// 1 of 3 correct is 33.33 -> 33; 2 of 3 is 66.67 -> 67.
	f := newQuizFixture(t, 3, 67)
	ctx := context.Background()

	if _, err := f.svc.StartAttempt(ctx, f.userID, f.courseID); err != nil {
		t.Fatalf("StartAttempt: %v", err)
	}
	for i, id := range f.questionIDs {
		answer := 0
		if i == 2 {
			answer = 1
		}
		if _, err := f.svc.SelectAnswer(ctx, f.userID, f.quizID, id, answer); err != nil {
			t.Fatalf("SelectAnswer: %v", err)
		}
	}

	result, err := f.svc.Submit(ctx, f.userID, f.quizID)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if result.Attempt.Score != 67 {
		t.Fatalf("expected 67 after rounding, got %d", result.Attempt.Score)
	}
	if !result.Attempt.Passed {
		t.Fatal("67 >= 67 must pass on the boundary")
	}
}

func TestSubmitRejectsUnansweredQuestions(t *testing.T) {
	f := newQuizFixture(t, 3, 70)
	ctx := context.Background()

	if _, err := f.svc.StartAttempt(ctx, f.userID, f.courseID); err != nil {
		t.Fatalf("StartAttempt: %v", err)
	}
	if _, err := f.svc.SelectAnswer(ctx, f.userID, f.quizID, f.questionIDs[0], 0); err != nil {
		t.Fatalf("SelectAnswer: %v", err)
	}

	_, err := f.svc.Submit(ctx, f.userID, f.quizID)
	if err == nil {
		t.Fatal("expected validation rejection")
	}
	if got := statusOf(t, err); got != 422 {
		t.Fatalf("expected 422, got %d", got)
	}
	// A rejected submit persists nothing and the attempt stays open.
	attempts, _ := f.attemptRepo.GetByUserAndQuiz(ctx, nil, f.userID, f.quizID)
	if len(attempts) != 0 {
		t.Fatalf("expected no persisted attempt, got %d", len(attempts))
	}
}

func TestQuestionWithoutCorrectAnswerGradesIncorrect(t *testing.T) {
	f := newQuizFixture(t, 4, 50, 3)
	ctx := context.Background()

	if _, err := f.svc.StartAttempt(ctx, f.userID, f.courseID); err != nil {
		t.Fatalf("StartAttempt: %v", err)
	}
	f.answerAll(t, 0)

	result, err := f.svc.Submit(ctx, f.userID, f.quizID)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if result.Attempt.Score != 75 {
		t.Fatalf("expected 3 of 4 = 75, got %d", result.Attempt.Score)
	}
}

func TestNavigationClampsToBounds(t *testing.T) {
	f := newQuizFixture(t, 3, 70)
	ctx := context.Background()

	if _, err := f.svc.StartAttempt(ctx, f.userID, f.courseID); err != nil {
		t.Fatalf("StartAttempt: %v", err)
	}

	state, err := f.svc.Previous(ctx, f.userID, f.quizID)
	if err != nil {
		t.Fatalf("Previous: %v", err)
	}
	if state.CurrentQuestionIndex != 0 {
		t.Fatalf("Previous below zero must clamp, got %d", state.CurrentQuestionIndex)
	}

	for i := 0; i < 10; i++ {
		if state, err = f.svc.Next(ctx, f.userID, f.quizID); err != nil {
			t.Fatalf("Next: %v", err)
		}
	}
	if state.CurrentQuestionIndex != 2 {
		t.Fatalf("Next past the end must clamp to last, got %d", state.CurrentQuestionIndex)
	}
}

func TestSelectAnswerAfterSubmitIsNoop(t *testing.T) {
	f := newQuizFixture(t, 2, 70)
	ctx := context.Background()

	if _, err := f.svc.StartAttempt(ctx, f.userID, f.courseID); err != nil {
		t.Fatalf("StartAttempt: %v", err)
	}
	f.answerAll(t, 0)
	if _, err := f.svc.Submit(ctx, f.userID, f.quizID); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	state, err := f.svc.SelectAnswer(ctx, f.userID, f.quizID, f.questionIDs[0], 1)
	if err != nil {
		t.Fatalf("SelectAnswer after submit: %v", err)
	}
	if !state.Submitted {
		t.Fatal("state must stay submitted")
	}
	if state.Answers[f.questionIDs[0]] != 0 {
		t.Fatal("answers must not change after submit")
	}
}

func TestActionsWithoutStartedAttemptFail(t *testing.T) {
	f := newQuizFixture(t, 2, 70)
	ctx := context.Background()

	if _, err := f.svc.SelectAnswer(ctx, f.userID, f.quizID, f.questionIDs[0], 0); err == nil {
		t.Fatal("expected attempt_not_started")
	}
	if _, err := f.svc.Submit(ctx, f.userID, f.quizID); err == nil {
		t.Fatal("expected attempt_not_started")
	}
}

func TestReattemptCreatesNewRow(t *testing.T) {
	f := newQuizFixture(t, 2, 70)
	ctx := context.Background()

	for round := 0; round < 2; round++ {
		if _, err := f.svc.StartAttempt(ctx, f.userID, f.courseID); err != nil {
			t.Fatalf("StartAttempt round %d: %v", round, err)
		}
		f.answerAll(t, 0)
		if _, err := f.svc.Submit(ctx, f.userID, f.quizID); err != nil {
			t.Fatalf("Submit round %d: %v", round, err)
		}
	}

	attempts, err := f.attemptRepo.GetByUserAndQuiz(ctx, nil, f.userID, f.quizID)
	if err != nil {
		t.Fatalf("GetByUserAndQuiz: %v", err)
	}
	if len(attempts) != 2 {
		t.Fatalf("expected 2 attempt rows, got %d", len(attempts))
	}
}

func TestSubmitSurvivesIssuerFailure(t *testing.T) {
	f := newQuizFixture(t, 2, 70)
	f.issuer.err = context.DeadlineExceeded
	ctx := context.Background()

	if _, err := f.svc.StartAttempt(ctx, f.userID, f.courseID); err != nil {
		t.Fatalf("StartAttempt: %v", err)
	}
	f.answerAll(t, 0)

	result, err := f.svc.Submit(ctx, f.userID, f.quizID)
	if err != nil {
		t.Fatalf("Submit must not fail when issuance fails: %v", err)
	}
	if !result.Attempt.Passed {
		t.Fatal("attempt should still be recorded as passed")
	}
	if result.Certificate != nil {
		t.Fatal("no certificate should be attached when issuance failed")
	}
}

func TestSubmitBroadcastsQuizSubmitted(t *testing.T) {
	f := newQuizFixture(t, 2, 70)
	ctx := context.Background()

	if _, err := f.svc.StartAttempt(ctx, f.userID, f.courseID); err != nil {
		t.Fatalf("StartAttempt: %v", err)
	}
	f.answerAll(t, 0)
	if _, err := f.svc.Submit(ctx, f.userID, f.quizID); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	msgs := f.pub.byEvent("QuizSubmitted")
	if len(msgs) != 1 {
		t.Fatalf("expected one QuizSubmitted broadcast, got %d", len(msgs))
	}
	if msgs[0].Channel != f.userID.String() {
		t.Fatalf("expected broadcast on the user channel, got %q", msgs[0].Channel)
	}
}
