package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/learnhubhq/learnhub-backend/internal/services"
)

type QuizHandler struct {
	quizService services.QuizService
}

func NewQuizHandler(quizService services.QuizService) *QuizHandler {
	return &QuizHandler{quizService: quizService}
}

func (qh *QuizHandler) GetCourseQuiz(c *gin.Context) {
	courseID, err := uuid.Parse(c.Param("courseID"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_course_id", err)
		return
	}
	quiz, questions, err := qh.quizService.GetCourseQuiz(c.Request.Context(), courseID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"quiz": quiz, "questions": questions})
}

func (qh *QuizHandler) StartAttempt(c *gin.Context) {
	userID := currentUserID(c)
	if userID == uuid.Nil {
		RespondError(c, http.StatusUnauthorized, "missing_identity", nil)
		return
	}
	courseID, err := uuid.Parse(c.Param("courseID"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_course_id", err)
		return
	}

	state, err := qh.quizService.StartAttempt(c.Request.Context(), userID, courseID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"attempt": state})
}

func (qh *QuizHandler) SelectAnswer(c *gin.Context) {
	userID := currentUserID(c)
	if userID == uuid.Nil {
		RespondError(c, http.StatusUnauthorized, "missing_identity", nil)
		return
	}
	quizID, err := uuid.Parse(c.Param("quizID"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_quiz_id", err)
		return
	}

	var in struct {
		QuestionID  uuid.UUID `json:"question_id"`
		AnswerIndex int       `json:"answer_index"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	state, err := qh.quizService.SelectAnswer(c.Request.Context(), userID, quizID, in.QuestionID, in.AnswerIndex)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"attempt": state})
}

func (qh *QuizHandler) Next(c *gin.Context) {
	qh.navigate(c, true)
}

func (qh *QuizHandler) Previous(c *gin.Context) {
	qh.navigate(c, false)
}

func (qh *QuizHandler) navigate(c *gin.Context, forward bool) {
	userID := currentUserID(c)
	if userID == uuid.Nil {
		RespondError(c, http.StatusUnauthorized, "missing_identity", nil)
		return
	}
	quizID, err := uuid.Parse(c.Param("quizID"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_quiz_id", err)
		return
	}

	var state *services.AttemptState
	if forward {
		state, err = qh.quizService.Next(c.Request.Context(), userID, quizID)
	} else {
		state, err = qh.quizService.Previous(c.Request.Context(), userID, quizID)
	}
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"attempt": state})
}

func (qh *QuizHandler) Submit(c *gin.Context) {
	userID := currentUserID(c)
	if userID == uuid.Nil {
		RespondError(c, http.StatusUnauthorized, "missing_identity", nil)
		return
	}
	quizID, err := uuid.Parse(c.Param("quizID"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_quiz_id", err)
		return
	}

	result, err := qh.quizService.Submit(c.Request.Context(), userID, quizID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, result)
}

func (qh *QuizHandler) ListAttempts(c *gin.Context) {
	userID := currentUserID(c)
	if userID == uuid.Nil {
		RespondError(c, http.StatusUnauthorized, "missing_identity", nil)
		return
	}
	quizID, err := uuid.Parse(c.Param("quizID"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_quiz_id", err)
		return
	}

	attempts, err := qh.quizService.ListAttempts(c.Request.Context(), userID, quizID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"attempts": attempts})
}
