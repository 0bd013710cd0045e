package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/learnhubhq/learnhub-backend/internal/services"
)

type CourseHandler struct {
	courseService     services.CourseService
	completionService services.CompletionService
}

func NewCourseHandler(courseService services.CourseService, completionService services.CompletionService) *CourseHandler {
	return &CourseHandler{courseService: courseService, completionService: completionService}
}

func (ch *CourseHandler) List(c *gin.Context) {
	courses, err := ch.courseService.ListCourses(c.Request.Context())
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"courses": courses})
}

func (ch *CourseHandler) Get(c *gin.Context) {
	courseID, err := uuid.Parse(c.Param("courseID"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_course_id", err)
		return
	}
	course, err := ch.courseService.GetCourse(c.Request.Context(), courseID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"course": course})
}

func (ch *CourseHandler) GetCompletion(c *gin.Context) {
	courseID, err := uuid.Parse(c.Param("courseID"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_course_id", err)
		return
	}
	userID := currentUserID(c)
	if userID == uuid.Nil {
		RespondError(c, http.StatusUnauthorized, "missing_identity", nil)
		return
	}
	complete, err := ch.completionService.IsCourseComplete(c.Request.Context(), userID, courseID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"course_id": courseID, "complete": complete})
}
