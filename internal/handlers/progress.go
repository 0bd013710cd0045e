package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/learnhubhq/learnhub-backend/internal/services"
)

type ProgressHandler struct {
	progressService services.ProgressService
}

func NewProgressHandler(progressService services.ProgressService) *ProgressHandler {
	return &ProgressHandler{progressService: progressService}
}

// Sample accepts a playback position report. It answers 202 immediately;
// persistence is debounced behind the scenes.
func (ph *ProgressHandler) Sample(c *gin.Context) {
	userID := currentUserID(c)
	if userID == uuid.Nil {
		RespondError(c, http.StatusUnauthorized, "missing_identity", nil)
		return
	}

	var in services.ProgressSample
	if err := c.ShouldBindJSON(&in); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	ph.progressService.Sample(c.Request.Context(), userID, in)
	c.Status(http.StatusAccepted)
}

func (ph *ProgressHandler) MarkWatched(c *gin.Context) {
	userID := currentUserID(c)
	if userID == uuid.Nil {
		RespondError(c, http.StatusUnauthorized, "missing_identity", nil)
		return
	}
	videoID, err := uuid.Parse(c.Param("videoID"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_video_id", err)
		return
	}

	progress, err := ph.progressService.MarkComplete(c.Request.Context(), userID, videoID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"progress": progress})
}

func (ph *ProgressHandler) GetCourseProgress(c *gin.Context) {
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

	rows, err := ph.progressService.GetCourseProgress(c.Request.Context(), userID, courseID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"progress": rows})
}
