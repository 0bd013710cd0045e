package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/learnhubhq/learnhub-backend/internal/services"
)

type CertificateHandler struct {
	certificateService services.CertificateService
}

func NewCertificateHandler(certificateService services.CertificateService) *CertificateHandler {
	return &CertificateHandler{certificateService: certificateService}
}

func (ch *CertificateHandler) ListMine(c *gin.Context) {
	userID := currentUserID(c)
	if userID == uuid.Nil {
		RespondError(c, http.StatusUnauthorized, "missing_identity", nil)
		return
	}
	certs, err := ch.certificateService.ListUserCertificates(c.Request.Context(), userID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"certificates": certs})
}

func (ch *CertificateHandler) Revoke(c *gin.Context) {
	certificateID, err := uuid.Parse(c.Param("certificateID"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_certificate_id", err)
		return
	}
	cert, err := ch.certificateService.Revoke(c.Request.Context(), certificateID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"certificate": cert})
}
