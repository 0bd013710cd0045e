package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/learnhubhq/learnhub-backend/internal/data/repos/credential"
	"github.com/learnhubhq/learnhub-backend/internal/domain"
	"github.com/learnhubhq/learnhub-backend/internal/platform/apierr"
	"github.com/learnhubhq/learnhub-backend/internal/platform/logger"
	"github.com/learnhubhq/learnhub-backend/internal/sse"
)

const certNumberAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// maxIssueAttempts bounds the certificate-number retry loop so issuance
// latency has a hard ceiling even under pathological suffix collisions.
const maxIssueAttempts = 5

type CertificateService interface {
	// Issue creates the active certificate for (user, course), or returns
	// the existing one. Idempotent under retries, double submits, and
	// concurrent calls: the partial unique index is the arbiter, not a
	// lock.
	Issue(ctx context.Context, userID, courseID uuid.UUID, categoryName string, score int) (*domain.Certificate, error)
	ListUserCertificates(ctx context.Context, userID uuid.UUID) ([]*domain.Certificate, error)
	// Revoke is the administrative active->revoked transition. Terminal:
	// a revoked certificate is never reactivated.
	Revoke(ctx context.Context, certificateID uuid.UUID) (*domain.Certificate, error)
}

type certificateService struct {
	db       *gorm.DB
	log      *logger.Logger
	certRepo credential.CertificateRepo
	pub      sse.Publisher
}

func NewCertificateService(
	db *gorm.DB,
	baseLog *logger.Logger,
	certRepo credential.CertificateRepo,
	pub sse.Publisher,
) CertificateService {
	serviceLog := baseLog.With("service", "CertificateService")
	return &certificateService{
		db:       db,
		log:      serviceLog,
		certRepo: certRepo,
		pub:      pub,
	}
}

func (s *certificateService) Issue(ctx context.Context, userID, courseID uuid.UUID, categoryName string, score int) (*domain.Certificate, error) {
	if userID == uuid.Nil || courseID == uuid.Nil {
		return nil, apierr.New(http.StatusBadRequest, "invalid_certificate_request", nil)
	}

	existing, err := s.certRepo.FindActive(ctx, nil, userID, courseID)
	if err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "load_certificate_failed", err)
	}
	if existing != nil {
		return existing, nil
	}

	now := time.Now().UTC()
	for attempt := 0; attempt < maxIssueAttempts; attempt++ {
		cert := &domain.Certificate{
			ID:                uuid.New(),
			UserID:            userID,
			CourseID:          courseID,
			CategoryName:      categoryName,
			Score:             score,
			CertificateNumber: certificateNumber(now),
			Status:            domain.CertificateStatusActive,
			IssuedAt:          now,
		}

		err := s.certRepo.InsertIfUnique(ctx, nil, cert)
		if err == nil {
			s.log.Info("Certificate issued", "user_id", userID, "course_id", courseID, "certificate_number", cert.CertificateNumber)
			if s.pub != nil {
				s.pub.Broadcast(sse.Message{
					Channel: userID.String(),
					Event:   sse.EventCertificateIssued,
					Data: map[string]interface{}{
						"certificate": cert,
					},
				})
			}
			return cert, nil
		}
		if !errors.Is(err, credential.ErrDuplicate) {
			return nil, apierr.New(http.StatusInternalServerError, "certificate_insert_failed", err)
		}

		// A duplicate is either a concurrent issuance that won the active
		// slot (success-equivalent: return theirs) or a number collision
		// (regenerate the suffix and retry).
		winner, ferr := s.certRepo.FindActive(ctx, nil, userID, courseID)
		if ferr != nil {
			return nil, apierr.New(http.StatusInternalServerError, "load_certificate_failed", ferr)
		}
		if winner != nil {
			return winner, nil
		}

		time.Sleep(time.Duration(rand.Intn(20*(attempt+1))+5) * time.Millisecond)
	}

	return nil, apierr.New(http.StatusServiceUnavailable, "certificate_number_exhausted",
		fmt.Errorf("no unique certificate number after %d attempts", maxIssueAttempts))
}

func (s *certificateService) ListUserCertificates(ctx context.Context, userID uuid.UUID) ([]*domain.Certificate, error) {
	rows, err := s.certRepo.GetByUserID(ctx, nil, userID)
	if err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "load_certificates_failed", err)
	}
	return rows, nil
}

func (s *certificateService) Revoke(ctx context.Context, certificateID uuid.UUID) (*domain.Certificate, error) {
	if certificateID == uuid.Nil {
		return nil, apierr.New(http.StatusBadRequest, "invalid_certificate_id", nil)
	}

	transitioned, err := s.certRepo.Revoke(ctx, nil, certificateID, time.Now().UTC())
	if err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "revoke_certificate_failed", err)
	}

	cert, err := s.certRepo.GetByID(ctx, nil, certificateID)
	if err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "load_certificate_failed", err)
	}
	if cert == nil {
		return nil, apierr.New(http.StatusNotFound, "certificate_not_found", nil)
	}
	if !transitioned && cert.Status == domain.CertificateStatusActive {
		return nil, apierr.New(http.StatusConflict, "certificate_not_revocable", nil)
	}
	return cert, nil
}

func certificateNumber(now time.Time) string {
	suffix := make([]byte, 4)
	for i := range suffix {
		suffix[i] = certNumberAlphabet[rand.Intn(len(certNumberAlphabet))]
	}
	return fmt.Sprintf("CERT-%s-%s", now.Format("20060102"), string(suffix))
}
