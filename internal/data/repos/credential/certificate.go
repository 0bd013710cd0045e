package credential

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/learnhubhq/learnhub-backend/internal/domain"
	"github.com/learnhubhq/learnhub-backend/internal/platform/logger"
)

// ErrDuplicate is returned by InsertIfUnique when either unique constraint
// (certificate number, or one-active-per-user-course) rejects the insert.
var ErrDuplicate = errors.New("certificate conflicts with an existing row")

type CertificateRepo interface {
	// InsertIfUnique attempts an optimistic insert and returns
	// ErrDuplicate on any uniqueness violation. The caller decides
	// whether the collision was the number or the active-row constraint.
	InsertIfUnique(ctx context.Context, tx *gorm.DB, cert *domain.Certificate) error
	FindActive(ctx context.Context, tx *gorm.DB, userID, courseID uuid.UUID) (*domain.Certificate, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.Certificate, error)
	GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*domain.Certificate, error)
	// Revoke flips active->revoked conditionally and reports whether a
	// row was transitioned.
	Revoke(ctx context.Context, tx *gorm.DB, id uuid.UUID, revokedAt time.Time) (bool, error)
}

type certificateRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCertificateRepo(db *gorm.DB, baseLog *logger.Logger) CertificateRepo {
	repoLog := baseLog.With("repo", "CertificateRepo")
	return &certificateRepo{db: db, log: repoLog}
}

func (r *certificateRepo) InsertIfUnique(ctx context.Context, tx *gorm.DB, cert *domain.Certificate) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if cert == nil {
		return nil
	}

	if err := transaction.WithContext(ctx).Create(cert).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (r *certificateRepo) FindActive(ctx context.Context, tx *gorm.DB, userID, courseID uuid.UUID) (*domain.Certificate, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result domain.Certificate
	if err := transaction.WithContext(ctx).
		Where("user_id = ? AND course_id = ? AND status = ?", userID, courseID, domain.CertificateStatusActive).
		First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}

func (r *certificateRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.Certificate, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result domain.Certificate
	if err := transaction.WithContext(ctx).
		Where("id = ?", id).
		First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}

func (r *certificateRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*domain.Certificate, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*domain.Certificate
	if userID == uuid.Nil {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("issued_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *certificateRepo) Revoke(ctx context.Context, tx *gorm.DB, id uuid.UUID, revokedAt time.Time) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	res := transaction.WithContext(ctx).
		Model(&domain.Certificate{}).
		Where("id = ? AND status = ?", id, domain.CertificateStatusActive).
		Updates(map[string]interface{}{
			"status":     domain.CertificateStatusRevoked,
			"revoked_at": revokedAt,
			"updated_at": revokedAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
