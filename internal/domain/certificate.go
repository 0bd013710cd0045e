package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	CertificateStatusActive  = "active"
	CertificateStatusRevoked = "revoked"
	CertificateStatusExpired = "expired"
)

// Certificate lifecycle: active -> revoked or active -> expired, both
// terminal. At most one active row per (user, course); enforced by a
// partial unique index, not UI discipline.
type Certificate struct {
	ID                uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID            uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	User              *User      `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	CourseID          uuid.UUID  `gorm:"type:uuid;not null;index" json:"course_id"`
	Course            *Course    `gorm:"constraint:OnDelete:CASCADE;foreignKey:CourseID;references:ID" json:"course,omitempty"`
	CategoryName      string     `gorm:"column:category_name;not null" json:"category_name"`
	Score             int        `gorm:"column:score;not null" json:"score"`
	CertificateNumber string     `gorm:"column:certificate_number;not null;uniqueIndex" json:"certificate_number"`
	Status            string     `gorm:"column:status;not null;default:'active';index" json:"status"`
	IssuedAt          time.Time  `gorm:"column:issued_at;not null" json:"issued_at"`
	RevokedAt         *time.Time `gorm:"column:revoked_at" json:"revoked_at,omitempty"`
	CreatedAt         time.Time  `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"not null;default:now()" json:"updated_at"`
}

func (Certificate) TableName() string { return "certificate" }
