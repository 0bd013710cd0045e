package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// QuizAttempt is one submitted attempt. Re-attempts create new rows; a
// failed attempt is never mutated.
type QuizAttempt struct {
	ID          uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	QuizID      uuid.UUID      `gorm:"type:uuid;not null;index" json:"quiz_id"`
	Quiz        *Quiz          `gorm:"constraint:OnDelete:CASCADE;foreignKey:QuizID;references:ID" json:"quiz,omitempty"`
	UserID      uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	User        *User          `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	Answers     datatypes.JSON `gorm:"type:jsonb;column:answers" json:"answers"`
	Score       int            `gorm:"column:score;not null" json:"score"`
	Passed      bool           `gorm:"column:passed;not null" json:"passed"`
	SubmittedAt time.Time      `gorm:"column:submitted_at;not null" json:"submitted_at"`
	CreatedAt   time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (QuizAttempt) TableName() string { return "quiz_attempt" }
