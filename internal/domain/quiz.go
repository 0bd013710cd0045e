package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Quiz struct {
	ID           uuid.UUID       `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	CourseID     uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex" json:"course_id"`
	Course       *Course         `gorm:"constraint:OnDelete:CASCADE;foreignKey:CourseID;references:ID" json:"course,omitempty"`
	Title        string          `gorm:"column:title;not null" json:"title"`
	MinPassScore int             `gorm:"column:min_pass_score;not null;default:70" json:"min_pass_score"`
	Questions    []*QuizQuestion `gorm:"foreignKey:QuizID;references:ID" json:"questions,omitempty"`
	CreatedAt    time.Time       `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt    gorm.DeletedAt  `gorm:"index" json:"deleted_at,omitempty"`
}

func (Quiz) TableName() string { return "quiz" }

// QuizQuestion stores its options as a JSON array of strings. CorrectIndex
// is -1 when no correct answer is configured; such questions always grade
// as incorrect.
type QuizQuestion struct {
	ID           uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	QuizID       uuid.UUID      `gorm:"type:uuid;not null;index" json:"quiz_id"`
	Index        int            `gorm:"column:index;not null" json:"index"`
	Prompt       string         `gorm:"column:prompt;type:text;not null" json:"prompt"`
	Options      datatypes.JSON `gorm:"type:jsonb;column:options" json:"options"`
	CorrectIndex int            `gorm:"column:correct_index;not null;default:-1" json:"-"`
	CreatedAt    time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (QuizQuestion) TableName() string { return "quiz_question" }
