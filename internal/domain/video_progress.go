package domain

import (
	"time"

	"github.com/google/uuid"
)

// VideoProgress is the per-(user, video) watch record. Rows are created on
// the first accepted sample, mutated on every later one, and never deleted.
// Completed is monotonic: once true it must never be written back to false.
type VideoProgress struct {
	ID             uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID         uuid.UUID  `gorm:"type:uuid;not null;index:idx_user_video_course,unique" json:"user_id"`
	User           *User      `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	VideoID        uuid.UUID  `gorm:"type:uuid;not null;index:idx_user_video_course,unique" json:"video_id"`
	Video          *Video     `gorm:"constraint:OnDelete:CASCADE;foreignKey:VideoID;references:ID" json:"video,omitempty"`
	CourseID       uuid.UUID  `gorm:"type:uuid;not null;index:idx_user_video_course,unique;index" json:"course_id"`
	ModuleID       *uuid.UUID `gorm:"type:uuid;index" json:"module_id,omitempty"`
	WatchedSeconds float64    `gorm:"column:watched_seconds;not null;default:0" json:"watched_seconds"`
	TotalSeconds   float64    `gorm:"column:total_seconds;not null;default:0" json:"total_seconds"`
	PercentWatched float64    `gorm:"column:percent_watched;not null;default:0" json:"percent_watched"`
	Completed      bool       `gorm:"column:completed;not null;default:false" json:"completed"`
	CompletedAt    *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
	CreatedAt      time.Time  `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"not null;default:now()" json:"updated_at"`
}

func (VideoProgress) TableName() string { return "video_progress" }
