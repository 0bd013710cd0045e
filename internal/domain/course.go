package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Course struct {
	ID           uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Title        string         `gorm:"column:title;not null" json:"title"`
	Description  string         `gorm:"column:description;type:text" json:"description"`
	CategoryName string         `gorm:"column:category_name;not null;index" json:"category_name"`
	Status       string         `gorm:"column:status;not null;default:'published';index" json:"status"`
	Modules      []*CourseModule `gorm:"foreignKey:CourseID;references:ID" json:"modules,omitempty"`
	CreatedAt    time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Course) TableName() string { return "course" }

type CourseModule struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	CourseID  uuid.UUID      `gorm:"type:uuid;not null;index" json:"course_id"`
	Course    *Course        `gorm:"constraint:OnDelete:CASCADE;foreignKey:CourseID;references:ID" json:"course,omitempty"`
	Index     int            `gorm:"column:index;not null" json:"index"`
	Title     string         `gorm:"column:title;not null" json:"title"`
	Videos    []*Video       `gorm:"foreignKey:ModuleID;references:ID" json:"videos,omitempty"`
	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (CourseModule) TableName() string { return "course_module" }

type Video struct {
	ID              uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ModuleID        uuid.UUID      `gorm:"type:uuid;not null;index" json:"module_id"`
	Module          *CourseModule  `gorm:"constraint:OnDelete:CASCADE;foreignKey:ModuleID;references:ID" json:"module,omitempty"`
	CourseID        uuid.UUID      `gorm:"type:uuid;not null;index" json:"course_id"`
	Index           int            `gorm:"column:index;not null" json:"index"`
	Title           string         `gorm:"column:title;not null" json:"title"`
	DurationSeconds float64        `gorm:"column:duration_seconds;not null;default:0" json:"duration_seconds"`
	CreatedAt       time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Video) TableName() string { return "video" }
