package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Course statuses
const (
	CourseStatusDraft     = "draft"
	CourseStatusPublished = "published"
	CourseStatusArchived  = "archived"
)

// Course represents a cohort-based course offered on the marketplace.
// Price is in the major currency unit; the payment provider reports amounts
// in the smallest subunit (price * 100 for the currencies in scope).
type Course struct {
	ID              string         `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
	Title           string         `gorm:"not null" json:"title"`
	Description     string         `gorm:"type:text" json:"description"`
	Price           float64        `gorm:"not null" json:"price"`
	Currency        string         `gorm:"type:varchar(3);default:'NGN'" json:"currency"`
	Status          string         `gorm:"type:varchar(10);default:'draft';index" json:"status"` // draft, published, archived
	EnrollmentCount int            `gorm:"default:0" json:"enrollment_count"`
	MaxStudents     *int           `json:"max_students"` // nil means uncapped
	InstructorID    *string        `gorm:"type:uuid;index" json:"instructor_id"`

	// Relationships
	Instructor  *User        `gorm:"foreignKey:InstructorID" json:"instructor,omitempty"`
	Enrollments []Enrollment `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"-"`
}

// BeforeCreate assigns a UUID primary key when none was provided
func (c *Course) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// IsFull reports whether the course reached its enrollment cap
func (c *Course) IsFull() bool {
	return c.MaxStudents != nil && c.EnrollmentCount >= *c.MaxStudents
}
