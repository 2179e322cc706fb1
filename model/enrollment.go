package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Enrollment payment statuses
const (
	EnrollmentPaymentPending   = "pending"
	EnrollmentPaymentCompleted = "completed"
	EnrollmentPaymentFailed    = "failed"
	EnrollmentPaymentRefunded  = "refunded"
)

// Enrollment links a student to a course. The composite unique index on
// (student_id, course_id) makes find-or-create race-safe: concurrent
// reconciliations of the same pair collapse at the constraint and the loser
// re-reads the winner's row.
type Enrollment struct {
	ID                 string         `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
	DeletedAt          gorm.DeletedAt `gorm:"index" json:"-"`
	StudentID          string         `gorm:"type:uuid;not null;uniqueIndex:idx_enrollments_student_course" json:"student_id"`
	CourseID           string         `gorm:"type:uuid;not null;uniqueIndex:idx_enrollments_student_course" json:"course_id"`
	PaymentStatus      string         `gorm:"type:varchar(20);default:'pending';index" json:"payment_status"` // pending, completed, failed, refunded
	PaymentID          *string        `gorm:"type:uuid" json:"payment_id"`
	ProgressPercentage float64        `gorm:"default:0" json:"progress_percentage"`
	EnrolledAt         *time.Time     `json:"enrolled_at"`

	// Relationships
	Student User   `gorm:"foreignKey:StudentID" json:"-"`
	Course  Course `gorm:"foreignKey:CourseID" json:"course,omitempty"`
}

// BeforeCreate assigns a UUID primary key when none was provided
func (e *Enrollment) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}
