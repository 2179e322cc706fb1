package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Payment statuses
const (
	PaymentStatusPending  = "pending"
	PaymentStatusSuccess  = "success"
	PaymentStatusFailed   = "failed"
	PaymentStatusRefunded = "refunded"
)

// Payment records one settled Paystack transaction. PaystackReference is the
// external idempotency key: the unique index guarantees at most one row per
// logical payment attempt, and replays of the same reference update this row
// in place instead of inserting a second one. Amount, currency, transaction id
// and metadata are always filled from the verified provider response, never
// from client input.
type Payment struct {
	ID                    string            `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt             time.Time         `json:"created_at"`
	UpdatedAt             time.Time         `json:"updated_at"`
	DeletedAt             gorm.DeletedAt    `gorm:"index" json:"-"`
	EnrollmentID          string            `gorm:"type:uuid;index" json:"enrollment_id"`
	StudentID             string            `gorm:"type:uuid;not null;index" json:"student_id"`
	CourseID              string            `gorm:"type:uuid;not null;index" json:"course_id"`
	Amount                float64           `gorm:"not null" json:"amount"` // major currency unit
	Currency              string            `gorm:"type:varchar(3);default:'NGN'" json:"currency"`
	PaystackReference     string            `gorm:"type:varchar(100);uniqueIndex;not null" json:"paystack_reference"`
	PaystackTransactionID string            `gorm:"type:varchar(100)" json:"paystack_transaction_id"`
	Status                string            `gorm:"type:varchar(20);default:'pending';index" json:"status"` // pending, success, failed, refunded
	Metadata              datatypes.JSONMap `json:"metadata"`

	// Relationships
	Student User   `gorm:"foreignKey:StudentID" json:"-"`
	Course  Course `gorm:"foreignKey:CourseID" json:"-"`
}

// BeforeCreate assigns a UUID primary key when none was provided
func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
