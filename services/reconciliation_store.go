package services

import (
	"context"
	"errors"
	"time"

	"github.com/learnhubhq/learnhub-api/model"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormReconciliationStore implements ReconciliationStore on PostgreSQL.
// Race discipline comes from the store, not from in-process locking: the
// unique indexes on payments.paystack_reference and
// enrollments(student_id, course_id) are what make concurrent duplicate
// requests collapse to one logical effect, since the API may run as several
// stateless instances.
type GormReconciliationStore struct {
	db *gorm.DB
}

// NewGormReconciliationStore creates a gorm-backed reconciliation store
func NewGormReconciliationStore(db *gorm.DB) *GormReconciliationStore {
	return &GormReconciliationStore{db: db}
}

// FindPaymentByReference returns the payment for a provider reference, or
// (nil, nil) when none exists
func (s *GormReconciliationStore) FindPaymentByReference(ctx context.Context, reference string) (*model.Payment, error) {
	var payment model.Payment
	err := s.db.WithContext(ctx).Where("paystack_reference = ?", reference).First(&payment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// GetCourse returns a course by id, or (nil, nil) when none exists
func (s *GormReconciliationStore) GetCourse(ctx context.Context, id string) (*model.Course, error) {
	var course model.Course
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&course).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &course, nil
}

// GetUser returns a user by id, or (nil, nil) when none exists
func (s *GormReconciliationStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Settle runs enrollment find-or-create, the payment upsert and enrollment
// finalization in one transaction. A concurrent settlement of the same
// (student, course) pair loses the insert race at the unique index and
// re-reads the winner's row instead of failing.
func (s *GormReconciliationStore) Settle(ctx context.Context, params SettleParams) (*SettleResult, error) {
	var result *SettleResult

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		enrollment, err := s.lockEnrollment(tx, params.StudentID, params.CourseID)
		if err != nil {
			return err
		}

		if enrollment != nil && enrollment.PaymentStatus == model.EnrollmentPaymentCompleted {
			// Second idempotency guard: the pair is already settled,
			// report the existing rows and mutate nothing.
			paymentID := ""
			if enrollment.PaymentID != nil {
				paymentID = *enrollment.PaymentID
			}
			result = &SettleResult{
				PaymentID:        paymentID,
				EnrollmentID:     enrollment.ID,
				AlreadyCompleted: true,
			}
			return nil
		}

		if enrollment == nil {
			enrollment = &model.Enrollment{
				StudentID:     params.StudentID,
				CourseID:      params.CourseID,
				PaymentStatus: model.EnrollmentPaymentPending,
			}
			if err := tx.Create(enrollment).Error; err != nil {
				if !errors.Is(err, gorm.ErrDuplicatedKey) {
					return err
				}
				// Lost the insert race; the winner's row is canonical
				enrollment, err = s.lockEnrollment(tx, params.StudentID, params.CourseID)
				if err != nil {
					return err
				}
				if enrollment == nil {
					return gorm.ErrRecordNotFound
				}
				if enrollment.PaymentStatus == model.EnrollmentPaymentCompleted {
					// The winner finished the whole settlement while we
					// waited on the constraint
					paymentID := ""
					if enrollment.PaymentID != nil {
						paymentID = *enrollment.PaymentID
					}
					result = &SettleResult{
						PaymentID:        paymentID,
						EnrollmentID:     enrollment.ID,
						AlreadyCompleted: true,
					}
					return nil
				}
			}
		}

		payment := model.Payment{
			EnrollmentID:          enrollment.ID,
			StudentID:             params.StudentID,
			CourseID:              params.CourseID,
			Amount:                params.Amount,
			Currency:              params.Currency,
			PaystackReference:     params.Reference,
			PaystackTransactionID: params.TransactionID,
			Status:                model.PaymentStatusSuccess,
			Metadata:              datatypes.JSONMap(params.Metadata),
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "paystack_reference"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"enrollment_id", "student_id", "course_id", "amount", "currency",
				"paystack_transaction_id", "status", "metadata", "updated_at",
			}),
		}).Create(&payment).Error; err != nil {
			return err
		}
		// After a conflict-update the generated id is not the stored row's;
		// re-read the canonical payment into a fresh struct so the unstored
		// id cannot leak into the query conditions
		var stored model.Payment
		if err := tx.Where("paystack_reference = ?", params.Reference).First(&stored).Error; err != nil {
			return err
		}

		now := time.Now()
		if err := tx.Model(&model.Enrollment{}).Where("id = ?", enrollment.ID).Updates(map[string]interface{}{
			"payment_status": model.EnrollmentPaymentCompleted,
			"payment_id":     stored.ID,
			"enrolled_at":    now,
		}).Error; err != nil {
			return err
		}

		// The pair transitions to completed exactly once inside this
		// transaction, so the seat count moves with it. The capacity check
		// rides on the same guarded update: the gate outside the transaction
		// can race, this cannot.
		res := tx.Model(&model.Course{}).
			Where("id = ? AND (max_students IS NULL OR enrollment_count < max_students)", params.CourseID).
			UpdateColumn("enrollment_count", gorm.Expr("enrollment_count + ?", 1))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrCourseFull
		}

		result = &SettleResult{
			PaymentID:    stored.ID,
			EnrollmentID: enrollment.ID,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (s *GormReconciliationStore) lockEnrollment(tx *gorm.DB, studentID, courseID string) (*model.Enrollment, error) {
	var enrollment model.Enrollment
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("student_id = ? AND course_id = ?", studentID, courseID).
		First(&enrollment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &enrollment, nil
}
