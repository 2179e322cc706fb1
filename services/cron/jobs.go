package cron

import (
	"context"
	"errors"
	"time"

	"github.com/learnhubhq/learnhub-api/model"
	"github.com/learnhubhq/learnhub-api/services"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// RepairPendingEnrollments finalizes enrollments that are still pending even
// though their payment settled. This can happen when a process dies between
// the payment upsert and enrollment finalization on rows written before the
// two moved into one transaction.
func (m *CronManager) RepairPendingEnrollments() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	var payments []model.Payment
	err := m.db.WithContext(ctx).
		Joins("JOIN enrollments ON enrollments.id = payments.enrollment_id").
		Where("payments.status = ? AND enrollments.payment_status = ?",
			model.PaymentStatusSuccess, model.EnrollmentPaymentPending).
		Find(&payments).Error
	if err != nil {
		log.Error().Err(err).Msg("failed to query pending enrollments with settled payments")
		return
	}

	if len(payments) == 0 {
		return
	}

	repaired := 0
	for _, payment := range payments {
		p := payment
		err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			// Claim the seat first; a full course leaves the enrollment
			// pending rather than breaching the cap
			seat := tx.Model(&model.Course{}).
				Where("id = ? AND (max_students IS NULL OR enrollment_count < max_students)", p.CourseID).
				UpdateColumn("enrollment_count", gorm.Expr("enrollment_count + ?", 1))
			if seat.Error != nil {
				return seat.Error
			}
			if seat.RowsAffected == 0 {
				return services.ErrCourseFull
			}

			res := tx.Model(&model.Enrollment{}).
				Where("id = ? AND payment_status = ?", p.EnrollmentID, model.EnrollmentPaymentPending).
				Updates(map[string]interface{}{
					"payment_status": model.EnrollmentPaymentCompleted,
					"payment_id":     p.ID,
					"enrolled_at":    time.Now(),
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				// Another worker got there first; release the seat we took
				return tx.Model(&model.Course{}).Where("id = ?", p.CourseID).
					UpdateColumn("enrollment_count", gorm.Expr("enrollment_count - ?", 1)).Error
			}
			return nil
		})
		if err != nil {
			if errors.Is(err, services.ErrCourseFull) {
				log.Warn().Str("payment_id", p.ID).Str("course_id", p.CourseID).
					Msg("settled payment cannot be finalized, course is full")
			} else {
				log.Error().Err(err).Str("payment_id", p.ID).Msg("failed to repair enrollment")
			}
			continue
		}
		repaired++
	}

	log.Info().Int("found", len(payments)).Int("repaired", repaired).Msg("pending enrollment repair finished")
}

// ExpireStalePayments marks payments that sat in pending for over 24 hours as
// failed. The provider will never settle these; keeping them pending only
// confuses student-facing payment history.
func (m *CronManager) ExpireStalePayments() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cutoff := time.Now().Add(-24 * time.Hour)

	result := m.db.WithContext(ctx).Model(&model.Payment{}).
		Where("status = ? AND created_at < ?", model.PaymentStatusPending, cutoff).
		Update("status", model.PaymentStatusFailed)
	if result.Error != nil {
		log.Error().Err(result.Error).Msg("failed to expire stale payments")
		return
	}

	if result.RowsAffected > 0 {
		log.Info().Int64("expired", result.RowsAffected).Msg("stale pending payments marked failed")
	}
}
