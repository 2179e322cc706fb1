package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/learnhubhq/learnhub-api/model"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Integration tests run against a real Postgres and are skipped unless
// RUN_INTEGRATION_TESTS=true is set. They exercise the constraint-backed
// settlement behavior that the in-memory store cannot reproduce.

func integrationDB(t *testing.T) *gorm.DB {
	t.Helper()

	if os.Getenv("RUN_INTEGRATION_TESTS") != "true" {
		t.Skip("set RUN_INTEGRATION_TESTS=true to run integration tests")
	}

	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		dsn = "host=localhost user=learnhub password=learnhub dbname=learnhub_test port=5432 sslmode=disable"
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}

	if err := db.AutoMigrate(&model.User{}, &model.Course{}, &model.Enrollment{}, &model.Payment{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	t.Cleanup(func() {
		db.Exec("DELETE FROM payments")
		db.Exec("DELETE FROM enrollments")
		db.Exec("DELETE FROM courses")
		db.Exec("DELETE FROM users")
	})

	return db
}

func seedIntegrationData(t *testing.T, db *gorm.DB) (*model.User, *model.Course) {
	t.Helper()

	user := &model.User{Email: "ada@example.com", PasswordHash: "x", Name: "Ada", Role: model.RoleStudent}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	course := &model.Course{Title: "Distributed Systems Cohort 4", Price: 5000, Currency: "NGN", Status: model.CourseStatusPublished}
	if err := db.Create(course).Error; err != nil {
		t.Fatalf("failed to seed course: %v", err)
	}
	return user, course
}

func TestGormStoreSettleCreatesRows(t *testing.T) {
	db := integrationDB(t)
	user, course := seedIntegrationData(t, db)
	store := NewGormReconciliationStore(db)

	result, err := store.Settle(context.Background(), SettleParams{
		StudentID:     user.ID,
		CourseID:      course.ID,
		Reference:     "itest-ref-1",
		TransactionID: "1001",
		Amount:        5000,
		Currency:      "NGN",
	})
	if err != nil {
		t.Fatalf("settle failed: %v", err)
	}
	if result.AlreadyCompleted {
		t.Fatal("first settlement must not report already completed")
	}

	var enrollment model.Enrollment
	if err := db.First(&enrollment, "id = ?", result.EnrollmentID).Error; err != nil {
		t.Fatalf("enrollment not found: %v", err)
	}
	if enrollment.PaymentStatus != model.EnrollmentPaymentCompleted {
		t.Fatalf("expected completed enrollment, got %s", enrollment.PaymentStatus)
	}
	if enrollment.PaymentID == nil || *enrollment.PaymentID != result.PaymentID {
		t.Fatalf("enrollment payment_id not attached: %+v", enrollment)
	}

	var freshCourse model.Course
	if err := db.First(&freshCourse, "id = ?", course.ID).Error; err != nil {
		t.Fatalf("course not found: %v", err)
	}
	if freshCourse.EnrollmentCount != 1 {
		t.Fatalf("expected enrollment count 1, got %d", freshCourse.EnrollmentCount)
	}
}

func TestGormStoreSettleIsIdempotent(t *testing.T) {
	db := integrationDB(t)
	user, course := seedIntegrationData(t, db)
	store := NewGormReconciliationStore(db)

	params := SettleParams{
		StudentID: user.ID, CourseID: course.ID,
		Reference: "itest-ref-2", TransactionID: "1002",
		Amount: 5000, Currency: "NGN",
	}

	first, err := store.Settle(context.Background(), params)
	if err != nil {
		t.Fatalf("first settle failed: %v", err)
	}
	second, err := store.Settle(context.Background(), params)
	if err != nil {
		t.Fatalf("second settle failed: %v", err)
	}

	if !second.AlreadyCompleted {
		t.Fatal("second settlement must report already completed")
	}
	if second.PaymentID != first.PaymentID || second.EnrollmentID != first.EnrollmentID {
		t.Fatalf("replay returned different ids: %+v vs %+v", first, second)
	}

	var paymentCount, enrollmentCount int64
	db.Model(&model.Payment{}).Count(&paymentCount)
	db.Model(&model.Enrollment{}).Count(&enrollmentCount)
	if paymentCount != 1 || enrollmentCount != 1 {
		t.Fatalf("expected single payment and enrollment, got %d and %d", paymentCount, enrollmentCount)
	}

	var freshCourse model.Course
	db.First(&freshCourse, "id = ?", course.ID)
	if freshCourse.EnrollmentCount != 1 {
		t.Fatalf("replay must not increment enrollment count, got %d", freshCourse.EnrollmentCount)
	}
}

func TestGormStoreSettleConcurrentSameReference(t *testing.T) {
	db := integrationDB(t)
	user, course := seedIntegrationData(t, db)
	store := NewGormReconciliationStore(db)

	params := SettleParams{
		StudentID: user.ID, CourseID: course.ID,
		Reference: "itest-ref-3", TransactionID: "1003",
		Amount: 5000, Currency: "NGN",
	}

	const workers = 4
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		go func() {
			_, err := store.Settle(context.Background(), params)
			results <- err
		}()
	}
	for i := 0; i < workers; i++ {
		if err := <-results; err != nil {
			t.Fatalf("concurrent settle failed: %v", err)
		}
	}

	var paymentCount, enrollmentCount int64
	db.Model(&model.Payment{}).Count(&paymentCount)
	db.Model(&model.Enrollment{}).Count(&enrollmentCount)
	if paymentCount != 1 || enrollmentCount != 1 {
		t.Fatalf("concurrent settlements must collapse to one row each, got %d payments and %d enrollments", paymentCount, enrollmentCount)
	}

	var freshCourse model.Course
	db.First(&freshCourse, "id = ?", course.ID)
	if freshCourse.EnrollmentCount != 1 {
		t.Fatalf("expected enrollment count 1 after concurrent settlements, got %d", freshCourse.EnrollmentCount)
	}
}

func TestGormStoreSettleUpdatesPendingPaymentInPlace(t *testing.T) {
	db := integrationDB(t)
	user, course := seedIntegrationData(t, db)
	store := NewGormReconciliationStore(db)

	// A reference can already have a pending row, e.g. written by an earlier
	// run that died before provider verification came back
	enrollment := &model.Enrollment{
		StudentID:     user.ID,
		CourseID:      course.ID,
		PaymentStatus: model.EnrollmentPaymentPending,
	}
	if err := db.Create(enrollment).Error; err != nil {
		t.Fatalf("failed to seed enrollment: %v", err)
	}
	pending := &model.Payment{
		EnrollmentID:      enrollment.ID,
		StudentID:         user.ID,
		CourseID:          course.ID,
		Amount:            5000,
		Currency:          "NGN",
		PaystackReference: "itest-ref-pending",
		Status:            model.PaymentStatusPending,
	}
	if err := db.Create(pending).Error; err != nil {
		t.Fatalf("failed to seed pending payment: %v", err)
	}

	result, err := store.Settle(context.Background(), SettleParams{
		StudentID:     user.ID,
		CourseID:      course.ID,
		Reference:     "itest-ref-pending",
		TransactionID: "1004",
		Amount:        5000,
		Currency:      "NGN",
	})
	if err != nil {
		t.Fatalf("settle over existing pending payment failed: %v", err)
	}
	if result.PaymentID != pending.ID {
		t.Fatalf("expected the seeded payment row to be reused, got %s want %s", result.PaymentID, pending.ID)
	}

	var paymentCount int64
	db.Model(&model.Payment{}).Where("paystack_reference = ?", "itest-ref-pending").Count(&paymentCount)
	if paymentCount != 1 {
		t.Fatalf("expected one payment row for the reference, got %d", paymentCount)
	}

	var fresh model.Payment
	if err := db.First(&fresh, "id = ?", pending.ID).Error; err != nil {
		t.Fatalf("seeded payment row disappeared: %v", err)
	}
	if fresh.Status != model.PaymentStatusSuccess {
		t.Fatalf("expected pending payment updated to success, got %s", fresh.Status)
	}
	if fresh.PaystackTransactionID != "1004" {
		t.Fatalf("provider transaction id not written: %s", fresh.PaystackTransactionID)
	}
}

func TestGormStoreSettleConcurrentLastSeat(t *testing.T) {
	db := integrationDB(t)
	_, course := seedIntegrationData(t, db)

	capacity := 1
	if err := db.Model(course).Update("max_students", &capacity).Error; err != nil {
		t.Fatalf("failed to cap course: %v", err)
	}

	users := make([]*model.User, 2)
	for i := range users {
		users[i] = &model.User{
			Email:        fmt.Sprintf("student%d@example.com", i),
			PasswordHash: "x",
			Name:         fmt.Sprintf("Student %d", i),
			Role:         model.RoleStudent,
		}
		if err := db.Create(users[i]).Error; err != nil {
			t.Fatalf("failed to seed user: %v", err)
		}
	}

	store := NewGormReconciliationStore(db)
	errs := make(chan error, len(users))
	for i, u := range users {
		go func(i int, studentID string) {
			_, err := store.Settle(context.Background(), SettleParams{
				StudentID:     studentID,
				CourseID:      course.ID,
				Reference:     fmt.Sprintf("itest-ref-seat-%d", i),
				TransactionID: fmt.Sprintf("20%d", i),
				Amount:        5000,
				Currency:      "NGN",
			})
			errs <- err
		}(i, u.ID)
	}

	succeeded, full := 0, 0
	for range users {
		switch err := <-errs; {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrCourseFull):
			full++
		default:
			t.Fatalf("unexpected settle error: %v", err)
		}
	}

	if succeeded != 1 || full != 1 {
		t.Fatalf("expected exactly one winner and one capacity refusal, got %d winners and %d refusals", succeeded, full)
	}

	var fresh model.Course
	db.First(&fresh, "id = ?", course.ID)
	if fresh.EnrollmentCount != 1 {
		t.Fatalf("enrollment count breached capacity: got %d with max 1", fresh.EnrollmentCount)
	}
}

func TestGormStoreFindPaymentByReferenceAbsent(t *testing.T) {
	db := integrationDB(t)
	store := NewGormReconciliationStore(db)

	payment, err := store.FindPaymentByReference(context.Background(), fmt.Sprintf("missing-%d", os.Getpid()))
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if payment != nil {
		t.Fatalf("expected nil for absent reference, got %+v", payment)
	}
}
