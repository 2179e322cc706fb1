package services

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/learnhubhq/learnhub-api/model"
	"github.com/learnhubhq/learnhub-api/utils/cache"
	"github.com/rs/zerolog/log"
)

// reconcileLockTTL bounds how long a crashed reconciliation can hold a
// reference lock before a retry is allowed through
const reconcileLockTTL = 30 * time.Second

// ReconciliationStore is the durable state the reconciliation flow reads and
// writes. Lookup methods return (nil, nil) when the row is absent.
type ReconciliationStore interface {
	FindPaymentByReference(ctx context.Context, reference string) (*model.Payment, error)
	GetCourse(ctx context.Context, id string) (*model.Course, error)
	GetUser(ctx context.Context, id string) (*model.User, error)

	// Settle atomically performs enrollment find-or-create, the payment
	// upsert keyed by reference, and enrollment finalization. When the
	// enrollment is already completed it reports AlreadyCompleted and
	// mutates nothing.
	Settle(ctx context.Context, params SettleParams) (*SettleResult, error)
}

// SettleParams carries provider-verified facts into settlement. Nothing in
// here may come from client input except the student/course pair, which was
// cross-checked against the provider transaction before settlement.
type SettleParams struct {
	StudentID     string
	CourseID      string
	Reference     string
	TransactionID string
	Amount        float64 // major currency unit
	Currency      string
	Metadata      map[string]interface{}
}

// SettleResult identifies the canonical payment and enrollment rows
type SettleResult struct {
	PaymentID        string
	EnrollmentID     string
	AlreadyCompleted bool
}

// VerifyRequest is the client's claim: "I paid for this course via this reference"
type VerifyRequest struct {
	Reference string
	CourseID  string
	StudentID string
}

// VerifyResult is returned on successful (or replayed) reconciliation
type VerifyResult struct {
	PaymentID    string `json:"payment_id"`
	EnrollmentID string `json:"enrollment_id"`
	Replayed     bool   `json:"-"`
}

// ReconciliationService converts a client-asserted payment reference into
// verified, durable enrollment state. Every failure is fail-closed: no step
// mutates anything unless all gates before it passed.
type ReconciliationService struct {
	store    ReconciliationStore
	paystack *PaystackClient
	email    *EmailService
	locks    *cache.RedisCache // optional
}

// NewReconciliationService creates a reconciliation service. locks may be nil,
// in which case concurrent duplicate requests are collapsed by the store's
// unique constraints alone.
func NewReconciliationService(store ReconciliationStore, paystack *PaystackClient, email *EmailService, locks *cache.RedisCache) *ReconciliationService {
	return &ReconciliationService{
		store:    store,
		paystack: paystack,
		email:    email,
		locks:    locks,
	}
}

// Verify runs the ordered gate chain. Each gate aborts the invocation with a
// typed ReconcileError; only Settle writes anything.
func (s *ReconciliationService) Verify(ctx context.Context, req VerifyRequest) (*VerifyResult, error) {
	if req.Reference == "" || req.CourseID == "" || req.StudentID == "" {
		return nil, reconcileErr(KindInvalidRequest, "reference, course_id and student_id are required")
	}

	// Serialize concurrent reconciliation of one reference. The common case
	// is the provider webhook and the client callback firing together; the
	// loser returns 409 and its retry lands on the replay path. Redis being
	// down degrades to constraint-only protection rather than blocking.
	if s.locks != nil {
		lockKey := "reconcile:" + req.Reference
		acquired, err := s.locks.SetNX(ctx, lockKey, 1, reconcileLockTTL)
		if err == nil {
			if !acquired {
				return nil, reconcileErr(KindReconcileInProgress, "this reference is already being reconciled")
			}
			defer func() {
				if delErr := s.locks.Delete(context.Background(), lockKey); delErr != nil {
					log.Warn().Err(delErr).Str("reference", req.Reference).Msg("failed to release reconcile lock")
				}
			}()
		} else {
			log.Warn().Err(err).Msg("redis unavailable, reconciling without reference lock")
		}
	}

	// Step 1: provider verification. This is the trust anchor; nothing
	// downstream is accepted without it.
	tx, err := s.paystack.VerifyTransaction(ctx, req.Reference)
	if err != nil {
		return nil, &ReconcileError{Kind: KindVerificationFailed, Message: "could not verify transaction with payment provider", Err: err}
	}
	if !tx.IsSuccessful() {
		return nil, mismatchErr(KindVerificationFailed, "provider reports transaction is not successful", "success", tx.Status)
	}

	// Step 2: replay of an already settled reference returns the existing
	// identifiers without touching anything.
	existing, err := s.store.FindPaymentByReference(ctx, req.Reference)
	if err != nil {
		return nil, storeErr("failed to look up payment by reference", err)
	}
	if existing != nil && existing.Status == model.PaymentStatusSuccess {
		return &VerifyResult{PaymentID: existing.ID, EnrollmentID: existing.EnrollmentID, Replayed: true}, nil
	}

	// Step 3: course gates
	course, err := s.store.GetCourse(ctx, req.CourseID)
	if err != nil {
		return nil, storeErr("failed to load course", err)
	}
	if course == nil {
		return nil, reconcileErr(KindCourseNotFound, "course does not exist")
	}
	if course.Status != model.CourseStatusPublished {
		return nil, mismatchErr(KindCourseUnavailable, "course is not open for enrollment", model.CourseStatusPublished, course.Status)
	}
	if course.IsFull() {
		return nil, mismatchErr(KindCourseFull, "course has reached its enrollment cap", *course.MaxStudents, course.EnrollmentCount)
	}

	// Step 4: financial integrity. The provider reports the smallest
	// currency subunit; recompute from the course price with round-half-up
	// and require exact equality.
	expectedAmount := int64(math.Round(course.Price * 100))
	if tx.Amount != expectedAmount {
		return nil, mismatchErr(KindAmountMismatch, "paid amount does not match course price", expectedAmount, tx.Amount)
	}
	if !strings.EqualFold(tx.Currency, course.Currency) {
		return nil, mismatchErr(KindCurrencyMismatch, "payment currency does not match course currency", course.Currency, tx.Currency)
	}

	// Step 5: identity. Prefer the customer email the provider saw; fall
	// back to the metadata the checkout attached. With neither signal the
	// handler refuses to proceed so one student's payment can never credit
	// another's enrollment.
	student, err := s.store.GetUser(ctx, req.StudentID)
	if err != nil {
		return nil, storeErr("failed to load student", err)
	}
	switch {
	case tx.Customer.Email != "":
		if student == nil || !strings.EqualFold(tx.Customer.Email, student.Email) {
			onFile := ""
			if student != nil {
				onFile = student.Email
			}
			return nil, mismatchErr(KindIdentityMismatch, "transaction customer email does not match student on file", onFile, tx.Customer.Email)
		}
	case tx.Metadata.StudentID != "":
		if tx.Metadata.StudentID != req.StudentID {
			return nil, mismatchErr(KindIdentityMismatch, "transaction metadata names a different student", req.StudentID, tx.Metadata.StudentID)
		}
	default:
		return nil, reconcileErr(KindMissingIdentitySignal, "transaction carries no customer email or student metadata")
	}

	// Steps 6-8: atomic settlement. All stored financial facts come from the
	// verified provider transaction.
	result, err := s.store.Settle(ctx, SettleParams{
		StudentID:     req.StudentID,
		CourseID:      req.CourseID,
		Reference:     req.Reference,
		TransactionID: strconv.FormatInt(tx.ID, 10),
		Amount:        float64(tx.Amount) / 100,
		Currency:      strings.ToUpper(tx.Currency),
		Metadata: map[string]interface{}{
			"customer_email":      tx.Customer.Email,
			"metadata_student_id": tx.Metadata.StudentID,
			"metadata_course_id":  tx.Metadata.CourseID,
		},
	})
	if err != nil {
		// The capacity gate above reads outside the transaction; a concurrent
		// settlement can take the last seat between the gate and commit.
		if errors.Is(err, ErrCourseFull) {
			return nil, reconcileErr(KindCourseFull, "course has reached its enrollment cap")
		}
		return nil, storeErr("failed to settle payment", err)
	}

	// Step 9: best-effort confirmation email. Failure is logged and
	// swallowed; it can never fail the reconciliation or roll it back.
	if !result.AlreadyCompleted && s.email != nil && s.email.IsConfigured() && student != nil {
		go s.sendConfirmation(student.Email, student.Name, course.Title)
	}

	return &VerifyResult{
		PaymentID:    result.PaymentID,
		EnrollmentID: result.EnrollmentID,
		Replayed:     result.AlreadyCompleted,
	}, nil
}

func (s *ReconciliationService) sendConfirmation(toEmail, name, courseTitle string) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := s.email.SendEnrollmentConfirmation(ctx, toEmail, name, courseTitle); err != nil {
		log.Warn().Err(err).Str("email", toEmail).Msg("enrollment confirmation email failed")
	}
}
