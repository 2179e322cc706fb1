package services

import (
	"errors"
	"fmt"
)

// ErrCourseFull is returned by a ReconciliationStore when the guarded seat
// count update finds no capacity left at commit time. It exists so the
// service can tell a lost capacity race apart from a store failure.
var ErrCourseFull = errors.New("course is at capacity")

// Reconciliation failure kinds. Every kind is terminal for the current
// invocation; retrying is the caller's responsibility and is safe because
// settlement is idempotent per reference.
const (
	KindInvalidRequest        = "InvalidRequest"
	KindVerificationFailed    = "VerificationFailed"
	KindCourseNotFound        = "CourseNotFound"
	KindCourseUnavailable     = "CourseUnavailable"
	KindCourseFull            = "CourseFull"
	KindAmountMismatch        = "AmountMismatch"
	KindCurrencyMismatch      = "CurrencyMismatch"
	KindIdentityMismatch      = "IdentityMismatch"
	KindMissingIdentitySignal = "MissingIdentitySignal"
	KindReconcileInProgress   = "ReconciliationInProgress"
	KindStoreError            = "StoreError"
)

// ReconcileError is a typed reconciliation failure. Expected/Got carry the
// conflicting values for mismatch kinds so the caller can see both sides.
type ReconcileError struct {
	Kind     string
	Message  string
	Expected interface{}
	Got      interface{}
	Err      error
}

func (e *ReconcileError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	if e.Expected != nil || e.Got != nil {
		return fmt.Sprintf("%s: %s (expected %v, got %v)", e.Kind, e.Message, e.Expected, e.Got)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ReconcileError) Unwrap() error {
	return e.Err
}

func reconcileErr(kind, message string) *ReconcileError {
	return &ReconcileError{Kind: kind, Message: message}
}

func mismatchErr(kind, message string, expected, got interface{}) *ReconcileError {
	return &ReconcileError{Kind: kind, Message: message, Expected: expected, Got: got}
}

func storeErr(message string, err error) *ReconcileError {
	return &ReconcileError{Kind: KindStoreError, Message: message, Err: err}
}
