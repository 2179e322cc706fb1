package payment

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/learnhubhq/learnhub-api/model"
	"github.com/learnhubhq/learnhub-api/services"
	"github.com/learnhubhq/learnhub-api/utils/middleware"
	"github.com/learnhubhq/learnhub-api/utils/response"
	"github.com/learnhubhq/learnhub-api/utils/validation"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// PaymentHandler handles payment verification and history requests
type PaymentHandler struct {
	db             *gorm.DB
	reconciliation *services.ReconciliationService
	validator      *validation.Validator
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(db *gorm.DB, reconciliation *services.ReconciliationService) *PaymentHandler {
	return &PaymentHandler{
		db:             db,
		reconciliation: reconciliation,
		validator:      validation.NewValidator(),
	}
}

// VerifyPaymentRequest represents a payment verification request
type VerifyPaymentRequest struct {
	Reference string `json:"reference" validate:"required"`
	CourseID  string `json:"course_id" validate:"required,uuid4"`
	StudentID string `json:"student_id" validate:"required,uuid4"`
}

// Verify reconciles a claimed payment into enrollment state. Students may
// only verify their own payments; admins may verify on anyone's behalf,
// which covers support-desk recovery of stuck transactions.
func (h *PaymentHandler) Verify(c *fiber.Ctx) error {
	claims, ok := middleware.GetClaims(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	var req VerifyPaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	req.Reference = validation.SanitizeString(req.Reference)

	if err := h.validator.ValidateStruct(&req); err != nil {
		return response.ValidationError(c, validation.FormatValidationErrors(err))
	}

	if req.StudentID != claims.UserID && claims.Role != model.RoleAdmin {
		return response.Forbidden(c, "Cannot verify a payment for another student")
	}

	result, err := h.reconciliation.Verify(c.UserContext(), services.VerifyRequest{
		Reference: req.Reference,
		CourseID:  req.CourseID,
		StudentID: req.StudentID,
	})
	if err != nil {
		return h.renderReconcileError(c, req.Reference, err)
	}

	if result.Replayed {
		return response.SuccessWithMessage(c, "Payment already verified", result)
	}
	return response.SuccessWithMessage(c, "Payment verified and enrollment confirmed", result)
}

// renderReconcileError maps a typed reconciliation failure onto the HTTP
// surface. Store failures are the only 500s; everything else is the client's
// claim being rejected.
func (h *PaymentHandler) renderReconcileError(c *fiber.Ctx, reference string, err error) error {
	var recErr *services.ReconcileError
	if !errors.As(err, &recErr) {
		log.Error().Err(err).Str("reference", reference).Msg("payment verification failed")
		return response.InternalServerError(c, "")
	}

	switch recErr.Kind {
	case services.KindStoreError:
		log.Error().Err(recErr).Str("reference", reference).Msg("payment settlement failed")
		return response.InternalServerError(c, "Failed to record payment")
	case services.KindReconcileInProgress:
		return response.Error(c, fiber.StatusConflict, recErr.Message, recErr.Kind)
	default:
		if recErr.Expected != nil || recErr.Got != nil {
			return response.ErrorWithDetails(c, fiber.StatusBadRequest, recErr.Message, recErr.Kind, fiber.Map{
				"expected": recErr.Expected,
				"got":      recErr.Got,
			})
		}
		return response.Error(c, fiber.StatusBadRequest, recErr.Message, recErr.Kind)
	}
}

// List returns the authenticated student's payment history
func (h *PaymentHandler) List(c *fiber.Ctx) error {
	claims, ok := middleware.GetClaims(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	var payments []model.Payment
	if err := h.db.
		Where("student_id = ?", claims.UserID).
		Order("created_at DESC").
		Find(&payments).Error; err != nil {
		return response.InternalServerError(c, "Failed to load payments")
	}

	return response.Success(c, payments)
}
