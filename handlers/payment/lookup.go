package payment

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/learnhubhq/learnhub-api/model"
	"github.com/learnhubhq/learnhub-api/utils/response"
	"gorm.io/gorm"
)

// GetByReference returns the payment recorded for a provider reference.
// Admin-only: the support desk uses it to inspect a stuck transaction before
// re-verifying on a student's behalf.
func (h *PaymentHandler) GetByReference(c *fiber.Ctx) error {
	reference := c.Params("reference")

	var payment model.Payment
	err := h.db.Where("paystack_reference = ?", reference).First(&payment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return response.NotFound(c, "No payment recorded for this reference")
	}
	if err != nil {
		return response.InternalServerError(c, "Failed to load payment")
	}

	return response.Success(c, payment)
}
