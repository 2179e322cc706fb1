package enrollment

import (
	"github.com/gofiber/fiber/v2"
	"github.com/learnhubhq/learnhub-api/model"
	"github.com/learnhubhq/learnhub-api/utils/middleware"
	"github.com/learnhubhq/learnhub-api/utils/response"
	"gorm.io/gorm"
)

// EnrollmentHandler handles enrollment listing requests
type EnrollmentHandler struct {
	db *gorm.DB
}

// NewEnrollmentHandler creates a new enrollment handler
func NewEnrollmentHandler(db *gorm.DB) *EnrollmentHandler {
	return &EnrollmentHandler{db: db}
}

// List returns the authenticated student's enrollments with their courses
func (h *EnrollmentHandler) List(c *fiber.Ctx) error {
	claims, ok := middleware.GetClaims(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	var enrollments []model.Enrollment
	if err := h.db.
		Preload("Course").
		Where("student_id = ?", claims.UserID).
		Order("created_at DESC").
		Find(&enrollments).Error; err != nil {
		return response.InternalServerError(c, "Failed to load enrollments")
	}

	return response.Success(c, enrollments)
}
