package course

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/learnhubhq/learnhub-api/model"
	"github.com/learnhubhq/learnhub-api/utils/response"
	"gorm.io/gorm"
)

// CourseHandler handles course catalog requests
type CourseHandler struct {
	db *gorm.DB
}

// NewCourseHandler creates a new course handler
func NewCourseHandler(db *gorm.DB) *CourseHandler {
	return &CourseHandler{db: db}
}

// List returns published courses, paginated. Draft and archived courses are
// never visible here regardless of who asks.
func (h *CourseHandler) List(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 10)

	pagination := response.CalculatePagination(page, limit, 0)
	offset := (pagination.CurrentPage - 1) * pagination.PerPage

	query := h.db.Model(&model.Course{}).Where("status = ?", model.CourseStatusPublished)

	if search := c.Query("search"); search != "" {
		query = query.Where("title ILIKE ?", "%"+search+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return response.InternalServerError(c, "Failed to count courses")
	}

	var courses []model.Course
	if err := query.
		Order("created_at DESC").
		Offset(offset).
		Limit(pagination.PerPage).
		Find(&courses).Error; err != nil {
		return response.InternalServerError(c, "Failed to load courses")
	}

	return response.Paginated(c, courses, response.CalculatePagination(page, limit, total))
}

// Get returns a single published course by id
func (h *CourseHandler) Get(c *fiber.Ctx) error {
	id := c.Params("id")

	var course model.Course
	err := h.db.Where("id = ? AND status = ?", id, model.CourseStatusPublished).First(&course).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return response.NotFound(c, "Course not found")
	}
	if err != nil {
		return response.InternalServerError(c, "Failed to load course")
	}

	return response.Success(c, course)
}
