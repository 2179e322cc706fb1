package auth

import (
	"github.com/gofiber/fiber/v2"
	"github.com/learnhubhq/learnhub-api/model"
	"github.com/learnhubhq/learnhub-api/utils/middleware"
	"github.com/learnhubhq/learnhub-api/utils/response"
)

// Profile returns the authenticated user's profile
func (h *AuthHandler) Profile(c *fiber.Ctx) error {
	claims, ok := middleware.GetClaims(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	var user model.User
	if err := h.db.Where("id = ?", claims.UserID).First(&user).Error; err != nil {
		return response.NotFound(c, "User not found")
	}

	return response.Success(c, toUserResponse(&user))
}
