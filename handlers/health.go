package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/learnhubhq/learnhub-api/database"
)

// HealthHandler reports service liveness and database reachability
type HealthHandler struct {
	store *database.GORMStore
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(store *database.GORMStore) *HealthHandler {
	return &HealthHandler{store: store}
}

// Check returns 200 when the service and its database are reachable
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	overall := "ok"
	dbStatus := "up"
	status := fiber.StatusOK

	if err := h.store.HealthCheck(); err != nil {
		overall = "degraded"
		dbStatus = "down"
		status = fiber.StatusServiceUnavailable
	}

	return c.Status(status).JSON(fiber.Map{
		"status":   overall,
		"database": dbStatus,
	})
}
