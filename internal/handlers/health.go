package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"conversa/internal/database"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	db *database.MongoDB
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db *database.MongoDB) *HealthHandler {
	return &HealthHandler{db: db}
}

// Handle responds with server health status
func (h *HealthHandler) Handle(c *fiber.Ctx) error {
	status := "healthy"
	dbStatus := "connected"
	if err := h.db.Ping(c.Context()); err != nil {
		status = "degraded"
		dbStatus = "unreachable"
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":    status,
		"database":  dbStatus,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
