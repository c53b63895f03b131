package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"clipbot/internal/database"
	"clipbot/internal/services"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	db    *database.MongoDB
	redis *services.RedisService
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db *database.MongoDB, redis *services.RedisService) *HealthHandler {
	return &HealthHandler{db: db, redis: redis}
}

// Handle responds with server health status
// GET /health
func (h *HealthHandler) Handle(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	mongoStatus := "up"
	if err := h.db.Ping(ctx); err != nil {
		mongoStatus = "down"
	}
	redisStatus := "up"
	if err := h.redis.Client().Ping(ctx).Err(); err != nil {
		redisStatus = "down"
	}

	status := fiber.StatusOK
	overall := "healthy"
	if mongoStatus == "down" || redisStatus == "down" {
		status = fiber.StatusServiceUnavailable
		overall = "degraded"
	}

	return c.Status(status).JSON(fiber.Map{
		"status":    overall,
		"mongo":     mongoStatus,
		"redis":     redisStatus,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
