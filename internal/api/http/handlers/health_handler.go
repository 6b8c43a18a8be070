package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/task-service/internal/api/dto"
)

// Pinger reports connectivity to a backing store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler responds to liveness and readiness probes.
type HealthHandler struct {
	serviceName string
	version     string
	database    Pinger
	cache       Pinger
}

// NewHealthHandler returns a new handler instance. cache may be nil.
func NewHealthHandler(serviceName, version string, database, cache Pinger) *HealthHandler {
	return &HealthHandler{serviceName: serviceName, version: version, database: database, cache: cache}
}

// Live reports service liveness.
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return c.JSON(dto.Success("Backend Server is Running!", fiber.Map{
		"service":   h.serviceName,
		"version":   h.version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}))
}

// Ready reports store connectivity. Only the database decides readiness.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	database := connectivity(ctx, h.database)
	data := fiber.Map{"database": database}
	if h.cache != nil {
		data["cache"] = connectivity(ctx, h.cache)
	}

	if database != "Connected" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.Envelope{
			Success: false,
			Message: "Server is unhealthy",
			Data:    data,
		})
	}
	return c.JSON(dto.Success("Server is healthy", data))
}

func connectivity(ctx context.Context, p Pinger) string {
	if p == nil || p.Ping(ctx) != nil {
		return "Disconnected"
	}
	return "Connected"
}
