package handlers

import (
	"net/http"

	"countrypulse/system"

	"github.com/gofiber/fiber/v2"
)

// GetStatus reports record count and last refresh timestamp
// GET /api/status
func (h *Handler) GetStatus(c *fiber.Ctx) error {
	status, err := h.Countries.Status()
	if err != nil {
		system.Error("Failed to read status: %v", err)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}
	return c.JSON(status)
}
