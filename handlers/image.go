package handlers

import (
	"net/http"

	"countrypulse/system"

	"github.com/gofiber/fiber/v2"
)

// GetSummaryImage serves the rendered snapshot summary, regenerating it
// lazily when missing
// GET /api/countries/image
func (h *Handler) GetSummaryImage(c *fiber.Ctx) error {
	path, err := h.Summary.Path()
	if err != nil {
		system.Error("Failed to render summary image: %v", err)
		return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": "Summary image not found"})
	}

	c.Set(fiber.HeaderContentDisposition, `inline; filename="summary.png"`)
	return c.SendFile(path)
}
