package handlers

import (
	"errors"
	"net/http"

	"countrypulse/services"
	"countrypulse/system"

	"github.com/gofiber/fiber/v2"
)

// RefreshCountries runs one synchronous refresh cycle
// POST /api/countries/refresh
func (h *Handler) RefreshCountries(c *fiber.Ctx) error {
	_, err := h.Countries.Refresh(c.UserContext())

	var fetchErr *services.FetchError
	if errors.As(err, &fetchErr) {
		return c.Status(http.StatusServiceUnavailable).JSON(fiber.Map{
			"error":   "External data source unavailable",
			"details": fetchErr.Error(),
		})
	}
	if err != nil {
		system.Error("Refresh failed: %v", err)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}

	return c.JSON(fiber.Map{"message": "Countries refreshed successfully"})
}
