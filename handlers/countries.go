package handlers

import (
	"errors"
	"net/http"

	"countrypulse/storage"
	"countrypulse/system"

	"github.com/gofiber/fiber/v2"
)

// GetCountries returns the stored snapshot, optionally filtered and sorted
// GET /api/countries?region=&currency=&sort=
func (h *Handler) GetCountries(c *fiber.Ctx) error {
	countries, err := h.Countries.ListCountries(c.Query("region"), c.Query("currency"), c.Query("sort"))
	if err != nil {
		system.Error("Failed to list countries: %v", err)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}
	return c.JSON(countries)
}

// GetCountry returns a single country by case-insensitive name
// GET /api/countries/:name
func (h *Handler) GetCountry(c *fiber.Ctx) error {
	country, err := h.Countries.GetCountry(c.Params("name"))
	if errors.Is(err, storage.ErrNotFound) {
		return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": "Country not found"})
	}
	if err != nil {
		system.Error("Failed to get country: %v", err)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}
	return c.JSON(country)
}

// DeleteCountry removes a single country by case-insensitive name
// DELETE /api/countries/:name
func (h *Handler) DeleteCountry(c *fiber.Ctx) error {
	err := h.Countries.DeleteCountry(c.Params("name"))
	if errors.Is(err, storage.ErrNotFound) {
		return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": "Country not found"})
	}
	if err != nil {
		system.Error("Failed to delete country: %v", err)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}
	return c.JSON(fiber.Map{"message": "Country deleted successfully"})
}
