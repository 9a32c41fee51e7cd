package handlers

import (
	"countrypulse/services"

	"github.com/gofiber/fiber/v2"
)

type Handler struct {
	Countries *services.CountryService
	Summary   *services.SummaryService
}

func NewHandler(countries *services.CountryService, summary *services.SummaryService) *Handler {
	return &Handler{Countries: countries, Summary: summary}
}

// Register attaches all API routes. The image route must be registered
// before the :name route or fiber would capture "image" as a country name.
func (h *Handler) Register(app *fiber.App) {
	api := app.Group("/api")

	api.Post("/countries/refresh", h.RefreshCountries)
	api.Get("/countries/image", h.GetSummaryImage)
	api.Get("/countries", h.GetCountries)
	api.Get("/countries/:name", h.GetCountry)
	api.Delete("/countries/:name", h.DeleteCountry)
	api.Get("/status", h.GetStatus)
}
