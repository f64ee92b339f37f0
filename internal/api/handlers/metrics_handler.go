package handlers

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/creatorpulse/metrics-api/internal/service"
)

type MetricsHandler struct {
	s service.MetricsService
}

func NewMetricsHandler(service service.MetricsService) *MetricsHandler {
	return &MetricsHandler{s: service}
}

func (h *MetricsHandler) Summary(c *fiber.Ctx) error {
	userID := GetUserID(c)

	summary, err := h.s.Summary(c.Context(), userID)
	if err != nil {
		slog.Info(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "unable to compute metrics summary",
		})
	}

	return c.JSON(summary)
}

func (h *MetricsHandler) Insights(c *fiber.Ctx) error {
	userID := GetUserID(c)
	days := c.QueryInt("days", 30)

	insights, err := h.s.Insights(c.Context(), userID, days)
	if err != nil {
		slog.Info(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "unable to load account insights",
		})
	}

	return c.JSON(fiber.Map{"insights": insights})
}
