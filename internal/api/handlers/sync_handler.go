package handlers

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	config "github.com/creatorpulse/metrics-api/configs"
	"github.com/creatorpulse/metrics-api/internal/models"
	"github.com/creatorpulse/metrics-api/internal/service"
	"github.com/creatorpulse/metrics-api/internal/transfer"
)

type SyncHandler struct {
	ss  service.SyncService
	cfg config.Config
}

func NewSyncHandler(cfg config.Config, ss service.SyncService) *SyncHandler {
	return &SyncHandler{ss: ss, cfg: cfg}
}

// SyncPlatform runs a sync for the calling user's account on one platform
// and returns the per-item outcome. The run is synchronous: when the
// response arrives, the snapshots are already written.
func (h *SyncHandler) SyncPlatform(c *fiber.Ctx) error {
	userID := GetUserID(c)
	platform := c.Params("platform")

	if platform != models.PlatformYoutube && platform != models.PlatformInstagram {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "unknown platform",
		})
	}

	result, err := h.ss.SyncUser(c.Context(), userID, platform)
	if err != nil {
		if errors.Is(err, service.ErrReconnectRequired) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "the connected account needs to be reconnected",
			})
		}
		slog.Info(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "sync failed",
		})
	}

	return c.JSON(result)
}

// SyncAll is the shared-secret batch trigger hit by the external scheduler.
// Both platform passes always run; a failure on one side degrades the
// status code instead of aborting the other side.
func (h *SyncHandler) SyncAll(c *fiber.Ctx) error {
	secret := c.Query("secret")
	if h.cfg.CronSecret == "" || secret != h.cfg.CronSecret {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "invalid secret",
		})
	}

	batch := &transfer.BatchSyncResult{}

	ytResult, err := h.ss.SyncAllForPlatform(c.Context())
	if err != nil {
		slog.Info(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "youtube batch sync failed",
		})
	}
	batch.Youtube = ytResult

	igResult, err := h.ss.SyncAccounts(c.Context())
	if err != nil {
		slog.Info(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "instagram batch sync failed",
		})
	}
	batch.Instagram = igResult

	status := fiber.StatusOK
	if !ytResult.Success || !igResult.Success {
		status = fiber.StatusMultiStatus
	}

	return c.Status(status).JSON(batch)
}
