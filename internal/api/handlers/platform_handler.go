package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	config "github.com/creatorpulse/metrics-api/configs"
	"github.com/creatorpulse/metrics-api/internal/service"
)

const oauthMessageSource = "creatorpulse-oauth"

type PlatformHandler struct {
	cs  service.ConnectService
	cfg config.Config
}

func NewPlatformHandler(cs service.ConnectService, cfg config.Config) *PlatformHandler {
	return &PlatformHandler{
		cs:  cs,
		cfg: cfg,
	}
}

// Connect starts the authorization flow and hands the frontend the URL to
// open in a popup.
func (h *PlatformHandler) Connect(c *fiber.Ctx) error {
	userID := GetUserID(c)
	platform := c.Params("platform")
	forceReconnect := c.QueryBool("force", false)

	info, err := h.cs.BeginConnect(c.Context(), userID, platform, forceReconnect)
	if err != nil {
		if errors.Is(err, service.ErrUnknownPlatform) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "unknown platform",
			})
		}
		slog.Info(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "unable to start connection",
		})
	}

	return c.JSON(info)
}

// CallbackHandler is where the platform redirects back to. Whatever happens,
// the response is a self-closing page that reports the outcome to the window
// that opened the popup.
func (h *PlatformHandler) CallbackHandler(c *fiber.Ctx) error {
	state := c.Query("state")
	code := c.Query("code")
	providerError := c.Query("error")
	errorDescription := c.Query("error_description")

	if providerError != "" {
		// The state is burned even though the provider said no; a retry
		// has to start a fresh flow.
		h.cs.AbortCallback(c.Context(), state)
		message := errorDescription
		if message == "" {
			message = "authorization was denied"
		}
		return h.popupResponse(c, "error", message)
	}

	if code == "" {
		h.cs.AbortCallback(c.Context(), state)
		return h.popupResponse(c, "error", "authorization code is missing")
	}

	_, err := h.cs.CompleteCallback(c.Context(), state, code)
	if err != nil {
		slog.Info(err.Error())
		switch {
		case errors.Is(err, service.ErrStateInvalid):
			return h.popupResponse(c, "error", "this authorization link expired or was already used, please try again")
		case errors.Is(err, service.ErrNoEligibleAccount):
			return h.popupResponse(c, "error", "no eligible business account was found, check the permissions you granted")
		default:
			return h.popupResponse(c, "error", "something went wrong while connecting the account")
		}
	}

	return h.popupResponse(c, "success", "account connected")
}

// popupResponse posts a structured message to the opener window and closes
// the popup. This is the terminal step of the OAuth flow.
func (h *PlatformHandler) popupResponse(c *fiber.Ctx, status, message string) error {
	payload, err := json.Marshal(fiber.Map{
		"source":  oauthMessageSource,
		"status":  status,
		"message": message,
	})
	if err != nil {
		return err
	}

	body := fmt.Sprintf(`<!DOCTYPE html>
<html>
<body>
<script>
if (window.opener) {
	window.opener.postMessage(%s, %q);
}
window.close();
</script>
</body>
</html>`, payload, h.cfg.FrontendURL)

	c.Type("html")
	return c.SendString(body)
}

// Status reads the connection state straight from the stored token row.
// No row means connected=false, never an error.
func (h *PlatformHandler) Status(c *fiber.Ctx) error {
	userID := GetUserID(c)
	platform := c.Params("platform")

	status, err := h.cs.Status(c.Context(), userID, platform)
	if err != nil {
		if errors.Is(err, service.ErrUnknownPlatform) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "unknown platform",
			})
		}
		slog.Info(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "unable to read connection status",
		})
	}

	return c.JSON(status)
}

func (h *PlatformHandler) Disconnect(c *fiber.Ctx) error {
	userID := GetUserID(c)
	platform := c.Params("platform")

	if err := h.cs.Disconnect(c.Context(), userID, platform); err != nil {
		if errors.Is(err, service.ErrNotConnected) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "platform is not connected",
			})
		}
		slog.Info(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "unable to disconnect account",
		})
	}

	return c.SendStatus(fiber.StatusOK)
}
