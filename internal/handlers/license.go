package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/coolwarex/backend/internal/config"
	"github.com/coolwarex/backend/internal/license"
	"github.com/coolwarex/backend/internal/middleware"
)

// LicenseHandler handles admin license inspection requests
type LicenseHandler struct {
	cfg    *config.Config
	keys   *license.Keypair
	signer *license.Signer
}

// NewLicenseHandler creates a new license handler
func NewLicenseHandler(cfg *config.Config, keys *license.Keypair, signer *license.Signer) *LicenseHandler {
	return &LicenseHandler{cfg: cfg, keys: keys, signer: signer}
}

// DebugKey returns the derived public key and a signed example key, so
// ops can confirm the deployed signing material matches what the
// product builds verify against.
func (h *LicenseHandler) DebugKey(c *fiber.Ctx) error {
	payload := license.Payload{
		Product:            h.cfg.Product,
		LicenseType:        h.cfg.LicenseType,
		IssuedAt:           time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Format("2006-01-02T15:04:05.000Z"),
		OrderID:            "debug_order_123",
		PurchaserEmailHash: "debug_email_hash",
	}

	exampleKey, err := h.signer.Sign(payload)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Signing failed",
		})
	}

	return c.JSON(fiber.Map{
		"derivedPublicKeyB64": h.keys.PublicKeyB64(),
		"exampleLicenseKey":   exampleKey,
	})
}

// VerifyKey checks a submitted license key. The key is echoed back only
// in masked form.
func (h *LicenseHandler) VerifyKey(c *fiber.Ctx) error {
	requestID := middleware.GetRequestID(c)

	var req struct {
		LicenseKey string `json:"license_key"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":     "Invalid request",
			"requestId": requestID,
		})
	}

	valid := h.signer.Verify(req.LicenseKey)
	response := fiber.Map{
		"valid":       valid,
		"license_key": license.MaskKey(req.LicenseKey),
		"requestId":   requestID,
	}

	if valid {
		if payload, err := h.signer.Decode(req.LicenseKey); err == nil {
			response["payload"] = payload
		}
	}

	return c.JSON(response)
}
