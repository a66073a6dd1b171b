package handlers

import (
	"log"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/coolwarex/backend/internal/config"
	"github.com/coolwarex/backend/internal/license"
	"github.com/coolwarex/backend/internal/middleware"
	"github.com/coolwarex/backend/internal/store"
)

const updatesKeyPrefix = "updates:"

// UpdatesHandler handles product-update subscription requests
type UpdatesHandler struct {
	cfg     *config.Config
	kv      store.KV
	limiter *store.Limiter
}

// NewUpdatesHandler creates a new updates handler
func NewUpdatesHandler(cfg *config.Config, kv store.KV, limiter *store.Limiter) *UpdatesHandler {
	return &UpdatesHandler{cfg: cfg, kv: kv, limiter: limiter}
}

// subscriptionRecord stores only the hash; the subscriber list holds no
// plaintext addresses.
type subscriptionRecord struct {
	EmailHash string `json:"email_hash"`
	CreatedAt string `json:"created_at"`
}

// Subscribe records interest in product updates. Unlike lookup, this
// endpoint signals rate limiting openly with 429: it reveals nothing
// about license existence.
func (h *UpdatesHandler) Subscribe(c *fiber.Ctx) error {
	requestID := middleware.GetRequestID(c)

	var req struct {
		Email string `json:"email"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":     "Invalid request",
			"requestId": requestID,
		})
	}

	email := license.NormalizeEmail(req.Email)
	if !license.IsValidEmail(email) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":     "Valid email required",
			"requestId": requestID,
		})
	}

	window := time.Duration(h.cfg.LookupWindowMs) * time.Millisecond
	result, err := h.limiter.Consume(c.UserContext(),
		store.LimitKey("updates:ip", middleware.ClientIP(c)), window, h.cfg.LookupMaxAttempts, time.Now())
	if err != nil {
		log.Printf("updates subscription failed: request_id=%s err=%v", requestID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":     "Subscription failed",
			"requestId": requestID,
		})
	}
	if !result.Allowed {
		c.Set("Retry-After", strconv.Itoa(result.RetryAfterSeconds))
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"error":      "Too many requests. Please try later.",
			"retryAfter": result.RetryAfterSeconds,
			"requestId":  requestID,
		})
	}

	emailHash := license.SHA256Hex(email)
	record := subscriptionRecord{
		EmailHash: emailHash,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if err := store.SetJSON(c.UserContext(), h.kv, updatesKeyPrefix+emailHash, record); err != nil {
		log.Printf("updates subscription failed: request_id=%s err=%v", requestID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":     "Subscription failed",
			"requestId": requestID,
		})
	}

	return c.JSON(fiber.Map{"ok": true, "requestId": requestID})
}
