package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/coolwarex/backend/internal/middleware"
	"github.com/coolwarex/backend/internal/services"
)

// WebhookHandler handles Stripe webhook deliveries
type WebhookHandler struct {
	fulfillment *services.FulfillmentService
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(fulfillment *services.FulfillmentService) *WebhookHandler {
	return &WebhookHandler{fulfillment: fulfillment}
}

// HandleStripe processes one webhook delivery. Registered for all
// methods: non-POST requests get a health ack so the endpoint can be
// probed in a browser.
func (h *WebhookHandler) HandleStripe(c *fiber.Ctx) error {
	requestID := middleware.GetRequestID(c)

	if c.Method() != fiber.MethodPost {
		return c.JSON(fiber.Map{
			"ok":        true,
			"message":   "CoolAutoSorter webhook endpoint",
			"requestId": requestID,
		})
	}

	// c.Body() is the exact transport byte sequence; the signature is
	// computed over it and any re-serialization would break verification.
	outcome, err := h.fulfillment.ProcessWebhook(c.UserContext(), c.Body(), c.Get("Stripe-Signature"))
	if err != nil {
		log.Printf("stripe webhook processing failed: request_id=%s event_id=%s err=%v", requestID, outcome.EventID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":     "Webhook processing failed",
			"requestId": requestID,
		})
	}

	switch outcome.Status {
	case services.OutcomeRejected:
		log.Printf("stripe webhook rejected: request_id=%s reason=%s", requestID, outcome.Reason)
		return c.Status(outcome.HTTPStatus).JSON(fiber.Map{
			"error":     rejectionMessage(outcome.Reason),
			"requestId": requestID,
		})
	case services.OutcomeDuplicate:
		return c.JSON(fiber.Map{"ok": true, "duplicate": true, "requestId": requestID})
	case services.OutcomeIgnored:
		return c.JSON(fiber.Map{"ok": true, "ignored": true, "reason": outcome.Reason, "requestId": requestID})
	default:
		return c.JSON(fiber.Map{"ok": true, "requestId": requestID})
	}
}

// rejectionMessage maps internal reasons to the few client-safe error
// strings. Signature failures never say why.
func rejectionMessage(reason string) string {
	switch reason {
	case "invalid_signature":
		return "Invalid signature"
	case "invalid_json":
		return "Invalid JSON payload"
	case "missing_event_fields":
		return "Missing event id/type"
	default:
		return "Webhook processing failed"
	}
}
