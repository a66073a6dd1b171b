package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/coolwarex/backend/internal/middleware"
	"github.com/coolwarex/backend/internal/services"
)

// GenericLookupMessage is the single response body for every lookup
// request. One message for matches, misses, invalid emails and exhausted
// rate limits keeps the endpoint useless as an existence oracle.
const GenericLookupMessage = "If a matching purchase exists, the license key has been re-sent to that email address."

// LookupHandler handles purchaser license lookup requests
type LookupHandler struct {
	lookup *services.LookupService
}

// NewLookupHandler creates a new lookup handler
func NewLookupHandler(lookup *services.LookupService) *LookupHandler {
	return &LookupHandler{lookup: lookup}
}

// LookupLicense accepts {email} and always answers with the generic
// message; the license itself only ever travels by email.
func (h *LookupHandler) LookupLicense(c *fiber.Ctx) error {
	requestID := middleware.GetRequestID(c)

	var req struct {
		Email string `json:"email"`
	}
	// A malformed body gets the same generic shape as everything else.
	if err := c.BodyParser(&req); err != nil {
		return c.JSON(fiber.Map{"ok": true, "message": GenericLookupMessage, "requestId": requestID})
	}

	if err := h.lookup.Lookup(c.UserContext(), req.Email, middleware.ClientIP(c)); err != nil {
		log.Printf("license lookup failed: request_id=%s err=%v", requestID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":     "Lookup failed",
			"requestId": requestID,
		})
	}

	return c.JSON(fiber.Map{"ok": true, "message": GenericLookupMessage, "requestId": requestID})
}
