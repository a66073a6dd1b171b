package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/coolwarex/backend/internal/config"
	"github.com/coolwarex/backend/internal/middleware"
	"github.com/coolwarex/backend/internal/stripe"
)

// CheckoutHandler creates Stripe-hosted checkout sessions
type CheckoutHandler struct {
	cfg          *config.Config
	stripeClient *stripe.Client
}

// NewCheckoutHandler creates a new checkout handler
func NewCheckoutHandler(cfg *config.Config, stripeClient *stripe.Client) *CheckoutHandler {
	return &CheckoutHandler{cfg: cfg, stripeClient: stripeClient}
}

// CreateSession returns the hosted checkout URL the marketing site
// redirects the buyer to.
func (h *CheckoutHandler) CreateSession(c *fiber.Ctx) error {
	requestID := middleware.GetRequestID(c)

	if h.stripeClient == nil || h.cfg.StripePriceID == "" {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":     "Missing Stripe configuration",
			"requestId": requestID,
		})
	}

	var req struct {
		Source string `json:"source"`
	}
	if err := c.BodyParser(&req); err != nil {
		req.Source = ""
	}
	source := req.Source
	if source == "" {
		source = "website"
	}

	session, err := h.stripeClient.CreateCheckoutSession(c.UserContext(), stripe.CheckoutParams{
		PriceID:    h.cfg.StripePriceID,
		SuccessURL: h.cfg.SiteURL + "/success.html?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  h.cfg.SiteURL + "/cancel.html",
		Source:     source,
	})
	if err != nil {
		log.Printf("checkout session creation failed: request_id=%s err=%v", requestID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":     "Checkout session creation failed",
			"requestId": requestID,
		})
	}

	return c.JSON(fiber.Map{
		"id":        session.ID,
		"url":       session.URL,
		"requestId": requestID,
	})
}
