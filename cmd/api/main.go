package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/coolwarex/backend/internal/config"
	"github.com/coolwarex/backend/internal/handlers"
	"github.com/coolwarex/backend/internal/license"
	"github.com/coolwarex/backend/internal/middleware"
	"github.com/coolwarex/backend/internal/services"
	"github.com/coolwarex/backend/internal/store"
	"github.com/coolwarex/backend/internal/stripe"
)

func main() {
	// Load and validate configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Load signing key material; a bad key must stop the deploy here
	keys, err := license.LoadKeypair(cfg.LicenseSigningKeyB64)
	if err != nil {
		log.Fatalf("Failed to load license signing key: %v", err)
	}
	signer := license.NewSigner(keys)

	// Connect to Redis (the blob store)
	kv, err := store.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer kv.Close()

	records := store.NewFulfillmentStore(kv)
	limiter := store.NewLimiter(kv)

	var stripeClient *stripe.Client
	if cfg.StripeSecretKey != "" {
		stripeClient = stripe.NewClient(cfg.StripeSecretKey)
	} else {
		log.Println("Warning: STRIPE_SECRET_KEY not set, session re-fetch and checkout creation disabled")
	}

	emailService := services.NewEmailService(cfg)
	fulfillment := services.NewFulfillmentService(cfg, kv, records, signer, stripeClient, emailService)
	lookup := services.NewLookupService(cfg, limiter, records, emailService)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "CoolWareX License API v1.0",
		ServerHeader: "CoolWareX",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":     "Request failed",
				"requestId": middleware.GetRequestID(c),
			})
		},
	})

	app.Use(recover.New())
	app.Use(compress.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Logger())
	app.Use(middleware.CORS())

	// Handlers
	healthHandler := handlers.NewHealthHandler()
	webhookHandler := handlers.NewWebhookHandler(fulfillment)
	lookupHandler := handlers.NewLookupHandler(lookup)
	checkoutHandler := handlers.NewCheckoutHandler(cfg, stripeClient)
	updatesHandler := handlers.NewUpdatesHandler(cfg, kv, limiter)
	licenseHandler := handlers.NewLicenseHandler(cfg, keys, signer)

	// Routes
	api := app.Group("/api")
	api.Get("/health", healthHandler.Status)
	api.All("/webhooks/stripe", webhookHandler.HandleStripe)
	api.Post("/license/lookup", lookupHandler.LookupLicense)
	api.Post("/checkout/session", checkoutHandler.CreateSession)
	api.Post("/updates/subscribe", updatesHandler.Subscribe)

	admin := api.Group("/admin", middleware.AdminRequired(cfg))
	admin.Get("/license/debug", licenseHandler.DebugKey)
	admin.Post("/license/verify", licenseHandler.VerifyKey)

	// Start server
	go func() {
		addr := fmt.Sprintf(":%d", cfg.APIPort)
		log.Printf("License API listening on %s", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")
	if err := app.Shutdown(); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}
