package config

import (
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	// API
	APIPort int
	SiteURL string

	// Redis (blob store)
	RedisHost     string
	RedisPort     int
	RedisPassword string

	// Stripe
	StripeWebhookSecret    string
	StripeSecretKey        string
	StripePriceID          string
	StripeToleranceSeconds int

	// License signing
	LicenseSigningKeyB64 string
	Product              string
	LicenseType          string

	// Email delivery
	EmailAPIKey   string
	EmailFrom     string
	EmailProvider string

	// Admin API
	AdminJWTSecret string

	// Lookup rate limiting
	LookupWindowMs    int
	LookupMaxAttempts int
}

func Load() *Config {
	return &Config{
		// API
		APIPort: getEnvInt("API_PORT", 8080),
		SiteURL: getEnv("SITE_URL", "http://localhost:8888"),

		// Redis
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnvInt("REDIS_PORT", 6379),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		// Stripe
		StripeWebhookSecret:    getEnv("STRIPE_WEBHOOK_SECRET", ""),
		StripeSecretKey:        getEnv("STRIPE_SECRET_KEY", ""),
		StripePriceID:          getEnv("STRIPE_PRICE_ID", ""),
		StripeToleranceSeconds: getEnvInt("STRIPE_WEBHOOK_TOLERANCE_SECONDS", 300),

		// License signing
		LicenseSigningKeyB64: getEnv("LICENSE_SIGNING_SSH_PRIVATE_KEY_B64", ""),
		Product:              getEnv("LICENSE_PRODUCT", "CoolAutoSorter"),
		LicenseType:          getEnv("LICENSE_TYPE", "lifetime"),

		// Email
		EmailAPIKey:   getEnv("EMAIL_PROVIDER_API_KEY", ""),
		EmailFrom:     getEnv("EMAIL_FROM", "CoolWareX <coolwarex@proton.me>"),
		EmailProvider: getEnv("EMAIL_PROVIDER", ""),

		// Admin
		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),

		// Lookup rate limiting: 5 attempts per hour per identity axis
		LookupWindowMs:    getEnvInt("LOOKUP_RATE_WINDOW_MS", 60*60*1000),
		LookupMaxAttempts: getEnvInt("LOOKUP_RATE_MAX_ATTEMPTS", 5),
	}
}

// Validate checks that every secret the service cannot run without is
// present. Called once at startup so a misconfigured deploy fails
// immediately instead of at the first webhook delivery.
func (c *Config) Validate() error {
	if c.StripeWebhookSecret == "" {
		return fmt.Errorf("STRIPE_WEBHOOK_SECRET is required")
	}
	if c.LicenseSigningKeyB64 == "" {
		return fmt.Errorf("LICENSE_SIGNING_SSH_PRIVATE_KEY_B64 is required")
	}
	if c.StripeToleranceSeconds <= 0 {
		return fmt.Errorf("STRIPE_WEBHOOK_TOLERANCE_SECONDS must be positive")
	}
	if c.LookupWindowMs <= 0 || c.LookupMaxAttempts <= 0 {
		return fmt.Errorf("lookup rate limit window and max attempts must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
