package handlers

import (
	"bytes"
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/coolwarex/backend/internal/config"
	"github.com/coolwarex/backend/internal/license"
	"github.com/coolwarex/backend/internal/middleware"
	"github.com/coolwarex/backend/internal/services"
	"github.com/coolwarex/backend/internal/store"
)

const testWebhookSecret = "whsec_test"

type testApp struct {
	app     *fiber.App
	cfg     *config.Config
	kv      *store.RedisKV
	records *store.FulfillmentStore
	keys    *license.Keypair
	signer  *license.Signer
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	cfg := &config.Config{
		StripeWebhookSecret:    testWebhookSecret,
		StripeToleranceSeconds: 300,
		Product:                "CoolAutoSorter",
		LicenseType:            "lifetime",
		LookupWindowMs:         60 * 60 * 1000,
		LookupMaxAttempts:      5,
		AdminJWTSecret:         "admin_test_secret",
	}

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	kv := store.NewRedisKV(client)

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	keys := &license.Keypair{Private: priv, Public: pub}
	signer := license.NewSigner(keys)

	records := store.NewFulfillmentStore(kv)
	limiter := store.NewLimiter(kv)
	emailService := services.NewEmailService(cfg) // no API key: sends are skipped
	fulfillment := services.NewFulfillmentService(cfg, kv, records, signer, nil, emailService)
	lookup := services.NewLookupService(cfg, limiter, records, emailService)

	app := fiber.New()
	app.Use(middleware.RequestID())

	api := app.Group("/api")
	api.Get("/health", NewHealthHandler().Status)
	api.All("/webhooks/stripe", NewWebhookHandler(fulfillment).HandleStripe)
	api.Post("/license/lookup", NewLookupHandler(lookup).LookupLicense)
	api.Post("/updates/subscribe", NewUpdatesHandler(cfg, kv, limiter).Subscribe)

	admin := api.Group("/admin", middleware.AdminRequired(cfg))
	licenseHandler := NewLicenseHandler(cfg, keys, signer)
	admin.Get("/license/debug", licenseHandler.DebugKey)
	admin.Post("/license/verify", licenseHandler.VerifyKey)

	return &testApp{app: app, cfg: cfg, kv: kv, records: records, keys: keys, signer: signer}
}

func (ta *testApp) post(t *testing.T, path string, body interface{}, headers map[string]string) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := ta.app.Test(req, int(5*time.Second/time.Millisecond))
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &body))
	return body
}

func signedWebhookHeader(body []byte) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(testWebhookSecret))
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(body)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}
