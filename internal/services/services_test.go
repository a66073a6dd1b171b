package services

import (
	"context"
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/coolwarex/backend/internal/config"
	"github.com/coolwarex/backend/internal/license"
	"github.com/coolwarex/backend/internal/store"
)

const testWebhookSecret = "whsec_test"

func testConfig() *config.Config {
	return &config.Config{
		StripeWebhookSecret:    testWebhookSecret,
		StripeToleranceSeconds: 300,
		Product:                "CoolAutoSorter",
		LicenseType:            "lifetime",
		LookupWindowMs:         60 * 60 * 1000,
		LookupMaxAttempts:      5,
	}
}

func newTestKV(t *testing.T) *store.RedisKV {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return store.NewRedisKV(client)
}

func newTestSigner(t *testing.T) *license.Signer {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return license.NewSigner(&license.Keypair{Private: priv, Public: pub})
}

type sentEmail struct {
	To         string
	LicenseKey string
	OrderID    string
}

type fakeEmailSender struct {
	sent []sentEmail
	err  error
}

func (f *fakeEmailSender) SendLicenseEmail(_ context.Context, to, licenseKey, orderID string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentEmail{To: to, LicenseKey: licenseKey, OrderID: orderID})
	return nil
}

// signedHeader computes a valid Stripe-Signature header for body.
func signedHeader(timestamp int64, body []byte) string {
	mac := hmac.New(sha256.New, []byte(testWebhookSecret))
	fmt.Fprintf(mac, "%d.", timestamp)
	mac.Write(body)
	return fmt.Sprintf("t=%d,v1=%s", timestamp, hex.EncodeToString(mac.Sum(nil)))
}

func checkoutEventBody(eventID, eventType, sessionID, paymentStatus, email string) []byte {
	return []byte(fmt.Sprintf(
		`{"id":%q,"type":%q,"data":{"object":{"id":%q,"payment_status":%q,"customer_details":{"email":%q}}}}`,
		eventID, eventType, sessionID, paymentStatus, email,
	))
}

func frozenClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}
