package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func checkoutEventBody(eventID, sessionID, email string) []byte {
	return []byte(fmt.Sprintf(`{"id":%q,"type":"checkout.session.completed","data":{"object":{"id":%q,"payment_status":"paid","customer_details":{"email":%q}}}}`,
		eventID, sessionID, email))
}

func TestWebhookHealthAckOnGet(t *testing.T) {
	ta := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/api/webhooks/stripe", nil)
	resp, err := ta.app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "CoolAutoSorter webhook endpoint", body["message"])
	assert.NotEmpty(t, body["requestId"])
}

func TestWebhookFulfillsSignedEvent(t *testing.T) {
	ta := newTestApp(t)

	payload := checkoutEventBody("evt_1", "cs_1", "buyer@example.com")
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Stripe-Signature", signedWebhookHeader(payload))

	resp, err := ta.app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, true, body["ok"])

	record, err := ta.records.GetBySession(req.Context(), "cs_1")
	require.NoError(t, err)
	assert.True(t, ta.signer.Verify(record.LicenseKey))
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	ta := newTestApp(t)

	payload := checkoutEventBody("evt_2", "cs_2", "buyer@example.com")
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Stripe-Signature", "t=123,v1=deadbeef")

	resp, err := ta.app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "Invalid signature", body["error"])
}

func TestWebhookDuplicateEventAcked(t *testing.T) {
	ta := newTestApp(t)

	payload := checkoutEventBody("evt_3", "cs_3", "buyer@example.com")
	for i, wantDuplicate := range []bool{false, true} {
		req := httptest.NewRequest(http.MethodPost, "/api/webhooks/stripe", bytes.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Stripe-Signature", signedWebhookHeader(payload))

		resp, err := ta.app.Test(req)
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, resp.StatusCode, "delivery %d", i)
		body := decodeBody(t, resp)
		if wantDuplicate {
			assert.Equal(t, true, body["duplicate"])
		} else {
			assert.Nil(t, body["duplicate"])
		}
	}
}

func TestWebhookIgnoresUnhandledEventType(t *testing.T) {
	ta := newTestApp(t)

	payload := []byte(`{"id":"evt_4","type":"invoice.paid","data":{"object":{}}}`)
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Stripe-Signature", signedWebhookHeader(payload))

	resp, err := ta.app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, true, body["ignored"])
	assert.Equal(t, "unhandled_event_type", body["reason"])
}
