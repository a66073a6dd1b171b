package license

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSigner(t *testing.T) *Signer {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return NewSigner(&Keypair{Private: priv, Public: pub})
}

func TestSignVerifyRoundTrip(t *testing.T) {
	signer := testSigner(t)
	payload := BuildPayload("CoolAutoSorter", "lifetime", " A@B.com ", "cs_123", time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))

	key, err := signer.Sign(payload)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(key, KeyPrefix))
	assert.True(t, signer.Verify(key))

	decoded, err := signer.Decode(key)
	require.NoError(t, err)
	assert.Equal(t, payload, *decoded)
}

func TestPayloadSerializationIsFrozen(t *testing.T) {
	payload := Payload{
		Product:            "CoolAutoSorter",
		LicenseType:        "lifetime",
		IssuedAt:           "2024-01-01T00:00:00.000Z",
		OrderID:            "cs_1",
		PurchaserEmailHash: "abc123",
	}

	data, err := json.Marshal(payload)
	require.NoError(t, err)

	// Key order is part of the wire format: these bytes are what gets
	// signed, so this assertion must never need updating.
	assert.Equal(t,
		`{"product":"CoolAutoSorter","license_type":"lifetime","issued_at":"2024-01-01T00:00:00.000Z","order_id":"cs_1","purchaser_email_hash":"abc123"}`,
		string(data))
}

func TestBuildPayloadHashesNormalizedEmail(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	a := BuildPayload("CoolAutoSorter", "lifetime", " Buyer@Example.COM ", "cs_1", now)
	b := BuildPayload("CoolAutoSorter", "lifetime", "buyer@example.com", "cs_1", now)

	assert.Equal(t, a.PurchaserEmailHash, b.PurchaserEmailHash)
	assert.Equal(t, SHA256Hex("buyer@example.com"), a.PurchaserEmailHash)
	assert.Equal(t, "2024-06-01T12:00:00.000Z", a.IssuedAt)
}

func flipChar(s string, index int) string {
	replacement := byte('A')
	if s[index] == 'A' {
		replacement = 'B'
	}
	return s[:index] + string(replacement) + s[index+1:]
}

func TestVerifyDetectsTampering(t *testing.T) {
	signer := testSigner(t)
	payload := BuildPayload("CoolAutoSorter", "lifetime", "a@b.com", "cs_1", time.Now())
	key, err := signer.Sign(payload)
	require.NoError(t, err)

	token := strings.TrimPrefix(key, KeyPrefix)
	dot := strings.Index(token, ".")
	require.Greater(t, dot, 0)

	tamperedPayload := KeyPrefix + flipChar(token, 2)
	assert.False(t, signer.Verify(tamperedPayload), "payload tampering must fail verification")

	tamperedSig := KeyPrefix + flipChar(token, dot+3)
	assert.False(t, signer.Verify(tamperedSig), "signature tampering must fail verification")
}

func TestVerifyRejectsMalformedInput(t *testing.T) {
	signer := testSigner(t)
	valid, err := signer.Sign(BuildPayload("CoolAutoSorter", "lifetime", "a@b.com", "cs_1", time.Now()))
	require.NoError(t, err)

	cases := map[string]string{
		"empty":               "",
		"prefix only":         KeyPrefix,
		"missing prefix":      strings.TrimPrefix(valid, KeyPrefix),
		"zero dots":           KeyPrefix + "payloadonly",
		"two dots":            KeyPrefix + "a.b.c",
		"extra trailing dot":  valid + ".extra",
		"empty payload":       KeyPrefix + ".sig",
		"empty signature":     KeyPrefix + "payload.",
		"non-base64 segments": KeyPrefix + "$$$.@@@",
	}

	for name, input := range cases {
		assert.False(t, signer.Verify(input), "case %q must return false, not panic", name)
	}
}

func TestVerifyRejectsForeignKey(t *testing.T) {
	signer := testSigner(t)
	other := testSigner(t)

	key, err := other.Sign(BuildPayload("CoolAutoSorter", "lifetime", "a@b.com", "cs_1", time.Now()))
	require.NoError(t, err)

	assert.True(t, other.Verify(key))
	assert.False(t, signer.Verify(key))
}

func TestMaskKey(t *testing.T) {
	assert.Equal(t, "[redacted]", MaskKey(""))
	assert.Equal(t, "shor...", MaskKey("short"))
	assert.Equal(t, "COOLWAREX-ab...90abcdef", MaskKey("COOLWAREX-abcdefghij1234567890abcdef"))
}

func TestMaskEmail(t *testing.T) {
	assert.Equal(t, "[redacted-email]", MaskEmail("not-an-email"))
	assert.Equal(t, "a***@b.com", MaskEmail("a@b.com"))
	assert.Equal(t, "bu***@example.com", MaskEmail("Buyer@Example.com"))
}

func TestIsValidEmail(t *testing.T) {
	assert.True(t, IsValidEmail("a@b.com"))
	assert.True(t, IsValidEmail(" Buyer@Example.COM "))
	assert.False(t, IsValidEmail(""))
	assert.False(t, IsValidEmail("no-at-sign"))
	assert.False(t, IsValidEmail("missing@tld"))
	assert.False(t, IsValidEmail("spaces in@local.com"))
}
