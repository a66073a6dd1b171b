package license

import (
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"strings"
)

// KeyPrefix namespaces every issued license key.
const KeyPrefix = "COOLWAREX-"

// Signer issues and verifies license keys with a fixed keypair.
type Signer struct {
	keys *Keypair
}

func NewSigner(keys *Keypair) *Signer {
	return &Signer{keys: keys}
}

// Sign serializes the payload and returns
// PREFIX-<base64url(payload)>.<base64url(signature)>. The detached
// Ed25519 signature covers the raw JSON bytes, so the product can verify
// a key offline with nothing but the public key.
func (s *Signer) Sign(payload Payload) (string, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal license payload: %w", err)
	}

	signature := ed25519.Sign(s.keys.Private, payloadJSON)
	return KeyPrefix + base64urlEncode(payloadJSON) + "." + base64urlEncode(signature), nil
}

// Verify reports whether licenseKey carries a valid signature. It is a
// total function over attacker-controlled strings: any malformed input
// returns false, never an error or panic.
func (s *Signer) Verify(licenseKey string) bool {
	payloadBytes, signature, ok := splitKey(licenseKey)
	if !ok {
		return false
	}
	if len(signature) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(s.keys.Public, payloadBytes, signature)
}

// Decode extracts the payload from a license key without verifying it.
// Callers that need authenticity must call Verify first.
func (s *Signer) Decode(licenseKey string) (*Payload, error) {
	payloadBytes, _, ok := splitKey(licenseKey)
	if !ok {
		return nil, fmt.Errorf("malformed license key")
	}
	var payload Payload
	if err := json.Unmarshal(payloadBytes, &payload); err != nil {
		return nil, fmt.Errorf("decode license payload: %w", err)
	}
	return &payload, nil
}

// splitKey enforces the wire format: the prefix followed by exactly two
// non-empty base64url segments joined by a single dot.
func splitKey(licenseKey string) (payload, signature []byte, ok bool) {
	if !strings.HasPrefix(licenseKey, KeyPrefix) {
		return nil, nil, false
	}
	token := licenseKey[len(KeyPrefix):]

	parts := strings.Split(token, ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, nil, false
	}

	payload, err := base64urlDecode(parts[0])
	if err != nil {
		return nil, nil, false
	}
	signature, err = base64urlDecode(parts[1])
	if err != nil {
		return nil, nil, false
	}
	return payload, signature, true
}
