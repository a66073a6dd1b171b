package license

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"
)

// base64urlEncode encodes without padding, matching the URL-safe
// convention used in issued license keys.
func base64urlEncode(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}

// base64urlDecode accepts both padded and unpadded input. License keys
// are attacker-controlled strings, so the caller must treat an error as
// a plain rejection.
func base64urlDecode(value string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(value, "="))
}

// SHA256Hex returns the lowercase hex SHA-256 digest of value. Used for
// purchaser email hashes and rate-limit identities.
func SHA256Hex(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
