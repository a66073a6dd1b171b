package license

import (
	"regexp"
	"strings"
	"time"
)

// issuedAtFormat is millisecond-precision ISO-8601 UTC. Frozen: changing
// it changes the signed bytes of every future key.
const issuedAtFormat = "2006-01-02T15:04:05.000Z"

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Payload is the signed content of a license key. The JSON serialization
// of this struct (field order included) is exactly what gets signed, so
// the field order below is frozen; reordering fields would invalidate
// every previously issued key on re-verification of fresh signatures.
type Payload struct {
	Product            string `json:"product"`
	LicenseType        string `json:"license_type"`
	IssuedAt           string `json:"issued_at"`
	OrderID            string `json:"order_id"`
	PurchaserEmailHash string `json:"purchaser_email_hash"`
}

// BuildPayload constructs the payload for a fulfilled order. The email is
// normalized before hashing so lookups hash to the same value later.
func BuildPayload(product, licenseType, purchaserEmail, orderID string, now time.Time) Payload {
	return Payload{
		Product:            product,
		LicenseType:        licenseType,
		IssuedAt:           now.UTC().Format(issuedAtFormat),
		OrderID:            orderID,
		PurchaserEmailHash: SHA256Hex(NormalizeEmail(purchaserEmail)),
	}
}

// NormalizeEmail trims and lowercases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsValidEmail applies the same permissive shape check the checkout flow
// uses. Unusable webhook data is ignored, not rejected, so this only
// needs to filter obvious garbage.
func IsValidEmail(email string) bool {
	return emailRegex.MatchString(NormalizeEmail(email))
}

// MaskKey redacts a license key for logs: first 12 and last 8 characters
// only.
func MaskKey(licenseKey string) string {
	if licenseKey == "" {
		return "[redacted]"
	}
	if len(licenseKey) < 20 {
		if len(licenseKey) > 4 {
			licenseKey = licenseKey[:4]
		}
		return licenseKey + "..."
	}
	return licenseKey[:12] + "..." + licenseKey[len(licenseKey)-8:]
}

// MaskEmail redacts an email address for logs, keeping at most the first
// two characters of the local part.
func MaskEmail(email string) string {
	text := NormalizeEmail(email)
	at := strings.Index(text, "@")
	if text == "" || at < 0 {
		return "[redacted-email]"
	}
	local, domain := text[:at], text[at+1:]
	if len(local) <= 2 {
		if local == "" {
			return "***@" + domain
		}
		return local[:1] + "***@" + domain
	}
	return local[:2] + "***@" + domain
}
