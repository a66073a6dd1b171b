package stripe

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultTolerance bounds the replay window for a captured signature.
const DefaultTolerance = 300 * time.Second

// SignatureHeader is the parsed Stripe-Signature header. V1 may carry
// several signatures while Stripe rotates the endpoint secret; all of
// them must be checked.
type SignatureHeader struct {
	Timestamp    int64
	HasTimestamp bool
	V1           []string
}

// ParseSignatureHeader parses the comma-separated k=v header. Unknown
// schemes and malformed elements are skipped, not errors: verification
// fails closed later if nothing usable was found.
func ParseSignatureHeader(header string) SignatureHeader {
	var parsed SignatureHeader

	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		idx := strings.Index(part, "=")
		if idx <= 0 {
			continue
		}
		key, value := part[:idx], part[idx+1:]

		switch key {
		case "t":
			ts, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				continue
			}
			parsed.Timestamp = ts
			parsed.HasTimestamp = true
		case "v1":
			if value != "" {
				parsed.V1 = append(parsed.V1, value)
			}
		}
	}
	return parsed
}

// VerifySignature checks an inbound webhook delivery. rawBody must be
// the exact transport bytes; re-serializing the JSON before this check
// invalidates the signature. The expected value is HMAC-SHA256 over
// "{timestamp}." + rawBody, and a delivery is accepted when any v1
// signature matches in constant time and the timestamp is within
// tolerance of now.
func VerifySignature(rawBody []byte, header, secret string, tolerance time.Duration, now time.Time) bool {
	if header == "" || secret == "" || len(rawBody) == 0 {
		return false
	}
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}

	parsed := ParseSignatureHeader(header)
	if !parsed.HasTimestamp || len(parsed.V1) == 0 {
		return false
	}

	delta := now.Unix() - parsed.Timestamp
	if delta < 0 {
		delta = -delta
	}
	if delta > int64(tolerance/time.Second) {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", parsed.Timestamp)
	mac.Write(rawBody)
	expected := mac.Sum(nil)

	for _, candidate := range parsed.V1 {
		candidateBytes, err := hex.DecodeString(candidate)
		if err != nil || len(candidateBytes) != len(expected) {
			continue
		}
		if hmac.Equal(candidateBytes, expected) {
			return true
		}
	}
	return false
}
