package services

import (
	"context"
	"log"
	"time"

	"github.com/coolwarex/backend/internal/config"
	"github.com/coolwarex/backend/internal/license"
	"github.com/coolwarex/backend/internal/store"
)

// LookupService re-sends the most recent license for an email address.
// The HTTP response is identical whether zero or many records match,
// whether the email is valid or not, and whether a rate limit tripped:
// delivery happens out of band by email, so the endpoint cannot be used
// as an existence oracle.
type LookupService struct {
	cfg     *config.Config
	limiter *store.Limiter
	records *store.FulfillmentStore
	email   EmailSender

	now func() time.Time
}

func NewLookupService(cfg *config.Config, limiter *store.Limiter, records *store.FulfillmentStore, email EmailSender) *LookupService {
	return &LookupService{
		cfg:     cfg,
		limiter: limiter,
		records: records,
		email:   email,
		now:     time.Now,
	}
}

// Lookup consumes both rate-limit axes, then re-emails the latest
// license if one exists. A non-nil error is a storage fault (safe to
// surface as 500); every other path returns nil so the caller can send
// the one generic response.
//
// The IP and email counters are independent: an abusive IP cannot dodge
// its quota by rotating emails, and a targeted email cannot be probed
// from many IPs beyond its own quota.
func (s *LookupService) Lookup(ctx context.Context, rawEmail, clientIP string) error {
	now := s.now()
	window := time.Duration(s.cfg.LookupWindowMs) * time.Millisecond
	email := license.NormalizeEmail(rawEmail)

	ipResult, err := s.limiter.Consume(ctx, store.LimitKey("lookup:ip", clientIP), window, s.cfg.LookupMaxAttempts, now)
	if err != nil {
		return err
	}
	emailResult, err := s.limiter.Consume(ctx, store.LimitKey("lookup:email", email), window, s.cfg.LookupMaxAttempts, now)
	if err != nil {
		return err
	}

	if !ipResult.Allowed || !emailResult.Allowed {
		log.Printf("license lookup rate limited: email=%s retry_after=%ds",
			license.MaskEmail(email), maxInt(ipResult.RetryAfterSeconds, emailResult.RetryAfterSeconds))
		return nil
	}

	if !license.IsValidEmail(email) {
		return nil
	}

	records, err := s.records.ListByEmailHash(ctx, license.SHA256Hex(email))
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	latest := records[0]
	if err := s.email.SendLicenseEmail(ctx, email, latest.LicenseKey, latest.OrderID); err != nil {
		// The response must not change shape on delivery failure.
		log.Printf("lookup email delivery failed: email=%s err=%v", license.MaskEmail(email), err)
		return nil
	}

	log.Printf("license lookup re-sent: email=%s license_key=%s",
		license.MaskEmail(email), license.MaskKey(latest.LicenseKey))
	return nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
