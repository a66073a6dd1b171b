package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/coolwarex/backend/internal/config"
)

const (
	resendEndpoint   = "https://api.resend.com/emails"
	sendgridEndpoint = "https://api.sendgrid.com/v3/mail/send"

	licenseEmailSubject = "Your CoolAutoSorter License Key"
)

var fromAddressRegex = regexp.MustCompile(`<(.*)>`)

// EmailSender dispatches the plaintext license key to a purchaser.
type EmailSender interface {
	SendLicenseEmail(ctx context.Context, to, licenseKey, orderID string) error
}

// EmailService sends license emails through Resend, or SendGrid when the
// API key looks like a SendGrid key or the provider is forced. With no
// API key configured, sends are skipped and logged; issuance never
// depends on delivery.
type EmailService struct {
	apiKey   string
	from     string
	provider string

	httpClient  *http.Client
	resendURL   string
	sendgridURL string
}

func NewEmailService(cfg *config.Config) *EmailService {
	return &EmailService{
		apiKey:   cfg.EmailAPIKey,
		from:     cfg.EmailFrom,
		provider: cfg.EmailProvider,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		resendURL:   resendEndpoint,
		sendgridURL: sendgridEndpoint,
	}
}

func (s *EmailService) SendLicenseEmail(ctx context.Context, to, licenseKey, orderID string) error {
	if s.apiKey == "" {
		log.Println("email delivery skipped: EMAIL_PROVIDER_API_KEY not configured")
		return nil
	}

	html := fmt.Sprintf(
		"<p>Thank you for purchasing CoolAutoSorter.</p><p><strong>Order:</strong> %s</p><p><strong>Your license key:</strong><br><code>%s</code></p><p>Keep this key safe. You can retrieve it later from support.</p>",
		orderID, licenseKey,
	)

	if strings.HasPrefix(s.apiKey, "SG.") || s.provider == "sendgrid" {
		return s.sendViaSendGrid(ctx, to, html)
	}
	return s.sendViaResend(ctx, to, html)
}

func (s *EmailService) sendViaResend(ctx context.Context, to, html string) error {
	payload := map[string]interface{}{
		"from":    s.from,
		"to":      []string{to},
		"subject": licenseEmailSubject,
		"html":    html,
	}
	return s.post(ctx, "resend", s.resendURL, payload)
}

func (s *EmailService) sendViaSendGrid(ctx context.Context, to, html string) error {
	payload := map[string]interface{}{
		"personalizations": []map[string]interface{}{
			{"to": []map[string]string{{"email": to}}},
		},
		"from": map[string]string{
			"email": s.fromAddress(),
			"name":  "CoolWareX",
		},
		"subject": licenseEmailSubject,
		"content": []map[string]string{
			{"type": "text/html", "value": html},
		},
	}
	return s.post(ctx, "sendgrid", s.sendgridURL, payload)
}

func (s *EmailService) post(ctx context.Context, provider, endpoint string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", provider, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", provider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s request failed (%d)", provider, resp.StatusCode)
	}
	return nil
}

// fromAddress extracts the bare address from a "Name <addr>" sender.
func (s *EmailService) fromAddress() string {
	if match := fromAddressRegex.FindStringSubmatch(s.from); len(match) == 2 && match[1] != "" {
		return match[1]
	}
	return s.from
}
