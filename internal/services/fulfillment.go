package services

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/coolwarex/backend/internal/config"
	"github.com/coolwarex/backend/internal/license"
	"github.com/coolwarex/backend/internal/store"
	"github.com/coolwarex/backend/internal/stripe"
)

// OutcomeStatus classifies how a webhook delivery ended.
type OutcomeStatus string

const (
	// OutcomeFulfilled means a license was issued, persisted and dispatched.
	OutcomeFulfilled OutcomeStatus = "fulfilled"
	// OutcomeDuplicate means a previous delivery already fulfilled this
	// event or session; no side effects happened.
	OutcomeDuplicate OutcomeStatus = "duplicate"
	// OutcomeIgnored means the event is authentic but not applicable
	// (wrong type, unpaid, unusable email). Acknowledged with 200 so the
	// provider stops retrying something that will never resolve.
	OutcomeIgnored OutcomeStatus = "ignored"
	// OutcomeRejected means the delivery failed authentication or was
	// malformed.
	OutcomeRejected OutcomeStatus = "rejected"
)

// Outcome is the terminal state of one webhook delivery.
type Outcome struct {
	Status     OutcomeStatus
	Reason     string
	HTTPStatus int
	EventID    string
	SessionID  string
}

// FulfillmentService turns confirmed payment events into persisted,
// notified license records. It exclusively owns the creation of
// fulfillment and processed-event records.
type FulfillmentService struct {
	cfg          *config.Config
	kv           store.KV
	records      *store.FulfillmentStore
	signer       *license.Signer
	stripeClient *stripe.Client
	email        EmailSender

	now func() time.Time
}

// NewFulfillmentService wires the orchestrator. stripeClient may be nil;
// session re-fetch is then skipped and the event body is trusted after
// signature verification.
func NewFulfillmentService(cfg *config.Config, kv store.KV, records *store.FulfillmentStore, signer *license.Signer, stripeClient *stripe.Client, email EmailSender) *FulfillmentService {
	return &FulfillmentService{
		cfg:          cfg,
		kv:           kv,
		records:      records,
		signer:       signer,
		stripeClient: stripeClient,
		email:        email,
		now:          time.Now,
	}
}

// ProcessWebhook runs one delivery through the fulfillment pipeline:
// signature check, event dedup, type filter, session resolution, payment
// gate, email validation, session dedup, sign, persist, notify.
//
// A non-nil error means a storage fault before persistence completed;
// the delivery is safe for the provider to retry. Rejections and
// short-circuits come back as Outcome with err == nil.
func (s *FulfillmentService) ProcessWebhook(ctx context.Context, rawBody []byte, signatureHeader string) (Outcome, error) {
	now := s.now()
	tolerance := time.Duration(s.cfg.StripeToleranceSeconds) * time.Second

	if !stripe.VerifySignature(rawBody, signatureHeader, s.cfg.StripeWebhookSecret, tolerance, now) {
		return Outcome{Status: OutcomeRejected, Reason: "invalid_signature", HTTPStatus: fiber.StatusBadRequest}, nil
	}

	var event stripe.Event
	if err := json.Unmarshal(rawBody, &event); err != nil {
		return Outcome{Status: OutcomeRejected, Reason: "invalid_json", HTTPStatus: fiber.StatusBadRequest}, nil
	}
	if event.ID == "" || event.Type == "" {
		return Outcome{Status: OutcomeRejected, Reason: "missing_event_fields", HTTPStatus: fiber.StatusBadRequest}, nil
	}

	outcome := Outcome{EventID: event.ID, HTTPStatus: fiber.StatusOK}

	// Event-level idempotency: Stripe redelivers on non-2xx responses.
	alreadyProcessed, _, err := store.MarkProcessedEvent(ctx, s.kv, event.ID, event.Type, now)
	if err != nil {
		outcome.Status = OutcomeRejected
		outcome.Reason = "storage_unavailable"
		outcome.HTTPStatus = fiber.StatusInternalServerError
		return outcome, err
	}
	if alreadyProcessed {
		log.Printf("stripe event already processed: event_id=%s type=%s", event.ID, event.Type)
		outcome.Status = OutcomeDuplicate
		return outcome, nil
	}

	if event.Type != stripe.EventCheckoutCompleted && event.Type != stripe.EventAsyncPaymentSucceeded {
		outcome.Status = OutcomeIgnored
		outcome.Reason = "unhandled_event_type"
		return outcome, nil
	}

	sessionFromEvent := event.Data.Object
	if sessionFromEvent.ID == "" {
		outcome.Status = OutcomeIgnored
		outcome.Reason = "missing_session_id"
		return outcome, nil
	}
	outcome.SessionID = sessionFromEvent.ID

	session := s.resolveSession(ctx, &sessionFromEvent)

	// Checkout "completed" can arrive before async payment settles; the
	// async-success event will follow once it does.
	if !session.Paid() {
		log.Printf("session not paid yet; ignoring: event_id=%s session_id=%s payment_status=%s",
			event.ID, sessionFromEvent.ID, session.PaymentStatus)
		outcome.Status = OutcomeIgnored
		outcome.Reason = "payment_not_completed"
		return outcome, nil
	}

	email := license.NormalizeEmail(session.Email())
	if !license.IsValidEmail(email) {
		log.Printf("missing or invalid purchaser email; ignoring: event_id=%s session_id=%s", event.ID, sessionFromEvent.ID)
		outcome.Status = OutcomeIgnored
		outcome.Reason = "missing_email"
		return outcome, nil
	}

	// Session-level idempotency: catches a second event id for the same
	// checkout session, which the event-level guard cannot.
	if _, err := s.records.GetBySession(ctx, sessionFromEvent.ID); err == nil {
		log.Printf("session already fulfilled: event_id=%s session_id=%s", event.ID, sessionFromEvent.ID)
		outcome.Status = OutcomeDuplicate
		return outcome, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		outcome.Status = OutcomeRejected
		outcome.Reason = "storage_unavailable"
		outcome.HTTPStatus = fiber.StatusInternalServerError
		return outcome, err
	}

	payload := license.BuildPayload(s.cfg.Product, s.cfg.LicenseType, email, sessionFromEvent.ID, now)
	licenseKey, err := s.signer.Sign(payload)
	if err != nil {
		outcome.Status = OutcomeRejected
		outcome.Reason = "signing_failed"
		outcome.HTTPStatus = fiber.StatusInternalServerError
		return outcome, err
	}

	record := store.FulfillmentRecord{
		OrderID:    sessionFromEvent.ID,
		SessionID:  sessionFromEvent.ID,
		EmailHash:  payload.PurchaserEmailHash,
		LicenseKey: licenseKey,
		CreatedAt:  payload.IssuedAt,
		Product:    s.cfg.Product,
	}
	if err := s.records.Save(ctx, record); err != nil {
		outcome.Status = OutcomeRejected
		outcome.Reason = "storage_unavailable"
		outcome.HTTPStatus = fiber.StatusInternalServerError
		return outcome, err
	}

	// The license is issued once persisted. A failed send is recoverable
	// through lookup, so it never fails the delivery.
	if err := s.email.SendLicenseEmail(ctx, email, licenseKey, sessionFromEvent.ID); err != nil {
		log.Printf("license email delivery failed: event_id=%s session_id=%s email=%s err=%v",
			event.ID, sessionFromEvent.ID, license.MaskEmail(email), err)
	}

	log.Printf("stripe event fulfilled: event_id=%s session_id=%s email_hash=%s license_key=%s",
		event.ID, sessionFromEvent.ID, payload.PurchaserEmailHash, license.MaskKey(licenseKey))

	outcome.Status = OutcomeFulfilled
	return outcome, nil
}

// resolveSession re-fetches the session from Stripe when server-side
// credentials are configured. A failed fetch falls back to the embedded
// session object rather than failing the delivery.
func (s *FulfillmentService) resolveSession(ctx context.Context, fromEvent *stripe.CheckoutSession) *stripe.CheckoutSession {
	if s.stripeClient == nil {
		return fromEvent
	}
	fetched, err := s.stripeClient.GetCheckoutSession(ctx, fromEvent.ID)
	if err != nil {
		log.Printf("stripe session re-fetch failed, using event body: session_id=%s err=%v", fromEvent.ID, err)
		return fromEvent
	}
	return fetched
}
