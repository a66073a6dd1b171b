package stripe

// Event types that trigger fulfillment. Everything else is acknowledged
// and ignored so Stripe does not retry-storm on irrelevant traffic.
const (
	EventCheckoutCompleted     = "checkout.session.completed"
	EventAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
)

// Event is the envelope of a webhook delivery.
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object CheckoutSession `json:"object"`
	} `json:"data"`
}

// CheckoutSession carries the fields fulfillment needs from a Stripe
// checkout session, whether embedded in an event or fetched from the
// API.
type CheckoutSession struct {
	ID              string           `json:"id"`
	URL             string           `json:"url,omitempty"`
	PaymentStatus   string           `json:"payment_status"`
	CustomerEmail   string           `json:"customer_email"`
	CustomerDetails *CustomerDetails `json:"customer_details"`
	Livemode        bool             `json:"livemode"`
	AmountTotal     int64            `json:"amount_total"`
	Currency        string           `json:"currency"`
}

type CustomerDetails struct {
	Email string `json:"email"`
}

// Email returns the purchaser address, preferring customer_details.
func (s *CheckoutSession) Email() string {
	if s.CustomerDetails != nil && s.CustomerDetails.Email != "" {
		return s.CustomerDetails.Email
	}
	return s.CustomerEmail
}

// Paid reports whether money actually settled. A "completed" checkout
// can still be unpaid in async payment flows.
func (s *CheckoutSession) Paid() bool {
	return s.PaymentStatus == "paid"
}
