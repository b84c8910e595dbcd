package payment

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

// stripeWebhook implements WebhookVerifier with Stripe's signed payload scheme.
type stripeWebhook struct {
	secret string
}

// NewStripeWebhookVerifier creates a verifier for the given endpoint signing secret.
func NewStripeWebhookVerifier(secret string) WebhookVerifier {
	return &stripeWebhook{secret: secret}
}

// VerifyWebhook checks the Stripe-Signature header and extracts the checkout session ID.
// Events for other object types are returned with an empty SessionID.
func (w *stripeWebhook) VerifyWebhook(payload []byte, signatureHeader string) (*Event, error) {
	if strings.TrimSpace(signatureHeader) == "" {
		return nil, ErrInvalidSignature
	}

	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, w.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	out := &Event{
		ID:   event.ID,
		Type: string(event.Type),
	}

	if strings.HasPrefix(out.Type, "checkout.session.") && event.Data != nil {
		var s stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &s); err != nil {
			return nil, fmt.Errorf("failed to decode checkout session from event %s: %w", event.ID, err)
		}
		out.SessionID = s.ID
	}

	return out, nil
}
