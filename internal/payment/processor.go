// Package payment talks to the card processor that hosts the checkout page.
package payment

import (
	"context"
	"errors"
)

// PaymentStatusPaid is the processor's payment_status once funds are captured.
const PaymentStatusPaid = "paid"

// Webhook events that can complete an order.
const (
	// EventCheckoutCompleted is sent when a buyer finishes a hosted checkout.
	EventCheckoutCompleted = "checkout.session.completed"

	// EventCheckoutAsyncSucceeded is sent when a delayed payment method settles.
	EventCheckoutAsyncSucceeded = "checkout.session.async_payment_succeeded"
)

var (
	// ErrSessionNotFound is returned when the processor has no session with the requested ID.
	ErrSessionNotFound = errors.New("payment: session not found")

	// ErrUnavailable is returned while the circuit breaker is refusing calls.
	ErrUnavailable = errors.New("payment: processor unavailable")

	// ErrInvalidSignature is returned when a webhook payload fails signature verification.
	ErrInvalidSignature = errors.New("payment: invalid webhook signature")
)

// LineItem is one charge line on a hosted checkout page. UnitAmount is in pence.
type LineItem struct {
	Name       string
	Image      string
	UnitAmount int64
	Quantity   int64
	Metadata   map[string]string
}

// SessionRequest describes a checkout session to open with the processor.
type SessionRequest struct {
	LineItems         []LineItem
	Metadata          map[string]string
	CustomerEmail     string
	ClientReferenceID string
	CollectShipping   bool
}

// SessionLineItem is a line item as recorded by the processor.
type SessionLineItem struct {
	Name        string
	Image       string
	UnitAmount  int64
	Quantity    int64
	AmountTotal int64
	Metadata    map[string]string
}

// SessionAddress is a postal address as captured by the processor.
type SessionAddress struct {
	Name       string
	Line1      string
	Line2      string
	City       string
	State      string
	PostalCode string
	Country    string
}

// Session is the processor's view of a checkout session.
type Session struct {
	ID              string
	URL             string
	PaymentStatus   string
	PaymentIntentID string
	CustomerEmail   string
	CustomerAddress *SessionAddress
	AmountTotal     int64
	Currency        string
	Metadata        map[string]string
	LineItems       []SessionLineItem
}

// Paid reports whether the processor has captured payment for the session.
func (s *Session) Paid() bool {
	return s.PaymentStatus == PaymentStatusPaid
}

// Event is a verified webhook notification.
type Event struct {
	ID        string
	Type      string
	SessionID string
}

// Processor creates and retrieves hosted checkout sessions.
type Processor interface {
	// CreateSession opens a new hosted checkout session.
	CreateSession(ctx context.Context, req SessionRequest) (*Session, error)

	// RetrieveSession fetches a session with its line items.
	// Returns ErrSessionNotFound if the processor does not know the ID.
	RetrieveSession(ctx context.Context, id string) (*Session, error)
}

// WebhookVerifier authenticates inbound processor notifications.
type WebhookVerifier interface {
	// VerifyWebhook checks the signature header against payload and decodes the event.
	VerifyWebhook(payload []byte, signatureHeader string) (*Event, error)
}
