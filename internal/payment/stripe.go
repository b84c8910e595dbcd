package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
)

// lineItemsExpand pulls product name, images and metadata into a retrieved session.
const lineItemsExpand = "line_items.data.price.product"

// listLineItemsExpand does the same for the paginated line items endpoint.
const listLineItemsExpand = "data.price.product"

// StripeConfig holds the settings for the Stripe processor.
type StripeConfig struct {
	SecretKey  string
	SuccessURL string
	CancelURL  string

	// APIBaseURL overrides the Stripe API host. Empty uses the live API.
	APIBaseURL string

	// Timeout bounds a single HTTP call to Stripe.
	Timeout time.Duration

	// BreakerFailures is the number of consecutive failures that opens the breaker.
	BreakerFailures uint32

	// BreakerCooldown is how long the breaker stays open before probing again.
	BreakerCooldown time.Duration
}

// stripeProcessor implements Processor on Stripe Checkout.
type stripeProcessor struct {
	sessions   *session.Client
	breaker    *gobreaker.CircuitBreaker[*stripe.CheckoutSession]
	successURL string
	cancelURL  string
	logger     zerolog.Logger
}

// NewStripeProcessor creates a Stripe-backed Processor.
// Network retries are disabled: a retried create could open a second session for one cart.
func NewStripeProcessor(cfg StripeConfig, logger zerolog.Logger) Processor {
	logger = logger.With().Str("component", "stripe-processor").Logger()

	backendConfig := &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: cfg.Timeout},
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripeLogger{logger: logger},
	}
	if cfg.APIBaseURL != "" {
		backendConfig.URL = stripe.String(cfg.APIBaseURL)
	}

	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}

	breaker := gobreaker.NewCircuitBreaker[*stripe.CheckoutSession](gobreaker.Settings{
		Name:        "stripe",
		MaxRequests: 1,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrSessionNotFound) || errors.Is(err, context.Canceled) || isClientError(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("payment processor circuit breaker state changed")
		},
	})

	return &stripeProcessor{
		sessions: &session.Client{
			B:   stripe.GetBackendWithConfig(stripe.APIBackend, backendConfig),
			Key: cfg.SecretKey,
		},
		breaker:    breaker,
		successURL: cfg.SuccessURL,
		cancelURL:  cfg.CancelURL,
		logger:     logger,
	}
}

// CreateSession opens a Stripe Checkout session in payment mode, charging GBP.
func (p *stripeProcessor) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:                     stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:               stripe.String(p.successURL),
		CancelURL:                stripe.String(p.cancelURL),
		BillingAddressCollection: stripe.String(string(stripe.CheckoutSessionBillingAddressCollectionRequired)),
	}
	params.Context = ctx

	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	if req.ClientReferenceID != "" {
		params.ClientReferenceID = stripe.String(req.ClientReferenceID)
	}
	if req.CollectShipping {
		params.ShippingAddressCollection = &stripe.CheckoutSessionShippingAddressCollectionParams{
			AllowedCountries: stripe.StringSlice([]string{"GB"}),
		}
	}

	for _, item := range req.LineItems {
		productData := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name:     stripe.String(item.Name),
			Metadata: item.Metadata,
		}
		if item.Image != "" {
			productData.Images = stripe.StringSlice([]string{item.Image})
		}

		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(string(stripe.CurrencyGBP)),
				UnitAmount:  stripe.Int64(item.UnitAmount),
				ProductData: productData,
			},
			Quantity: stripe.Int64(item.Quantity),
		})
	}

	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	s, err := p.breaker.Execute(func() (*stripe.CheckoutSession, error) {
		return p.sessions.New(params)
	})
	if err != nil {
		err = p.mapError(err)
		p.logger.Error().
			Err(err).
			Int("line_items", len(req.LineItems)).
			Msg("failed to create checkout session")
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	p.logger.Info().
		Str("session_id", s.ID).
		Int("line_items", len(req.LineItems)).
		Msg("checkout session created")

	return toSession(s), nil
}

// RetrieveSession fetches a session with line items and their products expanded.
func (p *stripeProcessor) RetrieveSession(ctx context.Context, id string) (*Session, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand(lineItemsExpand)

	s, err := p.breaker.Execute(func() (*stripe.CheckoutSession, error) {
		s, err := p.sessions.Get(id, params)
		if isNotFound(err) {
			return nil, ErrSessionNotFound
		}
		if err != nil {
			return nil, err
		}
		if s.LineItems != nil && s.LineItems.HasMore {
			if err := p.loadAllLineItems(ctx, s); err != nil {
				return nil, err
			}
		}
		return s, nil
	})
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			p.logger.Debug().Str("session_id", id).Msg("checkout session not found")
			return nil, ErrSessionNotFound
		}
		err = p.mapError(err)
		p.logger.Error().Err(err).Str("session_id", id).Msg("failed to retrieve checkout session")
		return nil, fmt.Errorf("failed to retrieve checkout session %s: %w", id, err)
	}

	return toSession(s), nil
}

// loadAllLineItems replaces the embedded line item page, which Stripe caps, with the full list.
func (p *stripeProcessor) loadAllLineItems(ctx context.Context, s *stripe.CheckoutSession) error {
	params := &stripe.CheckoutSessionListLineItemsParams{
		Session: stripe.String(s.ID),
	}
	params.Context = ctx
	params.Limit = stripe.Int64(100)
	params.AddExpand(listLineItemsExpand)

	var items []*stripe.LineItem
	it := p.sessions.ListLineItems(params)
	for it.Next() {
		items = append(items, it.LineItem())
	}
	if err := it.Err(); err != nil {
		return fmt.Errorf("failed to list line items for %s: %w", s.ID, err)
	}

	p.logger.Debug().
		Str("session_id", s.ID).
		Int("embedded", len(s.LineItems.Data)).
		Int("listed", len(items)).
		Msg("loaded paginated line items")

	s.LineItems.Data = items
	s.LineItems.HasMore = false
	return nil
}

func (p *stripeProcessor) mapError(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}

func isNotFound(err error) bool {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return stripeErr.HTTPStatusCode == http.StatusNotFound || stripeErr.Code == stripe.ErrorCodeResourceMissing
	}
	return false
}

// isClientError reports whether Stripe rejected the request itself, which says nothing about its health.
func isClientError(err error) bool {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return stripeErr.HTTPStatusCode >= 400 && stripeErr.HTTPStatusCode < 500 && stripeErr.HTTPStatusCode != http.StatusTooManyRequests
	}
	return false
}

func toSession(s *stripe.CheckoutSession) *Session {
	out := &Session{
		ID:            s.ID,
		URL:           s.URL,
		PaymentStatus: string(s.PaymentStatus),
		CustomerEmail: s.CustomerEmail,
		AmountTotal:   s.AmountTotal,
		Currency:      string(s.Currency),
		Metadata:      s.Metadata,
	}

	if s.PaymentIntent != nil {
		out.PaymentIntentID = s.PaymentIntent.ID
	}

	if s.CustomerDetails != nil {
		if out.CustomerEmail == "" {
			out.CustomerEmail = s.CustomerDetails.Email
		}
		if a := s.CustomerDetails.Address; a != nil {
			out.CustomerAddress = &SessionAddress{
				Name:       s.CustomerDetails.Name,
				Line1:      a.Line1,
				Line2:      a.Line2,
				City:       a.City,
				State:      a.State,
				PostalCode: a.PostalCode,
				Country:    a.Country,
			}
		}
	}

	if s.LineItems != nil {
		for _, li := range s.LineItems.Data {
			item := SessionLineItem{
				Name:        li.Description,
				Quantity:    li.Quantity,
				AmountTotal: li.AmountTotal,
			}
			if li.Price != nil {
				item.UnitAmount = li.Price.UnitAmount
				if prod := li.Price.Product; prod != nil {
					if prod.Name != "" {
						item.Name = prod.Name
					}
					if len(prod.Images) > 0 {
						item.Image = prod.Images[0]
					}
					item.Metadata = prod.Metadata
				}
			}
			out.LineItems = append(out.LineItems, item)
		}
	}

	return out
}

// stripeLogger routes stripe-go's client logging into zerolog.
type stripeLogger struct {
	logger zerolog.Logger
}

func (l *stripeLogger) Debugf(format string, v ...interface{}) { l.logger.Debug().Msgf(format, v...) }
func (l *stripeLogger) Infof(format string, v ...interface{})  { l.logger.Debug().Msgf(format, v...) }
func (l *stripeLogger) Warnf(format string, v ...interface{})  { l.logger.Warn().Msgf(format, v...) }
func (l *stripeLogger) Errorf(format string, v ...interface{}) { l.logger.Error().Msgf(format, v...) }
