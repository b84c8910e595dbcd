package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"pack-store/internal/catalog"
	"pack-store/internal/metrics"
	"pack-store/internal/model"
	"pack-store/internal/payment"
	"pack-store/internal/pricing"
	"pack-store/internal/repository"
	"pack-store/internal/shipping"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// DefaultProcessorTimeout bounds a single session creation call.
const DefaultProcessorTimeout = 10 * time.Second

// checkoutService implements CheckoutService.
type checkoutService struct {
	catalog   catalog.Catalog
	shipping  *shipping.Catalog
	processor payment.Processor
	snapshots repository.SnapshotRepository
	metrics   *metrics.Metrics
	timeout   time.Duration
	logger    zerolog.Logger
}

// NewCheckoutService creates a new checkout service.
// A non-positive timeout uses DefaultProcessorTimeout.
func NewCheckoutService(
	cat catalog.Catalog,
	ship *shipping.Catalog,
	processor payment.Processor,
	snapshots repository.SnapshotRepository,
	m *metrics.Metrics,
	timeout time.Duration,
	logger zerolog.Logger,
) CheckoutService {
	if timeout <= 0 {
		timeout = DefaultProcessorTimeout
	}
	return &checkoutService{
		catalog:   cat,
		shipping:  ship,
		processor: processor,
		snapshots: snapshots,
		metrics:   m,
		timeout:   timeout,
		logger:    logger.With().Str("service", "checkout").Logger(),
	}
}

// PriceCart reprices a cart from the catalogue without contacting the processor.
func (s *checkoutService) PriceCart(ctx context.Context, items []model.CartItemRequest, shippingMethodID string) (*model.PricedCart, error) {
	if len(items) == 0 {
		return nil, model.ErrEmptyCart
	}

	option, err := s.shipping.Resolve(shippingMethodID)
	if err != nil {
		s.logger.Warn().Str("shipping_method_id", shippingMethodID).Msg("unknown shipping method")
		return nil, err
	}

	lines := make([]model.PricedLine, 0, len(items))
	for i, item := range items {
		if item.Quantity <= 0 {
			s.logger.Warn().
				Int("item_index", i).
				Str("product_id", item.ProductID).
				Int("quantity", item.Quantity).
				Msg("invalid quantity")
			return nil, model.ErrInvalidQuantity
		}

		product, ok := s.catalog.Get(item.ProductID)
		if !ok {
			s.logger.Warn().Int("item_index", i).Str("product_id", item.ProductID).Msg("product not in catalogue")
			return nil, model.ErrProductNotFound
		}

		var variant *model.Variant
		if item.VariantID != "" {
			v, ok := product.Variant(item.VariantID)
			if !ok {
				s.logger.Warn().
					Str("product_id", item.ProductID).
					Str("variant_id", item.VariantID).
					Msg("variant not in catalogue")
				return nil, model.ErrProductNotFound
			}
			variant = v
		}

		lines = append(lines, pricing.PriceLine(product, variant, item.Quantity))
	}

	return &model.PricedCart{
		Lines:            lines,
		ShippingMethodID: option.ID,
		Totals:           pricing.SummarizeCart(lines, option.Price, pricing.DefaultVATRate),
	}, nil
}

// CreateSession validates and prices a cart, then opens a hosted payment session for it.
func (s *checkoutService) CreateSession(ctx context.Context, req *model.CheckoutRequest, buyer model.Buyer) (*model.CheckoutResponse, error) {
	email, err := s.validateRequest(req, buyer)
	if err != nil {
		s.metrics.CheckoutResult(metrics.CheckoutRejected)
		return nil, err
	}

	cart, err := s.PriceCart(ctx, req.Items, req.ShippingMethodID)
	if err != nil {
		s.metrics.CheckoutResult(metrics.CheckoutRejected)
		return nil, err
	}
	s.compareClientTotals(req, cart.Totals)

	option, err := s.shipping.Resolve(cart.ShippingMethodID)
	if err != nil {
		s.metrics.CheckoutResult(metrics.CheckoutRejected)
		return nil, err
	}

	sessionReq, err := buildSessionRequest(cart, option, req, buyer, email)
	if err != nil {
		s.metrics.CheckoutResult(metrics.CheckoutRejected)
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	session, err := s.processor.CreateSession(callCtx, sessionReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			s.logger.Error().Err(err).Dur("timeout", s.timeout).Msg("payment processor timed out creating session")
			s.metrics.CheckoutResult(metrics.CheckoutTimeout)
			return nil, model.ErrProcessorTimeout
		}
		s.logger.Error().Err(err).Int("line_count", len(sessionReq.LineItems)).Msg("failed to create checkout session")
		s.metrics.CheckoutResult(metrics.CheckoutFailed)
		return nil, model.ErrCheckoutFailed
	}

	s.metrics.CheckoutResult(metrics.CheckoutCreated)
	s.logger.Info().
		Str("session_id", session.ID).
		Str("total", cart.Totals.Total.String()).
		Int("line_count", len(cart.Lines)).
		Msg("checkout session created")

	s.saveSnapshot(ctx, session.ID, cart, req, buyer, email)

	return &model.CheckoutResponse{
		SessionID: session.ID,
		URL:       session.URL,
	}, nil
}

// validateRequest checks everything that can be checked without the catalogue and
// returns the contact email to use.
func (s *checkoutService) validateRequest(req *model.CheckoutRequest, buyer model.Buyer) (string, error) {
	if req == nil || len(req.Items) == 0 {
		return "", model.ErrEmptyCart
	}

	email := strings.TrimSpace(req.Email)
	if email == "" {
		email = strings.TrimSpace(buyer.Email)
	}
	if email == "" {
		return "", model.ErrContactRequired
	}
	if err := validate.Var(email, "email"); err != nil {
		return "", &model.ValidationError{Err: model.ErrContactRequired, Fields: map[string]string{"email": "email"}}
	}

	if req.ShippingAddress != nil {
		if err := validate.Struct(req.ShippingAddress); err != nil {
			s.logger.Warn().Err(err).Msg("invalid shipping address")
			return "", validationError(model.ErrInvalidAddress, "shippingAddress", err)
		}
	}
	if req.BillingAddress != nil {
		if err := validate.Struct(req.BillingAddress); err != nil {
			s.logger.Warn().Err(err).Msg("invalid billing address")
			return "", validationError(model.ErrInvalidAddress, "billingAddress", err)
		}
	}

	return email, nil
}

// compareClientTotals logs any advisory client figure that disagrees with the server price.
// Figures are compared at display precision.
func (s *checkoutService) compareClientTotals(req *model.CheckoutRequest, totals model.CartTotals) {
	checks := []struct {
		field  string
		client *decimal.Decimal
		server decimal.Decimal
	}{
		{"subtotal", req.Subtotal, totals.Subtotal},
		{"shippingCost", req.ShippingCost, totals.ShippingCost},
		{"vatAmount", req.VATAmount, totals.VATAmount},
		{"total", req.Total, totals.Total},
	}

	for _, c := range checks {
		if c.client == nil || c.client.Round(2).Equal(c.server.Round(2)) {
			continue
		}
		s.logger.Warn().
			Str("field", c.field).
			Str("client", c.client.String()).
			Str("server", c.server.String()).
			Msg("client total differs from server price")
		s.metrics.ClientTotalMismatch(c.field)
	}
}

// saveSnapshot records the cart against the session. Failure is logged and never returned.
func (s *checkoutService) saveSnapshot(ctx context.Context, sessionID string, cart *model.PricedCart, req *model.CheckoutRequest, buyer model.Buyer, email string) {
	if s.snapshots == nil {
		return
	}

	snapshot := &model.CheckoutSnapshot{
		ID:              uuid.New(),
		SessionID:       sessionID,
		UserID:          optionalString(buyer.UserID),
		Email:           email,
		Cart:            *cart,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
		CreatedAt:       time.Now().UTC(),
	}

	if err := s.snapshots.Create(context.WithoutCancel(ctx), snapshot); err != nil {
		s.logger.Warn().Err(err).Str("session_id", sessionID).Msg("failed to save checkout snapshot")
		s.metrics.SnapshotFailure()
	}
}

// buildSessionRequest converts a priced cart into processor line items.
// Every product line is charged as one unit of its exact total rounded once to pence, so the
// processor never multiplies a rounded unit price.
func buildSessionRequest(cart *model.PricedCart, option shipping.Option, req *model.CheckoutRequest, buyer model.Buyer, email string) (payment.SessionRequest, error) {
	items := make([]payment.LineItem, 0, len(cart.Lines)+2)
	var charged int64

	for _, l := range cart.Lines {
		minor := pricing.ToMinorUnits(l.TotalPrice)
		charged += minor
		meta := map[string]string{
			metaType:       lineTypeProduct,
			metaProductID:  l.ProductID,
			metaName:       truncate(l.Name, maxMetadataValue),
			metaUnitPrice:  l.PricePerUnit.String(),
			metaQuantity:   strconv.Itoa(l.Quantity),
			metaExactTotal: l.TotalPrice.String(),
			metaMinorTotal: strconv.FormatInt(minor, 10),
		}
		if l.VariantID != "" {
			meta[metaVariantID] = l.VariantID
		}
		items = append(items, payment.LineItem{
			Name:       fmt.Sprintf("%s × %d", l.Name, l.Quantity),
			Image:      l.Image,
			UnitAmount: minor,
			Quantity:   1,
			Metadata:   meta,
		})
	}

	totals := cart.Totals
	if totals.ShippingCost.IsPositive() {
		minor := pricing.ToMinorUnits(totals.ShippingCost)
		charged += minor
		items = append(items, payment.LineItem{
			Name:       "Shipping: " + option.Name,
			UnitAmount: minor,
			Quantity:   1,
			Metadata: map[string]string{
				metaType:       lineTypeShipping,
				metaExactTotal: totals.ShippingCost.String(),
				metaMinorTotal: strconv.FormatInt(minor, 10),
			},
		})
	}

	if totals.VATAmount.IsPositive() {
		minor := pricing.ToMinorUnits(totals.VATAmount)
		charged += minor
		items = append(items, payment.LineItem{
			Name:       fmt.Sprintf("VAT (%s%%)", pricing.DefaultVATRate.Shift(2).String()),
			UnitAmount: minor,
			Quantity:   1,
			Metadata: map[string]string{
				metaType:       lineTypeVAT,
				metaExactTotal: totals.VATAmount.String(),
				metaMinorTotal: strconv.FormatInt(minor, 10),
			},
		})
	}

	shippingAddress, err := encodeAddress(req.ShippingAddress)
	if err != nil {
		return payment.SessionRequest{}, err
	}
	billingAddress, err := encodeAddress(req.BillingAddress)
	if err != nil {
		return payment.SessionRequest{}, err
	}

	metadata := map[string]string{
		metaSubtotal:       totals.Subtotal.String(),
		metaDiscount:       totals.Discount.String(),
		metaShipping:       totals.ShippingCost.String(),
		metaVAT:            totals.VATAmount.String(),
		metaTotal:          totals.Total.String(),
		metaChargedMinor:   strconv.FormatInt(charged, 10),
		metaEmail:          email,
		metaShippingMethod: cart.ShippingMethodID,
		metaCartSummary:    cartSummary(cart.Lines),
	}
	if buyer.UserID != "" {
		metadata[metaUserID] = buyer.UserID
	}
	if shippingAddress != "" {
		metadata[metaShippingAddress] = shippingAddress
	}
	if billingAddress != "" {
		metadata[metaBillingAddress] = billingAddress
	}

	return payment.SessionRequest{
		LineItems:         items,
		Metadata:          metadata,
		CustomerEmail:     email,
		ClientReferenceID: buyer.UserID,
		CollectShipping:   req.ShippingAddress == nil,
	}, nil
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
