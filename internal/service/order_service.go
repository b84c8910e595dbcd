package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"pack-store/internal/metrics"
	"pack-store/internal/model"
	"pack-store/internal/payment"
	"pack-store/internal/pricing"
	"pack-store/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

// orderService implements OrderService.
type orderService struct {
	orderRepo    repository.OrderRepository
	snapshotRepo repository.SnapshotRepository
	processor    payment.Processor
	metrics      *metrics.Metrics
	group        singleflight.Group
	logger       zerolog.Logger
}

// NewOrderService creates a new order service.
func NewOrderService(
	orderRepo repository.OrderRepository,
	snapshotRepo repository.SnapshotRepository,
	processor payment.Processor,
	m *metrics.Metrics,
	logger zerolog.Logger,
) OrderService {
	return &orderService{
		orderRepo:    orderRepo,
		snapshotRepo: snapshotRepo,
		processor:    processor,
		metrics:      m,
		logger:       logger.With().Str("service", "order").Logger(),
	}
}

// ConfirmSession returns the order for a paid session, creating it on first sight.
// Concurrent calls for one session in this process share a single confirmation; across
// processes the unique session constraint decides the winner.
func (s *orderService) ConfirmSession(ctx context.Context, sessionID string) (*model.Order, error) {
	if sessionID == "" {
		return nil, model.ErrOrderNotFound
	}

	// Joined callers must not fail because the first caller went away.
	v, err, shared := s.group.Do(sessionID, func() (any, error) {
		return s.confirm(context.WithoutCancel(ctx), sessionID)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.logger.Debug().Str("session_id", sessionID).Msg("joined in-flight confirmation")
	}

	return v.(*model.Order), nil
}

func (s *orderService) confirm(ctx context.Context, sessionID string) (*model.Order, error) {
	existing, err := s.orderRepo.GetBySessionID(ctx, sessionID)
	if err != nil {
		s.logger.Error().Err(err).Str("session_id", sessionID).Msg("failed to look up order")
		s.metrics.ReconciliationResult(metrics.ReconcileFailed)
		return nil, fmt.Errorf("failed to look up order: %w", err)
	}
	if existing != nil {
		s.metrics.ReconciliationResult(metrics.ReconcileExisting)
		return existing, nil
	}

	session, err := s.processor.RetrieveSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, payment.ErrSessionNotFound) {
			s.logger.Warn().Str("session_id", sessionID).Msg("unknown checkout session")
			s.metrics.ReconciliationResult(metrics.ReconcileNotFound)
			return nil, model.ErrOrderNotFound
		}
		s.metrics.ReconciliationResult(metrics.ReconcileFailed)
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, model.ErrProcessorTimeout
		}
		return nil, fmt.Errorf("failed to retrieve checkout session: %w", err)
	}

	if !session.Paid() {
		s.logger.Info().
			Str("session_id", sessionID).
			Str("payment_status", session.PaymentStatus).
			Msg("session not paid yet")
		s.metrics.ReconciliationResult(metrics.ReconcileUnpaid)
		return nil, model.ErrPaymentIncomplete
	}

	order := buildOrder(session, s.snapshotFor(ctx, session))

	err = s.orderRepo.Create(ctx, order)
	switch {
	case err == nil:
		s.metrics.ReconciliationResult(metrics.ReconcileCreated)
		s.logger.Info().
			Str("order_id", order.ID.String()).
			Str("session_id", sessionID).
			Str("total", order.Total.String()).
			Int("item_count", len(order.Items)).
			Msg("order created")
		return order, nil

	case errors.Is(err, model.ErrOrderAlreadyExists):
		winner, getErr := s.orderRepo.GetBySessionID(ctx, sessionID)
		if getErr == nil && winner != nil {
			s.metrics.ReconciliationResult(metrics.ReconcileExisting)
			return winner, nil
		}
		err = getErr
		if err == nil {
			err = errors.New("order for session missing after unique conflict")
		}
	}

	s.logger.Error().
		Err(err).
		Str("session_id", sessionID).
		Str("payment_intent_id", session.PaymentIntentID).
		Str("total", order.Total.String()).
		Msg("paid session has no persisted order")
	s.metrics.ReconciliationResult(metrics.ReconcileFailed)
	s.metrics.ReconciliationInconsistency()
	return nil, model.ErrOrderPersistence
}

// snapshotFor loads the cart snapshot when the session metadata lacks the addresses.
func (s *orderService) snapshotFor(ctx context.Context, session *payment.Session) *model.CheckoutSnapshot {
	if s.snapshotRepo == nil {
		return nil
	}
	if session.Metadata[metaShippingAddress] != "" && session.Metadata[metaBillingAddress] != "" {
		return nil
	}

	snapshot, err := s.snapshotRepo.GetBySessionID(ctx, session.ID)
	if err != nil {
		s.logger.Warn().Err(err).Str("session_id", session.ID).Msg("failed to load checkout snapshot")
		return nil
	}
	return snapshot
}

// GetBySessionID retrieves an existing order without contacting the processor.
func (s *orderService) GetBySessionID(ctx context.Context, sessionID string) (*model.Order, error) {
	if sessionID == "" {
		return nil, model.ErrOrderNotFound
	}

	order, err := s.orderRepo.GetBySessionID(ctx, sessionID)
	if err != nil {
		s.logger.Error().Err(err).Str("session_id", sessionID).Msg("failed to get order by session")
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if order == nil {
		return nil, model.ErrOrderNotFound
	}
	return order, nil
}

// GetByID retrieves an order by its ID.
func (s *orderService) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to get order")
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if order == nil {
		s.logger.Debug().Str("order_id", id.String()).Msg("order not found")
		return nil, model.ErrOrderNotFound
	}
	return order, nil
}

// UpdateStatus moves an order along its fulfilment lifecycle.
func (s *orderService) UpdateStatus(ctx context.Context, id uuid.UUID, status model.OrderStatus) (*model.Order, error) {
	if !status.Valid() {
		return nil, model.ErrInvalidStatus
	}

	order, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !order.Status.CanTransitionTo(status) {
		s.logger.Warn().
			Str("order_id", id.String()).
			Str("from", string(order.Status)).
			Str("to", string(status)).
			Msg("rejected status transition")
		return nil, model.ErrInvalidTransition
	}

	updated, err := s.orderRepo.UpdateStatus(ctx, id, order.Status, status)
	if err != nil {
		s.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to update order status")
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}
	if updated == nil {
		// Someone else moved the order between our read and write.
		return nil, model.ErrInvalidTransition
	}

	s.logger.Info().
		Str("order_id", id.String()).
		Str("from", string(order.Status)).
		Str("to", string(status)).
		Msg("order status updated")

	return updated, nil
}

// buildOrder freezes a paid session into an order. Line items and totals come from the
// exact figures recorded in metadata at checkout; processor amounts are the fallback.
func buildOrder(session *payment.Session, snapshot *model.CheckoutSnapshot) *model.Order {
	md := session.Metadata
	now := time.Now().UTC()

	order := &model.Order{
		ID:               uuid.New(),
		Email:            md[metaEmail],
		ShippingMethodID: md[metaShippingMethod],
		Currency:         model.Currency,
		Status:           model.OrderStatusPending,
		PaymentStatus:    session.PaymentStatus,
		StripeSessionID:  session.ID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if order.Email == "" {
		order.Email = session.CustomerEmail
	}
	order.UserID = optionalString(md[metaUserID])
	order.StripePaymentIntentID = optionalString(session.PaymentIntentID)

	subtotal := decimal.Zero
	shippingCost := decimal.Zero
	vat := decimal.Zero
	for _, li := range session.LineItems {
		exact := metaDecimal(li.Metadata, metaExactTotal, pricing.FromMinorUnits(li.AmountTotal))
		switch li.Metadata[metaType] {
		case lineTypeShipping:
			shippingCost = shippingCost.Add(exact)
		case lineTypeVAT:
			vat = vat.Add(exact)
		default:
			item := orderItem(li, exact)
			subtotal = subtotal.Add(item.TotalPrice)
			order.Items = append(order.Items, item)
		}
	}

	order.Subtotal = metaDecimal(md, metaSubtotal, subtotal)
	order.Discount = metaDecimal(md, metaDiscount, decimal.Zero)
	order.ShippingCost = metaDecimal(md, metaShipping, shippingCost)
	order.VATAmount = metaDecimal(md, metaVAT, vat)
	order.Total = metaDecimal(md, metaTotal, pricing.FromMinorUnits(session.AmountTotal))

	order.ShippingAddress = decodeAddress(md[metaShippingAddress])
	order.BillingAddress = decodeAddress(md[metaBillingAddress])
	if snapshot != nil {
		if order.ShippingAddress == nil {
			order.ShippingAddress = snapshot.ShippingAddress
		}
		if order.BillingAddress == nil {
			order.BillingAddress = snapshot.BillingAddress
		}
		if order.ShippingMethodID == "" {
			order.ShippingMethodID = snapshot.Cart.ShippingMethodID
		}
	}
	if collected := addressFromSession(session.CustomerAddress); collected != nil {
		if order.ShippingAddress == nil {
			order.ShippingAddress = collected
		}
		if order.BillingAddress == nil {
			order.BillingAddress = collected
		}
	}

	return order
}

func orderItem(li payment.SessionLineItem, exact decimal.Decimal) model.OrderItem {
	md := li.Metadata

	quantity := int(li.Quantity)
	if q, err := strconv.Atoi(md[metaQuantity]); err == nil && q > 0 {
		quantity = q
	}

	name := md[metaName]
	if name == "" {
		name = li.Name
	}

	unit := exact
	if quantity > 0 {
		unit = exact.Div(decimal.NewFromInt(int64(quantity)))
	}

	charged := li.AmountTotal
	if charged == 0 {
		charged = li.UnitAmount * li.Quantity
	}

	return model.OrderItem{
		ProductID:    md[metaProductID],
		VariantID:    md[metaVariantID],
		Name:         name,
		Image:        li.Image,
		Quantity:     quantity,
		PricePerUnit: metaDecimal(md, metaUnitPrice, unit),
		TotalPrice:   exact,
		ChargedMinor: charged,
	}
}

func metaDecimal(md map[string]string, key string, fallback decimal.Decimal) decimal.Decimal {
	if v, ok := md[key]; ok && v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			return d
		}
	}
	return fallback
}

func addressFromSession(a *payment.SessionAddress) *model.Address {
	if a == nil || a.Line1 == "" {
		return nil
	}
	return &model.Address{
		Name:     a.Name,
		Line1:    a.Line1,
		Line2:    a.Line2,
		City:     a.City,
		County:   a.State,
		Postcode: a.PostalCode,
		Country:  a.Country,
	}
}
