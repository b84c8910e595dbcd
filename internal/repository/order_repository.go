package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"pack-store/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const orderColumns = `
	id, user_id, email, items, shipping_address, billing_address, shipping_method_id,
	subtotal, discount, shipping_cost, vat_amount, total, currency,
	status, payment_status, stripe_session_id, stripe_payment_intent_id,
	created_at, updated_at`

// orderRepository implements the OrderRepository interface using PostgreSQL.
type orderRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(pool *pgxpool.Pool, logger zerolog.Logger) OrderRepository {
	return &orderRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "order").Logger(),
	}
}

// Create inserts a new order.
func (r *orderRepository) Create(ctx context.Context, order *model.Order) error {
	items, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal order items: %w", err)
	}
	shipping, err := marshalAddress(order.ShippingAddress)
	if err != nil {
		return fmt.Errorf("failed to marshal shipping address: %w", err)
	}
	billing, err := marshalAddress(order.BillingAddress)
	if err != nil {
		return fmt.Errorf("failed to marshal billing address: %w", err)
	}

	query := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`

	_, err = r.pool.Exec(ctx, query,
		order.ID,
		order.UserID,
		order.Email,
		items,
		shipping,
		billing,
		order.ShippingMethodID,
		order.Subtotal,
		order.Discount,
		order.ShippingCost,
		order.VATAmount,
		order.Total,
		order.Currency,
		string(order.Status),
		order.PaymentStatus,
		order.StripeSessionID,
		order.StripePaymentIntentID,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			r.logger.Debug().
				Str("session_id", order.StripeSessionID).
				Msg("order already exists for session")
			return model.ErrOrderAlreadyExists
		}
		r.logger.Error().
			Err(err).
			Str("order_id", order.ID.String()).
			Str("session_id", order.StripeSessionID).
			Msg("failed to create order")
		return fmt.Errorf("failed to create order: %w", err)
	}

	r.logger.Debug().
		Str("order_id", order.ID.String()).
		Str("session_id", order.StripeSessionID).
		Msg("order created successfully")

	return nil
}

// GetByID retrieves an order by its ID.
func (r *orderRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	order, err := scanOrder(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Str("order_id", id.String()).Msg("order not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to query order")
		return nil, fmt.Errorf("failed to query order: %w", err)
	}

	return order, nil
}

// GetBySessionID retrieves the order created for a processor session.
func (r *orderRepository) GetBySessionID(ctx context.Context, sessionID string) (*model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE stripe_session_id = $1`

	order, err := scanOrder(r.pool.QueryRow(ctx, query, sessionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Str("session_id", sessionID).Msg("no order for session")
			return nil, nil
		}
		r.logger.Error().Err(err).Str("session_id", sessionID).Msg("failed to query order by session")
		return nil, fmt.Errorf("failed to query order by session: %w", err)
	}

	return order, nil
}

// UpdateStatus moves an order from one status to another in a single conditional update.
func (r *orderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.OrderStatus) (*model.Order, error) {
	query := `
		UPDATE orders
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING ` + orderColumns

	order, err := scanOrder(r.pool.QueryRow(ctx, query, id, string(from), string(to)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().
				Str("order_id", id.String()).
				Str("from", string(from)).
				Msg("order not in expected status")
			return nil, nil
		}
		r.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to update order status")
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}

	r.logger.Info().
		Str("order_id", id.String()).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("order status updated")

	return order, nil
}

func scanOrder(row pgx.Row) (*model.Order, error) {
	var (
		order                    model.Order
		items, shipping, billing []byte
		status                   string
	)

	err := row.Scan(
		&order.ID,
		&order.UserID,
		&order.Email,
		&items,
		&shipping,
		&billing,
		&order.ShippingMethodID,
		&order.Subtotal,
		&order.Discount,
		&order.ShippingCost,
		&order.VATAmount,
		&order.Total,
		&order.Currency,
		&status,
		&order.PaymentStatus,
		&order.StripeSessionID,
		&order.StripePaymentIntentID,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	order.Status = model.OrderStatus(status)
	if err := json.Unmarshal(items, &order.Items); err != nil {
		return nil, fmt.Errorf("failed to decode order items: %w", err)
	}
	if order.ShippingAddress, err = unmarshalAddress(shipping); err != nil {
		return nil, fmt.Errorf("failed to decode shipping address: %w", err)
	}
	if order.BillingAddress, err = unmarshalAddress(billing); err != nil {
		return nil, fmt.Errorf("failed to decode billing address: %w", err)
	}

	return &order, nil
}

// marshalAddress encodes a for a nullable JSONB column.
func marshalAddress(a *model.Address) ([]byte, error) {
	if a == nil {
		return nil, nil
	}
	return json.Marshal(a)
}

func unmarshalAddress(raw []byte) (*model.Address, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var a model.Address
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, err
	}
	return &a, nil
}
