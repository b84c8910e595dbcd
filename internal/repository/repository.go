package repository

import (
	"context"
	"errors"

	"pack-store/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// uniqueViolation is the PostgreSQL SQLSTATE for a unique constraint failure.
const uniqueViolation = "23505"

// OrderRepository defines the interface for order data access operations.
type OrderRepository interface {
	// Create inserts a new order.
	// Returns model.ErrOrderAlreadyExists if an order for the same processor session exists.
	Create(ctx context.Context, order *model.Order) error

	// GetByID retrieves an order by its ID. Returns nil if not found.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error)

	// GetBySessionID retrieves the order created for a processor session. Returns nil if not found.
	GetBySessionID(ctx context.Context, sessionID string) (*model.Order, error)

	// UpdateStatus moves an order from one status to another.
	// Returns nil if the order does not exist or is no longer in the from status.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.OrderStatus) (*model.Order, error)
}

// SnapshotRepository stores the carts handed to the payment processor.
type SnapshotRepository interface {
	// Create records a snapshot. A second snapshot for the same session is ignored.
	Create(ctx context.Context, snapshot *model.CheckoutSnapshot) error

	// GetBySessionID retrieves the snapshot for a processor session. Returns nil if not found.
	GetBySessionID(ctx context.Context, sessionID string) (*model.CheckoutSnapshot, error)
}

// QuoteRepository stores B2B quote requests.
type QuoteRepository interface {
	// Create inserts a new quote request.
	Create(ctx context.Context, quote *model.QuoteRequest) error
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
