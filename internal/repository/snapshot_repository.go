package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"pack-store/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// snapshotRepository implements SnapshotRepository using PostgreSQL.
type snapshotRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewSnapshotRepository creates a new PostgreSQL-backed checkout snapshot repository.
func NewSnapshotRepository(pool *pgxpool.Pool, logger zerolog.Logger) SnapshotRepository {
	return &snapshotRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "checkout_snapshot").Logger(),
	}
}

// Create records a snapshot, ignoring a duplicate for the same session.
func (r *snapshotRepository) Create(ctx context.Context, snapshot *model.CheckoutSnapshot) error {
	cart, err := json.Marshal(snapshot.Cart)
	if err != nil {
		return fmt.Errorf("failed to marshal cart: %w", err)
	}
	shipping, err := marshalAddress(snapshot.ShippingAddress)
	if err != nil {
		return fmt.Errorf("failed to marshal shipping address: %w", err)
	}
	billing, err := marshalAddress(snapshot.BillingAddress)
	if err != nil {
		return fmt.Errorf("failed to marshal billing address: %w", err)
	}

	query := `
		INSERT INTO checkout_snapshots (id, session_id, user_id, email, cart, shipping_address, billing_address, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (session_id) DO NOTHING
	`

	tag, err := r.pool.Exec(ctx, query,
		snapshot.ID,
		snapshot.SessionID,
		snapshot.UserID,
		snapshot.Email,
		cart,
		shipping,
		billing,
		snapshot.CreatedAt,
	)
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("session_id", snapshot.SessionID).
			Msg("failed to create checkout snapshot")
		return fmt.Errorf("failed to create checkout snapshot: %w", err)
	}

	r.logger.Debug().
		Str("session_id", snapshot.SessionID).
		Bool("inserted", tag.RowsAffected() == 1).
		Msg("checkout snapshot stored")

	return nil
}

// GetBySessionID retrieves the snapshot for a processor session.
func (r *snapshotRepository) GetBySessionID(ctx context.Context, sessionID string) (*model.CheckoutSnapshot, error) {
	query := `
		SELECT id, session_id, user_id, email, cart, shipping_address, billing_address, created_at
		FROM checkout_snapshots
		WHERE session_id = $1
	`

	var (
		snapshot                model.CheckoutSnapshot
		cart, shipping, billing []byte
	)

	err := r.pool.QueryRow(ctx, query, sessionID).Scan(
		&snapshot.ID,
		&snapshot.SessionID,
		&snapshot.UserID,
		&snapshot.Email,
		&cart,
		&shipping,
		&billing,
		&snapshot.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Str("session_id", sessionID).Msg("checkout snapshot not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Str("session_id", sessionID).Msg("failed to query checkout snapshot")
		return nil, fmt.Errorf("failed to query checkout snapshot: %w", err)
	}

	if err := json.Unmarshal(cart, &snapshot.Cart); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot cart: %w", err)
	}
	if snapshot.ShippingAddress, err = unmarshalAddress(shipping); err != nil {
		return nil, fmt.Errorf("failed to decode shipping address: %w", err)
	}
	if snapshot.BillingAddress, err = unmarshalAddress(billing); err != nil {
		return nil, fmt.Errorf("failed to decode billing address: %w", err)
	}

	return &snapshot, nil
}
