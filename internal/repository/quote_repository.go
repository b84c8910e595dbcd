package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"pack-store/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// quoteRepository implements QuoteRepository using PostgreSQL.
type quoteRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewQuoteRepository creates a new PostgreSQL-backed quote request repository.
func NewQuoteRepository(pool *pgxpool.Pool, logger zerolog.Logger) QuoteRepository {
	return &quoteRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "quote").Logger(),
	}
}

// Create inserts a new quote request.
func (r *quoteRepository) Create(ctx context.Context, quote *model.QuoteRequest) error {
	items, err := json.Marshal(quote.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal quote items: %w", err)
	}

	query := `
		INSERT INTO quote_requests (id, company_name, contact_name, email, phone, items, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = r.pool.Exec(ctx, query,
		quote.ID,
		quote.CompanyName,
		quote.ContactName,
		quote.Email,
		quote.Phone,
		items,
		quote.Message,
		quote.CreatedAt,
	)
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("quote_id", quote.ID.String()).
			Msg("failed to create quote request")
		return fmt.Errorf("failed to create quote request: %w", err)
	}

	r.logger.Debug().
		Str("quote_id", quote.ID.String()).
		Int("items", len(quote.Items)).
		Msg("quote request created successfully")

	return nil
}
