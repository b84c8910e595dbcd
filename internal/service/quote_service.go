package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"pack-store/internal/catalog"
	"pack-store/internal/model"
	"pack-store/internal/pricing"
	"pack-store/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// quoteService implements QuoteService.
type quoteService struct {
	quoteRepo repository.QuoteRepository
	catalog   catalog.Catalog
	logger    zerolog.Logger
}

// NewQuoteService creates a new quote service.
func NewQuoteService(quoteRepo repository.QuoteRepository, cat catalog.Catalog, logger zerolog.Logger) QuoteService {
	return &quoteService{
		quoteRepo: quoteRepo,
		catalog:   cat,
		logger:    logger.With().Str("service", "quote").Logger(),
	}
}

// Submit validates and stores a quote request and returns indicative pricing.
// The prices are list prices at the requested quantities, not an offer.
func (s *quoteService) Submit(ctx context.Context, req *model.QuoteRequest) (*model.QuoteResponse, error) {
	if req == nil {
		return nil, model.ErrValidation
	}

	req.Email = strings.TrimSpace(req.Email)
	if err := validate.Struct(req); err != nil {
		s.logger.Debug().Err(err).Msg("quote request failed validation")
		return nil, validationError(model.ErrValidation, "", err)
	}

	lines := make([]model.PricedLine, 0, len(req.Items))
	subtotal := decimal.Zero
	for _, item := range req.Items {
		product, ok := s.catalog.Get(item.ProductID)
		if !ok {
			s.logger.Warn().Str("product_id", item.ProductID).Msg("quote for unknown product")
			return nil, model.ErrProductNotFound
		}

		var variant *model.Variant
		if item.VariantID != "" {
			v, ok := product.Variant(item.VariantID)
			if !ok {
				return nil, model.ErrProductNotFound
			}
			variant = v
		}

		line := pricing.PriceLine(product, variant, item.Quantity)
		subtotal = subtotal.Add(line.TotalPrice)
		lines = append(lines, line)
	}

	req.ID = uuid.New()
	req.CreatedAt = time.Now().UTC()

	if err := s.quoteRepo.Create(ctx, req); err != nil {
		s.logger.Error().Err(err).Str("quote_id", req.ID.String()).Msg("failed to save quote request")
		return nil, fmt.Errorf("failed to save quote request: %w", err)
	}

	s.logger.Info().
		Str("quote_id", req.ID.String()).
		Str("company", req.CompanyName).
		Int("item_count", len(req.Items)).
		Msg("quote request received")

	return &model.QuoteResponse{
		ID:       req.ID,
		Lines:    lines,
		Subtotal: subtotal,
	}, nil
}
