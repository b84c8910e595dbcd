package service

import (
	"context"

	"pack-store/internal/catalog"
	"pack-store/internal/model"

	"github.com/rs/zerolog"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// productService implements ProductService.
type productService struct {
	catalog catalog.Catalog
	logger  zerolog.Logger
}

// NewProductService creates a new product service.
func NewProductService(cat catalog.Catalog, logger zerolog.Logger) ProductService {
	return &productService{
		catalog: cat,
		logger:  logger.With().Str("service", "product").Logger(),
	}
}

// GetAll retrieves products in catalogue order with pagination.
func (s *productService) GetAll(ctx context.Context, limit, offset int) ([]model.Product, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	all := s.catalog.List()
	if offset >= len(all) {
		return []model.Product{}, nil
	}

	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	products := all[offset:end]

	s.logger.Debug().
		Int("count", len(products)).
		Int("limit", limit).
		Int("offset", offset).
		Msg("retrieved products")

	return products, nil
}

// GetByID retrieves a single product by ID.
func (s *productService) GetByID(ctx context.Context, id string) (*model.Product, error) {
	if id == "" {
		s.logger.Warn().Msg("product ID is empty")
		return nil, model.ErrProductNotFound
	}

	product, ok := s.catalog.Get(id)
	if !ok {
		s.logger.Debug().Str("product_id", id).Msg("product not found")
		return nil, model.ErrProductNotFound
	}

	return product, nil
}
