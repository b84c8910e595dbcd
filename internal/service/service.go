package service

import (
	"context"

	"pack-store/internal/model"

	"github.com/google/uuid"
)

// ProductService defines read operations on the product catalogue.
type ProductService interface {
	// GetAll retrieves products in catalogue order with pagination.
	GetAll(ctx context.Context, limit, offset int) ([]model.Product, error)

	// GetByID retrieves a single product by ID.
	GetByID(ctx context.Context, id string) (*model.Product, error)
}

// CheckoutService prices carts and hands them to the payment processor.
type CheckoutService interface {
	// PriceCart reprices a cart from the catalogue without contacting the processor.
	PriceCart(ctx context.Context, items []model.CartItemRequest, shippingMethodID string) (*model.PricedCart, error)

	// CreateSession validates and prices a cart, then opens a hosted payment session for it.
	CreateSession(ctx context.Context, req *model.CheckoutRequest, buyer model.Buyer) (*model.CheckoutResponse, error)
}

// OrderService turns paid processor sessions into orders and manages them afterwards.
type OrderService interface {
	// ConfirmSession returns the order for a paid session, creating it on first sight.
	// Safe to call any number of times for the same session.
	ConfirmSession(ctx context.Context, sessionID string) (*model.Order, error)

	// GetBySessionID retrieves an existing order without contacting the processor.
	GetBySessionID(ctx context.Context, sessionID string) (*model.Order, error)

	// GetByID retrieves an order by its ID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error)

	// UpdateStatus moves an order along its fulfilment lifecycle.
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.OrderStatus) (*model.Order, error)
}

// QuoteService records B2B quote requests.
type QuoteService interface {
	// Submit validates and stores a quote request and returns indicative pricing.
	Submit(ctx context.Context, req *model.QuoteRequest) (*model.QuoteResponse, error)
}
