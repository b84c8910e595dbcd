package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// QuoteRequest is a B2B request for bulk pricing.
type QuoteRequest struct {
	ID          uuid.UUID          `json:"id"`
	CompanyName string             `json:"companyName" validate:"required,max=200"`
	ContactName string             `json:"contactName" validate:"required,max=100"`
	Email       string             `json:"email" validate:"required,email"`
	Phone       string             `json:"phone,omitempty" validate:"max=30"`
	Items       []QuoteItemRequest `json:"items" validate:"required,min=1,dive"`
	Message     string             `json:"message,omitempty" validate:"max=2000"`
	CreatedAt   time.Time          `json:"createdAt"`
}

// QuoteItemRequest is a product and the quantity the buyer wants priced.
type QuoteItemRequest struct {
	ProductID string `json:"productId" validate:"required"`
	VariantID string `json:"variantId,omitempty"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
}

// QuoteResponse acknowledges a quote request with indicative list pricing.
type QuoteResponse struct {
	ID       uuid.UUID       `json:"id"`
	Lines    []PricedLine    `json:"lines"`
	Subtotal decimal.Decimal `json:"subtotal"`
}
