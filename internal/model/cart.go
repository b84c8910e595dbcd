package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Address is a UK postal address. Line2 and County are optional.
// Field limits keep a serialised address within one processor metadata value.
type Address struct {
	Name     string `json:"name" validate:"required,max=70"`
	Line1    string `json:"line1" validate:"required,max=100"`
	Line2    string `json:"line2,omitempty" validate:"max=100"`
	City     string `json:"city" validate:"required,max=50"`
	County   string `json:"county,omitempty" validate:"max=50"`
	Postcode string `json:"postcode" validate:"required,max=10"`
	Country  string `json:"country" validate:"required,iso3166_1_alpha2"`
}

// CartItemRequest is one line of a cart as submitted by the browser.
// Name, Image, PricePerUnit and TotalPrice are display hints only.
type CartItemRequest struct {
	ProductID    string           `json:"productId" validate:"required"`
	VariantID    string           `json:"variantId,omitempty"`
	Quantity     int              `json:"quantity"`
	Name         string           `json:"name,omitempty"`
	Image        string           `json:"image,omitempty"`
	PricePerUnit *decimal.Decimal `json:"pricePerUnit,omitempty"`
	TotalPrice   *decimal.Decimal `json:"totalPrice,omitempty"`
}

// CheckoutRequest is the inbound checkout payload.
// Subtotal, Total, VATAmount and ShippingCost are advisory; the server reprices the cart.
type CheckoutRequest struct {
	Items            []CartItemRequest `json:"items"`
	ShippingAddress  *Address          `json:"shippingAddress,omitempty"`
	BillingAddress   *Address          `json:"billingAddress,omitempty"`
	ShippingMethodID string            `json:"shippingMethodId,omitempty"`
	ShippingCost     *decimal.Decimal  `json:"shippingCost,omitempty"`
	VATAmount        *decimal.Decimal  `json:"vatAmount,omitempty"`
	Subtotal         *decimal.Decimal  `json:"subtotal,omitempty"`
	Total            *decimal.Decimal  `json:"total,omitempty"`
	Email            string            `json:"email,omitempty"`
}

// CheckoutResponse is returned once the processor session exists.
type CheckoutResponse struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

// Buyer is the authenticated identity forwarded by the auth gateway, if any.
type Buyer struct {
	UserID string
	Email  string
}

// PricedLine is a cart line priced on the server from catalogue data.
type PricedLine struct {
	ProductID    string          `json:"productId"`
	VariantID    string          `json:"variantId,omitempty"`
	Name         string          `json:"name"`
	Image        string          `json:"image,omitempty"`
	Quantity     int             `json:"quantity"`
	AdjustedBase decimal.Decimal `json:"adjustedBase"`
	PricePerUnit decimal.Decimal `json:"pricePerUnit"`
	TotalPrice   decimal.Decimal `json:"totalPrice"`
}

// Discount returns the tier saving on this line, already folded into TotalPrice.
func (l PricedLine) Discount() decimal.Decimal {
	return l.AdjustedBase.Sub(l.PricePerUnit).Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// CartTotals is the derived aggregate of a priced cart.
type CartTotals struct {
	Subtotal     decimal.Decimal `json:"subtotal"`
	Discount     decimal.Decimal `json:"discount"`
	ShippingCost decimal.Decimal `json:"shippingCost"`
	VATAmount    decimal.Decimal `json:"vatAmount"`
	Total        decimal.Decimal `json:"total"`
}

// PricedCart is the server's view of a cart ready for checkout.
type PricedCart struct {
	Lines            []PricedLine `json:"lines"`
	ShippingMethodID string       `json:"shippingMethodId"`
	Totals           CartTotals   `json:"totals"`
}

// CheckoutSnapshot is a best-effort record of a cart handed to the processor.
type CheckoutSnapshot struct {
	ID              uuid.UUID
	SessionID       string
	UserID          *string
	Email           string
	Cart            PricedCart
	ShippingAddress *Address
	BillingAddress  *Address
	CreatedAt       time.Time
}
