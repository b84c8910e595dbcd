package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Currency is the only currency the storefront charges in.
const Currency = "GBP"

// OrderStatus is the fulfilment state of an order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// orderTransitions lists the forward moves an admin may make. Cancellation is only
// allowed before an order ships; delivered and cancelled are terminal.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered},
}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether an admin may move an order from s to next.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Order is an immutable record of a paid checkout session.
// Items are a denormalised snapshot taken at purchase time.
type Order struct {
	ID                    uuid.UUID       `json:"id"`
	UserID                *string         `json:"userId,omitempty"`
	Email                 string          `json:"email"`
	Items                 []OrderItem     `json:"items"`
	ShippingAddress       *Address        `json:"shippingAddress,omitempty"`
	BillingAddress        *Address        `json:"billingAddress,omitempty"`
	ShippingMethodID      string          `json:"shippingMethodId,omitempty"`
	Subtotal              decimal.Decimal `json:"subtotal"`
	Discount              decimal.Decimal `json:"discount"`
	ShippingCost          decimal.Decimal `json:"shippingCost"`
	VATAmount             decimal.Decimal `json:"vatAmount"`
	Total                 decimal.Decimal `json:"total"`
	Currency              string          `json:"currency"`
	Status                OrderStatus     `json:"status"`
	PaymentStatus         string          `json:"paymentStatus"`
	StripeSessionID       string          `json:"stripeSessionId"`
	StripePaymentIntentID *string         `json:"stripePaymentIntentId,omitempty"`
	CreatedAt             time.Time       `json:"createdAt"`
	UpdatedAt             time.Time       `json:"updatedAt"`
}

// OrderItem is one purchased line, frozen at purchase time.
type OrderItem struct {
	ProductID    string          `json:"productId"`
	VariantID    string          `json:"variantId,omitempty"`
	Name         string          `json:"name"`
	Image        string          `json:"image,omitempty"`
	Quantity     int             `json:"quantity"`
	PricePerUnit decimal.Decimal `json:"pricePerUnit"`
	TotalPrice   decimal.Decimal `json:"totalPrice"`
	ChargedMinor int64           `json:"chargedMinor"`
}

// StatusUpdateRequest is the admin payload for moving an order along.
type StatusUpdateRequest struct {
	Status OrderStatus `json:"status" validate:"required"`
}
