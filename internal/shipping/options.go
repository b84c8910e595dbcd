// Package shipping holds the static delivery catalogue offered at checkout.
package shipping

import (
	"pack-store/internal/model"

	"github.com/shopspring/decimal"
)

// DefaultMethodID is used when a checkout request names no shipping method.
const DefaultMethodID = "standard"

// Option is a flat-rate delivery method.
type Option struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Price        decimal.Decimal `json:"price"`
	DeliveryTime string          `json:"deliveryTime"`
}

// Catalog is an ordered, read-only set of delivery options.
type Catalog struct {
	options []Option
	byID    map[string]Option
}

// NewCatalog builds a catalogue from options, keeping their order for display.
func NewCatalog(options []Option) *Catalog {
	c := &Catalog{
		options: make([]Option, len(options)),
		byID:    make(map[string]Option, len(options)),
	}
	copy(c.options, options)
	for _, o := range options {
		c.byID[o.ID] = o
	}
	return c
}

// DefaultCatalog returns the delivery options offered on the storefront.
func DefaultCatalog() *Catalog {
	return NewCatalog([]Option{
		{ID: "standard", Name: "Standard Delivery", Price: decimal.Zero, DeliveryTime: "3-5 working days"},
		{ID: "express", Name: "Next Working Day", Price: decimal.RequireFromString("9.95"), DeliveryTime: "Next working day if ordered before 2pm"},
		{ID: "pallet", Name: "Pallet Delivery", Price: decimal.RequireFromString("45.00"), DeliveryTime: "2-3 working days, tail-lift vehicle"},
	})
}

// List returns every option in display order.
func (c *Catalog) List() []Option {
	out := make([]Option, len(c.options))
	copy(out, c.options)
	return out
}

// Resolve returns the option for id, falling back to DefaultMethodID when id is empty.
func (c *Catalog) Resolve(id string) (Option, error) {
	if id == "" {
		id = DefaultMethodID
	}
	o, ok := c.byID[id]
	if !ok {
		return Option{}, model.ErrInvalidShippingMethod
	}
	return o, nil
}
