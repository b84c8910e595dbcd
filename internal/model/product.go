package model

import "github.com/shopspring/decimal"

// Product represents a packaging product in the catalogue.
type Product struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Slug         string          `json:"slug,omitempty"`
	Category     string          `json:"category,omitempty"`
	BasePrice    decimal.Decimal `json:"basePrice"`
	Image        string          `json:"image,omitempty"`
	Variants     []Variant       `json:"variants,omitempty"`
	PricingTiers []PricingTier   `json:"pricingTiers,omitempty"`
}

// Variant is a sellable option of a product (size, wall strength, colour).
type Variant struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	PriceAdjustment decimal.Decimal `json:"priceAdjustment"`
}

// PricingTier is a quantity band with a percentage discount.
// A nil MaxQuantity means the band is open-ended.
type PricingTier struct {
	MinQuantity int             `json:"minQuantity"`
	MaxQuantity *int            `json:"maxQuantity,omitempty"`
	Discount    decimal.Decimal `json:"discount"`
}

// Variant returns the variant with the given ID.
func (p *Product) Variant(id string) (*Variant, bool) {
	for i := range p.Variants {
		if p.Variants[i].ID == id {
			return &p.Variants[i], true
		}
	}
	return nil, false
}
