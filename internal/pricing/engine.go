// Package pricing computes unit and line prices for cart items and rolls them
// up into VAT-inclusive order totals.
//
// All arithmetic is exact decimal arithmetic. Nothing in this package rounds
// except ToMinorUnits, which is the single boundary where a pound amount
// becomes an integer number of pence.
package pricing

import (
	"errors"
	"fmt"
	"sort"

	"pack-store/internal/model"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidTier is returned by NormalizeTiers for a band that cannot match any quantity.
	ErrInvalidTier = errors.New("invalid pricing tier")

	// ErrOverlappingTiers is returned by NormalizeTiers when two bands share a quantity.
	ErrOverlappingTiers = errors.New("overlapping pricing tiers")
)

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// ActiveTier returns the first tier whose range contains quantity.
// Tiers are evaluated in slice order; callers that need a deterministic
// answer for overlapping data should pass tiers through NormalizeTiers first.
func ActiveTier(quantity int, tiers []model.PricingTier) (*model.PricingTier, bool) {
	for i := range tiers {
		t := &tiers[i]
		if quantity < t.MinQuantity {
			continue
		}
		if t.MaxQuantity != nil && quantity > *t.MaxQuantity {
			continue
		}
		return t, true
	}
	return nil, false
}

// CalculatePricePerUnit returns the exact unit price for quantity after the
// variant adjustment and any matching tier discount.
func CalculatePricePerUnit(quantity int, basePrice decimal.Decimal, tiers []model.PricingTier, variantAdjustment decimal.Decimal) decimal.Decimal {
	adjusted := basePrice.Add(variantAdjustment)

	tier, ok := ActiveTier(quantity, tiers)
	if !ok || !tier.Discount.IsPositive() {
		return adjusted
	}

	discount := tier.Discount
	if discount.GreaterThan(hundred) {
		discount = hundred
	}

	// Shift(-2) divides by 100 without the precision limit of Div.
	return adjusted.Mul(one.Sub(discount.Shift(-2)))
}

// CalculateTotalPrice returns unit price * quantity with no rounding.
func CalculateTotalPrice(quantity int, basePrice decimal.Decimal, tiers []model.PricingTier, variantAdjustment decimal.Decimal) decimal.Decimal {
	unit := CalculatePricePerUnit(quantity, basePrice, tiers, variantAdjustment)
	return unit.Mul(decimal.NewFromInt(int64(quantity)))
}

// PriceLine prices one cart line from catalogue data. variant may be nil.
func PriceLine(product *model.Product, variant *model.Variant, quantity int) model.PricedLine {
	adjustment := decimal.Zero
	name := product.Name
	line := model.PricedLine{
		ProductID: product.ID,
		Image:     product.Image,
		Quantity:  quantity,
	}
	if variant != nil {
		adjustment = variant.PriceAdjustment
		line.VariantID = variant.ID
		name = fmt.Sprintf("%s (%s)", product.Name, variant.Name)
	}

	line.Name = name
	line.AdjustedBase = product.BasePrice.Add(adjustment)
	line.PricePerUnit = CalculatePricePerUnit(quantity, product.BasePrice, product.PricingTiers, adjustment)
	line.TotalPrice = line.PricePerUnit.Mul(decimal.NewFromInt(int64(quantity)))
	return line
}

// NormalizeTiers returns a copy of tiers sorted by MinQuantity and rejects
// bands that are empty or that overlap a neighbour. After normalisation
// first-match-wins and unique-match are the same rule.
func NormalizeTiers(tiers []model.PricingTier) ([]model.PricingTier, error) {
	if len(tiers) == 0 {
		return nil, nil
	}

	sorted := make([]model.PricingTier, len(tiers))
	copy(sorted, tiers)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].MinQuantity < sorted[j].MinQuantity
	})

	for i, t := range sorted {
		if t.MinQuantity < 0 {
			return nil, fmt.Errorf("%w: minQuantity %d is negative", ErrInvalidTier, t.MinQuantity)
		}
		if t.MaxQuantity != nil && *t.MaxQuantity < t.MinQuantity {
			return nil, fmt.Errorf("%w: maxQuantity %d below minQuantity %d", ErrInvalidTier, *t.MaxQuantity, t.MinQuantity)
		}
		if t.Discount.IsNegative() || t.Discount.GreaterThan(hundred) {
			return nil, fmt.Errorf("%w: discount %s outside 0-100", ErrInvalidTier, t.Discount)
		}
		if i == 0 {
			continue
		}
		prev := sorted[i-1]
		if prev.MaxQuantity == nil || *prev.MaxQuantity >= t.MinQuantity {
			return nil, fmt.Errorf("%w: band starting at %d overlaps band starting at %d", ErrOverlappingTiers, t.MinQuantity, prev.MinQuantity)
		}
	}

	return sorted, nil
}
