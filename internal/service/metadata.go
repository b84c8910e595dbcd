package service

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"pack-store/internal/model"
)

// maxMetadataValue is the longest value the processor accepts in a metadata field.
const maxMetadataValue = 500

// Line item metadata keys.
const (
	metaType       = "type"
	metaProductID  = "product_id"
	metaVariantID  = "variant_id"
	metaName       = "name"
	metaUnitPrice  = "unit_price"
	metaQuantity   = "quantity"
	metaExactTotal = "exact_total"
	metaMinorTotal = "minor_total"
)

// Session metadata keys.
const (
	metaSubtotal        = "subtotal"
	metaDiscount        = "discount"
	metaShipping        = "shipping"
	metaVAT             = "vat"
	metaTotal           = "total"
	metaChargedMinor    = "charged_minor"
	metaUserID          = "user_id"
	metaEmail           = "email"
	metaShippingMethod  = "shipping_method_id"
	metaShippingAddress = "shipping_address"
	metaBillingAddress  = "billing_address"
	metaCartSummary     = "cart_summary"
)

// Line types.
const (
	lineTypeProduct  = "product"
	lineTypeShipping = "shipping"
	lineTypeVAT      = "vat"
)

// truncate shortens s to at most max bytes without splitting a rune, marking the cut with "...".
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	const ellipsis = "..."
	cut := max - len(ellipsis)
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + ellipsis
}

// cartSummary renders a human-readable one-line description of the cart.
func cartSummary(lines []model.PricedLine) string {
	parts := make([]string, len(lines))
	for i, l := range lines {
		parts[i] = fmt.Sprintf("%dx %s", l.Quantity, l.Name)
	}
	return truncate(strings.Join(parts, "; "), maxMetadataValue)
}

func encodeAddress(addr *model.Address) (string, error) {
	if addr == nil {
		return "", nil
	}
	b, err := json.Marshal(addr)
	if err != nil {
		return "", fmt.Errorf("failed to encode address: %w", err)
	}
	if len(b) > maxMetadataValue {
		return "", model.ErrInvalidAddress
	}
	return string(b), nil
}

// decodeAddress returns nil for an empty or unreadable value.
func decodeAddress(value string) *model.Address {
	if value == "" {
		return nil
	}
	var addr model.Address
	if err := json.Unmarshal([]byte(value), &addr); err != nil {
		return nil
	}
	return &addr
}
