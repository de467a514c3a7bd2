package domain

import (
	"github.com/shopspring/decimal"
)

// PricingField names the product form field the operator edited.
type PricingField string

const (
	PricingFieldCost      PricingField = "cost"
	PricingFieldSalePrice PricingField = "salePrice"
	PricingFieldMarkup    PricingField = "markup"
	// PricingFieldMargin is display-only and never drives a recompute.
	PricingFieldMargin PricingField = "margin"
)

// IsEditable reports whether the field can be the source of a recompute.
func (f PricingField) IsEditable() bool {
	switch f {
	case PricingFieldCost, PricingFieldSalePrice, PricingFieldMarkup:
		return true
	default:
		return false
	}
}

// PricingResult keeps cost, sale price, markup% and margin% mutually consistent.
// Markup and margin are blank (Valid == false) when their divisor is zero.
type PricingResult struct {
	Cost          decimal.Decimal
	SalePrice     decimal.Decimal
	MarkupPercent decimal.NullDecimal
	MarginPercent decimal.NullDecimal
}

// PricingDisplay is a PricingResult rendered for the product form.
type PricingDisplay struct {
	Cost          string `json:"cost"`
	SalePrice     string `json:"sale_price"`
	MarkupPercent string `json:"markup_percent"`
	MarginPercent string `json:"margin_percent"`
}

// NewPricing derives markup and margin from a cost/sale price pair.
func NewPricing(cost, salePrice decimal.Decimal) PricingResult {
	return PricingResult{
		Cost:          cost,
		SalePrice:     salePrice,
		MarkupPercent: Markup(cost, salePrice),
		MarginPercent: Margin(cost, salePrice),
	}
}

// Display formats every field with two decimals.
func (p PricingResult) Display() PricingDisplay {
	return PricingDisplay{
		Cost:          FormatAmount(p.Cost),
		SalePrice:     FormatAmount(p.SalePrice),
		MarkupPercent: FormatPercent(p.MarkupPercent),
		MarginPercent: FormatPercent(p.MarginPercent),
	}
}

// RecomputePricing applies one edit to current and returns the new state.
// current is never modified.
//
// Precedence:
//   - cost: with a positive markup and a positive new cost, the sale price follows
//     the markup; otherwise the sale price stays and markup/margin are re-derived.
//   - salePrice: markup and margin are re-derived; cost is never back-derived.
//   - markup: with a positive cost the sale price follows the markup; with a zero
//     cost the markup is stored as typed and nothing else changes.
//
// Any other field, margin included, returns current unchanged.
func RecomputePricing(current PricingResult, field PricingField, raw string) PricingResult {
	next := current

	switch field {
	case PricingFieldCost:
		cost := ParseLocalizedAmount(raw)
		next.Cost = cost

		markup := current.MarkupPercent
		if markup.Valid && markup.Decimal.IsPositive() && cost.IsPositive() {
			next.SalePrice = ApplyMarkup(cost, markup.Decimal)
			next.MarginPercent = Margin(cost, next.SalePrice)
			return next
		}

		next.MarkupPercent = Markup(cost, next.SalePrice)
		next.MarginPercent = Margin(cost, next.SalePrice)

	case PricingFieldSalePrice:
		salePrice := ParseLocalizedAmount(raw)
		next.SalePrice = salePrice
		next.MarkupPercent = Markup(next.Cost, salePrice)
		next.MarginPercent = Margin(next.Cost, salePrice)

	case PricingFieldMarkup:
		markup := ParseLocalizedPercent(raw)
		next.MarkupPercent = decimal.NewNullDecimal(markup)
		if !current.Cost.IsPositive() {
			return next
		}

		next.SalePrice = ApplyMarkup(current.Cost, markup)
		next.MarginPercent = Margin(current.Cost, next.SalePrice)
	}

	return next
}

// Markup returns (salePrice - cost) / cost * 100, blank when cost is zero.
func Markup(cost, salePrice decimal.Decimal) decimal.NullDecimal {
	if !cost.IsPositive() {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(salePrice.Sub(cost).Mul(hundred).Div(cost))
}

// Margin returns (salePrice - cost) / salePrice * 100. It is blank when either
// side is zero: a zero sale price has no margin and a zero cost leaves the form's
// percentages undefined.
func Margin(cost, salePrice decimal.Decimal) decimal.NullDecimal {
	if !cost.IsPositive() || !salePrice.IsPositive() {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(salePrice.Sub(cost).Mul(hundred).Div(salePrice))
}

// ApplyMarkup returns cost * (1 + markup/100). A discount deeper than 100%
// floors at zero.
func ApplyMarkup(cost, markupPercent decimal.Decimal) decimal.Decimal {
	price := cost.Mul(hundred.Add(markupPercent)).Div(hundred)
	if price.IsNegative() {
		return decimal.Zero
	}
	return price
}
