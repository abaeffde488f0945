package pricing

import (
	"strings"

	"github.com/shopspring/decimal"
)

// MinorUnits is the number of fractional digits used for currency amounts.
const MinorUnits = 2

var (
	defaultCommission  = decimal.RequireFromString("0.05")
	defaultDeliveryFee = decimal.NewFromInt(20)
	defaultTax         = decimal.RequireFromString("0.18")
)

// Rates holds the platform charges applied on top of a seller price.
type Rates struct {
	Commission  decimal.Decimal
	DeliveryFee decimal.Decimal
	Tax         decimal.Decimal
}

// DefaultRates returns 5% commission, a flat delivery fee of 20 and 18% tax.
func DefaultRates() Rates {
	return Rates{
		Commission:  defaultCommission,
		DeliveryFee: defaultDeliveryFee,
		Tax:         defaultTax,
	}
}

// Breakdown lists every stage of a market price computation.
type Breakdown struct {
	Seller     decimal.Decimal
	Commission decimal.Decimal
	Delivery   decimal.Decimal
	Subtotal   decimal.Decimal
	Tax        decimal.Decimal
	Market     decimal.Decimal
}

// Calculator derives buyer-facing prices from seller prices. The zero value
// applies DefaultRates.
type Calculator struct {
	rates Rates
	set   bool
}

// NewCalculator builds a calculator with r applied as given, zero components
// included. Negative components fall back to their defaults.
func NewCalculator(r Rates) Calculator {
	def := DefaultRates()
	if r.Commission.IsNegative() {
		r.Commission = def.Commission
	}
	if r.DeliveryFee.IsNegative() {
		r.DeliveryFee = def.DeliveryFee
	}
	if r.Tax.IsNegative() {
		r.Tax = def.Tax
	}
	return Calculator{rates: r, set: true}
}

// Default returns a calculator using DefaultRates.
func Default() Calculator {
	return NewCalculator(DefaultRates())
}

// Rates returns the rates the calculator applies.
func (c Calculator) Rates() Rates {
	if !c.set {
		return DefaultRates()
	}
	return c.rates
}

// Breakdown computes commission, delivery, subtotal, tax and market price in
// that order. Tax applies to the subtotal including commission and delivery.
// Negative seller prices are clamped to zero.
func (c Calculator) Breakdown(seller decimal.Decimal) Breakdown {
	r := c.Rates()
	if seller.IsNegative() {
		seller = decimal.Zero
	}
	commission := seller.Mul(r.Commission)
	subtotal := seller.Add(commission).Add(r.DeliveryFee)
	tax := subtotal.Mul(r.Tax)
	return Breakdown{
		Seller:     seller,
		Commission: commission,
		Delivery:   r.DeliveryFee,
		Subtotal:   subtotal,
		Tax:        tax,
		Market:     subtotal.Add(tax),
	}
}

// ComputeMarketPrice returns the unrounded market price for the seller price.
func (c Calculator) ComputeMarketPrice(seller decimal.Decimal) decimal.Decimal {
	return c.Breakdown(seller).Market
}

// ComputeMarketPriceString parses raw seller input and returns the formatted market price.
func (c Calculator) ComputeMarketPriceString(raw string) string {
	return FormatPrice(c.ComputeMarketPrice(ParseSellerPrice(raw)))
}

// ParseSellerPrice converts owner input into a non-negative amount rounded to
// minor units. Empty, non-numeric and negative input resolve to zero.
func ParseSellerPrice(raw string) decimal.Decimal {
	trimmed := strings.TrimSpace(raw)
	trimmed = strings.TrimSuffix(trimmed, ".")
	if trimmed == "" || trimmed == "-" || trimmed == "+" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil || d.IsNegative() {
		return decimal.Zero
	}
	return d.Round(MinorUnits)
}

// FormatPrice renders an amount with exactly two fractional digits.
func FormatPrice(d decimal.Decimal) string {
	return d.StringFixed(MinorUnits)
}

// OrderTotal multiplies a unit price by a quantity, rounding to minor units.
// Non-positive quantities yield zero.
func OrderTotal(unit decimal.Decimal, qty int) decimal.Decimal {
	if qty <= 0 || unit.IsNegative() {
		return decimal.Zero
	}
	return unit.Mul(decimal.NewFromInt(int64(qty))).Round(MinorUnits)
}
