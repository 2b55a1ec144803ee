// Package pricing derives the totals breakdown for a set of cart lines and an
// optional applied coupon.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/pawshop-checkout/internal/domain"
	"github.com/joao-fontenele/pawshop-checkout/internal/money"
)

var (
	DefaultShippingFee = decimal.RequireFromString("4.99")
	DefaultTaxRate     = decimal.RequireFromString("0.20")
)

var hundred = decimal.NewFromInt(100)

// Totals is the full breakdown. Values keep full precision; use Rounded for
// anything shown to a customer or sent over the wire.
type Totals struct {
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Shipping decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

func (t Totals) Rounded() Totals {
	return Totals{
		Subtotal: money.Round(t.Subtotal),
		Discount: money.Round(t.Discount),
		Shipping: money.Round(t.Shipping),
		Tax:      money.Round(t.Tax),
		Total:    money.Round(t.Total),
	}
}

// Calculator holds the flat shipping fee and VAT rate.
type Calculator struct {
	ShippingFee decimal.Decimal
	TaxRate     decimal.Decimal
}

func NewCalculator(shippingFee, taxRate decimal.Decimal) Calculator {
	return Calculator{ShippingFee: shippingFee, TaxRate: taxRate}
}

func Default() Calculator {
	return NewCalculator(DefaultShippingFee, DefaultTaxRate)
}

// Calculate computes subtotal, discount, shipping, tax and total in that
// order. VAT applies to the discounted subtotal. An empty cart ships free.
func (c Calculator) Calculate(items []domain.LineItem, coupon *domain.CouponApplication) Totals {
	subtotal := Subtotal(items)
	discount := Discount(subtotal, coupon)
	taxable := subtotal.Sub(discount)
	tax := taxable.Mul(c.TaxRate)

	shipping := c.ShippingFee
	if len(items) == 0 {
		shipping = decimal.Zero
	}

	return Totals{
		Subtotal: subtotal,
		Discount: discount,
		Shipping: shipping,
		Tax:      tax,
		Total:    taxable.Add(shipping).Add(tax),
	}
}

func Subtotal(items []domain.LineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(item.LineTotal)
	}
	return sum
}

// Discount resolves the discount a coupon is worth against subtotal. The
// amount the coupon API returned is an upper bound: a percentage coupon is
// re-resolved against the current subtotal when that yields less, and the
// result is always clamped to [0, subtotal].
func Discount(subtotal decimal.Decimal, coupon *domain.CouponApplication) decimal.Decimal {
	if coupon == nil {
		return decimal.Zero
	}

	amount := coupon.DiscountAmount
	if coupon.DiscountType == domain.DiscountPercentage && coupon.DiscountValue.IsPositive() {
		local := subtotal.Mul(coupon.DiscountValue).Div(hundred)
		if limit := coupon.MaximumDiscountAmount; limit != nil && local.GreaterThan(*limit) {
			local = *limit
		}
		amount = decimal.Min(amount, local)
	}

	if amount.IsNegative() {
		return decimal.Zero
	}
	if amount.GreaterThan(subtotal) {
		return subtotal
	}
	return amount
}
