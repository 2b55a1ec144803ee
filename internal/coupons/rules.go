// Package coupons is the coupon validation API and the consumer that records
// redemptions from order events.
package coupons

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/pawshop-checkout/internal/domain"
	"github.com/joao-fontenele/pawshop-checkout/internal/money"
)

type Coupon struct {
	ID                    string
	Code                  string
	Description           string
	DiscountType          domain.DiscountType
	DiscountValue         decimal.Decimal
	MinimumOrderAmount    decimal.Decimal
	MaximumDiscountAmount *decimal.Decimal
	MaxUses               int
	UsedCount             int
	StartsAt              time.Time
	ExpiresAt             *time.Time
	IsActive              bool
}

// RejectionError explains why a coupon does not apply. The reason is shown to
// the customer as is.
type RejectionError struct {
	Reason string
}

func (e *RejectionError) Error() string {
	return e.Reason
}

func reject(format string, args ...any) error {
	return &RejectionError{Reason: fmt.Sprintf(format, args...)}
}

var hundred = decimal.NewFromInt(100)

// Evaluate checks c against an order worth total at time now and returns the
// absolute discount it grants.
func Evaluate(c Coupon, total decimal.Decimal, now time.Time) (decimal.Decimal, error) {
	if !c.IsActive {
		return decimal.Zero, reject("This coupon is no longer active")
	}
	if now.Before(c.StartsAt) {
		return decimal.Zero, reject("This coupon is not valid yet")
	}
	if c.ExpiresAt != nil && now.After(*c.ExpiresAt) {
		return decimal.Zero, reject("This coupon has expired")
	}
	if c.MaxUses > 0 && c.UsedCount >= c.MaxUses {
		return decimal.Zero, reject("This coupon has reached its usage limit")
	}
	if total.LessThan(c.MinimumOrderAmount) {
		return decimal.Zero, reject("Minimum order amount of %s required", money.Format(c.MinimumOrderAmount))
	}

	var discount decimal.Decimal
	switch c.DiscountType {
	case domain.DiscountPercentage:
		discount = total.Mul(c.DiscountValue).Div(hundred)
		if c.MaximumDiscountAmount != nil && discount.GreaterThan(*c.MaximumDiscountAmount) {
			discount = *c.MaximumDiscountAmount
		}
	case domain.DiscountFixed:
		discount = c.DiscountValue
		if discount.GreaterThan(total) {
			discount = total
		}
	default:
		return decimal.Zero, fmt.Errorf("coupon %s has unknown discount type %q", c.Code, c.DiscountType)
	}

	if discount.IsNegative() {
		discount = decimal.Zero
	}
	return money.Round(discount), nil
}
