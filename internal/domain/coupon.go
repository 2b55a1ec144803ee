package domain

import "github.com/shopspring/decimal"

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// CouponApplication is a coupon the coupon API accepted for a given cart
// total. DiscountAmount is the absolute discount the API resolved.
type CouponApplication struct {
	Code                  string           `json:"code"`
	Description           string           `json:"description,omitempty"`
	DiscountType          DiscountType     `json:"discount_type,omitempty"`
	DiscountValue         decimal.Decimal  `json:"discount_value"`
	MinimumOrderAmount    decimal.Decimal  `json:"minimum_order_amount"`
	MaximumDiscountAmount *decimal.Decimal `json:"maximum_discount_amount,omitempty"`
	DiscountAmount        decimal.Decimal  `json:"discount_amount"`
}
