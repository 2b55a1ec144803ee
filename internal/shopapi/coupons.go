package shopapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/pawshop-checkout/internal/coupon"
	"github.com/joao-fontenele/pawshop-checkout/internal/domain"
	"github.com/joao-fontenele/pawshop-checkout/internal/money"
)

type validateCouponRequest struct {
	Code        string `json:"code"`
	TotalAmount string `json:"total_amount"`
}

// Amounts arrive as strings or numbers depending on the backend, so they are
// decoded loosely and parsed with money.Parse.
type validateCouponResponse struct {
	Code                  string `json:"code"`
	Description           string `json:"description"`
	DiscountType          string `json:"discount_type"`
	DiscountValue         any    `json:"discount_value"`
	MinimumOrderAmount    any    `json:"minimum_order_amount"`
	MaximumDiscountAmount any    `json:"maximum_discount_amount"`
	DiscountAmount        any    `json:"discount_amount"`
}

// ValidateCoupon asks the coupon API whether code applies to a cart worth
// total. A 4xx answer is a rejection and comes back as *coupon.RejectedError.
func (c *Client) ValidateCoupon(ctx context.Context, code string, total decimal.Decimal) (domain.CouponApplication, error) {
	body := validateCouponRequest{Code: code, TotalAmount: money.String(total)}

	resp, err := c.do(ctx, http.MethodPost, "/coupons/validate", body, nil)
	if err != nil {
		return domain.CouponApplication{}, fmt.Errorf("validate coupon: %w", err)
	}

	if !resp.ok() {
		apiErr := decodeAPIError(resp)
		reason := apiErr.Message
		if reason == "" {
			reason = "Invalid coupon code"
		}
		c.logger.Info("coupon rejected", "code", code, "status", resp.StatusCode, "reason", reason)
		return domain.CouponApplication{}, &coupon.RejectedError{Code: code, Reason: reason}
	}

	var out validateCouponResponse
	dec := json.NewDecoder(bytes.NewReader(resp.Body))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return domain.CouponApplication{}, fmt.Errorf("decode coupon response: %w", err)
	}

	app := domain.CouponApplication{
		Code:               out.Code,
		Description:        out.Description,
		DiscountType:       domain.DiscountType(out.DiscountType),
		DiscountValue:      money.Parse(out.DiscountValue),
		MinimumOrderAmount: money.Parse(out.MinimumOrderAmount),
		DiscountAmount:     money.Parse(out.DiscountAmount),
	}
	if out.MaximumDiscountAmount != nil {
		limit := money.Parse(out.MaximumDiscountAmount)
		app.MaximumDiscountAmount = &limit
	}
	if app.Code == "" {
		app.Code = code
	}

	return app, nil
}
