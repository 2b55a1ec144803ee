package storefront

import (
	"time"

	"github.com/joao-fontenele/pawshop-checkout/internal/cart"
	"github.com/joao-fontenele/pawshop-checkout/internal/checkout"
	"github.com/joao-fontenele/pawshop-checkout/internal/domain"
	"github.com/joao-fontenele/pawshop-checkout/internal/money"
)

type lineResponse struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	SKU       string `json:"sku,omitempty"`
	UnitPrice string `json:"unit_price"`
	Quantity  int    `json:"quantity"`
	LineTotal string `json:"line_total"`
}

type couponResponse struct {
	Code           string `json:"code"`
	Description    string `json:"description,omitempty"`
	DiscountType   string `json:"discount_type,omitempty"`
	DiscountAmount string `json:"discount_amount"`
}

type cartResponse struct {
	Items         []lineResponse  `json:"items"`
	TotalItems    int             `json:"total_items"`
	TotalPrice    string          `json:"total_price"`
	AppliedCoupon *couponResponse `json:"applied_coupon"`
	Subtotal      string          `json:"subtotal"`
	Discount      string          `json:"discount"`
	Shipping      string          `json:"shipping"`
	Tax           string          `json:"tax"`
	Total         string          `json:"total"`
}

func newCartResponse(snap cart.Snapshot) cartResponse {
	totals := snap.Totals.Rounded()
	resp := cartResponse{
		Items:      make([]lineResponse, 0, len(snap.Items)),
		TotalItems: snap.TotalItems,
		TotalPrice: money.Format(snap.TotalPrice),
		Subtotal:   money.Format(totals.Subtotal),
		Discount:   money.Format(totals.Discount),
		Shipping:   money.Format(totals.Shipping),
		Tax:        money.Format(totals.Tax),
		Total:      money.Format(totals.Total),
	}

	for _, item := range snap.Items {
		resp.Items = append(resp.Items, lineResponse{
			ProductID: item.ProductID,
			Name:      item.Name,
			SKU:       item.SKU,
			UnitPrice: money.Format(item.UnitPrice),
			Quantity:  item.Quantity,
			LineTotal: money.Format(item.LineTotal),
		})
	}

	if c := snap.AppliedCoupon; c != nil {
		resp.AppliedCoupon = &couponResponse{
			Code:           c.Code,
			Description:    c.Description,
			DiscountType:   string(c.DiscountType),
			DiscountAmount: money.Format(totals.Discount),
		}
	}

	return resp
}

type productResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	SKU   string `json:"sku,omitempty"`
	Price string `json:"price"`
}

func newProductResponse(p domain.Product) productResponse {
	return productResponse{ID: p.ID, Name: p.Name, SKU: p.SKU, Price: money.Format(p.Price)}
}

type addItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  *int   `json:"quantity"`
}

type setQuantityRequest struct {
	Quantity *int `json:"quantity"`
}

type applyCouponRequest struct {
	Code string `json:"code"`
}

// checkoutRequest is the browser form. Billing defaults to the shipping
// address when no billing address is sent.
type checkoutRequest struct {
	ShippingAddress       domain.Address        `json:"shipping_address"`
	BillingSameAsShipping *bool                 `json:"billing_same_as_shipping"`
	BillingAddress        *domain.Address       `json:"billing_address"`
	Payment               checkout.PaymentDraft `json:"payment"`
	Notes                 string                `json:"notes"`
}

func (r checkoutRequest) draft() checkout.Draft {
	billing := domain.SameAsShipping()
	same := r.BillingSameAsShipping == nil || *r.BillingSameAsShipping
	if !same && r.BillingAddress != nil {
		billing = domain.DistinctBilling(*r.BillingAddress)
	} else if !same {
		billing = domain.DistinctBilling(domain.Address{})
	}
	return checkout.Draft{
		Shipping: r.ShippingAddress,
		Billing:  billing,
		Payment:  r.Payment,
		Notes:    r.Notes,
	}
}

type orderResponse struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	Total     string `json:"total"`
	CreatedAt string `json:"created_at,omitempty"`
}

func newOrderResponse(o domain.Order) orderResponse {
	resp := orderResponse{ID: o.ID, Status: string(o.Status), Total: money.Format(o.Total)}
	if !o.CreatedAt.IsZero() {
		resp.CreatedAt = o.CreatedAt.Format(time.RFC3339)
	}
	return resp
}

type checkoutStateResponse struct {
	State       string            `json:"state"`
	FieldErrors map[string]string `json:"field_errors,omitempty"`
	LastError   string            `json:"last_error,omitempty"`
}
