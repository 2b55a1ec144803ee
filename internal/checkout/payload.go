package checkout

import (
	"strings"

	"github.com/joao-fontenele/pawshop-checkout/internal/cart"
	"github.com/joao-fontenele/pawshop-checkout/internal/domain"
	"github.com/joao-fontenele/pawshop-checkout/internal/money"
)

// Assemble builds the order submission from a validated draft and the cart
// snapshot it was validated against.
func Assemble(snap cart.Snapshot, d Draft, idempotencyKey string) domain.OrderSubmission {
	shipping := NormalizeAddress(d.Shipping)
	billing := shipping
	if addr, distinct := d.Billing.Address(); distinct {
		billing = NormalizeAddress(addr)
	}

	items := make([]domain.OrderItem, 0, len(snap.Items))
	for _, item := range snap.Items {
		items = append(items, domain.OrderItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			SKU:       item.SKU,
			Quantity:  item.Quantity,
			UnitPrice: money.Round(item.UnitPrice),
			LineTotal: money.Round(item.LineTotal),
		})
	}

	var couponCode string
	if snap.AppliedCoupon != nil {
		couponCode = snap.AppliedCoupon.Code
	}

	totals := snap.Totals.Rounded()

	return domain.OrderSubmission{
		IdempotencyKey:        idempotencyKey,
		Items:                 items,
		ShippingAddress:       shipping,
		BillingAddress:        billing,
		BillingSameAsShipping: d.Billing.IsSameAsShipping(),
		Payment: domain.PaymentDetails{
			CardholderName: strings.TrimSpace(d.Payment.CardholderName),
			CardNumber:     StripCardNumber(d.Payment.CardNumber),
			Expiry:         strings.TrimSpace(d.Payment.Expiry),
			CVV:            strings.TrimSpace(d.Payment.CVV),
		},
		CouponCode: couponCode,
		Notes:      strings.TrimSpace(d.Notes),
		Subtotal:   totals.Subtotal,
		Discount:   totals.Discount,
		Shipping:   totals.Shipping,
		Tax:        totals.Tax,
		Total:      totals.Total,
	}
}

// NormalizeAddress trims every field and writes the postcode in upper case
// with a single separating space.
func NormalizeAddress(a domain.Address) domain.Address {
	return domain.Address{
		FirstName:    strings.TrimSpace(a.FirstName),
		LastName:     strings.TrimSpace(a.LastName),
		AddressLine1: strings.TrimSpace(a.AddressLine1),
		AddressLine2: strings.TrimSpace(a.AddressLine2),
		City:         strings.TrimSpace(a.City),
		County:       strings.TrimSpace(a.County),
		PostalCode:   strings.ToUpper(strings.Join(strings.Fields(a.PostalCode), " ")),
		Phone:        strings.TrimSpace(a.Phone),
		Email:        strings.TrimSpace(a.Email),
	}
}
