package checkout

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/joao-fontenele/pawshop-checkout/internal/domain"
)

func validAddress() domain.Address {
	return domain.Address{
		FirstName:    "Ada",
		LastName:     "Lovelace",
		AddressLine1: "10 Downing Street",
		City:         "London",
		PostalCode:   "SW1A 2AA",
		Phone:        "07700 900123",
	}
}

func validDraft() Draft {
	return Draft{
		Shipping: validAddress(),
		Billing:  domain.SameAsShipping(),
		Payment: PaymentDraft{
			CardholderName: "Ada Lovelace",
			CardNumber:     "4242 4242 4242 4242",
			Expiry:         "12/29",
			CVV:            "123",
		},
	}
}

func TestValidPostcode(t *testing.T) {
	valid := []string{"SW1A 1AA", "sw1a 1aa", "M1 1AE", "B33 8TH", "CR2 6XH", "DN55 1PT", "W1A 0AX", "EC1A 1BB"}
	for _, pc := range valid {
		assert.True(t, ValidPostcode(pc), pc)
	}

	invalid := []string{"12345", "SW1A1AA", "SW1A  1AA", "", "ABC 123", "SW1A 1A"}
	for _, pc := range invalid {
		assert.False(t, ValidPostcode(pc), pc)
	}
}

func TestValidate(t *testing.T) {
	t.Run("accepts a complete draft", func(t *testing.T) {
		assert.Empty(t, Validate(validDraft()))
	})

	t.Run("reports missing shipping fields", func(t *testing.T) {
		d := validDraft()
		d.Shipping = domain.Address{}

		errs := Validate(d)

		for _, field := range []string{"firstName", "lastName", "addressLine1", "city", "postalCode", "phone"} {
			assert.Contains(t, errs, "shipping."+field)
		}
	})

	t.Run("rejects a non-UK postcode", func(t *testing.T) {
		d := validDraft()
		d.Shipping.PostalCode = "12345"

		errs := Validate(d)

		assert.Equal(t, "Enter a valid UK postcode", errs["shipping.postalCode"])
	})

	t.Run("skips billing when same as shipping", func(t *testing.T) {
		d := validDraft()
		d.Billing = domain.SameAsShipping()

		errs := Validate(d)

		for field := range errs {
			assert.NotContains(t, field, "billing.")
		}
	})

	t.Run("validates distinct billing", func(t *testing.T) {
		d := validDraft()
		billing := validAddress()
		billing.City = ""
		billing.PostalCode = "not a postcode"
		d.Billing = domain.DistinctBilling(billing)

		errs := Validate(d)

		assert.Contains(t, errs, "billing.city")
		assert.Contains(t, errs, "billing.postalCode")
		assert.NotContains(t, errs, "shipping.city")
	})

	t.Run("payment rules", func(t *testing.T) {
		tests := []struct {
			name  string
			edit  func(*PaymentDraft)
			field string
		}{
			{"blank cardholder", func(p *PaymentDraft) { p.CardholderName = "  " }, "payment.cardholderName"},
			{"short card number", func(p *PaymentDraft) { p.CardNumber = "4242 4242 4242" }, "payment.cardNumber"},
			{"letters in card number", func(p *PaymentDraft) { p.CardNumber = "4242 4242 4242 424X" }, "payment.cardNumber"},
			{"expiry without slash", func(p *PaymentDraft) { p.Expiry = "1229" }, "payment.expiry"},
			{"expiry with long year", func(p *PaymentDraft) { p.Expiry = "12/2029" }, "payment.expiry"},
			{"expiry month 13", func(p *PaymentDraft) { p.Expiry = "13/29" }, "payment.expiry"},
			{"two digit cvv", func(p *PaymentDraft) { p.CVV = "12" }, "payment.cvv"},
			{"five digit cvv", func(p *PaymentDraft) { p.CVV = "12345" }, "payment.cvv"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				d := validDraft()
				tt.edit(&d.Payment)

				errs := Validate(d)

				assert.Contains(t, errs, tt.field)
				assert.Len(t, errs, 1)
			})
		}
	})

	t.Run("accepts a four digit cvv and a nineteen digit card", func(t *testing.T) {
		d := validDraft()
		d.Payment.CVV = "1234"
		d.Payment.CardNumber = "6011 0000 0000 0000 004"

		assert.Empty(t, Validate(d))
	})
}

func TestNormalizeAddress(t *testing.T) {
	a := validAddress()
	a.FirstName = "  Ada "
	a.PostalCode = " sw1a   2aa "

	got := NormalizeAddress(a)

	assert.Equal(t, "Ada", got.FirstName)
	assert.Equal(t, "SW1A 2AA", got.PostalCode)
}
