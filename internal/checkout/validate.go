package checkout

import (
	"regexp"
	"strings"

	"github.com/joao-fontenele/pawshop-checkout/internal/domain"
)

var (
	ukPostcode = regexp.MustCompile(`(?i)^[A-Z]{1,2}[0-9R][0-9A-Z]? [0-9][A-Z]{2}$`)
	cardDigits = regexp.MustCompile(`^[0-9]{16,}$`)
	cardExpiry = regexp.MustCompile(`^(0[1-9]|1[0-2])/[0-9]{2}$`)
	cvvDigits  = regexp.MustCompile(`^[0-9]{3,4}$`)
)

// FieldErrors maps a dotted field path such as "shipping.postalCode" to a
// message suitable for display next to that field.
type FieldErrors map[string]string

func (f FieldErrors) add(field, message string) {
	if _, exists := f[field]; !exists {
		f[field] = message
	}
}

// Validate checks the draft and returns every problem found. An empty result
// means the draft can be submitted.
func Validate(d Draft) FieldErrors {
	errs := FieldErrors{}

	validateAddress(errs, "shipping", d.Shipping)
	if addr, distinct := d.Billing.Address(); distinct {
		validateAddress(errs, "billing", addr)
	}
	validatePayment(errs, d.Payment)

	return errs
}

func validateAddress(errs FieldErrors, prefix string, a domain.Address) {
	required := []struct {
		field string
		value string
		label string
	}{
		{"firstName", a.FirstName, "First name"},
		{"lastName", a.LastName, "Last name"},
		{"addressLine1", a.AddressLine1, "Address"},
		{"city", a.City, "City"},
		{"postalCode", a.PostalCode, "Postcode"},
		{"phone", a.Phone, "Phone number"},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			errs.add(prefix+"."+r.field, r.label+" is required")
		}
	}

	if pc := strings.TrimSpace(a.PostalCode); pc != "" && !ValidPostcode(pc) {
		errs.add(prefix+".postalCode", "Enter a valid UK postcode")
	}
}

func validatePayment(errs FieldErrors, p PaymentDraft) {
	if strings.TrimSpace(p.CardholderName) == "" {
		errs.add("payment.cardholderName", "Cardholder name is required")
	}

	if !cardDigits.MatchString(StripCardNumber(p.CardNumber)) {
		errs.add("payment.cardNumber", "Card number must be at least 16 digits")
	}

	expiry := strings.TrimSpace(p.Expiry)
	if len(expiry) != 5 || !cardExpiry.MatchString(expiry) {
		errs.add("payment.expiry", "Expiry must be in MM/YY format")
	}

	if !cvvDigits.MatchString(strings.TrimSpace(p.CVV)) {
		errs.add("payment.cvv", "CVV must be 3 or 4 digits")
	}
}

// ValidPostcode reports whether s is a UK postcode in "OUTWARD INWARD" form.
func ValidPostcode(s string) bool {
	return ukPostcode.MatchString(s)
}

func StripCardNumber(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), " ", "")
}
