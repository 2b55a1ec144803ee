package checkout

import "github.com/joao-fontenele/pawshop-checkout/internal/domain"

// PaymentDraft holds card fields as typed by the customer. They are forwarded
// with the order and dropped when the draft is discarded.
type PaymentDraft struct {
	CardholderName string `json:"cardholder_name"`
	CardNumber     string `json:"card_number"`
	Expiry         string `json:"expiry"`
	CVV            string `json:"cvv"`
}

// Draft is the in-progress checkout form for one attempt.
type Draft struct {
	Shipping domain.Address
	Billing  domain.Billing
	Payment  PaymentDraft
	Notes    string
}
