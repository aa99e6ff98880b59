package model

import (
	"time"
)

// PaymentProvider tags which gateway variant created and will verify a
// payment.
type PaymentProvider string

const (
	ProviderFreeKassa PaymentProvider = "FREEKASSA"
	ProviderUnitPay   PaymentProvider = "UNITPAY"
	ProviderYooKassa  PaymentProvider = "YOOKASSA"
)

// Payment is a balance top-up initiated against one payment provider.
// ExternalRef is the provider-issued reference and is unique: the
// confirmed flag flips false -> true at most once per ExternalRef,
// which is the idempotency boundary for at-least-once webhook delivery.
type Payment struct {
	ID          int64           `json:"-"`
	PaymentID   string          `json:"id"`
	Provider    PaymentProvider `json:"provider"`
	Amount      int64           `json:"amount"`
	AccountID   string          `json:"account_id"`
	Confirmed   bool            `json:"confirmed"`
	ExternalRef string          `json:"external_reference_id"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// PaymentConfirmation is the normalized result of a verified provider
// callback, independent of any provider wire format. The account is
// resolved from the stored payment by ExternalRef, never trusted from
// the callback.
type PaymentConfirmation struct {
	ExternalRef string `json:"external_reference_id"`
	Amount      int64  `json:"amount"`
}
