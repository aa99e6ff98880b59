/*
Copyright 2024 Numcheck Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package gateway

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/url"
	"strings"

	"github.com/ightingale/numcheck/config"
	"github.com/ightingale/numcheck/internal/apierror"
	"github.com/ightingale/numcheck/model"
)

const unitPayURL = "https://unitpay.ru/pay/"

// UnitPay signs with SHA-256 over the ordered params joined with the
// secret. The redirect carries the public key; the callback signature
// field is `params[signature]` flattened to `signature` by the form
// decoder.
type UnitPay struct {
	conf config.UnitPayConfig
}

func NewUnitPay(conf config.UnitPayConfig) *UnitPay {
	return &UnitPay{conf: conf}
}

func (u *UnitPay) Name() model.PaymentProvider {
	return model.ProviderUnitPay
}

// sign hashes account{up}amount{up}desc{up}secret, the provider's
// fixed parameter order.
func (u *UnitPay) sign(parts ...string) string {
	const delimiter = "{up}"
	payload := strings.Join(append(parts, u.conf.SecretKey), delimiter)
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

func (u *UnitPay) CreatePayment(payment *model.Payment) (*RedirectDescriptor, error) {
	amount := formatAmount(payment.Amount)

	q := url.Values{}
	q.Set("sum", amount)
	q.Set("account", payment.ExternalRef)
	q.Set("desc", "Balance top-up")
	q.Set("signature", u.sign(payment.ExternalRef, amount, "Balance top-up"))

	return &RedirectDescriptor{
		Provider: u.Name(),
		URL:      unitPayURL + u.conf.PublicKey + "?" + q.Encode(),
	}, nil
}

func (u *UnitPay) VerifyCallback(raw url.Values) (*model.PaymentConfirmation, error) {
	account := raw.Get("account")
	rawAmount := raw.Get("sum")
	signature := raw.Get("signature")
	if account == "" || rawAmount == "" || signature == "" {
		return nil, apierror.NewAPIError(apierror.ErrMalformedPayload, "Missing required callback fields", nil)
	}

	expected := u.sign(account, rawAmount)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) != 1 {
		return nil, apierror.NewAPIError(apierror.ErrSignatureInvalid, "Callback signature mismatch", nil)
	}

	amount, err := parseAmount(rawAmount)
	if err != nil {
		return nil, err
	}

	return &model.PaymentConfirmation{
		ExternalRef: account,
		Amount:      amount,
	}, nil
}
