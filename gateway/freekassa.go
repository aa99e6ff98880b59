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
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/url"

	"github.com/ightingale/numcheck/config"
	"github.com/ightingale/numcheck/internal/apierror"
	"github.com/ightingale/numcheck/model"
)

const freeKassaPayURL = "https://pay.freekassa.ru/"

// FreeKassa signs with MD5 over merchant_id:amount:secret:order_id.
// The confirmation arrives as a form POST with a SIGN field.
type FreeKassa struct {
	conf config.FreeKassaConfig
}

func NewFreeKassa(conf config.FreeKassaConfig) *FreeKassa {
	return &FreeKassa{conf: conf}
}

func (f *FreeKassa) Name() model.PaymentProvider {
	return model.ProviderFreeKassa
}

func (f *FreeKassa) sign(amount, orderID string) string {
	payload := fmt.Sprintf("%s:%s:%s:%s", f.conf.ShopID, amount, f.conf.SecretKey, orderID)
	sum := md5.Sum([]byte(payload))
	return hex.EncodeToString(sum[:])
}

func (f *FreeKassa) CreatePayment(payment *model.Payment) (*RedirectDescriptor, error) {
	amount := formatAmount(payment.Amount)

	q := url.Values{}
	q.Set("m", f.conf.ShopID)
	q.Set("oa", amount)
	q.Set("o", payment.ExternalRef)
	q.Set("s", f.sign(amount, payment.ExternalRef))

	return &RedirectDescriptor{
		Provider: f.Name(),
		URL:      freeKassaPayURL + "?" + q.Encode(),
	}, nil
}

func (f *FreeKassa) VerifyCallback(raw url.Values) (*model.PaymentConfirmation, error) {
	orderID := raw.Get("MERCHANT_ORDER_ID")
	rawAmount := raw.Get("AMOUNT")
	sign := raw.Get("SIGN")
	if orderID == "" || rawAmount == "" || sign == "" {
		return nil, apierror.NewAPIError(apierror.ErrMalformedPayload, "Missing required callback fields", nil)
	}

	expected := f.sign(rawAmount, orderID)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(sign)) != 1 {
		return nil, apierror.NewAPIError(apierror.ErrSignatureInvalid, "Callback signature mismatch", nil)
	}

	amount, err := parseAmount(rawAmount)
	if err != nil {
		return nil, err
	}

	return &model.PaymentConfirmation{
		ExternalRef: orderID,
		Amount:      amount,
	}, nil
}
