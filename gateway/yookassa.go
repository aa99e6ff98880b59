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
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ightingale/numcheck/config"
	"github.com/ightingale/numcheck/internal/apierror"
	"github.com/ightingale/numcheck/internal/request"
	"github.com/ightingale/numcheck/model"
)

const yooKassaAPIURL = "https://api.yookassa.ru/v3/payments"

// YooKassa creates payments through the provider API with basic auth
// and verifies callbacks with HMAC-SHA256 over id:amount. The webhook
// layer flattens the provider's JSON body into url.Values before
// calling VerifyCallback.
type YooKassa struct {
	conf    config.YooKassaConfig
	apiBase string
}

func NewYooKassa(conf config.YooKassaConfig) *YooKassa {
	return &YooKassa{conf: conf, apiBase: yooKassaAPIURL}
}

// NewYooKassaWithAPIBase is used by tests to point at a stub server.
func NewYooKassaWithAPIBase(conf config.YooKassaConfig, apiBase string) *YooKassa {
	return &YooKassa{conf: conf, apiBase: apiBase}
}

func (y *YooKassa) Name() model.PaymentProvider {
	return model.ProviderYooKassa
}

func (y *YooKassa) sign(externalRef, amount string) string {
	mac := hmac.New(sha256.New, []byte(y.conf.SecretKey))
	mac.Write([]byte(externalRef + ":" + amount))
	return hex.EncodeToString(mac.Sum(nil))
}

type yooKassaCreateRequest struct {
	Amount struct {
		Value    string `json:"value"`
		Currency string `json:"currency"`
	} `json:"amount"`
	Capture     bool   `json:"capture"`
	Description string `json:"description"`
	Metadata    struct {
		ExternalRef string `json:"external_ref"`
	} `json:"metadata"`
}

type yooKassaCreateResponse struct {
	ID           string `json:"id"`
	Confirmation struct {
		ConfirmationURL string `json:"confirmation_url"`
	} `json:"confirmation"`
}

func (y *YooKassa) CreatePayment(payment *model.Payment) (*RedirectDescriptor, error) {
	body := yooKassaCreateRequest{Capture: true, Description: "Balance top-up"}
	body.Amount.Value = formatAmount(payment.Amount)
	body.Amount.Currency = "RUB"
	body.Metadata.ExternalRef = payment.ExternalRef

	payload, err := request.ToJsonReq(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest("POST", y.apiBase, payload)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Basic "+request.BasicAuth(y.conf.ShopID, y.conf.SecretKey))
	req.Header.Set("Idempotence-Key", payment.ExternalRef)

	var response yooKassaCreateResponse
	resp, err := request.Call(req, &response)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer,
			fmt.Sprintf("YooKassa rejected payment creation with status %d", resp.StatusCode), nil)
	}

	return &RedirectDescriptor{
		Provider: y.Name(),
		URL:      response.Confirmation.ConfirmationURL,
	}, nil
}

func (y *YooKassa) VerifyCallback(raw url.Values) (*model.PaymentConfirmation, error) {
	externalRef := raw.Get("external_ref")
	rawAmount := raw.Get("amount")
	signature := raw.Get("signature")
	if externalRef == "" || rawAmount == "" || signature == "" {
		return nil, apierror.NewAPIError(apierror.ErrMalformedPayload, "Missing required callback fields", nil)
	}

	expected := y.sign(externalRef, rawAmount)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return nil, apierror.NewAPIError(apierror.ErrSignatureInvalid, "Callback signature mismatch", nil)
	}

	amount, err := parseAmount(rawAmount)
	if err != nil {
		return nil, err
	}

	return &model.PaymentConfirmation{
		ExternalRef: externalRef,
		Amount:      amount,
	}, nil
}
