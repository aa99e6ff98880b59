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

// Package gateway normalizes external payment providers behind one
// interface. Each provider builds a redirect for the customer and
// verifies the asynchronous confirmation callback; everything past the
// verified confirmation is provider-agnostic.
package gateway

import (
	"fmt"
	"net/url"

	"github.com/shopspring/decimal"

	"github.com/ightingale/numcheck/config"
	"github.com/ightingale/numcheck/internal/apierror"
	"github.com/ightingale/numcheck/model"
)

// RedirectDescriptor is where the customer goes to pay.
type RedirectDescriptor struct {
	Provider model.PaymentProvider `json:"provider"`
	URL      string                `json:"url"`
}

// Gateway is one payment provider integration.
type Gateway interface {
	Name() model.PaymentProvider
	CreatePayment(payment *model.Payment) (*RedirectDescriptor, error)
	VerifyCallback(raw url.Values) (*model.PaymentConfirmation, error)
}

// Registry holds the configured gateways keyed by provider tag.
type Registry struct {
	gateways map[model.PaymentProvider]Gateway
}

// NewRegistry wires the three supported providers from configuration.
func NewRegistry(conf config.PaymentsConfig) *Registry {
	r := &Registry{gateways: make(map[model.PaymentProvider]Gateway)}
	r.register(NewFreeKassa(conf.FreeKassa))
	r.register(NewUnitPay(conf.UnitPay))
	r.register(NewYooKassa(conf.YooKassa))
	return r
}

func (r *Registry) register(g Gateway) {
	r.gateways[g.Name()] = g
}

// Get returns the gateway for a provider tag.
func (r *Registry) Get(provider model.PaymentProvider) (Gateway, error) {
	g, ok := r.gateways[provider]
	if !ok {
		return nil, apierror.NewAPIError(apierror.ErrBadRequest,
			fmt.Sprintf("Unknown payment provider '%s'", provider), nil)
	}
	return g, nil
}

// parseAmount converts a provider's decimal amount string into minor
// units. Providers send major units ("500.00").
func parseAmount(raw string) (int64, error) {
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, apierror.NewAPIError(apierror.ErrMalformedPayload,
			fmt.Sprintf("Cannot parse amount '%s'", raw), err)
	}
	return model.MinorUnits(amount), nil
}

// formatAmount renders minor units as the major-unit string providers
// expect in redirect URLs and signatures.
func formatAmount(minor int64) string {
	return model.MajorUnits(minor).StringFixed(2)
}
