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
package model

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/shopspring/decimal"

	"github.com/ightingale/numcheck/model"
)

type CreateAccount struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (a *CreateAccount) ValidateCreateAccount() error {
	return validation.ValidateStruct(a,
		validation.Field(&a.Name, validation.Required),
		validation.Field(&a.Email, validation.Required, is.Email),
	)
}

func (a *CreateAccount) ToAccount() model.Account {
	return model.Account{Name: a.Name, Email: a.Email}
}

type CreateCheck struct {
	AccountID string                 `json:"account_id"`
	ItemCount int                    `json:"item_count"`
	Settings  map[string]interface{} `json:"settings"`
}

func (t *CreateCheck) ValidateCreateCheck() error {
	return validation.ValidateStruct(t,
		validation.Field(&t.AccountID, validation.Required),
		validation.Field(&t.ItemCount, validation.Required, validation.Min(1)),
	)
}

type CancelCheck struct {
	AccountID string `json:"account_id"`
}

func (t *CancelCheck) ValidateCancelCheck() error {
	return validation.ValidateStruct(t,
		validation.Field(&t.AccountID, validation.Required),
	)
}

type CreatePayment struct {
	AccountID string `json:"account_id"`
	Provider  string `json:"provider"`
	Amount    string `json:"amount"`
}

func (p *CreatePayment) ValidateCreatePayment() error {
	return validation.ValidateStruct(p,
		validation.Field(&p.AccountID, validation.Required),
		validation.Field(&p.Provider, validation.Required),
		validation.Field(&p.Amount, validation.Required, validation.By(positiveAmount)),
	)
}

func positiveAmount(value interface{}) error {
	raw, _ := value.(string)
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return errors.New("amount must be a decimal number, e.g. \"500.00\"")
	}
	if !amount.IsPositive() {
		return errors.New("amount must be positive")
	}
	return nil
}

// ToPayment converts the request into a payment in minor units. The
// provider tag is normalized by the handler before this is called.
func (p *CreatePayment) ToPayment() model.Payment {
	amount, _ := decimal.NewFromString(p.Amount)
	return model.Payment{
		AccountID: p.AccountID,
		Provider:  model.PaymentProvider(p.Provider),
		Amount:    model.MinorUnits(amount),
	}
}
