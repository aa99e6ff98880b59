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

package numcheck

import (
	"context"
	"fmt"

	"github.com/ightingale/numcheck/model"
)

// CreateAccount registers a new account and emits the NEW_ACCOUNT
// notification after the row is committed.
func (l *Numcheck) CreateAccount(ctx context.Context, account model.Account) (model.Account, error) {
	account.Balance = 0
	created, err := l.datasource.CreateAccount(account)
	if err != nil {
		return model.Account{}, err
	}

	l.emitNotification(ctx, model.NotificationEvent{
		Type:      model.EventNewAccount,
		Recipient: created.AccountID,
		Headline:  "New account",
		Text:      fmt.Sprintf("Account %s (%s) registered", created.Name, created.Email),
	})
	return created, nil
}

// GetAccount retrieves an account by id.
func (l *Numcheck) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	return l.datasource.GetAccountByID(ctx, id)
}

// GetAllAccounts lists accounts.
func (l *Numcheck) GetAllAccounts(ctx context.Context, limit, offset int) ([]model.Account, error) {
	return l.datasource.GetAllAccounts(ctx, limit, offset)
}
