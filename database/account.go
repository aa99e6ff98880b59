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

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ightingale/numcheck/internal/apierror"
	"github.com/ightingale/numcheck/model"
)

// CreateAccount inserts a new Account with a zero balance.
func (d Datasource) CreateAccount(account model.Account) (model.Account, error) {
	account.AccountID = model.GenerateUUIDWithSuffix("acc")
	account.CreatedAt = time.Now()

	_, err := d.Conn.Exec(`
		INSERT INTO accounts (account_id, name, email, balance, version, created_at)
		VALUES ($1, $2, $3, $4, 0, $5)
	`, account.AccountID, account.Name, account.Email, account.Balance, account.CreatedAt)
	if err != nil {
		return account, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create account", err)
	}

	return account, nil
}

// GetAccountByID retrieves an account by its public id.
func (d Datasource) GetAccountByID(ctx context.Context, id string) (*model.Account, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT id, account_id, name, email, balance, version, created_at
		FROM accounts
		WHERE account_id = $1
	`, id)

	account := &model.Account{}
	err := row.Scan(&account.ID, &account.AccountID, &account.Name, &account.Email, &account.Balance, &account.Version, &account.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Account with ID '%s' not found", id), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve account", err)
	}

	return account, nil
}

// GetAllAccounts retrieves accounts ordered by creation time.
func (d Datasource) GetAllAccounts(ctx context.Context, limit, offset int) ([]model.Account, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT id, account_id, name, email, balance, version, created_at
		FROM accounts
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve accounts", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var accounts []model.Account
	for rows.Next() {
		account := model.Account{}
		err = rows.Scan(&account.ID, &account.AccountID, &account.Name, &account.Email, &account.Balance, &account.Version, &account.CreatedAt)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan account", err)
		}
		accounts = append(accounts, account)
	}

	return accounts, nil
}

// creditBalance adds amount to an account balance inside the caller's
// transaction. The version bump keeps concurrent writers honest even
// when they skipped the row lock.
func creditBalance(ctx context.Context, tx *sql.Tx, accountID string, amount int64) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET balance = balance + $2, version = version + 1
		WHERE account_id = $1
	`, accountID, amount)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to credit balance", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Account with ID '%s' not found", accountID), nil)
	}
	return nil
}
