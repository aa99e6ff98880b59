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

	"github.com/lib/pq"

	"github.com/ightingale/numcheck/internal/apierror"
	"github.com/ightingale/numcheck/model"
)

// CreatePayment records an unconfirmed payment intent. The external_ref
// unique index rejects a second intent for the same provider reference.
func (d Datasource) CreatePayment(ctx context.Context, payment model.Payment) (model.Payment, error) {
	payment.PaymentID = model.GenerateUUIDWithSuffix("pay")
	payment.CreatedAt = time.Now()
	payment.Confirmed = false

	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO payments (payment_id, provider, amount, account_id, confirmed, external_ref, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, payment.PaymentID, payment.Provider, payment.Amount, payment.AccountID, payment.Confirmed, payment.ExternalRef, payment.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
			return model.Payment{}, apierror.NewAPIError(apierror.ErrConflict,
				fmt.Sprintf("Payment with reference '%s' already exists", payment.ExternalRef), err)
		}
		return model.Payment{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create payment", err)
	}

	return payment, nil
}

// GetPaymentByExternalRef looks up a payment by the provider-side reference.
func (d Datasource) GetPaymentByExternalRef(ctx context.Context, externalRef string) (*model.Payment, error) {
	payment := &model.Payment{}
	err := d.Conn.QueryRowContext(ctx, `
		SELECT id, payment_id, provider, amount, account_id, confirmed, external_ref, created_at
		FROM payments
		WHERE external_ref = $1
	`, externalRef).Scan(&payment.ID, &payment.PaymentID, &payment.Provider, &payment.Amount,
		&payment.AccountID, &payment.Confirmed, &payment.ExternalRef, &payment.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound,
				fmt.Sprintf("Payment with reference '%s' not found", externalRef), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve payment", err)
	}
	return payment, nil
}

// GetPaymentsByAccount lists an account's payments, newest first.
func (d Datasource) GetPaymentsByAccount(ctx context.Context, accountID string, limit, offset int) ([]model.Payment, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT id, payment_id, provider, amount, account_id, confirmed, external_ref, created_at
		FROM payments
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, accountID, limit, offset)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve payments", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var payments []model.Payment
	for rows.Next() {
		payment := model.Payment{}
		err = rows.Scan(&payment.ID, &payment.PaymentID, &payment.Provider, &payment.Amount,
			&payment.AccountID, &payment.Confirmed, &payment.ExternalRef, &payment.CreatedAt)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan payment", err)
		}
		payments = append(payments, payment)
	}

	return payments, nil
}

// ConfirmPayment flips confirmed exactly once and credits the account
// in the same transaction. A replayed webhook finds confirmed already
// true, updates no rows and credits nothing.
func (d Datasource) ConfirmPayment(ctx context.Context, externalRef string) (*model.Payment, bool, error) {
	tx, err := d.Conn.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelDefault})
	if err != nil {
		return nil, false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	payment := &model.Payment{}
	err = tx.QueryRowContext(ctx, `
		UPDATE payments
		SET confirmed = true
		WHERE external_ref = $1 AND confirmed = false
		RETURNING id, payment_id, provider, amount, account_id, confirmed, external_ref, created_at
	`, externalRef).Scan(&payment.ID, &payment.PaymentID, &payment.Provider, &payment.Amount,
		&payment.AccountID, &payment.Confirmed, &payment.ExternalRef, &payment.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to confirm payment", err)
	}

	if err := creditBalance(ctx, tx, payment.AccountID, payment.Amount); err != nil {
		return nil, false, err
	}

	if err := tx.Commit(); err != nil {
		return nil, false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit transaction", err)
	}

	return payment, true, nil
}
