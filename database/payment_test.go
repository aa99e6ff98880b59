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
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/ightingale/numcheck/internal/apierror"
	"github.com/ightingale/numcheck/model"
)

func TestCreatePayment_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	payment := model.Payment{
		Provider:    model.ProviderFreeKassa,
		Amount:      50000,
		AccountID:   "acc_123",
		ExternalRef: "fk-order-777",
	}

	mock.ExpectExec("INSERT INTO payments").
		WithArgs(sqlmock.AnyArg(), model.ProviderFreeKassa, int64(50000), "acc_123", false, "fk-order-777", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	created, err := ds.CreatePayment(context.Background(), payment)
	assert.NoError(t, err)
	assert.NotEmpty(t, created.PaymentID)
	assert.False(t, created.Confirmed)
	assert.WithinDuration(t, time.Now(), created.CreatedAt, time.Second)
}

func TestCreatePayment_DuplicateExternalRef(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	payment := model.Payment{
		Provider:    model.ProviderUnitPay,
		Amount:      50000,
		AccountID:   "acc_123",
		ExternalRef: "up-order-1",
	}

	mock.ExpectExec("INSERT INTO payments").
		WithArgs(sqlmock.AnyArg(), model.ProviderUnitPay, int64(50000), "acc_123", false, "up-order-1", sqlmock.AnyArg()).
		WillReturnError(&pq.Error{Code: "23505", Message: "unique_violation"})

	_, err = ds.CreatePayment(context.Background(), payment)
	assert.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrConflict, apiErr.Code)
}

func TestConfirmPayment_CreditsOnce(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "payment_id", "provider", "amount", "account_id", "confirmed", "external_ref", "created_at"}).
		AddRow(1, "pay_1", model.ProviderFreeKassa, 50000, "acc_123", true, "fk-order-777", now)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE payments").
		WithArgs("fk-order-777").
		WillReturnRows(rows)
	mock.ExpectExec("UPDATE accounts SET balance = balance \\+").
		WithArgs("acc_123", int64(50000)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	payment, confirmed, err := ds.ConfirmPayment(context.Background(), "fk-order-777")
	assert.NoError(t, err)
	assert.True(t, confirmed)
	assert.True(t, payment.Confirmed)
	assert.Equal(t, int64(50000), payment.Amount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfirmPayment_ReplayIsNoOp(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE payments").
		WithArgs("fk-order-777").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	payment, confirmed, err := ds.ConfirmPayment(context.Background(), "fk-order-777")
	assert.NoError(t, err)
	assert.False(t, confirmed)
	assert.Nil(t, payment)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetPaymentByExternalRef_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectQuery("SELECT id, payment_id").
		WithArgs("missing-ref").
		WillReturnError(sql.ErrNoRows)

	_, err = ds.GetPaymentByExternalRef(context.Background(), "missing-ref")
	assert.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrNotFound, apiErr.Code)
}
