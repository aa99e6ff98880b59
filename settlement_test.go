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
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/ightingale/numcheck/internal/apierror"
	"github.com/ightingale/numcheck/model"
)

func TestFinalSumFor(t *testing.T) {
	successful := int64(25)
	task := &model.Task{ItemCount: 30, HoldSum: 6000, SuccessfulCount: &successful}
	assert.Equal(t, int64(5000), finalSumFor(task))

	over := int64(50)
	task.SuccessfulCount = &over
	assert.Equal(t, int64(6000), finalSumFor(task))

	negative := int64(-3)
	task.SuccessfulCount = &negative
	assert.Equal(t, int64(0), finalSumFor(task))

	task.SuccessfulCount = nil
	assert.Equal(t, int64(0), finalSumFor(task))
}

func TestSettle_RefundsRemainder(t *testing.T) {
	service, mock := newTestService(t)

	now := time.Now()
	successful := int64(25)
	finalSum := int64(5000)
	task := &model.Task{
		TaskID:          "tsk_1",
		AccountID:       "acc_123",
		Status:          model.StatusCompleted,
		ItemCount:       30,
		HoldSum:         6000,
		SuccessfulCount: &successful,
	}

	rows := sqlmock.NewRows([]string{"id", "task_id", "account_id", "status", "item_count", "settings", "successful_count", "hold_sum", "final_sum", "result_ref", "created_at", "updated_at"}).
		AddRow(1, "tsk_1", "acc_123", model.StatusCompleted, 30, []byte(`{}`), &successful, 6000, &finalSum, nil, now, now)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE tasks").
		WithArgs("tsk_1", int64(5000), model.StatusCompleted).
		WillReturnRows(rows)
	mock.ExpectExec("UPDATE accounts SET balance = balance \\+").
		WithArgs("acc_123", int64(1000)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := service.Settle(context.Background(), task)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettle_SecondAttemptIsNoOp(t *testing.T) {
	service, mock := newTestService(t)

	successful := int64(25)
	task := &model.Task{
		TaskID:          "tsk_1",
		AccountID:       "acc_123",
		Status:          model.StatusCompleted,
		ItemCount:       30,
		HoldSum:         6000,
		SuccessfulCount: &successful,
	}

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE tasks").
		WithArgs("tsk_1", int64(5000), model.StatusCompleted).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := service.Settle(context.Background(), task)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreditTopUp_CreditsOnce(t *testing.T) {
	service, mock := newTestService(t)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "payment_id", "provider", "amount", "account_id", "confirmed", "external_ref", "created_at"}).
		AddRow(1, "pay_1", model.ProviderFreeKassa, 50000, "acc_123", true, "fk-order-777", now)

	mock.ExpectQuery("SELECT id, payment_id").
		WithArgs("fk-order-777").
		WillReturnRows(sqlmock.NewRows([]string{"id", "payment_id", "provider", "amount", "account_id", "confirmed", "external_ref", "created_at"}).
			AddRow(1, "pay_1", model.ProviderFreeKassa, 50000, "acc_123", false, "fk-order-777", now))
	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE payments").
		WithArgs("fk-order-777").
		WillReturnRows(rows)
	mock.ExpectExec("UPDATE accounts SET balance = balance \\+").
		WithArgs("acc_123", int64(50000)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	// emitNotification records the TOP_UP event after commit
	mock.ExpectExec("INSERT INTO notification_events").
		WillReturnResult(sqlmock.NewResult(1, 1))

	payment, err := service.CreditTopUp(context.Background(), &model.PaymentConfirmation{
		ExternalRef: "fk-order-777",
		Amount:      50000,
	})
	assert.NoError(t, err)
	assert.Equal(t, int64(50000), payment.Amount)
	assert.True(t, payment.Confirmed)
}

func TestCreditTopUp_AmountMismatchRejected(t *testing.T) {
	service, mock := newTestService(t)

	now := time.Now()
	mock.ExpectQuery("SELECT id, payment_id").
		WithArgs("fk-order-777").
		WillReturnRows(sqlmock.NewRows([]string{"id", "payment_id", "provider", "amount", "account_id", "confirmed", "external_ref", "created_at"}).
			AddRow(1, "pay_1", model.ProviderFreeKassa, 50000, "acc_123", false, "fk-order-777", now))

	// the provider signed 30000 but the intent was for 50000; nothing
	// may be credited
	payment, err := service.CreditTopUp(context.Background(), &model.PaymentConfirmation{
		ExternalRef: "fk-order-777",
		Amount:      30000,
	})
	assert.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrConflict, apiErr.Code)
	assert.Nil(t, payment)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreditTopUp_ReplayGetsAlreadyProcessed(t *testing.T) {
	service, mock := newTestService(t)

	now := time.Now()

	mock.ExpectQuery("SELECT id, payment_id").
		WithArgs("fk-order-777").
		WillReturnRows(sqlmock.NewRows([]string{"id", "payment_id", "provider", "amount", "account_id", "confirmed", "external_ref", "created_at"}).
			AddRow(1, "pay_1", model.ProviderFreeKassa, 50000, "acc_123", true, "fk-order-777", now))
	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE payments").
		WithArgs("fk-order-777").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	payment, err := service.CreditTopUp(context.Background(), &model.PaymentConfirmation{
		ExternalRef: "fk-order-777",
		Amount:      50000,
	})
	assert.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrAlreadyProcessed, apiErr.Code)
	assert.NotNil(t, payment)
	assert.True(t, payment.Confirmed)
}
