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

	"github.com/ightingale/numcheck/model"
)

// IDataSource defines the interface for data source operations, grouping related functionalities.
type IDataSource interface {
	account
	task
	payment
	tariff
	event
}

// account defines methods for handling accounts and their balances.
type account interface {
	CreateAccount(account model.Account) (model.Account, error)
	GetAccountByID(ctx context.Context, id string) (*model.Account, error)
	GetAllAccounts(ctx context.Context, limit, offset int) ([]model.Account, error)
}

// task defines the ledger's storage primitives. Every method that moves
// money runs a single local transaction; the caller holds the
// account-scoped lock around it.
type task interface {
	CreateTaskWithHold(ctx context.Context, tsk *model.Task) (*model.Task, error)                                                  // Debits the hold and inserts the task atomically
	GetTask(ctx context.Context, taskID string) (*model.Task, error)                                                               // Retrieves a task by ID
	GetTasksByAccount(ctx context.Context, accountID string, limit, offset int) ([]model.Task, error)                              // Task history for one account
	UpdateTaskStatus(ctx context.Context, taskID string, from []string, to string, successfulCount *int64, resultRef *string) (bool, error) // Compare-and-set status transition
	RefundTaskHold(ctx context.Context, taskID string, from []string, to string) (*model.Task, bool, error)                        // CAS transition plus full hold refund in one transaction
	SettleTask(ctx context.Context, taskID string, finalSum int64) (*model.Task, bool, error)                                      // Records final_sum once and credits the refund in one transaction
}

// payment defines methods for top-up payments.
type payment interface {
	CreatePayment(ctx context.Context, pmt model.Payment) (model.Payment, error)
	GetPaymentByExternalRef(ctx context.Context, externalRef string) (*model.Payment, error)
	GetPaymentsByAccount(ctx context.Context, accountID string, limit, offset int) ([]model.Payment, error)
	ConfirmPayment(ctx context.Context, externalRef string) (*model.Payment, bool, error) // Flips confirmed and credits the balance exactly once
}

// tariff defines methods for pricing reference data.
type tariff interface {
	CreateTariff(ctx context.Context, trf model.Tariff) (model.Tariff, error)
	GetTariffByID(ctx context.Context, tariffID string) (*model.Tariff, error)
	GetActiveTariff(ctx context.Context) (*model.Tariff, error)
}

// event defines methods for the append-only notification outbox.
type event interface {
	RecordNotificationEvent(ctx context.Context, evt model.NotificationEvent) (model.NotificationEvent, error)
	MarkNotificationProcessed(ctx context.Context, eventID string) error
	GetUnprocessedNotificationEvents(ctx context.Context, limit int) ([]model.NotificationEvent, error)
}
