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
	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"

	"github.com/ightingale/numcheck/internal/apierror"
	"github.com/ightingale/numcheck/model"
)

func TestCreateAccount_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	account := model.Account{
		Name:  gofakeit.Name(),
		Email: gofakeit.Email(),
	}

	mock.ExpectExec("INSERT INTO accounts").
		WithArgs(sqlmock.AnyArg(), account.Name, account.Email, int64(0), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	created, err := ds.CreateAccount(account)
	assert.NoError(t, err)
	assert.NotEmpty(t, created.AccountID)
	assert.WithinDuration(t, time.Now(), created.CreatedAt, time.Second)
}

func TestGetAccountByID_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "account_id", "name", "email", "balance", "version", "created_at"}).
		AddRow(1, "acc_123", "Alice", "alice@example.com", 10000, 3, now)

	mock.ExpectQuery("SELECT id, account_id").
		WithArgs("acc_123").
		WillReturnRows(rows)

	account, err := ds.GetAccountByID(context.Background(), "acc_123")
	assert.NoError(t, err)
	assert.Equal(t, "acc_123", account.AccountID)
	assert.Equal(t, int64(10000), account.Balance)
	assert.Equal(t, 3, account.Version)
}

func TestGetAccountByID_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectQuery("SELECT id, account_id").
		WithArgs("acc_missing").
		WillReturnError(sql.ErrNoRows)

	_, err = ds.GetAccountByID(context.Background(), "acc_missing")
	assert.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrNotFound, apiErr.Code)
}

func TestGetAllAccounts_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "account_id", "name", "email", "balance", "version", "created_at"}).
		AddRow(1, "acc_1", "Alice", "alice@example.com", 10000, 0, now).
		AddRow(2, "acc_2", "Bob", "bob@example.com", 0, 0, now)

	mock.ExpectQuery("SELECT id, account_id").
		WithArgs(20, 0).
		WillReturnRows(rows)

	accounts, err := ds.GetAllAccounts(context.Background(), 20, 0)
	assert.NoError(t, err)
	assert.Len(t, accounts, 2)
	assert.Equal(t, "acc_2", accounts[1].AccountID)
}
