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

package api

import (
	"bytes"
	"crypto/md5"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/ightingale/numcheck"
	"github.com/ightingale/numcheck/config"
	"github.com/ightingale/numcheck/database"
	"github.com/ightingale/numcheck/model"
)

func newTestAPI(t *testing.T) (*Api, sqlmock.Sqlmock, *gin.Engine) {
	t.Helper()

	mr := miniredis.RunT(t)
	config.MockConfig(&config.Configuration{
		Redis: config.RedisConfig{Dns: mr.Addr()},
		Payments: config.PaymentsConfig{
			FreeKassa: config.FreeKassaConfig{ShopID: "shop1", SecretKey: "secret"},
		},
	})

	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	service, err := numcheck.NewNumcheck(&database.Datasource{Conn: db})
	assert.NoError(t, err)

	a := NewAPI(service)
	router := a.Router()
	return a, mock, router
}

func TestCreateAccount_API(t *testing.T) {
	_, mock, router := newTestAPI(t)

	mock.ExpectExec("INSERT INTO accounts").
		WillReturnResult(sqlmock.NewResult(1, 1))
	// NEW_ACCOUNT event recorded after the account commit
	mock.ExpectExec("INSERT INTO notification_events").
		WillReturnResult(sqlmock.NewResult(1, 1))

	body, _ := json.Marshal(map[string]string{"name": "Alice", "email": "alice@example.com"})
	req := httptest.NewRequest("POST", "/accounts", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusCreated, resp.Code)

	var account model.Account
	assert.NoError(t, json.Unmarshal(resp.Body.Bytes(), &account))
	assert.Contains(t, account.AccountID, "acc_")
}

func TestCreateAccount_ValidationFails(t *testing.T) {
	_, _, router := newTestAPI(t)

	body, _ := json.Marshal(map[string]string{"name": "Alice", "email": "not-an-email"})
	req := httptest.NewRequest("POST", "/accounts", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestSubmitCheck_InsufficientBalanceIs402(t *testing.T) {
	_, mock, router := newTestAPI(t)

	rows := sqlmock.NewRows([]string{"id", "tariff_id", "name", "price_per_item", "active", "created_at"}).
		AddRow(1, "trf_1", "standard", 200, true, time.Now())
	mock.ExpectQuery("SELECT id, tariff_id").WillReturnRows(rows)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT balance FROM accounts").
		WithArgs("acc_123").
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(100))
	mock.ExpectRollback()

	body, _ := json.Marshal(map[string]interface{}{"account_id": "acc_123", "item_count": 30})
	req := httptest.NewRequest("POST", "/tasks", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusPaymentRequired, resp.Code)
}

func TestSubmitCheck_MissingAccountIs400(t *testing.T) {
	_, _, router := newTestAPI(t)

	body, _ := json.Marshal(map[string]interface{}{"item_count": 30})
	req := httptest.NewRequest("POST", "/tasks", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestCancelTask_TerminalIs409(t *testing.T) {
	_, mock, router := newTestAPI(t)

	now := time.Now()
	successful := int64(30)
	rows := sqlmock.NewRows([]string{"id", "task_id", "account_id", "status", "item_count", "settings", "successful_count", "hold_sum", "final_sum", "result_ref", "created_at", "updated_at"}).
		AddRow(1, "tsk_1", "acc_123", model.StatusCompleted, 30, []byte(`{}`), &successful, 6000, nil, nil, now, now)
	mock.ExpectQuery("SELECT id, task_id").WithArgs("tsk_1").WillReturnRows(rows)

	body, _ := json.Marshal(map[string]string{"account_id": "acc_123"})
	req := httptest.NewRequest("POST", "/tasks/tsk_1/cancel", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusConflict, resp.Code)
}

func freeKassaSign(shopID, amount, secret, orderID string) string {
	sum := md5.Sum([]byte(fmt.Sprintf("%s:%s:%s:%s", shopID, amount, secret, orderID)))
	return hex.EncodeToString(sum[:])
}

func TestProviderCallback_BadSignatureIs403(t *testing.T) {
	_, _, router := newTestAPI(t)

	form := url.Values{}
	form.Set("MERCHANT_ORDER_ID", "ord_1")
	form.Set("AMOUNT", "500.00")
	form.Set("SIGN", "forged")

	req := httptest.NewRequest("POST", "/webhooks/freekassa", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusForbidden, resp.Code)
}

func TestProviderCallback_ReplayIs200(t *testing.T) {
	_, mock, router := newTestAPI(t)

	now := time.Now()
	mock.ExpectQuery("SELECT id, payment_id").
		WithArgs("ord_1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "payment_id", "provider", "amount", "account_id", "confirmed", "external_ref", "created_at"}).
			AddRow(1, "pay_1", model.ProviderFreeKassa, 50000, "acc_123", true, "ord_1", now))
	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE payments").
		WithArgs("ord_1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	form := url.Values{}
	form.Set("MERCHANT_ORDER_ID", "ord_1")
	form.Set("AMOUNT", "500.00")
	form.Set("SIGN", freeKassaSign("shop1", "500.00", "secret", "ord_1"))

	req := httptest.NewRequest("POST", "/webhooks/freekassa", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "already processed")
}

func TestProviderCallback_UnknownProviderIs400(t *testing.T) {
	_, _, router := newTestAPI(t)

	req := httptest.NewRequest("POST", "/webhooks/paypal", strings.NewReader(""))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
}
