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

package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ightingale/numcheck/config"
	"github.com/ightingale/numcheck/model"
)

func testConfig() config.TelegramConfig {
	return config.TelegramConfig{
		BotToken:            "test-token",
		ChannelID:           -100123,
		NotificationsTopic:  7,
		NewAccountsTopic:    9,
		MaxDeliveryAttempts: 2,
	}
}

func TestDispatchRoutesTopics(t *testing.T) {
	var got sendMessageRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bottest-token/sendMessage", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(sendMessageResponse{Ok: true})
	}))
	defer server.Close()

	d := NewDispatcherWithAPIBase(testConfig(), server.URL)

	err := d.Dispatch(context.Background(), &model.NotificationEvent{
		EventID:  model.GenerateUUIDWithSuffix("evt"),
		Type:     model.EventNewAccount,
		Headline: "New account",
		Text:     "someone registered",
	})
	assert.NoError(t, err)
	assert.Equal(t, int64(-100123), got.ChatID)
	assert.Equal(t, int64(9), got.MessageThreadID)

	err = d.Dispatch(context.Background(), &model.NotificationEvent{
		EventID:  model.GenerateUUIDWithSuffix("evt"),
		Type:     model.EventTopUp,
		Headline: "Top up",
		Text:     "balance credited",
	})
	assert.NoError(t, err)
	assert.Equal(t, int64(7), got.MessageThreadID)
}

func TestDispatchRetriesThenSucceeds(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			_ = json.NewEncoder(w).Encode(sendMessageResponse{Ok: false, Description: "bad gateway"})
			return
		}
		_ = json.NewEncoder(w).Encode(sendMessageResponse{Ok: true})
	}))
	defer server.Close()

	d := NewDispatcherWithAPIBase(testConfig(), server.URL)
	err := d.Dispatch(context.Background(), &model.NotificationEvent{
		EventID:  model.GenerateUUIDWithSuffix("evt"),
		Type:     model.EventJobDone,
		Headline: "Job done",
		Text:     "task finished",
	})
	assert.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestDispatchGivesUpAfterBoundedAttempts(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(sendMessageResponse{Ok: false, Description: "boom"})
	}))
	defer server.Close()

	d := NewDispatcherWithAPIBase(testConfig(), server.URL)
	err := d.Dispatch(context.Background(), &model.NotificationEvent{
		EventID:  model.GenerateUUIDWithSuffix("evt"),
		Type:     model.EventJobDone,
		Headline: "Job done",
		Text:     "task finished",
	})
	assert.Error(t, err)
	// initial attempt plus MaxDeliveryAttempts retries
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestDispatchNoTokenIsNoop(t *testing.T) {
	d := NewDispatcher(config.TelegramConfig{})
	err := d.Dispatch(context.Background(), &model.NotificationEvent{Type: model.EventTopUp})
	assert.NoError(t, err)
}
