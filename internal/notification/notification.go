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
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/ightingale/numcheck/config"
	"github.com/ightingale/numcheck/internal/request"
	"github.com/ightingale/numcheck/model"
)

const telegramAPIBase = "https://api.telegram.org"

// Dispatcher delivers user/admin events to the configured Telegram
// channel. Delivery is best-effort: a bounded number of retries with
// exponential backoff, after which the failure is logged and swallowed.
// It never runs inside a ledger or settlement transaction.
type Dispatcher struct {
	conf    config.TelegramConfig
	apiBase string
}

func NewDispatcher(conf config.TelegramConfig) *Dispatcher {
	return &Dispatcher{conf: conf, apiBase: telegramAPIBase}
}

// NewDispatcherWithAPIBase is used by tests to point delivery at a
// local server.
func NewDispatcherWithAPIBase(conf config.TelegramConfig, apiBase string) *Dispatcher {
	return &Dispatcher{conf: conf, apiBase: apiBase}
}

type sendMessageRequest struct {
	ChatID          int64  `json:"chat_id"`
	MessageThreadID int64  `json:"message_thread_id,omitempty"`
	Text            string `json:"text"`
	ParseMode       string `json:"parse_mode"`
}

type sendMessageResponse struct {
	Ok          bool   `json:"ok"`
	Description string `json:"description"`
}

// topicFor routes new-account events to their own channel topic so
// registration noise stays out of the billing feed.
func (d *Dispatcher) topicFor(eventType model.NotificationType) int64 {
	if eventType == model.EventNewAccount {
		return d.conf.NewAccountsTopic
	}
	return d.conf.NotificationsTopic
}

// Dispatch delivers a single event. The returned error reports
// permanent failure after retries are exhausted; callers log it and
// move on, they never roll back the transaction that produced the
// event.
func (d *Dispatcher) Dispatch(ctx context.Context, event *model.NotificationEvent) error {
	if d.conf.BotToken == "" {
		return nil
	}

	operation := func() error {
		return d.send(ctx, event)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(
		backoff.NewExponentialBackOff(), uint64(d.conf.MaxDeliveryAttempts)), ctx)

	if err := backoff.Retry(operation, policy); err != nil {
		logrus.WithFields(logrus.Fields{
			"event_id":   event.EventID,
			"event_type": event.Type,
		}).Errorf("notification delivery permanently failed: %v", err)
		return err
	}
	return nil
}

func (d *Dispatcher) send(ctx context.Context, event *model.NotificationEvent) error {
	payload := sendMessageRequest{
		ChatID:          d.conf.ChannelID,
		MessageThreadID: d.topicFor(event.Type),
		Text:            fmt.Sprintf("<b>%s</b>\n%s", event.Headline, event.Text),
		ParseMode:       "HTML",
	}

	body, err := request.ToJsonReq(&payload)
	if err != nil {
		return backoff.Permanent(err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", d.apiBase, d.conf.BotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return backoff.Permanent(err)
	}

	var resp sendMessageResponse
	httpResp, err := request.Call(req, &resp)
	if err != nil {
		return err
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return fmt.Errorf("telegram responded with status %d: %s", httpResp.StatusCode, resp.Description)
	}
	if !resp.Ok {
		return fmt.Errorf("telegram rejected message: %s", resp.Description)
	}
	return nil
}

// NotifyError reports a system error to the notifications topic.
// It logs locally and delivers asynchronously so callers never block.
func NotifyError(systemError error) {
	go func(systemError error) {
		logrus.Error(systemError)

		conf, err := config.Fetch()
		if err != nil {
			logrus.Error(err)
			return
		}

		if conf.Notification.Telegram.BotToken == "" {
			return
		}

		d := NewDispatcher(conf.Notification.Telegram)
		event := &model.NotificationEvent{
			EventID:   model.GenerateUUIDWithSuffix("evt"),
			Headline:  "Error From Numcheck",
			Text:      fmt.Sprintf("%v\n%v", systemError, time.Now().Format(time.RFC822)),
			CreatedAt: time.Now(),
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = d.Dispatch(ctx, event)
	}(systemError)
}
