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

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/ightingale/numcheck/config"
	"github.com/ightingale/numcheck/database"
	"github.com/ightingale/numcheck/internal/notification"
	redis_db "github.com/ightingale/numcheck/internal/redis-db"
	"github.com/ightingale/numcheck/model"
)

// Numcheck is the main service struct. It owns the datasource, the
// task queue, the redis client backing locks and progress, and the
// notification dispatcher.
type Numcheck struct {
	queue      *Queue
	redis      redis.UniversalClient
	datasource database.IDataSource
	progress   *ProgressStream
	dispatcher *notification.Dispatcher
}

// NewNumcheck initializes a new Numcheck instance from the fetched
// configuration and the provided datasource.
func NewNumcheck(db database.IDataSource) (*Numcheck, error) {
	configuration, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	redisClient, err := redis_db.NewRedisClient([]string{fmt.Sprintf("redis://%s", configuration.Redis.Dns)})
	if err != nil {
		return nil, err
	}
	newQueue := NewQueue(configuration)
	service := &Numcheck{
		datasource: db,
		queue:      newQueue,
		redis:      redisClient.Client(),
		progress:   NewProgressStream(redisClient.Client()),
		dispatcher: notification.NewDispatcher(configuration.Notification.Telegram),
	}
	return service, nil
}

// Queue exposes the underlying task queue, used by the worker command
// to share one asynq client.
func (l *Numcheck) Queue() *Queue {
	return l.queue
}

// Dispatcher exposes the notification dispatcher for the worker loop.
func (l *Numcheck) Dispatcher() *notification.Dispatcher {
	return l.dispatcher
}

// Progress exposes the progress stream for the API layer.
func (l *Numcheck) Progress() *ProgressStream {
	return l.progress
}

// emitNotification records the event and enqueues it for delivery.
// Delivery failures never surface to the caller; the financial state
// is already committed by the time a notification exists.
func (l *Numcheck) emitNotification(ctx context.Context, event model.NotificationEvent) {
	recorded, err := l.datasource.RecordNotificationEvent(ctx, event)
	if err != nil {
		logrus.Errorf("failed to record notification event: %v", err)
		notification.NotifyError(err)
		return
	}
	if err := l.queue.queueNotification(ctx, &recorded); err != nil {
		logrus.Errorf("failed to enqueue notification %s: %v", recorded.EventID, err)
	}
}

// ProcessNotificationEvent delivers one queued notification event and
// marks it processed. Called from the worker's notification consumer.
func (l *Numcheck) ProcessNotificationEvent(ctx context.Context, event *model.NotificationEvent) error {
	if err := l.dispatcher.Dispatch(ctx, event); err != nil {
		return err
	}
	return l.datasource.MarkNotificationProcessed(ctx, event.EventID)
}
