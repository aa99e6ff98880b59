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
	"encoding/json"
	"fmt"
	"hash/fnv"
	"log"

	"github.com/hibiken/asynq"

	"github.com/ightingale/numcheck/config"
	redis_db "github.com/ightingale/numcheck/internal/redis-db"
	"github.com/ightingale/numcheck/model"
)

// Queue wraps the asynq client used to hand verification tasks to the
// worker fleet and to deliver notification events.
type Queue struct {
	Client    *asynq.Client
	Inspector *asynq.Inspector
}

// Result callback kinds reported by the verification fleet.
const (
	CallbackStarted  = "started"
	CallbackProgress = "progress"
	CallbackResult   = "result"
)

// CheckResultPayload is what the verification fleet reports back on
// the result queue: a pickup ack, a progress sample, or the final
// outcome.
type CheckResultPayload struct {
	TaskID          string `json:"task_id"`
	Kind            string `json:"kind"`
	Progress        int    `json:"progress,omitempty"`
	Succeeded       bool   `json:"succeeded,omitempty"`
	SuccessfulCount int64  `json:"successful_count,omitempty"`
	ResultRef       string `json:"result_ref,omitempty"`
	Reason          string `json:"reason,omitempty"`
}

// NewQueue initializes a new Queue instance with the provided configuration.
func NewQueue(conf *config.Configuration) *Queue {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns)
	if err != nil {
		log.Fatalf("Error parsing Redis URL: %v", err)
	}

	queueOptions := asynq.RedisClientOpt{Addr: redisOption.Addr, Password: redisOption.Password, DB: redisOption.DB}
	client := asynq.NewClient(queueOptions)
	inspector := asynq.NewInspector(queueOptions)
	return &Queue{
		Client:    client,
		Inspector: inspector,
	}
}

// Enqueue hands a task to the worker fleet. Tasks for the same account
// land on the same sharded queue so an account's checks run serially,
// and asynq.TaskID makes a duplicate enqueue of the same task a no-op
// at the broker.
func (q *Queue) Enqueue(ctx context.Context, task *model.Task) error {
	cnf, err := config.Fetch()
	if err != nil {
		return err
	}
	payload, err := json.Marshal(task)
	if err != nil {
		return err
	}
	info, err := q.Client.EnqueueContext(ctx, q.checkTask(cnf, task, payload))
	if err != nil {
		log.Println(err, info)
		return err
	}
	log.Printf(" [*] Successfully enqueued check task: %+v", task.TaskID)
	return nil
}

func (q *Queue) checkTask(cnf *config.Configuration, task *model.Task, payload []byte) *asynq.Task {
	queueIndex := hashAccountID(task.AccountID) % cnf.Queue.NumberOfQueues
	queueName := fmt.Sprintf("%s_%d", cnf.Queue.CheckQueue, queueIndex+1)

	taskOptions := []asynq.Option{
		asynq.TaskID(task.TaskID),
		asynq.Queue(queueName),
		asynq.MaxRetry(cnf.Queue.MaxRetryAttempts),
	}
	return asynq.NewTask(queueName, payload, taskOptions...)
}

// queueNotification enqueues a recorded notification event for
// post-commit delivery. The event id doubles as the asynq task id so a
// re-enqueued event is dropped by the broker.
func (q *Queue) queueNotification(ctx context.Context, event *model.NotificationEvent) error {
	cfg, err := config.Fetch()
	if err != nil {
		return err
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	taskOptions := []asynq.Option{
		asynq.TaskID(event.EventID),
		asynq.Queue(cfg.Queue.NotificationQueue),
		asynq.MaxRetry(cfg.Queue.MaxRetryAttempts),
	}
	task := asynq.NewTask(cfg.Queue.NotificationQueue, payload, taskOptions...)
	info, err := q.Client.Enqueue(task)
	if err != nil {
		log.Println(err, info)
		return err
	}
	return nil
}

// GetTaskFromQueue retrieves a pending check task from the sharded
// queues by its id. Returns nil when the broker no longer holds it.
func (q *Queue) GetTaskFromQueue(taskID string, accountID string) (*model.Task, error) {
	cfg, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	queueIndex := hashAccountID(accountID) % cfg.Queue.NumberOfQueues
	queueName := fmt.Sprintf("%s_%d", cfg.Queue.CheckQueue, queueIndex+1)
	info, err := q.Inspector.GetTaskInfo(queueName, taskID)
	if err != nil || info == nil {
		return nil, nil
	}

	var tsk model.Task
	if err := json.Unmarshal(info.Payload, &tsk); err != nil {
		return nil, err
	}
	return &tsk, nil
}

// hashAccountID returns a consistent hash value for an account id.
func hashAccountID(accountID string) int {
	hasher := fnv.New32a()
	_, _ = hasher.Write([]byte(accountID))
	return int(hasher.Sum32())
}
