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

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/ightingale/numcheck"
	"github.com/ightingale/numcheck/config"
	redis_db "github.com/ightingale/numcheck/internal/redis-db"
	"github.com/ightingale/numcheck/model"
)

// processCheckResult consumes callbacks from the verification fleet:
// pickup acks, progress samples and final outcomes. All of them are
// idempotent at the ledger, so asynq retries are safe.
func (b *numcheckInstance) processCheckResult(ctx context.Context, t *asynq.Task) error {
	ctx, span := otel.Tracer("numcheck.worker").Start(ctx, "Process Check Result From Redis Queue")
	defer span.End()

	var payload numcheck.CheckResultPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		logrus.Error(err)
		return err
	}

	switch payload.Kind {
	case numcheck.CallbackStarted:
		_, err := b.numcheck.StartTask(ctx, payload.TaskID)
		return err
	case numcheck.CallbackProgress:
		return b.numcheck.ReportProgress(ctx, payload.TaskID, payload.Progress)
	case numcheck.CallbackResult:
		if payload.Succeeded {
			return b.numcheck.CompleteTask(ctx, payload.TaskID, payload.SuccessfulCount, payload.ResultRef)
		}
		return b.numcheck.FailTask(ctx, payload.TaskID, payload.Reason)
	default:
		logrus.Errorf("unknown check result kind %q for task %s, dropping", payload.Kind, payload.TaskID)
		return nil
	}
}

// processNotification delivers one recorded notification event.
func (b *numcheckInstance) processNotification(ctx context.Context, t *asynq.Task) error {
	var event model.NotificationEvent
	if err := json.Unmarshal(t.Payload(), &event); err != nil {
		logrus.Error(err)
		return err
	}

	if err := b.numcheck.ProcessNotificationEvent(ctx, &event); err != nil {
		return err
	}

	log.Println(" [*] Notification Delivered", event.EventID)
	return nil
}

func initializeQueues() map[string]int {
	cfg, err := config.Fetch()
	if err != nil {
		log.Printf("Error fetching config, using defaults: %v", err)
		return nil
	}

	queues := make(map[string]int)
	queues[cfg.Queue.ResultQueue] = 3
	queues[cfg.Queue.NotificationQueue] = 1
	return queues
}

func initializeWorkerServer(conf *config.Configuration, queues map[string]int) (*asynq.Server, error) {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns)
	if err != nil {
		return nil, fmt.Errorf("error parsing Redis URL: %v", err)
	}

	return asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     redisOption.Addr,
			Password: redisOption.Password,
			DB:       redisOption.DB,
		},
		asynq.Config{
			Concurrency: 1,
			Queues:      queues,
		},
	), nil
}

func initializeTaskHandlers(b *numcheckInstance, mux *asynq.ServeMux) {
	cfg, err := config.Fetch()
	if err != nil {
		log.Printf("Error fetching config, using defaults: %v", err)
		return
	}

	mux.HandleFunc(cfg.Queue.ResultQueue, b.processCheckResult)
	mux.HandleFunc(cfg.Queue.NotificationQueue, b.processNotification)
}

// workerCommands defines the "workers" command that consumes the
// result and notification queues.
func workerCommands(b *numcheckInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workers",
		Short: "start numcheck workers",
		Run: func(cmd *cobra.Command, args []string) {
			conf, err := config.Fetch()
			if err != nil {
				log.Fatal("Error fetching config:", err)
			}

			queues := initializeQueues()

			srv, err := initializeWorkerServer(conf, queues)
			if err != nil {
				log.Fatal(err)
			}

			mux := asynq.NewServeMux()
			initializeTaskHandlers(b, mux)

			if err := srv.Run(mux); err != nil {
				log.Fatalf("could not run server: %v", err)
			}
		},
	}

	return cmd
}
