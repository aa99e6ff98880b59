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
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/ightingale/numcheck/config"
	"github.com/ightingale/numcheck/internal/apierror"
	redlock "github.com/ightingale/numcheck/internal/lock"
	"github.com/ightingale/numcheck/model"
)

var tracer = otel.Tracer("numcheck.ledger")

func logAndRecordError(span trace.Span, msg string, err error) error {
	span.RecordError(err)
	logrus.Error(msg, err)
	return err
}

func (l *Numcheck) acquireLock(ctx context.Context, accountID string) (*redlock.Locker, error) {
	locker := redlock.NewAccountLocker(l.redis, accountID, model.GenerateUUIDWithSuffix("loc"))
	err := locker.Lock(ctx, time.Minute)
	if err != nil {
		return nil, err
	}
	return locker, nil
}

func (l *Numcheck) releaseLock(ctx context.Context, locker *redlock.Locker) {
	if err := locker.Unlock(ctx); err != nil {
		logrus.Error("lock error", err)
	}
}

// activeTariff resolves the tariff that prices a new hold: the
// configured default when set, otherwise the newest active one.
func (l *Numcheck) activeTariff(ctx context.Context) (*model.Tariff, error) {
	cfg, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	if cfg.Check.DefaultTariffID != "" {
		return l.datasource.GetTariffByID(ctx, cfg.Check.DefaultTariffID)
	}
	return l.datasource.GetActiveTariff(ctx)
}

// PlaceHold prices a verification request against the active tariff,
// debits the hold and creates the task in one per-account serialized
// transaction. Nothing is mutated when the balance cannot cover the
// hold.
func (l *Numcheck) PlaceHold(ctx context.Context, accountID string, itemCount int64, settings map[string]interface{}) (*model.Task, error) {
	ctx, span := tracer.Start(ctx, "Placing hold for check task")
	defer span.End()

	cfg, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	if itemCount <= 0 {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "Item count must be positive", nil)
	}
	if itemCount > cfg.Check.MaxItemsPerCheck {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput,
			fmt.Sprintf("Item count %d exceeds the per-check limit of %d", itemCount, cfg.Check.MaxItemsPerCheck), nil)
	}

	tariff, err := l.activeTariff(ctx)
	if err != nil {
		return nil, logAndRecordError(span, "failed to resolve tariff: ", err)
	}

	locker, err := l.acquireLock(ctx, accountID)
	if err != nil {
		return nil, logAndRecordError(span, "failed to acquire account lock: ", err)
	}
	defer l.releaseLock(ctx, locker)

	task := &model.Task{
		AccountID: accountID,
		ItemCount: itemCount,
		Settings:  settings,
		HoldSum:   tariff.HoldSum(itemCount),
	}

	span.AddEvent("debiting hold and creating task")
	task, err = l.datasource.CreateTaskWithHold(ctx, task)
	if err != nil {
		return nil, err
	}
	return task, nil
}

// EnqueueTask hands a held task to the worker fleet. When the broker
// rejects it the hold is refunded and the task transitioned to FAILED
// before the error propagates, so no funds stay trapped behind a task
// that will never run.
func (l *Numcheck) EnqueueTask(ctx context.Context, task *model.Task) error {
	ctx, span := tracer.Start(ctx, "Queuing check task")
	defer span.End()

	if err := l.queue.Enqueue(ctx, task); err != nil {
		span.RecordError(err)
		logrus.Errorf("failed to enqueue task %s, refunding hold: %v", task.TaskID, err)
		l.refundOnEnqueueFailure(ctx, task)
		return apierror.NewAPIError(apierror.ErrQueueUnavailable, "Task queue is unavailable", err)
	}
	return nil
}

func (l *Numcheck) refundOnEnqueueFailure(ctx context.Context, task *model.Task) {
	locker, err := l.acquireLock(ctx, task.AccountID)
	if err != nil {
		logrus.Errorf("failed to acquire lock for compensating refund of %s: %v", task.TaskID, err)
		return
	}
	defer l.releaseLock(ctx, locker)

	_, won, err := l.datasource.RefundTaskHold(ctx, task.TaskID, []string{model.StatusPending}, model.StatusFailed)
	if err != nil {
		logrus.Errorf("compensating refund of %s failed: %v", task.TaskID, err)
		return
	}
	if !won {
		logrus.Warnf("task %s already left PENDING, skipping compensating refund", task.TaskID)
	}
}

// SubmitCheck is the full submission path: hold then enqueue.
func (l *Numcheck) SubmitCheck(ctx context.Context, accountID string, itemCount int64, settings map[string]interface{}) (*model.Task, error) {
	task, err := l.PlaceHold(ctx, accountID, itemCount, settings)
	if err != nil {
		return nil, err
	}
	if err := l.EnqueueTask(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// StartTask is the worker's ack that it picked the task up. Losing the
// transition means the task was cancelled in the meantime; the worker
// should drop it.
func (l *Numcheck) StartTask(ctx context.Context, taskID string) (bool, error) {
	ctx, span := tracer.Start(ctx, "Starting check task")
	defer span.End()

	won, err := l.datasource.UpdateTaskStatus(ctx, taskID, []string{model.StatusPending}, model.StatusRunning, nil, nil)
	if err != nil {
		return false, logAndRecordError(span, "failed to start task: ", err)
	}
	if !won {
		logrus.Infof("task %s no longer PENDING, worker should discard it", taskID)
	}
	return won, nil
}

// CompleteTask finalizes a successful run: CAS RUNNING→COMPLETED with
// the worker's counts, then settlement and the JOB_DONE notification.
// A redelivered callback loses the CAS; if the task is COMPLETED but
// final_sum is still unset the earlier delivery died between the CAS
// and the settlement, so the retry resumes settlement instead of
// dropping it. SettleTask's final_sum guard keeps true duplicates
// harmless.
func (l *Numcheck) CompleteTask(ctx context.Context, taskID string, successfulCount int64, resultRef string) error {
	ctx, span := tracer.Start(ctx, "Completing check task")
	defer span.End()

	won, err := l.datasource.UpdateTaskStatus(ctx, taskID, []string{model.StatusRunning}, model.StatusCompleted, &successfulCount, &resultRef)
	if err != nil {
		return logAndRecordError(span, "failed to complete task: ", err)
	}

	task, err := l.datasource.GetTask(ctx, taskID)
	if err != nil {
		return logAndRecordError(span, "failed to load completed task: ", err)
	}

	if !won {
		if task.Status != model.StatusCompleted || task.FinalSum != nil {
			logrus.Infof("task %s already terminal, ignoring duplicate completion", taskID)
			return nil
		}
		logrus.Warnf("task %s is COMPLETED but unsettled, resuming settlement", taskID)
	}

	span.AddEvent("settling task")
	if err := l.Settle(ctx, task); err != nil {
		return logAndRecordError(span, "failed to settle task: ", err)
	}

	l.progress.PublishTerminal(ctx, taskID)
	l.emitNotification(ctx, model.NotificationEvent{
		Type:      model.EventJobDone,
		Recipient: task.AccountID,
		Headline:  "Check finished",
		Text:      fmt.Sprintf("Task %s completed: %d of %d numbers verified", taskID, successfulCount, task.ItemCount),
	})
	return nil
}

// FailTask refunds the full hold and transitions the task to FAILED.
// Safe to call more than once; only the first caller refunds.
func (l *Numcheck) FailTask(ctx context.Context, taskID string, reason string) error {
	ctx, span := tracer.Start(ctx, "Failing check task")
	defer span.End()

	task, won, err := l.datasource.RefundTaskHold(ctx, taskID, []string{model.StatusPending, model.StatusRunning}, model.StatusFailed)
	if err != nil {
		return logAndRecordError(span, "failed to fail task: ", err)
	}
	if !won {
		logrus.Infof("task %s already terminal, ignoring duplicate failure", taskID)
		return nil
	}

	l.progress.PublishTerminal(ctx, taskID)
	l.emitNotification(ctx, model.NotificationEvent{
		Type:      model.EventJobDone,
		Recipient: task.AccountID,
		Headline:  "Check failed",
		Text:      fmt.Sprintf("Task %s failed: %s. The hold of %s was refunded.", taskID, reason, model.MajorUnits(task.HoldSum)),
	})
	return nil
}

// CancelTask aborts a task on behalf of its owner with a full refund.
// Terminal tasks cannot be cancelled.
func (l *Numcheck) CancelTask(ctx context.Context, taskID string, accountID string) (*model.Task, error) {
	ctx, span := tracer.Start(ctx, "Cancelling check task")
	defer span.End()

	task, err := l.datasource.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.AccountID != accountID {
		return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Task with ID '%s' not found", taskID), nil)
	}
	if model.IsTerminal(task.Status) {
		return nil, apierror.NewAPIError(apierror.ErrInvalidState,
			fmt.Sprintf("Task %s is already %s", taskID, task.Status), nil)
	}

	cancelled, won, err := l.datasource.RefundTaskHold(ctx, taskID, []string{model.StatusPending, model.StatusRunning}, model.StatusCancelled)
	if err != nil {
		return nil, logAndRecordError(span, "failed to cancel task: ", err)
	}
	if !won {
		return nil, apierror.NewAPIError(apierror.ErrInvalidState,
			fmt.Sprintf("Task %s reached a terminal state before cancellation", taskID), nil)
	}

	l.progress.PublishTerminal(ctx, taskID)
	return cancelled, nil
}

// ReportProgress forwards a worker progress sample to the stream.
// Samples for terminal tasks are dropped.
func (l *Numcheck) ReportProgress(ctx context.Context, taskID string, progress int) error {
	task, err := l.datasource.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	if model.IsTerminal(task.Status) {
		return nil
	}
	return l.progress.Publish(ctx, taskID, progress)
}

// GetTask returns a task by id.
func (l *Numcheck) GetTask(ctx context.Context, taskID string) (*model.Task, error) {
	return l.datasource.GetTask(ctx, taskID)
}

// GetTasksByAccount lists an account's task history.
func (l *Numcheck) GetTasksByAccount(ctx context.Context, accountID string, limit, offset int) ([]model.Task, error) {
	return l.datasource.GetTasksByAccount(ctx, accountID, limit, offset)
}
