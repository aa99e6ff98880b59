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

	"github.com/sirupsen/logrus"

	"github.com/ightingale/numcheck/internal/apierror"
	"github.com/ightingale/numcheck/model"
)

// finalSumFor prices the settlement from the hold itself, not the
// current tariff: the unit price the customer was quoted at submission
// is the one they settle at, even if the tariff changed mid-run.
func finalSumFor(task *model.Task) int64 {
	if task.ItemCount <= 0 {
		return 0
	}
	successful := int64(0)
	if task.SuccessfulCount != nil {
		successful = *task.SuccessfulCount
	}
	if successful < 0 {
		successful = 0
	}
	if successful > task.ItemCount {
		successful = task.ItemCount
	}
	unitPrice := task.HoldSum / task.ItemCount
	return successful * unitPrice
}

// Settle records the final sum for a completed task and credits the
// unused remainder of the hold, exactly once. A task that was already
// settled is left alone.
func (l *Numcheck) Settle(ctx context.Context, task *model.Task) error {
	ctx, span := tracer.Start(ctx, "Settling check task")
	defer span.End()

	finalSum := finalSumFor(task)

	locker, err := l.acquireLock(ctx, task.AccountID)
	if err != nil {
		return logAndRecordError(span, "failed to acquire account lock: ", err)
	}
	defer l.releaseLock(ctx, locker)

	settled, won, err := l.datasource.SettleTask(ctx, task.TaskID, finalSum)
	if err != nil {
		return logAndRecordError(span, "failed to settle task: ", err)
	}
	if !won {
		logrus.Infof("task %s already settled, skipping", task.TaskID)
		return nil
	}

	logrus.WithFields(logrus.Fields{
		"task_id":   settled.TaskID,
		"final_sum": finalSum,
		"refund":    settled.HoldSum - finalSum,
	}).Info("task settled")
	return nil
}

// CreditTopUp applies a verified gateway confirmation to the account
// balance. The unique external reference is the idempotency key: a
// replayed confirmation finds the payment already confirmed and gets
// AlreadyProcessed, which the webhook layer maps to a 200 so the
// provider stops retrying.
func (l *Numcheck) CreditTopUp(ctx context.Context, confirmation *model.PaymentConfirmation) (*model.Payment, error) {
	ctx, span := tracer.Start(ctx, "Crediting top-up")
	defer span.End()

	existing, err := l.datasource.GetPaymentByExternalRef(ctx, confirmation.ExternalRef)
	if err != nil {
		return nil, err
	}
	if confirmation.Amount != existing.Amount {
		return nil, apierror.NewAPIError(apierror.ErrConflict,
			fmt.Sprintf("Confirmed amount %d does not match payment '%s' amount %d",
				confirmation.Amount, confirmation.ExternalRef, existing.Amount), nil)
	}

	locker, err := l.acquireLock(ctx, existing.AccountID)
	if err != nil {
		return nil, logAndRecordError(span, "failed to acquire account lock: ", err)
	}
	defer l.releaseLock(ctx, locker)

	payment, confirmed, err := l.datasource.ConfirmPayment(ctx, confirmation.ExternalRef)
	if err != nil {
		return nil, logAndRecordError(span, "failed to confirm payment: ", err)
	}
	if !confirmed {
		return existing, apierror.NewAPIError(apierror.ErrAlreadyProcessed,
			fmt.Sprintf("Payment '%s' was already processed", confirmation.ExternalRef), nil)
	}

	l.emitNotification(ctx, model.NotificationEvent{
		Type:      model.EventTopUp,
		Recipient: payment.AccountID,
		Headline:  "Balance topped up",
		Text:      fmt.Sprintf("Account %s credited %s via %s", payment.AccountID, model.MajorUnits(payment.Amount), payment.Provider),
	})
	return payment, nil
}

// CreatePayment records a payment intent for an account.
func (l *Numcheck) CreatePayment(ctx context.Context, payment model.Payment) (model.Payment, error) {
	if _, err := l.datasource.GetAccountByID(ctx, payment.AccountID); err != nil {
		return model.Payment{}, err
	}
	return l.datasource.CreatePayment(ctx, payment)
}

// GetPaymentsByAccount lists an account's payments.
func (l *Numcheck) GetPaymentsByAccount(ctx context.Context, accountID string, limit, offset int) ([]model.Payment, error) {
	return l.datasource.GetPaymentsByAccount(ctx, accountID, limit, offset)
}
