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
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/ightingale/numcheck/internal/apierror"
	"github.com/ightingale/numcheck/model"
)

// CreateTaskWithHold debits the hold from the owning account and
// inserts the task, both inside one transaction. A row lock on the
// account serializes concurrent holds so two of them can never both
// pass the balance check against the same funds.
func (d Datasource) CreateTaskWithHold(ctx context.Context, tsk *model.Task) (*model.Task, error) {
	settingsJSON, err := json.Marshal(tsk.Settings)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal task settings", err)
	}

	tx, err := d.Conn.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelDefault})
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	var balance int64
	err = tx.QueryRowContext(ctx, `
		SELECT balance FROM accounts WHERE account_id = $1 FOR UPDATE
	`, tsk.AccountID).Scan(&balance)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Account with ID '%s' not found", tsk.AccountID), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to lock account balance", err)
	}

	if balance < tsk.HoldSum {
		return nil, apierror.NewAPIError(apierror.ErrInsufficientBalance,
			fmt.Sprintf("Balance %d is below the required hold %d", balance, tsk.HoldSum), nil)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE accounts SET balance = balance - $2, version = version + 1 WHERE account_id = $1
	`, tsk.AccountID, tsk.HoldSum)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to debit hold", err)
	}

	tsk.TaskID = model.GenerateUUIDWithSuffix("tsk")
	tsk.Status = model.StatusPending
	tsk.CreatedAt = time.Now()
	tsk.UpdatedAt = tsk.CreatedAt

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tasks (task_id, account_id, status, item_count, settings, hold_sum, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, tsk.TaskID, tsk.AccountID, tsk.Status, tsk.ItemCount, settingsJSON, tsk.HoldSum, tsk.CreatedAt, tsk.UpdatedAt)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to insert task", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit transaction", err)
	}

	return tsk, nil
}

func scanTask(row *sql.Row) (*model.Task, error) {
	tsk := &model.Task{}
	var settingsJSON []byte
	err := row.Scan(&tsk.ID, &tsk.TaskID, &tsk.AccountID, &tsk.Status, &tsk.ItemCount, &settingsJSON,
		&tsk.SuccessfulCount, &tsk.HoldSum, &tsk.FinalSum, &tsk.ResultRef, &tsk.CreatedAt, &tsk.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(settingsJSON) > 0 {
		if err := json.Unmarshal(settingsJSON, &tsk.Settings); err != nil {
			return nil, err
		}
	}
	return tsk, nil
}

// GetTask retrieves a task by its public id.
func (d Datasource) GetTask(ctx context.Context, taskID string) (*model.Task, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT id, task_id, account_id, status, item_count, settings, successful_count, hold_sum, final_sum, result_ref, created_at, updated_at
		FROM tasks
		WHERE task_id = $1
	`, taskID)

	tsk, err := scanTask(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Task with ID '%s' not found", taskID), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve task", err)
	}
	return tsk, nil
}

// GetTasksByAccount lists an account's task history, newest first.
func (d Datasource) GetTasksByAccount(ctx context.Context, accountID string, limit, offset int) ([]model.Task, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT id, task_id, account_id, status, item_count, settings, successful_count, hold_sum, final_sum, result_ref, created_at, updated_at
		FROM tasks
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, accountID, limit, offset)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve tasks", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var tasks []model.Task
	for rows.Next() {
		tsk := model.Task{}
		var settingsJSON []byte
		err = rows.Scan(&tsk.ID, &tsk.TaskID, &tsk.AccountID, &tsk.Status, &tsk.ItemCount, &settingsJSON,
			&tsk.SuccessfulCount, &tsk.HoldSum, &tsk.FinalSum, &tsk.ResultRef, &tsk.CreatedAt, &tsk.UpdatedAt)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan task", err)
		}
		if len(settingsJSON) > 0 {
			if err := json.Unmarshal(settingsJSON, &tsk.Settings); err != nil {
				return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to unmarshal task settings", err)
			}
		}
		tasks = append(tasks, tsk)
	}

	return tasks, nil
}

// UpdateTaskStatus performs a compare-and-set transition: the update
// applies only while the current status is one of `from`. The returned
// bool reports whether this caller won the transition; a duplicate
// worker callback or a lost race simply observes false.
func (d Datasource) UpdateTaskStatus(ctx context.Context, taskID string, from []string, to string, successfulCount *int64, resultRef *string) (bool, error) {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE tasks
		SET status = $3,
		    successful_count = COALESCE($4, successful_count),
		    result_ref = COALESCE($5, result_ref),
		    updated_at = NOW()
		WHERE task_id = $1 AND status = ANY($2)
	`, taskID, pq.Array(from), to, successfulCount, resultRef)
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update task status", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	return rowsAffected > 0, nil
}

// RefundTaskHold transitions the task out of `from` into a terminal
// status and credits the full hold back to the account, all in one
// transaction. Losing the status race refunds nothing; the winner of
// the competing transition owns the financial outcome.
func (d Datasource) RefundTaskHold(ctx context.Context, taskID string, from []string, to string) (*model.Task, bool, error) {
	tx, err := d.Conn.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelDefault})
	if err != nil {
		return nil, false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	row := tx.QueryRowContext(ctx, `
		UPDATE tasks
		SET status = $3, final_sum = 0, updated_at = NOW()
		WHERE task_id = $1 AND status = ANY($2)
		RETURNING id, task_id, account_id, status, item_count, settings, successful_count, hold_sum, final_sum, result_ref, created_at, updated_at
	`, taskID, pq.Array(from), to)

	tsk, err := scanTask(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to transition task", err)
	}

	if err := creditBalance(ctx, tx, tsk.AccountID, tsk.HoldSum); err != nil {
		return nil, false, err
	}

	if err := tx.Commit(); err != nil {
		return nil, false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit transaction", err)
	}

	return tsk, true, nil
}

// SettleTask records final_sum exactly once and credits the refund
// (hold_sum - final_sum) in the same transaction. The final_sum IS NULL
// guard makes a second settlement attempt a no-op.
func (d Datasource) SettleTask(ctx context.Context, taskID string, finalSum int64) (*model.Task, bool, error) {
	tx, err := d.Conn.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelDefault})
	if err != nil {
		return nil, false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	row := tx.QueryRowContext(ctx, `
		UPDATE tasks
		SET final_sum = $2, updated_at = NOW()
		WHERE task_id = $1 AND status = $3 AND final_sum IS NULL
		RETURNING id, task_id, account_id, status, item_count, settings, successful_count, hold_sum, final_sum, result_ref, created_at, updated_at
	`, taskID, finalSum, model.StatusCompleted)

	tsk, err := scanTask(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record settlement", err)
	}

	if refund := tsk.HoldSum - finalSum; refund > 0 {
		if err := creditBalance(ctx, tx, tsk.AccountID, refund); err != nil {
			return nil, false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit transaction", err)
	}

	return tsk, true, nil
}
