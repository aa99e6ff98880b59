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

package model

import (
	"encoding/json"
	"time"
)

const (
	StatusPending   = "PENDING"
	StatusRunning   = "RUNNING"
	StatusCompleted = "COMPLETED"
	StatusFailed    = "FAILED"
	StatusCancelled = "CANCELLED"
)

// Task is a single bulk verification job. HoldSum is fixed at creation
// and never increases; FinalSum is set exactly once at settlement and
// never exceeds HoldSum.
type Task struct {
	ID              int64                  `json:"-"`
	TaskID          string                 `json:"task_id"`
	AccountID       string                 `json:"account_id"`
	Status          string                 `json:"status"`
	ItemCount       int64                  `json:"item_count"`
	Settings        map[string]interface{} `json:"settings,omitempty"`
	SuccessfulCount *int64                 `json:"successful_count,omitempty"`
	HoldSum         int64                  `json:"hold_sum"`
	FinalSum        *int64                 `json:"final_sum,omitempty"`
	ResultRef       *string                `json:"result_ref,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

// IsTerminal reports whether no further transition is permitted out of
// the given status.
func IsTerminal(status string) bool {
	switch status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// CanTransition reports whether the task state machine permits moving
// from one status to another. PENDING -> RUNNING -> {COMPLETED,FAILED},
// with CANCELLED reachable from any non-terminal status.
func CanTransition(from, to string) bool {
	if IsTerminal(from) {
		return false
	}
	switch to {
	case StatusRunning:
		return from == StatusPending
	case StatusCompleted:
		return from == StatusRunning
	case StatusFailed, StatusCancelled:
		return from == StatusPending || from == StatusRunning
	}
	return false
}

func (t *Task) ToJSON() ([]byte, error) {
	return json.Marshal(t)
}
