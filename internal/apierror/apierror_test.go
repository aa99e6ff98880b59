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

package apierror_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/ightingale/numcheck/internal/apierror"
	"github.com/stretchr/testify/assert"
)

func TestNewAPIError(t *testing.T) {
	details := "Some internal error details"
	apiErr := apierror.NewAPIError(apierror.ErrInternalServer, "Something went wrong", details)

	assert.Equal(t, apierror.ErrInternalServer, apiErr.Code)
	assert.Equal(t, "Something went wrong", apiErr.Message)
	assert.Equal(t, details, apiErr.Details)
	assert.Equal(t, "INTERNAL_SERVER_ERROR: Something went wrong", apiErr.Error())
}

func TestMapErrorToHTTPStatus(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{
			name:     "NotFound Error",
			err:      apierror.NewAPIError(apierror.ErrNotFound, "Resource not found", nil),
			expected: http.StatusNotFound,
		},
		{
			name:     "Conflict Error",
			err:      apierror.NewAPIError(apierror.ErrConflict, "Conflict occurred", nil),
			expected: http.StatusConflict,
		},
		{
			name:     "InvalidState Error",
			err:      apierror.NewAPIError(apierror.ErrInvalidState, "Task already terminal", nil),
			expected: http.StatusConflict,
		},
		{
			name:     "InsufficientBalance Error",
			err:      apierror.NewAPIError(apierror.ErrInsufficientBalance, "Balance too low", nil),
			expected: http.StatusPaymentRequired,
		},
		{
			name:     "SignatureInvalid Error",
			err:      apierror.NewAPIError(apierror.ErrSignatureInvalid, "Bad signature", nil),
			expected: http.StatusForbidden,
		},
		{
			name:     "AlreadyProcessed Error",
			err:      apierror.NewAPIError(apierror.ErrAlreadyProcessed, "Duplicate delivery", nil),
			expected: http.StatusOK,
		},
		{
			name:     "QueueUnavailable Error",
			err:      apierror.NewAPIError(apierror.ErrQueueUnavailable, "Broker down", nil),
			expected: http.StatusServiceUnavailable,
		},
		{
			name:     "InvalidInput Error",
			err:      apierror.NewAPIError(apierror.ErrInvalidInput, "Invalid input", nil),
			expected: http.StatusBadRequest,
		},
		{
			name:     "InternalServerError",
			err:      apierror.NewAPIError(apierror.ErrInternalServer, "Internal error", nil),
			expected: http.StatusInternalServerError,
		},
		{
			name:     "Plain error",
			err:      errors.New("some random error"),
			expected: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, apierror.MapErrorToHTTPStatus(tt.err))
		})
	}
}

func TestErrorsIsMatching(t *testing.T) {
	wrapped := apierror.NewAPIError(apierror.ErrInsufficientBalance, "balance 40 below hold 60", nil)
	assert.True(t, errors.Is(wrapped, apierror.APIError{Code: apierror.ErrInsufficientBalance}))
	assert.False(t, errors.Is(wrapped, apierror.APIError{Code: apierror.ErrNotFound}))
}
