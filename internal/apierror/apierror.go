package apierror

import (
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"
)

type ErrorCode string

const (
	ErrNotFound            ErrorCode = "NOT_FOUND"
	ErrConflict            ErrorCode = "CONFLICT"
	ErrBadRequest          ErrorCode = "BAD_REQUEST"
	ErrInvalidInput        ErrorCode = "INVALID_INPUT"
	ErrInsufficientBalance ErrorCode = "INSUFFICIENT_BALANCE"
	ErrInvalidState        ErrorCode = "INVALID_STATE_TRANSITION"
	ErrQueueUnavailable    ErrorCode = "QUEUE_UNAVAILABLE"
	ErrSignatureInvalid    ErrorCode = "SIGNATURE_VERIFICATION_FAILED"
	ErrMalformedPayload    ErrorCode = "MALFORMED_PAYLOAD"
	ErrAlreadyProcessed    ErrorCode = "ALREADY_PROCESSED"
	ErrInternalServer      ErrorCode = "INTERNAL_SERVER_ERROR"
)

type APIError struct {
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func (e APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewAPIError(code ErrorCode, message string, details interface{}) APIError {
	logrus.Error(details)
	return APIError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// Is lets callers match wrapped domain failures with errors.Is against
// a bare code-only APIError.
func (e APIError) Is(target error) bool {
	other, ok := target.(APIError)
	return ok && other.Code == e.Code
}

func MapErrorToHTTPStatus(err error) int {
	if apiErr, ok := err.(APIError); ok {
		switch apiErr.Code {
		case ErrNotFound:
			return http.StatusNotFound
		case ErrConflict, ErrInvalidState:
			return http.StatusConflict
		case ErrBadRequest, ErrInvalidInput, ErrMalformedPayload:
			return http.StatusBadRequest
		case ErrInsufficientBalance:
			return http.StatusPaymentRequired
		case ErrSignatureInvalid:
			return http.StatusForbidden
		case ErrAlreadyProcessed:
			return http.StatusOK
		case ErrQueueUnavailable:
			return http.StatusServiceUnavailable
		case ErrInternalServer:
			return http.StatusInternalServerError
		default:
			return http.StatusInternalServerError
		}
	}
	return http.StatusInternalServerError
}
