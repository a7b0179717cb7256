package services

import (
	"errors"
	"net/http"

	"goodies-platform/internal/payments"
	goodies_errors "goodies-platform/pkg/errors"
)

// HTTPStatus maps service and provider errors to response codes.
// ErrVerificationUnavailable and ErrLedgerStorage are 5xx so that the
// provider redelivers; every other rejection is final.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, payments.ErrUnknownProvider):
		return http.StatusNotFound
	case errors.Is(err, payments.ErrInvalidSignature), errors.Is(err, payments.ErrMalformedPayload):
		return http.StatusBadRequest
	case errors.Is(err, payments.ErrVerificationUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrLedgerStorage):
		return http.StatusInternalServerError
	case errors.Is(err, goodies_errors.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, goodies_errors.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, goodies_errors.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, goodies_errors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, goodies_errors.ErrConflict),
		errors.Is(err, goodies_errors.ErrAlreadyExists),
		errors.Is(err, goodies_errors.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, goodies_errors.ErrServiceUnavailable), errors.Is(err, goodies_errors.ErrQueueFull):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
