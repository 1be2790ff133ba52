package api

import (
	"errors"
	"net/http"

	"courtql/internal/domain"
)

// httpStatusFromDomainError maps domain errors to HTTP status codes.
func httpStatusFromDomainError(err error) int {
	var safety *domain.SafetyError
	var execution *domain.ExecutionError
	var extraction *domain.ExtractionError
	var generation *domain.GenerationError

	switch {
	case errors.As(err, &safety):
		return http.StatusBadRequest
	case errors.As(err, &execution):
		if execution.Timeout {
			return http.StatusGatewayTimeout
		}
		return http.StatusInternalServerError
	case errors.As(err, &extraction), errors.As(err, &generation):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
