package httpx

import (
	"net/http"

	apperrors "github.com/jobsift/jobsift/internal/errors"
)

// WriteAppError maps the error taxonomy onto HTTP statuses and writes the
// standard JSON error body.
func WriteAppError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	errCode := "internal_error"

	switch apperrors.GetCode(err) {
	case apperrors.ErrCodeValidation:
		code = http.StatusUnprocessableEntity
		errCode = "validation_failed"
	case apperrors.ErrCodeNotFound:
		code = http.StatusNotFound
		errCode = "not_found"
	case apperrors.ErrCodeConflict:
		code = http.StatusConflict
		errCode = "conflict"
	case apperrors.ErrCodeBroker:
		code = http.StatusServiceUnavailable
		errCode = "broker_unavailable"
	case apperrors.ErrCodeTimeout:
		code = http.StatusGatewayTimeout
		errCode = "timeout"
	}

	WriteError(w, code, errCode, err)
}
