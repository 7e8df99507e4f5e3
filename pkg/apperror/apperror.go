package apperror

import (
	"net/http"

	"github.com/stocktrail/stocktrail/internal/domain"
)

// AppError is the HTTP-facing shape of a domain error.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

func (e *AppError) Error() string {
	return e.Message
}

// MapError translates a domain error into its stable HTTP representation.
// Every error kind maps to a machine-readable code plus a human message;
// there are no silent failure paths.
func MapError(err error) *AppError {
	kind := domain.KindOf(err)

	status := http.StatusInternalServerError
	switch kind {
	case domain.ErrorKindValidation:
		status = http.StatusUnprocessableEntity
	case domain.ErrorKindNotFound:
		status = http.StatusNotFound
	case domain.ErrorKindDuplicateKey, domain.ErrorKindTerminalState, domain.ErrorKindConflict:
		status = http.StatusConflict
	case domain.ErrorKindStorage:
		status = http.StatusInternalServerError
	}

	message := err.Error()
	if kind == domain.ErrorKindStorage {
		// Do not leak driver internals to callers.
		message = "storage unavailable"
	}

	return &AppError{
		Code:    string(kind),
		Message: message,
		Status:  status,
	}
}
