package apperror

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stocktrail/stocktrail/internal/domain"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedCode   string
		expectedStatus int
	}{
		{"validation", domain.NewValidationError("bad field"), "VALIDATION", http.StatusUnprocessableEntity},
		{"not found", domain.NewNotFoundError("missing"), "NOT_FOUND", http.StatusNotFound},
		{"duplicate key", domain.NewDuplicateKeyError("dup"), "DUPLICATE_KEY", http.StatusConflict},
		{"terminal state", domain.NewTerminalStateError("closed"), "TERMINAL_STATE", http.StatusConflict},
		{"conflict", domain.NewConflictError("locked"), "CONFLICT", http.StatusConflict},
		{"storage", domain.NewStorageError(errors.New("boom"), "db down"), "STORAGE", http.StatusInternalServerError},
		{"unclassified", errors.New("mystery"), "STORAGE", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appErr := MapError(tt.err)
			assert.Equal(t, tt.expectedCode, appErr.Code)
			assert.Equal(t, tt.expectedStatus, appErr.Status)
		})
	}
}

func TestMapErrorHidesStorageDetails(t *testing.T) {
	appErr := MapError(domain.NewStorageError(errors.New("pq: connection refused"), "failed to commit: pq: connection refused"))
	assert.Equal(t, "storage unavailable", appErr.Message)
}
