package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	err := New(ValidationError, "invalid input", "field required")
	assert.Equal(t, ValidationError, err.Type)
	assert.Equal(t, "invalid input", err.Message)
	assert.Equal(t, "field required", err.Detail)
	assert.Equal(t, 400, err.HTTPStatus)
}

func TestWrap(t *testing.T) {
	originalErr := fmt.Errorf("original error")
	wrappedErr := Wrap(originalErr, DatabaseError, "database operation failed")

	assert.Equal(t, DatabaseError, wrappedErr.Type)
	assert.Equal(t, "database operation failed", wrappedErr.Message)
	assert.Equal(t, originalErr.Error(), wrappedErr.Detail)
	assert.Equal(t, 500, wrappedErr.HTTPStatus)
	assert.Equal(t, originalErr, wrappedErr.Raw)
}

func TestNotFound(t *testing.T) {
	err := NotFound("Device", "dev-123")
	assert.Equal(t, NotFoundError, err.Type)
	assert.Equal(t, "Device not found", err.Message)
	assert.Equal(t, "ID: dev-123", err.Detail)
	assert.Equal(t, 404, err.HTTPStatus)
}

func TestVersionConflict(t *testing.T) {
	err := VersionConflict("item-1", 1, 2)
	assert.Equal(t, ConflictError, err.Type)
	assert.Equal(t, "2", err.Code)
	assert.Equal(t, 409, err.HTTPStatus)
	assert.Contains(t, err.Detail, "client has version 1")
	assert.Contains(t, err.Detail, "server has version 2")
}

func TestDependencyBlocked(t *testing.T) {
	err := DependencyBlocked("item-1", []string{"item-2", "item-3"})
	assert.Equal(t, DependencyError, err.Type)
	assert.Equal(t, 409, err.HTTPStatus)
	assert.Contains(t, err.Detail, "item-1")
}

func TestTransportFailed(t *testing.T) {
	raw := fmt.Errorf("connection refused")
	err := TransportFailed(raw, "provider unreachable")
	assert.Equal(t, TransportError, err.Type)
	assert.Equal(t, 502, err.HTTPStatus)
	assert.Equal(t, raw, err.Raw)
}

func TestSchedulerInconsistency(t *testing.T) {
	raw := fmt.Errorf("row vanished")
	err := SchedulerInconsistency("notif-1", raw)
	assert.Equal(t, SchedulerError, err.Type)
	assert.Contains(t, err.Detail, "notif-1")
	assert.Equal(t, raw, err.Raw)
}

func TestIsType(t *testing.T) {
	err := NotFound("Device", "x")
	assert.True(t, IsType(err, NotFoundError))
	assert.False(t, IsType(err, ConflictError))
	assert.False(t, IsType(fmt.Errorf("plain"), NotFoundError))
}

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		expected string
	}{
		{
			name: "with detail",
			err: &AppError{
				Type:    ValidationError,
				Message: "invalid input",
				Detail:  "field required",
			},
			expected: "VALIDATION_ERROR: invalid input (field required)",
		},
		{
			name: "without detail",
			err: &AppError{
				Type:    TransportError,
				Message: "provider down",
			},
			expected: "TRANSPORT_ERROR: provider down",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}
