package errors

import (
	"fmt"
	"net/http"

	"github.com/marketloop/mobile-backend/logger"
)

type ErrorType string

const (
	ValidationError ErrorType = "VALIDATION_ERROR"
	NotFoundError   ErrorType = "NOT_FOUND"
	ConflictError   ErrorType = "CONFLICT"
	DependencyError ErrorType = "DEPENDENCY_ERROR"
	TransportError  ErrorType = "TRANSPORT_ERROR"
	SchedulerError  ErrorType = "SCHEDULER_ERROR"
	DatabaseError   ErrorType = "DATABASE_ERROR"
	ServerError     ErrorType = "SERVER_ERROR"
)

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType `json:"type"`
	Code       string    `json:"code"`
	Message    string    `json:"message"`
	Detail     string    `json:"detail,omitempty"`
	HTTPStatus int       `json:"-"`
	Raw        error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap exposes the wrapped raw error for errors.Is/As chains.
func (e *AppError) Unwrap() error {
	return e.Raw
}

// GetHTTPStatus returns the HTTP status code associated with the error.
func (e *AppError) GetHTTPStatus() int {
	if e.HTTPStatus == 0 {
		return getHTTPStatus(e.Type)
	}
	return e.HTTPStatus
}

// New creates a new AppError
func New(errType ErrorType, message string, detail string) *AppError {
	return &AppError{
		Type:       errType,
		Message:    message,
		Detail:     detail,
		HTTPStatus: getHTTPStatus(errType),
	}
}

// Wrap wraps a raw error with AppError context
func Wrap(err error, errType ErrorType, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{
		Type:       errType,
		Message:    message,
		Detail:     err.Error(),
		HTTPStatus: getHTTPStatus(errType),
		Raw:        err,
	}
}

// IsType reports whether err is an *AppError of the given type.
func IsType(err error, errType ErrorType) bool {
	appErr, ok := err.(*AppError)
	return ok && appErr.Type == errType
}

// Helper constructors for common errors

func NotFound(entity string, id interface{}) *AppError {
	return &AppError{
		Type:       NotFoundError,
		Message:    fmt.Sprintf("%s not found", entity),
		Detail:     fmt.Sprintf("ID: %v", id),
		HTTPStatus: http.StatusNotFound,
	}
}

func ValidationFailed(message string, details string) *AppError {
	return &AppError{
		Type:       ValidationError,
		Message:    message,
		Detail:     details,
		HTTPStatus: http.StatusBadRequest,
	}
}

// VersionConflict builds the conflict error for an optimistic-versioning
// mismatch. The current server version travels in Code so callers can
// refetch without parsing the detail string.
func VersionConflict(itemID string, clientVersion, serverVersion int) *AppError {
	return &AppError{
		Type:       ConflictError,
		Code:       fmt.Sprintf("%d", serverVersion),
		Message:    "Version conflict",
		Detail:     fmt.Sprintf("Item %s: client has version %d, server has version %d", itemID, clientVersion, serverVersion),
		HTTPStatus: http.StatusConflict,
	}
}

// DependencyBlocked signals a delete rejected because other items still
// depend on the target.
func DependencyBlocked(itemID string, dependents []string) *AppError {
	return &AppError{
		Type:       DependencyError,
		Message:    "Delete blocked by dependent items",
		Detail:     fmt.Sprintf("Item %s is a dependency of %v", itemID, dependents),
		HTTPStatus: http.StatusConflict,
	}
}

// TransportFailed wraps a push transport provider failure.
func TransportFailed(err error, detail string) *AppError {
	return &AppError{
		Type:       TransportError,
		Message:    "Push transport failure",
		Detail:     detail,
		HTTPStatus: http.StatusBadGateway,
		Raw:        err,
	}
}

// SchedulerInconsistency signals a persistence or restart inconsistency in
// the notification scheduler. Never silently dropped by callers.
func SchedulerInconsistency(notificationID string, err error) *AppError {
	return &AppError{
		Type:       SchedulerError,
		Message:    "Scheduler inconsistency",
		Detail:     fmt.Sprintf("Notification %s: %v", notificationID, err),
		HTTPStatus: http.StatusInternalServerError,
		Raw:        err,
	}
}

func NewDatabaseError(err error) *AppError {
	// Log original error but return sanitized message
	logger.GetLogger().Errorw("Database error", "error", err)
	return &AppError{
		Type:       DatabaseError,
		Message:    "Database operation failed",
		Detail:     "Please try again later",
		HTTPStatus: http.StatusInternalServerError,
		Raw:        err,
	}
}

func InternalServerError(message string) *AppError {
	return &AppError{
		Type:       ServerError,
		Message:    message,
		HTTPStatus: http.StatusInternalServerError,
	}
}

func getHTTPStatus(errType ErrorType) int {
	switch errType {
	case ValidationError:
		return http.StatusBadRequest
	case NotFoundError:
		return http.StatusNotFound
	case ConflictError, DependencyError:
		return http.StatusConflict
	case TransportError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
