package store

import "errors"

// Error Handling Guidelines:
// - Services/Stores: Use fmt.Errorf("context: %w", err) for wrapping errors
// - Handlers: Use apperrors.* functions for HTTP-appropriate errors

// Predefined errors for the store layer.
var (
	// ErrNotFound indicates that a requested resource was not found.
	ErrNotFound = errors.New("resource not found")

	// ErrConflict indicates a conflict, e.g., trying to create a resource
	// that already exists or a compare-and-swap whose expected version no
	// longer matches stored state.
	ErrConflict = errors.New("conflict")

	// ErrDependency indicates a delete blocked because other items still
	// list the target in their dependencies.
	ErrDependency = errors.New("dependency violation")
)
