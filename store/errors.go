package store

import "errors"

// Repository errors mapped to HTTP statuses at the API boundary.
var (
	// ErrNotFound indicates the referenced row does not exist for the caller.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput indicates a missing or malformed field.
	ErrInvalidInput = errors.New("invalid input")
	// ErrConflict indicates the operation does not fit the current state.
	ErrConflict = errors.New("conflict")
)
