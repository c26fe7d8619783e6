package domain

import (
	"errors"
	"fmt"
)

// Failure kinds surfaced by the repositories. Callers match them with errors.Is.
var (
	// ErrUnauthenticated is returned when no principal can be resolved.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrAlreadyExists is returned when a create collides on a unique key.
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotFoundOrForbidden covers both a missing record and a record owned
	// by someone else. The two cases are never distinguished.
	ErrNotFoundOrForbidden = errors.New("not found")
	// ErrStoreUnavailable is returned when the document store cannot be reached.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrInvalidInput is returned when an input or patch fails validation.
	ErrInvalidInput = errors.New("invalid input")
)

// NotFoundError reports a record that is absent or not visible to the caller.
type NotFoundError struct {
	Entity EntityType
	ID     string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// Is matches ErrNotFoundOrForbidden.
func (e NotFoundError) Is(target error) bool {
	return target == ErrNotFoundOrForbidden
}

// ConflictError reports a unique-key collision.
type ConflictError struct {
	Entity EntityType
	Key    string
	Value  string
}

func (e ConflictError) Error() string {
	return fmt.Sprintf("%s with %s %q already exists", e.Entity, e.Key, e.Value)
}

// Is matches ErrAlreadyExists.
func (e ConflictError) Is(target error) bool {
	return target == ErrAlreadyExists
}

// ValidationError reports a rejected input field.
type ValidationError struct {
	Entity  EntityType
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Entity, e.Field, e.Message)
}

// Is matches ErrInvalidInput.
func (e ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// StoreError wraps a document store failure with the operation context.
type StoreError struct {
	Op          string
	Entity      EntityType
	ID          string
	Unavailable bool
	Err         error
}

func (e *StoreError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Entity, e.Err)
	}
	return fmt.Sprintf("%s %s %s: %v", e.Op, e.Entity, e.ID, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Is matches ErrStoreUnavailable when the underlying failure was a connectivity problem.
func (e *StoreError) Is(target error) bool {
	return target == ErrStoreUnavailable && e.Unavailable
}
