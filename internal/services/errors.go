// internal/services/errors.go
package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// ValidationError rejects caller input before anything is written.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func newValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// NotFoundError reports an unknown food, report or threshold pair.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// ConflictError reports a lost race on a serialized write. Callers may retry.
type ConflictError struct {
	Resource string
	ID       string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %s was modified concurrently, retry the request", e.Resource, e.ID)
}

// StorageError wraps persistence failures. Nothing from the enclosing
// operation has been committed when it is returned.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// storageErr passes typed errors through and wraps everything else.
func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var (
		ve *ValidationError
		nf *NotFoundError
		ce *ConflictError
		se *StorageError
	)
	if errors.As(err, &ve) || errors.As(err, &nf) || errors.As(err, &ce) || errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
