package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrNotFound is matched by every NotFoundError
var ErrNotFound = errors.New("not found")

// ValidationError reports malformed input
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) ValidationError {
	return ValidationError{Field: field, Message: message}
}

// IsValidationError checks if an error is a validation error (including wrapped errors)
func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

// DuplicateEntryError is returned when a new entry shares a field value with an
// existing entry of the same locality
type DuplicateEntryError struct {
	Value    string
	Existing Field
}

func (e DuplicateEntryError) Error() string {
	return fmt.Sprintf("seen entry matching the value '%s' is already added", e.Value)
}

// IsDuplicateEntry checks if err is a DuplicateEntryError
func IsDuplicateEntry(err error) bool {
	var de DuplicateEntryError
	return errors.As(err, &de)
}

// NotFoundError reports a missing entry
type NotFoundError struct {
	ID int64
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("seen entry %d not found", e.ID)
}

func (e NotFoundError) Unwrap() error { return ErrNotFound }

// IsNotFound checks if err is or wraps ErrNotFound
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// PageOutOfRangeError is returned when the requested page is past the last page
type PageOutOfRangeError struct {
	Page       int
	TotalPages int
}

func (e PageOutOfRangeError) Error() string {
	return fmt.Sprintf("page %d does not exist", e.Page)
}

// IsPageOutOfRange checks if err is a PageOutOfRangeError
func IsPageOutOfRange(err error) bool {
	var pe PageOutOfRangeError
	return errors.As(err, &pe)
}

// DeleteFailedError reports a bulk delete that could not remove every match.
// Entries removed before and after the failures stay removed.
type DeleteFailedError struct {
	IDs     []int64
	Deleted int
	Cause   error
}

func (e *DeleteFailedError) Error() string {
	ids := make([]string, len(e.IDs))
	for i, id := range e.IDs {
		ids[i] = strconv.FormatInt(id, 10)
	}
	return fmt.Sprintf("could not delete entry ID %s", strings.Join(ids, ", "))
}

func (e *DeleteFailedError) Unwrap() error { return e.Cause }

// IsDeleteFailed checks if err is a DeleteFailedError
func IsDeleteFailed(err error) bool {
	var de *DeleteFailedError
	return errors.As(err, &de)
}
