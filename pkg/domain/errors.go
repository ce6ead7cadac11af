package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrDuplicateKey        = errors.New("duplicate primary key")
	ErrConstraintViolation = errors.New("constraint violation")
	ErrKeyNotFound         = errors.New("key not found")
	ErrSerialization       = errors.New("serialization failure")
	ErrRecordTooLarge      = errors.New("record too large for slot")
	ErrIO                  = errors.New("storage i/o failure")
	ErrClosed              = errors.New("collection is closed")
	ErrInvalidConfig       = errors.New("invalid configuration")
)

// ConflictError is returned when a document intersects one already stored
type ConflictError struct {
	Key      uuid.UUID // document being written
	Existing uuid.UUID // stored document it clashes with
	Reason   error     // as returned by Intersects
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: document %s conflicts with %s: %v", ErrConstraintViolation, e.Key, e.Existing, e.Reason)
}

// Unwrap exposes both ErrConstraintViolation and the document's own reason
func (e *ConflictError) Unwrap() []error {
	return []error{ErrConstraintViolation, e.Reason}
}
