package domain

import "github.com/google/uuid"

// Document is the contract every record stored in a collection satisfies.
// T is the concrete record type, so a User compares itself against other Users.
type Document[T any] interface {
	// PrimaryKey returns the document identifier. It must not change
	// during the lifetime of the document.
	PrimaryKey() uuid.UUID
	// Intersects reports whether the document violates an application
	// uniqueness rule when stored next to other (e.g. a duplicated email).
	// A nil error means no conflict.
	Intersects(other T) error
}

// Sequence is a read-only ordered view over documents.
// Positions are 0-based and contiguous.
type Sequence[T any] interface {
	Len() int
	Range(fn func(pos int, doc T) bool)
}
