package domain

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Backend defines the persistence operations a collection dispatches to.
// Every mutating method receives the ordering the collection will hold once
// the call succeeds, so the in-memory index is only touched after a
// successful write.
type Backend[T Document[T]] interface {
	// Load returns the persisted documents in storage order.
	Load() ([]T, error)
	// Insert persists a new document appended after current.
	Insert(doc T, current Sequence[T]) error
	// Update persists doc, which sits at position pos of current.
	Update(doc T, pos int, current Sequence[T]) error
	// Delete removes key from storage; remaining is the ordering without it.
	Delete(key uuid.UUID, remaining Sequence[T]) error
	Close() error
}

// BackendKind selects one of the storage strategies
type BackendKind int

const (
	BackendInMemory BackendKind = iota
	BackendDir
	BackendSingleFile
	BackendBadger
)

func (k BackendKind) String() string {
	switch k {
	case BackendInMemory:
		return "memory"
	case BackendDir:
		return "dir"
	case BackendSingleFile:
		return "file"
	case BackendBadger:
		return "badger"
	default:
		return fmt.Sprintf("backend(%d)", int(k))
	}
}

// Persistent reports whether the backend needs a filesystem path
func (k BackendKind) Persistent() bool {
	return k != BackendInMemory
}

// ParseBackendKind parses the names returned by BackendKind.String
func ParseBackendKind(name string) (BackendKind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "memory", "inmemory", "in-memory":
		return BackendInMemory, nil
	case "dir", "directory":
		return BackendDir, nil
	case "file", "singlefile", "single-file":
		return BackendSingleFile, nil
	case "badger":
		return BackendBadger, nil
	}
	return 0, fmt.Errorf("%w: unknown backend %q", ErrInvalidConfig, name)
}
