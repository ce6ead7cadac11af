package collection

import (
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/adfharrison1/struvedb/pkg/domain"
	"github.com/adfharrison1/struvedb/pkg/indexing"
	"github.com/adfharrison1/struvedb/pkg/storage"
)

// Collection holds documents of type T keyed by primary key and mirrors
// every mutation to its backend before applying it in memory.
//
// A Collection does no locking of its own: mutations must be serialized by
// the caller. Store wraps a Collection for concurrent use.
type Collection[T domain.Document[T]] struct {
	kind    domain.BackendKind
	index   *indexing.PrimaryIndex[T]
	backend domain.Backend[T]
	closed  bool
}

// New opens the backend described by opts and loads its documents.
// Failing to open or read the backing store is logged and leaves an empty
// collection whose writes fail with domain.ErrIO.
func New[T domain.Document[T]](opts ...Option) (*Collection[T], error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	backend, err := openBackend[T](cfg)
	if err != nil {
		log.Printf("ERROR: Failed to open %s backend at %q: %v", cfg.Backend, cfg.Path, err)
		backend = unavailableBackend[T]{cause: err}
	}

	c := NewWithBackend(backend)
	c.kind = cfg.Backend
	return c, nil
}

func openBackend[T domain.Document[T]](cfg Config) (domain.Backend[T], error) {
	switch cfg.Backend {
	case domain.BackendInMemory:
		return storage.NewMemoryBackend[T](), nil
	case domain.BackendDir:
		return storage.OpenDirBackend[T](cfg.Path, cfg.LoadWorkers)
	case domain.BackendSingleFile:
		return storage.OpenFileBackend[T](cfg.Path, cfg.ByteLengthIncrement, cfg.InitialSlotSize)
	case domain.BackendBadger:
		return storage.OpenBadgerBackend[T](cfg.Path)
	}
	return nil, fmt.Errorf("%w: unknown backend %s", domain.ErrInvalidConfig, cfg.Backend)
}

// NewWithBackend builds a collection over an already opened backend.
// When the backend cannot be loaded it is closed and the collection is
// left empty, with writes failing with domain.ErrIO.
func NewWithBackend[T domain.Document[T]](backend domain.Backend[T]) *Collection[T] {
	c := &Collection[T]{
		kind:    kindOf(backend),
		index:   indexing.NewPrimaryIndex[T](),
		backend: backend,
	}

	docs, err := backend.Load()
	if err != nil {
		log.Printf("ERROR: Failed to load documents: %v", err)
		if cerr := backend.Close(); cerr != nil {
			log.Printf("WARN: Failed to close %s backend: %v", c.kind, cerr)
		}
		c.backend = unavailableBackend[T]{cause: err}
		return c
	}
	for _, doc := range docs {
		if c.index.Has(doc.PrimaryKey()) {
			log.Printf("WARN: skipping duplicated document %s", doc.PrimaryKey())
			continue
		}
		c.index.Put(doc)
	}
	if len(docs) > 0 {
		log.Printf("INFO: Loaded %d documents from %s backend", c.index.Len(), c.kind)
	}
	return c
}

func kindOf[T domain.Document[T]](backend domain.Backend[T]) domain.BackendKind {
	switch backend.(type) {
	case *storage.DirBackend[T]:
		return domain.BackendDir
	case *storage.FileBackend[T]:
		return domain.BackendSingleFile
	case *storage.BadgerBackend[T]:
		return domain.BackendBadger
	}
	return domain.BackendInMemory
}

// Kind returns the storage strategy in use
func (c *Collection[T]) Kind() domain.BackendKind {
	return c.kind
}

// Insert adds a new document. It fails with ErrDuplicateKey when the key is
// taken and with a *domain.ConflictError when the document intersects a
// stored one; in both cases nothing is written.
func (c *Collection[T]) Insert(doc T) error {
	if c.closed {
		return domain.ErrClosed
	}
	key := doc.PrimaryKey()
	if c.index.Has(key) {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateKey, key)
	}
	if err := c.checkConflicts(doc); err != nil {
		return err
	}
	if err := c.backend.Insert(doc, c.index); err != nil {
		return err
	}
	c.index.Put(doc)
	return nil
}

// Update replaces the stored document with the same key. The document keeps
// its position.
func (c *Collection[T]) Update(doc T) error {
	if c.closed {
		return domain.ErrClosed
	}
	key := doc.PrimaryKey()
	pos, ok := c.index.IndexOf(key)
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrKeyNotFound, key)
	}
	if err := c.checkConflicts(doc); err != nil {
		return err
	}
	if err := c.backend.Update(doc, pos, c.index); err != nil {
		return err
	}
	c.index.Put(doc)
	return nil
}

// Delete removes the document with the given key. Later documents move one
// position down.
func (c *Collection[T]) Delete(key uuid.UUID) error {
	if c.closed {
		return domain.ErrClosed
	}
	if !c.index.Has(key) {
		return fmt.Errorf("%w: %s", domain.ErrKeyNotFound, key)
	}
	if err := c.backend.Delete(key, c.index.Without(key)); err != nil {
		return err
	}
	c.index.Remove(key)
	return nil
}

// checkConflicts runs doc.Intersects against every stored document with a
// different key and returns the first conflict.
func (c *Collection[T]) checkConflicts(doc T) error {
	key := doc.PrimaryKey()
	var conflict error
	c.index.Range(func(_ int, existing T) bool {
		other := existing.PrimaryKey()
		if other == key {
			return true
		}
		if reason := doc.Intersects(existing); reason != nil {
			conflict = &domain.ConflictError{Key: key, Existing: other, Reason: reason}
			return false
		}
		return true
	})
	return conflict
}

// Find returns the first document, in index order, matching predicate
func (c *Collection[T]) Find(predicate func(T) bool) (T, bool) {
	var (
		found T
		ok    bool
	)
	c.index.Range(func(_ int, doc T) bool {
		if predicate(doc) {
			found, ok = doc, true
			return false
		}
		return true
	})
	return found, ok
}

// Filter returns every document matching predicate, in index order
func (c *Collection[T]) Filter(predicate func(T) bool) []T {
	var matches []T
	c.index.Range(func(_ int, doc T) bool {
		if predicate(doc) {
			matches = append(matches, doc)
		}
		return true
	})
	return matches
}

func (c *Collection[T]) ByPrimaryKey(key uuid.UUID) (T, bool) {
	return c.index.Get(key)
}

func (c *Collection[T]) Len() int {
	return c.index.Len()
}

// All returns every document in index order
func (c *Collection[T]) All() []T {
	return c.index.Values()
}

// Close releases the backend. Reads keep working on the in-memory index.
func (c *Collection[T]) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.backend.Close()
}

// unavailableBackend stands in for a backend that failed to open
type unavailableBackend[T domain.Document[T]] struct {
	cause error
}

func (b unavailableBackend[T]) Load() ([]T, error) { return nil, nil }

func (b unavailableBackend[T]) Insert(T, domain.Sequence[T]) error { return b.err() }

func (b unavailableBackend[T]) Update(T, int, domain.Sequence[T]) error { return b.err() }

func (b unavailableBackend[T]) Delete(uuid.UUID, domain.Sequence[T]) error { return b.err() }

func (b unavailableBackend[T]) Close() error { return nil }

func (b unavailableBackend[T]) err() error {
	return fmt.Errorf("%w: backend unavailable: %w", domain.ErrIO, b.cause)
}
