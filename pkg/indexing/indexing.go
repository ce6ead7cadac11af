package indexing

import (
	"slices"

	"github.com/google/uuid"

	"github.com/adfharrison1/struvedb/pkg/domain"
)

// PrimaryIndex maps primary keys to documents and keeps insertion order.
// The position of a key is its slot number for file based backends.
type PrimaryIndex[T domain.Document[T]] struct {
	keys      []uuid.UUID
	docs      map[uuid.UUID]T
	positions map[uuid.UUID]int
}

// NewPrimaryIndex creates an empty index
func NewPrimaryIndex[T domain.Document[T]]() *PrimaryIndex[T] {
	return &PrimaryIndex[T]{
		docs:      make(map[uuid.UUID]T),
		positions: make(map[uuid.UUID]int),
	}
}

func (idx *PrimaryIndex[T]) Len() int {
	return len(idx.keys)
}

func (idx *PrimaryIndex[T]) Has(key uuid.UUID) bool {
	_, ok := idx.positions[key]
	return ok
}

// Get returns the document stored under key
func (idx *PrimaryIndex[T]) Get(key uuid.UUID) (T, bool) {
	doc, ok := idx.docs[key]
	return doc, ok
}

// IndexOf returns the position of key in insertion order
func (idx *PrimaryIndex[T]) IndexOf(key uuid.UUID) (int, bool) {
	pos, ok := idx.positions[key]
	return pos, ok
}

// Put appends doc, or replaces the stored value in place when its key is
// already present.
func (idx *PrimaryIndex[T]) Put(doc T) {
	key := doc.PrimaryKey()
	if _, ok := idx.positions[key]; !ok {
		idx.positions[key] = len(idx.keys)
		idx.keys = append(idx.keys, key)
	}
	idx.docs[key] = doc
}

// Remove deletes key and shifts every later document one position down.
func (idx *PrimaryIndex[T]) Remove(key uuid.UUID) bool {
	pos, ok := idx.positions[key]
	if !ok {
		return false
	}
	idx.keys = slices.Delete(idx.keys, pos, pos+1)
	delete(idx.positions, key)
	delete(idx.docs, key)
	for i := pos; i < len(idx.keys); i++ {
		idx.positions[idx.keys[i]] = i
	}
	return true
}

// Range calls fn for each document in order until fn returns false
func (idx *PrimaryIndex[T]) Range(fn func(pos int, doc T) bool) {
	for i, key := range idx.keys {
		if !fn(i, idx.docs[key]) {
			return
		}
	}
}

// Values returns the documents in order
func (idx *PrimaryIndex[T]) Values() []T {
	values := make([]T, 0, len(idx.keys))
	for _, key := range idx.keys {
		values = append(values, idx.docs[key])
	}
	return values
}

// Without returns a view of the index as it would look after removing key.
// The view shares storage with the index and is only valid until the next
// mutation.
func (idx *PrimaryIndex[T]) Without(key uuid.UUID) domain.Sequence[T] {
	pos, ok := idx.positions[key]
	if !ok {
		pos = -1
	}
	return &withoutView[T]{idx: idx, skip: pos}
}

type withoutView[T domain.Document[T]] struct {
	idx  *PrimaryIndex[T]
	skip int
}

func (v *withoutView[T]) Len() int {
	if v.skip < 0 {
		return v.idx.Len()
	}
	return v.idx.Len() - 1
}

func (v *withoutView[T]) Range(fn func(pos int, doc T) bool) {
	shift := 0
	v.idx.Range(func(pos int, doc T) bool {
		if pos == v.skip {
			shift = 1
			return true
		}
		return fn(pos-shift, doc)
	})
}
