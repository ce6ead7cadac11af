package storage

import (
	"github.com/google/uuid"

	"github.com/adfharrison1/struvedb/pkg/domain"
)

// MemoryBackend keeps nothing outside the collection index
type MemoryBackend[T domain.Document[T]] struct{}

func NewMemoryBackend[T domain.Document[T]]() *MemoryBackend[T] {
	return &MemoryBackend[T]{}
}

func (MemoryBackend[T]) Load() ([]T, error) { return nil, nil }

func (MemoryBackend[T]) Insert(T, domain.Sequence[T]) error { return nil }

func (MemoryBackend[T]) Update(T, int, domain.Sequence[T]) error { return nil }

func (MemoryBackend[T]) Delete(uuid.UUID, domain.Sequence[T]) error { return nil }

func (MemoryBackend[T]) Close() error { return nil }
