package storage

import (
	"bytes"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/adfharrison1/struvedb/pkg/domain"
)

const (
	DefaultByteLengthIncrement = 64
	DefaultInitialSlotSize     = 128
)

// FileBackend stores every document of a collection in one file made of
// fixed width slots. A slot is SlotSize bytes of JSON padded with spaces,
// followed by a newline, so slot i starts at i*(SlotSize+1).
type FileBackend[T domain.Document[T]] struct {
	store           SlotStore
	slotSize        int
	increment       int
	initialSlotSize int
}

// OpenFileBackend opens the slot file at path
func OpenFileBackend[T domain.Document[T]](path string, increment, initialSlotSize int) (*FileBackend[T], error) {
	store, err := OpenSlotFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrIO, err)
	}
	return NewFileBackend[T](store, increment, initialSlotSize), nil
}

// NewFileBackend builds a backend on top of an already open store.
// Non-positive sizes fall back to the defaults.
func NewFileBackend[T domain.Document[T]](store SlotStore, increment, initialSlotSize int) *FileBackend[T] {
	if increment <= 0 {
		increment = DefaultByteLengthIncrement
	}
	if initialSlotSize <= 0 {
		initialSlotSize = DefaultInitialSlotSize
	}
	return &FileBackend[T]{
		store:           store,
		slotSize:        initialSlotSize,
		increment:       increment,
		initialSlotSize: initialSlotSize,
	}
}

// SlotSize returns the current slot width, newline excluded
func (b *FileBackend[T]) SlotSize() int {
	return b.slotSize
}

// Load scans the file line by line. The first blank, unparsable or
// duplicated line marks the end of data; anything after it is cut off so
// that the next write cannot expose stale slots.
func (b *FileBackend[T]) Load() ([]T, error) {
	data, err := b.store.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: read slot file: %w", domain.ErrIO, err)
	}

	var (
		docs     []T
		seen     = make(map[uuid.UUID]struct{})
		width    = -1
		uniform  = true
		largest  = 0
		consumed = 0
		rest     = data
	)
	for len(rest) > 0 {
		line, next, terminated := rest, len(rest), false
		if i := bytes.IndexByte(rest, '\n'); i >= 0 {
			line, next, terminated = rest[:i], i+1, true
		}

		trimmed := bytes.TrimSpace(line)
		if len(trimmed) == 0 {
			break
		}
		doc, err := Decode[T](trimmed)
		if err != nil {
			break
		}
		key := doc.PrimaryKey()
		if _, dup := seen[key]; dup {
			log.Printf("WARN: duplicate key %s in slot %d, stopping load", key, len(docs))
			break
		}
		seen[key] = struct{}{}

		if width < 0 {
			width = len(line)
		}
		if len(line) != width || !terminated {
			uniform = false
		}
		largest = max(largest, len(trimmed))
		docs = append(docs, doc)
		consumed += next
		rest = rest[next:]
	}

	if consumed < len(data) {
		log.Printf("WARN: discarding %d trailing bytes after %d documents", len(data)-consumed, len(docs))
	}

	if len(docs) == 0 || (uniform && width >= b.initialSlotSize) {
		if len(docs) > 0 {
			b.slotSize = width
		}
		if consumed < len(data) {
			if err := b.store.Truncate(int64(consumed)); err != nil {
				return nil, fmt.Errorf("%w: truncate trailing bytes: %w", domain.ErrIO, err)
			}
		}
		return docs, nil
	}

	b.slotSize = max(b.slotSize, b.grow(largest))
	log.Printf("INFO: normalising slot file to %d byte slots", b.slotSize)
	if err := b.rewrite(docSlice[T](docs)); err != nil {
		return nil, fmt.Errorf("normalise slot file: %w", err)
	}
	return docs, nil
}

// Insert writes doc into the slot right after the current documents
func (b *FileBackend[T]) Insert(doc T, current domain.Sequence[T]) error {
	payload, err := Encode(doc)
	if err != nil {
		return err
	}
	if err := b.ensureFits(len(payload), current); err != nil {
		return err
	}
	return b.writeSlot(current.Len(), payload)
}

// Update overwrites the slot at pos
func (b *FileBackend[T]) Update(doc T, pos int, current domain.Sequence[T]) error {
	payload, err := Encode(doc)
	if err != nil {
		return err
	}
	if err := b.ensureFits(len(payload), current); err != nil {
		return err
	}
	return b.writeSlot(pos, payload)
}

// Delete compacts the file by rewriting the remaining documents
func (b *FileBackend[T]) Delete(key uuid.UUID, remaining domain.Sequence[T]) error {
	return b.rewrite(remaining)
}

func (b *FileBackend[T]) Close() error {
	return b.store.Close()
}

// grow returns the smallest multiple of the increment that holds n bytes
func (b *FileBackend[T]) grow(n int) int {
	return b.increment * ((n + b.increment - 1) / b.increment)
}

// ensureFits widens the slots when a payload of n bytes does not fit.
// The slot size never shrinks.
func (b *FileBackend[T]) ensureFits(n int, current domain.Sequence[T]) error {
	if n <= b.slotSize {
		return nil
	}
	old := b.slotSize
	// not rolled back if the rewrite below fails part way
	b.slotSize = b.grow(n)
	log.Printf("INFO: resizing slots from %d to %d bytes", old, b.slotSize)
	if err := b.rewrite(current); err != nil {
		return fmt.Errorf("resize: %w", err)
	}
	return nil
}

// rewrite truncates the file and writes docs at the current slot size
func (b *FileBackend[T]) rewrite(docs domain.Sequence[T]) error {
	if err := b.store.Truncate(0); err != nil {
		return fmt.Errorf("%w: truncate: %w", domain.ErrIO, err)
	}
	var err error
	docs.Range(func(pos int, doc T) bool {
		var payload []byte
		payload, err = Encode(doc)
		if err != nil {
			return false
		}
		err = b.writeSlot(pos, payload)
		return err == nil
	})
	return err
}

func (b *FileBackend[T]) writeSlot(pos int, payload []byte) error {
	slot, err := b.pad(payload)
	if err != nil {
		return err
	}
	offset := int64(pos) * int64(b.slotSize+1)
	if err := b.store.WriteAt(slot, offset); err != nil {
		return fmt.Errorf("%w: write slot %d: %w", domain.ErrIO, pos, err)
	}
	return nil
}

func (b *FileBackend[T]) pad(payload []byte) ([]byte, error) {
	if len(payload) > b.slotSize {
		return nil, fmt.Errorf("%w: %d bytes, slot is %d", domain.ErrRecordTooLarge, len(payload), b.slotSize)
	}
	slot := make([]byte, b.slotSize+1)
	copy(slot, payload)
	for i := len(payload); i < b.slotSize; i++ {
		slot[i] = ' '
	}
	slot[b.slotSize] = '\n'
	return slot, nil
}
