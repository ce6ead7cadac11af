package collection

import (
	"fmt"
	"io"
	"time"

	"github.com/adfharrison1/struvedb/pkg/storage"
)

// Snapshot writes every document, in index order, to w using the
// compressed snapshot format.
func (c *Collection[T]) Snapshot(w io.Writer) error {
	data := &storage.SnapshotData{
		Backend:   c.kind.String(),
		CreatedAt: time.Now().UTC(),
		Documents: make([][]byte, 0, c.index.Len()),
	}
	var err error
	c.index.Range(func(_ int, doc T) bool {
		var payload []byte
		payload, err = storage.Encode(doc)
		if err != nil {
			return false
		}
		data.Documents = append(data.Documents, payload)
		return true
	})
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	return storage.WriteSnapshot(w, data)
}

// Restore inserts every document of a snapshot read from r. Documents go
// through Insert, so uniqueness rules apply; Restore stops at the first
// failure and reports how many documents were inserted.
func (c *Collection[T]) Restore(r io.Reader) (int, error) {
	data, err := storage.ReadSnapshot(r)
	if err != nil {
		return 0, err
	}
	for i, payload := range data.Documents {
		doc, err := storage.Decode[T](payload)
		if err != nil {
			return i, fmt.Errorf("restore document %d: %w", i, err)
		}
		if err := c.Insert(doc); err != nil {
			return i, fmt.Errorf("restore document %d: %w", i, err)
		}
	}
	return len(data.Documents), nil
}
