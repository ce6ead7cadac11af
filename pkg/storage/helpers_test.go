package storage

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type testDoc struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Pad  string    `json:"pad,omitempty"`
}

func (d testDoc) PrimaryKey() uuid.UUID { return d.ID }

func (d testDoc) Intersects(other testDoc) error {
	if d.Name == other.Name {
		return errors.New("name already in use")
	}
	return nil
}

func newDoc(name string) testDoc {
	return testDoc{ID: uuid.New(), Name: name}
}

// sizedDoc returns a document whose JSON encoding is exactly size bytes
func sizedDoc(t *testing.T, name string, size int) testDoc {
	t.Helper()
	doc := newDoc(name)
	doc.Pad = "x"
	payload, err := Encode(doc)
	require.NoError(t, err)
	base := len(payload) - 1
	require.GreaterOrEqual(t, size, base+1, "size too small for document")

	doc.Pad = strings.Repeat("x", size-base)
	payload, err = Encode(doc)
	require.NoError(t, err)
	require.Len(t, payload, size)
	return doc
}

var errDisk = errors.New("disk on fire")

// memStore is an in-memory SlotStore with failure injection
type memStore struct {
	data         []byte
	failWrites   bool
	failTruncate bool
	writes       int
}

func (m *memStore) ReadAll() ([]byte, error) {
	return append([]byte(nil), m.data...), nil
}

func (m *memStore) WriteAt(p []byte, off int64) error {
	if m.failWrites {
		return errDisk
	}
	m.writes++
	end := int(off) + len(p)
	if end > len(m.data) {
		m.data = append(m.data, make([]byte, end-len(m.data))...)
	}
	copy(m.data[off:], p)
	return nil
}

func (m *memStore) Truncate(size int64) error {
	if m.failTruncate {
		return errDisk
	}
	if int(size) <= len(m.data) {
		m.data = m.data[:size]
		return nil
	}
	m.data = append(m.data, make([]byte, int(size)-len(m.data))...)
	return nil
}

func (m *memStore) Close() error {
	return nil
}
