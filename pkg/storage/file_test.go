package storage

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adfharrison1/struvedb/pkg/domain"
)

// insertAll mimics the collection: each document is appended after the
// ones already stored.
func insertAll(t *testing.T, b *FileBackend[testDoc], docs ...testDoc) []testDoc {
	t.Helper()
	var stored []testDoc
	for _, doc := range docs {
		require.NoError(t, b.Insert(doc, docSlice[testDoc](stored)))
		stored = append(stored, doc)
	}
	return stored
}

// slotAt returns the trimmed payload held by slot pos
func slotAt(t *testing.T, data []byte, slotSize, pos int) []byte {
	t.Helper()
	start := pos * (slotSize + 1)
	require.LessOrEqual(t, start+slotSize+1, len(data))
	slot := data[start : start+slotSize+1]
	require.Equal(t, byte('\n'), slot[slotSize], "slot %d must end with a newline", pos)
	return bytes.TrimRight(slot[:slotSize], " ")
}

func openTempFileBackend(t *testing.T) (*FileBackend[testDoc], string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "users.col")
	b, err := OpenFileBackend[testDoc](path, 64, 128)
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	return b, path
}

func TestFileBackend_Grow(t *testing.T) {
	b := NewFileBackend[testDoc](&memStore{}, 64, 128)

	tests := []struct {
		n    int
		want int
	}{
		{1, 64},
		{64, 64},
		{65, 128},
		{129, 192},
		{150, 192},
		{192, 192},
		{193, 256},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, b.grow(tt.n), "grow(%d)", tt.n)
	}
}

func TestFileBackend_Defaults(t *testing.T) {
	b := NewFileBackend[testDoc](&memStore{}, 0, -1)
	assert.Equal(t, DefaultInitialSlotSize, b.SlotSize())
	assert.Equal(t, DefaultByteLengthIncrement, b.increment)
}

func TestFileBackend_ResizeScenario(t *testing.T) {
	b, path := openTempFileBackend(t)

	docs := []testDoc{
		sizedDoc(t, "a", 70),
		sizedDoc(t, "b", 70),
		sizedDoc(t, "c", 70),
	}
	stored := insertAll(t, b, docs...)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 128, b.SlotSize())
	assert.Len(t, data, 3*129)

	big := sizedDoc(t, "d", 150)
	require.NoError(t, b.Insert(big, docSlice[testDoc](stored)))
	stored = append(stored, big)

	assert.Equal(t, 192, b.SlotSize())
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, data, 4*193)

	for pos, doc := range stored {
		want, err := Encode(doc)
		require.NoError(t, err)
		assert.Equal(t, string(want), string(slotAt(t, data, 192, pos)))
	}
}

func TestFileBackend_UpdateInPlace(t *testing.T) {
	b, path := openTempFileBackend(t)
	stored := insertAll(t, b, newDoc("alice"), newDoc("bob"), newDoc("carol"))

	bob := stored[1]
	bob.Name = "robert"
	require.NoError(t, b.Update(bob, 1, docSlice[testDoc](stored)))
	stored[1] = bob

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, data, 3*129)

	want, _ := Encode(bob)
	assert.Equal(t, string(want), string(slotAt(t, data, 128, 1)))
	first, _ := Encode(stored[0])
	assert.Equal(t, string(first), string(slotAt(t, data, 128, 0)))
}

func TestFileBackend_UpdateTriggersResize(t *testing.T) {
	b, path := openTempFileBackend(t)
	stored := insertAll(t, b, newDoc("alice"), newDoc("bob"))

	grown := sizedDoc(t, "bob", 200)
	grown.ID = stored[1].ID
	require.NoError(t, b.Update(grown, 1, docSlice[testDoc](stored)))
	stored[1] = grown

	assert.Equal(t, 256, b.SlotSize())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, data, 2*257)
	for pos, doc := range stored {
		want, _ := Encode(doc)
		assert.Equal(t, string(want), string(slotAt(t, data, 256, pos)))
	}
}

func TestFileBackend_DeleteCompacts(t *testing.T) {
	b, path := openTempFileBackend(t)
	stored := insertAll(t, b, newDoc("a"), newDoc("b"), newDoc("c"), newDoc("d"))

	remaining := []testDoc{stored[0], stored[2], stored[3]}
	require.NoError(t, b.Delete(stored[1].ID, docSlice[testDoc](remaining)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, data, 3*129)
	for pos, doc := range remaining {
		want, _ := Encode(doc)
		assert.Equal(t, string(want), string(slotAt(t, data, 128, pos)))
	}
}

func TestFileBackend_ReloadAdoptsGrownSlots(t *testing.T) {
	b, path := openTempFileBackend(t)
	stored := insertAll(t, b, newDoc("a"), sizedDoc(t, "b", 300))
	require.Equal(t, 320, b.SlotSize())
	require.NoError(t, b.Close())

	reopened, err := OpenFileBackend[testDoc](path, 64, 128)
	require.NoError(t, err)
	defer reopened.Close()

	docs, err := reopened.Load()
	require.NoError(t, err)
	assert.Equal(t, stored, docs)
	assert.Equal(t, 320, reopened.SlotSize())

	// appending after a reload lands right after the last slot
	c := newDoc("c")
	require.NoError(t, reopened.Insert(c, docSlice[testDoc](docs)))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, data, 3*321)
	want, _ := Encode(c)
	assert.Equal(t, string(want), string(slotAt(t, data, 320, 2)))
}

func TestFileBackend_LoadStopsAtBlankLine(t *testing.T) {
	store := &memStore{}
	writer := NewFileBackend[testDoc](store, 64, 128)
	stored := insertAll(t, writer, newDoc("a"), newDoc("b"))

	late, _ := Encode(newDoc("late"))
	store.data = append(store.data, []byte(strings.Repeat(" ", 128)+"\n")...)
	store.data = append(store.data, append(late, '\n')...)

	docs, err := NewFileBackend[testDoc](store, 64, 128).Load()
	require.NoError(t, err)
	assert.Equal(t, stored, docs)
}

func TestFileBackend_LoadStopsAtGarbage(t *testing.T) {
	store := &memStore{}
	writer := NewFileBackend[testDoc](store, 64, 128)
	stored := insertAll(t, writer, newDoc("a"))
	store.data = append(store.data, []byte("{not json\n")...)

	docs, err := NewFileBackend[testDoc](store, 64, 128).Load()
	require.NoError(t, err)
	assert.Equal(t, stored, docs)
}

func TestFileBackend_LoadDiscardsStaleSlotsAfterGarbage(t *testing.T) {
	store := &memStore{}
	writer := NewFileBackend[testDoc](store, 64, 128)
	a, c := newDoc("a"), newDoc("c")
	insertAll(t, writer, a, newDoc("b"), c)

	// slot 1 no longer parses; slot 2 still holds c
	garbage := []byte("{garbage" + strings.Repeat(" ", 128-len("{garbage")) + "\n")
	copy(store.data[129:], garbage)

	reader := NewFileBackend[testDoc](store, 64, 128)
	docs, err := reader.Load()
	require.NoError(t, err)
	assert.Equal(t, []testDoc{a}, docs)
	assert.Len(t, store.data, 129)

	d := newDoc("d")
	require.NoError(t, reader.Insert(d, docSlice[testDoc](docs)))

	docs, err = NewFileBackend[testDoc](store, 64, 128).Load()
	require.NoError(t, err)
	assert.Equal(t, []testDoc{a, d}, docs)
}

func TestFileBackend_LoadTruncatesUnreadableFile(t *testing.T) {
	store := &memStore{data: []byte("{garbage\n")}
	store.data = append(store.data, append(mustEncode(t, newDoc("c")), '\n')...)

	b := NewFileBackend[testDoc](store, 64, 128)
	docs, err := b.Load()
	require.NoError(t, err)
	assert.Empty(t, docs)
	assert.Empty(t, store.data)
}

func TestFileBackend_LoadTruncateFailure(t *testing.T) {
	store := &memStore{}
	insertAll(t, NewFileBackend[testDoc](store, 64, 128), newDoc("a"))
	store.data = append(store.data, []byte("{not json\n")...)
	store.failTruncate = true

	_, err := NewFileBackend[testDoc](store, 64, 128).Load()
	assert.ErrorIs(t, err, domain.ErrIO)
	assert.ErrorIs(t, err, errDisk)
}

func TestFileBackend_LoadStopsAtDuplicateKey(t *testing.T) {
	store := &memStore{}
	writer := NewFileBackend[testDoc](store, 64, 128)
	a := newDoc("a")
	insertAll(t, writer, a)
	require.NoError(t, writer.writeSlot(1, mustEncode(t, a)))

	docs, err := NewFileBackend[testDoc](store, 64, 128).Load()
	require.NoError(t, err)
	assert.Equal(t, []testDoc{a}, docs)
}

func TestFileBackend_LoadNormalisesNarrowSlots(t *testing.T) {
	store := &memStore{}
	writer := NewFileBackend[testDoc](store, 64, 64)
	stored := insertAll(t, writer, sizedDoc(t, "a", 70), sizedDoc(t, "b", 72))
	require.Equal(t, 128, writer.SlotSize())

	// the same file opened with a wider initial size is rewritten to it
	reader := NewFileBackend[testDoc](store, 64, 256)
	docs, err := reader.Load()
	require.NoError(t, err)
	assert.Equal(t, stored, docs)
	assert.Equal(t, 256, reader.SlotSize())
	assert.Len(t, store.data, 2*257)
}

func TestFileBackend_LoadEmpty(t *testing.T) {
	b := NewFileBackend[testDoc](&memStore{}, 64, 128)
	docs, err := b.Load()
	require.NoError(t, err)
	assert.Empty(t, docs)
	assert.Equal(t, 128, b.SlotSize())
}

func TestFileBackend_WriteFailure(t *testing.T) {
	store := &memStore{failWrites: true}
	b := NewFileBackend[testDoc](store, 64, 128)

	err := b.Insert(newDoc("a"), docSlice[testDoc](nil))
	assert.ErrorIs(t, err, domain.ErrIO)
	assert.ErrorIs(t, err, errDisk)
}

func TestFileBackend_TruncateFailure(t *testing.T) {
	store := &memStore{}
	b := NewFileBackend[testDoc](store, 64, 128)
	stored := insertAll(t, b, newDoc("a"), newDoc("b"))

	store.failTruncate = true
	err := b.Delete(stored[0].ID, docSlice[testDoc](stored[1:]))
	assert.ErrorIs(t, err, domain.ErrIO)
}

func TestFileBackend_RecordTooLarge(t *testing.T) {
	b := NewFileBackend[testDoc](&memStore{}, 64, 128)
	err := b.writeSlot(0, bytes.Repeat([]byte("x"), 129))
	assert.ErrorIs(t, err, domain.ErrRecordTooLarge)
}

func TestFileBackend_PadFillsSlot(t *testing.T) {
	b := NewFileBackend[testDoc](&memStore{}, 64, 128)
	slot, err := b.pad([]byte(`{"a":1}`))
	require.NoError(t, err)
	assert.Len(t, slot, 129)
	assert.Equal(t, `{"a":1}`+strings.Repeat(" ", 121)+"\n", string(slot))
}

func mustEncode(t *testing.T, doc testDoc) []byte {
	t.Helper()
	payload, err := Encode(doc)
	require.NoError(t, err)
	return payload
}
