package storage

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"github.com/adfharrison1/struvedb/pkg/domain"
)

// DocumentExtension is the suffix of every file managed by DirBackend
const DocumentExtension = ".json"

// DirBackend stores one JSON file per document, named <primary-key>.json.
type DirBackend[T domain.Document[T]] struct {
	dir     string
	workers int
}

// OpenDirBackend creates dir if needed. workers bounds the number of files
// decoded concurrently by Load.
func OpenDirBackend[T domain.Document[T]](dir string, workers int) (*DirBackend[T], error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("%w: create directory: %w", domain.ErrIO, err)
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &DirBackend[T]{dir: dir, workers: workers}, nil
}

// Path returns the file holding the document with the given key
func (b *DirBackend[T]) Path(key uuid.UUID) string {
	return filepath.Join(b.dir, key.String()+DocumentExtension)
}

// Load decodes every *.json file in the directory. Results are ordered by
// file name; files that cannot be read or decoded are skipped.
func (b *DirBackend[T]) Load() ([]T, error) {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: read directory: %w", domain.ErrIO, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.Type().IsRegular() && strings.HasSuffix(entry.Name(), DocumentExtension) {
			names = append(names, entry.Name())
		}
	}
	if len(names) == 0 {
		return nil, nil
	}

	pool, err := ants.NewPool(b.workers)
	if err != nil {
		return nil, fmt.Errorf("create load pool: %w", err)
	}
	defer pool.Release()

	results := make([]*T, len(names))
	wg := &sync.WaitGroup{}
	for i, name := range names {
		task := func() {
			defer wg.Done()
			results[i] = b.loadFile(name)
		}
		wg.Add(1)
		if err := pool.Submit(task); err != nil {
			task()
		}
	}
	wg.Wait()

	docs := make([]T, 0, len(results))
	for _, doc := range results {
		if doc != nil {
			docs = append(docs, *doc)
		}
	}
	return docs, nil
}

func (b *DirBackend[T]) loadFile(name string) *T {
	payload, err := os.ReadFile(filepath.Join(b.dir, name))
	if err != nil {
		log.Printf("WARN: skipping %s: %v", name, err)
		return nil
	}
	doc, err := Decode[T](payload)
	if err != nil {
		log.Printf("WARN: skipping %s: %v", name, err)
		return nil
	}
	if want := doc.PrimaryKey().String() + DocumentExtension; want != name {
		log.Printf("WARN: skipping %s: holds document %s", name, doc.PrimaryKey())
		return nil
	}
	return &doc
}

func (b *DirBackend[T]) Insert(doc T, _ domain.Sequence[T]) error {
	return b.write(doc)
}

func (b *DirBackend[T]) Update(doc T, _ int, _ domain.Sequence[T]) error {
	return b.write(doc)
}

// Delete removes the document file; a missing file is an error
func (b *DirBackend[T]) Delete(key uuid.UUID, _ domain.Sequence[T]) error {
	if err := os.Remove(b.Path(key)); err != nil {
		return fmt.Errorf("%w: remove document: %w", domain.ErrIO, err)
	}
	return nil
}

func (b *DirBackend[T]) Close() error {
	return nil
}

// write replaces the document file through a temporary file and a rename
func (b *DirBackend[T]) write(doc T) error {
	payload, err := Encode(doc)
	if err != nil {
		return err
	}
	path := b.Path(doc.PrimaryKey())
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0644); err != nil {
		return fmt.Errorf("%w: write document: %w", domain.ErrIO, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: write document: %w", domain.ErrIO, err)
	}
	return nil
}
