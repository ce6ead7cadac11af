package collection

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/adfharrison1/struvedb/pkg/domain"
)

type StoreOption func(*storeConfig)

type storeConfig struct {
	queueSize        int
	snapshotPath     string
	snapshotInterval time.Duration
}

// WithQueueSize sets how many mutations may wait for the writer (default: 64)
func WithQueueSize(n int) StoreOption {
	return func(c *storeConfig) {
		c.queueSize = n
	}
}

// WithSnapshotInterval enables a background worker writing a snapshot of
// the collection to path every interval
func WithSnapshotInterval(path string, interval time.Duration) StoreOption {
	return func(c *storeConfig) {
		c.snapshotPath = path
		c.snapshotInterval = interval
	}
}

type request[T domain.Document[T]] struct {
	apply func(*Collection[T]) error
	done  chan error
}

// Store shares a Collection between goroutines. A single writer goroutine
// owns every mutation; reads run concurrently under a read lock.
type Store[T domain.Document[T]] struct {
	mu   sync.RWMutex
	coll *Collection[T]
	cfg  storeConfig

	requests   chan request[T]
	stopChan   chan struct{}
	writerDone chan struct{}
	wg         sync.WaitGroup
	closeOnce  sync.Once
	closeErr   error
}

// NewStore starts the writer, and the snapshot worker when configured.
// The store takes ownership of coll.
func NewStore[T domain.Document[T]](coll *Collection[T], opts ...StoreOption) *Store[T] {
	cfg := storeConfig{queueSize: 64}
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &Store[T]{
		coll:       coll,
		cfg:        cfg,
		requests:   make(chan request[T], max(cfg.queueSize, 0)),
		stopChan:   make(chan struct{}),
		writerDone: make(chan struct{}),
	}

	s.wg.Add(1)
	go s.writer()

	if cfg.snapshotPath != "" && cfg.snapshotInterval > 0 {
		s.wg.Add(1)
		go s.snapshotWorker()
	}
	return s
}

func (s *Store[T]) writer() {
	defer s.wg.Done()
	defer close(s.writerDone)
	for {
		select {
		case req := <-s.requests:
			s.mu.Lock()
			err := req.apply(s.coll)
			s.mu.Unlock()
			req.done <- err
		case <-s.stopChan:
			for {
				select {
				case req := <-s.requests:
					req.done <- domain.ErrClosed
				default:
					return
				}
			}
		}
	}
}

// submit hands a mutation to the writer. ctx bounds the wait; a mutation
// already picked up by the writer still completes after ctx is done.
func (s *Store[T]) submit(ctx context.Context, apply func(*Collection[T]) error) error {
	req := request[T]{apply: apply, done: make(chan error, 1)}
	select {
	case s.requests <- req:
	case <-s.stopChan:
		return domain.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.done:
		return err
	case <-s.writerDone:
		select {
		case err := <-req.done:
			return err
		default:
			return domain.ErrClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store[T]) Insert(ctx context.Context, doc T) error {
	return s.submit(ctx, func(c *Collection[T]) error {
		return c.Insert(doc)
	})
}

func (s *Store[T]) Update(ctx context.Context, doc T) error {
	return s.submit(ctx, func(c *Collection[T]) error {
		return c.Update(doc)
	})
}

func (s *Store[T]) Delete(ctx context.Context, key uuid.UUID) error {
	return s.submit(ctx, func(c *Collection[T]) error {
		return c.Delete(key)
	})
}

func (s *Store[T]) Find(predicate func(T) bool) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.coll.Find(predicate)
}

func (s *Store[T]) Filter(predicate func(T) bool) []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.coll.Filter(predicate)
}

func (s *Store[T]) ByPrimaryKey(key uuid.UUID) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.coll.ByPrimaryKey(key)
}

func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.coll.Len()
}

// SaveSnapshot atomically replaces path with a snapshot of the collection
func (s *Store[T]) SaveSnapshot(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create snapshot file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := s.coll.Snapshot(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close snapshot file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move snapshot into place: %w", err)
	}
	return nil
}

func (s *Store[T]) snapshotWorker() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.snapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			start := time.Now()
			if err := s.SaveSnapshot(s.cfg.snapshotPath); err != nil {
				log.Printf("ERROR: Background snapshot failed: %v", err)
				continue
			}
			log.Printf("DEBUG: Background snapshot written to %s in %v", s.cfg.snapshotPath, time.Since(start))
		case <-s.stopChan:
			return
		}
	}
}

// Close stops the workers and closes the collection. Safe to call twice.
func (s *Store[T]) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()

		s.mu.Lock()
		defer s.mu.Unlock()
		s.closeErr = s.coll.Close()
	})
	return s.closeErr
}
