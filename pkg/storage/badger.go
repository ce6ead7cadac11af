package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/adfharrison1/struvedb/pkg/domain"
)

// Key layout:
//
//	d/<uuid>      -> document JSON
//	s/<sequence>  -> uuid, sequence is big endian so iteration follows insertion
//	p/<uuid>      -> sequence
var (
	prefixDocument = []byte("d/")
	prefixSequence = []byte("s/")
	prefixPosition = []byte("p/")
	sequenceKey    = []byte("meta/sequence")
)

const sequenceBandwidth = 100

// BadgerBackend persists documents in a badger key-value store while
// keeping their insertion order across restarts.
type BadgerBackend[T domain.Document[T]] struct {
	db  *badger.DB
	seq *badger.Sequence
}

type badgerLogger struct{}

var _ badger.Logger = badgerLogger{}

func (badgerLogger) Errorf(msg string, items ...any)   { log.Printf("ERROR: badger: "+msg, items...) }
func (badgerLogger) Warningf(msg string, items ...any) { log.Printf("WARN: badger: "+msg, items...) }
func (badgerLogger) Infof(string, ...any)              {}
func (badgerLogger) Debugf(string, ...any)             {}

// OpenBadgerBackend opens (or creates) a badger database in dir
func OpenBadgerBackend[T domain.Document[T]](dir string) (*BadgerBackend[T], error) {
	opts := badger.DefaultOptions(dir).WithLogger(badgerLogger{})
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: open badger: %w", domain.ErrIO, err)
	}
	seq, err := db.GetSequence(sequenceKey, sequenceBandwidth)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: badger sequence: %w", domain.ErrIO, err)
	}
	return &BadgerBackend[T]{db: db, seq: seq}, nil
}

func withPrefix(prefix []byte, rest []byte) []byte {
	key := make([]byte, 0, len(prefix)+len(rest))
	key = append(key, prefix...)
	return append(key, rest...)
}

func documentKey(key uuid.UUID) []byte {
	return withPrefix(prefixDocument, key[:])
}

func positionKey(key uuid.UUID) []byte {
	return withPrefix(prefixPosition, key[:])
}

func sequenceEntry(n []byte) []byte {
	return withPrefix(prefixSequence, n)
}

// Load walks the sequence entries in order and fetches each document
func (b *BadgerBackend[T]) Load() ([]T, error) {
	var docs []T
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefixSequence); it.ValidForPrefix(prefixSequence); it.Next() {
			raw, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			key, err := uuid.FromBytes(raw)
			if err != nil {
				log.Printf("WARN: badger: skipping malformed sequence entry: %v", err)
				continue
			}
			item, err := txn.Get(documentKey(key))
			if errors.Is(err, badger.ErrKeyNotFound) {
				log.Printf("WARN: badger: sequence points to missing document %s", key)
				continue
			}
			if err != nil {
				return err
			}
			payload, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			doc, err := Decode[T](payload)
			if err != nil {
				log.Printf("WARN: badger: skipping document %s: %v", key, err)
				continue
			}
			docs = append(docs, doc)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: badger load: %w", domain.ErrIO, err)
	}
	return docs, nil
}

func (b *BadgerBackend[T]) Insert(doc T, _ domain.Sequence[T]) error {
	payload, err := Encode(doc)
	if err != nil {
		return err
	}
	n, err := b.seq.Next()
	if err != nil {
		return fmt.Errorf("%w: badger sequence: %w", domain.ErrIO, err)
	}
	var seq [8]byte
	binary.BigEndian.PutUint64(seq[:], n)

	key := doc.PrimaryKey()
	err = b.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(documentKey(key), payload); err != nil {
			return err
		}
		if err := txn.Set(sequenceEntry(seq[:]), key[:]); err != nil {
			return err
		}
		return txn.Set(positionKey(key), seq[:])
	})
	if err != nil {
		return fmt.Errorf("%w: badger insert: %w", domain.ErrIO, err)
	}
	return nil
}

func (b *BadgerBackend[T]) Update(doc T, _ int, _ domain.Sequence[T]) error {
	payload, err := Encode(doc)
	if err != nil {
		return err
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(documentKey(doc.PrimaryKey()), payload)
	})
	if err != nil {
		return fmt.Errorf("%w: badger update: %w", domain.ErrIO, err)
	}
	return nil
}

func (b *BadgerBackend[T]) Delete(key uuid.UUID, _ domain.Sequence[T]) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(positionKey(key))
		if err != nil {
			return err
		}
		seq, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if err := txn.Delete(sequenceEntry(seq)); err != nil {
			return err
		}
		if err := txn.Delete(positionKey(key)); err != nil {
			return err
		}
		return txn.Delete(documentKey(key))
	})
	if err != nil {
		return fmt.Errorf("%w: badger delete: %w", domain.ErrIO, err)
	}
	return nil
}

func (b *BadgerBackend[T]) Close() error {
	if err := b.seq.Release(); err != nil {
		log.Printf("WARN: badger: release sequence: %v", err)
	}
	return b.db.Close()
}
