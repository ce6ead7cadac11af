package storage

import (
	"fmt"
	"io"
	"os"
)

// SlotStore is the positional I/O port used by the single file backend.
type SlotStore interface {
	ReadAll() ([]byte, error)
	WriteAt(p []byte, off int64) error
	Truncate(size int64) error
	Close() error
}

type slotFile struct {
	file *os.File
}

// OpenSlotFile opens (or creates) path for positional reads and writes
func OpenSlotFile(path string) (SlotStore, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open slot file: %w", err)
	}
	return &slotFile{file: f}, nil
}

func (s *slotFile) ReadAll() ([]byte, error) {
	info, err := s.file.Stat()
	if err != nil {
		return nil, err
	}
	return io.ReadAll(io.NewSectionReader(s.file, 0, info.Size()))
}

func (s *slotFile) WriteAt(p []byte, off int64) error {
	n, err := s.file.WriteAt(p, off)
	if err != nil {
		return err
	}
	if n != len(p) {
		return io.ErrShortWrite
	}
	return nil
}

func (s *slotFile) Truncate(size int64) error {
	return s.file.Truncate(size)
}

func (s *slotFile) Close() error {
	return s.file.Close()
}
