package storage

import (
	"encoding/binary"
	"fmt"
	"io"
	"time"
)

const (
	// Magic bytes to identify a snapshot file
	MagicBytes = "STRV"
	// Current version
	FormatVersion = 1
	// File extension for snapshots
	FileExtension = ".strv"
)

const (
	// FlagCompressed marks an lz4 compressed payload
	FlagCompressed uint8 = 1 << iota
)

// FileHeader represents the header of a snapshot file
type FileHeader struct {
	Magic     [4]byte // "STRV"
	Version   uint8   // Format version
	Flags     uint8   // FlagCompressed
	Reserved  [2]byte // Reserved for future use
	RawLength uint32  // Payload length before compression
}

// WriteHeader writes the file header to the given writer
func WriteHeader(w io.Writer, flags uint8, rawLength uint32) error {
	header := FileHeader{
		Magic:     [4]byte{'S', 'T', 'R', 'V'},
		Version:   FormatVersion,
		Flags:     flags,
		RawLength: rawLength,
	}

	return binary.Write(w, binary.LittleEndian, header)
}

// ReadHeader reads and validates the file header
func ReadHeader(r io.Reader) (*FileHeader, error) {
	var header FileHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	if string(header.Magic[:]) != MagicBytes {
		return nil, fmt.Errorf("invalid file format: expected %s, got %s", MagicBytes, string(header.Magic[:]))
	}

	if header.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported file version: %d", header.Version)
	}

	return &header, nil
}

// SnapshotData is the msgpack payload of a snapshot
type SnapshotData struct {
	Backend   string    `msgpack:"backend"`
	CreatedAt time.Time `msgpack:"created_at"`
	Documents [][]byte  `msgpack:"documents"` // JSON, in index order
}
