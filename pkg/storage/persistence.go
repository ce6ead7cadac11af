package storage

import (
	"fmt"
	"io"
	"math"

	"github.com/pierrec/lz4/v4"
	"github.com/vmihailenco/msgpack/v5"
)

// WriteSnapshot encodes data with MessagePack, compresses it with lz4 and
// writes it after a FileHeader.
func WriteSnapshot(w io.Writer, data *SnapshotData) error {
	msgpackData, err := msgpack.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode MessagePack: %w", err)
	}
	if uint64(len(msgpackData)) > math.MaxUint32 {
		return fmt.Errorf("snapshot too large: %d bytes", len(msgpackData))
	}

	payload := msgpackData
	flags := uint8(0)
	compressedData := make([]byte, lz4.CompressBlockBound(len(msgpackData)))
	var hashTable [1 << 16]int
	n, err := lz4.CompressBlock(msgpackData, compressedData, hashTable[:])
	if err != nil {
		return fmt.Errorf("failed to compress data: %w", err)
	}
	// n == 0 means the block is incompressible, keep it raw
	if n > 0 {
		payload = compressedData[:n]
		flags |= FlagCompressed
	}

	if err := WriteHeader(w, flags, uint32(len(msgpackData))); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("failed to write snapshot data: %w", err)
	}
	return nil
}

// ReadSnapshot reverses WriteSnapshot
func ReadSnapshot(r io.Reader) (*SnapshotData, error) {
	header, err := ReadHeader(r)
	if err != nil {
		return nil, fmt.Errorf("invalid file header: %w", err)
	}
	payload, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot data: %w", err)
	}

	if header.Flags&FlagCompressed != 0 {
		decompressedData := make([]byte, header.RawLength)
		n, err := lz4.UncompressBlock(payload, decompressedData)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress data: %w", err)
		}
		payload = decompressedData[:n]
	}
	if len(payload) != int(header.RawLength) {
		return nil, fmt.Errorf("snapshot length mismatch: header says %d, got %d", header.RawLength, len(payload))
	}

	var data SnapshotData
	if err := msgpack.Unmarshal(payload, &data); err != nil {
		return nil, fmt.Errorf("failed to decode MessagePack: %w", err)
	}
	return &data, nil
}
