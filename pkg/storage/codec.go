package storage

import (
	"fmt"

	"github.com/go-json-experiment/json"

	"github.com/adfharrison1/struvedb/pkg/domain"
)

// Encode serializes a document as compact single line JSON. Nil slices
// and maps are written as null so they decode back to nil.
func Encode(doc any) ([]byte, error) {
	payload, err := json.Marshal(doc, json.FormatNilSliceAsNull(true), json.FormatNilMapAsNull(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrSerialization, err)
	}
	return payload, nil
}

// Decode parses a document previously produced by Encode
func Decode[T any](payload []byte) (T, error) {
	var doc T
	if err := json.Unmarshal(payload, &doc); err != nil {
		return doc, fmt.Errorf("%w: %w", domain.ErrSerialization, err)
	}
	return doc, nil
}

// docSlice adapts a plain slice to domain.Sequence
type docSlice[T any] []T

func (s docSlice[T]) Len() int {
	return len(s)
}

func (s docSlice[T]) Range(fn func(pos int, doc T) bool) {
	for i, doc := range s {
		if !fn(i, doc) {
			return
		}
	}
}
