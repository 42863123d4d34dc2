package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidDocument is returned when a stored value is not a JSON object.
var ErrInvalidDocument = errors.New("stored document is not a JSON object")

// Document is one stored record: a JSON object with arbitrary top-level fields.
type Document map[string]any

// WriteOptions controls how Write combines the new value with the stored one.
type WriteOptions struct {
	// Merge performs a shallow top-level merge into the existing document.
	// When false the document is replaced wholesale.
	Merge bool
}

// DocumentStore is the remote per-user document store. Implementations must
// give read-your-writes consistency for a single key; nothing more is assumed.
type DocumentStore interface {
	// Read returns the document stored under key. ok is false when absent.
	Read(ctx context.Context, key string) (doc Document, ok bool, err error)

	// Write stores doc under key.
	Write(ctx context.Context, key string, doc Document, opts WriteOptions) error
}

// MergeShallow overlays patch onto base, top-level keys only. A nil value in
// patch is kept as an explicit null rather than deleting the key.
func MergeShallow(base, patch Document) Document {
	out := make(Document, len(base)+len(patch))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range patch {
		out[k] = v
	}
	return out
}

// Encode serializes a document for byte-oriented backends.
func Encode(doc Document) ([]byte, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return data, nil
}

// Decode parses a stored document. Anything but a JSON object is rejected.
func Decode(data []byte) (Document, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, ErrInvalidDocument
	}
	return Document(m), nil
}

// roundTrip gives the caller a private copy with the same value shapes a
// remote store would return (numbers as float64, structs as maps).
func roundTrip(doc Document) (Document, error) {
	data, err := Encode(doc)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}
