// Package docstore pins registration documents to content-addressed storage.
// The returned identifier is derived from content alone, so re-pinning the
// same bytes always yields the same hash.
package docstore

import "context"

// Pinner stores a document and returns its content hash.
type Pinner interface {
	PinFile(ctx context.Context, name string, content []byte) (string, error)
}
