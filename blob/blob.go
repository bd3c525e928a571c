// Package blob stores raw artifact bytes. Records about artifacts live
// in the relational store; the bytes themselves land here, keyed by
// content hash.
package blob

import (
	"context"
	"errors"
)

// ErrBlobNotFound is returned when no blob exists under a key.
var ErrBlobNotFound = errors.New("blob: not found")

// Store is the contract for blob backends.
type Store interface {
	// Put writes data under key. Writing an existing key is a no-op:
	// keys are content hashes, so equal key means equal bytes.
	Put(ctx context.Context, key string, data []byte) error

	// Get reads the blob under key, or ErrBlobNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes the blob under key. Deleting a missing key is not
	// an error.
	Delete(ctx context.Context, key string) error
}
