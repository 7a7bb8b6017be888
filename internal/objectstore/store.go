// Package objectstore abstracts the HEAD/GET surface corral needs
// against the result bucket, so RolloutFuture never imports the AWS SDK
// directly.
package objectstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Head when the object doesn't exist yet.
// Any other error from the underlying store propagates unchanged.
var ErrNotFound = errors.New("objectstore: not found")

// Store is the narrow surface RolloutFuture polls against.
type Store interface {
	// Head checks whether key exists in bucket. Returns ErrNotFound (or
	// an error wrapping it, checked via errors.Is) when absent.
	Head(ctx context.Context, bucket, key string) error
	// Get fetches the raw bytes of a UTF-8 JSON document.
	Get(ctx context.Context, bucket, key string) ([]byte, error)
}
