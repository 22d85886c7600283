// Package staging is the durable object store artifacts are staged in before the warehouse loads them.
package staging

import (
	"context"
	"io"
	"time"
)

// Object describes one stored object.
type Object struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// Store is a flat key/value blob store. Keys have no directory semantics beyond string prefixes.
//
// Put must be atomic from a reader's point of view: an object is either the
// previous complete body or the new complete body, and a failed Put leaves the
// previous object untouched.
type Store interface {
	// Put writes body under key, replacing any existing object.
	Put(ctx context.Context, key string, body io.ReadSeeker) error
	// Get opens the object stored under key. Returns ErrCodeArtifactNotFound when missing.
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// List returns every object whose key starts with prefix, sorted by key.
	List(ctx context.Context, prefix string) ([]Object, error)
	// Head reports whether key exists.
	Head(ctx context.Context, key string) (bool, error)
	// Delete removes the given keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error
}
