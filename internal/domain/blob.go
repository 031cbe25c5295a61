package domain

import (
	"context"
	"io"
	"time"
)

// BlobInfo describes a stored object.
type BlobInfo struct {
	Path         string
	Size         int64
	ContentType  string
	LastModified time.Time
}

// BlobWriter uploads objects to durable storage.
type BlobWriter interface {
	// Put uploads data to the given path, overwriting any existing object.
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// BlobReader retrieves objects and metadata from durable storage.
type BlobReader interface {
	// Get returns the object body. The caller closes the returned reader.
	// Returns ErrNotFound if no object exists at the path.
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	// List returns metadata for every object under the prefix.
	List(ctx context.Context, prefix string) ([]BlobInfo, error)
	// Exists reports whether an object exists at the path.
	Exists(ctx context.Context, path string) (bool, error)
}
